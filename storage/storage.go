package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"taskflow/domain"
)

const usersPartition = "users"

// Approvals keeps the users waiting for or holding access, and announces new
// signups on a queue.
type Approvals struct {
	users   *aztables.Client
	signups *azqueue.QueueClient
}

// New creates the registry clients from a storage connection string.
func New(connStr, usersTable, signupQueue string) (*Approvals, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 30,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, signupQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Approvals{users: svc.NewClient(usersTable), signups: q}, nil
}

// Provision creates the users table and signup queue when missing.
func (a *Approvals) Provision(ctx context.Context) error {
	if _, err := a.users.CreateTable(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return err
		}
	}
	if _, err := a.signups.Create(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
			return err
		}
	}
	return nil
}

type userEntity struct {
	aztables.Entity
	Email       string `json:"Email"`
	Name        string `json:"Name"`
	Status      string `json:"Status"`
	RequestedAt string `json:"RequestedAt"`
	DecidedAt   string `json:"DecidedAt,omitempty"`
}

func encodeUserEntity(u domain.User) ([]byte, error) {
	ent := userEntity{
		Entity:      aztables.Entity{PartitionKey: usersPartition, RowKey: u.Subject},
		Email:       u.Email,
		Name:        u.Name,
		Status:      string(u.Status),
		RequestedAt: u.RequestedAt.UTC().Format(time.RFC3339),
	}
	if !u.DecidedAt.IsZero() {
		ent.DecidedAt = u.DecidedAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(ent)
}

func decodeUserEntity(data []byte) (domain.User, error) {
	var ent userEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.User{}, err
	}
	status, err := domain.ParseApprovalStatus(ent.Status)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{Subject: ent.RowKey, Email: ent.Email, Name: ent.Name, Status: status}
	if ent.RequestedAt != "" {
		if u.RequestedAt, err = time.Parse(time.RFC3339, ent.RequestedAt); err != nil {
			return domain.User{}, err
		}
	}
	if ent.DecidedAt != "" {
		if u.DecidedAt, err = time.Parse(time.RFC3339, ent.DecidedAt); err != nil {
			return domain.User{}, err
		}
	}
	return u, nil
}

func responseStatus(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// Request registers u as pending.
func (a *Approvals) Request(ctx context.Context, u domain.User) error {
	u.Status = domain.StatusPending
	u.DecidedAt = time.Time{}
	data, err := encodeUserEntity(u)
	if err != nil {
		return err
	}
	if _, err := a.users.AddEntity(ctx, data, nil); err != nil {
		if responseStatus(err) == http.StatusConflict {
			return domain.ErrAlreadyRegistered
		}
		return err
	}
	return nil
}

// Get returns the registered user for subject.
func (a *Approvals) Get(ctx context.Context, subject string) (domain.User, error) {
	u, _, err := a.get(ctx, subject)
	return u, err
}

func (a *Approvals) get(ctx context.Context, subject string) (domain.User, azcore.ETag, error) {
	resp, err := a.users.GetEntity(ctx, usersPartition, subject, nil)
	if err != nil {
		if responseStatus(err) == http.StatusNotFound {
			return domain.User{}, "", domain.ErrUserNotFound
		}
		return domain.User{}, "", err
	}
	u, err := decodeUserEntity(resp.Value)
	return u, resp.ETag, err
}

// Decide records an approval decision. The write is conditional on the entity
// not having changed since it was read.
func (a *Approvals) Decide(ctx context.Context, subject string, status domain.ApprovalStatus) (domain.User, error) {
	u, etag, err := a.get(ctx, subject)
	if err != nil {
		return domain.User{}, err
	}
	u.Status = status
	u.DecidedAt = time.Now().UTC().Truncate(time.Second)
	data, err := encodeUserEntity(u)
	if err != nil {
		return domain.User{}, err
	}
	if _, err := a.users.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{
		IfMatch:    &etag,
		UpdateMode: aztables.UpdateModeReplace,
	}); err != nil {
		if responseStatus(err) == http.StatusPreconditionFailed {
			return domain.User{}, domain.ErrStaleUser
		}
		return domain.User{}, err
	}
	return u, nil
}

// List returns every registered user.
func (a *Approvals) List(ctx context.Context) ([]domain.User, error) {
	filter := "PartitionKey eq '" + usersPartition + "'"
	pager := a.users.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	users := []domain.User{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			u, err := decodeUserEntity(e)
			if err != nil {
				return nil, err
			}
			users = append(users, u)
		}
	}
	return users, nil
}

type signupMessage struct {
	Subject     string    `json:"subject"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	RequestedAt time.Time `json:"requestedAt"`
}

// NotifySignup puts a signup announcement on the queue for the admins.
func (a *Approvals) NotifySignup(ctx context.Context, u domain.User) error {
	data, err := sonic.Marshal(signupMessage{Subject: u.Subject, Email: u.Email, Name: u.Name, RequestedAt: u.RequestedAt})
	if err != nil {
		return err
	}
	_, err = a.signups.EnqueueMessage(ctx, string(data), nil)
	return err
}
