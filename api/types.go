package api

import (
	"context"
	"encoding/json"

	"taskflow/domain"
)

// Store is the document store behind the proxy.
type Store interface {
	QueryCollection(ctx context.Context, coll domain.Collection) ([]json.RawMessage, error)
	QueryCollectionWhere(ctx context.Context, coll domain.Collection, filter []byte) ([]json.RawMessage, error)
	CreateRecord(ctx context.Context, coll domain.Collection, properties []byte) (json.RawMessage, error)
	UpdateRecord(ctx context.Context, id string, properties []byte) (json.RawMessage, error)
	ArchiveRecord(ctx context.Context, id string) error
	GetRecord(ctx context.Context, id string) (json.RawMessage, error)
	Forward(ctx context.Context, method, path string, body []byte) (int, []byte, error)
	CollectionOf(databaseID string) (domain.Collection, bool)
}

// TaskSource serves the current TaskSet and forgets it after writes.
type TaskSource interface {
	Refresh(ctx context.Context) (domain.TaskSet, error)
	Reload(ctx context.Context) (domain.TaskSet, error)
	Evict(ctx context.Context)
}

// Registry tracks which identities may use the data routes.
type Registry interface {
	Request(ctx context.Context, u domain.User) error
	Get(ctx context.Context, subject string) (domain.User, error)
	Decide(ctx context.Context, subject string, status domain.ApprovalStatus) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

// Identity is the verified caller.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Authenticator is implemented by types able to verify Authorization headers.
type Authenticator interface {
	IdentityFromAuthHeader(string) (Identity, error)
}

// Deduper prevents processing of duplicate create requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the store call fails.
	Remove(ctx context.Context, userID, key string) error
}
