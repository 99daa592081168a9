package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"taskflow/aggregate"
	"taskflow/domain"
	"taskflow/notion"
	"taskflow/schema"
)

const (
	identityKey     = "taskflow.identity"
	authDurationKey = "taskflow.auth_duration"
)

// Deps are the collaborators of the HTTP layer. Registry, Notifier and
// Deduper are optional; without a Registry every authenticated caller is
// treated as approved and the signup routes are not mounted.
type Deps struct {
	Store    Store
	Tasks    TaskSource
	Schema   *schema.Schema
	Auth     Authenticator
	Registry Registry
	Notifier *SignupNotifier
	Deduper  Deduper
}

// Config holds request-independent settings of the HTTP layer.
type Config struct {
	Location *time.Location
	Admins   []string
	Now      func() time.Time
}

type server struct {
	Deps
	loc    *time.Location
	admins []string
	now    func() time.Time
	log    *log.Logger
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, deps Deps, cfg Config, logger *log.Logger) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &server{Deps: deps, loc: cfg.Location, admins: cfg.Admins, now: cfg.Now, log: logger}

	e.GET("/healthz", healthz())

	g := e.Group("/api", s.authenticate)
	if s.Registry != nil {
		g.POST("/auth/signup", s.signup())
		g.GET("/auth/me", s.me())
	}

	admin := g.Group("/admin", s.requireAdmin)
	if s.Registry != nil {
		admin.GET("/users", s.listUsers())
		admin.GET("/users/stats", s.userStats())
		admin.POST("/users/:id/approve", s.decide(domain.StatusApproved))
		admin.POST("/users/:id/reject", s.decide(domain.StatusRejected))
	}
	admin.POST("/refresh", s.refresh())

	data := g.Group("", s.requireApproved)
	data.POST("/notion/databases/:databaseId/query", s.proxyQuery())
	data.GET("/notion/pages/:pageId", s.proxyGetPage())
	data.PATCH("/notion/pages/:pageId", s.proxyUpdatePage())
	data.POST("/notion/pages", s.proxyCreatePage())

	data.GET("/tasks", s.getTasks())
	data.POST("/tasks", s.createTask())
	data.PATCH("/tasks/:id", s.updateTask())
	data.POST("/tasks/:id/complete", s.completeTask())
	data.DELETE("/tasks/:id", s.deleteTask())

	data.GET("/stats", s.getStats())
	data.GET("/stats/assignees", s.getAssigneeStats())

	data.GET("/events", s.getEvents())
	data.POST("/events", s.createEvent())
	data.DELETE("/events/:groupId", s.deleteEvent())
	data.POST("/events/:groupId/items", s.addEventItem())
	data.PATCH("/events/items/:id", s.toggleEventItem())
	data.DELETE("/events/items/:id", s.deleteEventItem())
	data.GET("/journal", s.listJournal())
	data.GET("/journal/:date", s.getJournal())
	data.PUT("/journal/:date", s.putJournal())
	data.GET("/notes", s.listNotes())
	data.POST("/notes", s.createNote())
	data.PATCH("/notes/:id", s.updateNote())
	data.DELETE("/notes/:id", s.deleteNote())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func (s *server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		id, err := s.Auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		c.Set(authDurationKey, time.Since(start))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}
		c.Set(identityKey, id)
		return next(c)
	}
}

func (s *server) isAdmin(subject string) bool {
	return slices.Contains(s.admins, subject)
}

func (s *server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.isAdmin(identityOf(c).Subject) {
			return c.JSON(http.StatusForbidden, errorResponse{Error: "admin only"})
		}
		return next(c)
	}
}

func (s *server) requireApproved(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := identityOf(c)
		if s.Registry == nil || s.isAdmin(id.Subject) {
			return next(c)
		}
		u, err := s.Registry.Get(c.Request().Context(), id.Subject)
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			return c.JSON(http.StatusForbidden, errorResponse{Error: "not registered"})
		case err != nil:
			s.log.WithError(err).WithField("subject", id.Subject).Error("approval lookup failed")
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "approval lookup failed"})
		}
		switch u.Status {
		case domain.StatusApproved:
			return next(c)
		case domain.StatusRejected:
			return c.JSON(http.StatusForbidden, errorResponse{Error: "access rejected"})
		default:
			return c.JSON(http.StatusForbidden, errorResponse{Error: "approval pending"})
		}
	}
}

func identityOf(c echo.Context) Identity {
	id, _ := c.Get(identityKey).(Identity)
	return id
}

func authDurationOf(c echo.Context) time.Duration {
	d, _ := c.Get(authDurationKey).(time.Duration)
	return d
}

// instrument starts request metrics for route and swaps the request context
// for the span context.
func (s *server) instrument(c echo.Context, route string) (*requestMetrics, context.Context) {
	metrics, ctx := newRequestMetrics(c.Request().Context(), route, s.log)
	c.SetRequest(c.Request().WithContext(ctx))
	metrics.ObserveAuth(authDurationOf(c))
	return metrics, ctx
}

// decodeBody reads a bounded JSON body into v. Unknown fields are rejected.
func decodeBody(c echo.Context, v any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeOptionalBody is decodeBody for routes whose body may be omitted.
func decodeOptionalBody(c echo.Context, v any) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := sonic.ConfigStd.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

// storeFailure maps a store error onto a response. Not-found passes through,
// everything else is reported as a bad gateway.
func (s *server) storeFailure(c echo.Context, err error) error {
	var apiErr *notion.APIError
	switch {
	case notion.IsNotFound(err):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "record not found"})
	case errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError:
		return c.JSON(apiErr.Status, errorResponse{Error: apiErr.Message})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: "store timed out"})
	}
	s.log.WithError(err).Error("store request failed")
	return c.JSON(http.StatusBadGateway, errorResponse{Error: "store request failed"})
}

// lookupPage fetches page id and resolves the configured collection it lives
// in. Pages outside the configured databases are refused. An empty collection
// means the response has already been written.
func (s *server) lookupPage(c echo.Context, id string) (json.RawMessage, domain.Collection, error) {
	raw, err := s.Store.GetRecord(c.Request().Context(), id)
	if err != nil {
		return nil, "", s.storeFailure(c, err)
	}
	coll, ok := s.Store.CollectionOf(gjson.GetBytes(raw, "parent.database_id").String())
	if !ok {
		return nil, "", c.JSON(http.StatusForbidden, errorResponse{Error: "unknown database"})
	}
	return raw, coll, nil
}

// pageIn is lookupPage restricted to one collection.
func (s *server) pageIn(c echo.Context, id string, want domain.Collection) (json.RawMessage, bool, error) {
	raw, coll, err := s.lookupPage(c, id)
	if err != nil || coll == "" {
		return nil, false, err
	}
	if coll != want {
		return nil, false, badRequest(c, "page is not in the "+string(want)+" collection")
	}
	return raw, true, nil
}

// taskFailure maps a TaskSource error onto a response.
func (s *server) taskFailure(c echo.Context, err error) error {
	var total *aggregate.TotalFailureError
	if errors.As(err, &total) {
		resp := errorResponse{Error: "all task sources failed"}
		for _, cause := range total.Causes {
			resp.Causes = append(resp.Causes, cause.Error())
		}
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	s.log.WithError(err).Error("task refresh failed")
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "task refresh failed"})
}

// claim records the request's idempotency key. ok is false when the key was
// seen before and the request must not be replayed. release undoes the claim.
func (s *server) claim(c echo.Context) (ok bool, release func(), err error) {
	key := c.Request().Header.Get(idempotencyHeader)
	if key == "" || s.Deduper == nil {
		return true, func() {}, nil
	}
	ctx := c.Request().Context()
	subject := identityOf(c).Subject
	added, err := s.Deduper.Add(ctx, subject, key)
	if err != nil {
		return false, nil, err
	}
	release = func() {
		if err := s.Deduper.Remove(context.WithoutCancel(ctx), subject, key); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("failed to release idempotency key")
		}
	}
	return added, release, nil
}

func (s *server) evict(ctx context.Context) {
	s.Tasks.Evict(context.WithoutCancel(ctx))
}
