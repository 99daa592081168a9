package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

func (s *server) signup() echo.HandlerFunc {
	return func(c echo.Context) error {
		var req signupRequest
		if err := decodeOptionalBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		id := identityOf(c)
		u := domain.User{
			Subject:     id.Subject,
			Email:       id.Email,
			Name:        strings.TrimSpace(req.Name),
			Status:      domain.StatusPending,
			RequestedAt: s.now().UTC(),
		}
		if u.Name == "" {
			u.Name = id.Name
		}

		err := s.Registry.Request(c.Request().Context(), u)
		switch {
		case errors.Is(err, domain.ErrAlreadyRegistered):
			return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		case err != nil:
			s.log.WithError(err).WithField("subject", u.Subject).Error("signup failed")
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "signup failed"})
		}
		s.log.WithField("subject", u.Subject).Info("signup requested")
		if s.Notifier != nil {
			s.Notifier.Notify(u)
		}
		return c.JSON(http.StatusCreated, u)
	}
}

func (s *server) me() echo.HandlerFunc {
	return func(c echo.Context) error {
		id := identityOf(c)
		resp := meResponse{Subject: id.Subject, Email: id.Email, Admin: s.isAdmin(id.Subject)}
		u, err := s.Registry.Get(c.Request().Context(), id.Subject)
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
		case err != nil:
			s.log.WithError(err).WithField("subject", id.Subject).Error("approval lookup failed")
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "approval lookup failed"})
		default:
			resp.Registered = true
			resp.Status = u.Status
			resp.User = &u
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func (s *server) listUsers() echo.HandlerFunc {
	return func(c echo.Context) error {
		users, err := s.Registry.List(c.Request().Context())
		if err != nil {
			s.log.WithError(err).Error("listing users failed")
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "listing users failed"})
		}
		if status := c.QueryParam("status"); status != "" {
			want, err := domain.ParseApprovalStatus(status)
			if err != nil {
				return badRequest(c, err.Error())
			}
			kept := users[:0]
			for _, u := range users {
				if u.Status == want {
					kept = append(kept, u)
				}
			}
			users = kept
		}
		return c.JSON(http.StatusOK, users)
	}
}

func (s *server) userStats() echo.HandlerFunc {
	return func(c echo.Context) error {
		users, err := s.Registry.List(c.Request().Context())
		if err != nil {
			s.log.WithError(err).Error("listing users failed")
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "listing users failed"})
		}
		return c.JSON(http.StatusOK, domain.CountUsers(users))
	}
}

func (s *server) decide(status domain.ApprovalStatus) echo.HandlerFunc {
	return func(c echo.Context) error {
		subject := c.Param("id")
		u, err := s.Registry.Decide(c.Request().Context(), subject, status)
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		case errors.Is(err, domain.ErrStaleUser):
			return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		case err != nil:
			s.log.WithError(err).WithField("subject", subject).Error("approval decision failed")
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "approval decision failed"})
		}
		s.log.WithFields(log.Fields{
			"subject": subject,
			"status":  status,
			"admin":   identityOf(c).Subject,
		}).Info("approval decided")
		return c.JSON(http.StatusOK, u)
	}
}

// refresh drops the cached TaskSet and rebuilds it from the store.
func (s *server) refresh() echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		s.evict(ctx)
		ts, err := s.Tasks.Reload(ctx)
		if err != nil {
			return s.taskFailure(c, err)
		}
		return c.JSON(http.StatusOK, refreshResponse{Records: ts.Len(), FetchedAt: ts.FetchedAt(), Warnings: warningsOf(ts)})
	}
}
