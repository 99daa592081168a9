package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"taskflow/domain"
	"taskflow/stats"
)

func (s *server) getTasks() echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := s.instrument(c, "/api/tasks")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		category := strings.TrimSpace(c.QueryParam("category"))
		if category == "" {
			category = string(domain.CategoryAll)
		}
		assignee := strings.TrimSpace(c.QueryParam("assignee"))
		metrics.SetCategory(category)

		fetchStart := time.Now()
		ts, fetchErr := s.Tasks.Refresh(ctx)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("fetch")
			return s.taskFailure(c, fetchErr)
		}
		metrics.SetWarnings(len(ts.Warnings()))

		engine := stats.New(ts, s.now(), s.loc)
		tasks, filterErr := engine.FilterBy(category, assignee)
		if filterErr != nil {
			metrics.SetErrorStage("filter")
			var invalid *domain.InvalidCategoryError
			if errors.As(filterErr, &invalid) {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: filterErr.Error(), Category: invalid.Name})
			}
			return badRequest(c, filterErr.Error())
		}
		metrics.SetRecords(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{
			Category:  category,
			Assignee:  assignee,
			Today:     engine.Today(),
			Tasks:     tasks,
			FetchedAt: ts.FetchedAt(),
			Warnings:  warningsOf(ts),
		})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func (s *server) getStats() echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := s.instrument(c, "/api/stats")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		fetchStart := time.Now()
		ts, fetchErr := s.Tasks.Refresh(ctx)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("fetch")
			return s.taskFailure(c, fetchErr)
		}
		metrics.SetRecords(ts.Len())
		metrics.SetWarnings(len(ts.Warnings()))

		engine := stats.New(ts, s.now(), s.loc)
		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, statsResponse{
			Global:    engine.Global(),
			Sources:   engine.BySource(),
			FetchedAt: ts.FetchedAt(),
			Warnings:  warningsOf(ts),
		})
		metrics.ObserveEncode(time.Since(encodeStart))
		return err
	}
}

func (s *server) getAssigneeStats() echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := s.instrument(c, "/api/stats/assignees")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		fetchStart := time.Now()
		ts, fetchErr := s.Tasks.Refresh(ctx)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("fetch")
			return s.taskFailure(c, fetchErr)
		}
		metrics.SetWarnings(len(ts.Warnings()))

		engine := stats.New(ts, s.now(), s.loc)
		rows := engine.ByAssignee()
		metrics.SetRecords(len(rows))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, assigneesResponse{
			Today:     engine.Today(),
			Count:     engine.AssigneeCount(),
			Assignees: rows,
			Totals:    engine.Totals(),
			FetchedAt: ts.FetchedAt(),
			Warnings:  warningsOf(ts),
		})
		metrics.ObserveEncode(time.Since(encodeStart))
		return err
	}
}

// collectionParam reads the task collection of a write, defaulting to main.
func collectionParam(raw string) (domain.Collection, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.Main, nil
	}
	coll, err := domain.ParseCollection(raw)
	if err != nil {
		return "", err
	}
	if !coll.IsTaskSource() {
		return "", domain.ErrNotTaskSource
	}
	return coll, nil
}

func (s *server) createTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.TaskInput
		if err := decodeBody(c, &in); err != nil {
			return badRequest(c, "invalid body")
		}
		coll, err := collectionParam(string(in.Collection))
		if err != nil {
			return badRequest(c, err.Error())
		}
		in.Collection = coll
		if err := in.ValidateCreate(); err != nil {
			return badRequest(c, err.Error())
		}
		props, err := s.Schema.EncodeTask(coll, in)
		if err != nil {
			return badRequest(c, err.Error())
		}

		fresh, release, err := s.claim(c)
		if err != nil {
			s.log.WithError(err).Error("idempotency check failed")
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "idempotency check failed"})
		}
		if !fresh {
			return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
		}

		ctx := c.Request().Context()
		raw, err := s.Store.CreateRecord(ctx, coll, props)
		if err != nil {
			release()
			return s.storeFailure(c, err)
		}
		s.evict(ctx)
		return c.JSON(http.StatusCreated, s.Schema.ReadTask(raw, coll, s.loc))
	}
}

func (s *server) updateTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.TaskInput
		if err := decodeBody(c, &in); err != nil {
			return badRequest(c, "invalid body")
		}
		if err := in.ValidateUpdate(); err != nil {
			return badRequest(c, err.Error())
		}
		raw := string(in.Collection)
		if raw == "" {
			raw = c.QueryParam("collection")
		}
		coll, err := s.taskCollection(c, raw)
		if err != nil {
			return err
		}
		if coll == "" {
			return nil
		}
		in.Collection = coll
		return s.writeTask(c, coll, in)
	}
}

func (s *server) completeTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		req := completeRequest{}
		if err := decodeOptionalBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		done := true
		if req.Completed != nil {
			done = *req.Completed
		}
		coll, err := s.taskCollection(c, c.QueryParam("collection"))
		if err != nil || coll == "" {
			return err
		}
		return s.writeTask(c, coll, domain.TaskInput{Collection: coll, Completed: &done})
	}
}

// taskCollection resolves the collection of the task named by the :id param.
// Without an explicit name the page's parent database decides. An empty
// collection means the response has already been written.
func (s *server) taskCollection(c echo.Context, explicit string) (domain.Collection, error) {
	if strings.TrimSpace(explicit) != "" {
		coll, err := collectionParam(explicit)
		if err != nil {
			return "", badRequest(c, err.Error())
		}
		return coll, nil
	}
	_, coll, err := s.lookupPage(c, c.Param("id"))
	if err != nil || coll == "" {
		return "", err
	}
	if !coll.IsTaskSource() {
		return "", badRequest(c, domain.ErrNotTaskSource.Error())
	}
	return coll, nil
}

func (s *server) writeTask(c echo.Context, coll domain.Collection, in domain.TaskInput) error {
	props, err := s.Schema.EncodeTask(coll, in)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx := c.Request().Context()
	raw, err := s.Store.UpdateRecord(ctx, c.Param("id"), props)
	if err != nil {
		return s.storeFailure(c, err)
	}
	s.evict(ctx)
	return c.JSON(http.StatusOK, s.Schema.ReadTask(raw, coll, s.loc))
}

func (s *server) deleteTask() echo.HandlerFunc {
	return func(c echo.Context) error {
		coll, err := s.taskCollection(c, "")
		if err != nil || coll == "" {
			return err
		}
		ctx := c.Request().Context()
		if err := s.Store.ArchiveRecord(ctx, c.Param("id")); err != nil {
			return s.storeFailure(c, err)
		}
		s.evict(ctx)
		return c.NoContent(http.StatusNoContent)
	}
}
