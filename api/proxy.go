package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"
)

// The proxy routes pass bodies through to the store. Only databases the
// server is configured for are reachable.

func readRaw(c echo.Context) ([]byte, error) {
	return io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
}

func rawOrEmpty(body []byte) []byte {
	if len(body) == 0 {
		return []byte(`{}`)
	}
	return body
}

func (s *server) proxyQuery() echo.HandlerFunc {
	return func(c echo.Context) error {
		dbID := c.Param("databaseId")
		if _, ok := s.Store.CollectionOf(dbID); !ok {
			return c.JSON(http.StatusForbidden, errorResponse{Error: "unknown database"})
		}
		body, err := readRaw(c)
		if err != nil || (len(body) > 0 && !gjson.ValidBytes(body)) {
			return badRequest(c, "invalid body")
		}
		status, resp, err := s.Store.Forward(c.Request().Context(), http.MethodPost, "/v1/databases/"+dbID+"/query", rawOrEmpty(body))
		if err != nil {
			return s.storeFailure(c, err)
		}
		return c.Blob(status, echo.MIMEApplicationJSON, resp)
	}
}

func (s *server) proxyGetPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		status, resp, err := s.Store.Forward(c.Request().Context(), http.MethodGet, "/v1/pages/"+c.Param("pageId"), nil)
		if err != nil {
			return s.storeFailure(c, err)
		}
		if status < http.StatusMultipleChoices {
			if _, ok := s.Store.CollectionOf(gjson.GetBytes(resp, "parent.database_id").String()); !ok {
				return c.JSON(http.StatusForbidden, errorResponse{Error: "unknown database"})
			}
		}
		return c.Blob(status, echo.MIMEApplicationJSON, resp)
	}
}

func (s *server) proxyUpdatePage() echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := readRaw(c)
		if err != nil || !gjson.ValidBytes(body) {
			return badRequest(c, "invalid body")
		}
		_, coll, err := s.lookupPage(c, c.Param("pageId"))
		if err != nil || coll == "" {
			return err
		}
		ctx := c.Request().Context()
		status, resp, err := s.Store.Forward(ctx, http.MethodPatch, "/v1/pages/"+c.Param("pageId"), body)
		if err != nil {
			return s.storeFailure(c, err)
		}
		if status < http.StatusMultipleChoices && coll.IsTaskSource() {
			s.evict(ctx)
		}
		return c.Blob(status, echo.MIMEApplicationJSON, resp)
	}
}

func (s *server) proxyCreatePage() echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := readRaw(c)
		if err != nil || !gjson.ValidBytes(body) {
			return badRequest(c, "invalid body")
		}
		coll, ok := s.Store.CollectionOf(gjson.GetBytes(body, "parent.database_id").String())
		if !ok {
			return c.JSON(http.StatusForbidden, errorResponse{Error: "unknown database"})
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
		status, resp, err := s.Store.Forward(ctx, http.MethodPost, "/v1/pages", body)
		if err != nil {
			release()
			return s.storeFailure(c, err)
		}
		if status >= http.StatusMultipleChoices {
			release()
		} else if coll.IsTaskSource() {
			s.evict(ctx)
		}
		return c.Blob(status, echo.MIMEApplicationJSON, resp)
	}
}
