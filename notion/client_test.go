package notion

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"taskflow/domain"
)

var testDatabases = map[domain.Collection]string{
	domain.Main:  "232c911759c981829e08fd928b282cd7",
	domain.Other: "25cc911759c980e7a687d212aa0ee422",
	domain.Todo:  "274c911759c980939472c626b7602321",
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Token: "secret", Databases: testDatabases, HTTPClient: srv.Client()}, nil)
	require.NoError(t, err)
	return c
}

func TestQueryCollectionFollowsCursorAndDropsArchived(t *testing.T) {
	var (
		mu      sync.Mutex
		cursors []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, APIVersion, r.Header.Get("Notion-Version"))
		assert.Equal(t, "/v1/databases/"+testDatabases[domain.Other]+"/query", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		cursor := gjson.GetBytes(body, "start_cursor").String()
		mu.Lock()
		cursors = append(cursors, cursor)
		mu.Unlock()
		if cursor == "" {
			_, _ = io.WriteString(w, `{"results":[{"id":"a"},{"id":"b","archived":true}],"has_more":true,"next_cursor":"c2"}`)
			return
		}
		_, _ = io.WriteString(w, `{"results":[{"id":"c"},{"id":"d","in_trash":true}],"has_more":false,"next_cursor":null}`)
	})

	pages, err := c.QueryCollection(context.Background(), domain.Other)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "a", gjson.GetBytes(pages[0], "id").String())
	assert.Equal(t, "c", gjson.GetBytes(pages[1], "id").String())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "c2"}, cursors)
}

func TestQueryCollectionErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"object":"error","code":"unauthorized","message":"API token is invalid."}`)
	})
	_, err := c.QueryCollection(context.Background(), domain.Main)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "API token is invalid.")

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":"nope"}`)
	})
	_, err = c.QueryCollection(context.Background(), domain.Main)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = c.QueryCollection(context.Background(), domain.Events)
	assert.Error(t, err, "unconfigured collection")
}

func TestCreateUpdateArchive(t *testing.T) {
	type call struct {
		method, path string
		body         string
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, call{r.Method, r.URL.Path, string(body)})
		mu.Unlock()
		_, _ = io.WriteString(w, `{"id":"new"}`)
	})
	ctx := context.Background()

	created, err := c.CreateRecord(ctx, domain.Todo, []byte(`{"완료":{"checkbox":false}}`))
	require.NoError(t, err)
	assert.Equal(t, "new", gjson.GetBytes(created, "id").String())
	_, err = c.UpdateRecord(ctx, "p1", []byte(`{"완료":{"checkbox":true}}`))
	require.NoError(t, err)
	require.NoError(t, c.ArchiveRecord(ctx, "p1"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 3)
	assert.Equal(t, http.MethodPost, calls[0].method)
	assert.Equal(t, "/v1/pages", calls[0].path)
	assert.Equal(t, testDatabases[domain.Todo], gjson.Get(calls[0].body, "parent.database_id").String())
	assert.False(t, gjson.Get(calls[0].body, "properties.완료.checkbox").Bool())
	assert.Equal(t, http.MethodPatch, calls[1].method)
	assert.True(t, gjson.Get(calls[1].body, "properties.완료.checkbox").Bool())
	assert.JSONEq(t, `{"archived":true}`, calls[2].body)
}

func TestGetRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path != "/v1/pages/p1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"object":"error","code":"object_not_found","message":"Could not find page."}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"p1","parent":{"database_id":"`+testDatabases[domain.Main]+`"}}`)
	})
	ctx := context.Background()

	page, err := c.GetRecord(ctx, "p1")
	require.NoError(t, err)
	coll, ok := c.CollectionOf(gjson.GetBytes(page, "parent.database_id").String())
	assert.True(t, ok)
	assert.Equal(t, domain.Main, coll)

	_, err = c.GetRecord(ctx, "p2")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsUnauthorized(err))
}

func TestCollectionOfNormalisesIDs(t *testing.T) {
	c, err := New(Config{Token: "t", Databases: testDatabases}, nil)
	require.NoError(t, err)
	coll, ok := c.CollectionOf("232C9117-59c9-8182-9e08-fd928b282cd7")
	assert.True(t, ok)
	assert.Equal(t, domain.Main, coll)
	_, ok = c.CollectionOf("ffffffff")
	assert.False(t, ok)
}

func TestNewRequiresTaskDatabases(t *testing.T) {
	_, err := New(Config{Token: "t", Databases: map[domain.Collection]string{domain.Main: "x"}}, nil)
	assert.Error(t, err)
	_, err = New(Config{Databases: testDatabases}, nil)
	assert.Error(t, err)
}
