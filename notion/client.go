// Package notion is a small client for the document store's REST API. It
// carries the integration token so callers never see it.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"taskflow/domain"
)

const (
	DefaultBaseURL = "https://api.notion.com"
	APIVersion     = "2022-06-28"

	defaultPageSize = 100
	maxBodySize     = 8 << 20
)

var ErrMalformedResponse = errors.New("malformed response")

// Config configures a Client.
type Config struct {
	BaseURL    string
	Token      string
	Databases  map[domain.Collection]string
	HTTPClient *http.Client
	PageSize   int
}

// Client talks to the store on behalf of the server.
type Client struct {
	http      *http.Client
	baseURL   string
	token     string
	pageSize  int
	databases map[domain.Collection]string
	known     map[string]domain.Collection
	log       *log.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("notion: missing integration token")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	c := &Client{
		http:      cfg.HTTPClient,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		pageSize:  cfg.PageSize,
		databases: make(map[domain.Collection]string, len(cfg.Databases)),
		known:     make(map[string]domain.Collection, len(cfg.Databases)),
		log:       logger,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.pageSize <= 0 || c.pageSize > defaultPageSize {
		c.pageSize = defaultPageSize
	}
	for coll, id := range cfg.Databases {
		if id == "" {
			continue
		}
		c.databases[coll] = id
		c.known[normalizeID(id)] = coll
	}
	for _, coll := range domain.TaskSources {
		if _, ok := c.databases[coll]; !ok {
			return nil, fmt.Errorf("notion: no database configured for %s", coll)
		}
	}
	return c, nil
}

// CollectionOf maps a database ID, dashed or not, to its collection.
func (c *Client) CollectionOf(databaseID string) (domain.Collection, bool) {
	coll, ok := c.known[normalizeID(databaseID)]
	return coll, ok
}

func normalizeID(id string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(id), "-", ""))
}

// QueryCollection returns every non-archived page of coll, following
// pagination to the end.
func (c *Client) QueryCollection(ctx context.Context, coll domain.Collection) ([]json.RawMessage, error) {
	return c.QueryCollectionWhere(ctx, coll, nil)
}

// QueryCollectionWhere is QueryCollection with a raw filter object.
func (c *Client) QueryCollectionWhere(ctx context.Context, coll domain.Collection, filter []byte) ([]json.RawMessage, error) {
	dbID, ok := c.databases[coll]
	if !ok {
		return nil, fmt.Errorf("notion: no database configured for %s", coll)
	}

	var pages []json.RawMessage
	cursor := ""
	for {
		body, err := sjson.SetBytes([]byte(`{}`), "page_size", c.pageSize)
		if err != nil {
			return nil, err
		}
		if len(filter) > 0 {
			if body, err = sjson.SetRawBytes(body, "filter", filter); err != nil {
				return nil, err
			}
		}
		if cursor != "" {
			if body, err = sjson.SetBytes(body, "start_cursor", cursor); err != nil {
				return nil, err
			}
		}

		resp, err := c.do(ctx, http.MethodPost, "/v1/databases/"+dbID+"/query", body)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", coll, err)
		}
		res := gjson.ParseBytes(resp)
		results := res.Get("results")
		if !results.IsArray() {
			return nil, fmt.Errorf("query %s: %w", coll, ErrMalformedResponse)
		}
		for _, r := range results.Array() {
			if r.Get("archived").Bool() || r.Get("in_trash").Bool() {
				continue
			}
			pages = append(pages, json.RawMessage(r.Raw))
		}

		next := res.Get("next_cursor").String()
		if !res.Get("has_more").Bool() || next == "" || next == cursor {
			break
		}
		cursor = next
	}
	c.log.WithFields(log.Fields{"collection": coll, "pages": len(pages)}).Debug("notion query")
	return pages, nil
}

// CreateRecord creates a page in coll from a properties object.
func (c *Client) CreateRecord(ctx context.Context, coll domain.Collection, properties []byte) (json.RawMessage, error) {
	dbID, ok := c.databases[coll]
	if !ok {
		return nil, fmt.Errorf("notion: no database configured for %s", coll)
	}
	body, err := sjson.SetBytes([]byte(`{}`), "parent.database_id", dbID)
	if err != nil {
		return nil, err
	}
	if body, err = sjson.SetRawBytes(body, "properties", properties); err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/v1/pages", body)
}

// UpdateRecord applies a partial properties update to a page.
func (c *Client) UpdateRecord(ctx context.Context, id string, properties []byte) (json.RawMessage, error) {
	body, err := sjson.SetRawBytes([]byte(`{}`), "properties", properties)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPatch, "/v1/pages/"+id, body)
}

// ArchiveRecord soft-deletes a page.
func (c *Client) ArchiveRecord(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPatch, "/v1/pages/"+id, []byte(`{"archived":true}`))
	return err
}

// GetRecord fetches one page.
func (c *Client) GetRecord(ctx context.Context, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/pages/"+id, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	status, resp, err := c.Forward(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, newAPIError(status, resp)
	}
	if !gjson.ValidBytes(resp) {
		return nil, ErrMalformedResponse
	}
	return resp, nil
}

// Forward sends a request as-is and returns the store's status and body.
// Non-2xx responses are not errors here.
func (c *Client) Forward(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return 0, nil, err
	}
	return res.StatusCode, data, nil
}
