// Package baserow implements the TableClient port against the Baserow
// database rows REST API.
package baserow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/organized-thot/brodev3-antidetect/internal/domain/model"
	"github.com/organized-thot/brodev3-antidetect/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TableClient = (*Client)(nil)

// DefaultAuthScheme is the Authorization scheme Baserow expects for database tokens.
const DefaultAuthScheme = "Token"

// maxErrorBody caps how much of a failed response body ends up in an error.
const maxErrorBody = 512

// readOnlyFields are row metadata keys the API returns but rejects on write.
var readOnlyFields = []string{model.FieldID, "order"}

var (
	metricsRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "profilehub_table_requests_total",
		Help: "Remote table API requests by operation and result",
	}, []string{"op", "result"})
	metricsRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "profilehub_table_request_duration_seconds",
		Help:    "Duration of remote table API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(metricsRequestsTotal, metricsRequestLatency)
}

// Client implements driven.TableClient for a single Baserow table.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	tableID    int64
	authHeader string
}

// Settings configures NewClient.
type Settings struct {
	BaseURL    string
	TableID    int64
	Token      string
	AuthScheme string // DefaultAuthScheme when empty.

	// Cache wraps the transport in a bounded in-memory HTTP cache holding at
	// most CacheEntries responses (DefaultCacheEntries when zero).
	Cache        bool
	CacheEntries int
}

// NewClient creates a Client with the following transport stack:
//  1. httpcache over a bounded LRU, when enabled. It honours the response's
//     Cache-Control and only revalidates when the server sends ETag or
//     Last-Modified.
//  2. http.DefaultTransport
//
// The client never retries and sets no timeout; callers bound calls with ctx.
func NewClient(s Settings) (*Client, error) {
	httpClient := &http.Client{}
	if s.Cache {
		size := s.CacheEntries
		if size == 0 {
			size = DefaultCacheEntries
		}
		cache, err := newResponseCache(size)
		if err != nil {
			return nil, err
		}
		httpClient = httpcache.NewTransport(cache).Client()
	}
	return NewClientWithHTTPClient(httpClient, s.BaseURL, s.TableID, s.AuthScheme, s.Token)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, tableID int64, scheme, token string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}
	if tableID <= 0 {
		return nil, fmt.Errorf("table id must be positive, got %d", tableID)
	}
	if scheme == "" {
		scheme = DefaultAuthScheme
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    u,
		tableID:    tableID,
		authHeader: scheme + " " + token,
	}, nil
}

// listResponse is the paginated envelope returned by the list endpoint.
type listResponse struct {
	Count   int              `json:"count"`
	Next    *string          `json:"next"`
	Results []map[string]any `json:"results"`
}

// List fetches one page of rows. A non-empty query.Search is URL-encoded and
// matched by the server.
func (c *Client) List(ctx context.Context, query driven.ListQuery) (*driven.Page, error) {
	q := url.Values{}
	q.Set("user_field_names", "true")
	if query.Search != "" {
		q.Set("search", query.Search)
	}
	if query.Page > 0 {
		q.Set("page", strconv.Itoa(query.Page))
	}
	if query.Size > 0 {
		q.Set("size", strconv.Itoa(query.Size))
	}

	var body listResponse
	if err := c.do(ctx, "list", http.MethodGet, c.rowsURL(0, q), nil, &body); err != nil {
		return nil, err
	}

	rows := make([]model.Row, 0, len(body.Results))
	for i, raw := range body.Results {
		row, err := toRow(raw)
		if err != nil {
			return nil, &driven.RemoteError{Op: "list", Err: fmt.Errorf("result %d: %w", i, err)}
		}
		rows = append(rows, row)
	}

	page := &driven.Page{Count: body.Count, Results: rows}
	if body.Next != nil {
		page.Next = *body.Next
	}
	return page, nil
}

// Create inserts a new row and returns it as stored by the server.
func (c *Client) Create(ctx context.Context, record model.Record) (*model.Row, error) {
	return c.write(ctx, "create", http.MethodPost, 0, record)
}

// Patch updates the given fields of rowID and returns the updated row.
func (c *Client) Patch(ctx context.Context, rowID int64, record model.Record) (*model.Row, error) {
	return c.write(ctx, "patch", http.MethodPatch, rowID, record)
}

// Delete removes rowID.
func (c *Client) Delete(ctx context.Context, rowID int64) error {
	return c.do(ctx, "delete", http.MethodDelete, c.rowsURL(rowID, nil), nil, nil)
}

func (c *Client) write(ctx context.Context, op, method string, rowID int64, record model.Record) (*model.Row, error) {
	payload := record.Clone()
	for _, k := range readOnlyFields {
		delete(payload, k)
	}

	q := url.Values{}
	q.Set("user_field_names", "true")

	var raw map[string]any
	if err := c.do(ctx, op, method, c.rowsURL(rowID, q), payload, &raw); err != nil {
		return nil, err
	}

	row, err := toRow(raw)
	if err != nil {
		return nil, &driven.RemoteError{Op: op, Err: err}
	}
	return &row, nil
}

// rowsURL builds the rows endpoint, optionally addressing a single row.
func (c *Client) rowsURL(rowID int64, q url.Values) string {
	u := *c.baseURL
	p := path.Join(u.Path, "api/database/rows/table", strconv.FormatInt(c.tableID, 10))
	if rowID > 0 {
		p = path.Join(p, strconv.FormatInt(rowID, 10))
	}
	u.Path = p + "/"
	u.RawPath = ""
	u.RawQuery = ""
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do performs one request. Every failure is returned as a *driven.RemoteError.
func (c *Client) do(ctx context.Context, op, method, target string, in any, out any) (err error) {
	start := time.Now()
	status := 0
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metricsRequestsTotal.WithLabelValues(op, result).Inc()
		metricsRequestLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		slog.Debug("table api call",
			"op", op,
			"method", method,
			"status", status,
			"duration", time.Since(start).Round(time.Millisecond),
			"error", err,
		)
	}()

	var body io.Reader
	if in != nil {
		data, marshalErr := json.Marshal(in)
		if marshalErr != nil {
			return &driven.RemoteError{Op: op, Err: fmt.Errorf("encode request: %w", marshalErr)}
		}
		body = bytes.NewReader(data)
	}

	req, reqErr := http.NewRequestWithContext(ctx, method, target, body)
	if reqErr != nil {
		return &driven.RemoteError{Op: op, Err: fmt.Errorf("build request: %w", reqErr)}
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return &driven.RemoteError{Op: op, Err: doErr}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &driven.RemoteError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(snippet))),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if decErr := dec.Decode(out); decErr != nil {
		return &driven.RemoteError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decErr)}
	}
	return nil
}

// toRow converts a decoded row object into a model.Row. The object must carry
// an integer id.
func toRow(raw map[string]any) (model.Row, error) {
	if raw == nil {
		return model.Row{}, errors.New("row is null")
	}

	var id int64
	switch v := raw[model.FieldID].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return model.Row{}, fmt.Errorf("row id %q is not an integer: %w", v.String(), err)
		}
		id = n
	case float64:
		id = int64(v)
	case nil:
		return model.Row{}, errors.New("row has no id")
	default:
		return model.Row{}, fmt.Errorf("row id has unexpected type %T", v)
	}

	return model.Row{ID: id, Fields: model.Record(raw)}, nil
}
