// Package postgrest provides a minimal client for PostgREST-style table
// endpoints such as the ones Supabase exposes under /rest/v1.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client defines the table operations used by leadmap.
type Client interface {
	// Select returns the rows matching q as raw JSON objects.
	Select(ctx context.Context, table string, q Query) ([]json.RawMessage, error)
	// Upsert inserts rows, merging on the primary key.
	Upsert(ctx context.Context, table string, rows any) error
	// Delete removes rows whose column value is in values.
	Delete(ctx context.Context, table, column string, values []string) error
}

// Query describes a PostgREST read.
type Query struct {
	Select  string
	Eq      map[string]string
	NotNull []string
	Order   []string // e.g. "created_at.asc"
	Offset  int
	Limit   int
}

// Values encodes q as PostgREST query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	sel := q.Select
	if sel == "" {
		sel = "*"
	}
	v.Set("select", sel)
	for col, val := range q.Eq {
		v.Set(col, "eq."+val)
	}
	for _, col := range q.NotNull {
		v.Set(col, "not.is.null")
	}
	if len(q.Order) > 0 {
		v.Set("order", strings.Join(q.Order, ","))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
	// RetryAfter is parsed from the Retry-After header (delay-seconds form).
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("postgrest: status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithSchema sets the Accept-Profile / Content-Profile schema header.
func WithSchema(schema string) Option {
	return func(c *httpClient) {
		c.schema = schema
	}
}

type httpClient struct {
	baseURL string
	key     string
	schema  string
	http    *http.Client
}

// NewClient creates a client for baseURL (e.g. https://xyz.supabase.co/rest/v1).
// The key is sent as both apikey and bearer token.
func NewClient(baseURL, key string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: otelhttp.NewTransport(&http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			}),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) newRequest(ctx context.Context, method, table string, params url.Values, body io.Reader) (*http.Request, error) {
	reqURL := c.baseURL + "/" + url.PathEscape(table)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, eris.Wrap(err, "postgrest: create request")
	}
	if c.key != "" {
		req.Header.Set("apikey", c.key)
		req.Header.Set("Authorization", "Bearer "+c.key)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.schema != "" {
		req.Header.Set("Accept-Profile", c.schema)
		req.Header.Set("Content-Profile", c.schema)
	}
	return req, nil
}

func (c *httpClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "postgrest: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "postgrest: read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}

func (c *httpClient) Select(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, table, q.Values(), nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, eris.Wrap(err, "postgrest: decode rows")
	}
	return rows, nil
}

func (c *httpClient) Upsert(ctx context.Context, table string, rows any) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "postgrest: encode rows")
	}
	req, err := c.newRequest(ctx, http.MethodPost, table, nil, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")
	_, err = c.do(req)
	return err
}

func (c *httpClient) Delete(ctx context.Context, table, column string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	params := url.Values{}
	params.Set(column, "in.("+strings.Join(quoted, ",")+")")
	req, err := c.newRequest(ctx, http.MethodDelete, table, params, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	_, err = c.do(req)
	return err
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
