// Package apiclient is used by the ui handlers and the cli to call the user management backend.
//
// Every call is a single round trip: there is no retry, caching or client side timeout (callers can cancel via the context).
// Non-2xx responses are returned as *APIError (see errors.go), transport failures are returned as ordinary wrapped errors.
package apiclient

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
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// context phrases used to compose error messages, one per verb
const (
	getErrorContext    = "Error while fetching data."
	postErrorContext   = "An error occurred while posting the data."
	putErrorContext    = "An error occurred while updating the data."
	deleteErrorContext = "An error occurred while deleting the data."
)

// Query holds GET query parameters. Parameters are appended to the url in insertion order.
type Query = orderedmap.OrderedMap[string, string]

// NewQuery builds a Query from name/value pairs, e.g. NewQuery("a", "1", "b", "2").
// A trailing name without a value is ignored.
func NewQuery(pairs ...string) *Query {
	q := orderedmap.New[string, string]()
	for i := 0; i+1 < len(pairs); i += 2 {
		q.Set(pairs[i], pairs[i+1])
	}
	return q
}

// Client handles communication with the backend API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	defaultHeaders http.Header
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the http client used to send requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithLogger sets the logger used for per-request debug logs.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDefaultHeader adds a header sent with every request. Caller supplied headers still take precedence.
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) {
		c.defaultHeaders.Set(key, value)
	}
}

// New creates a client for the supplied base url. The base url is captured once and is not validated.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		defaultHeaders: http.Header{
			"Content-Type":                {"application/json"},
			"Access-Control-Allow-Origin": {"*"},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the url captured when the client was created
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get fetches endpoint and decodes the JSON response into out.
// query may be nil; out may be nil when the response body is not needed.
func (c *Client) Get(ctx context.Context, endpoint string, query *Query, header http.Header, out any) error {
	fullURL := c.baseURL + endpoint

	if query != nil && query.Len() > 0 {
		fullURL = appendQuery(fullURL, query)
	}

	return c.do(ctx, http.MethodGet, fullURL, nil, header, out, getErrorContext)
}

// Post sends payload as JSON to endpoint and decodes the response into out.
func (c *Client) Post(ctx context.Context, endpoint string, payload any, header http.Header, out any) error {
	body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.baseURL+endpoint, body, header, out, postErrorContext)
}

// Put sends payload as JSON to endpoint and decodes the response into out.
// A 204 (or any empty success body) leaves out untouched.
func (c *Client) Put(ctx context.Context, endpoint string, payload any, header http.Header, out any) error {
	body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, c.baseURL+endpoint, body, header, out, putErrorContext)
}

// Delete sends a DELETE request to endpoint and decodes the response into out.
func (c *Client) Delete(ctx context.Context, endpoint string, header http.Header, out any) error {
	return c.do(ctx, http.MethodDelete, c.baseURL+endpoint, nil, header, out, deleteErrorContext)
}

func (c *Client) do(ctx context.Context, method, fullURL string, body []byte, header http.Header, out any, errorContext string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("creating %s request for %s: %w", method, fullURL, err)
	}

	req.Header = mergeHeaders(c.defaultHeaders, header)

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed",
			slog.String("method", method),
			slog.String("url", fullURL),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s %s: %w", method, fullURL, err)
	}
	defer res.Body.Close()

	c.logger.Debug("api request completed",
		slog.String("method", method),
		slog.String("url", fullURL),
		slog.Int("status", res.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading response body from %s %s: %w", method, fullURL, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return newAPIError(res, data, errorContext)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response from %s %s: %w", method, fullURL, err)
	}
	return nil
}

// mergeHeaders overlays the caller's headers on the defaults. Keys are canonicalised so a caller's
// "content-type" replaces the default Content-Type rather than adding a second value.
func mergeHeaders(defaults, header http.Header) http.Header {
	merged := defaults.Clone()
	for k, values := range header {
		merged[http.CanonicalHeaderKey(k)] = append([]string(nil), values...)
	}
	return merged
}

// appendQuery adds the query to rawURL keeping the caller's parameter order (url.Values.Encode would sort them).
func appendQuery(rawURL string, query *Query) string {
	var sb strings.Builder
	for pair := query.Oldest(); pair != nil; pair = pair.Next() {
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(pair.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(pair.Value))
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + sb.String()
}

func encodePayload(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request payload: %w", err)
	}
	return data, nil
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an *APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is an *APIError with status 401.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}
