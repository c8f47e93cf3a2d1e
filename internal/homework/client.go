package homework

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"homeworkbot/internal/failure"
)

// Window is the poll cursor sent as from_date.
type Window struct {
	FromDate int64
}

// Fetcher returns the raw body for a window. Implementations report failures as
// failure.KindTransport / KindHTTPStatus.
type Fetcher interface {
	Fetch(ctx context.Context, w Window) ([]byte, error)
}

// maxBody caps how much of a response we read. Real answers are a few KB.
const maxBody = 4 << 20

// Client is the HTTP Fetcher for the homework statuses endpoint.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default client (used by tests and custom transports).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a client. timeout <= 0 means 30s.
func NewClient(endpoint, token string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("homework endpoint is empty")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("homework api token is empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{endpoint: endpoint, token: token, http: &http.Client{Timeout: timeout}}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) Fetch(ctx context.Context, w Window) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, http.NoBody)
	if err != nil {
		return nil, failure.Transport(err)
	}
	q := req.URL.Query()
	q.Set("from_date", strconv.FormatInt(w.FromDate, 10))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, failure.Transport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return nil, failure.HTTPStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, failure.Transport(err)
	}
	return body, nil
}

// Decode parses a raw body into generic JSON values.
func Decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	// Keep integers exact; current_date is a unix timestamp.
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, failure.MalformedBody(err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, failure.MalformedBody(errors.New("trailing data after JSON value"))
	}
	return v, nil
}

// Get fetches and decodes one answer.
func Get(ctx context.Context, f Fetcher, w Window) (any, error) {
	raw, err := f.Fetch(ctx, w)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}
