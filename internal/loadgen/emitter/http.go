package emitter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// userAgent identifies harness traffic in target access logs.
const userAgent = "surge/0.1"

// HTTP issues GET requests against the target over a tuned client.
//
// A status of 400 or above counts as a transient failure, as does an
// unsatisfied body expectation. The client's timeout bounds the whole
// request, so a stalled target surfaces as a failed send.
type HTTP struct {
	client      *http.Client
	url         string
	requestSize int
	expectPath  string
	expectValue string
}

// NewHTTP creates an HTTP emitter for the configured target.
func NewHTTP(cfg Config) (*HTTP, error) {
	path := cfg.HTTPPath
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	url := fmt.Sprintf("http://%s%s", cfg.addr(), path)

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		DisableCompression:  true,
	}

	h := &HTTP{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.timeout(),
		},
		url:         url,
		expectPath:  cfg.HTTPExpectPath,
		expectValue: cfg.HTTPExpectValue,
	}

	// The wire size of a GET is fixed per target, so account for it once.
	h.requestSize = len(fmt.Sprintf(
		"GET %s HTTP/1.1\r\nHost: %s\r\nUser-Agent: %s\r\nAccept: */*\r\n\r\n",
		path, cfg.addr(), userAgent,
	))

	return h, nil
}

// Type returns TypeHTTP.
func (h *HTTP) Type() Type {
	return TypeHTTP
}

// Send issues one GET and returns the request's wire size.
//
// The response body is always drained so the underlying connection can be
// reused. When a body expectation is configured, the named JSON field must
// equal the expected value or the send counts as failed.
func (h *HTTP) Send(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return 0, fatal(err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return h.requestSize, transient(fmt.Errorf("reading response body: %w", err))
	}

	if resp.StatusCode >= 400 {
		return h.requestSize, transient(fmt.Errorf("status %s", resp.Status))
	}

	if h.expectPath != "" {
		got := gjson.GetBytes(body, h.expectPath)
		if !got.Exists() || got.String() != h.expectValue {
			return h.requestSize, transient(fmt.Errorf(
				"body field %q = %q, want %q", h.expectPath, got.String(), h.expectValue))
		}
	}

	return h.requestSize, nil
}

// Close drops idle connections held by the client.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

var _ Emitter = (*HTTP)(nil)
