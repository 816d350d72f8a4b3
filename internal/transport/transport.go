// Package transport is the HTTP client side of the download protocol: it
// wraps a requested (catalog, file, skip, take) as an envelope, issues a
// GET, and interprets the response headers and status.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/hdsync/filer-sync/internal/envelope"
)

// ErrBadStatus reports an HTTP status this client does not know how to
// interpret — neither the success (200) nor the error (406) convention.
var ErrBadStatus = errors.New("transport: unexpected status")

// ErrServer wraps the diagnostic body of a 406 response.
var ErrServer = errors.New("transport: server reported error")

// Client issues range GETs against a filer server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New builds a Client. If hc is nil, http.DefaultClient is used.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{BaseURL: baseURL, HTTP: hc}
}

// GetRange fetches take bytes of file starting at skip from catalog.
// take == 0 requests the whole file. The returned skip/take describe
// the range the server actually sent, which may be clamped at EOF.
func (c *Client) GetRange(ctx context.Context, catalog, file string, skip, take uint64) (actualSkip, actualTake uint64, body []byte, err error) {
	enc, err := envelope.Encode(envelope.Request{Catalog: catalog, File: file, Skip: skip, Take: take})
	if err != nil {
		return 0, 0, nil, fmt.Errorf("transport: encode envelope: %w", err)
	}

	url := fmt.Sprintf("%s/api/download/%s", c.BaseURL, enc)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("transport: build request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("transport: request %s: %w", file, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("transport: read body for %s: %w", file, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		gotSkip, err := parseHeaderUint(resp.Header, "x-skip")
		if err != nil {
			return 0, 0, nil, err
		}
		gotTake, err := parseHeaderUint(resp.Header, "x-take")
		if err != nil {
			return 0, 0, nil, err
		}
		return gotSkip, gotTake, respBody, nil
	case http.StatusNotAcceptable:
		if resp.Header.Get("x-body-is-error") == "yes" {
			return 0, 0, nil, fmt.Errorf("%w: %s", ErrServer, string(respBody))
		}
		return 0, 0, nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	default:
		return 0, 0, nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
}

func parseHeaderUint(h http.Header, key string) (uint64, error) {
	v := h.Get(key)
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("transport: bad %s header %q: %w", key, v, err)
	}
	return n, nil
}
