package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHTTPTimeout bounds a single file fetch.
const DefaultHTTPTimeout = 2 * time.Minute

// HTTP fetches files from a web origin serving the indexed tree.
type HTTP struct {
	base   *url.URL
	client *http.Client
}

// NewHTTP returns a Fetcher resolving catalog paths against base. A nil
// client uses one with DefaultHTTPTimeout.
func NewHTTP(base string, client *http.Client) (*HTTP, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing origin: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("origin %q must be http or https", base)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
		u.RawPath = ""
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTP{base: u, client: client}, nil
}

// URL returns the absolute URL of the catalog path p.
func (h *HTTP) URL(p string) (string, error) {
	clean, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	u := *h.base
	u.Path = h.base.Path + clean
	u.RawPath = h.base.EscapedPath() + EncodePath(clean)
	return u.String(), nil
}

// Fetch issues a single GET for p. There are no retries.
func (h *HTTP) Fetch(ctx context.Context, p string) (io.ReadCloser, error) {
	target, err := h.URL(p)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", p, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: unexpected status %s", p, resp.Status)
	}
	return resp.Body, nil
}
