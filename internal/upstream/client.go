// Package upstream implements the collaborator API clients: slot
// availability, product slot restrictions, inventory snapshots and the promo
// backend. Every call goes through the resilient HTTP wrapper so retries and
// circuit breaking are uniform across collaborators.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrNotFound maps a collaborator 404.
var ErrNotFound = errors.New("upstream resource not found")

// ErrBadStatus wraps any other non-2xx collaborator answer.
var ErrBadStatus = errors.New("upstream returned an unexpected status")

// Doer is the resilient transport the typed clients share.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client is the shared base for the typed collaborator clients.
type Client struct {
	BaseURL string
	HTTP    Doer
}

func (c Client) url(path string, query url.Values) string {
	base := strings.TrimRight(c.BaseURL, "/")
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path, query), nil)
	if err != nil {
		return err
	}
	return c.roundTrip(ctx, req, out)
}

func (c Client) postJSON(ctx context.Context, path string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path, nil), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.roundTrip(ctx, req, out)
}

func (c Client) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.url(path, nil), nil)
	if err != nil {
		return err
	}
	return c.roundTrip(ctx, req, nil)
}

func (c Client) roundTrip(ctx context.Context, req *http.Request, out any) error {
	if c.HTTP == nil {
		return errors.New("upstream client not configured")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s %s: %s: %w", req.Method, req.URL.Path, resp.Status, ErrBadStatus)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
