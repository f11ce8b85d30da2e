package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Fetcher reads content by id. Every Transfer is a Fetcher; read-only
// sources such as HTTP gateways implement only this.
type Fetcher interface {
	Get(ctx context.Context, contentID string) ([]byte, error)
}

// Resolver is a Transfer that writes to a primary backend and reads from
// the primary first, then from remote sources in priority order. Remote hits
// are verified and cached in the primary.
type Resolver struct {
	Primary Transfer
	Remotes []Fetcher
}

var _ Transfer = (*Resolver)(nil)

// NewResolver creates a Resolver over primary and optional remote sources.
func NewResolver(primary Transfer, remotes ...Fetcher) (*Resolver, error) {
	if primary == nil {
		return nil, ErrNoBackends
	}
	return &Resolver{Primary: primary, Remotes: remotes}, nil
}

// Put stores data in the primary backend and replicates it, best effort, to
// every remote that also accepts writes.
func (r *Resolver) Put(ctx context.Context, data []byte) (string, error) {
	id, err := r.Primary.Put(ctx, data)
	if err != nil {
		return "", err
	}
	for i, remote := range r.Remotes {
		t, ok := remote.(Transfer)
		if !ok {
			continue
		}
		if _, err := t.Put(ctx, data); err != nil {
			log.Warnw("replica write failed", "cid", id, "remote", i, "err", err)
		}
	}
	return id, nil
}

// Get returns the bytes for contentID from the first source that has them.
func (r *Resolver) Get(ctx context.Context, contentID string) ([]byte, error) {
	if _, err := ParseContentID(contentID); err != nil {
		return nil, err
	}

	data, err := r.Primary.Get(ctx, contentID)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("storage: primary: %w", err)
	}

	for i, remote := range r.Remotes {
		data, err := remote.Get(ctx, contentID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Debugw("remote miss", "cid", contentID, "remote", i, "err", err)
			continue
		}
		if err := VerifyContent(contentID, data); err != nil {
			log.Warnw("remote returned mismatched content", "cid", contentID, "remote", i)
			continue
		}
		if _, err := r.Primary.Put(ctx, data); err != nil {
			log.Warnw("cache write failed", "cid", contentID, "err", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, contentID)
}

// Gateway fetches content from an HTTP gateway serving GET {BaseURL}/ipfs/{cid}.
type Gateway struct {
	BaseURL string
	Client  *http.Client
}

var _ Fetcher = (*Gateway)(nil)

// NewGateway creates a gateway fetcher with a 30 second timeout.
func NewGateway(baseURL string) *Gateway {
	return &Gateway{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Get fetches contentID from the gateway. A 404 maps to ErrNotFound.
func (g *Gateway) Get(ctx context.Context, contentID string) ([]byte, error) {
	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/ipfs/"+contentID, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: gateway request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: gateway %s: %w", ErrIOFailure, g.BaseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, contentID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: gateway %s: HTTP %d", ErrIOFailure, g.BaseURL, resp.StatusCode)
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: gateway %s: %w", ErrIOFailure, g.BaseURL, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: gateway %s returned no content", ErrNotFound, g.BaseURL)
	}
	return data, nil
}
