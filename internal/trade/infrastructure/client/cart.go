package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CartHTTPClient clears purchased items from the cart collaborator.
// Callers treat it as fire-and-forget.
type CartHTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        *slog.Logger
}

func NewCartClient(baseURL string, log *slog.Logger) (*CartHTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse cart service url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("cart service url must be absolute")
	}
	return &CartHTTPClient{
		baseURL: parsed,
		log:     log,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}, nil
}

func (c *CartHTTPClient) RemoveItems(ctx context.Context, userID string, itemIDs []string) error {
	endpoint := *c.baseURL
	endpoint.Path = "/carts"
	q := endpoint.Query()
	q.Set("ids", strings.Join(itemIDs, ","))
	q.Set("userId", userID)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("cart service: %s", resp.Status)
	}
	return nil
}

// CartFallback drops the cleanup; the saga tolerates it.
type CartFallback struct {
	Log *slog.Logger
}

func (f CartFallback) RemoveItems(context.Context, string, []string) error {
	f.Log.Error("cart collaborator unavailable, using fallback")
	return ErrCollaboratorUnavailable
}
