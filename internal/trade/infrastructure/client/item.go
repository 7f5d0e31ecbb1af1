// Package client holds the HTTP collaborator adapters the order
// orchestrator depends on, plus their degraded fallbacks.
package client

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

	"github.com/trademall/orderflow/internal/trade/domain"
)

// ErrCollaboratorUnavailable signals a transport-level failure talking
// to a collaborator service.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

// ItemHTTPClient talks to the inventory collaborator.
type ItemHTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        *slog.Logger
}

func NewItemClient(baseURL string, log *slog.Logger) (*ItemHTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse item service url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("item service url must be absolute")
	}
	return &ItemHTTPClient{
		baseURL: parsed,
		log:     log,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

type itemResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Spec  string `json:"spec"`
	Image string `json:"image"`
	Price int64  `json:"price"`
	Stock int    `json:"stock"`
}

func (c *ItemHTTPClient) QueryByIDs(ctx context.Context, ids []string) ([]domain.Item, error) {
	endpoint := *c.baseURL
	endpoint.Path = "/items"
	q := endpoint.Query()
	q.Set("ids", strings.Join(ids, ","))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var data []itemResponse
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return nil, err
		}
		items := make([]domain.Item, 0, len(data))
		for _, it := range data {
			items = append(items, domain.Item{ID: it.ID, Name: it.Name, Spec: it.Spec, Image: it.Image, Price: it.Price, Stock: it.Stock})
		}
		return items, nil
	case http.StatusNotFound:
		return nil, domain.ErrItemNotFound
	default:
		return nil, c.unexpected("query items", resp)
	}
}

func (c *ItemHTTPClient) DeductStock(ctx context.Context, lines []domain.OrderLine) error {
	return c.stockCall(ctx, "/items/stock/deduct", lines)
}

func (c *ItemHTTPClient) RestoreStock(ctx context.Context, lines []domain.OrderLine) error {
	return c.stockCall(ctx, "/items/stock/restore", lines)
}

func (c *ItemHTTPClient) stockCall(ctx context.Context, path string, lines []domain.OrderLine) error {
	body, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	endpoint := *c.baseURL
	endpoint.Path = path

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusConflict:
		return domain.ErrInsufficientStock
	default:
		return c.unexpected("stock "+path, resp)
	}
}

func (c *ItemHTTPClient) unexpected(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	c.log.Error("item service error", "op", op, "status", resp.StatusCode, "body", string(body))
	return fmt.Errorf("item service: %s", resp.Status)
}

// ItemFallback is the degraded inventory collaborator used when no
// endpoint is configured or the circuit is open: every call signals
// unavailability.
type ItemFallback struct {
	Log *slog.Logger
}

func (f ItemFallback) QueryByIDs(context.Context, []string) ([]domain.Item, error) {
	f.Log.Error("item collaborator unavailable, using fallback")
	return nil, ErrCollaboratorUnavailable
}

func (f ItemFallback) DeductStock(context.Context, []domain.OrderLine) error {
	f.Log.Error("item collaborator unavailable, using fallback")
	return ErrCollaboratorUnavailable
}

func (f ItemFallback) RestoreStock(context.Context, []domain.OrderLine) error {
	f.Log.Error("item collaborator unavailable, using fallback")
	return ErrCollaboratorUnavailable
}
