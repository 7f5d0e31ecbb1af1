// Package client holds the account collaborator adapter for balance
// deductions, plus its degraded fallback.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/trademall/orderflow/internal/pay/domain"
)

var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

// UserHTTPClient deducts money from a user's balance.
type UserHTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        *slog.Logger
}

func NewUserClient(baseURL string, log *slog.Logger) (*UserHTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse user service url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("user service url must be absolute")
	}
	return &UserHTTPClient{
		baseURL: parsed,
		log:     log,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// DeductMoney charges amount against the balance unlocked by the
// credential. Any failure leaves the balance untouched on the remote
// side, so the caller may surface it without compensation.
func (c *UserHTTPClient) DeductMoney(ctx context.Context, credential string, amount int64) error {
	endpoint := *c.baseURL
	endpoint.Path = "/users/money/deduct"
	q := endpoint.Query()
	q.Set("pw", credential)
	q.Set("amount", strconv.FormatInt(amount, 10))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusBadRequest:
		return domain.ErrInvalidCredential
	case http.StatusPaymentRequired:
		return domain.ErrInsufficientFunds
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error("user service error", "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("user service: %s", resp.Status)
	}
}

// UserFallback refuses every deduction: money must never move on a
// degraded path.
type UserFallback struct {
	Log *slog.Logger
}

func (f UserFallback) DeductMoney(context.Context, string, int64) error {
	f.Log.Error("account collaborator unavailable, using fallback")
	return ErrCollaboratorUnavailable
}
