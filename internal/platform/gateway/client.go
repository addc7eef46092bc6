package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"

	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/types"
)

// ErrUnexpectedStatus is returned for any non-2xx gateway response.
var ErrUnexpectedStatus = errors.New("gateway: unexpected http status")

const maxErrorBody = 4 << 10

// Charge is the subset of a gateway charge this service reads.
type Charge struct {
	ID       string             `json:"id"`
	Status   types.ChargeStatus `json:"status"`
	Amount   decimal.Decimal    `json:"amount"`
	Currency string             `json:"currency"`
	Metadata map[string]string  `json:"metadata,omitempty"`
	Response *ChargeResponse    `json:"response,omitempty"`
	// Transaction carries the gateway's own timestamps.
	Transaction *ChargeTransaction `json:"transaction,omitempty"`
	// Raw is the body as returned by the gateway, kept for the audit ledger.
	Raw json.RawMessage `json:"-"`
}

type ChargeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ChargeTransaction struct {
	// Created is epoch milliseconds, sent as a string or a number.
	Created json.Number `json:"created"`
}

// CreatedAt is when the gateway created the charge, if it said so.
func (c *Charge) CreatedAt() (time.Time, bool) {
	if c.Transaction == nil || c.Transaction.Created == "" {
		return time.Time{}, false
	}
	ms, err := c.Transaction.Created.Int64()
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// FailureReason describes a failed charge for the subscription record.
func (c *Charge) FailureReason() string {
	if c.Response != nil && c.Response.Message != "" {
		return fmt.Sprintf("%s: %s", c.Status, c.Response.Message)
	}
	return string(c.Status)
}

type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

type Options struct {
	BaseURL    string
	SecretKey  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		secretKey: opts.SecretKey,
		http:      hc,
	}
}

func newFromConfig(cfg *config.Config) *Client {
	return NewClient(Options{
		BaseURL:   cfg.Gateway.BaseURL,
		SecretKey: cfg.Gateway.SecretKey,
		Timeout:   cfg.Gateway.Timeout,
	})
}

var Module = fx.Options(
	fx.Provide(newFromConfig),
)

// GetCharge fetches the current state of a charge.
func (c *Client) GetCharge(ctx context.Context, chargeID string) (*Charge, error) {
	if chargeID == "" {
		return nil, errors.New("gateway: empty charge id")
	}
	body, err := c.do(ctx, http.MethodGet, "/v2/charges/"+url.PathEscape(chargeID))
	if err != nil {
		return nil, err
	}
	var charge Charge
	if err := json.Unmarshal(body, &charge); err != nil {
		return nil, fmt.Errorf("gateway: decode charge %s: %w", chargeID, err)
	}
	charge.Status = types.NormalizeChargeStatus(string(charge.Status))
	charge.Currency = strings.ToUpper(charge.Currency)
	charge.Raw = body
	return &charge, nil
}

// CancelSubscription stops the recurring charge behind a subscription.
func (c *Client) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	if gatewaySubscriptionID == "" {
		return errors.New("gateway: empty subscription id")
	}
	_, err := c.do(ctx, http.MethodDelete, "/v2/subscription/"+url.PathEscape(gatewaySubscriptionID))
	return err
}

func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %s %s returned %d: %s", ErrUnexpectedStatus, method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read body: %w", err)
	}
	return body, nil
}
