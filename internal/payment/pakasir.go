// Package payment talks to the Pakasir QRIS payment provider: it builds the
// hosted payment links attached to transactions and validates incoming
// webhook payloads against the stored obligation.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var ErrPayloadMismatch = errors.New("webhook payload does not match stored transaction")

type Config struct {
	BaseURL      string
	Slug         string
	APIKey       string
	RedirectBase string
}

type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// PaymentURL builds the hosted QRIS checkout link for an order.
func (c *Client) PaymentURL(orderID string, amount int64) string {
	v := url.Values{}
	v.Set("order_id", orderID)
	v.Set("qris_only", "1")

	if c.cfg.RedirectBase != "" {
		v.Set("redirect", c.cfg.RedirectBase+"/payment-success")
	}

	return fmt.Sprintf("%s/pay/%s/%d?%s", c.cfg.BaseURL, c.cfg.Slug, amount, v.Encode())
}

// WebhookPayload is the provider's payment notification body.
type WebhookPayload struct {
	OrderID       string     `json:"order_id"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method"`
	CompletedAt   *time.Time `json:"completed_at"`
	Amount        int64      `json:"amount"`
	Project       string     `json:"project"`
}

// ValidatePayload checks that a webhook refers to the stored transaction:
// amount and order ID must match, and the project slug (when present) must be
// ours. The provider sends no signature, so this is the whole trust check.
func (c *Client) ValidatePayload(p WebhookPayload, orderID string, amount int64) error {
	if p.OrderID != orderID {
		return fmt.Errorf("order id %q: %w", p.OrderID, ErrPayloadMismatch)
	}

	if p.Amount != amount {
		return fmt.Errorf("amount %d != %d: %w", p.Amount, amount, ErrPayloadMismatch)
	}

	if p.Project != "" && p.Project != c.cfg.Slug {
		return fmt.Errorf("project %q: %w", p.Project, ErrPayloadMismatch)
	}

	return nil
}

// Detail is the provider's record of a transaction.
type Detail struct {
	OrderID       string     `json:"order_id"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method"`
	Amount        int64      `json:"amount"`
	CompletedAt   *time.Time `json:"completed_at"`
}

// TransactionDetail queries the provider for the current state of an order.
func (c *Client) TransactionDetail(ctx context.Context, orderID string, amount int64) (*Detail, error) {
	v := url.Values{}
	v.Set("project", c.cfg.Slug)
	v.Set("amount", strconv.FormatInt(amount, 10))
	v.Set("order_id", orderID)
	v.Set("api_key", c.cfg.APIKey)

	reqURL := c.cfg.BaseURL + "/api/transactiondetail?" + v.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying transaction detail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from provider", resp.StatusCode)
	}

	var body struct {
		Transaction *Detail `json:"transaction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding transaction detail: %w", err)
	}

	if body.Transaction == nil {
		return nil, fmt.Errorf("provider returned no transaction for order %s", orderID)
	}

	return body.Transaction, nil
}
