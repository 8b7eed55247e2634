// Package paypal creates one-time unlock orders through the payment backend.
// Capture happens on the provider side; this package only starts the flow.
package paypal

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
	"time"

	"github.com/rs/zerolog"

	"unlockstudio/internal/domain"
	"unlockstudio/internal/infra"
)

const (
	createOrderPath = "/api/paypal/create-order"
	defaultTimeout  = 30 * time.Second
)

// Options configures the order client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *infra.Logger
}

// Client talks to the order creation endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *infra.Logger
}

// OrderRequest describes the artifact being paid for.
type OrderRequest struct {
	Index     int
	Batch     string
	Price     domain.Price
	ReturnURL string
	CancelURL string
}

// Order is a created order awaiting approval.
type Order struct {
	ID          string `json:"id"`
	ApprovalURL string `json:"approval_url"`
}

type createOrderBody struct {
	ImageIndex int    `json:"imageIndex"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Reference  string `json:"reference,omitempty"`
	ReturnURL  string `json:"returnUrl,omitempty"`
	CancelURL  string `json:"cancelUrl,omitempty"`
}

type createOrderResponse struct {
	ID          string `json:"id"`
	OrderID     string `json:"orderID"`
	ApprovalURL string `json:"approvalURL"`
	Error       string `json:"error"`
}

// NewClient constructs a client with defaults applied.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("paypal: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, timeout: timeout, logger: logger}, nil
}

// CreateOrder creates an order for one artifact. Any failure, including a
// response without an approval URL, is a payment initiation error.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	price := req.Price
	if price.Cents <= 0 {
		price = domain.DefaultPrice()
	}
	body, err := json.Marshal(createOrderBody{
		ImageIndex: req.Index,
		Amount:     fmt.Sprintf("%d.%02d", price.Cents/100, price.Cents%100),
		Currency:   strings.ToUpper(firstNonEmpty(price.Currency, "USD")),
		Reference:  req.Batch,
		ReturnURL:  req.ReturnURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		return Order{}, fmt.Errorf("paypal: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createOrderPath, bytes.NewReader(body))
	if err != nil {
		return Order{}, fmt.Errorf("paypal: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Order{}, domain.NewError(domain.KindPaymentInitiation, "payment service unavailable", err)
	}
	defer resp.Body.Close()

	var payload createOrderResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(payload.Error)
		if msg == "" {
			msg = fmt.Sprintf("order creation failed with status %d", resp.StatusCode)
		}
		c.logger.Warn().Int("status", resp.StatusCode).Int("index", req.Index).Msg("paypal: create order failed")
		return Order{}, domain.NewError(domain.KindPaymentInitiation, msg, nil)
	}
	if decodeErr != nil {
		return Order{}, domain.NewError(domain.KindPaymentInitiation, "invalid response from payment service", decodeErr)
	}
	approval := strings.TrimSpace(payload.ApprovalURL)
	if approval == "" {
		return Order{}, domain.NewError(domain.KindPaymentInitiation, "payment approval url is missing", nil)
	}
	if u, err := url.Parse(approval); err != nil || u.Scheme == "" || u.Host == "" {
		return Order{}, domain.NewError(domain.KindPaymentInitiation, "payment approval url is invalid", err)
	}
	return Order{ID: firstNonEmpty(payload.ID, payload.OrderID), ApprovalURL: approval}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
