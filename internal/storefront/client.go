package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxResponseBytes bounds how much of a transactional API response is read.
const maxResponseBytes = 4 << 20

// maxErrorBodyLen bounds how much of an error body lands in APIError.Message.
const maxErrorBodyLen = 200

// APIError is a non-2xx answer from the transactional API, normalized so
// callers can branch on status without parsing provider-specific bodies.
type APIError struct {
	Operation string
	Status    int
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront %s: status %d: %s", e.Operation, e.Status, e.Message)
}

// Config carries the gateway settings, normally from the storefront section
// of the service configuration. Zero values fall back to defaults; a
// negative MaxRetries disables read retries entirely.
type Config struct {
	BaseURL    string
	APIToken   string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	MaxRetries int
}

// Gateway is the typed client for the storefront's transactional API.
// All tool calls the assistant can make against the store go through here:
// one HTTP client, one bearer token, client-side rate limiting, and
// idempotent-GET retries.
//
// Gateway is safe for concurrent use by multiple goroutines.
type Gateway struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
	logger     *slog.Logger
}

// New creates a Gateway.
func New(cfg Config, logger *slog.Logger) (*Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("base URL must be absolute: %q", cfg.BaseURL)
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ratePerSec := cfg.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 8
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(ratePerSec) * 2
	}

	retryCfg := DefaultRetryConfig()
	switch {
	case cfg.MaxRetries < 0:
		retryCfg.MaxRetries = 0
	case cfg.MaxRetries > 0:
		retryCfg.MaxRetries = cfg.MaxRetries
	}

	return &Gateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), burst),
		retry:      retryCfg,
		logger:     logger,
	}, nil
}

// SearchProducts queries the catalog. Zero-value filters are omitted.
func (g *Gateway) SearchProducts(ctx context.Context, query string, filters ProductFilters) ([]Product, error) {
	q := url.Values{}
	if query != "" {
		q.Set("query", query)
	}
	if filters.Category != "" {
		q.Set("category", filters.Category)
	}
	if filters.MinPrice > 0 {
		q.Set("min_price", strconv.FormatFloat(filters.MinPrice, 'f', 2, 64))
	}
	if filters.MaxPrice > 0 {
		q.Set("max_price", strconv.FormatFloat(filters.MaxPrice, 'f', 2, 64))
	}
	if filters.InStock {
		q.Set("in_stock", "true")
	}

	endpoint := g.baseURL + "/products"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var products []Product
	if err := g.get(ctx, "searchProducts", endpoint, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetCustomer fetches one customer record.
func (g *Gateway) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	if id == "" {
		return nil, fmt.Errorf("customer id is required")
	}

	var customer Customer
	if err := g.get(ctx, "getCustomer", g.baseURL+"/customers/"+url.PathEscape(id), &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetCustomerOrders lists a customer's orders, most recent first.
func (g *Gateway) GetCustomerOrders(ctx context.Context, customerID string) ([]Order, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}

	var orders []Order
	if err := g.get(ctx, "getCustomerOrders", g.baseURL+"/customers/"+url.PathEscape(customerID)+"/orders", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrder places a new order. Never retried: a transport error after the
// server accepted the write must not turn into a duplicate order.
func (g *Gateway) CreateOrder(ctx context.Context, customerID string, items []OrderItem, shippingAddress, paymentMethod string) (*Order, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one item is required")
	}
	for i, item := range items {
		if item.ProductID == "" {
			return nil, fmt.Errorf("item %d: product id is required", i)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("item %d: quantity must be at least 1", i)
		}
	}
	if shippingAddress == "" {
		return nil, fmt.Errorf("shipping address is required")
	}
	if paymentMethod == "" {
		return nil, fmt.Errorf("payment method is required")
	}

	req := createOrderRequest{
		CustomerID:      customerID,
		Items:           items,
		ShippingAddress: shippingAddress,
		PaymentMethod:   paymentMethod,
	}
	var order Order
	if err := g.post(ctx, "createOrder", g.baseURL+"/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder cancels an order that has not shipped.
func (g *Gateway) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}

	var order Order
	if err := g.post(ctx, "cancelOrder", g.baseURL+"/orders/"+url.PathEscape(orderID)+"/cancel", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ReturnOrder starts a return for a delivered order.
func (g *Gateway) ReturnOrder(ctx context.Context, orderID, reason string) (*Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}

	var order Order
	if err := g.post(ctx, "returnOrder", g.baseURL+"/orders/"+url.PathEscape(orderID)+"/return", returnOrderRequest{Reason: reason}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// IssueGiftCard issues store credit for the given amount.
func (g *Gateway) IssueGiftCard(ctx context.Context, amount float64) (*GiftCard, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	var card GiftCard
	if err := g.post(ctx, "issueGiftCard", g.baseURL+"/gift-cards", issueGiftCardRequest{Amount: amount}, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// GetAddresses lists a customer's shipping addresses.
func (g *Gateway) GetAddresses(ctx context.Context, customerID string) ([]Address, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}

	var addresses []Address
	if err := g.get(ctx, "getAddresses", g.baseURL+"/customers/"+url.PathEscape(customerID)+"/addresses", &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

// SetDefaultAddress marks one of the customer's addresses as default.
func (g *Gateway) SetDefaultAddress(ctx context.Context, customerID, addressID string) (*Address, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}
	if addressID == "" {
		return nil, fmt.Errorf("address id is required")
	}

	endpoint := g.baseURL + "/customers/" + url.PathEscape(customerID) + "/addresses/" + url.PathEscape(addressID) + "/default"
	var address Address
	if err := g.post(ctx, "setDefaultAddress", endpoint, nil, &address); err != nil {
		return nil, err
	}
	return &address, nil
}

// get performs an idempotent read, retrying transient failures.
func (g *Gateway) get(ctx context.Context, operation, endpoint string, result any) error {
	return g.withRetry(ctx, operation, func() error {
		return g.makeRequest(ctx, operation, http.MethodGet, endpoint, nil, result)
	})
}

// post performs a mutation. Exactly one attempt.
func (g *Gateway) post(ctx context.Context, operation, endpoint string, body, result any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return g.makeRequest(ctx, operation, http.MethodPost, endpoint, body, result)
}

// makeRequest is the single HTTP path for every gateway operation.
func (g *Gateway) makeRequest(ctx context.Context, operation, method, endpoint string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Operation: operation,
			Status:    resp.StatusCode,
			Message:   errorMessage(respBody),
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// errorMessage extracts a readable message from an error body: the
// conventional {"error": "..."} shape when present, else the raw body,
// truncated either way.
func errorMessage(body []byte) string {
	var wrapped struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != "" {
		msg = wrapped.Error
	}
	if len(msg) > maxErrorBodyLen {
		msg = msg[:maxErrorBodyLen]
	}
	return msg
}
