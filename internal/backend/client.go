// Package backend is a typed HTTP client for the marketplace backend that
// owns products, categories and trade records.
package backend

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
	"strconv"
	"strings"
	"time"

	"github.com/swapdesk/swap-desk/internal/metrics"
	"github.com/swapdesk/swap-desk/internal/model"
)

// Trade status values accepted by PATCH /trade.
const (
	StatusAccepted = "Accepted"
	StatusDeclined = "Declined"
)

var (
	// ErrInvalidStatus is returned for status values other than Accepted/Declined.
	ErrInvalidStatus = errors.New("backend: status must be Accepted or Declined")
)

// APIError is returned for any non-2xx response from the backend.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client talks to the marketplace backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the backend at baseURL. Each request is
// bounded by timeout in addition to the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ListProducts handles GET /products.
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListCategories handles GET /categories.
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateTrade posts a trade offer. The backend sometimes answers with an
// empty body; that is a success with a nil record.
func (c *Client) CreateTrade(ctx context.Context, dto model.CreateTradeOfferDTO) (*model.TradeOffer, error) {
	body := map[string]model.CreateTradeOfferDTO{"createTradeOfferDto": dto}

	var trade *model.TradeOffer
	if err := c.do(ctx, http.MethodPost, "/trade", body, &trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// GetTrade handles GET /trade/{id}?userId=. An empty or null body means
// the backend has no such trade and yields a nil record.
func (c *Client) GetTrade(ctx context.Context, tradeID int64, userID string) (*model.TradeOffer, error) {
	q := url.Values{"userId": {userID}}
	path := "/trade/" + strconv.FormatInt(tradeID, 10) + "?" + q.Encode()

	var trade *model.TradeOffer
	if err := c.do(ctx, http.MethodGet, path, nil, &trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// ListTrades handles GET /trade?userId=&sentOffers=.
// sentOffers selects offers the user sent instead of received.
func (c *Client) ListTrades(ctx context.Context, userID string, sentOffers bool) ([]model.TradeOffer, error) {
	q := url.Values{
		"userId":     {userID},
		"sentOffers": {strconv.FormatBool(sentOffers)},
	}

	var trades []model.TradeOffer
	if err := c.do(ctx, http.MethodGet, "/trade?"+q.Encode(), nil, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// UpdateTradeStatus handles PATCH /trade.
func (c *Client) UpdateTradeStatus(ctx context.Context, tradeID int64, status string) (*model.TradeOffer, error) {
	if status != StatusAccepted && status != StatusDeclined {
		return nil, ErrInvalidStatus
	}
	body := struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}{tradeID, status}

	var trade *model.TradeOffer
	if err := c.do(ctx, http.MethodPatch, "/trade", body, &trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// do sends a JSON request and decodes a JSON response into out. An empty
// response body leaves out untouched.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("backend: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	metrics.BackendRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.BackendLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backend: read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("backend request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
	}
	return nil
}
