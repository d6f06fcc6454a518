// Package apiclient is the register's HTTP client for the sales backend.
package apiclient

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
	"sync"
	"time"

	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/logging"
)

const (
	defaultTimeout    = 10 * time.Second
	csrfHeader        = "X-CSRF-Token"
	idempotencyHeader = "Idempotency-Key"
	csrfRejected      = "missing or invalid CSRF token"
)

type Client struct {
	baseURL string
	http    *http.Client
	storeID string
	logger  *slog.Logger

	mu    sync.Mutex
	token string
	csrf  string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithStoreID(storeID string) Option {
	return func(c *Client) { c.storeID = storeID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDefault(c.logger)
	return c
}

// SetToken installs a bearer token obtained elsewhere.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Login(ctx context.Context, username string, password string) (domain.LoginResponse, error) {
	var resp domain.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", nil,
		domain.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	c.SetToken(resp.AccessToken)
	return resp, nil
}

func (c *Client) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	q := url.Values{"q": {query}}
	c.withStore(q)
	var resp struct {
		Products []domain.Product `json:"products"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/products/search?"+q.Encode(), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

func (c *Client) Products(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	q := url.Values{"ids": {strings.Join(ids, ",")}}
	c.withStore(q)
	var resp struct {
		Products []domain.Product `json:"products"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/products?"+q.Encode(), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// StockLevels returns the current stock of every id the backend reports a
// level for.
func (c *Client) StockLevels(ctx context.Context, ids []string) (map[string]int, error) {
	products, err := c.Products(ctx, ids)
	if err != nil {
		return nil, err
	}
	levels := make(map[string]int, len(products))
	for _, p := range products {
		if p.TotalStock != nil {
			levels[p.ID] = *p.TotalStock
		}
	}
	return levels, nil
}

func (c *Client) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleReceipt, error) {
	if req.StoreID == "" {
		req.StoreID = c.storeID
	}
	var receipt domain.SaleReceipt
	headers := map[string]string{idempotencyHeader: req.IdempotencyKey}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sales", headers, domain.SaleCreateBody{Input: req}, &receipt); err != nil {
		return domain.SaleReceipt{}, err
	}
	return receipt, nil
}

func (c *Client) DaySummary(ctx context.Context, date string) (domain.DaySummary, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	c.withStore(q)
	path := "/api/v1/reports/day-summary"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var summary domain.DaySummary
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &summary); err != nil {
		return domain.DaySummary{}, err
	}
	return summary, nil
}

func (c *Client) SubmitDailyReport(ctx context.Context, req domain.DailyReportRequest) (domain.DailyReport, error) {
	if req.StoreID == "" {
		req.StoreID = c.storeID
	}
	var report domain.DailyReport
	headers := map[string]string{idempotencyHeader: req.IdempotencyKey}
	if err := c.do(ctx, http.MethodPost, "/api/v1/reports/daily", headers, domain.DailyReportBody{Input: req}, &report); err != nil {
		return domain.DailyReport{}, err
	}
	return report, nil
}

func (c *Client) withStore(q url.Values) {
	if c.storeID != "" {
		q.Set("store_id", c.storeID)
	}
}

// do sends one request. A stale CSRF token is refreshed and the request sent
// once more.
func (c *Client) do(ctx context.Context, method string, path string, headers map[string]string, body any, dest any) error {
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		payload = raw
	}

	err := c.send(ctx, method, path, headers, payload, dest)
	var rejected *domain.RejectedError
	if errors.As(err, &rejected) && rejected.Status == http.StatusForbidden && rejected.Message == csrfRejected {
		c.mu.Lock()
		c.csrf = ""
		c.mu.Unlock()
		c.logger.Debug("csrf token rejected, refreshing", "method", method, "path", path)
		err = c.send(ctx, method, path, headers, payload, dest)
	}
	return err
}

func (c *Client) send(ctx context.Context, method string, path string, headers map[string]string, payload []byte, dest any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method != http.MethodGet && !strings.HasPrefix(path, "/api/v1/auth/") {
		csrf, err := c.csrfToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set(csrfHeader, csrf)
	}

	res, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s %s: %w: %w", method, path, domain.ErrNetwork, err)
	}
	defer res.Body.Close()

	return decodeResponse(method, path, res, dest)
}

func (c *Client) csrfToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.csrf
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	var resp struct {
		Token string `json:"csrf_token"`
	}
	if err := c.send(ctx, http.MethodGet, "/api/v1/auth/csrf-token", nil, nil, &resp); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.csrf = resp.Token
	c.mu.Unlock()
	return resp.Token, nil
}

// decodeResponse classifies the response: 5xx is a transient network-class
// failure, 4xx a rejection carrying the server's message.
func decodeResponse(method string, path string, res *http.Response, dest any) error {
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s %s: %w: read body: %w", method, path, domain.ErrNetwork, err)
	}

	switch {
	case res.StatusCode >= 500:
		return fmt.Errorf("%s %s: %w: status %d", method, path, domain.ErrNetwork, res.StatusCode)
	case res.StatusCode >= 400:
		return &domain.RejectedError{Status: res.StatusCode, Message: errorMessage(raw, res.StatusCode)}
	}

	if dest == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func errorMessage(raw []byte, status int) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		return payload.Error
	}
	return http.StatusText(status)
}
