package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/httpapi"
	"github.com/oguz-kara/pos-app-sub001/internal/logging"
	"github.com/oguz-kara/pos-app-sub001/internal/service"
	"github.com/oguz-kara/pos-app-sub001/internal/store/memory"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	repo := memory.NewSeeded()
	logger := logging.NewWithWriter(io.Discard, "text")
	svc := service.New(repo, service.Options{DefaultStoreID: "main-store", Logger: logger})
	auth := httpapi.NewAuthManager("test-secret-that-is-long-enough-1234", time.Hour, "123456", repo)
	srv := httptest.NewServer(httpapi.New(svc, auth, "*", logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func loggedIn(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := New(baseURL, WithStoreID("main-store"))
	resp, err := c.Login(context.Background(), "cashier", "cashier123")
	require.NoError(t, err)
	require.Equal(t, domain.RoleCashier, resp.Role)
	return c
}

func TestClientAgainstBackend(t *testing.T) {
	srv := newBackend(t)
	c := loggedIn(t, srv.URL)
	ctx := context.Background()

	found, err := c.SearchProducts(ctx, "HAM-16")
	require.NoError(t, err)
	require.NotEmpty(t, found)
	assert.Equal(t, "prod-hammer", found[0].ID)

	receipt, err := c.CreateSale(ctx, domain.SaleCreateRequest{
		PaymentMethod:  domain.PaymentCash,
		Items:          []domain.SaleItemInput{{ProductID: "prod-hammer", Quantity: 2, UnitPrice: decimal.RequireFromString("18.50")}},
		IdempotencyKey: "register-1-sale-1",
	})
	require.NoError(t, err)
	assert.False(t, receipt.Duplicate)
	assert.True(t, receipt.Total.Equal(decimal.RequireFromString("37")))

	replay, err := c.CreateSale(ctx, domain.SaleCreateRequest{
		PaymentMethod:  domain.PaymentCash,
		Items:          []domain.SaleItemInput{{ProductID: "prod-hammer", Quantity: 2, UnitPrice: decimal.RequireFromString("18.50")}},
		IdempotencyKey: "register-1-sale-1",
	})
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, receipt.SaleID, replay.SaleID)

	levels, err := c.StockLevels(ctx, []string{"prod-hammer", "prod-glue"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"prod-hammer": 22, "prod-glue": 3}, levels)

	summary, err := c.DaySummary(ctx, "")
	require.NoError(t, err)
	assert.True(t, summary.GrossCashSales.Equal(decimal.RequireFromString("37")))

	report, err := c.SubmitDailyReport(ctx, domain.DailyReportRequest{
		CashCounted:    decimal.RequireFromString("37"),
		IdempotencyKey: "close-1",
	})
	require.NoError(t, err)
	assert.True(t, report.Variance.IsZero())

	_, err = c.SubmitDailyReport(ctx, domain.DailyReportRequest{
		CashCounted:    decimal.RequireFromString("37"),
		IdempotencyKey: "close-2",
	})
	rejected, ok := domain.AsRejected(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, http.StatusConflict, rejected.Status)
}

func TestClientRejectionCarriesServerMessage(t *testing.T) {
	srv := newBackend(t)
	c := loggedIn(t, srv.URL)

	_, err := c.CreateSale(context.Background(), domain.SaleCreateRequest{
		PaymentMethod:  domain.PaymentCash,
		Items:          []domain.SaleItemInput{{ProductID: "prod-glue", Quantity: 5, UnitPrice: decimal.RequireFromString("6.75")}},
		IdempotencyKey: "short-1",
	})
	rejected, ok := domain.AsRejected(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, http.StatusConflict, rejected.Status)
	assert.Contains(t, rejected.Message, "insufficient stock")
	assert.False(t, domain.IsNetwork(err))
}

func TestClientBadLogin(t *testing.T) {
	srv := newBackend(t)
	c := New(srv.URL)

	_, err := c.Login(context.Background(), "cashier", "wrong")
	rejected, ok := domain.AsRejected(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rejected.Status)
}

func TestClientServerErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).DaySummary(context.Background(), "2026-10-19")
	require.Error(t, err)
	assert.True(t, domain.IsNetwork(err))
	_, rejected := domain.AsRejected(err)
	assert.False(t, rejected)
}

func TestClientConnectionRefusedIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).SearchProducts(context.Background(), "hammer")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNetwork))
}

func TestClientCanceledContextIsNotNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(srv.URL).DaySummary(ctx, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, domain.ErrNetwork))
}

func TestClientRefreshesRejectedCSRFToken(t *testing.T) {
	var issued, posts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/auth/csrf-token", func(w http.ResponseWriter, _ *http.Request) {
		n := issued.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"csrf_token": "token-" + strconv.Itoa(int(n))})
	})
	mux.HandleFunc("POST /api/v1/sales", func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		if r.Header.Get("X-CSRF-Token") != "token-2" {
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing or invalid CSRF token"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.SaleReceipt{SaleID: "sale-1", ReceiptNumber: "R-20261019-0001"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	receipt, err := New(srv.URL).CreateSale(context.Background(), domain.SaleCreateRequest{
		PaymentMethod:  domain.PaymentCard,
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "sale-1", receipt.SaleID)
	assert.Equal(t, int32(2), issued.Load())
	assert.Equal(t, int32(2), posts.Load())
}

func TestStockLevelsSkipsEmptyRequest(t *testing.T) {
	levels, err := New("http://127.0.0.1:1").StockLevels(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, levels)
}
