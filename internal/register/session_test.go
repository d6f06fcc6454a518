package register

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oguz-kara/pos-app-sub001/internal/cache"
	"github.com/oguz-kara/pos-app-sub001/internal/cart"
	"github.com/oguz-kara/pos-app-sub001/internal/checkout"
	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/retry"
	"github.com/oguz-kara/pos-app-sub001/internal/search"
)

func stock(n int) *int { return &n }

var catalog = []domain.Product{
	{ID: "p1", Name: "Claw Hammer", SKU: "HAM-16", Barcode: "0012345000011", Brand: "Stanley", SellingPrice: decimal.RequireFromString("18.50"), TotalStock: stock(24)},
	{ID: "p2", Name: "Hammer Drill", SKU: "HD-1", Brand: "Bosch", SellingPrice: decimal.RequireFromString("89.00"), TotalStock: stock(2)},
	{ID: "p3", Name: "Wood Glue", SKU: "GLUE", Brand: "Titebond", SellingPrice: decimal.RequireFromString("6.75"), TotalStock: stock(3)},
}

type fakeBackend struct {
	mu       sync.Mutex
	engine   *search.Engine
	levels   map[string]int
	sales    []domain.SaleCreateRequest
	saleErrs []error
	summary  domain.DaySummary
	reports  []domain.DailyReportRequest
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		engine: search.NewEngine(cache.NoopViewCache{}, 0, nil),
		levels: map[string]int{"p1": 24, "p2": 2, "p3": 3},
	}
}

func (b *fakeBackend) SearchProducts(_ context.Context, query string) ([]domain.Product, error) {
	return b.engine.Rank(query, catalog), nil
}

func (b *fakeBackend) StockLevels(_ context.Context, ids []string) (map[string]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := map[string]int{}
	for _, id := range ids {
		if n, ok := b.levels[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (b *fakeBackend) CreateSale(_ context.Context, req domain.SaleCreateRequest) (domain.SaleReceipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sales = append(b.sales, req)
	if n := len(b.sales); n <= len(b.saleErrs) && b.saleErrs[n-1] != nil {
		return domain.SaleReceipt{}, b.saleErrs[n-1]
	}
	return domain.SaleReceipt{SaleID: fmt.Sprintf("sale-%d", len(b.sales)), ReceiptNumber: "R-20261019-0001"}, nil
}

func (b *fakeBackend) DaySummary(_ context.Context, _ string) (domain.DaySummary, error) {
	return b.summary, nil
}

func (b *fakeBackend) SubmitDailyReport(_ context.Context, req domain.DailyReportRequest) (domain.DailyReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reports = append(b.reports, req)
	return domain.DailyReport{ID: "report-1", Date: "2026-10-19", CashCounted: req.CashCounted}, nil
}

func newSession(t *testing.T, backend *fakeBackend) *Session {
	t.Helper()
	c := cart.New(cart.Options{Store: cache.NewMemorySnapshotStore(), FlushInterval: time.Hour})
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return NewSession(Options{
		Backend: backend,
		Cart:    c,
		Policy:  retry.Policy{Attempts: 3, InitialDelay: time.Millisecond, Multiplier: 1},
	})
}

func TestSearchParsesMultiplier(t *testing.T) {
	s := newSession(t, newFakeBackend())

	m, products, err := s.Search(context.Background(), "3x hammer")
	require.NoError(t, err)
	assert.Equal(t, 3, m.Quantity)
	assert.Equal(t, "hammer", m.SearchTerm)
	require.Len(t, products, 2)
	assert.Equal(t, "3x hammer", s.Query())
}

func TestSearchEmptyTermSkipsBackend(t *testing.T) {
	s := newSession(t, newFakeBackend())

	m, products, err := s.Search(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Quantity)
	assert.Nil(t, products)
}

func TestScan(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantID  string
		wantQty int
		wantErr error
	}{
		{name: "barcode", raw: "0012345000011", wantID: "p1", wantQty: 1},
		{name: "sku with multiplier", raw: "2x ham-16", wantID: "p1", wantQty: 2},
		{name: "single result", raw: "glue", wantID: "p3", wantQty: 1},
		{name: "ambiguous", raw: "hammer", wantErr: ErrAmbiguous},
		{name: "no match", raw: "chainsaw", wantErr: ErrNoMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, newFakeBackend())

			product, err := s.Scan(context.Background(), tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, s.Cart().IsEmpty())
				assert.Equal(t, tt.raw, s.Query())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, product.ID)
			lines := s.Cart().Lines()
			require.Len(t, lines, 1)
			assert.Equal(t, tt.wantQty, lines[0].Quantity)
			assert.Empty(t, s.Query())
		})
	}
}

func TestScanAmbiguousListsCandidates(t *testing.T) {
	s := newSession(t, newFakeBackend())

	_, err := s.Scan(context.Background(), "hammer")
	var ambiguous *AmbiguousError
	require.True(t, errors.As(err, &ambiguous))
	ids := make([]string, 0, len(ambiguous.Candidates))
	for _, p := range ambiguous.Candidates {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"p2", "p1"}, ids)
}

func TestHandleKey(t *testing.T) {
	s := newSession(t, newFakeBackend())

	assert.Equal(t, ActionNone, s.HandleKey(KeySpace, false), "empty cart")

	_, err := s.Scan(context.Background(), "glue")
	require.NoError(t, err)
	assert.Equal(t, ActionOpenCheckout, s.HandleKey(KeySpace, false))
	assert.Equal(t, ActionNone, s.HandleKey(KeySpace, true), "typing in a field")

	assert.Equal(t, ActionNone, s.HandleKey(KeyEscape, true), "empty search")
	s.SetQuery("ham")
	assert.Equal(t, ActionClearSearch, s.HandleKey(KeyEscape, true))
	assert.Empty(t, s.Query())
	assert.Equal(t, "open-checkout", ActionOpenCheckout.String())
}

func TestCheckoutUsesFreshStock(t *testing.T) {
	backend := newFakeBackend()
	s := newSession(t, backend)
	ctx := context.Background()

	_, err := s.Scan(ctx, "2x glue")
	require.NoError(t, err)

	backend.mu.Lock()
	backend.levels["p3"] = 1
	backend.mu.Unlock()

	issues := s.StockIssues(ctx)
	require.Len(t, issues, 1)
	assert.Equal(t, 1, issues[0].Shortage)

	_, err = s.Checkout(ctx, checkout.Request{PaymentMethod: domain.PaymentCash})
	require.ErrorIs(t, err, checkout.ErrStockShortage)
	assert.Empty(t, backend.sales)

	receipt, err := s.Checkout(ctx, checkout.Request{PaymentMethod: domain.PaymentCash, OverrideStock: true})
	require.NoError(t, err)
	assert.Equal(t, "sale-1", receipt.SaleID)
	require.Len(t, backend.sales, 1)
	assert.True(t, backend.sales[0].StockOverride)
	assert.True(t, s.Cart().IsEmpty())
}

func TestCheckoutRetriesWithSameKey(t *testing.T) {
	backend := newFakeBackend()
	backend.saleErrs = []error{fmt.Errorf("post: %w", domain.ErrNetwork), nil}
	s := newSession(t, backend)
	ctx := context.Background()

	_, err := s.Scan(ctx, "ham-16")
	require.NoError(t, err)

	_, err = s.Checkout(ctx, checkout.Request{PaymentMethod: domain.PaymentCard})
	require.NoError(t, err)
	require.Len(t, backend.sales, 2)
	assert.NotEmpty(t, backend.sales[0].IdempotencyKey)
	assert.Equal(t, backend.sales[0].IdempotencyKey, backend.sales[1].IdempotencyKey)
}

func TestStartDayClose(t *testing.T) {
	backend := newFakeBackend()
	backend.summary = domain.DaySummary{
		GrossCashSales: decimal.RequireFromString("1000"),
		CardSales:      decimal.RequireFromString("500"),
		TotalRefunds:   decimal.RequireFromString("50"),
	}
	s := newSession(t, backend)
	ctx := context.Background()

	wizard, err := s.StartDayClose(ctx)
	require.NoError(t, err)
	require.NoError(t, wizard.Next())
	require.NoError(t, wizard.SetCashCounted(decimal.RequireFromString("950")))
	require.NoError(t, wizard.Next())

	preview, err := wizard.Preview()
	require.NoError(t, err)
	assert.True(t, preview.Variance.IsZero())

	report, err := wizard.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "report-1", report.ID)
	require.Len(t, backend.reports, 1)
	assert.False(t, strings.TrimSpace(backend.reports[0].IdempotencyKey) == "")
	assert.True(t, wizard.Closed())
}
