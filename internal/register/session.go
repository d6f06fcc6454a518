// Package register ties the terminal's search box, cart, checkout and day close
// together for one cashier session.
package register

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/oguz-kara/pos-app-sub001/internal/cart"
	"github.com/oguz-kara/pos-app-sub001/internal/checkout"
	"github.com/oguz-kara/pos-app-sub001/internal/dayclose"
	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/logging"
	"github.com/oguz-kara/pos-app-sub001/internal/retry"
	"github.com/oguz-kara/pos-app-sub001/internal/search"
)

var (
	ErrAmbiguous = errors.New("more than one product matches")
	ErrNoMatch   = errors.New("no product matches")
)

// AmbiguousError lists the candidates a scan could not choose between.
type AmbiguousError struct {
	Query      string
	Candidates []domain.Product
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%d products match %q", len(e.Candidates), e.Query)
}

func (e *AmbiguousError) Unwrap() error {
	return ErrAmbiguous
}

// Backend is everything the register needs from the sales backend.
type Backend interface {
	checkout.Submitter
	dayclose.ReportSubmitter
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
	StockLevels(ctx context.Context, ids []string) (map[string]int, error)
	DaySummary(ctx context.Context, date string) (domain.DaySummary, error)
}

type Key string

const (
	KeySpace  Key = "space"
	KeyEscape Key = "escape"
)

type Action int

const (
	ActionNone Action = iota
	ActionOpenCheckout
	ActionClearSearch
)

func (a Action) String() string {
	switch a {
	case ActionOpenCheckout:
		return "open-checkout"
	case ActionClearSearch:
		return "clear-search"
	default:
		return "none"
	}
}

type Options struct {
	Backend     Backend
	Cart        *cart.Cart
	Invalidator checkout.Invalidator
	Notifier    checkout.Notifier
	Policy      retry.Policy
	Logger      *slog.Logger
}

type Session struct {
	backend Backend
	cart    *cart.Cart
	flow    *checkout.Flow
	logger  *slog.Logger

	mu    sync.Mutex
	query string
}

func NewSession(opts Options) *Session {
	logger := logging.OrDefault(opts.Logger)
	s := &Session{
		backend: opts.Backend,
		cart:    opts.Cart,
		logger:  logger,
	}
	s.flow = checkout.New(checkout.Config{
		Cart:        opts.Cart,
		Submitter:   opts.Backend,
		Invalidator: opts.Invalidator,
		Notifier:    opts.Notifier,
		Logger:      logger,
		Policy:      opts.Policy,
		StockLevels: s.cartStock,
	})
	return s
}

func (s *Session) Cart() *cart.Cart {
	return s.cart
}

// SetQuery records what is currently typed in the search field.
func (s *Session) SetQuery(q string) {
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
}

func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Search parses an optional "<n>x" prefix and looks up the rest.
func (s *Session) Search(ctx context.Context, raw string) (cart.Multiplier, []domain.Product, error) {
	s.SetQuery(raw)
	m := cart.ParseMultiplier(strings.TrimSpace(raw))
	if strings.TrimSpace(m.SearchTerm) == "" {
		return m, nil, nil
	}
	products, err := s.backend.SearchProducts(ctx, m.SearchTerm)
	if err != nil {
		return m, nil, err
	}
	return m, products, nil
}

// Scan adds the single best match for raw to the cart: an exact barcode or
// SKU hit, otherwise the only result. The search field is cleared on success.
func (s *Session) Scan(ctx context.Context, raw string) (domain.Product, error) {
	m, products, err := s.Search(ctx, raw)
	if err != nil {
		return domain.Product{}, err
	}

	product, err := pick(m.SearchTerm, products)
	if err != nil {
		return domain.Product{}, err
	}

	s.cart.AddOrIncrement(product, m.Quantity)
	s.SetQuery("")
	s.logger.Debug("product scanned", "product_id", product.ID, "quantity", m.Quantity)
	return product, nil
}

func pick(term string, products []domain.Product) (domain.Product, error) {
	switch len(products) {
	case 0:
		return domain.Product{}, ErrNoMatch
	case 1:
		return products[0], nil
	}
	for _, p := range products {
		if search.IsExact(term, p) {
			return p, nil
		}
	}
	return domain.Product{}, &AmbiguousError{Query: term, Candidates: products}
}

// HandleKey maps a key press to a register action. Space opens checkout only
// outside text fields so it can still be typed into search or notes.
func (s *Session) HandleKey(key Key, inTextField bool) Action {
	switch key {
	case KeySpace:
		if !inTextField && !s.cart.IsEmpty() && !s.flow.InFlight() {
			return ActionOpenCheckout
		}
	case KeyEscape:
		if strings.TrimSpace(s.Query()) != "" {
			s.SetQuery("")
			return ActionClearSearch
		}
	}
	return ActionNone
}

func (s *Session) StockIssues(ctx context.Context) []cart.StockIssue {
	return s.flow.Issues(ctx)
}

func (s *Session) Checkout(ctx context.Context, req checkout.Request) (domain.SaleReceipt, error) {
	return s.flow.Checkout(ctx, req)
}

// StartDayClose loads today's totals and opens the close wizard on them.
func (s *Session) StartDayClose(ctx context.Context) (*dayclose.Wizard, error) {
	summary, err := s.backend.DaySummary(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load day summary: %w", err)
	}
	return dayclose.NewWizard(dayclose.TotalsFromSummary(summary), s.backend, s.logger), nil
}

func (s *Session) cartStock(ctx context.Context) (map[string]int, error) {
	lines := s.cart.Lines()
	if len(lines) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.Product.ID)
	}
	return s.backend.StockLevels(ctx, ids)
}
