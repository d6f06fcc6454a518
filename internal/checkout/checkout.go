// Package checkout turns the register cart into a recorded sale.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/oguz-kara/pos-app-sub001/internal/cart"
	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/logging"
	"github.com/oguz-kara/pos-app-sub001/internal/retry"
	"github.com/oguz-kara/pos-app-sub001/internal/xid"
)

var (
	ErrCheckoutInFlight     = errors.New("checkout already in progress")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidPaymentMethod = errors.New("payment method must be cash or card")
	ErrStockShortage        = errors.New("insufficient stock")
)

const (
	MessageNetworkFailure = "Sale did not complete. The cart is saved, try again."
	messageRetrying       = "Retrying sale (attempt %d/%d)"
)

// StockShortageError asks the caller to confirm an override before the sale
// can go ahead.
type StockShortageError struct {
	Issues []cart.StockIssue
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("%d line(s) exceed available stock", len(e.Issues))
}

func (e *StockShortageError) Unwrap() error {
	return ErrStockShortage
}

type Submitter interface {
	CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleReceipt, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context, views ...string) error
}

type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

type Notice struct {
	Kind    NoticeKind
	Message string
}

type Notifier interface {
	Notify(n Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type Config struct {
	Cart        *cart.Cart
	Submitter   Submitter
	Invalidator Invalidator
	Notifier    Notifier
	Logger      *slog.Logger
	Policy      retry.Policy
	// StockLevels returns the freshest known stock per product id. Optional.
	StockLevels func(ctx context.Context) (map[string]int, error)
}

type Request struct {
	PaymentMethod string
	Notes         string
	OverrideStock bool
}

type Flow struct {
	cart        *cart.Cart
	submitter   Submitter
	invalidator Invalidator
	notifier    Notifier
	logger      *slog.Logger
	policy      retry.Policy
	stockLevels func(ctx context.Context) (map[string]int, error)

	inFlight atomic.Bool
}

func New(cfg Config) *Flow {
	if cfg.Policy.Attempts < 1 {
		cfg.Policy = retry.DefaultPolicy()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NotifierFunc(func(Notice) {})
	}
	return &Flow{
		cart:        cfg.Cart,
		submitter:   cfg.Submitter,
		invalidator: cfg.Invalidator,
		notifier:    cfg.Notifier,
		logger:      logging.OrDefault(cfg.Logger),
		policy:      cfg.Policy,
		stockLevels: cfg.StockLevels,
	}
}

// InFlight reports whether a submission is outstanding.
func (f *Flow) InFlight() bool {
	return f.inFlight.Load()
}

// Issues returns the stock shortages the current cart would hit.
func (f *Flow) Issues(ctx context.Context) []cart.StockIssue {
	return cart.CheckStock(f.cart.Lines(), f.freshStock(ctx))
}

// Checkout submits the cart as one sale. The cart is cleared only when the
// backend confirms the sale; on any failure it stays as it was and its
// snapshot is written out.
func (f *Flow) Checkout(ctx context.Context, req Request) (domain.SaleReceipt, error) {
	if !f.inFlight.CompareAndSwap(false, true) {
		return domain.SaleReceipt{}, ErrCheckoutInFlight
	}
	defer f.inFlight.Store(false)

	lines := f.cart.Lines()
	if len(lines) == 0 {
		return domain.SaleReceipt{}, ErrEmptyCart
	}
	if req.PaymentMethod != domain.PaymentCash && req.PaymentMethod != domain.PaymentCard {
		return domain.SaleReceipt{}, ErrInvalidPaymentMethod
	}

	issues := cart.CheckStock(lines, f.freshStock(ctx))
	if len(issues) > 0 {
		if !req.OverrideStock {
			return domain.SaleReceipt{}, &StockShortageError{Issues: issues}
		}
		f.logger.Info("stock shortage overridden", "lines", len(issues), "issues", shortageAttrs(issues))
	}

	sale := BuildSaleRequest(lines, req)
	sale.StockOverride = req.OverrideStock && len(issues) > 0
	sale.IdempotencyKey = xid.Key()

	policy := f.policy
	policy.Retryable = domain.IsNetwork
	policy.OnRetry = func(next, max int, err error) {
		f.logger.Warn("sale submission failed, retrying", "attempt", next, "max", max, "error", err)
		f.notifier.Notify(Notice{Kind: NoticeInfo, Message: fmt.Sprintf(messageRetrying, next, max)})
	}

	var receipt domain.SaleReceipt
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		r, err := f.submitter.CreateSale(ctx, sale)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return domain.SaleReceipt{}, f.fail(ctx, err)
	}

	if f.invalidator != nil {
		if err := f.invalidator.Invalidate(ctx, domain.SaleViews...); err != nil {
			f.logger.Warn("view invalidation failed", "error", err)
		}
	}
	if err := f.cart.Clear(ctx); err != nil {
		f.logger.Warn("cart clear after sale failed", "error", err)
	}
	f.logger.Info("sale recorded", "sale_id", receipt.SaleID, "receipt", receipt.ReceiptNumber, "duplicate", receipt.Duplicate)
	f.notifier.Notify(Notice{Kind: NoticeSuccess, Message: fmt.Sprintf("Sale recorded (receipt %s)", receipt.ReceiptNumber)})
	return receipt, nil
}

func (f *Flow) fail(ctx context.Context, err error) error {
	if flushErr := f.cart.Flush(ctx); flushErr != nil {
		f.logger.Warn("cart snapshot flush failed", "error", flushErr)
	}
	if rejected, ok := domain.AsRejected(err); ok {
		f.logger.Warn("sale rejected", "status", rejected.Status, "message", rejected.Message)
		f.notifier.Notify(Notice{Kind: NoticeError, Message: rejected.Message})
		return err
	}
	f.logger.Error("sale submission failed", "error", err)
	f.notifier.Notify(Notice{Kind: NoticeError, Message: MessageNetworkFailure})
	return err
}

func (f *Flow) freshStock(ctx context.Context) map[string]int {
	if f.stockLevels == nil {
		return nil
	}
	levels, err := f.stockLevels(ctx)
	if err != nil {
		f.logger.Warn("stock refresh failed, using cached levels", "error", err)
		return nil
	}
	return levels
}

// BuildSaleRequest maps cart lines onto the sale creation payload.
func BuildSaleRequest(lines []cart.Line, req Request) domain.SaleCreateRequest {
	items := make([]domain.SaleItemInput, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.SaleItemInput{
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return domain.SaleCreateRequest{
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		Items:         items,
	}
}

func shortageAttrs(issues []cart.StockIssue) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(issues))
	for _, issue := range issues {
		attrs = append(attrs, slog.Group(issue.Product.ID,
			"requested", issue.RequestedQty,
			"available", issue.AvailableStock,
			"shortage", issue.Shortage,
		))
	}
	return attrs
}
