package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/oguz-kara/pos-app-sub001/internal/cache"
	"github.com/oguz-kara/pos-app-sub001/internal/dayclose"
	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/logging"
	"github.com/oguz-kara/pos-app-sub001/internal/money"
	"github.com/oguz-kara/pos-app-sub001/internal/search"
	"github.com/oguz-kara/pos-app-sub001/internal/store"
	"github.com/oguz-kara/pos-app-sub001/internal/xid"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("admin role required")
)

const (
	defaultTrendDays      = 7
	maxTrendDays          = 90
	defaultTopLimit       = 10
	defaultStockThreshold = 5
	defaultHistoryLimit   = 50
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo           store.Repository
	views          cache.ViewCache
	search         *search.Engine
	validate       *validator.Validate
	defaultStoreID string
	logger         *slog.Logger
	now            func() time.Time
}

type Options struct {
	Views          cache.ViewCache
	Search         *search.Engine
	DefaultStoreID string
	Logger         *slog.Logger
}

func New(repo store.Repository, opts Options) *Service {
	if opts.DefaultStoreID == "" {
		opts.DefaultStoreID = "main-store"
	}
	if opts.Views == nil {
		opts.Views = cache.NoopViewCache{}
	}
	logger := logging.OrDefault(opts.Logger)
	if opts.Search == nil {
		opts.Search = search.NewEngine(opts.Views, 0, logger)
	}

	return &Service{
		repo:           repo,
		views:          opts.Views,
		search:         opts.Search,
		validate:       newValidator(),
		defaultStoreID: opts.DefaultStoreID,
		logger:         logger,
		now:            time.Now,
	}
}

// SetClock replaces the service clock. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) DefaultStoreID() string {
	return s.defaultStoreID
}

func (s *Service) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, s.storeOrDefault(storeID))
}

// ProductsByIDs returns the requested products in request order. Unknown ids
// are skipped.
func (s *Service) ProductsByIDs(ctx context.Context, storeID string, ids []string) ([]domain.Product, error) {
	found, err := s.repo.GetProductsByIDs(ctx, s.storeOrDefault(storeID), ids)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Product, 0, len(found))
	for _, id := range ids {
		if product, ok := found[id]; ok {
			result = append(result, product)
			delete(found, id)
		}
	}
	return result, nil
}

func (s *Service) SearchProducts(ctx context.Context, storeID string, query string) ([]domain.Product, error) {
	storeID = s.storeOrDefault(storeID)
	return s.search.Search(ctx, storeID, query, func(ctx context.Context) ([]domain.Product, error) {
		return s.repo.ListProducts(ctx, storeID)
	})
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, ErrForbidden
	}

	req.StoreID = s.storeOrDefault(req.StoreID)
	req.Name = strings.TrimSpace(req.Name)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.Brand = strings.TrimSpace(req.Brand)
	if err := s.validateStruct(req); err != nil {
		return domain.Product{}, err
	}
	if req.SellingPrice.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: sellingPrice must be >= 0", ErrValidation)
	}

	created, err := s.repo.CreateProduct(ctx, req.StoreID, domain.Product{
		ID:           xid.New("prod"),
		Name:         req.Name,
		Barcode:      req.Barcode,
		SKU:          req.SKU,
		Brand:        req.Brand,
		SellingPrice: money.Round(req.SellingPrice),
	}, req.InitialStock)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, req.StoreID, "product_create", "product", created.ID,
		fmt.Sprintf("sku=%s,price=%s,stock=%d", created.SKU, created.SellingPrice.StringFixed(money.Places), req.InitialStock))
	s.invalidate(ctx, domain.ViewProductSearch, domain.ViewStockLevels)
	return *created, nil
}

// CreateSale records a sale once per idempotency key. A replayed key returns
// the original receipt flagged as a duplicate.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleReceipt, error) {
	req.StoreID = s.storeOrDefault(req.StoreID)
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	req.Notes = strings.TrimSpace(req.Notes)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if err := s.validateStruct(req); err != nil {
		return domain.SaleReceipt{}, err
	}
	for i, item := range req.Items {
		if item.UnitPrice.IsNegative() {
			return domain.SaleReceipt{}, fmt.Errorf("%w: items[%d].unitPrice must be >= 0", ErrValidation, i)
		}
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = xid.New("idem")
	}

	if existing, err := s.repo.FindSaleByIdempotency(ctx, req.StoreID, req.IdempotencyKey); err == nil {
		return toReceipt(existing, true), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.SaleReceipt{}, err
	}

	actor, _ := ActorFromContext(ctx)
	sale := domain.Sale{
		ID:              xid.New("sale"),
		StoreID:         req.StoreID,
		IdempotencyKey:  req.IdempotencyKey,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		StockOverride:   req.StockOverride,
		CashierUsername: actor.Username,
		CreatedAt:       s.now().UTC(),
		Items:           make([]domain.SaleLine, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		sale.Items = append(sale.Items, domain.SaleLine{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
			UnitPrice: money.Round(item.UnitPrice),
		})
	}

	created, err := s.repo.CreateSale(ctx, sale, req.StockOverride)
	if err != nil {
		return domain.SaleReceipt{}, err
	}
	duplicate := created.ID != sale.ID
	if duplicate {
		return toReceipt(created, true), nil
	}

	if created.StockOverride {
		s.logger.Info("sale recorded with stock override",
			"sale_id", created.ID, "store_id", created.StoreID, "cashier", created.CashierUsername)
	}
	s.logAudit(ctx, created.StoreID, "sale_create", "sale", created.ID,
		fmt.Sprintf("receipt=%s,total=%s,method=%s,override=%t",
			created.ReceiptNumber, created.Total.StringFixed(money.Places), created.PaymentMethod, created.StockOverride))
	s.invalidate(ctx, append([]string{domain.ViewProductSearch}, domain.SaleViews...)...)

	return toReceipt(created, false), nil
}

func (s *Service) ListSales(ctx context.Context, storeID string, limit int) (domain.SaleHistoryResponse, error) {
	storeID = s.storeOrDefault(storeID)
	if limit < 1 {
		limit = defaultHistoryLimit
	}

	var resp domain.SaleHistoryResponse
	key := fmt.Sprintf("%s:%d", storeID, limit)
	err := s.views.FetchJSON(ctx, domain.ViewSalesHistory, key, &resp, func(ctx context.Context) (any, error) {
		sales, err := s.repo.ListSales(ctx, storeID, limit)
		if err != nil {
			return nil, err
		}
		return domain.SaleHistoryResponse{Sales: sales}, nil
	})
	return resp, err
}

// Refund pays cash back against a recorded sale. The manager PIN is checked by
// the HTTP layer before this is called.
func (s *Service) Refund(ctx context.Context, req domain.RefundRequest) (domain.Refund, error) {
	req.SaleID = strings.TrimSpace(req.SaleID)
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validateStruct(req); err != nil {
		return domain.Refund{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.Refund{}, fmt.Errorf("%w: amount must be > 0", ErrValidation)
	}

	sale, err := s.repo.FindSaleByID(ctx, req.SaleID)
	if err != nil {
		return domain.Refund{}, err
	}

	created, err := s.repo.CreateRefund(ctx, domain.Refund{
		ID:        xid.New("refund"),
		SaleID:    sale.ID,
		StoreID:   sale.StoreID,
		Amount:    money.Round(req.Amount),
		Reason:    req.Reason,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Refund{}, err
	}

	s.logAudit(ctx, sale.StoreID, "refund_create", "sale", sale.ID,
		fmt.Sprintf("amount=%s,reason=%s", created.Amount.StringFixed(money.Places), created.Reason))
	s.invalidate(ctx, domain.ViewTodayPulse, domain.ViewSalesHistory)
	return *created, nil
}

// DaySummary returns the cash, card and refund totals for one UTC day. An
// empty date means today.
func (s *Service) DaySummary(ctx context.Context, storeID string, date string) (domain.DaySummary, error) {
	storeID = s.storeOrDefault(storeID)
	from, to, err := s.dayRange(date)
	if err != nil {
		return domain.DaySummary{}, err
	}

	var summary domain.DaySummary
	key := storeID + ":" + from.Format("2006-01-02")
	err = s.views.FetchJSON(ctx, domain.ViewTodayPulse, key, &summary, func(ctx context.Context) (any, error) {
		return s.repo.GetDaySummary(ctx, storeID, from, to)
	})
	return summary, err
}

// SubmitDailyReport closes today's drawer. The variance is always recomputed
// from stored totals. Resubmitting with the same idempotency key returns the
// stored report; any other key for a closed day is a conflict.
func (s *Service) SubmitDailyReport(ctx context.Context, req domain.DailyReportRequest) (domain.DailyReport, error) {
	req.StoreID = s.storeOrDefault(req.StoreID)
	req.Notes = strings.TrimSpace(req.Notes)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if err := s.validateStruct(req); err != nil {
		return domain.DailyReport{}, err
	}
	if req.CashCounted.IsNegative() {
		return domain.DailyReport{}, fmt.Errorf("%w: cashCounted must be >= 0", ErrValidation)
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = xid.Key()
	}

	from, to := store.DayBounds(s.now())
	date := from.Format("2006-01-02")

	if existing, err := s.repo.GetDailyReport(ctx, req.StoreID, date); err == nil {
		return replayReport(existing, req.IdempotencyKey)
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.DailyReport{}, err
	}

	summary, err := s.repo.GetDaySummary(ctx, req.StoreID, from, to)
	if err != nil {
		return domain.DailyReport{}, err
	}
	rec := dayclose.Reconcile(dayclose.TotalsFromSummary(summary), money.Round(req.CashCounted))

	actor, _ := ActorFromContext(ctx)
	created, err := s.repo.CreateDailyReport(ctx, domain.DailyReport{
		ID:                 xid.New("report"),
		StoreID:            req.StoreID,
		Date:               date,
		IdempotencyKey:     req.IdempotencyKey,
		GrossCashSales:     rec.GrossCashSales,
		CardSales:          rec.CardSales,
		TotalRefunds:       rec.TotalRefunds,
		NetExpectedCash:    rec.NetExpectedCash,
		TotalGrossSales:    rec.TotalGrossSales,
		CashCounted:        rec.CashCounted,
		Variance:           rec.Variance,
		VariancePercentage: rec.VariancePercentage,
		Severity:           string(rec.Severity),
		Notes:              req.Notes,
		ClosedBy:           actor.Username,
		CreatedAt:          s.now().UTC(),
	})
	if errors.Is(err, store.ErrConflict) {
		// Lost a race with another close for the same day.
		existing, getErr := s.repo.GetDailyReport(ctx, req.StoreID, date)
		if getErr != nil {
			return domain.DailyReport{}, getErr
		}
		return replayReport(existing, req.IdempotencyKey)
	}
	if err != nil {
		return domain.DailyReport{}, err
	}

	if rec.Severity != dayclose.SeverityBalanced {
		s.logger.Warn("day closed with cash variance",
			"store_id", created.StoreID, "date", created.Date,
			"variance", created.Variance.StringFixed(money.Places), "severity", created.Severity)
	}
	s.logAudit(ctx, created.StoreID, "day_close", "daily_report", created.ID,
		fmt.Sprintf("counted=%s,variance=%s,severity=%s",
			created.CashCounted.StringFixed(money.Places), created.Variance.StringFixed(money.Places), created.Severity))
	return *created, nil
}

func replayReport(existing *domain.DailyReport, key string) (domain.DailyReport, error) {
	if existing.IdempotencyKey == key {
		return *existing, nil
	}
	return domain.DailyReport{}, fmt.Errorf("%w: day %s is already closed", store.ErrConflict, existing.Date)
}

func (s *Service) DailyReport(ctx context.Context, storeID string, date string) (domain.DailyReport, error) {
	storeID = s.storeOrDefault(storeID)
	from, _, err := s.dayRange(date)
	if err != nil {
		return domain.DailyReport{}, err
	}
	report, err := s.repo.GetDailyReport(ctx, storeID, from.Format("2006-01-02"))
	if err != nil {
		return domain.DailyReport{}, err
	}
	return *report, nil
}

// SalesTrend returns one point per day for the trailing window ending today.
func (s *Service) SalesTrend(ctx context.Context, storeID string, days int) (domain.SalesTrendResponse, error) {
	storeID = s.storeOrDefault(storeID)
	if days < 1 {
		days = defaultTrendDays
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}
	_, to := store.DayBounds(s.now())
	from := to.Add(-time.Duration(days) * 24 * time.Hour)

	var resp domain.SalesTrendResponse
	key := fmt.Sprintf("%s:%s:%d", storeID, from.Format("2006-01-02"), days)
	err := s.views.FetchJSON(ctx, domain.ViewSalesTrend, key, &resp, func(ctx context.Context) (any, error) {
		points, err := s.repo.GetSalesTrend(ctx, storeID, from, to)
		if err != nil {
			return nil, err
		}
		return domain.SalesTrendResponse{Points: points}, nil
	})
	return resp, err
}

func (s *Service) TopProducts(ctx context.Context, storeID string, date string, limit int) (domain.TopProductsResponse, error) {
	storeID = s.storeOrDefault(storeID)
	if limit < 1 {
		limit = defaultTopLimit
	}
	from, to, err := s.dayRange(date)
	if err != nil {
		return domain.TopProductsResponse{}, err
	}

	var resp domain.TopProductsResponse
	day := from.Format("2006-01-02")
	key := fmt.Sprintf("%s:%s:%d", storeID, day, limit)
	err = s.views.FetchJSON(ctx, domain.ViewTopProducts, key, &resp, func(ctx context.Context) (any, error) {
		products, err := s.repo.GetTopProducts(ctx, storeID, from, to, limit)
		if err != nil {
			return nil, err
		}
		return domain.TopProductsResponse{Date: day, Products: products}, nil
	})
	return resp, err
}

func (s *Service) StockLevels(ctx context.Context, storeID string, threshold int) (domain.StockLevelsResponse, error) {
	storeID = s.storeOrDefault(storeID)
	if threshold < 0 {
		threshold = defaultStockThreshold
	}

	var resp domain.StockLevelsResponse
	key := fmt.Sprintf("%s:%d", storeID, threshold)
	err := s.views.FetchJSON(ctx, domain.ViewStockLevels, key, &resp, func(ctx context.Context) (any, error) {
		items, err := s.repo.ListStockLevels(ctx, storeID, threshold)
		if err != nil {
			return nil, err
		}
		return domain.StockLevelsResponse{Threshold: threshold, Items: items}, nil
	})
	return resp, err
}

// Dashboard loads today's summary, the trailing week, top sellers and low
// stock concurrently.
func (s *Service) Dashboard(ctx context.Context, storeID string) (domain.Dashboard, error) {
	storeID = s.storeOrDefault(storeID)

	var dash domain.Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := s.DaySummary(gctx, storeID, "")
		dash.Summary = summary
		return err
	})
	g.Go(func() error {
		trend, err := s.SalesTrend(gctx, storeID, defaultTrendDays)
		dash.Trend = trend.Points
		return err
	})
	g.Go(func() error {
		top, err := s.TopProducts(gctx, storeID, "", 5)
		dash.TopProducts = top.Products
		return err
	})
	g.Go(func() error {
		levels, err := s.StockLevels(gctx, storeID, defaultStockThreshold)
		dash.LowStock = levels.Items
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Dashboard{}, err
	}
	return dash, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, storeID string, date string, limit int) ([]domain.AuditLog, error) {
	storeID = s.storeOrDefault(storeID)
	if limit < 1 {
		limit = 100
	}

	var from, to time.Time
	if strings.TrimSpace(date) == "" {
		to = s.now().UTC()
		from = to.Add(-24 * time.Hour)
	} else {
		var err error
		from, to, err = s.dayRange(date)
		if err != nil {
			return nil, err
		}
	}
	return s.repo.ListAuditLogs(ctx, storeID, from, to, limit)
}

func (s *Service) dayRange(date string) (time.Time, time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		from, to := store.DayBounds(s.now())
		return from, to, nil
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	from, to := store.DayBounds(parsed)
	return from, to, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return fmt.Errorf("%w: %s", ErrValidation, describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must contain at least %s entries", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func toReceipt(sale *domain.Sale, duplicate bool) domain.SaleReceipt {
	count := 0
	for _, item := range sale.Items {
		count += item.Quantity
	}
	return domain.SaleReceipt{
		SaleID:        sale.ID,
		ReceiptNumber: sale.ReceiptNumber,
		PaymentMethod: sale.PaymentMethod,
		Total:         sale.Total,
		ItemCount:     count,
		Duplicate:     duplicate,
		CreatedAt:     sale.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Service) invalidate(ctx context.Context, views ...string) {
	if err := s.views.Invalidate(ctx, views...); err != nil {
		s.logger.Warn("view invalidation failed", "views", views, "error", err)
	}
}

func (s *Service) logAudit(ctx context.Context, storeID string, action string, entityType string, entityID string, detail string) {
	storeID = s.storeOrDefault(storeID)

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		StoreID:       storeID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to write audit log", "action", action, "entity", entityType+"/"+entityID, "error", err)
	}
}

func (s *Service) storeOrDefault(storeID string) string {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return s.defaultStoreID
	}
	return storeID
}
