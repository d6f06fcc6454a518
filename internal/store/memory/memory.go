package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/money"
	"github.com/oguz-kara/pos-app-sub001/internal/store"
	"github.com/oguz-kara/pos-app-sub001/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	inventory       map[string]map[string]int
	salesByID       map[string]*domain.Sale
	salesByIdem     map[string]*domain.Sale
	receiptSeq      map[string]int
	refunds         []domain.Refund
	reports         map[string]domain.DailyReport
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
	now             func() time.Time
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD;
// when unset the dev defaults are used and a warning is logged.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		slog.Warn("memory store using default dev credentials, set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.MinCost)
		if err != nil {
			panic(fmt.Sprintf("hash seed password for %s: %v", u.username, err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty store with the seed users only.
func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		inventory:       map[string]map[string]int{},
		salesByID:       make(map[string]*domain.Sale),
		salesByIdem:     make(map[string]*domain.Sale),
		receiptSeq:      make(map[string]int),
		reports:         make(map[string]domain.DailyReport),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// NewSeeded returns a store stocked with a small hardware catalogue for
// main-store.
func NewSeeded() *Store {
	s := New()
	seed := []struct {
		id, name, barcode, sku, brand, price string
		stock                                int
	}{
		{"prod-hammer", "Claw Hammer 16oz", "0012345000011", "HAM-16", "Stanley", "18.50", 24},
		{"prod-screwdriver", "Screwdriver Set 6pc", "0012345000028", "SCR-06", "Bosch", "12.99", 40},
		{"prod-screw-box", "Wood Screws 4x40 (200)", "0012345000035", "WS-440", "Spax", "7.25", 120},
		{"prod-nails", "Galvanized Nails 1kg", "0012345000042", "NAIL-1K", "Generic", "4.10", 80},
		{"prod-tape", "Measuring Tape 5m", "0012345000059", "TAPE-5M", "Stanley", "9.95", 30},
		{"prod-drill", "Cordless Drill 18V", "0012345000066", "DRL-18V", "Makita", "129.00", 6},
		{"prod-gloves", "Work Gloves L", "0012345000073", "GLV-L", "Ansell", "5.50", 60},
		{"prod-glue", "Wood Glue 250ml", "0012345000080", "GLUE-250", "Titebond", "6.75", 3},
	}
	stock := map[string]int{}
	for _, p := range seed {
		s.products[p.id] = domain.Product{
			ID:           p.id,
			Name:         p.name,
			Barcode:      p.barcode,
			SKU:          p.sku,
			Brand:        p.brand,
			SellingPrice: decimal.RequireFromString(p.price),
		}
		stock[p.id] = p.stock
	}
	s.inventory["main-store"] = stock
	return s
}

func (s *Store) withStock(storeID string, p domain.Product) domain.Product {
	if qty, ok := s.inventory[storeID][p.ID]; ok {
		p.TotalStock = &qty
	} else {
		p.TotalStock = nil
	}
	return p
}

func (s *Store) ListProducts(_ context.Context, storeID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, s.withStock(storeID, p))
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, storeID string, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = s.withStock(storeID, p)
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, storeID string, product domain.Product, initialStock int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.SKU == "" || product.SellingPrice.IsNegative() || initialStock < 0 {
		return nil, store.ErrInvalidTransaction
	}
	for _, existing := range s.products {
		if strings.EqualFold(existing.SKU, product.SKU) {
			return nil, fmt.Errorf("%w: sku %s already exists", store.ErrConflict, product.SKU)
		}
		if product.Barcode != "" && existing.Barcode == product.Barcode {
			return nil, fmt.Errorf("%w: barcode %s already exists", store.ErrConflict, product.Barcode)
		}
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	product.TotalStock = nil
	s.products[product.ID] = product
	if s.inventory[storeID] == nil {
		s.inventory[storeID] = map[string]int{}
	}
	s.inventory[storeID][product.ID] = initialStock

	created := s.withStock(storeID, product)
	return &created, nil
}

func idemKey(storeID, key string) string {
	return storeID + "|" + key
}

func (s *Store) FindSaleByIdempotency(_ context.Context, storeID string, key string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByIdem[idemKey(storeID, key)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) FindSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, allowNegative bool) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.IdempotencyKey == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	if existing, ok := s.salesByIdem[idemKey(sale.StoreID, sale.IdempotencyKey)]; ok {
		return cloneSale(existing), nil
	}

	storeStock, ok := s.inventory[sale.StoreID]
	if !ok {
		return nil, fmt.Errorf("%w: store %s unavailable", store.ErrInvalidTransaction, sale.StoreID)
	}

	requested := map[string]int{}
	total := decimal.Zero
	items := make([]domain.SaleLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 || item.UnitPrice.IsNegative() {
			return nil, store.ErrInvalidTransaction
		}
		product, exists := s.products[item.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s unavailable", store.ErrInvalidTransaction, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
		item.ProductName = product.Name
		items = append(items, item)
		total = total.Add(money.Line(item.Quantity, item.UnitPrice))
	}
	if !allowNegative {
		for id, qty := range requested {
			if storeStock[id]-qty < 0 {
				return nil, fmt.Errorf("%w: product %s", store.ErrInsufficientStock, id)
			}
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = s.now()
	}
	seqKey := sale.StoreID + "|" + sale.CreatedAt.UTC().Format("2006-01-02")
	s.receiptSeq[seqKey]++
	sale.ReceiptNumber = store.ReceiptNumber(sale.CreatedAt, s.receiptSeq[seqKey])
	sale.Items = items
	sale.Total = money.Round(total)

	for id, qty := range requested {
		storeStock[id] -= qty
	}

	saved := cloneSale(&sale)
	s.salesByID[sale.ID] = saved
	s.salesByIdem[idemKey(sale.StoreID, sale.IdempotencyKey)] = saved
	return cloneSale(saved), nil
}

func (s *Store) ListSales(_ context.Context, storeID string, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if storeID != "" && sale.StoreID != storeID {
			continue
		}
		result = append(result, *cloneSale(sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ReceiptNumber, a.ReceiptNumber)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateRefund(_ context.Context, refund domain.Refund) (*domain.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[refund.SaleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !refund.Amount.IsPositive() {
		return nil, store.ErrInvalidTransaction
	}
	refundedSoFar := decimal.Zero
	for _, existing := range s.refunds {
		if existing.SaleID == refund.SaleID {
			refundedSoFar = refundedSoFar.Add(existing.Amount)
		}
	}
	if refundedSoFar.Add(refund.Amount).GreaterThan(sale.Total) {
		return nil, store.ErrInvalidTransaction
	}

	if refund.ID == "" {
		refund.ID = xid.New("refund")
	}
	if refund.CreatedAt.IsZero() {
		refund.CreatedAt = s.now()
	}
	refund.StoreID = sale.StoreID
	refund.Amount = money.Round(refund.Amount)
	s.refunds = append(s.refunds, refund)
	return &refund, nil
}

func (s *Store) GetDaySummary(_ context.Context, storeID string, from time.Time, to time.Time) (domain.DaySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.DaySummary{
		StoreID:        storeID,
		Date:           from.UTC().Format("2006-01-02"),
		GrossCashSales: decimal.Zero,
		CardSales:      decimal.Zero,
		TotalRefunds:   decimal.Zero,
	}
	for _, sale := range s.salesByID {
		if sale.StoreID != storeID || !inRange(sale.CreatedAt, from, to) {
			continue
		}
		summary.SaleCount++
		if sale.PaymentMethod == domain.PaymentCash {
			summary.GrossCashSales = summary.GrossCashSales.Add(sale.Total)
		} else {
			summary.CardSales = summary.CardSales.Add(sale.Total)
		}
	}
	for _, refund := range s.refunds {
		if refund.StoreID != storeID || !inRange(refund.CreatedAt, from, to) {
			continue
		}
		summary.TotalRefunds = summary.TotalRefunds.Add(refund.Amount)
	}
	return summary, nil
}

func (s *Store) GetSalesTrend(_ context.Context, storeID string, from time.Time, to time.Time) ([]domain.SalesTrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := make([]domain.SalesTrendPoint, 0, 8)
	index := map[string]int{}
	for day, _ := store.DayBounds(from); day.Before(to); day = day.Add(24 * time.Hour) {
		key := day.Format("2006-01-02")
		index[key] = len(points)
		points = append(points, domain.SalesTrendPoint{Date: key, Total: decimal.Zero})
	}
	for _, sale := range s.salesByID {
		if sale.StoreID != storeID || !inRange(sale.CreatedAt, from, to) {
			continue
		}
		i, ok := index[sale.CreatedAt.UTC().Format("2006-01-02")]
		if !ok {
			continue
		}
		points[i].Total = points[i].Total.Add(sale.Total)
		points[i].SaleCount++
	}
	return points, nil
}

func (s *Store) GetTopProducts(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.TopProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProduct := map[string]*domain.TopProduct{}
	for _, sale := range s.salesByID {
		if sale.StoreID != storeID || !inRange(sale.CreatedAt, from, to) {
			continue
		}
		for _, item := range sale.Items {
			entry := byProduct[item.ProductID]
			if entry == nil {
				entry = &domain.TopProduct{ProductID: item.ProductID, Name: item.ProductName, Revenue: decimal.Zero}
				byProduct[item.ProductID] = entry
			}
			entry.Quantity += int64(item.Quantity)
			entry.Revenue = entry.Revenue.Add(money.Line(item.Quantity, item.UnitPrice))
		}
	}

	result := make([]domain.TopProduct, 0, len(byProduct))
	for _, entry := range byProduct {
		result = append(result, *entry)
	}
	slices.SortFunc(result, func(a, b domain.TopProduct) int {
		if a.Quantity != b.Quantity {
			if a.Quantity > b.Quantity {
				return -1
			}
			return 1
		}
		return cmpString(a.Name, b.Name)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListStockLevels(_ context.Context, storeID string, threshold int) ([]domain.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockLevel, 0, 16)
	for id, qty := range s.inventory[storeID] {
		if qty > threshold {
			continue
		}
		p := s.products[id]
		result = append(result, domain.StockLevel{ProductID: id, Name: p.Name, SKU: p.SKU, TotalStock: qty})
	}
	slices.SortFunc(result, func(a, b domain.StockLevel) int {
		if a.TotalStock != b.TotalStock {
			return a.TotalStock - b.TotalStock
		}
		return cmpString(a.Name, b.Name)
	})
	return result, nil
}

func reportKey(storeID, date string) string {
	return storeID + "|" + date
}

func (s *Store) GetDailyReport(_ context.Context, storeID string, date string) (*domain.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[reportKey(storeID, date)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &report, nil
}

func (s *Store) CreateDailyReport(_ context.Context, report domain.DailyReport) (*domain.DailyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.StoreID == "" || report.Date == "" {
		return nil, store.ErrInvalidTransaction
	}
	key := reportKey(report.StoreID, report.Date)
	if _, exists := s.reports[key]; exists {
		return nil, store.ErrConflict
	}
	if report.ID == "" {
		report.ID = xid.New("report")
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = s.now()
	}
	s.reports[key] = report
	return &report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if storeID != "" && entry.StoreID != storeID {
			continue
		}
		if !inRange(entry.CreatedAt, from, to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Items = append([]domain.SaleLine(nil), src.Items...)
	return &dst
}
