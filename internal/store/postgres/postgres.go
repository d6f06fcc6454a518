package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/money"
	"github.com/oguz-kara/pos-app-sub001/internal/store"
	"github.com/oguz-kara/pos-app-sub001/internal/xid"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const productColumns = `p.id, p.name, COALESCE(p.barcode, ''), p.sku, p.brand, p.selling_price, st.qty`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	var qty sql.NullInt64
	if err := row.Scan(&p.ID, &p.Name, &p.Barcode, &p.SKU, &p.Brand, &p.SellingPrice, &qty); err != nil {
		return domain.Product{}, err
	}
	if qty.Valid {
		v := int(qty.Int64)
		p.TotalStock = &v
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN inventory_stocks st ON st.product_id = p.id AND st.store_id = $1
		ORDER BY p.name
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, storeID string, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN inventory_stocks st ON st.product_id = p.id AND st.store_id = $1
		WHERE p.id = ANY($2)
	`, storeID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, storeID string, product domain.Product, initialStock int) (*domain.Product, error) {
	if product.Name == "" || product.SKU == "" || product.SellingPrice.IsNegative() || initialStock < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, name, barcode, sku, brand, selling_price, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
	`, product.ID, product.Name, nullIfEmpty(product.Barcode), product.SKU, product.Brand, product.SellingPrice)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: sku or barcode already exists", store.ErrConflict)
		}
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory_stocks (store_id, product_id, qty, updated_at)
		VALUES ($1,$2,$3,now())
	`, storeID, product.ID, initialStock)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	product.TotalStock = &initialStock
	return &product, nil
}

func (s *Store) FindSaleByIdempotency(ctx context.Context, storeID string, key string) (*domain.Sale, error) {
	return s.findSale(ctx, "store_id = $1 AND idempotency_key = $2", storeID, key)
}

func (s *Store) FindSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	return s.findSale(ctx, "id = $1", id)
}

func (s *Store) findSale(ctx context.Context, where string, args ...any) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, receipt_number, idempotency_key, payment_method, notes, total,
			stock_override, cashier_username, created_at
		FROM sales
		WHERE `+where, args...).Scan(
		&sale.ID, &sale.StoreID, &sale.ReceiptNumber, &sale.IdempotencyKey, &sale.PaymentMethod, &sale.Notes,
		&sale.Total, &sale.StockOverride, &sale.CashierUsername, &sale.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	lines, err := s.saleLines(ctx, s.db, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = lines[sale.ID]
	return &sale, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) saleLines(ctx context.Context, q queryer, saleIDs []string) (map[string][]domain.SaleLine, error) {
	result := make(map[string][]domain.SaleLine, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}
	rows, err := q.QueryContext(ctx, `
		SELECT sale_id, product_id, product_name, quantity, unit_price
		FROM sale_lines
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_no
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID string
		var line domain.SaleLine
		if err := rows.Scan(&saleID, &line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, err
		}
		result[saleID] = append(result[saleID], line)
	}
	return result, rows.Err()
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, allowNegative bool) (*domain.Sale, error) {
	if sale.IdempotencyKey == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidTransaction
	}
	if existing, err := s.FindSaleByIdempotency(ctx, sale.StoreID, sale.IdempotencyKey); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	requested := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 || item.UnitPrice.IsNegative() || item.ProductID == "" {
			return nil, store.ErrInvalidTransaction
		}
		requested[item.ProductID] += item.Quantity
	}
	ids := sortedKeys(requested)

	// Product rows are the per-item lock; stock is read after the locks are held.
	names, err := lockProducts(ctx, pgTx, ids)
	if err != nil {
		return nil, err
	}
	stock, err := stockLevels(ctx, pgTx, sale.StoreID, ids)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for i := range sale.Items {
		name, ok := names[sale.Items[i].ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s unavailable", store.ErrInvalidTransaction, sale.Items[i].ProductID)
		}
		sale.Items[i].ProductName = name
		total = total.Add(money.Line(sale.Items[i].Quantity, sale.Items[i].UnitPrice))
	}
	if !allowNegative {
		for _, id := range ids {
			if stock[id]-requested[id] < 0 {
				return nil, fmt.Errorf("%w: product %s", store.ErrInsufficientStock, id)
			}
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.Total = money.Round(total)

	var seq int
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO receipt_counters (store_id, day, last_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (store_id, day) DO UPDATE SET last_seq = receipt_counters.last_seq + 1
		RETURNING last_seq
	`, sale.StoreID, dayOf(sale.CreatedAt)).Scan(&seq)
	if err != nil {
		return nil, err
	}
	sale.ReceiptNumber = store.ReceiptNumber(sale.CreatedAt, seq)

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, store_id, receipt_number, idempotency_key, payment_method, notes, total,
			stock_override, cashier_username, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, sale.ID, sale.StoreID, sale.ReceiptNumber, sale.IdempotencyKey, sale.PaymentMethod, sale.Notes, sale.Total,
		sale.StockOverride, sale.CashierUsername, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			_ = pgTx.Rollback()
			return s.FindSaleByIdempotency(ctx, sale.StoreID, sale.IdempotencyKey)
		}
		return nil, err
	}

	for i, item := range sale.Items {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, line_no, product_id, product_name, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, i+1, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice)
		if err != nil {
			return nil, err
		}
	}
	for _, id := range ids {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO inventory_stocks (store_id, product_id, qty, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (store_id, product_id)
			DO UPDATE SET qty = inventory_stocks.qty - $4, updated_at = now()
		`, sale.StoreID, id, -requested[id], requested[id])
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

func lockProducts(ctx context.Context, pgTx *sql.Tx, ids []string) (map[string]string, error) {
	rows, err := pgTx.QueryContext(ctx, `
		SELECT id, name
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]string, len(ids))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func stockLevels(ctx context.Context, pgTx *sql.Tx, storeID string, ids []string) (map[string]int, error) {
	rows, err := pgTx.QueryContext(ctx, `
		SELECT product_id, qty
		FROM inventory_stocks
		WHERE store_id = $1 AND product_id = ANY($2)
	`, storeID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stock := make(map[string]int, len(ids))
	for rows.Next() {
		var id string
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		stock[id] = qty
	}
	return stock, rows.Err()
}

func (s *Store) ListSales(ctx context.Context, storeID string, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, receipt_number, idempotency_key, payment_method, notes, total,
			stock_override, cashier_username, created_at
		FROM sales
		WHERE store_id = $1
		ORDER BY created_at DESC, receipt_number DESC
		LIMIT $2
	`, storeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.StoreID, &sale.ReceiptNumber, &sale.IdempotencyKey, &sale.PaymentMethod,
			&sale.Notes, &sale.Total, &sale.StockOverride, &sale.CashierUsername, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := s.saleLines(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = lines[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) CreateRefund(ctx context.Context, refund domain.Refund) (*domain.Refund, error) {
	if !refund.Amount.IsPositive() {
		return nil, store.ErrInvalidTransaction
	}
	if refund.ID == "" {
		refund.ID = xid.New("refund")
	}
	if refund.CreatedAt.IsZero() {
		refund.CreatedAt = time.Now().UTC()
	}
	refund.Amount = money.Round(refund.Amount)

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var total decimal.Decimal
	err = pgTx.QueryRowContext(ctx, `
		SELECT store_id, total FROM sales WHERE id = $1 FOR UPDATE
	`, refund.SaleID).Scan(&refund.StoreID, &total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var refunded decimal.Decimal
	err = pgTx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE sale_id = $1
	`, refund.SaleID).Scan(&refunded)
	if err != nil {
		return nil, err
	}
	if refunded.Add(refund.Amount).GreaterThan(total) {
		return nil, store.ErrInvalidTransaction
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO refunds (id, sale_id, store_id, amount, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, refund.ID, refund.SaleID, refund.StoreID, refund.Amount, refund.Reason, refund.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (s *Store) GetDaySummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.DaySummary, error) {
	summary := domain.DaySummary{StoreID: storeID, Date: from.UTC().Format("2006-01-02")}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(total) FILTER (WHERE payment_method = 'cash'), 0),
			COALESCE(SUM(total) FILTER (WHERE payment_method = 'card'), 0),
			COUNT(*)
		FROM sales
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
	`, storeID, from, to).Scan(&summary.GrossCashSales, &summary.CardSales, &summary.SaleCount)
	if err != nil {
		return domain.DaySummary{}, err
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM refunds
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
	`, storeID, from, to).Scan(&summary.TotalRefunds)
	if err != nil {
		return domain.DaySummary{}, err
	}
	return summary, nil
}

func (s *Store) GetSalesTrend(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.SalesTrendPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char((created_at AT TIME ZONE 'UTC')::date, 'YYYY-MM-DD') AS day, SUM(total), COUNT(*)
		FROM sales
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY day
	`, storeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDay := map[string]domain.SalesTrendPoint{}
	for rows.Next() {
		var point domain.SalesTrendPoint
		if err := rows.Scan(&point.Date, &point.Total, &point.SaleCount); err != nil {
			return nil, err
		}
		byDay[point.Date] = point
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	points := make([]domain.SalesTrendPoint, 0, len(byDay))
	for day := dayOf(from); day.Before(to); day = day.Add(24 * time.Hour) {
		key := day.Format("2006-01-02")
		point, ok := byDay[key]
		if !ok {
			point = domain.SalesTrendPoint{Date: key, Total: decimal.Zero}
		}
		points = append(points, point)
	}
	return points, nil
}

func (s *Store) GetTopProducts(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.TopProduct, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.product_id, MIN(l.product_name), SUM(l.quantity), SUM(l.quantity * l.unit_price)
		FROM sale_lines l
		JOIN sales s ON s.id = l.sale_id
		WHERE s.store_id = $1 AND s.created_at >= $2 AND s.created_at < $3
		GROUP BY l.product_id
		ORDER BY SUM(l.quantity) DESC, MIN(l.product_name) ASC
		LIMIT $4
	`, storeID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.TopProduct, 0, limit)
	for rows.Next() {
		var entry domain.TopProduct
		if err := rows.Scan(&entry.ProductID, &entry.Name, &entry.Quantity, &entry.Revenue); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (s *Store) ListStockLevels(ctx context.Context, storeID string, threshold int) ([]domain.StockLevel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.sku, st.qty
		FROM inventory_stocks st
		JOIN products p ON p.id = st.product_id
		WHERE st.store_id = $1 AND st.qty <= $2
		ORDER BY st.qty ASC, p.name ASC
	`, storeID, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.StockLevel, 0, 16)
	for rows.Next() {
		var level domain.StockLevel
		if err := rows.Scan(&level.ProductID, &level.Name, &level.SKU, &level.TotalStock); err != nil {
			return nil, err
		}
		result = append(result, level)
	}
	return result, rows.Err()
}

func (s *Store) GetDailyReport(ctx context.Context, storeID string, date string) (*domain.DailyReport, error) {
	var report domain.DailyReport
	var reportDate time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, report_date, idempotency_key, gross_cash_sales, card_sales, total_refunds,
			net_expected_cash, total_gross_sales, cash_counted, variance, variance_percentage,
			severity, notes, closed_by, created_at
		FROM daily_reports
		WHERE store_id = $1 AND report_date = $2
	`, storeID, date).Scan(
		&report.ID, &report.StoreID, &reportDate, &report.IdempotencyKey, &report.GrossCashSales, &report.CardSales,
		&report.TotalRefunds, &report.NetExpectedCash, &report.TotalGrossSales, &report.CashCounted, &report.Variance,
		&report.VariancePercentage, &report.Severity, &report.Notes, &report.ClosedBy, &report.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	report.Date = reportDate.UTC().Format("2006-01-02")
	report.CreatedAt = report.CreatedAt.UTC()
	return &report, nil
}

func (s *Store) CreateDailyReport(ctx context.Context, report domain.DailyReport) (*domain.DailyReport, error) {
	if report.StoreID == "" || report.Date == "" {
		return nil, store.ErrInvalidTransaction
	}
	if report.ID == "" {
		report.ID = xid.New("report")
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_reports (
			id, store_id, report_date, idempotency_key, gross_cash_sales, card_sales, total_refunds,
			net_expected_cash, total_gross_sales, cash_counted, variance, variance_percentage,
			severity, notes, closed_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, report.ID, report.StoreID, report.Date, report.IdempotencyKey, report.GrossCashSales, report.CardSales,
		report.TotalRefunds, report.NetExpectedCash, report.TotalGrossSales, report.CashCounted, report.Variance,
		report.VariancePercentage, report.Severity, report.Notes, report.ClosedBy, report.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.StoreID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE store_id = $1
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, storeID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, true, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func dayOf(t time.Time) time.Time {
	start, _ := store.DayBounds(t)
	return start
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
