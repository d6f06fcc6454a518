package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oguz-kara/pos-app-sub001/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrConflict           = errors.New("conflict")
)

// Repository is the persistence boundary of the sales backend. Every time
// range is half-open [from, to).
type Repository interface {
	ListProducts(ctx context.Context, storeID string) ([]domain.Product, error)
	GetProductsByIDs(ctx context.Context, storeID string, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, storeID string, product domain.Product, initialStock int) (*domain.Product, error)

	FindSaleByIdempotency(ctx context.Context, storeID string, key string) (*domain.Sale, error)
	FindSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	// CreateSale assigns the receipt number and decrements stock in one step.
	// Without allowNegative a line that would take stock below zero fails the
	// whole sale with ErrInsufficientStock.
	CreateSale(ctx context.Context, sale domain.Sale, allowNegative bool) (*domain.Sale, error)
	ListSales(ctx context.Context, storeID string, limit int) ([]domain.Sale, error)
	CreateRefund(ctx context.Context, refund domain.Refund) (*domain.Refund, error)

	GetDaySummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.DaySummary, error)
	GetSalesTrend(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.SalesTrendPoint, error)
	GetTopProducts(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.TopProduct, error)
	ListStockLevels(ctx context.Context, storeID string, threshold int) ([]domain.StockLevel, error)

	GetDailyReport(ctx context.Context, storeID string, date string) (*domain.DailyReport, error)
	// CreateDailyReport fails with ErrConflict when the store already has a
	// report for that date.
	CreateDailyReport(ctx context.Context, report domain.DailyReport) (*domain.DailyReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// ReceiptNumber formats the per-store, per-day sequence, e.g. R-20261019-0007.
func ReceiptNumber(day time.Time, seq int) string {
	return fmt.Sprintf("R-%s-%04d", day.UTC().Format("20060102"), seq)
}

// DayBounds returns the UTC day containing t as [start, end).
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
