package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the register's read-only view of an inventory item. TotalStock is
// nil when the backend did not report a level.
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Barcode      string          `json:"barcode,omitempty"`
	SKU          string          `json:"sku"`
	Brand        string          `json:"brand,omitempty"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	TotalStock   *int            `json:"totalStock"`
}

// Stock returns the reported stock level, or 0 when none was reported.
func (p Product) Stock() int {
	if p.TotalStock == nil {
		return 0
	}
	return *p.TotalStock
}

type ProductCreateRequest struct {
	StoreID      string          `json:"storeId,omitempty"`
	Name         string          `json:"name" validate:"required,max=200"`
	Barcode      string          `json:"barcode,omitempty" validate:"max=64"`
	SKU          string          `json:"sku" validate:"required,max=64"`
	Brand        string          `json:"brand,omitempty" validate:"max=120"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	InitialStock int             `json:"initialStock" validate:"gte=0"`
}

type SaleItemInput struct {
	ProductID string          `json:"productId" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// SaleCreateRequest is the body of a sale submission. IdempotencyKey travels in
// the Idempotency-Key header.
type SaleCreateRequest struct {
	StoreID        string          `json:"storeId,omitempty"`
	PaymentMethod  string          `json:"paymentMethod" validate:"required,oneof=cash card"`
	Notes          string          `json:"notes,omitempty" validate:"max=500"`
	Items          []SaleItemInput `json:"items" validate:"required,min=1,dive"`
	StockOverride  bool            `json:"stockOverride,omitempty"`
	IdempotencyKey string          `json:"-"`
}

type SaleCreateBody struct {
	Input SaleCreateRequest `json:"input"`
}

type SaleReceipt struct {
	SaleID        string          `json:"saleId"`
	ReceiptNumber string          `json:"receiptNumber"`
	PaymentMethod string          `json:"paymentMethod"`
	Total         decimal.Decimal `json:"total"`
	ItemCount     int             `json:"itemCount"`
	Duplicate     bool            `json:"duplicate"`
	CreatedAt     string          `json:"createdAt"`
}

type SaleLine struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type Sale struct {
	ID              string          `json:"id"`
	StoreID         string          `json:"storeId"`
	ReceiptNumber   string          `json:"receiptNumber"`
	IdempotencyKey  string          `json:"-"`
	PaymentMethod   string          `json:"paymentMethod"`
	Notes           string          `json:"notes,omitempty"`
	Total           decimal.Decimal `json:"total"`
	StockOverride   bool            `json:"stockOverride"`
	CashierUsername string          `json:"cashierUsername"`
	CreatedAt       time.Time       `json:"createdAt"`
	Items           []SaleLine      `json:"items"`
}

type SaleHistoryResponse struct {
	Sales []Sale `json:"sales"`
}

type RefundRequest struct {
	SaleID     string          `json:"saleId" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason" validate:"max=300"`
	ManagerPIN string          `json:"managerPin"`
}

type Refund struct {
	ID        string          `json:"id"`
	SaleID    string          `json:"saleId"`
	StoreID   string          `json:"storeId"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"createdAt"`
}

// DaySummary holds the totals a day close reconciles against. Refunds are
// always settled in cash.
type DaySummary struct {
	StoreID        string          `json:"storeId"`
	Date           string          `json:"date"`
	GrossCashSales decimal.Decimal `json:"grossCashSales"`
	CardSales      decimal.Decimal `json:"cardSales"`
	TotalRefunds   decimal.Decimal `json:"totalRefunds"`
	SaleCount      int64           `json:"saleCount"`
}

type DailyReportRequest struct {
	StoreID        string          `json:"storeId,omitempty"`
	CashCounted    decimal.Decimal `json:"cashCounted"`
	Notes          string          `json:"notes,omitempty" validate:"max=1000"`
	IdempotencyKey string          `json:"-"`
}

type DailyReportBody struct {
	Input DailyReportRequest `json:"input"`
}

type DailyReport struct {
	ID                 string          `json:"id"`
	StoreID            string          `json:"storeId"`
	Date               string          `json:"date"`
	IdempotencyKey     string          `json:"-"`
	GrossCashSales     decimal.Decimal `json:"grossCashSales"`
	CardSales          decimal.Decimal `json:"cardSales"`
	TotalRefunds       decimal.Decimal `json:"totalRefunds"`
	NetExpectedCash    decimal.Decimal `json:"netExpectedCash"`
	TotalGrossSales    decimal.Decimal `json:"totalGrossSales"`
	CashCounted        decimal.Decimal `json:"cashCounted"`
	Variance           decimal.Decimal `json:"variance"`
	VariancePercentage decimal.Decimal `json:"variancePercentage"`
	Severity           string          `json:"severity"`
	Notes              string          `json:"notes,omitempty"`
	ClosedBy           string          `json:"closedBy"`
	CreatedAt          time.Time       `json:"createdAt"`
}

type SalesTrendPoint struct {
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
	SaleCount int64           `json:"saleCount"`
}

type SalesTrendResponse struct {
	Points []SalesTrendPoint `json:"points"`
}

type TopProduct struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type TopProductsResponse struct {
	Date     string       `json:"date"`
	Products []TopProduct `json:"products"`
}

type StockLevel struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	TotalStock int    `json:"totalStock"`
}

type StockLevelsResponse struct {
	Threshold int          `json:"threshold"`
	Items     []StockLevel `json:"items"`
}

// Dashboard is the manager's landing view for one store and day.
type Dashboard struct {
	Summary     DaySummary        `json:"summary"`
	Trend       []SalesTrendPoint `json:"trend"`
	TopProducts []TopProduct      `json:"topProducts"`
	LowStock    []StockLevel      `json:"lowStock"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	PaymentCash = "cash"
	PaymentCard = "card"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// Cached views that depend on sales data.
const (
	ViewTodayPulse    = "today_pulse"
	ViewSalesTrend    = "sales_trend"
	ViewTopProducts   = "top_products"
	ViewStockLevels   = "stock_levels"
	ViewSalesHistory  = "sales_history"
	ViewProductSearch = "product_search"
)

// SaleViews lists every view a recorded sale makes stale.
var SaleViews = []string{
	ViewTodayPulse,
	ViewSalesTrend,
	ViewTopProducts,
	ViewStockLevels,
	ViewSalesHistory,
}
