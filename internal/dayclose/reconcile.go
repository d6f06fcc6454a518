// Package dayclose reconciles the counted cash drawer against the day's
// recorded sales and drives the close-day wizard.
package dayclose

import (
	"github.com/shopspring/decimal"

	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/money"
)

type Severity string

const (
	SeverityBalanced Severity = "balanced"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

var (
	balancedThreshold = decimal.NewFromInt(1)
	highPercentage    = decimal.NewFromInt(5)
)

// Totals are the day's figures as recorded by the backend. Refunds are paid
// out of the cash drawer.
type Totals struct {
	GrossCashSales decimal.Decimal `json:"grossCashSales"`
	CardSales      decimal.Decimal `json:"cardSales"`
	TotalRefunds   decimal.Decimal `json:"totalRefunds"`
}

func TotalsFromSummary(s domain.DaySummary) Totals {
	return Totals{GrossCashSales: s.GrossCashSales, CardSales: s.CardSales, TotalRefunds: s.TotalRefunds}
}

type Reconciliation struct {
	Totals
	NetExpectedCash    decimal.Decimal `json:"netExpectedCash"`
	TotalGrossSales    decimal.Decimal `json:"totalGrossSales"`
	CashCounted        decimal.Decimal `json:"cashCounted"`
	Variance           decimal.Decimal `json:"variance"`
	VariancePercentage decimal.Decimal `json:"variancePercentage"`
	Severity           Severity        `json:"severity"`
	// RefundsExceedCash flags a day where refunds paid out more than cash
	// taken in. It is shown to the operator but does not block the close.
	RefundsExceedCash bool `json:"refundsExceedCash"`
}

// Reconcile computes the drawer variance for a counted amount.
func Reconcile(t Totals, cashCounted decimal.Decimal) Reconciliation {
	net := t.GrossCashSales.Sub(t.TotalRefunds)
	variance := cashCounted.Sub(net)

	pct := decimal.Zero
	if net.IsPositive() {
		pct = variance.Abs().Div(net).Mul(money.Hundred)
	}

	return Reconciliation{
		Totals:             t,
		NetExpectedCash:    net,
		TotalGrossSales:    t.GrossCashSales.Add(t.CardSales),
		CashCounted:        cashCounted,
		Variance:           variance,
		VariancePercentage: money.Round(pct),
		Severity:           severityFor(variance, pct),
		RefundsExceedCash:  net.IsNegative(),
	}
}

func severityFor(variance, pct decimal.Decimal) Severity {
	switch {
	case variance.Abs().LessThan(balancedThreshold):
		return SeverityBalanced
	case pct.GreaterThan(highPercentage):
		return SeverityHigh
	default:
		return SeverityModerate
	}
}
