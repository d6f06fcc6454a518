package cart

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/oguz-kara/pos-app-sub001/internal/money"
)

var (
	ErrTargetNotPositive  = errors.New("target must be positive")
	ErrTargetExceedsTotal = errors.New("target cannot exceed current total")
)

var half = decimal.NewFromFloat(0.5)

// Allocation is the outcome of spreading a target total across cart lines.
type Allocation struct {
	Lines []Line
	// Warn is set when the discount takes off more than half the original total.
	Warn bool
}

// ValidateDiscountTarget checks 0 < target <= current.
func ValidateDiscountTarget(current, target decimal.Decimal) error {
	if !target.IsPositive() {
		return ErrTargetNotPositive
	}
	if target.GreaterThan(current) {
		return ErrTargetExceedsTotal
	}
	return nil
}

// AllocateDiscount rescales every unit price by target/current. Prices are
// rounded to cents and the rounding residual lands on the line with the
// smallest quantity, so the new total equals target exactly when that line has
// quantity 1 and within half a cent per unit otherwise. Quantities never
// change and lines is not modified.
func AllocateDiscount(lines []Line, target decimal.Decimal) Allocation {
	out := cloneLines(lines)
	current := Total(lines)
	if current.IsZero() || len(out) == 0 {
		return Allocation{Lines: out}
	}

	scale := target.Div(current)
	for i := range out {
		out[i].UnitPrice = money.Round(out[i].UnitPrice.Mul(scale))
	}

	// The smallest-quantity line takes the residual. If that would push its
	// price below zero it floors at zero and the next line takes the rest.
	residual := target.Sub(Total(out))
	for _, i := range byQuantity(out) {
		if residual.IsZero() {
			break
		}
		if out[i].Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(out[i].Quantity))
		adjusted := money.Round(out[i].UnitPrice.Add(residual.Div(qty)))
		clamped := adjusted.IsNegative()
		if clamped {
			adjusted = decimal.Zero
		}
		residual = residual.Sub(adjusted.Sub(out[i].UnitPrice).Mul(qty))
		out[i].UnitPrice = adjusted
		if !clamped {
			break
		}
	}

	return Allocation{
		Lines: out,
		Warn:  current.Sub(target).GreaterThan(current.Mul(half)),
	}
}

func byQuantity(lines []Line) []int {
	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lines[order[a]].Quantity < lines[order[b]].Quantity
	})
	return order
}
