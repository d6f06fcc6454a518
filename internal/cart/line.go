package cart

import (
	"github.com/shopspring/decimal"

	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/money"
)

// Line is one product entry in the cart. UnitPrice starts at the product's
// selling price and diverges when a discount is applied.
type Line struct {
	Product   domain.Product  `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func (l Line) Subtotal() decimal.Decimal {
	return money.Line(l.Quantity, l.UnitPrice)
}

// Total sums quantity × unit price over lines.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

func cloneLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
