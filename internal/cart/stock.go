package cart

import "github.com/oguz-kara/pos-app-sub001/internal/domain"

// StockIssue describes a line asking for more units than are known to exist.
type StockIssue struct {
	Product        domain.Product `json:"product"`
	RequestedQty   int            `json:"requestedQty"`
	AvailableStock int            `json:"availableStock"`
	Shortage       int            `json:"shortage"`
}

// CheckStock returns one issue per line whose quantity exceeds available
// stock, in cart order. fresh overrides the stock carried on each product; a
// product with no known level counts as zero.
func CheckStock(lines []Line, fresh map[string]int) []StockIssue {
	var issues []StockIssue
	for _, line := range lines {
		available, ok := fresh[line.Product.ID]
		if !ok {
			available = line.Product.Stock()
		}
		if line.Quantity > available {
			issues = append(issues, StockIssue{
				Product:        line.Product,
				RequestedQty:   line.Quantity,
				AvailableStock: available,
				Shortage:       line.Quantity - available,
			})
		}
	}
	return issues
}
