package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStock(t *testing.T) {
	lines := []Line{
		{Product: product("plenty", "1", intPtr(10)), Quantity: 3},
		{Product: product("short", "1", intPtr(2)), Quantity: 5},
		{Product: product("unknown", "1", nil), Quantity: 1},
		{Product: product("fresh", "1", intPtr(0)), Quantity: 4},
		{Product: product("exact", "1", intPtr(4)), Quantity: 4},
	}
	issues := CheckStock(lines, map[string]int{"fresh": 9})

	require.Len(t, issues, 2)
	assert.Equal(t, "short", issues[0].Product.ID)
	assert.Equal(t, 5, issues[0].RequestedQty)
	assert.Equal(t, 2, issues[0].AvailableStock)
	assert.Equal(t, 3, issues[0].Shortage)
	assert.Equal(t, "unknown", issues[1].Product.ID)
	assert.Equal(t, 0, issues[1].AvailableStock)
	assert.Equal(t, 1, issues[1].Shortage)
}

func TestCheckStockNegativeLevel(t *testing.T) {
	issues := CheckStock([]Line{{Product: product("oversold", "1", intPtr(-2)), Quantity: 1}}, nil)
	require.Len(t, issues, 1)
	assert.Equal(t, 3, issues[0].Shortage)
}

func TestCheckStockNoIssues(t *testing.T) {
	assert.Empty(t, CheckStock([]Line{{Product: product("a", "1", intPtr(1)), Quantity: 1}}, nil))
	assert.Empty(t, CheckStock(nil, nil))
}
