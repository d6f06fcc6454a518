package cart

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDiscountTarget(t *testing.T) {
	current := decimal.NewFromInt(100)
	assert.ErrorIs(t, ValidateDiscountTarget(current, decimal.Zero), ErrTargetNotPositive)
	assert.ErrorIs(t, ValidateDiscountTarget(current, decimal.NewFromInt(-5)), ErrTargetNotPositive)
	assert.ErrorIs(t, ValidateDiscountTarget(current, decimal.RequireFromString("100.01")), ErrTargetExceedsTotal)
	assert.NoError(t, ValidateDiscountTarget(current, current))
	assert.Equal(t, "target cannot exceed current total", ErrTargetExceedsTotal.Error())
}

func TestAllocateDiscountAbsorbsResidualOnSmallestQuantity(t *testing.T) {
	lines := []Line{
		{Product: product("a", "3.33", nil), Quantity: 3, UnitPrice: decimal.RequireFromString("3.33")},
		{Product: product("b", "1.00", nil), Quantity: 1, UnitPrice: decimal.RequireFromString("1.00")},
	}
	alloc := AllocateDiscount(lines, decimal.RequireFromString("7.00"))

	assert.True(t, Total(alloc.Lines).Equal(decimal.RequireFromString("7.00")), "got %s", Total(alloc.Lines))
	assert.Equal(t, 3, alloc.Lines[0].Quantity)
	assert.Equal(t, 1, alloc.Lines[1].Quantity)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.RequireFromString("3.33")), "input mutated")
}

func TestAllocateDiscountZeroTotalIsNoop(t *testing.T) {
	lines := []Line{{Product: product("free", "0", nil), Quantity: 2, UnitPrice: decimal.Zero}}
	alloc := AllocateDiscount(lines, decimal.NewFromInt(5))
	require.Len(t, alloc.Lines, 1)
	assert.True(t, alloc.Lines[0].UnitPrice.IsZero())
	assert.False(t, alloc.Warn)
}

func TestAllocateDiscountFloorsPricesAtZero(t *testing.T) {
	lines := []Line{
		{Product: product("tiny", "0.01", nil), Quantity: 1, UnitPrice: decimal.RequireFromString("0.01")},
		{Product: product("big", "1000", nil), Quantity: 12, UnitPrice: decimal.NewFromInt(1000)},
	}
	alloc := AllocateDiscount(lines, decimal.RequireFromString("0.07"))
	for _, line := range alloc.Lines {
		assert.False(t, line.UnitPrice.IsNegative())
	}
	assert.True(t, alloc.Warn)
}

func TestAllocateDiscountWarnsAboveHalf(t *testing.T) {
	lines := []Line{{Product: product("a", "100", nil), Quantity: 1, UnitPrice: decimal.NewFromInt(100)}}
	assert.False(t, AllocateDiscount(lines, decimal.NewFromInt(50)).Warn)
	assert.True(t, AllocateDiscount(lines, decimal.NewFromInt(49)).Warn)
}

func TestAllocateDiscountHitsTargetWithinRounding(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(6)
		lines := make([]Line, n)
		minQty := 0
		for j := range lines {
			price := decimal.New(int64(500+rng.Intn(100000)), -2)
			qty := 1 + rng.Intn(12)
			lines[j] = Line{Product: product(fmt.Sprintf("p%d", j), price.String(), nil), Quantity: qty, UnitPrice: price}
			if minQty == 0 || qty < minQty {
				minQty = qty
			}
		}
		current := Total(lines)
		// Any cent value between a fifth of current and current.
		cents := current.Mul(decimal.NewFromInt(100)).IntPart()
		target := decimal.New(cents/5+rng.Int63n(cents-cents/5)+1, -2)

		alloc := AllocateDiscount(lines, target)
		tolerance := decimal.RequireFromString("0.005").Mul(decimal.NewFromInt(int64(minQty)))
		diff := Total(alloc.Lines).Sub(target).Abs()
		require.True(t, diff.LessThanOrEqual(tolerance), "case %d: total %s target %s", i, Total(alloc.Lines), target)
		for j := range lines {
			require.Equal(t, lines[j].Quantity, alloc.Lines[j].Quantity)
			require.False(t, alloc.Lines[j].UnitPrice.IsNegative())
		}
	}
}
