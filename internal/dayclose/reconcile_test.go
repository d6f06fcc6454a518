package dayclose

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestReconcileFixtures(t *testing.T) {
	day := Totals{GrossCashSales: d("1000"), CardSales: d("300"), TotalRefunds: d("50")}

	balanced := Reconcile(day, d("950"))
	assert.True(t, balanced.NetExpectedCash.Equal(d("950")))
	assert.True(t, balanced.TotalGrossSales.Equal(d("1300")))
	assert.True(t, balanced.Variance.IsZero())
	assert.Equal(t, SeverityBalanced, balanced.Severity)

	short := Reconcile(day, d("900"))
	assert.True(t, short.Variance.Equal(d("-50")))
	assert.Equal(t, "5.26", short.VariancePercentage.StringFixed(2))
	assert.Equal(t, SeverityHigh, short.Severity)

	empty := Reconcile(Totals{GrossCashSales: d("0"), CardSales: d("0"), TotalRefunds: d("0")}, d("0"))
	assert.True(t, empty.NetExpectedCash.IsZero())
	assert.True(t, empty.VariancePercentage.IsZero())
	assert.Equal(t, SeverityBalanced, empty.Severity)
}

func TestReconcileSeverityBands(t *testing.T) {
	day := Totals{GrossCashSales: d("1000"), CardSales: d("0"), TotalRefunds: d("0")}
	cases := []struct {
		counted string
		want    Severity
	}{
		{"1000.99", SeverityBalanced},
		{"999.01", SeverityBalanced},
		{"1001", SeverityModerate},
		{"950", SeverityModerate},
		{"1050", SeverityModerate},
		{"1050.01", SeverityHigh},
		{"940", SeverityHigh},
	}
	for _, tc := range cases {
		t.Run(tc.counted, func(t *testing.T) {
			assert.Equal(t, tc.want, Reconcile(day, d(tc.counted)).Severity)
		})
	}
}

func TestReconcileUsesUnroundedPercentage(t *testing.T) {
	// 5.004% rounds to 5.00 for display but is still above the 5% band.
	day := Totals{GrossCashSales: d("10000"), CardSales: d("0"), TotalRefunds: d("0")}
	r := Reconcile(day, d("10500.40"))
	assert.Equal(t, "5.00", r.VariancePercentage.StringFixed(2))
	assert.Equal(t, SeverityHigh, r.Severity)
}

func TestReconcileRefundsExceedCash(t *testing.T) {
	r := Reconcile(Totals{GrossCashSales: d("20"), CardSales: d("100"), TotalRefunds: d("50")}, d("0"))
	assert.True(t, r.NetExpectedCash.Equal(d("-30")))
	assert.True(t, r.Variance.Equal(d("30")))
	assert.True(t, r.VariancePercentage.IsZero())
	assert.True(t, r.RefundsExceedCash)
	assert.Equal(t, SeverityModerate, r.Severity)
}
