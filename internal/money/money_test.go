package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestRoundHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "2.35", Round(decimal.RequireFromString("2.345")).StringFixed(2))
	assert.Equal(t, "-2.35", Round(decimal.RequireFromString("-2.345")).StringFixed(2))
	assert.Equal(t, "3.33", Round(decimal.NewFromInt(10).Div(decimal.NewFromInt(3))).String())
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" 12.50 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("12.5")))

	_, err = ParseAmount("")
	require.Error(t, err)
	_, err = ParseAmount("twelve")
	require.Error(t, err)
}

func TestLine(t *testing.T) {
	assert.True(t, Line(3, decimal.RequireFromString("1.25")).Equal(decimal.RequireFromString("3.75")))
}

func TestFormatterGroupsAndPadsScale(t *testing.T) {
	f, err := NewFormatter("USD", "en-US")
	require.NoError(t, err)

	out := f.Format(decimal.RequireFromString("1234.5"))
	assert.Contains(t, out, "1,234.50")
	assert.Contains(t, out, "$")

	neg := f.Format(decimal.RequireFromString("-50"))
	assert.Equal(t, byte('-'), neg[0])
	assert.Contains(t, neg, "50.00")
}

func TestFormatterPlacesSymbolPerLocale(t *testing.T) {
	cases := []struct {
		code, locale, amount, want string
	}{
		{"USD", "en-US", "-1234.5", "-$1,234.50"},
		{"EUR", "de-DE", "-1234.5", "-1.234,50 €"},
		{"EUR", "de-DE", "7", "7,00 €"},
	}
	for _, tc := range cases {
		f, err := NewFormatter(tc.code, tc.locale)
		require.NoError(t, err)
		assert.Equal(t, tc.want, f.Format(decimal.RequireFromString(tc.amount)), tc.locale)
	}

	assert.True(t, symbolAfterNumber(language.MustParse("pt-PT")))
	assert.False(t, symbolAfterNumber(language.MustParse("pt-BR")))
	assert.False(t, symbolAfterNumber(language.MustParse("en-GB")))
}

func TestNewFormatterRejectsUnknownCurrency(t *testing.T) {
	_, err := NewFormatter("XYZW", "en-US")
	require.Error(t, err)
	_, err = NewFormatter("USD", "not a locale!")
	require.Error(t, err)
}
