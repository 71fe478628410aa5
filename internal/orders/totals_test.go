package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSumLinesScenario(t *testing.T) {
	lines := BuildLines([]LineInput{
		{ItemID: 1, Quantity: dec("2"), UnitPrice: dec("1000")},
		{ItemID: 2, Quantity: dec("3"), UnitPrice: dec("500")},
	})
	require.True(t, SumLines(lines).Equal(dec("3500")))
	require.Equal(t, 2, lines[1].LineNo)
	require.True(t, lines[1].Amount.Equal(dec("1500")))

	lines[1].Quantity = dec("5")
	require.True(t, SumLines(lines).Equal(dec("4500")))
}

func TestSumLinesIgnoresStaleAmounts(t *testing.T) {
	lines := []Line{{Quantity: dec("2"), UnitPrice: dec("10"), Amount: dec("999")}}
	require.True(t, SumLines(lines).Equal(dec("20")))
}

func TestSumLinesIsExact(t *testing.T) {
	var lines []Line
	for i := 0; i < 1000; i++ {
		lines = append(lines, Line{Quantity: dec("0.1"), UnitPrice: dec("0.1")})
	}
	require.Equal(t, "10", SumLines(lines).String())
}

func TestResolveTotal(t *testing.T) {
	lines := BuildLines([]LineInput{{Quantity: dec("2"), UnitPrice: dec("1000")}})

	total, corrupt := ResolveTotal(dec("2000"), lines, DefaultSanityLimit)
	require.False(t, corrupt)
	require.True(t, total.Equal(dec("2000")))

	total, corrupt = ResolveTotal(dec("99999999"), lines, DefaultSanityLimit)
	require.True(t, corrupt)
	require.True(t, total.Equal(dec("2000")))

	huge := BuildLines([]LineInput{{Quantity: dec("1"), UnitPrice: dec("5000000000000")}})
	total, corrupt = ResolveTotal(dec("5000000000000"), huge, DefaultSanityLimit)
	require.True(t, corrupt)
	require.True(t, total.Equal(dec("5000000000000")))

	_, corrupt = ResolveTotal(dec("5000000000000"), huge, decimal.Zero)
	require.False(t, corrupt)
}
