package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRatioGuardsZeroWhole(t *testing.T) {
	assert.True(t, Ratio(decimal.NewFromInt(5), decimal.Zero).IsZero())
	assert.Equal(t, "0.6", Ratio(decimal.NewFromInt(600), decimal.NewFromInt(1000)).String())
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "0.13", Round(decimal.RequireFromString("0.125")).String())
	assert.Equal(t, "-0.13", Round(decimal.RequireFromString("-0.125")).String())
}

func TestPercent(t *testing.T) {
	got := Percent(decimal.NewFromInt(1000), decimal.NewFromInt(5))
	assert.True(t, got.Equal(decimal.NewFromInt(50)))
}
