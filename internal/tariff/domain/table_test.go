package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "84713000", NormalizeCode(" 8471.30-00 "))
	assert.Equal(t, "AB12", NormalizeCode("ab 12"))
	assert.Equal(t, "", NormalizeCode("  "))
}

func TestTableResolveLongestPrefix(t *testing.T) {
	table := NewTable("jm", []TariffRate{
		{Code: "84", DutyRate: decimal.NewFromInt(20)},
		{Code: "8471", DutyRate: decimal.NewFromInt(5)},
		{Code: "8471.30", DutyRate: decimal.Zero},
	})

	assert.Equal(t, "JM", table.Country())
	assert.Equal(t, 3, table.Len())

	rate, ok := table.Resolve("8471.30.10")
	assert.True(t, ok)
	assert.True(t, rate.DutyRate.IsZero())

	rate, ok = table.Resolve("8471.50")
	assert.True(t, ok)
	assert.Equal(t, "5", rate.DutyRate.String())

	rate, ok = table.Resolve("8402")
	assert.True(t, ok)
	assert.Equal(t, "20", rate.DutyRate.String())

	_, ok = table.Resolve("9001")
	assert.False(t, ok)

	_, ok = table.Resolve("")
	assert.False(t, ok)
}

func TestEmptyTableNeverResolves(t *testing.T) {
	table := NewTable("JM", nil)
	_, ok := table.Resolve("8471")
	assert.False(t, ok)
}
