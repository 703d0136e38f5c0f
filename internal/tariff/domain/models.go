package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TariffRate is one row of a country's tariff schedule. DutyRate is a percentage.
type TariffRate struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	CountryCode string          `gorm:"type:char(2);not null;uniqueIndex:ux_tariff_country_code" json:"country_code"`
	Code        string          `gorm:"type:text;not null;uniqueIndex:ux_tariff_country_code" json:"code"`
	Description string          `gorm:"type:text" json:"description"`
	DutyRate    decimal.Decimal `gorm:"type:numeric(9,4);not null;default:0" json:"duty_rate"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (TariffRate) TableName() string { return "tariff_rates" }

// NormalizeCode upper-cases a tariff code and drops separators ("8471.30-00" -> "84713000").
func NormalizeCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.ToUpper(strings.TrimSpace(code)) {
		switch r {
		case '.', ' ', '-', '/':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeCountry returns the upper-cased two letter country code.
func NormalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}

// Table resolves codes against one country's schedule by longest prefix.
type Table struct {
	country string
	byCode  map[string]TariffRate
	maxLen  int
}

func NewTable(country string, rates []TariffRate) Table {
	t := Table{country: NormalizeCountry(country), byCode: make(map[string]TariffRate, len(rates))}
	for _, rate := range rates {
		code := NormalizeCode(rate.Code)
		if code == "" {
			continue
		}
		t.byCode[code] = rate
		if len(code) > t.maxLen {
			t.maxLen = len(code)
		}
	}
	return t
}

func (t Table) Country() string { return t.country }

func (t Table) Len() int { return len(t.byCode) }

// Resolve returns the rate whose code is the longest prefix of code.
func (t Table) Resolve(code string) (TariffRate, bool) {
	normalized := NormalizeCode(code)
	n := len(normalized)
	if n > t.maxLen {
		n = t.maxLen
	}
	for ; n > 0; n-- {
		if rate, ok := t.byCode[normalized[:n]]; ok {
			return rate, true
		}
	}
	return TariffRate{}, false
}

type UpsertRequest struct {
	CountryCode string          `json:"country_code"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	DutyRate    decimal.Decimal `json:"duty_rate"`
}
