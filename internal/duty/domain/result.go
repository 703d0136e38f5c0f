package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RateSource says where an item's duty rate came from.
type RateSource string

const (
	RateSourceRecorded    RateSource = "recorded"
	RateSourceTariffTable RateSource = "tariff_table"
	RateSourceUnresolved  RateSource = "unresolved"
)

// Result is a full duty and levy breakdown. All amounts are rounded to two places.
type Result struct {
	CountryCode      string          `json:"country_code"`
	FOBTotal         decimal.Decimal `json:"fob_total"`
	FreightTotal     decimal.Decimal `json:"freight_total"`
	InsuranceTotal   decimal.Decimal `json:"insurance_total"`
	CIFTotal         decimal.Decimal `json:"cif_total"`
	CustomsDutyTotal decimal.Decimal `json:"customs_duty_total"`
	LeviesTotal      decimal.Decimal `json:"levies_total"`
	WharfageTotal    decimal.Decimal `json:"wharfage_total"`
	OtherLeviesTotal decimal.Decimal `json:"other_levies_total"`
	TotalPayable     decimal.Decimal `json:"total_payable"`
	TotalQuantity    decimal.Decimal `json:"total_quantity"`
	GrossWeight      decimal.Decimal `json:"gross_weight"`
	Groups           []TariffGroup   `json:"tariff_groups"`
	Levies           []LevyLine      `json:"levies"`
	Items            []ItemDetail    `json:"items"`
	Warnings         []string        `json:"warnings"`
	CalculatedAt     time.Time       `json:"calculated_at"`
}

// TariffGroup aggregates items sharing a resolved tariff code.
// A nil code marks items whose rate could not be resolved.
type TariffGroup struct {
	TariffCode  *string         `json:"tariff_code"`
	Description *string         `json:"description"`
	ItemCount   int             `json:"item_count"`
	CIF         decimal.Decimal `json:"cif"`
	Duty        decimal.Decimal `json:"duty"`
}

type LevyLine struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	RateType   string          `json:"rate_type"`
	Basis      string          `json:"basis"`
	Rate       decimal.Decimal `json:"rate"`
	BasisValue decimal.Decimal `json:"basis_value"`
	Amount     decimal.Decimal `json:"amount"`
}

type ItemDetail struct {
	InvoiceID   snowflake.ID    `json:"invoice_id"`
	ItemID      snowflake.ID    `json:"item_id"`
	LineNumber  int             `json:"line_number"`
	Description string          `json:"description"`
	TariffCode  *string         `json:"tariff_code"`
	Quantity    decimal.Decimal `json:"quantity"`
	FOB         decimal.Decimal `json:"fob"`
	Freight     decimal.Decimal `json:"freight"`
	Insurance   decimal.Decimal `json:"insurance"`
	CIF         decimal.Decimal `json:"cif"`
	DutyRate    decimal.Decimal `json:"duty_rate"`
	RateSource  RateSource      `json:"rate_source"`
	Duty        decimal.Decimal `json:"duty"`
}
