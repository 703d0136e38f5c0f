package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	// RecalculateShipment recomputes shipment totals and persists every member
	// invoice's share in one transaction.
	RecalculateShipment(ctx context.Context, orgID, shipmentID snowflake.ID) (*Summary, error)
}

// Summary reports persisted (rounded) values after a recalculation.
type Summary struct {
	ShipmentID     snowflake.ID    `json:"shipment_id"`
	FOBTotal       decimal.Decimal `json:"fob_total"`
	FreightTotal   decimal.Decimal `json:"freight_total"`
	InsuranceTotal decimal.Decimal `json:"insurance_total"`
	CIFTotal       decimal.Decimal `json:"cif_total"`
	Invoices       []ShareSummary  `json:"invoices"`
	RecalculatedAt time.Time       `json:"recalculated_at"`
}

type ShareSummary struct {
	InvoiceID         snowflake.ID    `json:"invoice_id"`
	FOBAmount         decimal.Decimal `json:"fob_amount"`
	ProratedFreight   decimal.Decimal `json:"prorated_freight"`
	ProratedInsurance decimal.Decimal `json:"prorated_insurance"`
}
