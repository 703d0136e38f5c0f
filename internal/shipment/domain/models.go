// Package domain contains the shipment and commercial invoice entity graph.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InsuranceMode says where a shipment's insurance total comes from.
type InsuranceMode string

const (
	InsuranceModeManual     InsuranceMode = "manual"
	InsuranceModePercentage InsuranceMode = "percentage"
	InsuranceModeDocument   InsuranceMode = "document"
)

func (m InsuranceMode) Valid() bool {
	switch m {
	case InsuranceModeManual, InsuranceModePercentage, InsuranceModeDocument:
		return true
	}
	return false
}

// Shipment groups invoices shipped together.
// FOBTotal and CIFTotal are derived and only written by recalculation.
type Shipment struct {
	ID                  snowflake.ID    `gorm:"primaryKey"`
	OrgID               snowflake.ID    `gorm:"not null;index"`
	Reference           string          `gorm:"type:text;not null"`
	CountryCode         string          `gorm:"type:char(2);not null"`
	FOBTotal            decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	FreightTotal        decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	InsuranceMode       InsuranceMode   `gorm:"type:text;not null;default:'manual'"`
	InsuranceTotal      decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	InsurancePercentage decimal.Decimal `gorm:"type:numeric(9,4);not null;default:0"`
	CIFTotal            decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	GrossWeight         decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0"`
	RecalculatedAt      *time.Time      `gorm:""`
	CreatedAt           time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Shipment) TableName() string { return "shipments" }

// Invoice is one commercial invoice. DeclaredTotal, when set, overrides the sum of line totals.
// Freight, insurance and weight are used only when the invoice is declared on its own.
type Invoice struct {
	ID              snowflake.ID        `gorm:"primaryKey"`
	OrgID           snowflake.ID        `gorm:"not null;index"`
	InvoiceNumber   string              `gorm:"type:text;not null"`
	SupplierName    string              `gorm:"type:text"`
	Currency        string              `gorm:"type:char(3);not null"`
	DeclaredTotal   decimal.NullDecimal `gorm:"type:numeric(18,2)"`
	FreightAmount   decimal.Decimal     `gorm:"type:numeric(18,2);not null;default:0"`
	InsuranceAmount decimal.Decimal     `gorm:"type:numeric(18,2);not null;default:0"`
	GrossWeight     decimal.Decimal     `gorm:"type:numeric(18,4);not null;default:0"`
	CreatedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Invoice) TableName() string { return "invoices" }

// InvoiceLineItem is a normalized line from a commercial invoice.
type InvoiceLineItem struct {
	ID             snowflake.ID        `gorm:"primaryKey"`
	OrgID          snowflake.ID        `gorm:"not null;index"`
	InvoiceID      snowflake.ID        `gorm:"not null;index"`
	LineNumber     int                 `gorm:"not null"`
	SKU            string              `gorm:"column:sku;type:text"`
	ItemNumber     string              `gorm:"type:text"`
	Description    string              `gorm:"type:text;not null"`
	Quantity       decimal.Decimal     `gorm:"type:numeric(18,4);not null;default:0"`
	UnitPrice      decimal.Decimal     `gorm:"type:numeric(18,4);not null;default:0"`
	LineTotal      decimal.NullDecimal `gorm:"type:numeric(18,2)"`
	TariffCodeHint *string             `gorm:"type:text"`
	DutyRate       decimal.NullDecimal `gorm:"type:numeric(9,4)"`
	CreatedAt      time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (InvoiceLineItem) TableName() string { return "invoice_line_items" }

// Total returns the given line total, or quantity x unit price when none was extracted.
func (i InvoiceLineItem) Total() decimal.Decimal {
	if i.LineTotal.Valid {
		return i.LineTotal.Decimal
	}
	return i.Quantity.Mul(i.UnitPrice)
}

// ShipmentInvoice links an invoice to a shipment and holds its allocated share.
// Shares are written only by shipment recalculation.
type ShipmentInvoice struct {
	ShipmentID        snowflake.ID    `gorm:"primaryKey"`
	InvoiceID         snowflake.ID    `gorm:"primaryKey;uniqueIndex"`
	OrgID             snowflake.ID    `gorm:"not null;index"`
	FOBAmount         decimal.Decimal `gorm:"column:fob_amount;type:numeric(18,2);not null;default:0"`
	ProratedFreight   decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	ProratedInsurance decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	CreatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ShipmentInvoice) TableName() string { return "shipment_invoices" }

// InvoiceWithItems is an invoice with its ordered line items.
type InvoiceWithItems struct {
	Invoice Invoice
	Items   []InvoiceLineItem
}

// FOB returns the invoice's declared total or the sum of its line totals.
func (i InvoiceWithItems) FOB() decimal.Decimal {
	if i.Invoice.DeclaredTotal.Valid {
		return i.Invoice.DeclaredTotal.Decimal
	}
	total := decimal.Zero
	for _, item := range i.Items {
		total = total.Add(item.Total())
	}
	return total
}

// ShipmentGraph is a shipment with its member invoices in attachment order.
type ShipmentGraph struct {
	Shipment Shipment
	Invoices []InvoiceWithItems
}
