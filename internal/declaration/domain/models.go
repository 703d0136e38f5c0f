package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusCalculated Status = "calculated"
)

// DeclarationForm is a customs declaration tied to a shipment or to a single invoice.
// Totals are written only by an explicit apply.
type DeclarationForm struct {
	ID               snowflake.ID    `gorm:"primaryKey"`
	OrgID            snowflake.ID    `gorm:"not null;index"`
	ShipmentID       *snowflake.ID   `gorm:"index"`
	InvoiceID        *snowflake.ID   `gorm:"index"`
	Reference        string          `gorm:"type:text"`
	CountryCode      string          `gorm:"type:char(2);not null"`
	ConsigneeType    string          `gorm:"type:text"`
	Status           Status          `gorm:"type:text;not null;default:'draft'"`
	FOBTotal         decimal.Decimal `gorm:"column:fob_total;type:numeric(18,2);not null;default:0"`
	FreightTotal     decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	InsuranceTotal   decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	CIFTotal         decimal.Decimal `gorm:"column:cif_total;type:numeric(18,2);not null;default:0"`
	CustomsDutyTotal decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	LeviesTotal      decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	TotalPayable     decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	Breakdown        datatypes.JSON  `gorm:"type:json"`
	CalculatedAt     *time.Time      `gorm:""`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (DeclarationForm) TableName() string { return "declaration_forms" }

// DeclarationLineItem mirrors an invoice line and carries the authoritative classification.
type DeclarationLineItem struct {
	ID            snowflake.ID        `gorm:"primaryKey"`
	OrgID         snowflake.ID        `gorm:"not null;index"`
	DeclarationID snowflake.ID        `gorm:"not null;index"`
	LineNumber    int                 `gorm:"not null"`
	SKU           string              `gorm:"column:sku;type:text"`
	ItemNumber    string              `gorm:"type:text"`
	Description   string              `gorm:"type:text;not null"`
	Quantity      decimal.Decimal     `gorm:"type:numeric(18,4);not null;default:0"`
	UnitPrice     decimal.Decimal     `gorm:"type:numeric(18,4);not null;default:0"`
	LineTotal     decimal.NullDecimal `gorm:"type:numeric(18,2)"`
	TariffCode    *string             `gorm:"type:text"`
	DutyRate      decimal.NullDecimal `gorm:"type:numeric(9,4)"`
	CreatedAt     time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (DeclarationLineItem) TableName() string { return "declaration_line_items" }

// DeclarationWithItems is a declaration with its ordered line items.
type DeclarationWithItems struct {
	Declaration DeclarationForm
	Items       []DeclarationLineItem
}

// Totals is what an apply writes back to a declaration.
type Totals struct {
	FOBTotal         decimal.Decimal
	FreightTotal     decimal.Decimal
	InsuranceTotal   decimal.Decimal
	CIFTotal         decimal.Decimal
	CustomsDutyTotal decimal.Decimal
	LeviesTotal      decimal.Decimal
	TotalPayable     decimal.Decimal
	Breakdown        datatypes.JSON
	CalculatedAt     time.Time
}
