package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RateType selects how a levy's rate turns a basis value into a charge.
type RateType string

const (
	RateTypePercentage  RateType = "percentage"
	RateTypeFixedAmount RateType = "fixed_amount"
	RateTypePerUnit     RateType = "per_unit"
)

func (t RateType) Valid() bool {
	switch t {
	case RateTypePercentage, RateTypeFixedAmount, RateTypePerUnit:
		return true
	}
	return false
}

// Basis selects which computed value a levy is charged on.
type Basis string

const (
	BasisFOB      Basis = "fob"
	BasisCIF      Basis = "cif"
	BasisDuty     Basis = "duty"
	BasisQuantity Basis = "quantity"
	BasisWeight   Basis = "weight"
)

func (b Basis) Valid() bool {
	switch b {
	case BasisFOB, BasisCIF, BasisDuty, BasisQuantity, BasisWeight:
		return true
	}
	return false
}

// CountryLevy is a statutory charge configured for one country.
//
// Applicability has two exclusive shapes. With AppliesToAllChapters every
// tariff code is in scope except those prefixed by an ExemptTariffCodes entry.
// Otherwise only codes prefixed by a ChapterAllowList entry are in scope.
type CountryLevy struct {
	ID                      snowflake.ID                `gorm:"primaryKey"`
	CountryCode             string                      `gorm:"type:char(2);not null;uniqueIndex:ux_levy_country_code"`
	Code                    string                      `gorm:"type:text;not null;uniqueIndex:ux_levy_country_code"`
	Name                    string                      `gorm:"type:text;not null"`
	Rate                    decimal.Decimal             `gorm:"type:numeric(18,6);not null;default:0"`
	RateType                RateType                    `gorm:"type:text;not null"`
	Basis                   Basis                       `gorm:"type:text;not null"`
	AppliesToAllChapters    bool                        `gorm:"not null"`
	ExemptTariffCodes       datatypes.JSONSlice[string] `gorm:"type:json"`
	ChapterAllowList        datatypes.JSONSlice[string] `gorm:"type:json"`
	ExemptOrganizationTypes datatypes.JSONSlice[string] `gorm:"type:json"`
	EffectiveFrom           *time.Time                  `gorm:""`
	EffectiveTo             *time.Time                  `gorm:""`
	IsActive                bool                        `gorm:"not null"`
	DisplayOrder            int                         `gorm:"not null;default:0"`
	CreatedAt               time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt               time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CountryLevy) TableName() string { return "country_levies" }
