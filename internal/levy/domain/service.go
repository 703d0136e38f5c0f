package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	// ListForCountry returns every levy configured for the country, active or not.
	ListForCountry(ctx context.Context, country string) ([]CountryLevy, error)

	List(ctx context.Context, req ListRequest) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Disable(ctx context.Context, country, code string) (*Response, error)
}

type ListRequest struct {
	CountryCode string
	ActiveOnly  bool
}

type CreateRequest struct {
	CountryCode             string          `json:"-"`
	Code                    string          `json:"code"`
	Name                    string          `json:"name"`
	Rate                    decimal.Decimal `json:"rate"`
	RateType                string          `json:"rate_type"`
	Basis                   string          `json:"basis"`
	AppliesToAllChapters    bool            `json:"applies_to_all_chapters"`
	ExemptTariffCodes       []string        `json:"exempt_tariff_codes"`
	ChapterAllowList        []string        `json:"chapter_allow_list"`
	ExemptOrganizationTypes []string        `json:"exempt_organization_types"`
	EffectiveFrom           *time.Time      `json:"effective_from"`
	EffectiveTo             *time.Time      `json:"effective_to"`
	DisplayOrder            int             `json:"display_order"`
}

// UpdateRequest replaces the mutable fields of an existing levy.
type UpdateRequest struct {
	CreateRequest
	IsActive *bool `json:"is_active"`
}

type Response struct {
	ID                      string          `json:"id"`
	CountryCode             string          `json:"country_code"`
	Code                    string          `json:"code"`
	Name                    string          `json:"name"`
	Rate                    decimal.Decimal `json:"rate"`
	RateType                RateType        `json:"rate_type"`
	Basis                   Basis           `json:"basis"`
	AppliesToAllChapters    bool            `json:"applies_to_all_chapters"`
	ExemptTariffCodes       []string        `json:"exempt_tariff_codes"`
	ChapterAllowList        []string        `json:"chapter_allow_list"`
	ExemptOrganizationTypes []string        `json:"exempt_organization_types"`
	EffectiveFrom           *time.Time      `json:"effective_from,omitempty"`
	EffectiveTo             *time.Time      `json:"effective_to,omitempty"`
	IsActive                bool            `json:"is_active"`
	DisplayOrder            int             `json:"display_order"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}
