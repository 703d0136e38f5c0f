package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	WithTrx(tx *gorm.DB) Repository
	ListByCountry(ctx context.Context, country string) ([]TariffRate, error)
	Upsert(ctx context.Context, rate *TariffRate) error
	FindByCode(ctx context.Context, country, code string) (*TariffRate, error)
}
