package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	WithTrx(tx *gorm.DB) Repository
	List(ctx context.Context, country string, activeOnly bool) ([]CountryLevy, error)
	FindByCode(ctx context.Context, country, code string) (*CountryLevy, error)
	Insert(ctx context.Context, levy *CountryLevy) error
	Update(ctx context.Context, levy *CountryLevy) error
}
