package repository

import (
	"context"
	"errors"
	"time"

	tariffdomain "github.com/smallbiznis/clearline/internal/tariff/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) tariffdomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTrx(tx *gorm.DB) tariffdomain.Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListByCountry(ctx context.Context, country string) ([]tariffdomain.TariffRate, error) {
	var rates []tariffdomain.TariffRate
	err := r.db.WithContext(ctx).
		Where("country_code = ?", country).
		Order("code ASC").
		Find(&rates).Error
	return rates, err
}

func (r *repository) FindByCode(ctx context.Context, country, code string) (*tariffdomain.TariffRate, error) {
	var rate tariffdomain.TariffRate
	err := r.db.WithContext(ctx).
		Where("country_code = ? AND code = ?", country, code).
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}

func (r *repository) Upsert(ctx context.Context, rate *tariffdomain.TariffRate) error {
	if rate.UpdatedAt.IsZero() {
		rate.UpdatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "country_code"}, {Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "duty_rate", "updated_at"}),
	}).Create(rate).Error
}
