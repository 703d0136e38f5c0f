package repository

import (
	"context"

	levydomain "github.com/smallbiznis/clearline/internal/levy/domain"
	"github.com/smallbiznis/clearline/pkg/db/option"
	baserepo "github.com/smallbiznis/clearline/pkg/repository"
	"gorm.io/gorm"
)

type repository struct {
	db    *gorm.DB
	store baserepo.Repository[levydomain.CountryLevy]
}

func NewRepository(db *gorm.DB) levydomain.Repository {
	return &repository{
		db:    db,
		store: baserepo.ProvideStore[levydomain.CountryLevy](db),
	}
}

func (r *repository) WithTrx(tx *gorm.DB) levydomain.Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, store: r.store.WithTrx(tx)}
}

func (r *repository) List(ctx context.Context, country string, activeOnly bool) ([]levydomain.CountryLevy, error) {
	opts := []option.QueryOption{option.WithOrder("display_order ASC, code ASC")}
	if activeOnly {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "is_active",
			Operator: option.EQ,
			Value:    true,
		}))
	}

	rows, err := r.store.Find(ctx, &levydomain.CountryLevy{CountryCode: country}, opts...)
	if err != nil {
		return nil, err
	}
	levies := make([]levydomain.CountryLevy, 0, len(rows))
	for _, row := range rows {
		levies = append(levies, *row)
	}
	return levies, nil
}

func (r *repository) FindByCode(ctx context.Context, country, code string) (*levydomain.CountryLevy, error) {
	return r.store.FindOne(ctx, &levydomain.CountryLevy{CountryCode: country, Code: code})
}

func (r *repository) Insert(ctx context.Context, levy *levydomain.CountryLevy) error {
	return r.store.Create(ctx, levy)
}

func (r *repository) Update(ctx context.Context, levy *levydomain.CountryLevy) error {
	return r.db.WithContext(ctx).
		Model(&levydomain.CountryLevy{}).
		Where("id = ?", levy.ID).
		Updates(map[string]any{
			"name":                      levy.Name,
			"rate":                      levy.Rate,
			"rate_type":                 levy.RateType,
			"basis":                     levy.Basis,
			"applies_to_all_chapters":   levy.AppliesToAllChapters,
			"exempt_tariff_codes":       levy.ExemptTariffCodes,
			"chapter_allow_list":        levy.ChapterAllowList,
			"exempt_organization_types": levy.ExemptOrganizationTypes,
			"effective_from":            levy.EffectiveFrom,
			"effective_to":              levy.EffectiveTo,
			"is_active":                 levy.IsActive,
			"display_order":             levy.DisplayOrder,
			"updated_at":                levy.UpdatedAt,
		}).Error
}
