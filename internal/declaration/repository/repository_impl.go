package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	declarationdomain "github.com/smallbiznis/clearline/internal/declaration/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) declarationdomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTrx(tx *gorm.DB) declarationdomain.Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, orgID, declarationID snowflake.ID) (*declarationdomain.DeclarationForm, error) {
	var form declarationdomain.DeclarationForm
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, declarationID).
		First(&form).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &form, nil
}

func (r *repository) Load(ctx context.Context, orgID, declarationID snowflake.ID) (*declarationdomain.DeclarationWithItems, error) {
	form, err := r.FindByID(ctx, orgID, declarationID)
	if err != nil || form == nil {
		return nil, err
	}
	items, err := r.ListItems(ctx, orgID, declarationID)
	if err != nil {
		return nil, err
	}
	return &declarationdomain.DeclarationWithItems{Declaration: *form, Items: items}, nil
}

func (r *repository) ListItems(ctx context.Context, orgID, declarationID snowflake.ID) ([]declarationdomain.DeclarationLineItem, error) {
	var items []declarationdomain.DeclarationLineItem
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND declaration_id = ?", orgID, declarationID).
		Order("line_number ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) SaveTotals(ctx context.Context, orgID, declarationID snowflake.ID, totals declarationdomain.Totals) error {
	return r.db.WithContext(ctx).
		Model(&declarationdomain.DeclarationForm{}).
		Where("org_id = ? AND id = ?", orgID, declarationID).
		Updates(map[string]any{
			"fob_total":          totals.FOBTotal,
			"freight_total":      totals.FreightTotal,
			"insurance_total":    totals.InsuranceTotal,
			"cif_total":          totals.CIFTotal,
			"customs_duty_total": totals.CustomsDutyTotal,
			"levies_total":       totals.LeviesTotal,
			"total_payable":      totals.TotalPayable,
			"breakdown":          totals.Breakdown,
			"status":             declarationdomain.StatusCalculated,
			"calculated_at":      totals.CalculatedAt,
			"updated_at":         totals.CalculatedAt,
		}).Error
}
