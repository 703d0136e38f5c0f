package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	matchingdomain "github.com/smallbiznis/clearline/internal/matching/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) matchingdomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTrx(tx *gorm.DB) matchingdomain.Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListForPair(ctx context.Context, orgID, invoiceID, declarationID snowflake.ID) ([]matchingdomain.Match, error) {
	var matches []matchingdomain.Match
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND invoice_id = ? AND declaration_id = ?", orgID, invoiceID, declarationID).
		Order("confidence DESC, id ASC").
		Find(&matches).Error
	return matches, err
}

func (r *repository) ListByDeclaration(ctx context.Context, orgID, declarationID snowflake.ID) ([]matchingdomain.Match, error) {
	var matches []matchingdomain.Match
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND declaration_id = ?", orgID, declarationID).
		Order("id ASC").
		Find(&matches).Error
	return matches, err
}

func (r *repository) Exists(ctx context.Context, orgID, invoiceItemID, declarationItemID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&matchingdomain.Match{}).
		Where("org_id = ? AND invoice_item_id = ? AND declaration_item_id = ?", orgID, invoiceItemID, declarationItemID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) Insert(ctx context.Context, match *matchingdomain.Match) error {
	return r.db.WithContext(ctx).Create(match).Error
}

func (r *repository) FindByID(ctx context.Context, orgID, matchID snowflake.ID) (*matchingdomain.Match, error) {
	var match matchingdomain.Match
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, matchID).
		First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &match, nil
}

func (r *repository) Delete(ctx context.Context, orgID, matchID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, matchID).
		Delete(&matchingdomain.Match{}).Error
}

func (r *repository) ListPendingPairs(ctx context.Context, since time.Time, limit int) ([]matchingdomain.Pair, error) {
	if limit <= 0 {
		limit = 50
	}

	type row struct {
		OrgID         snowflake.ID
		InvoiceID     snowflake.ID
		DeclarationID snowflake.ID
	}
	var rows []row
	err := r.db.WithContext(ctx).Raw(
		`SELECT p.org_id, p.invoice_id, p.declaration_id
		 FROM (
		   SELECT d.org_id, d.invoice_id, d.id AS declaration_id, d.updated_at
		   FROM declaration_forms d
		   WHERE d.invoice_id IS NOT NULL AND d.updated_at >= ?
		   UNION
		   SELECT d.org_id, si.invoice_id, d.id AS declaration_id, d.updated_at
		   FROM declaration_forms d
		   JOIN shipment_invoices si ON si.shipment_id = d.shipment_id AND si.org_id = d.org_id
		   WHERE d.shipment_id IS NOT NULL AND d.updated_at >= ?
		 ) p
		 WHERE EXISTS (
		   SELECT 1 FROM declaration_line_items dli
		   WHERE dli.org_id = p.org_id AND dli.declaration_id = p.declaration_id
		 )
		 AND EXISTS (
		   SELECT 1 FROM invoice_line_items ili
		   WHERE ili.org_id = p.org_id AND ili.invoice_id = p.invoice_id
		   AND NOT EXISTS (
		     SELECT 1 FROM invoice_declaration_matches m
		     WHERE m.org_id = p.org_id AND m.declaration_id = p.declaration_id AND m.invoice_item_id = ili.id
		   )
		 )
		 ORDER BY p.updated_at DESC, p.declaration_id ASC, p.invoice_id ASC
		 LIMIT ?`,
		since,
		since,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	pairs := make([]matchingdomain.Pair, 0, len(rows))
	for _, r := range rows {
		pairs = append(pairs, matchingdomain.Pair{OrgID: r.OrgID, InvoiceID: r.InvoiceID, DeclarationID: r.DeclarationID})
	}
	return pairs, nil
}
