package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTrx(tx *gorm.DB) Repository

	FindByID(ctx context.Context, orgID, declarationID snowflake.ID) (*DeclarationForm, error)
	Load(ctx context.Context, orgID, declarationID snowflake.ID) (*DeclarationWithItems, error)
	ListItems(ctx context.Context, orgID, declarationID snowflake.ID) ([]DeclarationLineItem, error)
	SaveTotals(ctx context.Context, orgID, declarationID snowflake.ID, totals Totals) error
}
