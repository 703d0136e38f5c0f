package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTrx(tx *gorm.DB) Repository

	ListForPair(ctx context.Context, orgID, invoiceID, declarationID snowflake.ID) ([]Match, error)
	ListByDeclaration(ctx context.Context, orgID, declarationID snowflake.ID) ([]Match, error)
	Exists(ctx context.Context, orgID, invoiceItemID, declarationItemID snowflake.ID) (bool, error)
	Insert(ctx context.Context, match *Match) error
	FindByID(ctx context.Context, orgID, matchID snowflake.ID) (*Match, error)
	Delete(ctx context.Context, orgID, matchID snowflake.ID) error

	// ListPendingPairs returns pairs whose invoice still has items unmatched in
	// the declaration, for declarations updated since since.
	ListPendingPairs(ctx context.Context, since time.Time, limit int) ([]Pair, error)
}
