package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Preview computes a declaration's breakdown without writing anything.
	Preview(ctx context.Context, orgID, declarationID snowflake.ID) (*Result, error)
	// Apply computes the breakdown and stores it on the declaration.
	Apply(ctx context.Context, orgID, declarationID snowflake.ID) (*Result, error)
	// Export renders the preview as an XLSX workbook.
	Export(ctx context.Context, orgID, declarationID snowflake.ID) ([]byte, error)
}
