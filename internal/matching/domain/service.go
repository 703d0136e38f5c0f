package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Match pairs the invoice's items with the declaration's items and
	// persists new matches. Reasoning failures never fail the run.
	Match(ctx context.Context, orgID, invoiceID, declarationID snowflake.ID) (*Outcome, error)
	List(ctx context.Context, orgID, invoiceID, declarationID snowflake.ID) ([]Match, error)
	Delete(ctx context.Context, orgID, matchID snowflake.ID) error
}
