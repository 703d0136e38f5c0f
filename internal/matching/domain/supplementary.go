package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	declarationdomain "github.com/smallbiznis/clearline/internal/declaration/domain"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
)

// SupplementaryRequest lists the items the heuristic left unpaired.
type SupplementaryRequest struct {
	OrgID            snowflake.ID
	InvoiceItems     []shipmentdomain.InvoiceLineItem
	DeclarationItems []declarationdomain.DeclarationLineItem
}

// SupplementaryMatcher proposes extra pairings for residual items.
// Implementations must honor ctx cancellation.
type SupplementaryMatcher interface {
	Propose(ctx context.Context, req SupplementaryRequest) ([]Candidate, error)
}
