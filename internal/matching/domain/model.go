package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Method records which step proposed a match.
type Method string

const (
	MethodHeuristic Method = "heuristic"
	MethodAI        Method = "ai"
)

// Match pairs one invoice line item with one declaration line item.
// Within a declaration an item appears in at most one match.
type Match struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID             snowflake.ID `gorm:"not null;index" json:"org_id"`
	InvoiceID         snowflake.ID `gorm:"not null;index:ix_match_pair" json:"invoice_id"`
	DeclarationID     snowflake.ID `gorm:"not null;index:ix_match_pair;uniqueIndex:ux_match_declaration_invoice_item" json:"declaration_id"`
	InvoiceItemID     snowflake.ID `gorm:"not null;uniqueIndex:ux_match_declaration_invoice_item" json:"invoice_item_id"`
	DeclarationItemID snowflake.ID `gorm:"not null;uniqueIndex" json:"declaration_item_id"`
	Confidence        int          `gorm:"not null" json:"confidence"`
	Method            Method       `gorm:"type:text;not null" json:"method"`
	Reason            string       `gorm:"type:text" json:"reason"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Match) TableName() string { return "invoice_declaration_matches" }

// Candidate is a proposed pairing before deduplication.
type Candidate struct {
	InvoiceItemID     snowflake.ID
	DeclarationItemID snowflake.ID
	Confidence        int
	Method            Method
	Reason            string
}

// Pair names an (invoice, declaration) pair to match.
type Pair struct {
	OrgID         snowflake.ID
	InvoiceID     snowflake.ID
	DeclarationID snowflake.ID
}

// Outcome summarizes one matcher run.
type Outcome struct {
	Created      int     `json:"created"`
	Heuristic    int     `json:"heuristic"`
	AI           int     `json:"ai"`
	Existing     int     `json:"existing"`
	Unmatched    int     `json:"unmatched"`
	FallbackUsed bool    `json:"fallback_used"`
	Matches      []Match `json:"matches"`
}
