package domain

import (
	"sort"

	"github.com/bwmarrin/snowflake"
)

// Dedup keeps the highest-confidence candidates such that no item appears
// twice. Equal confidences keep input order, so heuristic pairs listed first
// win ties against reasoning proposals.
func Dedup(candidates []Candidate) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	invoiceClaimed := make(map[snowflake.ID]struct{}, len(sorted))
	declarationClaimed := make(map[snowflake.ID]struct{}, len(sorted))
	out := make([]Candidate, 0, len(sorted))
	for _, c := range sorted {
		if _, ok := invoiceClaimed[c.InvoiceItemID]; ok {
			continue
		}
		if _, ok := declarationClaimed[c.DeclarationItemID]; ok {
			continue
		}
		invoiceClaimed[c.InvoiceItemID] = struct{}{}
		declarationClaimed[c.DeclarationItemID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// ClampConfidence bounds a proposed confidence to [0, MaxConfidence].
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}
