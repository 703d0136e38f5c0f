package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	declarationdomain "github.com/smallbiznis/clearline/internal/declaration/domain"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
)

const (
	DefaultThreshold = 60
	MaxConfidence    = 100

	skuWeight         = 60
	itemNumberWeight  = 60
	descriptionWeight = 40
	quantityWeight    = 10
	priceWeight       = 10
)

var (
	quantityTolerance = decimal.New(1, -4)
	priceTolerance    = decimal.New(1, -2)
)

// Score rates how likely inv and decl describe the same goods and explains why.
func Score(inv shipmentdomain.InvoiceLineItem, decl declarationdomain.DeclarationLineItem) (int, string) {
	score := 0
	reasons := make([]string, 0, 5)

	if sameIdentifier(inv.SKU, decl.SKU) {
		score += skuWeight
		reasons = append(reasons, "sku")
	}
	if sameIdentifier(inv.ItemNumber, decl.ItemNumber) {
		score += itemNumberWeight
		reasons = append(reasons, "item number")
	}
	if overlap := Jaccard(Tokenize(inv.Description), Tokenize(decl.Description)); overlap > 0 {
		points := int(math.Round(overlap * descriptionWeight))
		if points > 0 {
			score += points
			reasons = append(reasons, fmt.Sprintf("description %.2f", overlap))
		}
	}
	if inv.Quantity.Sub(decl.Quantity).Abs().LessThanOrEqual(quantityTolerance) {
		score += quantityWeight
		reasons = append(reasons, "quantity")
	}
	if inv.UnitPrice.Sub(decl.UnitPrice).Abs().LessThanOrEqual(priceTolerance) {
		score += priceWeight
		reasons = append(reasons, "unit price")
	}

	if len(reasons) == 0 {
		return 0, ""
	}
	return score, "matched on " + strings.Join(reasons, ", ")
}

func sameIdentifier(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// Heuristic greedily pairs each invoice item, in order, with its best-scoring
// unclaimed declaration item when the score reaches threshold. Ties keep the
// earlier declaration item. Paired declaration items leave the pool.
func Heuristic(invoiceItems []shipmentdomain.InvoiceLineItem, declarationItems []declarationdomain.DeclarationLineItem, threshold int) []Candidate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	claimed := make([]bool, len(declarationItems))
	out := make([]Candidate, 0, len(invoiceItems))
	for _, inv := range invoiceItems {
		best, bestScore, bestReason := -1, 0, ""
		for j, decl := range declarationItems {
			if claimed[j] {
				continue
			}
			score, reason := Score(inv, decl)
			if score > bestScore {
				best, bestScore, bestReason = j, score, reason
			}
		}
		if best < 0 || bestScore < threshold {
			continue
		}
		claimed[best] = true
		out = append(out, Candidate{
			InvoiceItemID:     inv.ID,
			DeclarationItemID: declarationItems[best].ID,
			Confidence:        min(bestScore, MaxConfidence),
			Method:            MethodHeuristic,
			Reason:            bestReason,
		})
	}
	return out
}
