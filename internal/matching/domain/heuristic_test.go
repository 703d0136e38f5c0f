package domain

import (
	"math/rand"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	declarationdomain "github.com/smallbiznis/clearline/internal/declaration/domain"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func invItem(id snowflake.ID, sku, desc, qty, price string) shipmentdomain.InvoiceLineItem {
	return shipmentdomain.InvoiceLineItem{ID: id, SKU: sku, Description: desc, Quantity: d(qty), UnitPrice: d(price)}
}

func declItem(id snowflake.ID, sku, desc, qty, price string) declarationdomain.DeclarationLineItem {
	return declarationdomain.DeclarationLineItem{ID: id, SKU: sku, Description: desc, Quantity: d(qty), UnitPrice: d(price)}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"blue", "widget", "deluxe"}, Tokenize("The Blue widget, DELUXE (blue) x2"))
	assert.Empty(t, Tokenize("a an of to"))

	long := ""
	for i := 0; i < 60; i++ {
		long += " token" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	assert.Len(t, Tokenize(long), 40)
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 2.0/3.0, Jaccard([]string{"blue", "widget"}, []string{"blue", "widget", "deluxe"}), 1e-9)
	assert.Equal(t, 0.0, Jaccard(nil, nil))
	assert.Equal(t, 1.0, Jaccard([]string{"bolt"}, []string{"bolt"}))
}

func TestSkuMatchPairsItems(t *testing.T) {
	inv := invItem(1, "X1", "Blue Widget", "5", "2.00")
	decl := declItem(2, "x1", "Blue Widget Deluxe", "5", "2.00")

	score, reason := Score(inv, decl)
	assert.GreaterOrEqual(t, score, 60)
	assert.Contains(t, reason, "sku")

	got := Heuristic([]shipmentdomain.InvoiceLineItem{inv}, []declarationdomain.DeclarationLineItem{decl}, 60)
	require.Len(t, got, 1)
	assert.Equal(t, MethodHeuristic, got[0].Method)
	assert.Equal(t, snowflake.ID(2), got[0].DeclarationItemID)
	assert.Equal(t, 100, got[0].Confidence)
}

func TestScoreComponents(t *testing.T) {
	inv := shipmentdomain.InvoiceLineItem{ItemNumber: "A-100", Description: "steel bolt", Quantity: d("10"), UnitPrice: d("1.005")}
	decl := declarationdomain.DeclarationLineItem{ItemNumber: "a-100", Description: "copper pipe", Quantity: d("10.00005"), UnitPrice: d("1.01")}

	score, reason := Score(inv, decl)
	assert.Equal(t, 80, score)
	assert.Contains(t, reason, "item number")
	assert.Contains(t, reason, "quantity")
	assert.Contains(t, reason, "unit price")

	blank := shipmentdomain.InvoiceLineItem{Description: "widget", Quantity: d("1"), UnitPrice: d("1")}
	other := declarationdomain.DeclarationLineItem{Description: "gadget", Quantity: d("2"), UnitPrice: d("3")}
	score, reason = Score(blank, other)
	assert.Zero(t, score)
	assert.Empty(t, reason)
}

func TestHeuristicBelowThresholdStaysUnmatched(t *testing.T) {
	inv := invItem(1, "", "Blue Widget", "5", "2.00")
	decl := declItem(2, "", "Red Gadget", "5", "2.00")

	assert.Empty(t, Heuristic([]shipmentdomain.InvoiceLineItem{inv}, []declarationdomain.DeclarationLineItem{decl}, 60))
}

func TestHeuristicIsGreedyInInvoiceOrder(t *testing.T) {
	invoice := []shipmentdomain.InvoiceLineItem{
		invItem(1, "S1", "cotton shirt", "1", "10"),
		invItem(2, "S1", "cotton shirt", "1", "10"),
	}
	declaration := []declarationdomain.DeclarationLineItem{
		declItem(10, "S1", "cotton shirt", "1", "10"),
		declItem(11, "S1", "cotton shirt", "1", "10"),
	}

	got := Heuristic(invoice, declaration, 60)
	require.Len(t, got, 2)
	assert.Equal(t, snowflake.ID(10), got[0].DeclarationItemID)
	assert.Equal(t, snowflake.ID(11), got[1].DeclarationItemID)
}

func TestHeuristicEmptyInputs(t *testing.T) {
	assert.Empty(t, Heuristic(nil, nil, 60))
	assert.Empty(t, Heuristic([]shipmentdomain.InvoiceLineItem{invItem(1, "X", "x", "1", "1")}, nil, 60))
}

func TestDedupKeepsHighestConfidence(t *testing.T) {
	got := Dedup([]Candidate{
		{InvoiceItemID: 1, DeclarationItemID: 10, Confidence: 70, Method: MethodHeuristic},
		{InvoiceItemID: 1, DeclarationItemID: 11, Confidence: 90, Method: MethodAI},
		{InvoiceItemID: 2, DeclarationItemID: 11, Confidence: 80, Method: MethodAI},
		{InvoiceItemID: 2, DeclarationItemID: 10, Confidence: 65, Method: MethodAI},
	})
	require.Len(t, got, 2)
	assert.Equal(t, Candidate{InvoiceItemID: 1, DeclarationItemID: 11, Confidence: 90, Method: MethodAI}, got[0])
	assert.Equal(t, snowflake.ID(2), got[1].InvoiceItemID)
	assert.Equal(t, snowflake.ID(10), got[1].DeclarationItemID)
}

func TestDedupTiesPreferEarlierCandidate(t *testing.T) {
	got := Dedup([]Candidate{
		{InvoiceItemID: 1, DeclarationItemID: 10, Confidence: 80, Method: MethodHeuristic},
		{InvoiceItemID: 1, DeclarationItemID: 11, Confidence: 80, Method: MethodAI},
	})
	require.Len(t, got, 1)
	assert.Equal(t, MethodHeuristic, got[0].Method)
}

func TestDedupIsInjective(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for run := 0; run < 200; run++ {
		candidates := make([]Candidate, 0, 40)
		for i := 0; i < 40; i++ {
			candidates = append(candidates, Candidate{
				InvoiceItemID:     snowflake.ID(1 + r.Intn(8)),
				DeclarationItemID: snowflake.ID(100 + r.Intn(8)),
				Confidence:        r.Intn(101),
			})
		}

		seenInvoice := map[snowflake.ID]bool{}
		seenDeclaration := map[snowflake.ID]bool{}
		for _, c := range Dedup(candidates) {
			require.False(t, seenInvoice[c.InvoiceItemID], "run %d", run)
			require.False(t, seenDeclaration[c.DeclarationItemID], "run %d", run)
			seenInvoice[c.InvoiceItemID] = true
			seenDeclaration[c.DeclarationItemID] = true
		}
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0, ClampConfidence(-5))
	assert.Equal(t, 100, ClampConfidence(140))
	assert.Equal(t, 55, ClampConfidence(55))
}
