package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/clearline/internal/clock"
	"github.com/smallbiznis/clearline/internal/config"
	declarationdomain "github.com/smallbiznis/clearline/internal/declaration/domain"
	declarationrepo "github.com/smallbiznis/clearline/internal/declaration/repository"
	matchingdomain "github.com/smallbiznis/clearline/internal/matching/domain"
	matchingrepo "github.com/smallbiznis/clearline/internal/matching/repository"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
	shipmentrepo "github.com/smallbiznis/clearline/internal/shipment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockSupplementary struct {
	mock.Mock
}

func (m *mockSupplementary) Propose(ctx context.Context, req matchingdomain.SupplementaryRequest) ([]matchingdomain.Candidate, error) {
	args := m.Called(ctx, req)
	proposals, _ := args.Get(0).([]matchingdomain.Candidate)
	return proposals, args.Error(1)
}

type matcherFixture struct {
	db            *gorm.DB
	node          *snowflake.Node
	orgID         snowflake.ID
	invoiceID     snowflake.ID
	declarationID snowflake.ID
}

func setupMatcherTest(t *testing.T, supplementary matchingdomain.SupplementaryMatcher) (*matcherFixture, matchingdomain.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&shipmentdomain.Shipment{},
		&shipmentdomain.Invoice{},
		&shipmentdomain.InvoiceLineItem{},
		&shipmentdomain.ShipmentInvoice{},
		&declarationdomain.DeclarationForm{},
		&declarationdomain.DeclarationLineItem{},
		&matchingdomain.Match{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := &matcherFixture{db: db, node: node, orgID: node.Generate(), invoiceID: node.Generate(), declarationID: node.Generate()}
	require.NoError(t, db.Create(&shipmentdomain.Invoice{ID: f.invoiceID, OrgID: f.orgID, InvoiceNumber: "INV-1", Currency: "USD"}).Error)
	invoiceID := f.invoiceID
	require.NoError(t, db.Create(&declarationdomain.DeclarationForm{ID: f.declarationID, OrgID: f.orgID, InvoiceID: &invoiceID, CountryCode: "JM"}).Error)

	p := ServiceParam{
		DB:              db,
		Log:             zap.NewNop(),
		GenID:           node,
		Clock:           clock.NewFakeClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
		Config:          config.NewStaticReconciliationConfigHolder(config.DefaultReconciliationConfig()),
		Repo:            matchingrepo.NewRepository(db),
		ShipmentRepo:    shipmentrepo.NewRepository(db),
		DeclarationRepo: declarationrepo.NewRepository(db),
	}
	if supplementary != nil {
		p.Supplementary = supplementary
	}
	return f, NewService(p)
}

func (f *matcherFixture) addInvoiceItem(t *testing.T, line int, sku, desc, qty, price string) snowflake.ID {
	t.Helper()
	item := shipmentdomain.InvoiceLineItem{
		ID: f.node.Generate(), OrgID: f.orgID, InvoiceID: f.invoiceID, LineNumber: line,
		SKU: sku, Description: desc, Quantity: decimal.RequireFromString(qty), UnitPrice: decimal.RequireFromString(price),
	}
	require.NoError(t, f.db.Create(&item).Error)
	return item.ID
}

func (f *matcherFixture) addDeclarationItem(t *testing.T, line int, sku, desc, qty, price string) snowflake.ID {
	t.Helper()
	item := declarationdomain.DeclarationLineItem{
		ID: f.node.Generate(), OrgID: f.orgID, DeclarationID: f.declarationID, LineNumber: line,
		SKU: sku, Description: desc, Quantity: decimal.RequireFromString(qty), UnitPrice: decimal.RequireFromString(price),
	}
	require.NoError(t, f.db.Create(&item).Error)
	return item.ID
}

func (f *matcherFixture) countMatches(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&matchingdomain.Match{}).Where("declaration_id = ?", f.declarationID).Count(&n).Error)
	return n
}

func TestMatchHeuristicAndIdempotentRerun(t *testing.T) {
	f, svc := setupMatcherTest(t, nil)
	ctx := context.Background()

	invItem := f.addInvoiceItem(t, 1, "X1", "Blue Widget", "5", "2.00")
	declItem := f.addDeclarationItem(t, 1, "X1", "Blue Widget Deluxe", "5", "2.00")

	outcome, err := svc.Match(ctx, f.orgID, f.invoiceID, f.declarationID)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Created)
	assert.Equal(t, 1, outcome.Heuristic)
	require.Len(t, outcome.Matches, 1)
	assert.Equal(t, invItem, outcome.Matches[0].InvoiceItemID)
	assert.Equal(t, declItem, outcome.Matches[0].DeclarationItemID)
	assert.Equal(t, matchingdomain.MethodHeuristic, outcome.Matches[0].Method)
	assert.GreaterOrEqual(t, outcome.Matches[0].Confidence, 60)

	again, err := svc.Match(ctx, f.orgID, f.invoiceID, f.declarationID)
	require.NoError(t, err)
	assert.Zero(t, again.Created)
	assert.Equal(t, 1, again.Existing)
	assert.Equal(t, int64(1), f.countMatches(t))
}

func TestMatchEmptyItemSets(t *testing.T) {
	f, svc := setupMatcherTest(t, nil)

	outcome, err := svc.Match(context.Background(), f.orgID, f.invoiceID, f.declarationID)
	require.NoError(t, err)
	assert.Zero(t, outcome.Created)
	assert.Empty(t, outcome.Matches)
}

func TestMatchUsesSupplementaryForResiduals(t *testing.T) {
	supplementary := &mockSupplementary{}
	f, svc := setupMatcherTest(t, supplementary)
	ctx := context.Background()

	skuInv := f.addInvoiceItem(t, 1, "X1", "Blue Widget", "5", "2.00")
	skuDecl := f.addDeclarationItem(t, 1, "X1", "Blue Widget", "5", "2.00")
	drillInv := f.addInvoiceItem(t, 2, "", "Cordless drill 18V", "4", "80")
	drillDecl := f.addDeclarationItem(t, 2, "", "Hand-held power tools", "3", "75")

	supplementary.On("Propose", mock.Anything, mock.MatchedBy(func(req matchingdomain.SupplementaryRequest) bool {
		return len(req.InvoiceItems) == 1 && req.InvoiceItems[0].ID == drillInv &&
			len(req.DeclarationItems) == 1 && req.DeclarationItems[0].ID == drillDecl
	})).Return([]matchingdomain.Candidate{
		{InvoiceItemID: drillInv, DeclarationItemID: drillDecl, Confidence: 140, Reason: "both are drills"},
		{InvoiceItemID: skuInv, DeclarationItemID: drillDecl, Confidence: 99},
		{InvoiceItemID: 42, DeclarationItemID: 43, Confidence: 90},
	}, nil).Once()

	outcome, err := svc.Match(ctx, f.orgID, f.invoiceID, f.declarationID)
	require.NoError(t, err)
	supplementary.AssertExpectations(t)

	assert.True(t, outcome.FallbackUsed)
	assert.Equal(t, 2, outcome.Created)
	assert.Equal(t, 1, outcome.Heuristic)
	assert.Equal(t, 1, outcome.AI)

	matches, err := svc.List(ctx, f.orgID, f.invoiceID, f.declarationID)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	byInvoiceItem := map[snowflake.ID]matchingdomain.Match{}
	for _, m := range matches {
		byInvoiceItem[m.InvoiceItemID] = m
	}
	assert.Equal(t, skuDecl, byInvoiceItem[skuInv].DeclarationItemID)
	assert.Equal(t, matchingdomain.MethodAI, byInvoiceItem[drillInv].Method)
	assert.Equal(t, 100, byInvoiceItem[drillInv].Confidence)
}

func TestMatchKeepsHeuristicResultsWhenSupplementaryFails(t *testing.T) {
	supplementary := &mockSupplementary{}
	f, svc := setupMatcherTest(t, supplementary)

	f.addInvoiceItem(t, 1, "X1", "Blue Widget", "5", "2.00")
	f.addDeclarationItem(t, 1, "X1", "Blue Widget", "5", "2.00")
	f.addInvoiceItem(t, 2, "", "Cordless drill", "4", "80")
	f.addDeclarationItem(t, 2, "", "Power tools", "3", "75")

	supplementary.On("Propose", mock.Anything, mock.Anything).Return(nil, errors.New("deadline exceeded")).Once()

	outcome, err := svc.Match(context.Background(), f.orgID, f.invoiceID, f.declarationID)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Created)
	assert.Equal(t, 1, outcome.Unmatched)
	assert.Equal(t, int64(1), f.countMatches(t))
}

func TestMatchSkipsSupplementaryBeyondBounds(t *testing.T) {
	supplementary := &mockSupplementary{}
	f, svc := setupMatcherTest(t, supplementary)

	for i := 0; i < 16; i++ {
		f.addInvoiceItem(t, i+1, "", fmt.Sprintf("alpha%02d", i), "1", "1")
	}
	f.addDeclarationItem(t, 1, "", "zulu", "2", "2")

	outcome, err := svc.Match(context.Background(), f.orgID, f.invoiceID, f.declarationID)
	require.NoError(t, err)
	assert.False(t, outcome.FallbackUsed)
	assert.Zero(t, outcome.Created)
	supplementary.AssertNotCalled(t, "Propose", mock.Anything, mock.Anything)
}

func (f *matcherFixture) addUnrelatedItems(t *testing.T, invoices, declarations int) {
	t.Helper()
	for i := 0; i < invoices; i++ {
		f.addInvoiceItem(t, i+1, "", fmt.Sprintf("alpha%02d", i), "1", "1")
	}
	for i := 0; i < declarations; i++ {
		f.addDeclarationItem(t, i+1, "", fmt.Sprintf("zulu%02d", i), "2", "2")
	}
}

func TestMatchCallsSupplementaryAtInclusiveBounds(t *testing.T) {
	supplementary := &mockSupplementary{}
	f, svc := setupMatcherTest(t, supplementary)
	f.addUnrelatedItems(t, 15, 30)

	supplementary.On("Propose", mock.Anything, mock.MatchedBy(func(req matchingdomain.SupplementaryRequest) bool {
		return len(req.InvoiceItems) == 15 && len(req.DeclarationItems) == 30
	})).Return([]matchingdomain.Candidate{}, nil).Once()

	outcome, err := svc.Match(context.Background(), f.orgID, f.invoiceID, f.declarationID)
	require.NoError(t, err)
	assert.True(t, outcome.FallbackUsed)
	assert.Zero(t, outcome.Created)
	supplementary.AssertExpectations(t)
}

func TestMatchSkipsSupplementaryOverDeclarationBound(t *testing.T) {
	supplementary := &mockSupplementary{}
	f, svc := setupMatcherTest(t, supplementary)
	f.addUnrelatedItems(t, 15, 31)

	outcome, err := svc.Match(context.Background(), f.orgID, f.invoiceID, f.declarationID)
	require.NoError(t, err)
	assert.False(t, outcome.FallbackUsed)
	assert.Equal(t, 15, outcome.Unmatched)
	supplementary.AssertNotCalled(t, "Propose", mock.Anything, mock.Anything)
}

func TestMatchRejectsUnlinkedInvoice(t *testing.T) {
	f, svc := setupMatcherTest(t, nil)
	other := shipmentdomain.Invoice{ID: f.node.Generate(), OrgID: f.orgID, InvoiceNumber: "INV-2", Currency: "USD"}
	require.NoError(t, f.db.Create(&other).Error)

	_, err := svc.Match(context.Background(), f.orgID, other.ID, f.declarationID)
	assert.ErrorIs(t, err, matchingdomain.ErrPairMismatch)

	_, err = svc.Match(context.Background(), f.orgID, f.node.Generate(), f.declarationID)
	assert.ErrorIs(t, err, shipmentdomain.ErrInvoiceNotFound)
}

func TestDeleteThenRerunRestoresMatch(t *testing.T) {
	f, svc := setupMatcherTest(t, nil)
	ctx := context.Background()

	f.addInvoiceItem(t, 1, "X1", "Blue Widget", "5", "2.00")
	f.addDeclarationItem(t, 1, "X1", "Blue Widget", "5", "2.00")

	outcome, err := svc.Match(ctx, f.orgID, f.invoiceID, f.declarationID)
	require.NoError(t, err)
	require.Len(t, outcome.Matches, 1)

	require.NoError(t, svc.Delete(ctx, f.orgID, outcome.Matches[0].ID))
	assert.Zero(t, f.countMatches(t))
	assert.ErrorIs(t, svc.Delete(ctx, f.orgID, outcome.Matches[0].ID), matchingdomain.ErrMatchNotFound)

	rerun, err := svc.Match(ctx, f.orgID, f.invoiceID, f.declarationID)
	require.NoError(t, err)
	assert.Equal(t, 1, rerun.Created)
}

func TestShipmentDeclarationMatchesMemberInvoices(t *testing.T) {
	f, svc := setupMatcherTest(t, nil)
	ctx := context.Background()

	shipmentID := f.node.Generate()
	require.NoError(t, f.db.Create(&shipmentdomain.Shipment{ID: shipmentID, OrgID: f.orgID, Reference: "SHP", CountryCode: "JM"}).Error)
	require.NoError(t, f.db.Create(&shipmentdomain.ShipmentInvoice{ShipmentID: shipmentID, InvoiceID: f.invoiceID, OrgID: f.orgID}).Error)
	require.NoError(t, f.db.Model(&declarationdomain.DeclarationForm{}).Where("id = ?", f.declarationID).
		Updates(map[string]any{"invoice_id": nil, "shipment_id": shipmentID}).Error)

	f.addInvoiceItem(t, 1, "X1", "Blue Widget", "5", "2.00")
	f.addDeclarationItem(t, 1, "X1", "Blue Widget", "5", "2.00")

	outcome, err := svc.Match(ctx, f.orgID, f.invoiceID, f.declarationID)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Created)
}
