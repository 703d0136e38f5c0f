package service

import (
	"bytes"
	"context"
	"encoding/json"
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
	dutydomain "github.com/smallbiznis/clearline/internal/duty/domain"
	"github.com/smallbiznis/clearline/internal/duty/export"
	levydomain "github.com/smallbiznis/clearline/internal/levy/domain"
	levyrepo "github.com/smallbiznis/clearline/internal/levy/repository"
	levyservice "github.com/smallbiznis/clearline/internal/levy/service"
	matchingdomain "github.com/smallbiznis/clearline/internal/matching/domain"
	matchingrepo "github.com/smallbiznis/clearline/internal/matching/repository"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
	shipmentrepo "github.com/smallbiznis/clearline/internal/shipment/repository"
	tariffdomain "github.com/smallbiznis/clearline/internal/tariff/domain"
	tariffrepo "github.com/smallbiznis/clearline/internal/tariff/repository"
	tariffservice "github.com/smallbiznis/clearline/internal/tariff/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

type dutyFixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	orgID snowflake.ID
	clock *clock.FakeClock
	svc   dutydomain.Service
}

func setupDutyTest(t *testing.T) *dutyFixture {
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
		&tariffdomain.TariffRate{},
		&levydomain.CountryLevy{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	fakeClock := clock.NewFakeClock(fixedNow)

	svc := NewService(ServiceParam{
		DB:              db,
		Log:             log,
		Clock:           fakeClock,
		Config:          config.NewStaticReconciliationConfigHolder(config.DefaultReconciliationConfig()),
		DeclarationRepo: declarationrepo.NewRepository(db),
		ShipmentRepo:    shipmentrepo.NewRepository(db),
		MatchRepo:       matchingrepo.NewRepository(db),
		TariffSvc:       tariffservice.NewService(tariffservice.ServiceParam{Log: log, GenID: node, Clock: fakeClock, Repo: tariffrepo.NewRepository(db)}),
		LevySvc:         levyservice.NewService(levyservice.ServiceParam{Log: log, GenID: node, Clock: fakeClock, Repo: levyrepo.NewRepository(db)}),
	})

	f := &dutyFixture{db: db, node: node, orgID: node.Generate(), clock: fakeClock, svc: svc}
	require.NoError(t, db.Create(&tariffdomain.TariffRate{ID: node.Generate(), CountryCode: "JM", Code: "8471", Description: "Computers", DutyRate: d("10")}).Error)
	require.NoError(t, db.Create(&levydomain.CountryLevy{
		ID:                   node.Generate(),
		CountryCode:          "JM",
		Code:                 "ENV",
		Name:                 "Environmental levy",
		Rate:                 d("2"),
		RateType:             levydomain.RateTypePercentage,
		Basis:                levydomain.BasisCIF,
		AppliesToAllChapters: true,
		IsActive:             true,
	}).Error)
	return f
}

func (f *dutyFixture) seedInvoice(t *testing.T, freight string, items ...shipmentdomain.InvoiceLineItem) snowflake.ID {
	t.Helper()

	invoice := shipmentdomain.Invoice{
		ID:            f.node.Generate(),
		OrgID:         f.orgID,
		InvoiceNumber: "INV",
		Currency:      "USD",
		FreightAmount: d(freight),
		CreatedAt:     fixedNow,
		UpdatedAt:     fixedNow,
	}
	require.NoError(t, f.db.Create(&invoice).Error)
	for i := range items {
		items[i].ID = f.node.Generate()
		items[i].OrgID = f.orgID
		items[i].InvoiceID = invoice.ID
		items[i].LineNumber = i + 1
		items[i].CreatedAt = fixedNow
		require.NoError(t, f.db.Create(&items[i]).Error)
	}
	return invoice.ID
}

func lineItem(total string, hint *string) shipmentdomain.InvoiceLineItem {
	return shipmentdomain.InvoiceLineItem{
		Description:    "line",
		Quantity:       d("1"),
		UnitPrice:      d(total),
		LineTotal:      decimal.NewNullDecimal(d(total)),
		TariffCodeHint: hint,
	}
}

func (f *dutyFixture) seedDeclaration(t *testing.T, mutate func(*declarationdomain.DeclarationForm)) snowflake.ID {
	t.Helper()

	decl := declarationdomain.DeclarationForm{
		ID:          f.node.Generate(),
		OrgID:       f.orgID,
		Reference:   "DEC-1",
		CountryCode: "JM",
		Status:      declarationdomain.StatusDraft,
		CreatedAt:   fixedNow,
		UpdatedAt:   fixedNow,
	}
	mutate(&decl)
	require.NoError(t, f.db.Create(&decl).Error)
	return decl.ID
}

func TestPreviewDoesNotPersist(t *testing.T) {
	f := setupDutyTest(t)
	invoiceID := f.seedInvoice(t, "0", lineItem("200", strPtr("8471.30")))
	declID := f.seedDeclaration(t, func(decl *declarationdomain.DeclarationForm) { decl.InvoiceID = &invoiceID })

	res, err := f.svc.Preview(context.Background(), f.orgID, declID)
	require.NoError(t, err)
	assert.Equal(t, "20.00", res.CustomsDutyTotal.StringFixed(2))
	assert.Equal(t, "4.00", res.LeviesTotal.StringFixed(2))
	assert.Equal(t, "24.00", res.TotalPayable.StringFixed(2))
	assert.Equal(t, fixedNow, res.CalculatedAt)

	var stored declarationdomain.DeclarationForm
	require.NoError(t, f.db.First(&stored, "id = ?", declID).Error)
	assert.Equal(t, declarationdomain.StatusDraft, stored.Status)
	assert.True(t, stored.TotalPayable.IsZero())
	assert.Nil(t, stored.CalculatedAt)
}

func TestLevyEffectiveWindowFollowsClock(t *testing.T) {
	f := setupDutyTest(t)
	from := fixedNow.AddDate(0, 1, 0)
	require.NoError(t, f.db.Create(&levydomain.CountryLevy{
		ID:                   f.node.Generate(),
		CountryCode:          "JM",
		Code:                 "STAMP",
		Name:                 "Stamp duty",
		Rate:                 d("5"),
		RateType:             levydomain.RateTypeFixedAmount,
		Basis:                levydomain.BasisCIF,
		AppliesToAllChapters: true,
		EffectiveFrom:        &from,
		IsActive:             true,
	}).Error)

	invoiceID := f.seedInvoice(t, "0", lineItem("200", strPtr("8471.30")))
	declID := f.seedDeclaration(t, func(decl *declarationdomain.DeclarationForm) { decl.InvoiceID = &invoiceID })

	res, err := f.svc.Preview(context.Background(), f.orgID, declID)
	require.NoError(t, err)
	assert.Equal(t, "4.00", res.LeviesTotal.StringFixed(2))

	f.clock.Set(from.Add(time.Hour))
	res, err = f.svc.Preview(context.Background(), f.orgID, declID)
	require.NoError(t, err)
	assert.Equal(t, "9.00", res.LeviesTotal.StringFixed(2))
}

func TestApplyPersistsTotals(t *testing.T) {
	f := setupDutyTest(t)
	invoiceID := f.seedInvoice(t, "0", lineItem("200", strPtr("8471.30")))
	declID := f.seedDeclaration(t, func(decl *declarationdomain.DeclarationForm) { decl.InvoiceID = &invoiceID })

	res, err := f.svc.Apply(context.Background(), f.orgID, declID)
	require.NoError(t, err)

	var stored declarationdomain.DeclarationForm
	require.NoError(t, f.db.First(&stored, "id = ?", declID).Error)
	assert.Equal(t, declarationdomain.StatusCalculated, stored.Status)
	assert.True(t, stored.TotalPayable.Equal(d("24")))
	assert.True(t, stored.CIFTotal.Equal(d("200")))
	require.NotNil(t, stored.CalculatedAt)
	assert.True(t, stored.CalculatedAt.Equal(fixedNow))

	var breakdown dutydomain.Result
	require.NoError(t, json.Unmarshal(stored.Breakdown, &breakdown))
	assert.True(t, breakdown.TotalPayable.Equal(res.TotalPayable))
	require.Len(t, breakdown.Levies, 1)

	again, err := f.svc.Apply(context.Background(), f.orgID, declID)
	require.NoError(t, err)
	assert.True(t, again.TotalPayable.Equal(res.TotalPayable))
}

func TestShipmentDeclarationUsesMatchedClassification(t *testing.T) {
	f := setupDutyTest(t)

	shipment := shipmentdomain.Shipment{
		ID:             f.node.Generate(),
		OrgID:          f.orgID,
		Reference:      "SHP-1",
		CountryCode:    "JM",
		FreightTotal:   d("100"),
		InsuranceMode:  shipmentdomain.InsuranceModeManual,
		InsuranceTotal: d("0"),
		CreatedAt:      fixedNow,
		UpdatedAt:      fixedNow,
	}
	require.NoError(t, f.db.Create(&shipment).Error)

	matched := lineItem("600", nil)
	invoiceA := f.seedInvoice(t, "0", matched)
	invoiceB := f.seedInvoice(t, "0", lineItem("400", nil))
	for i, invoiceID := range []snowflake.ID{invoiceA, invoiceB} {
		require.NoError(t, f.db.Create(&shipmentdomain.ShipmentInvoice{
			ShipmentID: shipment.ID,
			InvoiceID:  invoiceID,
			OrgID:      f.orgID,
			CreatedAt:  fixedNow.Add(time.Duration(i) * time.Minute),
			UpdatedAt:  fixedNow,
		}).Error)
	}
	shipmentID := shipment.ID
	declID := f.seedDeclaration(t, func(decl *declarationdomain.DeclarationForm) { decl.ShipmentID = &shipmentID })

	declItem := declarationdomain.DeclarationLineItem{
		ID:            f.node.Generate(),
		OrgID:         f.orgID,
		DeclarationID: declID,
		LineNumber:    1,
		Description:   "cotton shirts",
		Quantity:      d("1"),
		TariffCode:    strPtr("6109"),
		DutyRate:      decimal.NewNullDecimal(d("20")),
		CreatedAt:     fixedNow,
	}
	require.NoError(t, f.db.Create(&declItem).Error)

	var itemA shipmentdomain.InvoiceLineItem
	require.NoError(t, f.db.First(&itemA, "invoice_id = ?", invoiceA).Error)
	require.NoError(t, f.db.Create(&matchingdomain.Match{
		ID:                f.node.Generate(),
		OrgID:             f.orgID,
		InvoiceID:         invoiceA,
		DeclarationID:     declID,
		InvoiceItemID:     itemA.ID,
		DeclarationItemID: declItem.ID,
		Confidence:        90,
		Method:            matchingdomain.MethodHeuristic,
		CreatedAt:         fixedNow,
	}).Error)

	res, err := f.svc.Preview(context.Background(), f.orgID, declID)
	require.NoError(t, err)

	assert.Equal(t, "1100.00", res.CIFTotal.StringFixed(2))
	assert.Equal(t, "132.00", res.CustomsDutyTotal.StringFixed(2), "660 cif at the recorded 20%")
	assert.Equal(t, "22.00", res.LeviesTotal.StringFixed(2))
	assert.Len(t, res.Warnings, 1)

	require.Len(t, res.Groups, 2)
	assert.Equal(t, "6109", *res.Groups[0].TariffCode)
	assert.Nil(t, res.Groups[1].TariffCode)
}

func TestExportProducesWorkbook(t *testing.T) {
	f := setupDutyTest(t)
	invoiceID := f.seedInvoice(t, "0", lineItem("200", strPtr("8471")))
	declID := f.seedDeclaration(t, func(decl *declarationdomain.DeclarationForm) { decl.InvoiceID = &invoiceID })

	raw, err := f.svc.Export(context.Background(), f.orgID, declID)
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer wb.Close()

	ref, err := wb.GetCellValue(export.SheetSummary, "B1")
	require.NoError(t, err)
	assert.Equal(t, "DEC-1", ref)
}

func TestCalculationErrors(t *testing.T) {
	f := setupDutyTest(t)

	_, err := f.svc.Preview(context.Background(), f.orgID, f.node.Generate())
	assert.ErrorIs(t, err, declarationdomain.ErrDeclarationNotFound)

	unlinked := f.seedDeclaration(t, func(*declarationdomain.DeclarationForm) {})
	_, err = f.svc.Apply(context.Background(), f.orgID, unlinked)
	assert.ErrorIs(t, err, declarationdomain.ErrDeclarationUnlinked)

	missing := f.node.Generate()
	dangling := f.seedDeclaration(t, func(decl *declarationdomain.DeclarationForm) { decl.InvoiceID = &missing })
	_, err = f.svc.Preview(context.Background(), f.orgID, dangling)
	assert.ErrorIs(t, err, shipmentdomain.ErrInvoiceNotFound)

	invoiceID := f.seedInvoice(t, "0", lineItem("10", nil))
	owned := f.seedDeclaration(t, func(decl *declarationdomain.DeclarationForm) { decl.InvoiceID = &invoiceID })
	_, err = f.svc.Preview(context.Background(), f.node.Generate(), owned)
	assert.ErrorIs(t, err, declarationdomain.ErrDeclarationNotFound)
}
