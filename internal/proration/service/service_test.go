package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/clearline/internal/clock"
	prorationdomain "github.com/smallbiznis/clearline/internal/proration/domain"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
	shipmentrepo "github.com/smallbiznis/clearline/internal/shipment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setupRecalculationTest(t *testing.T) (*gorm.DB, prorationdomain.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&shipmentdomain.Shipment{},
		&shipmentdomain.Invoice{},
		&shipmentdomain.InvoiceLineItem{},
		&shipmentdomain.ShipmentInvoice{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:           db,
		Log:          zap.NewNop(),
		Clock:        clock.NewFakeClock(fixedNow),
		ShipmentRepo: shipmentrepo.NewRepository(db),
	})
	return db, svc, node
}

func seedInvoice(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID, shipmentID snowflake.ID, attachedAt time.Time, lineTotals ...string) snowflake.ID {
	t.Helper()

	invoice := shipmentdomain.Invoice{
		ID:            node.Generate(),
		OrgID:         orgID,
		InvoiceNumber: "INV-" + attachedAt.Format("150405"),
		Currency:      "USD",
		CreatedAt:     attachedAt,
		UpdatedAt:     attachedAt,
	}
	require.NoError(t, db.Create(&invoice).Error)

	for i, total := range lineTotals {
		item := shipmentdomain.InvoiceLineItem{
			ID:          node.Generate(),
			OrgID:       orgID,
			InvoiceID:   invoice.ID,
			LineNumber:  i + 1,
			Description: "line",
			Quantity:    d("1"),
			UnitPrice:   d(total),
			LineTotal:   decimal.NewNullDecimal(d(total)),
			CreatedAt:   attachedAt,
		}
		require.NoError(t, db.Create(&item).Error)
	}

	require.NoError(t, db.Create(&shipmentdomain.ShipmentInvoice{
		ShipmentID: shipmentID,
		InvoiceID:  invoice.ID,
		OrgID:      orgID,
		CreatedAt:  attachedAt,
		UpdatedAt:  attachedAt,
	}).Error)
	return invoice.ID
}

func seedShipment(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID, mutate func(*shipmentdomain.Shipment)) shipmentdomain.Shipment {
	t.Helper()

	shipment := shipmentdomain.Shipment{
		ID:             node.Generate(),
		OrgID:          orgID,
		Reference:      "SHP-1",
		CountryCode:    "JM",
		FreightTotal:   d("100"),
		InsuranceMode:  shipmentdomain.InsuranceModeManual,
		InsuranceTotal: d("20"),
		CreatedAt:      fixedNow,
		UpdatedAt:      fixedNow,
	}
	if mutate != nil {
		mutate(&shipment)
	}
	require.NoError(t, db.Create(&shipment).Error)
	return shipment
}

func TestRecalculateShipmentPersistsShares(t *testing.T) {
	db, svc, node := setupRecalculationTest(t)
	ctx := context.Background()
	orgID := node.Generate()

	shipment := seedShipment(t, db, node, orgID, nil)
	invA := seedInvoice(t, db, node, orgID, shipment.ID, fixedNow.Add(-2*time.Hour), "600")
	invB := seedInvoice(t, db, node, orgID, shipment.ID, fixedNow.Add(-time.Hour), "250", "150")

	summary, err := svc.RecalculateShipment(ctx, orgID, shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", summary.FOBTotal.StringFixed(2))
	assert.Equal(t, "1120.00", summary.CIFTotal.StringFixed(2))
	require.Len(t, summary.Invoices, 2)
	assert.Equal(t, invA, summary.Invoices[0].InvoiceID)
	assert.Equal(t, "60.00", summary.Invoices[0].ProratedFreight.StringFixed(2))
	assert.Equal(t, "12.00", summary.Invoices[0].ProratedInsurance.StringFixed(2))
	assert.Equal(t, invB, summary.Invoices[1].InvoiceID)
	assert.Equal(t, "40.00", summary.Invoices[1].ProratedFreight.StringFixed(2))
	assert.Equal(t, "8.00", summary.Invoices[1].ProratedInsurance.StringFixed(2))

	var pivots []shipmentdomain.ShipmentInvoice
	require.NoError(t, db.Where("shipment_id = ?", shipment.ID).Order("created_at ASC").Find(&pivots).Error)
	require.Len(t, pivots, 2)
	assert.True(t, pivots[0].ProratedFreight.Equal(d("60")))
	assert.True(t, pivots[0].FOBAmount.Equal(d("600")))
	assert.True(t, pivots[1].ProratedInsurance.Equal(d("8")))
	for _, pivot := range pivots {
		assert.True(t, pivot.UpdatedAt.Equal(fixedNow), "pivot updated_at %s", pivot.UpdatedAt)
	}

	var stored shipmentdomain.Shipment
	require.NoError(t, db.First(&stored, "id = ?", shipment.ID).Error)
	assert.True(t, stored.FOBTotal.Equal(d("1000")))
	assert.True(t, stored.CIFTotal.Equal(d("1120")))
	require.NotNil(t, stored.RecalculatedAt)
	assert.True(t, stored.RecalculatedAt.Equal(fixedNow))
}

func TestRecalculateShipmentIsIdempotent(t *testing.T) {
	db, svc, node := setupRecalculationTest(t)
	ctx := context.Background()
	orgID := node.Generate()

	shipment := seedShipment(t, db, node, orgID, func(s *shipmentdomain.Shipment) {
		s.FreightTotal = d("100")
		s.InsuranceMode = shipmentdomain.InsuranceModePercentage
		s.InsurancePercentage = d("1.5")
	})
	seedInvoice(t, db, node, orgID, shipment.ID, fixedNow.Add(-3*time.Hour), "333.33")
	seedInvoice(t, db, node, orgID, shipment.ID, fixedNow.Add(-2*time.Hour), "333.33")
	seedInvoice(t, db, node, orgID, shipment.ID, fixedNow.Add(-time.Hour), "333.34")

	first, err := svc.RecalculateShipment(ctx, orgID, shipment.ID)
	require.NoError(t, err)
	second, err := svc.RecalculateShipment(ctx, orgID, shipment.ID)
	require.NoError(t, err)

	assert.Equal(t, "15.00", first.InsuranceTotal.StringFixed(2))
	require.Len(t, second.Invoices, len(first.Invoices))
	for i := range first.Invoices {
		assert.Equal(t, first.Invoices[i].ProratedFreight.String(), second.Invoices[i].ProratedFreight.String())
		assert.Equal(t, first.Invoices[i].ProratedInsurance.String(), second.Invoices[i].ProratedInsurance.String())
	}
	assert.Equal(t, first.CIFTotal.String(), second.CIFTotal.String())
}

func TestRecalculateEmptyShipment(t *testing.T) {
	db, svc, node := setupRecalculationTest(t)
	orgID := node.Generate()
	shipment := seedShipment(t, db, node, orgID, nil)

	summary, err := svc.RecalculateShipment(context.Background(), orgID, shipment.ID)
	require.NoError(t, err)
	assert.True(t, summary.FOBTotal.IsZero())
	assert.Equal(t, "120.00", summary.CIFTotal.StringFixed(2))
	assert.Empty(t, summary.Invoices)
}

func TestRecalculateIsScopedToOrg(t *testing.T) {
	db, svc, node := setupRecalculationTest(t)
	orgID := node.Generate()
	shipment := seedShipment(t, db, node, orgID, nil)

	_, err := svc.RecalculateShipment(context.Background(), node.Generate(), shipment.ID)
	assert.ErrorIs(t, err, shipmentdomain.ErrShipmentNotFound)
}

func TestRecalculateShipmentRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	db, svc, node := setupRecalculationTest(t)
	orgID := node.Generate()
	shipment := seedShipment(t, db, node, orgID, nil)

	_, err := svc.RecalculateShipment(context.Background(), orgID, shipment.ID)
	require.NoError(t, err)
	_, err = svc.RecalculateShipment(context.Background(), orgID, node.Generate())
	require.ErrorIs(t, err, shipmentdomain.ErrShipmentNotFound)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "proration.recalculate_shipment", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
