package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clearline/internal/clock"
	"github.com/smallbiznis/clearline/internal/money"
	"github.com/smallbiznis/clearline/internal/observability/metrics"
	"github.com/smallbiznis/clearline/internal/observability/tracing"
	prorationdomain "github.com/smallbiznis/clearline/internal/proration/domain"
	"github.com/smallbiznis/clearline/internal/ratelimit"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	ShipmentRepo shipmentdomain.Repository
	Guard        *ratelimit.Guard `optional:"true"`
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	shipmentRepo shipmentdomain.Repository
	guard        *ratelimit.Guard
	metrics      *metrics.Metrics
}

func NewService(p ServiceParam) prorationdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("proration.service"),
		clock:        p.Clock,
		shipmentRepo: p.ShipmentRepo,
		guard:        p.Guard,
		metrics:      p.Metrics,
	}
}

func (s *Service) RecalculateShipment(ctx context.Context, orgID, shipmentID snowflake.ID) (_ *prorationdomain.Summary, err error) {
	ctx, span := otel.Tracer("clearline/proration").Start(ctx, "proration.recalculate_shipment",
		trace.WithAttributes(attribute.String("shipment_id", shipmentID.String())),
	)
	defer func() { tracing.EndSpan(span, err) }()

	return s.recalculateShipment(ctx, orgID, shipmentID)
}

func (s *Service) recalculateShipment(ctx context.Context, orgID, shipmentID snowflake.ID) (*prorationdomain.Summary, error) {
	token, acquired, err := s.guard.LockShipment(ctx, orgID, shipmentID)
	if err != nil {
		s.metrics.RecordRecalculation(ctx, "failed")
		return nil, fmt.Errorf("lock shipment: %w", err)
	}
	if !acquired {
		s.metrics.RecordRecalculation(ctx, "busy")
		return nil, prorationdomain.ErrRecalculationInProgress
	}
	defer func() {
		if err := s.guard.UnlockShipment(context.WithoutCancel(ctx), orgID, shipmentID, token); err != nil {
			s.log.Warn("failed to release shipment lock", zap.String("shipment_id", shipmentID.String()), zap.Error(err))
		}
	}()

	var summary *prorationdomain.Summary
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.shipmentRepo.WithTrx(tx)

		shipment, err := repo.FindShipmentForUpdate(ctx, orgID, shipmentID)
		if err != nil {
			return err
		}
		if shipment == nil {
			return shipmentdomain.ErrShipmentNotFound
		}

		graph, err := repo.LoadShipmentGraph(ctx, orgID, shipmentID)
		if err != nil {
			return err
		}
		if graph == nil {
			return shipmentdomain.ErrShipmentNotFound
		}

		summary, err = s.recalculate(ctx, repo, graph)
		return err
	})
	if err != nil {
		s.metrics.RecordRecalculation(ctx, "failed")
		return nil, err
	}

	s.metrics.RecordRecalculation(ctx, "ok")
	s.log.Info("shipment recalculated",
		zap.String("org_id", orgID.String()),
		zap.String("shipment_id", shipmentID.String()),
		zap.Int("invoices", len(summary.Invoices)),
		zap.String("cif_total", summary.CIFTotal.String()),
	)
	return summary, nil
}

func (s *Service) recalculate(ctx context.Context, repo shipmentdomain.Repository, graph *shipmentdomain.ShipmentGraph) (*prorationdomain.Summary, error) {
	inputs, fob := prorationdomain.InvoiceInputs(graph.Invoices)
	totals := prorationdomain.ComputeTotals(fob, prorationdomain.HeaderFromShipment(graph.Shipment))
	shares := prorationdomain.ProrateShipment(totals, inputs)

	now := s.clock.Now()
	shipment := graph.Shipment
	shipment.FOBTotal = money.Round(totals.FOB)
	shipment.InsuranceTotal = money.Round(totals.Insurance)
	shipment.CIFTotal = money.Round(totals.CIF)
	shipment.RecalculatedAt = &now
	shipment.UpdatedAt = now
	if err := repo.UpdateShipmentTotals(ctx, &shipment); err != nil {
		return nil, err
	}

	rows := make([]shipmentdomain.ShipmentInvoice, 0, len(shares))
	summary := &prorationdomain.Summary{
		ShipmentID:     shipment.ID,
		FOBTotal:       shipment.FOBTotal,
		FreightTotal:   money.Round(totals.Freight),
		InsuranceTotal: shipment.InsuranceTotal,
		CIFTotal:       shipment.CIFTotal,
		Invoices:       make([]prorationdomain.ShareSummary, 0, len(shares)),
		RecalculatedAt: now,
	}
	for _, share := range shares {
		row := shipmentdomain.ShipmentInvoice{
			ShipmentID:        shipment.ID,
			InvoiceID:         share.InvoiceID,
			OrgID:             shipment.OrgID,
			FOBAmount:         money.Round(share.FOB),
			ProratedFreight:   money.Round(share.Freight),
			ProratedInsurance: money.Round(share.Insurance),
			UpdatedAt:         now,
		}
		rows = append(rows, row)
		summary.Invoices = append(summary.Invoices, prorationdomain.ShareSummary{
			InvoiceID:         row.InvoiceID,
			FOBAmount:         row.FOBAmount,
			ProratedFreight:   row.ProratedFreight,
			ProratedInsurance: row.ProratedInsurance,
		})
	}
	if err := repo.SaveShares(ctx, rows); err != nil {
		return nil, err
	}
	return summary, nil
}
