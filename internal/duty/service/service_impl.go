package service

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clearline/internal/clock"
	"github.com/smallbiznis/clearline/internal/config"
	declarationdomain "github.com/smallbiznis/clearline/internal/declaration/domain"
	"github.com/smallbiznis/clearline/internal/duty/calculator"
	dutydomain "github.com/smallbiznis/clearline/internal/duty/domain"
	"github.com/smallbiznis/clearline/internal/duty/export"
	levydomain "github.com/smallbiznis/clearline/internal/levy/domain"
	matchingdomain "github.com/smallbiznis/clearline/internal/matching/domain"
	"github.com/smallbiznis/clearline/internal/observability/metrics"
	prorationdomain "github.com/smallbiznis/clearline/internal/proration/domain"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
	tariffdomain "github.com/smallbiznis/clearline/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	Config          *config.ReconciliationConfigHolder
	DeclarationRepo declarationdomain.Repository
	ShipmentRepo    shipmentdomain.Repository
	MatchRepo       matchingdomain.Repository
	TariffSvc       tariffdomain.Service
	LevySvc         levydomain.Service
	Metrics         *metrics.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	clock           clock.Clock
	config          *config.ReconciliationConfigHolder
	declarationRepo declarationdomain.Repository
	shipmentRepo    shipmentdomain.Repository
	matchRepo       matchingdomain.Repository
	tariffSvc       tariffdomain.Service
	levySvc         levydomain.Service
	metrics         *metrics.Metrics
}

func NewService(p ServiceParam) dutydomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("duty.service"),
		clock:           p.Clock,
		config:          p.Config,
		declarationRepo: p.DeclarationRepo,
		shipmentRepo:    p.ShipmentRepo,
		matchRepo:       p.MatchRepo,
		tariffSvc:       p.TariffSvc,
		levySvc:         p.LevySvc,
		metrics:         p.Metrics,
	}
}

func (s *Service) Preview(ctx context.Context, orgID, declarationID snowflake.ID) (*dutydomain.Result, error) {
	_, res, err := s.calculate(ctx, orgID, declarationID)
	if err != nil {
		s.metrics.RecordCalculation(ctx, "failed")
		return nil, err
	}
	s.metrics.RecordCalculation(ctx, "preview")
	return res, nil
}

func (s *Service) Apply(ctx context.Context, orgID, declarationID snowflake.ID) (*dutydomain.Result, error) {
	_, res, err := s.calculate(ctx, orgID, declarationID)
	if err != nil {
		s.metrics.RecordCalculation(ctx, "failed")
		return nil, err
	}

	breakdown, err := json.Marshal(res)
	if err != nil {
		s.metrics.RecordCalculation(ctx, "failed")
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.declarationRepo.WithTrx(tx).SaveTotals(ctx, orgID, declarationID, declarationdomain.Totals{
			FOBTotal:         res.FOBTotal,
			FreightTotal:     res.FreightTotal,
			InsuranceTotal:   res.InsuranceTotal,
			CIFTotal:         res.CIFTotal,
			CustomsDutyTotal: res.CustomsDutyTotal,
			LeviesTotal:      res.LeviesTotal,
			TotalPayable:     res.TotalPayable,
			Breakdown:        breakdown,
			CalculatedAt:     res.CalculatedAt,
		})
	})
	if err != nil {
		s.metrics.RecordCalculation(ctx, "failed")
		s.log.Error("failed to apply calculation",
			zap.String("org_id", orgID.String()),
			zap.String("declaration_id", declarationID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordCalculation(ctx, "applied")
	s.log.Info("declaration calculated",
		zap.String("org_id", orgID.String()),
		zap.String("declaration_id", declarationID.String()),
		zap.String("total_payable", res.TotalPayable.StringFixed(2)),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

func (s *Service) Export(ctx context.Context, orgID, declarationID snowflake.ID) ([]byte, error) {
	decl, res, err := s.calculate(ctx, orgID, declarationID)
	if err != nil {
		s.metrics.RecordCalculation(ctx, "failed")
		return nil, err
	}
	s.metrics.RecordCalculation(ctx, "preview")

	reference := decl.Reference
	if reference == "" {
		reference = decl.ID.String()
	}
	return export.Workbook(reference, res)
}

func (s *Service) calculate(ctx context.Context, orgID, declarationID snowflake.ID) (*declarationdomain.DeclarationForm, *dutydomain.Result, error) {
	loaded, err := s.declarationRepo.Load(ctx, orgID, declarationID)
	if err != nil {
		return nil, nil, err
	}
	if loaded == nil {
		return nil, nil, declarationdomain.ErrDeclarationNotFound
	}
	decl := loaded.Declaration

	in := calculator.Input{
		CountryCode:   decl.CountryCode,
		ConsigneeType: decl.ConsigneeType,
		At:            s.clock.Now().UTC(),
		WharfageCode:  s.config.Get().WharfageLevyCode,
	}

	switch {
	case decl.ShipmentID != nil:
		graph, err := s.shipmentRepo.LoadShipmentGraph(ctx, orgID, *decl.ShipmentID)
		if err != nil {
			return nil, nil, err
		}
		if graph == nil {
			return nil, nil, shipmentdomain.ErrShipmentNotFound
		}
		in.Header = prorationdomain.HeaderFromShipment(graph.Shipment)
		in.GrossWeight = graph.Shipment.GrossWeight
		in.Invoices = graph.Invoices
	case decl.InvoiceID != nil:
		invoice, err := s.shipmentRepo.LoadInvoice(ctx, orgID, *decl.InvoiceID)
		if err != nil {
			return nil, nil, err
		}
		if invoice == nil {
			return nil, nil, shipmentdomain.ErrInvoiceNotFound
		}
		in.Header = prorationdomain.HeaderFromInvoice(invoice.Invoice)
		in.GrossWeight = invoice.Invoice.GrossWeight
		in.Invoices = []shipmentdomain.InvoiceWithItems{*invoice}
	default:
		return nil, nil, declarationdomain.ErrDeclarationUnlinked
	}

	in.Classifications, err = s.classifications(ctx, orgID, declarationID, loaded.Items)
	if err != nil {
		return nil, nil, err
	}
	in.Tariffs, err = s.tariffSvc.Table(ctx, decl.CountryCode)
	if err != nil {
		return nil, nil, err
	}
	in.Levies, err = s.levySvc.ListForCountry(ctx, decl.CountryCode)
	if err != nil {
		return nil, nil, err
	}

	res := calculator.Calculate(in)
	return &decl, &res, nil
}

// classifications maps each matched invoice item to its declaration item's tariff data.
func (s *Service) classifications(ctx context.Context, orgID, declarationID snowflake.ID, items []declarationdomain.DeclarationLineItem) (map[snowflake.ID]calculator.Classification, error) {
	matches, err := s.matchRepo.ListByDeclaration(ctx, orgID, declarationID)
	if err != nil {
		return nil, err
	}

	byID := make(map[snowflake.ID]declarationdomain.DeclarationLineItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	out := make(map[snowflake.ID]calculator.Classification, len(matches))
	for _, m := range matches {
		item, ok := byID[m.DeclarationItemID]
		if !ok {
			continue
		}
		out[m.InvoiceItemID] = calculator.Classification{
			TariffCode: item.TariffCode,
			DutyRate:   item.DutyRate,
		}
	}
	return out, nil
}
