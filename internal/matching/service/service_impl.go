package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clearline/internal/clock"
	"github.com/smallbiznis/clearline/internal/config"
	declarationdomain "github.com/smallbiznis/clearline/internal/declaration/domain"
	matchingdomain "github.com/smallbiznis/clearline/internal/matching/domain"
	"github.com/smallbiznis/clearline/internal/observability/metrics"
	"github.com/smallbiznis/clearline/internal/ratelimit"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
	"github.com/smallbiznis/clearline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Config          *config.ReconciliationConfigHolder
	Repo            matchingdomain.Repository
	ShipmentRepo    shipmentdomain.Repository
	DeclarationRepo declarationdomain.Repository
	Supplementary   matchingdomain.SupplementaryMatcher `optional:"true"`
	Guard           *ratelimit.Guard                    `optional:"true"`
	Metrics         *metrics.Metrics                    `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	config          *config.ReconciliationConfigHolder
	repo            matchingdomain.Repository
	shipmentRepo    shipmentdomain.Repository
	declarationRepo declarationdomain.Repository
	supplementary   matchingdomain.SupplementaryMatcher
	guard           *ratelimit.Guard
	metrics         *metrics.Metrics
}

func NewService(p ServiceParam) matchingdomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("matching.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		config:          p.Config,
		repo:            p.Repo,
		shipmentRepo:    p.ShipmentRepo,
		declarationRepo: p.DeclarationRepo,
		supplementary:   p.Supplementary,
		guard:           p.Guard,
		metrics:         p.Metrics,
	}
}

func (s *Service) Match(ctx context.Context, orgID, invoiceID, declarationID snowflake.ID) (*matchingdomain.Outcome, error) {
	invoice, err := s.shipmentRepo.LoadInvoice(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, shipmentdomain.ErrInvoiceNotFound
	}
	declaration, err := s.declarationRepo.Load(ctx, orgID, declarationID)
	if err != nil {
		return nil, err
	}
	if declaration == nil {
		return nil, declarationdomain.ErrDeclarationNotFound
	}
	if err := s.ensureLinked(ctx, orgID, invoiceID, declaration.Declaration); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByDeclaration(ctx, orgID, declarationID)
	if err != nil {
		return nil, err
	}
	invoiceItems, declarationItems := unclaimed(invoice.Items, declaration.Items, existing)

	outcome := &matchingdomain.Outcome{Existing: countForInvoice(existing, invoiceID), Matches: []matchingdomain.Match{}}
	if len(invoiceItems) == 0 || len(declarationItems) == 0 {
		outcome.Unmatched = len(invoiceItems)
		return outcome, nil
	}

	cfg := s.config.Get()
	candidates := matchingdomain.Heuristic(invoiceItems, declarationItems, cfg.MatchThreshold)

	residualInvoice, residualDeclaration := residual(invoiceItems, declarationItems, candidates)
	if s.fallbackAllowed(ctx, orgID, cfg, residualInvoice, len(declaration.Items), residualDeclaration) {
		outcome.FallbackUsed = true
		candidates = append(candidates, s.propose(ctx, orgID, cfg, residualInvoice, residualDeclaration)...)
	}

	survivors := matchingdomain.Dedup(candidates)
	created, err := s.persist(ctx, orgID, invoiceID, declarationID, survivors)
	if err != nil {
		return nil, err
	}

	outcome.Matches = created
	outcome.Created = len(created)
	for _, m := range created {
		if m.Method == matchingdomain.MethodAI {
			outcome.AI++
		} else {
			outcome.Heuristic++
		}
	}
	outcome.Unmatched = len(invoiceItems) - len(survivors)

	s.metrics.RecordMatchesCreated(ctx, string(matchingdomain.MethodHeuristic), outcome.Heuristic)
	s.metrics.RecordMatchesCreated(ctx, string(matchingdomain.MethodAI), outcome.AI)
	s.log.Info("items matched",
		zap.String("org_id", orgID.String()),
		zap.String("invoice_id", invoiceID.String()),
		zap.String("declaration_id", declarationID.String()),
		zap.Int("created", outcome.Created),
		zap.Int("heuristic", outcome.Heuristic),
		zap.Int("ai", outcome.AI),
		zap.Int("unmatched", outcome.Unmatched),
		zap.Bool("fallback_used", outcome.FallbackUsed),
	)
	return outcome, nil
}

// ensureLinked rejects pairs whose invoice is not covered by the declaration.
func (s *Service) ensureLinked(ctx context.Context, orgID, invoiceID snowflake.ID, decl declarationdomain.DeclarationForm) error {
	if decl.InvoiceID != nil {
		if *decl.InvoiceID == invoiceID {
			return nil
		}
		return matchingdomain.ErrPairMismatch
	}
	if decl.ShipmentID == nil {
		return declarationdomain.ErrDeclarationUnlinked
	}
	members, err := s.shipmentRepo.ListShipmentInvoices(ctx, orgID, *decl.ShipmentID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.InvoiceID == invoiceID {
			return nil
		}
	}
	return matchingdomain.ErrPairMismatch
}

func (s *Service) fallbackAllowed(ctx context.Context, orgID snowflake.ID, cfg config.ReconciliationConfig, invoiceItems []shipmentdomain.InvoiceLineItem, declarationCount int, declarationItems []declarationdomain.DeclarationLineItem) bool {
	if s.supplementary == nil || len(invoiceItems) == 0 || len(declarationItems) == 0 {
		return false
	}
	if len(invoiceItems) > cfg.FallbackMaxUnmatched || declarationCount > cfg.FallbackMaxDeclarations {
		s.metrics.RecordReasoningRequest(ctx, "skipped")
		return false
	}
	allowed, err := s.guard.AllowReasoning(ctx, orgID)
	if err != nil {
		s.log.Warn("reasoning quota check failed", zap.String("org_id", orgID.String()), zap.Error(err))
		return false
	}
	if !allowed {
		s.metrics.RecordReasoningRequest(ctx, "throttled")
		return false
	}
	return true
}

// propose asks the supplementary matcher for pairs among the residual items.
// Failures are logged and yield no proposals.
func (s *Service) propose(ctx context.Context, orgID snowflake.ID, cfg config.ReconciliationConfig, invoiceItems []shipmentdomain.InvoiceLineItem, declarationItems []declarationdomain.DeclarationLineItem) []matchingdomain.Candidate {
	timeout := cfg.FallbackTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	proposals, err := s.supplementary.Propose(callCtx, matchingdomain.SupplementaryRequest{
		OrgID:            orgID,
		InvoiceItems:     invoiceItems,
		DeclarationItems: declarationItems,
	})
	if err != nil {
		s.metrics.RecordReasoningRequest(ctx, "error")
		s.log.Warn("supplementary matcher failed",
			zap.String("org_id", orgID.String()),
			zap.Int("invoice_items", len(invoiceItems)),
			zap.Int("declaration_items", len(declarationItems)),
			zap.Error(err),
		)
		return nil
	}
	s.metrics.RecordReasoningRequest(ctx, "ok")

	invoiceIDs := make(map[snowflake.ID]struct{}, len(invoiceItems))
	for _, item := range invoiceItems {
		invoiceIDs[item.ID] = struct{}{}
	}
	declarationIDs := make(map[snowflake.ID]struct{}, len(declarationItems))
	for _, item := range declarationItems {
		declarationIDs[item.ID] = struct{}{}
	}

	valid := make([]matchingdomain.Candidate, 0, len(proposals))
	for _, p := range proposals {
		if _, ok := invoiceIDs[p.InvoiceItemID]; !ok {
			continue
		}
		if _, ok := declarationIDs[p.DeclarationItemID]; !ok {
			continue
		}
		p.Method = matchingdomain.MethodAI
		p.Confidence = matchingdomain.ClampConfidence(p.Confidence)
		valid = append(valid, p)
	}
	if dropped := len(proposals) - len(valid); dropped > 0 {
		s.log.Warn("discarded proposals for unknown items", zap.String("org_id", orgID.String()), zap.Int("dropped", dropped))
	}
	return valid
}

func (s *Service) persist(ctx context.Context, orgID, invoiceID, declarationID snowflake.ID, survivors []matchingdomain.Candidate) ([]matchingdomain.Match, error) {
	created := make([]matchingdomain.Match, 0, len(survivors))
	if len(survivors) == 0 {
		return created, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)
		now := s.clock.Now()
		for _, c := range survivors {
			exists, err := repo.Exists(ctx, orgID, c.InvoiceItemID, c.DeclarationItemID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}

			match := matchingdomain.Match{
				ID:                s.genID.Generate(),
				OrgID:             orgID,
				InvoiceID:         invoiceID,
				DeclarationID:     declarationID,
				InvoiceItemID:     c.InvoiceItemID,
				DeclarationItemID: c.DeclarationItemID,
				Confidence:        c.Confidence,
				Method:            c.Method,
				Reason:            c.Reason,
				CreatedAt:         now,
			}
			if err := repo.Insert(ctx, &match); err != nil {
				if db.IsDuplicateKeyErr(err) {
					return matchingdomain.ErrConcurrentMatch
				}
				return err
			}
			created = append(created, match)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) List(ctx context.Context, orgID, invoiceID, declarationID snowflake.ID) ([]matchingdomain.Match, error) {
	return s.repo.ListForPair(ctx, orgID, invoiceID, declarationID)
}

func (s *Service) Delete(ctx context.Context, orgID, matchID snowflake.ID) error {
	match, err := s.repo.FindByID(ctx, orgID, matchID)
	if err != nil {
		return err
	}
	if match == nil {
		return matchingdomain.ErrMatchNotFound
	}
	if err := s.repo.Delete(ctx, orgID, matchID); err != nil {
		return err
	}
	s.log.Info("match deleted",
		zap.String("org_id", orgID.String()),
		zap.String("match_id", matchID.String()),
		zap.String("method", string(match.Method)),
	)
	return nil
}

// unclaimed drops items already paired within the declaration.
func unclaimed(invoiceItems []shipmentdomain.InvoiceLineItem, declarationItems []declarationdomain.DeclarationLineItem, existing []matchingdomain.Match) ([]shipmentdomain.InvoiceLineItem, []declarationdomain.DeclarationLineItem) {
	claimedInvoice := make(map[snowflake.ID]struct{}, len(existing))
	claimedDeclaration := make(map[snowflake.ID]struct{}, len(existing))
	for _, m := range existing {
		claimedInvoice[m.InvoiceItemID] = struct{}{}
		claimedDeclaration[m.DeclarationItemID] = struct{}{}
	}

	inv := make([]shipmentdomain.InvoiceLineItem, 0, len(invoiceItems))
	for _, item := range invoiceItems {
		if _, ok := claimedInvoice[item.ID]; !ok {
			inv = append(inv, item)
		}
	}
	decl := make([]declarationdomain.DeclarationLineItem, 0, len(declarationItems))
	for _, item := range declarationItems {
		if _, ok := claimedDeclaration[item.ID]; !ok {
			decl = append(decl, item)
		}
	}
	return inv, decl
}

// residual returns the items the candidates leave unpaired.
func residual(invoiceItems []shipmentdomain.InvoiceLineItem, declarationItems []declarationdomain.DeclarationLineItem, candidates []matchingdomain.Candidate) ([]shipmentdomain.InvoiceLineItem, []declarationdomain.DeclarationLineItem) {
	existing := make([]matchingdomain.Match, 0, len(candidates))
	for _, c := range candidates {
		existing = append(existing, matchingdomain.Match{InvoiceItemID: c.InvoiceItemID, DeclarationItemID: c.DeclarationItemID})
	}
	return unclaimed(invoiceItems, declarationItems, existing)
}

func countForInvoice(matches []matchingdomain.Match, invoiceID snowflake.ID) int {
	n := 0
	for _, m := range matches {
		if m.InvoiceID == invoiceID {
			n++
		}
	}
	return n
}
