package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clearline/internal/clock"
	levydomain "github.com/smallbiznis/clearline/internal/levy/domain"
	tariffdomain "github.com/smallbiznis/clearline/internal/tariff/domain"
	"github.com/smallbiznis/clearline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  levydomain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  levydomain.Repository
}

func NewService(p ServiceParam) levydomain.Service {
	return &Service{
		log:   p.Log.Named("levy.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) ListForCountry(ctx context.Context, country string) ([]levydomain.CountryLevy, error) {
	country = tariffdomain.NormalizeCountry(country)
	if country == "" {
		return nil, levydomain.ErrInvalidCountry
	}
	return s.repo.List(ctx, country, false)
}

func (s *Service) List(ctx context.Context, req levydomain.ListRequest) ([]levydomain.Response, error) {
	country := tariffdomain.NormalizeCountry(req.CountryCode)
	if country == "" {
		return nil, levydomain.ErrInvalidCountry
	}

	items, err := s.repo.List(ctx, country, req.ActiveOnly)
	if err != nil {
		return nil, err
	}

	resp := make([]levydomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req levydomain.CreateRequest) (*levydomain.Response, error) {
	levy, err := s.buildLevy(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByCode(ctx, levy.CountryCode, levy.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, levydomain.ErrLevyCodeTaken
	}

	now := s.clock.Now()
	levy.ID = s.genID.Generate()
	levy.IsActive = true
	levy.CreatedAt = now
	levy.UpdatedAt = now

	if err := s.repo.Insert(ctx, levy); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, levydomain.ErrLevyCodeTaken
		}
		return nil, err
	}

	s.log.Info("levy created",
		zap.String("country", levy.CountryCode),
		zap.String("code", levy.Code),
		zap.String("rate_type", string(levy.RateType)),
		zap.String("basis", string(levy.Basis)),
	)

	resp := toResponse(levy)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req levydomain.UpdateRequest) (*levydomain.Response, error) {
	next, err := s.buildLevy(req.CreateRequest)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.FindByCode(ctx, next.CountryCode, next.Code)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, levydomain.ErrLevyNotFound
	}

	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = s.clock.Now()
	next.IsActive = current.IsActive
	if req.IsActive != nil {
		next.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, next); err != nil {
		return nil, err
	}

	resp := toResponse(next)
	return &resp, nil
}

func (s *Service) Disable(ctx context.Context, country, code string) (*levydomain.Response, error) {
	country = tariffdomain.NormalizeCountry(country)
	code = normalizeLevyCode(code)
	if country == "" {
		return nil, levydomain.ErrInvalidCountry
	}
	if code == "" {
		return nil, levydomain.ErrInvalidCode
	}

	current, err := s.repo.FindByCode(ctx, country, code)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, levydomain.ErrLevyNotFound
	}
	if !current.IsActive {
		resp := toResponse(current)
		return &resp, nil
	}

	current.IsActive = false
	current.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, current); err != nil {
		return nil, err
	}

	s.log.Info("levy disabled", zap.String("country", country), zap.String("code", code))
	resp := toResponse(current)
	return &resp, nil
}

func (s *Service) buildLevy(req levydomain.CreateRequest) (*levydomain.CountryLevy, error) {
	country := tariffdomain.NormalizeCountry(req.CountryCode)
	if len(country) != 2 {
		return nil, levydomain.ErrInvalidCountry
	}
	code := normalizeLevyCode(req.Code)
	if code == "" {
		return nil, levydomain.ErrInvalidCode
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, levydomain.ErrInvalidName
	}
	if req.Rate.IsNegative() {
		return nil, levydomain.ErrInvalidRate
	}

	rateType := levydomain.RateType(strings.ToLower(strings.TrimSpace(req.RateType)))
	if !rateType.Valid() {
		return nil, levydomain.ErrInvalidRateType
	}
	basis := levydomain.Basis(strings.ToLower(strings.TrimSpace(req.Basis)))
	if basis == "" && rateType == levydomain.RateTypeFixedAmount {
		basis = levydomain.BasisCIF
	}
	if !basis.Valid() {
		return nil, levydomain.ErrInvalidBasis
	}

	exempt := normalizeCodes(req.ExemptTariffCodes)
	allowList := normalizeCodes(req.ChapterAllowList)
	if err := validateApplicability(req.AppliesToAllChapters, exempt, allowList); err != nil {
		return nil, err
	}

	if req.EffectiveFrom != nil && req.EffectiveTo != nil && req.EffectiveTo.Before(*req.EffectiveFrom) {
		return nil, levydomain.ErrInvalidWindow
	}

	return &levydomain.CountryLevy{
		CountryCode:             country,
		Code:                    code,
		Name:                    name,
		Rate:                    req.Rate,
		RateType:                rateType,
		Basis:                   basis,
		AppliesToAllChapters:    req.AppliesToAllChapters,
		ExemptTariffCodes:       datatypes.NewJSONSlice(exempt),
		ChapterAllowList:        datatypes.NewJSONSlice(allowList),
		ExemptOrganizationTypes: datatypes.NewJSONSlice(trimAll(req.ExemptOrganizationTypes)),
		EffectiveFrom:           utcPtr(req.EffectiveFrom),
		EffectiveTo:             utcPtr(req.EffectiveTo),
		DisplayOrder:            req.DisplayOrder,
	}, nil
}

// validateApplicability rejects levies carrying both applicability shapes.
func validateApplicability(allChapters bool, exempt, allowList []string) error {
	if allChapters && len(allowList) > 0 {
		return levydomain.ErrInvalidApplicability
	}
	if !allChapters && len(exempt) > 0 {
		return levydomain.ErrInvalidApplicability
	}
	if !allChapters && len(allowList) == 0 {
		return levydomain.ErrInvalidApplicability
	}
	return nil
}

func normalizeLevyCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		normalized := tariffdomain.NormalizeCode(code)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func toResponse(l *levydomain.CountryLevy) levydomain.Response {
	return levydomain.Response{
		ID:                      l.ID.String(),
		CountryCode:             l.CountryCode,
		Code:                    l.Code,
		Name:                    l.Name,
		Rate:                    l.Rate,
		RateType:                l.RateType,
		Basis:                   l.Basis,
		AppliesToAllChapters:    l.AppliesToAllChapters,
		ExemptTariffCodes:       nonNil(l.ExemptTariffCodes),
		ChapterAllowList:        nonNil(l.ChapterAllowList),
		ExemptOrganizationTypes: nonNil(l.ExemptOrganizationTypes),
		EffectiveFrom:           l.EffectiveFrom,
		EffectiveTo:             l.EffectiveTo,
		IsActive:                l.IsActive,
		DisplayOrder:            l.DisplayOrder,
		CreatedAt:               l.CreatedAt,
		UpdatedAt:               l.UpdatedAt,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
