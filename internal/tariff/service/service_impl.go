package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/clearline/internal/cache"
	"github.com/smallbiznis/clearline/internal/clock"
	tariffdomain "github.com/smallbiznis/clearline/internal/tariff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultTableTTL = 10 * time.Minute

type ServiceParam struct {
	fx.In

	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   tariffdomain.Repository
	Tables cache.Cache[string, []tariffdomain.TariffRate] `optional:"true"`
	TTL    time.Duration                                  `name:"tariff_cache_ttl" optional:"true"`
}

type Service struct {
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	repo   tariffdomain.Repository
	tables cache.Cache[string, []tariffdomain.TariffRate]
	ttl    time.Duration
}

func NewService(p ServiceParam) tariffdomain.Service {
	tables := p.Tables
	if tables == nil {
		tables = cache.NewTTLCache[string, []tariffdomain.TariffRate]()
	}
	ttl := p.TTL
	if ttl <= 0 {
		ttl = defaultTableTTL
	}
	return &Service{
		log:    p.Log.Named("tariff.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		repo:   p.Repo,
		tables: tables,
		ttl:    ttl,
	}
}

func (s *Service) Table(ctx context.Context, country string) (tariffdomain.Table, error) {
	country = tariffdomain.NormalizeCountry(country)
	if country == "" {
		return tariffdomain.Table{}, tariffdomain.ErrInvalidCountry
	}

	key := cache.Key("tariff", country)
	if rates, ok := s.tables.Get(key); ok {
		return tariffdomain.NewTable(country, rates), nil
	}

	rates, err := s.repo.ListByCountry(ctx, country)
	if err != nil {
		return tariffdomain.Table{}, err
	}
	s.tables.Set(key, rates, s.ttl)
	return tariffdomain.NewTable(country, rates), nil
}

func (s *Service) Lookup(ctx context.Context, country, code string) (*tariffdomain.TariffRate, error) {
	if tariffdomain.NormalizeCode(code) == "" {
		return nil, nil
	}
	table, err := s.Table(ctx, country)
	if err != nil {
		return nil, err
	}
	rate, ok := table.Resolve(code)
	if !ok {
		return nil, nil
	}
	return &rate, nil
}

func (s *Service) List(ctx context.Context, country string) ([]tariffdomain.TariffRate, error) {
	country = tariffdomain.NormalizeCountry(country)
	if country == "" {
		return nil, tariffdomain.ErrInvalidCountry
	}
	return s.repo.ListByCountry(ctx, country)
}

func (s *Service) Upsert(ctx context.Context, req tariffdomain.UpsertRequest) (*tariffdomain.TariffRate, error) {
	country := tariffdomain.NormalizeCountry(req.CountryCode)
	if len(country) != 2 {
		return nil, tariffdomain.ErrInvalidCountry
	}
	code := tariffdomain.NormalizeCode(req.Code)
	if code == "" {
		return nil, tariffdomain.ErrInvalidCode
	}
	if req.DutyRate.IsNegative() || req.DutyRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, tariffdomain.ErrInvalidDutyRate
	}

	now := s.clock.Now()
	rate := &tariffdomain.TariffRate{
		ID:          s.genID.Generate(),
		CountryCode: country,
		Code:        code,
		Description: strings.TrimSpace(req.Description),
		DutyRate:    req.DutyRate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Upsert(ctx, rate); err != nil {
		return nil, err
	}
	s.tables.Delete(cache.Key("tariff", country))

	stored, err := s.repo.FindByCode(ctx, country, code)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return rate, nil
	}

	s.log.Info("tariff rate upserted",
		zap.String("country", country),
		zap.String("code", code),
		zap.String("duty_rate", stored.DutyRate.String()),
	)
	return stored, nil
}
