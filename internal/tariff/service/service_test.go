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
	tariffdomain "github.com/smallbiznis/clearline/internal/tariff/domain"
	"github.com/smallbiznis/clearline/internal/tariff/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var upsertedAt = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (tariffdomain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tariffdomain.TariffRate{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(upsertedAt),
		Repo:  repository.NewRepository(db),
	})
	return svc, db
}

func TestUpsertThenLookup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, tariffdomain.UpsertRequest{CountryCode: "jm", Code: "8471", DutyRate: decimal.NewFromInt(5)})
	require.NoError(t, err)

	rate, err := svc.Lookup(ctx, "JM", "8471.30.00")
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.Equal(t, "5", rate.DutyRate.String())

	missing, err := svc.Lookup(ctx, "JM", "9001")
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := svc.Lookup(ctx, "JM", "")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestUpsertInvalidatesCachedTable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, tariffdomain.UpsertRequest{CountryCode: "JM", Code: "84", DutyRate: decimal.NewFromInt(20)})
	require.NoError(t, err)

	rate, err := svc.Lookup(ctx, "JM", "8471")
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.Equal(t, "20", rate.DutyRate.String())

	updated, err := svc.Upsert(ctx, tariffdomain.UpsertRequest{CountryCode: "JM", Code: "84", DutyRate: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Equal(t, "10", updated.DutyRate.String())

	rate, err = svc.Lookup(ctx, "JM", "8471")
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.Equal(t, "10", rate.DutyRate.String())

	rates, err := svc.List(ctx, "jm")
	require.NoError(t, err)
	assert.Len(t, rates, 1)
}

func TestUpsertValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, tariffdomain.UpsertRequest{CountryCode: "JAM", Code: "84", DutyRate: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, tariffdomain.ErrInvalidCountry)

	_, err = svc.Upsert(ctx, tariffdomain.UpsertRequest{CountryCode: "JM", Code: " . ", DutyRate: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, tariffdomain.ErrInvalidCode)

	_, err = svc.Upsert(ctx, tariffdomain.UpsertRequest{CountryCode: "JM", Code: "84", DutyRate: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, tariffdomain.ErrInvalidDutyRate)
}

func TestUpsertStampsClockTime(t *testing.T) {
	svc, db := newTestService(t)

	rate, err := svc.Upsert(context.Background(), tariffdomain.UpsertRequest{CountryCode: "JM", Code: "0901", DutyRate: decimal.NewFromInt(15)})
	require.NoError(t, err)
	assert.True(t, rate.UpdatedAt.Equal(upsertedAt))

	var stored tariffdomain.TariffRate
	require.NoError(t, db.First(&stored, "code = ?", "0901").Error)
	assert.True(t, stored.UpdatedAt.Equal(upsertedAt))
}
