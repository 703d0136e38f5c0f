package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/clearline/internal/config"
)

const (
	keyShipmentLock   = "clearline:lock:shipment:%s:%s"
	keyReasoningQuota = "clearline:quota:reasoning:%s"
)

// Guard serializes shipment recalculations and throttles reasoning calls per org.
// A nil or disabled Guard always grants.
type Guard struct {
	enabled bool

	locker *Locker
	bucket *TokenBucket

	lockTTL        time.Duration
	reasoningRate  float64
	reasoningBurst int
}

func NewGuard(cfg config.Config, client *redis.Client) *Guard {
	if client == nil || !cfg.Redis.Enabled {
		return &Guard{}
	}
	lockTTL := cfg.Redis.ShipmentLockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Guard{
		enabled:        true,
		locker:         NewLocker(client),
		bucket:         NewTokenBucket(client),
		lockTTL:        lockTTL,
		reasoningRate:  cfg.Redis.ReasoningRate,
		reasoningBurst: cfg.Redis.ReasoningBurst,
	}
}

func (g *Guard) Enabled() bool {
	return g != nil && g.enabled
}

// LockShipment returns the lock token and whether the lock was acquired.
func (g *Guard) LockShipment(ctx context.Context, orgID, shipmentID snowflake.ID) (string, bool, error) {
	if !g.Enabled() {
		return "", true, nil
	}
	return g.locker.TryLock(ctx, fmt.Sprintf(keyShipmentLock, orgID, shipmentID), g.lockTTL)
}

func (g *Guard) UnlockShipment(ctx context.Context, orgID, shipmentID snowflake.ID, token string) error {
	if !g.Enabled() {
		return nil
	}
	return g.locker.Release(ctx, fmt.Sprintf(keyShipmentLock, orgID, shipmentID), token)
}

// AllowReasoning reports whether the org may issue another reasoning request now.
func (g *Guard) AllowReasoning(ctx context.Context, orgID snowflake.ID) (bool, error) {
	if !g.Enabled() || g.reasoningRate <= 0 || g.reasoningBurst <= 0 {
		return true, nil
	}
	res, err := g.bucket.Allow(ctx, fmt.Sprintf(keyReasoningQuota, orgID), g.reasoningRate, g.reasoningBurst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
