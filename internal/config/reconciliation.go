package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReconciliationConfig holds tuning knobs for the calculator and the item matcher.
type ReconciliationConfig struct {
	WharfageLevyCode string `mapstructure:"wharfageLevyCode"`

	MatchThreshold          int           `mapstructure:"matchThreshold"`
	FallbackMaxUnmatched    int           `mapstructure:"fallbackMaxUnmatched"`
	FallbackMaxDeclarations int           `mapstructure:"fallbackMaxDeclarations"`
	FallbackTimeout         time.Duration `mapstructure:"fallbackTimeout"`
}

func DefaultReconciliationConfig() ReconciliationConfig {
	return ReconciliationConfig{
		WharfageLevyCode:        "WHARFAGE",
		MatchThreshold:          60,
		FallbackMaxUnmatched:    15,
		FallbackMaxDeclarations: 30,
		FallbackTimeout:         20 * time.Second,
	}
}

type ReconciliationConfigHolder struct {
	current atomic.Value // holds ReconciliationConfig
}

// NewStaticReconciliationConfigHolder returns a holder that never reloads.
func NewStaticReconciliationConfigHolder(cfg ReconciliationConfig) *ReconciliationConfigHolder {
	holder := &ReconciliationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReconciliationConfigHolder() (*ReconciliationConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("reconciliation")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/clearline")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CLEARLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReconciliationConfig()
	v.SetDefault("reconciliation.wharfageLevyCode", defaults.WharfageLevyCode)
	v.SetDefault("reconciliation.matchThreshold", defaults.MatchThreshold)
	v.SetDefault("reconciliation.fallbackMaxUnmatched", defaults.FallbackMaxUnmatched)
	v.SetDefault("reconciliation.fallbackMaxDeclarations", defaults.FallbackMaxDeclarations)
	v.SetDefault("reconciliation.fallbackTimeout", defaults.FallbackTimeout)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg ReconciliationConfig
	if err := v.UnmarshalKey("reconciliation", &cfg); err != nil {
		return nil, err
	}
	if err := validateReconciliationConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticReconciliationConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ReconciliationConfig
		if err := v.UnmarshalKey("reconciliation", &updated); err != nil {
			log.Printf("[reconciliation-config] reload failed: %v", err)
			return
		}
		if err := validateReconciliationConfig(updated); err != nil {
			log.Printf("[reconciliation-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[reconciliation-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *ReconciliationConfigHolder) Get() ReconciliationConfig {
	return h.current.Load().(ReconciliationConfig)
}

func validateReconciliationConfig(cfg ReconciliationConfig) error {
	if strings.TrimSpace(cfg.WharfageLevyCode) == "" {
		return errors.New("reconciliation.wharfageLevyCode cannot be empty")
	}
	if cfg.MatchThreshold <= 0 {
		return errors.New("reconciliation.matchThreshold must be positive")
	}
	if cfg.FallbackMaxUnmatched < 0 || cfg.FallbackMaxDeclarations < 0 {
		return errors.New("reconciliation fallback bounds cannot be negative")
	}
	if cfg.FallbackTimeout <= 0 {
		return errors.New("reconciliation.fallbackTimeout must be positive")
	}
	return nil
}
