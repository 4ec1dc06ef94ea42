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

// GuardConfig carries the tunable business rules of the ledger: the
// attribution window, the velocity-flag thresholds and the fallback
// commission rates. It is hot-reloadable so threshold changes do not
// need a deploy.
type GuardConfig struct {
	AttributionWindowDays int `mapstructure:"attributionWindowDays"`

	VelocityWindowHours  int `mapstructure:"velocityWindowHours"`
	MaxSalesPerIP        int `mapstructure:"maxSalesPerIp"`
	MaxSalesPerAffiliate int `mapstructure:"maxSalesPerAffiliate"`

	// DefaultRateBps is the global fallback commission rate in basis
	// points, applied when neither a product+level nor a level rate is
	// configured.
	DefaultRateBps int64 `mapstructure:"defaultRateBps"`

	// LevelThresholdCents maps level -> lifetime credited (cents)
	// required to reach it. Level 1 is implicit.
	LevelThresholdCents map[int]int64 `mapstructure:"levelThresholdCents"`

	TrackClickRate  float64 `mapstructure:"trackClickRate"`
	TrackClickBurst int     `mapstructure:"trackClickBurst"`
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		AttributionWindowDays: 7,
		VelocityWindowHours:   24,
		MaxSalesPerIP:         5,
		MaxSalesPerAffiliate:  20,
		DefaultRateBps:        5000,
		LevelThresholdCents: map[int]int64{
			2: 2000,
			3: 3000,
		},
		TrackClickRate:  10,
		TrackClickBurst: 30,
	}
}

func (c GuardConfig) AttributionWindow() time.Duration {
	return time.Duration(c.AttributionWindowDays) * 24 * time.Hour
}

func (c GuardConfig) VelocityWindow() time.Duration {
	return time.Duration(c.VelocityWindowHours) * time.Hour
}

type GuardConfigHolder struct {
	current atomic.Value // holds GuardConfig
}

func NewGuardConfigHolder() (*GuardConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("guard")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/ledger/config")
	v.AddConfigPath("/etc/ledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultGuardConfig()
	v.SetDefault("guard.attributionWindowDays", defaults.AttributionWindowDays)
	v.SetDefault("guard.velocityWindowHours", defaults.VelocityWindowHours)
	v.SetDefault("guard.maxSalesPerIp", defaults.MaxSalesPerIP)
	v.SetDefault("guard.maxSalesPerAffiliate", defaults.MaxSalesPerAffiliate)
	v.SetDefault("guard.defaultRateBps", defaults.DefaultRateBps)
	v.SetDefault("guard.levelThresholdCents", defaults.LevelThresholdCents)
	v.SetDefault("guard.trackClickRate", defaults.TrackClickRate)
	v.SetDefault("guard.trackClickBurst", defaults.TrackClickBurst)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg GuardConfig
	if err := v.UnmarshalKey("guard", &cfg); err != nil {
		return nil, err
	}
	if err := validateGuardConfig(cfg); err != nil {
		return nil, err
	}

	holder := &GuardConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated GuardConfig
		if err := v.UnmarshalKey("guard", &updated); err != nil {
			log.Printf("[guard-config] reload failed: %v", err)
			return
		}
		if err := validateGuardConfig(updated); err != nil {
			log.Printf("[guard-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[guard-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticGuardConfigHolder returns a holder pinned to cfg, for tests.
func NewStaticGuardConfigHolder(cfg GuardConfig) *GuardConfigHolder {
	holder := &GuardConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *GuardConfigHolder) Get() GuardConfig {
	return h.current.Load().(GuardConfig)
}

func validateGuardConfig(cfg GuardConfig) error {
	if cfg.AttributionWindowDays <= 0 {
		return errors.New("guard.attributionWindowDays must be positive")
	}
	if cfg.VelocityWindowHours <= 0 {
		return errors.New("guard.velocityWindowHours must be positive")
	}
	if cfg.MaxSalesPerIP <= 0 || cfg.MaxSalesPerAffiliate <= 0 {
		return errors.New("guard velocity thresholds must be positive")
	}
	if cfg.DefaultRateBps <= 0 || cfg.DefaultRateBps > 10000 {
		return errors.New("guard.defaultRateBps must be within (0, 10000]")
	}
	return nil
}
