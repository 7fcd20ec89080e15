package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// TierPricing prices one unit of a boost tier in minor currency units.
type TierPricing struct {
	UnitPrice int64  `mapstructure:"unitPrice"`
	Unit      string `mapstructure:"unit"`
}

type PricingConfig struct {
	Currency string                 `mapstructure:"currency"`
	Tiers    map[string]TierPricing `mapstructure:"tiers"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Currency: "USD",
		Tiers: map[string]TierPricing{
			"daily":   {UnitPrice: 1000, Unit: "day"},
			"weekly":  {UnitPrice: 5000, Unit: "week"},
			"monthly": {UnitPrice: 15000, Unit: "month"},
			"custom":  {UnitPrice: 1200, Unit: "day"},
		},
	}
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewStaticPricingHolder returns a holder that never reloads.
func NewStaticPricingHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPricingConfigHolder(appCfg Config, log *zap.Logger) (*PricingConfigHolder, error) {
	log = log.Named("config.pricing")
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	if appCfg.PricingPath != "" {
		v.AddConfigPath(appCfg.PricingPath)
	}
	v.AddConfigPath("/etc/boostd")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BOOSTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
		defaults := DefaultPricingConfig()
		v.SetDefault("pricing.currency", defaults.Currency)
		for tier, price := range defaults.Tiers {
			v.SetDefault("pricing.tiers."+tier+".unitPrice", price.UnitPrice)
			v.SetDefault("pricing.tiers."+tier+".unit", price.Unit)
		}
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	cfg = normalizePricingConfig(cfg)
	if err := ValidatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		log.Info("pricing config file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Warn("pricing reload failed", zap.Error(err))
			return
		}
		updated = normalizePricingConfig(updated)
		if err := ValidatePricingConfig(updated); err != nil {
			log.Warn("invalid pricing config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("pricing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func normalizePricingConfig(cfg PricingConfig) PricingConfig {
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	tiers := make(map[string]TierPricing, len(cfg.Tiers))
	for name, tier := range cfg.Tiers {
		tier.Unit = strings.ToLower(strings.TrimSpace(tier.Unit))
		tiers[strings.ToLower(strings.TrimSpace(name))] = tier
	}
	cfg.Tiers = tiers
	return cfg
}

func ValidatePricingConfig(cfg PricingConfig) error {
	if cfg.Currency == "" {
		return errors.New("pricing.currency cannot be empty")
	}
	if len(cfg.Tiers) == 0 {
		return errors.New("pricing.tiers cannot be empty")
	}
	for name, tier := range cfg.Tiers {
		if tier.UnitPrice <= 0 {
			return fmt.Errorf("pricing.tiers.%s.unitPrice must be positive", name)
		}
		switch tier.Unit {
		case "hour", "day", "week", "month":
		default:
			return fmt.Errorf("pricing.tiers.%s.unit %q is not supported", name, tier.Unit)
		}
	}
	return nil
}
