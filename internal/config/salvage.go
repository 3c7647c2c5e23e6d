package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// SalvageStep is one decline-salvage retry tier. The discount applies to
// retries at the given depth and beyond until a deeper tier matches.
type SalvageStep struct {
	Depth           int     `mapstructure:"depth"`
	DiscountPercent float64 `mapstructure:"discountPercent"`
}

type SalvageConfig struct {
	Steps []SalvageStep `mapstructure:"steps"`
}

func DefaultSalvageConfig() SalvageConfig {
	return SalvageConfig{
		Steps: []SalvageStep{
			{Depth: 1, DiscountPercent: 0},
			{Depth: 2, DiscountPercent: 5},
			{Depth: 3, DiscountPercent: 10},
		},
	}
}

// SalvageConfigHolder serves the current salvage policy. The policy file is
// watched, so ops can tune retry discounts without a restart.
type SalvageConfigHolder struct {
	current atomic.Value // holds SalvageConfig
}

func NewSalvageConfigHolder() (*SalvageConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("salvage")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/recurflow/config") // Volume-mounted config
	v.AddConfigPath("/etc/recurflow")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("RECURFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// if config file not found, use defaults
		defaults := DefaultSalvageConfig()
		v.SetDefault("salvage.steps", defaults.Steps)
	}

	var cfg SalvageConfig
	if err := v.UnmarshalKey("salvage", &cfg); err != nil {
		return nil, err
	}
	if err := validateSalvageConfig(cfg); err != nil {
		return nil, err
	}

	holder := &SalvageConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SalvageConfig
		if err := v.UnmarshalKey("salvage", &updated); err != nil {
			log.Printf("[salvage-config] reload failed: %v", err)
			return
		}
		if err := validateSalvageConfig(updated); err != nil {
			log.Printf("[salvage-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[salvage-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *SalvageConfigHolder) Get() SalvageConfig {
	return h.current.Load().(SalvageConfig)
}

// DiscountPercentFor returns the policy discount for a retry at the given
// rebill depth, or nil when no tier applies.
func (h *SalvageConfigHolder) DiscountPercentFor(depth int) *decimal.Decimal {
	steps := h.Get().Steps
	var matched *SalvageStep
	for i, step := range steps {
		if step.Depth <= depth && (matched == nil || step.Depth > matched.Depth) {
			matched = &steps[i]
		}
	}
	if matched == nil || matched.DiscountPercent == 0 {
		return nil
	}
	pct := decimal.NewFromFloat(matched.DiscountPercent)
	return &pct
}

func validateSalvageConfig(cfg SalvageConfig) error {
	if len(cfg.Steps) == 0 {
		return errors.New("salvage.steps cannot be empty")
	}
	for _, step := range cfg.Steps {
		if step.Depth < 1 {
			return errors.New("salvage step depth must be at least 1")
		}
		if step.DiscountPercent < 0 || step.DiscountPercent >= 100 {
			return errors.New("salvage step discount must be in [0, 100)")
		}
	}
	return nil
}
