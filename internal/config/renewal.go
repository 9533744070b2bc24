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

// DefaultSettlementTolerance is the residual, in currency units, below which a renewal is
// considered paid in full.
const DefaultSettlementTolerance = 0.10

// RenewalConfig drives plan pricing and the renewal engine.
type RenewalConfig struct {
	Currency            string         `mapstructure:"currency"`
	CycleDays           int            `mapstructure:"cycleDays"`
	TrialDays           int            `mapstructure:"trialDays"`
	TrialTier           string         `mapstructure:"trialTier"`
	SettlementTolerance float64        `mapstructure:"settlementTolerance"`
	Plans               []PlanPrice    `mapstructure:"plans"`
	Accounts            AccountsConfig `mapstructure:"accounts"`
}

type PlanPrice struct {
	Tier         string  `mapstructure:"tier"`
	Name         string  `mapstructure:"name"`
	MonthlyPrice float64 `mapstructure:"monthlyPrice"`
}

// AccountsConfig maps payment methods to the treasury accounts that receive them.
type AccountsConfig struct {
	CashDrawer AccountConfig            `mapstructure:"cashDrawer"`
	Methods    map[string]AccountConfig `mapstructure:"methods"`
}

type AccountConfig struct {
	Code string `mapstructure:"code"`
	Name string `mapstructure:"name"`
}

func DefaultRenewalConfig() RenewalConfig {
	return RenewalConfig{
		Currency:            "USD",
		CycleDays:           30,
		TrialDays:           15,
		TrialTier:           "basic",
		SettlementTolerance: DefaultSettlementTolerance,
		Plans: []PlanPrice{
			{Tier: "basic", Name: "Basic", MonthlyPrice: 39},
			{Tier: "intermediate", Name: "Intermediate", MonthlyPrice: 69},
			{Tier: "full", Name: "Full", MonthlyPrice: 99},
		},
		Accounts: AccountsConfig{
			CashDrawer: AccountConfig{Code: "cash_drawer", Name: "Cash drawer"},
			Methods: map[string]AccountConfig{
				"bank_transfer": {Code: "bank_main", Name: "Main bank account"},
				"mobile_wallet": {Code: "bank_wallet", Name: "Wallet settlement account"},
				"card":          {Code: "bank_card", Name: "Card acquirer account"},
			},
		},
	}
}

type RenewalConfigHolder struct {
	current atomic.Value // holds RenewalConfig
}

// NewStaticRenewalConfigHolder wraps a fixed config, mostly for tests.
func NewStaticRenewalConfigHolder(cfg RenewalConfig) *RenewalConfigHolder {
	holder := &RenewalConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewRenewalConfigHolder(appCfg Config, log *zap.Logger) (*RenewalConfigHolder, error) {
	v := viper.New()

	if appCfg.RenewalConfigPath != "" {
		v.SetConfigFile(appCfg.RenewalConfigPath)
	} else {
		v.SetConfigName("renewal")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/tenantdesk")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TENANTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read renewal config: %w", err)
		}
		log.Info("renewal config not found, using defaults")
		return NewStaticRenewalConfigHolder(DefaultRenewalConfig()), nil
	}

	cfg, err := decodeRenewalConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticRenewalConfigHolder(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRenewalConfig(v)
		if err != nil {
			log.Warn("renewal config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := holder.Replace(updated); err != nil {
			log.Warn("renewal config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		log.Info("renewal config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *RenewalConfigHolder) Get() RenewalConfig {
	return h.current.Load().(RenewalConfig)
}

// Replace swaps in cfg after validating it. Tenants may still be on any tier the current
// config prices, so a config that drops one is refused.
func (h *RenewalConfigHolder) Replace(cfg RenewalConfig) error {
	if err := ValidateRenewalConfig(cfg); err != nil {
		return err
	}
	if dropped := droppedTiers(h.Get(), cfg); len(dropped) > 0 {
		return fmt.Errorf("renewal.plans drops tiers still in use: %s", strings.Join(dropped, ", "))
	}
	h.current.Store(cfg)
	return nil
}

func droppedTiers(prev, next RenewalConfig) []string {
	kept := make(map[string]struct{}, len(next.Plans))
	for _, plan := range next.Plans {
		kept[strings.ToLower(strings.TrimSpace(plan.Tier))] = struct{}{}
	}
	var dropped []string
	for _, plan := range prev.Plans {
		tier := strings.ToLower(strings.TrimSpace(plan.Tier))
		if _, ok := kept[tier]; !ok {
			dropped = append(dropped, tier)
		}
	}
	return dropped
}

// decodeRenewalConfig overlays the file's renewal section on top of the defaults.
func decodeRenewalConfig(v *viper.Viper) (RenewalConfig, error) {
	cfg := DefaultRenewalConfig()
	// slices decode index-wise onto existing values, so a configured plan list replaces the defaults
	if v.IsSet("renewal.plans") {
		cfg.Plans = nil
	}
	if err := v.UnmarshalKey("renewal", &cfg); err != nil {
		return RenewalConfig{}, fmt.Errorf("decode renewal config: %w", err)
	}
	if err := ValidateRenewalConfig(cfg); err != nil {
		return RenewalConfig{}, err
	}
	return cfg, nil
}

func ValidateRenewalConfig(cfg RenewalConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("renewal.currency cannot be empty")
	}
	if cfg.CycleDays <= 0 {
		return errors.New("renewal.cycleDays must be positive")
	}
	if cfg.TrialDays < 0 {
		return errors.New("renewal.trialDays cannot be negative")
	}
	if cfg.SettlementTolerance < 0 {
		return errors.New("renewal.settlementTolerance cannot be negative")
	}
	if len(cfg.Plans) == 0 {
		return errors.New("renewal.plans cannot be empty")
	}

	seen := make(map[string]struct{}, len(cfg.Plans))
	for _, plan := range cfg.Plans {
		tier := strings.ToLower(strings.TrimSpace(plan.Tier))
		if tier == "" {
			return errors.New("renewal.plans tier cannot be empty")
		}
		if plan.MonthlyPrice <= 0 {
			return fmt.Errorf("renewal.plans %s must have a positive price", tier)
		}
		if _, dup := seen[tier]; dup {
			return fmt.Errorf("renewal.plans %s is duplicated", tier)
		}
		seen[tier] = struct{}{}
	}
	if _, ok := seen[strings.ToLower(strings.TrimSpace(cfg.TrialTier))]; !ok {
		return fmt.Errorf("renewal.trialTier %q is not a configured plan", cfg.TrialTier)
	}
	if strings.TrimSpace(cfg.Accounts.CashDrawer.Code) == "" {
		return errors.New("renewal.accounts.cashDrawer.code cannot be empty")
	}
	return nil
}
