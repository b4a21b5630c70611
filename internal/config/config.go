// Package config implements the config-port contract of specification §6:
// typed getters with default fallbacks over an INI-style file, backed by
// viper, with struct-level validation via go-playground/validator.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// RunConfig is the fully-typed, validated view of one backtest run's
// configuration, assembled from the recognised keys in specification §6.
type RunConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital" json:"initial_capital" validate:"gt=0"`
	CommissionFlat float64 `mapstructure:"commission_per_trade" json:"commission_per_trade" validate:"gte=0"`
	CommissionPct  float64 `mapstructure:"commission_pct" json:"commission_pct" validate:"gte=0"`
	SlippagePct    float64 `mapstructure:"slippage_pct" json:"slippage_pct" validate:"gte=0"`
	AllowShorting  bool    `mapstructure:"allow_shorting" json:"allow_shorting"`
	RiskFreeRate   float64 `mapstructure:"risk_free_rate" json:"risk_free_rate" validate:"gte=0"`
	StartDate      string  `mapstructure:"start_date" json:"start_date" validate:"required"`
	EndDate        string  `mapstructure:"end_date" json:"end_date" validate:"required"`
	Codes          string  `mapstructure:"codes" json:"codes"`
	Code           string  `mapstructure:"code" json:"code"`
	Exchange       string  `mapstructure:"exchange" json:"exchange" validate:"required"`
	EntryLong      string  `mapstructure:"entry_long" json:"entry_long" validate:"required"`
	ExitLong       string  `mapstructure:"exit_long" json:"exit_long" validate:"required"`
	EntryShort     string  `mapstructure:"entry_short" json:"entry_short"`
	ExitShort      string  `mapstructure:"exit_short" json:"exit_short"`
	PositionSize   float64 `mapstructure:"position_size" json:"position_size" validate:"gt=0,lte=1"`
	StopLossPct    float64 `mapstructure:"stop_loss" json:"stop_loss" validate:"gte=0"`
	TakeProfitPct  float64 `mapstructure:"take_profit" json:"take_profit" validate:"gte=0"`
	MaxPositions   int     `mapstructure:"max_positions" json:"max_positions" validate:"gte=1"`

	Start time.Time `mapstructure:"-" json:"-" validate:"-"`
	End   time.Time `mapstructure:"-" json:"-" validate:"-"`
}

var validate = validator.New()

func defaults(v *viper.Viper) {
	v.SetDefault("initial_capital", 100000.0)
	v.SetDefault("commission_per_trade", 0.0)
	v.SetDefault("commission_pct", 0.0)
	v.SetDefault("slippage_pct", 0.0)
	v.SetDefault("allow_shorting", false)
	v.SetDefault("risk_free_rate", 0.05)
	v.SetDefault("position_size", 1.0)
	v.SetDefault("stop_loss", 0.0)
	v.SetDefault("take_profit", 0.0)
	v.SetDefault("max_positions", 1)
}

// Load reads an INI config file at path, fills recognised keys with the
// specification §6 defaults, and validates the result.
func Load(path string) (*RunConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	defaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	start, err := time.ParseInLocation("2006-01-02", cfg.StartDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("config: invalid start_date %q: %w", cfg.StartDate, err)
	}
	end, err := time.ParseInLocation("2006-01-02", cfg.EndDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("config: invalid end_date %q: %w", cfg.EndDate, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("config: end_date %s is before start_date %s", cfg.EndDate, cfg.StartDate)
	}
	cfg.Start, cfg.End = start, end

	return &cfg, nil
}

// CodeList returns the parsed universe: the comma-separated `codes` key if
// present, otherwise the single `code` key wrapped in a one-element slice.
func (c *RunConfig) CodeList() []string {
	if strings.TrimSpace(c.Codes) != "" {
		parts := strings.Split(c.Codes, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
		return out
	}
	if strings.TrimSpace(c.Code) != "" {
		return []string{strings.TrimSpace(c.Code)}
	}
	return nil
}
