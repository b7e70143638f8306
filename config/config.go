package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"backsim/market"
)

// Config is the complete run configuration, loaded once and passed by value
// into the components that need it.
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Risk    RiskConfig    `json:"risk" yaml:"risk"`
	Costs   CostConfig    `json:"costs" yaml:"costs"`
	Data    DataConfig    `json:"data" yaml:"data"`
	Report  ReportConfig  `json:"report" yaml:"report"`
}

// AccountConfig holds account capital and leverage.
type AccountConfig struct {
	Capital  float64 `json:"capital" yaml:"capital"`
	Leverage float64 `json:"leverage" yaml:"leverage"`
}

// RiskConfig holds sizing and limit parameters.
type RiskConfig struct {
	RiskPerTrade    float64 `json:"risk_per_trade" yaml:"risk_per_trade"`
	StopLossATR     float64 `json:"stop_loss_atr" yaml:"stop_loss_atr"`
	TakeProfitATR   float64 `json:"take_profit_atr" yaml:"take_profit_atr"`
	MaxPositions    int     `json:"max_positions" yaml:"max_positions"`
	MaxRiskFraction float64 `json:"max_risk_fraction" yaml:"max_risk_fraction"`
	QtyPrecision    int     `json:"qty_precision" yaml:"qty_precision"`
}

// CostConfig holds execution cost assumptions.
type CostConfig struct {
	FeeRate  float64 `json:"fee_rate" yaml:"fee_rate"`
	Slippage float64 `json:"slippage" yaml:"slippage"`
}

// DataConfig selects the dataset: which symbols, which timeframes, where
// the store lives and which date range to download.
type DataConfig struct {
	Symbols        string `json:"symbols" yaml:"symbols"` // comma separated, e.g. "BTC/USDT,ETH/USDT"
	Timeframe      string `json:"timeframe" yaml:"timeframe"`
	DailyTimeframe string `json:"daily_timeframe" yaml:"daily_timeframe"`
	Start          string `json:"start" yaml:"start"` // RFC3339 or yyyy-mm-dd
	End            string `json:"end" yaml:"end"`
	DBPath         string `json:"db_path" yaml:"db_path"`
	ATRPeriod      int    `json:"atr_period" yaml:"atr_period"`
}

// ReportConfig controls report output.
type ReportConfig struct {
	OutDir string `json:"out_dir" yaml:"out_dir"`
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SymbolList splits the comma-separated symbol field.
func (c *Config) SymbolList() []string {
	var out []string
	for _, s := range strings.Split(c.Data.Symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// StartTime parses Data.Start; zero time when unset.
func (c *Config) StartTime() (time.Time, error) {
	return parseDate(c.Data.Start)
}

// EndTime parses Data.End; zero time when unset.
func (c *Config) EndTime() (time.Time, error) {
	return parseDate(c.Data.End)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t.UTC(), nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Account.Capital <= 0 {
		return fmt.Errorf("account.capital must be positive")
	}
	if c.Account.Leverage <= 0 {
		return fmt.Errorf("account.leverage must be positive")
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade > 1 {
		return fmt.Errorf("risk.risk_per_trade must be between 0 and 1")
	}
	if c.Risk.StopLossATR <= 0 {
		return fmt.Errorf("risk.stop_loss_atr must be positive")
	}
	if c.Risk.TakeProfitATR <= 0 {
		return fmt.Errorf("risk.take_profit_atr must be positive")
	}
	if c.Risk.MaxPositions < 1 {
		return fmt.Errorf("risk.max_positions must be at least 1")
	}
	if c.Risk.MaxRiskFraction <= 0 || c.Risk.MaxRiskFraction > 1 {
		return fmt.Errorf("risk.max_risk_fraction must be between 0 and 1")
	}
	if c.Risk.QtyPrecision < 0 {
		return fmt.Errorf("risk.qty_precision must not be negative")
	}
	if c.Costs.FeeRate < 0 || c.Costs.Slippage < 0 {
		return fmt.Errorf("costs must not be negative")
	}
	if len(c.SymbolList()) == 0 {
		return fmt.Errorf("data.symbols is required")
	}
	if _, err := market.ParseTimeframe(c.Data.Timeframe); err != nil {
		return fmt.Errorf("data.timeframe: %w", err)
	}
	if _, err := market.ParseTimeframe(c.Data.DailyTimeframe); err != nil {
		return fmt.Errorf("data.daily_timeframe: %w", err)
	}
	if c.Data.DBPath == "" {
		return fmt.Errorf("data.db_path is required")
	}
	if _, err := c.StartTime(); err != nil {
		return fmt.Errorf("data.start: %w", err)
	}
	if _, err := c.EndTime(); err != nil {
		return fmt.Errorf("data.end: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Capital:  10_000,
			Leverage: 1,
		},
		Risk: RiskConfig{
			RiskPerTrade:    0.01,
			StopLossATR:     2,
			TakeProfitATR:   3,
			MaxPositions:    5,
			MaxRiskFraction: 0.1,
			QtyPrecision:    3,
		},
		Costs: CostConfig{
			FeeRate:  0.0004,
			Slippage: 0.001,
		},
		Data: DataConfig{
			Symbols:        "BTC/USDT,ETH/USDT",
			Timeframe:      "1h",
			DailyTimeframe: "1d",
			Start:          "2022-01-01",
			End:            "2025-01-01",
			DBPath:         "./backsim.sqlite",
			ATRPeriod:      14,
		},
		Report: ReportConfig{
			OutDir: "./reports",
		},
	}
}
