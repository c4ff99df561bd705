// Package config loads the application configuration from YAML and
// applies defaults. Configuration parse failure at startup is the only
// fatal error condition in the system.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// CurvePoint is one breakpoint of the premium-tier allocation curve.
type CurvePoint struct {
	PremiumPct    float64 `yaml:"premium_pct"`
	AllocationPct float64 `yaml:"allocation_pct"`
	Action        string  `yaml:"action"`
}

// Credentials are optional read-only API credentials for one venue.
type Credentials struct {
	Key    string `yaml:"key"`
	Secret string `yaml:"secret"`
}

// Venues holds the per-venue enable toggles.
type Venues struct {
	Binance        bool `yaml:"enable_binance"`
	OKX            bool `yaml:"enable_okx"`
	Upbit          bool `yaml:"enable_upbit"`
	Bithumb        bool `yaml:"enable_bithumb"`
	Bybit          bool `yaml:"enable_bybit"`
	Gate           bool `yaml:"enable_gate"`
	Bitget         bool `yaml:"enable_bitget"`
	BingX          bool `yaml:"enable_bingx"`
	BinanceFutures bool `yaml:"enable_binance_futures"`
	Hyperliquid    bool `yaml:"enable_hyperliquid"`
	Synthetix      bool `yaml:"enable_synthetix"`
}

// Config is the full configuration surface. Interval and TTL fields are
// seconds in the YAML file.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	Listen    string `yaml:"listen"`
	RedisAddr string `yaml:"redis_addr"`

	Venues         Venues   `yaml:"venues"`
	TradingSymbols []string `yaml:"trading_symbols"`

	DetectIntervalSec         float64 `yaml:"detect_interval"`
	ConnectorTimeoutSec       float64 `yaml:"connector_timeout"`
	SubscriberWriteTimeoutSec float64 `yaml:"subscriber_write_timeout"`
	FxRefreshIntervalSec      float64 `yaml:"fx_refresh_interval"`
	WalletRefreshIntervalSec  float64 `yaml:"wallet_refresh_interval"`
	MaxTickerAgeSec           float64 `yaml:"max_ticker_age"`
	StaleTTLSec               float64 `yaml:"stale_ttl"`
	LastGoodTTLSec            float64 `yaml:"last_good_ttl"`
	AlertTTLSec               float64 `yaml:"alert_ttl"`

	MaxOpportunities       int     `yaml:"max_opportunities"`
	BaseNotionalUSD        float64 `yaml:"base_notional_usd"`
	MinOIUSD               float64 `yaml:"min_oi_usd"`
	MinFunding8hPct        float64 `yaml:"min_funding_8h_pct"`
	MinBasisBps            float64 `yaml:"min_basis_bps"`
	MinSpreadBps           float64 `yaml:"min_spread_bps"`
	MinKimchiPct           float64 `yaml:"min_kimchi_pct"`
	MaxKimchiPct           float64 `yaml:"max_kimchi_pct"`
	KimchiDeviationPct     float64 `yaml:"kimchi_deviation_pct"`
	MinKimchiAllocationPct float64 `yaml:"min_kimchi_allocation_pct"`
	MaxCombinedSpreadBps   float64 `yaml:"max_combined_spread_bps"`

	FeeBps      float64            `yaml:"fee_bps"`
	VenueFeeBps map[string]float64 `yaml:"venue_fee_bps"`
	SlippageBps float64            `yaml:"slippage_bps"`

	TetherTotalEquityUSD float64      `yaml:"tether_total_equity_usd"`
	AllocationCurve      []CurvePoint `yaml:"allocation_curve"`

	FxFallbackKRWPerUSD float64 `yaml:"fx_fallback_krw_per_usd"`

	Credentials map[string]Credentials `yaml:"credentials"`
}

// Load reads the configuration file at path. A missing file yields the
// defaults; a malformed file is a fatal error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{
		LogLevel:  "info",
		Listen:    ":8080",
		RedisAddr: "",
		Venues: Venues{
			Binance:        true,
			OKX:            true,
			Upbit:          true,
			Bithumb:        true,
			Bybit:          true,
			Gate:           true,
			Bitget:         true,
			BingX:          false,
			BinanceFutures: true,
			Hyperliquid:    false,
			Synthetix:      false,
		},
		DetectIntervalSec:         3,
		ConnectorTimeoutSec:       5,
		SubscriberWriteTimeoutSec: 2,
		FxRefreshIntervalSec:      60,
		WalletRefreshIntervalSec:  300,
		MaxTickerAgeSec:           10,
		StaleTTLSec:               30,
		LastGoodTTLSec:            30,
		AlertTTLSec:               60,
		MaxOpportunities:          200,
		BaseNotionalUSD:           10000,
		MinOIUSD:                  100_000,
		MinFunding8hPct:           0.01,
		MinBasisBps:               10,
		MinSpreadBps:              5,
		MinKimchiPct:              0.1,
		MaxKimchiPct:              50,
		KimchiDeviationPct:        0,
		MinKimchiAllocationPct:    5,
		MaxCombinedSpreadBps:      20,
		FeeBps:                    10,
		SlippageBps:               0,
		TetherTotalEquityUSD:      100_000,
		AllocationCurve: []CurvePoint{
			{PremiumPct: -5, AllocationPct: 100, Action: "buy_krw"},
			{PremiumPct: -2, AllocationPct: 70, Action: "buy_krw"},
			{PremiumPct: -1, AllocationPct: 50, Action: "buy_krw"},
			{PremiumPct: 0, AllocationPct: 20, Action: "flat"},
			{PremiumPct: 1, AllocationPct: 5, Action: "sell_krw"},
			{PremiumPct: 3, AllocationPct: 0, Action: "sell_krw"},
		},
		FxFallbackKRWPerUSD: 1450,
	}
	return cfg
}

func (c *Config) applyEnv() {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Listen = fmt.Sprintf(":%d", p)
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.RedisAddr = addr
	}
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DetectIntervalSec <= 0 {
		c.DetectIntervalSec = def.DetectIntervalSec
	}
	if c.ConnectorTimeoutSec <= 0 {
		c.ConnectorTimeoutSec = def.ConnectorTimeoutSec
	}
	if c.SubscriberWriteTimeoutSec <= 0 {
		c.SubscriberWriteTimeoutSec = def.SubscriberWriteTimeoutSec
	}
	if c.FxRefreshIntervalSec <= 0 {
		c.FxRefreshIntervalSec = def.FxRefreshIntervalSec
	}
	if c.WalletRefreshIntervalSec <= 0 {
		c.WalletRefreshIntervalSec = def.WalletRefreshIntervalSec
	}
	if c.MaxTickerAgeSec <= 0 {
		c.MaxTickerAgeSec = def.MaxTickerAgeSec
	}
	if c.StaleTTLSec <= 0 {
		c.StaleTTLSec = def.StaleTTLSec
	}
	if c.LastGoodTTLSec <= 0 {
		c.LastGoodTTLSec = def.LastGoodTTLSec
	}
	if c.AlertTTLSec <= 0 {
		c.AlertTTLSec = def.AlertTTLSec
	}
	if c.MaxOpportunities <= 0 {
		c.MaxOpportunities = def.MaxOpportunities
	}
	if c.BaseNotionalUSD <= 0 {
		c.BaseNotionalUSD = def.BaseNotionalUSD
	}
	if c.MinOIUSD <= 0 {
		c.MinOIUSD = def.MinOIUSD
	}
	if c.MaxKimchiPct <= 0 {
		c.MaxKimchiPct = def.MaxKimchiPct
	}
	if c.MaxCombinedSpreadBps <= 0 {
		c.MaxCombinedSpreadBps = def.MaxCombinedSpreadBps
	}
	if c.FeeBps <= 0 {
		c.FeeBps = def.FeeBps
	}
	if c.TetherTotalEquityUSD <= 0 {
		c.TetherTotalEquityUSD = def.TetherTotalEquityUSD
	}
	if len(c.AllocationCurve) == 0 {
		c.AllocationCurve = def.AllocationCurve
	}
	if c.FxFallbackKRWPerUSD <= 0 {
		c.FxFallbackKRWPerUSD = def.FxFallbackKRWPerUSD
	}
}

// VenueFee returns the taker fee for a venue in bps, falling back to the
// global default.
func (c Config) VenueFee(venue string) float64 {
	if fee, ok := c.VenueFeeBps[venue]; ok {
		return fee
	}
	return c.FeeBps
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// DetectInterval is the cadence of the refresh-and-detect cycle.
func (c Config) DetectInterval() time.Duration { return seconds(c.DetectIntervalSec) }

// ConnectorTimeout bounds every connector network call.
func (c Config) ConnectorTimeout() time.Duration { return seconds(c.ConnectorTimeoutSec) }

// SubscriberWriteTimeout bounds a single WebSocket write.
func (c Config) SubscriberWriteTimeout() time.Duration { return seconds(c.SubscriberWriteTimeoutSec) }

// FxRefreshInterval is the FX resolver refresh cadence.
func (c Config) FxRefreshInterval() time.Duration { return seconds(c.FxRefreshIntervalSec) }

// WalletRefreshInterval is the wallet oracle refresh cadence.
func (c Config) WalletRefreshInterval() time.Duration { return seconds(c.WalletRefreshIntervalSec) }

// MaxTickerAge is the freshness cutoff for detection inputs.
func (c Config) MaxTickerAge() time.Duration { return seconds(c.MaxTickerAgeSec) }

// StaleTTL is how long a stale FX value may keep serving after its
// source stops answering.
func (c Config) StaleTTL() time.Duration { return seconds(c.StaleTTLSec) }

// LastGoodTTL is how long the hub retains the last non-empty list.
func (c Config) LastGoodTTL() time.Duration { return seconds(c.LastGoodTTLSec) }

// AlertTTL is how long an open alert survives without closing.
func (c Config) AlertTTL() time.Duration { return seconds(c.AlertTTLSec) }
