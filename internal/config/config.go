package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	MarketData MarketDataConfig `yaml:"marketdata"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Engine     EngineConfig     `yaml:"engine"`
	Risk       RiskConfig       `yaml:"risk"`
	Account    AccountConfig    `yaml:"account"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Web        WebConfig        `yaml:"web"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type MarketDataConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AnalysisConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type ExecutionConfig struct {
	Mode        string  `yaml:"mode"` // paper or live
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	SlippageBps float64 `yaml:"slippage_bps"`
}

type EngineConfig struct {
	Autostart          bool   `yaml:"autostart"`
	RegularInterval    string `yaml:"regular_interval"`
	ExtendedInterval   string `yaml:"extended_interval"`
	ClosedInterval     string `yaml:"closed_interval"`
	MonitorConcurrency int    `yaml:"monitor_concurrency"`
	Ranking            string `yaml:"ranking"` // dte_delta or volume
}

// Risk limits and starting cash are pointers so an explicit zero in the
// config survives defaulting. A zero limit disables that check.
type RiskConfig struct {
	MaxOpenPositions      *int `yaml:"max_open_positions"`
	MaxPositionsPerSymbol *int `yaml:"max_positions_per_symbol"`
}

type AccountConfig struct {
	StartingCash *float64 `yaml:"starting_cash"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

const (
	RankingDTEDelta = "dte_delta"
	RankingVolume   = "volume"

	ModePaper = "paper"
	ModeLive  = "live"
)

const (
	defaultMaxOpenPositions      = 20
	defaultMaxPositionsPerSymbol = 3
	defaultStartingCash          = 100000.0
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Allow ${VAR} references for secrets.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.MarketData.TimeoutSeconds == 0 {
		cfg.MarketData.TimeoutSeconds = 30
	}
	if cfg.Analysis.BaseURL == "" {
		cfg.Analysis.BaseURL = "https://api.deepseek.com/v1"
	}
	if cfg.Analysis.Model == "" {
		cfg.Analysis.Model = "deepseek-chat"
	}
	if cfg.Analysis.TimeoutSeconds == 0 {
		cfg.Analysis.TimeoutSeconds = 120
	}
	if cfg.Execution.Mode == "" {
		cfg.Execution.Mode = ModePaper
	}
	if cfg.Execution.SlippageBps == 0 {
		cfg.Execution.SlippageBps = 10
	}
	if cfg.Engine.RegularInterval == "" {
		cfg.Engine.RegularInterval = "15m"
	}
	if cfg.Engine.ExtendedInterval == "" {
		cfg.Engine.ExtendedInterval = "30m"
	}
	if cfg.Engine.ClosedInterval == "" {
		cfg.Engine.ClosedInterval = "60m"
	}
	if cfg.Engine.MonitorConcurrency == 0 {
		cfg.Engine.MonitorConcurrency = 10
	}
	if cfg.Engine.Ranking == "" {
		cfg.Engine.Ranking = RankingDTEDelta
	}
	if cfg.Risk.MaxOpenPositions == nil {
		v := defaultMaxOpenPositions
		cfg.Risk.MaxOpenPositions = &v
	}
	if cfg.Risk.MaxPositionsPerSymbol == nil {
		v := defaultMaxPositionsPerSymbol
		cfg.Risk.MaxPositionsPerSymbol = &v
	}
	if cfg.Account.StartingCash == nil {
		v := defaultStartingCash
		cfg.Account.StartingCash = &v
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.MarketData.BaseURL == "" {
		return fmt.Errorf("marketdata.base_url is required")
	}
	if c.Analysis.APIKey == "" {
		return fmt.Errorf("analysis.api_key is required")
	}
	if c.Execution.Mode != ModePaper && c.Execution.Mode != ModeLive {
		return fmt.Errorf("execution.mode must be %q or %q, got %q", ModePaper, ModeLive, c.Execution.Mode)
	}
	if c.Execution.Mode == ModeLive && c.Execution.BaseURL == "" {
		return fmt.Errorf("execution.base_url is required in live mode")
	}
	if c.Engine.Ranking != RankingDTEDelta && c.Engine.Ranking != RankingVolume {
		return fmt.Errorf("engine.ranking must be %q or %q, got %q", RankingDTEDelta, RankingVolume, c.Engine.Ranking)
	}
	for _, iv := range []string{c.Engine.RegularInterval, c.Engine.ExtendedInterval, c.Engine.ClosedInterval} {
		if _, err := time.ParseDuration(iv); err != nil {
			return fmt.Errorf("invalid engine interval %q: %w", iv, err)
		}
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

func (c *Config) IsPaper() bool {
	return c.Execution.Mode == ModePaper
}

// MaxOpenPositions returns the configured global position limit. Zero means
// the limit is disabled.
func (c *Config) MaxOpenPositions() int {
	if c.Risk.MaxOpenPositions == nil {
		return defaultMaxOpenPositions
	}
	return *c.Risk.MaxOpenPositions
}

// MaxPositionsPerSymbol returns the per-symbol position limit. Zero means
// the limit is disabled.
func (c *Config) MaxPositionsPerSymbol() int {
	if c.Risk.MaxPositionsPerSymbol == nil {
		return defaultMaxPositionsPerSymbol
	}
	return *c.Risk.MaxPositionsPerSymbol
}

func (c *Config) StartingCash() float64 {
	if c.Account.StartingCash == nil {
		return defaultStartingCash
	}
	return *c.Account.StartingCash
}

// MarketLocation returns the exchange time zone used for session decisions.
func (c *Config) MarketLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("ET", -5*60*60)
	}
	return loc
}

func (c *Config) RegularInterval() time.Duration {
	d, _ := time.ParseDuration(c.Engine.RegularInterval)
	return d
}

func (c *Config) ExtendedInterval() time.Duration {
	d, _ := time.ParseDuration(c.Engine.ExtendedInterval)
	return d
}

func (c *Config) ClosedInterval() time.Duration {
	d, _ := time.ParseDuration(c.Engine.ClosedInterval)
	return d
}

func (c *Config) MarketDataTimeout() time.Duration {
	return time.Duration(c.MarketData.TimeoutSeconds) * time.Second
}

func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutSeconds) * time.Second
}
