package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SymbolConfig assigns a universe member to its sector.
type SymbolConfig struct {
	Symbol string `yaml:"symbol" validate:"required"`
	Sector string `yaml:"sector"`
}

// RegimeConfig parameterises the index trend classifier.
type RegimeConfig struct {
	FastPeriod int     `yaml:"fast_period" default:"9" validate:"gt=0"`
	SlowPeriod int     `yaml:"slow_period" default:"21" validate:"gtfield=FastPeriod"`
	// Band is the neutral zone around the slow EMA. An explicit 0 in YAML is
	// indistinguishable from unset and loads as 0.005; use e.g. 1e-9 for no band.
	Band float64 `yaml:"band" default:"0.005" validate:"gte=0,lt=1"`
}

// BottomConfig sizes the higher-low windows. The two windows are independent;
// HistoryDates must cover both partitions.
type BottomConfig struct {
	FastWindow   int `yaml:"fast_window" default:"3" validate:"gt=0"`
	SlowWindow   int `yaml:"slow_window" default:"5" validate:"gt=0"`
	HistoryDates int `yaml:"history_dates" default:"10" validate:"gt=0"`
}

// SectorConfig parameterises relative rotation. SmoothPeriod 1 disables momentum smoothing.
type SectorConfig struct {
	StrengthLookback int `yaml:"strength_lookback" default:"20" validate:"gt=0"`
	MomentumLag      int `yaml:"momentum_lag" default:"5" validate:"gt=0"`
	SmoothPeriod     int `yaml:"smooth_period" default:"3" validate:"gt=0"`
}

// AlertConfig parameterises the per-symbol detectors.
type AlertConfig struct {
	MAPeriods                []int   `yaml:"ma_periods" default:"[20,50,100,200]" validate:"min=1,dive,gt=1"`
	MACrossStrength          float64 `yaml:"ma_cross_strength" default:"0.7" validate:"gte=0,lte=1"`
	VolumeLookback           int     `yaml:"volume_lookback" default:"20" validate:"gt=0"`
	VolumeSpikeMultiplier    float64 `yaml:"volume_spike_multiplier" default:"1.5" validate:"gt=0"`
	VolumeMinConfidence      float64 `yaml:"volume_min_confidence" default:"0.6" validate:"gte=0,lte=1"`
	BreakoutLookback         int     `yaml:"breakout_lookback" default:"20" validate:"gt=0"`
	BreakoutVolumeMultiplier float64 `yaml:"breakout_volume_multiplier" default:"1.2" validate:"gt=0"`
	BreakoutStrength         float64 `yaml:"breakout_strength" default:"0.8" validate:"gte=0,lte=1"`
	RSIPeriod                int     `yaml:"rsi_period" default:"14" validate:"gt=1"`
	RSILow                   float64 `yaml:"rsi_low" default:"30" validate:"gte=0,lte=100"`
	RSIHigh                  float64 `yaml:"rsi_high" default:"70" validate:"gtfield=RSILow,lte=100"`
	ADXPeriod                int     `yaml:"adx_period" default:"14" validate:"gt=1"`
	ADXTrend                 float64 `yaml:"adx_trend" default:"20" validate:"gte=0"`
	PatternTopN              int     `yaml:"pattern_top_n" default:"8" validate:"gt=0"`
}

// DataSourceConfig selects and throttles the market data provider.
type DataSourceConfig struct {
	Provider    string `yaml:"provider" default:"yahoo" validate:"oneof=yahoo rest mock"`
	BaseURL     string `yaml:"base_url" validate:"required_if=Provider rest"`
	APIKey      string `yaml:"api_key"`
	Index       string `yaml:"index" default:"SPX500" validate:"required"`
	HistoryBars int    `yaml:"history_bars" default:"320" validate:"gte=30"`
	Concurrency int    `yaml:"concurrency" default:"8" validate:"gt=0"`
	// RequestsPerSecond and Burst throttle calls to the provider.
	RequestsPerSecond float64 `yaml:"requests_per_second" default:"4" validate:"gt=0"`
	Burst             int     `yaml:"burst" default:"4" validate:"gt=0"`
	// BreakerFailures consecutive failures open the circuit for BreakerCooldown.
	BreakerFailures uint32        `yaml:"breaker_failures" default:"5" validate:"gt=0"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" default:"30s"`
	Timeout         time.Duration `yaml:"timeout" default:"30s"`
}

// EngineConfig is the immutable parameter set handed to every classifier.
type EngineConfig struct {
	Regime  RegimeConfig `yaml:"regime"`
	Bottom  BottomConfig `yaml:"bottom"`
	Sectors SectorConfig `yaml:"sectors"`
	Alerts  AlertConfig  `yaml:"alerts"`
	// Workers bounds per-symbol detection; 0 means runtime.NumCPU().
	Workers int `yaml:"workers" validate:"gte=0"`
}

// Config holds all application configuration.
type Config struct {
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	DataSource DataSourceConfig `yaml:"data_source"`
	Universe   []SymbolConfig   `yaml:"universe" validate:"dive"`
	Schedule struct {
		DailyCron string `yaml:"daily_cron" default:"0 30 22 * * 1-5" validate:"required"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/breadth_sentinel.db"`
	} `yaml:"database"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379" validate:"required_if=Enabled true"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"breadth"`
	} `yaml:"redis"`
	Metrics struct {
		Listen string `yaml:"listen" default:":9108"`
	} `yaml:"metrics"`
	Engine EngineConfig `yaml:"engine"`
	Proxy  string       `yaml:"proxy"`
}

var validate = validator.New()

// Load reads config from a YAML file, then applies .env and environment variable overrides.
// Struct-tag defaults are applied last and fill every zero value, so a numeric
// field written as 0 in YAML takes its default.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = runtime.NumCPU()
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.DataSource.Provider = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("ENGINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.Workers = n
		}
	}
}

// Validate checks struct rules and the cross-field constraints the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(c.Universe) == 0 && c.DataSource.Provider != "mock" {
		return fmt.Errorf("universe must list at least one symbol")
	}
	return c.Engine.Validate()
}

// Validate checks the engine parameter set on its own, so tests can build one without a file.
func (e EngineConfig) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	need := 2 * max(e.Bottom.FastWindow, e.Bottom.SlowWindow)
	if e.Bottom.HistoryDates < need {
		return fmt.Errorf("engine.bottom.history_dates must be >= %d to hold both higher-low partitions, got %d",
			need, e.Bottom.HistoryDates)
	}
	return nil
}

// DefaultEngine returns the engine configuration with every default applied.
func DefaultEngine() EngineConfig {
	var e EngineConfig
	if err := defaults.Set(&e); err != nil {
		panic(fmt.Sprintf("engine defaults: %v", err))
	}
	if e.Workers == 0 {
		e.Workers = runtime.NumCPU()
	}
	return e
}

// Sectors groups universe symbols by sector, skipping symbols without one.
func (c *Config) Sectors() map[string][]string {
	out := make(map[string][]string)
	for _, s := range c.Universe {
		if s.Sector == "" {
			continue
		}
		out[s.Sector] = append(out[s.Sector], s.Symbol)
	}
	return out
}
