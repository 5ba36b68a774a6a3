package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"BreadthSentinel/internal/collector"
	"BreadthSentinel/internal/config"
	"BreadthSentinel/internal/logger"
	"BreadthSentinel/internal/metrics"
	"BreadthSentinel/internal/notifier"
	"BreadthSentinel/internal/pipeline"
	"BreadthSentinel/internal/publisher"
	"BreadthSentinel/internal/recorder"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Daily market breadth, regime and alert classification",
	Long: `BreadthSentinel classifies the market state of an equity universe once per trading day.

It computes breadth against the 20/50/100-day averages, the index regime, the
bottom-formation stage, an action signal with an exposure recommendation,
sector rotation quadrants and per-symbol technical alerts.`,
	SilenceUsage: true,
}

func init() {
	def := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		def = v
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", def, "path to the YAML config file")
	rootCmd.AddCommand(runCmd, serveCmd, latestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	rec      recorder.Recorder
	metrics  *metrics.Recorder
	telegram *notifier.TelegramNotifier
	runner   *pipeline.Runner
	closers  []func() error
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if err := cfg.Validate(); err != nil {
		return nil, log, fmt.Errorf("config validation: %w", err)
	}
	return cfg, log, nil
}

// openRecorder falls back to the no-op recorder when no database is configured.
func openRecorder(cfg *config.Config, log zerolog.Logger) (recorder.Recorder, error) {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder(), nil
	}
	return recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
}

func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	fetcher, err := collector.New(cfg.DataSource, cfg.Proxy, log)
	if err != nil {
		return nil, err
	}
	if len(cfg.Universe) == 0 && cfg.DataSource.Provider == "mock" {
		cfg.Universe = collector.DemoUniverse
	}
	log.Info().Str("provider", fetcher.Name()).Int("symbols", len(cfg.Universe)).
		Int("sectors", len(cfg.Sectors())).Msg("data source ready")
	loader := collector.NewCollector(fetcher, cfg.DataSource, cfg.Universe, cfg.Engine.Sectors.StrengthLookback, log)

	if a.rec, err = openRecorder(cfg, log); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.rec.Close)

	a.runner = pipeline.NewRunner(loader, pipeline.NewOrchestrator(cfg.Engine, log), a.rec, log)
	a.runner.Observer = a.metrics

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pctx).Err()
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, publishing disabled")
			client.Close()
		} else {
			a.runner.Publisher = publisher.NewRedisPublisher(client, cfg.Redis.Prefix, log)
			a.closers = append(a.closers, client.Close)
		}
	}

	if cfg.Telegram.BotToken != "" {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		a.runner.Sender = a.telegram
	}
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("close")
		}
	}
}
