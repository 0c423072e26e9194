package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/advisorloop/autoengine/internal/analysis"
	"github.com/advisorloop/autoengine/internal/broker"
	"github.com/advisorloop/autoengine/internal/config"
	"github.com/advisorloop/autoengine/internal/executor"
	"github.com/advisorloop/autoengine/internal/logger"
	"github.com/advisorloop/autoengine/internal/marketdata"
	"github.com/advisorloop/autoengine/internal/metrics"
	"github.com/advisorloop/autoengine/internal/risk"
	"github.com/advisorloop/autoengine/internal/scheduler"
	"github.com/advisorloop/autoengine/internal/storage"
	"github.com/advisorloop/autoengine/internal/telegram"
	"github.com/advisorloop/autoengine/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dbPath := flag.String("db", "data/autoengine.db", "path to SQLite database")
	flag.Parse()

	// Optional .env for secrets referenced by the config.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)

	mode := "LIVE"
	if cfg.IsPaper() {
		mode = "PAPER"
	}
	log.Info("starting autoengine", "mode", mode)

	db, err := storage.NewDatabase(*dbPath)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	account, err := repo.EnsureAccount(cfg.StartingCash())
	if err != nil {
		log.Error("account init failed", "error", err)
		os.Exit(1)
	}
	log.Info("account ready", "cash", account.Cash)

	m := metrics.New()
	md := marketdata.NewClient(cfg, log)
	underlying := marketdata.NewYahooSource(log)
	analyzer := analysis.NewLLMClient(cfg, log)
	notifier := telegram.NewNotifier(cfg, log)

	var exec broker.ExecutionClient
	if cfg.IsPaper() {
		exec = broker.NewPaperClient(md, cfg, log)
	} else {
		exec = broker.NewLiveClient(cfg, log)
	}

	gate := risk.NewGate(repo, risk.Limits{
		MaxOpenPositions:      cfg.MaxOpenPositions(),
		MaxPositionsPerSymbol: cfg.MaxPositionsPerSymbol(),
	}, log)
	xctr := executor.NewExecutor(exec, repo, gate, notifier, m, log)
	engine := scheduler.NewEngine(repo, md, md, underlying, analyzer, xctr, notifier, m, cfg, log)
	webServer := web.NewServer(engine, repo, m, cfg, log)

	if cfg.Engine.Autostart {
		if err := engine.Start(); err != nil {
			log.Error("engine start failed", "error", err)
			os.Exit(1)
		}
	} else {
		log.Info("engine idle, waiting for start via API")
	}

	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()

	notifier.NotifyStatus(fmt.Sprintf("🤖 Autoengine up (%s)", mode))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	if engine.State() == scheduler.Running {
		if err := engine.Stop(); err != nil {
			log.Error("engine stop error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown error", "error", err)
	}

	notifier.NotifyStatus("🛑 Autoengine stopped")
	log.Info("autoengine stopped")
}
