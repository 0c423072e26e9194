package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/advisorloop/autoengine/internal/broker"
	"github.com/advisorloop/autoengine/internal/config"
	"github.com/advisorloop/autoengine/internal/logger"
	"github.com/advisorloop/autoengine/internal/marketdata"
	"github.com/advisorloop/autoengine/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dbPath := flag.String("db", "data/autoengine.db", "path to SQLite database")
	dryRun := flag.Bool("dry-run", false, "show positions without closing")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)

	db, err := storage.NewDatabase(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database error: %v\n", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	positions, err := repo.GetOpenPositions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load positions error: %v\n", err)
		os.Exit(1)
	}

	if len(positions) == 0 {
		fmt.Println("No open positions.")
		return
	}

	fmt.Printf("Found %d open position(s):\n\n", len(positions))
	for _, p := range positions {
		fmt.Printf("  %s %s: %d contract(s), entry %.2f, current %.2f, P&L %.2f\n",
			p.Symbol, p.ContractSymbol, p.Quantity, p.EntryPrice, p.CurrentPrice, p.UnrealizedPnL())
	}
	fmt.Println()

	if *dryRun {
		fmt.Println("Dry run, no orders placed.")
		return
	}

	md := marketdata.NewClient(cfg, log)
	var exec broker.ExecutionClient
	if cfg.IsPaper() {
		exec = broker.NewPaperClient(md, cfg, log)
	} else {
		exec = broker.NewLiveClient(cfg, log)
	}

	ctx := context.Background()
	var closed, failed int

	for i := range positions {
		p := &positions[i]

		fill, err := exec.Sell(ctx, p.ContractSymbol, p.Quantity)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  [FAIL] %s: sell: %v\n", p.ContractSymbol, err)
			failed++
			continue
		}

		pnl := (fill.Price - p.EntryPrice) * float64(p.Quantity) * 100
		now := time.Now()
		p.Status = storage.PositionClosed
		p.CurrentPrice = fill.Price
		p.ExitPrice = fill.Price
		p.ExitReason = storage.ExitManual
		p.RealizedPnL = pnl
		p.ClosedAt = &now
		if err := repo.UpdatePosition(p); err != nil {
			fmt.Fprintf(os.Stderr, "  [WARN] %s: update position: %v\n", p.ContractSymbol, err)
		}

		if account, err := repo.GetAccount(); err == nil {
			account.Cash += fill.Price * float64(p.Quantity) * 100
			if err := repo.SaveAccount(account); err != nil {
				fmt.Fprintf(os.Stderr, "  [WARN] %s: update account: %v\n", p.ContractSymbol, err)
			}
		}

		fmt.Printf("  [OK]   %s: sold %d contract(s) @ %.2f, P&L %.2f\n",
			p.ContractSymbol, fill.Quantity, fill.Price, pnl)
		closed++
	}

	fmt.Printf("\nDone: %d closed, %d failed.\n", closed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
