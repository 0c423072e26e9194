package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/advisorloop/autoengine/internal/executor"
	"github.com/advisorloop/autoengine/internal/storage"
)

// monitorPositions refreshes price and Greeks for every open position and
// proposes exits per the owning automation's rules. A position whose quote
// fetch fails is skipped for this cycle only.
func (e *Engine) monitorPositions(ctx context.Context) ([]executor.ExitProposal, int) {
	positions, err := e.store.GetOpenPositions()
	if err != nil {
		e.logger.Error("load open positions", "error", err)
		return nil, 0
	}
	if len(positions) == 0 {
		return nil, 0
	}

	concurrency := e.config.Engine.MonitorConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	var (
		wg        sync.WaitGroup
		sem       = make(chan struct{}, concurrency)
		refreshed = make([]bool, len(positions))
	)

	for i := range positions {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			p := &positions[i]
			quote, err := e.quotes.ContractQuote(ctx, p.ContractSymbol)
			if err != nil {
				e.logger.Error("refresh quote, skipping position",
					"position_id", p.ID, "contract", p.ContractSymbol, "error", err)
				e.metrics.SkipsTotal.WithLabelValues("monitor").Inc()
				return
			}

			mark := quote.Mid()
			if mark <= 0 {
				mark = quote.Last
			}
			if mark > 0 {
				p.CurrentPrice = mark
			}
			p.Delta = quote.Delta
			p.Gamma = quote.Gamma
			p.Theta = quote.Theta
			p.Vega = quote.Vega
			p.ImpliedVolatility = quote.ImpliedVolatility
			refreshed[i] = true
		}(i)
	}

	wg.Wait()

	now := e.clock()
	var exits []executor.ExitProposal

	for i := range positions {
		if !refreshed[i] {
			continue
		}
		p := &positions[i]

		// Refresh is persisted regardless of the exit outcome.
		if err := e.store.UpdatePosition(p); err != nil {
			e.logger.Error("persist position refresh", "position_id", p.ID, "error", err)
		}

		// Manual trades are refreshed but never auto-exited.
		if p.AutomationID == nil {
			continue
		}

		automation, err := e.store.GetAutomation(*p.AutomationID)
		if err != nil {
			e.logger.Error("load automation for position, skipping exit checks",
				"position_id", p.ID, "automation_id", *p.AutomationID, "error", err)
			e.metrics.SkipsTotal.WithLabelValues("monitor").Inc()
			continue
		}

		if reason, exit := EvaluateExit(automation, p, now); exit {
			e.logger.Info("exit condition met",
				"position_id", p.ID, "contract", p.ContractSymbol,
				"reason", reason, "pl_pct", p.UnrealizedPnLPct())
			exits = append(exits, executor.ExitProposal{Position: p, Reason: reason})
		}
	}

	return exits, len(positions)
}

// EvaluateExit applies the automation's exit rules in fixed precedence:
// expiration, max days held, profit target, stop loss. First match wins.
// All boundaries are inclusive.
func EvaluateExit(a *storage.Automation, p *storage.Position, now time.Time) (string, bool) {
	if daysUntil(p.ExpirationDate, now) <= 1 {
		return storage.ExitExpiringSoon, true
	}

	if a.MaxDaysToHold > 0 && daysBetween(p.EntryDate, now) >= a.MaxDaysToHold {
		return storage.ExitMaxDaysHeld, true
	}

	plPct := p.UnrealizedPnLPct()

	if a.ExitAtProfitTarget && plPct >= a.ProfitTarget1 {
		return storage.ExitProfitTarget, true
	}

	// Loss is expressed as a positive magnitude.
	if a.ExitAtStopLoss && -plPct >= a.StopLossPercent {
		return storage.ExitStopLoss, true
	}

	return "", false
}

func daysUntil(t, now time.Time) int {
	return int(t.Sub(now).Hours() / 24)
}

func daysBetween(from, now time.Time) int {
	return int(now.Sub(from).Hours() / 24)
}
