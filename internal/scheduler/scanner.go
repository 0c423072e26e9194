package scheduler

import (
	"context"
	"math"
	"time"

	"github.com/advisorloop/autoengine/internal/analysis"
	"github.com/advisorloop/autoengine/internal/config"
	"github.com/advisorloop/autoengine/internal/executor"
	"github.com/advisorloop/autoengine/internal/marketdata"
	"github.com/advisorloop/autoengine/internal/storage"
)

const defaultDTETolerance = 7

// scanOpportunities evaluates every active, unpaused automation for an entry
// signal. Provider errors skip the affected symbol for this cycle only.
func (e *Engine) scanOpportunities(ctx context.Context) ([]executor.EntryProposal, int) {
	automations, err := e.store.GetAutomations()
	if err != nil {
		e.logger.Error("load automations", "error", err)
		return nil, 0
	}

	now := e.clock()
	var entries []executor.EntryProposal
	scanned := 0

	for i := range automations {
		a := &automations[i]
		if !a.IsActive || a.IsPaused {
			continue
		}
		scanned++

		contract, found := e.scanAutomation(ctx, a, now)
		if !found {
			continue
		}

		quantity := a.Contracts
		if quantity < 1 {
			quantity = 1
		}
		entries = append(entries, executor.EntryProposal{
			Automation: a,
			Contract:   contract,
			Quantity:   quantity,
		})
	}

	return entries, scanned
}

// scanAutomation walks the automation's symbols until one yields a
// qualifying contract. Entries are long calls: the gate requires a bullish
// signal.
func (e *Engine) scanAutomation(ctx context.Context, a *storage.Automation, now time.Time) (marketdata.Contract, bool) {
	for _, symbol := range a.Symbols() {
		snap, err := e.snapshots.Snapshot(ctx, symbol)
		if err != nil {
			e.logger.Error("underlying snapshot, skipping symbol",
				"automation", a.Name, "symbol", symbol, "error", err)
			e.metrics.SkipsTotal.WithLabelValues("scan").Inc()
			continue
		}

		result, _, err := e.analyzer.Analyze(ctx, snap)
		if err != nil {
			e.logger.Error("technical analysis, skipping symbol",
				"automation", a.Name, "symbol", symbol, "error", err)
			e.metrics.SkipsTotal.WithLabelValues("scan").Inc()
			continue
		}

		if result.Direction != analysis.Bullish {
			e.logger.Debug("signal not bullish",
				"automation", a.Name, "symbol", symbol, "signal", result.Direction.String())
			continue
		}
		// Exact equality at the threshold passes.
		if result.Confidence < a.MinConfidence {
			e.logger.Debug("confidence below threshold",
				"automation", a.Name, "symbol", symbol,
				"confidence", result.Confidence, "min", a.MinConfidence)
			continue
		}

		chain, err := e.chains.Chain(ctx, symbol)
		if err != nil {
			e.logger.Error("options chain, skipping symbol",
				"automation", a.Name, "symbol", symbol, "error", err)
			e.metrics.SkipsTotal.WithLabelValues("scan").Inc()
			continue
		}

		candidates := FilterContracts(chain.Calls, a, now)
		if len(candidates) == 0 {
			e.logger.Debug("no contracts passed entry filters",
				"automation", a.Name, "symbol", symbol, "chain_size", len(chain.Calls))
			continue
		}

		best, _ := SelectBest(candidates, a, now, e.ranker)
		e.logger.Info("entry signal",
			"automation", a.Name, "symbol", symbol,
			"confidence", result.Confidence, "contract", best.Symbol,
			"delta", best.Delta, "dte", best.DTE(now), "mid", best.Mid())
		return best, true
	}

	return marketdata.Contract{}, false
}

// FilterContracts applies the automation's entry filters to a chain side.
func FilterContracts(contracts []marketdata.Contract, a *storage.Automation, now time.Time) []marketdata.Contract {
	tolerance := a.DTETolerance
	if tolerance <= 0 {
		tolerance = defaultDTETolerance
	}

	var out []marketdata.Contract
	for _, c := range contracts {
		if absInt(c.DTE(now)-a.PreferredDTE) > tolerance {
			continue
		}
		if c.Delta < a.DeltaMin || c.Delta > a.DeltaMax {
			continue
		}
		if c.Volume < a.MinVolume {
			continue
		}
		if c.OpenInterest < a.MinOpenInterest {
			continue
		}
		if a.MaxSpreadPct > 0 && c.SpreadPct() > a.MaxSpreadPct {
			continue
		}
		if c.Mid() <= 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Ranker reports whether x is a better pick than y for the automation. The
// tie-break policy is selected through engine.ranking.
type Ranker func(a *storage.Automation, x, y marketdata.Contract, now time.Time) bool

// RankByDTEDelta prefers the contract closest to the preferred DTE, then the
// delta closest to the middle of the allowed band, then the highest volume,
// with the OCC symbol as a final deterministic tie-break.
func RankByDTEDelta(a *storage.Automation, x, y marketdata.Contract, now time.Time) bool {
	dx := absInt(x.DTE(now) - a.PreferredDTE)
	dy := absInt(y.DTE(now) - a.PreferredDTE)
	if dx != dy {
		return dx < dy
	}

	target := (a.DeltaMin + a.DeltaMax) / 2
	ddx := math.Abs(x.Delta - target)
	ddy := math.Abs(y.Delta - target)
	if ddx != ddy {
		return ddx < ddy
	}

	if x.Volume != y.Volume {
		return x.Volume > y.Volume
	}
	return x.Symbol < y.Symbol
}

// RankByVolume prefers the most liquid contract first.
func RankByVolume(a *storage.Automation, x, y marketdata.Contract, now time.Time) bool {
	if x.Volume != y.Volume {
		return x.Volume > y.Volume
	}
	dx := absInt(x.DTE(now) - a.PreferredDTE)
	dy := absInt(y.DTE(now) - a.PreferredDTE)
	if dx != dy {
		return dx < dy
	}
	return x.Symbol < y.Symbol
}

func RankerFor(name string) Ranker {
	if name == config.RankingVolume {
		return RankByVolume
	}
	return RankByDTEDelta
}

// SelectBest returns the single best-match contract under the ranker.
func SelectBest(contracts []marketdata.Contract, a *storage.Automation, now time.Time, ranker Ranker) (marketdata.Contract, bool) {
	if len(contracts) == 0 {
		return marketdata.Contract{}, false
	}

	best := contracts[0]
	for _, c := range contracts[1:] {
		if ranker(a, c, best, now) {
			best = c
		}
	}
	return best, true
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
