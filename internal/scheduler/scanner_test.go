package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/advisorloop/autoengine/internal/config"
	"github.com/advisorloop/autoengine/internal/marketdata"
	"github.com/advisorloop/autoengine/internal/storage"
)

func newScanAutomation() *storage.Automation {
	return &storage.Automation{
		ID:              1,
		Name:            "aapl-calls",
		Symbol:          "AAPL",
		IsActive:        true,
		MinConfidence:   0.70,
		PreferredDTE:    30,
		DTETolerance:    7,
		DeltaMin:        0.30,
		DeltaMax:        0.60,
		MinVolume:       100,
		MinOpenInterest: 500,
		MaxSpreadPct:    10,
		Contracts:       1,
	}
}

func chainContract(symbol string, dte int, delta float64, volume, oi int64, bid, ask float64, now time.Time) marketdata.Contract {
	return marketdata.Contract{
		Symbol:       symbol,
		Underlying:   "AAPL",
		ContractType: marketdata.Call,
		Strike:       200,
		Expiration:   now.Add(time.Duration(dte) * 24 * time.Hour),
		Bid:          bid,
		Ask:          ask,
		Volume:       volume,
		OpenInterest: oi,
		Delta:        delta,
	}
}

func TestFilterContracts(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	a := newScanAutomation()

	pass := chainContract("AAPL260925C00200000", 30, 0.45, 500, 1000, 5.00, 5.20, now)

	tests := []struct {
		name     string
		contract marketdata.Contract
		want     bool
	}{
		{"all filters pass", pass, true},
		{"dte at tolerance edge passes", chainContract("A", 37, 0.45, 500, 1000, 5.00, 5.20, now), true},
		{"dte beyond tolerance", chainContract("A", 38, 0.45, 500, 1000, 5.00, 5.20, now), false},
		{"delta below band", chainContract("A", 30, 0.29, 500, 1000, 5.00, 5.20, now), false},
		{"delta at band edge passes", chainContract("A", 30, 0.60, 500, 1000, 5.00, 5.20, now), true},
		{"delta above band", chainContract("A", 30, 0.61, 500, 1000, 5.00, 5.20, now), false},
		{"volume below floor", chainContract("A", 30, 0.45, 99, 1000, 5.00, 5.20, now), false},
		{"open interest below floor", chainContract("A", 30, 0.45, 500, 499, 5.00, 5.20, now), false},
		{"spread too wide", chainContract("A", 30, 0.45, 500, 1000, 4.00, 6.00, now), false},
		{"zero mid", chainContract("A", 30, 0.45, 500, 1000, 0, 0, now), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FilterContracts([]marketdata.Contract{tt.contract}, a, now)
			if tt.want {
				require.Len(t, out, 1)
			} else {
				require.Empty(t, out)
			}
		})
	}
}

func TestFilterContractsDefaultTolerance(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	a := newScanAutomation()
	a.DTETolerance = 0

	in := chainContract("A", 37, 0.45, 500, 1000, 5.00, 5.20, now)
	out := chainContract("B", 38, 0.45, 500, 1000, 5.00, 5.20, now)

	got := FilterContracts([]marketdata.Contract{in, out}, a, now)
	require.Len(t, got, 1)
	require.Equal(t, "A", got[0].Symbol)
}

func TestRankByDTEDelta(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	a := newScanAutomation()

	closerDTE := chainContract("FAR", 29, 0.30, 100, 1000, 5.00, 5.20, now)
	fartherDTE := chainContract("NEAR", 25, 0.45, 900, 1000, 5.00, 5.20, now)
	require.True(t, RankByDTEDelta(a, closerDTE, fartherDTE, now))
	require.False(t, RankByDTEDelta(a, fartherDTE, closerDTE, now))

	// Same DTE distance: delta closest to the band midpoint (0.45) wins.
	midDelta := chainContract("MID", 30, 0.45, 100, 1000, 5.00, 5.20, now)
	edgeDelta := chainContract("EDGE", 30, 0.60, 900, 1000, 5.00, 5.20, now)
	require.True(t, RankByDTEDelta(a, midDelta, edgeDelta, now))

	// Same DTE and delta: volume breaks the tie.
	lowVol := chainContract("LOW", 30, 0.45, 100, 1000, 5.00, 5.20, now)
	highVol := chainContract("HIGH", 30, 0.45, 900, 1000, 5.00, 5.20, now)
	require.True(t, RankByDTEDelta(a, highVol, lowVol, now))

	// Fully tied: OCC symbol makes the result deterministic.
	x := chainContract("AAA", 30, 0.45, 500, 1000, 5.00, 5.20, now)
	y := chainContract("BBB", 30, 0.45, 500, 1000, 5.00, 5.20, now)
	require.True(t, RankByDTEDelta(a, x, y, now))
	require.False(t, RankByDTEDelta(a, y, x, now))
}

func TestRankByVolume(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	a := newScanAutomation()

	lowVol := chainContract("LOW", 30, 0.45, 100, 1000, 5.00, 5.20, now)
	highVol := chainContract("HIGH", 27, 0.45, 900, 1000, 5.00, 5.20, now)
	require.True(t, RankByVolume(a, highVol, lowVol, now))

	// Equal volume falls back to DTE distance.
	nearDTE := chainContract("NEAR", 30, 0.45, 500, 1000, 5.00, 5.20, now)
	farDTE := chainContract("FAR", 25, 0.45, 500, 1000, 5.00, 5.20, now)
	require.True(t, RankByVolume(a, nearDTE, farDTE, now))
}

func TestSelectBest(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	a := newScanAutomation()

	_, ok := SelectBest(nil, a, now, RankByDTEDelta)
	require.False(t, ok)

	contracts := []marketdata.Contract{
		chainContract("B", 35, 0.50, 500, 1000, 5.00, 5.20, now),
		chainContract("A", 30, 0.45, 500, 1000, 5.00, 5.20, now),
		chainContract("C", 33, 0.40, 500, 1000, 5.00, 5.20, now),
	}

	best, ok := SelectBest(contracts, a, now, RankByDTEDelta)
	require.True(t, ok)
	require.Equal(t, "A", best.Symbol)

	// Input order does not change the pick.
	reversed := []marketdata.Contract{contracts[2], contracts[0], contracts[1]}
	best, ok = SelectBest(reversed, a, now, RankByDTEDelta)
	require.True(t, ok)
	require.Equal(t, "A", best.Symbol)
}

func TestRankerFor(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	a := newScanAutomation()

	lowVol := chainContract("LOW", 30, 0.45, 100, 1000, 5.00, 5.20, now)
	highVol := chainContract("HIGH", 25, 0.45, 900, 1000, 5.00, 5.20, now)

	// Volume ranker prefers liquidity over DTE fit; default does the opposite.
	require.True(t, RankerFor(config.RankingVolume)(a, highVol, lowVol, now))
	require.True(t, RankerFor("")(a, lowVol, highVol, now))
}
