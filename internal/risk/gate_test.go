package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/advisorloop/autoengine/internal/logger"
	"github.com/advisorloop/autoengine/internal/marketdata"
	"github.com/advisorloop/autoengine/internal/storage"
)

type stubStore struct {
	open     int64
	bySymbol map[string]int64
	held     map[string]bool // "automationID/symbol"
}

func (s *stubStore) CountOpenPositions() (int64, error) { return s.open, nil }

func (s *stubStore) CountOpenPositionsBySymbol(symbol string) (int64, error) {
	return s.bySymbol[symbol], nil
}

func (s *stubStore) HasOpenPosition(automationID uint, symbol string) (bool, error) {
	return s.held[automationSymbolKey(automationID, symbol)], nil
}

func newStubStore() *stubStore {
	return &stubStore{bySymbol: make(map[string]int64), held: make(map[string]bool)}
}

func testGate(store Store, limits Limits) *Gate {
	return NewGate(store, limits, logger.New("error"))
}

func gateContract(underlying string, bid, ask float64) marketdata.Contract {
	return marketdata.Contract{
		Symbol:       underlying + "260918C00200000",
		Underlying:   underlying,
		ContractType: marketdata.Call,
		Expiration:   time.Now().Add(30 * 24 * time.Hour),
		Bid:          bid,
		Ask:          ask,
	}
}

func TestApproveEntryDebitsLedger(t *testing.T) {
	gate := testGate(newStubStore(), Limits{MaxOpenPositions: 10, MaxPositionsPerSymbol: 3})
	ledger := NewLedger(1000)
	a := &storage.Automation{ID: 1}

	// Mid 5.10, one contract costs 510.
	err := gate.ApproveEntry(ledger, a, gateContract("AAPL", 5.00, 5.20), 1)
	require.NoError(t, err)
	require.InDelta(t, 490, ledger.Cash(), 0.001)
}

// Approvals within one cycle consume the same balance: once the ledger cannot
// cover a proposal, it fails even though the account could cover each
// proposal in isolation.
func TestApproveEntrySequentialConsumption(t *testing.T) {
	gate := testGate(newStubStore(), Limits{MaxOpenPositions: 10, MaxPositionsPerSymbol: 3})
	ledger := NewLedger(600)

	err := gate.ApproveEntry(ledger, &storage.Automation{ID: 1}, gateContract("AAPL", 5.00, 5.20), 1)
	require.NoError(t, err)

	err = gate.ApproveEntry(ledger, &storage.Automation{ID: 2}, gateContract("MSFT", 5.00, 5.20), 1)
	require.ErrorIs(t, err, ErrInsufficientCash)
	require.InDelta(t, 90, ledger.Cash(), 0.001)
}

func TestApproveEntryRejectsDuplicate(t *testing.T) {
	store := newStubStore()
	store.held["1/AAPL"] = true

	gate := testGate(store, Limits{MaxOpenPositions: 10, MaxPositionsPerSymbol: 3})
	ledger := NewLedger(10000)
	a := &storage.Automation{ID: 1}

	err := gate.ApproveEntry(ledger, a, gateContract("AAPL", 5.00, 5.20), 1)
	require.ErrorIs(t, err, ErrDuplicatePosition)
	require.InDelta(t, 10000, ledger.Cash(), 0.001) // nothing reserved

	// The same automation may stack positions when explicitly allowed.
	a.AllowMultiplePositions = true
	err = gate.ApproveEntry(ledger, a, gateContract("AAPL", 5.00, 5.20), 1)
	require.NoError(t, err)
}

// The duplicate check also sees entries approved earlier in the same cycle,
// before any of them is persisted.
func TestApproveEntryRejectsDuplicateWithinCycle(t *testing.T) {
	gate := testGate(newStubStore(), Limits{MaxOpenPositions: 10, MaxPositionsPerSymbol: 3})
	ledger := NewLedger(10000)
	a := &storage.Automation{ID: 1}

	require.NoError(t, gate.ApproveEntry(ledger, a, gateContract("AAPL", 5.00, 5.20), 1))

	err := gate.ApproveEntry(ledger, a, gateContract("AAPL", 5.00, 5.20), 1)
	require.ErrorIs(t, err, ErrDuplicatePosition)
}

func TestApproveEntryMaxOpenPositions(t *testing.T) {
	store := newStubStore()
	store.open = 2

	gate := testGate(store, Limits{MaxOpenPositions: 3, MaxPositionsPerSymbol: 10})
	ledger := NewLedger(10000)

	require.NoError(t, gate.ApproveEntry(ledger, &storage.Automation{ID: 1}, gateContract("AAPL", 5.00, 5.20), 1))

	// Persisted positions plus this cycle's approvals hit the cap.
	err := gate.ApproveEntry(ledger, &storage.Automation{ID: 2}, gateContract("MSFT", 5.00, 5.20), 1)
	require.ErrorIs(t, err, ErrMaxPositions)
}

func TestApproveEntrySymbolConcentration(t *testing.T) {
	store := newStubStore()
	store.bySymbol["AAPL"] = 3

	gate := testGate(store, Limits{MaxOpenPositions: 50, MaxPositionsPerSymbol: 3})
	ledger := NewLedger(10000)
	a := &storage.Automation{ID: 1, AllowMultiplePositions: true}

	err := gate.ApproveEntry(ledger, a, gateContract("AAPL", 5.00, 5.20), 1)
	require.ErrorIs(t, err, ErrSymbolConcentration)

	// Another symbol is unaffected.
	err = gate.ApproveEntry(ledger, a, gateContract("MSFT", 5.00, 5.20), 1)
	require.NoError(t, err)
}

func TestGateResetClearsCycleState(t *testing.T) {
	gate := testGate(newStubStore(), Limits{MaxOpenPositions: 10, MaxPositionsPerSymbol: 3})
	ledger := NewLedger(10000)
	a := &storage.Automation{ID: 1}

	require.NoError(t, gate.ApproveEntry(ledger, a, gateContract("AAPL", 5.00, 5.20), 1))
	require.ErrorIs(t, gate.ApproveEntry(ledger, a, gateContract("AAPL", 5.00, 5.20), 1), ErrDuplicatePosition)

	gate.Reset()

	// With per-cycle state cleared and nothing persisted, the entry passes.
	require.NoError(t, gate.ApproveEntry(ledger, a, gateContract("AAPL", 5.00, 5.20), 1))
}

func TestLedger(t *testing.T) {
	l := NewLedger(1000)

	require.Error(t, l.Debit(-1))
	require.NoError(t, l.Debit(400))
	require.InDelta(t, 600, l.Cash(), 0.001)

	err := l.Debit(601)
	require.ErrorIs(t, err, ErrInsufficientCash)
	require.InDelta(t, 600, l.Cash(), 0.001)

	l.Credit(150)
	require.InDelta(t, 750, l.Cash(), 0.001)

	// Settling replaces the reservation with the actual fill cost.
	l.Settle(400, 410)
	require.InDelta(t, 740, l.Cash(), 0.001)

	l.Settle(400, 390)
	require.InDelta(t, 750, l.Cash(), 0.001)
}
