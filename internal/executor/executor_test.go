package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/advisorloop/autoengine/internal/broker"
	"github.com/advisorloop/autoengine/internal/logger"
	"github.com/advisorloop/autoengine/internal/marketdata"
	"github.com/advisorloop/autoengine/internal/metrics"
	"github.com/advisorloop/autoengine/internal/risk"
	"github.com/advisorloop/autoengine/internal/storage"
)

type memStore struct {
	positions map[uint]*storage.Position
	nextID    uint
	account   storage.Account
	trades    []storage.TradeLog
}

func newMemStore(cash float64) *memStore {
	return &memStore{
		positions: make(map[uint]*storage.Position),
		account:   storage.Account{ID: 1, Cash: cash},
	}
}

func (s *memStore) SavePosition(p *storage.Position) error {
	s.nextID++
	p.ID = s.nextID
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *memStore) UpdatePosition(p *storage.Position) error {
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *memStore) SaveTradeLog(t *storage.TradeLog) error {
	s.trades = append(s.trades, *t)
	return nil
}

func (s *memStore) GetAccount() (*storage.Account, error) {
	cp := s.account
	return &cp, nil
}

func (s *memStore) SaveAccount(a *storage.Account) error {
	s.account = *a
	return nil
}

func (s *memStore) CountOpenPositions() (int64, error) {
	var n int64
	for _, p := range s.positions {
		if p.Status == storage.PositionOpen {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountOpenPositionsBySymbol(symbol string) (int64, error) {
	var n int64
	for _, p := range s.positions {
		if p.Status == storage.PositionOpen && p.Symbol == symbol {
			n++
		}
	}
	return n, nil
}

func (s *memStore) HasOpenPosition(automationID uint, symbol string) (bool, error) {
	for _, p := range s.positions {
		if p.Status == storage.PositionOpen && p.Symbol == symbol &&
			p.AutomationID != nil && *p.AutomationID == automationID {
			return true, nil
		}
	}
	return false, nil
}

type stubExec struct {
	buyPrice  float64
	sellPrice float64
	buyErr    error
	sellErr   error
}

func (s *stubExec) Buy(ctx context.Context, c marketdata.Contract, quantity int) (*broker.Fill, error) {
	if s.buyErr != nil {
		return nil, s.buyErr
	}
	return &broker.Fill{OrderID: "buy-1", Price: s.buyPrice, Quantity: quantity}, nil
}

func (s *stubExec) Sell(ctx context.Context, contractSymbol string, quantity int) (*broker.Fill, error) {
	if s.sellErr != nil {
		return nil, s.sellErr
	}
	return &broker.Fill{OrderID: "sell-1", Price: s.sellPrice, Quantity: quantity}, nil
}

type recordingNotifier struct {
	entries []string
	exits   []string
	errors  []string
}

func (n *recordingNotifier) NotifyEntry(symbol, contract string, price float64, quantity int) {
	n.entries = append(n.entries, contract)
}

func (n *recordingNotifier) NotifyExit(symbol, contract string, price float64, quantity int, pnl float64, reason string) {
	n.exits = append(n.exits, fmt.Sprintf("%s/%s", contract, reason))
}

func (n *recordingNotifier) NotifyError(context string, err error) {
	n.errors = append(n.errors, context)
}

func setup(cash float64, exec *stubExec) (*Executor, *memStore, *recordingNotifier) {
	store := newMemStore(cash)
	log := logger.New("error")
	gate := risk.NewGate(store, risk.Limits{MaxOpenPositions: 10, MaxPositionsPerSymbol: 3}, log)
	notifier := &recordingNotifier{}
	e := NewExecutor(exec, store, gate, notifier, metrics.New(), log)
	return e, store, notifier
}

func entryProposal() EntryProposal {
	return EntryProposal{
		Automation: &storage.Automation{ID: 1, Name: "aapl-calls"},
		Contract: marketdata.Contract{
			Symbol:       "AAPL260918C00200000",
			Underlying:   "AAPL",
			ContractType: marketdata.Call,
			Strike:       200,
			Expiration:   time.Now().Add(30 * 24 * time.Hour),
			Bid:          5.00,
			Ask:          5.20,
			Delta:        0.45,
		},
		Quantity: 1,
	}
}

func openPosition(store *memStore, entryPrice float64) *storage.Position {
	automationID := uint(1)
	p := &storage.Position{
		AutomationID:   &automationID,
		Symbol:         "AAPL",
		ContractSymbol: "AAPL260918C00200000",
		ContractType:   "call",
		Quantity:       1,
		EntryPrice:     entryPrice,
		CurrentPrice:   entryPrice,
		EntryDate:      time.Now().Add(-48 * time.Hour),
		ExpirationDate: time.Now().Add(30 * 24 * time.Hour),
		Status:         storage.PositionOpen,
	}
	store.SavePosition(p)
	return p
}

func TestExecuteEntry(t *testing.T) {
	exec := &stubExec{buyPrice: 5.15}
	e, store, notifier := setup(10000, exec)

	res := e.Execute(context.Background(), nil, []EntryProposal{entryProposal()})

	require.Equal(t, 1, res.Executed)
	require.Equal(t, 0, res.Rejected)

	require.Len(t, store.positions, 1)
	p := store.positions[1]
	require.Equal(t, storage.PositionOpen, p.Status)
	require.Equal(t, 5.15, p.EntryPrice)
	require.Equal(t, "buy-1", p.OrderID)

	// Reserved at mid (510), settled at the fill (515).
	require.InDelta(t, 10000-515, store.account.Cash, 0.001)

	require.Len(t, store.trades, 1)
	require.Equal(t, storage.SideBuy, store.trades[0].Side)
	require.Len(t, notifier.entries, 1)
}

func TestExecuteExit(t *testing.T) {
	exec := &stubExec{sellPrice: 12.50}
	e, store, notifier := setup(10000, exec)
	p := openPosition(store, 10.00)

	res := e.Execute(context.Background(), []ExitProposal{{Position: p, Reason: storage.ExitProfitTarget}}, nil)

	require.Equal(t, 1, res.Executed)

	closed := store.positions[p.ID]
	require.Equal(t, storage.PositionClosed, closed.Status)
	require.Equal(t, 12.50, closed.ExitPrice)
	require.Equal(t, storage.ExitProfitTarget, closed.ExitReason)
	require.InDelta(t, 250, closed.RealizedPnL, 0.001)
	require.NotNil(t, closed.ClosedAt)

	require.InDelta(t, 10000+1250, store.account.Cash, 0.001)

	require.Len(t, store.trades, 1)
	require.Equal(t, storage.SideSell, store.trades[0].Side)
	require.InDelta(t, 250, store.trades[0].PnL, 0.001)
	require.Len(t, notifier.exits, 1)
}

// Exit proceeds are spendable by entries in the same cycle.
func TestExecuteExitFundsEntry(t *testing.T) {
	exec := &stubExec{buyPrice: 5.10, sellPrice: 6.00}
	e, store, _ := setup(100, exec)
	p := openPosition(store, 5.00)
	// Entry needs 510; only the 600 sale proceeds cover it.

	res := e.Execute(context.Background(),
		[]ExitProposal{{Position: p, Reason: storage.ExitMaxDaysHeld}},
		[]EntryProposal{entryProposal()})

	require.Equal(t, 2, res.Executed)
	require.Equal(t, 0, res.Rejected)
	require.InDelta(t, 100+600-510, store.account.Cash, 0.001)
}

func TestExecuteEntryRejectedKeepsCash(t *testing.T) {
	exec := &stubExec{buyPrice: 5.15}
	e, store, _ := setup(100, exec) // cannot cover the 510 reservation

	res := e.Execute(context.Background(), nil, []EntryProposal{entryProposal()})

	require.Equal(t, 0, res.Executed)
	require.Equal(t, 1, res.Rejected)
	require.Empty(t, store.positions)
	require.Empty(t, store.trades)
	require.InDelta(t, 100, store.account.Cash, 0.001)
}

func TestExecuteFailedBuyReleasesReservation(t *testing.T) {
	exec := &stubExec{buyErr: fmt.Errorf("venue rejected order")}
	e, store, notifier := setup(10000, exec)

	res := e.Execute(context.Background(), nil, []EntryProposal{entryProposal()})

	// A broker failure is neither executed nor a gate rejection.
	require.Equal(t, 0, res.Executed)
	require.Equal(t, 0, res.Rejected)
	require.Empty(t, store.positions)
	require.InDelta(t, 10000, store.account.Cash, 0.001)
	require.Len(t, notifier.errors, 1)
}

func TestExecuteFailedSellLeavesPositionOpen(t *testing.T) {
	exec := &stubExec{sellErr: fmt.Errorf("venue unavailable")}
	e, store, notifier := setup(10000, exec)
	p := openPosition(store, 10.00)

	res := e.Execute(context.Background(), []ExitProposal{{Position: p, Reason: storage.ExitStopLoss}}, nil)

	require.Equal(t, 0, res.Executed)
	require.Equal(t, storage.PositionOpen, store.positions[p.ID].Status)
	require.InDelta(t, 10000, store.account.Cash, 0.001)
	require.Len(t, notifier.errors, 1)
}

func TestRejectionLabel(t *testing.T) {
	require.Equal(t, "insufficient_cash", rejectionLabel(fmt.Errorf("wrap: %w", risk.ErrInsufficientCash)))
	require.Equal(t, "duplicate_position", rejectionLabel(risk.ErrDuplicatePosition))
	require.Equal(t, "max_positions", rejectionLabel(risk.ErrMaxPositions))
	require.Equal(t, "symbol_concentration", rejectionLabel(risk.ErrSymbolConcentration))
	require.Equal(t, "other", rejectionLabel(fmt.Errorf("boom")))
}
