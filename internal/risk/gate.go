package risk

import (
	"errors"
	"fmt"

	"github.com/advisorloop/autoengine/internal/logger"
	"github.com/advisorloop/autoengine/internal/marketdata"
	"github.com/advisorloop/autoengine/internal/storage"
)

var (
	ErrInsufficientCash    = errors.New("insufficient cash")
	ErrDuplicatePosition   = errors.New("position already open for symbol under automation")
	ErrMaxPositions        = errors.New("max concurrent positions reached")
	ErrSymbolConcentration = errors.New("max positions per symbol reached")
)

// Store is the position-exposure view the gate needs.
type Store interface {
	CountOpenPositions() (int64, error)
	CountOpenPositionsBySymbol(symbol string) (int64, error)
	HasOpenPosition(automationID uint, symbol string) (bool, error)
}

// Limits are the portfolio-level caps applied to every entry.
type Limits struct {
	MaxOpenPositions      int
	MaxPositionsPerSymbol int
}

// Gate validates entry proposals before execution. Evaluation is sequential
// within a cycle: each approval debits the cycle ledger so a later proposal
// cannot spend cash an earlier one already claimed.
type Gate struct {
	store  Store
	limits Limits
	logger *logger.Logger

	// opened counts entries approved this cycle, per symbol, so that limit
	// checks see positions the current cycle is about to open.
	opened       int
	openedSymbol map[string]int
}

func NewGate(store Store, limits Limits, log *logger.Logger) *Gate {
	return &Gate{
		store:        store,
		limits:       limits,
		logger:       log,
		openedSymbol: make(map[string]int),
	}
}

// Reset clears per-cycle approval state. Called at the start of each cycle.
func (g *Gate) Reset() {
	g.opened = 0
	g.openedSymbol = make(map[string]int)
}

// ApproveEntry validates one BUY proposal against the cycle ledger and the
// portfolio limits, debiting the ledger on approval.
func (g *Gate) ApproveEntry(ledger *Ledger, a *storage.Automation, contract marketdata.Contract, quantity int) error {
	cost := contract.Mid() * float64(quantity) * 100

	if !a.AllowMultiplePositions {
		exists, err := g.store.HasOpenPosition(a.ID, contract.Underlying)
		if err != nil {
			return fmt.Errorf("check open position: %w", err)
		}
		if exists || g.openedSymbol[automationSymbolKey(a.ID, contract.Underlying)] > 0 {
			return ErrDuplicatePosition
		}
	}

	if g.limits.MaxOpenPositions > 0 {
		open, err := g.store.CountOpenPositions()
		if err != nil {
			return fmt.Errorf("count open positions: %w", err)
		}
		if open+int64(g.opened) >= int64(g.limits.MaxOpenPositions) {
			return ErrMaxPositions
		}
	}

	if g.limits.MaxPositionsPerSymbol > 0 {
		bySymbol, err := g.store.CountOpenPositionsBySymbol(contract.Underlying)
		if err != nil {
			return fmt.Errorf("count positions by symbol: %w", err)
		}
		if bySymbol+int64(g.symbolOpened(contract.Underlying)) >= int64(g.limits.MaxPositionsPerSymbol) {
			return ErrSymbolConcentration
		}
	}

	if err := ledger.Debit(cost); err != nil {
		return err
	}

	g.opened++
	g.openedSymbol[automationSymbolKey(a.ID, contract.Underlying)]++
	g.openedSymbol[symbolKey(contract.Underlying)]++

	g.logger.Debug("entry approved",
		"automation_id", a.ID, "symbol", contract.Underlying,
		"contract", contract.Symbol, "cost", cost, "remaining_cash", ledger.Cash())
	return nil
}

func (g *Gate) symbolOpened(symbol string) int {
	return g.openedSymbol[symbolKey(symbol)]
}

func automationSymbolKey(automationID uint, symbol string) string {
	return fmt.Sprintf("%d/%s", automationID, symbol)
}

func symbolKey(symbol string) string {
	return "*/" + symbol
}
