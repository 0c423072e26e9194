package executor

import (
	"context"
	"errors"
	"time"

	"github.com/advisorloop/autoengine/internal/broker"
	"github.com/advisorloop/autoengine/internal/logger"
	"github.com/advisorloop/autoengine/internal/marketdata"
	"github.com/advisorloop/autoengine/internal/metrics"
	"github.com/advisorloop/autoengine/internal/risk"
	"github.com/advisorloop/autoengine/internal/storage"
)

// EntryProposal is a BUY the scanner wants to open.
type EntryProposal struct {
	Automation *storage.Automation
	Contract   marketdata.Contract
	Quantity   int
}

// ExitProposal is a SELL the monitor wants to close.
type ExitProposal struct {
	Position *storage.Position
	Reason   string
}

// Store is the persistence surface the executor mutates.
type Store interface {
	SavePosition(p *storage.Position) error
	UpdatePosition(p *storage.Position) error
	SaveTradeLog(t *storage.TradeLog) error
	GetAccount() (*storage.Account, error)
	SaveAccount(a *storage.Account) error
}

// Notifier receives one alert per execution plus error alerts.
type Notifier interface {
	NotifyEntry(symbol, contract string, price float64, quantity int)
	NotifyExit(symbol, contract string, price float64, quantity int, pnl float64, reason string)
	NotifyError(context string, err error)
}

// Result summarizes one Execute pass for the cycle log.
type Result struct {
	Executed int
	Rejected int
}

type Executor struct {
	exec     broker.ExecutionClient
	store    Store
	gate     *risk.Gate
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

func NewExecutor(
	exec broker.ExecutionClient,
	store Store,
	gate *risk.Gate,
	notifier Notifier,
	m *metrics.Metrics,
	log *logger.Logger,
) *Executor {
	return &Executor{
		exec:     exec,
		store:    store,
		gate:     gate,
		notifier: notifier,
		metrics:  m,
		logger:   log,
	}
}

// Execute runs the risk gate and commits the cycle's proposals: exits first,
// then entries, strictly sequentially against one cash ledger. A failed
// proposal never aborts the rest; it is retried from scratch next cycle.
func (e *Executor) Execute(ctx context.Context, exits []ExitProposal, entries []EntryProposal) Result {
	var res Result

	account, err := e.store.GetAccount()
	if err != nil {
		e.logger.Error("load account", "error", err)
		e.notifier.NotifyError("load account", err)
		return res
	}

	ledger := risk.NewLedger(account.Cash)
	e.gate.Reset()

	for _, exit := range exits {
		if e.executeExit(ctx, exit, ledger) {
			res.Executed++
		}
	}

	for _, entry := range entries {
		executed, rejected := e.executeEntry(ctx, entry, ledger)
		if executed {
			res.Executed++
		}
		if rejected {
			res.Rejected++
		}
	}

	account.Cash = ledger.Cash()
	if err := e.store.SaveAccount(account); err != nil {
		e.logger.Error("save account", "error", err)
	}

	return res
}

func (e *Executor) executeExit(ctx context.Context, exit ExitProposal, ledger *risk.Ledger) bool {
	p := exit.Position

	fill, err := e.exec.Sell(ctx, p.ContractSymbol, p.Quantity)
	if err != nil {
		e.logger.Error("sell order failed",
			"position_id", p.ID, "contract", p.ContractSymbol, "error", err)
		e.notifier.NotifyError("SELL "+p.ContractSymbol, err)
		return false
	}

	pnl := (fill.Price - p.EntryPrice) * float64(p.Quantity) * 100
	now := time.Now()

	p.Status = storage.PositionClosed
	p.CurrentPrice = fill.Price
	p.ExitPrice = fill.Price
	p.ExitReason = exit.Reason
	p.RealizedPnL = pnl
	p.ClosedAt = &now
	if err := e.store.UpdatePosition(p); err != nil {
		e.logger.Error("update position", "position_id", p.ID, "error", err)
	}

	ledger.Credit(fill.Price * float64(p.Quantity) * 100)

	e.audit(&storage.TradeLog{
		PositionID:     p.ID,
		AutomationID:   p.AutomationID,
		Symbol:         p.Symbol,
		ContractSymbol: p.ContractSymbol,
		Side:           storage.SideSell,
		Price:          fill.Price,
		Quantity:       p.Quantity,
		OrderID:        fill.OrderID,
		Reason:         exit.Reason,
		PnL:            pnl,
	})

	e.metrics.TradesTotal.WithLabelValues("sell").Inc()
	e.notifier.NotifyExit(p.Symbol, p.ContractSymbol, fill.Price, p.Quantity, pnl, exit.Reason)
	e.logger.Info("SELL executed",
		"contract", p.ContractSymbol, "price", fill.Price,
		"quantity", p.Quantity, "pnl", pnl, "reason", exit.Reason)
	return true
}

func (e *Executor) executeEntry(ctx context.Context, entry EntryProposal, ledger *risk.Ledger) (executed, rejected bool) {
	a := entry.Automation
	c := entry.Contract
	reserved := c.Mid() * float64(entry.Quantity) * 100

	if err := e.gate.ApproveEntry(ledger, a, c, entry.Quantity); err != nil {
		e.logger.Info("BUY rejected",
			"automation", a.Name, "symbol", c.Underlying,
			"contract", c.Symbol, "reason", err)
		e.metrics.RejectionsTotal.WithLabelValues(rejectionLabel(err)).Inc()
		return false, true
	}

	fill, err := e.exec.Buy(ctx, c, entry.Quantity)
	if err != nil {
		ledger.Credit(reserved) // release the reservation
		e.logger.Error("buy order failed",
			"automation", a.Name, "contract", c.Symbol, "error", err)
		e.notifier.NotifyError("BUY "+c.Symbol, err)
		return false, false
	}

	ledger.Settle(reserved, fill.Price*float64(entry.Quantity)*100)

	automationID := a.ID
	position := &storage.Position{
		AutomationID:      &automationID,
		Symbol:            c.Underlying,
		ContractSymbol:    c.Symbol,
		ContractType:      c.ContractType,
		Strike:            c.Strike,
		Quantity:          entry.Quantity,
		EntryPrice:        fill.Price,
		CurrentPrice:      fill.Price,
		EntryDate:         time.Now(),
		ExpirationDate:    c.Expiration,
		Delta:             c.Delta,
		Gamma:             c.Gamma,
		Theta:             c.Theta,
		Vega:              c.Vega,
		ImpliedVolatility: c.ImpliedVolatility,
		Status:            storage.PositionOpen,
		OrderID:           fill.OrderID,
	}
	if err := e.store.SavePosition(position); err != nil {
		e.logger.Error("save position", "contract", c.Symbol, "error", err)
	}

	e.audit(&storage.TradeLog{
		PositionID:     position.ID,
		AutomationID:   &automationID,
		Symbol:         c.Underlying,
		ContractSymbol: c.Symbol,
		Side:           storage.SideBuy,
		Price:          fill.Price,
		Quantity:       entry.Quantity,
		OrderID:        fill.OrderID,
	})

	e.metrics.TradesTotal.WithLabelValues("buy").Inc()
	e.notifier.NotifyEntry(c.Underlying, c.Symbol, fill.Price, entry.Quantity)
	e.logger.Info("BUY executed",
		"automation", a.Name, "contract", c.Symbol,
		"price", fill.Price, "quantity", entry.Quantity)
	return true, false
}

func (e *Executor) audit(t *storage.TradeLog) {
	if err := e.store.SaveTradeLog(t); err != nil {
		e.logger.Error("save trade log", "error", err)
	}
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, risk.ErrInsufficientCash):
		return "insufficient_cash"
	case errors.Is(err, risk.ErrDuplicatePosition):
		return "duplicate_position"
	case errors.Is(err, risk.ErrMaxPositions):
		return "max_positions"
	case errors.Is(err, risk.ErrSymbolConcentration):
		return "symbol_concentration"
	default:
		return "other"
	}
}
