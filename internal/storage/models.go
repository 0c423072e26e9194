package storage

import (
	"strings"
	"time"
)

// Position statuses
const (
	PositionOpen   = "open"
	PositionClosed = "closed"
)

// Trade sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Exit reasons recorded on closed positions and trade logs.
const (
	ExitExpiringSoon = "expiring_soon"
	ExitMaxDaysHeld  = "max_days_held"
	ExitProfitTarget = "profit_target"
	ExitStopLoss     = "stop_loss"
	ExitManual       = "manual"
)

// Automation is a user-configured rule set driving entry scanning and exit
// monitoring for a symbol or watchlist. Automations are never auto-deleted.
type Automation struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name      string `gorm:"not null" json:"name"`
	Symbol    string `gorm:"index" json:"symbol"`
	Watchlist string `json:"watchlist"` // comma-separated symbols, overrides Symbol when set

	IsActive bool `gorm:"not null;default:true" json:"is_active"`
	IsPaused bool `gorm:"not null;default:false" json:"is_paused"`

	MinConfidence float64 `gorm:"not null" json:"min_confidence"` // 0.0-1.0

	// Entry filters
	PreferredDTE    int     `json:"preferred_dte"`
	DTETolerance    int     `json:"dte_tolerance"`
	DeltaMin        float64 `json:"delta_min"`
	DeltaMax        float64 `json:"delta_max"`
	MinVolume       int64   `json:"min_volume"`
	MinOpenInterest int64   `json:"min_open_interest"`
	MaxSpreadPct    float64 `json:"max_spread_pct"`
	Contracts       int     `gorm:"not null;default:1" json:"contracts"`

	AllowMultiplePositions bool `json:"allow_multiple_positions"`

	// Exit rules
	ProfitTarget1      float64 `json:"profit_target_1"`   // percent
	StopLossPercent    float64 `json:"stop_loss_percent"` // positive magnitude
	MaxDaysToHold      int     `json:"max_days_to_hold"`
	ExitAtProfitTarget bool    `json:"exit_at_profit_target"`
	ExitAtStopLoss     bool    `json:"exit_at_stop_loss"`
}

// Symbols returns the resolved scan targets: the watchlist when present,
// otherwise the single symbol.
func (a *Automation) Symbols() []string {
	if a.Watchlist == "" {
		if a.Symbol == "" {
			return nil
		}
		return []string{a.Symbol}
	}
	parts := strings.Split(a.Watchlist, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.ToUpper(strings.TrimSpace(p)); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// Position is an open or closed options contract holding. AutomationID is
// nil for manual trades, which are refreshed but never auto-exited.
type Position struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AutomationID *uint `gorm:"index" json:"automation_id"`

	Symbol         string    `gorm:"index;not null" json:"symbol"`
	ContractSymbol string    `gorm:"not null" json:"contract_symbol"` // OCC symbol
	ContractType   string    `gorm:"not null" json:"contract_type"`   // call or put
	Strike         float64   `json:"strike"`
	Quantity       int       `gorm:"not null" json:"quantity"`
	EntryPrice     float64   `gorm:"not null" json:"entry_price"`
	CurrentPrice   float64   `json:"current_price"`
	EntryDate      time.Time `gorm:"not null" json:"entry_date"`
	ExpirationDate time.Time `gorm:"not null" json:"expiration_date"`

	Delta             float64 `json:"delta"`
	Gamma             float64 `json:"gamma"`
	Theta             float64 `json:"theta"`
	Vega              float64 `json:"vega"`
	ImpliedVolatility float64 `json:"implied_volatility"`

	Status      string     `gorm:"index;not null;default:'open'" json:"status"` // open, closed
	OrderID     string     `json:"order_id"`
	ExitPrice   float64    `json:"exit_price"`
	ExitReason  string     `json:"exit_reason"`
	RealizedPnL float64    `gorm:"column:realized_pnl" json:"realized_pnl"`
	ClosedAt    *time.Time `json:"closed_at"`
}

// UnrealizedPnL is quoted per contract; the options multiplier is 100 shares.
func (p *Position) UnrealizedPnL() float64 {
	return (p.CurrentPrice - p.EntryPrice) * float64(p.Quantity) * 100
}

func (p *Position) UnrealizedPnLPct() float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
}

// TradeLog is the audit record written once per execution.
type TradeLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	PositionID     uint    `gorm:"index" json:"position_id"`
	AutomationID   *uint   `json:"automation_id"`
	Symbol         string  `gorm:"index;not null" json:"symbol"`
	ContractSymbol string  `json:"contract_symbol"`
	Side           string  `gorm:"not null" json:"side"` // BUY or SELL
	Price          float64 `gorm:"not null" json:"price"`
	Quantity       int     `gorm:"not null" json:"quantity"`
	OrderID        string  `json:"order_id"`
	Reason         string  `json:"reason"`
	PnL            float64 `gorm:"column:pnl" json:"pnl"`
}

// CycleLog records one engine pass, scheduled or operator-triggered.
type CycleLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Trigger            string `gorm:"not null" json:"trigger"` // schedule or manual
	Session            string `json:"session"`
	PositionsMonitored int    `json:"positions_monitored"`
	AutomationsScanned int    `json:"automations_scanned"`
	ExitProposals      int    `json:"exit_proposals"`
	EntryProposals     int    `json:"entry_proposals"`
	Executed           int    `json:"executed"`
	Rejected           int    `json:"rejected"`
	DurationMs         int64  `json:"duration_ms"`
	Error              string `json:"error"`
}

// Account holds the single cash balance row the risk gate draws against.
type Account struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Cash float64 `gorm:"not null" json:"cash"`
}
