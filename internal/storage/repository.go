package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Automations

func (r *Repository) SaveAutomation(a *Automation) error {
	return r.db.Create(a).Error
}

func (r *Repository) UpdateAutomation(a *Automation) error {
	return r.db.Save(a).Error
}

func (r *Repository) GetAutomation(id uint) (*Automation, error) {
	var a Automation
	if err := r.db.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) GetAutomations() ([]Automation, error) {
	var automations []Automation
	err := r.db.Order("id").Find(&automations).Error
	return automations, err
}

func (r *Repository) SetAutomationPaused(id uint, paused bool) (*Automation, error) {
	a, err := r.GetAutomation(id)
	if err != nil {
		return nil, err
	}
	a.IsPaused = paused
	if err := r.db.Save(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// Positions

func (r *Repository) SavePosition(p *Position) error {
	return r.db.Create(p).Error
}

func (r *Repository) UpdatePosition(p *Position) error {
	return r.db.Save(p).Error
}

func (r *Repository) GetPosition(id uint) (*Position, error) {
	var p Position
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetOpenPositions() ([]Position, error) {
	var positions []Position
	err := r.db.Where("status = ?", PositionOpen).Order("id").Find(&positions).Error
	return positions, err
}

func (r *Repository) GetRecentPositions(limit int) ([]Position, error) {
	var positions []Position
	err := r.db.Order("created_at DESC").Limit(limit).Find(&positions).Error
	return positions, err
}

func (r *Repository) CountOpenPositions() (int64, error) {
	var n int64
	err := r.db.Model(&Position{}).Where("status = ?", PositionOpen).Count(&n).Error
	return n, err
}

func (r *Repository) CountOpenPositionsBySymbol(symbol string) (int64, error) {
	var n int64
	err := r.db.Model(&Position{}).
		Where("status = ? AND symbol = ?", PositionOpen, symbol).Count(&n).Error
	return n, err
}

func (r *Repository) HasOpenPosition(automationID uint, symbol string) (bool, error) {
	var n int64
	err := r.db.Model(&Position{}).
		Where("status = ? AND automation_id = ? AND symbol = ?", PositionOpen, automationID, symbol).
		Count(&n).Error
	return n > 0, err
}

// Trade logs

func (r *Repository) SaveTradeLog(t *TradeLog) error {
	return r.db.Create(t).Error
}

func (r *Repository) GetRecentTradeLogs(limit int) ([]TradeLog, error) {
	var logs []TradeLog
	err := r.db.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// GetTodayPnL sums realized P/L for positions closed since midnight in the
// given location. Callers pass the market time zone so "today" is the
// trading day, not the UTC day.
func (r *Repository) GetTodayPnL(loc *time.Location) (float64, error) {
	var total float64
	err := r.db.Model(&Position{}).
		Where("status = ? AND closed_at >= ?", PositionClosed, startOfDay(time.Now(), loc)).
		Select("COALESCE(SUM(realized_pnl), 0)").Scan(&total).Error
	return total, err
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func (r *Repository) GetTotalPnL() (float64, error) {
	var total float64
	err := r.db.Model(&Position{}).
		Where("status = ?", PositionClosed).
		Select("COALESCE(SUM(realized_pnl), 0)").Scan(&total).Error
	return total, err
}

// Cycle logs

func (r *Repository) SaveCycleLog(c *CycleLog) error {
	return r.db.Create(c).Error
}

func (r *Repository) GetRecentCycleLogs(limit int) ([]CycleLog, error) {
	var logs []CycleLog
	err := r.db.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// Account

// EnsureAccount creates the single account row with the given starting cash
// if it does not exist yet. Called once at startup.
func (r *Repository) EnsureAccount(startingCash float64) (*Account, error) {
	var account Account
	err := r.db.First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account = Account{Cash: startingCash}
		if err := r.db.Create(&account).Error; err != nil {
			return nil, err
		}
		return &account, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *Repository) GetAccount() (*Account, error) {
	var account Account
	if err := r.db.First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *Repository) SaveAccount(account *Account) error {
	return r.db.Save(account).Error
}
