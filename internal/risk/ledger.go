package risk

import "fmt"

// Ledger is the cycle-local cash balance. It is owned by the single
// goroutine walking the proposal list and is not safe for concurrent use.
type Ledger struct {
	cash float64
}

func NewLedger(cash float64) *Ledger {
	return &Ledger{cash: cash}
}

func (l *Ledger) Cash() float64 {
	return l.cash
}

// Debit removes amount from the ledger, failing with ErrInsufficientCash if
// the balance cannot cover it.
func (l *Ledger) Debit(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("debit amount must be non-negative, got %f", amount)
	}
	if amount > l.cash {
		return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCash, amount, l.cash)
	}
	l.cash -= amount
	return nil
}

// Credit returns proceeds to the ledger (exit fills).
func (l *Ledger) Credit(amount float64) {
	l.cash += amount
}

// Settle replaces a reservation made at approval time with the actual fill
// cost. Slippage on the fill may take the balance slightly below the
// reserved figure; that matches what the brokerage account does.
func (l *Ledger) Settle(reserved, actual float64) {
	l.cash += reserved - actual
}
