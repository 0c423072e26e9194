package broker

import (
	"context"

	"github.com/advisorloop/autoengine/internal/marketdata"
)

// Fill is the result of a committed order.
type Fill struct {
	OrderID  string  `json:"order_id"`
	Price    float64 `json:"fill_price"` // per contract, quoted per share
	Quantity int     `json:"quantity"`
}

// ExecutionClient commits BUY and SELL orders against the execution service.
type ExecutionClient interface {
	// Buy opens quantity contracts of the given chain entry and returns the fill.
	Buy(ctx context.Context, contract marketdata.Contract, quantity int) (*Fill, error)
	// Sell closes quantity contracts of an open position by OCC symbol.
	Sell(ctx context.Context, contractSymbol string, quantity int) (*Fill, error)
}
