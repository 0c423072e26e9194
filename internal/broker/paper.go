package broker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/advisorloop/autoengine/internal/config"
	"github.com/advisorloop/autoengine/internal/logger"
	"github.com/advisorloop/autoengine/internal/marketdata"
)

// QuoteProvider supplies marks for paper fills on the sell side.
type QuoteProvider interface {
	ContractQuote(ctx context.Context, symbol string) (*marketdata.ContractQuote, error)
}

// PaperClient simulates fills at mid price with fixed slippage. The demo
// trading mode of the dashboard.
type PaperClient struct {
	quotes      QuoteProvider
	slippageBps float64
	logger      *logger.Logger
}

func NewPaperClient(quotes QuoteProvider, cfg *config.Config, log *logger.Logger) *PaperClient {
	return &PaperClient{
		quotes:      quotes,
		slippageBps: cfg.Execution.SlippageBps,
		logger:      log,
	}
}

func (p *PaperClient) Buy(ctx context.Context, contract marketdata.Contract, quantity int) (*Fill, error) {
	mid := contract.Mid()
	if mid <= 0 {
		return nil, fmt.Errorf("paper buy %s: no usable mid price", contract.Symbol)
	}

	price := mid * (1 + p.slippageBps/10000)
	fill := &Fill{
		OrderID:  uuid.NewString(),
		Price:    price,
		Quantity: quantity,
	}

	p.logger.Info("paper buy filled",
		"contract", contract.Symbol, "quantity", quantity, "price", price)
	return fill, nil
}

func (p *PaperClient) Sell(ctx context.Context, contractSymbol string, quantity int) (*Fill, error) {
	q, err := p.quotes.ContractQuote(ctx, contractSymbol)
	if err != nil {
		return nil, fmt.Errorf("paper sell %s: %w", contractSymbol, err)
	}

	mid := q.Mid()
	if mid <= 0 {
		mid = q.Last
	}
	if mid <= 0 {
		return nil, fmt.Errorf("paper sell %s: no usable mark", contractSymbol)
	}

	price := mid * (1 - p.slippageBps/10000)
	fill := &Fill{
		OrderID:  uuid.NewString(),
		Price:    price,
		Quantity: quantity,
	}

	p.logger.Info("paper sell filled",
		"contract", contractSymbol, "quantity", quantity, "price", price)
	return fill, nil
}
