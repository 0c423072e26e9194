package marketdata

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/advisorloop/autoengine/internal/config"
	"github.com/advisorloop/autoengine/internal/logger"
)

// Client talks to the options market-data service (quotes with Greeks,
// chains). The service itself is an external collaborator.
type Client struct {
	client *resty.Client
	logger *logger.Logger
}

func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.MarketData.BaseURL).
		SetTimeout(cfg.MarketDataTimeout())
	if cfg.MarketData.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.MarketData.APIKey)
	}

	return &Client{client: client, logger: log}
}

// ContractQuote fetches the current price and Greeks for one OCC symbol.
func (c *Client) ContractQuote(ctx context.Context, symbol string) (*ContractQuote, error) {
	var q ContractQuote
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&q).
		Get("/v1/options/quote")
	if err != nil {
		return nil, fmt.Errorf("fetch contract quote %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("contract quote %s: status %d", symbol, resp.StatusCode())
	}
	return &q, nil
}

// Chain fetches the options chain for an underlying symbol.
func (c *Client) Chain(ctx context.Context, underlying string) (*Chain, error) {
	var chain Chain
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", underlying).
		SetResult(&chain).
		Get("/v1/options/chain")
	if err != nil {
		return nil, fmt.Errorf("fetch chain %s: %w", underlying, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("chain %s: status %d", underlying, resp.StatusCode())
	}
	return &chain, nil
}
