package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/advisorloop/autoengine/internal/config"
	"github.com/advisorloop/autoengine/internal/logger"
	"github.com/advisorloop/autoengine/internal/marketdata"
)

// LiveClient routes orders to the brokerage execution service.
type LiveClient struct {
	client *resty.Client
	logger *logger.Logger
}

func NewLiveClient(cfg *config.Config, log *logger.Logger) *LiveClient {
	client := resty.New().
		SetBaseURL(cfg.Execution.BaseURL).
		SetTimeout(30 * time.Second)
	if cfg.Execution.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.Execution.APIKey)
	}

	return &LiveClient{client: client, logger: log}
}

type orderRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity int    `json:"quantity"`
	Type     string `json:"type"`
}

func (l *LiveClient) placeOrder(ctx context.Context, symbol, side string, quantity int) (*Fill, error) {
	var fill Fill
	resp, err := l.client.R().
		SetContext(ctx).
		SetBody(orderRequest{Symbol: symbol, Side: side, Quantity: quantity, Type: "market"}).
		SetResult(&fill).
		Post("/v1/orders")
	if err != nil {
		return nil, fmt.Errorf("%s order %s: %w", side, symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s order %s: status %d: %s", side, symbol, resp.StatusCode(), resp.String())
	}
	if fill.Price <= 0 {
		return nil, fmt.Errorf("%s order %s: broker returned no fill price", side, symbol)
	}

	l.logger.Info("order filled",
		"contract", symbol, "side", side, "quantity", fill.Quantity, "price", fill.Price)
	return &fill, nil
}

func (l *LiveClient) Buy(ctx context.Context, contract marketdata.Contract, quantity int) (*Fill, error) {
	return l.placeOrder(ctx, contract.Symbol, "buy", quantity)
}

func (l *LiveClient) Sell(ctx context.Context, contractSymbol string, quantity int) (*Fill, error) {
	return l.placeOrder(ctx, contractSymbol, "sell", quantity)
}
