package marketdata

import (
	"context"
	"fmt"

	"github.com/piquette/finance-go/quote"

	"github.com/advisorloop/autoengine/internal/analysis"
	"github.com/advisorloop/autoengine/internal/logger"
)

// YahooSource provides underlying price summaries via Yahoo Finance. Used to
// build the snapshot the analysis provider classifies.
type YahooSource struct {
	logger *logger.Logger
}

func NewYahooSource(log *logger.Logger) *YahooSource {
	return &YahooSource{logger: log}
}

func (y *YahooSource) Snapshot(ctx context.Context, symbol string) (*analysis.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q, err := quote.Get(symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch underlying quote %s: %w", symbol, err)
	}
	if q == nil {
		return nil, fmt.Errorf("no quote data for %s", symbol)
	}

	return &analysis.Snapshot{
		Symbol:           symbol,
		LastPrice:        q.RegularMarketPrice,
		ChangePct:        q.RegularMarketChangePercent,
		DayHigh:          q.RegularMarketDayHigh,
		DayLow:           q.RegularMarketDayLow,
		FiftyDayAvg:      q.FiftyDayAverage,
		TwoHundredDayAvg: q.TwoHundredDayAverage,
		Volume:           int64(q.RegularMarketVolume),
	}, nil
}
