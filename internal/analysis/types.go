package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Direction is the trend classification for a symbol. A closed set so the
// bullish-only entry gate is checkable at compile time.
type Direction int

const (
	Neutral Direction = iota
	Bullish
	Bearish
)

func (d Direction) String() string {
	switch d {
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	default:
		return "neutral"
	}
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bullish", "buy":
		*d = Bullish
	case "bearish", "sell":
		*d = Bearish
	case "neutral", "hold", "":
		*d = Neutral
	default:
		return fmt.Errorf("unknown signal direction %q", s)
	}
	return nil
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Snapshot is the price summary fed to the analysis provider.
type Snapshot struct {
	Symbol           string
	LastPrice        float64
	ChangePct        float64 // regular market change, percent
	DayHigh          float64
	DayLow           float64
	FiftyDayAvg      float64
	TwoHundredDayAvg float64
	Volume           int64
}

// Result is an ephemeral evaluation for one symbol, valid for the cycle that
// produced it.
type Result struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"signal"`
	Confidence float64   `json:"confidence"` // 0.0-1.0
	Reasoning  string    `json:"reasoning"`
}
