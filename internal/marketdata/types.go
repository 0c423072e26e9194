package marketdata

import "time"

// Contract types
const (
	Call = "call"
	Put  = "put"
)

// ContractQuote is a live quote with Greeks for a single options contract.
type ContractQuote struct {
	Symbol            string  `json:"symbol"`
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	Last              float64 `json:"last"`
	Volume            int64   `json:"volume"`
	OpenInterest      int64   `json:"open_interest"`
	Delta             float64 `json:"delta"`
	Gamma             float64 `json:"gamma"`
	Theta             float64 `json:"theta"`
	Vega              float64 `json:"vega"`
	ImpliedVolatility float64 `json:"implied_volatility"`
}

func (q *ContractQuote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Contract is one entry of an options chain.
type Contract struct {
	Symbol            string    `json:"symbol"` // OCC symbol
	Underlying        string    `json:"underlying"`
	ContractType      string    `json:"contract_type"` // call or put
	Strike            float64   `json:"strike"`
	Expiration        time.Time `json:"expiration"`
	Bid               float64   `json:"bid"`
	Ask               float64   `json:"ask"`
	Volume            int64     `json:"volume"`
	OpenInterest      int64     `json:"open_interest"`
	Delta             float64   `json:"delta"`
	Gamma             float64   `json:"gamma"`
	Theta             float64   `json:"theta"`
	Vega              float64   `json:"vega"`
	ImpliedVolatility float64   `json:"implied_volatility"`
}

func (c Contract) Mid() float64 {
	return (c.Bid + c.Ask) / 2
}

// SpreadPct is the bid/ask spread as a percentage of the mid price.
func (c Contract) SpreadPct() float64 {
	mid := c.Mid()
	if mid == 0 {
		return 0
	}
	return (c.Ask - c.Bid) / mid * 100
}

// DTE is whole calendar days until expiration, floored at zero.
func (c Contract) DTE(now time.Time) int {
	d := int(c.Expiration.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// Chain is the filterable contract list for one underlying.
type Chain struct {
	Underlying      string     `json:"underlying"`
	UnderlyingPrice float64    `json:"underlying_price"`
	FetchedAt       time.Time  `json:"fetched_at"`
	Calls           []Contract `json:"calls"`
	Puts            []Contract `json:"puts"`
}
