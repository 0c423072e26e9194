package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContractMidAndSpread(t *testing.T) {
	c := Contract{Bid: 5.00, Ask: 5.20}
	require.InDelta(t, 5.10, c.Mid(), 0.0001)
	require.InDelta(t, 0.20/5.10*100, c.SpreadPct(), 0.0001)

	// Zero mid must not divide by zero.
	require.Equal(t, 0.0, Contract{}.SpreadPct())
}

func TestContractDTE(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	c := Contract{Expiration: now.Add(30 * 24 * time.Hour)}
	require.Equal(t, 30, c.DTE(now))

	// Partial days truncate toward zero.
	c = Contract{Expiration: now.Add(36 * time.Hour)}
	require.Equal(t, 1, c.DTE(now))

	// Expired contracts floor at zero.
	c = Contract{Expiration: now.Add(-48 * time.Hour)}
	require.Equal(t, 0, c.DTE(now))
}

func TestContractQuoteMid(t *testing.T) {
	q := &ContractQuote{Bid: 12.40, Ask: 12.60}
	require.InDelta(t, 12.50, q.Mid(), 0.0001)
}
