package analysis

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an experienced equities technical analyst.
Given a price summary for one symbol, classify the short-term trend and give a
confidence score. The horizon is a few days to a few weeks.

Rules:
1. Weigh price vs the 50-day and 200-day averages, the day's range, and volume.
2. signal must be exactly one of: "bullish", "neutral", "bearish".
3. confidence is a number from 0.0 to 1.0, how sure you are of the signal.
4. Keep reasoning to one or two sentences.

Respond strictly in JSON:
{
  "symbol": "AAPL",
  "signal": "bullish",
  "confidence": 0.72,
  "reasoning": "Price above both moving averages with rising volume."
}`

func BuildUserPrompt(snap *Snapshot) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## %s\n", snap.Symbol))
	sb.WriteString(fmt.Sprintf("Last price: %.2f (%+.2f%% today)\n", snap.LastPrice, snap.ChangePct))
	sb.WriteString(fmt.Sprintf("Day range: %.2f - %.2f\n", snap.DayLow, snap.DayHigh))
	sb.WriteString(fmt.Sprintf("50-day average: %.2f\n", snap.FiftyDayAvg))
	sb.WriteString(fmt.Sprintf("200-day average: %.2f\n", snap.TwoHundredDayAvg))
	sb.WriteString(fmt.Sprintf("Volume: %d\n", snap.Volume))
	sb.WriteString("\nClassify the trend and respond in JSON.")

	return sb.String()
}
