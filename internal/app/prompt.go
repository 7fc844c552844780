package app

import (
	"fmt"
	"strings"
	"time"

	"pricewatch/internal/analysis/pattern"
	"pricewatch/internal/market"
)

// tailCandleCount controls how many recent candles each timeframe section
// quotes verbatim; wider frames get fewer.
func tailCandleCount(interval string) int {
	switch interval {
	case "1w", "1d":
		return 5
	case "4h":
		return 7
	case "30m":
		return 10
	default:
		return 15
	}
}

// timeframeSection renders one interval's context block: data range, a tail
// of raw candles and the most recent detected patterns.
func timeframeSection(interval string, candles []market.Candle, res pattern.Result) string {
	if len(candles) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Timeframe: %s\n", interval)
	fmt.Fprintf(&b, "Data range: %s to %s\n",
		time.UnixMilli(candles[0].OpenTime).UTC().Format("2006-01-02 15:04"),
		time.UnixMilli(candles[len(candles)-1].OpenTime).UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Candle count: %d\n", len(candles))

	n := tailCandleCount(interval)
	if n > len(candles) {
		n = len(candles)
	}
	fmt.Fprintf(&b, "Last %d candles:\n", n)
	b.WriteString("| time | open | high | low | close | volume |\n")
	b.WriteString("|------|------|------|-----|-------|--------|\n")
	for _, c := range candles[len(candles)-n:] {
		fmt.Fprintf(&b, "| %s | %g | %g | %g | %g | %g |\n",
			time.UnixMilli(c.OpenTime).UTC().Format("01-02 15:04"),
			c.Open, c.High, c.Low, c.Close, c.Volume)
	}

	if len(res.Patterns) > 0 {
		b.WriteString("Recent patterns:\n")
		recent := res.Patterns
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		for _, p := range recent {
			fmt.Fprintf(&b, "- %s at %.2f-%.2f (%s)\n",
				p.Kind, p.Low, p.High, time.UnixMilli(p.OpenTime).UTC().Format("01-02 15:04"))
		}
	}
	fmt.Fprintf(&b, "Trend: %s\n\n", res.TrendSummary)
	return b.String()
}

const tradeSetupFormat = `If [condition], then:
Position: [LONG/SHORT]
Entry: [exact price level]
SL: [exact price level]
TP1: [exact price level] (50%)
TP2: [exact price level] (50%)
RRR: [exact risk/reward ratio, e.g. 2.5:1]
Validity: [specific time window]`

const promptFooter = `- Only list trade opportunities with RRR 2:1 or better
- Give 1-2 clear opportunities in this format:

` + tradeSetupFormat + `

- If one side (LONG/SHORT) is clearly less likely in this market context, list only the likelier one
- Do NOT add any closing summary or disclaimers

Format:
- Short, scannable bullet points
- Concrete information only, no vague language
- No warnings or AI phrases (e.g. avoid "always verify current market conditions")`

// singlePrompt covers one symbol on one timeframe.
func singlePrompt(symbol, interval string, candles []market.Candle, res pattern.Result, now time.Time) string {
	return fmt.Sprintf(`You are a professional trader specializing in pure price action. Analyze the following data:

Symbol: %s
%s
Write the analysis focusing on:
1. Trend context and market structure (3-4 points)
2. Key price zones:
   - Support zones (define as price ranges, e.g. 86000-86200)
   - Resistance zones (define as price ranges, e.g. 89400-89600)
3. Price/volume relationship

4. CONCRETE TRADE OPPORTUNITIES:
%s
- Timestamp: %s UTC`,
		strings.ToUpper(symbol),
		timeframeSection(interval, candles, res),
		promptFooter,
		now.UTC().Format("2006-01-02 15:04"))
}

// swingPrompt covers the full multi-timeframe view, weekly first.
func swingPrompt(symbol string, intervals []string, candles map[string][]market.Candle, results map[string]pattern.Result, now time.Time) string {
	var sections strings.Builder
	for _, iv := range intervals {
		sections.WriteString(timeframeSection(iv, candles[iv], results[iv]))
	}
	return fmt.Sprintf(`You are a senior trader specializing in longer-horizon strategies. Analyze the data with emphasis on the higher timeframes.

Symbol: %s
# DATA BY TIMEFRAME
%s
## 1. LONG-TERM TREND (1W/1D)
- Main support zones (at least 3 significant zones defined as price ranges, e.g. 86000-86200)
- Main resistance zones (at least 3 significant zones defined as price ranges, e.g. 89400-89600)
- Market phase (accumulation/distribution, trending/impulsive moves)
- Key weekly/daily closes

## 2. MEDIUM-TERM CONTEXT (4H)
- Position within the higher trend
- Significant imbalance zones
- Volume clusters

## 3. CONCRETE TRADE OPPORTUNITIES
%s
- Timestamp: %s UTC`,
		strings.ToUpper(symbol),
		sections.String(),
		promptFooter,
		now.UTC().Format("2006-01-02 15:04"))
}

// intradayPrompt keeps the focus on today's session.
func intradayPrompt(symbol string, intervals []string, candles map[string][]market.Candle, results map[string]pattern.Result, now time.Time) string {
	var sections strings.Builder
	for _, iv := range intervals {
		sections.WriteString(timeframeSection(iv, candles[iv], results[iv]))
	}
	sessionEnd := time.Date(now.Year(), now.Month(), now.Day(), 22, 0, 0, 0, now.Location())
	return fmt.Sprintf(`You are a professional day trader. Produce a concise intraday analysis for today's session.

Symbol: %s
# KEY LEVELS
%s
## 4H CONTEXT
- Trend direction
- Most important support zones (define as price ranges, e.g. 86000-86200)
- Most important resistance zones (define as price ranges, e.g. 89400-89600)

## 30M SETUPS
- Key zones for today:
  - Support zones: define 2-3 key zones with ranges
  - Resistance zones: define 2-3 key zones with ranges
- Likely direction of the move
- Ideal entry zones

## CONCRETE TRADE OPPORTUNITIES
%s
- Session window: %s-%s`,
		strings.ToUpper(symbol),
		sections.String(),
		promptFooter,
		now.Format("15:04"),
		sessionEnd.Format("15:04"))
}
