package pattern

import (
	"fmt"
	"math"
	"strings"

	"pricewatch/internal/market"
)

type Kind string

const (
	BullishGap        Kind = "Bullish Gap"
	BearishGap        Kind = "Bearish Gap"
	BullishZone       Kind = "Bullish Zone"
	BearishZone       Kind = "Bearish Zone"
	FalseHighBreakout Kind = "False High Breakout"
	FalseLowBreakout  Kind = "False Low Breakout"
)

// Pattern is one detected price-action event. Low and High bound the price
// area the event covers; for breakouts Low carries the swept level and High
// the extreme of the sweeping candle.
type Pattern struct {
	Kind     Kind    `json:"kind"`
	OpenTime int64   `json:"open_time"`
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
}

type Result struct {
	PatternSummary string    `json:"pattern_summary"`
	TrendSummary   string    `json:"trend_summary"`
	Bias           string    `json:"bias"`
	Patterns       []Pattern `json:"patterns"`
}

// Analyze scans a candle series for fair value gaps, order blocks and
// liquidity sweeps, and fits a regression line for the trend read.
func Analyze(candles []market.Candle) Result {
	if len(candles) == 0 {
		return Result{PatternSummary: "no candle data available", TrendSummary: "no trend"}
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	slope, intercept := fitLine(closes)

	patterns := detectGaps(candles)
	patterns = append(patterns, detectOrderBlocks(candles)...)
	patterns = append(patterns, detectSweeps(candles)...)

	return Result{
		PatternSummary: summarize(patterns),
		TrendSummary:   describeTrend(slope, intercept, closes),
		Bias:           classifySlope(slope),
		Patterns:       patterns,
	}
}

// detectGaps finds three-candle fair value gaps: a bullish gap when the
// middle candle's low clears the previous high and the next low clears the
// middle high, mirrored for bearish.
func detectGaps(candles []market.Candle) []Pattern {
	var out []Pattern
	for i := 1; i < len(candles)-1; i++ {
		prev, cur, next := candles[i-1], candles[i], candles[i+1]
		if cur.Low > prev.High && next.Low > cur.High {
			out = append(out, Pattern{Kind: BullishGap, OpenTime: cur.OpenTime, Low: cur.Low, High: cur.High})
		}
		if cur.High < prev.Low && next.High < cur.Low {
			out = append(out, Pattern{Kind: BearishGap, OpenTime: cur.OpenTime, Low: cur.High, High: cur.Low})
		}
	}
	return out
}

// detectOrderBlocks marks candles whose body fills more than 70% of the range.
func detectOrderBlocks(candles []market.Candle) []Pattern {
	var out []Pattern
	for _, c := range candles {
		body := math.Abs(c.Close - c.Open)
		total := c.High - c.Low
		if total <= 0 || body/total <= 0.7 {
			continue
		}
		kind := BearishZone
		if c.Close > c.Open {
			kind = BullishZone
		}
		out = append(out, Pattern{Kind: kind, OpenTime: c.OpenTime, Low: c.Low, High: c.High})
	}
	return out
}

// detectSweeps flags candles that pierce the recent extreme but close back
// inside it, a failed breakout of the last five candles' high or low.
func detectSweeps(candles []market.Candle) []Pattern {
	const lookback = 5
	var out []Pattern
	for i := lookback; i < len(candles); i++ {
		priorHigh := -math.MaxFloat64
		priorLow := math.MaxFloat64
		for _, c := range candles[i-lookback : i] {
			if c.High > priorHigh {
				priorHigh = c.High
			}
			if c.Low < priorLow {
				priorLow = c.Low
			}
		}
		c := candles[i]
		if c.High > priorHigh && c.Close < priorHigh {
			out = append(out, Pattern{Kind: FalseHighBreakout, OpenTime: c.OpenTime, Low: priorHigh, High: c.High})
		}
		if c.Low < priorLow && c.Close > priorLow {
			out = append(out, Pattern{Kind: FalseLowBreakout, OpenTime: c.OpenTime, Low: priorLow, High: c.Low})
		}
	}
	return out
}

func summarize(patterns []Pattern) string {
	if len(patterns) == 0 {
		return "no significant price action patterns"
	}
	counts := map[Kind]int{}
	order := []Kind{}
	for _, p := range patterns {
		if counts[p.Kind] == 0 {
			order = append(order, p.Kind)
		}
		counts[p.Kind]++
	}
	parts := make([]string, 0, len(order))
	for _, k := range order {
		parts = append(parts, fmt.Sprintf("%s x%d", k, counts[k]))
	}
	return strings.Join(parts, "; ")
}

func fitLine(series []float64) (slope, intercept float64) {
	if len(series) == 0 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	n := float64(len(series))
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, series[len(series)-1]
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return
}

func classifySlope(slope float64) string {
	threshold := 0.0001
	switch {
	case slope > threshold:
		return "bullish"
	case slope < -threshold:
		return "bearish"
	default:
		return "balanced"
	}
}

func describeTrend(slope, intercept float64, closes []float64) string {
	last := closes[len(closes)-1]
	ref := intercept + slope*float64(len(closes)-1)
	angle := math.Atan(slope) * 180 / math.Pi
	if ref == 0 {
		return fmt.Sprintf("regression slope=%.6f (%.2f deg)", slope, angle)
	}
	return fmt.Sprintf("regression slope=%.6f (%.2f deg), close %.2f%% off baseline", slope, angle, (last-ref)/ref*100)
}
