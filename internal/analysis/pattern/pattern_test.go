package pattern

import (
	"testing"

	"pricewatch/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(n int, price float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{
			OpenTime: int64(i) * 60_000,
			Open:     price, High: price + 1, Low: price - 1, Close: price,
		}
	}
	return out
}

func kinds(patterns []Pattern) []Kind {
	out := make([]Kind, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, p.Kind)
	}
	return out
}

func TestAnalyzeEmptySeries(t *testing.T) {
	res := Analyze(nil)
	assert.Equal(t, "no candle data available", res.PatternSummary)
	assert.Empty(t, res.Patterns)
}

func TestDetectBullishGap(t *testing.T) {
	candles := flat(10, 100)
	// Candle 5 gaps above candle 4's high, candle 6 gaps above candle 5's high.
	candles[5] = market.Candle{OpenTime: 5 * 60_000, Open: 103, High: 105, Low: 102, Close: 105}
	candles[6] = market.Candle{OpenTime: 6 * 60_000, Open: 107, High: 109, Low: 106, Close: 108}
	candles[7] = market.Candle{OpenTime: 7 * 60_000, Open: 108, High: 110, Low: 107, Close: 109}
	candles[8] = market.Candle{OpenTime: 8 * 60_000, Open: 109, High: 111, Low: 108, Close: 110}
	candles[9] = market.Candle{OpenTime: 9 * 60_000, Open: 110, High: 112, Low: 109, Close: 111}

	res := Analyze(candles)
	assert.Contains(t, kinds(res.Patterns), BullishGap)
	for _, p := range res.Patterns {
		if p.Kind == BullishGap {
			assert.Equal(t, int64(5*60_000), p.OpenTime)
			assert.Equal(t, 102.0, p.Low)
			assert.Equal(t, 105.0, p.High)
		}
	}
}

func TestDetectOrderBlockNeedsDominantBody(t *testing.T) {
	strong := market.Candle{Open: 100, Close: 109, High: 110, Low: 99} // body 9 of range 11
	weak := market.Candle{Open: 100, Close: 103, High: 110, Low: 99}  // body 3 of range 11

	got := detectOrderBlocks([]market.Candle{strong, weak})
	require.Len(t, got, 1)
	assert.Equal(t, BullishZone, got[0].Kind)

	bear := market.Candle{Open: 109, Close: 100, High: 110, Low: 99}
	got = detectOrderBlocks([]market.Candle{bear})
	require.Len(t, got, 1)
	assert.Equal(t, BearishZone, got[0].Kind)
}

func TestDetectOrderBlockIgnoresZeroRange(t *testing.T) {
	doji := market.Candle{Open: 100, Close: 100, High: 100, Low: 100}
	assert.Empty(t, detectOrderBlocks([]market.Candle{doji}))
}

func TestDetectFalseHighBreakout(t *testing.T) {
	candles := flat(8, 100)
	// Pierces the prior five-candle high (101) but closes back under it.
	candles[7] = market.Candle{OpenTime: 7 * 60_000, Open: 100, High: 104, Low: 99, Close: 100.5}

	got := detectSweeps(candles)
	require.Len(t, got, 1)
	assert.Equal(t, FalseHighBreakout, got[0].Kind)
	assert.Equal(t, 101.0, got[0].Low, "swept level")
	assert.Equal(t, 104.0, got[0].High, "sweep extreme")
}

func TestDetectFalseLowBreakout(t *testing.T) {
	candles := flat(8, 100)
	candles[7] = market.Candle{OpenTime: 7 * 60_000, Open: 100, High: 101, Low: 96, Close: 99.5}

	got := detectSweeps(candles)
	require.Len(t, got, 1)
	assert.Equal(t, FalseLowBreakout, got[0].Kind)
}

func TestBiasFollowsSlope(t *testing.T) {
	rising := make([]market.Candle, 30)
	for i := range rising {
		p := 100 + float64(i)
		rising[i] = market.Candle{OpenTime: int64(i), Open: p, High: p + 0.1, Low: p - 0.1, Close: p}
	}
	assert.Equal(t, "bullish", Analyze(rising).Bias)

	falling := make([]market.Candle, 30)
	for i := range falling {
		p := 100 - float64(i)
		falling[i] = market.Candle{OpenTime: int64(i), Open: p, High: p + 0.1, Low: p - 0.1, Close: p}
	}
	assert.Equal(t, "bearish", Analyze(falling).Bias)
}

func TestSummaryCountsByKind(t *testing.T) {
	res := Analyze(flat(10, 100))
	assert.Equal(t, "no significant price action patterns", res.PatternSummary)

	summary := summarize([]Pattern{{Kind: BullishZone}, {Kind: BullishZone}, {Kind: BearishGap}})
	assert.Contains(t, summary, "Bullish Zone x2")
	assert.Contains(t, summary, "Bearish Gap x1")
}
