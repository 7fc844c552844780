package chart

import (
	"strings"
	"testing"

	"pricewatch/internal/analysis/zone"
	"pricewatch/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		p := 100 + float64(i)*0.5
		out[i] = market.Candle{
			OpenTime: int64(i) * 3_600_000,
			Open:     p, High: p + 1, Low: p - 1, Close: p + 0.3, Volume: 10,
		}
	}
	return out
}

func TestBuildPageHTMLEmbedsZonesAndSeries(t *testing.T) {
	in := Input{
		Symbol:     "btcusdt",
		Interval:   "4h",
		Candles:    testCandles(60),
		Support:    []zone.Zone{{Low: 98, High: 100}},
		Resistance: []zone.Zone{{Low: 130, High: 132}, {Low: 135, High: 136}},
	}
	html, err := buildPageHTML(in)
	require.NoError(t, err)

	s := string(html)
	assert.Contains(t, s, "BTCUSDT 4h")
	assert.Contains(t, s, "1 support zones | 2 resistance zones")
	assert.Contains(t, s, "EMA20")
	assert.Contains(t, s, "EMA50")
	assert.Contains(t, s, "markArea")
	assert.Contains(t, s, "Volume 4h")
}

func TestBuildEMALineSkipsShortSeries(t *testing.T) {
	assert.Nil(t, buildEMALine(testCandles(10), buildXAxis(testCandles(10))))
	assert.NotNil(t, buildEMALine(testCandles(30), buildXAxis(testCandles(30))))
}

func TestToLineDataNullsWarmup(t *testing.T) {
	series := []float64{0, 0, 3.14159, 4.2}
	data := toLineData(series, 3)
	require.Len(t, data, 4)
	assert.Nil(t, data[0].Value)
	assert.Nil(t, data[1].Value)
	assert.Equal(t, 3.1416, data[2].Value)
}

func TestPriceBounds(t *testing.T) {
	lo, hi := priceBounds(testCandles(10))
	assert.Equal(t, 99.0, lo)
	assert.Equal(t, 105.5, hi)

	lo, hi = priceBounds(nil)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}

func TestZoneSubtitleWithoutZones(t *testing.T) {
	assert.Equal(t, "no zones extracted", zoneSubtitle(Input{}))
}

func TestBuildXAxisFormatsOpenTime(t *testing.T) {
	x := buildXAxis(testCandles(2))
	require.Len(t, x, 2)
	assert.True(t, strings.HasPrefix(x[0], "01-01"), x[0])
}
