package market

import "sort"

type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// SortDedup orders candles by open time and drops duplicate open times,
// keeping the later occurrence. Stitched ranges built from overlapping
// provider chunks go through this before anything downstream sees them.
func SortDedup(candles []Candle) []Candle {
	if len(candles) == 0 {
		return candles
	}
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].OpenTime < candles[j].OpenTime
	})
	out := candles[:0]
	for _, c := range candles {
		n := len(out)
		if n > 0 && out[n-1].OpenTime == c.OpenTime {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

// LastOpenTime returns the open time of the newest candle, 0 when empty.
func LastOpenTime(candles []Candle) int64 {
	if len(candles) == 0 {
		return 0
	}
	return candles[len(candles)-1].OpenTime
}
