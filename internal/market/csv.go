package market

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// CSVOptions controls metadata and price precision of the exported file.
type CSVOptions struct {
	Location       *time.Location
	PricePrecision int
}

const (
	// PrecisionAuto picks a precision from the candle price range.
	PrecisionAuto = math.MinInt32
	// PrecisionRaw keeps the raw float formatting (strconv -1).
	PrecisionRaw = -1
)

// BuildCandleCSV renders candles as CSV with a metadata comment line and
// a header row.
func BuildCandleCSV(symbol, interval string, candles []Candle, opts CSVOptions) string {
	if len(candles) == 0 {
		return ""
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	precision := opts.PricePrecision
	if precision == PrecisionAuto {
		precision = autoPrecision(candles)
	}
	var b strings.Builder
	meta := []string{
		fmt.Sprintf("Symbol=%s", strings.ToUpper(strings.TrimSpace(symbol))),
		fmt.Sprintf("Interval=%s", strings.ToUpper(strings.TrimSpace(interval))),
		fmt.Sprintf("Start=%s", time.UnixMilli(candles[0].OpenTime).In(loc).Format(time.RFC3339)),
		"Order=OLDEST->NEWEST",
	}
	b.WriteString("# " + strings.Join(meta, " ") + "\n")
	b.WriteString("OpenTime,O,H,L,C,V\n")
	for _, c := range candles {
		b.WriteString(time.UnixMilli(c.OpenTime).In(loc).Format("2006-01-02 15:04"))
		b.WriteByte(',')
		b.WriteString(formatPrice(c.Open, precision))
		b.WriteByte(',')
		b.WriteString(formatPrice(c.High, precision))
		b.WriteByte(',')
		b.WriteString(formatPrice(c.Low, precision))
		b.WriteByte(',')
		b.WriteString(formatPrice(c.Close, precision))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(c.Volume, 'f', -1, 64))
		b.WriteByte('\n')
	}
	return b.String()
}

// SaveCSV writes candles to PA_{symbol}_{interval}_{timestamp}.csv under dir
// and returns the file path.
func SaveCSV(dir, symbol, interval string, candles []Candle) (string, error) {
	if len(candles) == 0 {
		return "", fmt.Errorf("no candles to save for %s %s", symbol, interval)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("PA_%s_%s_%s.csv",
		strings.ToUpper(strings.TrimSpace(symbol)),
		strings.ToLower(strings.TrimSpace(interval)),
		time.Now().Format("20060102_1504"))
	path := filepath.Join(dir, name)
	data := BuildCandleCSV(symbol, interval, candles, CSVOptions{PricePrecision: PrecisionAuto})
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func autoPrecision(candles []Candle) int {
	maxVal := 0.0
	for _, c := range candles {
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
			abs := math.Abs(v)
			if abs > maxVal {
				maxVal = abs
			}
		}
	}
	switch {
	case maxVal >= 1000:
		return 1
	case maxVal >= 100:
		return 2
	default:
		return PrecisionRaw
	}
}

func formatPrice(value float64, precision int) string {
	if precision == PrecisionRaw {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	s := strconv.FormatFloat(value, 'f', precision, 64)
	if precision > 0 {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
