package zone

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Type selects which side of the market a zone belongs to.
type Type string

const (
	Support    Type = "support"
	Resistance Type = "resistance"
)

// Zone is one price band pulled out of analysis text.
type Zone struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

const maxZones = 5

var (
	supportRangeRes = []*regexp.Regexp{
		regexp.MustCompile(`[Ss]upport zones?:\s*([0-9][0-9,.]*)\s*-\s*([0-9][0-9,.]*)`),
		regexp.MustCompile(`[Ss]upport[^0-9\n]*?([0-9][0-9,.]*)\s*-\s*([0-9][0-9,.]*)`),
	}
	resistanceRangeRes = []*regexp.Regexp{
		regexp.MustCompile(`[Rr]esistance zones?:\s*([0-9][0-9,.]*)\s*-\s*([0-9][0-9,.]*)`),
		regexp.MustCompile(`[Rr]esistance[^0-9\n]*?([0-9][0-9,.]*)\s*-\s*([0-9][0-9,.]*)`),
	}
	supportValueRe    = regexp.MustCompile(`[Ss]upport[^0-9\n]*?([0-9][0-9,.]*)`)
	resistanceValueRe = regexp.MustCompile(`[Rr]esistance[^0-9\n]*?([0-9][0-9,.]*)`)

	// ±0.5% band synthesized around a bare level.
	singleValueMargin = decimal.NewFromFloat(0.005)
)

// Extract pulls support or resistance bands out of free-form analysis text.
// Explicit "low-high" ranges win; bare levels fall back to a ±0.5% band.
// At most five zones come back, in order of appearance.
func Extract(analysis string, zoneType Type) []Zone {
	rangeRes := supportRangeRes
	valueRe := supportValueRe
	if zoneType == Resistance {
		rangeRes = resistanceRangeRes
		valueRe = resistanceValueRe
	}

	var zones []Zone
	for _, re := range rangeRes {
		for _, m := range re.FindAllStringSubmatch(analysis, -1) {
			low, okLow := parsePrice(m[1])
			high, okHigh := parsePrice(m[2])
			if !okLow || !okHigh {
				continue
			}
			if low.GreaterThan(high) {
				low, high = high, low
			}
			zones = appendZone(zones, low, high)
		}
		if len(zones) > 0 {
			break
		}
	}

	if len(zones) == 0 {
		for _, m := range valueRe.FindAllStringSubmatch(analysis, -1) {
			v, ok := parsePrice(m[1])
			if !ok {
				continue
			}
			margin := v.Mul(singleValueMargin)
			zones = appendZone(zones, v.Sub(margin), v.Add(margin))
		}
	}

	if len(zones) > maxZones {
		zones = zones[:maxZones]
	}
	return zones
}

func appendZone(zones []Zone, low, high decimal.Decimal) []Zone {
	z := Zone{Low: low.InexactFloat64(), High: high.InexactFloat64()}
	for _, existing := range zones {
		if existing == z {
			return zones
		}
	}
	return append(zones, z)
}

// parsePrice accepts "37,250.50" and comma-decimal "37250,50".
func parsePrice(raw string) (decimal.Decimal, bool) {
	raw = strings.Trim(raw, ",.")
	if strings.Contains(raw, ".") {
		raw = strings.ReplaceAll(raw, ",", "")
	} else {
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() || d.IsZero() {
		return decimal.Zero, false
	}
	return d, true
}
