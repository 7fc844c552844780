package binance

import (
	"math/rand"
	"strings"

	"pricewatch/internal/logger"
)

// MarketType decides which kline path an endpoint serves.
type MarketType int

const (
	MarketSpot MarketType = iota
	MarketFutures
)

func (m MarketType) String() string {
	switch m {
	case MarketSpot:
		return "spot"
	case MarketFutures:
		return "futures"
	default:
		return "unknown"
	}
}

// Endpoint is one candidate base address. Spot and futures hosts expose the
// same kline shape under different paths.
type Endpoint struct {
	BaseURL string
	Market  MarketType
}

func (e Endpoint) KlinePath() string {
	if e.Market == MarketFutures {
		return "/fapi/v1/klines"
	}
	return "/api/v3/klines"
}

func (e Endpoint) Host() string {
	host := strings.TrimPrefix(e.BaseURL, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimSuffix(host, "/")
}

// DefaultEndpoints covers the primary spot API, its numbered mirrors, the
// futures API and the regional market-data mirror. Some of these are
// geo-blocked or rate-limited independently of the others, which is the whole
// point of keeping more than one.
var DefaultEndpoints = []Endpoint{
	{BaseURL: "https://api.binance.com", Market: MarketSpot},
	{BaseURL: "https://api1.binance.com", Market: MarketSpot},
	{BaseURL: "https://api2.binance.com", Market: MarketSpot},
	{BaseURL: "https://api3.binance.com", Market: MarketSpot},
	{BaseURL: "https://api4.binance.com", Market: MarketSpot},
	{BaseURL: "https://data-api.binance.vision", Market: MarketSpot},
	{BaseURL: "https://fapi.binance.com", Market: MarketFutures},
}

// endpointPool tracks which addresses were already tried in the current
// rotation cycle. Selection among untried addresses is randomized via the
// injected rand source so rotation order is reproducible under test and not
// trivially blacklistable in production.
type endpointPool struct {
	endpoints []Endpoint
	tried     map[int]bool
	current   int
	rng       *rand.Rand
}

func newEndpointPool(endpoints []Endpoint, rng *rand.Rand) *endpointPool {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	p := &endpointPool{
		endpoints: endpoints,
		tried:     make(map[int]bool),
		rng:       rng,
	}
	p.current = p.rng.Intn(len(p.endpoints))
	p.tried[p.current] = true
	return p
}

func (p *endpointPool) Current() Endpoint {
	return p.endpoints[p.current]
}

// Rotate picks a random address not yet tried in this cycle and marks it
// tried. When the cycle is exhausted the tried set is cleared first, so every
// address gets attempted at least once before any repeats.
func (p *endpointPool) Rotate() Endpoint {
	untried := p.untriedIndexes()
	if len(untried) == 0 {
		p.tried = make(map[int]bool)
		untried = p.untriedIndexes()
	}
	p.current = untried[p.rng.Intn(len(untried))]
	p.tried[p.current] = true
	ep := p.endpoints[p.current]
	logger.Infof("[binance] rotated endpoint -> %s (%s)", ep.Host(), ep.Market)
	return ep
}

func (p *endpointPool) untriedIndexes() []int {
	out := make([]int, 0, len(p.endpoints))
	for i := range p.endpoints {
		if !p.tried[i] {
			out = append(out, i)
		}
	}
	return out
}
