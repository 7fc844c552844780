package binance

import (
	"strings"
	"time"
)

const maxKlineLimit = 1000

// Config carries every tunable of the range fetcher. Zero values are filled
// by withDefaults; the retry thresholds are deliberately configurable rather
// than load-bearing constants.
type Config struct {
	Endpoints []Endpoint
	ProxyURL  string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// ChunkSpan is the planned window width. Smaller windows mean more
	// requests but less data lost per failed chunk.
	ChunkSpan time.Duration
	// Limit is the per-request row cap; the provider rejects more than 1000.
	Limit int

	// WindowRetryBudget bounds same-endpoint retries within one window before
	// the window is skipped.
	WindowRetryBudget int
	// ConsecutiveErrorLimit forces an endpoint rotation after this many
	// uninterrupted failures, whatever the classifier said.
	ConsecutiveErrorLimit int
	// TotalRetryLimit is the hard ceiling on failed attempts across the whole
	// range fetch.
	TotalRetryLimit int

	MinBackoff time.Duration
	MaxBackoff time.Duration

	// RotateSettle is the short pause after switching endpoints.
	RotateSettle time.Duration
	// CourtesyDelay is the base inter-window pause on the success path; up to
	// the same amount of random jitter is added.
	CourtesyDelay time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	out.ProxyURL = strings.TrimSpace(out.ProxyURL)
	if len(out.Endpoints) == 0 {
		out.Endpoints = DefaultEndpoints
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = 10 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 30 * time.Second
	}
	if out.ChunkSpan <= 0 {
		out.ChunkSpan = 6 * time.Hour
	}
	if out.Limit <= 0 || out.Limit > maxKlineLimit {
		out.Limit = maxKlineLimit
	}
	if out.WindowRetryBudget <= 0 {
		out.WindowRetryBudget = 3
	}
	if out.ConsecutiveErrorLimit <= 0 {
		out.ConsecutiveErrorLimit = 5
	}
	if out.TotalRetryLimit <= 0 {
		out.TotalRetryLimit = 20
	}
	if out.MinBackoff <= 0 {
		out.MinBackoff = time.Second
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = 30 * time.Second
	}
	if out.RotateSettle <= 0 {
		out.RotateSettle = 2 * time.Second
	}
	if out.CourtesyDelay <= 0 {
		out.CourtesyDelay = 500 * time.Millisecond
	}
	return out
}
