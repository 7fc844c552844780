package binance

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"pricewatch/internal/logger"
	"pricewatch/internal/market"
)

// ErrNoData is the terminal failure of a range fetch that ends with zero
// rows. Callers must not run analysis on an empty result.
var ErrNoData = errors.New("no candles retrieved")

var (
	errSkipWindow   = errors.New("window retry budget exhausted")
	errRetryCeiling = errors.New("total retry ceiling reached")
)

// ProgressFunc receives the cumulative row count after each successfully
// fetched window.
type ProgressFunc func(total int)

type klineClient interface {
	Klines(ctx context.Context, ep Endpoint, symbol, interval string, startMs, endMs int64, limit int) ([]market.Candle, error)
}

// fetchSession holds the counters of one top-level range fetch. Created per
// call, never reused.
type fetchSession struct {
	consecutiveErrors int
	totalRetries      int
}

// Fetcher downloads chronologically ordered candle ranges in bounded chunks,
// rotating endpoints and backing off on failure. One outstanding request at a
// time; all waiting is blocking sleeps on the calling goroutine, so a second
// concurrent caller needs its own Fetcher.
type Fetcher struct {
	cfg     Config
	client  klineClient
	pool    *endpointPool
	backoff backoffPolicy
	rng     *rand.Rand

	sleep    func(ctx context.Context, d time.Duration) bool
	now      func() time.Time
	progress ProgressFunc
}

func New(cfg Config) (*Fetcher, error) {
	final := cfg.withDefaults()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	client, err := newRESTClient(final, rng)
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		cfg:     final,
		client:  client,
		pool:    newEndpointPool(final.Endpoints, rng),
		backoff: newBackoffPolicy(final.MinBackoff, final.MaxBackoff, rng),
		rng:     rng,
		sleep:   sleepWithContext,
		now:     time.Now,
	}, nil
}

// SetProgress installs an optional per-window progress callback.
func (f *Fetcher) SetProgress(fn ProgressFunc) {
	f.progress = fn
}

// FetchRange downloads the last `days` days of candles for symbol/interval
// and returns them ordered by open time with no duplicates.
func (f *Fetcher) FetchRange(ctx context.Context, symbol, interval string, days int) ([]market.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if err := market.ValidateInterval(interval); err != nil {
		return nil, err
	}
	if err := market.ValidateDays(days); err != nil {
		return nil, err
	}
	endMs := f.now().UnixMilli()
	startMs := endMs - int64(days)*24*60*60*1000

	windows := PlanWindows(startMs, endMs, f.cfg.ChunkSpan.Milliseconds())
	logger.Infof("[binance] fetching %s %s: %dd in %d windows via %s",
		symbol, interval, days, len(windows), f.pool.Current().Host())

	sess := &fetchSession{}
	var all []market.Candle
	cursor := startMs
	ceilingHit := false

	for _, win := range windows {
		// Cancellation is checked between chunks only, never mid-request.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cursor >= win.EndMs {
			// An earlier response already ran past this window's boundary.
			continue
		}
		// The effective start is wherever the previous response left off,
		// which may sit before the planned boundary when the provider
		// returned fewer rows than the window asked for.
		rows, err := f.fetchWindow(ctx, sess, symbol, interval, cursor, win.EndMs)
		if err != nil {
			if errors.Is(err, errSkipWindow) {
				logger.Warnf("[binance] %s %s: skipping window [%d,%d) after repeated failures",
					symbol, interval, win.StartMs, win.EndMs)
				cursor = win.EndMs + 1
				continue
			}
			if errors.Is(err, errRetryCeiling) {
				logger.Errorf("[binance] %s %s: retry ceiling (%d) reached, stopping range fetch",
					symbol, interval, f.cfg.TotalRetryLimit)
				ceilingHit = true
				break
			}
			return nil, err
		}
		if len(rows) > 0 {
			all = append(all, rows...)
			// Advance past what the provider actually returned, not the
			// planned boundary; short responses must not be re-requested.
			cursor = rows[len(rows)-1].OpenTime + 1
		} else {
			cursor = win.EndMs + 1
		}
		if f.progress != nil {
			f.progress(len(all))
		}
		if !f.sleep(ctx, f.courtesyDelay()) {
			return nil, ctx.Err()
		}
	}

	all = market.SortDedup(all)
	if len(all) == 0 {
		if ceilingHit {
			return nil, fmt.Errorf("%w after %d retries", ErrNoData, sess.totalRetries)
		}
		return nil, ErrNoData
	}
	logger.Infof("[binance] fetched %d candles for %s %s (retries=%d)",
		len(all), symbol, interval, sess.totalRetries)
	return all, nil
}

// fetchWindow is the per-window retry loop. It returns errSkipWindow when the
// same-endpoint retry budget runs out, errRetryCeiling when the session-wide
// ceiling is reached, or a context error.
func (f *Fetcher) fetchWindow(ctx context.Context, sess *fetchSession, symbol, interval string, startMs, endMs int64) ([]market.Candle, error) {
	sameEndpointTries := 0
	decodeFailures := 0
	for {
		ep := f.pool.Current()
		rows, err := f.client.Klines(ctx, ep, symbol, interval, startMs, endMs, f.cfg.Limit)
		if err == nil {
			sess.consecutiveErrors = 0
			return rows, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sess.consecutiveErrors++
		sess.totalRetries++
		var fe *FetchError
		if errors.As(err, &fe) && fe.Kind == KindDecode {
			decodeFailures++
		}
		disp, wait := Classify(err, decodeFailures)
		logger.Warnf("[binance] attempt failed (%v), disposition=%s consec=%d total=%d",
			err, disp, sess.consecutiveErrors, sess.totalRetries)

		if sess.totalRetries >= f.cfg.TotalRetryLimit {
			return nil, errRetryCeiling
		}
		// Prolonged local failure is an endpoint-health signal, not a
		// data-shape problem: force a rotation and start counting afresh.
		if sess.consecutiveErrors >= f.cfg.ConsecutiveErrorLimit {
			disp = RotateAndRetry
			sess.consecutiveErrors = 0
		}

		switch disp {
		case AbortAll:
			return nil, err
		case SkipWindow:
			return nil, errSkipWindow
		case RotateAndRetry:
			f.pool.Rotate()
			sameEndpointTries = 0
			if !f.sleep(ctx, f.cfg.RotateSettle) {
				return nil, ctx.Err()
			}
		default: // RetrySame
			sameEndpointTries++
			if sameEndpointTries >= f.cfg.WindowRetryBudget {
				return nil, errSkipWindow
			}
			if wait <= 0 {
				wait = f.backoff.Delay(sess.consecutiveErrors)
			}
			if !f.sleep(ctx, wait) {
				return nil, ctx.Err()
			}
		}
	}
}

// FetchMultiple runs FetchRange per interval sequentially. Individual
// interval failures are logged and tolerated; the call fails only when every
// interval came back empty.
func (f *Fetcher) FetchMultiple(ctx context.Context, symbol string, plan map[string]int) (map[string][]market.Candle, error) {
	intervals := make([]string, 0, len(plan))
	for iv := range plan {
		intervals = append(intervals, iv)
	}
	// Widest timeframe first, matching how the analysis consumes them.
	sort.Slice(intervals, func(i, j int) bool {
		di, _ := market.ParseIntervalDuration(intervals[i])
		dj, _ := market.ParseIntervalDuration(intervals[j])
		return di > dj
	})

	results := make(map[string][]market.Candle, len(plan))
	for _, iv := range intervals {
		rows, err := f.FetchRange(ctx, symbol, iv, plan[iv])
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			logger.Errorf("[binance] interval %s failed for %s: %v", iv, symbol, err)
			continue
		}
		results[iv] = rows
		if !f.sleep(ctx, time.Second) {
			return results, ctx.Err()
		}
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("all interval fetches failed for %s: %w", symbol, ErrNoData)
	}
	return results, nil
}

func (f *Fetcher) courtesyDelay() time.Duration {
	base := f.cfg.CourtesyDelay
	return base + time.Duration(f.rng.Int63n(int64(base)))
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
