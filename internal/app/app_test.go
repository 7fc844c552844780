package app

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"pricewatch/internal/chart"
	"pricewatch/internal/market"
	"pricewatch/internal/profile"
	"pricewatch/internal/store/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	ranges map[string][]market.Candle
	err    error
}

func (s *stubFetcher) FetchRange(_ context.Context, _, interval string, _ int) ([]market.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ranges[interval], nil
}

func (s *stubFetcher) FetchMultiple(_ context.Context, _ string, plan map[string]int) (map[string][]market.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := map[string][]market.Candle{}
	for iv := range plan {
		if rows, ok := s.ranges[iv]; ok {
			out[iv] = rows
		}
	}
	return out, nil
}

type stubAnalyst struct {
	prompts []string
	reply   string
	err     error
}

func (s *stubAnalyst) Complete(_ context.Context, _, userPrompt string) (string, error) {
	s.prompts = append(s.prompts, userPrompt)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type stubMessenger struct {
	texts    []string
	photos   []string
	captions []string
}

func (s *stubMessenger) Enabled() bool { return true }
func (s *stubMessenger) SendText(_ context.Context, text string) error {
	s.texts = append(s.texts, text)
	return nil
}
func (s *stubMessenger) SendPhoto(_ context.Context, path, caption string) error {
	s.photos = append(s.photos, path)
	s.captions = append(s.captions, caption)
	return nil
}

func seriesFor(interval string, n int) []market.Candle {
	step, _ := market.ParseIntervalDuration(interval)
	out := make([]market.Candle, n)
	for i := range out {
		p := 100 + float64(i)*0.1
		out[i] = market.Candle{
			OpenTime: int64(i) * step.Milliseconds(),
			Open:     p, High: p + 1, Low: p - 1, Close: p + 0.2, Volume: 5,
		}
	}
	return out
}

func newTestApp(t *testing.T, fetcher *stubFetcher, analyst *stubAnalyst) (*App, *stubMessenger, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	msg := &stubMessenger{}
	return &App{
		fetcher:   fetcher,
		analyst:   analyst,
		messenger: msg,
		archive:   store,
		render: func(_ context.Context, dir string, inputs []chart.Input) ([]string, error) {
			paths := make([]string, len(inputs))
			for i, in := range inputs {
				paths[i] = filepath.Join(dir, fmt.Sprintf("%s_%s.png", in.Symbol, in.Interval))
			}
			return paths, nil
		},
		profiles:  profile.NewRegistry(),
		outputDir: t.TempDir(),
		now:       func() time.Time { return time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC) },
	}, msg, store
}

const analysisReply = `Trend looks constructive.
Support zones: 98-99
Resistance zones: 104-105`

func TestRunSingleProducesFullArtifacts(t *testing.T) {
	fetcher := &stubFetcher{ranges: map[string][]market.Candle{"1h": seriesFor("1h", 48)}}
	analyst := &stubAnalyst{reply: analysisReply}
	a, msg, store := newTestApp(t, fetcher, analyst)

	res, err := a.RunSingle(context.Background(), "BTCUSDT", "1h", 2)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "single", res.Mode)
	assert.Equal(t, analysisReply, res.Analysis)
	require.Len(t, res.Support, 1)
	assert.Equal(t, 98.0, res.Support[0].Low)
	require.Len(t, res.Resistance, 1)
	assert.Len(t, res.CSVPaths, 1)
	assert.Len(t, res.ChartPaths, 1)

	// Prompt carries the raw data section.
	require.Len(t, analyst.prompts, 1)
	assert.Contains(t, analyst.prompts[0], "Symbol: BTCUSDT")
	assert.Contains(t, analyst.prompts[0], "## Timeframe: 1h")

	// Notified text and chart.
	require.Len(t, msg.texts, 1)
	assert.Len(t, msg.photos, 1)

	// Archived.
	runs, err := store.RecentRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "notified", runs[0].Status)
	batches, err := store.BatchesForRun(res.RunID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 48, batches[0].CandleCount)
	assert.Equal(t, 2, batches[0].Days)
}

func TestRunProfileIntradayUsesSessionPrompt(t *testing.T) {
	fetcher := &stubFetcher{ranges: map[string][]market.Candle{
		"4h":  seriesFor("4h", 60),
		"30m": seriesFor("30m", 80),
		"5m":  seriesFor("5m", 100),
	}}
	analyst := &stubAnalyst{reply: analysisReply}
	a, _, store := newTestApp(t, fetcher, analyst)

	res, err := a.RunProfile(context.Background(), "ETHUSDT", "intraday")
	require.NoError(t, err)
	assert.Equal(t, "intraday", res.Mode)
	assert.Len(t, res.CSVPaths, 3)

	require.Len(t, analyst.prompts, 1)
	assert.Contains(t, analyst.prompts[0], "day trader")
	assert.Contains(t, analyst.prompts[0], "## Timeframe: 4h")
	assert.Contains(t, analyst.prompts[0], "## Timeframe: 5m")

	batches, err := store.BatchesForRun(res.RunID)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	// Widest frame first.
	assert.Equal(t, "4h", batches[0].Interval)
	assert.Equal(t, 30, batches[0].Days)
}

func TestRunProfileToleratesMissingTimeframes(t *testing.T) {
	fetcher := &stubFetcher{ranges: map[string][]market.Candle{"4h": seriesFor("4h", 60)}}
	analyst := &stubAnalyst{reply: analysisReply}
	a, _, _ := newTestApp(t, fetcher, analyst)

	res, err := a.RunProfile(context.Background(), "SOLUSDT", "intraday")
	require.NoError(t, err)
	assert.Len(t, res.CSVPaths, 1)
	assert.NotContains(t, analyst.prompts[0], "## Timeframe: 5m")
}

func TestFinishRunKeepsArtifactsAlignedWhenOneExportFails(t *testing.T) {
	analyst := &stubAnalyst{reply: analysisReply}
	a, msg, store := newTestApp(t, &stubFetcher{}, analyst)

	// An empty series makes the 4h CSV export fail while 30m succeeds; the
	// 30m artifacts must still be attributed to 30m, not pulled forward.
	intervals := []string{"4h", "30m"}
	candles := map[string][]market.Candle{
		"4h":  nil,
		"30m": seriesFor("30m", 20),
	}
	res, err := a.finishRun(context.Background(), "intraday", "BTCUSDT", intervals, candles,
		map[string]int{"4h": 30, "30m": 7}, analysisReply)
	require.NoError(t, err)

	require.Len(t, res.CSVPaths, 1)
	assert.NotContains(t, res.CSVPaths, "4h")
	assert.Contains(t, res.CSVPaths["30m"], "_30m_")
	require.Len(t, res.ChartPaths, 2)

	// Captions name the interval their chart was rendered for.
	require.Len(t, msg.captions, 2)
	assert.Equal(t, "BTCUSDT 4h chart", msg.captions[0])
	assert.Contains(t, msg.photos[0], "_4h")
	assert.Equal(t, "BTCUSDT 30m chart", msg.captions[1])
	assert.Contains(t, msg.photos[1], "_30m")

	batches, err := store.BatchesForRun(res.RunID)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	byInterval := map[string]sqlite.BatchRecord{}
	for _, b := range batches {
		byInterval[b.Interval] = b
	}
	assert.Empty(t, byInterval["4h"].CSVPath)
	assert.Equal(t, res.CSVPaths["30m"], byInterval["30m"].CSVPath)
	assert.Contains(t, byInterval["4h"].ChartPath, "_4h")
	assert.Contains(t, byInterval["30m"].ChartPath, "_30m")
}

func TestRunProfileFailsWhenNothingFetched(t *testing.T) {
	a, _, _ := newTestApp(t, &stubFetcher{ranges: map[string][]market.Candle{}}, &stubAnalyst{reply: "x"})
	_, err := a.RunProfile(context.Background(), "BTCUSDT", "intraday")
	assert.Error(t, err)
}

func TestRunProfileRejectsUnknownMode(t *testing.T) {
	a, _, _ := newTestApp(t, &stubFetcher{}, &stubAnalyst{})
	_, err := a.RunProfile(context.Background(), "BTCUSDT", "scalping")
	assert.Error(t, err)
}

func TestRunSingleSurfacesAnalystFailure(t *testing.T) {
	fetcher := &stubFetcher{ranges: map[string][]market.Candle{"1h": seriesFor("1h", 24)}}
	analyst := &stubAnalyst{err: fmt.Errorf("model unavailable")}
	a, msg, _ := newTestApp(t, fetcher, analyst)

	_, err := a.RunSingle(context.Background(), "BTCUSDT", "1h", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
	assert.Empty(t, msg.texts, "nothing is sent when analysis fails")
}
