package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pricewatch/internal/analysis/pattern"
	"pricewatch/internal/analysis/zone"
	"pricewatch/internal/chart"
	"pricewatch/internal/config"
	"pricewatch/internal/gateway/binance"
	"pricewatch/internal/gateway/notifier"
	"pricewatch/internal/gateway/provider"
	"pricewatch/internal/logger"
	"pricewatch/internal/market"
	"pricewatch/internal/profile"
	"pricewatch/internal/store/sqlite"
)

type candleFetcher interface {
	FetchRange(ctx context.Context, symbol, interval string, days int) ([]market.Candle, error)
	FetchMultiple(ctx context.Context, symbol string, plan map[string]int) (map[string][]market.Candle, error)
}

type analyst interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type messenger interface {
	Enabled() bool
	SendText(ctx context.Context, text string) error
	SendPhoto(ctx context.Context, path, caption string) error
}

type archive interface {
	SaveRun(run *sqlite.RunRecord) error
	SaveBatch(batch *sqlite.BatchRecord) error
}

// chartRenderer matches chart.RenderAll so tests can swap in a fake that
// needs no headless browser.
type chartRenderer func(ctx context.Context, dir string, inputs []chart.Input) ([]string, error)

// RunResult is what a finished analysis run produced. Artifact paths are
// keyed by interval: an export can fail for one timeframe without touching
// the attribution of the others.
type RunResult struct {
	RunID      string
	Symbol     string
	Mode       string
	Analysis   string
	Support    []zone.Zone
	Resistance []zone.Zone
	CSVPaths   map[string]string
	ChartPaths map[string]string
}

// App wires the fetcher, analyzer, model, charts, notifier and archive into
// the three run modes.
type App struct {
	fetcher   candleFetcher
	analyst   analyst
	messenger messenger
	archive   archive
	render    chartRenderer
	profiles  *profile.Registry
	outputDir string
	now       func() time.Time
}

// New builds a fully wired App from config. The sqlite archive and telegram
// notifier are optional: missing settings disable them with a log line.
func New(cfg *config.Config) (*App, error) {
	fetcher, err := binance.New(cfg.BinanceConfig())
	if err != nil {
		return nil, err
	}
	fetcher.SetProgress(func(total int) {
		logger.Debugf("[app] fetched %d candles so far", total)
	})

	chat := &provider.ChatClient{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Timeout:     cfg.AI.Timeout,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
	}

	telegram := notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if !telegram.Enabled() {
		logger.Warnf("[app] telegram not configured, notifications disabled")
	}

	var store archive
	if cfg.Output.Database != "" {
		s, err := sqlite.New(cfg.Output.Database)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		store = s
	}

	profiles := profile.NewRegistry()
	if cfg.Output.Profiles != "" {
		if err := profiles.LoadFile(cfg.Output.Profiles); err != nil {
			return nil, err
		}
	}

	return &App{
		fetcher:   fetcher,
		analyst:   chat,
		messenger: telegram,
		archive:   store,
		render:    chart.RenderAll,
		profiles:  profiles,
		outputDir: cfg.Output.Dir,
		now:       time.Now,
	}, nil
}

// RunSingle analyzes one symbol on one timeframe.
func (a *App) RunSingle(ctx context.Context, symbol, interval string, days int) (*RunResult, error) {
	logger.Infof("[app] starting single analysis %s %s, %d days of history", symbol, interval, days)
	candles, err := a.fetcher.FetchRange(ctx, symbol, interval, days)
	if err != nil {
		return nil, err
	}
	res := pattern.Analyze(candles)
	logger.Infof("[app] %s %s: %d candles, %s", symbol, interval, len(candles), res.PatternSummary)

	analysis, err := a.analyst.Complete(ctx, "", singlePrompt(symbol, interval, candles, res, a.now()))
	if err != nil {
		return nil, fmt.Errorf("analysis generation failed: %w", err)
	}
	return a.finishRun(ctx, "single", symbol,
		[]string{interval},
		map[string][]market.Candle{interval: candles},
		map[string]int{interval: days},
		analysis)
}

// RunProfile analyzes a symbol across a named multi-timeframe plan
// ("complete" or "intraday" unless overridden by config).
func (a *App) RunProfile(ctx context.Context, symbol, mode string) (*RunResult, error) {
	plan, err := a.profiles.Resolve(mode)
	if err != nil {
		return nil, err
	}
	intervals := plan.Intervals()
	logger.Infof("[app] starting %s analysis for %s across %v", mode, symbol, intervals)

	candles, err := a.fetcher.FetchMultiple(ctx, symbol, plan)
	if err != nil {
		return nil, err
	}

	kept := intervals[:0]
	results := make(map[string]pattern.Result, len(candles))
	for _, iv := range intervals {
		rows, ok := candles[iv]
		if !ok || len(rows) == 0 {
			continue
		}
		kept = append(kept, iv)
		results[iv] = pattern.Analyze(rows)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no timeframe produced data for %s", symbol)
	}

	var prompt string
	if mode == "intraday" {
		prompt = intradayPrompt(symbol, kept, candles, results, a.now())
	} else {
		prompt = swingPrompt(symbol, kept, candles, results, a.now())
	}
	analysis, err := a.analyst.Complete(ctx, "", prompt)
	if err != nil {
		return nil, fmt.Errorf("analysis generation failed: %w", err)
	}
	return a.finishRun(ctx, mode, symbol, kept, candles, plan, analysis)
}

// finishRun is the shared back half: zones, CSVs, charts, notification and
// archival. Chart or notification failures degrade the run, they don't fail
// it; the analysis text is the primary artifact.
func (a *App) finishRun(ctx context.Context, mode, symbol string, intervals []string, candles map[string][]market.Candle, plan map[string]int, analysis string) (*RunResult, error) {
	out := &RunResult{
		RunID:      uuid.NewString(),
		Symbol:     symbol,
		Mode:       mode,
		Analysis:   analysis,
		Support:    zone.Extract(analysis, zone.Support),
		Resistance: zone.Extract(analysis, zone.Resistance),
	}
	logger.Infof("[app] run %s: extracted %d support / %d resistance zones",
		out.RunID, len(out.Support), len(out.Resistance))

	out.CSVPaths = make(map[string]string, len(intervals))
	for _, iv := range intervals {
		path, err := market.SaveCSV(a.outputDir, symbol, iv, candles[iv])
		if err != nil {
			logger.Errorf("[app] csv export failed for %s: %v", iv, err)
			continue
		}
		out.CSVPaths[iv] = path
	}

	inputs := make([]chart.Input, 0, len(intervals))
	for _, iv := range intervals {
		inputs = append(inputs, chart.Input{
			Symbol:     symbol,
			Interval:   iv,
			Candles:    candles[iv],
			Support:    out.Support,
			Resistance: out.Resistance,
		})
	}
	chartPaths, err := a.render(ctx, a.outputDir, inputs)
	if err != nil {
		logger.Errorf("[app] chart rendering failed: %v", err)
	} else {
		out.ChartPaths = make(map[string]string, len(chartPaths))
		for i, path := range chartPaths {
			out.ChartPaths[inputs[i].Interval] = path
		}
	}

	status := "ok"
	if a.messenger != nil && a.messenger.Enabled() {
		if err := a.messenger.SendText(ctx, analysis); err != nil {
			logger.Errorf("[app] telegram text failed: %v", err)
		} else {
			status = "notified"
		}
		for _, iv := range intervals {
			path, ok := out.ChartPaths[iv]
			if !ok {
				continue
			}
			caption := fmt.Sprintf("%s %s chart", symbol, iv)
			if err := a.messenger.SendPhoto(ctx, path, caption); err != nil {
				logger.Errorf("[app] telegram photo failed for %s: %v", path, err)
			}
		}
	}

	a.archiveRun(out, intervals, candles, plan, status)
	return out, nil
}

func (a *App) archiveRun(out *RunResult, intervals []string, candles map[string][]market.Candle, plan map[string]int, status string) {
	if a.archive == nil {
		return
	}
	if err := a.archive.SaveRun(&sqlite.RunRecord{
		ID:       out.RunID,
		Symbol:   out.Symbol,
		Mode:     out.Mode,
		Analysis: out.Analysis,
		Status:   status,
	}); err != nil {
		logger.Errorf("[app] archiving run failed: %v", err)
		return
	}
	for _, iv := range intervals {
		rows := candles[iv]
		batch := &sqlite.BatchRecord{
			RunID:       out.RunID,
			Interval:    iv,
			Days:        plan[iv],
			CandleCount: len(rows),
			CSVPath:     out.CSVPaths[iv],
			ChartPath:   out.ChartPaths[iv],
		}
		if len(rows) > 0 {
			batch.FirstOpenMs = rows[0].OpenTime
			batch.LastOpenMs = rows[len(rows)-1].OpenTime
		}
		if err := a.archive.SaveBatch(batch); err != nil {
			logger.Errorf("[app] archiving batch %s failed: %v", iv, err)
		}
	}
}
