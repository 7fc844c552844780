package chart

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	talib "github.com/markcheno/go-talib"
	"golang.org/x/sync/errgroup"

	"pricewatch/internal/analysis/zone"
	"pricewatch/internal/logger"
	"pricewatch/internal/market"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorEmaFast       = "#3b82f6"
	colorEmaSlow       = "#fbbf24"
	colorSupportFill   = "rgba(52,211,153,0.22)"
	colorResistFill    = "rgba(248,113,113,0.22)"

	chartWidthPx   = 1600
	klineHeightPx  = 600
	volumeHeightPx = 260

	emaFastPeriod = 20
	emaSlowPeriod = 50
)

// Input is everything one interval's chart needs: candles plus the support
// and resistance bands pulled from the analysis.
type Input struct {
	Symbol     string
	Interval   string
	Candles    []market.Candle
	Support    []zone.Zone
	Resistance []zone.Zone
}

// Result is a rendered PNG.
type Result struct {
	Bytes    []byte
	Filename string
}

// Render draws one interval as a kline+volume page and screenshots it.
func Render(ctx context.Context, in Input) (Result, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return Result{}, err
	}
	if in.Symbol == "" || len(in.Candles) == 0 {
		return Result{}, fmt.Errorf("symbol and candles required for chart render")
	}
	html, err := buildPageHTML(in)
	if err != nil {
		return Result{}, err
	}
	png, err := renderHTMLToPNG(ctx, html, chartWidthPx, klineHeightPx+volumeHeightPx)
	if err != nil {
		return Result{}, err
	}
	name := fmt.Sprintf("%s_%s_%s.png",
		strings.ToLower(in.Symbol), strings.ToLower(in.Interval), time.Now().Format("20060102_1504"))
	return Result{Bytes: png, Filename: name}, nil
}

// RenderAll renders every interval concurrently and writes the PNGs under
// dir, returning the file paths in input order.
func RenderAll(ctx context.Context, dir string, inputs []Input) ([]string, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for i, in := range inputs {
		g.Go(func() error {
			res, err := Render(gctx, in)
			if err != nil {
				return fmt.Errorf("render %s %s: %w", in.Symbol, in.Interval, err)
			}
			path := filepath.Join(dir, res.Filename)
			if err := os.WriteFile(path, res.Bytes, 0o644); err != nil {
				return err
			}
			logger.Infof("[chart] wrote %s (%d bytes)", path, len(res.Bytes))
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable probes for a usable headless browser once per
// process so a missing Chrome fails fast instead of per chart.
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

func buildPageHTML(in Input) ([]byte, error) {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)

	candles := in.Candles
	minPrice, maxPrice := priceBounds(candles)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(maxPrice)*0.01)
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", klineHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s %s", strings.ToUpper(in.Symbol), in.Interval),
			Subtitle:      zoneSubtitle(in),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			Min:       round(minPrice-padding, 4),
			Max:       round(maxPrice+padding, 4),
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)

	xAxis := buildXAxis(candles)
	klineData := make([]opts.KlineData, 0, len(candles))
	for _, c := range candles {
		klineData = append(klineData, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	kline.SetXAxis(xAxis)

	seriesOpts := []charts.SeriesOpts{
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	}
	seriesOpts = append(seriesOpts, zoneMarkAreas(xAxis, in.Support, "S", colorSupportFill)...)
	seriesOpts = append(seriesOpts, zoneMarkAreas(xAxis, in.Resistance, "R", colorResistFill)...)
	kline.AddSeries("Price", klineData, seriesOpts...)

	if ema := buildEMALine(candles, xAxis); ema != nil {
		kline.Overlap(ema)
	}

	page.AddCharts(kline, buildVolumeChart(in.Interval, xAxis, candles))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// zoneMarkAreas paints each price band across the full X range.
func zoneMarkAreas(xAxis []string, zones []zone.Zone, label, fill string) []charts.SeriesOpts {
	if len(xAxis) == 0 {
		return nil
	}
	first, last := xAxis[0], xAxis[len(xAxis)-1]
	out := make([]charts.SeriesOpts, 0, len(zones))
	for i, z := range zones {
		out = append(out, charts.WithMarkAreaNameCoordItemOpts(opts.MarkAreaNameCoordItem{
			Name:        fmt.Sprintf("%s%d %.4g-%.4g", label, i+1, z.Low, z.High),
			Coordinate0: []interface{}{first, z.Low},
			Coordinate1: []interface{}{last, z.High},
			ItemStyle:   &opts.ItemStyle{Color: fill},
		}))
	}
	return out
}

func zoneSubtitle(in Input) string {
	parts := make([]string, 0, 2)
	if len(in.Support) > 0 {
		parts = append(parts, fmt.Sprintf("%d support zones", len(in.Support)))
	}
	if len(in.Resistance) > 0 {
		parts = append(parts, fmt.Sprintf("%d resistance zones", len(in.Resistance)))
	}
	if len(parts) == 0 {
		return "no zones extracted"
	}
	return strings.Join(parts, " | ")
}

func buildXAxis(candles []market.Candle) []string {
	x := make([]string, len(candles))
	for i, c := range candles {
		x[i] = time.UnixMilli(c.OpenTime).UTC().Format("01-02 15:04")
	}
	return x
}

func buildEMALine(candles []market.Candle, xAxis []string) *charts.Line {
	if len(candles) <= emaFastPeriod {
		return nil
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	line := charts.NewLine()
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.SetXAxis(xAxis)

	fast := talib.Ema(closes, emaFastPeriod)
	line.AddSeries(fmt.Sprintf("EMA%d", emaFastPeriod), toLineData(fast, emaFastPeriod),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEmaFast, Width: 2}))
	if len(candles) > emaSlowPeriod {
		slow := talib.Ema(closes, emaSlowPeriod)
		line.AddSeries(fmt.Sprintf("EMA%d", emaSlowPeriod), toLineData(slow, emaSlowPeriod),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorEmaSlow, Width: 2}))
	}
	return line
}

// toLineData nulls out the warmup segment so the overlay starts where the
// indicator becomes meaningful.
func toLineData(series []float64, warmup int) []opts.LineData {
	out := make([]opts.LineData, len(series))
	for i, v := range series {
		if i < warmup-1 || math.IsNaN(v) {
			out[i] = opts.LineData{Value: nil}
			continue
		}
		out[i] = opts.LineData{Value: round(v, 4)}
	}
	return out
}

func buildVolumeChart(interval string, xAxis []string, candles []market.Candle) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", volumeHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Volume %s", interval), Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			SplitNumber: 6,
			AxisLabel:   &opts.AxisLabel{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	vols := make([]opts.BarData, len(candles))
	for i, c := range candles {
		color := colorBear
		if c.Close >= c.Open {
			color = colorBull
		}
		vols[i] = opts.BarData{
			Value:     c.Volume,
			ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.6)},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Volume", vols)
	return bar
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

func priceBounds(candles []market.Candle) (minVal, maxVal float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	minVal = candles[0].Low
	maxVal = candles[0].High
	for _, c := range candles {
		if c.Low < minVal {
			minVal = c.Low
		}
		if c.High > maxVal {
			maxVal = c.High
		}
	}
	return minVal, maxVal
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
