package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"pricewatch/internal/app"
	pwcfg "pricewatch/internal/config"
	"pricewatch/internal/logger"
)

func main() {
	symbol := flag.String("s", "BTCUSDT", "trading symbol")
	interval := flag.String("i", "30m", "candle interval (single-timeframe mode only)")
	days := flag.Int("d", 3, "days of history (single-timeframe mode only)")
	complete := flag.Bool("complete", false, "run the full multi-timeframe analysis (1w down to 5m)")
	intraday := flag.Bool("intraday", false, "run the intraday analysis (4h/30m/5m)")
	verbose := flag.Bool("v", false, "debug logging")
	cfgPath := flag.String("config", "", "config file path (default $PRICEWATCH_CONFIG or configs/config.yaml)")
	flag.Parse()

	if *complete && *intraday {
		log.Fatal("--complete and --intraday are mutually exclusive")
	}

	// Secrets come from the environment; .env is a convenience for dev runs.
	if err := godotenv.Load(); err == nil {
		logger.Debugf("loaded .env")
	}

	path := *cfgPath
	if path == "" {
		path = os.Getenv("PRICEWATCH_CONFIG")
	}
	if path == "" {
		path = "configs/config.yaml"
	}
	cfg, err := pwcfg.Load(path)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}

	logFile, err := setupLogOutput(cfg.Log.File)
	if err != nil {
		log.Fatalf("initializing log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	if *verbose {
		logger.SetLevel("debug")
	} else {
		logger.SetLevel(cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("initializing app failed: %v", err)
	}

	sym := strings.ToUpper(strings.TrimSpace(*symbol))
	var res *app.RunResult
	switch {
	case *complete:
		res, err = a.RunProfile(ctx, sym, "complete")
	case *intraday:
		res, err = a.RunProfile(ctx, sym, "intraday")
	default:
		res, err = a.RunSingle(ctx, sym, *interval, *days)
	}
	if err != nil {
		log.Fatalf("analysis run failed: %v", err)
	}

	fmt.Println(res.Analysis)
	logger.Infof("run %s finished: %d csv files, %d charts", res.RunID, len(res.CSVPaths), len(res.ChartPaths))
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
