// cmd/scan runs one breakout scan over a watchlist and prints the symbols
// that are ready to fire.
//
// Usage:
//
//	go run ./cmd/scan -symbols "RELIANCE.NS, TCS.NS, binance:BTCUSDT"
//	go run ./cmd/scan -config config.yaml -offline -all -format json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog/log"

	"breakout-scanner/internal/config"
	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/model"
	"breakout-scanner/internal/scanner"
	"breakout-scanner/internal/service"
)

func main() {
	symbolsFlag := flag.String("symbols", "", "Comma or space separated symbols (default: config watchlist)")
	cfgPath := flag.String("config", "config.yaml", "Path to YAML config")
	format := flag.String("format", "table", "Output format: table|json")
	offline := flag.Bool("offline", false, "Read bars from the SQLite archive instead of the network")
	all := flag.Bool("all", false, "Print every verdict, not just the ones that fire")
	level := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	// Logs go to stderr so stdout stays machine readable.
	log.Logger = logger.New(os.Stderr, "scan", *level)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *symbolsFlag != "" {
		cfg.Symbols = scanner.ParseSymbols(*symbolsFlag)
	}
	if *offline {
		cfg.Provider = config.ProviderSQLite
	}
	if len(cfg.Symbols) == 0 {
		fmt.Fprintln(os.Stderr, "no symbols: pass -symbols or set symbols in the config")
		os.Exit(2)
	}
	if *format != "table" && *format != "json" {
		fmt.Fprintf(os.Stderr, "unknown format %q\n", *format)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	engine, err := scanner.NewEngine(cfg.Engine)
	if err != nil {
		log.Fatal().Err(err).Msg("engine")
	}
	stores, err := service.OpenStores(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open stores")
	}
	defer stores.Close()
	fetcher, err := service.BuildFetcher(cfg, stores, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("build fetcher")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if stores.Recorder != nil {
		recCtx, stopRec := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			stores.Recorder.Run(recCtx)
			close(done)
		}()
		defer func() {
			stopRec()
			<-done
		}()
	}

	scanCtx, scanCancel := context.WithTimeout(ctx, cfg.Scan.Timeout)
	defer scanCancel()
	res := scanner.New(engine, fetcher, scanner.Options{Concurrency: cfg.Scan.Concurrency}).Scan(scanCtx, cfg.Symbols)

	shown := res.Fired()
	if *all {
		shown = res.Verdicts
	}
	if *format == "json" {
		err = writeJSON(os.Stdout, res, shown)
	} else {
		err = writeTable(os.Stdout, res, shown, *all)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("write output")
	}
}

func writeJSON(w io.Writer, res scanner.Result, shown []model.Verdict) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		ScanID   string          `json:"scan_id"`
		Verdicts []model.Verdict `json:"verdicts"`
	}{res.ScanID, shown})
}

func writeTable(w io.Writer, res scanner.Result, shown []model.Verdict, all bool) error {
	if len(res.Fired()) == 0 {
		fmt.Fprintln(w, "No breakout candidates found")
		if !all {
			return nil
		}
	} else {
		fmt.Fprintln(w, "These stocks are ready to fire")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tFIRE\tCLOSE\tRSI\tBB WIDTH\tVOL/AVG\tREASON")
	for _, v := range shown {
		px, rsi, width, vol := "-", "-", "-", "-"
		if s := v.Snapshot; s != nil {
			if s.RSI.Ready {
				rsi = fmt.Sprintf("%.1f", s.RSI.V)
			}
			if s.BBWidth.Ready {
				width = fmt.Sprintf("%.4f", s.BBWidth.V)
			}
			if s.VolumeAvg.Ready && s.VolumeAvg.V > 0 {
				vol = fmt.Sprintf("%.2fx", float64(s.Volume)/s.VolumeAvg.V)
			}
			px = fmt.Sprintf("%.2f", s.Close)
		}
		reason := v.Reason
		if reason == "" {
			reason = "ready"
		}
		fmt.Fprintf(tw, "%s\t%v\t%s\t%s\t%s\t%s\t%s\n", v.Symbol, v.Fire, px, rsi, width, vol, reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d scanned, %d fired, %d errors (scan %s)\n", len(res.Verdicts), len(res.Fired()), res.Errors(), res.ScanID)
	return nil
}
