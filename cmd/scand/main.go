// cmd/scand runs the breakout scanner as a daemon: scheduled scans, the HTTP
// and WebSocket API, alerts and Prometheus metrics.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"breakout-scanner/internal/config"
	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/service"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Init("scand", cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("provider", cfg.Provider).
		Strs("symbols", cfg.Symbols).
		Str("cron", cfg.Scan.Cron).
		Msg("config loaded")

	svc, err := service.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init failed")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
