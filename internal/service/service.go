// Package service wires the scanner daemon: data stores, the fetch chain,
// scheduled scans, verdict fan-out, alerting, the HTTP API and metrics.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"breakout-scanner/internal/api"
	"breakout-scanner/internal/bus"
	"breakout-scanner/internal/config"
	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/marketdata"
	"breakout-scanner/internal/markethours"
	"breakout-scanner/internal/metrics"
	"breakout-scanner/internal/notification"
	"breakout-scanner/internal/platform/httpclient"
	"breakout-scanner/internal/scanner"
	"breakout-scanner/internal/scheduler"
)

const (
	eventBuffer      = 1024
	subscriberBuffer = 512
	replaySize       = 2000
	livenessInterval = 15 * time.Second
	statsInterval    = 10 * time.Second
)

// Service is the top-level orchestrator for the scanner daemon.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg *config.Config
	log zerolog.Logger

	reg    *prometheus.Registry
	prom   *metrics.Metrics
	health *metrics.HealthStatus

	stores  Stores
	fetcher marketdata.Fetcher
	scanner *scanner.Scanner
	cal     *markethours.Calendar

	events     chan bus.Event
	fan        *bus.FanOut
	dispatcher *notification.Dispatcher
	hub        *api.Hub
	alertsCh   <-chan bus.Event
	hubCh      <-chan bus.Event

	api        *api.Server
	metricsSrv *metrics.Server
	sched      *scheduler.Scheduler

	// Serializes publishing so events of one scan stay contiguous on the bus.
	publishMu  sync.Mutex
	recorderWG sync.WaitGroup
}

// New creates a Service from cfg. It opens the configured stores but starts
// nothing until Run.
func New(cfg *config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cal, err := cfg.MarketCalendar()
	if err != nil {
		return nil, err
	}
	engine, err := scanner.NewEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:    cfg,
		log:    logger.Component("service"),
		reg:    prometheus.NewRegistry(),
		health: metrics.NewHealthStatus(),
		cal:    cal,
		events: make(chan bus.Event, eventBuffer),
	}
	svc.prom = metrics.New(svc.reg)

	// ---- Stores and fetch chain ----
	svc.stores, err = OpenStores(cfg)
	if err != nil {
		return nil, err
	}
	if svc.stores.Cache != nil {
		svc.health.EnableRedis()
	}
	if svc.stores.Archive != nil {
		svc.health.EnableSQLite()
	}
	svc.fetcher, err = BuildFetcher(cfg, svc.stores, svc.prom)
	if err != nil {
		svc.stores.Close()
		return nil, err
	}
	svc.scanner = scanner.New(engine, svc.fetcher, scanner.Options{
		Concurrency: cfg.Scan.Concurrency,
		Observer:    svc.prom,
	})

	// ---- Alerting ----
	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		svc.stores.Close()
		return nil, err
	}
	svc.dispatcher = notification.NewDispatcher(notifiers...)
	svc.dispatcher.OnResult = svc.prom.ObserveAlert

	// ---- Bus ----
	svc.fan = bus.New(subscriberBuffer)
	svc.fan.OnDrop = svc.prom.ObserveFanoutDrop
	svc.alertsCh = svc.fan.Subscribe()
	svc.hubCh = svc.fan.Subscribe()

	svc.hub = api.NewHub(replaySize)
	svc.hub.OnClients = func(n int) { svc.prom.WSClients.Set(float64(n)) }

	// ---- HTTP ----
	svc.api = api.NewServer(api.Options{
		Addr:        cfg.API.Addr,
		Hub:         svc.hub,
		Scan:        svc.RunScan,
		Engine:      cfg.Engine,
		TOTPSecret:  cfg.API.TOTPSecret,
		Health:      svc.health,
		ScanTimeout: cfg.Scan.Timeout,
	})
	if cfg.MetricsAddr != "" {
		svc.metricsSrv = metrics.NewServer(cfg.MetricsAddr, svc.health, svc.reg)
	}
	return svc, nil
}

func buildNotifiers(cfg *config.Config) ([]notification.Notifier, error) {
	out := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.Alerts.WebhookURL != "" {
		client := httpclient.New(httpclient.Options{Timeout: 10 * time.Second, RequestsPerSec: 5, MaxRetries: 2})
		out = append(out, notification.NewWebhookNotifier(cfg.Alerts.WebhookURL, client))
	}
	if cfg.Alerts.TelegramBotToken != "" {
		chatID, err := cfg.TelegramChatID()
		if err != nil {
			return nil, err
		}
		tg, err := notification.NewTelegramNotifier(cfg.Alerts.TelegramBotToken, chatID)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		out = append(out, tg)
	}
	return out, nil
}

// Registry exposes the service's metric registry.
func (svc *Service) Registry() *prometheus.Registry { return svc.reg }

// Health exposes the service's health status.
func (svc *Service) Health() *metrics.HealthStatus { return svc.health }

// Hub exposes the WebSocket hub.
func (svc *Service) Hub() *api.Hub { return svc.hub }

// API exposes the HTTP API server.
func (svc *Service) API() *api.Server { return svc.api }

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	svc.log.Info().
		Str("provider", cfg.Provider).
		Str("calendar", svc.cal.Name()).
		Int("symbols", len(cfg.Symbols)).
		Msg("starting breakout scanner")

	// ---- Scheduler ----
	svc.sched = scheduler.New(ctx, svc.cal, func(ctx context.Context) { svc.RunScan(ctx, nil) })
	svc.sched.OnSkip = func(reason string) { svc.prom.ScansSkipped.WithLabelValues(reason).Inc() }
	if cfg.Scan.Cron != "" {
		if err := svc.sched.Register(cfg.Scan.Cron); err != nil {
			return err
		}
	}

	// ---- Start subsystems ----
	if svc.stores.Recorder != nil {
		svc.recorderWG.Add(1)
		go func() {
			defer svc.recorderWG.Done()
			svc.stores.Recorder.Run(ctx)
		}()
	}
	go svc.fan.Run(ctx, svc.events)
	go svc.dispatcher.Run(ctx, svc.alertsCh)
	go svc.hub.Run(ctx, svc.hubCh)

	var rdb *goredis.Client
	if svc.stores.Cache != nil {
		rdb = svc.stores.Cache.Client()
	}
	var sqlDB *sql.DB
	if svc.stores.Archive != nil {
		sqlDB = svc.stores.Archive.DB()
	}
	svc.health.StartLivenessChecker(ctx, rdb, sqlDB, livenessInterval)
	go svc.statsLoop(ctx)

	if svc.metricsSrv != nil {
		svc.metricsSrv.Start()
	}
	svc.api.Start()
	svc.sched.Start()

	now := time.Now()
	svc.log.Info().
		Str("market", svc.cal.StatusString(now)).
		Time("next_scan", svc.sched.Next()).
		Msg("all systems running")

	if cfg.Scan.RunOnStart {
		go svc.sched.Trigger()
	}

	// Block until context cancelled
	<-ctx.Done()

	svc.shutdown()
	return nil
}

// RunScan scans symbols, or the configured watchlist when symbols is empty,
// and publishes every verdict on the bus in input order.
func (svc *Service) RunScan(ctx context.Context, symbols []string) scanner.Result {
	if len(symbols) == 0 {
		symbols = svc.cfg.Symbols
	}
	scanCtx, cancel := context.WithTimeout(ctx, svc.cfg.Scan.Timeout)
	defer cancel()

	res := svc.scanner.Scan(scanCtx, symbols)
	svc.publish(ctx, res)

	svc.api.SetLatest(res)
	fired := res.Fired()
	svc.health.RecordScan(res.ScanID, res.FinishedAt, len(res.Symbols), len(fired))

	log := logger.Ctx(logger.WithTraceID(ctx, res.ScanID), svc.log)
	for _, v := range fired {
		log.Info().Str("symbol", v.Symbol).Str("reason", v.Reason).Msg("ready to fire")
	}
	return res
}

func (svc *Service) publish(ctx context.Context, res scanner.Result) {
	svc.publishMu.Lock()
	defer svc.publishMu.Unlock()
	for i, v := range res.Verdicts {
		select {
		case svc.events <- bus.Event{ScanID: res.ScanID, Seq: i, Verdict: v}:
		case <-ctx.Done():
			svc.log.Warn().Str("scan_id", res.ScanID).Int("unpublished", len(res.Verdicts)-i).Msg("publish aborted")
			return
		}
	}
}

// statsLoop refreshes gauges that are sampled rather than event driven.
func (svc *Service) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		now := time.Now()
		if svc.cal.IsTradingDay(now) {
			svc.prom.MarketState.Set(1)
		} else {
			svc.prom.MarketState.Set(0)
		}
		for i, st := range svc.fan.ChannelStats() {
			if st.Cap > 0 {
				svc.prom.ChannelSaturationPct.WithLabelValues("subscriber_" + strconv.Itoa(i)).Set(float64(st.Len) / float64(st.Cap) * 100)
			}
		}
		svc.prom.ChannelSaturationPct.WithLabelValues("events").Set(float64(len(svc.events)) / float64(cap(svc.events)) * 100)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// shutdown stops the scheduler and servers and closes the stores.
func (svc *Service) shutdown() {
	svc.log.Info().Msg("shutdown signal received")

	if svc.sched != nil {
		svc.sched.Stop()
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.api.Stop(shutCtx); err != nil {
		svc.log.Warn().Err(err).Msg("api shutdown")
	}
	if svc.metricsSrv != nil {
		svc.metricsSrv.Stop(shutCtx)
	}

	// The recorder drains its queue before the archive closes.
	svc.recorderWG.Wait()
	svc.stores.Close()
	svc.log.Info().Msg("shutdown complete")
}
