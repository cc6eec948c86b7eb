// Package api serves the scanner's REST endpoints and the WebSocket verdict
// stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"

	"breakout-scanner/internal/logger"
	"breakout-scanner/internal/scanner"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ScanFunc runs a scan over symbols; an empty list means the configured
// watchlist.
type ScanFunc func(ctx context.Context, symbols []string) scanner.Result

// Options configures a Server.
type Options struct {
	Addr   string
	Hub    *Hub
	Scan   ScanFunc
	Engine scanner.EngineConfig
	// TOTPSecret, when set, guards POST /api/scan with an X-TOTP code.
	TOTPSecret string
	// Health serves /healthz when set.
	Health http.Handler
	// ScanTimeout bounds a scan triggered over HTTP. Default 5m.
	ScanTimeout time.Duration
	// now is used to validate TOTP codes; tests override it.
	now func() time.Time
}

// Server is the HTTP API.
type Server struct {
	opts Options
	srv  *http.Server
	log  zerolog.Logger

	mu     sync.RWMutex
	latest *scanner.Result
}

// NewServer builds the API server. It does not listen until Start.
func NewServer(opts Options) *Server {
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 5 * time.Minute
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	s := &Server{opts: opts, log: logger.Component("api")}
	s.srv = &http.Server{Addr: opts.Addr, Handler: s.Routes()}
	return s
}

// SetLatest records the result served by /api/verdicts/latest.
func (s *Server) SetLatest(res scanner.Result) {
	s.mu.Lock()
	s.latest = &res
	s.mu.Unlock()
}

// Latest returns the last recorded result, if any.
func (s *Server) Latest() (scanner.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return scanner.Result{}, false
	}
	return *s.latest, true
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-TOTP")
}

// Routes returns the API mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/verdicts/latest", s.handleLatest)
	mux.HandleFunc("/api/scan", s.handleScan)
	mux.HandleFunc("/api/config", s.handleConfig)

	if s.opts.Health != nil {
		mux.Handle("/healthz", s.opts.Health)
	} else {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.opts.Hub == nil {
		http.Error(w, "stream disabled", http.StatusNotFound)
		return
	}
	var after int64
	if v := r.URL.Query().Get("since_seq"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			http.Error(w, "invalid since_seq", http.StatusBadRequest)
			return
		}
		after = n
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	s.opts.Hub.Register(conn, after)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res, ok := s.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no scan has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type scanRequest struct {
	Symbols []string `json:"symbols"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.opts.TOTPSecret != "" {
		code := r.Header.Get("X-TOTP")
		ok, err := totp.ValidateCustom(code, s.opts.TOTPSecret, s.opts.now().UTC(), totp.ValidateOpts{
			Period: 30,
			Skew:   1,
			Digits: 6,
		})
		if err != nil || !ok {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("scan rejected: bad TOTP code")
			writeError(w, http.StatusUnauthorized, "invalid or missing X-TOTP code")
			return
		}
	}

	var req scanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}
	symbols := make([]string, 0, len(req.Symbols))
	for _, sym := range req.Symbols {
		symbols = append(symbols, scanner.ParseSymbols(sym)...)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ScanTimeout)
	defer cancel()
	ctx = logger.WithTraceID(ctx, logger.NewTraceID())
	logger.Ctx(ctx, s.log).Info().Strs("symbols", symbols).Msg("scan requested over http")

	res := s.opts.Scan(ctx, symbols)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	cfg := s.opts.Engine
	writeJSON(w, http.StatusOK, map[string]any{
		"windows":      cfg.Windows,
		"thresholds":   cfg.Thresholds,
		"squeeze_mode": cfg.Thresholds.SqueezeMode,
		"min_lookback": cfg.MinLookback,
	})
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.opts.Addr).Msg("api listening")
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("api server error")
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
