// Package smartconnect is a client for the Angel One SmartAPI REST endpoints
// the scanner needs: session login, token refresh, scrip search and
// historical candles.
//
// Usage example:
//
//	sc := smartconnect.NewSmartConnect(smartconnect.Config{APIKey: "your_api_key"})
//	code, _ := totp.GenerateCode(secret, time.Now())
//	if _, err := sc.GenerateSession(ctx, "CLIENTID", "PIN", code); err != nil {
//		return err
//	}
//	candles, err := sc.GetCandleData(ctx, smartconnect.CandleRequest{
//		Exchange: "NSE", SymbolToken: "3045", Interval: smartconnect.IntervalOneDay,
//		From: time.Now().AddDate(-1, 0, 0), To: time.Now(),
//	})
package smartconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ---- Config & client ----

type Config struct {
	APIKey       string
	AccessToken  string
	RefreshToken string

	RootURL    string        // default: https://apiconnect.angelone.in
	Timeout    time.Duration // default: 7s
	HTTPClient *http.Client  // overrides Timeout when set

	UserType       string // default: USER
	SourceID       string // default: WEB
	ClientPublicIP string // default: 106.193.147.98
	ClientLocalIP  string // default: first non-loopback interface address, else 127.0.0.1
	ClientMAC      string // default: first interface MAC
}

type SmartConnect struct {
	apiKey   string
	rootURL  string
	userType string
	sourceID string

	clientPublicIP string
	clientLocalIP  string
	clientMAC      string

	httpClient *http.Client

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	feedToken    string
	userID       string

	// Optional callback for an expired or rejected token.
	SessionExpiryHook func()
}

const (
	defaultRoot     = "https://apiconnect.angelone.in"
	defaultPublicIP = "106.193.147.98"
)

var routes = map[string]string{
	"api.login":        "/rest/auth/angelbroking/user/v1/loginByPassword",
	"api.logout":       "/rest/secure/angelbroking/user/v1/logout",
	"api.token":        "/rest/auth/angelbroking/jwt/v1/generateTokens",
	"api.candle.data":  "/rest/secure/angelbroking/historical/v1/getCandleData",
	"api.search.scrip": "/rest/secure/angelbroking/order/v1/searchScrip",
}

// Error codes SmartAPI returns for a dead session.
var tokenErrorCodes = map[string]bool{"AG8001": true, "AG8002": true, "AB1010": true}

// ErrTokenExpired matches an APIError caused by an invalid or expired session.
var ErrTokenExpired = errors.New("smartapi: session token expired")

// APIError is a SmartAPI response with status=false or an HTTP error code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("smartapi: %s (code=%s http=%d)", e.Message, e.Code, e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	return target == ErrTokenExpired && (tokenErrorCodes[e.Code] || e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusUnauthorized)
}

func NewSmartConnect(cfg Config) *SmartConnect {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	if cfg.UserType == "" {
		cfg.UserType = "USER"
	}
	if cfg.SourceID == "" {
		cfg.SourceID = "WEB"
	}
	if cfg.ClientPublicIP == "" {
		cfg.ClientPublicIP = defaultPublicIP
	}
	if cfg.ClientLocalIP == "" {
		cfg.ClientLocalIP = firstNonEmpty(localIP(), "127.0.0.1")
	}
	if cfg.ClientMAC == "" {
		cfg.ClientMAC = firstNonEmpty(macAddress(), "00:11:22:33:44:55")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &SmartConnect{
		apiKey:         cfg.APIKey,
		rootURL:        strings.TrimRight(cfg.RootURL, "/"),
		userType:       cfg.UserType,
		sourceID:       cfg.SourceID,
		clientPublicIP: cfg.ClientPublicIP,
		clientLocalIP:  cfg.ClientLocalIP,
		clientMAC:      cfg.ClientMAC,
		httpClient:     client,
		accessToken:    cfg.AccessToken,
		refreshToken:   cfg.RefreshToken,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok && !ipn.IP.IsLoopback() && ipn.IP.To4() != nil {
			return ipn.IP.String()
		}
	}
	return ""
}

func macAddress() string {
	ifs, _ := net.Interfaces()
	for _, ifc := range ifs {
		if len(ifc.HardwareAddr) > 0 {
			return ifc.HardwareAddr.String()
		}
	}
	return ""
}

// ---- Helpers ----

func (sc *SmartConnect) requestHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("X-ClientLocalIP", sc.clientLocalIP)
	h.Set("X-ClientPublicIP", sc.clientPublicIP)
	h.Set("X-MACAddress", sc.clientMAC)
	h.Set("X-PrivateKey", sc.apiKey)
	h.Set("X-UserType", sc.userType)
	h.Set("X-SourceID", sc.sourceID)
	if tok := sc.AccessToken(); tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}
	return h
}

// envelope is the common SmartAPI response wrapper.
type envelope struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorcode"`
	Data      json.RawMessage `json:"data"`
}

// post sends params to route and decodes the envelope's data into out.
func (sc *SmartConnect) post(ctx context.Context, route string, params any, out any) error {
	uri, ok := routes[route]
	if !ok {
		return fmt.Errorf("unknown route: %s", route)
	}
	b, err := json.Marshal(params)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.rootURL+uri, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header = sc.requestHeaders()

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("couldn't parse JSON response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !env.Status {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: env.ErrorCode, Message: env.Message}
		if errors.Is(apiErr, ErrTokenExpired) && sc.SessionExpiryHook != nil {
			sc.SessionExpiryHook()
		}
		return apiErr
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", route, err)
	}
	return nil
}

// ---- Setters/Getters ----

func (sc *SmartConnect) AccessToken() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.accessToken
}

func (sc *SmartConnect) FeedToken() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.feedToken
}

func (sc *SmartConnect) UserID() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.userID
}

func (sc *SmartConnect) setTokens(t Session) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if t.JWTToken != "" {
		sc.accessToken = t.JWTToken
	}
	if t.RefreshToken != "" {
		sc.refreshToken = t.RefreshToken
	}
	if t.FeedToken != "" {
		sc.feedToken = t.FeedToken
	}
}

// ---- Session ----

// Session holds the tokens returned by a login or token refresh.
type Session struct {
	JWTToken     string `json:"jwtToken"`
	RefreshToken string `json:"refreshToken"`
	FeedToken    string `json:"feedToken"`
}

// GenerateSession logs in with the client code, PIN and a current TOTP code
// and stores the returned tokens.
func (sc *SmartConnect) GenerateSession(ctx context.Context, clientCode, password, totp string) (Session, error) {
	var s Session
	params := map[string]string{"clientcode": clientCode, "password": password, "totp": totp}
	if err := sc.post(ctx, "api.login", params, &s); err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if s.JWTToken == "" {
		return Session{}, errors.New("login: empty jwt token")
	}
	sc.setTokens(s)
	sc.mu.Lock()
	sc.userID = clientCode
	sc.mu.Unlock()
	return s, nil
}

// GenerateToken exchanges the stored refresh token for a new access token.
func (sc *SmartConnect) GenerateToken(ctx context.Context) (Session, error) {
	sc.mu.RLock()
	rt := sc.refreshToken
	sc.mu.RUnlock()
	if rt == "" {
		return Session{}, errors.New("refresh: no refresh token")
	}
	var s Session
	if err := sc.post(ctx, "api.token", map[string]string{"refreshToken": rt}, &s); err != nil {
		return Session{}, fmt.Errorf("refresh: %w", err)
	}
	sc.setTokens(s)
	return s, nil
}

// TerminateSession logs the client out.
func (sc *SmartConnect) TerminateSession(ctx context.Context) error {
	return sc.post(ctx, "api.logout", map[string]string{"clientcode": sc.UserID()}, nil)
}

// ---- Market data ----

// Candle intervals accepted by GetCandleData.
const (
	IntervalOneMinute = "ONE_MINUTE"
	IntervalOneHour   = "ONE_HOUR"
	IntervalOneDay    = "ONE_DAY"
)

const candleTimeLayout = "2006-01-02 15:04"

// CandleRequest selects a historical candle range for one instrument.
type CandleRequest struct {
	Exchange    string
	SymbolToken string
	Interval    string
	From, To    time.Time
}

// Candle is one OHLCV row.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// UnmarshalJSON decodes SmartAPI's positional row
// ["2024-01-01T00:00:00+05:30", open, high, low, close, volume].
func (c *Candle) UnmarshalJSON(b []byte) error {
	var row []json.RawMessage
	if err := json.Unmarshal(b, &row); err != nil {
		return err
	}
	if len(row) < 6 {
		return fmt.Errorf("candle row has %d fields, want 6", len(row))
	}
	var ts string
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return fmt.Errorf("candle time: %w", err)
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return fmt.Errorf("candle time: %w", err)
	}
	c.Time = t
	for i, dst := range []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume} {
		if err := json.Unmarshal(row[i+1], dst); err != nil {
			return fmt.Errorf("candle field %d: %w", i+1, err)
		}
	}
	return nil
}

// GetCandleData fetches historical candles, oldest first.
func (sc *SmartConnect) GetCandleData(ctx context.Context, r CandleRequest) ([]Candle, error) {
	params := map[string]string{
		"exchange":    r.Exchange,
		"symboltoken": r.SymbolToken,
		"interval":    r.Interval,
		"fromdate":    r.From.Format(candleTimeLayout),
		"todate":      r.To.Format(candleTimeLayout),
	}
	var out []Candle
	if err := sc.post(ctx, "api.candle.data", params, &out); err != nil {
		return nil, fmt.Errorf("candles %s/%s: %w", r.Exchange, r.SymbolToken, err)
	}
	return out, nil
}

// Scrip is one search result.
type Scrip struct {
	Exchange      string `json:"exchange"`
	TradingSymbol string `json:"tradingsymbol"`
	SymbolToken   string `json:"symboltoken"`
}

// SearchScrip looks up instruments whose trading symbol matches query.
func (sc *SmartConnect) SearchScrip(ctx context.Context, exchange, query string) ([]Scrip, error) {
	var out []Scrip
	if err := sc.post(ctx, "api.search.scrip", map[string]string{"exchange": exchange, "searchscrip": query}, &out); err != nil {
		return nil, fmt.Errorf("search %s: %w", query, err)
	}
	return out, nil
}
