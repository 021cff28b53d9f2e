package chainlink

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	psync "github.com/pricemesh/pricemesh/pkg/sync"
	"github.com/pricemesh/pricemesh/util/krakenrest"
)

// BTCUSDStreamID is the BTC/USD Data Stream on mainnet.
const BTCUSDStreamID = "0x00039d9e45394f473ab1f050a1b963e6b05351e52d71e507509ada0c95ed75b8"

const (
	wsURLMainnet   = "wss://ws.dataengine.chain.link"
	wsURLTestnet   = "wss://ws.testnet-dataengine.chain.link"
	restURLMainnet = "https://api.dataengine.chain.link"
	restURLTestnet = "https://api.testnet-dataengine.chain.link"

	krakenFallbackPair = "XBTUSD"

	reconnectPause      = 2 * time.Second
	wsPingInterval      = 30 * time.Second
	defaultPollInterval = time.Second
	restTimeout         = 5 * time.Second
)

// benchmarkScale converts the stream's fixed-point benchmarkPrice to a float.
// Crypto streams carry 18 decimals.
var benchmarkScale = new(big.Float).SetFloat64(1e18)

type (
	// Config holds the probe settings. When APIKey and APISecret are both
	// set the probe streams Chainlink Data Streams reports; otherwise it
	// polls Kraken's public REST ticker.
	Config struct {
		APIKey    string
		APISecret string
		Testnet   bool
		StreamID  string
		// PollInterval is the fallback polling cadence.
		PollInterval time.Duration

		// WSURL, RestURL and KrakenURL override the production endpoints.
		WSURL     string
		RestURL   string
		KrakenURL string
	}

	// Probe maintains the latest oracle reference price in the background.
	// Price never blocks; callers sample whatever the probe last saw.
	Probe struct {
		logger  zerolog.Logger
		cfg     Config
		kraken  *krakenrest.Client
		breaker *gobreaker.CircuitBreaker
		client  *http.Client
		closer  *psync.Closer
		cancel  context.CancelFunc
		started atomic.Bool

		mtx       sync.RWMutex
		price     float64
		updatedAt int64 // unix ms
		connected bool
	}

	// reportEnvelope wraps both the WS notification and the REST latest
	// report; only the REST body carries a decoded benchmark price.
	reportEnvelope struct {
		Report struct {
			FeedID         string `json:"feedID"`
			BenchmarkPrice string `json:"benchmarkPrice"`
		} `json:"report"`
	}
)

// New creates an oracle probe. Start must be called before Price returns
// anything.
func New(logger zerolog.Logger, cfg Config) *Probe {
	if cfg.StreamID == "" {
		cfg.StreamID = BTCUSDStreamID
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.WSURL == "" {
		cfg.WSURL = wsURLMainnet
		if cfg.Testnet {
			cfg.WSURL = wsURLTestnet
		}
	}
	if cfg.RestURL == "" {
		cfg.RestURL = restURLMainnet
		if cfg.Testnet {
			cfg.RestURL = restURLTestnet
		}
	}

	return &Probe{
		logger: logger.With().Str("module", "chainlink").Logger(),
		cfg:    cfg,
		kraken: krakenrest.NewClient(cfg.KrakenURL),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "oracle-fallback",
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		client: &http.Client{Timeout: restTimeout},
		closer: psync.NewCloser(),
	}
}

// UsingDataStreams reports whether the probe has live Data Streams
// credentials and an open stream; false means the Kraken fallback is in use.
func (p *Probe) UsingDataStreams() bool {
	if !p.hasCredentials() {
		return false
	}
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.connected
}

// Price returns the latest oracle price, its update timestamp in unix
// milliseconds, and whether any observation exists yet.
func (p *Probe) Price() (float64, int64, bool) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	if p.updatedAt == 0 {
		return 0, 0, false
	}
	return p.price, p.updatedAt, true
}

// Start launches the background feed. It is a no-op after the first call.
func (p *Probe) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	if p.hasCredentials() {
		p.logger.Info().Bool("testnet", p.cfg.Testnet).Msg("starting data streams feed")
		go p.runDataStreams(ctx)
	} else {
		p.logger.Info().
			Dur("poll_interval", p.cfg.PollInterval).
			Msg("no data streams credentials, polling kraken rest")
		go p.runFallback(ctx)
	}
}

// Stop terminates the background feed and waits for it to wind down.
func (p *Probe) Stop() {
	if !p.started.Load() {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	<-p.closer.Done()
}

func (p *Probe) hasCredentials() bool {
	return p.cfg.APIKey != "" && p.cfg.APISecret != ""
}

func (p *Probe) setPrice(price float64) {
	p.mtx.Lock()
	p.price = price
	p.updatedAt = time.Now().UnixMilli()
	p.mtx.Unlock()
}

func (p *Probe) setConnected(connected bool) {
	p.mtx.Lock()
	p.connected = connected
	p.mtx.Unlock()
}

func (p *Probe) runDataStreams(ctx context.Context) {
	defer p.closer.Close()

	for ctx.Err() == nil {
		if err := p.streamOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Err(err).Msg("data streams session ended, reconnecting")
		}
		p.setConnected(false)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectPause):
		}
	}
}

// streamOnce holds one websocket session: every report notification triggers
// a REST fetch of the decoded latest report.
func (p *Probe) streamOnce(ctx context.Context) error {
	path := "/api/v1/ws?feedIDs=" + p.cfg.StreamID
	header := authHeaders(p.cfg.APIKey, p.cfg.APISecret, path, time.Now().UnixMilli())

	dialer := websocket.Dialer{HandshakeTimeout: restTimeout}
	conn, resp, err := dialer.DialContext(ctx, p.cfg.WSURL+path, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("data streams dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("data streams dial failed: %w", err)
	}
	defer conn.Close()

	p.setConnected(true)
	p.logger.Info().Msg("connected to data streams")

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(
					websocket.PingMessage, nil, time.Now().Add(restTimeout),
				); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, bz, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var envelope reportEnvelope
		if err := json.Unmarshal(bz, &envelope); err != nil || envelope.Report.FeedID == "" {
			continue
		}

		// The streamed fullReport is ABI-encoded; the REST endpoint returns
		// it decoded, so fetch that instead of carrying a schema decoder.
		price, err := p.fetchLatestReport(ctx)
		if err != nil {
			p.logger.Err(err).Msg("failed to fetch latest report")
			continue
		}
		p.setPrice(price)
	}
}

func (p *Probe) fetchLatestReport(ctx context.Context) (float64, error) {
	path := "/api/v1/reports/latest?feedID=" + p.cfg.StreamID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.RestURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header = authHeaders(p.cfg.APIKey, p.cfg.APISecret, path, time.Now().UnixMilli())

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("reports/latest returned status %d", resp.StatusCode)
	}

	var envelope reportEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return 0, err
	}
	return decodeBenchmarkPrice(envelope.Report.BenchmarkPrice)
}

// decodeBenchmarkPrice converts the stream's 18-decimal integer string.
func decodeBenchmarkPrice(raw string) (float64, error) {
	scaled, ok := new(big.Float).SetString(raw)
	if !ok {
		return 0, fmt.Errorf("invalid benchmark price %q", raw)
	}
	price, _ := new(big.Float).Quo(scaled, benchmarkScale).Float64()
	if price <= 0 {
		return 0, fmt.Errorf("non-positive benchmark price %q", raw)
	}
	return price, nil
}

func (p *Probe) runFallback(ctx context.Context) {
	defer p.closer.Close()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		price, err := p.breaker.Execute(func() (interface{}, error) {
			return p.kraken.LastPrice(ctx, krakenFallbackPair)
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Debug().Err(err).Msg("fallback poll failed")
		} else {
			p.setPrice(price.(float64))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
