package venue

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pricemesh/pricemesh/feed/types"
	psync "github.com/pricemesh/pricemesh/pkg/sync"
)

const (
	defaultConnectTimeout      = 5 * time.Second
	defaultPingInterval        = 20 * time.Second
	defaultPingTimeout         = 10 * time.Second
	defaultReconnectDelay      = 1 * time.Second
	defaultMaxReconnectDelay   = 30 * time.Second
	defaultReconnectMultiplier = 1.5
	defaultParseErrThreshold   = 10

	// maxWriteWait bounds subscription and keepalive writes.
	maxWriteWait = 5 * time.Second
)

type (
	// RunnerConfig carries the liveness timing knobs shared by all runners.
	RunnerConfig struct {
		ConnectTimeout      time.Duration
		PingInterval        time.Duration
		PingTimeout         time.Duration
		ReconnectDelay      time.Duration
		MaxReconnectDelay   time.Duration
		ReconnectMultiplier float64
		ParseErrThreshold   int
	}

	// Runner drives one Adapter through its connection lifecycle: dial,
	// subscribe, stream, and reconnect with exponential backoff. It owns the
	// socket and its FeedState exclusively; snapshots are published into the
	// shared fanout channel without blocking.
	Runner struct {
		logger  zerolog.Logger
		adapter Adapter
		cfg     RunnerConfig
		out     chan types.Snapshot
		closer  *psync.Closer

		mtx            sync.RWMutex
		status         types.FeedStatus
		lastSnapshot   types.Snapshot
		messageCount   uint64
		errorCount     uint64
		reconnectCount uint64
		currentBackoff time.Duration
	}
)

// DefaultRunnerConfig returns the default liveness timings.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		ConnectTimeout:      defaultConnectTimeout,
		PingInterval:        defaultPingInterval,
		PingTimeout:         defaultPingTimeout,
		ReconnectDelay:      defaultReconnectDelay,
		MaxReconnectDelay:   defaultMaxReconnectDelay,
		ReconnectMultiplier: defaultReconnectMultiplier,
		ParseErrThreshold:   defaultParseErrThreshold,
	}
}

// newBackoffSchedule builds the reconnect schedule min(delay·multᶰ, max)
// with no jitter. Reset returns it to the initial delay.
func newBackoffSchedule(cfg RunnerConfig) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.ReconnectDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = cfg.ReconnectMultiplier
	bo.MaxInterval = cfg.MaxReconnectDelay
	return bo
}

// NewRunner creates a Runner for adapter publishing into out.
func NewRunner(logger zerolog.Logger, adapter Adapter, cfg RunnerConfig, out chan types.Snapshot) *Runner {
	return &Runner{
		logger:         logger.With().Str("venue", adapter.Name().String()).Logger(),
		adapter:        adapter,
		cfg:            cfg,
		out:            out,
		closer:         psync.NewCloser(),
		status:         types.StatusIdle,
		currentBackoff: cfg.ReconnectDelay,
	}
}

// Run connects and streams until ctx is cancelled or Stop is called.
// Network failures are retried indefinitely with exponential backoff; the
// schedule resets once a connection streams its first snapshot.
func (r *Runner) Run(ctx context.Context) {
	defer r.setStatus(types.StatusStopped)

	bo := newBackoffSchedule(r.cfg)

	for {
		if r.stopped(ctx) {
			return
		}

		if err := r.streamOnce(ctx, bo); err != nil && !r.stopped(ctx) {
			r.logger.Warn().Err(err).Msg("disconnected")
		}

		if r.stopped(ctx) {
			return
		}

		wait := bo.NextBackOff()
		r.enterBackoff(wait)
		telemetryWebsocketReconnect(r.adapter.Name())

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		case <-r.closer.Done():
			return
		}
	}
}

// Stop signals the runner to shut down. It is idempotent and safe to call
// from any goroutine; the socket is closed by the read loop unwinding.
func (r *Runner) Stop() {
	r.closer.Close()
}

// Stats returns a point-in-time copy of the runner's health counters.
func (r *Runner) Stats() types.VenueStats {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	stats := types.VenueStats{
		Venue:            r.adapter.Name(),
		Status:           r.status.String(),
		Connected:        r.status == types.StatusStreaming,
		MessageCount:     r.messageCount,
		ErrorCount:       r.errorCount,
		ReconnectCount:   r.reconnectCount,
		CurrentBackoffMs: r.currentBackoff.Milliseconds(),
	}
	if !r.lastSnapshot.IsZero() {
		stats.LastPrice = r.lastSnapshot.Price
		stats.AgeMs = r.lastSnapshot.AgeMs(time.Now().UnixMilli())
	}
	return stats
}

// LastSnapshot returns the most recent snapshot, ok false before the first.
func (r *Runner) LastSnapshot() (types.Snapshot, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.lastSnapshot, !r.lastSnapshot.IsZero()
}

func (r *Runner) streamOnce(ctx context.Context, bo *backoff.ExponentialBackOff) error {
	r.setStatus(types.StatusConnecting)

	wsURL, preflight, err := r.adapter.ConnectURL(ctx)
	if err != nil {
		return err
	}

	pingInterval := r.cfg.PingInterval
	pingTimeout := r.cfg.PingTimeout
	if preflight != nil {
		if preflight.PingInterval > 0 {
			pingInterval = preflight.PingInterval
		}
		if preflight.PingTimeout > 0 {
			pingTimeout = preflight.PingTimeout
		}
	}

	dialer := websocket.Dialer{HandshakeTimeout: r.cfg.ConnectTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnavailableForLegalReasons {
			// A 451 never clears on retry; keep backing off but make the
			// cause visible in the logs.
			r.logger.Error().Msg("venue legally blocked from this network, check the endpoint override")
			return types.ErrVenueBlocked(r.adapter.Name(), resp.Status)
		}
		return types.ErrWebsocketDial(r.adapter.Name(), err)
	}
	defer conn.Close()

	r.setStatus(types.StatusSubscribing)
	for _, msg := range r.adapter.SubscriptionMsgs() {
		conn.SetWriteDeadline(time.Now().Add(maxWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			return types.ErrWebsocketSend(r.adapter.Name(), err)
		}
	}

	r.setStatus(types.StatusStreaming)
	r.logger.Info().Str("url", wsURL.Host).Msg("connected")

	return r.readLoop(ctx, conn, bo, pingInterval, pingTimeout)
}

// readLoop consumes frames until the socket breaks, the ping goes
// unanswered, or the runner stops. A missed keepalive surfaces as a read
// deadline expiry.
func (r *Runner) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	bo *backoff.ExponentialBackOff,
	pingInterval, pingTimeout time.Duration,
) error {
	readWait := pingInterval + pingTimeout
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go r.keepalive(ctx, conn, pingInterval, pingDone)

	streamed := false
	consecutiveParseErrs := 0

	for {
		if r.stopped(ctx) {
			return nil
		}

		_, bz, err := conn.ReadMessage()
		if err != nil {
			return types.ErrWebsocketRead(r.adapter.Name(), err)
		}
		conn.SetReadDeadline(time.Now().Add(readWait))

		snapshot, ok, err := r.adapter.ParseMessage(bz)
		if err != nil {
			r.countError()
			telemetryWebsocketError(r.adapter.Name())
			r.logger.Debug().Err(err).Msg("dropped malformed frame")

			consecutiveParseErrs++
			if consecutiveParseErrs > r.cfg.ParseErrThreshold {
				return types.ErrWebsocketRead(
					r.adapter.Name(),
					errors.New("consecutive parse error threshold exceeded"),
				)
			}
			continue
		}
		consecutiveParseErrs = 0
		if !ok {
			continue
		}

		if !streamed {
			// First snapshot of this connection proves the venue healthy
			// again; reset the reconnect schedule.
			streamed = true
			bo.Reset()
			r.resetBackoff()
		}

		r.record(snapshot)
		telemetryWebsocketMessage(r.adapter.Name())
		r.emit(snapshot)
	}
}

// keepalive sends the venue's ping frame every interval until done closes.
// Venues without an application-level ping get websocket control pings.
func (r *Runner) keepalive(ctx context.Context, conn *websocket.Conn, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			// Unblock the read loop promptly on cancellation.
			conn.Close()
			return
		case <-r.closer.Done():
			// Unblock the read loop promptly on Stop.
			conn.Close()
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(maxWriteWait))
			if msg, ok := r.adapter.PingMessage(); ok {
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			} else if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// emit publishes into the fanout without blocking. Tickers are latest-wins,
// so when the channel is full the oldest queued snapshot is dropped to make
// room.
func (r *Runner) emit(snapshot types.Snapshot) {
	for {
		select {
		case r.out <- snapshot:
			return
		default:
		}
		select {
		case <-r.out:
		default:
		}
	}
}

func (r *Runner) record(snapshot types.Snapshot) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.lastSnapshot = snapshot
	r.messageCount++
}

func (r *Runner) countError() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.errorCount++
}

func (r *Runner) setStatus(status types.FeedStatus) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.status = status
}

func (r *Runner) enterBackoff(wait time.Duration) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.status = types.StatusBackoff
	r.currentBackoff = wait
	r.reconnectCount++
}

func (r *Runner) resetBackoff() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.currentBackoff = r.cfg.ReconnectDelay
}

func (r *Runner) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-r.closer.Done():
		return true
	default:
		return false
	}
}
