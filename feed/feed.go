// Package feed aggregates live ticker streams from independent exchange
// venues into a single reference price with confidence and divergence
// statistics. Each venue runs its own websocket runner; the aggregator
// recomputes the report on every inbound snapshot.
package feed

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pricemesh/pricemesh/feed/types"
	"github.com/pricemesh/pricemesh/feed/venue"
	psync "github.com/pricemesh/pricemesh/pkg/sync"
)

const (
	defaultMaxStalenessMs        = 2000
	defaultMaxDeviationPct       = 1.0
	defaultMinSources            = 2
	defaultTightSpreadPct        = 0.1
	defaultDivergenceWarningPct  = 0.3
	defaultDivergenceCriticalPct = 0.5

	minFanoutSize = 16
)

type (
	// Config carries the aggregation policy and per-venue wiring for one
	// Feed.
	Config struct {
		Asset     string
		Venues    []types.VenueName
		Endpoints []venue.Endpoint

		MaxStalenessMs        int64
		MaxDeviationPct       float64
		MinSources            int
		TightSpreadPct        float64
		DivergenceWarningPct  float64
		DivergenceCriticalPct float64

		Runner venue.RunnerConfig
	}

	// OracleProbe supplies an independent reference price. Price reports the
	// latest value with its receipt time; ok is false before the first.
	OracleProbe interface {
		Price() (price float64, updatedAtMs int64, ok bool)
	}

	// Feed owns the venue runners, the fanout channel and the report slot.
	// Construct with New, then Start and Stop; both are idempotent.
	Feed struct {
		logger  zerolog.Logger
		cfg     Config
		venues  []types.VenueName
		runners map[types.VenueName]*venue.Runner
		fanout  chan types.Snapshot
		slot    types.ReportSlot
		oracle  OracleProbe

		closer  *psync.Closer
		cancel  context.CancelFunc
		group   *errgroup.Group
		started atomic.Bool

		windowMtx  sync.Mutex
		windowOpen float64
	}
)

// DefaultConfig returns a Config for asset over every registered venue with
// the default thresholds.
func DefaultConfig(asset string) Config {
	return Config{
		Asset:                 asset,
		Venues:                venue.All(),
		MaxStalenessMs:        defaultMaxStalenessMs,
		MaxDeviationPct:       defaultMaxDeviationPct,
		MinSources:            defaultMinSources,
		TightSpreadPct:        defaultTightSpreadPct,
		DivergenceWarningPct:  defaultDivergenceWarningPct,
		DivergenceCriticalPct: defaultDivergenceCriticalPct,
		Runner:                venue.DefaultRunnerConfig(),
	}
}

// Validate rejects configurations that cannot produce a feed, before any I/O.
func (c Config) Validate() error {
	if c.Asset == "" {
		return types.ErrConfigInvalid("asset cannot be empty")
	}
	if len(c.Venues) == 0 {
		return types.ErrConfigInvalid("venue list cannot be empty")
	}
	seen := make(map[types.VenueName]struct{}, len(c.Venues))
	for _, v := range c.Venues {
		if _, ok := seen[v]; ok {
			return types.ErrConfigInvalid("duplicate venue tag " + v.String())
		}
		seen[v] = struct{}{}
	}
	if c.MaxStalenessMs <= 0 {
		return types.ErrConfigInvalid("max staleness must be positive")
	}
	if c.MaxDeviationPct < 0 {
		return types.ErrConfigInvalid("max deviation cannot be negative")
	}
	if c.MinSources < 1 {
		return types.ErrConfigInvalid("min sources must be at least 1")
	}
	if c.TightSpreadPct < 0 || c.DivergenceCriticalPct <= c.TightSpreadPct {
		return types.ErrConfigInvalid("confidence bands must satisfy 0 <= tight < critical")
	}
	if c.Runner.ReconnectDelay <= 0 || c.Runner.MaxReconnectDelay < c.Runner.ReconnectDelay {
		return types.ErrConfigInvalid("reconnect delay ceiling must be at least the initial delay")
	}
	return nil
}

// New builds a Feed and its runners. Unknown venue tags fail here.
func New(logger zerolog.Logger, cfg Config) (*Feed, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	endpoints := make(map[types.VenueName]venue.Endpoint, len(cfg.Endpoints))
	for _, e := range cfg.Endpoints {
		endpoints[e.Name] = e
	}

	fanoutSize := 2 * len(cfg.Venues)
	if fanoutSize < minFanoutSize {
		fanoutSize = minFanoutSize
	}

	f := &Feed{
		logger:  logger.With().Str("module", "feed").Str("asset", cfg.Asset).Logger(),
		cfg:     cfg,
		venues:  append([]types.VenueName(nil), cfg.Venues...),
		runners: make(map[types.VenueName]*venue.Runner, len(cfg.Venues)),
		fanout:  make(chan types.Snapshot, fanoutSize),
		closer:  psync.NewCloser(),
	}

	for _, name := range cfg.Venues {
		adapter, err := venue.New(name, cfg.Asset, endpoints[name])
		if err != nil {
			return nil, err
		}
		f.runners[name] = venue.NewRunner(logger, adapter, cfg.Runner, f.fanout)
	}
	return f, nil
}

// AttachOracle wires an oracle probe for GetOracleSignal. Call before Start.
func (f *Feed) AttachOracle(p OracleProbe) {
	f.oracle = p
}

// Start launches every runner plus the aggregator and returns immediately.
// Calling Start on a started feed is a no-op.
func (f *Feed) Start(ctx context.Context) error {
	if !f.started.CompareAndSwap(false, true) {
		return nil
	}

	ctx, f.cancel = context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	f.group = g

	for _, name := range f.venues {
		runner := f.runners[name]
		g.Go(func() error {
			runner.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		f.runAggregator(ctx)
		return nil
	})

	f.logger.Info().Int("venues", len(f.venues)).Msg("feed started")
	return nil
}

// Stop shuts down every runner, drains the fanout and waits for the workers.
// It is idempotent.
func (f *Feed) Stop() {
	if !f.started.Load() {
		return
	}
	f.closer.Close()

	for _, runner := range f.runners {
		runner.Stop()
	}
	if f.cancel != nil {
		f.cancel()
	}
	if f.group != nil {
		f.group.Wait() //nolint:errcheck // workers only return nil
	}

	for {
		select {
		case <-f.fanout:
			continue
		default:
		}
		break
	}
	f.logger.Info().Msg("feed stopped")
}

// runAggregator recomputes the report on every inbound snapshot. The
// snapshot itself only triggers the pass; the gather always reads the latest
// per-venue state so ordering across venues is irrelevant.
func (f *Feed) runAggregator(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.closer.Done():
			return
		case <-f.fanout:
			f.recompute()
		}
	}
}

func (f *Feed) recompute() {
	snapshots := make([]types.Snapshot, 0, len(f.venues))
	for _, name := range f.venues {
		if s, ok := f.runners[name].LastSnapshot(); ok {
			snapshots = append(snapshots, s)
		}
	}

	report, err := aggregate(snapshots, nowMs(), f.cfg)
	if err != nil {
		telemetryDegradedCounter.Inc()
		f.logger.Debug().Err(err).Msg("aggregation aborted, keeping prior report")
		return
	}

	f.slot.SetReport(report)
	telemetrySourceGauge.Set(float64(report.SourceCount))
	telemetryPriceGauge.Set(report.Price)
	telemetrySpreadHistogram.Observe(report.SpreadPct)

	if report.DivergencePct > f.cfg.DivergenceWarningPct {
		f.logger.Warn().
			Float64("divergence_pct", report.DivergencePct).
			Float64("confidence", report.Confidence).
			Msg("elevated cross-venue divergence")
	}
}

// GetReport returns the latest report, or nil when none has been published
// or the last one has aged beyond twice the staleness bound.
func (f *Feed) GetReport() *types.PriceReport {
	report := f.slot.GetReport()
	if report == nil {
		return nil
	}
	if report.AgeMs(nowMs()) > 2*f.cfg.MaxStalenessMs {
		return nil
	}
	return report
}

// GetPrice returns the latest aggregated price, ok false when no fresh
// report exists.
func (f *Feed) GetPrice() (float64, bool) {
	if report := f.GetReport(); report != nil {
		return report.Price, true
	}
	return 0, false
}

// GetDivergence returns the latest cross-venue divergence percentage.
func (f *Feed) GetDivergence() (float64, bool) {
	if report := f.GetReport(); report != nil {
		return report.DivergencePct, true
	}
	return 0, false
}

// GetConfidence returns the latest confidence score in [0.5, 1.0].
func (f *Feed) GetConfidence() (float64, bool) {
	if report := f.GetReport(); report != nil {
		return report.Confidence, true
	}
	return 0, false
}

// GetUsdtPremium returns the latest USDT premium percentage.
func (f *Feed) GetUsdtPremium() (float64, bool) {
	if report := f.GetReport(); report != nil {
		return report.UsdtPremiumPct, true
	}
	return 0, false
}

// MarkWindowStart records the current aggregated price as the open of a new
// momentum window. ok is false when no fresh report exists; the prior window
// is kept in that case.
func (f *Feed) MarkWindowStart() bool {
	price, ok := f.GetPrice()
	if !ok {
		return false
	}
	f.windowMtx.Lock()
	f.windowOpen = price
	f.windowMtx.Unlock()
	return true
}

// GetMomentum returns the percent move of the current price against the last
// marked window open. ok is false before any window is marked or when no
// fresh report exists.
func (f *Feed) GetMomentum() (float64, bool) {
	f.windowMtx.Lock()
	open := f.windowOpen
	f.windowMtx.Unlock()
	if open <= 0 {
		return 0, false
	}
	price, ok := f.GetPrice()
	if !ok {
		return 0, false
	}
	return (price - open) / open * 100, true
}

// GetMomentumAbs returns the magnitude of GetMomentum.
func (f *Feed) GetMomentumAbs() (float64, bool) {
	momentum, ok := f.GetMomentum()
	return math.Abs(momentum), ok
}

// GetOracleSignal compares the current price against the attached oracle.
// ok is false when no oracle is attached or either price is missing.
func (f *Feed) GetOracleSignal() (OracleSignal, bool) {
	if f.oracle == nil {
		return OracleSignal{}, false
	}
	price, ok := f.GetPrice()
	if !ok {
		return OracleSignal{}, false
	}
	oraclePrice, updatedAtMs, ok := f.oracle.Price()
	if !ok {
		return OracleSignal{}, false
	}

	signal := ComputeOracleSignal(price, oraclePrice)
	signal.OracleAgeMs = nowMs() - updatedAtMs
	return signal, true
}

// FeedStats returns one health row per venue, in configured venue order.
func (f *Feed) FeedStats() []types.VenueStats {
	stats := make([]types.VenueStats, 0, len(f.venues))
	for _, name := range f.venues {
		stats = append(stats, f.runners[name].Stats())
	}
	return stats
}

// IsManipulationWarning reports divergence above the advisory threshold.
func (f *Feed) IsManipulationWarning() bool {
	d, ok := f.GetDivergence()
	return ok && d > f.cfg.DivergenceWarningPct
}

// IsManipulationCritical reports divergence above the critical threshold.
func (f *Feed) IsManipulationCritical() bool {
	d, ok := f.GetDivergence()
	return ok && d > f.cfg.DivergenceCriticalPct
}

// Asset returns the configured asset tag.
func (f *Feed) Asset() string {
	return f.cfg.Asset
}

// WaitHealthy blocks until a report is available or the timeout elapses.
// Useful for CLI flows that need a price before proceeding.
func (f *Feed) WaitHealthy(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, ok := f.GetPrice(); ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no aggregated price within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
