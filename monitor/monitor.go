package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pricemesh/pricemesh/config"
)

// Monitor periodically verifies the feed's report against an external API
// and pushes critical findings to Slack.
type Monitor struct {
	logger         zerolog.Logger
	feed           Feed
	cmc            *CoinMarketCapClient
	slack          *SlackClient
	interval       time.Duration
	maxStalenessMs int64
}

// New wires a Monitor from config. maxStalenessMs is the feed's staleness
// bound, used to flag reports the feed still serves but should not trust.
func New(logger zerolog.Logger, cfg config.MonitorConfig, feed Feed, maxStalenessMs int64) *Monitor {
	return &Monitor{
		logger:         logger.With().Str("module", "monitor").Logger(),
		feed:           feed,
		cmc:            NewCoinMarketCapClient(cfg.CoinmarketcapApiKey, ""),
		slack:          NewSlackClient(logger, cfg.Slack),
		interval:       time.Duration(cfg.IntervalSec) * time.Second,
		maxStalenessMs: maxStalenessMs,
	}
}

// Start blocks, verifying on every interval tick until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info().Dur("interval", m.interval).Msg("starting feed monitor")

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.interval):
			m.slack.Notify(m.verifyOnce(ctx))
		}
	}
}

func (m *Monitor) verifyOnce(ctx context.Context) []PriceError {
	apiPrices, err := m.cmc.Quotes(ctx, []string{m.feed.Asset()})
	if err != nil {
		apiPrices = make(map[string]float64)
		return append(
			VerifyReport(m.feed, apiPrices, m.maxStalenessMs),
			PriceError{ErrorType: API_DOWN, Message: err.Error(), occurredAt: time.Now()},
		)
	}
	return VerifyReport(m.feed, apiPrices, m.maxStalenessMs)
}
