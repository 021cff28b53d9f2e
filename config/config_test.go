package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pricemesh/pricemesh/feed/types"
	"github.com/pricemesh/pricemesh/feed/venue"
)

const fullConfig = `
asset = "BTC"
venues = [
  "binance",
  "coinbase",
  "kraken",
]

[feed]
max_staleness_ms = 1500
min_sources = 3
tight_spread_pct = 0.2
divergence_critical_pct = 0.8

[server]
listen_addr = "127.0.0.1:7171"
verbose_cors = true
allowed_origins = ["*"]

[oracle]
enabled = true
poll_interval_ms = 500

[monitor]
enabled = true
interval_sec = 30
coinmarketcap_api_key = "CMC_KEY"

[monitor.slack]
slack_token = "xoxb-test"
slack_channel = "feed-alerts"

[[endpoint]]
name = "kraken"
websocket = "ws.kraken.test"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricemesh.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(writeConfig(t, fullConfig))
	require.NoError(t, err)

	require.Equal(t, "BTC", cfg.Asset)
	require.Equal(t,
		[]types.VenueName{venue.VenueBinance, venue.VenueCoinbase, venue.VenueKraken},
		cfg.Venues,
	)

	// explicit values survive
	require.Equal(t, int64(1500), cfg.Feed.MaxStalenessMs)
	require.Equal(t, 3, cfg.Feed.MinSources)
	require.Equal(t, 0.2, cfg.Feed.TightSpreadPct)
	require.Equal(t, 0.8, cfg.Feed.DivergenceCriticalPct)

	// and unset ones get defaults
	require.Equal(t, 1.0, cfg.Feed.MaxDeviationPct)
	require.Equal(t, 1.5, cfg.Feed.ReconnectBackoff)
	require.Equal(t, defaultSrvWriteTimeout.String(), cfg.Server.WriteTimeout)

	require.True(t, cfg.Oracle.Enabled)
	require.Equal(t, int64(500), cfg.Oracle.PollIntervalMs)
	require.Equal(t, "feed-alerts", cfg.Monitor.Slack.SlackChannel)

	require.Len(t, cfg.Endpoints, 1)
	require.Equal(t, venue.VenueKraken, cfg.Endpoints[0].Name)
	require.Equal(t, "ws.kraken.test", cfg.Endpoints[0].Websocket)
}

func TestParseConfigMinimal(t *testing.T) {
	cfg, err := ParseConfig(writeConfig(t, "asset = \"BTC\"\n"))
	require.NoError(t, err)
	require.Equal(t, venue.All(), cfg.Venues)
	require.Equal(t, int64(2000), cfg.Feed.MaxStalenessMs)
	require.Equal(t, 2, cfg.Feed.MinSources)
}

func TestParseConfigEmptyPath(t *testing.T) {
	_, err := ParseConfig("")
	require.ErrorIs(t, err, ErrEmptyConfigPath)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		var cfg Config
		cfg.setDefaults()
		return cfg
	}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults_are_valid",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown_venue",
			mutate:  func(c *Config) { c.Venues = append(c.Venues, "mtgox") },
			wantErr: "unsupported venue",
		},
		{
			name: "critical_not_above_tight",
			mutate: func(c *Config) {
				c.Feed.DivergenceCriticalPct = c.Feed.TightSpreadPct
			},
			wantErr: "divergence_critical_pct",
		},
		{
			name: "backoff_ceiling_below_floor",
			mutate: func(c *Config) {
				c.Feed.MaxReconnectDelaySec = c.Feed.ReconnectDelaySec / 2
			},
			wantErr: "max_reconnect_delay_sec",
		},
		{
			name:    "bad_server_timeout",
			mutate:  func(c *Config) { c.Server.ReadTimeout = "fifteen" },
			wantErr: "server read timeout",
		},
		{
			name: "endpoint_without_address",
			mutate: func(c *Config) {
				c.Endpoints = []venue.Endpoint{{Name: venue.VenueKraken}}
			},
			wantErr: "Endpoint",
		},
		{
			name: "endpoint_unknown_venue",
			mutate: func(c *Config) {
				c.Endpoints = []venue.Endpoint{{Name: "mtgox", Websocket: "ws.test"}}
			},
			wantErr: "unsupportedEndpointVenue",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestFeedOptions(t *testing.T) {
	var cfg Config
	cfg.setDefaults()

	opts := cfg.FeedOptions()
	require.Equal(t, "BTC", opts.Asset)
	require.Equal(t, venue.All(), opts.Venues)
	require.Equal(t, int64(2000), opts.MaxStalenessMs)
	require.Equal(t, 5*time.Second, opts.Runner.ConnectTimeout)
	require.Equal(t, 20*time.Second, opts.Runner.PingInterval)
	require.Equal(t, 30*time.Second, opts.Runner.MaxReconnectDelay)
	require.Equal(t, 1.5, opts.Runner.ReconnectMultiplier)
	require.NoError(t, opts.Validate())
}

func TestServerTimeouts(t *testing.T) {
	var cfg Config
	cfg.setDefaults()
	write, read := cfg.ServerTimeouts()
	require.Equal(t, defaultSrvWriteTimeout, write)
	require.Equal(t, defaultSrvReadTimeout, read)
}
