package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/pricemesh/pricemesh/feed"
	"github.com/pricemesh/pricemesh/feed/types"
	"github.com/pricemesh/pricemesh/feed/venue"
)

const (
	defaultListenAddr      = "0.0.0.0:7171"
	defaultSrvWriteTimeout = 15 * time.Second
	defaultSrvReadTimeout  = 15 * time.Second

	// SampleConfigPath is the checked-in example configuration.
	SampleConfigPath = "pricemesh.example.toml"
)

var (
	validate = validator.New()

	// ErrEmptyConfigPath defines a sentinel error for an empty config path.
	ErrEmptyConfigPath = errors.New("empty configuration file path")
)

type (
	// Config defines all necessary pricemesh configuration parameters.
	Config struct {
		Asset     string            `mapstructure:"asset" validate:"required"`
		Venues    []types.VenueName `mapstructure:"venues" validate:"required,gt=0"`
		Feed      FeedConfig        `mapstructure:"feed"`
		Server    Server            `mapstructure:"server"`
		Oracle    OracleConfig      `mapstructure:"oracle"`
		Monitor   MonitorConfig     `mapstructure:"monitor"`
		Capture   CaptureConfig     `mapstructure:"capture"`
		Endpoints []venue.Endpoint  `mapstructure:"endpoint" validate:"dive"`
	}

	// FeedConfig carries the aggregation policy and liveness timings. Any
	// field left zero in the file is replaced by its default at load time.
	FeedConfig struct {
		MaxStalenessMs        int64   `mapstructure:"max_staleness_ms" validate:"gt=0"`
		MaxDeviationPct       float64 `mapstructure:"max_deviation_pct" validate:"gte=0"`
		MinSources            int     `mapstructure:"min_sources" validate:"gte=1"`
		TightSpreadPct        float64 `mapstructure:"tight_spread_pct" validate:"gte=0"`
		DivergenceWarningPct  float64 `mapstructure:"divergence_warning_pct" validate:"gte=0"`
		DivergenceCriticalPct float64 `mapstructure:"divergence_critical_pct" validate:"gte=0"`
		ConnectTimeoutSec     float64 `mapstructure:"connect_timeout_sec" validate:"gt=0"`
		PingIntervalSec       float64 `mapstructure:"ping_interval_sec" validate:"gt=0"`
		PingTimeoutSec        float64 `mapstructure:"ping_timeout_sec" validate:"gt=0"`
		ReconnectDelaySec     float64 `mapstructure:"reconnect_delay_sec" validate:"gt=0"`
		MaxReconnectDelaySec  float64 `mapstructure:"max_reconnect_delay_sec" validate:"gt=0"`
		ReconnectBackoff      float64 `mapstructure:"reconnect_backoff" validate:"gte=1"`
	}

	// Server defines the API server configuration.
	Server struct {
		ListenAddr     string   `mapstructure:"listen_addr"`
		WriteTimeout   string   `mapstructure:"write_timeout"`
		ReadTimeout    string   `mapstructure:"read_timeout"`
		VerboseCORS    bool     `mapstructure:"verbose_cors"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	}

	// OracleConfig selects the reference-oracle probe path. Credentials come
	// from the CHAINLINK_API_KEY and CHAINLINK_API_SECRET environment
	// variables, never from the config file; without them the probe falls
	// back to REST polling.
	OracleConfig struct {
		Enabled        bool   `mapstructure:"enabled"`
		Testnet        bool   `mapstructure:"testnet"`
		StreamID       string `mapstructure:"stream_id"`
		PollIntervalMs int64  `mapstructure:"poll_interval_ms" validate:"gte=0"`

		APIKey    string `mapstructure:"-"`
		APISecret string `mapstructure:"-"`
	}

	// MonitorConfig enables the periodic feed-vs-API price verification.
	MonitorConfig struct {
		Enabled             bool        `mapstructure:"enabled"`
		IntervalSec         int64       `mapstructure:"interval_sec" validate:"gte=0"`
		CoinmarketcapApiKey string      `mapstructure:"coinmarketcap_api_key"`
		Slack               SlackConfig `mapstructure:"slack"`
	}

	// SlackConfig carries the alert delivery settings.
	SlackConfig struct {
		SlackToken   string `mapstructure:"slack_token"`
		SlackChannel string `mapstructure:"slack_channel"`
	}

	// CaptureConfig configures the market tick recorder.
	CaptureConfig struct {
		DataDir    string `mapstructure:"data_dir"`
		IntervalMs int64  `mapstructure:"interval_ms" validate:"gte=0"`
	}
)

// setDefaults fills every unset field with its documented default so a
// minimal config file still yields a fully operable instance.
func (c *Config) setDefaults() {
	if c.Asset == "" {
		c.Asset = "BTC"
	}
	if len(c.Venues) == 0 {
		c.Venues = venue.All()
	}

	if c.Feed.MaxStalenessMs == 0 {
		c.Feed.MaxStalenessMs = 2000
	}
	if c.Feed.MaxDeviationPct == 0 {
		c.Feed.MaxDeviationPct = 1.0
	}
	if c.Feed.MinSources == 0 {
		c.Feed.MinSources = 2
	}
	if c.Feed.TightSpreadPct == 0 {
		c.Feed.TightSpreadPct = 0.1
	}
	if c.Feed.DivergenceWarningPct == 0 {
		c.Feed.DivergenceWarningPct = 0.3
	}
	if c.Feed.DivergenceCriticalPct == 0 {
		c.Feed.DivergenceCriticalPct = 0.5
	}
	if c.Feed.ConnectTimeoutSec == 0 {
		c.Feed.ConnectTimeoutSec = 5
	}
	if c.Feed.PingIntervalSec == 0 {
		c.Feed.PingIntervalSec = 20
	}
	if c.Feed.PingTimeoutSec == 0 {
		c.Feed.PingTimeoutSec = 10
	}
	if c.Feed.ReconnectDelaySec == 0 {
		c.Feed.ReconnectDelaySec = 1
	}
	if c.Feed.MaxReconnectDelaySec == 0 {
		c.Feed.MaxReconnectDelaySec = 30
	}
	if c.Feed.ReconnectBackoff == 0 {
		c.Feed.ReconnectBackoff = 1.5
	}

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaultListenAddr
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = defaultSrvWriteTimeout.String()
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = defaultSrvReadTimeout.String()
	}

	if c.Oracle.PollIntervalMs == 0 {
		c.Oracle.PollIntervalMs = 1000
	}
	if c.Monitor.IntervalSec == 0 {
		c.Monitor.IntervalSec = 60
	}
	if c.Capture.DataDir == "" {
		c.Capture.DataDir = "data"
	}
	if c.Capture.IntervalMs == 0 {
		c.Capture.IntervalMs = 1000
	}
}

// endpointValidation is custom validation for the venue Endpoint struct.
func endpointValidation(sl validator.StructLevel) {
	endpoint := sl.Current().Interface().(venue.Endpoint)

	if len(endpoint.Name) < 1 || (len(endpoint.Rest) < 1 && len(endpoint.Websocket) < 1) {
		sl.ReportError(endpoint, "endpoint", "Endpoint", "unsupportedEndpointType", "")
	}
	if !knownVenue(endpoint.Name) {
		sl.ReportError(endpoint.Name, "name", "Name", "unsupportedEndpointVenue", "")
	}
}

func knownVenue(name types.VenueName) bool {
	for _, v := range venue.All() {
		if v == name {
			return true
		}
	}
	return false
}

// Validate returns an error if the Config object is invalid.
func (c Config) Validate() error {
	for _, v := range c.Venues {
		if !knownVenue(v) {
			return fmt.Errorf("unsupported venue: %s", v)
		}
	}
	if c.Feed.DivergenceCriticalPct <= c.Feed.TightSpreadPct {
		return fmt.Errorf("divergence_critical_pct must exceed tight_spread_pct")
	}
	if c.Feed.MaxReconnectDelaySec < c.Feed.ReconnectDelaySec {
		return fmt.Errorf("max_reconnect_delay_sec must be at least reconnect_delay_sec")
	}
	if _, err := time.ParseDuration(c.Server.WriteTimeout); err != nil {
		return fmt.Errorf("invalid server write timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Server.ReadTimeout); err != nil {
		return fmt.Errorf("invalid server read timeout: %w", err)
	}

	validate.RegisterStructValidation(endpointValidation, venue.Endpoint{})
	return validate.Struct(c)
}

// FeedOptions converts the file representation into the feed package's
// runtime configuration.
func (c Config) FeedOptions() feed.Config {
	return feed.Config{
		Asset:                 c.Asset,
		Venues:                append([]types.VenueName(nil), c.Venues...),
		Endpoints:             append([]venue.Endpoint(nil), c.Endpoints...),
		MaxStalenessMs:        c.Feed.MaxStalenessMs,
		MaxDeviationPct:       c.Feed.MaxDeviationPct,
		MinSources:            c.Feed.MinSources,
		TightSpreadPct:        c.Feed.TightSpreadPct,
		DivergenceWarningPct:  c.Feed.DivergenceWarningPct,
		DivergenceCriticalPct: c.Feed.DivergenceCriticalPct,
		Runner: venue.RunnerConfig{
			ConnectTimeout:      secondsToDuration(c.Feed.ConnectTimeoutSec),
			PingInterval:        secondsToDuration(c.Feed.PingIntervalSec),
			PingTimeout:         secondsToDuration(c.Feed.PingTimeoutSec),
			ReconnectDelay:      secondsToDuration(c.Feed.ReconnectDelaySec),
			MaxReconnectDelay:   secondsToDuration(c.Feed.MaxReconnectDelaySec),
			ReconnectMultiplier: c.Feed.ReconnectBackoff,
			ParseErrThreshold:   venue.DefaultRunnerConfig().ParseErrThreshold,
		},
	}
}

// ServerTimeouts parses the server timeout strings, which Validate has
// already checked.
func (c Config) ServerTimeouts() (write, read time.Duration) {
	write, _ = time.ParseDuration(c.Server.WriteTimeout)
	read, _ = time.ParseDuration(c.Server.ReadTimeout)
	return write, read
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// LogLevel parses lvl, falling back to info on unknown input.
func LogLevel(lvl string, logger zerolog.Logger) zerolog.Level {
	parsed, err := zerolog.ParseLevel(lvl)
	if err != nil {
		logger.Warn().Str("level", lvl).Msg("unknown log level, using info")
		return zerolog.InfoLevel
	}
	return parsed
}
