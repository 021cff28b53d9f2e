package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pricemesh/pricemesh/chainlink"
	"github.com/pricemesh/pricemesh/config"
	"github.com/pricemesh/pricemesh/feed"
	"github.com/pricemesh/pricemesh/monitor"
	v1 "github.com/pricemesh/pricemesh/router/v1"
)

const (
	logLevelJSON = "json"
	logLevelText = "text"

	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
)

var rootCmd = &cobra.Command{
	Use:   "pricemesh [config-file]",
	Args:  cobra.ExactArgs(1),
	Short: "pricemesh serves an aggregated multi-venue reference price",
	Long: `pricemesh connects to a set of exchange websocket feeds, aggregates
them into a single manipulation-resistant reference price and serves it over a
REST API, with optional oracle comparison and external price verification.`,
	RunE: pricemeshCmdHandler,
}

func init() {
	rootCmd.PersistentFlags().String(flagLogLevel, zerolog.InfoLevel.String(), "logging level")
	rootCmd.PersistentFlags().String(flagLogFormat, logLevelText, "logging format; must be either json or text")

	rootCmd.AddCommand(getProbeCmd())
	rootCmd.AddCommand(getCaptureCmd())
	rootCmd.AddCommand(getDiscoverCmd())
	rootCmd.AddCommand(getRecordCmd())
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getCmdLogger builds the logger from the persistent logging flags.
func getCmdLogger(cmd *cobra.Command) (zerolog.Logger, error) {
	logLvlStr, err := cmd.Flags().GetString(flagLogLevel)
	if err != nil {
		return zerolog.Logger{}, err
	}

	logLvl, err := zerolog.ParseLevel(logLvlStr)
	if err != nil {
		return zerolog.Logger{}, err
	}

	logFormatStr, err := cmd.Flags().GetString(flagLogFormat)
	if err != nil {
		return zerolog.Logger{}, err
	}

	var logWriter io.Writer
	switch strings.ToLower(logFormatStr) {
	case logLevelJSON:
		logWriter = os.Stderr

	case logLevelText:
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}

	default:
		return zerolog.Logger{}, fmt.Errorf("invalid logging format: %s", logFormatStr)
	}

	return zerolog.New(logWriter).Level(logLvl).With().Timestamp().Logger(), nil
}

// trapSignal will listen for any OS signal and cancel the context to
// gracefully shutdown and exit.
func trapSignal(cancel context.CancelFunc, logger zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)

	signal.Notify(sigCh, syscall.SIGTERM)
	signal.Notify(sigCh, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("caught signal; shutting down...")
		cancel()
	}()
}

// newOracleProbe builds the chainlink probe from config. Credentials come
// from the environment; without them the probe polls its REST fallback.
func newOracleProbe(logger zerolog.Logger, cfg config.OracleConfig) *chainlink.Probe {
	return chainlink.New(logger, chainlink.Config{
		APIKey:       cfg.APIKey,
		APISecret:    cfg.APISecret,
		Testnet:      cfg.Testnet,
		StreamID:     cfg.StreamID,
		PollInterval: time.Duration(cfg.PollIntervalMs) * time.Millisecond,
	})
}

func pricemeshCmdHandler(cmd *cobra.Command, args []string) error {
	logger, err := getCmdLogger(cmd)
	if err != nil {
		return err
	}

	// optional .env for API credentials
	_ = godotenv.Load()

	cfg, err := config.ParseConfig(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// listen for and trap any OS signal to gracefully shutdown and exit
	trapSignal(cancel, logger)

	priceFeed, err := feed.New(logger, cfg.FeedOptions())
	if err != nil {
		return err
	}

	if cfg.Oracle.Enabled {
		probe := newOracleProbe(logger, cfg.Oracle)
		probe.Start(ctx)
		defer probe.Stop()
		priceFeed.AttachOracle(probe)
	}

	if err := priceFeed.Start(ctx); err != nil {
		return err
	}
	defer priceFeed.Stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Monitor.Enabled {
		feedMonitor := monitor.New(logger, cfg.Monitor, priceFeed, cfg.Feed.MaxStalenessMs)
		g.Go(func() error {
			feedMonitor.Start(ctx)
			return nil
		})
	}

	g.Go(func() error {
		return startServer(ctx, logger, cfg, priceFeed)
	})

	return g.Wait()
}

func startServer(ctx context.Context, logger zerolog.Logger, cfg config.Config, priceFeed *feed.Feed) error {
	rtr := mux.NewRouter()
	v1Router := v1.New(logger, cfg, priceFeed)
	v1Router.RegisterRoutes(rtr, v1.APIPathPrefix)

	writeTimeout, readTimeout := cfg.ServerTimeouts()
	srv := &http.Server{
		Handler:      rtr,
		Addr:         cfg.Server.ListenAddr,
		WriteTimeout: writeTimeout,
		ReadTimeout:  readTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		logger.Info().Str("listen_addr", cfg.Server.ListenAddr).Msg("shutting down API server...")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Err(err).Msg("failed to gracefully shut down API server")
		}
	}()

	logger.Info().Str("listen_addr", cfg.Server.ListenAddr).Msg("starting API server...")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
