package cmd

import (
	"context"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/pricemesh/pricemesh/capture"
	"github.com/pricemesh/pricemesh/config"
	"github.com/pricemesh/pricemesh/feed"
)

func getCaptureCmd() *cobra.Command {
	captureCmd := &cobra.Command{
		Use:   "capture [config-file]",
		Args:  cobra.ExactArgs(1),
		Short: "Runs the feed and appends price rows to per-timeframe CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := getCmdLogger(cmd)
			if err != nil {
				return err
			}

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

			timeframes := make([]string, 0, len(capture.Timeframes))
			for tf := range capture.Timeframes {
				timeframes = append(timeframes, tf)
			}
			sort.Strings(timeframes)

			writers := make([]*capture.Writer, 0, len(timeframes))
			for _, tf := range timeframes {
				w, err := capture.NewWriter(logger, cfg.Capture.DataDir, cfg.Asset, tf)
				if err != nil {
					return err
				}
				defer w.Close()
				writers = append(writers, w)
			}

			if err := priceFeed.WaitHealthy(ctx, 30*time.Second); err != nil {
				logger.Warn().Err(err).Msg("capturing before the feed is fully healthy")
			}

			ticker := time.NewTicker(time.Duration(cfg.Capture.IntervalMs) * time.Millisecond)
			defer ticker.Stop()

			logger.Info().
				Str("data_dir", cfg.Capture.DataDir).
				Strs("timeframes", timeframes).
				Msg("starting capture...")

			for {
				select {
				case <-ctx.Done():
					return nil

				case <-ticker.C:
					report := priceFeed.GetReport()
					if report == nil {
						continue
					}
					for _, w := range writers {
						if err := w.Append(report); err != nil {
							logger.Err(err).Msg("failed to append capture row")
						}
					}
				}
			}
		},
	}

	return captureCmd
}
