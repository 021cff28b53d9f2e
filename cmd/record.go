package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pricemesh/pricemesh/capture"
	"github.com/pricemesh/pricemesh/config"
)

const flagRecordDuration = "duration"

func getRecordCmd() *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record [config-file] [slug]",
		Args:  cobra.ExactArgs(2),
		Short: "Records the L2 orderbook stream of a Polymarket market to gzip JSONL",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := getCmdLogger(cmd)
			if err != nil {
				return err
			}

			duration, err := cmd.Flags().GetDuration(flagRecordDuration)
			if err != nil {
				return err
			}

			cfg, err := config.ParseConfig(args[0])
			if err != nil {
				return err
			}
			slug := args[1]

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if duration > 0 {
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			// listen for and trap any OS signal to gracefully shutdown and exit
			trapSignal(cancel, logger)

			discovery := capture.NewDiscovery(logger, "")
			market, err := discovery.MarketBySlug(ctx, slug)
			if err != nil {
				return fmt.Errorf("failed to resolve market %s: %w", slug, err)
			}

			recorder, err := capture.NewRecorder(logger, cfg.Capture.DataDir, slug, "")
			if err != nil {
				return err
			}
			defer recorder.Close()

			logger.Info().
				Str("slug", slug).
				Str("path", recorder.Path()).
				Msg("recording L2 events...")

			if err := recorder.Record(ctx, market.UpToken, market.DownToken); err != nil && ctx.Err() == nil {
				return err
			}

			fmt.Printf("recorded %d events to %s\n", recorder.EventCount(), recorder.Path())
			return nil
		},
	}

	recordCmd.Flags().Duration(flagRecordDuration, 0, "stop recording after this long; 0 records until interrupted")

	return recordCmd
}
