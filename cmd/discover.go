package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pricemesh/pricemesh/capture"
)

const (
	flagDiscoverAssets     = "assets"
	flagDiscoverTimeframes = "timeframes"
)

func getDiscoverCmd() *cobra.Command {
	discoverCmd := &cobra.Command{
		Use:   "discover",
		Args:  cobra.NoArgs,
		Short: "Prints the active Polymarket up/down markets for the given assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := getCmdLogger(cmd)
			if err != nil {
				return err
			}

			assets, err := cmd.Flags().GetStringSlice(flagDiscoverAssets)
			if err != nil {
				return err
			}

			timeframes, err := cmd.Flags().GetStringSlice(flagDiscoverTimeframes)
			if err != nil {
				return err
			}
			for _, tf := range timeframes {
				if _, ok := capture.Timeframes[tf]; !ok {
					return fmt.Errorf("unsupported timeframe: %s", tf)
				}
			}

			discovery := capture.NewDiscovery(logger, "")

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "SLUG\tUP\tDOWN\tVOLUME\tLIQUIDITY\tREMAINING")
			for _, asset := range assets {
				for _, tf := range timeframes {
					market, err := discovery.Market(cmd.Context(), asset, tf)
					if err != nil {
						logger.Err(err).
							Str("asset", asset).
							Str("timeframe", tf).
							Msg("failed to resolve market")
						continue
					}

					fmt.Fprintf(
						w,
						"%s\t%.3f\t%.3f\t%.0f\t%.0f\t%s\n",
						market.Slug,
						market.UpPrice,
						market.DownPrice,
						market.Volume,
						market.Liquidity,
						(time.Duration(market.TimeRemaining()) * time.Second).String(),
					)
				}
			}
			return w.Flush()
		},
	}

	discoverCmd.Flags().StringSlice(flagDiscoverAssets, []string{"btc"}, "assets to discover markets for")
	discoverCmd.Flags().StringSlice(flagDiscoverTimeframes, []string{"15m"}, "market timeframes: 5m, 15m or 1hr")

	return discoverCmd
}
