package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pricemesh/pricemesh/config"
	"github.com/pricemesh/pricemesh/feed"
)

const flagProbeDuration = "duration"

func getProbeCmd() *cobra.Command {
	probeCmd := &cobra.Command{
		Use:   "probe [config-file]",
		Args:  cobra.ExactArgs(1),
		Short: "Connects to all configured venues and reports which ones are down",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := getCmdLogger(cmd)
			if err != nil {
				return err
			}

			duration, err := cmd.Flags().GetDuration(flagProbeDuration)
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

			if err := priceFeed.Start(ctx); err != nil {
				return err
			}
			defer priceFeed.Stop()

			// wait for every venue to connect and stream some prices
			select {
			case <-ctx.Done():
			case <-time.After(duration):
			}

			stats := priceFeed.FeedStats()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "VENUE\tSTATUS\tLAST PRICE\tAGE\tMESSAGES\tERRORS\tRECONNECTS")
			var down []string
			for _, vs := range stats {
				age := "-"
				price := "-"
				if vs.LastPrice > 0 {
					age = (time.Duration(vs.AgeMs) * time.Millisecond).String()
					price = fmt.Sprintf("%.2f", vs.LastPrice)
				}
				fmt.Fprintf(
					w,
					"%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					vs.Venue, vs.Status, price, age, vs.MessageCount, vs.ErrorCount, vs.ReconnectCount,
				)
				if vs.LastPrice <= 0 {
					down = append(down, string(vs.Venue))
				}
			}
			w.Flush()

			if len(down) < 1 {
				fmt.Println("No downtime detected")
				return nil
			}
			fmt.Println("Missing prices for venues: ", down)
			return nil
		},
	}

	probeCmd.Flags().Duration(flagProbeDuration, 15*time.Second, "how long to probe venues before sampling stats")

	return probeCmd
}
