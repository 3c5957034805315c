package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antonio-prism/prism-brain/internal/signals"
)

var (
	signalsIndustry string
	signalsRegion   string
	signalsLocation string
	signalsForce    bool
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Fetch external risk signals for a client context",
	Long:  "Fetches weather, news, economic, cyber and operational signals through the cache, live APIs and simulation, and prints where each came from.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sc := signals.Context{Industry: signalsIndustry, Region: signalsRegion, Location: signalsLocation}
		if sc.Region == "" {
			sc.Region = sc.Location
		}

		sums := signals.Summarize(env.Hub.FetchAll(ctx, sc, signalsForce))
		formatSignals(cmd.OutOrStdout(), sums)

		for name, state := range env.Hub.BreakerStates() {
			zap.L().Debug("live source breaker", zap.String("source", name), zap.String("state", state))
		}
		return nil
	},
}

func init() {
	signalsCmd.Flags().StringVar(&signalsIndustry, "industry", "", "client industry")
	signalsCmd.Flags().StringVar(&signalsRegion, "region", "", "client region (defaults to location)")
	signalsCmd.Flags().StringVar(&signalsLocation, "location", "", "client location, e.g. a city")
	signalsCmd.Flags().BoolVar(&signalsForce, "force", false, "skip cached values")
	rootCmd.AddCommand(signalsCmd)
}

func formatSignals(out io.Writer, sums []signals.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CATEGORY\tQUALITY\tSOURCE\tVALUE\tFETCHED")
	_, _ = fmt.Fprintln(w, "--------\t-------\t------\t-----\t-------")
	for _, s := range sums {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n",
			s.Category,
			s.Quality,
			s.Source,
			s.Primary,
			s.FetchedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
