package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antonio-prism/prism-brain/internal/model"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the signal cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Cache.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("cache purged", zap.Int("removed", n))
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries\n", n)
		return nil
	},
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache freshness per category",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		fresh, err := env.Cache.CacheFreshness(ctx)
		if err != nil {
			return err
		}
		formatFreshness(cmd.OutOrStdout(), fresh)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePurgeCmd, cacheStatusCmd)
	rootCmd.AddCommand(cacheCmd)
}

func formatFreshness(out io.Writer, fresh []model.CacheFreshness) {
	if len(fresh) == 0 {
		_, _ = fmt.Fprintln(out, "Cache is empty")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CATEGORY\tENTRIES\tEXPIRED\tOLDEST\tNEWEST")
	for _, f := range fresh {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			f.Category, f.Entries, f.Expired,
			f.Oldest.UTC().Format(time.RFC3339), f.Newest.UTC().Format(time.RFC3339))
	}
	_ = w.Flush()
}
