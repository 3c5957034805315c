package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/relevance"
)

var (
	relCatalog  string
	relClient   string
	relMinScore float64
	relCapped   bool
)

var relevanceCmd = &cobra.Command{
	Use:   "relevance",
	Short: "Rank catalog risks by relevance to a client",
	RunE: func(cmd *cobra.Command, args []string) error {
		risks, cf, err := loadInputs(relCatalog, relClient)
		if err != nil {
			return err
		}
		if cf == nil {
			return eris.New("--client is required")
		}

		sel := cf.WithDefaults(cfg.Prioritization.ProcessThresholdPct, cfg.Prioritization.MinRiskScore)
		if cmd.Flags().Changed("min-score") {
			sel.MinRiskScore = relMinScore
		}

		scorer := relevance.NewScorer(risks)
		var scores []model.RelevanceScore
		if relCapped {
			scores = scorer.Capped(cf.Client, sel)
		} else {
			scores = scorer.Score(cf.Client, sel)
		}
		selected := relevance.Select(scores, sel)

		out := cmd.OutOrStdout()
		formatRelevance(out, scores, sel.MinRiskScore)
		_, _ = fmt.Fprintf(out, "\n%d of %d risks at or above %.0f\n", len(selected), len(scores), sel.MinRiskScore)
		return nil
	},
}

func init() {
	relevanceCmd.Flags().StringVar(&relCatalog, "catalog", "", "risk catalog file (YAML or JSON)")
	relevanceCmd.Flags().StringVar(&relClient, "client", "", "client file (YAML or JSON)")
	relevanceCmd.Flags().Float64Var(&relMinScore, "min-score", 0, "minimum score to select (default from config)")
	relevanceCmd.Flags().BoolVar(&relCapped, "capped", false, "cap scores at 100")
	rootCmd.AddCommand(relevanceCmd)
}

func formatRelevance(out io.Writer, scores []model.RelevanceScore, minScore float64) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tID\tRISK\tDOMAIN\tSCORE\tBASE\tINDUSTRY\tSECTOR\tGEO\tEXPORT\tSUPER\t")
	_, _ = fmt.Fprintln(w, "----\t--\t----\t------\t-----\t----\t--------\t------\t---\t------\t-----\t")
	for i, s := range scores {
		mark := ""
		if s.Score >= minScore {
			mark = "*"
		}
		c := s.Components
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f\t%.1f\t%.0f\t%.0f\t%.0f\t%.0f\t%.0f\t%s\n",
			i+1, s.RiskID, truncate(s.RiskName, 40), s.Domain, s.Score,
			c.Baseline, c.Industry, c.Sector, c.Geography, c.Export, c.SuperRisk, mark,
		)
	}
	_ = w.Flush()
}
