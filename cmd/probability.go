package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/antonio-prism/prism-brain/internal/catalog"
	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/probability"
)

var (
	probCatalog string
	probClient  string
	probDomain  string
	probExplain bool
	probJSON    bool
)

var probabilityCmd = &cobra.Command{
	Use:   "probability",
	Short: "Compute risk probabilities for a client",
	Long:  "Resolves a probability for every catalog risk, trying the remote backend, then the local four-factor engine, then the catalog baseline.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		risks, cf, err := loadInputs(probCatalog, probClient)
		if err != nil {
			return err
		}
		if cf == nil {
			return eris.New("--client is required")
		}
		risks, err = catalog.FilterDomain(risks, probDomain)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		results := env.Resolver.CalculateAll(ctx, risks, cf.Client)

		out := cmd.OutOrStdout()
		if probJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		formatProbabilities(out, risks, results)
		formatProbabilitySummary(out, probability.Summarize(results))
		if probExplain {
			_, _ = fmt.Fprintln(out)
			for _, r := range sortedByProbability(risks, results) {
				_, _ = fmt.Fprintln(out, probability.Explain(r, results[r.ID]))
			}
		}
		return nil
	},
}

func init() {
	probabilityCmd.Flags().StringVar(&probCatalog, "catalog", "", "risk catalog file (YAML or JSON)")
	probabilityCmd.Flags().StringVar(&probClient, "client", "", "client file (YAML or JSON)")
	probabilityCmd.Flags().StringVar(&probDomain, "domain", "", "only risks in this domain")
	probabilityCmd.Flags().BoolVar(&probExplain, "explain", false, "describe the drivers of each result")
	probabilityCmd.Flags().BoolVar(&probJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(probabilityCmd)
}

// sortedByProbability orders risks by descending probability, keeping
// catalog order for ties.
func sortedByProbability(risks []model.RiskEvent, results map[string]model.ProbabilityResult) []model.RiskEvent {
	out := make([]model.RiskEvent, len(risks))
	copy(out, risks)
	sort.SliceStable(out, func(a, b int) bool {
		return results[out[a].ID].Probability > results[out[b].ID].Probability
	})
	return out
}

func formatProbabilities(out io.Writer, risks []model.RiskEvent, results map[string]model.ProbabilityResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tRISK\tDOMAIN\tPROBABILITY\tLEVEL\tCONFIDENCE\tSOURCES\tFROM")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----------\t-----\t----------\t-------\t----")
	for _, r := range sortedByProbability(risks, results) {
		res := results[r.ID]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID,
			truncate(r.Name, 40),
			r.Domain,
			formatPct(res.Probability, 1),
			probability.LevelOf(res.Probability),
			formatPct(res.Confidence, 0),
			res.DataSourcesUsed,
			res.Provenance,
		)
	}
	_ = w.Flush()
}

func formatProbabilitySummary(out io.Writer, s probability.Summary) {
	_, _ = fmt.Fprintf(out, "\n%d risks, average %s: %d high, %d medium, %d low\n",
		s.Count,
		formatPct(s.Average, 1),
		s.Levels[probability.LevelHigh],
		s.Levels[probability.LevelMedium],
		s.Levels[probability.LevelLow],
	)
}
