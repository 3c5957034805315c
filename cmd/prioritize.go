package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/pareto"
	"github.com/antonio-prism/prism-brain/internal/probability"
	"github.com/antonio-prism/prism-brain/internal/relevance"
)

var (
	prioCatalog   string
	prioClient    string
	prioThreshold float64
	prioMinScore  float64
	prioApplyCrit bool
)

var prioritizeCmd = &cobra.Command{
	Use:   "prioritize",
	Short: "Select critical processes and relevant risks for assessment",
	Long:  "Selects the processes that carry the threshold share of daily criticality, the risks at or above the minimum relevance score, and reports the assessment workload.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		risks, cf, err := loadInputs(prioCatalog, prioClient)
		if err != nil {
			return err
		}
		if cf == nil {
			return eris.New("--client is required")
		}

		sel := cf.WithDefaults(cfg.Prioritization.ProcessThresholdPct, cfg.Prioritization.MinRiskScore)
		if cmd.Flags().Changed("threshold") {
			sel.ProcessThresholdPct = prioThreshold
		}
		if cmd.Flags().Changed("min-score") {
			sel.MinRiskScore = prioMinScore
		}
		if prioApplyCrit {
			if n := cf.FillCriticality(cfg.Prioritization.WorkingDays); n > 0 {
				zap.L().Info("filled default criticality from revenue", zap.Int("processes", n))
			}
		}

		out := cmd.OutOrStdout()

		procs, err := pareto.SelectProcesses(cf.Processes, sel)
		switch {
		case errors.Is(err, pareto.ErrUndefinedSelection):
			_, _ = fmt.Fprintln(out, "No process criticality set; process selection is undefined.")
		case err != nil:
			return err
		default:
			formatProcesses(out, procs, cf.Client.Currency)
		}

		selected := relevance.Select(relevance.NewScorer(risks).Capped(cf.Client, sel), sel)

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		byID := make(map[string]model.RiskEvent, len(risks))
		for _, r := range risks {
			byID[r.ID] = r
		}
		chosen := make([]model.RiskEvent, 0, len(selected))
		for _, s := range selected {
			chosen = append(chosen, byID[s.RiskID])
		}
		probs := env.Resolver.CalculateAll(ctx, chosen, cf.Client)

		_, _ = fmt.Fprintln(out)
		formatPrioritizedRisks(out, chosen, probs, cf.Client)

		n := pareto.Combinations(len(procs.Selected), len(chosen))
		_, _ = fmt.Fprintf(out, "\n%d processes x %d risks = %d assessments\n", len(procs.Selected), len(chosen), n)
		return nil
	},
}

func init() {
	prioritizeCmd.Flags().StringVar(&prioCatalog, "catalog", "", "risk catalog file (YAML or JSON)")
	prioritizeCmd.Flags().StringVar(&prioClient, "client", "", "client file with processes (YAML or JSON)")
	prioritizeCmd.Flags().Float64Var(&prioThreshold, "threshold", 0, "cumulative criticality percentage (default from config)")
	prioritizeCmd.Flags().Float64Var(&prioMinScore, "min-score", 0, "minimum relevance score (default from config)")
	prioritizeCmd.Flags().BoolVar(&prioApplyCrit, "apply-default-criticality", false, "set zero process criticality to revenue / working days / process count before selecting")
	rootCmd.AddCommand(prioritizeCmd)
}

func formatProcesses(out io.Writer, sel pareto.ProcessSelection, currency string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PROCESS\tNAME\tCRITICALITY/DAY\tCUMULATIVE\tSELECTED")
	_, _ = fmt.Fprintln(w, "-------\t----\t---------------\t----------\t--------")
	for _, r := range sel.Ranked {
		mark := ""
		if r.Selected {
			mark = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\n",
			r.Item.ID,
			truncate(r.Item.Name, 40),
			formatCurrency(r.Weight, currency),
			r.CumulativePct,
			mark,
		)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "%d of %d processes cover %.1f%% of criticality\n", len(sel.Selected), len(sel.Ranked), sel.CoveredPct)
}

func formatPrioritizedRisks(out io.Writer, risks []model.RiskEvent, probs map[string]model.ProbabilityResult, client model.ClientProfile) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tRISK\tDOMAIN\tSUPER\tPROBABILITY\tLEVEL\tPRIORITY")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----\t-----------\t-----\t--------")
	for _, r := range risks {
		p := probs[r.ID].Probability
		super := ""
		if r.IsSuperRisk {
			super = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.0f\n",
			r.ID,
			truncate(r.Name, 40),
			r.Domain,
			super,
			formatPct(p, 1),
			probability.LevelOf(p),
			relevance.PriorityScore(r, client, p),
		)
	}
	_ = w.Flush()
}
