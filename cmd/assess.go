package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antonio-prism/prism-brain/internal/exposure"
	"github.com/antonio-prism/prism-brain/internal/model"
)

var (
	assessRec     model.ExposureRecord
	assessDomain  string
	assessCatalog string
	assessClient  string
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Save one process-risk assessment",
	Long: "Upserts the assessment for (client, process, risk). When --probability is omitted and a catalog is given, " +
		"the probability is resolved the same way as the probability command.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rec := assessRec
		if assessDomain != "" {
			d, ok := model.ParseDomain(assessDomain)
			if !ok {
				return eris.Errorf("unknown domain %q", assessDomain)
			}
			rec.Domain = d
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if assessCatalog != "" {
			risks, cf, err := loadInputs(assessCatalog, assessClient)
			if err != nil {
				return err
			}
			var risk *model.RiskEvent
			for i := range risks {
				if risks[i].ID == rec.RiskID {
					risk = &risks[i]
					break
				}
			}
			if risk == nil {
				return eris.Errorf("risk %s not found in catalog", rec.RiskID)
			}
			if rec.RiskName == "" {
				rec.RiskName = risk.Name
			}
			if rec.Domain == "" {
				rec.Domain = risk.Domain
			}
			if !cmd.Flags().Changed("probability") {
				client := model.ClientProfile{ID: rec.ClientID}
				if cf != nil {
					client = cf.Client
				}
				res := env.Resolver.CalculateAll(ctx, []model.RiskEvent{*risk}, client)[risk.ID]
				rec.Probability = res.Probability
				zap.L().Info("resolved probability",
					zap.String("risk_id", risk.ID),
					zap.Float64("probability", res.Probability),
					zap.String("provenance", string(res.Provenance)),
				)
			}
		}

		rec = exposure.Assess(rec)
		if err := env.Store.SaveAssessment(ctx, rec); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	f := assessCmd.Flags()
	f.StringVar(&assessRec.ClientID, "client-id", "", "client id")
	f.StringVar(&assessRec.ProcessID, "process", "", "process id")
	f.StringVar(&assessRec.ProcessName, "process-name", "", "process name")
	f.StringVar(&assessRec.RiskID, "risk", "", "risk id")
	f.StringVar(&assessRec.RiskName, "risk-name", "", "risk name (default from catalog)")
	f.StringVar(&assessDomain, "domain", "", "risk domain (default from catalog)")
	f.Float64Var(&assessRec.Criticality, "criticality", 0, "criticality per day")
	f.Float64Var(&assessRec.Vulnerability, "vulnerability", 0, "vulnerability, 0 to 1")
	f.Float64Var(&assessRec.Resilience, "resilience", 0, "resilience, 0 to 1")
	f.Float64Var(&assessRec.Downtime, "downtime", 0, "expected downtime in days")
	f.Float64Var(&assessRec.Probability, "probability", 0, "probability, 0 to 1")
	f.StringVar(&assessCatalog, "catalog", "", "risk catalog used to fill names and probability")
	f.StringVar(&assessClient, "client", "", "client file used to resolve probability")
	_ = assessCmd.MarkFlagRequired("client-id")
	_ = assessCmd.MarkFlagRequired("process")
	_ = assessCmd.MarkFlagRequired("risk")
	rootCmd.AddCommand(assessCmd)
}
