package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/antonio-prism/prism-brain/internal/exposure"
)

var (
	expClientID string
	expFormat   string
	expCurrency string
)

var exposureCmd = &cobra.Command{
	Use:   "exposure",
	Short: "Summarize saved assessments into monetary exposure",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if expFormat != "table" && expFormat != "csv" {
			return eris.Errorf("unsupported format %q (table or csv)", expFormat)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}
		recs, err := st.ListAssessments(ctx, expClientID)
		if err != nil {
			return err
		}

		sum := exposure.Aggregate(recs)
		if expFormat == "csv" {
			return writeExposureCSV(cmd.OutOrStdout(), sum)
		}
		formatExposure(cmd.OutOrStdout(), sum, expCurrency)
		return nil
	},
}

func init() {
	exposureCmd.Flags().StringVar(&expClientID, "client-id", "", "client id")
	exposureCmd.Flags().StringVar(&expFormat, "format", "table", "output format: table or csv")
	exposureCmd.Flags().StringVar(&expCurrency, "currency", "EUR", "currency for amounts")
	_ = exposureCmd.MarkFlagRequired("client-id")
	rootCmd.AddCommand(exposureCmd)
}

func formatExposure(out io.Writer, sum exposure.Summary, currency string) {
	_, _ = fmt.Fprintf(out, "Total exposure: %s across %d assessments\n", formatCurrency(sum.Total, currency), len(sum.Records))

	sections := []struct {
		title   string
		buckets []exposure.Bucket
	}{
		{"DOMAIN", exposure.Ranked(sum.ByDomain, sum.Total)},
		{"PROCESS", exposure.Ranked(sum.ByProcess, sum.Total)},
		{"RISK", exposure.Ranked(sum.ByRisk, sum.Total)},
	}
	for _, sec := range sections {
		_, _ = fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "%s\tEXPOSURE\tSHARE\n", sec.title)
		for _, b := range sec.buckets {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", truncate(b.Name, 40), formatCurrency(b.Exposure, currency), formatPct(b.Share, 1))
		}
		_ = w.Flush()
	}
}

func writeExposureCSV(out io.Writer, sum exposure.Summary) error {
	w := csv.NewWriter(out)
	_ = w.Write([]string{
		"client_id", "process_id", "process_name", "risk_id", "risk_name", "domain",
		"criticality", "vulnerability", "resilience", "downtime", "probability", "exposure",
	})
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, r := range sum.Records {
		_ = w.Write([]string{
			r.ClientID, r.ProcessID, r.ProcessName, r.RiskID, r.RiskName, string(r.Domain),
			num(r.Criticality), num(r.Vulnerability), num(r.Resilience), num(r.Downtime), num(r.Probability), num(r.Exposure),
		})
	}
	w.Flush()
	return eris.Wrap(w.Error(), "write csv")
}
