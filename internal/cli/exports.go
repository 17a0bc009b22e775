package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/exports"
	"github.com/couchcryptid/taiwan-data-etl/internal/pipeline"
	"github.com/couchcryptid/taiwan-data-etl/internal/render"
	"github.com/go-gota/gota/dataframe"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

const (
	defaultCleanRaw  = "data/raw/ic_exports_comparison_uncomtrade_2013_2024.csv"
	defaultCleanOut  = "data/processed/ic_exports_comparison_clean_2013_2024.csv"
	defaultPlotRaw   = "data/raw/taiwan_exports_by_country_2013_2025.csv"
	defaultMapping   = "data/mappings/country_name_map_full.json"
	defaultProcessed = "data/processed"
	defaultOutDir    = "output"
)

func newExportsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "Taiwan IC (HS 8542) export statistics",
	}
	cmd.AddCommand(newExportsCleanCommand(a), newExportsPlotCommand(a))
	return cmd
}

func newExportsCleanCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean a UN Comtrade export table (.csv or .xlsx)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, out := a.v.GetString("raw"), a.v.GetString("out")
			summary, err := runJob(cmd.Context(), a, pipeline.NewCleanJob(raw, out))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleaned file saved to: %s (%d of %d rows kept)\n", out, summary.RowsOut, summary.RowsIn)
			return nil
		},
	}
	cmd.Flags().String("raw", defaultCleanRaw, "raw Comtrade table")
	cmd.Flags().String("out", defaultCleanOut, "cleaned CSV")
	return cmd
}

func newExportsPlotCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Rank the top 10 IC export markets and draw the trend charts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := exports.Options{
				YearMin:       a.v.GetInt("year-min"),
				YearMax:       a.v.GetInt("year-max"),
				IncludeOthers: a.v.GetBool("include-others") && !a.v.GetBool("exclude-others"),
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			names, err := exports.LoadCountryMap(a.v.GetString("mapping"))
			if err != nil {
				return err
			}

			var paths exports.ReportPaths
			job := pipeline.NewPlotJob(a.v.GetString("raw"), names, opts,
				a.v.GetString("processed"), a.v.GetString("outdir"), &paths, a.logger)

			report, err := captureReport(cmd, a, job)
			if err != nil {
				return err
			}

			charts := pipeline.ChartsLoader{OutDir: a.v.GetString("outdir")}
			w := cmd.OutOrStdout()
			printTopMarkets(w, report)
			fmt.Fprintf(w, "Wrote %s\nWrote %s\nWrote %s\nWrote %s\n",
				paths.Average, paths.Trend, charts.TrendPNGPath(), charts.BarRacePath())
			return nil
		},
	}
	defaults := exports.DefaultOptions()
	cmd.Flags().String("raw", defaultPlotRaw, "export table by country (.csv or .xlsx)")
	cmd.Flags().String("mapping", defaultMapping, "country name mapping (JSON or YAML)")
	cmd.Flags().String("processed", defaultProcessed, "directory for the average and trend tables")
	cmd.Flags().String("outdir", defaultOutDir, "directory for the charts")
	cmd.Flags().Int("year-min", defaults.YearMin, "first year")
	cmd.Flags().Int("year-max", defaults.YearMax, "last year")
	cmd.Flags().Bool("include-others", false, "include the 'Others' bucket in the top 10")
	cmd.Flags().Bool("exclude-others", false, "exclude the 'Others' bucket (default)")
	cmd.MarkFlagsMutuallyExclusive("include-others", "exclude-others")
	return cmd
}

// captureReport runs the plot job with an extra loader that keeps the
// report for the summary table.
func captureReport(cmd *cobra.Command, a *app, job pipeline.Job[dataframe.DataFrame, domain.MarketReport]) (domain.MarketReport, error) {
	var report domain.MarketReport
	job.Load = append(job.Load, pipeline.LoadFunc[domain.MarketReport](func(_ context.Context, r domain.MarketReport) error {
		report = r
		return nil
	}))
	if _, err := runJob(cmd.Context(), a, job); err != nil {
		return domain.MarketReport{}, err
	}
	return report, nil
}

// printTopMarkets prints the ranking with columns aligned for wide
// characters.
func printTopMarkets(w io.Writer, r domain.MarketReport) {
	const marketWidth = 28
	fmt.Fprintf(w, "Top %d markets, average %d-%d (USD bn)\n", len(r.Top), r.YearMin, r.YearMax)
	fmt.Fprintf(w, "%4s  %s  %10s\n", "#", runewidth.FillRight("Market", marketWidth), "Avg")
	for i, m := range r.Top {
		name := runewidth.Truncate(m.Market, marketWidth, "…")
		fmt.Fprintf(w, "%4d  %s  %10.2f\n", i+1, runewidth.FillRight(name, marketWidth), m.AvgUSD/render.Billion)
	}
}
