package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/taiwan-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/pipeline"
	"github.com/couchcryptid/taiwan-data-etl/internal/render"
	"github.com/spf13/cobra"
)

const (
	defaultCatalog   = "data/earthquakes/E-A0073-001.json"
	defaultQuakesCSV = "data/processed/taiwan_earthquakes.csv"
)

// ErrUnknownBox is returned for a --box value other than taiwan or nearshore.
var ErrUnknownBox = errors.New("unknown bounding box")

func newQuakesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quakes",
		Short: "Normalize earthquake catalogs (CWA or GDMS JSON) and map them",
	}
	cmd.PersistentFlags().String("catalog", defaultCatalog, "catalog JSON file")
	cmd.AddCommand(
		newQuakesNormalizeCommand(a),
		newQuakesMapCommand(a),
		newQuakesPublishCommand(a),
	)
	return cmd
}

func parseBox(s string) (domain.Bounds, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "taiwan":
		return domain.TaiwanBounds, nil
	case "nearshore":
		return domain.TaiwanNearshoreBounds, nil
	}
	return domain.Bounds{}, fmt.Errorf("%w %q (want taiwan or nearshore)", ErrUnknownBox, s)
}

// jobOptions collects the catalog settings shared by every quake command.
func (a *app) jobOptions(bounds domain.Bounds) (pipeline.QuakeJobOptions, error) {
	shape, err := a.shape()
	if err != nil {
		return pipeline.QuakeJobOptions{}, err
	}
	return pipeline.QuakeJobOptions{
		CatalogPath: a.v.GetString("catalog"),
		Shape:       shape,
		Lenient:     a.v.GetBool("lenient"),
		Bounds:      bounds,
		Logger:      a.logger,
	}, nil
}

func newQuakesNormalizeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Write the catalog as CSV (time,lat,lon,depth,mag,year) plus GeoJSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bounds, err := parseBox(a.v.GetString("box"))
			if err != nil {
				return err
			}
			opts, err := a.jobOptions(bounds)
			if err != nil {
				return err
			}
			out := a.v.GetString("out")
			job := pipeline.NewQuakeJob("quakes-normalize", opts,
				pipeline.QuakeCSVLoader{Path: out},
				pipeline.GeoJSONLoader{Path: render.SidecarPath(out)},
			)
			summary, err := runJob(cmd.Context(), a, job)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s and %s (%d quakes)\n", out, render.SidecarPath(out), summary.RowsOut)
			return nil
		},
	}
	cmd.Flags().String("out", defaultQuakesCSV, "normalized CSV; the GeoJSON is written next to it")
	cmd.Flags().String("box", "taiwan", "bounding box: taiwan or nearshore")
	return cmd
}

func newQuakesMapCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Render a Leaflet map of the catalog",
		Long: `Render a self-contained Leaflet map.

Variants:
  classic      nearshore box, blue/red by depth, OpenStreetMap tiles
  by-year      Taiwan box, one layer per year with a year picker
  single-year  Taiwan box, only the quakes of --year`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			variant, err := render.ParseVariant(a.v.GetString("variant"))
			if err != nil {
				return err
			}
			year := a.v.GetInt("year")
			if variant == render.VariantSingleYear && year == 0 {
				return finish(cmd, earlyExit{msg: "No year given: single-year maps need --year, nothing rendered."})
			}

			opts, err := a.jobOptions(variant.Bounds())
			if err != nil {
				return err
			}
			opts.Geocoder = a.geocoderFor()

			out := a.v.GetString("out")
			if out == "" {
				out = variant.DefaultOutput()
			}
			mapOpts := render.MapOptions{Variant: variant, Year: year, Title: a.v.GetString("title")}
			job := pipeline.NewQuakeJob("quakes-map", opts, pipeline.MapLoader{Path: out, Options: mapOpts})

			summary, err := runJob(cmd.Context(), a, job)
			if errors.Is(err, render.ErrNoQuakesForYear) {
				return finish(cmd, earlyExit{msg: fmt.Sprintf("No quakes in %d, nothing rendered.", year)})
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Interactive map saved to: %s (%d quakes)\n", out, summary.RowsOut)
			return nil
		},
	}
	cmd.Flags().String("variant", string(render.VariantByYear), "classic, by-year or single-year")
	cmd.Flags().String("out", "", "HTML output (default depends on the variant)")
	cmd.Flags().Int("year", 0, "year to draw (single-year only)")
	cmd.Flags().String("title", "", "page title")
	return cmd
}

func newQuakesPublishCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the normalized catalog to Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bounds, err := parseBox(a.v.GetString("box"))
			if err != nil {
				return err
			}
			opts, err := a.jobOptions(bounds)
			if err != nil {
				return err
			}
			opts.Geocoder = a.geocoderFor()

			writer := kafka.NewWriter(a.cfg, a.logger)
			defer func() {
				if err := writer.Close(); err != nil {
					a.logger.Error("kafka writer close error", "error", err)
				}
			}()

			summary, err := runJob(cmd.Context(), a, pipeline.NewQuakeJob("quakes-publish", opts, writer))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %d quakes to %s\n", summary.RowsOut, a.cfg.KafkaTopic)
			return nil
		},
	}
	cmd.Flags().String("box", "taiwan", "bounding box: taiwan or nearshore")
	return cmd
}
