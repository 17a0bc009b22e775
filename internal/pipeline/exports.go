package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/exports"
	"github.com/couchcryptid/taiwan-data-etl/internal/render"
	"github.com/couchcryptid/taiwan-data-etl/internal/tabular"
	"github.com/go-gota/gota/dataframe"
	"golang.org/x/sync/errgroup"
)

// TableSource loads a raw .csv or .xlsx table.
type TableSource struct {
	Path string
}

func (s TableSource) Extract(_ context.Context) (dataframe.DataFrame, error) {
	df, err := tabular.Load(s.Path, nil)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("load %s: %w", s.Path, err)
	}
	return df, nil
}

// CleanTransformer applies exports.Clean.
type CleanTransformer struct {
	stats exports.Stats
}

func (t *CleanTransformer) Transform(_ context.Context, raw dataframe.DataFrame) (dataframe.DataFrame, error) {
	df, stats, err := exports.Clean(raw)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	t.stats = stats
	return df, nil
}

func (t *CleanTransformer) Dropped() map[string]int { return t.stats.Dropped }

// CleanedCSVLoader writes the cleaned export table.
type CleanedCSVLoader struct {
	Path string
}

func (l CleanedCSVLoader) Load(_ context.Context, df dataframe.DataFrame) error {
	return exports.WriteCleaned(l.Path, df)
}

func (CleanedCSVLoader) Kind() string { return "csv" }

// NewCleanJob builds the `exports clean` job.
func NewCleanJob(rawPath, outPath string) Job[dataframe.DataFrame, dataframe.DataFrame] {
	return Job[dataframe.DataFrame, dataframe.DataFrame]{
		Name:      "exports-clean",
		Extract:   TableSource{Path: rawPath},
		Transform: &CleanTransformer{},
		Load:      []Loader[dataframe.DataFrame]{CleanedCSVLoader{Path: outPath}},
	}
}

// TopMarketsTransformer builds the top-market report.
type TopMarketsTransformer struct {
	Names   exports.CountryMap
	Options exports.Options
	stats   exports.Stats
}

func (t *TopMarketsTransformer) Transform(_ context.Context, raw dataframe.DataFrame) (domain.MarketReport, error) {
	report, stats, err := exports.PrepareTopMarkets(raw, t.Names, t.Options)
	if err != nil {
		return domain.MarketReport{}, err
	}
	t.stats = stats
	return report, nil
}

func (t *TopMarketsTransformer) Dropped() map[string]int { return t.stats.Dropped }

// ReportTablesLoader writes the average and trend tables into Dir.
type ReportTablesLoader struct {
	Dir string
	// Paths is filled in by Load.
	Paths *exports.ReportPaths
}

func (l ReportTablesLoader) Load(_ context.Context, r domain.MarketReport) error {
	paths, err := exports.WriteReport(l.Dir, r)
	if err != nil {
		return err
	}
	if l.Paths != nil {
		*l.Paths = paths
	}
	return nil
}

func (ReportTablesLoader) Kind() string { return "csv" }

// ChartsLoader renders the static trend PNG and the interactive bar race
// under OutDir. The two charts are drawn concurrently.
type ChartsLoader struct {
	OutDir string
	Logger *slog.Logger
}

// TrendPNGPath is where the static chart is written.
func (l ChartsLoader) TrendPNGPath() string { return filepath.Join(l.OutDir, render.TrendPNGName) }

// BarRacePath is where the interactive chart is written.
func (l ChartsLoader) BarRacePath() string { return filepath.Join(l.OutDir, render.BarRaceHTMLName) }

func (l ChartsLoader) Load(ctx context.Context, r domain.MarketReport) error {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := render.WriteTrendPNG(l.TrendPNGPath(), r); err != nil {
			return err
		}
		l.Logger.Debug("static chart written", "path", l.TrendPNGPath())
		return nil
	})
	g.Go(func() error {
		if err := render.WriteBarRace(l.BarRacePath(), r); err != nil {
			return err
		}
		l.Logger.Debug("interactive chart written", "path", l.BarRacePath())
		return nil
	})
	return g.Wait()
}

func (ChartsLoader) Kind() string { return "chart" }

// NewPlotJob builds the `exports plot` job. Report table paths are stored
// into paths once the tables are written.
func NewPlotJob(rawPath string, names exports.CountryMap, opts exports.Options, processedDir, outDir string, paths *exports.ReportPaths, logger *slog.Logger) Job[dataframe.DataFrame, domain.MarketReport] {
	return Job[dataframe.DataFrame, domain.MarketReport]{
		Name:      "exports-plot",
		Extract:   TableSource{Path: rawPath},
		Transform: &TopMarketsTransformer{Names: names, Options: opts},
		Load: []Loader[domain.MarketReport]{
			ReportTablesLoader{Dir: processedDir, Paths: paths},
			ChartsLoader{OutDir: outDir, Logger: logger},
		},
	}
}
