// Package cli wires the twdata commands: cobra for the command tree, viper
// for layered settings (flag > TWDATA_* env > config file > flag default).
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/taiwan-data-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/taiwan-data-etl/internal/catalog"
	"github.com/couchcryptid/taiwan-data-etl/internal/config"
	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/observability"
	"github.com/couchcryptid/taiwan-data-etl/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// Options carry the process-level dependencies of the command tree.
type Options struct {
	Out     io.Writer
	Err     io.Writer
	Metrics *observability.Metrics
	// Config overrides environment loading when set.
	Config *config.Config
	// Logger overrides the logger built from Config when set.
	Logger *slog.Logger
}

type app struct {
	opts    Options
	v       *viper.Viper
	cfgFile string

	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	geocoder domain.Geocoder
}

// Execute runs twdata with os.Args and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand(Options{
		Out:     os.Stdout,
		Err:     os.Stderr,
		Metrics: observability.NewMetrics(),
	})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// NewRootCommand builds the twdata command tree.
func NewRootCommand(opts Options) *cobra.Command {
	a := &app{opts: opts, v: viper.New(), metrics: opts.Metrics}

	root := &cobra.Command{
		Use:   "twdata",
		Short: "Taiwan IC export and earthquake catalog batch jobs",
		Long: `twdata runs independent batch jobs over Taiwan public data:

  exports clean   clean a UN Comtrade IC export table
  exports plot    rank the top 10 IC export markets and draw the charts
  quakes ...      normalize earthquake catalogs and render Leaflet maps

Settings resolve flag > TWDATA_* environment > --config file > default.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML settings file")
	root.PersistentFlags().String("shape", string(catalog.ShapeAuto), "catalog shape: auto, cwa or gdms")
	root.PersistentFlags().Bool("lenient", false, "treat an unrecognised catalog as empty instead of failing")

	root.AddCommand(
		newExportsCommand(a),
		newQuakesCommand(a),
		newServeCommand(a),
		newVersionCommand(),
	)
	return root
}

// setup binds the running command's flags into viper, reads the optional
// config file and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.v.SetEnvPrefix("TWDATA")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" {
			return
		}
		if err := a.v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return bindErr
	}

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", a.cfgFile, err)
		}
	}

	a.cfg = a.opts.Config
	if a.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	a.logger = a.opts.Logger
	if a.logger == nil {
		a.logger = observability.NewLogger(a.cfg)
	}
	if a.metrics == nil {
		a.metrics = observability.NewMetrics()
	}
	if path := a.v.ConfigFileUsed(); path != "" {
		a.logger.Debug("using config file", "path", path)
	}
	return nil
}

func (a *app) shape() (catalog.Shape, error) {
	return catalog.ParseShape(a.v.GetString("shape"))
}

// geocoderFor returns the cached Mapbox geocoder when enabled, else nil.
func (a *app) geocoderFor() domain.Geocoder {
	if a.geocoder != nil || !a.cfg.MapboxEnabled {
		return a.geocoder
	}
	client := mapbox.NewClient(a.cfg.MapboxToken, a.cfg.MapboxTimeout, a.metrics, a.logger)
	a.geocoder = mapbox.NewCachedGeocoder(client, a.cfg.MapboxCacheTTL, a.metrics)
	a.metrics.GeocodeEnabled.Set(1)
	a.logger.Info("mapbox geocoding enabled", "timeout", a.cfg.MapboxTimeout, "cache_ttl", a.cfg.MapboxCacheTTL)
	return a.geocoder
}

// runJob runs one pipeline job and pushes the run metrics when a
// Pushgateway is configured. A push failure is logged, never fatal.
func runJob[T, U any](ctx context.Context, a *app, job pipeline.Job[T, U]) (pipeline.Summary, error) {
	summary, err := pipeline.Run(ctx, job, a.logger, a.metrics)
	if perr := observability.Push(ctx, a.cfg.PushgatewayURL, job.Name); perr != nil {
		a.logger.Warn("metrics push failed", "error", perr)
	}
	return summary, err
}

// earlyExit reports a condition that ends the command successfully with a
// message instead of outputs.
type earlyExit struct {
	msg string
}

func (e earlyExit) Error() string { return e.msg }

// finish turns an earlyExit into a printed message and a nil error.
func finish(cmd *cobra.Command, err error) error {
	var ee earlyExit
	if errors.As(err, &ee) {
		fmt.Fprintln(cmd.OutOrStdout(), ee.msg)
		return nil
	}
	return err
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "twdata", Version)
		},
	}
}
