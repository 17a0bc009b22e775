package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/taiwan-data-etl/internal/config"
	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/observability"
	"github.com/couchcryptid/taiwan-data-etl/internal/render"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fixture(name string) string {
	return filepath.Join("..", "pipeline", "testdata", name)
}

func testConfig() *config.Config {
	return &config.Config{
		LogLevel:        "info",
		LogFormat:       "text",
		HTTPAddr:        ":0",
		ShutdownTimeout: time.Second,
		KafkaBrokers:    []string{"localhost:9092"},
		KafkaTopic:      "taiwan-earthquakes",
	}
}

// execute runs twdata with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWith(t, observability.NewMetricsForTesting(), io.Discard, args...)
}

// executeWith is execute with caller-owned metrics and log output.
func executeWith(t *testing.T, m *observability.Metrics, logs io.Writer, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(Options{
		Out:     &out,
		Err:     &errOut,
		Metrics: m,
		Config:  testConfig(),
		Logger:  slog.New(slog.NewTextHandler(logs, nil)),
	})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "twdata dev\n", out)
}

func TestExportsClean(t *testing.T) {
	out := filepath.Join(t.TempDir(), "processed", "clean.csv")

	stdout, err := execute(t, "exports", "clean", "--raw", fixture("comtrade.csv"), "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cleaned file saved to: "+out)
	assert.FileExists(t, out)
}

func TestExportsClean_MissingInput(t *testing.T) {
	_, err := execute(t, "exports", "clean", "--raw", filepath.Join(t.TempDir(), "nope.csv"), "--out", filepath.Join(t.TempDir(), "x.csv"))
	require.Error(t, err)
}

func TestExportsPlot(t *testing.T) {
	processed := t.TempDir()
	outDir := t.TempDir()

	stdout, err := execute(t, "exports", "plot",
		"--raw", fixture("exports_by_country.csv"),
		"--mapping", fixture("country_map.json"),
		"--processed", processed,
		"--outdir", outDir,
		"--year-min", "2013", "--year-max", "2014",
	)
	require.NoError(t, err)

	assert.Contains(t, stdout, "average 2013-2014")
	assert.Contains(t, stdout, "China")
	assert.NotContains(t, stdout, "Others")
	assert.FileExists(t, filepath.Join(processed, "top10_export_markets_avg_2013_2014.csv"))
	assert.FileExists(t, filepath.Join(processed, "top10_export_markets_trend_2013_2014.csv"))
	assert.FileExists(t, filepath.Join(outDir, render.TrendPNGName))
	assert.FileExists(t, filepath.Join(outDir, render.BarRaceHTMLName))
}

func TestExportsPlot_IncludeOthers(t *testing.T) {
	stdout, err := execute(t, "exports", "plot",
		"--raw", fixture("exports_by_country.csv"),
		"--mapping", fixture("country_map.json"),
		"--processed", t.TempDir(),
		"--outdir", t.TempDir(),
		"--year-min", "2013", "--year-max", "2014",
		"--include-others",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Others")
}

func TestExportsPlot_IncludeOthersFromEnv(t *testing.T) {
	t.Setenv("TWDATA_INCLUDE_OTHERS", "true")

	stdout, err := execute(t, "exports", "plot",
		"--raw", fixture("exports_by_country.csv"),
		"--mapping", fixture("country_map.json"),
		"--processed", t.TempDir(),
		"--outdir", t.TempDir(),
		"--year-min", "2013", "--year-max", "2014",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Others")
}

func TestExportsPlot_ExcludeOthersFlagOverridesEnv(t *testing.T) {
	t.Setenv("TWDATA_INCLUDE_OTHERS", "true")

	stdout, err := execute(t, "exports", "plot",
		"--raw", fixture("exports_by_country.csv"),
		"--mapping", fixture("country_map.json"),
		"--processed", t.TempDir(),
		"--outdir", t.TempDir(),
		"--year-min", "2013", "--year-max", "2014",
		"--exclude-others",
	)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "Others")
}

func TestExportsPlot_OthersFlagsMutuallyExclusive(t *testing.T) {
	_, err := execute(t, "exports", "plot", "--include-others", "--exclude-others")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include-others")
}

func TestExportsPlot_BadYearRange(t *testing.T) {
	_, err := execute(t, "exports", "plot", "--year-min", "2020", "--year-max", "2010")
	require.Error(t, err)
}

func TestQuakesNormalize(t *testing.T) {
	out := filepath.Join(t.TempDir(), "quakes.csv")

	stdout, err := execute(t, "quakes", "normalize", "--catalog", fixture("gdms.json"), "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "(3 quakes)")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "time,lat,lon,depth,mag,year\n"))
	assert.FileExists(t, filepath.Join(filepath.Dir(out), "quakes.geojson"))
}

func TestQuakesNormalize_NearshoreBox(t *testing.T) {
	out := filepath.Join(t.TempDir(), "quakes.csv")

	stdout, err := execute(t, "quakes", "normalize", "--catalog", fixture("gdms.json"), "--out", out, "--box", "nearshore")
	require.NoError(t, err)
	// 26.8N is outside the nearshore box.
	assert.Contains(t, stdout, "(2 quakes)")
}

func TestQuakesNormalize_UnsupportedShape(t *testing.T) {
	out := filepath.Join(t.TempDir(), "quakes.csv")

	_, err := execute(t, "quakes", "normalize", "--catalog", fixture("unsupported.json"), "--out", out)
	require.Error(t, err)
	assert.NoFileExists(t, out)

	stdout, err := execute(t, "quakes", "normalize", "--catalog", fixture("unsupported.json"), "--out", out, "--lenient")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(0 quakes)")
}

func TestQuakesNormalize_BadShapeFlag(t *testing.T) {
	_, err := execute(t, "quakes", "normalize", "--shape", "usgs", "--out", filepath.Join(t.TempDir(), "q.csv"))
	require.Error(t, err)
}

func TestQuakesMap_Variants(t *testing.T) {
	for _, v := range render.Variants() {
		t.Run(string(v), func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "map.html")
			args := []string{"quakes", "map", "--catalog", fixture("gdms.json"), "--variant", string(v), "--out", out}
			if v == render.VariantSingleYear {
				args = append(args, "--year", "2024")
			}
			stdout, err := execute(t, args...)
			require.NoError(t, err)
			assert.Contains(t, stdout, "Interactive map saved to: "+out)
			assert.FileExists(t, out)
			assert.FileExists(t, render.SidecarPath(out))
		})
	}
}

func TestQuakesMap_SingleYearWithoutYearExitsEarly(t *testing.T) {
	out := filepath.Join(t.TempDir(), "map.html")

	stdout, err := execute(t, "quakes", "map", "--catalog", fixture("gdms.json"), "--variant", "single-year", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No year given")
	assert.NoFileExists(t, out)
}

func TestQuakesMap_SingleYearWithoutQuakesExitsEarly(t *testing.T) {
	out := filepath.Join(t.TempDir(), "map.html")

	stdout, err := execute(t, "quakes", "map", "--catalog", fixture("gdms.json"), "--variant", "single-year", "--year", "1999", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No quakes in 1999")
	assert.NoFileExists(t, out)
}

func TestQuakesMap_EmptyYearRecordsSkippedRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "map.html")
	m := observability.NewMetricsForTesting()
	var logs bytes.Buffer

	stdout, err := executeWith(t, m, &logs, "quakes", "map", "--catalog", fixture("gdms.json"), "--variant", "single-year", "--year", "1999", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No quakes in 1999")
	assert.InDelta(t, 0, testutil.ToFloat64(m.Runs.WithLabelValues("quakes-map", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Runs.WithLabelValues("quakes-map", "skipped")), 0)
	assert.NotContains(t, logs.String(), "job failed")
}

func TestQuakesMap_UnknownVariant(t *testing.T) {
	_, err := execute(t, "quakes", "map", "--variant", "heatmap")
	require.ErrorIs(t, err, render.ErrUnknownVariant)
}

func TestConfigFileAndEnvLayering(t *testing.T) {
	dir := t.TempDir()
	fromFile := filepath.Join(dir, "from-file.csv")
	fromFlag := filepath.Join(dir, "from-flag.csv")
	cfgPath := filepath.Join(dir, "twdata.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("catalog: "+fixture("gdms.json")+"\nout: "+fromFile+"\n"), 0o644))

	_, err := execute(t, "--config", cfgPath, "quakes", "normalize")
	require.NoError(t, err)
	assert.FileExists(t, fromFile)

	_, err = execute(t, "--config", cfgPath, "quakes", "normalize", "--out", fromFlag)
	require.NoError(t, err)
	assert.FileExists(t, fromFlag)

	t.Setenv("TWDATA_BOX", "nearshore")
	stdout, err := execute(t, "--config", cfgPath, "quakes", "normalize")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(2 quakes)")
}

func TestConfigFileMissing(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "version")
	require.Error(t, err)
}

func TestParseBox(t *testing.T) {
	b, err := parseBox(" Nearshore ")
	require.NoError(t, err)
	assert.Equal(t, domain.TaiwanNearshoreBounds, b)

	_, err = parseBox("japan")
	require.ErrorIs(t, err, ErrUnknownBox)
}

type fakeServer struct {
	started  chan struct{}
	stop     chan struct{}
	startErr error
	shutdown bool
}

func (f *fakeServer) Start() error {
	close(f.started)
	if f.startErr != nil {
		return f.startErr
	}
	<-f.stop
	return nil
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdown = true
	close(f.stop)
	return nil
}

func testApp() *app {
	return &app{cfg: testConfig(), logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv := &fakeServer{started: make(chan struct{}), stop: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, testApp()) }()

	<-srv.started
	cancel()
	require.NoError(t, <-done)
	assert.True(t, srv.shutdown)
}

func TestServe_StartError(t *testing.T) {
	srv := &fakeServer{started: make(chan struct{}), stop: make(chan struct{}), startErr: errors.New("address in use")}

	err := serve(context.Background(), srv, testApp())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}
