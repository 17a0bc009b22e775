// Package pipeline runs single-pass extract-transform-load jobs and provides
// the concrete stages for the export and earthquake commands.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/couchcryptid/taiwan-data-etl/internal/observability"
	"github.com/google/uuid"
)

// Extractor reads a job's input.
type Extractor[T any] interface {
	Extract(ctx context.Context) (T, error)
}

// Transformer converts extracted input into the job's output.
type Transformer[T, U any] interface {
	Transform(ctx context.Context, in T) (U, error)
}

// Loader persists or renders a job's output.
type Loader[U any] interface {
	Load(ctx context.Context, out U) error
}

// ExtractFunc adapts a function to Extractor.
type ExtractFunc[T any] func(ctx context.Context) (T, error)

func (f ExtractFunc[T]) Extract(ctx context.Context) (T, error) { return f(ctx) }

// TransformFunc adapts a function to Transformer.
type TransformFunc[T, U any] func(ctx context.Context, in T) (U, error)

func (f TransformFunc[T, U]) Transform(ctx context.Context, in T) (U, error) { return f(ctx, in) }

// LoadFunc adapts a function to Loader.
type LoadFunc[U any] func(ctx context.Context, out U) error

func (f LoadFunc[U]) Load(ctx context.Context, out U) error { return f(ctx, out) }

// DropReporter is implemented by stages that discard rows. Counts are
// collected after the stage runs.
type DropReporter interface {
	Dropped() map[string]int
}

// OutputKind is implemented by loaders to label what they produce
// (csv, geojson, png, html, kafka).
type OutputKind interface {
	Kind() string
}

// Job wires the stages of one command.
type Job[T, U any] struct {
	Name      string
	Extract   Extractor[T]
	Transform Transformer[T, U]
	Load      []Loader[U]
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Job      string
	RowsIn   int
	RowsOut  int
	Dropped  map[string]int
	Duration time.Duration
}

// ErrSkipped marks a stage error that ends the run without failing it. Run
// still returns the error so callers can report why nothing was produced.
var ErrSkipped = errors.New("run skipped")

// Run executes the job once: extract, transform, then every loader in order.
// The first failing stage aborts the run; there are no retries.
func Run[T, U any](ctx context.Context, job Job[T, U], logger *slog.Logger, metrics *observability.Metrics) (Summary, error) {
	start := domain.Now()
	summary := Summary{RunID: uuid.NewString(), Job: job.Name, Dropped: map[string]int{}}
	logger = logger.With("job", job.Name, "run_id", summary.RunID)

	metrics.JobRunning.Set(1)
	defer metrics.JobRunning.Set(0)

	err := run(ctx, job, &summary, logger, metrics)
	summary.Duration = domain.Since(start)
	metrics.RunDuration.WithLabelValues(job.Name).Observe(summary.Duration.Seconds())

	if errors.Is(err, ErrSkipped) {
		metrics.Runs.WithLabelValues(job.Name, "skipped").Inc()
		logger.Info("job skipped", "reason", err, "rows_out", summary.RowsOut, "duration", summary.Duration)
		return summary, err
	}
	if err != nil {
		metrics.Runs.WithLabelValues(job.Name, "error").Inc()
		logger.Error("job failed", "error", err, "duration", summary.Duration)
		return summary, err
	}
	metrics.Runs.WithLabelValues(job.Name, "success").Inc()
	logger.Info("job finished",
		"rows_in", summary.RowsIn,
		"rows_out", summary.RowsOut,
		"dropped", summary.totalDropped(),
		"duration", summary.Duration,
	)
	return summary, nil
}

func run[T, U any](ctx context.Context, job Job[T, U], summary *Summary, logger *slog.Logger, metrics *observability.Metrics) error {
	if job.Extract == nil || job.Transform == nil {
		return errors.New("job needs an extractor and a transformer")
	}

	in, err := job.Extract.Extract(ctx)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	summary.RowsIn = rowCount(in)
	metrics.RowsRead.WithLabelValues(job.Name).Add(float64(summary.RowsIn))
	collectDrops(job.Extract, summary)
	logger.Info("extracted", "rows", summary.RowsIn)

	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := job.Transform.Transform(ctx, in)
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}
	summary.RowsOut = rowCount(out)
	collectDrops(job.Transform, summary)
	for _, reason := range slices.Sorted(maps.Keys(summary.Dropped)) {
		metrics.RowsDropped.WithLabelValues(job.Name, reason).Add(float64(summary.Dropped[reason]))
	}
	logger.Info("transformed", "rows", summary.RowsOut, "dropped", summary.totalDropped())

	for i, l := range job.Load {
		if err := ctx.Err(); err != nil {
			return err
		}
		kind := "output"
		if k, ok := l.(OutputKind); ok {
			kind = k.Kind()
		}
		if err := l.Load(ctx, out); err != nil {
			return fmt.Errorf("load %s (%d of %d): %w", kind, i+1, len(job.Load), err)
		}
		metrics.OutputsRendered.WithLabelValues(kind).Inc()
		logger.Debug("loaded", "kind", kind)
	}
	metrics.RowsWritten.WithLabelValues(job.Name).Add(float64(summary.RowsOut))
	return nil
}

func collectDrops(stage any, summary *Summary) {
	r, ok := stage.(DropReporter)
	if !ok {
		return
	}
	for reason, n := range r.Dropped() {
		summary.Dropped[reason] += n
	}
}

func (s Summary) totalDropped() int {
	total := 0
	for _, n := range s.Dropped {
		total += n
	}
	return total
}

// rowCount sizes stage values that expose Len or Nrow; anything else counts as one.
func rowCount(v any) int {
	switch x := v.(type) {
	case interface{ Len() int }:
		return x.Len()
	case interface{ Nrow() int }:
		return x.Nrow()
	default:
		return 1
	}
}
