// Package etl runs the ingest pipeline: load raw sources, execute joins,
// map records into documents, and write them to the document store.
package etl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bindery/internal/etl/dataset"
	"bindery/internal/etl/join"
	"bindery/internal/etl/mapper"
	"bindery/internal/etl/spec"
	"bindery/internal/etl/writer"
	"bindery/internal/logging"
)

// Options configures one pipeline run.
type Options struct {
	// MappingPath locates the JSON mapping configuration.
	MappingPath string
	// DataDir resolves relative source paths.
	DataDir string
	// SampleRows caps rows per source when > 0, overriding the mapping's
	// global sample setting.
	SampleRows int
	// BatchSize is the write batch size for targets that declare none.
	BatchSize int
	// WriteRetries bounds per-document write attempts.
	WriteRetries int
}

// TargetStats summarizes one target's map-and-write pass.
type TargetStats struct {
	Collection string
	Mapped     int
	Skipped    int
	Fallbacks  int
	Written    int
	Dropped    int
	NoKey      int
}

// RunStats summarizes a whole pipeline run.
type RunStats struct {
	Sources int
	Rows    int
	Targets []TargetStats
	Elapsed time.Duration
}

// Runner executes the ETL stage against a document store.
type Runner struct {
	store  writer.Store
	opts   Options
	logger *slog.Logger
}

// NewRunner builds a pipeline runner.
func NewRunner(store writer.Store, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{store: store, opts: opts, logger: logger}
}

// Run executes the full pipeline once. Configuration problems abort before
// any write; per-record problems are counted and the run continues.
func (r *Runner) Run(ctx context.Context) (*RunStats, error) {
	started := time.Now()

	mapping, err := spec.Load(r.opts.MappingPath)
	if err != nil {
		return nil, err
	}

	sample := mapping.GlobalSettings.SampleNRows
	if r.opts.SampleRows > 0 {
		sample = r.opts.SampleRows
	}

	r.logger.Info("loading sources",
		logging.Int("count", len(mapping.Sources)),
		logging.Int("sample_rows", sample))
	sets, err := dataset.LoadAll(mapping.Sources, r.opts.DataDir, sample)
	if err != nil {
		return nil, err
	}
	stats := &RunStats{Sources: len(sets)}
	for alias, set := range sets {
		stats.Rows += set.Len()
		r.logger.Debug("source loaded",
			logging.String("alias", alias),
			logging.Int("rows", set.Len()))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := join.ExecuteAll(sets, mapping.Joins); err != nil {
		return nil, err
	}

	w := writer.New(r.store, r.opts.BatchSize, r.opts.WriteRetries, r.logger)
	now := time.Now().UTC()
	for _, target := range mapping.Targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		targetStats, err := r.runTarget(ctx, w, target, sets, now)
		if err != nil {
			return nil, err
		}
		stats.Targets = append(stats.Targets, targetStats)
	}

	stats.Elapsed = time.Since(started)
	r.logger.Info("pipeline finished",
		logging.Int("targets", len(stats.Targets)),
		logging.Duration("elapsed", stats.Elapsed))
	return stats, nil
}

func (r *Runner) runTarget(ctx context.Context, w *writer.Writer, target spec.Target, sets map[string]*dataset.Set, now time.Time) (TargetStats, error) {
	out := TargetStats{Collection: target.CollectionName}

	set, ok := sets[target.SourceAlias]
	if !ok {
		return out, fmt.Errorf("target %q: source alias %q produced no record set", target.CollectionName, target.SourceAlias)
	}

	m, err := mapper.New(target, now)
	if err != nil {
		return out, err
	}
	docs, mapStats := m.MapSet(set)
	out.Mapped = mapStats.Mapped
	out.Skipped = mapStats.Skipped
	out.Fallbacks = mapStats.Fallbacks

	writeStats, err := w.Write(ctx, target, docs)
	if err != nil {
		return out, err
	}
	out.Written = writeStats.Written
	out.Dropped = writeStats.Dropped
	out.NoKey = writeStats.NoKey

	r.logger.Info("target processed",
		logging.String("collection", target.CollectionName),
		logging.Int("mapped", out.Mapped),
		logging.Int("skipped", out.Skipped),
		logging.Int("written", out.Written))
	return out, nil
}
