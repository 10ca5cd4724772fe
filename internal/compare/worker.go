// Package compare decides the table-level replication action for a table
// and fans partitioned tables out into one check-partition placeholder per
// partition name.
//
// No partition is compared here. Placeholders are shuffled by partition
// identity and resolved by the partition compare stage, so partitions of one
// large table spread across many workers.
package compare

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourorg/catalog-replication/internal/blocklist"
	"github.com/yourorg/catalog-replication/internal/catalog"
	"github.com/yourorg/catalog-replication/internal/copytask"
	"github.com/yourorg/catalog-replication/internal/estimate"
	replmetrics "github.com/yourorg/catalog-replication/internal/metrics"
	"github.com/yourorg/catalog-replication/internal/record"
)

// Stage names the step of ProcessTable that failed.
type Stage string

const (
	StageEstimate       Stage = "estimate"
	StageLookup         Stage = "lookup"
	StagePreCopy        Stage = "pre-copy"
	StagePartitionNames Stage = "partition-names"
)

// TableError is returned by ProcessTable. No records are produced for a
// table that failed.
type TableError struct {
	Spec  catalog.ObjectSpec
	Stage Stage
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("compare %s: %s: %v", e.Spec, e.Stage, e.Err)
}

func (e *TableError) Unwrap() error { return e.Err }

// CopyTaskFactory builds the pre-copy task for a partitioned table.
type CopyTaskFactory func(spec catalog.ObjectSpec) copytask.Task

// Config wires a Worker. Src and Dst are owned by the Worker once passed in.
type Config struct {
	Src       catalog.Client
	Dst       catalog.Client
	Filter    *blocklist.Filter
	Estimator estimate.Estimator
	CopyTask  CopyTaskFactory
	Log       *zap.Logger
}

// Worker processes table identities one at a time. It is not safe for
// concurrent use.
type Worker struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config) *Worker {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{cfg: cfg, log: log}
}

// ProcessTable returns the table-level record for db.table, followed by one
// check-partition record per partition name known to either catalog when
// the source table is partitioned. Block-listed tables yield no records and
// no catalog calls. On error no records are returned.
func (w *Worker) ProcessTable(ctx context.Context, db, table string) ([]record.Record, error) {
	if w.cfg.Filter.Matches(db, table) {
		replmetrics.TablesBlocklisted.Inc()
		w.log.Debug("table block-listed", zap.String("db", db), zap.String("table", table))
		return nil, nil
	}
	spec := catalog.NewTableSpec(db, table)

	est, err := w.cfg.Estimator.Analyze(ctx, spec)
	if err != nil {
		return nil, &TableError{Spec: spec, Stage: StageEstimate, Err: err}
	}
	out := []record.Record{record.New(est, spec)}

	src, err := catalog.Lookup(ctx, w.cfg.Src, db, table)
	if err != nil {
		return nil, &TableError{Spec: spec, Stage: StageLookup, Err: err}
	}
	if src.IsPartitioned() {
		// Apply partition key changes before partition names are compared
		// against the destination.
		if est.Type == estimate.CopyPartitionedTable {
			if err := w.preCopy(ctx, spec); err != nil {
				return nil, &TableError{Spec: spec, Stage: StagePreCopy, Err: err}
			}
		}
		names, err := w.partitionNames(ctx, spec)
		if err != nil {
			return nil, &TableError{Spec: spec, Stage: StagePartitionNames, Err: err}
		}
		for name := range names {
			out = append(out, record.New(estimate.CheckPartitionEstimate(), catalog.NewPartitionSpec(db, table, name)))
		}
		replmetrics.PartitionPlaceholders.Add(float64(len(names)))
	}

	replmetrics.TablesProcessed.Inc()
	replmetrics.Estimates.WithLabelValues(est.Type.String()).Inc()
	w.log.Debug("table compared",
		zap.String("table", spec.String()),
		zap.Stringer("action", est.Type),
		zap.Int("records", len(out)))
	return out, nil
}

func (w *Worker) preCopy(ctx context.Context, spec catalog.ObjectSpec) error {
	if w.cfg.CopyTask == nil {
		return errors.New("no copy task configured")
	}
	st, err := w.cfg.CopyTask(spec).Run(ctx)
	if err != nil {
		replmetrics.PreCopyRuns.WithLabelValues("error").Inc()
		return err
	}
	replmetrics.PreCopyRuns.WithLabelValues(st.String()).Inc()
	w.log.Info("pre-copied partitioned table", zap.String("table", spec.String()), zap.Stringer("status", st))
	return nil
}

// partitionNames returns the union of source and destination partition names.
func (w *Worker) partitionNames(ctx context.Context, spec catalog.ObjectSpec) (map[string]struct{}, error) {
	srcNames, err := w.cfg.Src.GetPartitionNames(ctx, spec.DB, spec.Table)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	dstNames, err := w.cfg.Dst.GetPartitionNames(ctx, spec.DB, spec.Table)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	union := make(map[string]struct{}, len(srcNames)+len(dstNames))
	for _, n := range srcNames {
		union[n] = struct{}{}
	}
	for _, n := range dstNames {
		union[n] = struct{}{}
	}
	return union, nil
}

// Close releases both catalog clients.
func (w *Worker) Close() error {
	var errs []error
	if w.cfg.Src != nil {
		if err := w.cfg.Src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close source catalog: %w", err))
		}
	}
	if w.cfg.Dst != nil {
		if err := w.cfg.Dst.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close destination catalog: %w", err))
		}
	}
	return errors.Join(errs...)
}
