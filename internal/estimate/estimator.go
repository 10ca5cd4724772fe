// Package estimate decides which replication action an object needs by
// comparing its source and destination catalog state.
package estimate

import (
	"context"
	"fmt"

	"github.com/yourorg/catalog-replication/internal/catalog"
)

// DirComparer reports whether two directories hold the same files.
type DirComparer interface {
	Equal(ctx context.Context, srcURI, dstURI string) (bool, error)
}

// DestinationFactory derives the expected destination object from its source.
type DestinationFactory interface {
	Table(src *catalog.Table) (*catalog.Table, error)
	Partition(src *catalog.Partition) (*catalog.Partition, error)
}

// TaskEstimator is the catalog-backed Estimator used by both compare stages.
type TaskEstimator struct {
	Src        catalog.Client
	Dst        catalog.Client
	SrcCluster string
	Factory    DestinationFactory
	// Dirs is optional; without it data is assumed equal when metadata is.
	Dirs DirComparer
}

var _ Estimator = (*TaskEstimator)(nil)

func (e *TaskEstimator) Analyze(ctx context.Context, spec catalog.ObjectSpec) (TaskEstimate, error) {
	if spec.IsPartition() {
		return e.analyzePartition(ctx, spec)
	}
	return e.analyzeTable(ctx, spec)
}

func (e *TaskEstimator) analyzeTable(ctx context.Context, spec catalog.ObjectSpec) (TaskEstimate, error) {
	src, err := catalog.Lookup(ctx, e.Src, spec.DB, spec.Table)
	if err != nil {
		return TaskEstimate{}, fmt.Errorf("source table %s: %w", spec, err)
	}
	dst, err := catalog.Lookup(ctx, e.Dst, spec.DB, spec.Table)
	if err != nil {
		return TaskEstimate{}, fmt.Errorf("destination table %s: %w", spec, err)
	}

	if src == nil {
		// Only drop what replication itself created.
		if dst.IsReplicaOf(e.SrcCluster) {
			return TaskEstimate{
				Type:     DropTable,
				DestPath: dst.Location,
				Extra:    dst.Parameters[catalog.ParamLastDDLTime],
			}, nil
		}
		return NoOpEstimate(), nil
	}

	want, err := e.Factory.Table(src)
	if err != nil {
		return TaskEstimate{}, fmt.Errorf("destination table for %s: %w", spec, err)
	}

	if src.IsPartitioned() {
		if dst == nil || !catalog.SamePartitionKeys(src, dst) || !catalog.TableMetadataEqual(want, dst) {
			return TaskEstimate{
				Type:           CopyPartitionedTable,
				UpdateMetadata: true,
				SrcPath:        src.Location,
				DestPath:       want.Location,
			}, nil
		}
		return NoOpEstimate(), nil
	}

	est := TaskEstimate{Type: CopyUnpartitionedTable, SrcPath: src.Location, DestPath: want.Location}
	if dst == nil || dst.IsPartitioned() {
		est.UpdateData, est.UpdateMetadata = true, true
		return est, nil
	}
	est.UpdateMetadata = !catalog.TableMetadataEqual(want, dst)
	est.UpdateData, err = e.dataDiffers(ctx, src.Location, dst.Location)
	if err != nil {
		return TaskEstimate{}, fmt.Errorf("compare data of %s: %w", spec, err)
	}
	if !est.UpdateData && !est.UpdateMetadata {
		return NoOpEstimate(), nil
	}
	return est, nil
}

func (e *TaskEstimator) analyzePartition(ctx context.Context, spec catalog.ObjectSpec) (TaskEstimate, error) {
	src, err := catalog.LookupPartition(ctx, e.Src, spec)
	if err != nil {
		return TaskEstimate{}, fmt.Errorf("source partition %s: %w", spec, err)
	}
	dst, err := catalog.LookupPartition(ctx, e.Dst, spec)
	if err != nil {
		return TaskEstimate{}, fmt.Errorf("destination partition %s: %w", spec, err)
	}

	// Gone on both sides by now: nothing left to reconcile.
	if src == nil {
		if dst.IsReplicaOf(e.SrcCluster) {
			return TaskEstimate{
				Type:     DropPartition,
				DestPath: dst.Location,
				Extra:    dst.Parameters[catalog.ParamLastDDLTime],
			}, nil
		}
		return NoOpEstimate(), nil
	}

	want, err := e.Factory.Partition(src)
	if err != nil {
		return TaskEstimate{}, fmt.Errorf("destination partition for %s: %w", spec, err)
	}
	est := TaskEstimate{Type: CopyPartition, SrcPath: src.Location, DestPath: want.Location}
	if dst == nil {
		est.UpdateData, est.UpdateMetadata = true, true
		return est, nil
	}
	est.UpdateMetadata = !catalog.PartitionMetadataEqual(want, dst)
	est.UpdateData, err = e.dataDiffers(ctx, src.Location, dst.Location)
	if err != nil {
		return TaskEstimate{}, fmt.Errorf("compare data of %s: %w", spec, err)
	}
	if !est.UpdateData && !est.UpdateMetadata {
		return NoOpEstimate(), nil
	}
	return est, nil
}

func (e *TaskEstimator) dataDiffers(ctx context.Context, src, dst string) (bool, error) {
	if e.Dirs == nil || src == "" || dst == "" {
		return false, nil
	}
	same, err := e.Dirs.Equal(ctx, src, dst)
	if err != nil {
		return false, err
	}
	return !same, nil
}
