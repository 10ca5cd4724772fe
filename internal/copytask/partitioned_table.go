// Package copytask holds the destination-side tasks run while comparing
// catalogs. Every task is safe to run repeatedly: the commit phase runs the
// same task again after the compare stages.
package copytask

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourorg/catalog-replication/internal/catalog"
)

// ErrConflict is returned when the destination holds a table replication
// did not create and the conflict policy forbids replacing it.
var ErrConflict = errors.New("destination table not owned by replication")

// RunStatus reports what a task run did.
type RunStatus int

const (
	StatusUnchanged RunStatus = iota
	StatusCreated
	StatusAltered
	StatusRecreated
	StatusNotCompletable
)

func (s RunStatus) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusCreated:
		return "created"
	case StatusAltered:
		return "altered"
	case StatusRecreated:
		return "recreated"
	case StatusNotCompletable:
		return "not_completable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ConflictPolicy decides what to do with a destination table of the same
// name that replication did not create.
type ConflictPolicy int

const (
	ConflictOverwrite ConflictPolicy = iota
	ConflictFail
)

// Task is a destination-side operation bound to one object.
type Task interface {
	Run(ctx context.Context) (RunStatus, error)
}

// PartitionedTableTask copies the metadata of a partitioned table. It
// creates the destination table if missing, alters it when attributes
// differ, and drops and recreates it when the partition keys changed.
// Partitions themselves are handled by per-partition tasks.
type PartitionedTableTask struct {
	Src      catalog.Client
	Dst      catalog.Writer
	Factory  ObjectFactory
	Conflict ConflictPolicy
	Spec     catalog.ObjectSpec
	Log      *zap.Logger
}

var _ Task = (*PartitionedTableTask)(nil)

func (t *PartitionedTableTask) Run(ctx context.Context) (RunStatus, error) {
	log := t.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("table", t.Spec.String()))

	src, err := catalog.Lookup(ctx, t.Src, t.Spec.DB, t.Spec.Table)
	if err != nil {
		return 0, fmt.Errorf("source table %s: %w", t.Spec, err)
	}
	if src == nil || !src.IsPartitioned() {
		// Source vanished or changed shape since the estimate.
		log.Warn("partitioned table copy not completable")
		return StatusNotCompletable, nil
	}
	want, err := t.Factory.Table(src)
	if err != nil {
		return 0, fmt.Errorf("destination table for %s: %w", t.Spec, err)
	}

	dst, err := catalog.Lookup(ctx, t.Dst, t.Spec.DB, t.Spec.Table)
	if err != nil {
		return 0, fmt.Errorf("destination table %s: %w", t.Spec, err)
	}
	if dst == nil {
		if err := t.Dst.CreateTable(ctx, want); err != nil {
			return 0, fmt.Errorf("create %s: %w", t.Spec, err)
		}
		log.Info("created destination table")
		return StatusCreated, nil
	}

	if !dst.IsReplicaOf(t.Factory.SrcCluster) {
		if t.Conflict == ConflictFail {
			return 0, fmt.Errorf("%s: %w", t.Spec, ErrConflict)
		}
		log.Warn("overwriting destination table not created by replication")
	}

	if catalog.TableMetadataEqual(want, dst) {
		return StatusUnchanged, nil
	}
	if !catalog.SamePartitionKeys(want, dst) {
		// Existing partitions are meaningless under a new partition scheme.
		if err := t.Dst.DropTable(ctx, t.Spec.DB, t.Spec.Table); err != nil {
			return 0, fmt.Errorf("drop %s for partition key change: %w", t.Spec, err)
		}
		if err := t.Dst.CreateTable(ctx, want); err != nil {
			return 0, fmt.Errorf("recreate %s: %w", t.Spec, err)
		}
		log.Info("recreated destination table for partition key change")
		return StatusRecreated, nil
	}
	if err := t.Dst.AlterTable(ctx, want); err != nil {
		return 0, fmt.Errorf("alter %s: %w", t.Spec, err)
	}
	log.Info("altered destination table")
	return StatusAltered, nil
}
