package estimate

import (
	"context"
	"fmt"

	"github.com/yourorg/catalog-replication/internal/catalog"
)

// TaskType is the replication action required for an object.
type TaskType int

const (
	NoOp TaskType = iota
	CopyUnpartitionedTable
	CopyPartitionedTable
	CopyPartition
	DropTable
	DropPartition
	// CheckPartition defers the decision for one partition to the
	// partition compare stage. It is never a final action.
	CheckPartition
)

var taskNames = [...]string{
	NoOp:                   "no-op",
	CopyUnpartitionedTable: "copy-unpartitioned-table",
	CopyPartitionedTable:   "copy-partitioned-table",
	CopyPartition:          "copy-partition",
	DropTable:              "drop-table",
	DropPartition:          "drop-partition",
	CheckPartition:         "check-partition",
}

func (t TaskType) String() string {
	if t < 0 || int(t) >= len(taskNames) {
		return fmt.Sprintf("task-type(%d)", int(t))
	}
	return taskNames[t]
}

// AllTaskTypes lists every TaskType in declaration order.
func AllTaskTypes() []TaskType {
	out := make([]TaskType, len(taskNames))
	for i := range taskNames {
		out[i] = TaskType(i)
	}
	return out
}

// ParseTaskType is the inverse of TaskType.String.
func ParseTaskType(s string) (TaskType, error) {
	for i, n := range taskNames {
		if n == s {
			return TaskType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown task type %q", s)
}

// TaskEstimate describes what has to happen to one object. Empty paths are absent.
type TaskEstimate struct {
	Type           TaskType
	UpdateData     bool
	UpdateMetadata bool
	SrcPath        string
	DestPath       string
	// Extra is auxiliary data for the commit phase, e.g. the destination
	// DDL time a drop was decided against.
	Extra string
}

// CheckPartitionEstimate is the placeholder emitted once per partition name
// during table comparison; it carries no flags and no paths.
func CheckPartitionEstimate() TaskEstimate {
	return TaskEstimate{Type: CheckPartition}
}

func NoOpEstimate() TaskEstimate { return TaskEstimate{Type: NoOp} }

// Estimator decides the action required for a table or partition given the
// current state of both catalogs.
type Estimator interface {
	Analyze(ctx context.Context, spec catalog.ObjectSpec) (TaskEstimate, error)
}

// EstimatorFunc adapts a function to the Estimator interface.
type EstimatorFunc func(ctx context.Context, spec catalog.ObjectSpec) (TaskEstimate, error)

func (f EstimatorFunc) Analyze(ctx context.Context, spec catalog.ObjectSpec) (TaskEstimate, error) {
	return f(ctx, spec)
}
