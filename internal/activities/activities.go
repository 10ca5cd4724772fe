// Package activities hosts the Temporal activities of the replication
// pipeline. Catalog clients are dialed once per activity invocation and
// released when it returns.
package activities

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"path/filepath"

	tactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/yourorg/catalog-replication/internal/blocklist"
	"github.com/yourorg/catalog-replication/internal/catalog"
	"github.com/yourorg/catalog-replication/internal/compare"
	"github.com/yourorg/catalog-replication/internal/copytask"
	"github.com/yourorg/catalog-replication/internal/estimate"
	iopkg "github.com/yourorg/catalog-replication/internal/iopkg"
)

// Cluster describes one side of the replication.
type Cluster struct {
	Name   string
	DSN    string // catalog service
	FSRoot string // warehouse root, rebased from source to destination
}

// Dialer opens a catalog client for a DSN.
type Dialer func(ctx context.Context, dsn string) (catalog.Writer, error)

type Config struct {
	ScratchDir string
	Src        Cluster
	Dst        Cluster
	Filter     *blocklist.Filter
	Dial       Dialer
	Conflict   copytask.ConflictPolicy
	// Dirs compares data directories; nil means iopkg.DirComparer.
	Dirs estimate.DirComparer
	Log  *zap.Logger
}

type Activities struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config) *Activities {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Dirs == nil {
		cfg.Dirs = iopkg.DirComparer{}
	}
	return &Activities{cfg: cfg, log: log}
}

// Register registers every activity of a under the names ReplicationWorkflow uses.
func Register(r worker.ActivityRegistry, a *Activities) {
	r.RegisterActivityWithOptions(a.ListTables, tactivity.RegisterOptions{Name: "Activities.ListTables"})
	r.RegisterActivityWithOptions(a.CompareTables, tactivity.RegisterOptions{Name: "Activities.CompareTables"})
	r.RegisterActivityWithOptions(a.ComparePartitions, tactivity.RegisterOptions{Name: "Activities.ComparePartitions"})
	r.RegisterActivityWithOptions(a.MergeResults, tactivity.RegisterOptions{Name: "Activities.MergeResults"})
	r.RegisterActivityWithOptions(a.CleanupScratch, tactivity.RegisterOptions{Name: "Activities.CleanupScratch"})
}

// dial opens both catalogs. The caller owns and closes both on success.
func (a *Activities) dial(ctx context.Context) (catalog.Writer, catalog.Writer, error) {
	if a.cfg.Dial == nil {
		return nil, nil, errors.New("no catalog dialer configured")
	}
	src, err := a.cfg.Dial(ctx, a.cfg.Src.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("dial source catalog: %w", err)
	}
	dst, err := a.cfg.Dial(ctx, a.cfg.Dst.DSN)
	if err != nil {
		_ = src.Close()
		return nil, nil, fmt.Errorf("dial destination catalog: %w", err)
	}
	return src, dst, nil
}

func (a *Activities) factory() copytask.ObjectFactory {
	return copytask.ObjectFactory{
		SrcCluster: a.cfg.Src.Name,
		SrcRoot:    a.cfg.Src.FSRoot,
		DstRoot:    a.cfg.Dst.FSRoot,
	}
}

func (a *Activities) estimator(src, dst catalog.Client) *estimate.TaskEstimator {
	return &estimate.TaskEstimator{
		Src:        src,
		Dst:        dst,
		SrcCluster: a.cfg.Src.Name,
		Factory:    a.factory(),
		Dirs:       a.cfg.Dirs,
	}
}

// newWorker builds a compare worker that owns src and dst.
func (a *Activities) newWorker(src catalog.Client, dst catalog.Writer) *compare.Worker {
	return compare.New(compare.Config{
		Src:       src,
		Dst:       dst,
		Filter:    a.cfg.Filter,
		Estimator: a.estimator(src, dst),
		CopyTask: func(spec catalog.ObjectSpec) copytask.Task {
			return &copytask.PartitionedTableTask{
				Src:      src,
				Dst:      dst,
				Factory:  a.factory(),
				Conflict: a.cfg.Conflict,
				Spec:     spec,
				Log:      a.log,
			}
		},
		Log: a.log,
	})
}

func (a *Activities) scratchPath(sub, name string) string {
	return filepath.Join(a.cfg.ScratchDir, sub, name)
}

func fnv32a(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
