package activities

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/catalog-replication/internal/catalog"
	iopkg "github.com/yourorg/catalog-replication/internal/iopkg"
	replmetrics "github.com/yourorg/catalog-replication/internal/metrics"
	"github.com/yourorg/catalog-replication/internal/types"
)

// ListTables lists every table identity known to either catalog and
// hash-partitions the union into shard files of "db<TAB>table" lines.
func (a *Activities) ListTables(ctx context.Context, p types.ListParams) (types.ListResult, error) {
	src, dst, err := a.dial(ctx)
	if err != nil {
		return types.ListResult{}, err
	}
	defer func() {
		if err := closeBoth(src, dst); err != nil {
			a.log.Warn("close catalogs", zap.Error(err))
		}
	}()

	var mu sync.Mutex
	seen := make(map[catalog.ObjectSpec]struct{})
	g, gctx := errgroup.WithContext(ctx)
	for _, side := range []struct {
		name string
		c    catalog.Client
	}{{"source", src}, {"destination", dst}} {
		side := side
		g.Go(func() error {
			specs, err := listCatalog(gctx, side.c)
			if err != nil {
				return fmt.Errorf("list %s catalog: %w", side.name, err)
			}
			mu.Lock()
			for _, s := range specs {
				seen[s] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.ListResult{}, err
	}

	specs := make([]catalog.ObjectSpec, 0, len(seen))
	for s := range seen {
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].String() < specs[j].String() })

	shards := p.Shards
	if shards <= 0 {
		shards = 16
	}
	paths := make([]string, shards)
	wrs := make([]*bufio.Writer, shards)
	closers := make([]io.Closer, shards)
	defer func() {
		for i := range closers {
			if closers[i] != nil {
				_ = closers[i].Close()
			}
		}
	}()
	for i := 0; i < shards; i++ {
		path := a.scratchPath(p.ScratchSubdir, fmt.Sprintf("list/shard-%02d.tsv", i))
		w, c, err := iopkg.Create(path)
		if err != nil {
			return types.ListResult{}, err
		}
		paths[i] = "file://" + path
		wrs[i] = bufio.NewWriterSize(w, 1<<16)
		closers[i] = c
	}

	var n uint64
	for _, s := range specs {
		if strings.ContainsAny(s.DB+s.Table, "\t\n") {
			a.log.Warn("skipping table with unrepresentable name", zap.String("table", s.String()))
			continue
		}
		idx := int(fnv32a(s.String()) % uint32(shards))
		if _, err := wrs[idx].WriteString(s.DB + "\t" + s.Table + "\n"); err != nil {
			return types.ListResult{}, err
		}
		n++
		if n%10000 == 0 {
			activity.RecordHeartbeat(ctx, map[string]any{"tables": n})
		}
	}
	for i, bw := range wrs {
		if err := bw.Flush(); err != nil {
			return types.ListResult{}, err
		}
		if err := closers[i].Close(); err != nil {
			return types.ListResult{}, err
		}
		closers[i] = nil
	}

	replmetrics.TablesListed.Add(float64(n))
	a.log.Info("listed tables", zap.Uint64("tables", n), zap.Int("shards", shards))
	return types.ListResult{ShardURIs: paths, Tables: n}, nil
}

func listCatalog(ctx context.Context, c catalog.Client) ([]catalog.ObjectSpec, error) {
	dbs, err := c.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	var out []catalog.ObjectSpec
	for _, db := range dbs {
		tables, err := c.ListTables(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("database %s: %w", db, err)
		}
		for _, t := range tables {
			out = append(out, catalog.NewTableSpec(db, t))
		}
	}
	return out, nil
}

func closeBoth(src, dst catalog.Client) error {
	var errs []error
	if err := src.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := dst.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
