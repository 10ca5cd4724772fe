package activities

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/yourorg/catalog-replication/internal/estimate"
	iopkg "github.com/yourorg/catalog-replication/internal/iopkg"
	replmetrics "github.com/yourorg/catalog-replication/internal/metrics"
	"github.com/yourorg/catalog-replication/internal/types"
)

// CompareTables is the map stage. It runs ProcessTable for every table in a
// shard, keeps the table-level records and shuffles check-partition records
// into per-bucket files by partition identity. Any table failure fails the
// activity.
func (a *Activities) CompareTables(ctx context.Context, p types.CompareTablesParams) (types.CompareTablesResult, error) {
	in, err := iopkg.OpenReader(ctx, p.ShardURI)
	if err != nil {
		return types.CompareTablesResult{}, err
	}
	defer in.Close()

	buckets := p.Buckets
	if buckets <= 0 {
		buckets = 16
	}
	res := types.CompareTablesResult{CheckURIs: make([]string, buckets)}
	wrs := make([]*bufio.Writer, buckets)
	closers := make([]io.Closer, buckets)
	defer func() {
		for i := range closers {
			if closers[i] != nil {
				_ = closers[i].Close()
			}
		}
	}()
	for b := 0; b < buckets; b++ {
		path := a.scratchPath(p.ScratchSubdir, fmt.Sprintf("check/check-%02d-%02d.tsv", p.Shard, b))
		w, c, err := iopkg.Create(path)
		if err != nil {
			return types.CompareTablesResult{}, err
		}
		res.CheckURIs[b] = "file://" + path
		wrs[b] = bufio.NewWriterSize(w, 1<<16)
		closers[b] = c
	}

	src, dst, err := a.dial(ctx)
	if err != nil {
		return types.CompareTablesResult{}, err
	}
	w := a.newWorker(src, dst)
	defer func() {
		if err := w.Close(); err != nil {
			a.log.Warn("close catalogs", zap.Error(err))
		}
	}()

	var tableLines []string
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 1024), 1024*1024)
	lastHB := time.Now()
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		db, table, ok := strings.Cut(line, "\t")
		if !ok {
			return types.CompareTablesResult{}, fmt.Errorf("malformed shard line %q", line)
		}
		recs, err := w.ProcessTable(ctx, db, table)
		if err != nil {
			replmetrics.TablesFailed.Inc()
			return types.CompareTablesResult{}, err
		}
		if len(recs) == 0 {
			res.Blocklisted++
			continue
		}
		res.Tables++
		for _, r := range recs {
			s, err := r.Marshal()
			if err != nil {
				return types.CompareTablesResult{}, err
			}
			if r.Estimate.Type != estimate.CheckPartition {
				tableLines = append(tableLines, s)
				continue
			}
			b := int(fnv32a(r.Spec.String()) % uint32(buckets))
			if _, err := wrs[b].WriteString(s + "\n"); err != nil {
				return types.CompareTablesResult{}, err
			}
			res.Placeholders++
		}
		if res.Tables%100 == 0 || time.Since(lastHB) > 10*time.Second {
			activity.RecordHeartbeat(ctx, map[string]any{"tables": res.Tables, "placeholders": res.Placeholders})
			lastHB = time.Now()
		}
	}
	if err := sc.Err(); err != nil {
		return types.CompareTablesResult{}, err
	}
	for b, bw := range wrs {
		if err := bw.Flush(); err != nil {
			return types.CompareTablesResult{}, err
		}
		if err := closers[b].Close(); err != nil {
			return types.CompareTablesResult{}, err
		}
		closers[b] = nil
	}

	sort.Strings(tableLines)
	path := a.scratchPath(p.ScratchSubdir, fmt.Sprintf("tables/tables-%02d.tsv", p.Shard))
	if err := writeLines(path, tableLines); err != nil {
		return types.CompareTablesResult{}, err
	}
	res.TablesURI = "file://" + path

	a.log.Info("compared tables",
		zap.Int("shard", p.Shard),
		zap.Uint64("tables", res.Tables),
		zap.Uint64("blocklisted", res.Blocklisted),
		zap.Uint64("placeholders", res.Placeholders))
	return res, nil
}

func writeLines(path string, lines []string) error {
	w, c, err := iopkg.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(w, 1<<16)
	for _, l := range lines {
		if _, err := bw.WriteString(l + "\n"); err != nil {
			_ = c.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = c.Close()
		return err
	}
	return c.Close()
}
