package activities

import (
	"bufio"
	"container/heap"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	iopkg "github.com/yourorg/catalog-replication/internal/iopkg"
	replmetrics "github.com/yourorg/catalog-replication/internal/metrics"
	"github.com/yourorg/catalog-replication/internal/types"
)

// MergeResults k-way merges the sorted table and partition record files into
// the run's results file and writes a manifest next to it.
func (a *Activities) MergeResults(ctx context.Context, p types.MergeParams) (types.MergeStats, error) {
	type src struct {
		r      *bufio.Reader
		closer io.Closer
	}
	readers := make([]src, 0, len(p.SortedURIs))
	defer func() {
		for _, s := range readers {
			_ = s.closer.Close()
		}
	}()
	for _, u := range p.SortedURIs {
		rc, err := iopkg.OpenReader(ctx, u)
		if err != nil {
			return types.MergeStats{}, err
		}
		readers = append(readers, src{r: bufio.NewReader(rc), closer: rc})
	}

	out, outCloser, err := iopkg.CreateWriter(ctx, p.OutURI)
	if err != nil {
		return types.MergeStats{}, err
	}
	bw := bufio.NewWriter(out)

	h := &minHeap{}
	heap.Init(h)
	for i := range readers {
		if s, ok := readLine(readers[i].r); ok {
			heap.Push(h, item{val: s, i: i})
		}
	}

	stats := types.MergeStats{Counts: make(map[string]uint64)}
	var last string
	const hbEvery = 50000
	for h.Len() > 0 {
		it := heap.Pop(h).(item)
		if it.val != last {
			if _, err := bw.WriteString(it.val + "\n"); err != nil {
				_ = outCloser.Close()
				return types.MergeStats{}, err
			}
			last = it.val
			action, _, _ := strings.Cut(it.val, "\t")
			stats.Counts[action]++
			stats.Emitted++
			if stats.Emitted%hbEvery == 0 {
				activity.RecordHeartbeat(ctx, stats.Emitted)
			}
		}
		if s, ok := readLine(readers[it.i].r); ok {
			heap.Push(h, item{val: s, i: it.i})
		}
	}
	if err := bw.Flush(); err != nil {
		_ = outCloser.Close()
		return types.MergeStats{}, err
	}
	// For s3:// the upload happens on Close.
	if err := outCloser.Close(); err != nil {
		return types.MergeStats{}, err
	}

	man := map[string]any{
		"output":       p.OutURI,
		"manifest":     p.ManifestURI,
		"params":       p.Params,
		"tables":       p.Tables,
		"placeholders": p.Placeholders,
		"records":      stats.Emitted,
		"counts":       stats.Counts,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}
	mb, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return types.MergeStats{}, err
	}
	mw, cw, err := iopkg.CreateWriter(ctx, p.ManifestURI)
	if err != nil {
		return types.MergeStats{}, err
	}
	if _, err := mw.Write(mb); err != nil {
		_ = cw.Close()
		return types.MergeStats{}, err
	}
	if err := cw.Close(); err != nil {
		return types.MergeStats{}, err
	}

	replmetrics.MergedRecords.Add(float64(stats.Emitted))
	a.log.Info("merged results", zap.String("output", p.OutURI), zap.Uint64("records", stats.Emitted))
	return stats, nil
}

func readLine(r *bufio.Reader) (string, bool) {
	b, err := r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(b) > 0 {
			return strings.TrimRight(string(b), "\n"), true
		}
		return "", false
	}
	return strings.TrimRight(string(b), "\n"), true
}

type item struct {
	val string
	i   int
}

type minHeap []item

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].val < h[j].val }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(item)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
