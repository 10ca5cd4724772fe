package activities

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/yourorg/catalog-replication/internal/estimate"
	"github.com/yourorg/catalog-replication/internal/record"
)

// InspectTable runs both compare stages for a single table outside any
// workflow and returns its final records sorted by line. It runs the
// pre-copy task like CompareTables does. It is not registered as an
// activity.
func (a *Activities) InspectTable(ctx context.Context, db, table string) ([]record.Record, error) {
	src, dst, err := a.dial(ctx)
	if err != nil {
		return nil, err
	}
	w := a.newWorker(src, dst)
	defer func() {
		if err := w.Close(); err != nil {
			a.log.Warn("close catalogs", zap.Error(err))
		}
	}()

	recs, err := w.ProcessTable(ctx, db, table)
	if err != nil {
		return nil, err
	}
	est := a.estimator(src, dst)
	out := make([]record.Record, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		if r.Estimate.Type == estimate.CheckPartition {
			key := r.Spec.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			e, err := est.Analyze(ctx, r.Spec)
			if err != nil {
				return nil, err
			}
			r = record.New(e, r.Spec)
		}
		out = append(out, r)
	}
	type keyed struct {
		line string
		rec  record.Record
	}
	ks := make([]keyed, len(out))
	for i, r := range out {
		line, err := r.Marshal()
		if err != nil {
			return nil, err
		}
		ks[i] = keyed{line, r}
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i].line < ks[j].line })
	for i := range ks {
		out[i] = ks[i].rec
	}
	return out, nil
}
