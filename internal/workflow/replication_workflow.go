package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yourorg/catalog-replication/internal/record"
	"github.com/yourorg/catalog-replication/internal/types"
)

// ReplicationWorkflow compares the source and destination catalogs and
// writes one record per table and partition under
// <OutputURI>/run=<ts>/results.tsv.
//
// Tables are listed and sharded, each shard is compared (map), the
// check-partition placeholders it emits are shuffled into buckets that are
// resolved independently (reduce), and all sorted outputs are merged.
func ReplicationWorkflow(ctx workflow.Context, p types.ReplicationParams) (types.ReplicationResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 4 * time.Hour,
		HeartbeatTimeout:    1 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	// Compare and merge stages can run longer between safe heartbeat points.
	longAO := ao
	longAO.HeartbeatTimeout = 5 * time.Minute
	longCtx := workflow.WithActivityOptions(ctx, longAO)

	if p.ScratchSubdir == "" {
		p.ScratchSubdir = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	if p.RunTime.IsZero() {
		p.RunTime = workflow.Now(ctx)
	}
	if p.Shards <= 0 {
		p.Shards = 16
	}
	if p.Buckets <= 0 {
		p.Buckets = 16
	}
	logger := workflow.GetLogger(ctx)

	if !p.KeepScratch {
		defer func() {
			// Runs after failure and cancellation too.
			dctx, _ := workflow.NewDisconnectedContext(ctx)
			cp := types.CleanupParams{ScratchSubdir: p.ScratchSubdir}
			if err := workflow.ExecuteActivity(dctx, "Activities.CleanupScratch", cp).Get(dctx, nil); err != nil {
				logger.Warn("scratch cleanup failed", "scratch", p.ScratchSubdir, "error", err)
			}
		}()
	}

	var list types.ListResult
	lp := types.ListParams{Shards: p.Shards, ScratchSubdir: p.ScratchSubdir}
	if err := workflow.ExecuteActivity(ctx, "Activities.ListTables", lp).Get(ctx, &list); err != nil {
		return types.ReplicationResult{}, err
	}

	// map: compare tables per shard
	tables := make([]types.CompareTablesResult, len(list.ShardURIs))
	futures := make([]workflow.Future, len(list.ShardURIs))
	for i, shard := range list.ShardURIs {
		cp := types.CompareTablesParams{Shard: i, ShardURI: shard, Buckets: p.Buckets, ScratchSubdir: p.ScratchSubdir}
		futures[i] = workflow.ExecuteActivity(longCtx, "Activities.CompareTables", cp)
	}
	for i := range futures {
		if err := futures[i].Get(ctx, &tables[i]); err != nil {
			return types.ReplicationResult{}, err
		}
	}

	// reduce: resolve partitions per bucket
	parts := make([]types.ComparePartitionsResult, p.Buckets)
	futures = make([]workflow.Future, p.Buckets)
	for b := 0; b < p.Buckets; b++ {
		pp := types.ComparePartitionsParams{Bucket: b, ScratchSubdir: p.ScratchSubdir}
		for _, t := range tables {
			pp.CheckURIs = append(pp.CheckURIs, t.CheckURIs[b])
		}
		futures[b] = workflow.ExecuteActivity(longCtx, "Activities.ComparePartitions", pp)
	}
	for b := range futures {
		if err := futures[b].Get(ctx, &parts[b]); err != nil {
			return types.ReplicationResult{}, err
		}
	}

	prefix := record.RunPrefix(p.OutputURI, p.RunTime)
	mp := types.MergeParams{
		OutURI:      prefix + "/results.tsv",
		ManifestURI: prefix + "/manifest.json",
		Params:      p,
	}
	for _, t := range tables {
		mp.SortedURIs = append(mp.SortedURIs, t.TablesURI)
		mp.Tables += t.Tables
		mp.Placeholders += t.Placeholders
	}
	for _, r := range parts {
		mp.SortedURIs = append(mp.SortedURIs, r.OutputURI)
	}

	var ms types.MergeStats
	if err := workflow.ExecuteActivity(longCtx, "Activities.MergeResults", mp).Get(ctx, &ms); err != nil {
		return types.ReplicationResult{}, err
	}
	logger.Info("replication comparison complete", "results", mp.OutURI, "records", ms.Emitted)
	return types.ReplicationResult{
		ResultsURI:  mp.OutURI,
		ManifestURI: mp.ManifestURI,
		Tables:      mp.Tables,
		Records:     ms.Emitted,
		Counts:      ms.Counts,
	}, nil
}
