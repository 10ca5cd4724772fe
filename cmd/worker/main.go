package main

import (
	"log"
	"os"
	"strings"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/yourorg/catalog-replication/internal/activities"
	"github.com/yourorg/catalog-replication/internal/blocklist"
	"github.com/yourorg/catalog-replication/internal/copytask"
	replmetrics "github.com/yourorg/catalog-replication/internal/metrics"
	"github.com/yourorg/catalog-replication/internal/workflow"
)

func main() {
	// Support both TEMPORAL_TARGET_HOST and TEMPORAL_ADDRESS for compatibility
	taddr := getenv("TEMPORAL_TARGET_HOST", getenv("TEMPORAL_ADDRESS", "localhost:7233"))
	ns := getenv("TEMPORAL_NAMESPACE", "default")
	q := getenv("TEMPORAL_TASK_QUEUE", "catalog-replication")
	tmpDir := getenv("REPL_TMP_DIR", "/var/catalog-replication")
	// Ensure scratch dir exists and is writable
	_ = os.MkdirAll(tmpDir, 0o777)

	zl := newZap(getenv("LOG_LEVEL", "info"))
	defer zl.Sync()

	// A malformed block-list must stop the worker before it compares anything.
	filter, err := blocklist.Parse(os.Getenv("REPL_BLOCKLIST"))
	if err != nil {
		zl.Fatal("invalid REPL_BLOCKLIST", zap.Error(err))
	}
	conflict := copytask.ConflictOverwrite
	if strings.EqualFold(getenv("REPL_CONFLICT_POLICY", "overwrite"), "fail") {
		conflict = copytask.ConflictFail
	}

	replmetrics.Init()
	go func() {
		addr := replmetrics.AddrFromEnv()
		_ = replmetrics.Serve(addr)
	}()

	c, err := client.Dial(client.Options{HostPort: taddr, Namespace: ns})
	if err != nil {
		log.Fatal("temporal client:", err)
	}
	defer c.Close()

	w := worker.New(c, q, worker.Options{})
	acts := activities.New(activities.Config{
		ScratchDir: tmpDir,
		Src: activities.Cluster{
			Name:   getenv("SRC_CLUSTER_NAME", "source"),
			DSN:    os.Getenv("SRC_CATALOG_DSN"),
			FSRoot: os.Getenv("SRC_FS_ROOT"),
		},
		Dst: activities.Cluster{
			Name:   getenv("DST_CLUSTER_NAME", "destination"),
			DSN:    os.Getenv("DST_CATALOG_DSN"),
			FSRoot: os.Getenv("DST_FS_ROOT"),
		},
		Filter:   filter,
		Dial:     activities.CatalogDialer(),
		Conflict: conflict,
		Log:      zl,
	})
	activities.Register(w, acts)
	w.RegisterWorkflow(workflow.ReplicationWorkflow)

	zl.Info("worker started",
		zap.String("namespace", ns),
		zap.String("taskQueue", q),
		zap.String("tmp", tmpDir),
		zap.Int("blocklistRules", filter.Len()),
		zap.String("metrics", getenv("METRICS_ADDR", ":9090")))
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal("worker failed:", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func newZap(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
