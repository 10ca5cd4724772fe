package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/yourorg/catalog-replication/internal/api"
	"github.com/yourorg/catalog-replication/internal/db"
)

func main() {
	zl := newZap(getEnv("LOG_LEVEL", "info"))
	defer zl.Sync()

	// Run ledger is optional; without DB_DSN runs are tracked by Temporal only.
	var runs db.RunRepository
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := db.Connect(ctx, db.FromEnv())
		if err == nil {
			err = db.Migrate(ctx, pool)
		}
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to run ledger: %v", err)
		}
		defer pool.Close()
		runs = db.NewRunRepo(pool)
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  getEnv("TEMPORAL_TARGET_HOST", getEnv("TEMPORAL_ADDRESS", "localhost:7233")),
		Namespace: getEnv("TEMPORAL_NAMESPACE", "default"),
	})
	if err != nil {
		log.Fatalf("Failed to connect to Temporal: %v", err)
	}
	defer temporalClient.Close()

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}))
	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })

	handler := api.NewReplicationHandler(temporalClient, runs, getEnv("TEMPORAL_TASK_QUEUE", "catalog-replication"), zl)
	handler.Routes(r.Group("/api/v1"))

	port := getEnv("PORT", "8080")
	zl.Info("server starting", zap.String("port", port), zap.Bool("ledger", runs != nil))
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func newZap(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
