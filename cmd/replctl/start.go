package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.temporal.io/sdk/client"

	"github.com/yourorg/catalog-replication/internal/api"
	"github.com/yourorg/catalog-replication/internal/types"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a replication run on the worker fleet",
	Long: `Start ReplicationWorkflow on Temporal and print its workflow and run IDs.
The workers use their own catalog configuration; only the run parameters are
taken from the flags here.`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	f := startCmd.Flags()
	f.String("output", "", "output URI prefix (s3:// or file://)")
	f.Int("shards", 16, "number of table shards")
	f.Int("buckets", 16, "number of partition buckets")
	f.Bool("keep-scratch", false, "keep intermediate files after the run")
	f.String("temporal-address", "localhost:7233", "Temporal frontend host:port")
	f.String("temporal-namespace", "default", "Temporal namespace")
	f.String("task-queue", "catalog-replication", "Temporal task queue")
	for key, flag := range map[string]string{
		"output":             "output",
		"shards":             "shards",
		"buckets":            "buckets",
		"keep_scratch":       "keep-scratch",
		"temporal_address":   "temporal-address",
		"temporal_namespace": "temporal-namespace",
		"task_queue":         "task-queue",
	} {
		mustBindPFlag(key, f.Lookup(flag))
	}
}

func runStart(cmd *cobra.Command, _ []string) error {
	params := types.ReplicationParams{
		OutputURI:   viper.GetString("output"),
		Shards:      viper.GetInt("shards"),
		Buckets:     viper.GetInt("buckets"),
		KeepScratch: viper.GetBool("keep_scratch"),
	}
	if params.OutputURI == "" {
		return errors.New("--output is required")
	}

	c, err := client.Dial(client.Options{
		HostPort:  viper.GetString("temporal_address"),
		Namespace: viper.GetString("temporal_namespace"),
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	opts := client.StartWorkflowOptions{
		ID:        "replication-" + uuid.NewString(),
		TaskQueue: viper.GetString("task_queue"),
	}
	run, err := c.ExecuteWorkflow(cmd.Context(), opts, api.WorkflowName, params)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "workflow_id=%s run_id=%s\n", run.GetID(), run.GetRunID())
	return err
}
