package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/yourorg/catalog-replication/internal/db"
	"github.com/yourorg/catalog-replication/internal/types"
)

// WorkflowName is the registered name of the replication workflow.
const WorkflowName = "ReplicationWorkflow"

type ReplicationHandler struct {
	temporalClient client.Client
	runs           db.RunRepository // optional
	taskQueue      string
	log            *zap.Logger
}

// NewReplicationHandler builds the handler. runs may be nil when no run
// ledger is configured.
func NewReplicationHandler(temporalClient client.Client, runs db.RunRepository, taskQueue string, log *zap.Logger) *ReplicationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReplicationHandler{temporalClient: temporalClient, runs: runs, taskQueue: taskQueue, log: log}
}

// Routes mounts the replication endpoints on g.
func (h *ReplicationHandler) Routes(g *gin.RouterGroup) {
	g.POST("/replications", h.StartReplication)
	g.GET("/replications/:id", h.GetReplication)
}

type StartReplicationRequest struct {
	OutputURI   string `json:"output_uri" binding:"required"`
	Shards      int    `json:"shards" binding:"gte=0,lte=1024"`
	Buckets     int    `json:"buckets" binding:"gte=0,lte=1024"`
	KeepScratch bool   `json:"keep_scratch"`
}

type StartReplicationResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// StartReplication starts a ReplicationWorkflow and records it in the run ledger.
func (h *ReplicationHandler) StartReplication(c *gin.Context) {
	var req StartReplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !strings.HasPrefix(req.OutputURI, "s3://") && !strings.HasPrefix(req.OutputURI, "file://") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "output_uri must be an s3:// or file:// URI"})
		return
	}

	params := types.ReplicationParams{
		OutputURI:   req.OutputURI,
		Shards:      req.Shards,
		Buckets:     req.Buckets,
		KeepScratch: req.KeepScratch,
	}
	options := client.StartWorkflowOptions{
		ID:        "replication-" + uuid.NewString(),
		TaskQueue: h.taskQueue,
	}
	run, err := h.temporalClient.ExecuteWorkflow(c.Request.Context(), options, WorkflowName, params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start workflow: " + err.Error()})
		return
	}
	if h.runs != nil {
		// The workflow is already running; a ledger failure is not fatal.
		if _, err := h.runs.Create(c.Request.Context(), run.GetID(), req.OutputURI); err != nil {
			h.log.Warn("record run", zap.String("workflow_id", run.GetID()), zap.Error(err))
		}
	}
	h.log.Info("replication started", zap.String("workflow_id", run.GetID()), zap.String("output", req.OutputURI))

	c.JSON(http.StatusOK, StartReplicationResponse{
		WorkflowID: run.GetID(),
		RunID:      run.GetRunID(),
	})
}

// GetReplication reports the Temporal status of a run, its result once
// completed, and the ledger entry when one exists.
func (h *ReplicationHandler) GetReplication(c *gin.Context) {
	workflowID := c.Param("id")
	ctx := c.Request.Context()

	describe, err := h.temporalClient.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		var nf *serviceerror.NotFound
		if errors.As(err, &nf) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Workflow not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to describe workflow: " + err.Error()})
		return
	}
	info := describe.GetWorkflowExecutionInfo()
	status := info.GetStatus()
	resp := gin.H{
		"workflow_id": workflowID,
		"status":      status.String(),
	}
	if st := info.GetStartTime(); st != nil {
		resp["start_time"] = st.AsTime()
	}

	switch status {
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		var result types.ReplicationResult
		if err := h.temporalClient.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch result: " + err.Error()})
			return
		}
		resp["result"] = result
		stats, _ := json.Marshal(result)
		h.settle(ctx, workflowID, db.RunCompleted, nil, stats)
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED,
		enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		msg := status.String()
		h.settle(ctx, workflowID, db.RunFailed, &msg, nil)
	}

	if h.runs != nil {
		if run, err := h.runs.Get(ctx, workflowID); err == nil {
			resp["ledger"] = gin.H{
				"status":     run.Status,
				"output_uri": run.OutputURI,
				"created_at": run.CreatedAt,
				"updated_at": run.UpdatedAt,
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// settle records a terminal status in the run ledger.
func (h *ReplicationHandler) settle(ctx context.Context, workflowID, status string, errMsg *string, stats []byte) {
	if h.runs == nil {
		return
	}
	if err := h.runs.UpdateStatus(ctx, workflowID, status, errMsg, stats); err != nil && !errors.Is(err, db.ErrNotFound) {
		h.log.Warn("update run status", zap.String("workflow_id", workflowID), zap.Error(err))
	}
}
