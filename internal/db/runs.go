package db

import (
	"context"
	"time"
)

// Run statuses recorded in the ledger.
const (
	RunStarted   = "started"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one replication workflow execution.
type Run struct {
	ID         int64
	WorkflowID string
	OutputURI  string
	Status     string
	Error      *string
	StatsJSON  []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type RunRepository interface {
	Create(ctx context.Context, workflowID, outputURI string) (Run, error)
	// UpdateStatus keeps the previous stats when statsJSON is nil.
	UpdateStatus(ctx context.Context, workflowID, status string, errMsg *string, statsJSON []byte) error
	// Get returns ErrNotFound for unknown workflow IDs.
	Get(ctx context.Context, workflowID string) (Run, error)
}

func NewRunRepo(p *Pool) RunRepository { return &runRepo{p: p} }

type runRepo struct{ p *Pool }

const runColumns = `id, workflow_id, output_uri, status, error, coalesce(stats,'{}'::jsonb), created_at, updated_at`

func (r *runRepo) Create(ctx context.Context, workflowID, outputURI string) (Run, error) {
	const q = `insert into replication_run (workflow_id, output_uri, status) values ($1, $2, 'started')
               returning ` + runColumns
	var run Run
	err := r.p.QueryRow(ctx, q, workflowID, outputURI).Scan(
		&run.ID, &run.WorkflowID, &run.OutputURI, &run.Status, &run.Error, &run.StatsJSON, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return Run{}, mapPgErr(err)
	}
	return run, nil
}

func (r *runRepo) UpdateStatus(ctx context.Context, workflowID, status string, errMsg *string, statsJSON []byte) error {
	const q = `update replication_run
               set status=$1, error=$2, stats=coalesce($3::jsonb, stats), updated_at=now()
               where workflow_id=$4`
	var stats *string
	if statsJSON != nil {
		s := string(statsJSON)
		stats = &s
	}
	ct, err := r.p.Exec(ctx, q, status, errMsg, stats, workflowID)
	if err != nil {
		return mapPgErr(err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *runRepo) Get(ctx context.Context, workflowID string) (Run, error) {
	q := `select ` + runColumns + ` from replication_run where workflow_id=$1`
	var run Run
	err := r.p.QueryRow(ctx, q, workflowID).Scan(
		&run.ID, &run.WorkflowID, &run.OutputURI, &run.Status, &run.Error, &run.StatsJSON, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return Run{}, mapRowErr(err)
	}
	return run, nil
}
