package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/dukex/flowprobe/pkg/persistence/sqlbase"
)

// RunRepository stores run snapshots in the runs table.
type RunRepository struct {
	db      *sql.DB
	dialect sqlbase.Dialect
}

func (r *RunRepository) SaveRun(ctx context.Context, run *models.RunExecution) error {
	if run == nil || run.ID == "" {
		return persistence.NewRepositoryError("SaveRun", "run", "", persistence.ErrInvalidEntity)
	}

	data, err := json.Marshal(run)
	if err != nil {
		return persistence.NewRepositoryError("SaveRun", "run", run.ID, err)
	}

	query := r.dialect.Upsert("runs", "id", []string{"id", "project_id", "status", "created_at", "data"})

	_, err = r.db.ExecContext(ctx, query,
		run.ID, run.ProjectID, string(run.Status), sqlbase.ToUnixNano(run.CreatedAt), string(data))
	if err != nil {
		return persistence.NewRepositoryError("SaveRun", "run", run.ID, err)
	}

	return nil
}

func (r *RunRepository) RunByID(ctx context.Context, id string) (*models.RunExecution, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT data FROM runs WHERE id = ?"), id)

	run, found, err := scanDocument[models.RunExecution](row)
	if err != nil {
		return nil, persistence.NewRepositoryError("RunByID", "run", id, err)
	}

	if !found {
		return nil, persistence.NewRepositoryError("RunByID", "run", id, persistence.ErrRunNotFound)
	}

	return run, nil
}

func (r *RunRepository) Runs(ctx context.Context, projectID string) ([]*models.RunExecution, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if projectID == "" {
		rows, err = r.db.QueryContext(ctx, "SELECT data FROM runs ORDER BY created_at DESC, id")
	} else {
		rows, err = r.db.QueryContext(ctx,
			r.dialect.Rebind("SELECT data FROM runs WHERE project_id = ? ORDER BY created_at DESC, id"), projectID)
	}

	if err != nil {
		return nil, persistence.NewRepositoryError("Runs", "run", "", err)
	}

	runs, err := scanDocuments[models.RunExecution](rows)
	if err != nil {
		return nil, persistence.NewRepositoryError("Runs", "run", "", err)
	}

	return runs, nil
}
