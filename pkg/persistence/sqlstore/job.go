package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/dukex/flowprobe/pkg/persistence/sqlbase"
)

// JobRepository stores AI verification jobs in the ai_jobs table.
type JobRepository struct {
	db      *sql.DB
	dialect sqlbase.Dialect
}

func (r *JobRepository) SaveJob(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return persistence.NewRepositoryError("SaveJob", "job", "", persistence.ErrInvalidEntity)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return persistence.NewRepositoryError("SaveJob", "job", job.ID, err)
	}

	var finishedAt int64
	if job.FinishedAt != nil {
		finishedAt = sqlbase.ToUnixNano(*job.FinishedAt)
	}

	query := r.dialect.Upsert("ai_jobs", "id",
		[]string{"id", "project_dir", "status", "created_at", "finished_at", "data"})

	_, err = r.db.ExecContext(ctx, query,
		job.ID, job.ProjectDir(), string(job.Status), sqlbase.ToUnixNano(job.CreatedAt), finishedAt, string(data))
	if err != nil {
		return persistence.NewRepositoryError("SaveJob", "job", job.ID, err)
	}

	return nil
}

func (r *JobRepository) JobByID(ctx context.Context, id string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT data FROM ai_jobs WHERE id = ?"), id)

	job, found, err := scanDocument[models.Job](row)
	if err != nil {
		return nil, persistence.NewRepositoryError("JobByID", "job", id, err)
	}

	if !found {
		return nil, persistence.NewRepositoryError("JobByID", "job", id, persistence.ErrJobNotFound)
	}

	return job, nil
}

func (r *JobRepository) Jobs(ctx context.Context, projectID string) ([]*models.Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if projectID == "" {
		rows, err = r.db.QueryContext(ctx, "SELECT data FROM ai_jobs ORDER BY created_at DESC, id")
	} else {
		rows, err = r.db.QueryContext(ctx,
			r.dialect.Rebind("SELECT data FROM ai_jobs WHERE project_dir = ? ORDER BY created_at DESC, id"), projectID)
	}

	if err != nil {
		return nil, persistence.NewRepositoryError("Jobs", "job", "", err)
	}

	jobs, err := scanDocuments[models.Job](rows)
	if err != nil {
		return nil, persistence.NewRepositoryError("Jobs", "job", "", err)
	}

	return jobs, nil
}

// DeleteFinishedBefore removes terminal jobs that finished before cutoff.
func (r *JobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		r.dialect.Rebind("DELETE FROM ai_jobs WHERE status IN (?, ?) AND finished_at > 0 AND finished_at < ?"),
		string(models.JobStatusCompleted), string(models.JobStatusError), sqlbase.ToUnixNano(cutoff))
	if err != nil {
		return 0, persistence.NewRepositoryError("DeleteFinishedBefore", "job", "", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistence.NewRepositoryError("DeleteFinishedBefore", "job", "", err)
	}

	return int(n), nil
}
