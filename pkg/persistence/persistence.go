// Package persistence defines the storage contracts for runs, AI jobs and projects.
package persistence

import (
	"context"

	"github.com/dukex/flowprobe/pkg/models"
)

// RunRepository stores execution run snapshots.
type RunRepository interface {
	SaveRun(ctx context.Context, run *models.RunExecution) error
	// RunByID returns ErrRunNotFound when no run has the id.
	RunByID(ctx context.Context, id string) (*models.RunExecution, error)
	// Runs lists runs newest first. An empty projectID lists every run.
	Runs(ctx context.Context, projectID string) ([]*models.RunExecution, error)
}

// JobRepository stores AI verification jobs.
type JobRepository interface {
	SaveJob(ctx context.Context, job *models.Job) error
	// JobByID returns ErrJobNotFound when no job has the id.
	JobByID(ctx context.Context, id string) (*models.Job, error)
	// Jobs lists jobs newest first. An empty projectID lists every job.
	Jobs(ctx context.Context, projectID string) ([]*models.Job, error)
}

// ProjectRepository stores projects.
type ProjectRepository interface {
	SaveProject(ctx context.Context, project *models.Project) error
	// ProjectByID returns ErrProjectNotFound when no project has the id.
	ProjectByID(ctx context.Context, id string) (*models.Project, error)
	// Projects lists projects newest first.
	Projects(ctx context.Context) ([]*models.Project, error)
}

// Persistence bundles the repositories of one storage backend.
type Persistence interface {
	RunRepository() RunRepository
	JobRepository() JobRepository
	ProjectRepository() ProjectRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
