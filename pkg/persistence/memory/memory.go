// Package memory provides an in-process persistence backend, mainly for tests
// and single-shot CLI runs.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
)

// Persistence keeps every document in maps guarded by one lock. Documents are
// copied on the way in and out so callers never share state with the store.
type Persistence struct {
	mu       sync.RWMutex
	runs     map[string]*models.RunExecution
	jobs     map[string]*models.Job
	projects map[string]*models.Project
}

// NewPersistence returns an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		runs:     map[string]*models.RunExecution{},
		jobs:     map[string]*models.Job{},
		projects: map[string]*models.Project{},
	}
}

func (p *Persistence) RunRepository() persistence.RunRepository         { return runRepository{p} }
func (p *Persistence) JobRepository() persistence.JobRepository         { return jobRepository{p} }
func (p *Persistence) ProjectRepository() persistence.ProjectRepository { return projectRepository{p} }

func (p *Persistence) HealthCheck(context.Context) error { return nil }
func (p *Persistence) Close(context.Context) error       { return nil }

// DeleteFinishedBefore removes terminal jobs that finished before cutoff.
func (p *Persistence) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	deleted := 0

	for id, job := range p.jobs {
		if job.Status.Terminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(p.jobs, id)

			deleted++
		}
	}

	return deleted, nil
}

type runRepository struct{ p *Persistence }

func (r runRepository) SaveRun(_ context.Context, run *models.RunExecution) error {
	if run == nil || run.ID == "" {
		return persistence.NewRepositoryError("SaveRun", "run", "", persistence.ErrInvalidEntity)
	}

	cp, err := clone(run)
	if err != nil {
		return persistence.NewRepositoryError("SaveRun", "run", run.ID, err)
	}

	r.p.mu.Lock()
	r.p.runs[run.ID] = cp
	r.p.mu.Unlock()

	return nil
}

func (r runRepository) RunByID(_ context.Context, id string) (*models.RunExecution, error) {
	r.p.mu.RLock()
	run, ok := r.p.runs[id]
	r.p.mu.RUnlock()

	if !ok {
		return nil, persistence.NewRepositoryError("RunByID", "run", id, persistence.ErrRunNotFound)
	}

	return clone(run)
}

func (r runRepository) Runs(_ context.Context, projectID string) ([]*models.RunExecution, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	out := []*models.RunExecution{}

	for _, run := range r.p.runs {
		if projectID != "" && run.ProjectID != projectID {
			continue
		}

		cp, err := clone(run)
		if err != nil {
			return nil, err
		}

		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })

	return out, nil
}

type jobRepository struct{ p *Persistence }

func (r jobRepository) SaveJob(_ context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return persistence.NewRepositoryError("SaveJob", "job", "", persistence.ErrInvalidEntity)
	}

	cp, err := clone(job)
	if err != nil {
		return persistence.NewRepositoryError("SaveJob", "job", job.ID, err)
	}

	r.p.mu.Lock()
	r.p.jobs[job.ID] = cp
	r.p.mu.Unlock()

	return nil
}

func (r jobRepository) JobByID(_ context.Context, id string) (*models.Job, error) {
	r.p.mu.RLock()
	job, ok := r.p.jobs[id]
	r.p.mu.RUnlock()

	if !ok {
		return nil, persistence.NewRepositoryError("JobByID", "job", id, persistence.ErrJobNotFound)
	}

	return clone(job)
}

func (r jobRepository) Jobs(_ context.Context, projectID string) ([]*models.Job, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	out := []*models.Job{}

	for _, job := range r.p.jobs {
		if projectID != "" && job.ProjectDir() != projectID {
			continue
		}

		cp, err := clone(job)
		if err != nil {
			return nil, err
		}

		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })

	return out, nil
}

type projectRepository struct{ p *Persistence }

func (r projectRepository) SaveProject(_ context.Context, project *models.Project) error {
	if project == nil || project.ID == "" {
		return persistence.NewRepositoryError("SaveProject", "project", "", persistence.ErrInvalidEntity)
	}

	cp, err := clone(project)
	if err != nil {
		return persistence.NewRepositoryError("SaveProject", "project", project.ID, err)
	}

	r.p.mu.Lock()
	r.p.projects[project.ID] = cp
	r.p.mu.Unlock()

	return nil
}

func (r projectRepository) ProjectByID(_ context.Context, id string) (*models.Project, error) {
	r.p.mu.RLock()
	project, ok := r.p.projects[id]
	r.p.mu.RUnlock()

	if !ok {
		return nil, persistence.NewRepositoryError("ProjectByID", "project", id, persistence.ErrProjectNotFound)
	}

	return clone(project)
}

func (r projectRepository) Projects(_ context.Context) ([]*models.Project, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	out := []*models.Project{}

	for _, project := range r.p.projects {
		cp, err := clone(project)
		if err != nil {
			return nil, err
		}

		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })

	return out, nil
}

func newer(a, b time.Time, idA, idB string) bool {
	if a.Equal(b) {
		return idA < idB
	}

	return a.After(b)
}

func clone[T any](v *T) (*T, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	return &out, nil
}
