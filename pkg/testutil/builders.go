// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/google/uuid"
)

// BaseTime is the reference instant used by the builders.
var BaseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// CreateTestRun creates a queued RunExecution with default values that can be overridden.
func CreateTestRun(overrides ...func(*models.RunExecution)) *models.RunExecution {
	run := models.NewRunExecution(uuid.New().String(), "scenario-1", "", BaseTime)

	for _, override := range overrides {
		override(run)
	}

	return run
}

// WithRunProject sets the run project.
func WithRunProject(projectID string) func(*models.RunExecution) {
	return func(r *models.RunExecution) {
		r.ProjectID = projectID
	}
}

// WithRunCreatedAt sets the run creation time.
func WithRunCreatedAt(t time.Time) func(*models.RunExecution) {
	return func(r *models.RunExecution) {
		r.CreatedAt = t
	}
}

// CreateTestJob creates a queued Job with default values that can be overridden.
func CreateTestJob(overrides ...func(*models.Job)) *models.Job {
	job := &models.Job{
		ID:          uuid.New().String(),
		Status:      models.JobStatusQueued,
		CreatedAt:   BaseTime,
		BPMNXML:     "<definitions/>",
		OpenAPIJSON: `{"openapi":"3.0.0"}`,
	}

	for _, override := range overrides {
		override(job)
	}

	return job
}

// WithJobProject sets the job project.
func WithJobProject(projectID string) func(*models.Job) {
	return func(j *models.Job) {
		j.ProjectID = projectID
	}
}

// WithJobCreatedAt sets the job creation time.
func WithJobCreatedAt(t time.Time) func(*models.Job) {
	return func(j *models.Job) {
		j.CreatedAt = t
	}
}

// WithJobFinished marks the job as finished with status at t.
func WithJobFinished(status models.JobStatus, t time.Time) func(*models.Job) {
	return func(j *models.Job) {
		started := t.Add(-time.Second)
		j.Status = status
		j.StartedAt = &started
		j.FinishedAt = &t
	}
}

// CreateTestProject creates a Project with default values that can be overridden.
func CreateTestProject(overrides ...func(*models.Project)) *models.Project {
	project := &models.Project{
		ID:          uuid.New().String(),
		Name:        "Test Project",
		CreatedAt:   BaseTime,
		UpdatedAt:   BaseTime,
		BPMNXML:     "<definitions/>",
		OpenAPIJSON: `{"openapi":"3.0.0"}`,
	}

	for _, override := range overrides {
		override(project)
	}

	return project
}

// WithProjectCreatedAt sets the project creation time.
func WithProjectCreatedAt(t time.Time) func(*models.Project) {
	return func(p *models.Project) {
		p.CreatedAt = t
		p.UpdatedAt = t
	}
}
