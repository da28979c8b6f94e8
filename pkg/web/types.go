package web

import (
	"time"

	"github.com/dukex/flowprobe/pkg/models"
)

// MapRequest is the body of POST /map.
type MapRequest struct {
	BPMNXML     string `json:"bpmnXml"           form:"bpmnXml"`
	OpenAPIJSON string `json:"openApiJson"       form:"openApiJson" validate:"required"`
	Verify      bool   `json:"verify"            form:"verify"`
	ModelID     *int   `json:"modelId,omitempty" form:"modelId"`
}

// CreateProjectRequest is the body of POST /projects.
type CreateProjectRequest struct {
	Name        string `json:"name"                  form:"name"        validate:"required"`
	BPMNXML     string `json:"bpmnXml"               form:"bpmnXml"     validate:"required"`
	OpenAPIJSON string `json:"openApiJson"           form:"openApiJson" validate:"required"`
	PumlContent string `json:"pumlContent,omitempty" form:"pumlContent"`
}

// RemapProjectRequest optionally replaces the project documents before remapping.
type RemapProjectRequest struct {
	BPMNXML     string `json:"bpmnXml,omitempty"     form:"bpmnXml"`
	OpenAPIJSON string `json:"openApiJson,omitempty" form:"openApiJson"`
	PumlContent string `json:"pumlContent,omitempty" form:"pumlContent"`
}

// StartRunRequest is the body of POST /runner/run.
type StartRunRequest struct {
	ScenarioID     string `json:"scenarioId"     form:"scenarioId"`
	ProjectID      string `json:"projectId"      form:"projectId"      validate:"required"`
	Parallelism    int    `json:"parallelism"    form:"parallelism"    validate:"omitempty,min=1"`
	DataTemplateID string `json:"dataTemplateId" form:"dataTemplateId"`
}

type StartRunResponse struct {
	RunID string `json:"runId"`
}

// VerifyRequest is the body of POST /ai/verify.
type VerifyRequest struct {
	BPMNXML     string `json:"bpmnXml"             form:"bpmnXml"     validate:"required"`
	OpenAPIJSON string `json:"openApiJson"         form:"openApiJson" validate:"required"`
	ModelID     *int   `json:"modelId,omitempty"   form:"modelId"`
	ProjectID   string `json:"projectId,omitempty" form:"projectId"`
}

type JobResponse struct {
	JobID string `json:"jobId"`
}

// JobStatusResponse reports a job with its status in lower case.
type JobStatusResponse struct {
	Status     string                       `json:"status"`
	Result     *models.AIVerificationReport `json:"result,omitempty"`
	Error      string                       `json:"error,omitempty"`
	CreatedAt  time.Time                    `json:"createdAt"`
	StartedAt  *time.Time                   `json:"startedAt,omitempty"`
	FinishedAt *time.Time                   `json:"finishedAt,omitempty"`
	ModelName  string                       `json:"modelName,omitempty"`
	ProjectID  string                       `json:"projectId,omitempty"`
}

// NewJobStatusResponse converts a job to its status response.
func NewJobStatusResponse(job *models.Job) JobStatusResponse {
	return JobStatusResponse{
		Status:     job.Status.Wire(),
		Result:     job.Result,
		Error:      job.ErrorMessage,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
		ModelName:  job.ModelName,
		ProjectID:  job.ProjectID,
	}
}

type JobsResponse struct {
	Jobs []*models.Job `json:"jobs"`
}

type ModelsResponse struct {
	Models []models.AIModel `json:"models"`
}
