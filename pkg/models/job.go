package models

import "time"

// UnknownProjectDir is the job directory used when a job has no project.
const UnknownProjectDir = "_unknown"

// Job is an asynchronous AI verification request and its outcome.
type Job struct {
	ID           string                `json:"id"`
	Status       JobStatus             `json:"status"`
	CreatedAt    time.Time             `json:"createdAt"`
	StartedAt    *time.Time            `json:"startedAt,omitempty"`
	FinishedAt   *time.Time            `json:"finishedAt,omitempty"`
	BPMNXML      string                `json:"bpmnXml,omitempty"`
	OpenAPIJSON  string                `json:"openApiJson,omitempty"`
	Result       *AIVerificationReport `json:"result,omitempty"`
	ErrorMessage string                `json:"errorMessage,omitempty"`
	ModelID      *int                  `json:"modelId,omitempty"`
	ModelName    string                `json:"modelName,omitempty"`
	ProjectID    string                `json:"projectId,omitempty"`
}

// ProjectDir returns the directory name the job is filed under.
func (j *Job) ProjectDir() string {
	if j.ProjectID == "" {
		return UnknownProjectDir
	}

	return j.ProjectID
}

// Clone returns a copy that does not share time pointers with j.
func (j *Job) Clone() *Job {
	out := *j

	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}

	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}

	return &out
}

// AIModel is a model selectable for verification jobs.
type AIModel struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
