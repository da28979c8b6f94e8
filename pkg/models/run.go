package models

import "time"

// RunExecution is the persisted snapshot of an asynchronous execution run.
type RunExecution struct {
	ID              string           `json:"id"`
	ScenarioID      string           `json:"scenarioId,omitempty"`
	ProjectID       string           `json:"projectId,omitempty"`
	DataTemplateID  string           `json:"dataTemplateId,omitempty"`
	Status          RunStatus        `json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
	StartedAt       *time.Time       `json:"startedAt,omitempty"`
	FinishedAt      *time.Time       `json:"finishedAt,omitempty"`
	Progress        float64          `json:"progress"`
	Parallelism     int              `json:"parallelism"`
	Steps           []RunStep        `json:"steps"`
	Logs            []LogEntry       `json:"logs"`
	ExecutionResult *ExecutionResult `json:"executionResult,omitempty"`
	AIAnalysisJobID string           `json:"aiAnalysisJobId,omitempty"`
}

// NewRunExecution returns a QUEUED run.
func NewRunExecution(id, scenarioID, projectID string, now time.Time) *RunExecution {
	return &RunExecution{
		ID:          id,
		ScenarioID:  scenarioID,
		ProjectID:   projectID,
		Status:      RunStatusQueued,
		CreatedAt:   now,
		Parallelism: 1,
		Steps:       []RunStep{},
		Logs:        []LogEntry{},
	}
}

// Transition moves the run to next if that keeps the lifecycle monotonic.
func (r *RunExecution) Transition(next RunStatus, now time.Time) bool {
	if !r.Status.CanTransition(next) {
		return false
	}

	r.Status = next

	switch {
	case next == RunStatusRunning:
		r.StartedAt = &now
	case next.Terminal():
		r.FinishedAt = &now
	}

	return true
}

// RunStep is the per-step summary shown while a run progresses.
type RunStep struct {
	StepID       string           `json:"stepId"`
	TaskID       string           `json:"taskId,omitempty"`
	TaskName     string           `json:"taskName,omitempty"`
	Status       RunStepStatus    `json:"status"`
	StartedAt    *time.Time       `json:"startedAt,omitempty"`
	FinishedAt   *time.Time       `json:"finishedAt,omitempty"`
	DurationMs   int64            `json:"durationMs"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	Request      *RunStepRequest  `json:"request,omitempty"`
	Response     *RunStepResponse `json:"response,omitempty"`
}

// RunStepRequest mirrors StepRequest in the run snapshot.
type RunStepRequest struct {
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// RunStepResponse mirrors StepResponse in the run snapshot.
type RunStepResponse struct {
	StatusCode     int               `json:"statusCode"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	ResponseTimeMs int64             `json:"responseTimeMs"`
	Timestamp      time.Time         `json:"timestamp"`
}

// LogEntry is a run log line.
type LogEntry struct {
	ID        string    `json:"id"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	StepID    string    `json:"stepId,omitempty"`
}

// RunStepFromExecution converts an engine step to its snapshot form.
func RunStepFromExecution(step *ExecutionStep) RunStep {
	rs := RunStep{
		StepID:       step.StepID,
		TaskID:       step.TaskID,
		TaskName:     step.TaskName,
		Status:       RunStepStatusFor(step.Status),
		DurationMs:   step.DurationMs,
		ErrorMessage: step.ErrorMessage,
	}

	if !step.StartTime.IsZero() {
		started := step.StartTime
		rs.StartedAt = &started
	}

	if !step.EndTime.IsZero() {
		finished := step.EndTime
		rs.FinishedAt = &finished
	}

	if step.Request != nil {
		rs.Request = &RunStepRequest{
			Method:    step.Request.Method,
			URL:       step.Request.URL,
			Headers:   step.Request.Headers,
			Body:      step.Request.Body,
			Timestamp: step.Request.Timestamp,
		}
	}

	if step.Response != nil {
		rs.Response = &RunStepResponse{
			StatusCode:     step.Response.StatusCode,
			Headers:        step.Response.Headers,
			Body:           step.Response.Body,
			ResponseTimeMs: step.Response.ResponseTimeMs,
			Timestamp:      step.Response.Timestamp,
		}
	}

	return rs
}
