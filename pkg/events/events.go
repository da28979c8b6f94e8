// Package events defines the run and job lifecycle notifications published on the event bus.
package events

import (
	"time"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every lifecycle event.
const Topic = "flowprobe.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunQueuedEvent        EventType = "run.queued"
	RunStartedEvent       EventType = "run.started"
	RunStepCompletedEvent EventType = "run.step_completed"
	RunFinishedEvent      EventType = "run.finished"

	JobFinishedEvent EventType = "job.finished"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ProjectID string         `json:"project_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a new event of eventType for projectID.
func NewBaseEvent(eventType EventType, projectID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ProjectID: projectID,
	}
}

type RunQueued struct {
	BaseEvent

	RunID      string `json:"run_id"`
	ScenarioID string `json:"scenario_id,omitempty"`
}

func (r RunQueued) GetType() EventType {
	return RunQueuedEvent
}

type RunStarted struct {
	BaseEvent

	RunID string `json:"run_id"`
	Steps int    `json:"steps"`
}

func (r RunStarted) GetType() EventType {
	return RunStartedEvent
}

// RunStepCompleted is published after every recorded step of a run.
type RunStepCompleted struct {
	BaseEvent

	RunID      string               `json:"run_id"`
	StepID     string               `json:"step_id"`
	TaskID     string               `json:"task_id"`
	Status     models.RunStepStatus `json:"status"`
	DurationMs int64                `json:"duration_ms"`
	Progress   float64              `json:"progress"`
}

func (r RunStepCompleted) GetType() EventType {
	return RunStepCompletedEvent
}

type RunFinished struct {
	BaseEvent

	RunID           string                 `json:"run_id"`
	Status          models.RunStatus       `json:"status"`
	ExecutionStatus models.ExecutionStatus `json:"execution_status,omitempty"`
	Progress        float64                `json:"progress"`
	Error           string                 `json:"error,omitempty"`
	AIAnalysisJobID string                 `json:"ai_analysis_job_id,omitempty"`
}

func (r RunFinished) GetType() EventType {
	return RunFinishedEvent
}

// JobFinished is published when an AI verification job reaches a terminal state.
type JobFinished struct {
	BaseEvent

	JobID         string           `json:"job_id"`
	Status        models.JobStatus `json:"status"`
	ModelName     string           `json:"model_name,omitempty"`
	OverallStatus string           `json:"overall_status,omitempty"`
	Error         string           `json:"error,omitempty"`
}

func (j JobFinished) GetType() EventType {
	return JobFinishedEvent
}
