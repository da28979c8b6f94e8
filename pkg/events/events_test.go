package events

import (
	"encoding/json"
	"testing"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents_GetType(t *testing.T) {
	assert.Equal(t, RunQueuedEvent, RunQueued{}.GetType())
	assert.Equal(t, RunStartedEvent, RunStarted{}.GetType())
	assert.Equal(t, RunStepCompletedEvent, RunStepCompleted{}.GetType())
	assert.Equal(t, RunFinishedEvent, RunFinished{}.GetType())
	assert.Equal(t, JobFinishedEvent, JobFinished{}.GetType())
}

func TestNewBaseEvent(t *testing.T) {
	a := NewBaseEvent(RunQueuedEvent, "p1")
	b := NewBaseEvent(RunQueuedEvent, "p1")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, RunQueuedEvent, a.Type)
	assert.Equal(t, "p1", a.ProjectID)
	assert.False(t, a.Timestamp.IsZero())
}

func TestRunStepCompleted_JSONSerialization(t *testing.T) {
	original := &RunStepCompleted{
		BaseEvent:  NewBaseEvent(RunStepCompletedEvent, "p1"),
		RunID:      "run-1",
		StepID:     "step_1",
		TaskID:     "Task_1",
		Status:     models.RunStepSuccess,
		DurationMs: 12,
		Progress:   50,
	}

	jsonData, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"type":"run.step_completed"`)
	assert.Contains(t, string(jsonData), `"run_id":"run-1"`)
	assert.Contains(t, string(jsonData), `"task_id":"Task_1"`)

	var deserialized RunStepCompleted

	require.NoError(t, json.Unmarshal(jsonData, &deserialized))
	assert.Equal(t, original.RunID, deserialized.RunID)
	assert.Equal(t, original.Status, deserialized.Status)
	assert.InDelta(t, original.Progress, deserialized.Progress, 0.001)
}

func TestRunFinished_OmitsEmptyError(t *testing.T) {
	event := RunFinished{
		BaseEvent: NewBaseEvent(RunFinishedEvent, ""),
		RunID:     "run-1",
		Status:    models.RunStatusCompleted,
	}

	jsonData, err := json.Marshal(event)
	require.NoError(t, err)
	assert.NotContains(t, string(jsonData), `"error"`)
	assert.NotContains(t, string(jsonData), `"project_id"`)
	assert.Contains(t, string(jsonData), `"status":"completed"`)
}
