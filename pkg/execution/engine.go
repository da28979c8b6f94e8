package execution

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/otelhelper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const problemDetailsLimit = 200

// StepObserver is called after every recorded step with its position in the schedule.
type StepObserver func(step *models.ExecutionStep, index, total int)

// Engine drives the step runner over the scheduled task order.
type Engine struct {
	runner *StepRunner
	tracer trace.Tracer
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine returns an engine sending requests through client. A nil tracer
// uses the global provider.
func NewEngine(client Client, tracer trace.Tracer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	if tracer == nil {
		tracer = otel.Tracer("flowprobe/execution")
	}

	return &Engine{
		runner: NewStepRunner(client, logger),
		tracer: tracer,
		logger: logger.With("module", "execution_engine"),
		now:    time.Now,
	}
}

// Execute runs every scheduled task sequentially. A failed step stops the
// run only when StopOnFirstError is set; the run deadline is checked before
// each step.
func (e *Engine) Execute(ctx context.Context, req *models.ExecutionRequest, observe StepObserver) *models.ExecutionResult {
	run := NewRun(req)
	start := e.now()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "execution.run",
		attribute.String(otelhelper.ProcessIDKey, run.Process.ID))
	defer span.End()

	result := &models.ExecutionResult{
		ProcessID:   run.Process.ID,
		ProcessName: run.Process.Name,
		StartTime:   start,
		Steps:       []*models.ExecutionStep{},
		Problems:    []models.ExecutionProblem{},
	}

	order := Schedule(run.Process, run.Mapping)
	deadline := time.Duration(run.Config.MaxExecutionTimeMs) * time.Millisecond

	e.logger.InfoContext(ctx, "Starting execution", "process_id", run.Process.ID, "steps", len(order))

	for i, taskID := range order {
		if e.now().Sub(start) > deadline {
			result.Problems = append(result.Problems, models.ExecutionProblem{
				Type:      models.ProblemTimeout,
				Severity:  models.SeverityCritical,
				StepID:    taskID,
				StepName:  taskID,
				Message:   "Process execution timeout",
				Details:   "Maximum execution time exceeded",
				Timestamp: e.now(),
			})

			if run.Config.StopOnFirstError {
				break
			}

			continue
		}

		step, problems := e.executeStep(ctx, run, i, taskID)
		result.Steps = append(result.Steps, step)
		result.Problems = append(result.Problems, problems...)

		if observe != nil {
			observe(step, i, len(order))
		}

		if step.Status == models.StepStatusFailed && run.Config.StopOnFirstError {
			e.logger.InfoContext(ctx, "Stopping execution after failed step", "task_id", taskID)

			break
		}
	}

	result.Statistics = Statistics(result.Steps)
	result.Status = OverallStatus(result.Steps)
	result.EndTime = e.now()
	result.TotalDurationMs = result.EndTime.Sub(start).Milliseconds()

	span.SetAttributes(attribute.String(otelhelper.StatusKey, string(result.Status)))

	e.logger.InfoContext(ctx, "Execution finished",
		"process_id", run.Process.ID,
		"status", result.Status,
		"problems", len(result.Problems),
		"duration_ms", result.TotalDurationMs)

	return result
}

func (e *Engine) executeStep(ctx context.Context, run *Run, index int, taskID string) (*models.ExecutionStep,
	[]models.ExecutionProblem,
) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "execution.step",
		attribute.String(otelhelper.TaskIDKey, taskID))
	defer span.End()

	step, problems := e.runner.Execute(ctx, run, index, taskID)

	span.SetAttributes(attribute.String(otelhelper.StatusKey, string(step.Status)))

	if step.Status == models.StepStatusFailed && len(problems) == 0 {
		problems = append(problems, failureProblem(step, e.now()))
	}

	for _, p := range problems {
		if p.Type != models.ProblemBusinessLogicError {
			otelhelper.SetError(span, errors.New(p.Message))
		}
	}

	return step, problems
}

// failureProblem classifies a failed step by its error message.
func failureProblem(step *models.ExecutionStep, now time.Time) models.ExecutionProblem {
	message := step.ErrorMessage
	if message == "" {
		message = "HTTP error"
	}

	kind := models.ProblemHTTPError

	switch lower := strings.ToLower(message); {
	case strings.Contains(lower, "timeout"):
		kind = models.ProblemTimeout
	case strings.Contains(lower, "network"):
		kind = models.ProblemNetworkError
	}

	p := newProblem(kind, step, message, "", now)

	if step.Response != nil {
		p.Details = truncate(step.Response.Body, problemDetailsLimit)
	}

	if step.Request != nil {
		p.RequestURL = step.Request.URL
		p.RequestMethod = step.Request.Method
	}

	return p
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n])
}
