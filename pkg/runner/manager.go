// Package runner starts execution runs in the background and tracks their
// progress as RunExecution snapshots.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/flowprobe/pkg/bpmn"
	"github.com/dukex/flowprobe/pkg/eventbus"
	"github.com/dukex/flowprobe/pkg/events"
	"github.com/dukex/flowprobe/pkg/execution"
	"github.com/dukex/flowprobe/pkg/generator"
	"github.com/dukex/flowprobe/pkg/jobqueue"
	"github.com/dukex/flowprobe/pkg/metrics"
	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/openapi"
	"github.com/dukex/flowprobe/pkg/otelhelper"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrProjectRequired = errors.New("project id is required")
	ErrMappingMissing  = errors.New("mapping result not found in project")
)

// JobEnqueuer schedules the AI analysis that follows a completed run.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, req jobqueue.EnqueueRequest) (*models.Job, error)
}

// StartRequest describes a run to start.
type StartRequest struct {
	ScenarioID     string
	ProjectID      string
	Parallelism    int
	DataTemplateID string
}

type Option func(*Manager)

// WithConfig sets the execution config every run starts from.
func WithConfig(cfg *models.ExecutionConfig) Option {
	return func(m *Manager) { m.config = cfg }
}

// WithJobs enqueues an AI analysis job after every completed run.
func WithJobs(jobs JobEnqueuer) Option {
	return func(m *Manager) { m.jobs = jobs }
}

func WithPublisher(p eventbus.EventPublisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSeed fixes the test data generator seed.
func WithSeed(seed uint64) Option {
	return func(m *Manager) { m.seed = &seed }
}

// WithStreamTiming overrides the snapshot interval and lifetime of progress streams.
func WithStreamTiming(interval, timeout time.Duration) Option {
	return func(m *Manager) {
		m.streamInterval = interval
		m.streamTimeout = timeout
	}
}

// Manager owns the run lifecycle: QUEUED, RUNNING, then COMPLETED or FAILED.
type Manager struct {
	runs      persistence.RunRepository
	projects  persistence.ProjectRepository
	engine    *execution.Engine
	config    *models.ExecutionConfig
	jobs      JobEnqueuer
	publisher eventbus.EventPublisher
	metrics   *metrics.Collector
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
	seed      *uint64

	streamInterval time.Duration
	streamTimeout  time.Duration

	wg sync.WaitGroup
}

func New(
	runs persistence.RunRepository,
	projects persistence.ProjectRepository,
	engine *execution.Engine,
	logger *slog.Logger,
	opts ...Option,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		runs:           runs,
		projects:       projects,
		engine:         engine,
		config:         models.DefaultExecutionConfig(),
		publisher:      eventbus.Nop{},
		tracer:         otel.Tracer("flowprobe/runner"),
		logger:         logger.With("module", "run_manager"),
		now:            time.Now,
		streamInterval: DefaultStreamInterval,
		streamTimeout:  DefaultStreamTimeout,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start stores a QUEUED run and executes it in the background. The run
// outlives ctx's cancellation.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*models.RunExecution, error) {
	if req.ProjectID == "" {
		return nil, ErrProjectRequired
	}

	run := models.NewRunExecution(uuid.NewString(), req.ScenarioID, req.ProjectID, m.now().UTC())
	run.DataTemplateID = req.DataTemplateID

	if req.Parallelism > 0 {
		run.Parallelism = req.Parallelism
	}

	if err := m.runs.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	m.publish(ctx, run.ID, &events.RunQueued{
		BaseEvent:  events.NewBaseEvent(events.RunQueuedEvent, run.ProjectID),
		RunID:      run.ID,
		ScenarioID: run.ScenarioID,
	})

	m.logger.InfoContext(ctx, "Queued run", "run_id", run.ID, "project_id", run.ProjectID)

	m.wg.Add(1)

	go func() {
		defer m.wg.Done()

		m.execute(context.WithoutCancel(ctx), run)
	}()

	return run, nil
}

// Get returns the latest snapshot of a run.
func (m *Manager) Get(ctx context.Context, id string) (*models.RunExecution, error) {
	run, err := m.runs.RunByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// History lists the runs of a project newest first. An empty projectID lists every run.
func (m *Manager) History(ctx context.Context, projectID string) ([]*models.RunExecution, error) {
	runs, err := m.runs.Runs(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	if runs == nil {
		runs = []*models.RunExecution{}
	}

	return runs, nil
}

// Wait blocks until every started run has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) execute(ctx context.Context, run *models.RunExecution) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "runner.run",
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.ProjectIDKey, run.ProjectID))
	defer span.End()

	run.Transition(models.RunStatusRunning, m.now().UTC())
	m.save(ctx, run)

	project, req, err := m.prepare(ctx, run)
	if err != nil {
		otelhelper.SetError(span, err)
		m.fail(ctx, run, err)

		return
	}

	total := len(execution.Schedule(req.ProcessModel, req.MappingResult))

	m.publish(ctx, run.ID, &events.RunStarted{
		BaseEvent: events.NewBaseEvent(events.RunStartedEvent, run.ProjectID),
		RunID:     run.ID,
		Steps:     total,
	})
	m.addLog(run, models.LogLevelInfo, fmt.Sprintf("Execution started with %d steps", total), "")
	m.save(ctx, run)

	result := m.engine.Execute(ctx, req, func(step *models.ExecutionStep, index, total int) {
		m.recordStep(ctx, run, step, index, total)
	})

	run.ExecutionResult = result
	run.Progress = 1
	run.Transition(models.RunStatusCompleted, m.now().UTC())
	m.addLog(run, models.LogLevelInfo, "Execution finished with status "+string(result.Status), "")
	m.save(ctx, run)

	m.analyze(ctx, run, project)

	span.SetAttributes(attribute.String(otelhelper.StatusKey, string(result.Status)))
	m.metrics.RunFinished(string(run.Status))

	m.publish(ctx, run.ID, &events.RunFinished{
		BaseEvent:       events.NewBaseEvent(events.RunFinishedEvent, run.ProjectID),
		RunID:           run.ID,
		Status:          run.Status,
		ExecutionStatus: result.Status,
		Progress:        run.Progress,
		AIAnalysisJobID: run.AIAnalysisJobID,
	})

	m.logger.InfoContext(ctx, "Run completed", "run_id", run.ID, "status", result.Status)
}

// prepare loads the project and builds the execution request for the run.
func (m *Manager) prepare(ctx context.Context, run *models.RunExecution) (*models.Project,
	*models.ExecutionRequest, error,
) {
	project, err := m.projects.ProjectByID(ctx, run.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load project: %w", err)
	}

	process, err := bpmn.Parse([]byte(project.BPMNXML))
	if err != nil {
		return nil, nil, err
	}

	spec, err := openapi.Parse([]byte(project.OpenAPIJSON))
	if err != nil {
		return nil, nil, err
	}

	if project.MappingResult == nil {
		return nil, nil, ErrMappingMissing
	}

	seed := uint64(m.now().UnixNano()) // #nosec G115
	if m.seed != nil {
		seed = *m.seed
	}

	cfg := m.config.Clone()
	cfg.ApplyDefaults()

	return project, &models.ExecutionRequest{
		ProcessModel:  process,
		MappingResult: project.MappingResult,
		APISpec:       spec,
		TestData:      generator.New(seed).Generate(project.MappingResult, spec, 1),
		Config:        cfg,
	}, nil
}

func (m *Manager) recordStep(ctx context.Context, run *models.RunExecution, step *models.ExecutionStep, index, total int) {
	summary := models.RunStepFromExecution(step)
	run.Steps = append(run.Steps, summary)

	if total > 0 {
		run.Progress = float64(index+1) / float64(total)
	}

	level := models.LogLevelInfo
	message := fmt.Sprintf("Step %s finished with status %s", step.TaskID, step.Status)

	switch step.Status {
	case models.StepStatusFailed:
		level = models.LogLevelError

		if step.ErrorMessage != "" {
			message += ": " + step.ErrorMessage
		}
	case models.StepStatusSkipped:
		level = models.LogLevelWarn
	}

	m.addLog(run, level, message, step.StepID)
	m.save(ctx, run)

	m.metrics.StepRecorded(string(step.Status), time.Duration(step.DurationMs)*time.Millisecond)

	m.publish(ctx, run.ID, &events.RunStepCompleted{
		BaseEvent:  events.NewBaseEvent(events.RunStepCompletedEvent, run.ProjectID),
		RunID:      run.ID,
		StepID:     step.StepID,
		TaskID:     step.TaskID,
		Status:     summary.Status,
		DurationMs: step.DurationMs,
		Progress:   run.Progress,
	})
}

// analyze enqueues the AI review of the project documents. A failure only
// adds a log entry.
func (m *Manager) analyze(ctx context.Context, run *models.RunExecution, project *models.Project) {
	if m.jobs == nil {
		return
	}

	job, err := m.jobs.Enqueue(ctx, jobqueue.EnqueueRequest{
		OpenAPIJSON: project.OpenAPIJSON,
		BPMNXML:     project.BPMNXML,
		ProjectID:   run.ProjectID,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to start AI analysis", "run_id", run.ID, "error", err)
		m.addLog(run, models.LogLevelError, "Failed to start AI analysis: "+err.Error(), "")
		m.save(ctx, run)

		return
	}

	run.AIAnalysisJobID = job.ID
	m.save(ctx, run)
}

func (m *Manager) fail(ctx context.Context, run *models.RunExecution, err error) {
	m.logger.ErrorContext(ctx, "Run failed", "run_id", run.ID, "error", err)

	run.Transition(models.RunStatusFailed, m.now().UTC())
	m.addLog(run, models.LogLevelError, "Execution failed: "+err.Error(), "")
	m.save(ctx, run)

	m.metrics.RunFinished(string(run.Status))

	m.publish(ctx, run.ID, &events.RunFinished{
		BaseEvent: events.NewBaseEvent(events.RunFinishedEvent, run.ProjectID),
		RunID:     run.ID,
		Status:    run.Status,
		Progress:  run.Progress,
		Error:     err.Error(),
	})
}

func (m *Manager) addLog(run *models.RunExecution, level models.LogLevel, message, stepID string) {
	run.Logs = append(run.Logs, models.LogEntry{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		Timestamp: m.now().UTC(),
		StepID:    stepID,
	})
}

func (m *Manager) save(ctx context.Context, run *models.RunExecution) {
	if err := m.runs.SaveRun(ctx, run); err != nil {
		m.logger.WarnContext(ctx, "Failed to save run", "run_id", run.ID, "error", err)
	}
}

func (m *Manager) publish(ctx context.Context, key string, event eventbus.Event) {
	if err := m.publisher.Publish(ctx, key, event); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish run event", "run_id", key, "error", err)
	}
}
