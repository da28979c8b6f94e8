// Package jobqueue runs AI verification jobs one at a time in submission order.
//
// Every job lives in three places: an in-memory map, a repository and a file
// store. Reads fall through those tiers so job state survives restarts.
// Failures to persist are logged and never fail a job.
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dukex/flowprobe/pkg/eventbus"
	"github.com/dukex/flowprobe/pkg/events"
	"github.com/dukex/flowprobe/pkg/metrics"
	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/otelhelper"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("job queue is closed")

// Verifier reviews a BPMN/OpenAPI pair. An empty model selects the default.
type Verifier interface {
	Verify(ctx context.Context, openAPIJSON, bpmnXML, model string) *models.AIVerificationReport
}

// EnqueueRequest is the payload of a verification job.
type EnqueueRequest struct {
	OpenAPIJSON string
	BPMNXML     string
	ModelID     *int
	ProjectID   string
}

// Option configures a Queue.
type Option func(*Queue)

// WithRepository sets the repository tier.
func WithRepository(repo persistence.JobRepository) Option {
	return func(q *Queue) { q.repo = repo }
}

// WithFileStore sets the file store tier.
func WithFileStore(store persistence.JobRepository) Option {
	return func(q *Queue) { q.files = store }
}

// WithMetrics records job outcomes and queue depth.
func WithMetrics(c *metrics.Collector) Option {
	return func(q *Queue) { q.metrics = c }
}

// WithPublisher publishes a JobFinished event for every finished job.
func WithPublisher(p eventbus.EventPublisher) Option {
	return func(q *Queue) { q.publisher = p }
}

// WithTracer sets the tracer used for job spans.
func WithTracer(t trace.Tracer) Option {
	return func(q *Queue) { q.tracer = t }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Queue is a single-worker FIFO of verification jobs.
type Queue struct {
	verifier  Verifier
	repo      persistence.JobRepository
	files     persistence.JobRepository
	metrics   *metrics.Collector
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	jobs    map[string]*models.Job
	pending []string
	closed  bool

	notify chan struct{}
	stop   chan struct{}
	done   chan struct{}
	start  sync.Once
}

// New returns a queue. Call Start to launch the worker.
func New(verifier Verifier, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		verifier:  verifier,
		publisher: eventbus.Nop{},
		tracer:    otel.Tracer("flowprobe/jobqueue"),
		logger:    logger.With("module", "job_queue"),
		now:       time.Now,
		jobs:      map[string]*models.Job{},
		notify:    make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Start launches the worker. Later calls do nothing.
func (q *Queue) Start(ctx context.Context) {
	q.start.Do(func() {
		go q.work(ctx)
	})
}

// Close stops accepting jobs and waits for the job in progress to finish.
// Jobs still waiting stay QUEUED in storage.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()

		return
	}

	q.closed = true
	q.mu.Unlock()

	close(q.stop)

	started := true

	q.start.Do(func() { started = false })

	if started {
		<-q.done
	}
}

// Enqueue creates a QUEUED job, stores it in every tier and schedules it.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (*models.Job, error) {
	job := &models.Job{
		ID:          uuid.New().String(),
		Status:      models.JobStatusQueued,
		CreatedAt:   q.now().UTC(),
		BPMNXML:     req.BPMNXML,
		OpenAPIJSON: req.OpenAPIJSON,
		ModelID:     req.ModelID,
		ModelName:   ResolveModel(req.ModelID),
		ProjectID:   req.ProjectID,
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()

		return nil, ErrClosed
	}

	q.jobs[job.ID] = job
	snapshot := job.Clone()
	q.mu.Unlock()

	q.persist(ctx, snapshot)

	q.mu.Lock()
	q.pending = append(q.pending, job.ID)
	depth := len(q.pending)
	q.mu.Unlock()

	q.metrics.SetQueueDepth(depth)

	select {
	case q.notify <- struct{}{}:
	default:
	}

	q.logger.InfoContext(ctx, "Enqueued AI analysis job", "job_id", job.ID, "project_id", job.ProjectID)

	return snapshot, nil
}

// Get returns the job from memory, then the repository, then the file store.
func (q *Queue) Get(ctx context.Context, id string) (*models.Job, bool) {
	q.mu.RLock()
	job, ok := q.jobs[id]

	if ok {
		job = job.Clone()
	}
	q.mu.RUnlock()

	if ok {
		return job, true
	}

	for _, tier := range []persistence.JobRepository{q.repo, q.files} {
		if tier == nil {
			continue
		}

		found, err := tier.JobByID(ctx, id)
		if err == nil {
			return found, true
		}

		if !persistence.IsNotFound(err) {
			q.logger.WarnContext(ctx, "Failed to read job", "job_id", id, "error", err)
		}
	}

	return nil, false
}

// ListByProject returns the project's jobs newest first: from the repository
// when it has any, else from memory, else from the file store. An empty
// projectID lists every job.
func (q *Queue) ListByProject(ctx context.Context, projectID string) []*models.Job {
	if q.repo != nil {
		jobs, err := q.repo.Jobs(ctx, projectID)
		if err != nil {
			q.logger.WarnContext(ctx, "Failed to list jobs from repository", "error", err)
		} else if len(jobs) > 0 {
			return jobs
		}
	}

	q.mu.RLock()

	fromMem := []*models.Job{}

	for _, job := range q.jobs {
		if projectID == "" || job.ProjectID == projectID {
			fromMem = append(fromMem, job.Clone())
		}
	}
	q.mu.RUnlock()

	if len(fromMem) > 0 {
		sort.SliceStable(fromMem, func(i, j int) bool {
			return fromMem[i].CreatedAt.After(fromMem[j].CreatedAt)
		})

		return fromMem
	}

	if q.files != nil {
		jobs, err := q.files.Jobs(ctx, projectID)
		if err != nil {
			q.logger.WarnContext(ctx, "Failed to list jobs from file store", "error", err)
		} else {
			return jobs
		}
	}

	return []*models.Job{}
}

// Depth returns the number of jobs waiting for the worker.
func (q *Queue) Depth() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.pending)
}

// PruneFinished drops finished jobs older than cutoff from memory. Stored
// copies are untouched.
func (q *Queue) PruneFinished(cutoff time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	pruned := 0

	for id, job := range q.jobs {
		if job.Status.Terminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(q.jobs, id)

			pruned++
		}
	}

	return pruned
}

func (q *Queue) work(ctx context.Context) {
	defer close(q.done)

	for {
		id, ok := q.take(ctx)
		if !ok {
			return
		}

		q.process(ctx, id)
	}
}

// take blocks until a job id is available or the queue stops.
func (q *Queue) take(ctx context.Context) (string, bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			id := q.pending[0]
			q.pending = q.pending[1:]
			depth := len(q.pending)
			q.mu.Unlock()

			q.metrics.SetQueueDepth(depth)

			return id, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-q.stop:
			return "", false
		case <-ctx.Done():
			return "", false
		}
	}
}

func (q *Queue) process(ctx context.Context, id string) {
	q.mu.Lock()
	job, ok := q.jobs[id]

	if !ok {
		q.mu.Unlock()

		return
	}

	started := q.now().UTC()
	job.Status = models.JobStatusRunning
	job.StartedAt = &started
	snapshot := job.Clone()
	q.mu.Unlock()

	ctx, span := otelhelper.StartSpan(ctx, q.tracer, "jobqueue.job",
		attribute.String(otelhelper.JobIDKey, id),
		attribute.String(otelhelper.ProjectIDKey, snapshot.ProjectID))
	defer span.End()

	q.persist(ctx, snapshot)

	report, err := q.run(ctx, snapshot)

	q.mu.Lock()

	if err != nil {
		job.Status = models.JobStatusError
		job.ErrorMessage = err.Error()
	} else {
		job.Result = report
		job.Status = models.JobStatusCompleted
	}

	finished := q.now().UTC()
	job.FinishedAt = &finished
	snapshot = job.Clone()
	q.mu.Unlock()

	q.persist(ctx, snapshot)

	span.SetAttributes(attribute.String(otelhelper.StatusKey, string(snapshot.Status)))
	q.metrics.JobFinished(string(snapshot.Status))

	if err != nil {
		otelhelper.SetError(span, err)
		q.logger.ErrorContext(ctx, "AI job failed", "job_id", id, "error", err)
	} else {
		q.logger.InfoContext(ctx, "AI job completed", "job_id", id, "duration", finished.Sub(started))
	}

	q.publish(ctx, snapshot)
}

// run calls the verifier, turning a panic into an error.
func (q *Queue) run(ctx context.Context, job *models.Job) (report *models.AIVerificationReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("verifier panic: %v", r)
		}
	}()

	report = q.verifier.Verify(ctx, job.OpenAPIJSON, job.BPMNXML, job.ModelName)
	if report == nil {
		return nil, errors.New("verifier returned no report")
	}

	return report, nil
}

func (q *Queue) persist(ctx context.Context, job *models.Job) {
	if q.repo != nil {
		if err := q.repo.SaveJob(ctx, job); err != nil {
			q.logger.WarnContext(ctx, "Failed to save job to repository", "job_id", job.ID, "error", err)
		}
	}

	if q.files != nil {
		if err := q.files.SaveJob(ctx, job); err != nil {
			q.logger.WarnContext(ctx, "Failed to save job to file store", "job_id", job.ID, "error", err)
		}
	}
}

func (q *Queue) publish(ctx context.Context, job *models.Job) {
	event := &events.JobFinished{
		BaseEvent: events.NewBaseEvent(events.JobFinishedEvent, job.ProjectID),
		JobID:     job.ID,
		Status:    job.Status,
		ModelName: job.ModelName,
		Error:     job.ErrorMessage,
	}

	if job.Result != nil {
		event.OverallStatus = job.Result.OverallStatus
	}

	if err := q.publisher.Publish(ctx, job.ID, event); err != nil {
		q.logger.WarnContext(ctx, "Failed to publish job event", "job_id", job.ID, "error", err)
	}
}
