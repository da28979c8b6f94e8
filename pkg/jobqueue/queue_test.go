package jobqueue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/flowprobe/pkg/eventbus"
	"github.com/dukex/flowprobe/pkg/events"
	"github.com/dukex/flowprobe/pkg/mocks"
	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/dukex/flowprobe/pkg/persistence/memory"
	"github.com/dukex/flowprobe/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type verifierFunc func(ctx context.Context, openAPIJSON, bpmnXML, model string) *models.AIVerificationReport

func (f verifierFunc) Verify(ctx context.Context, openAPIJSON, bpmnXML, model string) *models.AIVerificationReport {
	return f(ctx, openAPIJSON, bpmnXML, model)
}

func passing(_ context.Context, _, _, _ string) *models.AIVerificationReport {
	return &models.AIVerificationReport{OverallStatus: "PASS"}
}

type failingRepository struct{}

func (failingRepository) SaveJob(context.Context, *models.Job) error {
	return errors.New("disk full")
}

func (failingRepository) JobByID(context.Context, string) (*models.Job, error) {
	return nil, errors.New("disk full")
}

func (failingRepository) Jobs(context.Context, string) ([]*models.Job, error) {
	return nil, errors.New("disk full")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) all() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startQueue(t *testing.T, v Verifier, opts ...Option) *Queue {
	t.Helper()

	q := New(v, testLogger(), opts...)
	q.Start(context.Background())

	t.Cleanup(q.Close)

	return q
}

func waitTerminal(t *testing.T, q *Queue, id string) *models.Job {
	t.Helper()

	var job *models.Job

	require.Eventually(t, func() bool {
		got, ok := q.Get(context.Background(), id)
		if !ok || !got.Status.Terminal() {
			return false
		}

		job = got

		return true
	}, 2*time.Second, 5*time.Millisecond)

	return job
}

func TestQueue_CompletesJob(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewPersistence().JobRepository()
	files := memory.NewPersistence().JobRepository()
	publisher := &recordingPublisher{}

	var gotModel string

	q := startQueue(t, verifierFunc(func(_ context.Context, openAPIJSON, bpmnXML, model string) *models.AIVerificationReport {
		gotModel = model

		assert.Equal(t, `{"openapi":"3.0.0"}`, openAPIJSON)
		assert.Equal(t, "<definitions/>", bpmnXML)

		return &models.AIVerificationReport{OverallStatus: "PASS"}
	}), WithRepository(repo), WithFileStore(files), WithPublisher(publisher))

	modelID := 2

	job, err := q.Enqueue(ctx, EnqueueRequest{
		OpenAPIJSON: `{"openapi":"3.0.0"}`,
		BPMNXML:     "<definitions/>",
		ModelID:     &modelID,
		ProjectID:   "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, "Qwen/Qwen2.5-1.5B-Instruct", job.ModelName)

	done := waitTerminal(t, q, job.ID)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, "PASS", done.Result.OverallStatus)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.FinishedAt)
	assert.False(t, done.FinishedAt.Before(*done.StartedAt))
	assert.Equal(t, "Qwen/Qwen2.5-1.5B-Instruct", gotModel)

	for _, tier := range []persistence.JobRepository{repo, files} {
		require.Eventually(t, func() bool {
			stored, err := tier.JobByID(ctx, job.ID)

			return err == nil && stored.Status == models.JobStatusCompleted
		}, time.Second, 5*time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(publisher.all()) == 1 }, time.Second, 5*time.Millisecond)

	event, ok := publisher.all()[0].(*events.JobFinished)
	require.True(t, ok)
	assert.Equal(t, job.ID, event.JobID)
	assert.Equal(t, models.JobStatusCompleted, event.Status)
	assert.Equal(t, "PASS", event.OverallStatus)
	assert.Equal(t, "p1", event.ProjectID)
}

func TestQueue_RunsJobsInOrder(t *testing.T) {
	ctx := context.Background()

	release := make(chan struct{})

	var (
		mu    sync.Mutex
		order []string
	)

	q := startQueue(t, verifierFunc(func(_ context.Context, _, bpmnXML, _ string) *models.AIVerificationReport {
		if bpmnXML == "first" {
			<-release
		}

		mu.Lock()
		order = append(order, bpmnXML)
		mu.Unlock()

		return &models.AIVerificationReport{OverallStatus: "PASS"}
	}))

	var ids []string

	for _, name := range []string{"first", "second", "third"} {
		job, err := q.Enqueue(ctx, EnqueueRequest{BPMNXML: name})
		require.NoError(t, err)

		ids = append(ids, job.ID)
	}

	require.Eventually(t, func() bool {
		got, _ := q.Get(ctx, ids[0])

		return got.Status == models.JobStatusRunning
	}, time.Second, 5*time.Millisecond)

	second, _ := q.Get(ctx, ids[1])
	assert.Equal(t, models.JobStatusQueued, second.Status)
	assert.Equal(t, 2, q.Depth())

	close(release)

	waitTerminal(t, q, ids[2])

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestQueue_VerifierFailures(t *testing.T) {
	tests := []struct {
		name    string
		verify  verifierFunc
		message string
	}{
		{
			name: "panic",
			verify: func(context.Context, string, string, string) *models.AIVerificationReport {
				panic("model crashed")
			},
			message: "verifier panic: model crashed",
		},
		{
			name: "no report",
			verify: func(context.Context, string, string, string) *models.AIVerificationReport {
				return nil
			},
			message: "verifier returned no report",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := startQueue(t, tt.verify)

			job, err := q.Enqueue(context.Background(), EnqueueRequest{})
			require.NoError(t, err)

			done := waitTerminal(t, q, job.ID)
			assert.Equal(t, models.JobStatusError, done.Status)
			assert.Equal(t, tt.message, done.ErrorMessage)
			assert.Nil(t, done.Result)
			assert.NotNil(t, done.FinishedAt)
		})
	}
}

func TestQueue_SwallowsPersistenceErrors(t *testing.T) {
	q := startQueue(t, verifierFunc(passing), WithRepository(failingRepository{}), WithFileStore(failingRepository{}))

	job, err := q.Enqueue(context.Background(), EnqueueRequest{ProjectID: "p1"})
	require.NoError(t, err)

	done := waitTerminal(t, q, job.ID)
	assert.Equal(t, models.JobStatusCompleted, done.Status)

	jobs := q.ListByProject(context.Background(), "p1")
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}

func TestQueue_PublishFailureDoesNotFailJob(t *testing.T) {
	published := make(chan string, 1)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.AnythingOfType("*events.JobFinished")).
		Run(func(args mock.Arguments) { published <- args.String(1) }).
		Return(errors.New("broker down"))

	q := startQueue(t, verifierFunc(passing), WithPublisher(bus))

	job, err := q.Enqueue(context.Background(), EnqueueRequest{ProjectID: "p1"})
	require.NoError(t, err)

	done := waitTerminal(t, q, job.ID)
	assert.Equal(t, models.JobStatusCompleted, done.Status)

	select {
	case id := <-published:
		assert.Equal(t, job.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("job event was not published")
	}
}

func TestQueue_GetPrecedence(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewPersistence().JobRepository()
	files := memory.NewPersistence().JobRepository()

	inRepo := testutil.CreateTestJob(testutil.WithJobFinished(models.JobStatusCompleted, testutil.BaseTime))
	inFiles := testutil.CreateTestJob(testutil.WithJobFinished(models.JobStatusError, testutil.BaseTime))
	stale := inRepo.Clone()
	stale.Status = models.JobStatusRunning

	require.NoError(t, repo.SaveJob(ctx, inRepo))
	require.NoError(t, files.SaveJob(ctx, stale))
	require.NoError(t, files.SaveJob(ctx, inFiles))

	q := New(verifierFunc(passing), testLogger(), WithRepository(repo), WithFileStore(files))

	got, ok := q.Get(ctx, inRepo.ID)
	require.True(t, ok)
	assert.Equal(t, models.JobStatusCompleted, got.Status)

	got, ok = q.Get(ctx, inFiles.ID)
	require.True(t, ok)
	assert.Equal(t, models.JobStatusError, got.Status)

	_, ok = q.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestQueue_ListByProjectPrecedence(t *testing.T) {
	ctx := context.Background()

	t.Run("repository wins when not empty", func(t *testing.T) {
		repo := memory.NewPersistence().JobRepository()
		stored := testutil.CreateTestJob(testutil.WithJobProject("p1"))
		require.NoError(t, repo.SaveJob(ctx, stored))

		q := New(verifierFunc(passing), testLogger(), WithRepository(repo))

		_, err := q.Enqueue(ctx, EnqueueRequest{ProjectID: "p1"})
		require.NoError(t, err)

		jobs := q.ListByProject(ctx, "p1")
		require.Len(t, jobs, 2)
	})

	t.Run("memory before file store", func(t *testing.T) {
		files := memory.NewPersistence().JobRepository()
		require.NoError(t, files.SaveJob(ctx, testutil.CreateTestJob(testutil.WithJobProject("p1"))))

		q := New(verifierFunc(passing), testLogger(), WithRepository(failingRepository{}))

		queued, err := q.Enqueue(ctx, EnqueueRequest{ProjectID: "p1"})
		require.NoError(t, err)

		_, err = q.Enqueue(ctx, EnqueueRequest{ProjectID: "p2"})
		require.NoError(t, err)

		q.files = files

		jobs := q.ListByProject(ctx, "p1")
		require.Len(t, jobs, 1)
		assert.Equal(t, queued.ID, jobs[0].ID)
	})

	t.Run("file store last", func(t *testing.T) {
		files := memory.NewPersistence().JobRepository()
		stored := testutil.CreateTestJob(testutil.WithJobProject("p1"))
		require.NoError(t, files.SaveJob(ctx, stored))

		q := New(verifierFunc(passing), testLogger(),
			WithRepository(memory.NewPersistence().JobRepository()), WithFileStore(files))

		jobs := q.ListByProject(ctx, "p1")
		require.Len(t, jobs, 1)
		assert.Equal(t, stored.ID, jobs[0].ID)
	})

	t.Run("nothing anywhere", func(t *testing.T) {
		q := New(verifierFunc(passing), testLogger())

		jobs := q.ListByProject(ctx, "p1")
		assert.NotNil(t, jobs)
		assert.Empty(t, jobs)
	})
}

func TestQueue_Close(t *testing.T) {
	q := New(verifierFunc(passing), testLogger())
	q.Start(context.Background())
	q.Close()
	q.Close()

	_, err := q.Enqueue(context.Background(), EnqueueRequest{})
	assert.ErrorIs(t, err, ErrClosed)

	unstarted := New(verifierFunc(passing), testLogger())
	unstarted.Close()

	_, err = unstarted.Enqueue(context.Background(), EnqueueRequest{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQueue_PruneFinished(t *testing.T) {
	now := testutil.BaseTime

	q := startQueue(t, verifierFunc(passing), WithClock(func() time.Time { return now }))

	job, err := q.Enqueue(context.Background(), EnqueueRequest{})
	require.NoError(t, err)
	waitTerminal(t, q, job.ID)

	assert.Equal(t, 0, q.PruneFinished(now))
	assert.Equal(t, 1, q.PruneFinished(now.Add(time.Second)))

	_, ok := q.Get(context.Background(), job.ID)
	assert.False(t, ok)
}

func TestResolveModel(t *testing.T) {
	known, unknown := 2, 7

	assert.Equal(t, "Qwen/Qwen2.5-1.5B-Instruct", ResolveModel(&known))
	assert.Empty(t, ResolveModel(&unknown))
	assert.Empty(t, ResolveModel(nil))

	list := Models()
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].ID)

	list[0].Name = "changed"
	assert.Equal(t, "Qwen/Qwen2.5-1.5B-Instruct", Models()[0].Name)
}
