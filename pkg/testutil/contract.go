package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// PersistenceContract checks the behaviour every persistence backend shares.
// The backend must start empty.
func PersistenceContract(t *testing.T, p persistence.Persistence) {
	t.Helper()

	t.Run("runs", func(t *testing.T) {
		RunRepositoryContract(t, p.RunRepository())
	})

	t.Run("jobs", func(t *testing.T) {
		JobRepositoryContract(t, p.JobRepository())
	})

	t.Run("projects", func(t *testing.T) {
		ProjectRepositoryContract(t, p.ProjectRepository())
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, p.HealthCheck(context.Background()))
	})
}

// RunRepositoryContract checks save, lookup and newest-first listing of runs.
func RunRepositoryContract(t *testing.T, repo persistence.RunRepository) {
	t.Helper()

	ctx := context.Background()

	older := CreateTestRun(WithRunProject("p1"), WithRunCreatedAt(BaseTime))
	newer := CreateTestRun(WithRunProject("p1"), WithRunCreatedAt(BaseTime.Add(time.Minute)))
	other := CreateTestRun(WithRunProject("p2"), WithRunCreatedAt(BaseTime.Add(2*time.Minute)))

	for _, r := range []*models.RunExecution{older, newer, other} {
		require.NoError(t, repo.SaveRun(ctx, r))
	}

	newer.Transition(models.RunStatusRunning, BaseTime.Add(time.Hour))
	newer.Progress = 50
	require.NoError(t, repo.SaveRun(ctx, newer))

	got, err := repo.RunByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.InDelta(t, 50.0, got.Progress, 0.001)
	require.NotNil(t, got.StartedAt)

	_, err = repo.RunByID(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrRunNotFound)
	assert.True(t, persistence.IsNotFound(err))

	list, err := repo.Runs(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	all, err := repo.Runs(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, other.ID, all[0].ID)

	none, err := repo.Runs(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.ErrorIs(t, repo.SaveRun(ctx, nil), persistence.ErrInvalidEntity)
}

// JobRepositoryContract checks save, lookup and per-project listing of jobs.
func JobRepositoryContract(t *testing.T, repo persistence.JobRepository) {
	t.Helper()

	ctx := context.Background()

	unknown := CreateTestJob(WithJobCreatedAt(BaseTime))
	first := CreateTestJob(WithJobProject("p1"), WithJobCreatedAt(BaseTime.Add(time.Minute)))
	second := CreateTestJob(WithJobProject("p1"), WithJobCreatedAt(BaseTime.Add(2*time.Minute)))

	for _, j := range []*models.Job{unknown, first, second} {
		require.NoError(t, repo.SaveJob(ctx, j))
	}

	WithJobFinished(models.JobStatusCompleted, BaseTime.Add(time.Hour))(first)
	first.Result = &models.AIVerificationReport{OverallStatus: "PASS"}
	require.NoError(t, repo.SaveJob(ctx, first))

	got, err := repo.JobByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "PASS", got.Result.OverallStatus)
	require.NotNil(t, got.FinishedAt)

	_, err = repo.JobByID(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrJobNotFound)

	list, err := repo.Jobs(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	unfiled, err := repo.Jobs(ctx, models.UnknownProjectDir)
	require.NoError(t, err)
	require.Len(t, unfiled, 1)
	assert.Equal(t, unknown.ID, unfiled[0].ID)

	all, err := repo.Jobs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// ProjectRepositoryContract checks save, lookup and listing of projects.
func ProjectRepositoryContract(t *testing.T, repo persistence.ProjectRepository) {
	t.Helper()

	ctx := context.Background()

	older := CreateTestProject(WithProjectCreatedAt(BaseTime))
	newer := CreateTestProject(WithProjectCreatedAt(BaseTime.Add(time.Minute)))

	require.NoError(t, repo.SaveProject(ctx, older))
	require.NoError(t, repo.SaveProject(ctx, newer))

	older.Name = "Renamed"
	require.NoError(t, repo.SaveProject(ctx, older))

	got, err := repo.ProjectByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	_, err = repo.ProjectByID(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrProjectNotFound)

	list, err := repo.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
}
