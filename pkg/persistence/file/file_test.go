package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/dukex/flowprobe/pkg/persistence/file"
	"github.com/dukex/flowprobe/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePersistence_Contract(t *testing.T) {
	testutil.PersistenceContract(t, file.NewPersistence(t.TempDir()))
}

func TestFilePersistence_Layout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	p := file.NewPersistence("file://" + root)

	run := testutil.CreateTestRun()
	job := testutil.CreateTestJob(testutil.WithJobProject("proj"))
	orphan := testutil.CreateTestJob()
	project := testutil.CreateTestProject()

	require.NoError(t, p.RunRepository().SaveRun(ctx, run))
	require.NoError(t, p.JobRepository().SaveJob(ctx, job))
	require.NoError(t, p.JobRepository().SaveJob(ctx, orphan))
	require.NoError(t, p.ProjectRepository().SaveProject(ctx, project))

	assert.FileExists(t, filepath.Join(root, "runs", run.ID+".json"))
	assert.FileExists(t, filepath.Join(root, "ai-jobs", "proj", job.ID+".json"))
	assert.FileExists(t, filepath.Join(root, "ai-jobs", models.UnknownProjectDir, orphan.ID+".json"))
	assert.FileExists(t, filepath.Join(root, "projects", project.ID+".json"))
	assert.NoFileExists(t, filepath.Join(root, "runs", run.ID+".json.tmp"))
}

func TestFilePersistence_RejectsPathIDs(t *testing.T) {
	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	run := testutil.CreateTestRun()
	run.ID = "../escape"

	err := p.RunRepository().SaveRun(ctx, run)
	require.ErrorIs(t, err, persistence.ErrInvalidEntity)

	_, err = p.RunRepository().RunByID(ctx, "../escape")
	require.ErrorIs(t, err, persistence.ErrRunNotFound)

	job := testutil.CreateTestJob(testutil.WithJobProject("a/b"))
	require.ErrorIs(t, p.JobRepository().SaveJob(ctx, job), persistence.ErrInvalidEntity)
}

func TestJobRepository_PatternIDsMatchNothing(t *testing.T) {
	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).JobRepository()

	job := testutil.CreateTestJob(testutil.WithJobProject("alpha"))
	require.NoError(t, repo.SaveJob(ctx, job))
	require.NoError(t, repo.SaveJob(ctx, testutil.CreateTestJob(testutil.WithJobProject("beta"))))

	for _, projectID := range []string{"*", "[a-z]*", "alph?"} {
		jobs, err := repo.Jobs(ctx, projectID)
		require.NoError(t, err)
		assert.Empty(t, jobs, projectID)
	}

	jobs, err := repo.Jobs(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)

	_, err = repo.JobByID(ctx, "*")
	require.ErrorIs(t, err, persistence.ErrJobNotFound)

	require.ErrorIs(t, repo.SaveJob(ctx, testutil.CreateTestJob(testutil.WithJobProject("p*"))), persistence.ErrInvalidEntity)
}

func TestFilePersistence_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	p := file.NewPersistence(root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "runs"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "runs", "bad.json"), []byte("{"), 0o600))

	_, err := p.RunRepository().RunByID(ctx, "bad")
	require.Error(t, err)
	assert.False(t, persistence.IsNotFound(err))
}

func TestJobRepository_DeleteFinishedBefore(t *testing.T) {
	ctx := context.Background()
	repo := file.NewJobRepository(t.TempDir())

	cutoff := testutil.BaseTime.Add(24 * time.Hour)

	old := testutil.CreateTestJob(testutil.WithJobFinished(models.JobStatusCompleted, testutil.BaseTime))
	recent := testutil.CreateTestJob(testutil.WithJobFinished(models.JobStatusError, cutoff.Add(time.Hour)))
	queued := testutil.CreateTestJob()

	for _, j := range []*models.Job{old, recent, queued} {
		require.NoError(t, repo.SaveJob(ctx, j))
	}

	deleted, err := repo.DeleteFinishedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = repo.JobByID(ctx, old.ID)
	require.ErrorIs(t, err, persistence.ErrJobNotFound)

	jobs, err := repo.Jobs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestFilePersistence_HealthCheckCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "data")
	p := file.NewPersistence(root)

	require.NoError(t, p.HealthCheck(context.Background()))
	assert.DirExists(t, root)
	require.NoError(t, p.Close(context.Background()))
}
