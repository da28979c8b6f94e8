package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/dukex/flowprobe/pkg/persistence/redisstore"
	"github.com/dukex/flowprobe/pkg/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redisstore.JobRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := redisstore.NewJobRepository(client, "")

	t.Cleanup(func() {
		_ = repo.Close()
	})

	return repo, mr
}

func TestJobRepository_Contract(t *testing.T) {
	repo, _ := setupRedis(t)

	testutil.JobRepositoryContract(t, repo)
}

func TestJobRepository_Keys(t *testing.T) {
	ctx := context.Background()
	repo, mr := setupRedis(t)

	job := testutil.CreateTestJob(testutil.WithJobProject("p1"))
	require.NoError(t, repo.SaveJob(ctx, job))

	assert.True(t, mr.Exists("flowprobe:job:"+job.ID))

	members, err := mr.ZMembers("flowprobe:jobs:p1")
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, members)
}

func TestJobRepository_SkipsDanglingIndexEntries(t *testing.T) {
	ctx := context.Background()
	repo, mr := setupRedis(t)

	job := testutil.CreateTestJob()
	require.NoError(t, repo.SaveJob(ctx, job))

	mr.Del("flowprobe:job:" + job.ID)

	jobs, err := repo.Jobs(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, jobs)

	_, err = repo.JobByID(ctx, job.ID)
	assert.ErrorIs(t, err, persistence.ErrJobNotFound)
}

func TestJobRepository_DeleteFinishedBefore(t *testing.T) {
	ctx := context.Background()
	repo, mr := setupRedis(t)

	old := testutil.CreateTestJob(
		testutil.WithJobProject("p1"),
		testutil.WithJobFinished(models.JobStatusCompleted, testutil.BaseTime),
	)
	keep := testutil.CreateTestJob(testutil.WithJobProject("p1"))

	require.NoError(t, repo.SaveJob(ctx, old))
	require.NoError(t, repo.SaveJob(ctx, keep))

	deleted, err := repo.DeleteFinishedBefore(ctx, testutil.BaseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	assert.False(t, mr.Exists("flowprobe:job:"+old.ID))

	members, err := mr.ZMembers("flowprobe:jobs:p1")
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, members)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	repo, err := redisstore.Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, repo.HealthCheck(context.Background()))
	require.NoError(t, repo.Close())

	_, err = redisstore.Connect(context.Background(), "://bad")
	assert.Error(t, err)
}
