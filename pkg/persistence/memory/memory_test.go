package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence/memory"
	"github.com/dukex/flowprobe/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPersistence_Contract(t *testing.T) {
	testutil.PersistenceContract(t, memory.NewPersistence())
}

func TestMemoryPersistence_CopiesDocuments(t *testing.T) {
	ctx := context.Background()
	p := memory.NewPersistence()

	run := testutil.CreateTestRun()
	require.NoError(t, p.RunRepository().SaveRun(ctx, run))

	run.Progress = 90

	got, err := p.RunRepository().RunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Progress)

	got.Progress = 10

	again, err := p.RunRepository().RunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Progress)
}

func TestMemoryPersistence_DeleteFinishedBefore(t *testing.T) {
	ctx := context.Background()
	p := memory.NewPersistence()

	old := testutil.CreateTestJob(testutil.WithJobFinished(models.JobStatusCompleted, testutil.BaseTime))
	require.NoError(t, p.JobRepository().SaveJob(ctx, old))
	require.NoError(t, p.JobRepository().SaveJob(ctx, testutil.CreateTestJob()))

	deleted, err := p.DeleteFinishedBefore(ctx, testutil.BaseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	jobs, err := p.JobRepository().Jobs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}
