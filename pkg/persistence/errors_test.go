package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestRepositoryError(t *testing.T) {
	t.Parallel()

	t.Run("not found errors are detected through wrapping", func(t *testing.T) {
		err := fmt.Errorf("lookup: %w", persistence.NewRepositoryError("RunByID", "run", "run-1", persistence.ErrRunNotFound))

		assert.True(t, persistence.IsNotFound(err))
		assert.True(t, errors.Is(err, persistence.ErrRunNotFound))
		assert.False(t, errors.Is(err, persistence.ErrJobNotFound))
	})

	t.Run("error contains context", func(t *testing.T) {
		err := persistence.NewRepositoryError("SaveJob", "job", "job-9", errors.New("disk full"))

		assert.Equal(t, "SaveJob operation failed for job job-9: disk full", err.Error())
		assert.False(t, persistence.IsNotFound(err))
	})

	t.Run("error without id", func(t *testing.T) {
		err := persistence.NewRepositoryError("Projects", "project", "", persistence.ErrInvalidEntity)

		assert.Equal(t, "Projects operation failed for project: invalid entity", err.Error())
	})
}
