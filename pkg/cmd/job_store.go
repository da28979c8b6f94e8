package cmd

import (
	"context"
	"fmt"

	"github.com/dukex/flowprobe/pkg/persistence/redisstore"
)

// NewJobStore connects the shared Redis job repository. An empty URL returns
// nil and the job queue falls back to the database repository.
func NewJobStore(ctx context.Context, url string) (*redisstore.JobRepository, error) {
	if url == "" {
		return nil, nil
	}

	repo, err := redisstore.Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}

	return repo, nil
}
