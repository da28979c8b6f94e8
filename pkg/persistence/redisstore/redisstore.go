// Package redisstore keeps AI verification jobs in Redis so several API
// instances can share job state.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key written by the repository.
const DefaultKeyPrefix = "flowprobe:"

// JobRepository implements persistence.JobRepository on Redis. Each job is a
// JSON string; sorted sets scored by creation time index jobs globally and per
// project directory.
type JobRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewJobRepository wraps an existing client. An empty prefix uses DefaultKeyPrefix.
func NewJobRepository(client redis.UniversalClient, prefix string) *JobRepository {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &JobRepository{client: client, prefix: prefix}
}

// Connect parses a redis:// URL, pings the server and returns a repository using it.
func Connect(ctx context.Context, url string) (*JobRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewJobRepository(client, ""), nil
}

func (r *JobRepository) jobKey(id string) string {
	return r.prefix + "job:" + id
}

func (r *JobRepository) indexKey(projectDir string) string {
	if projectDir == "" {
		return r.prefix + "jobs"
	}

	return r.prefix + "jobs:" + projectDir
}

func (r *JobRepository) SaveJob(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return persistence.NewRepositoryError("SaveJob", "job", "", persistence.ErrInvalidEntity)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return persistence.NewRepositoryError("SaveJob", "job", job.ID, err)
	}

	score := float64(job.CreatedAt.UnixMilli())

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.jobKey(job.ID), data, 0)
		pipe.ZAdd(ctx, r.indexKey(""), redis.Z{Score: score, Member: job.ID})
		pipe.ZAdd(ctx, r.indexKey(job.ProjectDir()), redis.Z{Score: score, Member: job.ID})

		return nil
	})
	if err != nil {
		return persistence.NewRepositoryError("SaveJob", "job", job.ID, err)
	}

	return nil
}

func (r *JobRepository) JobByID(ctx context.Context, id string) (*models.Job, error) {
	data, err := r.client.Get(ctx, r.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewRepositoryError("JobByID", "job", id, persistence.ErrJobNotFound)
	}

	if err != nil {
		return nil, persistence.NewRepositoryError("JobByID", "job", id, err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, persistence.NewRepositoryError("JobByID", "job", id, err)
	}

	return &job, nil
}

// Jobs lists jobs newest first. Index entries whose document is gone are skipped.
func (r *JobRepository) Jobs(ctx context.Context, projectID string) ([]*models.Job, error) {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(projectID), 0, -1).Result()
	if err != nil {
		return nil, persistence.NewRepositoryError("Jobs", "job", "", err)
	}

	jobs := make([]*models.Job, 0, len(ids))
	if len(ids) == 0 {
		return jobs, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.jobKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, persistence.NewRepositoryError("Jobs", "job", "", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			return nil, persistence.NewRepositoryError("Jobs", "job", ids[i], err)
		}

		jobs = append(jobs, &job)
	}

	return jobs, nil
}

// DeleteFinishedBefore removes terminal jobs that finished before cutoff.
func (r *JobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	jobs, err := r.Jobs(ctx, "")
	if err != nil {
		return 0, err
	}

	deleted := 0

	for _, job := range jobs {
		if !job.Status.Terminal() || job.FinishedAt == nil || !job.FinishedAt.Before(cutoff) {
			continue
		}

		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.jobKey(job.ID))
			pipe.ZRem(ctx, r.indexKey(""), job.ID)
			pipe.ZRem(ctx, r.indexKey(job.ProjectDir()), job.ID)

			return nil
		})
		if err != nil {
			return deleted, persistence.NewRepositoryError("DeleteFinishedBefore", "job", job.ID, err)
		}

		deleted++
	}

	return deleted, nil
}

// HealthCheck pings the server.
func (r *JobRepository) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *JobRepository) Close() error {
	return r.client.Close()
}
