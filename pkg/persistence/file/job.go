package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
)

// JobRepository files each job under the directory of its project.
type JobRepository struct {
	root  string
	store store
}

// NewJobRepository creates a job repository under root/ai-jobs.
func NewJobRepository(root string) *JobRepository {
	return &JobRepository{root: filepath.Join(root, "ai-jobs")}
}

// Dir returns the directory holding every project's jobs.
func (r *JobRepository) Dir() string {
	return r.root
}

func (r *JobRepository) SaveJob(_ context.Context, job *models.Job) error {
	if job == nil || !validID(job.ID) || !validID(job.ProjectDir()) {
		return persistence.NewRepositoryError("SaveJob", "job", "", persistence.ErrInvalidEntity)
	}

	path := filepath.Join(r.root, job.ProjectDir(), job.ID+".json")
	if err := r.store.write(path, job); err != nil {
		return persistence.NewRepositoryError("SaveJob", "job", job.ID, err)
	}

	return nil
}

// JobByID searches every project directory for the job.
func (r *JobRepository) JobByID(_ context.Context, id string) (*models.Job, error) {
	if !validID(id) {
		return nil, persistence.NewRepositoryError("JobByID", "job", id, persistence.ErrJobNotFound)
	}

	matches, err := r.store.glob(filepath.Join(r.root, "*", id+".json"))
	if err != nil {
		return nil, persistence.NewRepositoryError("JobByID", "job", id, err)
	}

	for _, path := range matches {
		var job models.Job

		found, err := r.store.read(path, &job)
		if err != nil {
			return nil, persistence.NewRepositoryError("JobByID", "job", id, err)
		}

		if found {
			return &job, nil
		}
	}

	return nil, persistence.NewRepositoryError("JobByID", "job", id, persistence.ErrJobNotFound)
}

func (r *JobRepository) Jobs(_ context.Context, projectID string) ([]*models.Job, error) {
	dir := "*"
	if projectID != "" {
		if !validID(projectID) {
			return []*models.Job{}, nil
		}

		dir = projectID
	}

	files, err := r.store.glob(filepath.Join(r.root, dir, "*.json"))
	if err != nil {
		return nil, persistence.NewRepositoryError("Jobs", "job", "", err)
	}

	jobs := make([]*models.Job, 0, len(files))

	for _, path := range files {
		var job models.Job

		found, err := r.store.read(path, &job)
		if err != nil {
			return nil, persistence.NewRepositoryError("Jobs", "job", "", err)
		}

		if found {
			jobs = append(jobs, &job)
		}
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return jobs, nil
}

// DeleteFinishedBefore removes terminal jobs that finished before cutoff and
// returns how many were deleted.
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

		path := filepath.Join(r.root, job.ProjectDir(), job.ID+".json")

		r.store.mu.Lock()
		err := os.Remove(path)
		r.store.mu.Unlock()

		if err != nil && !os.IsNotExist(err) {
			return deleted, persistence.NewRepositoryError("DeleteFinishedBefore", "job", job.ID, err)
		}

		deleted++
	}

	return deleted, nil
}
