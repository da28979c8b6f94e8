package file

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
)

// RunRepository keeps one JSON document per run.
type RunRepository struct {
	root  string
	store store
}

// NewRunRepository creates a run repository under root/runs.
func NewRunRepository(root string) *RunRepository {
	return &RunRepository{root: filepath.Join(root, "runs")}
}

func (r *RunRepository) path(id string) string {
	return filepath.Join(r.root, id+".json")
}

func (r *RunRepository) SaveRun(_ context.Context, run *models.RunExecution) error {
	if run == nil || !validID(run.ID) {
		return persistence.NewRepositoryError("SaveRun", "run", "", persistence.ErrInvalidEntity)
	}

	if err := r.store.write(r.path(run.ID), run); err != nil {
		return persistence.NewRepositoryError("SaveRun", "run", run.ID, err)
	}

	return nil
}

func (r *RunRepository) RunByID(_ context.Context, id string) (*models.RunExecution, error) {
	if !validID(id) {
		return nil, persistence.NewRepositoryError("RunByID", "run", id, persistence.ErrRunNotFound)
	}

	var run models.RunExecution

	found, err := r.store.read(r.path(id), &run)
	if err != nil {
		return nil, persistence.NewRepositoryError("RunByID", "run", id, err)
	}

	if !found {
		return nil, persistence.NewRepositoryError("RunByID", "run", id, persistence.ErrRunNotFound)
	}

	return &run, nil
}

func (r *RunRepository) Runs(ctx context.Context, projectID string) ([]*models.RunExecution, error) {
	files, err := r.store.glob(filepath.Join(r.root, "*.json"))
	if err != nil {
		return nil, persistence.NewRepositoryError("Runs", "run", "", err)
	}

	runs := make([]*models.RunExecution, 0, len(files))

	for _, f := range files {
		run, err := r.RunByID(ctx, strings.TrimSuffix(filepath.Base(f), ".json"))
		if err != nil {
			return nil, err
		}

		if projectID == "" || run.ProjectID == projectID {
			runs = append(runs, run)
		}
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return runs, nil
}
