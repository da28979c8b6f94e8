package file

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
)

// ProjectRepository keeps one JSON document per project.
type ProjectRepository struct {
	root  string
	store store
}

// NewProjectRepository creates a project repository under root/projects.
func NewProjectRepository(root string) *ProjectRepository {
	return &ProjectRepository{root: filepath.Join(root, "projects")}
}

func (r *ProjectRepository) path(id string) string {
	return filepath.Join(r.root, id+".json")
}

func (r *ProjectRepository) SaveProject(_ context.Context, project *models.Project) error {
	if project == nil || !validID(project.ID) {
		return persistence.NewRepositoryError("SaveProject", "project", "", persistence.ErrInvalidEntity)
	}

	if err := r.store.write(r.path(project.ID), project); err != nil {
		return persistence.NewRepositoryError("SaveProject", "project", project.ID, err)
	}

	return nil
}

func (r *ProjectRepository) ProjectByID(_ context.Context, id string) (*models.Project, error) {
	if !validID(id) {
		return nil, persistence.NewRepositoryError("ProjectByID", "project", id, persistence.ErrProjectNotFound)
	}

	var project models.Project

	found, err := r.store.read(r.path(id), &project)
	if err != nil {
		return nil, persistence.NewRepositoryError("ProjectByID", "project", id, err)
	}

	if !found {
		return nil, persistence.NewRepositoryError("ProjectByID", "project", id, persistence.ErrProjectNotFound)
	}

	return &project, nil
}

func (r *ProjectRepository) Projects(ctx context.Context) ([]*models.Project, error) {
	files, err := r.store.glob(filepath.Join(r.root, "*.json"))
	if err != nil {
		return nil, persistence.NewRepositoryError("Projects", "project", "", err)
	}

	projects := make([]*models.Project, 0, len(files))

	for _, f := range files {
		project, err := r.ProjectByID(ctx, strings.TrimSuffix(filepath.Base(f), ".json"))
		if err != nil {
			return nil, err
		}

		projects = append(projects, project)
	}

	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})

	return projects, nil
}
