package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/dukex/flowprobe/pkg/persistence/sqlbase"
)

// ProjectRepository stores projects in the projects table.
type ProjectRepository struct {
	db      *sql.DB
	dialect sqlbase.Dialect
}

func (r *ProjectRepository) SaveProject(ctx context.Context, project *models.Project) error {
	if project == nil || project.ID == "" {
		return persistence.NewRepositoryError("SaveProject", "project", "", persistence.ErrInvalidEntity)
	}

	data, err := json.Marshal(project)
	if err != nil {
		return persistence.NewRepositoryError("SaveProject", "project", project.ID, err)
	}

	query := r.dialect.Upsert("projects", "id", []string{"id", "name", "created_at", "updated_at", "data"})

	_, err = r.db.ExecContext(ctx, query,
		project.ID, project.Name, sqlbase.ToUnixNano(project.CreatedAt), sqlbase.ToUnixNano(project.UpdatedAt),
		string(data))
	if err != nil {
		return persistence.NewRepositoryError("SaveProject", "project", project.ID, err)
	}

	return nil
}

func (r *ProjectRepository) ProjectByID(ctx context.Context, id string) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT data FROM projects WHERE id = ?"), id)

	project, found, err := scanDocument[models.Project](row)
	if err != nil {
		return nil, persistence.NewRepositoryError("ProjectByID", "project", id, err)
	}

	if !found {
		return nil, persistence.NewRepositoryError("ProjectByID", "project", id, persistence.ErrProjectNotFound)
	}

	return project, nil
}

func (r *ProjectRepository) Projects(ctx context.Context) ([]*models.Project, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT data FROM projects ORDER BY created_at DESC, id")
	if err != nil {
		return nil, persistence.NewRepositoryError("Projects", "project", "", err)
	}

	projects, err := scanDocuments[models.Project](rows)
	if err != nil {
		return nil, persistence.NewRepositoryError("Projects", "project", "", err)
	}

	return projects, nil
}
