package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// CreateProjectRequest carries the documents of a new project.
type CreateProjectRequest struct {
	Name        string `validate:"required"`
	BPMNXML     string `validate:"required"`
	OpenAPIJSON string `validate:"required"`
	PumlContent string
}

// RemapRequest optionally replaces the stored documents before remapping.
// Empty fields keep the stored value.
type RemapRequest struct {
	BPMNXML     string
	OpenAPIJSON string
	PumlContent string
}

type Project struct {
	repository persistence.ProjectRepository
	mapping    *Mapping
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

// NewProject creates the project service.
func NewProject(repository persistence.ProjectRepository, mapping *Mapping, logger *slog.Logger) *Project {
	if logger == nil {
		logger = slog.Default()
	}

	return &Project{
		repository: repository,
		mapping:    mapping,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger.With("module", "project_service"),
		now:        time.Now,
	}
}

// Create parses and maps the documents, then stores the project with its mapping.
func (p *Project) Create(ctx context.Context, req CreateProjectRequest) (*models.Project, error) {
	if err := p.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return nil, NewValidationError("Create", "validation_error",
				validationErrors[0].Field()+" is required", ErrInvalidRequest)
		}

		return nil, NewValidationError("Create", "validation_error", err.Error(), ErrInvalidRequest)
	}

	result, err := p.mapping.Map(ctx, MapRequest{BPMNXML: req.BPMNXML, OpenAPIJSON: req.OpenAPIJSON})
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	project := &models.Project{
		ID:            uuid.NewString(),
		Name:          req.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
		BPMNXML:       req.BPMNXML,
		OpenAPIJSON:   req.OpenAPIJSON,
		PumlContent:   req.PumlContent,
		MappingResult: result,
	}

	if err := p.repository.SaveProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	p.logger.InfoContext(ctx, "Created project", "project_id", project.ID, "matched_tasks", result.MatchedTasks)

	return project, nil
}

// Remap recomputes and stores the mapping of an existing project.
func (p *Project) Remap(ctx context.Context, id string, req RemapRequest) (*models.Project, error) {
	project, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.BPMNXML != "" {
		project.BPMNXML = req.BPMNXML
	}

	if req.OpenAPIJSON != "" {
		project.OpenAPIJSON = req.OpenAPIJSON
	}

	if req.PumlContent != "" {
		project.PumlContent = req.PumlContent
	}

	result, err := p.mapping.Map(ctx, MapRequest{BPMNXML: project.BPMNXML, OpenAPIJSON: project.OpenAPIJSON})
	if err != nil {
		return nil, err
	}

	project.MappingResult = result
	project.UpdatedAt = p.now().UTC()

	if err := p.repository.SaveProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	p.logger.InfoContext(ctx, "Remapped project", "project_id", id)

	return project, nil
}

// Get returns the project or ErrProjectNotFound.
func (p *Project) Get(ctx context.Context, id string) (*models.Project, error) {
	project, err := p.repository.ProjectByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// List returns every project, newest first.
func (p *Project) List(ctx context.Context) ([]*models.Project, error) {
	projects, err := p.repository.Projects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	if projects == nil {
		projects = []*models.Project{}
	}

	return projects, nil
}
