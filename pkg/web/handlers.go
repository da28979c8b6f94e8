// Package web provides HTTP handlers and REST API endpoints for mapping, runs and AI verification.
package web

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/flowprobe/pkg/jobqueue"
	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/runner"
	"github.com/dukex/flowprobe/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// JobQueue is the part of the AI job queue the API uses.
type JobQueue interface {
	Enqueue(ctx context.Context, req jobqueue.EnqueueRequest) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, bool)
	ListByProject(ctx context.Context, projectID string) []*models.Job
}

type APIHandlers struct {
	mappingService *services.Mapping
	projectService *services.Project
	healthService  *services.Health
	runs           *runner.Manager
	jobs           JobQueue
	validator      *validator.Validate
	logger         *slog.Logger
}

func NewAPIHandlers(
	mappingService *services.Mapping,
	projectService *services.Project,
	healthService *services.Health,
	runs *runner.Manager,
	jobs JobQueue,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandlers{
		mappingService: mappingService,
		projectService: projectService,
		healthService:  healthService,
		runs:           runs,
		jobs:           jobs,
		validator:      validator,
		logger:         logger.With("module", "api"),
	}
}

// Routes registers every endpoint on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	router.Post("/map", h.Map)

	p := router.Group("/projects")
	p.Get("/", h.GetProjects)
	p.Post("/", h.CreateProject)
	p.Get("/:id", h.GetProject)
	p.Post("/:id/remap", h.RemapProject)

	r := router.Group("/runner")
	r.Post("/run", h.StartRun)
	r.Get("/history", h.RunHistory)
	r.Get("/:id", h.GetRun)
	r.Get("/:id/stream", h.StreamRun)

	ai := router.Group("/ai")
	ai.Post("/verify", h.Verify)
	ai.Get("/status/:jobId", h.JobStatus)
	ai.Get("/jobs", h.Jobs)
	ai.Get("/models", h.Models)

	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.healthService.Check(c.Context())

	status := "unhealthy"
	message := "flowprobe API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "flowprobe API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) Map(c fiber.Ctx) error {
	var req MapRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.mappingService.Map(c.Context(), services.MapRequest{
		BPMNXML:     req.BPMNXML,
		OpenAPIJSON: req.OpenAPIJSON,
		Verify:      req.Verify,
		Model:       jobqueue.ResolveModel(req.ModelID),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetProjects(c fiber.Ctx) error {
	projects, err := h.projectService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(projects)
}

func (h *APIHandlers) GetProject(c fiber.Ctx) error {
	project, err := h.projectService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(project)
}

func (h *APIHandlers) CreateProject(c fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	project, err := h.projectService.Create(c.Context(), services.CreateProjectRequest{
		Name:        req.Name,
		BPMNXML:     req.BPMNXML,
		OpenAPIJSON: req.OpenAPIJSON,
		PumlContent: req.PumlContent,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(project)
}

func (h *APIHandlers) RemapProject(c fiber.Ctx) error {
	var req RemapProjectRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	project, err := h.projectService.Remap(c.Context(), c.Params("id"), services.RemapRequest{
		BPMNXML:     req.BPMNXML,
		OpenAPIJSON: req.OpenAPIJSON,
		PumlContent: req.PumlContent,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(project)
}

func (h *APIHandlers) StartRun(c fiber.Ctx) error {
	var req StartRunRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.runs.Start(c.Context(), runner.StartRequest{
		ScenarioID:     req.ScenarioID,
		ProjectID:      req.ProjectID,
		Parallelism:    req.Parallelism,
		DataTemplateID: req.DataTemplateID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(StartRunResponse{RunID: run.ID})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	run, err := h.runs.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) RunHistory(c fiber.Ctx) error {
	runs, err := h.runs.History(c.Context(), c.Query("projectId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(runs)
}

// StreamRun sends the run snapshot as server-sent "update" events until the run finishes.
func (h *APIHandlers) StreamRun(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.runs.Get(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.RequestCtx().SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := h.runs.Stream(context.Background(), id, w, w.Flush); err != nil {
			h.logger.Warn("Run stream closed with error", "run_id", id, "error", err)
		}
	})

	return nil
}

func (h *APIHandlers) Verify(c fiber.Ctx) error {
	var req VerifyRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	job, err := h.jobs.Enqueue(c.Context(), jobqueue.EnqueueRequest{
		OpenAPIJSON: req.OpenAPIJSON,
		BPMNXML:     req.BPMNXML,
		ModelID:     req.ModelID,
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(JobResponse{JobID: job.ID})
}

func (h *APIHandlers) JobStatus(c fiber.Ctx) error {
	job, ok := h.jobs.Get(c.Context(), c.Params("jobId"))
	if !ok {
		return handleServiceError(c, services.ErrJobNotFound)
	}

	return c.JSON(NewJobStatusResponse(job))
}

// Jobs lists the jobs of ?projectId= newest first, or every job without it.
func (h *APIHandlers) Jobs(c fiber.Ctx) error {
	jobs := h.jobs.ListByProject(c.Context(), c.Query("projectId"))
	if jobs == nil {
		jobs = []*models.Job{}
	}

	return c.JSON(JobsResponse{Jobs: jobs})
}

func (h *APIHandlers) Models(c fiber.Ctx) error {
	return c.JSON(ModelsResponse{Models: jobqueue.Models()})
}
