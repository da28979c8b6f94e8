package web

import (
	"errors"

	"github.com/dukex/flowprobe/pkg/jobqueue"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/dukex/flowprobe/pkg/runner"
	"github.com/dukex/flowprobe/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err), errors.Is(err, runner.ErrProjectRequired):
		return badRequest(c, err.Error())

	case services.IsParseError(err):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("parse_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case errors.Is(err, persistence.ErrProjectNotFound):
		return notFound(c, "project_not_found", "project not found")

	case errors.Is(err, persistence.ErrRunNotFound):
		return notFound(c, "run_not_found", "run not found")

	case errors.Is(err, persistence.ErrJobNotFound):
		return notFound(c, "job_not_found", "job not found")

	case errors.Is(err, jobqueue.ErrClosed):
		problem := problems.NewStatusProblem(503).
			WithInstance(c.Path()).
			WithType("unavailable").
			WithDetail(err.Error())

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)

	default:
		return internalError(c, err)
	}
}
