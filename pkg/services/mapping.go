package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukex/flowprobe/pkg/bpmn"
	"github.com/dukex/flowprobe/pkg/mapping"
	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/openapi"
	"github.com/dukex/flowprobe/pkg/otelhelper"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Verifier reviews the two input documents with an external model.
type Verifier interface {
	Verify(ctx context.Context, openAPIJSON, bpmnXML, model string) *models.AIVerificationReport
}

// MapRequest carries the raw documents to align.
type MapRequest struct {
	BPMNXML     string
	OpenAPIJSON string `validate:"required"`
	// Verify runs the AI verifier synchronously and attaches its report.
	Verify bool
	Model  string
}

// Parsed holds both documents in their parsed form.
type Parsed struct {
	Process *models.ProcessModel
	Spec    *models.APISpec
}

type Mapping struct {
	mapper   *mapping.Mapper
	verifier Verifier
	validate *validator.Validate
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewMapping creates the mapping service. verifier may be nil, in which case
// verification requests are ignored.
func NewMapping(mapper *mapping.Mapper, verifier Verifier, logger *slog.Logger) *Mapping {
	if logger == nil {
		logger = slog.Default()
	}

	return &Mapping{
		mapper:   mapper,
		verifier: verifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   otel.Tracer("flowprobe/services"),
		logger:   logger.With("module", "mapping_service"),
	}
}

// Parse parses both documents. A blank BPMN document yields an empty process.
func (m *Mapping) Parse(bpmnXML, openAPIJSON string) (*Parsed, error) {
	spec, err := openapi.Parse([]byte(openAPIJSON))
	if err != nil {
		return nil, newParseError("Parse", "OpenAPI document", err)
	}

	process := &models.ProcessModel{}

	if strings.TrimSpace(bpmnXML) != "" {
		process, err = bpmn.Parse([]byte(bpmnXML))
		if err != nil {
			return nil, newParseError("Parse", "BPMN document", err)
		}
	}

	return &Parsed{Process: process, Spec: spec}, nil
}

// Map parses the documents and aligns the process with the API. A
// verification failure only degrades the attached report.
func (m *Mapping) Map(ctx context.Context, req MapRequest) (*models.MappingResult, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, NewValidationError("Map", "validation_error", "openApiJson is required", ErrInvalidRequest)
	}

	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "mapping.map")
	defer span.End()

	parsed, err := m.Parse(req.BPMNXML, req.OpenAPIJSON)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	result := m.mapper.Map(parsed.Process, parsed.Spec)

	span.SetAttributes(
		attribute.String(otelhelper.ProcessIDKey, parsed.Process.ID),
		attribute.Int("mapping.matched_tasks", result.MatchedTasks),
	)

	m.logger.InfoContext(ctx, "Mapped process",
		"process_id", parsed.Process.ID,
		"total_tasks", result.TotalTasks,
		"matched_tasks", result.MatchedTasks,
		"overall_confidence", result.OverallConfidence)

	if req.Verify {
		result.AIVerificationReport = m.verify(ctx, req)
	}

	return result, nil
}

func (m *Mapping) verify(ctx context.Context, req MapRequest) *models.AIVerificationReport {
	if m.verifier == nil {
		m.logger.WarnContext(ctx, "Verification requested without a verifier")

		return nil
	}

	report := m.verifier.Verify(ctx, req.OpenAPIJSON, req.BPMNXML, req.Model)
	if report != nil {
		m.logger.InfoContext(ctx, "Attached verification report", "overall_status", report.OverallStatus)
	}

	return report
}
