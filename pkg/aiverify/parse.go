package aiverify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// ErrNoJSON is returned when the output holds no JSON object.
var ErrNoJSON = errors.New("no JSON object in model output")

const fileResultSchema = `{
	"type": "object",
	"properties": {
		"status": {"type": ["string", "null"]},
		"errors": {"type": ["array", "null"], "items": {"type": "string"}},
		"warnings": {"type": ["array", "null"], "items": {"type": "string"}},
		"suggestions": {"type": ["array", "null"], "items": {"type": "string"}},
		"summary": {"type": ["string", "null"]}
	}
}`

var reportSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["overall_status"],
	"properties": {
		"overall_status": {"type": "string"},
		"total_errors": {"type": "integer"},
		"total_warnings": {"type": "integer"},
		"total_suggestions": {"type": "integer"},
		"openapi": {"oneOf": [{"type": "null"}, ` + fileResultSchema + `]},
		"bpmn": {"oneOf": [{"type": "null"}, ` + fileResultSchema + `]}
	}
}`)

// wireReport is the snake_case document the verifier prints.
type wireReport struct {
	OverallStatus    string      `json:"overall_status"`
	TotalErrors      int         `json:"total_errors"`
	TotalWarnings    int         `json:"total_warnings"`
	TotalSuggestions int         `json:"total_suggestions"`
	OpenAPI          *wireResult `json:"openapi"`
	BPMN             *wireResult `json:"bpmn"`
}

type wireResult struct {
	Status      string   `json:"status"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
	Summary     string   `json:"summary"`
}

// ParseReport reads a report from raw model output. It tries, in order, the
// output as printed, the repaired output and a lenient reading that accepts
// camelCase keys and loosely typed values.
func ParseReport(raw string) (*models.AIVerificationReport, error) {
	text, ok := stripNoise(strings.TrimSpace(raw))
	if !ok {
		return nil, ErrNoJSON
	}

	report, err := parseStrict(text)
	if err == nil {
		return report, nil
	}

	repaired := RepairJSON(text)

	if report, err = parseStrict(repaired); err == nil {
		return report, nil
	}

	if report, lerr := parseLenient(repaired); lerr == nil {
		return report, nil
	}

	return nil, fmt.Errorf("failed to parse model output: %w", err)
}

func parseStrict(text string) (*models.AIVerificationReport, error) {
	result, err := gojsonschema.Validate(reportSchema, gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, err
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}

		return nil, fmt.Errorf("validation errors: %s", strings.Join(msgs, "; "))
	}

	var w wireReport
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return nil, err
	}

	return &models.AIVerificationReport{
		OverallStatus:    w.OverallStatus,
		TotalErrors:      w.TotalErrors,
		TotalWarnings:    w.TotalWarnings,
		TotalSuggestions: w.TotalSuggestions,
		OpenAPI:          w.OpenAPI.toModel(),
		BPMN:             w.BPMN.toModel(),
	}, nil
}

func (w *wireResult) toModel() *models.FileVerificationResult {
	if w == nil {
		return nil
	}

	return &models.FileVerificationResult{
		Status:      w.Status,
		Errors:      nonNil(w.Errors),
		Warnings:    nonNil(w.Warnings),
		Suggestions: nonNil(w.Suggestions),
		Summary:     w.Summary,
	}
}

func parseLenient(text string) (*models.AIVerificationReport, error) {
	var root map[string]any
	if err := json.Unmarshal([]byte(text), &root); err != nil {
		return nil, err
	}

	status, _ := pick(root, "overall_status", "overallStatus").(string)

	return &models.AIVerificationReport{
		OverallStatus:    status,
		TotalErrors:      toInt(pick(root, "total_errors", "totalErrors")),
		TotalWarnings:    toInt(pick(root, "total_warnings", "totalWarnings")),
		TotalSuggestions: toInt(pick(root, "total_suggestions", "totalSuggestions")),
		OpenAPI:          lenientResult(root["openapi"]),
		BPMN:             lenientResult(root["bpmn"]),
	}, nil
}

func lenientResult(v any) *models.FileVerificationResult {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	status, _ := m["status"].(string)
	summary, _ := m["summary"].(string)

	return &models.FileVerificationResult{
		Status:      status,
		Errors:      toStrings(m["errors"]),
		Warnings:    toStrings(m["warnings"]),
		Suggestions: toStrings(m["suggestions"]),
		Summary:     summary,
	}
}

func pick(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}

	return nil
}

func toInt(v any) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}

	return 0
}

func toStrings(v any) []string {
	out := []string{}

	items, ok := v.([]any)
	if !ok {
		return out
	}

	for _, item := range items {
		if s, isString := item.(string); isString {
			out = append(out, s)
		} else {
			out = append(out, fmt.Sprint(item))
		}
	}

	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
