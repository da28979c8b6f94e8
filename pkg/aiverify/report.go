package aiverify

import "github.com/dukex/flowprobe/pkg/models"

const (
	unparsedWarning = "AI analysis finished but its result could not be parsed"
	unparsedSummary = "1 warnings, 1 suggestions"
)

// FallbackReport is a warning-only report used when the verifier could not run.
func FallbackReport(message string) *models.AIVerificationReport {
	return &models.AIVerificationReport{
		OverallStatus: models.VerificationWarning,
		TotalWarnings: 1,
		OpenAPI: &models.FileVerificationResult{
			Status:      models.VerificationWarning,
			Errors:      []string{},
			Warnings:    []string{message},
			Suggestions: []string{},
			Summary:     message,
		},
		BPMN: &models.FileVerificationResult{
			Errors:      []string{},
			Warnings:    []string{},
			Suggestions: []string{},
		},
	}
}

// UnparsedReport wraps raw output the verifier produced but that could not be read as a report.
func UnparsedReport(raw string) *models.AIVerificationReport {
	result := func() *models.FileVerificationResult {
		return &models.FileVerificationResult{
			Status:      models.VerificationWarning,
			Errors:      []string{},
			Warnings:    []string{unparsedWarning},
			Suggestions: []string{"AI analysis: " + raw},
			Summary:     unparsedSummary,
		}
	}

	return &models.AIVerificationReport{
		OverallStatus:    models.VerificationWarning,
		TotalWarnings:    2,
		TotalSuggestions: 2,
		OpenAPI:          result(),
		BPMN:             result(),
		RawModelOutput:   raw,
	}
}
