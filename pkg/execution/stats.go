package execution

import "github.com/dukex/flowprobe/pkg/models"

// Statistics summarises steps. Durations of zero (skipped steps) do not count
// towards the average, minimum and maximum.
func Statistics(steps []*models.ExecutionStep) *models.ExecutionStatistics {
	stats := &models.ExecutionStatistics{TotalSteps: len(steps)}

	var (
		total, timed int64
		first        = true
	)

	for _, s := range steps {
		switch s.Status {
		case models.StepStatusSuccess:
			stats.SuccessfulSteps++
		case models.StepStatusFailed:
			stats.FailedSteps++
		case models.StepStatusSkipped:
			stats.SkippedSteps++
		}

		if s.DurationMs > 0 {
			total += s.DurationMs
			timed++

			if first || s.DurationMs < stats.MinStepDurationMs {
				stats.MinStepDurationMs = s.DurationMs
			}

			if s.DurationMs > stats.MaxStepDurationMs {
				stats.MaxStepDurationMs = s.DurationMs
			}

			first = false
		}

		if s.Response != nil {
			stats.TotalRequests++

			if isSuccessStatus(s.Response.StatusCode) {
				stats.SuccessfulRequests++
			}
		}

		if s.Validation != nil && !s.Validation.Valid {
			stats.ValidationErrors++
		}
	}

	if timed > 0 {
		stats.AverageStepDurationMs = total / timed
	}

	return stats
}

// OverallStatus is SUCCESS when every executed step succeeded, FAILED when
// none did and PARTIAL otherwise. Skipped steps are ignored.
func OverallStatus(steps []*models.ExecutionStep) models.ExecutionStatus {
	var succeeded, failed int

	for _, s := range steps {
		switch s.Status {
		case models.StepStatusSuccess:
			succeeded++
		case models.StepStatusFailed:
			failed++
		}
	}

	switch {
	case succeeded == 0:
		return models.ExecutionStatusFailed
	case failed == 0:
		return models.ExecutionStatusSuccess
	default:
		return models.ExecutionStatusPartial
	}
}
