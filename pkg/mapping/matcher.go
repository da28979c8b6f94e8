package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/similarity"
)

// Matching thresholds.
const (
	ExactMatchThreshold    = 0.95
	SemanticMatchThreshold = 0.4
	MinConfidence          = 0.3
	DescriptionWeight      = 0.85

	maxRecommendations = 3
)

// Matcher picks the best endpoint for a task using four ranked strategies.
type Matcher struct {
	scorer similarity.Scorer
}

// NewMatcher returns a matcher backed by scorer.
func NewMatcher(scorer similarity.Scorer) *Matcher {
	return &Matcher{scorer: scorer}
}

// Exact tries the EXACT strategy only.
func (m *Matcher) Exact(task *models.ProcessTask, idx *EndpointIndex) *models.TaskEndpointMapping {
	for _, e := range idx.All() {
		if e.OperationID != "" &&
			(strings.EqualFold(e.OperationID, task.ID) || strings.EqualFold(e.OperationID, task.Name)) {
			return newMapping(task, e, 1.0, models.StrategyExact)
		}

		if info := task.APIEndpointInfo; info != nil && info.Method != "" && info.Path != "" &&
			strings.EqualFold(info.Method, e.Method) && info.Path == e.Path {
			return newMapping(task, e, ExactMatchThreshold, models.StrategyExact)
		}
	}

	return nil
}

// Best evaluates the strategies in order and keeps the highest score. An
// earlier strategy wins ties. EXACT at or above the threshold short-circuits.
func (m *Matcher) Best(task *models.ProcessTask, idx *EndpointIndex) *models.TaskEndpointMapping {
	exact := m.Exact(task, idx)
	if exact != nil && exact.Confidence >= ExactMatchThreshold {
		return exact
	}

	best := exact

	for _, strategy := range []func(*models.ProcessTask, *EndpointIndex) *models.TaskEndpointMapping{
		m.customProperty,
		m.description,
		m.semantic,
	} {
		candidate := strategy(task, idx)
		if candidate != nil && (best == nil || candidate.Confidence > best.Confidence) {
			best = candidate
		}
	}

	return best
}

func (m *Matcher) customProperty(task *models.ProcessTask, idx *EndpointIndex) *models.TaskEndpointMapping {
	value := task.CustomProperties["api.endpoint"]
	if value == "" {
		value = task.CustomProperties["apiEndpoint"]
	}

	parts := strings.Fields(value)
	if len(parts) != 2 {
		return nil
	}

	e, ok := idx.Lookup(strings.ToUpper(parts[0]), parts[1])
	if !ok {
		return nil
	}

	return newMapping(task, e, 0.9, models.StrategyCustomProperty)
}

func (m *Matcher) description(task *models.ProcessTask, idx *EndpointIndex) *models.TaskEndpointMapping {
	text := strings.TrimSpace(task.SearchText())
	if text == "" {
		return nil
	}

	var (
		best      *models.TaskEndpointMapping
		bestScore float64
	)

	for _, e := range idx.All() {
		score := m.scorer.Similarity(text, e.FullText)
		if score > bestScore {
			bestScore = score
			best = newMapping(task, e, score*DescriptionWeight, models.StrategyDescription)
		}
	}

	return best
}

func (m *Matcher) semantic(task *models.ProcessTask, idx *EndpointIndex) *models.TaskEndpointMapping {
	text := strings.TrimSpace(task.SearchText())
	if text == "" || idx.Len() == 0 {
		return nil
	}

	n, score := m.scorer.MostSimilar(text, idx.Texts())
	if n < 0 || score < SemanticMatchThreshold {
		return nil
	}

	return newMapping(task, idx.All()[n], score, models.StrategySemantic)
}

// Unmatched describes a task without a qualifying match, with up to three candidates.
func (m *Matcher) Unmatched(task *models.ProcessTask, idx *EndpointIndex) models.UnmatchedElement {
	el := models.UnmatchedElement{
		ElementID:   task.ID,
		ElementName: task.Name,
		ElementType: "TASK",
		Reason:      fmt.Sprintf("no endpoint matched with confidence >= %.2f", MinConfidence),
	}

	type candidate struct {
		label string
		score float64
	}

	var candidates []candidate

	if text := strings.TrimSpace(task.SearchText()); text != "" {
		for _, e := range idx.All() {
			candidates = append(candidates, candidate{
				label: e.Method + " " + e.Path,
				score: m.scorer.Similarity(text, e.FullText),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	for i, c := range candidates {
		if i == maxRecommendations {
			break
		}

		if c.score > MinConfidence {
			el.Recommendations = append(el.Recommendations,
				fmt.Sprintf("Possible endpoint: %s (similarity: %.2f)", c.label, c.score))

			if c.score > el.MaxConfidence {
				el.MaxConfidence = c.score
			}
		}
	}

	if len(el.Recommendations) == 0 {
		el.Recommendations = []string{"No similar endpoints found automatically"}
	}

	return el
}

func newMapping(task *models.ProcessTask, e models.Endpoint, confidence float64,
	strategy models.Strategy,
) *models.TaskEndpointMapping {
	return &models.TaskEndpointMapping{
		TaskID:         task.ID,
		TaskName:       task.Name,
		Method:         e.Method,
		Path:           e.Path,
		OperationID:    e.OperationID,
		Confidence:     clamp(confidence),
		Strategy:       strategy,
		Recommendation: Recommendation(confidence),
	}
}

// Recommendation turns a confidence score into reviewer guidance.
func Recommendation(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "High confidence match"
	case confidence >= 0.7:
		return "Medium confidence, manual review suggested"
	default:
		return "Low confidence, manual review required"
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
