package mapping

import (
	"log/slog"
	"strings"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/similarity"
)

const virtualRecommendation = "Endpoint added automatically as a dependency"

// Mapper aligns a process model with an API specification.
type Mapper struct {
	matcher  *Matcher
	deps     *DependencyAnalyzer
	dataFlow *DataFlowAnalyzer
	common   *CommonFieldAnalyzer
	secret   *SecretFieldAnalyzer
	logger   *slog.Logger
}

// NewMapper returns a mapper scoring text with scorer.
func NewMapper(scorer similarity.Scorer, logger *slog.Logger) *Mapper {
	if scorer == nil {
		scorer = similarity.NewTokenCosine()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Mapper{
		matcher:  NewMatcher(scorer),
		deps:     NewDependencyAnalyzer(),
		dataFlow: NewDataFlowAnalyzer(),
		common:   NewCommonFieldAnalyzer(),
		secret:   NewSecretFieldAnalyzer(),
		logger:   logger.With("module", "mapper"),
	}
}

// Map matches every task, adds virtual dependency tasks, builds the data-flow
// edges and computes the coverage statistics.
func (m *Mapper) Map(process *models.ProcessModel, spec *models.APISpec) *models.MappingResult {
	if process == nil {
		process = &models.ProcessModel{}
	}

	idx := NewEndpointIndex(spec)
	result := models.NewMappingResult()
	result.TotalTasks = len(process.Tasks)
	result.TotalEndpoints = idx.Len()

	// order holds task ids in process order followed by virtual tasks.
	var order []string

	for _, task := range process.Tasks {
		best := m.matcher.Best(task, idx)
		if best == nil || best.Confidence < MinConfidence {
			result.UnmatchedTasks = append(result.UnmatchedTasks, m.matcher.Unmatched(task, idx))

			continue
		}

		result.TaskMappings[task.ID] = best
		order = append(order, task.ID)
	}

	result.MatchedTasks = len(order)

	deps := m.deps.Analyze(spec)
	order = m.addVirtualTasks(result, deps, idx, order)

	edges := m.dataFlow.Analyze(process, result.TaskMappings, idx)
	edges = append(edges, dependencyEdges(result, deps, order)...)
	result.DataFlowEdges = dedupEdges(edges)

	result.CommonFields = m.common.Analyze(spec, deps)
	result.SecretFields = m.secret.Analyze(spec)

	seen := map[string]bool{}

	for _, id := range order {
		mp := result.TaskMappings[id]

		key := models.EndpointKey(mp.Method, mp.Path)
		if !seen[key] {
			seen[key] = true
			result.MatchedEndpointIDs = append(result.MatchedEndpointIDs, key)
		}
	}

	result.MatchedEndpoints = len(result.MatchedEndpointIDs)
	result.OverallConfidence = overallConfidence(result, order)

	m.logger.Info("Mapped process",
		"process_id", process.ID,
		"tasks", result.TotalTasks,
		"matched", result.MatchedTasks,
		"virtual", len(order)-result.MatchedTasks,
		"edges", len(result.DataFlowEdges),
		"confidence", result.OverallConfidence)

	return result
}

// addVirtualTasks adds a task for every dependency source that a matched
// endpoint needs but no task covers, repeating until nothing new appears.
func (m *Mapper) addVirtualTasks(result *models.MappingResult, deps *Dependencies, idx *EndpointIndex,
	order []string,
) []string {
	covered := map[string]bool{}
	for _, id := range order {
		mp := result.TaskMappings[id]
		covered[models.EndpointKey(mp.Method, mp.Path)] = true
	}

	n := 0

	for changed := true; changed; {
		changed = false

		for _, target := range deps.Keys() {
			if !covered[target] {
				continue
			}

			for _, dep := range deps.For(target) {
				source, ok := idx.LookupKey(dep.Key())
				if !ok || covered[source.Key()] {
					continue
				}

				n++
				id := models.VirtualTaskID(n)
				result.TaskMappings[id] = &models.TaskEndpointMapping{
					TaskID:         id,
					TaskName:       virtualTaskName(source),
					Method:         source.Method,
					Path:           source.Path,
					OperationID:    source.OperationID,
					Confidence:     1.0,
					Strategy:       models.StrategyDependencyAuto,
					Recommendation: virtualRecommendation,
				}
				covered[source.Key()] = true
				order = append(order, id)
				changed = true

				m.logger.Debug("Added virtual dependency task", "task_id", id, "endpoint", source.Key(),
					"required_by", target)
			}
		}
	}

	return order
}

func virtualTaskName(e models.Endpoint) string {
	switch {
	case strings.TrimSpace(e.Summary) != "":
		return e.Summary
	case e.OperationID != "":
		return e.OperationID
	default:
		return e.Method + " " + e.Path
	}
}

func dependencyEdges(result *models.MappingResult, deps *Dependencies, order []string) []models.DataFlowEdge {
	tasksByKey := map[string][]string{}

	for _, id := range order {
		mp := result.TaskMappings[id]
		key := models.EndpointKey(mp.Method, mp.Path)
		tasksByKey[key] = append(tasksByKey[key], id)
	}

	var edges []models.DataFlowEdge

	for _, target := range deps.Keys() {
		for _, targetID := range tasksByKey[target] {
			for _, dep := range deps.For(target) {
				sources := tasksByKey[dep.Key()]
				if len(sources) == 0 || sources[0] == targetID {
					continue
				}

				fields := dep.sourceFields()
				edge := models.DataFlowEdge{
					SourceTaskID: sources[0],
					TargetTaskID: targetID,
					Fields:       fields,
					Confidence:   dep.Confidence,
				}

				if dep.ParameterName != "" {
					edge.ParameterMappings = map[string]models.ParameterMapping{
						dep.ParameterName: {
							ParamName:   dep.ParameterName,
							ParamIn:     dep.ParameterIn,
							SourceField: fields[0],
							FieldHint:   dep.FieldHint,
						},
					}
				}

				edges = append(edges, edge)
			}
		}
	}

	return edges
}

// dedupEdges keeps the first edge per (source, target, fields) and merges
// parameter mappings from later duplicates into it.
func dedupEdges(edges []models.DataFlowEdge) []models.DataFlowEdge {
	out := []models.DataFlowEdge{}
	byKey := map[string]int{}

	for _, e := range edges {
		key := e.SourceTaskID + "\x00" + e.TargetTaskID + "\x00" + strings.Join(e.Fields, ",")

		n, dup := byKey[key]
		if !dup {
			byKey[key] = len(out)
			out = append(out, e)

			continue
		}

		for name, pm := range e.ParameterMappings {
			if out[n].ParameterMappings == nil {
				out[n].ParameterMappings = map[string]models.ParameterMapping{}
			}

			if _, exists := out[n].ParameterMappings[name]; !exists {
				out[n].ParameterMappings[name] = pm
			}
		}

		if e.Confidence > out[n].Confidence {
			out[n].Confidence = e.Confidence
		}
	}

	return out
}

// overallConfidence sums in task order so repeated runs produce identical floats.
func overallConfidence(result *models.MappingResult, order []string) float64 {
	if result.TotalTasks == 0 || len(order) == 0 {
		return 0
	}

	var sum float64
	for _, id := range order {
		sum += result.TaskMappings[id].Confidence
	}

	coverage := float64(result.MatchedTasks) / float64(result.TotalTasks)
	mean := sum / float64(len(order))

	return clamp(0.6*coverage + 0.4*mean)
}
