package mapping

import (
	"strings"

	"github.com/dukex/flowprobe/pkg/models"
)

// Data-flow edge confidences.
const (
	confirmedFlowConfidence = 0.8
	inferredFlowConfidence  = 0.6
)

// DataFlowAnalyzer infers which values travel along the process's sequence flows.
type DataFlowAnalyzer struct{}

// NewDataFlowAnalyzer returns an analyzer.
func NewDataFlowAnalyzer() *DataFlowAnalyzer {
	return &DataFlowAnalyzer{}
}

// Analyze returns one edge per sequence flow whose target operation needs an
// identifier the source can provide. Both ends must be mapped.
func (a *DataFlowAnalyzer) Analyze(process *models.ProcessModel, mappings map[string]*models.TaskEndpointMapping,
	idx *EndpointIndex,
) []models.DataFlowEdge {
	if process == nil {
		return nil
	}

	var edges []models.DataFlowEdge

	for _, flow := range process.SequenceFlows {
		src, okSrc := mappings[flow.SourceID]
		dst, okDst := mappings[flow.TargetID]

		if !okSrc || !okDst || flow.SourceID == flow.TargetID {
			continue
		}

		srcEndpoint, okSrc := idx.Lookup(src.Method, src.Path)
		dstEndpoint, okDst := idx.Lookup(dst.Method, dst.Path)

		if !okSrc || !okDst {
			continue
		}

		if edge, ok := flowEdge(flow, srcEndpoint.Operation, dstEndpoint.Operation); ok {
			edges = append(edges, edge)
		}
	}

	return edges
}

func flowEdge(flow models.SequenceFlow, src, dst *models.Operation) (models.DataFlowEdge, bool) {
	candidates := flowParameters(dst)
	if len(candidates) == 0 {
		return models.DataFlowEdge{}, false
	}

	confirmed := len(src.ResponseFields) > 0
	edge := models.DataFlowEdge{
		SourceTaskID:      flow.SourceID,
		TargetTaskID:      flow.TargetID,
		Confidence:        inferredFlowConfidence,
		ParameterMappings: map[string]models.ParameterMapping{},
	}

	if confirmed {
		edge.Confidence = confirmedFlowConfidence
	}

	for _, p := range candidates {
		if confirmed && !src.HasResponseField(p.Name) {
			continue
		}

		edge.Fields = append(edge.Fields, p.Name)
		edge.ParameterMappings[p.Name] = models.ParameterMapping{
			ParamName:   p.Name,
			ParamIn:     p.In,
			SourceField: p.Name,
		}
	}

	if len(edge.Fields) == 0 {
		return models.DataFlowEdge{}, false
	}

	return edge, true
}

// flowParameters lists path parameters and required id-shaped query parameters.
func flowParameters(op *models.Operation) []models.Parameter {
	var out []models.Parameter

	for _, p := range op.Parameters {
		switch p.In {
		case models.ParamInPath:
			out = append(out, p)
		case models.ParamInQuery:
			if p.Required && strings.HasSuffix(strings.ToLower(p.Name), "id") {
				out = append(out, p)
			}
		}
	}

	return out
}
