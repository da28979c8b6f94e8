package models

import (
	"strconv"
	"strings"
)

// VirtualTaskPrefix marks tasks synthesised for endpoints the process does not mention.
const VirtualTaskPrefix = "VIRTUAL_DEP_"

// IsVirtualTaskID reports whether id names a synthesised dependency task.
func IsVirtualTaskID(id string) bool {
	return strings.HasPrefix(id, VirtualTaskPrefix)
}

// VirtualTaskID returns the id of the n-th virtual task (1-based).
func VirtualTaskID(n int) string {
	return VirtualTaskPrefix + strconv.Itoa(n)
}

// Endpoint is a flattened OpenAPI operation with its pre-computed full text.
type Endpoint struct {
	Method      string     `json:"method"`
	Path        string     `json:"path"`
	OperationID string     `json:"operationId,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Description string     `json:"description,omitempty"`
	FullText    string     `json:"fullText"`
	Operation   *Operation `json:"-"`
}

// Key returns the "METHOD:path" identity of the endpoint.
func (e Endpoint) Key() string {
	return EndpointKey(e.Method, e.Path)
}

// TaskEndpointMapping assigns a task to an endpoint.
type TaskEndpointMapping struct {
	TaskID            string         `json:"taskId"`
	TaskName          string         `json:"taskName"`
	Method            string         `json:"method"`
	Path              string         `json:"path"`
	OperationID       string         `json:"operationId,omitempty"`
	Confidence        float64        `json:"confidence"`
	Strategy          Strategy       `json:"strategy"`
	Recommendation    string         `json:"recommendation,omitempty"`
	CustomRequestData map[string]any `json:"customRequestData,omitempty"`
}

// ParameterMapping records which source field feeds a target parameter.
type ParameterMapping struct {
	ParamName   string  `json:"paramName"`
	ParamIn     ParamIn `json:"paramIn"`
	SourceField string  `json:"sourceField"`
	FieldHint   string  `json:"fieldHint,omitempty"`
}

// DataFlowEdge says the target task reads fields from the source task's response.
type DataFlowEdge struct {
	SourceTaskID      string                      `json:"sourceTaskId"`
	TargetTaskID      string                      `json:"targetTaskId"`
	Fields            []string                    `json:"fields"`
	Confidence        float64                     `json:"confidence"`
	ParameterMappings map[string]ParameterMapping `json:"parameterMappings,omitempty"`
}

// UnmatchedElement is a task that no endpoint matched well enough.
type UnmatchedElement struct {
	ElementID       string   `json:"elementId"`
	ElementName     string   `json:"elementName"`
	ElementType     string   `json:"elementType"`
	Reason          string   `json:"reason"`
	Recommendations []string `json:"recommendations"`
	MaxConfidence   float64  `json:"maxConfidence"`
}

// CommonField is a parameter reused across several endpoints.
type CommonField struct {
	FieldName       string   `json:"fieldName"`
	FieldType       string   `json:"fieldType"`
	UsageCount      int      `json:"usageCount"`
	UsedInEndpoints []string `json:"usedInEndpoints"`
	Required        bool     `json:"required"`
	Description     string   `json:"description,omitempty"`
	DataType        string   `json:"dataType,omitempty"`
}

// SecretField is a parameter whose name looks like a credential.
type SecretField struct {
	FieldName       string   `json:"fieldName"`
	FieldType       string   `json:"fieldType"`
	UsedInEndpoints []string `json:"usedInEndpoints"`
	Required        bool     `json:"required"`
	Description     string   `json:"description,omitempty"`
	DataType        string   `json:"dataType,omitempty"`
	Reason          string   `json:"reason"`
}

// MappingResult is the complete alignment of a process with an API.
type MappingResult struct {
	TaskMappings         map[string]*TaskEndpointMapping `json:"taskMappings"`
	UnmatchedTasks       []UnmatchedElement              `json:"unmatchedTasks"`
	DataFlowEdges        []DataFlowEdge                  `json:"dataFlowEdges"`
	CommonFields         []CommonField                   `json:"commonFields"`
	SecretFields         []SecretField                   `json:"secretFields"`
	OverallConfidence    float64                         `json:"overallConfidence"`
	TotalTasks           int                             `json:"totalTasks"`
	MatchedTasks         int                             `json:"matchedTasks"`
	TotalEndpoints       int                             `json:"totalEndpoints"`
	MatchedEndpoints     int                             `json:"matchedEndpoints"`
	MatchedEndpointIDs   []string                        `json:"matchedEndpointIds,omitempty"`
	AIVerificationReport *AIVerificationReport           `json:"aiVerificationReport,omitempty"`
}

// NewMappingResult returns an empty result with non-nil collections.
func NewMappingResult() *MappingResult {
	return &MappingResult{
		TaskMappings:   map[string]*TaskEndpointMapping{},
		UnmatchedTasks: []UnmatchedElement{},
		DataFlowEdges:  []DataFlowEdge{},
		CommonFields:   []CommonField{},
		SecretFields:   []SecretField{},
	}
}

// VirtualTaskIDs returns the ids of synthesised tasks in numeric order.
func (r *MappingResult) VirtualTaskIDs() []string {
	var ids []string

	for n := 1; ; n++ {
		id := VirtualTaskID(n)
		if _, ok := r.TaskMappings[id]; !ok {
			return ids
		}

		ids = append(ids, id)
	}
}

// InboundEdges returns the edges whose target is taskID.
func (r *MappingResult) InboundEdges(taskID string) []DataFlowEdge {
	var edges []DataFlowEdge

	for _, e := range r.DataFlowEdges {
		if e.TargetTaskID == taskID {
			edges = append(edges, e)
		}
	}

	return edges
}

// OutboundEdges returns the edges whose source is taskID.
func (r *MappingResult) OutboundEdges(taskID string) []DataFlowEdge {
	var edges []DataFlowEdge

	for _, e := range r.DataFlowEdges {
		if e.SourceTaskID == taskID {
			edges = append(edges, e)
		}
	}

	return edges
}

// AIVerificationReport is the verdict of the external model on both input files.
type AIVerificationReport struct {
	OpenAPI          *FileVerificationResult `json:"openapi,omitempty"`
	BPMN             *FileVerificationResult `json:"bpmn,omitempty"`
	OverallStatus    string                  `json:"overallStatus"`
	TotalErrors      int                     `json:"totalErrors"`
	TotalWarnings    int                     `json:"totalWarnings"`
	TotalSuggestions int                     `json:"totalSuggestions"`
	RawModelOutput   string                  `json:"rawModelOutput,omitempty"`
	RawModelStderr   string                  `json:"rawModelStderr,omitempty"`
}

// FileVerificationResult holds the findings for one file.
type FileVerificationResult struct {
	Status      string   `json:"status"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
	Summary     string   `json:"summary,omitempty"`
}

// Verification statuses.
const (
	VerificationOK      = "ok"
	VerificationWarning = "warning"
	VerificationError   = "error"
)
