// Package models defines the domain types shared by the mapper, the execution engine and the job queue.
package models

import "strings"

// Strategy tags how a task was matched to an endpoint.
type Strategy string

const (
	StrategyExact            Strategy = "EXACT"
	StrategyCustomProperty   Strategy = "CUSTOM_PROPERTY"
	StrategyDescription      Strategy = "DESCRIPTION"
	StrategySemantic         Strategy = "SEMANTIC"
	StrategyBPMNNameInferred Strategy = "BPMN_NAME_INFERRED"
	StrategyDependencyAuto   Strategy = "DEPENDENCY_AUTO"
)

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyExact, StrategyCustomProperty, StrategyDescription,
		StrategySemantic, StrategyBPMNNameInferred, StrategyDependencyAuto:
		return true
	}

	return false
}

// StepStatus is the outcome of a single executed step.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "SUCCESS"
	StepStatusFailed  StepStatus = "FAILED"
	StepStatusSkipped StepStatus = "SKIPPED"
)

// ExecutionStatus is the aggregate outcome of an execution.
type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"
	ExecutionStatusFailed  ExecutionStatus = "FAILED"
	ExecutionStatusPartial ExecutionStatus = "PARTIAL"
)

// RunStatus is the lifecycle state of a RunExecution.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// CanTransition reports whether moving from s to next keeps the lifecycle monotonic.
func (s RunStatus) CanTransition(next RunStatus) bool {
	return runStatusRank[next] > runStatusRank[s]
}

var runStatusRank = map[RunStatus]int{
	RunStatusQueued:    1,
	RunStatusRunning:   2,
	RunStatusCompleted: 3,
	RunStatusFailed:    3,
}

// RunStepStatus is the per-step state shown in a RunExecution snapshot.
type RunStepStatus string

const (
	RunStepPending RunStepStatus = "pending"
	RunStepRunning RunStepStatus = "running"
	RunStepSuccess RunStepStatus = "success"
	RunStepFailed  RunStepStatus = "failed"
)

// RunStepStatusFor converts an execution step status to its snapshot form.
func RunStepStatusFor(s StepStatus) RunStepStatus {
	switch s {
	case StepStatusSuccess:
		return RunStepSuccess
	case StepStatusFailed:
		return RunStepFailed
	default:
		return RunStepPending
	}
}

// JobStatus is the lifecycle state of an asynchronous job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusError     JobStatus = "ERROR"
)

// Wire returns the lowercase form used by the HTTP API.
func (s JobStatus) Wire() string {
	return strings.ToLower(string(s))
}

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// ProblemType classifies an execution problem.
type ProblemType string

const (
	ProblemHTTPError          ProblemType = "HTTP_ERROR"
	ProblemNetworkError       ProblemType = "NETWORK_ERROR"
	ProblemTimeout            ProblemType = "TIMEOUT"
	ProblemBusinessLogicError ProblemType = "BUSINESS_LOGIC_ERROR"
	ProblemUnexpectedResponse ProblemType = "UNEXPECTED_RESPONSE"
)

// Severity of an execution problem.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// AuthType selects how StepRunner authenticates outbound requests.
type AuthType string

const (
	AuthNone   AuthType = "NONE"
	AuthBasic  AuthType = "BASIC"
	AuthBearer AuthType = "BEARER"
	AuthAPIKey AuthType = "API_KEY"
)

// ParamIn is the location of an OpenAPI parameter.
type ParamIn string

const (
	ParamInPath   ParamIn = "path"
	ParamInQuery  ParamIn = "query"
	ParamInHeader ParamIn = "header"
	ParamInCookie ParamIn = "cookie"
)

// LogLevel of a run log entry.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// HTTP methods covered by the endpoint index.
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
	MethodPatch  = "PATCH"
)
