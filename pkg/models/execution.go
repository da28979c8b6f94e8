package models

import (
	"maps"
	"time"
)

// AuthConfig describes how outbound requests authenticate.
type AuthConfig struct {
	Type       AuthType `json:"type"                 yaml:"type"`
	Username   string   `json:"username,omitempty"   yaml:"username,omitempty"`
	Password   string   `json:"password,omitempty"   yaml:"password,omitempty"`
	Value      string   `json:"value,omitempty"      yaml:"value,omitempty"`
	HeaderName string   `json:"headerName,omitempty" yaml:"headerName,omitempty"`
}

// ExecutionConfig tunes a single run. It is cloned per run because bearer capture mutates Auth.
type ExecutionConfig struct {
	BaseURL             string            `json:"baseUrl"                       yaml:"baseUrl"`
	RequestTimeoutMs    int64             `json:"requestTimeoutMs"              yaml:"requestTimeoutMs"`
	MaxExecutionTimeMs  int64             `json:"maxExecutionTimeMs"            yaml:"maxExecutionTimeMs"`
	DefaultHeaders      map[string]string `json:"defaultHeaders,omitempty"      yaml:"defaultHeaders,omitempty"`
	Auth                *AuthConfig       `json:"auth,omitempty"                yaml:"auth,omitempty"`
	ExpectedStatus      int               `json:"expectedStatus,omitempty"      yaml:"expectedStatus,omitempty"`
	ExpectedContentType string            `json:"expectedContentType,omitempty" yaml:"expectedContentType,omitempty"`
	RequestsPerSecond   float64           `json:"requestsPerSecond,omitempty"   yaml:"requestsPerSecond,omitempty"`
	StopOnFirstError    bool              `json:"stopOnFirstError"              yaml:"stopOnFirstError"`
}

// Execution defaults.
const (
	DefaultRequestTimeoutMs    int64 = 10_000
	DefaultMaxExecutionTimeMs  int64 = 300_000
	DefaultExpectedStatus            = 200
	DefaultExpectedContentType       = "application/json"
)

// DefaultExecutionConfig returns a config with the standard timeouts and expectations.
func DefaultExecutionConfig() *ExecutionConfig {
	cfg := &ExecutionConfig{}
	cfg.ApplyDefaults()

	return cfg
}

// ApplyDefaults fills zero values with the standard defaults.
func (c *ExecutionConfig) ApplyDefaults() {
	if c.RequestTimeoutMs <= 0 {
		c.RequestTimeoutMs = DefaultRequestTimeoutMs
	}

	if c.MaxExecutionTimeMs <= 0 {
		c.MaxExecutionTimeMs = DefaultMaxExecutionTimeMs
	}

	if c.ExpectedStatus == 0 {
		c.ExpectedStatus = DefaultExpectedStatus
	}

	if c.ExpectedContentType == "" {
		c.ExpectedContentType = DefaultExpectedContentType
	}

	if c.Auth == nil {
		c.Auth = &AuthConfig{Type: AuthNone}
	}
}

// Clone returns a deep copy safe to mutate within one run.
func (c *ExecutionConfig) Clone() *ExecutionConfig {
	if c == nil {
		return nil
	}

	out := *c
	out.DefaultHeaders = maps.Clone(c.DefaultHeaders)

	if c.Auth != nil {
		auth := *c.Auth
		out.Auth = &auth
	}

	return &out
}

// TestData holds one or more generated variants of step inputs.
type TestData struct {
	Variants []TestDataVariant `json:"variants"`
}

// TestDataVariant is one complete set of step inputs.
type TestDataVariant struct {
	Name  string                   `json:"name"`
	Steps map[string]*TestDataStep `json:"steps"`
}

// TestDataStep holds the inputs of one task.
type TestDataStep struct {
	RequestData map[string]any `json:"requestData,omitempty"`
	QueryParams map[string]any `json:"queryParams,omitempty"`
	// DataDependencies maps a field name to the id of the step that produces it.
	DataDependencies map[string]string `json:"dataDependencies,omitempty"`
}

// ExecutionRequest is everything the engine needs to run one variant.
type ExecutionRequest struct {
	ProcessModel       *ProcessModel    `json:"processModel"`
	MappingResult      *MappingResult   `json:"mappingResult"`
	APISpec            *APISpec         `json:"apiSpec"`
	TestData           *TestData        `json:"testData"`
	TestDataVariantIdx int              `json:"testDataVariantIndex"`
	Config             *ExecutionConfig `json:"config"`
}

// Variant returns the selected test data variant, or nil.
func (r *ExecutionRequest) Variant() *TestDataVariant {
	if r.TestData == nil || r.TestDataVariantIdx < 0 || r.TestDataVariantIdx >= len(r.TestData.Variants) {
		return nil
	}

	return &r.TestData.Variants[r.TestDataVariantIdx]
}

// ExecutionResult aggregates the outcome of a run.
type ExecutionResult struct {
	ProcessID       string               `json:"processId"`
	ProcessName     string               `json:"processName"`
	Status          ExecutionStatus      `json:"status"`
	StartTime       time.Time            `json:"startTime"`
	EndTime         time.Time            `json:"endTime"`
	TotalDurationMs int64                `json:"totalDurationMs"`
	Steps           []*ExecutionStep     `json:"steps"`
	Problems        []ExecutionProblem   `json:"problems"`
	Statistics      *ExecutionStatistics `json:"statistics,omitempty"`
}

// ExecutionStep records a single executed (or skipped) step.
type ExecutionStep struct {
	StepID        string            `json:"stepId"`
	TaskID        string            `json:"taskId"`
	TaskName      string            `json:"taskName"`
	Status        StepStatus        `json:"status"`
	StartTime     time.Time         `json:"startTime"`
	EndTime       time.Time         `json:"endTime"`
	DurationMs    int64             `json:"durationMs"`
	Request       *StepRequest      `json:"request,omitempty"`
	Response      *StepResponse     `json:"response,omitempty"`
	Validation    *ValidationResult `json:"validation,omitempty"`
	ExtractedData map[string]any    `json:"extractedData,omitempty"`
	ErrorMessage  string            `json:"errorMessage,omitempty"`
}

// StepRequest is the outbound request as sent.
type StepRequest struct {
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// StepResponse is the response as received.
type StepResponse struct {
	StatusCode     int               `json:"statusCode"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	ResponseTimeMs int64             `json:"responseTimeMs"`
	Timestamp      time.Time         `json:"timestamp"`
}

// ValidationResult lists the checks a response failed.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ExecutionProblem is a classified failure attached to a run.
type ExecutionProblem struct {
	Type          ProblemType `json:"type"`
	Severity      Severity    `json:"severity"`
	StepID        string      `json:"stepId,omitempty"`
	StepName      string      `json:"stepName,omitempty"`
	Message       string      `json:"message"`
	Details       string      `json:"details,omitempty"`
	RequestURL    string      `json:"requestUrl,omitempty"`
	RequestMethod string      `json:"requestMethod,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// ExecutionStatistics summarises a run.
type ExecutionStatistics struct {
	TotalSteps            int   `json:"totalSteps"`
	SuccessfulSteps       int   `json:"successfulSteps"`
	FailedSteps           int   `json:"failedSteps"`
	SkippedSteps          int   `json:"skippedSteps"`
	AverageStepDurationMs int64 `json:"averageStepDurationMs"`
	MinStepDurationMs     int64 `json:"minStepDurationMs"`
	MaxStepDurationMs     int64 `json:"maxStepDurationMs"`
	TotalRequests         int   `json:"totalRequests"`
	SuccessfulRequests    int   `json:"successfulRequests"`
	ValidationErrors      int   `json:"validationErrors"`
}
