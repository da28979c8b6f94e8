package execution

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dukex/flowprobe/pkg/models"
	"golang.org/x/time/rate"
)

const consentHeader = "x-consent-id"

var dataWrappedPaths = []string{"payments", "account-consents", "product-agreements"}

// Run is the mutable state of one execution. Config is a private copy:
// bearer capture rewrites its Auth for the remaining steps.
type Run struct {
	Process *models.ProcessModel
	Mapping *models.MappingResult
	Spec    *models.APISpec
	Variant *models.TestDataVariant
	Config  *models.ExecutionConfig
	Values  *models.ExecutionContext

	limiter *rate.Limiter
}

// NewRun prepares the state for req. The request's config is cloned.
func NewRun(req *models.ExecutionRequest) *Run {
	cfg := req.Config.Clone()
	if cfg == nil {
		cfg = models.DefaultExecutionConfig()
	}

	cfg.ApplyDefaults()

	mapping := req.MappingResult
	if mapping == nil {
		mapping = models.NewMappingResult()
	}

	process := req.ProcessModel
	if process == nil {
		process = &models.ProcessModel{}
	}

	run := &Run{
		Process: process,
		Mapping: mapping,
		Spec:    req.APISpec,
		Variant: req.Variant(),
		Config:  cfg,
		Values:  models.NewExecutionContext(),
	}

	if cfg.RequestsPerSecond > 0 {
		run.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return run
}

func (r *Run) testStep(taskID string) *models.TestDataStep {
	if r.Variant == nil || r.Variant.Steps[taskID] == nil {
		return &models.TestDataStep{}
	}

	return r.Variant.Steps[taskID]
}

// mappingFor resolves the mapping of taskID: by key, by the inner task id,
// by task name, and finally from the task's declared endpoint.
func (r *Run) mappingFor(taskID string) *models.TaskEndpointMapping {
	if m := r.Mapping.TaskMappings[taskID]; m != nil {
		return m
	}

	keys := make([]string, 0, len(r.Mapping.TaskMappings))
	for k := range r.Mapping.TaskMappings {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if m := r.Mapping.TaskMappings[k]; m != nil && m.TaskID == taskID {
			return m
		}
	}

	task, ok := r.Process.Task(taskID)
	if !ok {
		return nil
	}

	if task.Name != "" {
		for _, k := range keys {
			if m := r.Mapping.TaskMappings[k]; m != nil && strings.EqualFold(m.TaskName, task.Name) {
				return m
			}
		}
	}

	if info := task.APIEndpointInfo; info != nil && info.Method != "" && info.Path != "" {
		return &models.TaskEndpointMapping{
			TaskID:     task.ID,
			TaskName:   task.Name,
			Method:     strings.ToUpper(info.Method),
			Path:       info.Path,
			Confidence: 0.5,
			Strategy:   models.StrategyBPMNNameInferred,
		}
	}

	return nil
}

// StepRunner executes a single task: it builds the request, calls the API,
// validates the response and stores extracted values for later steps.
type StepRunner struct {
	client Client
	logger *slog.Logger
	now    func() time.Time
}

// NewStepRunner returns a runner sending requests through client.
func NewStepRunner(client Client, logger *slog.Logger) *StepRunner {
	if logger == nil {
		logger = slog.Default()
	}

	return &StepRunner{client: client, logger: logger.With("module", "step_runner"), now: time.Now}
}

// Execute runs the task at position index. Problems that are not plain HTTP
// failures (missing mapping, deadline) are returned alongside the step.
func (s *StepRunner) Execute(ctx context.Context, run *Run, index int, taskID string) (*models.ExecutionStep,
	[]models.ExecutionProblem,
) {
	start := s.now()
	step := &models.ExecutionStep{
		StepID:    fmt.Sprintf("step-%d", index+1),
		TaskID:    taskID,
		TaskName:  taskID,
		Status:    models.StepStatusFailed,
		StartTime: start,
	}

	if task, ok := run.Process.Task(taskID); ok && task.Name != "" {
		step.TaskName = task.Name
	}

	mapping := run.mappingFor(taskID)
	if mapping == nil {
		step.Status = models.StepStatusSkipped
		step.EndTime = start
		step.ErrorMessage = "Task has no corresponding API endpoint mapping"

		s.logger.WarnContext(ctx, "No mapping found for task", "task_id", taskID)

		return step, []models.ExecutionProblem{newProblem(models.ProblemBusinessLogicError, step,
			"No endpoint mapping", step.ErrorMessage, s.now())}
	}

	if mapping.TaskName != "" && step.TaskName == taskID {
		step.TaskName = mapping.TaskName
	}

	op := run.Spec.FindOperation(mapping.Method, mapping.Path)

	req, err := s.buildRequest(run, taskID, mapping, op)
	if err != nil {
		s.finish(step, start)
		step.ErrorMessage = "Error building request: " + err.Error()

		return step, nil
	}

	step.Request = &models.StepRequest{
		Method:    req.Method,
		URL:       req.URL,
		Headers:   req.Headers,
		Body:      string(req.Body),
		Timestamp: start,
	}

	if err := s.wait(ctx, run); err != nil {
		s.finish(step, start)
		step.ErrorMessage = "Execution deadline reached before the request was sent"

		p := newProblem(models.ProblemTimeout, step, step.ErrorMessage, err.Error(), s.now())
		p.RequestURL, p.RequestMethod = req.URL, req.Method

		return step, []models.ExecutionProblem{p}
	}

	resp, err := s.client.Do(ctx, req)

	s.finish(step, start)

	if err != nil {
		step.ErrorMessage = err.Error()

		s.logger.WarnContext(ctx, "Request failed", "task_id", taskID, "url", req.URL, "error", err)

		return step, nil
	}

	step.Response = &models.StepResponse{
		StatusCode:     resp.StatusCode,
		Headers:        resp.Headers,
		Body:           string(resp.Body),
		ResponseTimeMs: resp.Duration.Milliseconds(),
		Timestamp:      step.EndTime,
	}
	step.Validation = Validate(run.Config, resp)

	switch {
	case !isSuccessStatus(resp.StatusCode):
		step.ErrorMessage = fmt.Sprintf("HTTP error: status code %d", resp.StatusCode)
	case !step.Validation.Valid:
		step.ErrorMessage = "Validation failed: " + strings.Join(step.Validation.Errors, "; ")
	default:
		step.Status = models.StepStatusSuccess
	}

	if step.Status == models.StepStatusSuccess {
		s.extract(run, taskID, step, resp.Body)
		s.captureToken(ctx, run, taskID, resp.Body)
	}

	return step, nil
}

func (s *StepRunner) wait(ctx context.Context, run *Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if run.limiter != nil {
		return run.limiter.Wait(ctx)
	}

	return nil
}

func (s *StepRunner) finish(step *models.ExecutionStep, start time.Time) {
	step.EndTime = s.now()
	step.DurationMs = step.EndTime.Sub(start).Milliseconds()
}

func (s *StepRunner) buildRequest(run *Run, taskID string, mapping *models.TaskEndpointMapping,
	op *models.Operation,
) (*Request, error) {
	data := run.testStep(taskID)
	splitter := NewParamSplitter(op, mapping.Path, data.QueryParams)
	split := splitter.Split(mapping.Method, data.RequestData)
	inbound := run.Mapping.InboundEdges(taskID)

	// Values from earlier steps win over generated test data.
	pathValues := map[string]string{}

	for _, edge := range inbound {
		for _, pm := range sortedMappings(edge.ParameterMappings) {
			v, ok := run.Values.Get(edge.SourceTaskID, pm.SourceField)
			if !ok || v == nil {
				continue
			}

			switch pm.ParamIn {
			case models.ParamInPath:
				pathValues[pm.ParamName] = stringify(v)
			case models.ParamInQuery:
				split.Query.Set(pm.ParamName, stringify(v))
			}
		}
	}

	run.Values.Each(func(_, field string, v any) {
		if _, set := pathValues[field]; !set && v != nil && strings.Contains(mapping.Path, "{"+field+"}") {
			pathValues[field] = stringify(v)
		}
	})

	for k, v := range split.PathParams {
		if _, set := pathValues[k]; !set {
			pathValues[k] = v
		}
	}

	url := strings.TrimRight(run.Config.BaseURL, "/") + ExpandPath(mapping.Path, pathValues)
	if len(split.Query) > 0 {
		url += "?" + split.Query.Encode()
	}

	body, err := s.buildBody(run, mapping, op, splitter, split, data)
	if err != nil {
		return nil, err
	}

	return &Request{
		Method:  mapping.Method,
		URL:     url,
		Headers: s.buildHeaders(run, mapping, split, inbound),
		Body:    body,
		Timeout: time.Duration(run.Config.RequestTimeoutMs) * time.Millisecond,
	}, nil
}

func (s *StepRunner) buildHeaders(run *Run, mapping *models.TaskEndpointMapping, split SplitResult,
	inbound []models.DataFlowEdge,
) map[string]string {
	headers := map[string]string{}

	for _, k := range sortedKeys(run.Config.DefaultHeaders) {
		setHeader(headers, k, run.Config.DefaultHeaders[k])
	}

	if auth := run.Config.Auth; auth != nil {
		switch auth.Type {
		case models.AuthBasic:
			if auth.Username != "" || auth.Password != "" {
				creds := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
				setHeader(headers, "Authorization", "Basic "+creds)
			}
		case models.AuthBearer:
			if auth.Value != "" {
				setHeader(headers, "Authorization", "Bearer "+auth.Value)
			}
		case models.AuthAPIKey:
			if auth.HeaderName != "" && auth.Value != "" {
				setHeader(headers, auth.HeaderName, auth.Value)
			}
		case models.AuthNone:
		}
	}

	switch mapping.Method {
	case models.MethodPost, models.MethodPut:
		if headerValue(headers, "Content-Type") == "" {
			setHeader(headers, "Content-Type", "application/json")
		}
	}

	for _, k := range sortedKeys(split.Headers) {
		setHeader(headers, k, split.Headers[k])
	}

	for _, edge := range inbound {
		for _, pm := range sortedMappings(edge.ParameterMappings) {
			if pm.ParamIn != models.ParamInHeader {
				continue
			}

			if v, ok := run.Values.Get(edge.SourceTaskID, pm.SourceField); ok && v != nil {
				setHeader(headers, pm.ParamName, stringify(v))
			}
		}
	}

	if headerValue(headers, consentHeader) == "" {
		if v, ok := consentFromSources(run, inbound); ok {
			setHeader(headers, consentHeader, v)
		}
	}

	return headers
}

// consentFromSources finds a consent id produced by an upstream consent endpoint.
func consentFromSources(run *Run, inbound []models.DataFlowEdge) (string, bool) {
	for _, edge := range inbound {
		src := run.Mapping.TaskMappings[edge.SourceTaskID]
		if src == nil || !strings.Contains(strings.ToLower(src.Path), "consent") {
			continue
		}

		for _, field := range []string{"consentId", "id"} {
			if v, ok := run.Values.Get(edge.SourceTaskID, field); ok && v != nil {
				return stringify(v), true
			}
		}

		if raw, ok := run.Values.Get(edge.SourceTaskID, "data"); ok {
			if m, isMap := raw.(map[string]any); isMap {
				for _, field := range []string{"consentId", "id"} {
					if v := m[field]; v != nil {
						return stringify(v), true
					}
				}
			}
		}
	}

	return "", false
}

func (s *StepRunner) buildBody(run *Run, mapping *models.TaskEndpointMapping, op *models.Operation,
	splitter *ParamSplitter, split SplitResult, data *models.TestDataStep,
) ([]byte, error) {
	if !methodHasBody(mapping.Method) {
		return nil, nil
	}

	if op != nil && op.RequestBody == nil {
		return nil, nil
	}

	body := split.Body
	if body == nil {
		body = map[string]any{}
	}

	for _, k := range sortedKeys(mapping.CustomRequestData) {
		if splitter.Classify(k) == ParamBody {
			body[k] = mapping.CustomRequestData[k]
		}
	}

	for _, field := range sortedKeys(data.DataDependencies) {
		if splitter.IsParameter(field) || (op != nil && !op.DeclaresBodyField(field)) {
			continue
		}

		if v, ok := run.Values.Get(data.DataDependencies[field], field); ok {
			body[field] = v
		}
	}

	if len(body) == 0 {
		if op == nil {
			return nil, nil
		}

		for _, p := range dataWrappedPaths {
			if strings.Contains(mapping.Path, p) {
				return []byte(`{"data":{}}`), nil
			}
		}

		return []byte(`{}`), nil
	}

	out, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}

	return out, nil
}

func (s *StepRunner) extract(run *Run, taskID string, step *models.ExecutionStep, body []byte) {
	seen := map[string]bool{}

	for _, edge := range run.Mapping.OutboundEdges(taskID) {
		for _, field := range edge.Fields {
			if seen[field] {
				continue
			}

			seen[field] = true

			v, ok := ExtractField(body, field)
			if !ok {
				continue
			}

			if step.ExtractedData == nil {
				step.ExtractedData = map[string]any{}
			}

			step.ExtractedData[field] = v
			run.Values.Set(taskID, field, v)
		}
	}
}

func (s *StepRunner) captureToken(ctx context.Context, run *Run, taskID string, body []byte) {
	token, ok := CaptureToken(body)
	if !ok {
		return
	}

	if run.Config.Auth == nil {
		run.Config.Auth = &models.AuthConfig{}
	}

	run.Config.Auth.Type = models.AuthBearer
	run.Config.Auth.Value = token

	s.logger.InfoContext(ctx, "Captured access token for subsequent requests", "task_id", taskID, "token", "***")
}

// Validate checks the status class, content type and latency of resp.
func Validate(cfg *models.ExecutionConfig, resp *Response) *models.ValidationResult {
	result := &models.ValidationResult{Valid: true, Errors: []string{}}

	if !isSuccessStatus(resp.StatusCode) {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Unexpected status code %d (expected %d)", resp.StatusCode, cfg.ExpectedStatus))
	}

	if expected := cfg.ExpectedContentType; expected != "" {
		ct := headerValue(resp.Headers, "Content-Type")
		if !strings.HasPrefix(strings.ToLower(ct), strings.ToLower(expected)) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Unexpected content type %q (expected %s)", ct, expected))
		}
	}

	if cfg.RequestTimeoutMs > 0 && resp.Duration.Milliseconds() > cfg.RequestTimeoutMs {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Response time %dms exceeds %dms", resp.Duration.Milliseconds(), cfg.RequestTimeoutMs))
	}

	result.Valid = len(result.Errors) == 0

	return result
}

func isSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}

// setHeader stores value under name, replacing any key that differs only in case.
func setHeader(headers map[string]string, name, value string) {
	for k := range headers {
		if strings.EqualFold(k, name) {
			delete(headers, k)
		}
	}

	headers[name] = value
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}

	return ""
}

func sortedMappings(m map[string]models.ParameterMapping) []models.ParameterMapping {
	out := make([]models.ParameterMapping, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k])
	}

	return out
}

func newProblem(t models.ProblemType, step *models.ExecutionStep, message, details string,
	now time.Time,
) models.ExecutionProblem {
	return models.ExecutionProblem{
		Type:      t,
		Severity:  models.SeverityHigh,
		StepID:    step.TaskID,
		StepName:  step.TaskName,
		Message:   message,
		Details:   details,
		Timestamp: now,
	}
}
