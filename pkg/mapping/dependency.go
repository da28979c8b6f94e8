package mapping

import (
	"regexp"
	"strings"

	"github.com/dukex/flowprobe/pkg/models"
)

var (
	endpointPattern = regexp.MustCompile(`(?i)\b(GET|POST|PUT|DELETE|PATCH)\s+(/[-\w{}./]+)`)

	depHintPattern = regexp.MustCompile(`(?i)(получите|получить|подставить|возьмите|используйте|из ответа|` +
		`response of|через|\bvia\b|\bthrough\b|get from|\buse\b|\busing\b|taken from)`)

	fieldHintPattern = regexp.MustCompile(
		`(?i)(поле|field|значение|token|\bid\b|identifier|consent[_-]?id|data)[:\n\r\s]*([A-Za-z0-9_.-]+)`)

	endpointInTextPattern = regexp.MustCompile(`(?i)(?:через|\bvia\b|\bthrough\b|get from|получите через|` +
		`получить через|from response of|use response of)\s+(GET|POST|PUT|DELETE|PATCH)\s+(/[-\w{}./]+)`)

	leadingX = regexp.MustCompile(`^[xX]-`)
)

// Dependency says an endpoint needs a value from another endpoint's response.
type Dependency struct {
	Method        string         `json:"depMethod"`
	Path          string         `json:"depPath"`
	ParameterName string         `json:"parameterName,omitempty"`
	ParameterIn   models.ParamIn `json:"parameterIn,omitempty"`
	FieldHint     string         `json:"fieldHint,omitempty"`
	Confidence    float64        `json:"confidence"`
}

// Key returns the "METHOD:path" key of the endpoint the value comes from.
func (d Dependency) Key() string {
	return models.EndpointKey(d.Method, d.Path)
}

// Dependencies maps a target endpoint key to the endpoints it depends on.
type Dependencies struct {
	keys []string
	deps map[string][]Dependency
}

// Keys returns the target endpoint keys in discovery order.
func (d *Dependencies) Keys() []string {
	return d.keys
}

// For returns the dependencies of the target endpoint key.
func (d *Dependencies) For(key string) []Dependency {
	return d.deps[key]
}

// Len returns the number of target endpoints with dependencies.
func (d *Dependencies) Len() int {
	return len(d.keys)
}

// ParameterNames returns the names of all parameters that receive a dependency value.
func (d *Dependencies) ParameterNames() []string {
	var names []string

	for _, key := range d.keys {
		for _, dep := range d.deps[key] {
			if dep.ParameterName != "" {
				names = append(names, dep.ParameterName)
			}
		}
	}

	return names
}

func (d *Dependencies) add(key string, deps []Dependency) {
	if len(deps) == 0 {
		return
	}

	if _, ok := d.deps[key]; !ok {
		d.keys = append(d.keys, key)
	}

	d.deps[key] = append(d.deps[key], deps...)
}

// DependencyAnalyzer reads operation and parameter descriptions looking for
// phrases like "use the consent id from POST /account-consents".
type DependencyAnalyzer struct{}

// NewDependencyAnalyzer returns an analyzer.
func NewDependencyAnalyzer() *DependencyAnalyzer {
	return &DependencyAnalyzer{}
}

// Analyze returns the dependencies of every operation in spec order.
func (a *DependencyAnalyzer) Analyze(spec *models.APISpec) *Dependencies {
	out := &Dependencies{deps: map[string][]Dependency{}}

	if spec == nil {
		return out
	}

	for _, op := range spec.Operations {
		out.add(op.Key(), a.analyzeOperation(op))
	}

	return out
}

func (a *DependencyAnalyzer) analyzeOperation(op *models.Operation) []Dependency {
	var paramDeps []Dependency

	for _, p := range op.Parameters {
		paramDeps = append(paramDeps, extractDependencies(p.Description, p.Name, p.In)...)
		paramDeps = append(paramDeps, extractDependencies(p.SchemaDescription, p.Name, p.In)...)
	}

	var opDeps []Dependency

	opDeps = append(opDeps, extractDependencies(op.Description, "", "")...)
	opDeps = append(opDeps, extractDependencies(op.Summary, "", "")...)

	// An operation-level mention is attributed to a parameter that carries
	// the referenced resource, unless a parameter already names that endpoint.
	for i, dep := range opDeps {
		if hasParamDependency(paramDeps, dep.Key()) {
			opDeps[i].Method = ""

			continue
		}

		if p, ok := carrierParameter(op, dep.Path); ok {
			opDeps[i].ParameterName = p.Name
			opDeps[i].ParameterIn = p.In
			opDeps[i].FieldHint = parameterFieldHint(p.Name)
		}
	}

	deps := make([]Dependency, 0, len(paramDeps)+len(opDeps))
	seen := map[string]bool{}

	for _, dep := range append(paramDeps, opDeps...) {
		if dep.Method == "" {
			continue
		}

		id := dep.Key() + "|" + dep.ParameterName + "|" + string(dep.ParameterIn)
		if seen[id] {
			continue
		}

		seen[id] = true
		deps = append(deps, dep)
	}

	return deps
}

func hasParamDependency(deps []Dependency, key string) bool {
	for _, d := range deps {
		if d.Key() == key {
			return true
		}
	}

	return false
}

// carrierParameter finds a non-body parameter whose name refers to a resource
// named in depPath, for example x-consent-id for /account-consents.
func carrierParameter(op *models.Operation, depPath string) (models.Parameter, bool) {
	resource := strings.ToLower(depPath)

	for _, p := range op.Parameters {
		name := strings.ToLower(leadingX.ReplaceAllString(p.Name, ""))
		if !isFlowShaped(name) {
			continue
		}

		for _, word := range strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' }) {
			if word == "id" || len(word) < 3 {
				continue
			}

			if strings.Contains(resource, word) {
				return p, true
			}
		}
	}

	return models.Parameter{}, false
}

func isFlowShaped(name string) bool {
	return strings.Contains(name, "id") || strings.Contains(name, "token") || strings.Contains(name, "consent")
}

func extractDependencies(text, paramName string, paramIn models.ParamIn) []Dependency {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	matches := endpointPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	confidence := 0.5

	switch {
	case endpointInTextPattern.MatchString(text):
		confidence = 0.95
	case depHintPattern.MatchString(text):
		confidence = 0.9
	case paramName != "":
		confidence = 0.8
	}

	hint := fieldHint(text, paramName)
	deps := make([]Dependency, 0, len(matches))

	for _, m := range matches {
		deps = append(deps, Dependency{
			Method:        strings.ToUpper(m[1]),
			Path:          strings.TrimRight(m[2], "."),
			ParameterName: paramName,
			ParameterIn:   paramIn,
			FieldHint:     hint,
			Confidence:    confidence,
		})
	}

	return deps
}

// fieldHint names the response field a dependency reads, preferring the parameter name.
func fieldHint(text, paramName string) string {
	if h := parameterFieldHint(paramName); h != "" {
		return h
	}

	for _, m := range fieldHintPattern.FindAllStringSubmatch(text, -1) {
		hint := strings.TrimRight(m[2], ".")
		if hint != "" && !hintNoise[strings.ToLower(hint)] {
			return hint
		}
	}

	return ""
}

var hintNoise = map[string]bool{
	"from": true, "for": true, "of": true, "the": true, "to": true, "in": true, "is": true,
	"via": true, "through": true, "get": true, "post": true, "put": true, "delete": true, "patch": true,
	"из": true, "через": true,
}

// parameterFieldHint derives a snake_case field name from an id, token or
// consent shaped parameter name: x-consent-id becomes consent_id.
func parameterFieldHint(paramName string) string {
	if paramName == "" {
		return ""
	}

	name := leadingX.ReplaceAllString(paramName, "")
	if !isFlowShaped(strings.ToLower(name)) {
		return ""
	}

	return strings.ReplaceAll(name, "-", "_")
}

// sourceFields returns the response fields an edge built from dep reads.
func (d Dependency) sourceFields() []string {
	if d.FieldHint != "" {
		return []string{d.FieldHint}
	}

	if d.ParameterName != "" {
		return []string{strings.ReplaceAll(leadingX.ReplaceAllString(d.ParameterName, ""), "-", "_")}
	}

	return []string{"id", "data"}
}
