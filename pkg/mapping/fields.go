package mapping

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dukex/flowprobe/pkg/models"
)

// MinCommonUsage is the number of endpoints a parameter must appear in to be reported as common.
const MinCommonUsage = 2

// NormalizeFieldName is the grouping key shared by common-field analysis and
// the dependency exclusion list: lower case, leading "x-" removed, "-" as "_".
func NormalizeFieldName(name string) string {
	n := strings.ToLower(name)
	n = strings.TrimPrefix(n, "x-")

	return strings.ReplaceAll(n, "-", "_")
}

type fieldUsage struct {
	name        string
	types       map[string]bool
	count       int
	endpoints   []string
	seen        map[string]bool
	required    bool
	description string
	dataType    string
}

func (u *fieldUsage) record(endpoint string, p models.Parameter) {
	u.types[paramType(p)] = true
	u.count++

	if !u.seen[endpoint] {
		u.seen[endpoint] = true
		u.endpoints = append(u.endpoints, endpoint)
	}

	if p.Required {
		u.required = true
	}

	if u.description == "" {
		u.description = p.Description
	}

	if u.dataType == "" {
		u.dataType = p.Type
	}
}

func newFieldUsage(name string) *fieldUsage {
	return &fieldUsage{name: name, types: map[string]bool{}, seen: map[string]bool{}}
}

func paramType(p models.Parameter) string {
	if p.In == "" {
		return "unknown"
	}

	return string(p.In)
}

func joinTypes(types map[string]bool) string {
	out := make([]string, 0, len(types))
	for t := range types {
		out = append(out, t)
	}

	sort.Strings(out)

	return strings.Join(out, ",")
}

func endpointLabel(op *models.Operation) string {
	return op.Method + " " + op.Path
}

// CommonFieldAnalyzer finds parameters reused across endpoints.
type CommonFieldAnalyzer struct {
	minUsage int
}

// NewCommonFieldAnalyzer returns an analyzer reporting fields used at least MinCommonUsage times.
func NewCommonFieldAnalyzer() *CommonFieldAnalyzer {
	return &CommonFieldAnalyzer{minUsage: MinCommonUsage}
}

// Analyze groups parameters by normalised name, skipping those that receive dependency values.
func (a *CommonFieldAnalyzer) Analyze(spec *models.APISpec, deps *Dependencies) []models.CommonField {
	out := []models.CommonField{}
	if spec == nil {
		return out
	}

	excluded := map[string]bool{}
	if deps != nil {
		for _, name := range deps.ParameterNames() {
			excluded[NormalizeFieldName(name)] = true
		}
	}

	var order []string

	usage := map[string]*fieldUsage{}

	for _, op := range spec.Operations {
		for _, p := range op.Parameters {
			if p.Name == "" {
				continue
			}

			key := NormalizeFieldName(p.Name)

			u, ok := usage[key]
			if !ok {
				u = newFieldUsage(p.Name)
				usage[key] = u
				order = append(order, key)
			}

			u.record(endpointLabel(op), p)
		}
	}

	for _, key := range order {
		u := usage[key]
		if excluded[key] || u.count < a.minUsage {
			continue
		}

		out = append(out, models.CommonField{
			FieldName:       u.name,
			FieldType:       joinTypes(u.types),
			UsageCount:      u.count,
			UsedInEndpoints: u.endpoints,
			Required:        u.required,
			Description:     u.description,
			DataType:        u.dataType,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UsageCount > out[j].UsageCount
	})

	return out
}

var secretNamePatterns = func() []*regexp.Regexp {
	exprs := []string{
		`password`, `secret`, `token`, `api[_-]?key`, `api[_-]?token`, `auth[_-]?token`,
		`access[_-]?token`, `refresh[_-]?token`, `bearer`, `credential`, `authorization`,
		`x[_-]?api[_-]?key`, `x[_-]?auth`, `x[_-]?token`, `private[_-]?key`, `session[_-]?id`,
	}

	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}

	return out
}()

var secretHeaders = map[string]bool{
	"authorization":   true,
	"x-api-key":       true,
	"x-auth-token":    true,
	"x-access-token":  true,
	"api-key":         true,
	"auth-token":      true,
	"x-authorization": true,
}

// SecretFieldAnalyzer flags parameters whose names look like credentials.
type SecretFieldAnalyzer struct{}

// NewSecretFieldAnalyzer returns an analyzer.
func NewSecretFieldAnalyzer() *SecretFieldAnalyzer {
	return &SecretFieldAnalyzer{}
}

// Analyze returns secret-shaped parameters keyed by (name, in), sorted by name.
func (a *SecretFieldAnalyzer) Analyze(spec *models.APISpec) []models.SecretField {
	out := []models.SecretField{}
	if spec == nil {
		return out
	}

	var order []string

	found := map[string]*models.SecretField{}
	seen := map[string]map[string]bool{}

	for _, op := range spec.Operations {
		for _, p := range op.Parameters {
			reason := secretReason(p)
			if reason == "" {
				continue
			}

			key := p.Name + ":" + paramType(p)

			f, ok := found[key]
			if !ok {
				f = &models.SecretField{FieldName: p.Name, FieldType: paramType(p), Reason: reason}
				found[key] = f
				seen[key] = map[string]bool{}
				order = append(order, key)
			}

			if label := endpointLabel(op); !seen[key][label] {
				seen[key][label] = true
				f.UsedInEndpoints = append(f.UsedInEndpoints, label)
			}

			f.Required = f.Required || p.Required

			if f.Description == "" {
				f.Description = p.Description
			}

			if f.DataType == "" {
				f.DataType = p.Type
			}
		}
	}

	for _, key := range order {
		out = append(out, *found[key])
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FieldName < out[j].FieldName
	})

	return out
}

func secretReason(p models.Parameter) string {
	if p.Name == "" {
		return ""
	}

	for _, re := range secretNamePatterns {
		if re.MatchString(p.Name) {
			return "field name matches secret pattern: " + strings.TrimPrefix(re.String(), "(?i)")
		}
	}

	if p.In == models.ParamInHeader && secretHeaders[strings.ToLower(p.Name)] {
		return "known secret header name"
	}

	return ""
}
