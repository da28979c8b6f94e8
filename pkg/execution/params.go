package execution

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/dukex/flowprobe/pkg/models"
)

// ParamClass is where a flat test-data key ends up in the request.
type ParamClass int

const (
	ParamBody ParamClass = iota
	ParamPath
	ParamQuery
	ParamHeader
)

// ParamSplitter classifies flat test-data keys using the OpenAPI operation.
// Without an operation it falls back to the query map, the path template and
// the "x-" prefix.
type ParamSplitter struct {
	op          *models.Operation
	path        string
	queryParams map[string]any
}

// NewParamSplitter returns a splitter for op (may be nil) on path.
func NewParamSplitter(op *models.Operation, path string, queryParams map[string]any) *ParamSplitter {
	return &ParamSplitter{op: op, path: path, queryParams: queryParams}
}

// Classify returns where name belongs.
func (s *ParamSplitter) Classify(name string) ParamClass {
	if s.op != nil {
		switch {
		case s.declared(name, models.ParamInPath):
			return ParamPath
		case s.declared(name, models.ParamInQuery):
			return ParamQuery
		case s.declared(name, models.ParamInHeader):
			return ParamHeader
		case isXHeader(name) && !s.op.DeclaresBodyField(name):
			return ParamHeader
		default:
			return ParamBody
		}
	}

	if _, ok := s.queryParams[name]; ok {
		return ParamQuery
	}

	if strings.Contains(s.path, "{"+name+"}") {
		return ParamPath
	}

	if isXHeader(name) {
		return ParamHeader
	}

	return ParamBody
}

// IsParameter reports whether name is a path, query or header parameter.
func (s *ParamSplitter) IsParameter(name string) bool {
	return s.Classify(name) != ParamBody
}

func (s *ParamSplitter) declared(name string, in models.ParamIn) bool {
	_, ok := s.op.FindParameter(name, in)

	return ok
}

func isXHeader(name string) bool {
	return len(name) > 2 && strings.EqualFold(name[:2], "x-")
}

// SplitResult is a flat map distributed over the parts of a request.
type SplitResult struct {
	PathParams map[string]string
	Query      url.Values
	Headers    map[string]string
	Body       map[string]any
}

// Split distributes data over the request parts. Keys of queryParams always
// go to the query string. Body is nil for GET and DELETE.
func (s *ParamSplitter) Split(method string, data map[string]any) SplitResult {
	out := SplitResult{
		PathParams: map[string]string{},
		Query:      url.Values{},
		Headers:    map[string]string{},
		Body:       map[string]any{},
	}

	for _, key := range sortedKeys(data) {
		value := data[key]
		if value == nil {
			continue
		}

		switch s.Classify(key) {
		case ParamPath:
			out.PathParams[key] = stringify(value)
		case ParamQuery:
			out.Query.Set(key, stringify(value))
		case ParamHeader:
			out.Headers[key] = stringify(value)
		default:
			out.Body[key] = value
		}
	}

	for _, key := range sortedKeys(s.queryParams) {
		if v := s.queryParams[key]; v != nil {
			out.Query.Set(key, stringify(v))
		}
	}

	if !methodHasBody(method) {
		out.Body = nil
	}

	return out
}

// ExpandPath fills {name} placeholders of template from values, escaping each segment.
func ExpandPath(template string, values map[string]string) string {
	out := template
	for _, key := range sortedKeys(values) {
		out = strings.ReplaceAll(out, "{"+key+"}", url.PathEscape(values[key]))
	}

	return out
}

func methodHasBody(method string) bool {
	switch strings.ToUpper(method) {
	case models.MethodGet, models.MethodDelete, "HEAD", "OPTIONS":
		return false
	}

	return true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
