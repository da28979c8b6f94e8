// Package generator produces test data variants for a mapped process from the
// OpenAPI operations its tasks call.
package generator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/dukex/flowprobe/pkg/models"
)

const maxSchemaDepth = 3

// Generator fills request data for every mapped task. It is not safe for
// concurrent use; create one per run.
type Generator struct {
	faker *gofakeit.Faker
}

// New returns a generator. A zero seed picks a random one.
func New(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Generate builds count variants (at least one). Parameters fed by an
// inbound data-flow edge are left for the runner to inject, as are
// Authorization headers. Only body fields the operation declares become
// data dependencies.
func (g *Generator) Generate(mapping *models.MappingResult, spec *models.APISpec, count int) *models.TestData {
	if count < 1 {
		count = 1
	}

	data := &models.TestData{Variants: make([]models.TestDataVariant, 0, count)}

	for i := range count {
		variant := models.TestDataVariant{
			Name:  fmt.Sprintf("variant-%d", i+1),
			Steps: map[string]*models.TestDataStep{},
		}

		if mapping != nil {
			for _, taskID := range sortedTaskIDs(mapping) {
				variant.Steps[taskID] = g.step(mapping, spec, taskID)
			}
		}

		data.Variants = append(data.Variants, variant)
	}

	return data
}

func (g *Generator) step(mapping *models.MappingResult, spec *models.APISpec, taskID string) *models.TestDataStep {
	m := mapping.TaskMappings[taskID]
	step := &models.TestDataStep{
		RequestData:      map[string]any{},
		QueryParams:      map[string]any{},
		DataDependencies: map[string]string{},
	}

	op := spec.FindOperation(m.Method, m.Path)
	injected := map[string]bool{}

	for _, edge := range mapping.InboundEdges(taskID) {
		routed := map[string]bool{}

		for name, pm := range edge.ParameterMappings {
			injected[name] = true

			if pm.ParamIn != "" {
				routed[pm.SourceField] = true
			}
		}

		for _, field := range edge.Fields {
			injected[field] = true

			if routed[field] || (op != nil && !op.DeclaresBodyField(field)) {
				continue
			}

			if _, ok := step.DataDependencies[field]; !ok {
				step.DataDependencies[field] = edge.SourceTaskID
			}
		}
	}

	if op == nil {
		return step
	}

	for _, p := range op.Parameters {
		if injected[p.Name] || strings.EqualFold(p.Name, "Authorization") {
			continue
		}

		if !p.Required && p.In != models.ParamInPath && p.In != models.ParamInQuery {
			continue
		}

		value := g.parameterValue(p)

		switch p.In {
		case models.ParamInQuery:
			step.QueryParams[p.Name] = value
		case models.ParamInPath, models.ParamInHeader:
			step.RequestData[p.Name] = value
		case models.ParamInCookie:
		}
	}

	if op.RequestBody != nil && op.RequestBody.Schema != nil {
		for _, name := range sortedProperties(op.RequestBody.Schema) {
			if injected[name] {
				continue
			}

			step.RequestData[name] = g.Value(name, op.RequestBody.Schema.Properties[name], 0)
		}
	}

	return step
}

func (g *Generator) parameterValue(p models.Parameter) any {
	if p.Example != nil {
		return p.Example
	}

	if len(p.Enum) > 0 {
		return p.Enum[0]
	}

	return g.Value(p.Name, &models.Schema{Type: p.Type, Format: p.Format}, 0)
}

// Value generates a value for a field named name with the given schema.
// Examples and enums win; then the format, the field name and finally the type decide.
func (g *Generator) Value(name string, schema *models.Schema, depth int) any {
	if schema == nil {
		schema = &models.Schema{Type: "string"}
	}

	if schema.Example != nil {
		return schema.Example
	}

	if len(schema.Enum) > 0 {
		return schema.Enum[g.faker.IntN(len(schema.Enum))]
	}

	switch schema.Type {
	case "object":
		return g.object(schema, depth)
	case "array":
		if depth >= maxSchemaDepth {
			return []any{}
		}

		return []any{g.Value(name, schema.Items, depth+1)}
	case "boolean":
		return g.faker.Bool()
	case "integer":
		return g.integer(name)
	case "number":
		return g.number(name)
	}

	if fn, ok := formatFunctions[schema.Format]; ok {
		return fn(g.faker)
	}

	if fn := nameFunction(name); fn != nil {
		return fn(g.faker)
	}

	return g.faker.Word()
}

func (g *Generator) object(schema *models.Schema, depth int) any {
	out := map[string]any{}
	if depth >= maxSchemaDepth {
		return out
	}

	for _, name := range sortedProperties(schema) {
		out[name] = g.Value(name, schema.Properties[name], depth+1)
	}

	return out
}

func (g *Generator) integer(name string) any {
	lower := strings.ToLower(name)

	switch {
	case strings.Contains(lower, "limit"), strings.Contains(lower, "size"):
		return g.faker.Number(1, 50)
	case strings.Contains(lower, "page"), strings.Contains(lower, "offset"):
		return g.faker.Number(0, 5)
	case strings.Contains(lower, "year"):
		return g.faker.Year()
	default:
		return g.faker.Number(1, 1000)
	}
}

func (g *Generator) number(name string) any {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "amount") || strings.Contains(lower, "price") || strings.Contains(lower, "sum") {
		return g.faker.Price(1, 1000)
	}

	return g.faker.Float64Range(1, 100)
}

func sortedTaskIDs(mapping *models.MappingResult) []string {
	ids := make([]string, 0, len(mapping.TaskMappings))
	for id, m := range mapping.TaskMappings {
		if m != nil {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	return ids
}

func sortedProperties(schema *models.Schema) []string {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
