// Package openapi loads OpenAPI 3 documents into the flattened models.APISpec form.
package openapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/getkin/kin-openapi/openapi3"
)

// ErrInvalidSpec is returned when the document cannot be read as OpenAPI 3.
var ErrInvalidSpec = errors.New("invalid OpenAPI document")

const maxSchemaDepth = 8

// Parse reads an OpenAPI 3 document (JSON or YAML) and returns its operations.
// Paths are ordered lexicographically and methods as GET, POST, PUT, DELETE.
func Parse(data []byte) (*models.APISpec, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidSpec)
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}

	if doc.OpenAPI == "" {
		return nil, fmt.Errorf("%w: missing openapi version", ErrInvalidSpec)
	}

	return convert(doc), nil
}

func convert(doc *openapi3.T) *models.APISpec {
	spec := &models.APISpec{Operations: []*models.Operation{}}

	if doc.Info != nil {
		spec.Title = doc.Info.Title
		spec.Version = doc.Info.Version
	}

	if doc.Paths == nil {
		return spec
	}

	pathMap := doc.Paths.Map()

	paths := make([]string, 0, len(pathMap))
	for p := range pathMap {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	for _, path := range paths {
		item := pathMap[path]
		if item == nil {
			continue
		}

		methods := []struct {
			name string
			op   *openapi3.Operation
		}{
			{models.MethodGet, item.Get},
			{models.MethodPost, item.Post},
			{models.MethodPut, item.Put},
			{models.MethodDelete, item.Delete},
		}

		for _, m := range methods {
			if m.op == nil {
				continue
			}

			spec.Operations = append(spec.Operations, convertOperation(m.name, path, item, m.op))
		}
	}

	return spec
}

func convertOperation(method, path string, item *openapi3.PathItem, op *openapi3.Operation) *models.Operation {
	out := &models.Operation{
		Method:      method,
		Path:        path,
		OperationID: op.OperationID,
		Summary:     op.Summary,
		Description: op.Description,
	}

	seen := map[string]bool{}

	// operation-level parameters override path-level ones with the same (name, in)
	for _, params := range []openapi3.Parameters{op.Parameters, item.Parameters} {
		for _, ref := range params {
			if ref == nil || ref.Value == nil {
				continue
			}

			key := ref.Value.In + ":" + ref.Value.Name
			if seen[key] {
				continue
			}

			seen[key] = true
			out.Parameters = append(out.Parameters, convertParameter(ref.Value))
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		body := op.RequestBody.Value
		rb := &models.RequestBody{Required: body.Required}

		if ct, media := pickJSONMedia(body.Content); media != nil {
			rb.ContentType = ct
			rb.Schema = convertSchema(media.Schema, 0)
		}

		out.RequestBody = rb
	}

	out.ResponseFields = responseFields(op.Responses)

	return out
}

func convertParameter(p *openapi3.Parameter) models.Parameter {
	param := models.Parameter{
		Name:        p.Name,
		In:          models.ParamIn(p.In),
		Required:    p.Required,
		Description: p.Description,
		Example:     p.Example,
	}

	if p.Schema != nil && p.Schema.Value != nil {
		s := p.Schema.Value
		if types := s.Type.Slice(); len(types) > 0 {
			param.Type = types[0]
		}

		param.Format = s.Format
		param.SchemaDescription = s.Description
		param.Enum = s.Enum

		if param.Example == nil {
			param.Example = s.Example
		}
	}

	return param
}

func convertSchema(ref *openapi3.SchemaRef, depth int) *models.Schema {
	if ref == nil || ref.Value == nil || depth > maxSchemaDepth {
		return nil
	}

	v := ref.Value
	schema := &models.Schema{
		Format:      v.Format,
		Description: v.Description,
		Required:    v.Required,
		Enum:        v.Enum,
		Example:     v.Example,
	}

	if types := v.Type.Slice(); len(types) > 0 {
		schema.Type = types[0]
	}

	if len(v.Properties) > 0 {
		schema.Properties = make(map[string]*models.Schema, len(v.Properties))

		for name, prop := range v.Properties {
			schema.Properties[name] = convertSchema(prop, depth+1)
		}

		if schema.Type == "" {
			schema.Type = "object"
		}
	}

	if v.Items != nil {
		schema.Items = convertSchema(v.Items, depth+1)
	}

	return schema
}

func pickJSONMedia(content openapi3.Content) (string, *openapi3.MediaType) {
	if media := content.Get("application/json"); media != nil {
		return "application/json", media
	}

	types := make([]string, 0, len(content))
	for ct := range content {
		types = append(types, ct)
	}

	sort.Strings(types)

	for _, ct := range types {
		if strings.Contains(ct, "json") {
			return ct, content[ct]
		}
	}

	return "", nil
}

// responseFields lists the property names of the first 2xx JSON response,
// including the children of a top-level "data" object.
func responseFields(responses *openapi3.Responses) []string {
	if responses == nil {
		return nil
	}

	respMap := responses.Map()

	codes := make([]string, 0, len(respMap))
	for code := range respMap {
		if strings.HasPrefix(code, "2") {
			codes = append(codes, code)
		}
	}

	sort.Strings(codes)

	for _, code := range codes {
		ref := respMap[code]
		if ref == nil || ref.Value == nil {
			continue
		}

		_, media := pickJSONMedia(ref.Value.Content)
		if media == nil || media.Schema == nil || media.Schema.Value == nil {
			continue
		}

		var fields []string

		root := media.Schema.Value
		for _, name := range sortedKeys(root.Properties) {
			fields = append(fields, name)
		}

		if data, ok := root.Properties["data"]; ok && data != nil && data.Value != nil {
			for _, name := range sortedKeys(data.Value.Properties) {
				fields = append(fields, name)
			}
		}

		return fields
	}

	return nil
}

func sortedKeys(props openapi3.Schemas) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
