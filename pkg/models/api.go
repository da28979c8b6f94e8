package models

import "strings"

// APISpec is the parsed form of an OpenAPI 3 document.
type APISpec struct {
	Title      string       `json:"title,omitempty"`
	Version    string       `json:"version,omitempty"`
	Operations []*Operation `json:"operations"`
}

// Operation is one (method, path) pair of the API with its metadata.
type Operation struct {
	Method      string       `json:"method"`
	Path        string       `json:"path"`
	OperationID string       `json:"operationId,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Description string       `json:"description,omitempty"`
	Parameters  []Parameter  `json:"parameters,omitempty"`
	RequestBody *RequestBody `json:"requestBody,omitempty"`
	// ResponseFields lists top-level and data.* property names of the first 2xx JSON response.
	ResponseFields []string `json:"responseFields,omitempty"`
}

// Parameter is an OpenAPI parameter. (Name, In) is unique per operation.
type Parameter struct {
	Name              string  `json:"name"`
	In                ParamIn `json:"in"`
	Required          bool    `json:"required"`
	Type              string  `json:"type,omitempty"`
	Format            string  `json:"format,omitempty"`
	Description       string  `json:"description,omitempty"`
	SchemaDescription string  `json:"schemaDescription,omitempty"`
	Enum              []any   `json:"enum,omitempty"`
	Example           any     `json:"example,omitempty"`
}

// RequestBody describes the JSON body accepted by an operation.
type RequestBody struct {
	Required    bool    `json:"required"`
	ContentType string  `json:"contentType,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// Schema is a reduced JSON schema used for test data generation.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Format      string             `json:"format,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
	Example     any                `json:"example,omitempty"`
}

// Key returns the "METHOD:path" identity of the operation.
func (o *Operation) Key() string {
	return EndpointKey(o.Method, o.Path)
}

// FindParameter returns the parameter declared with the given name and location.
func (o *Operation) FindParameter(name string, in ParamIn) (Parameter, bool) {
	if o == nil {
		return Parameter{}, false
	}

	for _, p := range o.Parameters {
		if p.In == in && p.Name == name {
			return p, true
		}
	}

	return Parameter{}, false
}

// DeclaresBodyField reports whether the request body schema has a top-level property named name.
func (o *Operation) DeclaresBodyField(name string) bool {
	if o == nil || o.RequestBody == nil || o.RequestBody.Schema == nil {
		return false
	}

	_, ok := o.RequestBody.Schema.Properties[name]

	return ok
}

// HasResponseField reports whether name is part of the response field inventory.
func (o *Operation) HasResponseField(name string) bool {
	for _, f := range o.ResponseFields {
		if strings.EqualFold(f, name) {
			return true
		}
	}

	return false
}

// EndpointKey builds the "METHOD:path" key used across the mapper.
func EndpointKey(method, path string) string {
	return strings.ToUpper(method) + ":" + path
}

// FindOperation returns the operation for method and path, trying an exact
// path match first and then a template match where {param} spans one segment.
func (s *APISpec) FindOperation(method, path string) *Operation {
	if s == nil {
		return nil
	}

	method = strings.ToUpper(method)

	for _, op := range s.Operations {
		if op.Method == method && op.Path == path {
			return op
		}
	}

	for _, op := range s.Operations {
		if op.Method == method && templateMatches(op.Path, path) {
			return op
		}
	}

	return nil
}

func templateMatches(template, path string) bool {
	tSegs := strings.Split(strings.Trim(template, "/"), "/")
	pSegs := strings.Split(strings.Trim(path, "/"), "/")

	if len(tSegs) != len(pSegs) {
		return false
	}

	for i, seg := range tSegs {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if pSegs[i] == "" {
				return false
			}

			continue
		}

		if seg != pSegs[i] {
			return false
		}
	}

	return true
}
