// Package mapping aligns BPMN tasks with OpenAPI endpoints and infers the data flow between them.
package mapping

import (
	"strings"

	"github.com/dukex/flowprobe/pkg/models"
)

// EndpointIndex is the ordered list of endpoints of an API with lookup by key.
type EndpointIndex struct {
	endpoints []models.Endpoint
	byKey     map[string]int
}

// NewEndpointIndex flattens the spec, keeping the spec's operation order.
func NewEndpointIndex(spec *models.APISpec) *EndpointIndex {
	idx := &EndpointIndex{byKey: map[string]int{}}

	if spec == nil {
		return idx
	}

	for _, op := range spec.Operations {
		key := op.Key()
		if _, dup := idx.byKey[key]; dup {
			continue
		}

		idx.byKey[key] = len(idx.endpoints)
		idx.endpoints = append(idx.endpoints, models.Endpoint{
			Method:      op.Method,
			Path:        op.Path,
			OperationID: op.OperationID,
			Summary:     op.Summary,
			Description: op.Description,
			FullText:    fullText(op),
			Operation:   op,
		})
	}

	return idx
}

func fullText(op *models.Operation) string {
	parts := make([]string, 0, 4)

	for _, s := range []string{op.Summary, op.Description, op.OperationID, op.Path} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, " ")
}

// All returns the endpoints in index order.
func (i *EndpointIndex) All() []models.Endpoint {
	return i.endpoints
}

// Len returns the number of endpoints.
func (i *EndpointIndex) Len() int {
	return len(i.endpoints)
}

// Lookup returns the endpoint for method and path.
func (i *EndpointIndex) Lookup(method, path string) (models.Endpoint, bool) {
	return i.LookupKey(models.EndpointKey(method, path))
}

// LookupKey returns the endpoint for a "METHOD:path" key.
func (i *EndpointIndex) LookupKey(key string) (models.Endpoint, bool) {
	n, ok := i.byKey[key]
	if !ok {
		return models.Endpoint{}, false
	}

	return i.endpoints[n], true
}

// Texts returns the full text of every endpoint in index order.
func (i *EndpointIndex) Texts() []string {
	out := make([]string, len(i.endpoints))
	for n, e := range i.endpoints {
		out[n] = e.FullText
	}

	return out
}
