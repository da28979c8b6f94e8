package models

import "strings"

// ExecutionContext is the per-run store of values extracted from responses,
// keyed by "<taskId>.<field>". It is owned by a single run and not synchronised.
type ExecutionContext struct {
	values map[string]any
	order  []string
}

// NewExecutionContext returns an empty context.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{values: map[string]any{}}
}

// ContextKey joins a task id and a field name.
func ContextKey(taskID, field string) string {
	return taskID + "." + field
}

// Set stores value under "<taskID>.<field>".
func (c *ExecutionContext) Set(taskID, field string, value any) {
	key := ContextKey(taskID, field)
	if _, exists := c.values[key]; !exists {
		c.order = append(c.order, key)
	}

	c.values[key] = value
}

// Get returns the value stored under "<taskID>.<field>".
func (c *ExecutionContext) Get(taskID, field string) (any, bool) {
	v, ok := c.values[ContextKey(taskID, field)]

	return v, ok
}

// Each calls fn for every entry in insertion order with the key's trailing field.
func (c *ExecutionContext) Each(fn func(key, field string, value any)) {
	for _, key := range c.order {
		field := key
		if i := strings.LastIndex(key, "."); i >= 0 {
			field = key[i+1:]
		}

		fn(key, field, c.values[key])
	}
}

// Len returns the number of stored values.
func (c *ExecutionContext) Len() int {
	return len(c.values)
}

// Snapshot returns a copy of the stored values.
func (c *ExecutionContext) Snapshot() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}

	return out
}
