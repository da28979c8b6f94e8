package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractField(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		want  any
		found bool
	}{
		{"root field", `{"id":"a1"}`, "id", "a1", true},
		{"under data", `{"data":{"consentId":"c1"}}`, "consentId", "c1", true},
		{"snake to camel", `{"data":{"consentId":"c1"}}`, "consent_id", "c1", true},
		{"camel to snake", `{"consent_id":"c2"}`, "consentId", "c2", true},
		{"root wins over data", `{"id":"root","data":{"id":"inner"}}`, "id", "root", true},
		{"number", `{"total":12}`, "total", float64(12), true},
		{"null is missing", `{"id":null}`, "id", nil, false},
		{"missing", `{"other":1}`, "id", nil, false},
		{"invalid json", `not json`, "id", nil, false},
		{"dotted key", `{"a.b":"x"}`, "a.b", "x", true},
		{"string wrapped json", `"{\"id\":\"w\"}"`, "id", "w", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractField([]byte(tt.body), tt.field)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractField_DataIsWholeDocument(t *testing.T) {
	got, ok := ExtractField([]byte(`{"data":{"id":"1"},"meta":{}}`), "data")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"data": map[string]any{"id": "1"}, "meta": map[string]any{}}, got)
	assert.Equal(t, "$", JSONPath("data"))
	assert.Equal(t, "$.id", JSONPath("id"))
}

func TestCaptureToken(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		ok   bool
	}{
		{"root", `{"access_token":"abc"}`, "abc", true},
		{"data", `{"data":{"access_token":"abc"}}`, "abc", true},
		{"token", `{"token":" xyz "}`, "xyz", true},
		{"precedence", `{"token":"t","access_token":"a"}`, "a", true},
		{"string wrapped", `"{\"access_token\":\"w\"}"`, "w", true},
		{"empty", `{"access_token":""}`, "", false},
		{"none", `{"id":1}`, "", false},
		{"not json", `<html/>`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CaptureToken([]byte(tt.body))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
