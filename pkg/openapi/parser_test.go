package openapi

import (
	"testing"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountsSpec = `{
  "openapi": "3.0.3",
  "info": {"title": "Accounts", "version": "1.0"},
  "paths": {
    "/accounts/{id}": {
      "parameters": [
        {"name": "id", "in": "path", "required": true, "schema": {"type": "string"}}
      ],
      "get": {
        "operationId": "GetAccount",
        "summary": "Get account",
        "parameters": [
          {"name": "x-consent-id", "in": "header", "required": true,
           "description": "consent from POST /account-consents",
           "schema": {"type": "string", "description": "consent identifier"}},
          {"name": "limit", "in": "query", "schema": {"type": "integer", "format": "int32"}}
        ],
        "responses": {
          "200": {
            "description": "ok",
            "content": {"application/json": {"schema": {
              "type": "object",
              "properties": {
                "data": {"type": "object", "properties": {"accountId": {"type": "string"}}},
                "links": {"type": "object"}
              }
            }}}
          }
        }
      }
    },
    "/account-consents": {
      "post": {
        "operationId": "CreateConsent",
        "requestBody": {
          "required": true,
          "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Consent"}}}
        },
        "responses": {
          "201": {
            "description": "created",
            "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Consent"}}}
          }
        }
      },
      "patch": {"responses": {"204": {"description": "no content"}}}
    }
  },
  "components": {
    "schemas": {
      "Consent": {
        "type": "object",
        "required": ["permissions"],
        "properties": {
          "consentId": {"type": "string"},
          "permissions": {"type": "array", "items": {"type": "string", "enum": ["ReadAccounts"]}}
        }
      }
    }
  }
}`

func TestParse_FlattensOperations(t *testing.T) {
	t.Parallel()

	spec, err := Parse([]byte(accountsSpec))
	require.NoError(t, err)

	assert.Equal(t, "Accounts", spec.Title)
	require.Len(t, spec.Operations, 2, "PATCH is not indexed")

	assert.Equal(t, "POST", spec.Operations[0].Method)
	assert.Equal(t, "/account-consents", spec.Operations[0].Path)
	assert.Equal(t, "GET", spec.Operations[1].Method)
	assert.Equal(t, "/accounts/{id}", spec.Operations[1].Path)
}

func TestParse_Parameters(t *testing.T) {
	t.Parallel()

	spec, err := Parse([]byte(accountsSpec))
	require.NoError(t, err)

	op := spec.FindOperation("GET", "/accounts/{id}")
	require.NotNil(t, op)
	require.Len(t, op.Parameters, 3)

	header, ok := op.FindParameter("x-consent-id", models.ParamInHeader)
	require.True(t, ok)
	assert.True(t, header.Required)
	assert.Equal(t, "consent identifier", header.SchemaDescription)

	limit, ok := op.FindParameter("limit", models.ParamInQuery)
	require.True(t, ok)
	assert.Equal(t, "integer", limit.Type)
	assert.Equal(t, "int32", limit.Format)

	_, ok = op.FindParameter("id", models.ParamInPath)
	assert.True(t, ok, "path-level parameters are inherited")
}

func TestParse_RequestBodyAndResponseFields(t *testing.T) {
	t.Parallel()

	spec, err := Parse([]byte(accountsSpec))
	require.NoError(t, err)

	post := spec.FindOperation("POST", "/account-consents")
	require.NotNil(t, post)
	require.NotNil(t, post.RequestBody)
	assert.True(t, post.RequestBody.Required)
	require.NotNil(t, post.RequestBody.Schema)
	assert.Equal(t, "object", post.RequestBody.Schema.Type)
	assert.Contains(t, post.RequestBody.Schema.Properties, "permissions")
	assert.Equal(t, []string{"consentId", "permissions"}, post.ResponseFields)

	get := spec.FindOperation("GET", "/accounts/abc")
	require.NotNil(t, get)
	assert.Equal(t, []string{"data", "links", "accountId"}, get.ResponseFields)
	assert.True(t, get.HasResponseField("accountid"))
}

func TestParse_YAML(t *testing.T) {
	t.Parallel()

	doc := `openapi: 3.0.0
info:
  title: Pets
  version: "1"
paths:
  /pets:
    get:
      operationId: listPets
      responses:
        "200":
          description: ok
`
	spec, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, spec.Operations, 1)
	assert.Equal(t, "listPets", spec.Operations[0].OperationID)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "  "},
		{"garbage", "{not json"},
		{"no version", `{"info": {"title": "x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSpec)
		})
	}
}

func TestParse_NoPaths(t *testing.T) {
	t.Parallel()

	spec, err := Parse([]byte(`{"openapi": "3.0.0", "info": {"title": "x", "version": "1"}, "paths": {}}`))
	require.NoError(t, err)
	assert.Empty(t, spec.Operations)
}
