package mapping

import (
	"testing"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMapper() *Mapper {
	return NewMapper(nil, nil)
}

func consentSpec() *models.APISpec {
	return &models.APISpec{
		Operations: []*models.Operation{
			{
				Method:      "POST",
				Path:        "/account-consents",
				OperationID: "createConsent",
				Summary:     "Create consent",
				RequestBody: &models.RequestBody{ContentType: "application/json"},
			},
			{
				Method:      "GET",
				Path:        "/accounts",
				OperationID: "listAccounts",
				Summary:     "List accounts",
				Description: "use consent from POST /account-consents",
				Parameters: []models.Parameter{
					{Name: "x-consent-id", In: models.ParamInHeader, Required: true, Type: "string"},
				},
			},
		},
	}
}

func TestMapper_ExactOperationID(t *testing.T) {
	spec := &models.APISpec{Operations: []*models.Operation{
		{Method: "GET", Path: "/accounts/{id}/balance", OperationID: "GetBalance"},
	}}
	process := &models.ProcessModel{Tasks: []*models.ProcessTask{{ID: "GetBalance", Name: "Check balance"}}}

	result := newTestMapper().Map(process, spec)

	require.Contains(t, result.TaskMappings, "GetBalance")
	mapping := result.TaskMappings["GetBalance"]
	assert.Equal(t, models.StrategyExact, mapping.Strategy)
	assert.InDelta(t, 1.0, mapping.Confidence, 1e-9)
	assert.Equal(t, "/accounts/{id}/balance", mapping.Path)
	assert.Equal(t, 1, result.MatchedTasks)
	assert.Empty(t, result.UnmatchedTasks)
}

func TestMapper_CustomProperty(t *testing.T) {
	spec := &models.APISpec{Operations: []*models.Operation{
		{Method: "POST", Path: "/payments", Summary: "Create payment"},
	}}
	process := &models.ProcessModel{Tasks: []*models.ProcessTask{{
		ID:               "Task_1",
		Name:             "Transfer funds",
		CustomProperties: map[string]string{"api.endpoint": "POST /payments"},
	}}}

	result := newTestMapper().Map(process, spec)

	require.Contains(t, result.TaskMappings, "Task_1")
	mapping := result.TaskMappings["Task_1"]
	assert.Equal(t, models.StrategyCustomProperty, mapping.Strategy)
	assert.InDelta(t, 0.9, mapping.Confidence, 1e-9)
	assert.Equal(t, "High confidence match", mapping.Recommendation)
}

func TestMapper_VirtualDependencyTask(t *testing.T) {
	process := &models.ProcessModel{Tasks: []*models.ProcessTask{{
		ID:              "Task_Accounts",
		Name:            "Read accounts",
		APIEndpointInfo: &models.APIEndpointInfo{Method: "GET", Path: "/accounts"},
	}}}

	result := newTestMapper().Map(process, consentSpec())

	require.Len(t, result.TaskMappings, 2)
	virtual := result.TaskMappings["VIRTUAL_DEP_1"]
	require.NotNil(t, virtual)
	assert.Equal(t, "POST", virtual.Method)
	assert.Equal(t, "/account-consents", virtual.Path)
	assert.Equal(t, models.StrategyDependencyAuto, virtual.Strategy)
	assert.InDelta(t, 1.0, virtual.Confidence, 1e-9)
	assert.Equal(t, "Create consent", virtual.TaskName)

	require.Len(t, result.DataFlowEdges, 1)
	edge := result.DataFlowEdges[0]
	assert.Equal(t, "VIRTUAL_DEP_1", edge.SourceTaskID)
	assert.Equal(t, "Task_Accounts", edge.TargetTaskID)
	assert.Equal(t, []string{"consent_id"}, edge.Fields)
	require.Contains(t, edge.ParameterMappings, "x-consent-id")
	assert.Equal(t, "consent_id", edge.ParameterMappings["x-consent-id"].SourceField)
	assert.Equal(t, models.ParamInHeader, edge.ParameterMappings["x-consent-id"].ParamIn)

	assert.Equal(t, 1, result.TotalTasks)
	assert.Equal(t, 1, result.MatchedTasks)
	assert.Equal(t, 2, result.MatchedEndpoints)
	assert.Equal(t, []string{"GET:/accounts", "POST:/account-consents"}, result.MatchedEndpointIDs)
	assert.InDelta(t, 0.6+0.4*(0.95+1.0)/2, result.OverallConfidence, 1e-9)
}

func TestMapper_VirtualTasksAreTransitive(t *testing.T) {
	spec := &models.APISpec{Operations: []*models.Operation{
		{Method: "POST", Path: "/token", Summary: "Issue token"},
		{Method: "POST", Path: "/consents", Description: "Call via POST /token first"},
		{Method: "GET", Path: "/balances", Description: "Requires consent, get from POST /consents"},
	}}
	process := &models.ProcessModel{Tasks: []*models.ProcessTask{{
		ID:              "Task_1",
		Name:            "Balances",
		APIEndpointInfo: &models.APIEndpointInfo{Method: "GET", Path: "/balances"},
	}}}

	result := newTestMapper().Map(process, spec)

	require.Len(t, result.TaskMappings, 3)
	assert.Equal(t, "/consents", result.TaskMappings["VIRTUAL_DEP_1"].Path)
	assert.Equal(t, "/token", result.TaskMappings["VIRTUAL_DEP_2"].Path)

	for _, id := range result.VirtualTaskIDs() {
		assert.NotEmpty(t, result.OutboundEdges(id), "virtual task %s has no outbound edge", id)
	}
}

func TestMapper_UnknownDependencySourceIgnored(t *testing.T) {
	spec := &models.APISpec{Operations: []*models.Operation{
		{Method: "GET", Path: "/accounts", Description: "use consent from POST /missing"},
	}}
	process := &models.ProcessModel{Tasks: []*models.ProcessTask{{
		ID:              "Task_1",
		APIEndpointInfo: &models.APIEndpointInfo{Method: "GET", Path: "/accounts"},
	}}}

	result := newTestMapper().Map(process, spec)

	assert.Len(t, result.TaskMappings, 1)
	assert.Empty(t, result.DataFlowEdges)
}

func TestMapper_EmptyProcess(t *testing.T) {
	result := newTestMapper().Map(&models.ProcessModel{}, consentSpec())

	assert.Equal(t, 0, result.TotalTasks)
	assert.Equal(t, 0, result.MatchedTasks)
	assert.Zero(t, result.OverallConfidence)
	assert.Empty(t, result.TaskMappings)
	assert.Equal(t, 2, result.TotalEndpoints)
}

func TestMapper_NoPaths(t *testing.T) {
	process := &models.ProcessModel{Tasks: []*models.ProcessTask{
		{ID: "Task_1", Name: "Create payment"},
		{ID: "Task_2", Name: "Read accounts"},
	}}

	result := newTestMapper().Map(process, &models.APISpec{})

	assert.Empty(t, result.TaskMappings)
	require.Len(t, result.UnmatchedTasks, 2)
	assert.Equal(t, "TASK", result.UnmatchedTasks[0].ElementType)
	assert.Equal(t, []string{"No similar endpoints found automatically"}, result.UnmatchedTasks[0].Recommendations)
	assert.Zero(t, result.UnmatchedTasks[0].MaxConfidence)
	assert.Empty(t, result.VirtualTaskIDs())
	assert.Zero(t, result.OverallConfidence)
}

func TestMapper_UnmatchedRecommendations(t *testing.T) {
	spec := &models.APISpec{Operations: []*models.Operation{{Method: "GET", Path: "/alpha"}}}
	process := &models.ProcessModel{Tasks: []*models.ProcessTask{{
		ID:   "Task_1",
		Name: "alpha bravo charlie delta echo foxtrot golf hotel india",
	}}}

	result := newTestMapper().Map(process, spec)

	require.Len(t, result.UnmatchedTasks, 1)
	unmatched := result.UnmatchedTasks[0]
	assert.Equal(t, []string{"Possible endpoint: GET /alpha (similarity: 0.33)"}, unmatched.Recommendations)
	assert.InDelta(t, 1.0/3.0, unmatched.MaxConfidence, 1e-9)
}

func TestMapper_SemanticOutscoresDescription(t *testing.T) {
	spec := &models.APISpec{Operations: []*models.Operation{
		{Method: "GET", Path: "/balance", Summary: "balance"},
	}}
	process := &models.ProcessModel{Tasks: []*models.ProcessTask{{ID: "Task_1", Name: "Balance"}}}

	result := newTestMapper().Map(process, spec)

	require.Contains(t, result.TaskMappings, "Task_1")
	assert.Equal(t, models.StrategySemantic, result.TaskMappings["Task_1"].Strategy)
	assert.InDelta(t, 1.0, result.TaskMappings["Task_1"].Confidence, 1e-9)
}

func TestMapper_SequenceFlowEdges(t *testing.T) {
	spec := &models.APISpec{Operations: []*models.Operation{
		{Method: "POST", Path: "/orders", ResponseFields: []string{"orderId", "status"}},
		{
			Method: "GET", Path: "/orders/{orderId}",
			Parameters: []models.Parameter{{Name: "orderId", In: models.ParamInPath, Required: true}},
		},
	}}
	process := &models.ProcessModel{
		Tasks: []*models.ProcessTask{
			{ID: "A", APIEndpointInfo: &models.APIEndpointInfo{Method: "POST", Path: "/orders"}},
			{ID: "B", APIEndpointInfo: &models.APIEndpointInfo{Method: "GET", Path: "/orders/{orderId}"}},
		},
		SequenceFlows: []models.SequenceFlow{{SourceID: "A", TargetID: "B"}},
	}

	result := newTestMapper().Map(process, spec)

	require.Len(t, result.DataFlowEdges, 1)
	edge := result.DataFlowEdges[0]
	assert.Equal(t, "A", edge.SourceTaskID)
	assert.Equal(t, "B", edge.TargetTaskID)
	assert.Equal(t, []string{"orderId"}, edge.Fields)
	assert.InDelta(t, 0.8, edge.Confidence, 1e-9)
	assert.Equal(t, models.ParamInPath, edge.ParameterMappings["orderId"].ParamIn)
}

func TestMapper_Invariants(t *testing.T) {
	spec := consentSpec()
	spec.Operations = append(spec.Operations, &models.Operation{
		Method: "GET", Path: "/accounts/{accountId}", Summary: "Read account",
		Parameters: []models.Parameter{
			{Name: "accountId", In: models.ParamInPath, Required: true},
			{Name: "x-consent-id", In: models.ParamInHeader, Description: "via POST /account-consents"},
		},
	})
	process := &models.ProcessModel{
		Tasks: []*models.ProcessTask{
			{ID: "T1", APIEndpointInfo: &models.APIEndpointInfo{Method: "GET", Path: "/accounts"}},
			{ID: "T2", Name: "Read account"},
			{ID: "T3", Name: "Launch rocket"},
		},
		SequenceFlows: []models.SequenceFlow{{SourceID: "T1", TargetID: "T2"}, {SourceID: "T2", TargetID: "T3"}},
	}

	mapper := newTestMapper()
	result := mapper.Map(process, spec)

	assert.Equal(t, 3, result.TotalTasks)

	realTasks := 0

	for id, m := range result.TaskMappings {
		assert.GreaterOrEqual(t, m.Confidence, 0.0)
		assert.LessOrEqual(t, m.Confidence, 1.0)
		assert.True(t, m.Strategy.Valid())

		if !models.IsVirtualTaskID(id) {
			realTasks++
		}
	}

	assert.Equal(t, realTasks, result.MatchedTasks)

	for _, e := range result.DataFlowEdges {
		assert.Contains(t, result.TaskMappings, e.SourceTaskID)
		assert.Contains(t, result.TaskMappings, e.TargetTaskID)
	}

	for _, f := range result.CommonFields {
		assert.NotEqual(t, "consent_id", NormalizeFieldName(f.FieldName))
	}

	assert.Equal(t, result, mapper.Map(process, spec))
}
