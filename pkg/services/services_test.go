package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukex/flowprobe/pkg/mapping"
	"github.com/dukex/flowprobe/pkg/mocks"
	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/dukex/flowprobe/pkg/persistence/memory"
	"github.com/dukex/flowprobe/pkg/similarity"
	"github.com/dukex/flowprobe/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type verifierFunc func(ctx context.Context, openAPIJSON, bpmnXML, model string) *models.AIVerificationReport

func (f verifierFunc) Verify(ctx context.Context, openAPIJSON, bpmnXML, model string) *models.AIVerificationReport {
	return f(ctx, openAPIJSON, bpmnXML, model)
}

func newMappingService(verifier Verifier) *Mapping {
	return NewMapping(mapping.NewMapper(similarity.NewTokenCosine(), nil), verifier, nil)
}

func TestMapping_Map(t *testing.T) {
	t.Parallel()

	service := newMappingService(nil)

	result, err := service.Map(t.Context(), MapRequest{
		BPMNXML:     testutil.AccountsBPMN,
		OpenAPIJSON: testutil.AccountsOpenAPI,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalTasks)
	assert.Equal(t, 2, result.MatchedTasks)
	require.Contains(t, result.TaskMappings, "GetBalance")
	assert.Equal(t, models.StrategyExact, result.TaskMappings["GetBalance"].Strategy)
	assert.InDelta(t, 1.0, result.TaskMappings["GetBalance"].Confidence, 1e-9)
	assert.Nil(t, result.AIVerificationReport)
}

func TestMapping_Map_EmptyBPMN(t *testing.T) {
	t.Parallel()

	result, err := newMappingService(nil).Map(t.Context(), MapRequest{OpenAPIJSON: testutil.AccountsOpenAPI})
	require.NoError(t, err)

	assert.Equal(t, 0, result.MatchedTasks)
	assert.Zero(t, result.OverallConfidence)
}

func TestMapping_Map_Errors(t *testing.T) {
	t.Parallel()

	service := newMappingService(nil)

	tests := []struct {
		name       string
		req        MapRequest
		validation bool
	}{
		{name: "missing openapi", req: MapRequest{BPMNXML: testutil.AccountsBPMN}, validation: true},
		{name: "malformed openapi", req: MapRequest{OpenAPIJSON: "{not json"}},
		{name: "malformed bpmn", req: MapRequest{BPMNXML: "<nope", OpenAPIJSON: testutil.AccountsOpenAPI}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := service.Map(t.Context(), tt.req)
			require.Error(t, err)

			assert.Equal(t, tt.validation, IsValidationError(err))
			assert.Equal(t, !tt.validation, IsParseError(err))
		})
	}
}

func TestMapping_Map_Verify(t *testing.T) {
	t.Parallel()

	var gotModel string

	service := newMappingService(verifierFunc(func(_ context.Context, openAPIJSON, bpmnXML, model string) *models.AIVerificationReport {
		gotModel = model

		return &models.AIVerificationReport{OverallStatus: models.VerificationOK}
	}))

	result, err := service.Map(t.Context(), MapRequest{
		BPMNXML:     testutil.AccountsBPMN,
		OpenAPIJSON: testutil.AccountsOpenAPI,
		Verify:      true,
		Model:       "m",
	})
	require.NoError(t, err)

	require.NotNil(t, result.AIVerificationReport)
	assert.Equal(t, models.VerificationOK, result.AIVerificationReport.OverallStatus)
	assert.Equal(t, "m", gotModel)
}

func TestMapping_Map_VerifyWithoutVerifier(t *testing.T) {
	t.Parallel()

	result, err := newMappingService(nil).Map(t.Context(), MapRequest{
		OpenAPIJSON: testutil.AccountsOpenAPI,
		Verify:      true,
	})
	require.NoError(t, err)
	assert.Nil(t, result.AIVerificationReport)
}

func newProjectService() (*Project, persistence.Persistence) {
	p := memory.NewPersistence()
	service := NewProject(p.ProjectRepository(), newMappingService(nil), nil)

	return service, p
}

func TestProject_Create(t *testing.T) {
	t.Parallel()

	service, p := newProjectService()
	service.now = func() time.Time { return testutil.BaseTime }

	project, err := service.Create(t.Context(), CreateProjectRequest{
		Name:        "Accounts",
		BPMNXML:     testutil.AccountsBPMN,
		OpenAPIJSON: testutil.AccountsOpenAPI,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, project.ID)
	assert.Equal(t, testutil.BaseTime, project.CreatedAt)
	require.NotNil(t, project.MappingResult)
	assert.Equal(t, 2, project.MappingResult.MatchedTasks)

	stored, err := p.ProjectRepository().ProjectByID(t.Context(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Accounts", stored.Name)
}

func TestProject_Create_Invalid(t *testing.T) {
	t.Parallel()

	service, _ := newProjectService()

	_, err := service.Create(t.Context(), CreateProjectRequest{BPMNXML: testutil.AccountsBPMN})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = service.Create(t.Context(), CreateProjectRequest{
		Name:        "Broken",
		BPMNXML:     "<broken",
		OpenAPIJSON: testutil.AccountsOpenAPI,
	})
	require.Error(t, err)
	assert.True(t, IsParseError(err))

	projects, err := service.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestProject_Remap(t *testing.T) {
	t.Parallel()

	service, _ := newProjectService()
	service.now = func() time.Time { return testutil.BaseTime }

	project, err := service.Create(t.Context(), CreateProjectRequest{
		Name:        "Accounts",
		BPMNXML:     testutil.AccountsBPMN,
		OpenAPIJSON: testutil.AccountsOpenAPI,
	})
	require.NoError(t, err)

	later := testutil.BaseTime.Add(time.Hour)
	service.now = func() time.Time { return later }

	remapped, err := service.Remap(t.Context(), project.ID, RemapRequest{PumlContent: "@startuml\n@enduml"})
	require.NoError(t, err)

	assert.Equal(t, testutil.BaseTime, remapped.CreatedAt)
	assert.Equal(t, later, remapped.UpdatedAt)
	assert.Equal(t, 2, remapped.MappingResult.MatchedTasks)
	assert.Equal(t, testutil.AccountsBPMN, remapped.BPMNXML)
	assert.Equal(t, "@startuml\n@enduml", remapped.PumlContent)

	_, err = service.Remap(t.Context(), project.ID, RemapRequest{OpenAPIJSON: "{broken"})
	require.Error(t, err)
	assert.True(t, IsParseError(err))
}

func TestProject_NotFound(t *testing.T) {
	t.Parallel()

	service, _ := newProjectService()

	_, err := service.Get(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProjectNotFound))
	assert.True(t, persistence.IsNotFound(err))

	_, err = service.Remap(t.Context(), "missing", RemapRequest{})
	assert.True(t, errors.Is(err, ErrProjectNotFound))
}

func TestHealth_Check(t *testing.T) {
	t.Parallel()

	message, ok := NewHealth(memory.NewPersistence()).Check(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)

	message, ok = NewHealth(nil).Check(t.Context())
	assert.False(t, ok)
	assert.Equal(t, "Persistence layer not initialized", message)
}

func TestHealth_Check_Unhealthy(t *testing.T) {
	t.Parallel()

	p := mocks.NewMockPersistence()
	p.On("HealthCheck", mock.Anything).Return(errors.New("connection refused"))

	message, ok := NewHealth(p).Check(t.Context())
	assert.False(t, ok)
	assert.Equal(t, "Persistence layer is unhealthy: connection refused", message)
	p.AssertExpectations(t)
}

func TestProject_Create_SaveError(t *testing.T) {
	t.Parallel()

	repo := &mocks.MockProjectRepository{}
	repo.On("SaveProject", mock.Anything, mock.AnythingOfType("*models.Project")).Return(errors.New("disk full"))

	service := NewProject(repo, newMappingService(nil), nil)

	_, err := service.Create(t.Context(), CreateProjectRequest{
		Name:        "Accounts",
		BPMNXML:     testutil.AccountsBPMN,
		OpenAPIJSON: testutil.AccountsOpenAPI,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save project")
	repo.AssertExpectations(t)
}

func TestServiceError(t *testing.T) {
	t.Parallel()

	err := NewValidationError("Create", "validation_error", "name is required", ErrInvalidRequest)

	assert.Equal(t, "Create: name is required", err.Error())
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, "Create: invalid request", (&ServiceError{Op: "Create", Err: ErrInvalidRequest}).Error())
}
