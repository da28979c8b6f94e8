// Package mocks provides testify mocks of the storage and event bus contracts.
package mocks

import (
	"context"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockRunRepository is a mock implementation of persistence.RunRepository interface.
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) SaveRun(ctx context.Context, run *models.RunExecution) error {
	args := m.Called(ctx, run)

	return args.Error(0)
}

func (m *MockRunRepository) RunByID(ctx context.Context, id string) (*models.RunExecution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.RunExecution), args.Error(1)
}

func (m *MockRunRepository) Runs(ctx context.Context, projectID string) ([]*models.RunExecution, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.RunExecution), args.Error(1)
}

// MockJobRepository is a mock implementation of persistence.JobRepository interface.
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) SaveJob(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)

	return args.Error(0)
}

func (m *MockJobRepository) JobByID(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobRepository) Jobs(ctx context.Context, projectID string) ([]*models.Job, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Job), args.Error(1)
}

// MockProjectRepository is a mock implementation of persistence.ProjectRepository interface.
type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) SaveProject(ctx context.Context, project *models.Project) error {
	args := m.Called(ctx, project)

	return args.Error(0)
}

func (m *MockProjectRepository) ProjectByID(ctx context.Context, id string) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectRepository) Projects(ctx context.Context) ([]*models.Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Project), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Runs     *MockRunRepository
	JobStore *MockJobRepository
	Projects *MockProjectRepository
}

// NewMockPersistence returns a persistence mock with fresh repository mocks.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Runs:     &MockRunRepository{},
		JobStore: &MockJobRepository{},
		Projects: &MockProjectRepository{},
	}
}

func (m *MockPersistence) RunRepository() persistence.RunRepository {
	return m.Runs
}

func (m *MockPersistence) JobRepository() persistence.JobRepository {
	return m.JobStore
}

func (m *MockPersistence) ProjectRepository() persistence.ProjectRepository {
	return m.Projects
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
