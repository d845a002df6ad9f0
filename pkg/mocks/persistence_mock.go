// Package mocks provides testify mocks for the storage and event bus interfaces.
package mocks

import (
	"context"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockDefinitionRepository is a mock implementation of persistence.DefinitionRepository interface.
type MockDefinitionRepository struct {
	mock.Mock
}

func (m *MockDefinitionRepository) SaveDraft(ctx context.Context, definition *models.Definition) (persistence.DraftID, error) {
	args := m.Called(ctx, definition)

	return args.Get(0).(persistence.DraftID), args.Error(1)
}

func (m *MockDefinitionRepository) Publish(ctx context.Context, definition *models.Definition) (persistence.PublishedID, error) {
	args := m.Called(ctx, definition)

	return args.Get(0).(persistence.PublishedID), args.Error(1)
}

func (m *MockDefinitionRepository) GetByID(ctx context.Context, id string) (*models.Definition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Definition), args.Error(1)
}

func (m *MockDefinitionRepository) ListByGroup(ctx context.Context, groupID string) ([]*models.Definition, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Definition), args.Error(1)
}

func (m *MockDefinitionRepository) GetPublished(ctx context.Context, groupID string) (*models.Definition, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Definition), args.Error(1)
}

func (m *MockDefinitionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	definitionRepo *MockDefinitionRepository
}

// NewMockPersistence creates a new MockPersistence with a mock definition repository.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		definitionRepo: &MockDefinitionRepository{},
	}
}

// GetMockDefinitionRepository returns the underlying mock repository for setting up expectations.
func (m *MockPersistence) GetMockDefinitionRepository() *MockDefinitionRepository {
	return m.definitionRepo
}

func (m *MockPersistence) DefinitionRepository() persistence.DefinitionRepository {
	return m.definitionRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
