package mocks

import (
	"context"

	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/service"
	"github.com/phrazzld/taskhub-api/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockTaskService is a mock of service.TaskService for use with testify/mock
type MockTaskService struct {
	mock.Mock
}

var _ service.TaskService = (*MockTaskService)(nil)

// Create is a mock implementation of service.TaskService.Create
func (m *MockTaskService) Create(ctx context.Context, params service.CreateTaskParams) (*domain.Task, error) {
	args := m.Called(ctx, params)
	return taskArg(args, 0), args.Error(1)
}

// Get is a mock implementation of service.TaskService.Get
func (m *MockTaskService) Get(ctx context.Context, id int64) (*domain.Task, error) {
	args := m.Called(ctx, id)
	return taskArg(args, 0), args.Error(1)
}

// GetWithLogs is a mock implementation of service.TaskService.GetWithLogs
func (m *MockTaskService) GetWithLogs(ctx context.Context, id int64) (*domain.TaskWithLogs, error) {
	args := m.Called(ctx, id)
	if twl, ok := args.Get(0).(*domain.TaskWithLogs); ok {
		return twl, args.Error(1)
	}
	return nil, args.Error(1)
}

// List is a mock implementation of service.TaskService.List
func (m *MockTaskService) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	args := m.Called(ctx, filter)
	if tasks, ok := args.Get(0).([]*domain.Task); ok {
		return tasks, args.Error(1)
	}
	return nil, args.Error(1)
}

// Update is a mock implementation of service.TaskService.Update
func (m *MockTaskService) Update(ctx context.Context, id int64, patch domain.TaskPatch) (*domain.Task, error) {
	args := m.Called(ctx, id, patch)
	return taskArg(args, 0), args.Error(1)
}

// Delete is a mock implementation of service.TaskService.Delete
func (m *MockTaskService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// StartProcessing is a mock implementation of service.TaskService.StartProcessing
func (m *MockTaskService) StartProcessing(ctx context.Context, id int64) (*domain.Task, error) {
	args := m.Called(ctx, id)
	return taskArg(args, 0), args.Error(1)
}

func taskArg(args mock.Arguments, i int) *domain.Task {
	if task, ok := args.Get(i).(*domain.Task); ok {
		return task
	}
	return nil
}
