package directory

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/floww-app/chatkit/internal/types"
)

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) Employee(id string) (types.Employee, bool) {
	args := m.Called(id)
	return args.Get(0).(types.Employee), args.Bool(1)
}

func (m *MockDirectory) Employees() []types.Employee {
	args := m.Called()
	return args.Get(0).([]types.Employee)
}

func (m *MockDirectory) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
