package auth

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) VerifyBearerToken(ctx context.Context, token string) (*Identity, error) {
	args := m.Called(ctx, token)
	id, _ := args.Get(0).(*Identity)
	return id, args.Error(1)
}

type MockRoleStore struct {
	mock.Mock
}

func (m *MockRoleStore) AdministratorIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockRoleStore) InstructorIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}
