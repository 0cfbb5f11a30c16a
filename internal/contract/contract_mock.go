package contract

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockGitClient is a mock implementation of GitClient for testing.
type MockGitClient struct {
	mock.Mock
}

var _ GitClient = &MockGitClient{} // Compile-time check

// Run implements the GitClient interface.
func (m *MockGitClient) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	callArgs := []any{ctx, dir}
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	ret := m.Called(callArgs...)
	out, _ := ret.Get(0).([]byte)
	return out, ret.Error(1)
}

// GetShortHash implements the GitClient interface.
func (m *MockGitClient) GetShortHash(ctx context.Context, dir string) (string, error) {
	ret := m.Called(ctx, dir)
	return ret.String(0), ret.Error(1)
}

// MockShellRunner is a mock implementation of ShellRunner for testing.
type MockShellRunner struct {
	mock.Mock
}

var _ ShellRunner = &MockShellRunner{} // Compile-time check

// RunScript implements the ShellRunner interface.
func (m *MockShellRunner) RunScript(ctx context.Context, path string, dir string) ([]byte, error) {
	ret := m.Called(ctx, path, dir)
	out, _ := ret.Get(0).([]byte)
	return out, ret.Error(1)
}
