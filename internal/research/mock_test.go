package research

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// mockCompleter is a testify mock over the completion interface for the
// stage-level tests.
type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// completerFunc adapts a function to the completion interface for the engine
// tests, where responses depend on which prompt is being answered.
type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
