package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
)

func TestConstructors_StatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      *errors.AppError
		wantType errors.ErrorType
		wantCode int
	}{
		{"validation", errors.NewValidationError("INVALID_DECISION", "bad decision"), errors.ErrorTypeValidation, 400},
		{"precondition", errors.NewPreconditionError("GATES_INCOMPLETE", "gates"), errors.ErrorTypePrecondition, 412},
		{"not found", errors.NewNotFoundError("evaluation"), errors.ErrorTypeNotFound, 404},
		{"forbidden", errors.NewForbiddenError("no"), errors.ErrorTypeForbidden, 403},
		{"unauthorized", errors.NewUnauthorizedError("no token"), errors.ErrorTypeUnauthorized, 401},
		{"conflict", errors.NewConflictError("exists"), errors.ErrorTypeConflict, 409},
		{"internal", errors.NewInternalError("boom"), errors.ErrorTypeInternal, 500},
		{"rate limit", errors.NewRateLimitError("slow down"), errors.ErrorTypeRateLimit, 429},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantCode, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, errors.GetStatusCode(tt.err))
		})
	}
}

func TestAppError_CauseChain(t *testing.T) {
	root := stderrors.New("connection reset")
	err := errors.NewInternalError("failed to load evaluation").WithCause(root)

	assert.ErrorIs(t, err, root)
	assert.Equal(t, "failed to load evaluation: connection reset", err.Error())
	assert.True(t, errors.IsRetryable(err))

	wrapped := fmt.Errorf("generate: %w", err)
	assert.True(t, errors.IsType(wrapped, errors.ErrorTypeInternal))
	assert.Equal(t, 500, errors.GetStatusCode(wrapped))
	assert.Equal(t, "INTERNAL_ERROR", errors.Code(wrapped))
}

func TestAppError_IsMatchesTypeAndCode(t *testing.T) {
	a := errors.NewPreconditionError("GATES_INCOMPLETE", "first")
	b := errors.NewPreconditionError("GATES_INCOMPLETE", "second")
	c := errors.NewPreconditionError("ALREADY_COMPLETED", "third")

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}

func TestHelpers_NonAppError(t *testing.T) {
	err := stderrors.New("plain")

	assert.False(t, errors.IsNotFound(err))
	assert.False(t, errors.IsRetryable(err))
	assert.Equal(t, 500, errors.GetStatusCode(err))
	assert.Empty(t, errors.Code(err))
	require.NoError(t, errors.Wrap(nil, "ignored"))
	assert.EqualError(t, errors.Wrap(err, "context"), "context: plain")
}
