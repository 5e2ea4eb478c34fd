package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/itrc/evaluation-workflow/internal/domain/errors"
)

func TestErrorHandler_Translate(t *testing.T) {
	h := NewErrorHandler(discardLogger())

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails bool
	}{
		{
			name:        "validation keeps details",
			err:         apperrors.NewValidationError("INVALID_SCORE", "score out of range").WithDetails(map[string]interface{}{"score": "120"}),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_SCORE",
			wantDetails: true,
		},
		{
			name:       "wrapped precondition",
			err:        fmt.Errorf("complete: %w", apperrors.NewPreconditionError("CHECKLIST_INCOMPLETE", "checklist incomplete")),
			wantStatus: http.StatusPreconditionFailed,
			wantCode:   "CHECKLIST_INCOMPLETE",
		},
		{
			name:       "internal hides details",
			err:        apperrors.NewInternalError("boom").WithDetails(map[string]interface{}{"sql": "select"}),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
		{
			name:       "syntax error",
			err:        json.Unmarshal([]byte("{"), &struct{}{}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_JSON",
		},
		{
			name:       "type mismatch",
			err:        json.Unmarshal([]byte(`{"n":"x"}`), &struct{ N int `json:"n"` }{}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "TYPE_MISMATCH",
		},
		{
			name:       "body too large",
			err:        &http.MaxBytesError{Limit: 10},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "BODY_TOO_LARGE",
		},
		{
			name:       "deadline",
			err:        fmt.Errorf("query: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "REQUEST_TIMEOUT",
		},
		{
			name:       "unknown error",
			err:        errors.New("pq: connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := h.Translate(context.Background(), tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantDetails, body.Details != nil)
			assert.NotContains(t, body.Message, "pq:")
		})
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	t.Run("all dependencies up", func(t *testing.T) {
		db := new(MockPinger)
		db.On("Ping", mock.Anything).Return(nil)
		h := NewHealthHandler("1.0.0", "test", map[string]Pinger{"database": db})

		rec := httptest.NewRecorder()
		h.ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, HealthStatusPass, resp.Status)
		assert.Equal(t, HealthStatusPass, resp.Checks["database"].Status)
	})

	t.Run("redis down", func(t *testing.T) {
		db := new(MockPinger)
		db.On("Ping", mock.Anything).Return(nil)
		rdb := new(MockPinger)
		rdb.On("Ping", mock.Anything).Return(errors.New("dial tcp: connection refused"))
		h := NewHealthHandler("1.0.0", "test", map[string]Pinger{"database": db, "redis": rdb})

		rec := httptest.NewRecorder()
		h.ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, HealthStatusFail, resp.Status)
		assert.Equal(t, "dial tcp: connection refused", resp.Checks["redis"].Error)
		assert.Equal(t, HealthStatusPass, resp.Checks["database"].Status)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}
