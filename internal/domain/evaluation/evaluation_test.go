package evaluation_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
)

var now = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newEvaluation(t *testing.T) *evaluation.Evaluation {
	t.Helper()
	e, err := evaluation.NewEvaluation(uuid.New(), uuid.New(), now)
	require.NoError(t, err)
	return e
}

func allGates() evaluation.ChecklistUpdate {
	return evaluation.ChecklistUpdate{
		DocumentReview:          ptr(true),
		SecurityTesting:         ptr(true),
		VulnerabilityAssessment: ptr(true),
	}
}

func TestNewEvaluation(t *testing.T) {
	e := newEvaluation(t)
	assert.Equal(t, evaluation.StatusInProgress, e.Status)
	assert.Equal(t, now, e.StartDate)
	assert.False(t, e.ReportReadyForGeneration)
	assert.Len(t, e.Checklist.Missing(), 3)

	_, err := evaluation.NewEvaluation(uuid.New(), uuid.Nil, now)
	assert.Equal(t, "INVALID_EVALUATOR", errors.Code(err))
}

func TestEvaluation_Complete(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, e *evaluation.Evaluation)
		score    *decimal.Decimal
		code     string
		validate func(t *testing.T, e *evaluation.Evaluation)
	}{
		{
			name:  "no gates",
			setup: func(t *testing.T, e *evaluation.Evaluation) {},
			code:  "CHECKLIST_INCOMPLETE",
		},
		{
			name: "two of three gates",
			setup: func(t *testing.T, e *evaluation.Evaluation) {
				require.NoError(t, e.UpdateChecklist(evaluation.ChecklistUpdate{
					DocumentReview:  ptr(true),
					SecurityTesting: ptr(true),
				}, now))
			},
			code: "CHECKLIST_INCOMPLETE",
		},
		{
			name: "on hold",
			setup: func(t *testing.T, e *evaluation.Evaluation) {
				require.NoError(t, e.UpdateChecklist(allGates(), now))
				require.NoError(t, e.Hold(now))
			},
			code: "EVALUATION_ON_HOLD",
		},
		{
			name: "already completed",
			setup: func(t *testing.T, e *evaluation.Evaluation) {
				require.NoError(t, e.UpdateChecklist(allGates(), now))
				require.NoError(t, e.Complete(nil, now))
			},
			code: "ALREADY_COMPLETED",
		},
		{
			name: "all gates with score",
			setup: func(t *testing.T, e *evaluation.Evaluation) {
				require.NoError(t, e.UpdateChecklist(allGates(), now))
			},
			score: dec("82"),
			validate: func(t *testing.T, e *evaluation.Evaluation) {
				assert.Equal(t, evaluation.StatusCompleted, e.Status)
				assert.True(t, e.ReportReadyForGeneration)
				require.NotNil(t, e.EndDate)
				assert.Equal(t, now.Add(time.Hour), *e.EndDate)
				require.NotNil(t, e.OverallScore)
				assert.Equal(t, "82", e.OverallScore.String())
				assert.NoError(t, e.CanGenerateReport())
			},
		},
		{
			name: "all gates without score",
			setup: func(t *testing.T, e *evaluation.Evaluation) {
				require.NoError(t, e.UpdateChecklist(allGates(), now))
			},
			validate: func(t *testing.T, e *evaluation.Evaluation) {
				assert.Nil(t, e.OverallScore)
				assert.True(t, e.ReportReadyForGeneration)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvaluation(t)
			tt.setup(t, e)

			err := e.Complete(tt.score, now.Add(time.Hour))
			if tt.code != "" {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypePrecondition))
				assert.Equal(t, tt.code, errors.Code(err))
				return
			}
			require.NoError(t, err)
			tt.validate(t, e)
		})
	}
}

func TestEvaluation_CompleteReportsMissingGates(t *testing.T) {
	e := newEvaluation(t)
	require.NoError(t, e.UpdateChecklist(evaluation.ChecklistUpdate{SecurityTesting: ptr(true)}, now))

	err := e.Complete(nil, now)
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []string{"document_review", "vulnerability_assessment"}, appErr.Details["missing"])
	assert.False(t, e.ReportReadyForGeneration)
	assert.Nil(t, e.EndDate)
}

func TestEvaluation_HoldResume(t *testing.T) {
	e := newEvaluation(t)

	require.NoError(t, e.Hold(now))
	assert.Equal(t, evaluation.StatusOnHold, e.Status)
	assert.Error(t, e.Hold(now))

	require.NoError(t, e.Resume(now))
	assert.Equal(t, evaluation.StatusInProgress, e.Status)
	assert.Error(t, e.Resume(now))
}

func TestEvaluation_EnsureScorable(t *testing.T) {
	e := newEvaluation(t)
	require.NoError(t, e.EnsureScorable())

	require.NoError(t, e.Hold(now))
	assert.Equal(t, "EVALUATION_ON_HOLD", errors.Code(e.EnsureScorable()))

	require.NoError(t, e.Resume(now))
	require.NoError(t, e.UpdateChecklist(evaluation.ChecklistUpdate{
		DocumentReview:          ptr(true),
		SecurityTesting:         ptr(true),
		VulnerabilityAssessment: ptr(true),
	}, now))
	require.NoError(t, e.Complete(nil, now))
	err := e.EnsureScorable()
	assert.True(t, errors.IsType(err, errors.ErrorTypePrecondition))
	assert.Equal(t, "ALREADY_COMPLETED", errors.Code(err))
}

func TestEvaluation_Reassign(t *testing.T) {
	e := newEvaluation(t)
	next := uuid.New()

	require.NoError(t, e.Reassign(next, now))
	assert.Equal(t, next, e.EvaluatorID)

	require.NoError(t, e.UpdateChecklist(allGates(), now))
	require.NoError(t, e.Complete(nil, now))
	assert.Equal(t, "ALREADY_COMPLETED", errors.Code(e.Reassign(uuid.New(), now)))
}

func TestEvaluation_CanGenerateReport(t *testing.T) {
	e := newEvaluation(t)
	err := e.CanGenerateReport()
	assert.True(t, errors.IsType(err, errors.ErrorTypePrecondition))

	e.UpdateNotes(ptr("weak update channel"), nil, now)
	assert.Equal(t, "weak update channel", e.Findings)

	e.MarkReportGenerated(now)
	require.NotNil(t, e.ReportGeneratedAt)
}
