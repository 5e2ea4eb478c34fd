package securitytarget_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
	"github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
)

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func TestNewSecurityTarget(t *testing.T) {
	appID := uuid.New()
	st, err := securitytarget.NewSecurityTarget(appID, now)
	require.NoError(t, err)

	assert.Equal(t, appID, st.ApplicationID)
	assert.Equal(t, securitytarget.StatusDraft, st.Status)
	assert.Equal(t, "1.0", st.Version)
	assert.True(t, st.IsDraft())

	_, err = securitytarget.NewSecurityTarget(uuid.Nil, now)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestSecurityTarget_Submit(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		setup    func(st *securitytarget.SecurityTarget)
		errType  errors.ErrorType
		code     string
		validate func(t *testing.T, st *securitytarget.SecurityTarget)
	}{
		{
			name:    "zero selections fails",
			count:   0,
			errType: errors.ErrorTypeValidation,
			code:    "NO_CLASS_SELECTIONS",
		},
		{
			name:  "one selection submits",
			count: 1,
			validate: func(t *testing.T, st *securitytarget.SecurityTarget) {
				assert.Equal(t, securitytarget.StatusSubmitted, st.Status)
				require.NotNil(t, st.SubmittedAt)
				assert.Equal(t, now, *st.SubmittedAt)
			},
		},
		{
			name:  "many selections submit",
			count: 7,
			validate: func(t *testing.T, st *securitytarget.SecurityTarget) {
				assert.Equal(t, securitytarget.StatusSubmitted, st.Status)
			},
		},
		{
			name:  "already submitted fails",
			count: 3,
			setup: func(st *securitytarget.SecurityTarget) {
				require.NoError(t, st.Submit(1, now))
			},
			errType: errors.ErrorTypePrecondition,
			code:    "ALREADY_SUBMITTED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := securitytarget.NewSecurityTarget(uuid.New(), now)
			require.NoError(t, err)
			if tt.setup != nil {
				tt.setup(st)
			}

			err = st.Submit(tt.count, now)
			if tt.code != "" {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, tt.errType))
				assert.Equal(t, tt.code, errors.Code(err))
				return
			}
			require.NoError(t, err)
			tt.validate(t, st)
		})
	}
}

func TestSecurityTarget_UpdateDescriptions(t *testing.T) {
	st, err := securitytarget.NewSecurityTarget(uuid.New(), now)
	require.NoError(t, err)

	require.NoError(t, st.UpdateDescriptions("AV engine", "Scanner core", now.Add(time.Minute)))
	assert.Equal(t, "AV engine", st.ProductDescription)
	assert.Equal(t, "Scanner core", st.TOEDescription)

	require.NoError(t, st.Submit(1, now))
	err = st.UpdateDescriptions("x", "y", now)
	assert.True(t, errors.IsType(err, errors.ErrorTypePrecondition))
}

func TestClassSelection_Key(t *testing.T) {
	stID, classID, subID := uuid.New(), uuid.New(), uuid.New()

	withSub, err := securitytarget.NewClassSelection(stID, classID, &subID, securitytarget.Content{Description: "d"}, now)
	require.NoError(t, err)
	withoutSub, err := securitytarget.NewClassSelection(stID, classID, nil, securitytarget.Content{Description: "d"}, now)
	require.NoError(t, err)
	nilSub := uuid.Nil
	explicitNil, err := securitytarget.NewClassSelection(stID, classID, &nilSub, securitytarget.Content{Description: "d"}, now)
	require.NoError(t, err)

	assert.NotEqual(t, withSub.Key(), withoutSub.Key())
	assert.Equal(t, withoutSub.Key(), explicitNil.Key())
	assert.Nil(t, explicitNil.SubclassID)
	assert.Equal(t, securitytarget.EvaluationPending, withSub.EvaluationStatus)
	assert.Nil(t, withSub.EvaluationScore)
}

func TestClassSelection_UpdateContent(t *testing.T) {
	sel, err := securitytarget.NewClassSelection(uuid.New(), uuid.New(), nil, securitytarget.Content{Description: "first"}, now)
	require.NoError(t, err)

	later := now.Add(time.Hour)
	require.NoError(t, sel.UpdateContent(securitytarget.Content{Description: "second", Justification: "j", TestApproach: "ta"}, later))
	assert.Equal(t, "second", sel.Description)
	assert.Equal(t, "ta", sel.TestApproach)
	assert.Equal(t, later, sel.UpdatedAt)

	err = sel.UpdateContent(securitytarget.Content{}, later)
	assert.Equal(t, "INVALID_DESCRIPTION", errors.Code(err))
}

func TestClassSelection_RecordEvaluation(t *testing.T) {
	score := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	tests := []struct {
		name   string
		status securitytarget.EvaluationStatus
		score  *decimal.Decimal
		code   string
	}{
		{name: "pass with score", status: securitytarget.EvaluationPass, score: score("92.5")},
		{name: "zero score is a score", status: securitytarget.EvaluationFail, score: score("0")},
		{name: "upper bound", status: securitytarget.EvaluationPass, score: score("100")},
		{name: "no score", status: securitytarget.EvaluationNeedsRevision},
		{name: "above range", status: securitytarget.EvaluationPass, score: score("100.01"), code: "INVALID_SCORE"},
		{name: "negative", status: securitytarget.EvaluationFail, score: score("-1"), code: "INVALID_SCORE"},
		{name: "two decimals", status: securitytarget.EvaluationPass, score: score("79.99")},
		{name: "trailing zeros are exact", status: securitytarget.EvaluationPass, score: score("60.000")},
		{name: "three decimals below tier boundary", status: securitytarget.EvaluationFail, score: score("59.995"), code: "INVALID_SCORE"},
		{name: "unknown status", status: securitytarget.EvaluationStatus(42), code: "INVALID_EVALUATION_STATUS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := securitytarget.NewClassSelection(uuid.New(), uuid.New(), nil, securitytarget.Content{Description: "d"}, now)
			require.NoError(t, err)

			err = sel.RecordEvaluation(tt.status, tt.score, "notes", now)
			if tt.code != "" {
				require.Error(t, err)
				assert.Equal(t, tt.code, errors.Code(err))
				assert.Equal(t, securitytarget.EvaluationPending, sel.EvaluationStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, sel.EvaluationStatus)
			assert.Equal(t, "notes", sel.EvaluatorNotes)
			if tt.score == nil {
				assert.Nil(t, sel.EvaluationScore)
			} else {
				require.NotNil(t, sel.EvaluationScore)
				assert.True(t, tt.score.Equal(*sel.EvaluationScore))
			}
		})
	}
}

func TestParseEvaluationStatus(t *testing.T) {
	s, err := securitytarget.ParseEvaluationStatus("NEEDS_REVISION")
	require.NoError(t, err)
	assert.Equal(t, securitytarget.EvaluationNeedsRevision, s)

	_, err = securitytarget.ParseEvaluationStatus("maybe")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
