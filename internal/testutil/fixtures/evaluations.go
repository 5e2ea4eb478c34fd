package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/itrc/evaluation-workflow/internal/domain/catalog"
	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
	"github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
	catalogloader "github.com/itrc/evaluation-workflow/internal/infrastructure/catalog"
)

var fixtureTime = time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

// Catalog returns the embedded seed catalog.
func Catalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalogloader.Default()
	require.NoError(t, err)
	return cat
}

// SecurityTarget builds a draft security target for an application.
func SecurityTarget(t *testing.T, applicationID uuid.UUID) *securitytarget.SecurityTarget {
	t.Helper()
	st, err := securitytarget.NewSecurityTarget(applicationID, fixtureTime)
	require.NoError(t, err)
	return st
}

// SelectionBuilder builds test ClassSelection entities from catalog codes.
type SelectionBuilder struct {
	t                *testing.T
	securityTargetID uuid.UUID
	classCode        string
	subclassCode     string
	content          securitytarget.Content
	status           securitytarget.EvaluationStatus
	score            *decimal.Decimal
}

func NewSelectionBuilder(t *testing.T, securityTargetID uuid.UUID, classCode string) *SelectionBuilder {
	t.Helper()
	return &SelectionBuilder{
		t:                t,
		securityTargetID: securityTargetID,
		classCode:        classCode,
		content: securitytarget.Content{
			Description:   "Implements " + classCode,
			Justification: "Required by the protection profile",
			TestApproach:  "Functional testing",
		},
		status: securitytarget.EvaluationPending,
	}
}

func (b *SelectionBuilder) WithSubclass(code string) *SelectionBuilder {
	b.subclassCode = code
	return b
}

// WithScore records an evaluator verdict with the given score.
func (b *SelectionBuilder) WithScore(score string) *SelectionBuilder {
	d := decimal.RequireFromString(score)
	b.score = &d
	b.status = securitytarget.EvaluationPass
	return b
}

func (b *SelectionBuilder) WithStatus(status securitytarget.EvaluationStatus) *SelectionBuilder {
	b.status = status
	return b
}

func (b *SelectionBuilder) Build() *securitytarget.ClassSelection {
	b.t.Helper()
	var sub *uuid.UUID
	if b.subclassCode != "" {
		id := catalog.SubclassID(b.subclassCode)
		sub = &id
	}
	sel, err := securitytarget.NewClassSelection(b.securityTargetID, catalog.ClassID(b.classCode), sub, b.content, fixtureTime)
	require.NoError(b.t, err)
	if b.status != securitytarget.EvaluationPending || b.score != nil {
		require.NoError(b.t, sel.RecordEvaluation(b.status, b.score, "", fixtureTime))
	}
	return sel
}

// EvaluationBuilder builds test Evaluation entities
type EvaluationBuilder struct {
	t             *testing.T
	applicationID uuid.UUID
	evaluatorID   uuid.UUID
	checklist     bool
	completed     bool
	onHold        bool
	score         *decimal.Decimal
}

func NewEvaluationBuilder(t *testing.T, applicationID, evaluatorID uuid.UUID) *EvaluationBuilder {
	t.Helper()
	return &EvaluationBuilder{t: t, applicationID: applicationID, evaluatorID: evaluatorID}
}

// WithChecklistComplete ticks every completion gate.
func (b *EvaluationBuilder) WithChecklistComplete() *EvaluationBuilder {
	b.checklist = true
	return b
}

// Completed completes the evaluation with the given overall score ("" for none).
func (b *EvaluationBuilder) Completed(score string) *EvaluationBuilder {
	b.checklist = true
	b.completed = true
	if score != "" {
		d := decimal.RequireFromString(score)
		b.score = &d
	}
	return b
}

func (b *EvaluationBuilder) OnHold() *EvaluationBuilder {
	b.onHold = true
	return b
}

func (b *EvaluationBuilder) Build() *evaluation.Evaluation {
	b.t.Helper()
	e, err := evaluation.NewEvaluation(b.applicationID, b.evaluatorID, fixtureTime)
	require.NoError(b.t, err)
	if b.checklist {
		yes := true
		require.NoError(b.t, e.UpdateChecklist(evaluation.ChecklistUpdate{
			DocumentReview:          &yes,
			SecurityTesting:         &yes,
			VulnerabilityAssessment: &yes,
		}, fixtureTime))
	}
	if b.completed {
		require.NoError(b.t, e.Complete(b.score, fixtureTime.Add(24*time.Hour)))
	}
	if b.onHold {
		require.NoError(b.t, e.Hold(fixtureTime.Add(time.Hour)))
	}
	return e
}
