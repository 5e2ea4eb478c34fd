package securitytarget

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
)

var (
	minScore = decimal.Zero
	maxScore = decimal.NewFromInt(100)
)

// scoreScale matches the evaluation_score column, NUMERIC(5, 2).
const scoreScale = 2

type EvaluationStatus int

const (
	EvaluationPending EvaluationStatus = iota
	EvaluationPass
	EvaluationFail
	EvaluationNeedsRevision
)

func (s EvaluationStatus) String() string {
	switch s {
	case EvaluationPending:
		return "pending"
	case EvaluationPass:
		return "pass"
	case EvaluationFail:
		return "fail"
	case EvaluationNeedsRevision:
		return "needs_revision"
	default:
		return "unknown"
	}
}

func ParseEvaluationStatus(s string) (EvaluationStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return EvaluationPending, nil
	case "pass":
		return EvaluationPass, nil
	case "fail":
		return EvaluationFail, nil
	case "needs_revision":
		return EvaluationNeedsRevision, nil
	}
	return 0, errors.NewValidationError("INVALID_EVALUATION_STATUS", fmt.Sprintf("unknown evaluation status %q", s))
}

func (s EvaluationStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *EvaluationStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseEvaluationStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SelectionKey identifies a selection within its security target.
type SelectionKey struct {
	SecurityTargetID uuid.UUID
	ClassID          uuid.UUID
	SubclassID       uuid.UUID // uuid.Nil when no subclass
}

// Content is the applicant-authored part of a selection.
type Content struct {
	Description   string
	Justification string
	TestApproach  string
}

func (c Content) validate() error {
	if strings.TrimSpace(c.Description) == "" {
		return errors.NewValidationError("INVALID_DESCRIPTION", "selection description is required")
	}
	return nil
}

// ClassSelection is one catalog class (optionally narrowed to a subclass)
// claimed by a security target.
type ClassSelection struct {
	ID               uuid.UUID  `json:"id"`
	SecurityTargetID uuid.UUID  `json:"security_target_id"`
	ClassID          uuid.UUID  `json:"class_id"`
	SubclassID       *uuid.UUID `json:"subclass_id,omitempty"`

	Description   string `json:"description"`
	Justification string `json:"justification,omitempty"`
	TestApproach  string `json:"test_approach,omitempty"`

	EvaluatorNotes   string           `json:"evaluator_notes,omitempty"`
	EvaluationStatus EvaluationStatus `json:"evaluation_status"`
	EvaluationScore  *decimal.Decimal `json:"evaluation_score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewClassSelection(securityTargetID, classID uuid.UUID, subclassID *uuid.UUID, c Content, now time.Time) (*ClassSelection, error) {
	if securityTargetID == uuid.Nil || classID == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_SELECTION", "security target and class are required")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	var sub *uuid.UUID
	if subclassID != nil && *subclassID != uuid.Nil {
		id := *subclassID
		sub = &id
	}
	return &ClassSelection{
		ID:               uuid.New(),
		SecurityTargetID: securityTargetID,
		ClassID:          classID,
		SubclassID:       sub,
		Description:      c.Description,
		Justification:    c.Justification,
		TestApproach:     c.TestApproach,
		EvaluationStatus: EvaluationPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (s *ClassSelection) Key() SelectionKey {
	k := SelectionKey{SecurityTargetID: s.SecurityTargetID, ClassID: s.ClassID}
	if s.SubclassID != nil {
		k.SubclassID = *s.SubclassID
	}
	return k
}

// UpdateContent replaces the applicant-authored fields.
func (s *ClassSelection) UpdateContent(c Content, now time.Time) error {
	if err := c.validate(); err != nil {
		return err
	}
	s.Description = c.Description
	s.Justification = c.Justification
	s.TestApproach = c.TestApproach
	s.UpdatedAt = now
	return nil
}

// RecordEvaluation stores an evaluator's verdict. A nil score clears it.
func (s *ClassSelection) RecordEvaluation(status EvaluationStatus, score *decimal.Decimal, notes string, now time.Time) error {
	if score != nil && (score.LessThan(minScore) || score.GreaterThan(maxScore)) {
		return errors.NewValidationError("INVALID_SCORE", "evaluation score must be between 0 and 100").
			WithDetails(map[string]interface{}{"score": score.String()})
	}
	if score != nil && !score.Equal(score.Truncate(scoreScale)) {
		return errors.NewValidationError("INVALID_SCORE", "evaluation score allows at most two decimal places").
			WithDetails(map[string]interface{}{"score": score.String()})
	}
	if status < EvaluationPending || status > EvaluationNeedsRevision {
		return errors.NewValidationError("INVALID_EVALUATION_STATUS", "unknown evaluation status")
	}
	s.EvaluationStatus = status
	if score != nil {
		v := *score
		s.EvaluationScore = &v
	} else {
		s.EvaluationScore = nil
	}
	s.EvaluatorNotes = notes
	s.UpdatedAt = now
	return nil
}
