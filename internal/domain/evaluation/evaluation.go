package evaluation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
)

type Status int

const (
	StatusInProgress Status = iota
	StatusCompleted
	StatusOnHold
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusCompleted:
		return "COMPLETED"
	case StatusOnHold:
		return "ON_HOLD"
	default:
		return "UNKNOWN"
	}
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IN_PROGRESS":
		return StatusInProgress, nil
	case "COMPLETED":
		return StatusCompleted, nil
	case "ON_HOLD":
		return StatusOnHold, nil
	}
	return 0, errors.NewValidationError("INVALID_EVALUATION_STATUS", fmt.Sprintf("unknown evaluation status %q", s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Checklist holds the three gates required before completion.
type Checklist struct {
	DocumentReview          bool `json:"document_review_completed"`
	SecurityTesting         bool `json:"security_testing_completed"`
	VulnerabilityAssessment bool `json:"vulnerability_assessment_completed"`
}

// Missing lists the gates that are still open.
func (c Checklist) Missing() []string {
	var missing []string
	if !c.DocumentReview {
		missing = append(missing, "document_review")
	}
	if !c.SecurityTesting {
		missing = append(missing, "security_testing")
	}
	if !c.VulnerabilityAssessment {
		missing = append(missing, "vulnerability_assessment")
	}
	return missing
}

func (c Checklist) Complete() bool {
	return c.DocumentReview && c.SecurityTesting && c.VulnerabilityAssessment
}

// ChecklistUpdate changes only the gates that are set.
type ChecklistUpdate struct {
	DocumentReview          *bool
	SecurityTesting         *bool
	VulnerabilityAssessment *bool
}

type Evaluation struct {
	ID            uuid.UUID  `json:"id"`
	ApplicationID uuid.UUID  `json:"application_id"`
	EvaluatorID   uuid.UUID  `json:"evaluator_id"`
	Status        Status     `json:"status"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`

	Checklist Checklist `json:"checklist"`

	OverallScore    *decimal.Decimal `json:"overall_score,omitempty"`
	Findings        string           `json:"findings,omitempty"`
	Recommendations string           `json:"recommendations,omitempty"`

	ReportReadyForGeneration bool       `json:"report_ready_for_generation"`
	ReportGeneratedAt        *time.Time `json:"report_generated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewEvaluation(applicationID, evaluatorID uuid.UUID, now time.Time) (*Evaluation, error) {
	if applicationID == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_APPLICATION", "application is required")
	}
	if evaluatorID == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_EVALUATOR", "evaluator is required")
	}
	return &Evaluation{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		EvaluatorID:   evaluatorID,
		Status:        StatusInProgress,
		StartDate:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (e *Evaluation) ensureOpen() error {
	if e.Status == StatusCompleted {
		return errors.NewPreconditionError("ALREADY_COMPLETED", "evaluation has already been completed")
	}
	return nil
}

// EnsureScorable fails unless class verdicts may still be recorded.
func (e *Evaluation) EnsureScorable() error {
	if err := e.ensureOpen(); err != nil {
		return err
	}
	if e.Status == StatusOnHold {
		return errors.NewPreconditionError("EVALUATION_ON_HOLD", "evaluation is on hold")
	}
	return nil
}

// UpdateChecklist applies the set gates.
func (e *Evaluation) UpdateChecklist(u ChecklistUpdate, now time.Time) error {
	if err := e.ensureOpen(); err != nil {
		return err
	}
	if u.DocumentReview != nil {
		e.Checklist.DocumentReview = *u.DocumentReview
	}
	if u.SecurityTesting != nil {
		e.Checklist.SecurityTesting = *u.SecurityTesting
	}
	if u.VulnerabilityAssessment != nil {
		e.Checklist.VulnerabilityAssessment = *u.VulnerabilityAssessment
	}
	e.UpdatedAt = now
	return nil
}

func (e *Evaluation) UpdateNotes(findings, recommendations *string, now time.Time) {
	if findings != nil {
		e.Findings = *findings
	}
	if recommendations != nil {
		e.Recommendations = *recommendations
	}
	e.UpdatedAt = now
}

func (e *Evaluation) Hold(now time.Time) error {
	if e.Status != StatusInProgress {
		return errors.NewPreconditionError("EVALUATION_NOT_IN_PROGRESS",
			fmt.Sprintf("evaluation in status %s cannot be put on hold", e.Status))
	}
	e.Status = StatusOnHold
	e.UpdatedAt = now
	return nil
}

func (e *Evaluation) Resume(now time.Time) error {
	if e.Status != StatusOnHold {
		return errors.NewPreconditionError("EVALUATION_NOT_ON_HOLD",
			fmt.Sprintf("evaluation in status %s cannot be resumed", e.Status))
	}
	e.Status = StatusInProgress
	e.UpdatedAt = now
	return nil
}

// Reassign hands an open evaluation to another evaluator.
func (e *Evaluation) Reassign(evaluatorID uuid.UUID, now time.Time) error {
	if evaluatorID == uuid.Nil {
		return errors.NewValidationError("INVALID_EVALUATOR", "evaluator is required")
	}
	if err := e.ensureOpen(); err != nil {
		return err
	}
	e.EvaluatorID = evaluatorID
	e.UpdatedAt = now
	return nil
}

// Complete closes the evaluation. score is the aggregate and may be nil.
func (e *Evaluation) Complete(score *decimal.Decimal, now time.Time) error {
	if err := e.ensureOpen(); err != nil {
		return err
	}
	if e.Status == StatusOnHold {
		return errors.NewPreconditionError("EVALUATION_ON_HOLD", "evaluation is on hold")
	}
	if missing := e.Checklist.Missing(); len(missing) > 0 {
		return errors.NewPreconditionError("CHECKLIST_INCOMPLETE",
			"document review, security testing and vulnerability assessment must all be completed").
			WithDetails(map[string]interface{}{"missing": missing})
	}

	e.Status = StatusCompleted
	end := now
	e.EndDate = &end
	e.ReportReadyForGeneration = true
	if score != nil {
		v := *score
		e.OverallScore = &v
	} else {
		e.OverallScore = nil
	}
	e.UpdatedAt = now
	return nil
}

// CanGenerateReport reports whether a technical report may be produced.
func (e *Evaluation) CanGenerateReport() error {
	if e.Status != StatusCompleted || !e.ReportReadyForGeneration {
		return errors.NewPreconditionError("EVALUATION_NOT_READY", "evaluation is not ready for report generation")
	}
	return nil
}

func (e *Evaluation) MarkReportGenerated(now time.Time) {
	generated := now
	e.ReportGeneratedAt = &generated
	e.UpdatedAt = now
}

// Filter narrows evaluation listings. Nil fields do not filter.
type Filter struct {
	EvaluatorID *uuid.UUID
	ApplicantID *uuid.UUID
	Status      *Status
}
