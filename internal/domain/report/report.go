package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
)

type Status int

const (
	StatusDraft Status = iota
	StatusGenerated
	StatusSupervisorReview
	StatusApproved
	StatusNeedsRevision
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusGenerated:
		return "generated"
	case StatusSupervisorReview:
		return "supervisor_review"
	case StatusApproved:
		return "approved"
	case StatusNeedsRevision:
		return "needs_revision"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft":
		return StatusDraft, nil
	case "generated":
		return StatusGenerated, nil
	case "supervisor_review":
		return StatusSupervisorReview, nil
	case "approved":
		return StatusApproved, nil
	case "needs_revision":
		return StatusNeedsRevision, nil
	case "rejected":
		return StatusRejected, nil
	}
	return 0, errors.NewValidationError("INVALID_REPORT_STATUS", fmt.Sprintf("unknown report status %q", s))
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

// Statuses lists every report status.
var Statuses = []Status{
	StatusDraft, StatusGenerated, StatusSupervisorReview,
	StatusApproved, StatusNeedsRevision, StatusRejected,
}

// IsActive reports whether a report in this status blocks generating another.
func (s Status) IsActive() bool {
	switch s {
	case StatusDraft, StatusGenerated, StatusSupervisorReview, StatusApproved:
		return true
	}
	return false
}

// Artifact is the stored rendering of a report.
type Artifact struct {
	Path   string `json:"file_path"`
	Size   int64  `json:"file_size"`
	Format string `json:"format"`
}

type TechnicalReport struct {
	ID           uuid.UUID `json:"id"`
	EvaluationID uuid.UUID `json:"evaluation_id"`
	ReportNumber string    `json:"report_number"`
	Title        string    `json:"title"`
	Status       Status    `json:"status"`

	GeneratedByID      uuid.UUID  `json:"generated_by_id"`
	ReviewedByID       *uuid.UUID `json:"reviewed_by_id,omitempty"`
	SupervisorComments string     `json:"supervisor_comments,omitempty"`

	ReportData *Snapshot `json:"report_data,omitempty"`
	Artifact   Artifact  `json:"artifact"`

	GeneratedAt          time.Time  `json:"generated_at"`
	SubmittedForReviewAt *time.Time `json:"submitted_for_review_at,omitempty"`
	ReviewedAt           *time.Time `json:"reviewed_at,omitempty"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NewTechnicalReport builds a generated report holding a frozen snapshot.
func NewTechnicalReport(evaluationID, generatedBy uuid.UUID, number, title string, snapshot *Snapshot, now time.Time) (*TechnicalReport, error) {
	if evaluationID == uuid.Nil || generatedBy == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_REPORT", "evaluation and generator are required")
	}
	if number == "" {
		return nil, errors.NewValidationError("INVALID_REPORT_NUMBER", "report number is required")
	}
	if snapshot == nil {
		return nil, errors.NewValidationError("INVALID_REPORT_DATA", "report data is required")
	}
	return &TechnicalReport{
		ID:            uuid.New(),
		EvaluationID:  evaluationID,
		ReportNumber:  number,
		Title:         title,
		Status:        StatusGenerated,
		GeneratedByID: generatedBy,
		ReportData:    snapshot,
		GeneratedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// DefaultTitle is used when generation does not name the report.
func DefaultTitle(productName string) string {
	return "Evaluation Technical Report for " + productName
}

func (r *TechnicalReport) AttachArtifact(a Artifact, now time.Time) {
	r.Artifact = a
	r.UpdatedAt = now
}

// SubmitForReview hands a generated report to the supervisor queue.
func (r *TechnicalReport) SubmitForReview(now time.Time) error {
	if r.Status != StatusGenerated {
		return errors.NewPreconditionError("REPORT_NOT_GENERATED",
			fmt.Sprintf("report in status %s cannot be submitted for review", r.Status))
	}
	r.Status = StatusSupervisorReview
	submitted := now
	r.SubmittedForReviewAt = &submitted
	r.UpdatedAt = now
	return nil
}

// Review records a supervisor decision on a report awaiting review.
func (r *TechnicalReport) Review(reviewerID uuid.UUID, decision Decision, comments string, now time.Time) error {
	if r.Status != StatusSupervisorReview {
		return errors.NewPreconditionError("REPORT_NOT_IN_REVIEW",
			fmt.Sprintf("report in status %s is not awaiting supervisor review", r.Status))
	}
	reviewer := reviewerID
	reviewed := now
	r.ReviewedByID = &reviewer
	r.ReviewedAt = &reviewed
	r.SupervisorComments = comments
	r.Status = decision.ReportStatus()
	if decision == DecisionApproved {
		approved := now
		r.ApprovedAt = &approved
	}
	r.UpdatedAt = now
	return nil
}

// Filter narrows report listings. Nil fields do not filter.
type Filter struct {
	Status       *Status
	EvaluationID *uuid.UUID
	EvaluatorID  *uuid.UUID
	ApplicantID  *uuid.UUID
}
