package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
)

type Application struct {
	ID              uuid.UUID `json:"id"`
	Number          string    `json:"application_number"`
	ProductName     string    `json:"product_name"`
	ProductVersion  string    `json:"product_version"`
	ProductTypeID   uuid.UUID `json:"product_type_id"`
	ApplicantID     uuid.UUID `json:"applicant_id"`
	Description     string    `json:"description,omitempty"`
	EvaluationLevel string    `json:"evaluation_level,omitempty"`

	// Contact
	CompanyName   string `json:"company_name,omitempty"`
	ContactPerson string `json:"contact_person,omitempty"`
	ContactEmail  string `json:"contact_email,omitempty"`
	ContactPhone  string `json:"contact_phone,omitempty"`

	Status                  Status     `json:"status"`
	SubmissionDate          *time.Time `json:"submission_date,omitempty"`
	EstimatedCompletionDate *time.Time `json:"estimated_completion_date,omitempty"`
	ActualCompletionDate    *time.Time `json:"actual_completion_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Details are the applicant-editable attributes of an application.
type Details struct {
	ProductName     string
	ProductVersion  string
	ProductTypeID   uuid.UUID
	Description     string
	EvaluationLevel string
	CompanyName     string
	ContactPerson   string
	ContactEmail    string
	ContactPhone    string
}

func (d Details) validate() error {
	if strings.TrimSpace(d.ProductName) == "" {
		return errors.NewValidationError("INVALID_PRODUCT_NAME", "product name is required")
	}
	if strings.TrimSpace(d.ProductVersion) == "" {
		return errors.NewValidationError("INVALID_PRODUCT_VERSION", "product version is required")
	}
	if d.ProductTypeID == uuid.Nil {
		return errors.NewValidationError("INVALID_PRODUCT_TYPE", "product type is required")
	}
	return nil
}

// FormatNumber renders an application number for the given creation time.
func FormatNumber(now time.Time) string {
	return fmt.Sprintf("ITRC-%d-%d", now.Year(), now.UnixMilli())
}

// NewApplication creates a DRAFT application owned by applicantID.
func NewApplication(applicantID uuid.UUID, d Details, now time.Time) (*Application, error) {
	if applicantID == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_APPLICANT", "applicant is required")
	}
	if err := d.validate(); err != nil {
		return nil, err
	}

	a := &Application{
		ID:          uuid.New(),
		Number:      FormatNumber(now),
		ApplicantID: applicantID,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	a.apply(d)
	return a, nil
}

func (a *Application) apply(d Details) {
	a.ProductName = strings.TrimSpace(d.ProductName)
	a.ProductVersion = strings.TrimSpace(d.ProductVersion)
	a.ProductTypeID = d.ProductTypeID
	a.Description = d.Description
	a.EvaluationLevel = d.EvaluationLevel
	a.CompanyName = d.CompanyName
	a.ContactPerson = d.ContactPerson
	a.ContactEmail = d.ContactEmail
	a.ContactPhone = d.ContactPhone
}

// Update replaces the editable attributes. Only drafts can be edited.
func (a *Application) Update(d Details, now time.Time) error {
	if a.Status != StatusDraft {
		return errors.NewPreconditionError("APPLICATION_NOT_EDITABLE",
			fmt.Sprintf("application in status %s can no longer be edited", a.Status))
	}
	if err := d.validate(); err != nil {
		return err
	}
	a.apply(d)
	a.UpdatedAt = now
	return nil
}

// IsEditable reports whether applicant-owned content may still change.
func (a *Application) IsEditable() bool {
	return a.Status == StatusDraft
}

// Transition moves the application to next, enforcing the workflow graph.
func (a *Application) Transition(next Status, now time.Time) error {
	if !a.Status.CanTransitionTo(next) {
		return errors.NewPreconditionError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("application cannot move from %s to %s", a.Status, next)).
			WithDetails(map[string]interface{}{
				"from": a.Status.String(),
				"to":   next.String(),
			})
	}
	a.Status = next
	a.UpdatedAt = now
	return nil
}

// Submit moves a draft into SUBMITTED and computes the estimated completion date.
func (a *Application) Submit(now time.Time, estimatedDays int) error {
	if err := a.Transition(StatusSubmitted, now); err != nil {
		return err
	}
	submitted := now
	estimate := now.AddDate(0, 0, estimatedDays)
	a.SubmissionDate = &submitted
	a.EstimatedCompletionDate = &estimate
	return nil
}

func (a *Application) StartEvaluation(now time.Time) error {
	return a.Transition(StatusInEvaluation, now)
}

// CompleteEvaluation stamps the actual completion date.
func (a *Application) CompleteEvaluation(now time.Time) error {
	if err := a.Transition(StatusEvaluationCompleted, now); err != nil {
		return err
	}
	completed := now
	a.ActualCompletionDate = &completed
	return nil
}

func (a *Application) MarkReportGenerated(now time.Time) error {
	return a.Transition(StatusReportGenerated, now)
}

func (a *Application) SendToSupervisor(now time.Time) error {
	return a.Transition(StatusSupervisorReview, now)
}

func (a *Application) Complete(now time.Time) error {
	return a.Transition(StatusCompleted, now)
}

func (a *Application) Reject(now time.Time) error {
	return a.Transition(StatusRejected, now)
}

// ReopenForRevision returns an application under supervisor review to
// EVALUATION_COMPLETED so a revised report can be generated.
func (a *Application) ReopenForRevision(now time.Time) error {
	if a.Status != StatusSupervisorReview {
		return errors.NewPreconditionError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("application cannot be reopened from %s", a.Status))
	}
	return a.Transition(StatusEvaluationCompleted, now)
}

// Filter narrows application listings. Nil fields do not filter.
type Filter struct {
	ApplicantID *uuid.UUID
	// EvaluatorID restricts to applications whose evaluation is assigned to the user.
	EvaluatorID *uuid.UUID
	Status      *Status
	// Statuses restricts to any of the listed statuses when non-empty.
	Statuses []Status
	Limit    int
	Offset   int
}
