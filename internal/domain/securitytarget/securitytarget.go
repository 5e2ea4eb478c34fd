// Package securitytarget models the applicant-authored security target of an
// application and its per-class selections.
package securitytarget

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
)

const DefaultVersion = "1.0"

type Status int

const (
	StatusDraft Status = iota
	StatusSubmitted
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft":
		return StatusDraft, nil
	case "submitted":
		return StatusSubmitted, nil
	}
	return 0, errors.NewValidationError("INVALID_SECURITY_TARGET_STATUS", fmt.Sprintf("unknown security target status %q", s))
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

// SecurityTarget is the single security target of an application.
type SecurityTarget struct {
	ID                 uuid.UUID  `json:"id"`
	ApplicationID      uuid.UUID  `json:"application_id"`
	Version            string     `json:"version"`
	ProductDescription string     `json:"product_description,omitempty"`
	TOEDescription     string     `json:"toe_description,omitempty"`
	Status             Status     `json:"status"`
	SubmittedAt        *time.Time `json:"submitted_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Selections []ClassSelection `json:"class_selections,omitempty"`
}

func NewSecurityTarget(applicationID uuid.UUID, now time.Time) (*SecurityTarget, error) {
	if applicationID == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_APPLICATION", "application is required")
	}
	return &SecurityTarget{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		Version:       DefaultVersion,
		Status:        StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (st *SecurityTarget) IsDraft() bool {
	return st.Status == StatusDraft
}

func (st *SecurityTarget) ensureDraft() error {
	if st.Status != StatusDraft {
		return errors.NewPreconditionError("SECURITY_TARGET_SUBMITTED", "security target has already been submitted")
	}
	return nil
}

// UpdateDescriptions edits the product and TOE descriptions of a draft.
func (st *SecurityTarget) UpdateDescriptions(product, toe string, now time.Time) error {
	if err := st.ensureDraft(); err != nil {
		return err
	}
	st.ProductDescription = product
	st.TOEDescription = toe
	st.UpdatedAt = now
	return nil
}

// Submit finalizes the target given how many selections it holds.
func (st *SecurityTarget) Submit(selectionCount int, now time.Time) error {
	if st.Status == StatusSubmitted {
		return errors.NewPreconditionError("ALREADY_SUBMITTED", "security target has already been submitted")
	}
	if selectionCount == 0 {
		return errors.NewValidationError("NO_CLASS_SELECTIONS",
			"security target must contain at least one class selection before submission")
	}
	st.Status = StatusSubmitted
	submitted := now
	st.SubmittedAt = &submitted
	st.UpdatedAt = now
	return nil
}
