package application

import (
	"fmt"
	"strings"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
)

type Status int

const (
	StatusDraft Status = iota
	StatusSubmitted
	StatusInReview
	StatusInEvaluation
	StatusEvaluationCompleted
	StatusReportGenerated
	StatusSupervisorReview
	StatusCompleted
	StatusRejected
)

// Statuses lists every status in workflow order.
var Statuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusInReview,
	StatusInEvaluation,
	StatusEvaluationCompleted,
	StatusReportGenerated,
	StatusSupervisorReview,
	StatusCompleted,
	StatusRejected,
}

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "DRAFT"
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusInReview:
		return "IN_REVIEW"
	case StatusInEvaluation:
		return "IN_EVALUATION"
	case StatusEvaluationCompleted:
		return "EVALUATION_COMPLETED"
	case StatusReportGenerated:
		return "REPORT_GENERATED"
	case StatusSupervisorReview:
		return "SUPERVISOR_REVIEW"
	case StatusCompleted:
		return "COMPLETED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus accepts any casing of a status name.
func ParseStatus(s string) (Status, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for _, st := range Statuses {
		if st.String() == want {
			return st, nil
		}
	}
	return 0, errors.NewValidationError("INVALID_APPLICATION_STATUS", fmt.Sprintf("unknown application status %q", s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

var transitions = map[Status][]Status{
	StatusDraft:               {StatusSubmitted, StatusRejected},
	StatusSubmitted:           {StatusInReview, StatusInEvaluation, StatusRejected},
	StatusInReview:            {StatusInEvaluation, StatusRejected},
	StatusInEvaluation:        {StatusEvaluationCompleted, StatusRejected},
	StatusEvaluationCompleted: {StatusReportGenerated},
	StatusReportGenerated:     {StatusSupervisorReview},
	StatusSupervisorReview:    {StatusCompleted, StatusRejected, StatusEvaluationCompleted},
}

// CanTransitionTo reports whether next is reachable in one step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}
