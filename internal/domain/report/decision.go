package report

import (
	"fmt"
	"strings"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
)

// Decision is a supervisor verdict on a technical report.
type Decision int

const (
	DecisionApproved Decision = iota + 1
	DecisionNeedsRevision
	DecisionRejected
)

func (d Decision) String() string {
	switch d {
	case DecisionApproved:
		return "APPROVED"
	case DecisionNeedsRevision:
		return "NEEDS_REVISION"
	case DecisionRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// ParseDecision accepts any casing of APPROVED, NEEDS_REVISION or REJECTED.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "APPROVED":
		return DecisionApproved, nil
	case "NEEDS_REVISION":
		return DecisionNeedsRevision, nil
	case "REJECTED":
		return DecisionRejected, nil
	}
	return 0, errors.NewValidationError("INVALID_DECISION",
		"decision must be one of APPROVED, NEEDS_REVISION, REJECTED").
		WithDetails(map[string]interface{}{"decision": s})
}

func (d Decision) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Decision) UnmarshalText(text []byte) error {
	parsed, err := ParseDecision(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ReportStatus is the report status a decision leads to.
func (d Decision) ReportStatus() Status {
	switch d {
	case DecisionApproved:
		return StatusApproved
	case DecisionNeedsRevision:
		return StatusNeedsRevision
	case DecisionRejected:
		return StatusRejected
	}
	panic(fmt.Sprintf("report: unknown decision %d", int(d)))
}
