// Package authz holds the single authorization policy of the workflow: every
// role and ownership rule is expressed as a row of one table and evaluated by
// Authorize, independent of transport.
package authz

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
)

// Role is the closed set of actor roles.
type Role int

const (
	RoleUnknown Role = iota
	RoleApplicant
	RoleEvaluator
	RoleSupervisor
	RoleGovernance
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleApplicant:
		return "applicant"
	case RoleEvaluator:
		return "evaluator"
	case RoleSupervisor:
		return "supervisor"
	case RoleGovernance:
		return "governance"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "applicant":
		return RoleApplicant, nil
	case "evaluator":
		return RoleEvaluator, nil
	case "supervisor":
		return RoleSupervisor, nil
	case "governance":
		return RoleGovernance, nil
	case "admin":
		return RoleAdmin, nil
	}
	return RoleUnknown, errors.NewValidationError("INVALID_ROLE", fmt.Sprintf("unknown role %q", s))
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Actor is an already-authenticated caller.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// Is reports whether the actor holds one of the given roles.
func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// Action names an operation guarded by the policy.
type Action string

const (
	ActionViewCatalog        Action = "catalog:view"
	ActionCreateApplication  Action = "application:create"
	ActionViewApplication    Action = "application:view"
	ActionUpdateApplication  Action = "application:update"
	ActionViewStats          Action = "application:stats"
	ActionViewSecurityTarget Action = "security_target:view"
	ActionEditSecurityTarget Action = "security_target:edit"
	ActionEvaluateSelection  Action = "selection:evaluate"
	ActionCreateEvaluation   Action = "evaluation:create"
	ActionAssignEvaluator    Action = "evaluation:assign"
	ActionViewEvaluation     Action = "evaluation:view"
	ActionUpdateEvaluation   Action = "evaluation:update"
	ActionGenerateReport     Action = "report:generate"
	ActionSubmitReport       Action = "report:submit"
	ActionViewReport         Action = "report:view"
	ActionReviewReport       Action = "report:review"
)

// Resource carries the ownership facts a rule may depend on. Zero values mean
// "not applicable".
type Resource struct {
	OwnerID    uuid.UUID
	AssigneeID uuid.UUID
}

// Owned builds a Resource owned by an applicant.
func Owned(ownerID uuid.UUID) Resource {
	return Resource{OwnerID: ownerID}
}

type rule func(a Actor, r Resource) bool

func anyRole(roles ...Role) rule {
	return func(a Actor, _ Resource) bool {
		return a.Is(roles...)
	}
}

func owner(a Actor, r Resource) bool {
	return a.Role == RoleApplicant && r.OwnerID != uuid.Nil && a.ID == r.OwnerID
}

func assignee(a Actor, r Resource) bool {
	return a.Role == RoleEvaluator && r.AssigneeID != uuid.Nil && a.ID == r.AssigneeID
}

func either(rules ...rule) rule {
	return func(a Actor, r Resource) bool {
		for _, fn := range rules {
			if fn(a, r) {
				return true
			}
		}
		return false
	}
}

var everyone = anyRole(RoleApplicant, RoleEvaluator, RoleSupervisor, RoleGovernance, RoleAdmin)

var policy = map[Action]rule{
	ActionViewCatalog:        everyone,
	ActionViewStats:          everyone,
	ActionCreateApplication:  anyRole(RoleApplicant, RoleAdmin),
	ActionViewApplication:    either(owner, anyRole(RoleEvaluator, RoleSupervisor, RoleGovernance, RoleAdmin)),
	ActionUpdateApplication:  either(owner, anyRole(RoleAdmin)),
	ActionViewSecurityTarget: either(owner, anyRole(RoleEvaluator, RoleSupervisor, RoleGovernance, RoleAdmin)),
	ActionEditSecurityTarget: owner,
	// Only the assigned evaluator scores selections.
	ActionEvaluateSelection: func(a Actor, r Resource) bool {
		return a.Role == RoleEvaluator && r.AssigneeID != uuid.Nil && r.AssigneeID == a.ID
	},
	ActionCreateEvaluation: anyRole(RoleEvaluator, RoleGovernance, RoleAdmin),
	ActionAssignEvaluator:  anyRole(RoleGovernance, RoleAdmin),
	ActionViewEvaluation:   either(owner, assignee, anyRole(RoleSupervisor, RoleGovernance, RoleAdmin)),
	ActionUpdateEvaluation: either(assignee, anyRole(RoleGovernance, RoleAdmin)),
	ActionGenerateReport:   either(assignee, anyRole(RoleGovernance, RoleAdmin)),
	ActionSubmitReport:     either(assignee, anyRole(RoleGovernance, RoleAdmin)),
	ActionViewReport:       either(owner, assignee, anyRole(RoleSupervisor, RoleGovernance, RoleAdmin)),
	ActionReviewReport:     anyRole(RoleSupervisor, RoleAdmin),
}

// Allowed evaluates the policy without building an error.
func Allowed(actor Actor, action Action, res Resource) bool {
	fn, ok := policy[action]
	if !ok || actor.ID == uuid.Nil {
		return false
	}
	return fn(actor, res)
}

// Authorize returns a forbidden AppError when the policy denies the action.
func Authorize(actor Actor, action Action, res Resource) error {
	if Allowed(actor, action, res) {
		return nil
	}
	return errors.NewForbiddenError(fmt.Sprintf("%s is not permitted to perform %s", actor.Role, action)).
		WithDetails(map[string]interface{}{
			"action": string(action),
			"role":   actor.Role.String(),
		})
}
