// Package user is the read-only directory of people taking part in evaluations.
package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/authz"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	Role         authz.Role `json:"role"`
	CompanyName  string     `json:"company_name,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Active       bool       `json:"is_active"`
	SupervisorID *uuid.UUID `json:"supervisor_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CanEvaluate reports whether the user may be assigned evaluations.
func (u *User) CanEvaluate() bool {
	return u.Active && u.Role == authz.RoleEvaluator
}

// Actor returns the authorization identity of the user.
func (u *User) Actor() authz.Actor {
	return authz.Actor{ID: u.ID, Role: u.Role}
}
