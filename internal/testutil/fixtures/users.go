package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/user"
)

// UserBuilder builds test User entities
type UserBuilder struct {
	t    *testing.T
	user user.User
}

// NewUserBuilder creates an active applicant with unique email.
func NewUserBuilder(t *testing.T) *UserBuilder {
	t.Helper()
	id := uuid.New()
	return &UserBuilder{
		t: t,
		user: user.User{
			ID:          id,
			Email:       "user-" + id.String()[:8] + "@example.com",
			FullName:    "Test User",
			Role:        authz.RoleApplicant,
			CompanyName: "TechSafe Solutions",
			Active:      true,
			CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func (b *UserBuilder) WithID(id uuid.UUID) *UserBuilder {
	b.user.ID = id
	return b
}

func (b *UserBuilder) WithRole(role authz.Role) *UserBuilder {
	b.user.Role = role
	return b
}

func (b *UserBuilder) WithName(name string) *UserBuilder {
	b.user.FullName = name
	return b
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.user.Email = email
	return b
}

func (b *UserBuilder) Inactive() *UserBuilder {
	b.user.Active = false
	return b
}

func (b *UserBuilder) Build() *user.User {
	u := b.user
	return &u
}

// Actor returns the authenticated identity of a built user.
func Actor(u *user.User) authz.Actor {
	return authz.Actor{ID: u.ID, Role: u.Role}
}
