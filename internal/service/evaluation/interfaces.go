package evaluation

import (
	"context"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	eval "github.com/itrc/evaluation-workflow/internal/domain/evaluation"
	"github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
	"github.com/itrc/evaluation-workflow/internal/domain/user"
)

type ApplicationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*application.Application, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*application.Application, error)
	Update(ctx context.Context, a *application.Application) error
}

type Repository interface {
	Create(ctx context.Context, e *eval.Evaluation) error
	GetByID(ctx context.Context, id uuid.UUID) (*eval.Evaluation, error)
	GetByApplication(ctx context.Context, applicationID uuid.UUID) (*eval.Evaluation, error)
	Update(ctx context.Context, e *eval.Evaluation) error
	List(ctx context.Context, filter eval.Filter) ([]*eval.Evaluation, error)
}

// SecurityTargetRepository reads security targets and records evaluator verdicts
// on their selections.
type SecurityTargetRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*securitytarget.SecurityTarget, error)
	GetByApplication(ctx context.Context, applicationID uuid.UUID) (*securitytarget.SecurityTarget, error)
	ListSelections(ctx context.Context, securityTargetID uuid.UUID) ([]securitytarget.ClassSelection, error)
	GetSelection(ctx context.Context, id uuid.UUID) (*securitytarget.ClassSelection, error)
	UpdateSelection(ctx context.Context, s *securitytarget.ClassSelection) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
