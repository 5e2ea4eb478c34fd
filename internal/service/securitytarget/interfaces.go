package securitytarget

import (
	"context"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	st "github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
)

// ApplicationRepository is the slice of application storage the builder needs.
type ApplicationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*application.Application, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*application.Application, error)
	Update(ctx context.Context, a *application.Application) error
}

// Repository stores security targets and their class selections.
type Repository interface {
	CreateIfAbsent(ctx context.Context, target *st.SecurityTarget) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*st.SecurityTarget, error)
	GetByApplication(ctx context.Context, applicationID uuid.UUID) (*st.SecurityTarget, error)
	Update(ctx context.Context, target *st.SecurityTarget) error

	ListSelections(ctx context.Context, securityTargetID uuid.UUID) ([]st.ClassSelection, error)
	CountSelections(ctx context.Context, securityTargetID uuid.UUID) (int, error)
	GetSelection(ctx context.Context, id uuid.UUID) (*st.ClassSelection, error)
	FindSelection(ctx context.Context, key st.SelectionKey) (*st.ClassSelection, error)
	CreateSelection(ctx context.Context, s *st.ClassSelection) error
	UpdateSelection(ctx context.Context, s *st.ClassSelection) error
	DeleteSelection(ctx context.Context, id uuid.UUID) error
}

// Transactor runs fn in a single database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
