package reporting

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
	"github.com/itrc/evaluation-workflow/internal/domain/report"
	"github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
	"github.com/itrc/evaluation-workflow/internal/domain/user"
)

type ApplicationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*application.Application, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*application.Application, error)
	Update(ctx context.Context, a *application.Application) error
}

type EvaluationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*evaluation.Evaluation, error)
	Update(ctx context.Context, e *evaluation.Evaluation) error
}

type SecurityTargetRepository interface {
	GetByApplication(ctx context.Context, applicationID uuid.UUID) (*securitytarget.SecurityTarget, error)
	ListSelections(ctx context.Context, securityTargetID uuid.UUID) ([]securitytarget.ClassSelection, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Repository stores technical reports. LockNumbering must run inside a
// transaction and holds until it ends.
type Repository interface {
	LockNumbering(ctx context.Context, year int) error
	CountWithPrefix(ctx context.Context, prefix string) (int, error)
	Create(ctx context.Context, r *report.TechnicalReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*report.TechnicalReport, error)
	Update(ctx context.Context, r *report.TechnicalReport) error
	FindActiveByEvaluation(ctx context.Context, evaluationID uuid.UUID) (*report.TechnicalReport, error)
	List(ctx context.Context, filter report.Filter) ([]*report.TechnicalReport, error)
}

// ArtifactStore keeps rendered report documents.
type ArtifactStore interface {
	Put(ctx context.Context, name string, data []byte) (string, int64, error)
	Open(ctx context.Context, path string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, path string) error
}

// Renderer turns a report document into bytes of one format.
type Renderer interface {
	Render(doc *report.Document) ([]byte, error)
	Format() string
	Extension() string
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
