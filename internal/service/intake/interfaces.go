package intake

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
)

// ApplicationRepository defines the interface for application storage
type ApplicationRepository interface {
	Create(ctx context.Context, a *application.Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*application.Application, error)
	Update(ctx context.Context, a *application.Application) error
	List(ctx context.Context, filter application.Filter) ([]*application.Application, error)
	CountByStatus(ctx context.Context, filter application.Filter) (map[application.Status]int, error)
}

// EvaluationRepository is used to count an evaluator's own evaluations.
type EvaluationRepository interface {
	List(ctx context.Context, filter evaluation.Filter) ([]*evaluation.Evaluation, error)
}

// StatsCache stores dashboard statistics between transitions.
type StatsCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}
