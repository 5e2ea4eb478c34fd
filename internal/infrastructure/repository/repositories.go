package repository

import (
	"context"

	"github.com/itrc/evaluation-workflow/internal/infrastructure/database"
)

// Conn hands out the transaction bound to ctx, or the pool.
// *database.ConnectionPool satisfies it.
type Conn interface {
	Querier(ctx context.Context) database.DBTX
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Repositories holds all repository instances
type Repositories struct {
	Users           *UserRepository
	Applications    *ApplicationRepository
	SecurityTargets *SecurityTargetRepository
	Evaluations     *EvaluationRepository
	Reports         *ReportRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(conn Conn) *Repositories {
	return &Repositories{
		Users:           NewUserRepository(conn),
		Applications:    NewApplicationRepository(conn),
		SecurityTargets: NewSecurityTargetRepository(conn),
		Evaluations:     NewEvaluationRepository(conn),
		Reports:         NewReportRepository(conn),
	}
}
