package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
	"github.com/itrc/evaluation-workflow/internal/domain/report"
	"github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
	"github.com/itrc/evaluation-workflow/internal/domain/user"
)

// UserRepository mock
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *UserRepository) ListByRole(ctx context.Context, role authz.Role) ([]*user.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*user.User), args.Error(1)
}

// ApplicationRepository mock
type ApplicationRepository struct {
	mock.Mock
}

func (m *ApplicationRepository) Create(ctx context.Context, a *application.Application) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*application.Application, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.Application), args.Error(1)
}

func (m *ApplicationRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*application.Application, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.Application), args.Error(1)
}

func (m *ApplicationRepository) Update(ctx context.Context, a *application.Application) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *ApplicationRepository) List(ctx context.Context, filter application.Filter) ([]*application.Application, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*application.Application), args.Error(1)
}

func (m *ApplicationRepository) CountByStatus(ctx context.Context, filter application.Filter) (map[application.Status]int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[application.Status]int), args.Error(1)
}

// SecurityTargetRepository mock
type SecurityTargetRepository struct {
	mock.Mock
}

func (m *SecurityTargetRepository) CreateIfAbsent(ctx context.Context, st *securitytarget.SecurityTarget) (bool, error) {
	args := m.Called(ctx, st)
	return args.Bool(0), args.Error(1)
}

func (m *SecurityTargetRepository) GetByID(ctx context.Context, id uuid.UUID) (*securitytarget.SecurityTarget, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*securitytarget.SecurityTarget), args.Error(1)
}

func (m *SecurityTargetRepository) GetByApplication(ctx context.Context, applicationID uuid.UUID) (*securitytarget.SecurityTarget, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*securitytarget.SecurityTarget), args.Error(1)
}

func (m *SecurityTargetRepository) Update(ctx context.Context, st *securitytarget.SecurityTarget) error {
	args := m.Called(ctx, st)
	return args.Error(0)
}

func (m *SecurityTargetRepository) ListSelections(ctx context.Context, securityTargetID uuid.UUID) ([]securitytarget.ClassSelection, error) {
	args := m.Called(ctx, securityTargetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]securitytarget.ClassSelection), args.Error(1)
}

func (m *SecurityTargetRepository) CountSelections(ctx context.Context, securityTargetID uuid.UUID) (int, error) {
	args := m.Called(ctx, securityTargetID)
	return args.Int(0), args.Error(1)
}

func (m *SecurityTargetRepository) GetSelection(ctx context.Context, id uuid.UUID) (*securitytarget.ClassSelection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*securitytarget.ClassSelection), args.Error(1)
}

func (m *SecurityTargetRepository) FindSelection(ctx context.Context, key securitytarget.SelectionKey) (*securitytarget.ClassSelection, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*securitytarget.ClassSelection), args.Error(1)
}

func (m *SecurityTargetRepository) CreateSelection(ctx context.Context, s *securitytarget.ClassSelection) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *SecurityTargetRepository) UpdateSelection(ctx context.Context, s *securitytarget.ClassSelection) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *SecurityTargetRepository) DeleteSelection(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// EvaluationRepository mock
type EvaluationRepository struct {
	mock.Mock
}

func (m *EvaluationRepository) Create(ctx context.Context, e *evaluation.Evaluation) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *EvaluationRepository) GetByID(ctx context.Context, id uuid.UUID) (*evaluation.Evaluation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evaluation.Evaluation), args.Error(1)
}

func (m *EvaluationRepository) GetByApplication(ctx context.Context, applicationID uuid.UUID) (*evaluation.Evaluation, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evaluation.Evaluation), args.Error(1)
}

func (m *EvaluationRepository) Update(ctx context.Context, e *evaluation.Evaluation) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *EvaluationRepository) List(ctx context.Context, filter evaluation.Filter) ([]*evaluation.Evaluation, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*evaluation.Evaluation), args.Error(1)
}

// ReportRepository mock
type ReportRepository struct {
	mock.Mock
}

func (m *ReportRepository) LockNumbering(ctx context.Context, year int) error {
	args := m.Called(ctx, year)
	return args.Error(0)
}

func (m *ReportRepository) CountWithPrefix(ctx context.Context, prefix string) (int, error) {
	args := m.Called(ctx, prefix)
	return args.Int(0), args.Error(1)
}

func (m *ReportRepository) Create(ctx context.Context, r *report.TechnicalReport) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*report.TechnicalReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.TechnicalReport), args.Error(1)
}

func (m *ReportRepository) Update(ctx context.Context, r *report.TechnicalReport) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *ReportRepository) FindActiveByEvaluation(ctx context.Context, evaluationID uuid.UUID) (*report.TechnicalReport, error) {
	args := m.Called(ctx, evaluationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.TechnicalReport), args.Error(1)
}

func (m *ReportRepository) List(ctx context.Context, filter report.Filter) ([]*report.TechnicalReport, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*report.TechnicalReport), args.Error(1)
}
