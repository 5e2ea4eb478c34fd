package rest

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/catalog"
	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
	"github.com/itrc/evaluation-workflow/internal/domain/report"
	"github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
	"github.com/itrc/evaluation-workflow/internal/domain/user"
	evalsvc "github.com/itrc/evaluation-workflow/internal/service/evaluation"
	"github.com/itrc/evaluation-workflow/internal/service/intake"
	stsvc "github.com/itrc/evaluation-workflow/internal/service/securitytarget"
)

// MockServices holds one mock per service interface.
type MockServices struct {
	Catalog         *MockCatalog
	Applications    *MockApplicationService
	SecurityTargets *MockSecurityTargetService
	Evaluations     *MockEvaluationService
	Reports         *MockReportService
}

func NewMockServices() *MockServices {
	return &MockServices{
		Catalog:         new(MockCatalog),
		Applications:    new(MockApplicationService),
		SecurityTargets: new(MockSecurityTargetService),
		Evaluations:     new(MockEvaluationService),
		Reports:         new(MockReportService),
	}
}

func (m *MockServices) AssertExpectations(t mock.TestingT) {
	m.Catalog.AssertExpectations(t)
	m.Applications.AssertExpectations(t)
	m.SecurityTargets.AssertExpectations(t)
	m.Evaluations.AssertExpectations(t)
	m.Reports.AssertExpectations(t)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ProductTypes() []catalog.ProductType {
	args := m.Called()
	return args.Get(0).([]catalog.ProductType)
}

func (m *MockCatalog) Classes(productTypeID uuid.UUID) ([]catalog.Class, error) {
	args := m.Called(productTypeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Class), args.Error(1)
}

func (m *MockCatalog) Help(classID uuid.UUID, subclassID *uuid.UUID) (catalog.Help, error) {
	args := m.Called(classID, subclassID)
	return args.Get(0).(catalog.Help), args.Error(1)
}

type MockApplicationService struct {
	mock.Mock
}

func (m *MockApplicationService) Create(ctx context.Context, actor authz.Actor, d application.Details) (*application.Application, error) {
	args := m.Called(ctx, actor, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.Application), args.Error(1)
}

func (m *MockApplicationService) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, d application.Details) (*application.Application, error) {
	args := m.Called(ctx, actor, id, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.Application), args.Error(1)
}

func (m *MockApplicationService) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*application.Application, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.Application), args.Error(1)
}

func (m *MockApplicationService) List(ctx context.Context, actor authz.Actor, req intake.ListRequest) ([]*application.Application, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*application.Application), args.Error(1)
}

func (m *MockApplicationService) DashboardStats(ctx context.Context, actor authz.Actor) (*intake.DashboardStats, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*intake.DashboardStats), args.Error(1)
}

type MockSecurityTargetService struct {
	mock.Mock
}

func (m *MockSecurityTargetService) GetOrCreate(ctx context.Context, actor authz.Actor, applicationID uuid.UUID) (*securitytarget.SecurityTarget, error) {
	args := m.Called(ctx, actor, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*securitytarget.SecurityTarget), args.Error(1)
}

func (m *MockSecurityTargetService) Get(ctx context.Context, actor authz.Actor, applicationID uuid.UUID) (*securitytarget.SecurityTarget, error) {
	args := m.Called(ctx, actor, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*securitytarget.SecurityTarget), args.Error(1)
}

func (m *MockSecurityTargetService) UpdateDescriptions(ctx context.Context, actor authz.Actor, req stsvc.DescriptionsRequest) (*securitytarget.SecurityTarget, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*securitytarget.SecurityTarget), args.Error(1)
}

func (m *MockSecurityTargetService) UpsertSelection(ctx context.Context, actor authz.Actor, req stsvc.SelectionRequest) (*securitytarget.ClassSelection, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*securitytarget.ClassSelection), args.Error(1)
}

func (m *MockSecurityTargetService) RemoveSelection(ctx context.Context, actor authz.Actor, selectionID uuid.UUID) error {
	return m.Called(ctx, actor, selectionID).Error(0)
}

func (m *MockSecurityTargetService) Submit(ctx context.Context, actor authz.Actor, securityTargetID uuid.UUID) (*securitytarget.SecurityTarget, error) {
	args := m.Called(ctx, actor, securityTargetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*securitytarget.SecurityTarget), args.Error(1)
}

type MockEvaluationService struct {
	mock.Mock
}

func (m *MockEvaluationService) CreateEvaluation(ctx context.Context, actor authz.Actor, applicationID uuid.UUID, evaluatorID *uuid.UUID) (*evaluation.Evaluation, error) {
	args := m.Called(ctx, actor, applicationID, evaluatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evaluation.Evaluation), args.Error(1)
}

func (m *MockEvaluationService) AssignEvaluator(ctx context.Context, actor authz.Actor, evaluationID, evaluatorID uuid.UUID) (*evaluation.Evaluation, error) {
	args := m.Called(ctx, actor, evaluationID, evaluatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evaluation.Evaluation), args.Error(1)
}

func (m *MockEvaluationService) Update(ctx context.Context, actor authz.Actor, evaluationID uuid.UUID, req evalsvc.UpdateRequest) (*evaluation.Evaluation, error) {
	args := m.Called(ctx, actor, evaluationID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evaluation.Evaluation), args.Error(1)
}

func (m *MockEvaluationService) CompleteEvaluation(ctx context.Context, actor authz.Actor, evaluationID uuid.UUID) (*evaluation.Evaluation, error) {
	args := m.Called(ctx, actor, evaluationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evaluation.Evaluation), args.Error(1)
}

func (m *MockEvaluationService) AggregateScore(ctx context.Context, actor authz.Actor, evaluationID uuid.UUID) (*decimal.Decimal, error) {
	args := m.Called(ctx, actor, evaluationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*decimal.Decimal), args.Error(1)
}

func (m *MockEvaluationService) RecordClassEvaluation(ctx context.Context, actor authz.Actor, selectionID uuid.UUID, req evalsvc.ClassEvaluationRequest) (*securitytarget.ClassSelection, error) {
	args := m.Called(ctx, actor, selectionID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*securitytarget.ClassSelection), args.Error(1)
}

func (m *MockEvaluationService) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*evaluation.Evaluation, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evaluation.Evaluation), args.Error(1)
}

func (m *MockEvaluationService) GetByApplication(ctx context.Context, actor authz.Actor, applicationID uuid.UUID) (*evaluation.Evaluation, error) {
	args := m.Called(ctx, actor, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evaluation.Evaluation), args.Error(1)
}

func (m *MockEvaluationService) List(ctx context.Context, actor authz.Actor, status *evaluation.Status) ([]*evaluation.Evaluation, error) {
	args := m.Called(ctx, actor, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*evaluation.Evaluation), args.Error(1)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Generate(ctx context.Context, actor authz.Actor, evaluationID uuid.UUID, title string) (*report.TechnicalReport, error) {
	args := m.Called(ctx, actor, evaluationID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.TechnicalReport), args.Error(1)
}

func (m *MockReportService) SubmitForReview(ctx context.Context, actor authz.Actor, reportID uuid.UUID) (*report.TechnicalReport, error) {
	args := m.Called(ctx, actor, reportID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.TechnicalReport), args.Error(1)
}

func (m *MockReportService) Review(ctx context.Context, actor authz.Actor, reportID uuid.UUID, decision, comments string) (*report.TechnicalReport, error) {
	args := m.Called(ctx, actor, reportID, decision, comments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.TechnicalReport), args.Error(1)
}

func (m *MockReportService) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*report.TechnicalReport, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.TechnicalReport), args.Error(1)
}

func (m *MockReportService) ListPending(ctx context.Context, actor authz.Actor) ([]*report.TechnicalReport, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*report.TechnicalReport), args.Error(1)
}

func (m *MockReportService) ListForActor(ctx context.Context, actor authz.Actor, status *report.Status) ([]*report.TechnicalReport, error) {
	args := m.Called(ctx, actor, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*report.TechnicalReport), args.Error(1)
}

func (m *MockReportService) OpenArtifact(ctx context.Context, actor authz.Actor, id uuid.UUID) (io.ReadCloser, report.Artifact, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, report.Artifact{}, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(report.Artifact), args.Error(2)
}

type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
