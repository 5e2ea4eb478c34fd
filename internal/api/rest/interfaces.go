package rest

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
	"github.com/itrc/evaluation-workflow/internal/domain/report"
	"github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
	evalsvc "github.com/itrc/evaluation-workflow/internal/service/evaluation"
	"github.com/itrc/evaluation-workflow/internal/service/intake"
	stsvc "github.com/itrc/evaluation-workflow/internal/service/securitytarget"
)

// ApplicationService is the intake surface used by the handlers.
type ApplicationService interface {
	Create(ctx context.Context, actor authz.Actor, d application.Details) (*application.Application, error)
	Update(ctx context.Context, actor authz.Actor, id uuid.UUID, d application.Details) (*application.Application, error)
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*application.Application, error)
	List(ctx context.Context, actor authz.Actor, req intake.ListRequest) ([]*application.Application, error)
	DashboardStats(ctx context.Context, actor authz.Actor) (*intake.DashboardStats, error)
}

type SecurityTargetService interface {
	GetOrCreate(ctx context.Context, actor authz.Actor, applicationID uuid.UUID) (*securitytarget.SecurityTarget, error)
	Get(ctx context.Context, actor authz.Actor, applicationID uuid.UUID) (*securitytarget.SecurityTarget, error)
	UpdateDescriptions(ctx context.Context, actor authz.Actor, req stsvc.DescriptionsRequest) (*securitytarget.SecurityTarget, error)
	UpsertSelection(ctx context.Context, actor authz.Actor, req stsvc.SelectionRequest) (*securitytarget.ClassSelection, error)
	RemoveSelection(ctx context.Context, actor authz.Actor, selectionID uuid.UUID) error
	Submit(ctx context.Context, actor authz.Actor, securityTargetID uuid.UUID) (*securitytarget.SecurityTarget, error)
}

type EvaluationService interface {
	CreateEvaluation(ctx context.Context, actor authz.Actor, applicationID uuid.UUID, evaluatorID *uuid.UUID) (*evaluation.Evaluation, error)
	AssignEvaluator(ctx context.Context, actor authz.Actor, evaluationID, evaluatorID uuid.UUID) (*evaluation.Evaluation, error)
	Update(ctx context.Context, actor authz.Actor, evaluationID uuid.UUID, req evalsvc.UpdateRequest) (*evaluation.Evaluation, error)
	CompleteEvaluation(ctx context.Context, actor authz.Actor, evaluationID uuid.UUID) (*evaluation.Evaluation, error)
	AggregateScore(ctx context.Context, actor authz.Actor, evaluationID uuid.UUID) (*decimal.Decimal, error)
	RecordClassEvaluation(ctx context.Context, actor authz.Actor, selectionID uuid.UUID, req evalsvc.ClassEvaluationRequest) (*securitytarget.ClassSelection, error)
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*evaluation.Evaluation, error)
	GetByApplication(ctx context.Context, actor authz.Actor, applicationID uuid.UUID) (*evaluation.Evaluation, error)
	List(ctx context.Context, actor authz.Actor, status *evaluation.Status) ([]*evaluation.Evaluation, error)
}

type ReportService interface {
	Generate(ctx context.Context, actor authz.Actor, evaluationID uuid.UUID, title string) (*report.TechnicalReport, error)
	SubmitForReview(ctx context.Context, actor authz.Actor, reportID uuid.UUID) (*report.TechnicalReport, error)
	Review(ctx context.Context, actor authz.Actor, reportID uuid.UUID, decision, comments string) (*report.TechnicalReport, error)
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*report.TechnicalReport, error)
	ListPending(ctx context.Context, actor authz.Actor) ([]*report.TechnicalReport, error)
	ListForActor(ctx context.Context, actor authz.Actor, status *report.Status) ([]*report.TechnicalReport, error)
	OpenArtifact(ctx context.Context, actor authz.Actor, id uuid.UUID) (io.ReadCloser, report.Artifact, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }
