// Package reporting generates technical reports from completed evaluations and
// routes them through supervisor review.
package reporting

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/catalog"
	"github.com/itrc/evaluation-workflow/internal/domain/clock"
	"github.com/itrc/evaluation-workflow/internal/domain/errors"
	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
	"github.com/itrc/evaluation-workflow/internal/domain/report"
	"github.com/itrc/evaluation-workflow/internal/domain/user"
	"github.com/itrc/evaluation-workflow/internal/domain/workflow"
	"github.com/itrc/evaluation-workflow/internal/metrics"
)

type Service struct {
	apps      ApplicationRepository
	evals     EvaluationRepository
	targets   SecurityTargetRepository
	users     UserRepository
	reports   Repository
	store     ArtifactStore
	renderer  Renderer
	tx        Transactor
	catalog   *catalog.Catalog
	clock     clock.Clock
	publisher workflow.Publisher
	metrics   *metrics.Registry
	tracer    trace.Tracer
	logger    *zap.Logger
}

type Option func(*Service)

func WithPublisher(p workflow.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// Dependencies groups the collaborators of the report service.
type Dependencies struct {
	Applications    ApplicationRepository
	Evaluations     EvaluationRepository
	SecurityTargets SecurityTargetRepository
	Users           UserRepository
	Reports         Repository
	Store           ArtifactStore
	Renderer        Renderer
	Tx              Transactor
	Catalog         *catalog.Catalog
}

// NewService creates a new reporting service
func NewService(deps Dependencies, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		apps:     deps.Applications,
		evals:    deps.Evaluations,
		targets:  deps.SecurityTargets,
		users:    deps.Users,
		reports:  deps.Reports,
		store:    deps.Store,
		renderer: deps.Renderer,
		tx:       deps.Tx,
		catalog:  deps.Catalog,
		clock:    clock.RealClock{},
		tracer:   otel.Tracer("service.reporting"),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllocateReportNumber returns the next ITRC-ETR-<year>-NNNN number. It takes
// the year's numbering lock, so callers must be inside a transaction and
// insert the report before it commits.
func (s *Service) AllocateReportNumber(ctx context.Context, year int) (string, error) {
	if err := s.reports.LockNumbering(ctx, year); err != nil {
		return "", errors.Wrap(err, "failed to lock report numbering")
	}
	n, err := s.reports.CountWithPrefix(ctx, report.NumberPrefixForYear(year))
	if err != nil {
		return "", errors.Wrap(err, "failed to count reports")
	}
	return report.NextNumber(year, n), nil
}

// CollectSnapshot assembles the denormalized report data of an evaluation.
func (s *Service) CollectSnapshot(ctx context.Context, evaluationID uuid.UUID) (*report.Snapshot, error) {
	e, err := s.evals.GetByID(ctx, evaluationID)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.GetByID(ctx, e.ApplicationID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, e, app)
}

func (s *Service) snapshot(ctx context.Context, e *evaluation.Evaluation, app *application.Application) (*report.Snapshot, error) {
	target, err := s.targets.GetByApplication(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	sels, err := s.targets.ListSelections(ctx, target.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list class selections")
	}
	evaluator, err := s.optionalUser(ctx, e.EvaluatorID)
	if err != nil {
		return nil, err
	}
	applicant, err := s.optionalUser(ctx, app.ApplicantID)
	if err != nil {
		return nil, err
	}

	return report.BuildSnapshot(report.SnapshotInput{
		Evaluation:     e,
		Application:    app,
		Evaluator:      evaluator,
		Applicant:      applicant,
		SecurityTarget: target,
		Selections:     sels,
		Catalog:        s.catalog,
		Now:            s.clock.Now(),
	})
}

// optionalUser tolerates directory entries that no longer exist; the snapshot
// then carries an empty person.
func (s *Service) optionalUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.IsNotFound(err) {
		s.logger.Warn("user missing from directory", zap.String("user_id", id.String()))
		return nil, nil
	}
	return u, err
}

// RenderDocument builds the report document from a snapshot and renders it in
// the configured format.
func (s *Service) RenderDocument(snap *report.Snapshot, title string) ([]byte, error) {
	data, err := s.renderer.Render(report.BuildDocument(snap, title))
	if err != nil {
		return nil, errors.NewInternalError("failed to render report").WithCause(err)
	}
	return data, nil
}

// Generate produces the technical report of a completed evaluation. Numbering,
// snapshot, artifact and every status change happen in one transaction; the
// artifact is removed again when the transaction fails.
func (s *Service) Generate(ctx context.Context, actor authz.Actor, evaluationID uuid.UUID, title string) (rep *report.TechnicalReport, err error) {
	ctx, span := s.tracer.Start(ctx, "Service.Generate",
		trace.WithAttributes(attribute.String("evaluation.id", evaluationID.String())))
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordReportGeneration(ctx, float64(time.Since(start).Milliseconds()), err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "report generation failed")
		}
	}()

	var (
		app      *application.Application
		artifact string
	)
	now := s.clock.Now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.evals.GetByID(ctx, evaluationID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.ActionGenerateReport, authz.Resource{AssigneeID: e.EvaluatorID}); err != nil {
			return err
		}
		if err := e.CanGenerateReport(); err != nil {
			return err
		}
		active, err := s.reports.FindActiveByEvaluation(ctx, e.ID)
		if err == nil {
			conflict := errors.NewConflictError("an active report already exists for this evaluation").
				WithDetails(map[string]interface{}{"report_number": active.ReportNumber, "status": active.Status.String()})
			conflict.Code = "ACTIVE_REPORT_EXISTS"
			return conflict
		}
		if !errors.IsNotFound(err) {
			return err
		}

		a, err := s.apps.GetForUpdate(ctx, e.ApplicationID)
		if err != nil {
			return err
		}
		number, err := s.AllocateReportNumber(ctx, now.Year())
		if err != nil {
			return err
		}
		snap, err := s.snapshot(ctx, e, a)
		if err != nil {
			return err
		}

		reportTitle := title
		if reportTitle == "" {
			reportTitle = report.DefaultTitle(a.ProductName)
		}
		data, err := s.RenderDocument(snap, reportTitle)
		if err != nil {
			return err
		}
		path, size, err := s.store.Put(ctx, number+"."+s.renderer.Extension(), data)
		if err != nil {
			return errors.NewInternalError("failed to store report artifact").WithCause(err)
		}
		artifact = path

		r, err := report.NewTechnicalReport(e.ID, actor.ID, number, reportTitle, snap, now)
		if err != nil {
			return err
		}
		r.AttachArtifact(report.Artifact{Path: path, Size: size, Format: s.renderer.Format()}, now)
		if err := s.reports.Create(ctx, r); err != nil {
			return errors.Wrap(err, "failed to create report")
		}

		e.MarkReportGenerated(now)
		if err := s.evals.Update(ctx, e); err != nil {
			return errors.Wrap(err, "failed to update evaluation")
		}
		if err := a.MarkReportGenerated(now); err != nil {
			return err
		}
		if err := s.apps.Update(ctx, a); err != nil {
			return errors.Wrap(err, "failed to update application")
		}
		rep, app = r, a
		return nil
	})
	if err != nil {
		if artifact != "" {
			if derr := s.store.Delete(context.WithoutCancel(ctx), artifact); derr != nil {
				s.logger.Warn("orphaned report artifact", zap.String("path", artifact), zap.Error(derr))
			}
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("report.number", rep.ReportNumber))
	s.metrics.RecordTransition(ctx, "application", app.Status.String())
	s.logger.Info("technical report generated",
		zap.String("report_number", rep.ReportNumber),
		zap.String("evaluation_id", evaluationID.String()),
		zap.Int64("size", rep.Artifact.Size))
	s.publish(ctx, workflow.NewEvent(workflow.EventReportGenerated, app.ID, rep.ID, actor.ID, rep.Status.String(), now).
		With("report_number", rep.ReportNumber))
	return rep, nil
}

// SubmitForReview sends a generated report to the supervisor queue.
func (s *Service) SubmitForReview(ctx context.Context, actor authz.Actor, reportID uuid.UUID) (*report.TechnicalReport, error) {
	var (
		rep *report.TechnicalReport
		app *application.Application
	)
	now := s.clock.Now()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.reports.GetByID(ctx, reportID)
		if err != nil {
			return err
		}
		e, err := s.evals.GetByID(ctx, r.EvaluationID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.ActionSubmitReport, authz.Resource{AssigneeID: e.EvaluatorID}); err != nil {
			return err
		}
		if err := r.SubmitForReview(now); err != nil {
			return err
		}
		a, err := s.apps.GetForUpdate(ctx, e.ApplicationID)
		if err != nil {
			return err
		}
		if err := a.SendToSupervisor(now); err != nil {
			return err
		}
		if err := s.reports.Update(ctx, r); err != nil {
			return errors.Wrap(err, "failed to update report")
		}
		if err := s.apps.Update(ctx, a); err != nil {
			return errors.Wrap(err, "failed to update application")
		}
		rep, app = r, a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(ctx, "application", app.Status.String())
	s.publish(ctx, workflow.NewEvent(workflow.EventReportSubmitted, app.ID, rep.ID, actor.ID, rep.Status.String(), now).
		With("report_number", rep.ReportNumber))
	return rep, nil
}

// Review records the supervisor decision and moves the application on:
// APPROVED completes it, REJECTED rejects it and NEEDS_REVISION reopens it for
// a new report.
func (s *Service) Review(ctx context.Context, actor authz.Actor, reportID uuid.UUID, decision, comments string) (*report.TechnicalReport, error) {
	if err := authz.Authorize(actor, authz.ActionReviewReport, authz.Resource{}); err != nil {
		return nil, err
	}
	d, err := report.ParseDecision(decision)
	if err != nil {
		return nil, err
	}

	var (
		rep *report.TechnicalReport
		app *application.Application
	)
	now := s.clock.Now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.reports.GetByID(ctx, reportID)
		if err != nil {
			return err
		}
		if err := r.Review(actor.ID, d, comments, now); err != nil {
			return err
		}
		e, err := s.evals.GetByID(ctx, r.EvaluationID)
		if err != nil {
			return err
		}
		a, err := s.apps.GetForUpdate(ctx, e.ApplicationID)
		if err != nil {
			return err
		}
		switch d {
		case report.DecisionApproved:
			err = a.Complete(now)
		case report.DecisionRejected:
			err = a.Reject(now)
		case report.DecisionNeedsRevision:
			err = a.ReopenForRevision(now)
		}
		if err != nil {
			return err
		}
		if err := s.reports.Update(ctx, r); err != nil {
			return errors.Wrap(err, "failed to update report")
		}
		if err := s.apps.Update(ctx, a); err != nil {
			return errors.Wrap(err, "failed to update application")
		}
		rep, app = r, a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordReview(ctx, d.String())
	s.metrics.RecordTransition(ctx, "application", app.Status.String())
	s.logger.Info("technical report reviewed",
		zap.String("report_number", rep.ReportNumber),
		zap.String("decision", d.String()),
		zap.String("reviewer_id", actor.ID.String()))
	s.publish(ctx, workflow.NewEvent(workflow.EventReportReviewed, app.ID, rep.ID, actor.ID, rep.Status.String(), now).
		With("decision", d.String()).
		With("application_status", app.Status.String()))
	return rep, nil
}

func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*report.TechnicalReport, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	e, err := s.evals.GetByID(ctx, r.EvaluationID)
	if err != nil {
		return nil, err
	}
	res := authz.Resource{AssigneeID: e.EvaluatorID}
	if actor.Role == authz.RoleApplicant {
		app, err := s.apps.GetByID(ctx, e.ApplicationID)
		if err != nil {
			return nil, err
		}
		res.OwnerID = app.ApplicantID
	}
	if err := authz.Authorize(actor, authz.ActionViewReport, res); err != nil {
		return nil, err
	}
	return r, nil
}

// ListPending returns the supervisor review queue.
func (s *Service) ListPending(ctx context.Context, actor authz.Actor) ([]*report.TechnicalReport, error) {
	if err := authz.Authorize(actor, authz.ActionReviewReport, authz.Resource{}); err != nil {
		return nil, err
	}
	status := report.StatusSupervisorReview
	return s.list(ctx, report.Filter{Status: &status})
}

// ListForActor returns the reports visible to the actor.
func (s *Service) ListForActor(ctx context.Context, actor authz.Actor, status *report.Status) ([]*report.TechnicalReport, error) {
	filter := report.Filter{Status: status}
	id := actor.ID
	switch actor.Role {
	case authz.RoleApplicant:
		filter.ApplicantID = &id
	case authz.RoleEvaluator:
		filter.EvaluatorID = &id
	case authz.RoleSupervisor, authz.RoleGovernance, authz.RoleAdmin:
	default:
		return nil, errors.NewForbiddenError("unknown role")
	}
	return s.list(ctx, filter)
}

func (s *Service) list(ctx context.Context, filter report.Filter) ([]*report.TechnicalReport, error) {
	reps, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reports")
	}
	if reps == nil {
		reps = []*report.TechnicalReport{}
	}
	return reps, nil
}

// OpenArtifact returns the stored document of a report. The caller closes it.
func (s *Service) OpenArtifact(ctx context.Context, actor authz.Actor, id uuid.UUID) (io.ReadCloser, report.Artifact, error) {
	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, report.Artifact{}, err
	}
	if r.Artifact.Path == "" {
		return nil, report.Artifact{}, errors.NewNotFoundError("report artifact")
	}
	rc, size, err := s.store.Open(ctx, r.Artifact.Path)
	if err != nil {
		return nil, report.Artifact{}, err
	}
	a := r.Artifact
	a.Size = size
	return rc, a, nil
}

func (s *Service) publish(ctx context.Context, e *workflow.Event) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, e)
	}
}
