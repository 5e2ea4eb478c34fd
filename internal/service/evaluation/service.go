// Package evaluation drives an application through evaluation: assignment,
// per-class verdicts, completion gates and the weighted aggregate score.
package evaluation

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/catalog"
	"github.com/itrc/evaluation-workflow/internal/domain/clock"
	"github.com/itrc/evaluation-workflow/internal/domain/errors"
	eval "github.com/itrc/evaluation-workflow/internal/domain/evaluation"
	"github.com/itrc/evaluation-workflow/internal/domain/workflow"
	"github.com/itrc/evaluation-workflow/internal/metrics"
)

type Service struct {
	apps      ApplicationRepository
	evals     Repository
	targets   SecurityTargetRepository
	users     UserRepository
	tx        Transactor
	catalog   *catalog.Catalog
	clock     clock.Clock
	publisher workflow.Publisher
	metrics   *metrics.Registry
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

// NewService creates a new evaluation service
func NewService(
	apps ApplicationRepository,
	evals Repository,
	targets SecurityTargetRepository,
	users UserRepository,
	tx Transactor,
	cat *catalog.Catalog,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		apps:    apps,
		evals:   evals,
		targets: targets,
		users:   users,
		tx:      tx,
		catalog: cat,
		clock:   clock.RealClock{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEvaluation starts the evaluation of a SUBMITTED application. With a
// nil evaluatorID the calling evaluator assigns themselves. A second
// evaluation conflicts whoever asks for it.
func (s *Service) CreateEvaluation(ctx context.Context, actor authz.Actor, applicationID uuid.UUID, evaluatorID *uuid.UUID) (*eval.Evaluation, error) {
	current, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureStartable(ctx, current); err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ActionCreateEvaluation, authz.Resource{}); err != nil {
		return nil, err
	}
	assignee, err := s.resolveEvaluator(ctx, actor, evaluatorID)
	if err != nil {
		return nil, err
	}

	var (
		e   *eval.Evaluation
		app *application.Application
	)
	now := s.clock.Now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.apps.GetForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if err := s.ensureStartable(ctx, a); err != nil {
			return err
		}

		fresh, err := eval.NewEvaluation(applicationID, assignee, now)
		if err != nil {
			return err
		}
		if err := s.evals.Create(ctx, fresh); err != nil {
			return errors.Wrap(err, "failed to create evaluation")
		}
		if err := a.StartEvaluation(now); err != nil {
			return err
		}
		if err := s.apps.Update(ctx, a); err != nil {
			return errors.Wrap(err, "failed to update application")
		}
		e, app = fresh, a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.EvaluationStarted(ctx)
	s.metrics.RecordTransition(ctx, "application", app.Status.String())
	s.logger.Info("evaluation started",
		zap.String("evaluation_id", e.ID.String()),
		zap.String("application_id", app.ID.String()),
		zap.String("evaluator_id", assignee.String()))
	s.publish(ctx, workflow.NewEvent(workflow.EventEvaluationCreated, app.ID, e.ID, actor.ID, e.Status.String(), now).
		With("evaluator_id", assignee.String()))
	return e, nil
}

// ensureStartable fails with a conflict when the application already has an
// evaluation or is not SUBMITTED.
func (s *Service) ensureStartable(ctx context.Context, a *application.Application) error {
	existing, err := s.evals.GetByApplication(ctx, a.ID)
	if err == nil {
		return conflict("EVALUATION_EXISTS", "an evaluation already exists for this application").
			WithDetails(map[string]interface{}{"evaluation_id": existing.ID})
	}
	if !errors.IsNotFound(err) {
		return err
	}
	if a.Status != application.StatusSubmitted {
		return conflict("APPLICATION_NOT_SUBMITTED", "only submitted applications can be evaluated").
			WithDetails(map[string]interface{}{"status": a.Status.String()})
	}
	return nil
}

// AssignEvaluator hands an open evaluation to another active evaluator.
func (s *Service) AssignEvaluator(ctx context.Context, actor authz.Actor, evaluationID, evaluatorID uuid.UUID) (*eval.Evaluation, error) {
	if err := authz.Authorize(actor, authz.ActionAssignEvaluator, authz.Resource{}); err != nil {
		return nil, err
	}
	if _, err := s.resolveEvaluator(ctx, actor, &evaluatorID); err != nil {
		return nil, err
	}

	var e *eval.Evaluation
	now := s.clock.Now()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		loaded, err := s.evals.GetByID(ctx, evaluationID)
		if err != nil {
			return err
		}
		if err := loaded.Reassign(evaluatorID, now); err != nil {
			return err
		}
		if err := s.evals.Update(ctx, loaded); err != nil {
			return errors.Wrap(err, "failed to update evaluation")
		}
		e = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, workflow.NewEvent(workflow.EventEvaluatorAssigned, e.ApplicationID, e.ID, actor.ID, e.Status.String(), now).
		With("evaluator_id", evaluatorID.String()))
	return e, nil
}

// UpdateRequest carries a partial evaluation update. Nil fields are unchanged.
type UpdateRequest struct {
	Checklist       eval.ChecklistUpdate
	Findings        *string
	Recommendations *string
	// OnHold pauses (true) or resumes (false) the evaluation.
	OnHold *bool
}

func (s *Service) Update(ctx context.Context, actor authz.Actor, evaluationID uuid.UUID, req UpdateRequest) (*eval.Evaluation, error) {
	var e *eval.Evaluation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		loaded, err := s.evals.GetByID(ctx, evaluationID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.ActionUpdateEvaluation, authz.Resource{AssigneeID: loaded.EvaluatorID}); err != nil {
			return err
		}

		now := s.clock.Now()
		if err := loaded.UpdateChecklist(req.Checklist, now); err != nil {
			return err
		}
		loaded.UpdateNotes(req.Findings, req.Recommendations, now)
		if req.OnHold != nil {
			switch {
			case *req.OnHold && loaded.Status != eval.StatusOnHold:
				err = loaded.Hold(now)
			case !*req.OnHold && loaded.Status == eval.StatusOnHold:
				err = loaded.Resume(now)
			}
			if err != nil {
				return err
			}
		}
		if err := s.evals.Update(ctx, loaded); err != nil {
			return errors.Wrap(err, "failed to update evaluation")
		}
		e = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// CompleteEvaluation closes the evaluation once every gate is ticked, freezes
// the aggregate score and moves the application to EVALUATION_COMPLETED.
func (s *Service) CompleteEvaluation(ctx context.Context, actor authz.Actor, evaluationID uuid.UUID) (*eval.Evaluation, error) {
	var (
		e   *eval.Evaluation
		app *application.Application
	)
	now := s.clock.Now()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		loaded, err := s.evals.GetByID(ctx, evaluationID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.ActionUpdateEvaluation, authz.Resource{AssigneeID: loaded.EvaluatorID}); err != nil {
			return err
		}
		a, err := s.apps.GetForUpdate(ctx, loaded.ApplicationID)
		if err != nil {
			return err
		}
		score, err := s.aggregate(ctx, loaded.ApplicationID)
		if err != nil {
			return err
		}
		if err := loaded.Complete(score, now); err != nil {
			return err
		}
		if err := a.CompleteEvaluation(now); err != nil {
			return err
		}
		if err := s.evals.Update(ctx, loaded); err != nil {
			return errors.Wrap(err, "failed to update evaluation")
		}
		if err := s.apps.Update(ctx, a); err != nil {
			return errors.Wrap(err, "failed to update application")
		}
		e, app = loaded, a
		return nil
	})
	if err != nil {
		return nil, err
	}

	var scoreValue *float64
	if e.OverallScore != nil {
		f := e.OverallScore.InexactFloat64()
		scoreValue = &f
	}
	s.metrics.EvaluationCompleted(ctx, scoreValue)
	s.metrics.RecordTransition(ctx, "application", app.Status.String())

	event := workflow.NewEvent(workflow.EventEvaluationCompleted, app.ID, e.ID, actor.ID, e.Status.String(), now)
	if e.OverallScore != nil {
		event.With("overall_score", e.OverallScore.String())
	}
	s.publish(ctx, event)
	return e, nil
}

// AggregateScore returns the current weighted mean of the scored selections,
// or nil when none is scored.
func (s *Service) AggregateScore(ctx context.Context, actor authz.Actor, evaluationID uuid.UUID) (*decimal.Decimal, error) {
	e, err := s.Get(ctx, actor, evaluationID)
	if err != nil {
		return nil, err
	}
	return s.aggregate(ctx, e.ApplicationID)
}

func (s *Service) aggregate(ctx context.Context, applicationID uuid.UUID) (*decimal.Decimal, error) {
	target, err := s.targets.GetByApplication(ctx, applicationID)
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sels, err := s.targets.ListSelections(ctx, target.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list class selections")
	}

	scores := make([]eval.WeightedScore, 0, len(sels))
	for _, sel := range sels {
		weight, ok := s.catalog.Weight(sel.ClassID)
		if !ok {
			s.logger.Warn("selection references a class missing from the catalog",
				zap.String("selection_id", sel.ID.String()),
				zap.String("class_id", sel.ClassID.String()))
			continue
		}
		scores = append(scores, eval.WeightedScore{Score: sel.EvaluationScore, Weight: weight})
	}
	return eval.AggregateScore(scores), nil
}

func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*eval.Evaluation, error) {
	e, err := s.evals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.authorizeView(ctx, actor, e)
}

func (s *Service) GetByApplication(ctx context.Context, actor authz.Actor, applicationID uuid.UUID) (*eval.Evaluation, error) {
	e, err := s.evals.GetByApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return s.authorizeView(ctx, actor, e)
}

func (s *Service) authorizeView(ctx context.Context, actor authz.Actor, e *eval.Evaluation) (*eval.Evaluation, error) {
	res := authz.Resource{AssigneeID: e.EvaluatorID}
	if actor.Role == authz.RoleApplicant {
		app, err := s.apps.GetByID(ctx, e.ApplicationID)
		if err != nil {
			return nil, err
		}
		res.OwnerID = app.ApplicantID
	}
	if err := authz.Authorize(actor, authz.ActionViewEvaluation, res); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the evaluations visible to the actor: applicants see those of
// their applications, evaluators their own assignments, everyone else all.
func (s *Service) List(ctx context.Context, actor authz.Actor, status *eval.Status) ([]*eval.Evaluation, error) {
	filter := eval.Filter{Status: status}
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

	evals, err := s.evals.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list evaluations")
	}
	if evals == nil {
		evals = []*eval.Evaluation{}
	}
	return evals, nil
}

func (s *Service) resolveEvaluator(ctx context.Context, actor authz.Actor, evaluatorID *uuid.UUID) (uuid.UUID, error) {
	if evaluatorID == nil || *evaluatorID == uuid.Nil {
		if actor.Role != authz.RoleEvaluator {
			return uuid.Nil, errors.NewValidationError("EVALUATOR_REQUIRED", "an evaluator must be specified")
		}
		return actor.ID, nil
	}
	u, err := s.users.GetByID(ctx, *evaluatorID)
	if err != nil {
		if errors.IsNotFound(err) {
			return uuid.Nil, errors.NewValidationError("INVALID_EVALUATOR", "evaluator does not exist")
		}
		return uuid.Nil, err
	}
	if !u.CanEvaluate() {
		return uuid.Nil, errors.NewValidationError("INVALID_EVALUATOR", "user is not an active evaluator").
			WithDetails(map[string]interface{}{"user_id": u.ID})
	}
	return u.ID, nil
}

func (s *Service) publish(ctx context.Context, e *workflow.Event) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, e)
	}
}

func conflict(code, message string) *errors.AppError {
	err := errors.NewConflictError(message)
	err.Code = code
	return err
}
