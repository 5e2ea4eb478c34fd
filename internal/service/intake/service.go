// Package intake manages applications before and around evaluation: creation,
// editing, role-scoped listings and dashboard statistics.
package intake

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/catalog"
	"github.com/itrc/evaluation-workflow/internal/domain/clock"
	"github.com/itrc/evaluation-workflow/internal/domain/errors"
	"github.com/itrc/evaluation-workflow/internal/domain/workflow"
	"github.com/itrc/evaluation-workflow/internal/metrics"
)

const defaultListLimit = 100

type Service struct {
	apps      ApplicationRepository
	evals     EvaluationRepository
	catalog   *catalog.Catalog
	cache     StatsCache
	statsTTL  time.Duration
	clock     clock.Clock
	publisher workflow.Publisher
	metrics   *metrics.Registry
	logger    *zap.Logger
}

type Option func(*Service)

// WithStatsCache caches dashboard statistics for ttl.
func WithStatsCache(c StatsCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.statsTTL = ttl
	}
}

func WithPublisher(p workflow.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates a new intake service
func NewService(apps ApplicationRepository, evals EvaluationRepository, cat *catalog.Catalog, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		apps:    apps,
		evals:   evals,
		catalog: cat,
		clock:   clock.RealClock{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a draft application owned by the actor.
func (s *Service) Create(ctx context.Context, actor authz.Actor, d application.Details) (*application.Application, error) {
	if err := authz.Authorize(actor, authz.ActionCreateApplication, authz.Resource{}); err != nil {
		return nil, err
	}
	if err := s.checkProductType(d.ProductTypeID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	app, err := application.NewApplication(actor.ID, d, now)
	if err != nil {
		return nil, err
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, errors.Wrap(err, "failed to create application")
	}

	s.metrics.RecordTransition(ctx, "application", app.Status.String())
	s.publish(ctx, workflow.NewEvent(workflow.EventApplicationCreated, app.ID, app.ID, actor.ID, app.Status.String(), now).
		With("application_number", app.Number))
	return app, nil
}

// Update edits a draft application. Only the owner (or an admin) may edit.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, d application.Details) (*application.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ActionUpdateApplication, authz.Owned(app.ApplicantID)); err != nil {
		return nil, err
	}
	if err := s.checkProductType(d.ProductTypeID); err != nil {
		return nil, err
	}
	if err := app.Update(d, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.apps.Update(ctx, app); err != nil {
		return nil, errors.Wrap(err, "failed to update application")
	}
	return app, nil
}

func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*application.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ActionViewApplication, authz.Owned(app.ApplicantID)); err != nil {
		return nil, err
	}
	return app, nil
}

// ListRequest narrows a listing within what the actor may see.
type ListRequest struct {
	Status *application.Status
	Limit  int
	Offset int
}

// List returns the applications visible to the actor: applicants see their
// own, evaluators see work that is open for evaluation, everyone else sees all.
func (s *Service) List(ctx context.Context, actor authz.Actor, req ListRequest) ([]*application.Application, error) {
	filter, err := scope(actor)
	if err != nil {
		return nil, err
	}
	filter.Status = req.Status
	filter.Limit = req.Limit
	if filter.Limit <= 0 || filter.Limit > defaultListLimit {
		filter.Limit = defaultListLimit
	}
	if req.Offset > 0 {
		filter.Offset = req.Offset
	}

	apps, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list applications")
	}
	if apps == nil {
		apps = []*application.Application{}
	}
	return apps, nil
}

func scope(actor authz.Actor) (application.Filter, error) {
	switch actor.Role {
	case authz.RoleApplicant:
		id := actor.ID
		return application.Filter{ApplicantID: &id}, nil
	case authz.RoleEvaluator:
		return application.Filter{Statuses: []application.Status{
			application.StatusSubmitted,
			application.StatusInEvaluation,
		}}, nil
	case authz.RoleSupervisor, authz.RoleGovernance, authz.RoleAdmin:
		return application.Filter{}, nil
	}
	return application.Filter{}, errors.NewForbiddenError("unknown role")
}

func (s *Service) checkProductType(id uuid.UUID) error {
	pt, err := s.catalog.ProductType(id)
	if err != nil {
		return errors.NewValidationError("INVALID_PRODUCT_TYPE", "product type does not exist").
			WithDetails(map[string]interface{}{"product_type_id": id})
	}
	if !pt.Active {
		return errors.NewValidationError("INACTIVE_PRODUCT_TYPE", "product type is not accepting applications").
			WithDetails(map[string]interface{}{"product_type": pt.Code})
	}
	return nil
}

func (s *Service) publish(ctx context.Context, e *workflow.Event) {
	s.InvalidateStats(ctx)
	if s.publisher != nil {
		s.publisher.Publish(ctx, e)
	}
}
