// Package securitytarget builds the per-application security target: the
// applicant's descriptions and the catalog classes they claim.
package securitytarget

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/catalog"
	"github.com/itrc/evaluation-workflow/internal/domain/clock"
	"github.com/itrc/evaluation-workflow/internal/domain/errors"
	st "github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
	"github.com/itrc/evaluation-workflow/internal/domain/workflow"
	"github.com/itrc/evaluation-workflow/internal/metrics"
)

type Service struct {
	apps      ApplicationRepository
	targets   Repository
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

// NewService creates a new security target service
func NewService(apps ApplicationRepository, targets Repository, tx Transactor, cat *catalog.Catalog, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		apps:    apps,
		targets: targets,
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

// DescriptionsRequest replaces the product and TOE descriptions.
type DescriptionsRequest struct {
	ApplicationID      uuid.UUID
	ProductDescription string
	TOEDescription     string
}

// SelectionRequest claims a catalog class, optionally narrowed to a subclass.
type SelectionRequest struct {
	ApplicationID uuid.UUID
	ClassID       uuid.UUID
	SubclassID    *uuid.UUID
	Content       st.Content
}

// GetOrCreate returns the application's security target, creating an empty
// draft on first access. Concurrent first calls converge on one row.
func (s *Service) GetOrCreate(ctx context.Context, actor authz.Actor, applicationID uuid.UUID) (*st.SecurityTarget, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ActionViewSecurityTarget, authz.Owned(app.ApplicantID)); err != nil {
		return nil, err
	}

	target, err := s.loadOrCreate(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return s.withSelections(ctx, target)
}

// loadOrCreate returns the application's security target, inserting an empty
// draft when none exists yet.
func (s *Service) loadOrCreate(ctx context.Context, applicationID uuid.UUID) (*st.SecurityTarget, error) {
	target, err := s.targets.GetByApplication(ctx, applicationID)
	if err == nil || !errors.IsNotFound(err) {
		return target, err
	}

	fresh, err := st.NewSecurityTarget(applicationID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	created, err := s.targets.CreateIfAbsent(ctx, fresh)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create security target")
	}
	if created {
		s.logger.Debug("security target created",
			zap.String("application_id", applicationID.String()),
			zap.String("security_target_id", fresh.ID.String()))
	}
	return s.targets.GetByApplication(ctx, applicationID)
}

// Get returns the security target with its selections without creating one.
func (s *Service) Get(ctx context.Context, actor authz.Actor, applicationID uuid.UUID) (*st.SecurityTarget, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ActionViewSecurityTarget, authz.Owned(app.ApplicantID)); err != nil {
		return nil, err
	}
	target, err := s.targets.GetByApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return s.withSelections(ctx, target)
}

func (s *Service) UpdateDescriptions(ctx context.Context, actor authz.Actor, req DescriptionsRequest) (*st.SecurityTarget, error) {
	var target *st.SecurityTarget
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		_, t, err := s.editable(ctx, actor, req.ApplicationID)
		if err != nil {
			return err
		}
		if err := t.UpdateDescriptions(req.ProductDescription, req.TOEDescription, s.clock.Now()); err != nil {
			return err
		}
		if err := s.targets.Update(ctx, t); err != nil {
			return errors.Wrap(err, "failed to update security target")
		}
		target = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

// UpsertSelection inserts the selection or, when the security target already
// claims the same class and subclass, replaces its applicant content.
func (s *Service) UpsertSelection(ctx context.Context, actor authz.Actor, req SelectionRequest) (*st.ClassSelection, error) {
	var out *st.ClassSelection
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		app, target, err := s.editable(ctx, actor, req.ApplicationID)
		if err != nil {
			return err
		}
		if err := s.catalog.ValidateSelection(app.ProductTypeID, req.ClassID, req.SubclassID); err != nil {
			return err
		}

		now := s.clock.Now()
		candidate, err := st.NewClassSelection(target.ID, req.ClassID, req.SubclassID, req.Content, now)
		if err != nil {
			return err
		}

		existing, err := s.targets.FindSelection(ctx, candidate.Key())
		switch {
		case err == nil:
			if err := existing.UpdateContent(req.Content, now); err != nil {
				return err
			}
			if err := s.targets.UpdateSelection(ctx, existing); err != nil {
				return errors.Wrap(err, "failed to update class selection")
			}
			out = existing
		case errors.IsNotFound(err):
			if err := s.targets.CreateSelection(ctx, candidate); err != nil {
				return errors.Wrap(err, "failed to create class selection")
			}
			out = candidate
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveSelection deletes a selection from a draft security target.
func (s *Service) RemoveSelection(ctx context.Context, actor authz.Actor, selectionID uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		sel, err := s.targets.GetSelection(ctx, selectionID)
		if err != nil {
			return err
		}
		target, err := s.targets.GetByID(ctx, sel.SecurityTargetID)
		if err != nil {
			return err
		}
		if _, _, err := s.editable(ctx, actor, target.ApplicationID); err != nil {
			return err
		}
		return s.targets.DeleteSelection(ctx, selectionID)
	})
}

// Submit freezes the security target and moves the application to SUBMITTED
// with an estimated completion date from the product type.
func (s *Service) Submit(ctx context.Context, actor authz.Actor, securityTargetID uuid.UUID) (*st.SecurityTarget, error) {
	var (
		target *st.SecurityTarget
		app    *application.Application
	)
	now := s.clock.Now()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.targets.GetByID(ctx, securityTargetID)
		if err != nil {
			return err
		}
		a, err := s.apps.GetForUpdate(ctx, t.ApplicationID)
		if err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.ActionEditSecurityTarget, authz.Owned(a.ApplicantID)); err != nil {
			return err
		}
		pt, err := s.catalog.ProductType(a.ProductTypeID)
		if err != nil {
			return errors.NewInternalError("application references an unknown product type").WithCause(err)
		}

		count, err := s.targets.CountSelections(ctx, t.ID)
		if err != nil {
			return errors.Wrap(err, "failed to count class selections")
		}
		if err := t.Submit(count, now); err != nil {
			return err
		}
		if err := a.Submit(now, pt.EstimatedDays); err != nil {
			return err
		}
		if err := s.targets.Update(ctx, t); err != nil {
			return errors.Wrap(err, "failed to update security target")
		}
		if err := s.apps.Update(ctx, a); err != nil {
			return errors.Wrap(err, "failed to update application")
		}
		target, app = t, a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(ctx, "application", app.Status.String())
	s.logger.Info("security target submitted",
		zap.String("application_id", app.ID.String()),
		zap.String("security_target_id", target.ID.String()))
	if s.publisher != nil {
		s.publisher.Publish(ctx, workflow.NewEvent(workflow.EventSecurityTargetSubmitted,
			app.ID, target.ID, actor.ID, app.Status.String(), now).
			With("estimated_completion_date", app.EstimatedCompletionDate))
	}
	return target, nil
}

// editable loads the application and its security target, creating the target
// on first edit, and checks that the actor owns them and both are still drafts.
func (s *Service) editable(ctx context.Context, actor authz.Actor, applicationID uuid.UUID) (*application.Application, *st.SecurityTarget, error) {
	app, err := s.apps.GetForUpdate(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	if err := authz.Authorize(actor, authz.ActionEditSecurityTarget, authz.Owned(app.ApplicantID)); err != nil {
		return nil, nil, err
	}
	if !app.IsEditable() {
		return nil, nil, errors.NewPreconditionError("APPLICATION_NOT_EDITABLE",
			"security target can only change while the application is a draft").
			WithDetails(map[string]interface{}{"status": app.Status.String()})
	}
	target, err := s.loadOrCreate(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	if !target.IsDraft() {
		return nil, nil, errors.NewPreconditionError("SECURITY_TARGET_SUBMITTED", "security target has already been submitted")
	}
	return app, target, nil
}

func (s *Service) withSelections(ctx context.Context, target *st.SecurityTarget) (*st.SecurityTarget, error) {
	sels, err := s.targets.ListSelections(ctx, target.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list class selections")
	}
	if sels == nil {
		sels = []st.ClassSelection{}
	}
	target.Selections = sels
	return target, nil
}
