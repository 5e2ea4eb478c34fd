package evaluation

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/errors"
	"github.com/itrc/evaluation-workflow/internal/domain/securitytarget"
	"github.com/itrc/evaluation-workflow/internal/domain/workflow"
)

// ClassEvaluationRequest is an evaluator's verdict on one class selection.
type ClassEvaluationRequest struct {
	Status securitytarget.EvaluationStatus
	// Score in [0, 100]; nil leaves the selection unscored.
	Score *decimal.Decimal
	Notes string
}

// RecordClassEvaluation stores a verdict on a selection. The application must
// have an evaluation in progress and the caller must be its assignee.
func (s *Service) RecordClassEvaluation(ctx context.Context, actor authz.Actor, selectionID uuid.UUID, req ClassEvaluationRequest) (*securitytarget.ClassSelection, error) {
	var (
		sel   *securitytarget.ClassSelection
		appID uuid.UUID
	)
	now := s.clock.Now()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		loaded, err := s.targets.GetSelection(ctx, selectionID)
		if err != nil {
			return err
		}
		target, err := s.targets.GetByID(ctx, loaded.SecurityTargetID)
		if err != nil {
			return err
		}

		e, err := s.evals.GetByApplication(ctx, target.ApplicationID)
		if errors.IsNotFound(err) {
			return errors.NewPreconditionError("EVALUATION_NOT_STARTED", "application has no evaluation in progress").
				WithDetails(map[string]interface{}{"application_id": target.ApplicationID})
		}
		if err != nil {
			return err
		}
		if err := authz.Authorize(actor, authz.ActionEvaluateSelection, authz.Resource{AssigneeID: e.EvaluatorID}); err != nil {
			return err
		}
		if err := e.EnsureScorable(); err != nil {
			return err
		}

		if err := loaded.RecordEvaluation(req.Status, req.Score, req.Notes, now); err != nil {
			return err
		}
		if err := s.targets.UpdateSelection(ctx, loaded); err != nil {
			return errors.Wrap(err, "failed to update class selection")
		}
		sel, appID = loaded, target.ApplicationID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSelectionEvaluated(ctx, sel.EvaluationStatus.String())
	s.logger.Debug("class selection evaluated",
		zap.String("selection_id", sel.ID.String()),
		zap.String("status", sel.EvaluationStatus.String()))

	event := workflow.NewEvent(workflow.EventSelectionEvaluated, appID, sel.ID, actor.ID, sel.EvaluationStatus.String(), now)
	if sel.EvaluationScore != nil {
		event.With("score", sel.EvaluationScore.String())
	}
	s.publish(ctx, event)
	return sel, nil
}
