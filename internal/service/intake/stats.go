package intake

import (
	"context"

	"go.uber.org/zap"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/domain/authz"
	"github.com/itrc/evaluation-workflow/internal/domain/errors"
	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
	"github.com/itrc/evaluation-workflow/internal/domain/workflow"
	"github.com/itrc/evaluation-workflow/internal/infrastructure/cache"
)

// DashboardStats summarizes the applications visible to an actor.
type DashboardStats struct {
	TotalApplications     int            `json:"total_applications"`
	PendingApplications   int            `json:"pending_applications"`
	InEvaluation          int            `json:"in_evaluation"`
	CompletedApplications int            `json:"completed_applications"`
	MyApplications        *int           `json:"my_applications,omitempty"`
	MyEvaluations         *int           `json:"my_evaluations,omitempty"`
	ByStatus              map[string]int `json:"by_status"`
}

// pendingStatuses is what counts as "pending" for each audience.
func pendingStatuses(role authz.Role) []application.Status {
	switch role {
	case authz.RoleApplicant:
		return []application.Status{application.StatusDraft, application.StatusSubmitted}
	case authz.RoleEvaluator:
		return []application.Status{application.StatusSubmitted}
	default:
		return []application.Status{application.StatusSubmitted, application.StatusInReview}
	}
}

func statsKey(actor authz.Actor) string {
	switch actor.Role {
	case authz.RoleApplicant, authz.RoleEvaluator:
		return cache.StatsPrefix + actor.Role.String() + ":" + actor.ID.String()
	}
	return cache.StatsPrefix + actor.Role.String()
}

// DashboardStats returns per-status counts scoped to the actor. Results are
// served from the cache until the next workflow transition or the TTL.
func (s *Service) DashboardStats(ctx context.Context, actor authz.Actor) (*DashboardStats, error) {
	if err := authz.Authorize(actor, authz.ActionViewStats, authz.Resource{}); err != nil {
		return nil, err
	}

	key := statsKey(actor)
	if s.cache != nil {
		var cached DashboardStats
		err := s.cache.GetJSON(ctx, key, &cached)
		switch {
		case err == nil:
			s.metrics.RecordCacheLookup(ctx, "stats", true)
			return &cached, nil
		case !cache.IsMiss(err):
			s.logger.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCacheLookup(ctx, "stats", false)
	}

	stats, err := s.computeStats(ctx, actor)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.statsTTL > 0 {
		if err := s.cache.SetJSON(ctx, key, stats, s.statsTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return stats, nil
}

func (s *Service) computeStats(ctx context.Context, actor authz.Actor) (*DashboardStats, error) {
	var filter application.Filter
	if actor.Role == authz.RoleApplicant {
		id := actor.ID
		filter.ApplicantID = &id
	}

	counts, err := s.apps.CountByStatus(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count applications")
	}

	stats := &DashboardStats{ByStatus: make(map[string]int, len(application.Statuses))}
	for _, st := range application.Statuses {
		n := counts[st]
		stats.ByStatus[st.String()] = n
		stats.TotalApplications += n
	}
	for _, st := range pendingStatuses(actor.Role) {
		stats.PendingApplications += counts[st]
	}
	stats.InEvaluation = counts[application.StatusInEvaluation]
	stats.CompletedApplications = counts[application.StatusCompleted]

	switch actor.Role {
	case authz.RoleApplicant:
		mine := stats.TotalApplications
		stats.MyApplications = &mine
	case authz.RoleEvaluator:
		id := actor.ID
		evals, err := s.evals.List(ctx, evaluation.Filter{EvaluatorID: &id})
		if err != nil {
			return nil, errors.Wrap(err, "failed to count evaluations")
		}
		mine := len(evals)
		stats.MyEvaluations = &mine
	}
	return stats, nil
}

// InvalidateStats drops every cached dashboard. Failures are logged only.
func (s *Service) InvalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.DeletePrefix(ctx, cache.StatsPrefix); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// StatsInvalidator returns a publisher that drops cached dashboards on every
// workflow event, so other services' transitions are reflected immediately.
func (s *Service) StatsInvalidator() workflow.Publisher {
	return workflow.PublisherFunc(func(ctx context.Context, _ *workflow.Event) {
		s.InvalidateStats(ctx)
	})
}
