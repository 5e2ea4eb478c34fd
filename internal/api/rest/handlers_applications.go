package rest

import (
	"net/http"

	"github.com/itrc/evaluation-workflow/internal/domain/application"
	"github.com/itrc/evaluation-workflow/internal/service/intake"
	stsvc "github.com/itrc/evaluation-workflow/internal/service/securitytarget"
)

// ApplicationHandler serves applications and their security targets.
type ApplicationHandler struct {
	*BaseHandler
	apps    ApplicationService
	targets SecurityTargetService
	evals   EvaluationService
}

func NewApplicationHandler(base *BaseHandler, apps ApplicationService, targets SecurityTargetService, evals EvaluationService) *ApplicationHandler {
	return &ApplicationHandler{BaseHandler: base, apps: apps, targets: targets, evals: evals}
}

func (h *ApplicationHandler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req ApplicationRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	app, err := h.apps.Create(r.Context(), actor, req.Details())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusCreated, app)
}

func (h *ApplicationHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req := intake.ListRequest{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := application.ParseStatus(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		req.Status = &status
	}
	if req.Limit, err = queryInt(r, "limit", 0); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Offset, err = queryInt(r, "offset", 0); err != nil {
		h.writeError(w, r, err)
		return
	}
	apps, err := h.apps.List(r.Context(), actor, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, apps)
}

func (h *ApplicationHandler) stats(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.apps.DashboardStats(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, stats)
}

func (h *ApplicationHandler) get(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	app, err := h.apps.Get(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, app)
}

func (h *ApplicationHandler) update(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req ApplicationRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	app, err := h.apps.Update(r.Context(), actor, id, req.Details())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, app)
}

func (h *ApplicationHandler) getSecurityTarget(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	target, err := h.targets.GetOrCreate(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, target)
}

func (h *ApplicationHandler) updateSecurityTarget(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req DescriptionsRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	target, err := h.targets.UpdateDescriptions(r.Context(), actor, stsvc.DescriptionsRequest{
		ApplicationID:      id,
		ProductDescription: req.ProductDescription,
		TOEDescription:     req.TOEDescription,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, target)
}

func (h *ApplicationHandler) upsertSelection(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req SelectionRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sel, err := h.targets.UpsertSelection(r.Context(), actor, stsvc.SelectionRequest{
		ApplicationID: id,
		ClassID:       req.ClassID,
		SubclassID:    req.SubclassID,
		Content:       req.Content(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, sel)
}

func (h *ApplicationHandler) removeSelection(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.targets.RemoveSelection(r.Context(), actor, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ApplicationHandler) submitSecurityTarget(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	target, err := h.targets.Get(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	submitted, err := h.targets.Submit(r.Context(), actor, target.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, submitted)
}

func (h *ApplicationHandler) getEvaluation(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.evals.GetByApplication(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, e)
}
