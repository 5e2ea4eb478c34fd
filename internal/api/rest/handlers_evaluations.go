package rest

import (
	"net/http"

	"github.com/itrc/evaluation-workflow/internal/domain/evaluation"
)

type EvaluationHandler struct {
	*BaseHandler
	evals EvaluationService
}

func NewEvaluationHandler(base *BaseHandler, evals EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{BaseHandler: base, evals: evals}
}

func (h *EvaluationHandler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req CreateEvaluationRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.evals.CreateEvaluation(r.Context(), actor, req.ApplicationID, req.EvaluatorID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusCreated, e)
}

func (h *EvaluationHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var status *evaluation.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := evaluation.ParseStatus(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		status = &parsed
	}
	evals, err := h.evals.List(r.Context(), actor, status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, evals)
}

func (h *EvaluationHandler) get(w http.ResponseWriter, r *http.Request) {
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
	e, err := h.evals.Get(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, e)
}

func (h *EvaluationHandler) update(w http.ResponseWriter, r *http.Request) {
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
	var req UpdateEvaluationRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.evals.Update(r.Context(), actor, id, req.toService())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, e)
}

func (h *EvaluationHandler) assign(w http.ResponseWriter, r *http.Request) {
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
	var req AssignEvaluatorRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.evals.AssignEvaluator(r.Context(), actor, id, req.EvaluatorID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, e)
}

func (h *EvaluationHandler) complete(w http.ResponseWriter, r *http.Request) {
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
	e, err := h.evals.CompleteEvaluation(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, e)
}

func (h *EvaluationHandler) score(w http.ResponseWriter, r *http.Request) {
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
	score, err := h.evals.AggregateScore(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, ScoreResponse{EvaluationID: id, Score: score})
}

func (h *EvaluationHandler) recordClassEvaluation(w http.ResponseWriter, r *http.Request) {
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
	var req ClassEvaluationRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sel, err := h.evals.RecordClassEvaluation(r.Context(), actor, id, req.toService())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, sel)
}
