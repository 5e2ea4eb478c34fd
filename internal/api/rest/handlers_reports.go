package rest

import (
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/itrc/evaluation-workflow/internal/domain/report"
)

type ReportHandler struct {
	*BaseHandler
	reports ReportService
}

func NewReportHandler(base *BaseHandler, reports ReportService) *ReportHandler {
	return &ReportHandler{BaseHandler: base, reports: reports}
}

func (h *ReportHandler) generate(w http.ResponseWriter, r *http.Request) {
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
	var req GenerateReportRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	rep, err := h.reports.Generate(r.Context(), actor, id, req.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusCreated, rep)
}

func (h *ReportHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var status *report.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := report.ParseStatus(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		status = &parsed
	}
	reps, err := h.reports.ListForActor(r.Context(), actor, status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, reps)
}

func (h *ReportHandler) pending(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	reps, err := h.reports.ListPending(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, reps)
}

func (h *ReportHandler) get(w http.ResponseWriter, r *http.Request) {
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
	rep, err := h.reports.Get(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, rep)
}

func (h *ReportHandler) submit(w http.ResponseWriter, r *http.Request) {
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
	rep, err := h.reports.SubmitForReview(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, rep)
}

func (h *ReportHandler) review(w http.ResponseWriter, r *http.Request) {
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
	var req ReviewRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	rep, err := h.reports.Review(r.Context(), actor, id, req.Decision, req.Comments)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, rep)
}

func (h *ReportHandler) download(w http.ResponseWriter, r *http.Request) {
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
	body, artifact, err := h.reports.OpenArtifact(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType(artifact.Format))
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(artifact.Path)+`"`)
	if artifact.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(artifact.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "artifact download interrupted", "report_id", id, "error", err)
	}
}

func contentType(format string) string {
	switch format {
	case "html":
		return "text/html; charset=utf-8"
	case "markdown":
		return "text/markdown; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
