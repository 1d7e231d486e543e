package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pmitsakas/thesisflow/internal/models"
)

func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req models.CreateApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", nil)
		return
	}

	application, err := h.applicationService.Apply(r.Context(), actorFrom(r), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeCreated(w, application)
}

func (h *Handler) ListMyApplications(w http.ResponseWriter, r *http.Request) {
	applications, err := h.applicationService.ListMine(r.Context(), actorFrom(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, applications)
}

func (h *Handler) ListPendingApplications(w http.ResponseWriter, r *http.Request) {
	applications, err := h.applicationService.ListPending(r.Context(), actorFrom(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, applications)
}

func (h *Handler) ListDissertationApplications(w http.ResponseWriter, r *http.Request) {
	applications, err := h.applicationService.ListByDissertation(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, applications)
}

func (h *Handler) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	result, err := h.orchestrator.ApproveApplication(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, result)
}

func (h *Handler) RejectApplication(w http.ResponseWriter, r *http.Request) {
	application, err := h.orchestrator.RejectApplication(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, application)
}

func (h *Handler) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := h.applicationService.Withdraw(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeMessage(w, "Application deleted successfully")
}
