package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pmitsakas/thesisflow/internal/models"
)

func (h *Handler) CreateDissertation(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDissertationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", nil)
		return
	}

	dissertation, err := h.dissertationService.CreateDissertation(r.Context(), actorFrom(r), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeCreated(w, dissertation)
}

func (h *Handler) ProposeDissertation(w http.ResponseWriter, r *http.Request) {
	var req models.ProposeDissertationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", nil)
		return
	}

	dissertation, err := h.dissertationService.ProposeDissertation(r.Context(), actorFrom(r), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeCreated(w, dissertation)
}

func (h *Handler) GetDissertation(w http.ResponseWriter, r *http.Request) {
	dissertation, err := h.dissertationService.GetDissertation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, dissertation)
}

func (h *Handler) ListAvailableDissertations(w http.ResponseWriter, r *http.Request) {
	dissertations, err := h.dissertationService.ListAvailable(r.Context(), r.URL.Query().Get("track"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, dissertations)
}

func (h *Handler) ListMyDissertations(w http.ResponseWriter, r *http.Request) {
	dissertations, err := h.dissertationService.ListMine(r.Context(), actorFrom(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, dissertations)
}

func (h *Handler) ListPendingProposals(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.dissertationService.ListPendingProposals(r.Context(), actorFrom(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, proposals)
}

func (h *Handler) UpdateDissertation(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateDissertationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", nil)
		return
	}

	dissertation, err := h.dissertationService.UpdateDissertation(r.Context(), actorFrom(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, dissertation)
}

func (h *Handler) DeleteDissertation(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.DeleteDissertation(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeMessage(w, "Dissertation deleted successfully")
}

func (h *Handler) AssignDissertation(w http.ResponseWriter, r *http.Request) {
	var req models.AssignDissertationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", nil)
		return
	}

	result, err := h.orchestrator.AssignDissertation(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.StudentID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, result)
}

func (h *Handler) UpdateDissertationStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", nil)
		return
	}

	dissertation, err := h.dissertationService.UpdateStatus(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, dissertation)
}

func (h *Handler) UpdateDissertationProgress(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProgressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", nil)
		return
	}
	if req.ProgressPercentage == nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed",
			map[string]string{"progress_percentage": "Progress is required"})
		return
	}

	dissertation, err := h.dissertationService.UpdateProgress(r.Context(), actorFrom(r), chi.URLParam(r, "id"), *req.ProgressPercentage)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, dissertation)
}

func (h *Handler) ApproveProposal(w http.ResponseWriter, r *http.Request) {
	result, err := h.orchestrator.ApproveProposal(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, result)
}

func (h *Handler) RejectProposal(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.RejectProposal(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeMessage(w, "Proposal rejected")
}
