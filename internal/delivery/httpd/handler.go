package httpd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pmitsakas/thesisflow/internal/middleware"
	"github.com/pmitsakas/thesisflow/internal/models"
	"github.com/pmitsakas/thesisflow/internal/service"
	"github.com/rs/zerolog"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	dissertationService service.DissertationService
	applicationService  service.ApplicationService
	orchestrator        service.AssignmentOrchestrator
	notificationService service.NotificationService
	store               Pinger
	logger              zerolog.Logger
}

func NewHandler(
	dissertationService service.DissertationService,
	applicationService service.ApplicationService,
	orchestrator service.AssignmentOrchestrator,
	notificationService service.NotificationService,
	store Pinger,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		dissertationService: dissertationService,
		applicationService:  applicationService,
		orchestrator:        orchestrator,
		notificationService: notificationService,
		store:               store,
		logger:              logger,
	}
}

// RegisterRoutes mounts the API. throttle guards the endpoints that create
// requests (applications and proposals); nil disables it.
func (h *Handler) RegisterRoutes(router chi.Router, auth *middleware.Authenticator, throttle func(http.Handler) http.Handler) {
	if throttle == nil {
		throttle = func(next http.Handler) http.Handler { return next }
	}
	supervisors := middleware.RequireRole(models.RoleTeacher, models.RoleAdmin)
	students := middleware.RequireRole(models.RoleStudent)

	router.Get("/health", h.HealthCheck)

	router.Route("/api/v1", func(api chi.Router) {
		api.Use(auth.Authenticate)

		api.Route("/dissertations", func(r chi.Router) {
			r.Get("/available", h.ListAvailableDissertations)
			r.Get("/my", h.ListMyDissertations)
			r.With(supervisors).Get("/pending-proposals", h.ListPendingProposals)
			r.Get("/{id}", h.GetDissertation)

			r.With(middleware.RequireRole(models.RoleTeacher)).Post("/", h.CreateDissertation)
			r.With(students, throttle).Post("/propose", h.ProposeDissertation)

			r.Group(func(r chi.Router) {
				r.Use(supervisors)
				r.Put("/{id}", h.UpdateDissertation)
				r.Delete("/{id}", h.DeleteDissertation)
				r.Patch("/{id}/assign", h.AssignDissertation)
				r.Patch("/{id}/status", h.UpdateDissertationStatus)
				r.Patch("/{id}/progress", h.UpdateDissertationProgress)
				r.Patch("/{id}/approve-proposal", h.ApproveProposal)
				r.Patch("/{id}/reject-proposal", h.RejectProposal)
			})
		})

		api.Route("/applications", func(r chi.Router) {
			r.With(students, throttle).Post("/", h.CreateApplication)
			r.With(students).Get("/my", h.ListMyApplications)
			r.Delete("/{id}", h.DeleteApplication)

			r.Group(func(r chi.Router) {
				r.Use(supervisors)
				r.Get("/pending", h.ListPendingApplications)
				r.Get("/dissertation/{id}", h.ListDissertationApplications)
				r.Patch("/{id}/approve", h.ApproveApplication)
				r.Patch("/{id}/reject", h.RejectApplication)
			})
		})

		api.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Patch("/mark-all-read", h.MarkAllNotificationsRead)
			r.Delete("/clear-all", h.ClearNotifications)
			r.Patch("/{id}/read", h.MarkNotificationRead)
		})
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	response := map[string]any{
		"status":    "healthy",
		"service":   "thesisflow",
		"timestamp": time.Now().UTC(),
	}

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			h.logger.Error().Err(err).Msg("Health check failed")
			status = http.StatusServiceUnavailable
			response["status"] = "unhealthy"
		}
	}

	writeJSON(w, status, response)
}

func actorFrom(r *http.Request) models.Actor {
	actor, _ := middleware.ActorFromContext(r.Context())
	return actor
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error": apiError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeCreated(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeSuccess(w, map[string]any{"message": message})
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{models.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{models.ErrAccessDenied, http.StatusForbidden, "ACCESS_DENIED"},
	{models.ErrRoleMismatch, http.StatusForbidden, "ROLE_MISMATCH"},
	{models.ErrAlreadyAssigned, http.StatusConflict, "ALREADY_ASSIGNED"},
	{models.ErrDuplicateApplication, http.StatusConflict, "APPLICATION_EXISTS"},
	{models.ErrNotAvailable, http.StatusBadRequest, "NOT_AVAILABLE"},
	{models.ErrAlreadyProcessed, http.StatusBadRequest, "ALREADY_PROCESSED"},
	{models.ErrInvalidState, http.StatusBadRequest, "INVALID_STATE"},
	{models.ErrInvalidTransition, http.StatusBadRequest, "INVALID_STATUS_TRANSITION"},
}

// handleServiceError maps a service failure to the response envelope.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", verr.Fields)
		return
	}

	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			writeError(w, c.status, c.code, err.Error(), nil)
			return
		}
	}

	middleware.LoggerFromContext(r.Context()).Error().
		Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("Request failed")
	writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Internal server error", nil)
}
