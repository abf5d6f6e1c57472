package recurring

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/pkg/middleware"
	"github.com/fkhayef/splitledger/pkg/response"
)

// Handler handles HTTP requests for recurring templates
type Handler struct {
	service *Service
}

// NewHandler creates a new recurring template handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for recurring endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/group/{groupId}", h.ListByGroup)
	r.Post("/group/{groupId}/run", h.Run)
	r.Get("/{id}", h.GetByID)
	r.Delete("/{id}", h.Delete)

	return r
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, split.ErrShareMismatch):
		response.Validation(w, "SHARE_MISMATCH", err.Error(), split.DetailsOf(err))
	case errors.Is(err, split.ErrInvalidAmount):
		response.Validation(w, "INVALID_AMOUNT", err.Error(), nil)
	case errors.Is(err, split.ErrInvalidPolicy):
		response.Validation(w, "INVALID_POLICY", err.Error(), nil)
	case errors.Is(err, ErrInvalidFrequency),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrEndBeforeStart),
		errors.Is(err, ErrNotMember),
		errors.Is(err, expense.ErrDescriptionRequired),
		errors.Is(err, split.ErrMissingInputs),
		errors.Is(err, split.ErrNoParticipants),
		errors.Is(err, split.ErrDuplicateMember):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrTemplateNotFound), errors.Is(err, group.ErrGroupNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotCreator), errors.Is(err, ErrAccessDenied):
		response.Forbidden(w, err.Error())
	default:
		slog.ErrorContext(r.Context(), fallback, "error", err)
		response.InternalError(w, fallback)
	}
}

// Create handles POST /recurring
// @Summary      Create a recurring expense
// @Description  Store a template that creates an expense on every occurrence
// @Tags         recurring
// @Accept       json
// @Produce      json
// @Param        request body CreateTemplateRequest true "Recurring template"
// @Success      201 {object} response.APIResponse{data=TemplateResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /recurring [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	t, err := h.service.Create(r.Context(), actorID, &req)
	if err != nil {
		writeError(w, r, err, "Failed to create recurring template")
		return
	}

	response.JSON(w, http.StatusCreated, t.ToResponse())
}

// Run handles POST /recurring/group/{groupId}/run
// @Summary      Run a group's due recurring expenses now
// @Tags         recurring
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=RunResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /recurring/group/{groupId}/run [post]
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, err := strconv.ParseInt(chi.URLParam(r, "groupId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	processed, err := h.service.RunNow(r.Context(), actorID, groupID)
	if err != nil {
		writeError(w, r, err, "Failed to process recurring expenses")
		return
	}

	response.JSON(w, http.StatusOK, &RunResponse{Processed: processed})
}

// ListByGroup handles GET /recurring/group/{groupId}
// @Summary      List a group's recurring expenses
// @Tags         recurring
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]TemplateResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /recurring/group/{groupId} [get]
func (h *Handler) ListByGroup(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, err := strconv.ParseInt(chi.URLParam(r, "groupId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	templates, err := h.service.ListByGroupID(r.Context(), actorID, groupID)
	if err != nil {
		writeError(w, r, err, "Failed to list recurring templates")
		return
	}

	resp := make([]*TemplateResponse, len(templates))
	for i, t := range templates {
		resp[i] = t.ToResponse()
	}

	response.JSON(w, http.StatusOK, resp)
}

// GetByID handles GET /recurring/{id}
// @Summary      Get a recurring expense
// @Tags         recurring
// @Produce      json
// @Param        id path int true "Template ID"
// @Success      200 {object} response.APIResponse{data=TemplateResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /recurring/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid template ID")
		return
	}

	t, err := h.service.GetByID(r.Context(), actorID, id)
	if err != nil {
		writeError(w, r, err, "Failed to get recurring template")
		return
	}

	response.JSON(w, http.StatusOK, t.ToResponse())
}

// Delete handles DELETE /recurring/{id}
// @Summary      Delete a recurring expense
// @Description  Stops future occurrences. Expenses already created are kept.
// @Tags         recurring
// @Param        id path int true "Template ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /recurring/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid template ID")
		return
	}

	if err := h.service.Delete(r.Context(), actorID, id); err != nil {
		writeError(w, r, err, "Failed to delete recurring template")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Recurring template deleted successfully"})
}
