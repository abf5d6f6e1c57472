package balance

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/pkg/middleware"
	"github.com/fkhayef/splitledger/pkg/response"
)

// Handler handles HTTP requests for balance reports
type Handler struct {
	service *Service
}

// NewHandler creates a new balance handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for balance endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/group/{groupId}", h.GroupBalances)
	r.Get("/group/{groupId}/user/{userId}", h.UserBalance)

	return r
}

// BalanceResponse is one member's line in a balance report
type BalanceResponse struct {
	UserID    int64        `json:"user_id"`
	TotalPaid money.Amount `json:"total_paid" swaggertype:"number"`
	TotalOwed money.Amount `json:"total_owed" swaggertype:"number"`
	Balance   money.Amount `json:"balance" swaggertype:"number"`
	Message   string       `json:"message"`
}

// GroupBalancesResponse is the balance report of a group
type GroupBalancesResponse struct {
	GroupID  int64              `json:"group_id"`
	Balances []*BalanceResponse `json:"balances"`
}

func toResponse(b *Balance) *BalanceResponse {
	return &BalanceResponse{
		UserID:    b.UserID,
		TotalPaid: b.TotalPaid,
		TotalOwed: b.TotalOwed,
		Balance:   b.Balance,
		Message:   b.Message(),
	}
}

// GroupBalances handles GET /balances/group/{groupId}
// @Summary      Group balances
// @Description  Net balance of every member: total paid minus total owed
// @Tags         balances
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=GroupBalancesResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /balances/group/{groupId} [get]
func (h *Handler) GroupBalances(w http.ResponseWriter, r *http.Request) {
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

	balances, err := h.service.GroupBalances(r.Context(), actorID, groupID)
	if err != nil {
		if errors.Is(err, group.ErrGroupNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		if errors.Is(err, ErrAccessDenied) {
			response.Forbidden(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to compute balances")
		return
	}

	resp := &GroupBalancesResponse{GroupID: groupID, Balances: make([]*BalanceResponse, len(balances))}
	for i, b := range balances {
		resp.Balances[i] = toResponse(b)
	}

	response.JSON(w, http.StatusOK, resp)
}

// UserBalance handles GET /balances/group/{groupId}/user/{userId}
// @Summary      Member balance
// @Tags         balances
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Param        userId path int true "User ID"
// @Success      200 {object} response.APIResponse{data=BalanceResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /balances/group/{groupId}/user/{userId} [get]
func (h *Handler) UserBalance(w http.ResponseWriter, r *http.Request) {
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

	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	b, err := h.service.UserBalance(r.Context(), actorID, groupID, userID)
	if err != nil {
		if errors.Is(err, group.ErrGroupNotFound) || errors.Is(err, ErrNotMember) {
			response.NotFound(w, err.Error())
			return
		}
		if errors.Is(err, ErrAccessDenied) {
			response.Forbidden(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to compute balance")
		return
	}

	response.JSON(w, http.StatusOK, toResponse(b))
}
