package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"slotswapper/internal/swaps/service"
	"slotswapper/internal/swaps/validator"
	"slotswapper/pkg/contracts"
	apperrors "slotswapper/pkg/errors"
	httputil "slotswapper/pkg/http"
	"slotswapper/pkg/logger"
	"slotswapper/pkg/middleware"
	"slotswapper/pkg/model"
	"slotswapper/pkg/validation"
)

var _ contracts.Handler = (*SwapHandler)(nil)

type SwapHandler struct {
	service   service.SwapService
	validator *validator.SwapValidator
	log       *logger.Logger
}

func NewSwapHandler(service service.SwapService, validator *validator.SwapValidator, log *logger.Logger) *SwapHandler {
	return &SwapHandler{
		service:   service,
		validator: validator,
		log:       log,
	}
}

func (h *SwapHandler) Propose(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	callerID, ok := h.caller(w, r, "Propose")
	if !ok {
		return
	}

	var req model.ProposeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Propose", err)
		return
	}
	if err := h.validator.ValidatePropose(&req); err != nil {
		h.writeError(w, "Propose", validation.AppError("Invalid swap request", err))
		return
	}

	swap, err := h.service.Propose(r.Context(), callerID, req.MySlotID, req.TheirSlotID)
	if err != nil {
		h.writeError(w, "Propose", err)
		return
	}

	if err := httputil.WriteCreated(w, swap); err != nil {
		h.log.Error("failed to write created response", "handler", "Propose", "operation", "WriteCreated", "error", err)
	}
}

func (h *SwapHandler) Respond(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	callerID, ok := h.caller(w, r, "Respond")
	if !ok {
		return
	}

	var req model.RespondRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Respond", err)
		return
	}
	if err := h.validator.ValidateRespond(&req); err != nil {
		h.writeError(w, "Respond", validation.AppError("Invalid swap response", err))
		return
	}

	status, err := h.service.Respond(r.Context(), callerID, ps.ByName("requestId"), bool(*req.Accept))
	if err != nil {
		h.writeError(w, "Respond", err)
		return
	}

	if err := httputil.WriteSuccess(w, model.StatusResponse{Status: status}); err != nil {
		h.log.Error("failed to write success response", "handler", "Respond", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SwapHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	callerID, ok := h.caller(w, r, "Cancel")
	if !ok {
		return
	}

	status, err := h.service.Cancel(r.Context(), callerID, ps.ByName("requestId"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, model.StatusResponse{Status: status}); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SwapHandler) ListRequests(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	callerID, ok := h.caller(w, r, "ListRequests")
	if !ok {
		return
	}

	live, err := h.service.ListLiveRequests(r.Context(), callerID)
	if err != nil {
		h.writeError(w, "ListRequests", err)
		return
	}

	if err := httputil.WriteSuccess(w, live); err != nil {
		h.log.Error("failed to write success response", "handler", "ListRequests", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SwapHandler) ListHistory(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	callerID, ok := h.caller(w, r, "ListHistory")
	if !ok {
		return
	}

	items, err := h.service.ListHistory(r.Context(), callerID)
	if err != nil {
		h.writeError(w, "ListHistory", err)
		return
	}

	if err := httputil.WriteSuccess(w, items); err != nil {
		h.log.Error("failed to write success response", "handler", "ListHistory", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SwapHandler) caller(w http.ResponseWriter, r *http.Request, handler string) (string, bool) {
	callerID, ok := middleware.CallerIDFromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
	}
	return callerID, ok
}

func (h *SwapHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SwapHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/swap-request", h.Propose)
	router.POST("/api/v1/swap-response/:requestId", h.Respond)
	router.POST("/api/v1/swap-cancel/:requestId", h.Cancel)
	router.GET("/api/v1/requests", h.ListRequests)
	router.GET("/api/v1/swap-history", h.ListHistory)
}
