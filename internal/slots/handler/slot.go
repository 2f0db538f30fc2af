package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"slotswapper/internal/slots/service"
	"slotswapper/pkg/contracts"
	apperrors "slotswapper/pkg/errors"
	httputil "slotswapper/pkg/http"
	"slotswapper/pkg/logger"
	"slotswapper/pkg/middleware"
	"slotswapper/pkg/model"
)

var _ contracts.Handler = (*SlotHandler)(nil)

type SlotHandler struct {
	service service.SlotService
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log,
	}
}

func (h *SlotHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	callerID, ok := h.caller(w, r, "ListMine")
	if !ok {
		return
	}

	slots, err := h.service.ListMine(r.Context(), callerID)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "ListMine", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	callerID, ok := h.caller(w, r, "Create")
	if !ok {
		return
	}

	var input model.SlotCreate
	if err := httputil.DecodeJSON(r, &input); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	slot, err := h.service.Create(r.Context(), callerID, &input)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, slot); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	callerID, ok := h.caller(w, r, "Update")
	if !ok {
		return
	}

	id := ps.ByName("id")
	if id == "" {
		h.writeError(w, "Update", apperrors.InvalidInput("ID parameter is required"))
		return
	}

	var updates model.SlotUpdate
	if err := httputil.DecodeJSON(r, &updates); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	slot, err := h.service.Update(r.Context(), callerID, id, &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	callerID, ok := h.caller(w, r, "Delete")
	if !ok {
		return
	}

	id := ps.ByName("id")
	if id == "" {
		h.writeError(w, "Delete", apperrors.InvalidInput("ID parameter is required"))
		return
	}

	if err := h.service.Delete(r.Context(), callerID, id); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SlotHandler) ListSwappable(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	callerID, ok := h.caller(w, r, "ListSwappable")
	if !ok {
		return
	}

	slots, err := h.service.ListSwappable(r.Context(), callerID)
	if err != nil {
		h.writeError(w, "ListSwappable", err)
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "ListSwappable", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) caller(w http.ResponseWriter, r *http.Request, handler string) (string, bool) {
	callerID, ok := middleware.CallerIDFromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
	}
	return callerID, ok
}

func (h *SlotHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/slots", h.ListMine)
	router.POST("/api/v1/slots", h.Create)
	router.PATCH("/api/v1/slots/id/:id", h.Update)
	router.DELETE("/api/v1/slots/id/:id", h.Delete)
	router.GET("/api/v1/swappable-slots", h.ListSwappable)
}
