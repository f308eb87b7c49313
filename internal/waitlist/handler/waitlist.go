package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"resourcehub/internal/waitlist/service"
	"resourcehub/pkg/config"
	apperrors "resourcehub/pkg/errors"
	httputil "resourcehub/pkg/http"
	"resourcehub/pkg/logger"
	"resourcehub/pkg/model"
)

type WaitlistHandler struct {
	service service.WaitlistService
	log     *logger.Logger
}

func NewWaitlistHandler(service service.WaitlistService, log *logger.Logger) *WaitlistHandler {
	return &WaitlistHandler{
		service: service,
		log:     log,
	}
}

type joinWaitlistRequest struct {
	ResourceID string    `json:"resource_id"`
	SlotStart  time.Time `json:"slot_start"`
	SlotEnd    time.Time `json:"slot_end"`
	Priority   int       `json:"priority"`
}

func (h *WaitlistHandler) Join(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requesterID, err := requesterFromRequest(r)
	if err != nil {
		h.writeError(w, "Join", err)
		return
	}

	var req joinWaitlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Join", apperrors.InvalidInput("Invalid request body"))
		return
	}

	entry := &model.WaitlistEntry{
		ResourceID:  req.ResourceID,
		RequesterID: requesterID,
		SlotStart:   req.SlotStart,
		SlotEnd:     req.SlotEnd,
		Priority:    req.Priority,
	}

	if err := h.service.Join(r.Context(), entry); err != nil {
		h.writeError(w, "Join", err)
		return
	}

	if err := httputil.WriteCreated(w, entry); err != nil {
		h.log.Error("failed to write created response", "handler", "Join", "error", err)
	}
}

type positionResponse struct {
	EntryID  string `json:"entry_id"`
	Position int    `json:"position"`
}

func (h *WaitlistHandler) Position(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	position, err := h.service.Position(r.Context(), id)
	if err != nil {
		h.writeError(w, "Position", err)
		return
	}

	if err := httputil.WriteSuccess(w, positionResponse{EntryID: id, Position: position}); err != nil {
		h.log.Error("failed to write success response", "handler", "Position", "error", err)
	}
}

type waitingCountResponse struct {
	ResourceID   string `json:"resource_id"`
	WaitingCount int64  `json:"waiting_count"`
}

// Count reports the queue depth for an exact slot, so clients can show how
// many requesters are ahead before joining.
func (h *WaitlistHandler) Count(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	resourceID := query.Get("resource_id")
	if resourceID == "" {
		h.writeError(w, "Count", apperrors.InvalidInput("'resource_id' query parameter is required"))
		return
	}

	slotStart, err := parseTimeParam(query.Get("slot_start"), "slot_start")
	if err != nil {
		h.writeError(w, "Count", err)
		return
	}
	slotEnd, err := parseTimeParam(query.Get("slot_end"), "slot_end")
	if err != nil {
		h.writeError(w, "Count", err)
		return
	}

	count, err := h.service.CountWaiting(r.Context(), resourceID, slotStart, slotEnd)
	if err != nil {
		h.writeError(w, "Count", err)
		return
	}

	if err := httputil.WriteSuccess(w, waitingCountResponse{ResourceID: resourceID, WaitingCount: count}); err != nil {
		h.log.Error("failed to write success response", "handler", "Count", "error", err)
	}
}

type leaveResponse struct {
	Removed bool `json:"removed"`
}

func (h *WaitlistHandler) Leave(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requesterID, err := requesterFromRequest(r)
	if err != nil {
		h.writeError(w, "Leave", err)
		return
	}

	removed, err := h.service.Leave(r.Context(), ps.ByName("id"), requesterID)
	if err != nil {
		h.writeError(w, "Leave", err)
		return
	}

	if err := httputil.WriteSuccess(w, leaveResponse{Removed: removed}); err != nil {
		h.log.Error("failed to write success response", "handler", "Leave", "error", err)
	}
}

func (h *WaitlistHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requesterID, err := requesterFromRequest(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	query := r.URL.Query()

	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			h.writeError(w, "List", apperrors.InvalidInput(fmt.Sprintf("invalid limit parameter: %s", limitStr)))
			return
		}
	}

	var offset int64
	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err = strconv.ParseInt(offsetStr, 10, 64)
		if err != nil {
			h.writeError(w, "List", apperrors.InvalidInput(fmt.Sprintf("invalid offset parameter: %s", offsetStr)))
			return
		}
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	entries, total, err := h.service.ListByRequester(r.Context(), requesterID, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, entries, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "error", err)
	}
}

func (h *WaitlistHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/waitlist", h.Join)
	router.GET("/api/v1/waitlist", h.List)
	router.GET("/api/v1/waitlist/count", h.Count)
	router.GET("/api/v1/waitlist/id/:id/position", h.Position)
	router.DELETE("/api/v1/waitlist/id/:id", h.Leave)
}

func (h *WaitlistHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "error", writeErr)
	}
}

func parseTimeParam(value, name string) (time.Time, error) {
	if value == "" {
		return time.Time{}, apperrors.InvalidInput(fmt.Sprintf("'%s' query parameter is required", name))
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(fmt.Sprintf("invalid %s format, must be RFC3339", name))
	}
	return parsed, nil
}

func requesterFromRequest(r *http.Request) (string, error) {
	id := r.Header.Get(model.HeaderActorID)
	if id == "" {
		return "", apperrors.Unauthorized("Missing actor identity")
	}
	return id, nil
}
