package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"resourcehub/internal/bookings/service"
	"resourcehub/pkg/config"
	apperrors "resourcehub/pkg/errors"
	httputil "resourcehub/pkg/http"
	"resourcehub/pkg/logger"
	"resourcehub/pkg/model"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

type createBookingRequest struct {
	ResourceID string    `json:"resource_id"`
	Start      time.Time `json:"start_time"`
	End        time.Time `json:"end_time"`
	Note       string    `json:"note"`
	// WaitlistEntryID links this request to a notified waitlist entry so it
	// gets marked converted once the booking lands.
	WaitlistEntryID string `json:"waitlist_entry_id"`
}

type rejectBookingRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	booking := &model.Booking{
		ResourceID:  req.ResourceID,
		RequesterID: actor.ID,
		Start:       req.Start,
		End:         req.End,
		Note:        req.Note,
	}

	if err := h.service.Create(r.Context(), booking, req.WaitlistEntryID); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, "Approve", err)
		return
	}

	booking, err := h.service.Approve(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Approve", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Approve", "error", err)
	}
}

func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, "Reject", err)
		return
	}

	var req rejectBookingRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, "Reject", apperrors.InvalidInput("Invalid request body"))
			return
		}
	}

	booking, err := h.service.Reject(r.Context(), actor, ps.ByName("id"), req.Reason)
	if err != nil {
		h.writeError(w, "Reject", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Reject", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	booking, err := h.service.Cancel(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "error", err)
	}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	resourceID := query.Get("resource_id")
	requesterID := query.Get("requester_id")

	if (resourceID == "") == (requesterID == "") {
		h.writeError(w, "List", apperrors.InvalidInput("Exactly one of 'resource_id' or 'requester_id' query parameters is required"))
		return
	}

	status := model.BookingStatus(query.Get("status"))

	limit, offset, err := paginationParams(query.Get("limit"), query.Get("offset"))
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	var (
		bookings []*model.Booking
		total    int64
	)
	if resourceID != "" {
		bookings, total, err = h.service.ListByResource(r.Context(), resourceID, status, limit, offset)
	} else {
		bookings, total, err = h.service.ListByRequester(r.Context(), requesterID, status, limit, offset)
	}
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "error", err)
	}
}

type availabilityResponse struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	resourceID := query.Get("resource_id")
	if resourceID == "" {
		h.writeError(w, "CheckAvailability", apperrors.InvalidInput("'resource_id' query parameter is required"))
		return
	}

	start, err := parseTimeParam(query.Get("start_time"), "start_time")
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}
	end, err := parseTimeParam(query.Get("end_time"), "end_time")
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}

	conflict, err := h.service.HasConflict(r.Context(), resourceID, start, end, query.Get("exclude_booking_id"))
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}

	message := "Time slot is available"
	if conflict {
		message = "Time slot already booked"
	}
	if err := httputil.WriteSuccess(w, availabilityResponse{Available: !conflict, Message: message}); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckAvailability", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.POST("/api/v1/bookings/id/:id/approve", h.Approve)
	router.POST("/api/v1/bookings/id/:id/reject", h.Reject)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.GET("/api/v1/availability", h.CheckAvailability)
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "error", writeErr)
	}
}

// Authentication happens upstream; the engine trusts the gateway-injected
// identity and only applies authorization rules to it.
func actorFromRequest(r *http.Request) (model.Actor, error) {
	id := r.Header.Get(model.HeaderActorID)
	if id == "" {
		return model.Actor{}, apperrors.Unauthorized("Missing actor identity")
	}
	role := r.Header.Get(model.HeaderActorRole)
	if role == "" {
		role = model.RoleMember
	}
	return model.Actor{ID: id, Role: role}, nil
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

func paginationParams(limitStr, offsetStr string) (int, int64, error) {
	limit := 0
	if limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, apperrors.InvalidInput(fmt.Sprintf("invalid limit parameter: %s", limitStr))
		}
		limit = parsed
	}

	var offset int64
	if offsetStr != "" {
		parsed, err := strconv.ParseInt(offsetStr, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput(fmt.Sprintf("invalid offset parameter: %s", offsetStr))
		}
		offset = parsed
	}

	return config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset), nil
}
