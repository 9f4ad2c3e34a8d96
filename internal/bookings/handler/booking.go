package handler

import (
	"net/http"

	"ticketing/internal/auth"
	"ticketing/internal/bookings/service"
	httputil "ticketing/pkg/http"
	"ticketing/pkg/logger"
	"ticketing/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service       service.BookingService
	authenticator *auth.Authenticator
	log           *logger.Logger
}

func NewBookingHandler(service service.BookingService, authenticator *auth.Authenticator, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service:       service,
		authenticator: authenticator,
		log:           log,
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Book", err)
		return
	}

	booking, err := h.service.Book(r.Context(), identity, ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "Book", err)
		return
	}

	if err := httputil.WriteCreated(w, httputil.Envelope{"booking": booking}); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, _ := auth.IdentityFromContext(r.Context())

	booking, err := h.service.Cancel(r.Context(), identity, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, httputil.Envelope{
		"booking": booking,
		"message": "Booking cancelled successfully",
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, _ := auth.IdentityFromContext(r.Context())

	booking, err := h.service.GetByID(r.Context(), identity, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, httputil.Envelope{"booking": booking}); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, _ := auth.IdentityFromContext(r.Context())

	bookings, err := h.service.ListForUser(r.Context(), identity)
	if err != nil {
		h.writeError(w, "GetMine", err)
		return
	}

	if err := httputil.WriteSuccess(w, httputil.Envelope{"count": len(bookings), "bookings": bookings}); err != nil {
		h.log.Error("failed to write success response", "handler", "GetMine", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetForEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, _ := auth.IdentityFromContext(r.Context())

	bookings, err := h.service.ListForEvent(r.Context(), identity, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetForEvent", err)
		return
	}

	if err := httputil.WriteSuccess(w, httputil.Envelope{"count": len(bookings), "bookings": bookings}); err != nil {
		h.log.Error("failed to write success response", "handler", "GetForEvent", "operation", "WriteSuccess", "error", err)
	}
}

// RegisterRoutes also mounts the booking sub-resources of /events/:id; the
// wildcard name must match the one used by the event routes.
func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/events/:id/book", h.authenticator.Require(h.Book))
	router.GET("/api/v1/events/:id/bookings", h.authenticator.Require(h.GetForEvent))
	router.GET("/api/v1/bookings", h.authenticator.Require(h.GetMine))
	router.GET("/api/v1/bookings/:id", h.authenticator.Require(h.GetByID))
	router.PUT("/api/v1/bookings/:id/cancel", h.authenticator.Require(h.Cancel))
	router.DELETE("/api/v1/bookings/:id", h.authenticator.Require(h.Cancel))
}
