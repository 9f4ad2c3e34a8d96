package handler

import (
	"net/http"

	"ticketing/internal/auth"
	"ticketing/internal/events/service"
	httputil "ticketing/pkg/http"
	"ticketing/pkg/logger"
	"ticketing/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const myEventsID = "my-events"

type EventHandler struct {
	service       service.EventService
	authenticator *auth.Authenticator
	defaultLimit  int
	log           *logger.Logger
}

func NewEventHandler(service service.EventService, authenticator *auth.Authenticator, defaultLimit int, log *logger.Logger) *EventHandler {
	return &EventHandler{
		service:       service,
		authenticator: authenticator,
		defaultLimit:  defaultLimit,
		log:           log,
	}
}

func (h *EventHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *EventHandler) writeSuccess(w http.ResponseWriter, handler string, payload httputil.Envelope) {
	if err := httputil.WriteSuccess(w, payload); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var req model.EventCreate
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	event, err := h.service.Create(r.Context(), identity, &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, httputil.Envelope{"event": event}); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

// GetByID is public, except for /events/my-events which shares the route.
func (h *EventHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == myEventsID {
		h.authenticator.Require(h.MyEvents, model.RoleOrganizer, model.RoleAdmin)(w, r, ps)
		return
	}

	event, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	h.writeSuccess(w, "GetByID", httputil.Envelope{"event": event})
}

func (h *EventHandler) MyEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, _ := auth.IdentityFromContext(r.Context())

	events, err := h.service.ListMine(r.Context(), identity)
	if err != nil {
		h.writeError(w, "MyEvents", err)
		return
	}

	h.writeSuccess(w, "MyEvents", httputil.Envelope{"count": len(events), "events": events})
}

func (h *EventHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page, limit, err := httputil.ExtractPageLimit(r, h.defaultLimit)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	query := r.URL.Query()
	filter := model.EventFilter{
		Category: query.Get("category"),
		Search:   query.Get("search"),
		Status:   model.EventStatus(query.Get("status")),
	}

	events, total, err := h.service.List(r.Context(), filter, page, limit)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, "events", events, httputil.PaginatedResponse{
		Total:   total,
		Page:    page,
		PerPage: limit,
	}); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var update model.EventUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	event, err := h.service.Update(r.Context(), identity, ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	h.writeSuccess(w, "Update", httputil.Envelope{"event": event})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, _ := auth.IdentityFromContext(r.Context())

	if err := h.service.Delete(r.Context(), identity, ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	h.writeSuccess(w, "Delete", httputil.Envelope{"message": "Event deleted successfully"})
}

func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, _ := auth.IdentityFromContext(r.Context())

	stats, err := h.service.Stats(r.Context(), identity, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Stats", err)
		return
	}

	h.writeSuccess(w, "Stats", httputil.Envelope{"stats": stats})
}

func (h *EventHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/events", h.GetAll)
	router.POST("/api/v1/events", h.authenticator.Require(h.Create, model.RoleOrganizer, model.RoleAdmin))
	router.GET("/api/v1/events/:id", h.GetByID)
	router.PUT("/api/v1/events/:id", h.authenticator.Require(h.Update))
	router.DELETE("/api/v1/events/:id", h.authenticator.Require(h.Delete))
	router.GET("/api/v1/events/:id/stats", h.authenticator.Require(h.Stats))
}
