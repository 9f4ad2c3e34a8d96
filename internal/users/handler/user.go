package handler

import (
	"net/http"

	"ticketing/internal/auth"
	"ticketing/internal/users/service"
	httputil "ticketing/pkg/http"
	"ticketing/pkg/logger"
	"ticketing/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const meID = "me"

type UserHandler struct {
	service       service.UserService
	authenticator *auth.Authenticator
	defaultLimit  int
	log           *logger.Logger
}

func NewUserHandler(service service.UserService, authenticator *auth.Authenticator, defaultLimit int, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service:       service,
		authenticator: authenticator,
		defaultLimit:  defaultLimit,
		log:           log,
	}
}

func (h *UserHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Register", err)
		return
	}

	user, err := h.service.Register(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Register", err)
		return
	}

	if err := httputil.WriteCreated(w, httputil.Envelope{"user": user}); err != nil {
		h.log.Error("failed to write created response", "handler", "Register", "operation", "WriteCreated", "error", err)
	}
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Login", err)
		return
	}

	resp, err := h.service.Login(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Login", err)
		return
	}

	if err := httputil.WriteSuccess(w, httputil.Envelope{
		"token":      resp.Token,
		"expires_at": resp.ExpiresAt,
		"user":       resp.User,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Login", "operation", "WriteSuccess", "error", err)
	}
}

// GetByID serves both /users/me and the admin lookup of /users/:id.
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, _ := auth.IdentityFromContext(r.Context())
	id := ps.ByName("id")

	var (
		user *model.User
		err  error
	)
	if id == meID {
		user, err = h.service.GetMe(r.Context(), identity)
	} else if err = auth.Authorize(identity, model.RoleAdmin); err == nil {
		user, err = h.service.GetByID(r.Context(), id)
	}
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, httputil.Envelope{"user": user}); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// Update serves profile edits on /users/me and admin role changes on /users/:id.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, _ := auth.IdentityFromContext(r.Context())
	id := ps.ByName("id")

	var (
		user *model.User
		err  error
	)
	if id == meID {
		var update model.UserUpdate
		if err = httputil.DecodeJSON(r, &update); err == nil {
			user, err = h.service.UpdateMe(r.Context(), identity, &update)
		}
	} else if err = auth.Authorize(identity, model.RoleAdmin); err == nil {
		var update model.RoleUpdate
		if err = httputil.DecodeJSON(r, &update); err == nil {
			user, err = h.service.UpdateRole(r.Context(), id, &update)
		}
	}
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, httputil.Envelope{"user": user}); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page, limit, err := httputil.ExtractPageLimit(r, h.defaultLimit)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	users, total, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, "users", users, httputil.PaginatedResponse{
		Total:   total,
		Page:    page,
		PerPage: limit,
	}); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *UserHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/users/register", h.Register)
	router.POST("/api/v1/users/login", h.Login)
	router.GET("/api/v1/users", h.authenticator.Require(h.GetAll, model.RoleAdmin))
	router.GET("/api/v1/users/:id", h.authenticator.Require(h.GetByID))
	router.PUT("/api/v1/users/:id", h.authenticator.Require(h.Update))
}
