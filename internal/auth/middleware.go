package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	userserrors "ticketing/internal/users/errors"
	apperrors "ticketing/pkg/errors"
	httputil "ticketing/pkg/http"
	"ticketing/pkg/logger"
	"ticketing/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type Authenticator struct {
	tokens *TokenManager
	users  UserFinder
	log    *logger.Logger
}

func NewAuthenticator(tokens *TokenManager, users UserFinder, log *logger.Logger) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		users:  users,
		log:    log,
	}
}

// Authenticate resolves a bearer credential to the identity of a stored user.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}

	userID, err := a.tokens.Parse(credential)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperrors.TokenExpired()
		}
		return nil, apperrors.TokenInvalid(err)
	}

	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.Unauthorized("user for this token no longer exists")
		}
		a.log.Error("failed to load user for token",
			"user_id", userID,
			"error", err,
		)
		return nil, apperrors.Internal("failed to authenticate", err)
	}

	return &Identity{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		Email:  user.Email,
	}, nil
}

// Require wraps a handler so it only runs for an authenticated caller whose
// role is in roles (any role when roles is empty).
func (a *Authenticator) Require(next httprouter.Handle, roles ...model.Role) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		identity, err := a.Authenticate(r.Context(), BearerToken(r))
		if err == nil {
			err = Authorize(identity, roles...)
		}
		if err != nil {
			a.log.Warn("request rejected by access control",
				"path", r.URL.Path,
				"method", r.Method,
				"error", err,
			)
			if writeErr := httputil.WriteError(w, err); writeErr != nil {
				a.log.Error("failed to write error response", "handler", "Require", "operation", "WriteError", "error", writeErr)
			}
			return
		}

		next(w, r.WithContext(WithIdentity(r.Context(), identity)), ps)
	}
}

func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
