package service

import (
	"context"
	"errors"
	"sync"

	"ticketing/internal/auth"
	userserrors "ticketing/internal/users/errors"
	"ticketing/internal/users/repository"
	"ticketing/pkg/config"
	apperrors "ticketing/pkg/errors"
	"ticketing/pkg/model"
	"ticketing/pkg/sanitizer"
	"ticketing/pkg/validation"

	"go.mongodb.org/mongo-driver/bson"
)

type UserService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error)
	GetMe(ctx context.Context, identity *auth.Identity) (*model.User, error)
	UpdateMe(ctx context.Context, identity *auth.Identity, update *model.UserUpdate) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context, page, limit int) ([]*model.User, int64, error)
	UpdateRole(ctx context.Context, id string, update *model.RoleUpdate) (*model.User, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validation.Validator
	hasher    *auth.PasswordHasher
	tokens    *auth.TokenManager
	cfg       *config.Config
}

func NewUserService(
	repo repository.UserRepository,
	validator *validation.Validator,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenManager,
	cfg *config.Config,
) UserService {
	return &userService{
		repo:      repo,
		validator: validator,
		hasher:    hasher,
		tokens:    tokens,
		cfg:       cfg,
	}
}

func (s *userService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	req.Name = sanitizer.NormalizeName(req.Name)
	req.Email = sanitizer.NormalizeEmail(req.Email)
	if req.Role == "" {
		req.Role = model.RoleStandard
	}

	if err := s.validate(req, "registration"); err != nil {
		return nil, err
	}
	if req.Role == model.RoleAdmin {
		s.cfg.Log.Warn("Registration requested admin role", "email", req.Email)
		return nil, apperrors.Validation("Invalid registration input", validation.Field("role", "role must be one of: standard organizer").Details())
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.DuplicateEmail(req.Email)
	} else if !errors.Is(err, userserrors.ErrNotFound) {
		s.cfg.Log.Error("Failed to check email uniqueness", "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.cfg.Log.Error("Failed to hash password", "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	user := &model.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		// The unique index catches registrations racing past the check above.
		if errors.Is(err, userserrors.ErrDuplicateEmail) {
			return nil, apperrors.DuplicateEmail(req.Email)
		}
		s.cfg.Log.Error("Failed to create user", "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	s.cfg.Log.Info("User registered successfully",
		"id", user.ID,
		"role", user.Role,
	)
	return user, nil
}

func (s *userService) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	req.Email = sanitizer.NormalizeEmail(req.Email)
	if err := s.validate(req, "login"); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			s.cfg.Log.Warn("Login failed: unknown email")
			return nil, apperrors.InvalidCredentials()
		}
		s.cfg.Log.Error("Failed to load user for login", "error", err)
		return nil, apperrors.Internal("Failed to log in", err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, req.Password)
	if err != nil {
		s.cfg.Log.Error("Failed to verify password", "id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to log in", err)
	}
	if !ok {
		s.cfg.Log.Warn("Login failed: wrong password", "id", user.ID)
		return nil, apperrors.InvalidCredentials()
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.cfg.Log.Error("Failed to issue token", "id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to log in", err)
	}

	s.cfg.Log.Info("User logged in", "id", user.ID)
	return &model.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

func (s *userService) GetMe(ctx context.Context, identity *auth.Identity) (*model.User, error) {
	if identity == nil {
		return nil, apperrors.Unauthorized("authentication required")
	}
	return s.GetByID(ctx, identity.UserID)
}

func (s *userService) UpdateMe(ctx context.Context, identity *auth.Identity, update *model.UserUpdate) (*model.User, error) {
	if identity == nil {
		return nil, apperrors.Unauthorized("authentication required")
	}

	if update.Name != nil {
		v := sanitizer.NormalizeName(*update.Name)
		update.Name = &v
	}
	if update.Email != nil {
		v := sanitizer.NormalizeEmail(*update.Email)
		update.Email = &v
	}
	if err := s.validate(update, "profile update"); err != nil {
		return nil, err
	}

	fields := bson.M{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Email != nil {
		existing, err := s.repo.FindByEmail(ctx, *update.Email)
		switch {
		case err == nil && existing.ID != identity.UserID:
			return nil, apperrors.DuplicateEmail(*update.Email)
		case err != nil && !errors.Is(err, userserrors.ErrNotFound):
			s.cfg.Log.Error("Failed to check email uniqueness", "error", err)
			return nil, apperrors.Internal("Failed to update profile", err)
		}
		fields["email"] = *update.Email
	}
	if update.Password != nil {
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			s.cfg.Log.Error("Failed to hash password", "error", err)
			return nil, apperrors.Internal("Failed to update profile", err)
		}
		fields["password_hash"] = hash
	}
	if len(fields) == 0 {
		return nil, apperrors.InvalidInput("no fields to update")
	}

	user, err := s.repo.Update(ctx, identity.UserID, fields)
	if err != nil {
		if errors.Is(err, userserrors.ErrDuplicateEmail) && update.Email != nil {
			return nil, apperrors.DuplicateEmail(*update.Email)
		}
		return nil, s.mapRepoError(err, identity.UserID, "Failed to update profile")
	}

	s.cfg.Log.Info("User profile updated", "id", user.ID)
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve user")
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, page, limit int) ([]*model.User, int64, error) {
	offset := config.PageOffset(page, limit)

	var count int64
	var users []*model.User
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count users", "error", errCount)
			errCount = apperrors.Internal("Failed to count users", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		users, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list users", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve users", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return users, count, nil
}

func (s *userService) UpdateRole(ctx context.Context, id string, update *model.RoleUpdate) (*model.User, error) {
	if err := s.validate(update, "role update"); err != nil {
		return nil, err
	}

	user, err := s.repo.Update(ctx, id, bson.M{"role": update.Role})
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to update user role")
	}

	s.cfg.Log.Info("User role updated", "id", id, "role", update.Role)
	return user, nil
}

func (s *userService) validate(v any, operation string) error {
	if err := s.validator.Struct(v); err != nil {
		s.cfg.Log.Warn("User validation failed", "operation", operation, "error", err)
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			return apperrors.Validation("Invalid "+operation+" input", verrs.Details())
		}
		return apperrors.Validation("Invalid "+operation+" input", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *userService) mapRepoError(err error, id, message string) error {
	switch {
	case errors.Is(err, userserrors.ErrNotFound):
		return apperrors.NotFoundWithID("User", id)
	case errors.Is(err, userserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid user ID format")
	case errors.Is(err, userserrors.ErrDuplicateEmail):
		return apperrors.Conflict("email already registered")
	default:
		s.cfg.Log.Error(message, "id", id, "error", err)
		return apperrors.Internal(message, err)
	}
}
