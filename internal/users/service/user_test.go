package service

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"ticketing/internal/auth"
	userserrors "ticketing/internal/users/errors"
	"ticketing/pkg/config"
	apperrors "ticketing/pkg/errors"
	"ticketing/pkg/logger"
	"ticketing/pkg/model"
	"ticketing/pkg/validation"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memUserRepository is an in-memory UserRepository keyed by id.
type memUserRepository struct {
	mu    sync.Mutex
	users map[string]*model.User

	createErr error
}

func newMemUserRepository() *memUserRepository {
	return &memUserRepository{users: map[string]*model.User{}}
}

func (m *memUserRepository) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return userserrors.ErrDuplicateEmail
		}
	}
	user.ID = primitive.NewObjectID().Hex()
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUserRepository) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, userserrors.ErrNotFound
}

func (m *memUserRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, userserrors.ErrNotFound
}

func (m *memUserRepository) FindByIDs(_ context.Context, ids []string) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memUserRepository) FindAll(_ context.Context, limit int, offset int64) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.User
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	if int(offset) >= len(out) {
		return []*model.User{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memUserRepository) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *memUserRepository) Update(_ context.Context, id string, fields bson.M) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, userserrors.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			u.Name = v.(string)
		case "email":
			u.Email = v.(string)
		case "password_hash":
			u.PasswordHash = v.(string)
		case "role":
			u.Role = v.(model.Role)
		}
	}
	cp := *u
	return &cp, nil
}

func newTestService(t *testing.T) (UserService, *memUserRepository, *auth.TokenManager) {
	t.Helper()
	v, err := validation.New()
	if err != nil {
		t.Fatal(err)
	}
	repo := newMemUserRepository()
	tokens := auth.NewTokenManager("unit-test-secret-123456", time.Hour, "ticketing-api")
	cfg := &config.Config{Log: logger.Discard()}
	return NewUserService(repo, v, auth.NewPasswordHasher(4), tokens, cfg), repo, tokens
}

func register(t *testing.T, svc UserService, email string, role model.Role) *model.User {
	t.Helper()
	u, err := svc.Register(context.Background(), &model.RegisterRequest{
		Name: "Test User", Email: email, Password: "password1", Role: role,
	})
	if err != nil {
		t.Fatalf("Register(%s) error: %v", email, err)
	}
	return u
}

func TestRegister(t *testing.T) {
	svc, repo, _ := newTestService(t)

	u := register(t, svc, "  Alice@Example.com ", "")
	if u.Role != model.RoleStandard {
		t.Errorf("default role = %s, want standard", u.Role)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email not normalised: %q", u.Email)
	}
	stored, _ := repo.FindByID(context.Background(), u.ID)
	if stored.PasswordHash == "" || stored.PasswordHash == "password1" {
		t.Error("password must be stored hashed")
	}
}

func TestRegister_Errors(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "taken@example.com", model.RoleOrganizer)

	tests := []struct {
		name string
		req  model.RegisterRequest
		code string
	}{
		{"duplicate email", model.RegisterRequest{Name: "Bob", Email: "TAKEN@example.com", Password: "password1"}, apperrors.CodeDuplicateEmail},
		{"admin self-registration", model.RegisterRequest{Name: "Eve", Email: "eve@example.com", Password: "password1", Role: model.RoleAdmin}, apperrors.CodeValidation},
		{"short password", model.RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "123"}, apperrors.CodeValidation},
		{"bad email", model.RegisterRequest{Name: "Bob", Email: "bob", Password: "password1"}, apperrors.CodeValidation},
		{"multibyte password over bcrypt limit", model.RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: strings.Repeat("é", 40)}, apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := svc.Register(context.Background(), &req)
			if !apperrors.HasCode(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestRegister_DuplicateFromIndex(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.createErr = userserrors.ErrDuplicateEmail

	_, err := svc.Register(context.Background(), &model.RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "password1"})
	if !apperrors.HasCode(err, apperrors.CodeDuplicateEmail) {
		t.Errorf("duplicate-key from insert should map to DuplicateEmail, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _, tokens := newTestService(t)
	u := register(t, svc, "login@example.com", model.RoleStandard)

	resp, err := svc.Login(context.Background(), &model.LoginRequest{Email: "LOGIN@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	sub, err := tokens.Parse(resp.Token)
	if err != nil || sub != u.ID {
		t.Errorf("token subject = %q, %v; want %q", sub, err, u.ID)
	}

	_, err = svc.Login(context.Background(), &model.LoginRequest{Email: "login@example.com", Password: "wrong-password"})
	if !apperrors.HasCode(err, apperrors.CodeInvalidCredentials) {
		t.Errorf("wrong password error = %v", err)
	}
	_, err = svc.Login(context.Background(), &model.LoginRequest{Email: "nobody@example.com", Password: "password1"})
	if !apperrors.HasCode(err, apperrors.CodeInvalidCredentials) {
		t.Errorf("unknown email error = %v", err)
	}
}

func TestUpdateMe(t *testing.T) {
	svc, _, _ := newTestService(t)
	me := register(t, svc, "me@example.com", model.RoleStandard)
	register(t, svc, "other@example.com", model.RoleStandard)
	identity := &auth.Identity{UserID: me.ID, Role: me.Role}

	name := "  New   Name "
	updated, err := svc.UpdateMe(context.Background(), identity, &model.UserUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdateMe() error: %v", err)
	}
	if updated.Name != "New Name" {
		t.Errorf("name = %q", updated.Name)
	}

	taken := "other@example.com"
	_, err = svc.UpdateMe(context.Background(), identity, &model.UserUpdate{Email: &taken})
	if !apperrors.HasCode(err, apperrors.CodeDuplicateEmail) {
		t.Errorf("expected DuplicateEmail, got %v", err)
	}

	same := "me@example.com"
	if _, err := svc.UpdateMe(context.Background(), identity, &model.UserUpdate{Email: &same}); err != nil {
		t.Errorf("keeping own email should succeed, got %v", err)
	}

	long := strings.Repeat("é", 40)
	if _, err := svc.UpdateMe(context.Background(), identity, &model.UserUpdate{Password: &long}); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("over-long multibyte password should be a validation error, got %v", err)
	}

	if _, err := svc.UpdateMe(context.Background(), identity, &model.UserUpdate{}); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("empty update should be invalid input, got %v", err)
	}
}

func TestUpdateRole(t *testing.T) {
	svc, _, _ := newTestService(t)
	u := register(t, svc, "promote@example.com", model.RoleStandard)

	updated, err := svc.UpdateRole(context.Background(), u.ID, &model.RoleUpdate{Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("UpdateRole() error: %v", err)
	}
	if updated.Role != model.RoleAdmin {
		t.Errorf("role = %s", updated.Role)
	}

	_, err = svc.UpdateRole(context.Background(), primitive.NewObjectID().Hex(), &model.RoleUpdate{Role: model.RoleOrganizer})
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}

	_, err = svc.UpdateRole(context.Background(), u.ID, &model.RoleUpdate{Role: "root"})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestList(t *testing.T) {
	svc, _, _ := newTestService(t)
	for _, e := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		register(t, svc, e, model.RoleStandard)
	}

	users, total, err := svc.List(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if total != 3 || len(users) != 2 {
		t.Errorf("total=%d len=%d, want 3/2", total, len(users))
	}

	users, total, err = svc.List(context.Background(), math.MaxInt, 100)
	if err != nil {
		t.Fatalf("List(huge page) error: %v", err)
	}
	if total != 3 || len(users) != 0 {
		t.Errorf("huge page: total=%d len=%d, want 3/0", total, len(users))
	}
}
