package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	userserrors "ticketing/internal/users/errors"
	apperrors "ticketing/pkg/errors"
	"ticketing/pkg/logger"
	"ticketing/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const testSecret = "test-secret-0123456789"

type mockUserFinder struct {
	findByIDFunc func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserFinder) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFunc(ctx, id)
}

func finderFor(users ...*model.User) *mockUserFinder {
	return &mockUserFinder{
		findByIDFunc: func(_ context.Context, id string) (*model.User, error) {
			for _, u := range users {
				if u.ID == id {
					return u, nil
				}
			}
			return nil, userserrors.ErrNotFound
		},
	}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, "ticketing-api")

	token, expiresAt, err := tm.Issue("65f1c0ffee0000000000abcd")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Errorf("expiresAt should be in the future: %v", expiresAt)
	}

	sub, err := tm.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if sub != "65f1c0ffee0000000000abcd" {
		t.Errorf("subject = %q", sub)
	}
}

func TestTokenManager_Failures(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, "ticketing-api")

	expired := NewTokenManager(testSecret, time.Hour, "ticketing-api")
	expired.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	expiredToken, _, _ := expired.Issue("u1")

	otherSecret, _, _ := NewTokenManager("another-secret-0123456789", time.Hour, "ticketing-api").Issue("u1")
	otherIssuer, _, _ := NewTokenManager(testSecret, time.Hour, "someone-else").Issue("u1")

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expiredToken, ErrTokenExpired},
		{"wrong secret", otherSecret, ErrTokenInvalid},
		{"wrong issuer", otherIssuer, ErrTokenInvalid},
		{"malformed", "not.a.jwt", ErrTokenInvalid},
		{"empty", "", ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tm.Parse(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(4)

	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal plaintext")
	}

	ok, err := h.Verify(hash, "correct horse")
	if err != nil || !ok {
		t.Errorf("Verify(correct) = %v, %v", ok, err)
	}
	ok, err = h.Verify(hash, "wrong")
	if err != nil || ok {
		t.Errorf("Verify(wrong) = %v, %v", ok, err)
	}
	if _, err := h.Verify("garbage", "x"); err == nil {
		t.Error("malformed hash should error")
	}
}

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		role     model.Role
		required []model.Role
		want     bool
	}{
		{model.RoleStandard, nil, true},
		{model.RoleStandard, []model.Role{model.RoleOrganizer, model.RoleAdmin}, false},
		{model.RoleOrganizer, []model.Role{model.RoleOrganizer, model.RoleAdmin}, true},
		{model.RoleAdmin, []model.Role{model.RoleAdmin}, true},
		{model.Role("root"), nil, false},
	}
	for _, tt := range tests {
		if got := IsAllowed(tt.role, tt.required...); got != tt.want {
			t.Errorf("IsAllowed(%s, %v) = %v, want %v", tt.role, tt.required, got, tt.want)
		}
	}
}

func TestAuthorize(t *testing.T) {
	if err := Authorize(nil); !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Errorf("nil identity should be unauthorized, got %v", err)
	}
	std := &Identity{UserID: "u1", Role: model.RoleStandard}
	if err := Authorize(std, model.RoleAdmin); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if err := Authorize(std); err != nil {
		t.Errorf("any role should pass, got %v", err)
	}
}

func TestIdentity_Owns(t *testing.T) {
	owner := &Identity{UserID: "u1", Role: model.RoleOrganizer}
	other := &Identity{UserID: "u2", Role: model.RoleOrganizer}
	admin := &Identity{UserID: "u3", Role: model.RoleAdmin}

	if !owner.Owns("u1") || other.Owns("u1") || !admin.Owns("u1") {
		t.Error("ownership check mismatch")
	}
}

func TestAuthenticator_Require(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, "ticketing-api")
	organizer := &model.User{ID: "org-1", Name: "Olga", Email: "olga@example.com", Role: model.RoleOrganizer}
	standard := &model.User{ID: "std-1", Name: "Sam", Email: "sam@example.com", Role: model.RoleStandard}
	authn := NewAuthenticator(tm, finderFor(organizer, standard), logger.Discard())

	orgToken, _, _ := tm.Issue(organizer.ID)
	stdToken, _, _ := tm.Issue(standard.ID)
	ghostToken, _, _ := tm.Issue("ghost")
	expiredTM := NewTokenManager(testSecret, time.Minute, "ticketing-api")
	expiredTM.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expiredToken, _, _ := expiredTM.Issue(organizer.ID)

	var seen *Identity
	handler := authn.Require(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}, model.RoleOrganizer, model.RoleAdmin)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"organizer allowed", "Bearer " + orgToken, http.StatusOK, ""},
		{"standard forbidden", "Bearer " + stdToken, http.StatusForbidden, apperrors.CodeForbidden},
		{"missing header", "", http.StatusUnauthorized, apperrors.CodeUnauthorized},
		{"wrong scheme", "Basic " + orgToken, http.StatusUnauthorized, apperrors.CodeUnauthorized},
		{"expired", "Bearer " + expiredToken, http.StatusUnauthorized, apperrors.CodeTokenExpired},
		{"garbage", "Bearer abc", http.StatusUnauthorized, apperrors.CodeTokenInvalid},
		{"deleted user", "Bearer " + ghostToken, http.StatusUnauthorized, apperrors.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req, nil)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantErr != "" && !strings.Contains(rec.Body.String(), `"code":"`+tt.wantErr+`"`) {
				t.Errorf("body %s missing code %s", rec.Body.String(), tt.wantErr)
			}
			if tt.wantCode == http.StatusOK && (seen == nil || seen.UserID != organizer.ID || seen.Role != model.RoleOrganizer) {
				t.Errorf("identity not propagated: %+v", seen)
			}
		})
	}
}
