package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ticketing/internal/auth"
	userserrors "ticketing/internal/users/errors"
	apperrors "ticketing/pkg/errors"
	"ticketing/pkg/logger"
	"ticketing/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type stubEventService struct {
	lastFilter model.EventFilter
	lastPage   int
	lastLimit  int
	mineCalls  int
}

func (s *stubEventService) Create(_ context.Context, identity *auth.Identity, req *model.EventCreate) (*model.Event, error) {
	return &model.Event{ID: "evt-new", Title: req.Title, Capacity: req.Capacity, OrganizerID: identity.UserID}, nil
}

func (s *stubEventService) GetByID(_ context.Context, id string) (*model.Event, error) {
	if id != "evt-1" {
		return nil, apperrors.NotFoundWithID("Event", id)
	}
	return &model.Event{ID: id, Title: "Show", Capacity: 10, BookedCount: 3}, nil
}

func (s *stubEventService) List(_ context.Context, filter model.EventFilter, page, limit int) ([]*model.Event, int64, error) {
	s.lastFilter, s.lastPage, s.lastLimit = filter, page, limit
	return []*model.Event{{ID: "evt-1"}}, 1, nil
}

func (s *stubEventService) ListMine(_ context.Context, _ *auth.Identity) ([]*model.Event, error) {
	s.mineCalls++
	return []*model.Event{{ID: "evt-1"}, {ID: "evt-2"}}, nil
}

func (s *stubEventService) Update(_ context.Context, _ *auth.Identity, id string, _ *model.EventUpdate) (*model.Event, error) {
	return &model.Event{ID: id}, nil
}

func (s *stubEventService) Delete(_ context.Context, _ *auth.Identity, _ string) error {
	return nil
}

func (s *stubEventService) Stats(_ context.Context, _ *auth.Identity, id string) (*model.EventStats, error) {
	return &model.EventStats{EventID: id}, nil
}

type userFinder map[string]*model.User

func (f userFinder) FindByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, userserrors.ErrNotFound
}

func setup(t *testing.T) (*httprouter.Router, *stubEventService, map[model.Role]string) {
	t.Helper()
	tokens := auth.NewTokenManager("handler-test-secret-1234", time.Hour, "ticketing-api")
	users := userFinder{
		"org":   {ID: "org", Role: model.RoleOrganizer},
		"std":   {ID: "std", Role: model.RoleStandard},
		"admin": {ID: "admin", Role: model.RoleAdmin},
	}
	issued := map[model.Role]string{}
	for id, u := range users {
		token, _, err := tokens.Issue(id)
		if err != nil {
			t.Fatal(err)
		}
		issued[u.Role] = token
	}

	svc := &stubEventService{}
	router := httprouter.New()
	NewEventHandler(svc, auth.NewAuthenticator(tokens, users, logger.Discard()), 9, logger.Discard()).RegisterRoutes(router)
	return router, svc, issued
}

func do(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetAll_ParsesQuery(t *testing.T) {
	router, svc, _ := setup(t)

	rec := do(router, http.MethodGet, "/api/v1/events?category=concert&search=jazz&status=approved&page=2&limit=500", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.lastFilter.Category != "concert" || svc.lastFilter.Search != "jazz" || svc.lastFilter.Status != model.EventApproved {
		t.Errorf("filter = %+v", svc.lastFilter)
	}
	if svc.lastPage != 2 || svc.lastLimit != 100 {
		t.Errorf("page=%d limit=%d, want 2 and clamped 100", svc.lastPage, svc.lastLimit)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != true || body["total"] != float64(1) || body["per_page"] != float64(100) {
		t.Errorf("unexpected envelope: %v", body)
	}

	if rec := do(router, http.MethodGet, "/api/v1/events?page=abc", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad page: status = %d, want 400", rec.Code)
	}
}

func TestGetByID(t *testing.T) {
	router, _, _ := setup(t)

	rec := do(router, http.MethodGet, "/api/v1/events/evt-1", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"available_tickets":7`) {
		t.Errorf("body should carry derived available_tickets: %s", rec.Body.String())
	}

	rec = do(router, http.MethodGet, "/api/v1/events/missing", "", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("missing event: status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestMyEvents_RequiresOrganizer(t *testing.T) {
	router, svc, tokens := setup(t)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"standard", tokens[model.RoleStandard], http.StatusForbidden},
		{"organizer", tokens[model.RoleOrganizer], http.StatusOK},
		{"admin", tokens[model.RoleAdmin], http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodGet, "/api/v1/events/my-events", tt.token, "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
	if svc.mineCalls != 2 {
		t.Errorf("ListMine called %d times, want 2", svc.mineCalls)
	}
}

func TestCreate(t *testing.T) {
	router, _, tokens := setup(t)
	body := `{"title":"Show","description":"d","datetime":"2030-01-01T20:00:00Z","location":"Hall","category":"concert","price":10,"capacity":50}`

	if rec := do(router, http.MethodPost, "/api/v1/events", tokens[model.RoleStandard], body); rec.Code != http.StatusForbidden {
		t.Errorf("standard create: status = %d, want 403", rec.Code)
	}

	rec := do(router, http.MethodPost, "/api/v1/events", tokens[model.RoleOrganizer], body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("organizer create: status = %d (%s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"organizer_id":"org"`) {
		t.Errorf("created event should belong to caller: %s", rec.Body.String())
	}

	rec = do(router, http.MethodPost, "/api/v1/events", tokens[model.RoleOrganizer], `{"title":"x","booked_count":5}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field: status = %d, want 400", rec.Code)
	}
}

func TestProtectedRoutes(t *testing.T) {
	router, _, tokens := setup(t)

	for _, tc := range []struct {
		method, path, body string
	}{
		{http.MethodPut, "/api/v1/events/evt-1", `{"title":"New"}`},
		{http.MethodDelete, "/api/v1/events/evt-1", ""},
		{http.MethodGet, "/api/v1/events/evt-1/stats", ""},
	} {
		if rec := do(router, tc.method, tc.path, "", tc.body); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s anonymous: status = %d, want 401", tc.method, tc.path, rec.Code)
		}
		if rec := do(router, tc.method, tc.path, tokens[model.RoleOrganizer], tc.body); rec.Code != http.StatusOK {
			t.Errorf("%s %s organizer: status = %d, want 200 (%s)", tc.method, tc.path, rec.Code, rec.Body.String())
		}
	}
}
