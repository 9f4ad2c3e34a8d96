//go:build integration

package testutil

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"ticketing/pkg/client"
	"ticketing/pkg/model"
)

const DefaultPassword = "secret123"

type EventBuilder struct {
	event map[string]any
}

func NewEventBuilder() *EventBuilder {
	return &EventBuilder{
		event: map[string]any{
			"title":       "Integration Night",
			"description": "An evening of integration testing",
			"datetime":    time.Now().Add(30 * 24 * time.Hour).UTC().Format(time.RFC3339),
			"location":    "Main Hall",
			"category":    model.CategoryConcert,
			"price":       25.0,
			"capacity":    10,
		},
	}
}

func (b *EventBuilder) WithTitle(title string) *EventBuilder {
	b.event["title"] = title
	return b
}

func (b *EventBuilder) WithCategory(category string) *EventBuilder {
	b.event["category"] = category
	return b
}

func (b *EventBuilder) WithCapacity(capacity int) *EventBuilder {
	b.event["capacity"] = capacity
	return b
}

func (b *EventBuilder) WithPrice(price float64) *EventBuilder {
	b.event["price"] = price
	return b
}

func (b *EventBuilder) Build() map[string]any {
	return b.event
}

// RegisterAndLogin registers a user with the given role, logs them in and
// returns an authenticated client with the user's id.
func RegisterAndLogin(t *testing.T, env *TestEnv, email string, role model.Role) (*client.TicketingClient, string) {
	t.Helper()
	c := env.Client()

	body := map[string]any{"name": "Test User", "email": email, "password": DefaultPassword}
	if role == model.RoleOrganizer {
		body["role"] = role
	}
	resp, err := c.Register(body)
	MustStatus(t, resp, err, http.StatusCreated)

	var registered struct {
		User model.User `json:"user"`
	}
	Decode(t, resp, &registered)

	return Login(t, env, email), registered.User.ID
}

func Login(t *testing.T, env *TestEnv, email string) *client.TicketingClient {
	t.Helper()
	c := env.Client()

	resp, err := c.Login(email, DefaultPassword)
	MustStatus(t, resp, err, http.StatusOK)

	var login struct {
		Token string `json:"token"`
	}
	Decode(t, resp, &login)
	c.SetToken(login.Token)
	return c
}

func MustStatus(t *testing.T, resp *client.Response, err error, want int) {
	t.Helper()
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, want, client.GetErrorMessage(resp))
	}
}

func Decode(t *testing.T, resp *client.Response, target any) {
	t.Helper()
	if err := resp.DecodeJSON(target); err != nil {
		t.Fatalf("failed to decode response: %v (%s)", err, fmt.Sprintf("%.200s", resp.Body))
	}
}
