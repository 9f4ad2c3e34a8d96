//go:build integration

package integration

import (
	"net/http"
	"net/url"
	"sync"
	"testing"

	"ticketing/pkg/client"
	apperrors "ticketing/pkg/errors"
	"ticketing/pkg/model"
	"ticketing/test/integration/testutil"

	"go.mongodb.org/mongo-driver/bson"
)

type eventEnvelope struct {
	Event model.Event `json:"event"`
}

type bookingEnvelope struct {
	Booking model.Booking `json:"booking"`
}

func TestTicketing(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo := env.Setup(t)
	defer env.Cleanup(t, mongo)

	organizer, _ := testutil.RegisterAndLogin(t, env, "organizer@example.com", model.RoleOrganizer)
	alice, _ := testutil.RegisterAndLogin(t, env, "alice@example.com", model.RoleStandard)
	bob, _ := testutil.RegisterAndLogin(t, env, "bob@example.com", model.RoleStandard)
	_, adminID := testutil.RegisterAndLogin(t, env, "admin@example.com", model.RoleStandard)
	mongo.SetRole(t, adminID, string(model.RoleAdmin))
	admin := testutil.Login(t, env, "admin@example.com")

	t.Run("capacity scenario", func(t *testing.T) {
		eventID := createEvent(t, organizer, testutil.NewEventBuilder().WithCapacity(10).Build())

		aliceBooking := book(t, alice, eventID, 7, http.StatusCreated)
		if avail := availableTickets(t, alice, eventID); avail != 3 {
			t.Fatalf("available after 7 = %d, want 3", avail)
		}

		resp, err := bob.Book(eventID, 5)
		testutil.MustStatus(t, resp, err, http.StatusBadRequest)
		if code := client.GetErrorCode(resp); code != apperrors.CodeCapacityExceeded {
			t.Errorf("code = %s, want %s", code, apperrors.CodeCapacityExceeded)
		}

		resp, err = alice.CancelBooking(aliceBooking.ID)
		testutil.MustStatus(t, resp, err, http.StatusOK)
		if avail := availableTickets(t, alice, eventID); avail != 10 {
			t.Fatalf("available after cancel = %d, want 10", avail)
		}

		resp, err = alice.CancelBooking(aliceBooking.ID)
		testutil.MustStatus(t, resp, err, http.StatusBadRequest)
		if code := client.GetErrorCode(resp); code != apperrors.CodeAlreadyCancelled {
			t.Errorf("second cancel code = %s, want %s", code, apperrors.CodeAlreadyCancelled)
		}

		book(t, bob, eventID, 5, http.StatusCreated)
		if avail := availableTickets(t, bob, eventID); avail != 5 {
			t.Errorf("available after rebook = %d, want 5", avail)
		}
	})

	t.Run("concurrent bookings never oversell", func(t *testing.T) {
		const capacity = 5
		eventID := createEvent(t, organizer, testutil.NewEventBuilder().WithCapacity(capacity).Build())

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < 12; i++ {
			wg.Add(1)
			go func(c *client.TicketingClient) {
				defer wg.Done()
				resp, err := c.Book(eventID, 1)
				if err != nil {
					t.Errorf("book request failed: %v", err)
					return
				}
				if resp.StatusCode == http.StatusCreated {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}([]*client.TicketingClient{alice, bob}[i%2])
		}
		wg.Wait()

		if succeeded != capacity {
			t.Errorf("successful bookings = %d, want %d", succeeded, capacity)
		}
		if avail := availableTickets(t, alice, eventID); avail != 0 {
			t.Errorf("available = %d, want 0", avail)
		}
		confirmed := mongo.CountDocuments(t, testutil.BookingsCollection, bson.M{"event_id": eventID, "status": "confirmed"})
		if confirmed != capacity {
			t.Errorf("confirmed booking documents = %d, want %d", confirmed, capacity)
		}
	})

	t.Run("ownership and roles", func(t *testing.T) {
		eventID := createEvent(t, organizer, testutil.NewEventBuilder().WithTitle("Owned").Build())
		booking := book(t, alice, eventID, 1, http.StatusCreated)

		resp, err := bob.GetBooking(booking.ID)
		testutil.MustStatus(t, resp, err, http.StatusForbidden)

		resp, err = bob.CreateEvent(testutil.NewEventBuilder().Build())
		testutil.MustStatus(t, resp, err, http.StatusForbidden)

		resp, err = bob.UpdateEvent(eventID, map[string]any{"title": "Hijacked"})
		testutil.MustStatus(t, resp, err, http.StatusForbidden)

		resp, err = organizer.EventBookings(eventID)
		testutil.MustStatus(t, resp, err, http.StatusOK)

		resp, err = admin.CancelBooking(booking.ID)
		testutil.MustStatus(t, resp, err, http.StatusOK)
	})

	t.Run("listing filters", func(t *testing.T) {
		createEvent(t, organizer, testutil.NewEventBuilder().WithTitle("Jazz Evening").WithCategory(model.CategoryConcert).Build())
		createEvent(t, organizer, testutil.NewEventBuilder().WithTitle("Go Workshop").WithCategory(model.CategoryWorkshop).Build())

		resp, err := alice.ListEvents(url.Values{"category": {model.CategoryWorkshop}})
		testutil.MustStatus(t, resp, err, http.StatusOK)
		var page struct {
			Events []model.Event `json:"events"`
			Total  int64         `json:"total"`
		}
		testutil.Decode(t, resp, &page)
		for _, e := range page.Events {
			if e.Category != model.CategoryWorkshop {
				t.Errorf("category filter leaked %q", e.Category)
			}
		}

		resp, err = alice.ListEvents(url.Values{"search": {"jazz"}})
		testutil.MustStatus(t, resp, err, http.StatusOK)
		testutil.Decode(t, resp, &page)
		if page.Total != 1 || page.Events[0].Title != "Jazz Evening" {
			t.Errorf("search results = %+v", page.Events)
		}
	})

	t.Run("deleting an event cancels its bookings", func(t *testing.T) {
		eventID := createEvent(t, organizer, testutil.NewEventBuilder().Build())
		booking := book(t, bob, eventID, 2, http.StatusCreated)

		resp, err := organizer.DeleteEvent(eventID)
		testutil.MustStatus(t, resp, err, http.StatusOK)

		resp, err = bob.GetBooking(booking.ID)
		testutil.MustStatus(t, resp, err, http.StatusOK)
		var got bookingEnvelope
		testutil.Decode(t, resp, &got)
		if got.Booking.Status != model.BookingCancelled {
			t.Errorf("booking status = %s, want cancelled", got.Booking.Status)
		}

		resp, err = bob.GetEvent(eventID)
		testutil.MustStatus(t, resp, err, http.StatusNotFound)
	})
}

func createEvent(t *testing.T, c *client.TicketingClient, body map[string]any) string {
	t.Helper()
	resp, err := c.CreateEvent(body)
	testutil.MustStatus(t, resp, err, http.StatusCreated)

	var got eventEnvelope
	testutil.Decode(t, resp, &got)
	if got.Event.Status != model.EventApproved {
		t.Fatalf("event status = %s; run the server with EVENT_REQUIRE_APPROVAL=false", got.Event.Status)
	}
	return got.Event.ID
}

func book(t *testing.T, c *client.TicketingClient, eventID string, quantity, want int) model.Booking {
	t.Helper()
	resp, err := c.Book(eventID, quantity)
	testutil.MustStatus(t, resp, err, want)

	var got bookingEnvelope
	testutil.Decode(t, resp, &got)
	return got.Booking
}

func availableTickets(t *testing.T, c *client.TicketingClient, eventID string) int {
	t.Helper()
	resp, err := c.GetEvent(eventID)
	testutil.MustStatus(t, resp, err, http.StatusOK)

	var got eventEnvelope
	testutil.Decode(t, resp, &got)
	if got.Event.ID != eventID {
		t.Fatalf("unexpected event %s", got.Event.ID)
	}
	return got.Event.AvailableTickets()
}
