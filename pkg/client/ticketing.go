package client

import (
	"fmt"
	"net/url"
)

// TicketingClient is a thin typed wrapper over the public HTTP API.
type TicketingClient struct {
	httpClient *HttpClient
}

func NewTicketingClient(baseUrl string) *TicketingClient {
	return &TicketingClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

// HTTP exposes the underlying client for raw or header-carrying requests.
func (c *TicketingClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *TicketingClient) SetToken(token string) {
	c.httpClient.SetToken(token)
}

func (c *TicketingClient) Register(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/users/register", body)
}

func (c *TicketingClient) Login(email, password string) (*Response, error) {
	return c.httpClient.POST("/api/v1/users/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (c *TicketingClient) Me() (*Response, error) {
	return c.httpClient.GET("/api/v1/users/me")
}

func (c *TicketingClient) UpdateMe(body any) (*Response, error) {
	return c.httpClient.PUT("/api/v1/users/me", body)
}

func (c *TicketingClient) ListEvents(query url.Values) (*Response, error) {
	path := "/api/v1/events"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.httpClient.GET(path)
}

func (c *TicketingClient) MyEvents() (*Response, error) {
	return c.httpClient.GET("/api/v1/events/my-events")
}

func (c *TicketingClient) CreateEvent(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/events", body)
}

func (c *TicketingClient) GetEvent(id string) (*Response, error) {
	return c.httpClient.GET("/api/v1/events/" + url.PathEscape(id))
}

func (c *TicketingClient) UpdateEvent(id string, body any) (*Response, error) {
	return c.httpClient.PUT("/api/v1/events/"+url.PathEscape(id), body)
}

func (c *TicketingClient) DeleteEvent(id string) (*Response, error) {
	return c.httpClient.DELETE("/api/v1/events/" + url.PathEscape(id))
}

func (c *TicketingClient) EventStats(id string) (*Response, error) {
	return c.httpClient.GET(fmt.Sprintf("/api/v1/events/%s/stats", url.PathEscape(id)))
}

func (c *TicketingClient) Book(eventID string, quantity int) (*Response, error) {
	path := fmt.Sprintf("/api/v1/events/%s/book", url.PathEscape(eventID))
	return c.httpClient.POST(path, map[string]int{"quantity": quantity})
}

func (c *TicketingClient) EventBookings(eventID string) (*Response, error) {
	return c.httpClient.GET(fmt.Sprintf("/api/v1/events/%s/bookings", url.PathEscape(eventID)))
}

func (c *TicketingClient) MyBookings() (*Response, error) {
	return c.httpClient.GET("/api/v1/bookings")
}

func (c *TicketingClient) GetBooking(id string) (*Response, error) {
	return c.httpClient.GET("/api/v1/bookings/" + url.PathEscape(id))
}

func (c *TicketingClient) CancelBooking(id string) (*Response, error) {
	return c.httpClient.PUT(fmt.Sprintf("/api/v1/bookings/%s/cancel", url.PathEscape(id)), nil)
}
