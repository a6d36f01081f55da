package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/tommykeeley-amp/pm-os-sub002/pkg/clients"
)

// Client talks to the desktop host's local provider bridge, which holds
// the OAuth sessions for calendar and email providers and serves their
// already-fetched payloads over loopback HTTP.
type Client struct {
	baseURL      string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
}

type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider bridge returned status: %d", e.StatusCode)
}

// CalendarEvent is the bridge's calendar event payload.
type CalendarEvent struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location string    `json:"location,omitempty"`
}

// EmailMessage is the bridge's email payload.
type EmailMessage struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	From      string `json:"from"`
	IsStarred bool   `json:"isStarred"`
	IsUnread  bool   `json:"isUnread"`
}

type Option func(*Client)

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 10 * time.Second},
		httpExecutor: clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

func WithHTTPExecutor(executor failsafe.Executor[*http.Response]) Option {
	return func(c *Client) {
		if executor != nil {
			c.httpExecutor = executor
		}
	}
}

// CalendarEvents fetches upcoming calendar events from the bridge.
func (c *Client) CalendarEvents(ctx context.Context) ([]CalendarEvent, error) {
	var events []CalendarEvent
	if err := c.getJSON(ctx, "/providers/calendar/events", &events); err != nil {
		return nil, fmt.Errorf("fetch calendar events: %w", err)
	}
	return events, nil
}

// Emails fetches recent inbox messages from the bridge.
func (c *Client) Emails(ctx context.Context) ([]EmailMessage, error) {
	var emails []EmailMessage
	if err := c.getJSON(ctx, "/providers/email/messages", &emails); err != nil {
		return nil, fmt.Errorf("fetch emails: %w", err)
	}
	return emails, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.client.Do(req)
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &APIError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
