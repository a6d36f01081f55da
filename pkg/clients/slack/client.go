package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/tommykeeley-amp/pm-os-sub002/pkg/clients"
)

// APIError is returned when the Slack Web API responds with ok=false
// or a non-2xx status.
type APIError struct {
	StatusCode int
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("slack api error: %s", e.Code)
	}
	return fmt.Sprintf("slack returned status: %d", e.StatusCode)
}

// Message is a message returned by conversations.history.
type Message struct {
	Type      string `json:"type"`
	User      string `json:"user"`
	Text      string `json:"text"`
	TS        string `json:"ts"`
	ThreadTS  string `json:"thread_ts,omitempty"`
	Permalink string `json:"permalink,omitempty"`
}

// User is a minimal Slack user profile.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
}

// Channel is a minimal Slack conversation descriptor.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Client struct {
	baseURL      string
	token        string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
}

type Option func(*Client)

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:      "https://slack.com/api",
		token:        token,
		client:       &http.Client{Timeout: 15 * time.Second},
		httpExecutor: clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
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

// ConversationHistory fetches channel messages with ts newer than oldest.
func (c *Client) ConversationHistory(ctx context.Context, channelID string, oldest time.Time, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("channel", channelID)
	params.Set("oldest", strconv.FormatFloat(float64(oldest.UnixMilli())/1000.0, 'f', 6, 64))
	params.Set("limit", strconv.Itoa(limit))

	var result struct {
		apiResponse
		Messages []Message `json:"messages"`
	}
	if err := c.get(ctx, "conversations.history", params, &result); err != nil {
		return nil, fmt.Errorf("conversation history %s: %w", channelID, err)
	}
	return result.Messages, nil
}

// ConversationInfo resolves a channel's display name.
func (c *Client) ConversationInfo(ctx context.Context, channelID string) (Channel, error) {
	params := url.Values{}
	params.Set("channel", channelID)

	var result struct {
		apiResponse
		Channel Channel `json:"channel"`
	}
	if err := c.get(ctx, "conversations.info", params, &result); err != nil {
		return Channel{}, fmt.Errorf("conversation info %s: %w", channelID, err)
	}
	return result.Channel, nil
}

// UserInfo resolves a user's profile by ID.
func (c *Client) UserInfo(ctx context.Context, userID string) (User, error) {
	params := url.Values{}
	params.Set("user", userID)

	var result struct {
		apiResponse
		User User `json:"user"`
	}
	if err := c.get(ctx, "users.info", params, &result); err != nil {
		return User{}, fmt.Errorf("user info %s: %w", userID, err)
	}
	return result.User, nil
}

// LookupUserByEmail resolves a user ID from an email address.
func (c *Client) LookupUserByEmail(ctx context.Context, email string) (User, error) {
	params := url.Values{}
	params.Set("email", email)

	var result struct {
		apiResponse
		User User `json:"user"`
	}
	if err := c.get(ctx, "users.lookupByEmail", params, &result); err != nil {
		return User{}, fmt.Errorf("lookup user by email: %w", err)
	}
	return result.User, nil
}

// Permalink fetches a permalink for a message in a channel.
func (c *Client) Permalink(ctx context.Context, channelID, messageTS string) (string, error) {
	params := url.Values{}
	params.Set("channel", channelID)
	params.Set("message_ts", messageTS)

	var result struct {
		apiResponse
		Permalink string `json:"permalink"`
	}
	if err := c.get(ctx, "chat.getPermalink", params, &result); err != nil {
		return "", fmt.Errorf("get permalink: %w", err)
	}
	return result.Permalink, nil
}

// PostMessageRequest is the chat.postMessage payload. Blocks carries
// Block Kit content and may be nil for plain-text messages.
type PostMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
	Blocks  any    `json:"blocks,omitempty"`
}

// PostMessage sends a message to a channel or user DM.
func (c *Client) PostMessage(ctx context.Context, req PostMessageRequest) error {
	var result apiResponse
	if err := c.post(ctx, "chat.postMessage", req, &result); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (r apiResponse) result() apiResponse { return r }

// apiResult lets do() read the ok/error envelope from any typed response.
type apiResult interface{ result() apiResponse }

func (c *Client) get(ctx context.Context, method string, params url.Values, out apiResult) error {
	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+method+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		return req, nil
	}
	return c.do(ctx, build, out)
}

func (c *Client) post(ctx context.Context, method string, body any, out apiResult) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		return req, nil
	}
	return c.do(ctx, build, out)
}

func (c *Client) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error), out apiResult) error {
	resp, err := clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return c.client.Do(req)
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &APIError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if api := out.result(); !api.OK {
		return &APIError{StatusCode: resp.StatusCode, Code: api.Error}
	}
	return nil
}
