package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout = 60 * time.Second

	headerSessionID = "X-Session-ID"
)

// Client talks to the consultation backend over HTTP/JSON. Authentication is a
// cookie session kept in the client's jar.
type Client struct {
	http    *resty.Client
	baseURL *url.URL
	jar     http.CookieJar
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.http.SetHeader("User-Agent", ua)
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("client: empty server url")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "client: parse server url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("client: unsupported scheme %q", u.Scheme)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "client: cookie jar")
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(DefaultTimeout).
			SetCookieJar(jar).
			SetHeader("Accept", "application/json").
			SetLogger(restyLogger{}),
		baseURL: u,
		jar:     jar,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL.String() }

func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.baseURL)
}

func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.jar.SetCookies(c.baseURL, cookies)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

const pathLogin = "/login"

// Login authenticates and stores the session cookie in the jar. It returns
// the backend's message.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out statusResponse
	if err := c.do(ctx, http.MethodPost, pathLogin, credentials{username, password}, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	var out statusResponse
	if err := c.do(ctx, http.MethodPost, "/register", credentials{username, password}, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil, nil)
}

// ChatRequest is the body of POST /chat. The regenerate fields are only set
// when asking for a new version of an existing reply.
type ChatRequest struct {
	Message          string         `json:"message"`
	ChatID           string         `json:"chatId,omitempty"`
	Regenerate       bool           `json:"regenerate,omitempty"`
	PreviousMessages []chat.Message `json:"previousMessages,omitempty"`
	MessageID        string         `json:"messageId,omitempty"`
}

type ChatReply struct {
	Reply  string
	ChatID string
}

type chatResponse struct {
	Reply  *string `json:"reply"`
	ChatID string  `json:"chatId"`
}

func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatReply, error) {
	var headers map[string]string
	if req.Regenerate && req.ChatID != "" {
		headers = map[string]string{headerSessionID: req.ChatID}
	}
	var out chatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", req, headers, &out); err != nil {
		return ChatReply{}, err
	}
	if out.Reply == nil {
		return ChatReply{}, malformed(http.MethodPost, "/chat", "missing reply")
	}
	return ChatReply{Reply: *out.Reply, ChatID: out.ChatID}, nil
}

type historyResponse struct {
	ChatHistory *[]chat.Conversation `json:"chat_history"`
}

// ChatHistory returns the user's conversations, most recent first.
func (c *Client) ChatHistory(ctx context.Context) ([]chat.Conversation, error) {
	var out historyResponse
	if err := c.do(ctx, http.MethodGet, "/get_chat_history", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.ChatHistory == nil {
		return nil, malformed(http.MethodGet, "/get_chat_history", "missing chat_history")
	}
	return *out.ChatHistory, nil
}

type specificChatResponse struct {
	Messages *chat.Messages `json:"messages"`
}

// Conversation fetches the messages of a single conversation.
func (c *Client) Conversation(ctx context.Context, chatID string) (chat.Messages, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, errors.New("client: empty chat id")
	}
	path := "/get_specific_chat/" + url.PathEscape(chatID)
	var out specificChatResponse
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Messages == nil {
		return nil, malformed(http.MethodGet, path, "missing messages")
	}
	return *out.Messages, nil
}

func (c *Client) NewChat(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/new_chat", nil, nil, nil)
}

type statusResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, headers map[string]string, out interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	for k, v := range headers {
		req.SetHeader(k, v)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return &RequestError{Method: method, Path: path, Err: err}
	}

	raw := res.Body()
	var status statusResponse
	decodeErr := json.Unmarshal(raw, &status)

	if !res.IsSuccess() {
		apiErr := &APIError{StatusCode: res.StatusCode(), Message: status.Message}
		if status.Error != "" {
			apiErr.Message = status.Error
		}
		// A 401 from /login means bad credentials, not a missing session.
		apiErr.unauthorized = res.StatusCode() == http.StatusUnauthorized && path != pathLogin
		log.Debug().
			Str("component", "client").
			Str("method", method).
			Str("path", path).
			Int("status", res.StatusCode()).
			Str("message", apiErr.Message).
			Msg("backend returned error status")
		return apiErr
	}

	if decodeErr != nil {
		return malformed(method, path, "%v", decodeErr)
	}
	if status.Success == nil {
		return malformed(method, path, "missing success flag")
	}
	if !*status.Success {
		return &APIError{StatusCode: res.StatusCode(), Message: status.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return malformed(method, path, "%v", err)
	}
	return nil
}

type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...interface{}) {
	log.Error().Str("component", "resty").Msgf(format, v...)
}

func (restyLogger) Warnf(format string, v ...interface{}) {
	log.Warn().Str("component", "resty").Msgf(format, v...)
}

func (restyLogger) Debugf(format string, v ...interface{}) {
	log.Debug().Str("component", "resty").Msgf(format, v...)
}
