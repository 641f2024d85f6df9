package bookhive

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	pathLogin    = "/api/auth/login"
	pathRegister = "/api/auth/register"
	pathMe       = "/api/auth/me"
)

// HeaderRequestID carries the per request correlation id
const HeaderRequestID = "X-Request-ID"

// Client is the authenticated gateway to the catalog API
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	logger     Logger
	activity   activityRecorder
	requestID  func() string
}

var _ Gateway = (*Client)(nil)

// ClientOption customizes a Client
type ClientOption func(*Client)

// WithHTTPClient overrides the transport client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClientLogger sets the logger
func WithClientLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
			c.activity.logger = logger
		}
	}
}

// WithClientActivitySink sets the sink for login and logout events
func WithClientActivitySink(sink ActivitySink) ClientOption {
	return func(c *Client) {
		c.activity.sink = normalizeActivitySink(sink)
	}
}

// WithRequestIDGenerator overrides how X-Request-ID values are generated
func WithRequestIDGenerator(gen func() string) ClientOption {
	return func(c *Client) {
		if gen != nil {
			c.requestID = gen
		}
	}
}

// NewClient creates a gateway for baseURL. A nil session keeps the
// credential in memory.
func NewClient(baseURL string, session *Session, opts ...ClientOption) *Client {
	if session == nil {
		session = NewSession(nil)
	}

	logger := Logger(defLogger{})
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		session:    session,
		logger:     logger,
		activity: activityRecorder{
			sink:   noopActivitySink{},
			logger: logger,
			now:    time.Now,
		},
		requestID: func() string {
			return uuid.NewString()
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Session returns the session the client reads its credential from
func (c *Client) Session() *Session {
	return c.session
}

// BaseURL returns the API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request sends an authenticated JSON request and decodes the response into out
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out, true)
}

// Login exchanges credentials for a token and begins the session
func (c *Client) Login(ctx context.Context, username, password string) (Identity, error) {
	payload := loginRequest{Username: username, Password: password}
	if err := payload.Validate(); err != nil {
		return Identity{}, validationError("username and password are required", err)
	}

	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, pathLogin, payload, &resp, false); err != nil {
		err = loginError(err)
		c.recordLoginFailure(ctx, username, err)
		return Identity{}, err
	}

	if resp.Token == "" {
		err := ErrRequestFailed(http.StatusUnauthorized, firstNonEmpty(resp.Error, resp.Message, DefaultLoginFailedMessage))
		c.recordLoginFailure(ctx, username, err)
		return Identity{}, err
	}

	if err := c.session.Begin(ctx, resp.Token); err != nil {
		return Identity{}, err
	}

	identity, ok := DecodeIdentity(resp.Token)
	if !ok && resp.User != nil {
		identity = Identity{ID: anyString(resp.User.ID), Username: resp.User.Username}
	}

	c.activity.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: firstNonEmpty(identity.ID, identity.Username, username), Type: "user"},
	})
	c.logger.Debug("login succeeded for %s", username)

	return identity, nil
}

// Logout ends the session
func (c *Client) Logout(ctx context.Context) error {
	identity, _ := c.session.Identity(ctx)
	if err := c.session.End(ctx); err != nil {
		return err
	}
	c.activity.record(ctx, ActivityEvent{
		EventType: ActivityEventLogout,
		Actor:     ActorRef{ID: firstNonEmpty(identity.ID, identity.Username), Type: "user"},
	})
	return nil
}

// Identity decodes the current credential for display
func (c *Client) Identity(ctx context.Context) (Identity, bool) {
	return c.session.Identity(ctx)
}

// Register creates an account and returns the server message
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", validationError("invalid registration", err)
	}

	var resp ackResponse
	if err := c.do(ctx, http.MethodPost, pathRegister, req, &resp, false); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", ErrRequestFailed(http.StatusBadRequest, resp.Error)
	}
	return resp.Message, nil
}

// Me returns the account of the current session
func (c *Client) Me(ctx context.Context) (*User, error) {
	user := &User{}
	if err := c.Request(ctx, http.MethodGet, pathMe, nil, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, withAuth bool) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to encode request body").
				WithTextCode(TextCodeValidation).
				WithCode(goerrors.CodeBadRequest)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), payload)
	if err != nil {
		return errTransport(err, method, path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, c.requestID())

	if withAuth {
		token, err := c.session.Token(ctx)
		if err != nil {
			return errTransport(err, method, path)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errTransport(err, method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errTransport(err, method, path)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Debug("%s %s answered 401", method, path)
		return ErrAuthRequired().WithMetadata(map[string]any{
			"method":  method,
			"path":    path,
			"message": apiErrorMessage(data, ""),
		})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := apiErrorMessage(data, DefaultRequestFailedMessage)
		c.logger.Debug("%s %s answered %d: %s", method, path, resp.StatusCode, message)
		return ErrRequestFailed(resp.StatusCode, message).WithMetadata(map[string]any{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		})
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "unable to decode response body").
			WithTextCode(TextCodeRequestFailed).
			WithCode(resp.StatusCode).
			WithMetadata(map[string]any{
				"method": method,
				"path":   path,
			})
	}

	return nil
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) recordLoginFailure(ctx context.Context, username string, err error) {
	c.activity.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{ID: username, Type: "user"},
		Metadata: map[string]any{
			"error": ErrorMessage(err),
		},
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type loginResponse struct {
	Token   string     `json:"token"`
	User    *loginUser `json:"user,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type loginUser struct {
	ID       any    `json:"id"`
	Username string `json:"username"`
}

type ackResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// apiErrorMessage reads message, then error, from a JSON error body
func apiErrorMessage(body []byte, fallback string) string {
	var ack ackResponse
	if err := json.Unmarshal(body, &ack); err == nil {
		if msg := strings.TrimSpace(ack.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(ack.Error); msg != "" {
			return msg
		}
	}
	return fallback
}

// loginError maps gateway failures to a login failure message. A 401 from
// the login endpoint means bad credentials, not an expired session.
func loginError(err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return err
	}

	var message string
	switch richErr.TextCode {
	case TextCodeAuthRequired:
		message, _ = richErr.Metadata["message"].(string)
	case TextCodeRequestFailed:
		if richErr.Message != DefaultRequestFailedMessage {
			message = richErr.Message
		}
	default:
		return err
	}

	return ErrRequestFailed(richErr.Code, firstNonEmpty(message, DefaultLoginFailedMessage))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
