package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mberg/authdeck/internal/store"
)

const requestTimeout = 10 * time.Second

// Client talks to the account service. Every outgoing call is decorated with
// the current access token, and every 401 from a protected endpoint gets one
// refresh-and-resend before the failure reaches the caller.
type Client struct {
	base  string
	http  *http.Client
	store *store.Store
	log   *zap.Logger

	// refreshGroup coalesces concurrent refresh attempts into one exchange,
	// so N simultaneous 401s cost one refresh round-trip instead of N.
	refreshGroup singleflight.Group

	// onSessionExpired runs after a failed refresh has cleared the store.
	onSessionExpired func()
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string, st *store.Store, log *zap.Logger) *Client {
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		http:  &http.Client{Timeout: requestTimeout},
		store: st,
		log:   log,
	}
}

// OnSessionExpired registers the teardown hook invoked when a rejected token
// cannot be refreshed. The session manager uses it to drop its cached state
// and send the UI back to the login surface.
func (c *Client) OnSessionExpired(fn func()) {
	c.onSessionExpired = fn
}

// Login exchanges credentials for a token pair. A rejection surfaces the
// server's message directly; the interceptor never refreshes on this path.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	return c.authCall(ctx, "/auth/login", email, password)
}

// Register creates an account and returns the initial token pair.
func (c *Client) Register(ctx context.Context, email, password string) (*AuthResponse, error) {
	return c.authCall(ctx, "/auth/register", email, password)
}

func (c *Client) authCall(ctx context.Context, path, email, password string) (*AuthResponse, error) {
	body, err := json.Marshal(credentialsRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	var out AuthResponse
	if err := c.do(ctx, attempt{method: http.MethodPost, path: path, body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile fetches the authenticated principal.
func (c *Client) Profile(ctx context.Context) (*store.Identity, error) {
	var out store.Identity
	if err := c.do(ctx, attempt{method: http.MethodGet, path: "/auth/profile"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify asks the service whether the current token is still good.
func (c *Client) Verify(ctx context.Context) (*VerifyResponse, error) {
	var out VerifyResponse
	if err := c.do(ctx, attempt{method: http.MethodGet, path: "/auth/verify"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout notifies the service that the session is ending. The attempt is
// marked retried up front: a dying session is never worth a refresh.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, attempt{method: http.MethodPost, path: "/auth/logout", retried: true}, nil)
}

// attempt is one logical call through the pipeline. The retried flag bounds
// the interceptor to a single refresh-and-resend per original call; the
// resend rebuilds the request from these fields rather than reusing a
// consumed *http.Request.
type attempt struct {
	method  string
	path    string
	body    []byte
	retried bool
}

// do sends one attempt and decodes the JSON response into dst (which may be
// nil when the body is irrelevant).
func (c *Client) do(ctx context.Context, at attempt, dst interface{}) error {
	var body io.Reader
	if at.body != nil {
		body = bytes.NewReader(at.body)
	}
	req, err := http.NewRequestWithContext(ctx, at.method, c.base+at.path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if at.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return c.intercept(ctx, at, token, resp, dst)
	}
	if resp.StatusCode >= 400 {
		return c.decodeError(resp, at.path)
	}
	if dst == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &TransportError{Err: fmt.Errorf("decoding response from %s: %w", at.path, err)}
	}
	return nil
}

// decorate injects the current access token as a bearer credential and
// returns the token it used. Absence of a token sends the request
// unauthenticated; rejecting it is the server's call.
func (c *Client) decorate(req *http.Request) string {
	token := c.store.Credential().AccessToken
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return token
}

// intercept handles a 401. The auth endpoints surface their own failures
// unchanged; refreshing on a failed login would mask the real credential
// error. Anything else gets one refresh-and-resend, falling back to full
// session teardown.
func (c *Client) intercept(ctx context.Context, at attempt, staleToken string, resp *http.Response, dst interface{}) error {
	original := c.decodeError(resp, at.path)
	if isAuthEndpoint(at.path) || at.retried {
		return original
	}

	if c.store.Credential().RefreshToken == "" {
		c.log.Info("unauthorized with no refresh token, tearing down session",
			zap.String("path", at.path))
		c.teardown()
		return fmt.Errorf("%w: %v", ErrSessionExpired, original)
	}

	if err := c.refresh(ctx, staleToken); err != nil {
		c.log.Warn("token refresh failed, tearing down session",
			zap.String("path", at.path), zap.Error(err))
		c.teardown()
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	at.retried = true
	c.log.Debug("resending with refreshed token", zap.String("path", at.path))
	return c.do(ctx, at, dst)
}

// refresh exchanges the stored refresh token for a new token pair and
// persists it. Concurrent callers share a single in-flight exchange, and a
// caller whose token was already replaced by that exchange skips the network
// entirely.
func (c *Client) refresh(ctx context.Context, staleToken string) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		cred := c.store.Credential()
		if cred.AccessToken != "" && cred.AccessToken != staleToken {
			// Someone else already rotated the token.
			return nil, nil
		}
		if cred.RefreshToken == "" {
			return nil, &CredentialError{StatusCode: http.StatusUnauthorized, Message: "no refresh token"}
		}

		body, err := json.Marshal(refreshRequest{RefreshToken: cred.RefreshToken})
		if err != nil {
			return nil, err
		}
		var out AuthResponse
		if err := c.do(ctx, attempt{method: http.MethodPost, path: "/auth/refresh", body: body}, &out); err != nil {
			return nil, err
		}

		next := store.Credential{AccessToken: out.Token, RefreshToken: out.RefreshToken}
		if next.RefreshToken == "" {
			// Rotation is optional; keep the old refresh token when the
			// service does not issue a new one.
			next.RefreshToken = cred.RefreshToken
		}
		identity := out.User
		if identity.ID == "" && identity.Email == "" {
			if stored := c.store.Identity(); stored != nil {
				identity = *stored
			}
		}
		if err := c.store.Set(next, identity); err != nil {
			return nil, err
		}
		c.log.Info("access token refreshed")
		return nil, nil
	})
	return err
}

// teardown clears every persisted slot and notifies the session manager.
func (c *Client) teardown() {
	if err := c.store.Clear(); err != nil {
		c.log.Error("clearing credential store", zap.Error(err))
	}
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}

// decodeError reads the error envelope once at the boundary. Auth endpoints
// produce CredentialError, everything else StatusError; an unparseable body
// falls back to the generic status text.
func (c *Client) decodeError(resp *http.Response, path string) error {
	raw, _ := io.ReadAll(resp.Body)

	msg := ""
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		msg = eb.Message.String()
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	if isAuthEndpoint(path) {
		return &CredentialError{StatusCode: resp.StatusCode, Message: msg}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

func isAuthEndpoint(path string) bool {
	switch path {
	case "/auth/login", "/auth/register", "/auth/refresh":
		return true
	}
	return false
}
