// Package session owns sign-in, the authenticated identity and the access
// credential for the Google adapters.
//
// The credential is a single process-wide value mutated here and read by
// every adapter call. Adapters capture a snapshot per call (copy-on-read),
// so a refresh takes effect on the next call without rebuilding anything.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/soulsync-app/soulsync/internal/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	tasksapi "google.golang.org/api/tasks/v1"
)

// State is the calendar connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
)

// ErrDisconnected is returned when an operation needs a credential but no
// connected session exists.
var ErrDisconnected = errors.New("no connected google session")

// Options configures the controller.
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenPath    string
	Logger       *log.Logger
}

// Controller owns the OAuth token lifecycle and connection state.
type Controller struct {
	oauth     *oauth2.Config
	tokenPath string
	logger    *log.Logger

	mu        sync.Mutex
	identity  *types.Identity
	token     *oauth2.Token
	state     State
	ready     bool
	pending   *oauth2.Token
	listeners []func(State)
}

// New creates a controller in the disconnected state. The adapter side is
// not ready until MarkReady is called; credentials obtained earlier are
// queued and applied on readiness.
func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	return &Controller{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarScope, tasksapi.TasksScope},
		},
		tokenPath: opts.TokenPath,
		logger:    opts.Logger,
		state:     StateDisconnected,
	}
}

// AuthURL returns the interactive consent URL. Consent is always forced so
// previously ungranted scopes can be added incrementally on re-login.
func (c *Controller) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent select_account"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// CompleteSignIn exchanges the consent code for a token and applies it.
func (c *Controller) CompleteSignIn(ctx context.Context, code string) error {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("consent exchange failed: %w", err)
	}
	c.applyToken(token)
	return nil
}

// SilentSignIn restores a connection from the persisted token without any
// user interaction, refreshing it when expired. This is the fallback for
// "consent already granted but no fresh credential supplied".
func (c *Controller) SilentSignIn(ctx context.Context) error {
	saved, err := c.loadToken()
	if err != nil {
		return fmt.Errorf("no stored credential: %w", err)
	}

	fresh, err := c.oauth.TokenSource(ctx, saved).Token()
	if err != nil {
		return fmt.Errorf("silent token request failed: %w", err)
	}

	c.applyToken(fresh)
	return nil
}

// applyToken installs or queues a credential. A token obtained before the
// adapter layer is ready is held as pending and applied on MarkReady.
func (c *Controller) applyToken(token *oauth2.Token) {
	c.mu.Lock()
	if !c.ready {
		c.pending = token
		c.mu.Unlock()
		c.logger.Printf("Adapter layer not ready; credential queued")
		return
	}
	c.token = token
	c.state = StateConnected
	c.mu.Unlock()

	if err := c.saveToken(token); err != nil {
		c.logger.Printf("Warning: failed to persist token: %v", err)
	}
	c.notify(StateConnected)
}

// MarkReady signals that the adapter layer is initialized. Any pending
// credential is applied now.
func (c *Controller) MarkReady() {
	c.mu.Lock()
	c.ready = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending != nil {
		c.logger.Printf("Applying queued credential")
		c.applyToken(pending)
	}
}

// SignOut clears identity and credential. The token is not revoked
// server-side; the upstream client offers no revocation call.
func (c *Controller) SignOut() {
	c.mu.Lock()
	wasConnected := c.state == StateConnected
	c.identity = nil
	c.token = nil
	c.pending = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if err := os.Remove(c.tokenPath); err != nil && !os.IsNotExist(err) {
		c.logger.Printf("Warning: failed to remove token file: %v", err)
	}
	if wasConnected {
		c.notify(StateDisconnected)
	}
}

// Credential returns a snapshot of the access token for one adapter call,
// refreshing it first when expired and a refresh token is available.
func (c *Controller) Credential(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || token == nil {
		return "", ErrDisconnected
	}
	if token.Valid() {
		return token.AccessToken, nil
	}

	fresh, err := c.oauth.TokenSource(ctx, token).Token()
	if err != nil {
		return "", fmt.Errorf("credential refresh failed: %w", err)
	}

	c.mu.Lock()
	c.token = fresh
	c.mu.Unlock()
	if err := c.saveToken(fresh); err != nil {
		c.logger.Printf("Warning: failed to persist refreshed token: %v", err)
	}
	return fresh.AccessToken, nil
}

// NotifyAuthExpired flips connected to disconnected exactly once. Repeated
// expiry reports while already disconnected are ignored, and previously
// published state elsewhere is left untouched.
func (c *Controller) NotifyAuthExpired() {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.token = nil
	c.mu.Unlock()

	c.logger.Printf("Credential expired; re-consent required")
	c.notify(StateDisconnected)
}

// State returns the current connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether a usable credential is installed.
func (c *Controller) Connected() bool {
	return c.State() == StateConnected
}

// SetIdentity records the authenticated user.
func (c *Controller) SetIdentity(id types.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = &id
}

// Identity returns the authenticated user, nil when signed out.
func (c *Controller) Identity() *types.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}

// OnStateChange registers a listener invoked on every connect/disconnect.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) notify(s State) {
	c.mu.Lock()
	listeners := make([]func(State), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

func (c *Controller) saveToken(token *oauth2.Token) error {
	if c.tokenPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.tokenPath), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return os.WriteFile(c.tokenPath, data, 0o600)
}

func (c *Controller) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("corrupt token file: %w", err)
	}
	return &token, nil
}
