package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mberg/authdeck/internal/api"
	"github.com/mberg/authdeck/internal/store"
	"github.com/mberg/authdeck/internal/validation"
)

const logoutNotifyTimeout = 5 * time.Second

// Manager owns the credential store and the cached session state. It is
// constructed once per process and handed to everything that reads or mutates
// the session.
type Manager struct {
	store      *store.Store
	gateway    *api.Client
	log        *zap.Logger
	staleAfter time.Duration
	nav        Navigator

	mu        sync.Mutex
	cached    Session
	fetchedAt time.Time
	verified  bool

	// verifyGroup coalesces concurrent stale reads into one verification
	// call: readers either get the old value or the new one, never N calls.
	verifyGroup singleflight.Group
}

// NewManager wires the store and gateway together. The cached state is seeded
// optimistically from the persisted identity so the first render does not
// wait on the network.
func NewManager(st *store.Store, gw *api.Client, staleAfter time.Duration, log *zap.Logger) *Manager {
	m := &Manager{
		store:      st,
		gateway:    gw,
		log:        log,
		staleAfter: staleAfter,
		nav:        nopNavigator{},
		cached:     Session{State: StateAnonymous},
	}
	if st.Credential().AccessToken != "" {
		if id := st.Identity(); id != nil {
			m.cached = Session{State: StateAuthenticated, User: id, Provisional: true}
		} else {
			m.cached = Session{State: StateUnknown, Provisional: true}
		}
	}
	gw.OnSessionExpired(m.expire)
	return m
}

// SetNavigator wires the UI's navigation hook for teardown redirects.
func (m *Manager) SetNavigator(nav Navigator) {
	m.nav = nav
}

// Current returns the cached session without touching the network.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cached
}

// Read returns the session state, verifying against the service when the
// cached value is unverified, stale, or invalidated. With no access token the
// state resolves to Anonymous without any network call. Concurrent readers
// share one verification call.
func (m *Manager) Read(ctx context.Context) (Session, error) {
	if m.store.Credential().AccessToken == "" {
		s := Session{State: StateAnonymous}
		m.put(s)
		return s, nil
	}

	m.mu.Lock()
	if m.verified && time.Since(m.fetchedAt) < m.staleAfter {
		s := m.cached
		m.mu.Unlock()
		return s, nil
	}
	provisional := m.cached
	m.mu.Unlock()

	v, err, _ := m.verifyGroup.Do("session", func() (interface{}, error) {
		return m.verify(ctx)
	})
	if err != nil {
		// Transport-level failure: the state is unknown, not anonymous.
		return Session{State: StateUnknown, User: provisional.User, Provisional: true}, err
	}
	return v.(Session), nil
}

// verify asks the service about the current token. An invalid credential is a
// state, not a fault: it resolves to Anonymous without an error.
func (m *Manager) verify(ctx context.Context) (Session, error) {
	resp, err := m.gateway.Verify(ctx)
	if err != nil {
		if errors.Is(err, api.ErrSessionExpired) {
			// Teardown already ran; expire() cached Anonymous.
			return Session{State: StateAnonymous}, nil
		}
		var statusErr *api.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
			s := Session{State: StateAnonymous}
			m.put(s)
			return s, nil
		}
		return Session{}, err
	}
	if !resp.Valid {
		s := Session{State: StateAnonymous}
		m.put(s)
		return s, nil
	}

	user := resp.User
	s := Session{State: StateAuthenticated, User: &user}
	m.put(s)
	return s, nil
}

// Invalidate forces the next Read to re-verify. Idempotent.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.verified = false
	m.mu.Unlock()
}

// Login validates the form input, authenticates against the service, and
// persists the returned credential and identity. The cache is invalidated
// rather than trusted: the next Read re-verifies instead of believing the
// login payload indefinitely.
func (m *Manager) Login(ctx context.Context, email, password string) (Session, error) {
	if err := validation.Login(email, password); err != nil {
		return Session{}, err
	}
	resp, err := m.gateway.Login(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return m.establish(resp)
}

// Register creates an account and signs the new user in.
func (m *Manager) Register(ctx context.Context, email, password, confirm string) (Session, error) {
	if err := validation.Register(email, password, confirm); err != nil {
		return Session{}, err
	}
	resp, err := m.gateway.Register(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return m.establish(resp)
}

func (m *Manager) establish(resp *api.AuthResponse) (Session, error) {
	cred := store.Credential{AccessToken: resp.Token, RefreshToken: resp.RefreshToken}
	if err := m.store.Set(cred, resp.User); err != nil {
		return Session{}, err
	}

	user := resp.User
	s := Session{State: StateAuthenticated, User: &user, Provisional: true}
	m.mu.Lock()
	m.cached = s
	m.verified = false
	m.mu.Unlock()

	m.log.Info("session established", zap.String("email", user.Email))
	return s, nil
}

// Logout tears the session down locally and notifies the service without
// waiting for it; the local teardown does not depend on the call landing.
func (m *Manager) Logout(ctx context.Context) error {
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), logoutNotifyTimeout)
		defer cancel()
		if err := m.gateway.Logout(nctx); err != nil {
			m.log.Debug("logout notification failed", zap.Error(err))
		}
	}()

	if err := m.store.Clear(); err != nil {
		return err
	}
	m.put(Session{State: StateAnonymous})
	m.log.Info("session cleared")
	m.redirect()
	return nil
}

// expire is the gateway's teardown hook. The store is already cleared when it
// runs, so drop the cached session and land the user on the login surface.
func (m *Manager) expire() {
	m.put(Session{State: StateAnonymous})
	m.log.Info("session expired")
	m.redirect()
}

func (m *Manager) put(s Session) {
	m.mu.Lock()
	m.cached = s
	m.fetchedAt = time.Now()
	m.verified = true
	m.mu.Unlock()
}

func (m *Manager) redirect() {
	if m.nav.Current() != SurfaceLogin {
		m.nav.GoTo(SurfaceLogin)
	}
}
