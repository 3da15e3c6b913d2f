// Package session owns the authenticated state of one browser tab: which
// identity is logged in, which bearer token outgoing calls carry, and how an
// expired token is traded for a new one.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/courier-portal/internal/domain"
	"github.com/spec-kit/courier-portal/internal/events"
	"github.com/spec-kit/courier-portal/internal/gateway"
	"github.com/spec-kit/courier-portal/internal/guard"
	"github.com/spec-kit/courier-portal/internal/storage"
	"github.com/spec-kit/courier-portal/internal/token"
)

const (
	refreshTimeout = 30 * time.Second
	initTimeout    = 10 * time.Second
)

const (
	msgLoginSucceeded = "Logged in successfully"
	msgRegistered     = "Account created successfully"
	msgLoggedOut      = "Logged out successfully"
)

// ErrNotAuthenticated is returned by operations that need an active session.
var ErrNotAuthenticated = errors.New("not authenticated")

var errStorageRead = errors.New("session storage read failed")

// Gateway is the credential exchange the manager relies on.
type Gateway interface {
	Login(ctx context.Context, creds gateway.Credentials) (*gateway.Grant, error)
	Register(ctx context.Context, reg gateway.CustomerRegistration) (*gateway.Grant, error)
	Refresh(ctx context.Context, refreshToken string, fallback domain.IdentityType) (*gateway.Grant, error)
	IsAuthEndpoint(path string) bool
}

// Navigator receives the destination chosen after logout.
type Navigator func(destination string)

// Options wires a Manager.
type Options struct {
	// ID identifies the tab session in events and logs.
	ID string
	// Store is the tab scoped storage. Required.
	Store storage.Store
	// Legacy is long lived device storage, read once for migration.
	Legacy     storage.Store
	Gateway    Gateway
	Codec      *token.Codec
	Transport  http.RoundTripper
	Notifier   Notifier
	Dispatcher events.Dispatcher
	// Logger is the process logger. The manager tags it with session_id.
	Logger *zap.Logger
}

// Manager is the single source of truth for one tab's session. It is the
// only writer of auth keys in its stores.
type Manager struct {
	id         string
	store      storage.Store
	legacy     storage.Store
	gateway    Gateway
	codec      *token.Codec
	notifier   Notifier
	dispatcher events.Dispatcher
	logger     *zap.Logger
	client     *http.Client

	mu      sync.RWMutex
	user    *domain.User
	loading bool
	bearer  string

	initMu      sync.Mutex
	initialized bool
	refresh     singleflight.Group

	listenersMu sync.Mutex
	listeners   map[int]func(domain.State)
	nextID      int
}

// NewManager builds a manager in the loading state. Initialize must be
// called before the state is meaningful.
func NewManager(opts Options) *Manager {
	m := &Manager{
		id:         opts.ID,
		store:      opts.Store,
		legacy:     opts.Legacy,
		gateway:    opts.Gateway,
		codec:      opts.Codec,
		notifier:   opts.Notifier,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger,
		loading:    true,
		listeners:  make(map[int]func(domain.State)),
	}
	if m.id == "" {
		m.id = uuid.NewString()
	}
	if m.codec == nil {
		m.codec = token.NewCodec(nil)
	}
	if m.notifier == nil {
		m.notifier = NopNotifier{}
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.With(zap.String("session_id", m.id))

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	m.client = &http.Client{Transport: &Interceptor{manager: m, base: base}}
	return m
}

// ID returns the tab session id.
func (m *Manager) ID() string {
	return m.id
}

// HTTPClient returns the client every authenticated backend call must use.
// It carries the bearer header and recovers from expired tokens.
func (m *Manager) HTTPClient() *http.Client {
	return m.client
}

// State returns a snapshot of the session.
func (m *Manager) State() domain.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.State{User: copyUser(m.user), Loading: m.loading}
}

// User returns a copy of the authenticated principal or nil.
func (m *Manager) User() *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyUser(m.user)
}

// Bearer returns the access token installed for outgoing calls.
func (m *Manager) Bearer() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bearer
}

func (m *Manager) IsAuthenticated() bool { return m.User() != nil }
func (m *Manager) IsAdmin() bool         { return m.is(domain.IdentityAdmin) }
func (m *Manager) IsStaff() bool         { return m.is(domain.IdentityStaff) }
func (m *Manager) IsCustomer() bool      { return m.is(domain.IdentityCustomer) }
func (m *Manager) IsDeliveryAgent() bool { return m.is(domain.IdentityDeliveryAgent) }

func (m *Manager) is(t domain.IdentityType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.user.UserType == t
}

// Subscribe registers fn to be called with the new state after every
// change. The returned func removes the subscription.
func (m *Manager) Subscribe(fn func(domain.State)) func() {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()
		delete(m.listeners, id)
	}
}

// Initialize restores the session from storage. Concurrent callers block
// until the running attempt completes. Loading is false on return whatever
// happened. An attempt that could not read storage leaves the tab anonymous
// and the next call tries again; once storage was read, later calls are
// no-ops.
func (m *Manager) Initialize(ctx context.Context) {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.initialized {
		return
	}

	// the caller's deadline belongs to one request, not to the tab
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), initTimeout)
	defer cancel()
	m.initialized = m.initialize(ictx)
}

// initialize reports whether storage could be read.
func (m *Manager) initialize(ctx context.Context) bool {
	m.migrateLegacy(ctx)

	ns, access, found, err := m.findToken(ctx, func(k storage.NamespaceKeys) string { return k.Token })
	if err != nil {
		return m.initUnavailable(err)
	}
	if !found {
		m.setState(nil, "", events.Event{})
		return true
	}

	if !m.codec.IsExpired(access) {
		user, err := m.restoreUser(ctx, ns)
		if errors.Is(err, errStorageRead) {
			return m.initUnavailable(err)
		}
		if err != nil || user == nil {
			m.logger.Warn("stored session unusable, starting anonymous", zap.Error(err))
			m.clear(ctx, "corrupt_storage", true)
			return true
		}
		m.setState(user, access, events.Event{Type: events.EventSessionRestored, UserType: user.UserType})
		return true
	}

	_, ok, err := m.store.Get(ctx, storage.KeysFor(ns).Refresh)
	if err != nil {
		return m.initUnavailable(err)
	}
	if ok {
		m.Refresh(ctx)
		return true
	}
	m.clear(ctx, "expired", true)
	return true
}

func (m *Manager) initUnavailable(err error) bool {
	m.logger.Warn("session restore deferred", zap.Error(err))
	m.setState(nil, "", events.Event{})
	return false
}

// migrateLegacy moves auth keys out of long lived storage so existing
// sessions survive the switch to tab scoped storage.
func (m *Manager) migrateLegacy(ctx context.Context) {
	if m.legacy == nil {
		return
	}
	var moved []string
	for _, key := range storage.AuthKeys() {
		val, ok, err := m.legacy.Get(ctx, key)
		if err != nil {
			m.logger.Warn("legacy storage read failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if err := m.store.Set(ctx, key, val); err != nil {
			m.logger.Warn("legacy storage copy failed", zap.String("key", key), zap.Error(err))
			continue
		}
		moved = append(moved, key)
	}
	if len(moved) == 0 {
		return
	}
	if err := m.legacy.Remove(ctx, moved...); err != nil {
		m.logger.Warn("legacy storage cleanup failed", zap.Error(err))
	}
	m.logger.Info("migrated legacy auth keys", zap.Strings("keys", moved))
	m.publish(ctx, events.Event{Type: events.EventStorageMigrated, Payload: events.MigratedPayload{Keys: moved}})
}

// findToken returns the first non-empty value across namespaces in
// priority order: admin, customer, agent. A failed read stops the scan, since
// a lower priority hit could not be trusted.
func (m *Manager) findToken(ctx context.Context, pick func(storage.NamespaceKeys) string) (domain.Namespace, string, bool, error) {
	for _, ns := range domain.Namespaces() {
		val, ok, err := m.store.Get(ctx, pick(storage.KeysFor(ns)))
		if err != nil {
			return "", "", false, fmt.Errorf("%w: namespace %s: %w", errStorageRead, ns, err)
		}
		if ok && val != "" {
			return ns, val, true, nil
		}
	}
	return "", "", false, nil
}

// restoreUser loads the canonical user record, falling back to the legacy
// per-namespace record. A canonical record from another namespace is stale.
func (m *Manager) restoreUser(ctx context.Context, ns domain.Namespace) (*domain.User, error) {
	raw, ok, err := m.store.Get(ctx, storage.KeyUser)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errStorageRead, err)
	}
	if ok {
		var u domain.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("decode user record: %w", err)
		}
		if !u.UserType.Valid() {
			u.UserType = ns.DefaultIdentity()
		}
		if domain.NamespaceFor(u.UserType) == ns {
			return &u, nil
		}
	}

	legacyKey := storage.KeysFor(ns).LegacyUser
	raw, ok, err = m.store.Get(ctx, legacyKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errStorageRead, err)
	}
	if !ok {
		return nil, nil
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode legacy user record: %w", err)
	}
	u := domain.UserFromRecord(rec, ns.DefaultIdentity())
	if u == nil {
		return nil, nil
	}
	if err := m.writeUser(ctx, u); err != nil {
		return nil, err
	}
	if err := m.store.Remove(ctx, legacyKey); err != nil {
		m.logger.Warn("legacy user cleanup failed", zap.String("key", legacyKey), zap.Error(err))
	}
	return u, nil
}

// LoginAs exchanges creds for a session. Any previous session in this tab
// is replaced. Failures come back as *gateway.LoginError and leave the
// current state untouched.
func (m *Manager) LoginAs(ctx context.Context, creds gateway.Credentials) (*domain.User, error) {
	grant, err := m.gateway.Login(ctx, creds)
	if err != nil {
		return nil, m.loginFailed(ctx, creds.Identity(), err)
	}
	if err := m.establish(ctx, grant); err != nil {
		return nil, m.loginFailed(ctx, creds.Identity(), err)
	}
	m.notifier.Notify(ctx, Notification{Level: LevelSuccess, Message: msgLoginSucceeded})
	return copyUser(grant.User), nil
}

// Register signs a customer up and logs them in.
func (m *Manager) Register(ctx context.Context, reg gateway.CustomerRegistration) (*domain.User, error) {
	grant, err := m.gateway.Register(ctx, reg)
	if err != nil {
		return nil, m.loginFailed(ctx, domain.IdentityCustomer, err)
	}
	if err := m.establish(ctx, grant); err != nil {
		return nil, m.loginFailed(ctx, domain.IdentityCustomer, err)
	}
	m.notifier.Notify(ctx, Notification{Level: LevelSuccess, Message: msgRegistered})
	return copyUser(grant.User), nil
}

func (m *Manager) loginFailed(ctx context.Context, attempted domain.IdentityType, err error) error {
	var le *gateway.LoginError
	if !errors.As(err, &le) {
		le = &gateway.LoginError{Message: "Login failed", Err: err}
	}
	m.logger.Info("login rejected", zap.String("identity", string(attempted)), zap.Error(err))
	m.notifier.Notify(ctx, Notification{Level: LevelError, Message: le.Message})
	m.publish(ctx, events.Event{
		Type:     events.EventLoginFailed,
		UserType: attempted,
		Payload:  events.LoginFailedPayload{Attempted: attempted, Message: le.Message},
	})
	return le
}

// establish stores grant and makes it the active session. If storage fails
// part way the previous keys are put back, so the session in memory still
// has its token. When even that fails the tab is logged out.
func (m *Manager) establish(ctx context.Context, grant *gateway.Grant) error {
	keys := storage.KeysFor(domain.NamespaceFor(grant.User.UserType))

	prior, err := m.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := m.writeGrant(ctx, keys, grant); err != nil {
		m.rollback(ctx, prior)
		return err
	}

	m.setState(grant.User, grant.AccessToken, events.Event{Type: events.EventSessionEstablished, UserType: grant.User.UserType})
	return nil
}

func (m *Manager) writeGrant(ctx context.Context, keys storage.NamespaceKeys, grant *gateway.Grant) error {
	if err := m.store.Set(ctx, keys.Token, grant.AccessToken); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if grant.RefreshToken != "" {
		if err := m.store.Set(ctx, keys.Refresh, grant.RefreshToken); err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
	}
	if err := m.writeUser(ctx, grant.User); err != nil {
		return err
	}

	// a new session replaces every other namespace so restore cannot pick a stale one
	if err := m.store.Remove(ctx, staleKeys(keys, grant.RefreshToken != "")...); err != nil {
		return fmt.Errorf("reset session storage: %w", err)
	}
	return nil
}

// staleKeys lists the auth keys a freshly written session does not own.
func staleKeys(keys storage.NamespaceKeys, hasRefresh bool) []string {
	var out []string
	for _, key := range storage.AuthKeys() {
		if key == keys.Token || key == storage.KeyUser || (hasRefresh && key == keys.Refresh) {
			continue
		}
		out = append(out, key)
	}
	return out
}

// snapshot reads every auth key currently present.
func (m *Manager) snapshot(ctx context.Context) (map[string]string, error) {
	prior := make(map[string]string)
	for _, key := range storage.AuthKeys() {
		val, ok, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read session storage: %w", err)
		}
		if ok {
			prior[key] = val
		}
	}
	return prior, nil
}

// rollback puts prior back in place. If storage refuses, the whole session
// is dropped instead.
func (m *Manager) rollback(ctx context.Context, prior map[string]string) {
	var absent []string
	for _, key := range storage.AuthKeys() {
		val, ok := prior[key]
		if !ok {
			absent = append(absent, key)
			continue
		}
		if err := m.store.Set(ctx, key, val); err != nil {
			m.logger.Error("session rollback failed", zap.String("key", key), zap.Error(err))
			m.clear(ctx, "storage_failure", true)
			return
		}
	}
	if err := m.store.Remove(ctx, absent...); err != nil {
		m.logger.Error("session rollback failed", zap.Error(err))
		m.clear(ctx, "storage_failure", true)
	}
}

func (m *Manager) writeUser(ctx context.Context, u *domain.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}
	if err := m.store.Set(ctx, storage.KeyUser, string(b)); err != nil {
		return fmt.Errorf("store user record: %w", err)
	}
	return nil
}

// Refresh trades the stored refresh token for a new access token. Concurrent
// callers share one exchange. Any failure logs the tab out silently and
// yields false.
func (m *Manager) Refresh(ctx context.Context) bool {
	v, _, _ := m.refresh.Do("refresh", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.doRefresh(rctx), nil
	})
	ok, _ := v.(bool)
	return ok
}

func (m *Manager) doRefresh(ctx context.Context) bool {
	ns, refreshToken, found, err := m.findToken(ctx, func(k storage.NamespaceKeys) string { return k.Refresh })
	if err != nil {
		// storage hiccup; the session stays as it is
		m.logger.Warn("refresh token unreadable", zap.Error(err))
		return false
	}
	if !found {
		m.refreshFailed(ctx, errors.New("no refresh token"))
		return false
	}

	current := m.User()
	fallback := ns.DefaultIdentity()
	if current != nil && domain.NamespaceFor(current.UserType) == ns {
		fallback = current.UserType
	}

	grant, err := m.gateway.Refresh(ctx, refreshToken, fallback)
	if err != nil {
		m.refreshFailed(ctx, err)
		return false
	}

	user := grant.User
	if user == nil {
		user = current
	}
	if user == nil {
		if restored, err := m.restoreUser(ctx, ns); err == nil && restored != nil {
			user = restored
		} else {
			user = &domain.User{UserType: fallback}
		}
	}

	keys := storage.KeysFor(domain.NamespaceFor(user.UserType))
	if err := m.store.Set(ctx, keys.Token, grant.AccessToken); err != nil {
		m.refreshFailed(ctx, err)
		return false
	}
	if grant.RefreshToken != "" {
		if err := m.store.Set(ctx, keys.Refresh, grant.RefreshToken); err != nil {
			m.refreshFailed(ctx, err)
			return false
		}
	}
	if err := m.writeUser(ctx, user); err != nil {
		m.refreshFailed(ctx, err)
		return false
	}

	m.setState(user, grant.AccessToken, events.Event{Type: events.EventSessionRefreshed, UserType: user.UserType})
	return true
}

func (m *Manager) refreshFailed(ctx context.Context, err error) {
	m.logger.Info("session refresh failed", zap.Error(err))
	m.publish(ctx, events.Event{Type: events.EventRefreshFailed, Payload: err.Error()})
	m.LogoutSilently(ctx, nil)
}

// LogoutWithNotification ends the session and tells the user so.
func (m *Manager) LogoutWithNotification(ctx context.Context, nav Navigator) {
	m.logout(ctx, nav, false)
}

// LogoutSilently ends the session without a notification. Forced logouts
// use it so several failing requests do not stack up toasts.
func (m *Manager) LogoutSilently(ctx context.Context, nav Navigator) {
	m.logout(ctx, nav, true)
}

func (m *Manager) logout(ctx context.Context, nav Navigator, silent bool) {
	var previous domain.IdentityType
	if u := m.User(); u != nil {
		previous = u.UserType
	}

	m.clear(ctx, "logout", silent)

	if !silent {
		m.notifier.Notify(ctx, Notification{Level: LevelSuccess, Message: msgLoggedOut})
	}
	if nav != nil {
		nav(guard.LogoutDestination(previous))
	}
}

// clear removes every auth key from both stores and drops the in-memory
// session. Safe to call when already logged out.
func (m *Manager) clear(ctx context.Context, reason string, silent bool) {
	previous := m.User()

	keys := storage.AuthKeys()
	if err := m.store.Remove(ctx, keys...); err != nil {
		m.logger.Warn("session storage cleanup failed", zap.Error(err))
	}
	if m.legacy != nil {
		if err := m.legacy.Remove(ctx, keys...); err != nil {
			m.logger.Warn("legacy storage cleanup failed", zap.Error(err))
		}
	}

	evt := events.Event{Type: events.EventSessionCleared, Payload: events.ClearedPayload{Reason: reason, Silent: silent}}
	if previous != nil {
		evt.UserType = previous.UserType
	} else {
		// nothing was active; only resolve loading
		evt = events.Event{}
	}
	m.setState(nil, "", evt)
}

// UpdateProfile replaces fields of the active user, as profile completion
// flows do.
func (m *Manager) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (*domain.User, error) {
	current := m.User()
	if current == nil {
		return nil, ErrNotAuthenticated
	}
	updated := patch.Apply(*current)
	if err := m.writeUser(ctx, &updated); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.user = copyUser(&updated)
	m.mu.Unlock()

	m.emit(ctx, events.Event{Type: events.EventProfileUpdated, UserType: updated.UserType})
	return copyUser(&updated), nil
}

// setState swaps the in-memory session and resolves loading. evt is
// published afterwards unless its Type is empty.
func (m *Manager) setState(user *domain.User, bearer string, evt events.Event) {
	m.mu.Lock()
	m.user = copyUser(user)
	m.bearer = bearer
	m.loading = false
	m.mu.Unlock()

	m.emit(context.Background(), evt)
}

func (m *Manager) emit(ctx context.Context, evt events.Event) {
	if evt.Type != "" {
		m.publish(ctx, evt)
	}

	state := m.State()
	m.listenersMu.Lock()
	fns := make([]func(domain.State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenersMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (m *Manager) publish(ctx context.Context, evt events.Event) {
	if m.dispatcher == nil {
		return
	}
	evt.ID = uuid.NewString()
	evt.SessionID = m.id
	evt.Timestamp = time.Now().UTC()
	if err := m.dispatcher.Publish(ctx, evt); err != nil {
		m.logger.Warn("event handler failed", zap.String("event", string(evt.Type)), zap.Error(err))
	}
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
