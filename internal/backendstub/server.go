// Package backendstub is a small stand-in for the courier REST backend. It
// issues real signed tokens so the portal can be exercised end to end in
// tests and local development.
package backendstub

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/courier-portal/internal/domain"
)

// Account is a seeded login.
type Account struct {
	ID           string
	UserType     domain.IdentityType
	Login        string
	Name         string
	PasswordHash string
}

// Options configures the stub.
type Options struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// Server is the fake backend.
type Server struct {
	tokens     *TokenManager
	accessTTL  time.Duration
	refreshTTL time.Duration
	cost       int

	mu       sync.RWMutex
	accounts map[string]*Account

	refreshCalls  atomic.Int64
	failRefresh   atomic.Bool
	protectedHits atomic.Int64

	app *fiber.App
}

// New builds a stub with no accounts.
func New(opts Options) *Server {
	if opts.Secret == "" {
		opts.Secret = "stub-secret"
	}
	if opts.AccessTTL == 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL == 0 {
		opts.RefreshTTL = 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	s := &Server{
		tokens:     NewTokenManager(opts.Secret),
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		cost:       opts.BcryptCost,
		accounts:   make(map[string]*Account),
	}
	s.app = s.routes()
	return s
}

// App exposes the fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Handler adapts the stub to net/http, for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Tokens exposes the signer so tests can mint tokens directly.
func (s *Server) Tokens() *TokenManager {
	return s.tokens
}

// AddAccount seeds a login for userType. login is the username for admins
// and the email address for everyone else.
func (s *Server) AddAccount(userType domain.IdentityType, login, password, name string) (*Account, error) {
	hash, err := hashPassword(password, s.cost)
	if err != nil {
		return nil, err
	}
	acc := &Account{ID: uuid.NewString(), UserType: userType, Login: login, Name: name, PasswordHash: hash}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountKey(userType, login)] = acc
	return acc, nil
}

// RefreshCalls counts requests to the refresh endpoint.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// ProtectedHits counts requests that reached a protected handler.
func (s *Server) ProtectedHits() int64 {
	return s.protectedHits.Load()
}

// FailRefresh makes the refresh endpoint reject every call.
func (s *Server) FailRefresh(fail bool) {
	s.failRefresh.Store(fail)
}

func accountKey(userType domain.IdentityType, login string) string {
	return string(userType) + "|" + strings.ToLower(login)
}

func (s *Server) lookup(userType domain.IdentityType, login string) (*Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[accountKey(userType, login)]
	return acc, ok
}

func (s *Server) byID(id string) (*Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acc := range s.accounts {
		if acc.ID == id {
			return acc, true
		}
	}
	return nil, false
}

func (a *Account) record() fiber.Map {
	rec := fiber.Map{"id": a.ID, "userType": a.UserType, "name": a.Name}
	if a.UserType == domain.IdentityAdmin {
		rec["username"] = a.Login
	} else {
		rec["email"] = a.Login
	}
	return rec
}
