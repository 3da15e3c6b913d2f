// Package guard decides whether a protected view may render for the
// current session, and where to send the visitor when it may not.
package guard

import (
	"net/url"
	"strings"

	"github.com/spec-kit/courier-portal/internal/domain"
)

// Outcome is the guard's verdict for one navigation.
type Outcome int

const (
	Checking Outcome = iota
	Unauthenticated
	WrongRole
	Authorized
)

func (o Outcome) String() string {
	switch o {
	case Checking:
		return "checking"
	case Unauthenticated:
		return "unauthenticated"
	case WrongRole:
		return "wrong_role"
	case Authorized:
		return "authorized"
	}
	return "unknown"
}

const (
	AdminLogin         = "/admin/login"
	CustomerLogin      = "/customer/login"
	DeliveryAgentLogin = "/delivery-agent/login"
	StaffEntry         = "/staff"
	Home               = "/"

	deliveryAgentSection = "/delivery-agent"
	customerSection      = "/customer"
)

// Input is everything a decision depends on.
type Input struct {
	Loading      bool
	User         *domain.User
	AllowedRoles []domain.IdentityType
	Path         string
}

// Decision tells the caller to render, wait, or redirect.
type Decision struct {
	Outcome    Outcome
	RedirectTo string
}

// Decide evaluates the guard for in.
func Decide(in Input) Decision {
	if in.Loading {
		return Decision{Outcome: Checking}
	}
	if in.User == nil {
		return Decision{Outcome: Unauthenticated, RedirectTo: withFrom(LoginForPath(in.Path), in.Path)}
	}
	if len(in.AllowedRoles) > 0 && !contains(in.AllowedRoles, in.User.UserType) {
		dest := loginForRole(in.User.UserType)
		if dest == "" {
			dest = LoginForPath(in.Path)
		}
		return Decision{Outcome: WrongRole, RedirectTo: withFrom(dest, in.Path)}
	}
	return Decision{Outcome: Authorized}
}

// LoginForPath picks the login page for the section path belongs to.
func LoginForPath(path string) string {
	switch {
	case inSection(path, deliveryAgentSection):
		return DeliveryAgentLogin
	case inSection(path, customerSection):
		return CustomerLogin
	default:
		return AdminLogin
	}
}

// LogoutDestination is where a visitor lands after logging out as userType.
func LogoutDestination(userType domain.IdentityType) string {
	switch userType {
	case domain.IdentityAdmin:
		return AdminLogin
	case domain.IdentityDeliveryAgent:
		return DeliveryAgentLogin
	case domain.IdentityCustomer:
		return CustomerLogin
	case domain.IdentityStaff:
		return StaffEntry
	}
	return Home
}

func loginForRole(userType domain.IdentityType) string {
	switch userType {
	case domain.IdentityDeliveryAgent:
		return DeliveryAgentLogin
	case domain.IdentityCustomer:
		return CustomerLogin
	}
	return ""
}

func inSection(path, section string) bool {
	return path == section || strings.HasPrefix(path, section+"/")
}

func contains(roles []domain.IdentityType, t domain.IdentityType) bool {
	for _, r := range roles {
		if r == t {
			return true
		}
	}
	return false
}

func withFrom(dest, from string) string {
	if from == "" {
		return dest
	}
	return dest + "?from=" + url.QueryEscape(from)
}
