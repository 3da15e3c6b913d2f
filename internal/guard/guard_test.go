package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/courier-portal/internal/domain"
)

func user(t domain.IdentityType) *domain.User {
	return &domain.User{UserType: t, Name: "x"}
}

func TestDecide_Checking(t *testing.T) {
	d := Decide(Input{Loading: true, User: user(domain.IdentityAdmin), Path: "/admin/dashboard"})
	assert.Equal(t, Checking, d.Outcome)
	assert.Empty(t, d.RedirectTo)
}

func TestDecide_UnauthenticatedUsesPathPrefix(t *testing.T) {
	cases := map[string]string{
		"/delivery-agent/tasks": "/delivery-agent/login?from=%2Fdelivery-agent%2Ftasks",
		"/customer/bookings/7":  "/customer/login?from=%2Fcustomer%2Fbookings%2F7",
		"/admin/complaints":     "/admin/login?from=%2Fadmin%2Fcomplaints",
		"/staff/queue":          "/admin/login?from=%2Fstaff%2Fqueue",
		"/customers-area":       "/admin/login?from=%2Fcustomers-area",
	}
	for path, want := range cases {
		d := Decide(Input{Path: path})
		assert.Equal(t, Unauthenticated, d.Outcome, path)
		assert.Equal(t, want, d.RedirectTo, path)
	}
}

func TestDecide_WrongRolePrefersActualRole(t *testing.T) {
	d := Decide(Input{
		User:         user(domain.IdentityCustomer),
		AllowedRoles: []domain.IdentityType{domain.IdentityAdmin},
		Path:         "/admin/users",
	})
	assert.Equal(t, WrongRole, d.Outcome)
	assert.Equal(t, "/customer/login?from=%2Fadmin%2Fusers", d.RedirectTo)

	d = Decide(Input{
		User:         user(domain.IdentityDeliveryAgent),
		AllowedRoles: []domain.IdentityType{domain.IdentityCustomer},
		Path:         "/customer/bookings",
	})
	assert.Equal(t, "/delivery-agent/login?from=%2Fcustomer%2Fbookings", d.RedirectTo)
}

func TestDecide_WrongRoleFallsBackToPath(t *testing.T) {
	d := Decide(Input{
		User:         user(domain.IdentityStaff),
		AllowedRoles: []domain.IdentityType{domain.IdentityCustomer},
		Path:         "/customer/bookings",
	})
	assert.Equal(t, WrongRole, d.Outcome)
	assert.Equal(t, "/customer/login?from=%2Fcustomer%2Fbookings", d.RedirectTo)
}

func TestDecide_AuthorizedIffRoleAllowed(t *testing.T) {
	for _, ut := range domain.IdentityTypes() {
		d := Decide(Input{User: user(ut), Path: "/anything"})
		assert.Equal(t, Authorized, d.Outcome, "no restriction for %s", ut)

		d = Decide(Input{User: user(ut), AllowedRoles: []domain.IdentityType{ut}, Path: "/anything"})
		assert.Equal(t, Authorized, d.Outcome, "allowed %s", ut)
	}

	d := Decide(Input{
		User:         user(domain.IdentityAdmin),
		AllowedRoles: []domain.IdentityType{domain.IdentityStaff, domain.IdentityAdmin},
	})
	assert.Equal(t, Authorized, d.Outcome)
}

func TestLogoutDestination(t *testing.T) {
	assert.Equal(t, AdminLogin, LogoutDestination(domain.IdentityAdmin))
	assert.Equal(t, DeliveryAgentLogin, LogoutDestination(domain.IdentityDeliveryAgent))
	assert.Equal(t, CustomerLogin, LogoutDestination(domain.IdentityCustomer))
	assert.Equal(t, StaffEntry, LogoutDestination(domain.IdentityStaff))
	assert.Equal(t, Home, LogoutDestination(""))
}
