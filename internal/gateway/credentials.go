package gateway

import "github.com/spec-kit/courier-portal/internal/domain"

// Credentials is the closed set of login payloads, one per identity variant.
type Credentials interface {
	Identity() domain.IdentityType
	endpoint(Endpoints) string
}

// AdminCredentials logs an administrator in by username.
type AdminCredentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// StaffCredentials logs an internal staff member in.
type StaffCredentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CustomerCredentials logs a customer in.
type CustomerCredentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// DeliveryAgentCredentials logs a delivery agent in.
type DeliveryAgentCredentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (AdminCredentials) Identity() domain.IdentityType { return domain.IdentityAdmin }
func (StaffCredentials) Identity() domain.IdentityType { return domain.IdentityStaff }
func (CustomerCredentials) Identity() domain.IdentityType { return domain.IdentityCustomer }
func (DeliveryAgentCredentials) Identity() domain.IdentityType { return domain.IdentityDeliveryAgent }

func (AdminCredentials) endpoint(e Endpoints) string { return e.AdminLogin }
func (StaffCredentials) endpoint(e Endpoints) string { return e.StaffLogin }
func (CustomerCredentials) endpoint(e Endpoints) string { return e.CustomerLogin }
func (DeliveryAgentCredentials) endpoint(e Endpoints) string { return e.DeliveryAgentLogin }

// CustomerRegistration is the self sign-up payload.
type CustomerRegistration struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Pincode  string `json:"pincode,omitempty"`
}

// Endpoints are backend paths relative to the base URL.
type Endpoints struct {
	AdminLogin         string
	StaffLogin         string
	CustomerLogin      string
	DeliveryAgentLogin string
	Register           string
	Refresh            string
}

// DefaultEndpoints matches the courier backend's route table.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		AdminLogin:         "/auth/admin/login",
		StaffLogin:         "/auth/staff/login",
		CustomerLogin:      "/auth/login",
		DeliveryAgentLogin: "/delivery-agent/login",
		Register:           "/auth/register",
		Refresh:            "/auth/refresh",
	}
}

func (e Endpoints) all() []string {
	return []string{e.AdminLogin, e.StaffLogin, e.CustomerLogin, e.DeliveryAgentLogin, e.Register, e.Refresh}
}
