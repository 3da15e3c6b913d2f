package domain

// IdentityType tags the kind of actor a session belongs to.
type IdentityType string

const (
	IdentityAdmin         IdentityType = "admin"
	IdentityCustomer      IdentityType = "customer"
	IdentityDeliveryAgent IdentityType = "delivery_agent"
	IdentityStaff         IdentityType = "staff"
)

// IdentityTypes lists every identity variant.
func IdentityTypes() []IdentityType {
	return []IdentityType{IdentityAdmin, IdentityCustomer, IdentityDeliveryAgent, IdentityStaff}
}

// Valid reports whether t is one of the known variants.
func (t IdentityType) Valid() bool {
	switch t {
	case IdentityAdmin, IdentityCustomer, IdentityDeliveryAgent, IdentityStaff:
		return true
	}
	return false
}

// Namespace partitions stored tokens. Delivery agents and staff are both
// internal operators and share the agent namespace.
type Namespace string

const (
	NamespaceAdmin    Namespace = "admin"
	NamespaceCustomer Namespace = "customer"
	NamespaceAgent    Namespace = "agent"
)

// Namespaces returns namespaces in token discovery priority order.
func Namespaces() []Namespace {
	return []Namespace{NamespaceAdmin, NamespaceCustomer, NamespaceAgent}
}

// NamespaceFor maps an identity variant onto its token namespace.
func NamespaceFor(t IdentityType) Namespace {
	switch t {
	case IdentityAdmin:
		return NamespaceAdmin
	case IdentityCustomer:
		return NamespaceCustomer
	default:
		return NamespaceAgent
	}
}

// DefaultIdentity is the variant assumed for a namespace when a stored
// record carries no userType.
func (n Namespace) DefaultIdentity() IdentityType {
	switch n {
	case NamespaceAdmin:
		return IdentityAdmin
	case NamespaceCustomer:
		return IdentityCustomer
	default:
		return IdentityDeliveryAgent
	}
}
