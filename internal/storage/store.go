package storage

import (
	"context"

	"github.com/spec-kit/courier-portal/internal/domain"
)

// Store is a string key/value store scoped to one browser tab (session
// scoped) or one device (long lived).
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)
}

const (
	KeyAdminToken           = "adminToken"
	KeyAdminRefreshToken    = "adminRefreshToken"
	KeyCustomerToken        = "customerToken"
	KeyCustomerRefreshToken = "customerRefreshToken"
	KeyAgentToken           = "agentToken"
	KeyAgentRefreshToken    = "agentRefreshToken"
	KeyUser                 = "user"

	// legacy per-namespace user records written by older clients
	KeyAdminUser    = "adminUser"
	KeyCustomerUser = "customerUser"
	KeyAgentUser    = "agentUser"
)

// NamespaceKeys groups the storage keys owned by one token namespace.
type NamespaceKeys struct {
	Token      string
	Refresh    string
	LegacyUser string
}

// KeysFor returns the storage keys for namespace ns.
func KeysFor(ns domain.Namespace) NamespaceKeys {
	switch ns {
	case domain.NamespaceAdmin:
		return NamespaceKeys{Token: KeyAdminToken, Refresh: KeyAdminRefreshToken, LegacyUser: KeyAdminUser}
	case domain.NamespaceCustomer:
		return NamespaceKeys{Token: KeyCustomerToken, Refresh: KeyCustomerRefreshToken, LegacyUser: KeyCustomerUser}
	default:
		return NamespaceKeys{Token: KeyAgentToken, Refresh: KeyAgentRefreshToken, LegacyUser: KeyAgentUser}
	}
}

// AuthKeys lists every auth related key, legacy ones included.
func AuthKeys() []string {
	keys := make([]string, 0, 10)
	for _, ns := range domain.Namespaces() {
		k := KeysFor(ns)
		keys = append(keys, k.Token, k.Refresh, k.LegacyUser)
	}
	return append(keys, KeyUser)
}
