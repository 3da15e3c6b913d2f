package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserFromRecord(t *testing.T) {
	u := UserFromRecord(map[string]any{
		"_id":      float64(42),
		"fullName": "Asha Rao",
		"email":    "asha@example.com",
	}, IdentityDeliveryAgent)
	require.NotNil(t, u)

	assert.Equal(t, "42", u.ID)
	assert.Equal(t, "Asha Rao", u.Name)
	assert.Equal(t, IdentityDeliveryAgent, u.UserType)
}

func TestUserFromRecord_KeepsValidUserType(t *testing.T) {
	u := UserFromRecord(map[string]any{"userType": "staff", "name": "Ops"}, IdentityDeliveryAgent)
	assert.Equal(t, IdentityStaff, u.UserType)

	u = UserFromRecord(map[string]any{"userType": "root"}, IdentityAdmin)
	assert.Equal(t, IdentityAdmin, u.UserType)

	assert.Nil(t, UserFromRecord(nil, IdentityAdmin))
}

func TestNamespaceFor(t *testing.T) {
	assert.Equal(t, NamespaceAdmin, NamespaceFor(IdentityAdmin))
	assert.Equal(t, NamespaceCustomer, NamespaceFor(IdentityCustomer))
	assert.Equal(t, NamespaceAgent, NamespaceFor(IdentityDeliveryAgent))
	assert.Equal(t, NamespaceAgent, NamespaceFor(IdentityStaff))
}

func TestProfilePatchApply(t *testing.T) {
	name := "New Name"
	done := true
	u := ProfilePatch{Name: &name, ProfileComplete: &done}.Apply(User{Name: "Old", Email: "a@b.c"})

	assert.Equal(t, "New Name", u.Name)
	assert.Equal(t, "a@b.c", u.Email)
	assert.True(t, u.ProfileComplete)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "root", (&User{Username: "root", UserType: IdentityAdmin}).DisplayName())
	assert.Equal(t, "customer", (&User{UserType: IdentityCustomer}).DisplayName())
	var u *User
	assert.Equal(t, "", u.DisplayName())
}
