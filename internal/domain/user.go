package domain

import (
	"strconv"
	"strings"
)

// User is the authenticated principal record kept for the active session.
type User struct {
	ID              string       `json:"id,omitempty"`
	UserType        IdentityType `json:"userType"`
	Name            string       `json:"name,omitempty"`
	Email           string       `json:"email,omitempty"`
	Username        string       `json:"username,omitempty"`
	Phone           string       `json:"phone,omitempty"`
	Role            string       `json:"role,omitempty"`
	ProfileComplete bool         `json:"profileComplete,omitempty"`
}

// DisplayName returns the best human readable label for the user.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	for _, v := range []string{u.Name, u.Username, u.Email} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return string(u.UserType)
}

// UserFromRecord normalizes a loosely shaped backend record. The fallback
// identity is applied when the record does not carry a valid userType.
func UserFromRecord(rec map[string]any, fallback IdentityType) *User {
	if rec == nil {
		return nil
	}
	u := &User{
		ID:       firstString(rec, "id", "_id", "userId", "agentId"),
		Name:     firstString(rec, "name", "fullName", "displayName"),
		Email:    firstString(rec, "email"),
		Username: firstString(rec, "username"),
		Phone:    firstString(rec, "phone", "phoneNumber", "mobile"),
		Role:     firstString(rec, "role"),
	}
	if v, ok := rec["profileComplete"].(bool); ok {
		u.ProfileComplete = v
	}
	u.UserType = IdentityType(firstString(rec, "userType"))
	if !u.UserType.Valid() {
		u.UserType = fallback
	}
	return u
}

func firstString(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	}
	return ""
}

// ProfilePatch carries the fields a profile-completion flow may replace.
// Nil fields are left untouched.
type ProfilePatch struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	ProfileComplete *bool   `json:"profileComplete,omitempty"`
}

// Apply returns a copy of u with the patch applied.
func (p ProfilePatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.ProfileComplete != nil {
		u.ProfileComplete = *p.ProfileComplete
	}
	return u
}
