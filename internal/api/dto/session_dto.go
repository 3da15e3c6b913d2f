package dto

import (
	"time"

	"github.com/spec-kit/courier-portal/internal/domain"
	"github.com/spec-kit/courier-portal/internal/session"
)

// ProfileUpdateRequest payload for PATCH /session/profile.
type ProfileUpdateRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=120"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Phone           *string `json:"phone" validate:"omitempty,min=7,max=20"`
	ProfileComplete *bool   `json:"profileComplete"`
}

// Patch converts the request to a domain patch.
func (r ProfileUpdateRequest) Patch() domain.ProfilePatch {
	return domain.ProfilePatch{
		Name:            r.Name,
		Email:           r.Email,
		Phone:           r.Phone,
		ProfileComplete: r.ProfileComplete,
	}
}

// SessionResponse describes the tab session to the SPA.
type SessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	Loading       bool         `json:"loading"`
	User          *domain.User `json:"user,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
}

// NewSessionResponse builds the response for state. expiresAt may be zero.
func NewSessionResponse(state domain.State, expiresAt time.Time) SessionResponse {
	resp := SessionResponse{
		Authenticated: state.Authenticated(),
		Loading:       state.Loading,
		User:          state.User,
	}
	if !expiresAt.IsZero() {
		resp.ExpiresAt = &expiresAt
	}
	return resp
}

// NotificationsResponse carries drained toasts.
type NotificationsResponse struct {
	Notifications []session.Notification `json:"notifications"`
}

// LogoutResponse tells the SPA where to navigate after logout.
type LogoutResponse struct {
	Redirect string `json:"redirect"`
}
