// Package domain contains the core concepts of the rental marketplace client.
// Types here are pure data plus invariants; no network, storage, or UI logic.
package domain

// Identity is the authenticated actor for one session. Credential is the
// bearer token attached to every authenticated request. ID never changes
// during a session; profile fields may.
type Identity struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	FullName   string  `json:"full_name"`
	Credential string  `json:"-"`
	IsVerified bool    `json:"is_verified"`
	Rating     float64 `json:"rating"`
}

// Registration is the payload for creating a new account.
type Registration struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required,min=1,max=100"`
	Password string `json:"password" validate:"required,min=6"`
}

// ProfileUpdate carries mutable profile fields. The identity ID is never
// part of an update.
type ProfileUpdate struct {
	FullName string `json:"full_name,omitempty" validate:"omitempty,min=1,max=100"`
	Phone    string `json:"phone,omitempty"`
	Bio      string `json:"bio,omitempty"`
}
