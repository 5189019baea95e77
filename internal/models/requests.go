// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package models

// LoginRequest is the credential login body.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=2,max=30"`
	Password string `json:"password" validate:"required,min=5,max=100"`
}

// GuestLoginRequest is the guest provisioning body. The identifier is a
// client-generated opaque id, at most 20 characters so the derived
// "guest_<id>" username fits the username column.
type GuestLoginRequest struct {
	GuestID string `json:"guestUuid" validate:"required,min=1,max=20"`
}

// RefreshRequest is the token rotation body.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// ValidateRequest is the service-to-service permission check body.
// An empty expression asks only whether the token maps to a live session.
type ValidateRequest struct {
	Token      string `json:"token" validate:"required"`
	Expression string `json:"expression"`
}

// TokenPair is the payload returned by login, guest login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // access token lifetime in seconds
}

// LoginResult is the full login/guest-login payload.
type LoginResult struct {
	TokenPair
	User *Profile `json:"user"`
}

// Profile is the authenticated-identity payload returned by login and by
// the identity endpoint.
type Profile struct {
	UserID      int64    `json:"userId"`
	Username    string   `json:"userName"`
	Nickname    string   `json:"nickName,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}
