// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package models

import "time"

// Refresh token record status values persisted in sys_refresh_token.
const (
	RefreshTokenActive   = "0"
	RefreshTokenDisabled = "1"
)

// RefreshTokenRecord is a persisted refresh token row. At most one active
// record exists per user; rotation replaces the whole set.
type RefreshTokenRecord struct {
	TokenID    int64     `json:"tokenId"`
	UserID     int64     `json:"userId"`
	Username   string    `json:"username"`
	Token      string    `json:"-"` // signed JWT, never serialized
	ExpireTime time.Time `json:"expireTime"`
	DeviceInfo string    `json:"deviceInfo,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createTime"`
	UpdatedAt  time.Time `json:"updateTime,omitempty"`
}

// IsActive reports whether the record is usable at the given instant.
// Expiry is strict: a record expiring exactly now is not usable.
func (r *RefreshTokenRecord) IsActive(now time.Time) bool {
	return r.Status == RefreshTokenActive && r.ExpireTime.After(now)
}

// LoginLog is an audit row recorded asynchronously for login, logout and
// guest provisioning events.
type LoginLog struct {
	InfoID    int64     `json:"infoId"`
	Username  string    `json:"userName"`
	IPAddress string    `json:"ipaddr,omitempty"`
	Device    string    `json:"device,omitempty"`
	Status    string    `json:"status"` // "0" success, "1" failure
	Message   string    `json:"msg"`
	LoginTime time.Time `json:"loginTime"`
}
