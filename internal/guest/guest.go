// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

// Package guest provisions throwaway console accounts from client-supplied
// identifiers. Provisioning is idempotent: the same identifier always maps
// to the same account, and a second call while the account exists is a
// plain login.
package guest

import (
	"context"
	"errors"
	"fmt"

	"github.com/portcullisproject/portcullis/internal/logging"
	"github.com/portcullisproject/portcullis/internal/models"
	"github.com/portcullisproject/portcullis/internal/store"
)

// usernamePrefix derives the guest account name from the client identifier.
const usernamePrefix = "guest_"

// guestUserType marks provisioned accounts in the user_type column.
const guestUserType = "02"

// Provisioning errors. Role errors indicate broken server configuration and
// are distinct so operators can tell them apart in logs.
var (
	ErrAccountDisabled = errors.New("guest account is disabled")
	ErrAccountDeleted  = errors.New("guest account has been deleted")

	ErrRoleMissing  = errors.New("guest role does not exist")
	ErrRoleDisabled = errors.New("guest role is disabled")
	ErrRoleDeleted  = errors.New("guest role has been deleted")
)

// Accounts is the slice of the store the provisioner needs.
type Accounts interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, userID int64) (*models.User, error)
	GetRoleByKey(ctx context.Context, roleKey string) (*models.Role, error)
	CreateUserWithRole(ctx context.Context, u *models.User, roleID int64) (int64, error)
}

// Provisioner creates or re-authenticates guest accounts.
type Provisioner struct {
	accounts Accounts
	roleKey  string
}

// New creates a provisioner granting the given role to new guests.
func New(accounts Accounts, roleKey string) *Provisioner {
	return &Provisioner{accounts: accounts, roleKey: roleKey}
}

// Username derives the account name for a guest identifier.
func Username(guestID string) string {
	return usernamePrefix + guestID
}

// Provision resolves the guest identifier to a usable account, creating it
// on first contact. The returned user is always re-read from the store so
// generated identity fields are populated.
func (p *Provisioner) Provision(ctx context.Context, guestID, ip string) (*models.User, error) {
	username := Username(guestID)

	existing, err := p.accounts.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup guest account: %w", err)
	}

	if existing != nil {
		if existing.IsDeleted() {
			return nil, ErrAccountDeleted
		}
		if !existing.IsEnabled() {
			return nil, ErrAccountDisabled
		}
		return existing, nil
	}

	return p.create(ctx, username, ip)
}

// create builds a fresh guest account after verifying the guest role is in
// a grantable state. The three role failures are configuration faults, not
// client errors.
func (p *Provisioner) create(ctx context.Context, username, ip string) (*models.User, error) {
	role, err := p.accounts.GetRoleByKey(ctx, p.roleKey)
	if errors.Is(err, store.ErrRoleNotFound) {
		return nil, ErrRoleMissing
	}
	if err != nil {
		return nil, fmt.Errorf("lookup guest role: %w", err)
	}
	if role.DelFlag == models.DelFlagDeleted {
		return nil, ErrRoleDeleted
	}
	if role.Status != models.StatusNormal {
		return nil, ErrRoleDisabled
	}

	userID, err := p.accounts.CreateUserWithRole(ctx, &models.User{
		Username: username,
		Nickname: username,
		UserType: guestUserType,
		// Guests never authenticate by password; an unmatchable hash
		// keeps the column non-empty.
		Password: "*",
		LoginIP:  ip,
	}, role.RoleID)
	if err != nil {
		return nil, fmt.Errorf("create guest account: %w", err)
	}

	created, err := p.accounts.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reload guest account: %w", err)
	}

	logging.Info().Str("username", username).Int64("user_id", userID).Msg("Provisioned guest account")
	return created, nil
}
