// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package store

import (
	"context"
	"testing"

	"github.com/portcullisproject/portcullis/internal/models"
)

// seedMenuTree inserts a parent directory menu with one child page and one
// button entry, granted to the given role. Returns the parent menu id.
func seedMenuTree(t *testing.T, s *Store, roleID int64) int64 {
	t.Helper()

	var parentID int64
	if err := s.conn.QueryRow(
		`INSERT INTO sys_menu (parent_id, menu_name, path, menu_type, order_num)
		 VALUES (0, 'System', 'system', 'M', 1) RETURNING menu_id`,
	).Scan(&parentID); err != nil {
		t.Fatalf("insert parent menu: %v", err)
	}

	var childID int64
	if err := s.conn.QueryRow(
		`INSERT INTO sys_menu (parent_id, menu_name, path, component, menu_type, order_num)
		 VALUES (?, 'Users', 'user', 'system/user/index', 'C', 1) RETURNING menu_id`,
		parentID,
	).Scan(&childID); err != nil {
		t.Fatalf("insert child menu: %v", err)
	}

	var buttonID int64
	if err := s.conn.QueryRow(
		`INSERT INTO sys_menu (parent_id, menu_name, perms, menu_type)
		 VALUES (?, 'User Export', 'system:user:export', 'F') RETURNING menu_id`,
		childID,
	).Scan(&buttonID); err != nil {
		t.Fatalf("insert button menu: %v", err)
	}

	for _, menuID := range []int64{parentID, childID, buttonID} {
		if _, err := s.conn.Exec(
			`INSERT INTO sys_role_menu (role_id, menu_id) VALUES (?, ?)`, roleID, menuID,
		); err != nil {
			t.Fatalf("insert role menu: %v", err)
		}
	}
	return parentID
}

func TestMenusForUser_ExcludesButtons(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	role, err := s.GetRoleByKey(ctx, "common")
	if err != nil {
		t.Fatalf("GetRoleByKey() error = %v", err)
	}
	userID, err := s.CreateUserWithRole(ctx, &models.User{
		Username: "menu-user", Nickname: "menu-user", Password: "x",
	}, role.RoleID)
	if err != nil {
		t.Fatalf("CreateUserWithRole() error = %v", err)
	}
	seedMenuTree(t, s, role.RoleID)

	menus, err := s.MenusForUser(ctx, userID)
	if err != nil {
		t.Fatalf("MenusForUser() error = %v", err)
	}
	if len(menus) != 2 {
		t.Fatalf("menu count = %d, want 2 (button excluded)", len(menus))
	}
	for _, m := range menus {
		if m.MenuType == "F" {
			t.Errorf("button menu %q leaked into navigation", m.MenuName)
		}
	}
}

func TestMenusForUser_AdminSeesAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Grant the tree to common only; admin must still see it.
	role, err := s.GetRoleByKey(ctx, "common")
	if err != nil {
		t.Fatalf("GetRoleByKey() error = %v", err)
	}
	seedMenuTree(t, s, role.RoleID)

	admin, err := s.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	menus, err := s.MenusForUser(ctx, admin.UserID)
	if err != nil {
		t.Fatalf("MenusForUser() error = %v", err)
	}
	if len(menus) != 2 {
		t.Errorf("admin menu count = %d, want 2", len(menus))
	}
}

func TestRoutersForUser_TreeShape(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	role, err := s.GetRoleByKey(ctx, "common")
	if err != nil {
		t.Fatalf("GetRoleByKey() error = %v", err)
	}
	userID, err := s.CreateUserWithRole(ctx, &models.User{
		Username: "router-user", Nickname: "router-user", Password: "x",
	}, role.RoleID)
	if err != nil {
		t.Fatalf("CreateUserWithRole() error = %v", err)
	}
	seedMenuTree(t, s, role.RoleID)

	routers, err := s.RoutersForUser(ctx, userID)
	if err != nil {
		t.Fatalf("RoutersForUser() error = %v", err)
	}
	if len(routers) != 1 {
		t.Fatalf("root router count = %d, want 1", len(routers))
	}
	root := routers[0]
	if root.Name != "System" {
		t.Errorf("root Name = %q, want System", root.Name)
	}
	if len(root.Children) != 1 {
		t.Fatalf("child count = %d, want 1", len(root.Children))
	}
	if root.Children[0].Component != "system/user/index" {
		t.Errorf("child Component = %q, want system/user/index", root.Children[0].Component)
	}
	if root.Meta == nil || root.Meta.Title != "System" {
		t.Errorf("root Meta = %+v, want Title System", root.Meta)
	}
}

func TestRoutersForUser_EmptyWithoutGrants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	role, err := s.GetRoleByKey(ctx, "guest")
	if err != nil {
		t.Fatalf("GetRoleByKey() error = %v", err)
	}
	userID, err := s.CreateUserWithRole(ctx, &models.User{
		Username: "bare-user", Nickname: "bare-user", Password: "x",
	}, role.RoleID)
	if err != nil {
		t.Fatalf("CreateUserWithRole() error = %v", err)
	}

	routers, err := s.RoutersForUser(ctx, userID)
	if err != nil {
		t.Fatalf("RoutersForUser() error = %v", err)
	}
	if len(routers) != 0 {
		t.Errorf("router count = %d, want 0", len(routers))
	}
}
