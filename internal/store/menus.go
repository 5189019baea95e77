// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/portcullisproject/portcullis/internal/models"
)

// MenusForUser returns the visible navigation menus the user may see,
// excluding button-level entries. Superusers see every menu.
func (s *Store) MenusForUser(ctx context.Context, userID int64) ([]models.Menu, error) {
	roles, err := s.RoleKeysForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	isAdmin := false
	for _, r := range roles {
		if r == models.AdminRoleKey {
			isAdmin = true
			break
		}
	}

	query := `SELECT DISTINCT m.menu_id, m.parent_id, m.menu_name, m.path, m.component,
			m.perms, m.menu_type, m.visible, m.status, m.icon, m.order_num
		 FROM sys_menu m`
	args := []interface{}{}
	if !isAdmin {
		query += `
		 JOIN sys_role_menu rm ON rm.menu_id = m.menu_id
		 JOIN sys_user_role ur ON ur.role_id = rm.role_id
		 WHERE ur.user_id = ? AND m.menu_type != 'F' AND m.status = ?`
		args = append(args, userID, models.StatusNormal)
	} else {
		query += ` WHERE m.menu_type != 'F' AND m.status = ?`
		args = append(args, models.StatusNormal)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query user menus: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var menus []models.Menu
	for rows.Next() {
		var m models.Menu
		if err := rows.Scan(
			&m.MenuID, &m.ParentID, &m.MenuName, &m.Path, &m.Component,
			&m.Perms, &m.MenuType, &m.Visible, &m.Status, &m.Icon, &m.OrderNum,
		); err != nil {
			return nil, fmt.Errorf("scan menu: %w", err)
		}
		menus = append(menus, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(menus, func(i, j int) bool {
		if menus[i].ParentID != menus[j].ParentID {
			return menus[i].ParentID < menus[j].ParentID
		}
		return menus[i].OrderNum < menus[j].OrderNum
	})
	return menus, nil
}

// RoutersForUser builds the frontend navigation tree from the user's menus.
func (s *Store) RoutersForUser(ctx context.Context, userID int64) ([]models.Router, error) {
	menus, err := s.MenusForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return buildRouterTree(menus, 0), nil
}

// buildRouterTree assembles routers for menus under the given parent.
func buildRouterTree(menus []models.Menu, parentID int64) []models.Router {
	var routers []models.Router
	for _, m := range menus {
		if m.ParentID != parentID {
			continue
		}
		r := models.Router{
			Name:      m.MenuName,
			Path:      m.Path,
			Hidden:    m.Visible != models.StatusNormal,
			Component: m.Component,
			Meta:      &models.Meta{Title: m.MenuName, Icon: m.Icon},
			Children:  buildRouterTree(menus, m.MenuID),
		}
		routers = append(routers, r)
	}
	return routers
}
