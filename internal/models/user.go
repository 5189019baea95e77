// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package models

import "time"

// Account status and soft-delete flags stored as single-character columns.
// The values are part of the persisted schema.
const (
	StatusNormal   = "0"
	StatusDisabled = "1"

	DelFlagNormal  = "0"
	DelFlagDeleted = "2"
)

// AdminRoleKey is the superuser role. A subject holding it passes every
// role check.
const AdminRoleKey = "admin"

// AllPermissions is the wildcard permission string. A subject holding it
// passes every permission check.
const AllPermissions = "*:*:*"

// User is a console account row.
type User struct {
	UserID    int64     `json:"userId"`
	DeptID    int64     `json:"deptId,omitempty"`
	Username  string    `json:"userName"`
	Nickname  string    `json:"nickName"`
	UserType  string    `json:"userType,omitempty"` // "00" system, "01" registered, "02" guest
	Email     string    `json:"email,omitempty"`
	Password  string    `json:"-"` // bcrypt hash, never serialized
	Status    string    `json:"status"`
	DelFlag   string    `json:"delFlag"`
	LoginIP   string    `json:"loginIp,omitempty"`
	LoginDate time.Time `json:"loginDate,omitempty"`
	CreatedAt time.Time `json:"createTime"`
	UpdatedAt time.Time `json:"updateTime,omitempty"`
}

// IsEnabled reports whether the account may authenticate.
func (u *User) IsEnabled() bool {
	return u.Status == StatusNormal
}

// IsDeleted reports whether the account is soft-deleted.
func (u *User) IsDeleted() bool {
	return u.DelFlag == DelFlagDeleted
}

// Role is an authorization role row. RoleKey is the stable identifier used in
// permission expressions; RoleName is the display name.
type Role struct {
	RoleID    int64     `json:"roleId"`
	RoleName  string    `json:"roleName"`
	RoleKey   string    `json:"roleKey"`
	RoleSort  int       `json:"roleSort"`
	Status    string    `json:"status"`
	DelFlag   string    `json:"delFlag"`
	CreatedAt time.Time `json:"createTime"`
}

// IsUsable reports whether the role may be granted or evaluated.
func (r *Role) IsUsable() bool {
	return r.Status == StatusNormal && r.DelFlag != DelFlagDeleted
}

// Menu is a navigation/permission tree node. Perms carries the permission
// string granted by the node ("system:user:list" style).
type Menu struct {
	MenuID    int64  `json:"menuId"`
	ParentID  int64  `json:"parentId"`
	MenuName  string `json:"menuName"`
	Path      string `json:"path,omitempty"`
	Component string `json:"component,omitempty"`
	Perms     string `json:"perms,omitempty"`
	MenuType  string `json:"menuType"` // "M" directory, "C" menu, "F" button
	Visible   string `json:"visible"`
	Status    string `json:"status"`
	Icon      string `json:"icon,omitempty"`
	OrderNum  int    `json:"orderNum"`
}

// Router is a frontend navigation entry built from the menu tree.
type Router struct {
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Hidden    bool     `json:"hidden"`
	Component string   `json:"component,omitempty"`
	Meta      *Meta    `json:"meta,omitempty"`
	Children  []Router `json:"children,omitempty"`
}

// Meta carries display attributes for a router entry.
type Meta struct {
	Title string `json:"title"`
	Icon  string `json:"icon,omitempty"`
}
