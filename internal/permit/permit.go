// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

// Package permit evaluates route permission expressions against an
// authenticated subject.
//
// Exactly four expression forms exist:
//
//	hasPermi('system:user:list')
//	hasRole('admin')
//	hasAnyPermi('system:user:list,system:user:export')
//	hasAnyRoles('admin,common')
//
// Anything else, including syntactically broken variants of the four,
// evaluates to deny. The evaluator never errors and never panics.
package permit

import (
	"regexp"
	"strings"

	"github.com/portcullisproject/portcullis/internal/models"
)

// Subject is the identity a permission expression is evaluated against.
// It is passed explicitly; the evaluator holds no ambient request state.
type Subject struct {
	UserID      int64
	Username    string
	Roles       []string
	Permissions []string
}

// Expression keywords.
const (
	kwHasPermi    = "hasPermi"
	kwHasRole     = "hasRole"
	kwHasAnyPermi = "hasAnyPermi"
	kwHasAnyRoles = "hasAnyRoles"
)

// argPatterns maps each keyword to a regexp extracting its single-quoted
// argument. Longer keywords are listed first so hasPermi does not match
// inside hasAnyPermi.
var argPatterns = []struct {
	keyword string
	re      *regexp.Regexp
}{
	{kwHasAnyPermi, regexp.MustCompile(`hasAnyPermi\('([^']*)'\)`)},
	{kwHasAnyRoles, regexp.MustCompile(`hasAnyRoles\('([^']*)'\)`)},
	{kwHasPermi, regexp.MustCompile(`hasPermi\('([^']*)'\)`)},
	{kwHasRole, regexp.MustCompile(`hasRole\('([^']*)'\)`)},
}

// Evaluate checks the expression against the subject. Unknown keywords,
// malformed syntax and empty arguments all deny.
func Evaluate(expression string, subject *Subject) bool {
	if subject == nil {
		return false
	}
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return false
	}

	for _, p := range argPatterns {
		if !strings.Contains(expression, p.keyword) {
			continue
		}
		m := p.re.FindStringSubmatch(expression)
		if m == nil {
			// Keyword present but the argument form is broken
			return false
		}
		arg := m[1]

		switch p.keyword {
		case kwHasPermi:
			return hasPermission(subject, arg)
		case kwHasRole:
			return hasRole(subject, arg)
		case kwHasAnyPermi:
			return anyMatch(arg, func(perm string) bool { return hasPermission(subject, perm) })
		case kwHasAnyRoles:
			return anyMatch(arg, func(role string) bool { return hasRole(subject, role) })
		}
	}

	return false
}

// hasPermission reports whether the subject holds the permission.
// The wildcard grant passes every check.
func hasPermission(subject *Subject, perm string) bool {
	if perm == "" {
		return false
	}
	for _, p := range subject.Permissions {
		if p == models.AllPermissions || p == perm {
			return true
		}
	}
	return false
}

// hasRole reports whether the subject holds the role.
// The superuser role passes every check.
func hasRole(subject *Subject, role string) bool {
	if role == "" {
		return false
	}
	for _, r := range subject.Roles {
		if r == models.AdminRoleKey || r == role {
			return true
		}
	}
	return false
}

// anyMatch splits a comma-separated argument and reports whether any element
// satisfies the predicate. Blank elements are skipped.
func anyMatch(arg string, match func(string) bool) bool {
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if match(part) {
			return true
		}
	}
	return false
}
