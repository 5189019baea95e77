// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

// Package routecache maps incoming method+path pairs to declared access
// policies. Declarations are collected up front, the lookup index is built
// exactly once, and pattern hits are memoized so repeated traffic on the
// same concrete path costs one map read.
package routecache

import (
	"strings"
	"sync"
)

// PolicyKind classifies a route's access policy.
type PolicyKind int

const (
	// PolicyUndeclared is the zero value. A route registered without an
	// explicit policy is treated as misconfigured and denied, never open.
	PolicyUndeclared PolicyKind = iota

	// PolicyAnonymous admits every request without credentials.
	PolicyAnonymous

	// PolicyAuthOnly requires a valid access token but no specific
	// permission.
	PolicyAuthOnly

	// PolicyExpression requires a valid access token whose session
	// satisfies the permission expression.
	PolicyExpression
)

// Policy is a route access declaration.
type Policy struct {
	Kind       PolicyKind
	Expression string
}

// Anonymous returns the open-access policy.
func Anonymous() Policy {
	return Policy{Kind: PolicyAnonymous}
}

// AuthOnly returns the token-required policy.
func AuthOnly() Policy {
	return Policy{Kind: PolicyAuthOnly}
}

// Expression returns a permission-expression policy.
func Expression(expr string) Policy {
	return Policy{Kind: PolicyExpression, Expression: expr}
}

// Route is a declared route with its access policy.
type Route struct {
	Method  string
	Pattern string
	Policy  Policy
}

// Descriptor is the resolved handler metadata for a concrete request.
type Descriptor struct {
	Method  string
	Pattern string
	Policy  Policy
}

// Resolver resolves method+path pairs to route descriptors.
//
// Exact patterns live in a map keyed "METHOD:path". Patterns containing
// {param} segments or a trailing wildcard are scanned linearly in
// declaration order on a miss; the first hit is memoized into the exact map
// so subsequent lookups of the same concrete path are O(1).
type Resolver struct {
	routes []Route

	once     sync.Once
	mu       sync.RWMutex
	exact    map[string]*Descriptor
	patterns []*patternEntry
}

type patternEntry struct {
	method   string
	segments []string
	wildcard bool
	desc     *Descriptor
}

// NewResolver creates a resolver over the declared routes. The index is
// built lazily on first use.
func NewResolver(routes []Route) *Resolver {
	return &Resolver{routes: routes}
}

// Preload builds the lookup index. Safe to call concurrently; only the
// first call does work. Resolve calls it implicitly.
func (r *Resolver) Preload() {
	r.once.Do(r.build)
}

func (r *Resolver) build() {
	r.exact = make(map[string]*Descriptor, len(r.routes))
	for i := range r.routes {
		route := r.routes[i]
		pattern := normalizePath(route.Pattern)
		method := strings.ToUpper(route.Method)
		desc := &Descriptor{
			Method:  method,
			Pattern: pattern,
			Policy:  route.Policy,
		}

		if isConcrete(pattern) {
			r.exact[routeKey(method, pattern)] = desc
			continue
		}

		segments, wildcard := splitPattern(pattern)
		r.patterns = append(r.patterns, &patternEntry{
			method:   method,
			segments: segments,
			wildcard: wildcard,
			desc:     desc,
		})
	}
}

// Resolve maps a request to its descriptor. The second return is false when
// no declaration covers the method+path pair.
func (r *Resolver) Resolve(method, path string) (*Descriptor, bool) {
	r.Preload()

	method = strings.ToUpper(method)
	path = normalizePath(path)
	key := routeKey(method, path)

	r.mu.RLock()
	desc, ok := r.exact[key]
	r.mu.RUnlock()
	if ok {
		return desc, true
	}

	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for _, entry := range r.patterns {
		if entry.method != method {
			continue
		}
		if !entry.match(segments) {
			continue
		}

		// Memoize so the next request on this concrete path hits the
		// exact map.
		r.mu.Lock()
		r.exact[key] = entry.desc
		r.mu.Unlock()
		return entry.desc, true
	}

	return nil, false
}

func (e *patternEntry) match(segments []string) bool {
	if e.wildcard {
		if len(segments) < len(e.segments) {
			return false
		}
	} else if len(segments) != len(e.segments) {
		return false
	}

	for i, ps := range e.segments {
		if isParam(ps) {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if ps != segments[i] {
			return false
		}
	}
	return true
}

// normalizePath collapses repeated slashes and strips the trailing slash
// except on the root path. Registration and lookup both go through here so
// equivalent spellings land on the same key.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

func routeKey(method, path string) string {
	return method + ":" + path
}

func isConcrete(pattern string) bool {
	return !strings.Contains(pattern, "{") && !strings.HasSuffix(pattern, "/*")
}

func isParam(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

// splitPattern breaks a pattern into its segments, peeling a trailing
// wildcard. "/files/*" yields ["files"] with wildcard true.
func splitPattern(pattern string) (segments []string, wildcard bool) {
	if strings.HasSuffix(pattern, "/*") {
		wildcard = true
		pattern = strings.TrimSuffix(pattern, "/*")
		if pattern == "" {
			return []string{}, true
		}
	}
	return strings.Split(strings.TrimPrefix(pattern, "/"), "/"), wildcard
}
