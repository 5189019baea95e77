// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package gate

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/portcullisproject/portcullis/internal/logging"
	"github.com/portcullisproject/portcullis/internal/models"
	"github.com/portcullisproject/portcullis/internal/routecache"
)

// InternalSecretHeader carries the shared secret on trusted
// service-to-service calls.
const InternalSecretHeader = "X-Internal-Auth-Secret"

// Denial messages returned in the 403 envelope.
const (
	msgNoPolicy     = "no access policy configured"
	msgNoToken      = "authentication token not provided"
	msgNoPermission = "no permission to access"
	msgBadInternal  = "invalid internal credential"
	msgCheckFailed  = "permission check failed"
)

// Gate enforces route policies. Construct one per server and install either
// Middleware (blocking) or AsyncMiddleware (worker pool) in the chain.
type Gate struct {
	resolver *routecache.Resolver
	checker  PermissionChecker

	// internalSecret enables the trusted channel when non-empty.
	internalSecret []byte
}

// New creates a gate over the route resolver and permission checker.
// internalSecret may be empty, which disables the trusted channel entirely.
func New(resolver *routecache.Resolver, checker PermissionChecker, internalSecret string) *Gate {
	return &Gate{
		resolver:       resolver,
		checker:        checker,
		internalSecret: []byte(internalSecret),
	}
}

// denial is an internal decision record.
type denial struct {
	reason  string // metrics label
	message string // envelope msg
}

// decide runs the policy sequence for a request. A nil denial with admit
// false means the route has no descriptor and the gate stays out of the way.
func (g *Gate) decide(r *http.Request) (deny *denial, admitted bool) {
	desc, ok := g.resolver.Resolve(r.Method, r.URL.Path)
	if !ok {
		// Undeclared route: not this gate's business
		recordPassThrough()
		return nil, true
	}

	switch desc.Policy.Kind {
	case routecache.PolicyAnonymous:
		recordAdmit()
		return nil, true
	case routecache.PolicyAuthOnly, routecache.PolicyExpression:
	default:
		recordDeny("no_policy")
		return &denial{reason: "no_policy", message: msgNoPolicy}, false
	}

	// Trusted service-to-service channel. Only consulted when a secret is
	// configured and the header is present; a present-but-wrong header is
	// an immediate deny, not a fall-through to token auth. With no secret
	// configured the channel does not exist and the header is ignored.
	if header := r.Header.Get(InternalSecretHeader); header != "" && len(g.internalSecret) > 0 {
		if subtle.ConstantTimeCompare([]byte(header), g.internalSecret) != 1 {
			recordDeny("internal_secret")
			return &denial{reason: "internal_secret", message: msgBadInternal}, false
		}
		recordAdmit()
		return nil, true
	}

	accessToken := ExtractToken(r)
	if accessToken == "" {
		recordDeny("no_token")
		return &denial{reason: "no_token", message: msgNoToken}, false
	}

	expression := ""
	if desc.Policy.Kind == routecache.PolicyExpression {
		expression = desc.Policy.Expression
	}

	start := time.Now()
	err := g.checker.Check(r.Context(), accessToken, expression)
	observeCheck(time.Since(start))

	if err != nil {
		reason := classifyDenial(err)
		recordDeny(reason)
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("reason", reason).
			Msg("Gate denied request")
		return &denial{reason: reason, message: denialMessage(err)}, false
	}

	recordAdmit()
	return nil, true
}

// Middleware is the blocking gate variant: the permission check runs on the
// request goroutine.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if deny, ok := g.decide(r); !ok {
			writeDenial(w, deny)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractToken pulls the access token from the Authorization header
// ("Bearer <token>") or, failing that, the "token" query parameter.
func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}

func classifyDenial(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "no_token"
	case errors.Is(err, ErrTokenInvalid):
		return "invalid_token"
	case errors.Is(err, ErrPermissionDenied):
		return "permission"
	case errors.Is(err, ErrCheckUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func denialMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return msgNoToken
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrPermissionDenied):
		return msgNoPermission
	default:
		return msgCheckFailed
	}
}

// writeDenial emits the uniform 403 envelope.
func writeDenial(w http.ResponseWriter, deny *denial) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	if err := json.NewEncoder(w).Encode(models.Forbidden(deny.message)); err != nil {
		logging.Warn().Err(err).Msg("Failed to write denial response")
	}
}
