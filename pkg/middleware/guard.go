// pkg/middleware/guard.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"realmgate/pkg/keys"
	"realmgate/pkg/token"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	guardAllowed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realmgate_guard_allowed_total",
		Help: "Requests the authorization guard let through.",
	})
	guardDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realmgate_guard_denied_total",
		Help: "Requests the authorization guard rejected.",
	})
)

// Guard gates protected operations: bearer header shape, key resolution,
// signature + expiry verification, then role intersection. Fail-closed:
// any uncertainty denies.
type Guard struct {
	cache *keys.Cache
	log   *zap.SugaredLogger
}

func NewGuard(cache *keys.Cache, log *zap.SugaredLogger) *Guard {
	return &Guard{cache: cache, log: log}
}

// Decision is the outcome of one evaluation. Reason is log-only detail; the
// transport response is a fixed 401 whatever the failing step.
type Decision struct {
	Allowed bool
	Reason  string
	Claims  token.Claims
}

func deny(reason string) Decision { return Decision{Reason: reason} }

// Evaluate runs the full gate for one Authorization header value against the
// operation's required role set. An empty required set admits any holder of
// a validly signed, unexpired token. The header is checked before anything
// that could touch the network.
func (g *Guard) Evaluate(ctx context.Context, authz string, required []string) Decision {
	if authz == "" {
		return deny("Authorization: Bearer <token> header missing")
	}
	parts := strings.Split(authz, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return deny("Authorization: Bearer <token> header invalid")
	}
	raw := parts[1]

	pem, err := g.cache.GetPublicKey(ctx, raw)
	if err != nil {
		return deny(err.Error())
	}
	if err := token.VerifySignature(raw, pem); err != nil {
		return deny(err.Error())
	}
	claims, err := token.DecodeClaims(raw)
	if err != nil {
		return deny(err.Error())
	}
	if !hasAnyRole(claims.Roles, required) {
		return deny("caller roles satisfy none of the required roles")
	}
	return Decision{Allowed: true, Claims: claims}
}

// RequireRoles wraps a handler with the guard. Every denial maps to the same
// 401 with a generic body; the concrete reason only reaches the log.
func (g *Guard) RequireRoles(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Evaluate(r.Context(), r.Header.Get("Authorization"), required)
			if !d.Allowed {
				guardDenied.Inc()
				g.log.Infow("request denied", "method", r.Method, "path", r.URL.Path, "reason", d.Reason)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			guardAllowed.Inc()
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), d.Claims)))
		})
	}
}

// hasAnyRole implements at-least-one-of semantics; an empty requirement
// always passes.
func hasAnyRole(held, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := map[string]struct{}{}
	for _, r := range held {
		set[r] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}
