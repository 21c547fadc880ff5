package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"realmgate/pkg/auth"
	"realmgate/pkg/keys"
	"realmgate/pkg/middleware"
	"realmgate/pkg/routes"
	"realmgate/pkg/tenants"
)

// App is the gateway application container: shared deps and the route
// policy only. Request-scoped work goes through context.
type App struct {
	log      *zap.SugaredLogger
	authSvc  *auth.Service
	guard    *middleware.Guard
	keyCache *keys.Cache
	registry tenants.Registry
	policy   routes.Policy
}

func New(log *zap.SugaredLogger, authSvc *auth.Service, guard *middleware.Guard, keyCache *keys.Cache, registry tenants.Registry, policy routes.Policy) *App {
	return &App{
		log:      log,
		authSvc:  authSvc,
		guard:    guard,
		keyCache: keyCache,
		registry: registry,
		policy:   policy,
	}
}

// Routes mounts every gateway endpoint. Protected operations are wrapped with
// the guard carrying their declared required-role set; credential-exchange
// endpoints are open by nature (they are how callers get a token).
func (a *App) Routes(r chi.Router) {
	r.Post("/api/login", a.login)
	r.Post("/api/refresh-token", a.refreshToken)
	r.Post("/api/logout", a.logout)
	r.Post("/api/validate", a.validate)

	gate := func(op string) func(http.Handler) http.Handler {
		return a.guard.RequireRoles(a.policy.For(op)...)
	}
	r.With(gate("GET /api/whoami")).Get("/api/whoami", a.whoami)
	r.With(gate("POST /api/tenants")).Post("/api/tenants", a.registerTenant)
	r.With(gate("GET /api/tenants")).Get("/api/tenants", a.listTenants)
	r.With(gate("GET /api/tenants/{id}")).Get("/api/tenants/{id}", a.getTenant)
	r.With(gate("PATCH /api/tenants")).Patch("/api/tenants", a.updateTenant)
	r.With(gate("DELETE /api/tenants")).Delete("/api/tenants", a.deleteTenant)
	r.With(gate("POST /api/cache/evict")).Post("/api/cache/evict", a.evictKey)
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
