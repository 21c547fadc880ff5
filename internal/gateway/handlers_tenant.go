package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"realmgate/pkg/problems"
	"realmgate/pkg/tenants"
)

type registerTenantBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Issuer      string `json:"issuer"`
}

func (a *App) registerTenant(w http.ResponseWriter, r *http.Request) {
	var b registerTenantBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(b.Name) == "" || strings.TrimSpace(b.Issuer) == "" {
		problems.Write(w, http.StatusBadRequest, "bad-request", "name and issuer are required")
		return
	}
	t, err := a.registry.Register(r.Context(), tenants.Tenant{
		Name:        b.Name,
		Description: b.Description,
		Issuer:      strings.TrimRight(b.Issuer, "/"),
	})
	if err != nil {
		if errors.Is(err, tenants.ErrExists) {
			problems.Write(w, http.StatusConflict, "tenant-exists", "tenant name already registered")
			return
		}
		a.log.Errorw("tenant register", "err", err)
		problems.Write(w, http.StatusInternalServerError, "registry-error", "could not register tenant")
		return
	}
	writeJSON(w, t, http.StatusCreated)
}

func (a *App) getTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := a.registry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			problems.Write(w, http.StatusNotFound, "tenant-not-found", "no such tenant")
			return
		}
		a.log.Errorw("tenant get", "id", id, "err", err)
		problems.Write(w, http.StatusInternalServerError, "registry-error", "could not load tenant")
		return
	}
	writeJSON(w, t, http.StatusOK)
}

func (a *App) listTenants(w http.ResponseWriter, r *http.Request) {
	ts, err := a.registry.List(r.Context())
	if err != nil {
		a.log.Errorw("tenant list", "err", err)
		problems.Write(w, http.StatusInternalServerError, "registry-error", "could not list tenants")
		return
	}
	if ts == nil {
		ts = []tenants.Tenant{}
	}
	writeJSON(w, ts, http.StatusOK)
}

func (a *App) updateTenant(w http.ResponseWriter, r *http.Request) {
	var b struct {
		TenantName  string `json:"tenantName"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-request", "invalid JSON body")
		return
	}
	if err := a.registry.UpdateDescription(r.Context(), b.TenantName, b.Description); err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			problems.Write(w, http.StatusNotFound, "tenant-not-found", "no such tenant")
			return
		}
		a.log.Errorw("tenant update", "name", b.TenantName, "err", err)
		problems.Write(w, http.StatusInternalServerError, "registry-error", "could not update tenant")
		return
	}
	writeJSON(w, map[string]string{"status": "updated"}, http.StatusOK)
}

func (a *App) deleteTenant(w http.ResponseWriter, r *http.Request) {
	var b struct {
		TenantName string `json:"tenantName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-request", "invalid JSON body")
		return
	}
	if err := a.registry.Delete(r.Context(), b.TenantName); err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			problems.Write(w, http.StatusNotFound, "tenant-not-found", "no such tenant")
			return
		}
		a.log.Errorw("tenant delete", "name", b.TenantName, "err", err)
		problems.Write(w, http.StatusInternalServerError, "registry-error", "could not delete tenant")
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"}, http.StatusOK)
}

// evictKey is the operator hook for signing-key rotation: drop one issuer's
// cached key (or everything, when no issuer is given) so the next request
// fetches fresh material.
func (a *App) evictKey(w http.ResponseWriter, r *http.Request) {
	var b struct {
		Issuer string `json:"issuer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-request", "invalid JSON body")
		return
	}
	if b.Issuer == "" {
		a.keyCache.Purge()
	} else {
		// Cache entries are keyed by the iss claim verbatim.
		a.keyCache.Evict(b.Issuer)
	}
	a.log.Infow("key cache evicted", "issuer", b.Issuer)
	writeJSON(w, map[string]int{"cached": a.keyCache.Len()}, http.StatusOK)
}
