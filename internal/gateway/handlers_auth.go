package gateway

import (
	"encoding/json"
	"net/http"

	"realmgate/pkg/auth"
	"realmgate/pkg/middleware"
	"realmgate/pkg/problems"
)

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-request", "invalid JSON body")
		return
	}
	tr, err := a.authSvc.GetAccessToken(r.Context(), creds)
	if err != nil {
		a.log.Infow("login rejected", "tenant", creds.TenantName, "err", err)
		problems.Write(w, http.StatusUnauthorized, "auth-failed", "credential exchange rejected")
		return
	}
	writeJSON(w, tr, http.StatusOK)
}

func (a *App) refreshToken(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-request", "invalid JSON body")
		return
	}
	tr, err := a.authSvc.RefreshAccessToken(r.Context(), creds)
	if err != nil {
		a.log.Infow("refresh rejected", "tenant", creds.TenantName, "err", err)
		problems.Write(w, http.StatusUnauthorized, "auth-failed", "refresh rejected")
		return
	}
	writeJSON(w, tr, http.StatusOK)
}

// logout forwards the provider's status verbatim (204 on success).
func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-request", "invalid JSON body")
		return
	}
	status, err := a.authSvc.Logout(r.Context(), creds)
	if err != nil {
		a.log.Warnw("logout failed", "tenant", creds.TenantName, "err", err)
		problems.Write(w, http.StatusBadGateway, "provider-unreachable", "logout could not be completed")
		return
	}
	w.WriteHeader(status)
}

// validate is the authoritative, network-backed check: it asks the provider's
// introspection endpoint whether the token is still active. Slower than the
// guard's local verification; for callers that need revocation accuracy.
func (a *App) validate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token        string `json:"token"`
		ClientID     string `json:"clientId"`
		ClientSecret string `json:"clientSecret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-request", "invalid JSON body")
		return
	}
	if body.Token == "" {
		body.Token = r.Header.Get("Authorization")
	}
	active, err := a.authSvc.ValidateToken(r.Context(), body.Token, body.ClientID, body.ClientSecret)
	if err != nil {
		a.log.Infow("introspection failed", "err", err)
		problems.Write(w, http.StatusUnauthorized, "auth-failed", "token could not be introspected")
		return
	}
	writeJSON(w, map[string]bool{"active": active}, http.StatusOK)
}

// whoami echoes the verified caller identity the guard placed in context.
func (a *App) whoami(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		problems.Write(w, http.StatusUnauthorized, "auth-failed", "no verified identity")
		return
	}
	writeJSON(w, map[string]any{
		"username": claims.PreferredUsername,
		"tenant":   claims.TenantName(),
		"roles":    claims.Roles,
		"exp":      claims.Exp,
	}, http.StatusOK)
}
