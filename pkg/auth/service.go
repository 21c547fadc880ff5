// pkg/auth/service.go
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"realmgate/pkg/token"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrAuth covers identity-provider rejections and transport failures during
// credential exchange or introspection. Terminal; never retried.
var ErrAuth = errors.New("authentication failed")

const (
	defaultTenant = "master"
	defaultClient = "admin-cli"
)

// Credentials is the per-request input to the provider's token endpoints.
// Built once per inbound request, forwarded, then discarded.
type Credentials struct {
	TenantName   string `json:"tenantName"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	RefreshToken string `json:"refreshToken"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// TokenResponse mirrors the provider's token endpoint JSON.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	SessionState     string `json:"session_state,omitempty"`
	Scope            string `json:"scope,omitempty"`
}

// Service is the single point of contact with the identity provider's
// OpenID-Connect endpoints. Stateless apart from the optional redis memo
// of positive introspection results.
type Service struct {
	server           string // provider base URL, no trailing slash
	client           *http.Client
	log              *zap.SugaredLogger
	rdb              *redis.Client // nil disables the introspection memo
	introspectionTTL time.Duration
}

func NewService(server string, timeout time.Duration, log *zap.SugaredLogger, rdb *redis.Client, introspectionTTL time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		server:           strings.TrimRight(server, "/"),
		client:           &http.Client{Timeout: timeout},
		log:              log,
		rdb:              rdb,
		introspectionTTL: introspectionTTL,
	}
}

func (s *Service) tokenURL(tenant string) string {
	return s.server + "/realms/" + tenant + "/protocol/openid-connect/token"
}

func (s *Service) logoutURL(tenant string) string {
	return s.server + "/realms/" + tenant + "/protocol/openid-connect/logout"
}

// GetAccessToken exchanges username/password for a token pair (password grant).
// With no tenant and no client fields, the exchange targets realm "master"
// with client "admin-cli" (admin bootstrap path).
func (s *Service) GetAccessToken(ctx context.Context, creds Credentials) (TokenResponse, error) {
	tenant, clientID, clientSecret := creds.TenantName, creds.ClientID, creds.ClientSecret
	if tenant == "" && clientID == "" && clientSecret == "" {
		tenant = defaultTenant
		clientID = defaultClient
	}
	form := url.Values{
		"username":      {creds.Username},
		"password":      {creds.Password},
		"grant_type":    {"password"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	return s.exchange(ctx, s.tokenURL(tenant), form)
}

// RefreshAccessToken exchanges a refresh token for a fresh pair.
func (s *Service) RefreshAccessToken(ctx context.Context, creds Credentials) (TokenResponse, error) {
	clientID := creds.ClientID
	if creds.TenantName == defaultTenant && clientID == "" && creds.ClientSecret == "" {
		clientID = defaultClient
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {creds.RefreshToken},
		"client_id":     {clientID},
		"client_secret": {creds.ClientSecret},
	}
	return s.exchange(ctx, s.tokenURL(creds.TenantName), form)
}

// Logout invalidates the session behind a refresh token and returns the
// provider's HTTP status verbatim (204 on success).
func (s *Service) Logout(ctx context.Context, creds Credentials) (int, error) {
	clientID := creds.ClientID
	if creds.TenantName == defaultTenant && clientID == "" && creds.ClientSecret == "" {
		clientID = defaultClient
	}
	form := url.Values{
		"refresh_token": {creds.RefreshToken},
		"client_id":     {clientID},
		"client_secret": {creds.ClientSecret},
	}
	resp, err := s.postForm(ctx, s.logoutURL(creds.TenantName), form)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// ValidateToken asks the provider's introspection endpoint whether the token
// is active. Authoritative but slow; the guard's local verification is the
// fast path. Positive results are memoized in redis for a short TTL when a
// client is configured.
func (s *Service) ValidateToken(ctx context.Context, raw, clientID, clientSecret string) (bool, error) {
	raw = token.StripBearer(raw)
	claims, err := token.DecodeClaims(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	if s.rdb != nil {
		if v, err := s.rdb.Get(ctx, introspectionKey(raw)).Result(); err == nil && v == "1" {
			return true, nil
		}
	}

	introspectURL := strings.TrimRight(claims.Issuer, "/") + "/protocol/openid-connect/token/introspect"
	form := url.Values{
		"token":         {raw},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	resp, err := s.postForm(ctx, introspectURL, form)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("%w: introspection returned %d", ErrAuth, resp.StatusCode)
	}
	var body struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if body.Active && s.rdb != nil && s.introspectionTTL > 0 {
		// Best effort; a cold memo is never an error.
		if err := s.rdb.Set(ctx, introspectionKey(raw), "1", s.introspectionTTL).Err(); err != nil {
			s.log.Debugw("introspection memo write failed", "err", err)
		}
	}
	return body.Active, nil
}

// GetRoles returns realm_access.roles, empty when absent. Never fails on a
// token that merely lacks roles.
func (s *Service) GetRoles(raw string) ([]string, error) {
	claims, err := token.DecodeClaims(raw)
	if err != nil {
		return nil, err
	}
	return claims.Roles, nil
}

// GetTenantName derives the tenant from the last path segment of iss.
func (s *Service) GetTenantName(raw string) (string, error) {
	claims, err := token.DecodeClaims(raw)
	if err != nil {
		return "", err
	}
	return claims.TenantName(), nil
}

func (s *Service) GetUserName(raw string) (string, error) {
	claims, err := token.DecodeClaims(raw)
	if err != nil {
		return "", err
	}
	return claims.PreferredUsername, nil
}

func (s *Service) GetExpTime(raw string) (int64, error) {
	claims, err := token.DecodeClaims(raw)
	if err != nil {
		return 0, err
	}
	return claims.Exp, nil
}

// CheckUserRole reports whether the caller holds the baseline "user" role.
func (s *Service) CheckUserRole(raw string) (bool, error) {
	roles, err := s.GetRoles(raw)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == "user" {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) exchange(ctx context.Context, endpoint string, form url.Values) (TokenResponse, error) {
	resp, err := s.postForm(ctx, endpoint, form)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return TokenResponse{}, fmt.Errorf("%w: token endpoint returned %d", ErrAuth, resp.StatusCode)
	}
	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return TokenResponse{}, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return tr, nil
}

func (s *Service) postForm(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.client.Do(req)
}

func introspectionKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return "introspect:" + hex.EncodeToString(sum[:])
}
