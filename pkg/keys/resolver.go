// pkg/keys/resolver.go
package keys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrKeyFetch covers any failure while resolving a realm's signing key:
// transport error, non-2xx status, or a response without key material.
var ErrKeyFetch = errors.New("public key fetch failed")

// Resolver fetches a realm's public signing key from the identity provider.
// The realm endpoint is the issuer URL itself; providers in the Keycloak
// family answer a GET there with a JSON body carrying "public_key".
type Resolver struct {
	client *http.Client
	log    *zap.SugaredLogger
}

func NewResolver(timeout time.Duration, log *zap.SugaredLogger) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{client: &http.Client{Timeout: timeout}, log: log}
}

// FetchPublicKey resolves issuerURL to PEM-armored key material.
// Never retried here; the caller decides what a failure means.
func (r *Resolver) FetchPublicKey(ctx context.Context, issuerURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuerURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: realm endpoint returned %d", ErrKeyFetch, resp.StatusCode)
	}
	var body struct {
		PublicKey string `json:"public_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	if body.PublicKey == "" {
		return "", fmt.Errorf("%w: no public_key in realm response", ErrKeyFetch)
	}
	r.log.Debugw("realm key fetched", "issuer", issuerURL)
	return PEMWrap(body.PublicKey), nil
}

// PEMWrap armors raw base64 key material; already-armored input passes through.
func PEMWrap(key string) string {
	if strings.Contains(key, "-----BEGIN") {
		return key
	}
	return "-----BEGIN PUBLIC KEY-----\n" + key + "\n-----END PUBLIC KEY-----"
}
