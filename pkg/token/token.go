// pkg/token/token.go
package token

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	// ErrMalformed means the compact token could not be split/decoded at all.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidSignature means the signature does not verify against the supplied key.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired means the token verified but its exp claim is in the past.
	ErrExpired = errors.New("token expired")
)

// Claims is the subset of token claims the gateway consumes.
// Missing claims decode to zero values; Roles is never nil-checked
// by callers, absent realm_access.roles yields an empty slice.
type Claims struct {
	Issuer            string
	Exp               int64 // epoch seconds, 0 when absent
	PreferredUsername string
	Roles             []string
}

// TenantName derives the tenant discriminator: the last path segment of iss.
func (c Claims) TenantName() string {
	parts := strings.Split(c.Issuer, "/")
	return parts[len(parts)-1]
}

// StripBearer removes an optional "Bearer " prefix from a token string.
// Claim extractors accept both header values and bare tokens.
func StripBearer(raw string) string {
	parts := strings.Split(raw, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return raw
}

// DecodeClaims parses the claims segment without checking signature or expiry.
// Cheap; used to discover the issuer before any key is known.
func DecodeClaims(raw string) (Claims, error) {
	raw = StripBearer(raw)
	jt, err := jwt.Parse([]byte(raw), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	c := Claims{Issuer: jt.Issuer(), Roles: []string{}}
	if !jt.Expiration().IsZero() {
		c.Exp = jt.Expiration().Unix()
	}
	if v, ok := jt.Get("preferred_username"); ok {
		c.PreferredUsername, _ = v.(string)
	}
	if v, ok := jt.Get("realm_access"); ok {
		if m, ok := v.(map[string]any); ok {
			if rs, ok := m["roles"].([]any); ok {
				for _, r := range rs {
					if s, ok := r.(string); ok {
						c.Roles = append(c.Roles, s)
					}
				}
			}
		}
	}
	return c, nil
}

// VerifySignature checks the token's signature against a PEM public key using
// the algorithm declared in the token header, and rejects expired tokens.
// This is the only operation that establishes trust in the claims.
func VerifySignature(raw, pemKey string) error {
	raw = StripBearer(raw)
	msg, err := jws.Parse([]byte(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return fmt.Errorf("%w: no signature segment", ErrMalformed)
	}
	alg := sigs[0].ProtectedHeaders().Algorithm()

	pub, err := parsePublicKey(pemKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if _, err := jwt.Parse([]byte(raw), jwt.WithKey(alg, pub), jwt.WithValidate(true)); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

func parsePublicKey(pemKey string) (any, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errors.New("not PEM encoded")
	}
	return x509.ParsePKIXPublicKey(block.Bytes)
}
