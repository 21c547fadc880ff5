package keys

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"realmgate/pkg/token"
)

func signTokenWithIssuer(t *testing.T, iss string) string {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tok := jwt.New()
	require.NoError(t, tok.Set(jwt.IssuerKey, iss))
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, priv))
	require.NoError(t, err)
	return string(signed)
}

func TestResolverFetchPublicKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/realms/acme", r.URL.Path)
		fmt.Fprint(w, `{"realm":"acme","public_key":"MIIBIjAN"}`)
	}))
	defer srv.Close()

	r := NewResolver(5*time.Second, zap.NewNop().Sugar())
	pem, err := r.FetchPublicKey(context.Background(), srv.URL+"/realms/acme")
	require.NoError(t, err)
	assert.Equal(t, "-----BEGIN PUBLIC KEY-----\nMIIBIjAN\n-----END PUBLIC KEY-----", pem)
}

func TestResolverNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewResolver(5*time.Second, zap.NewNop().Sugar())
	_, err := r.FetchPublicKey(context.Background(), srv.URL+"/realms/ghost")
	assert.ErrorIs(t, err, ErrKeyFetch)
}

func TestResolverMissingKeyField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"realm":"acme"}`)
	}))
	defer srv.Close()

	r := NewResolver(5*time.Second, zap.NewNop().Sugar())
	_, err := r.FetchPublicKey(context.Background(), srv.URL+"/realms/acme")
	assert.ErrorIs(t, err, ErrKeyFetch)
}

func TestResolverNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	r := NewResolver(time.Second, zap.NewNop().Sugar())
	_, err := r.FetchPublicKey(context.Background(), srv.URL+"/realms/acme")
	assert.ErrorIs(t, err, ErrKeyFetch)
}

func TestPEMWrapPassthrough(t *testing.T) {
	armored := "-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----"
	assert.Equal(t, armored, PEMWrap(armored))
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls int32
	keys  map[string]string
	err   error
}

func (f *fakeFetcher) FetchPublicKey(ctx context.Context, issuerURL string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if k, ok := f.keys[issuerURL]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown issuer", ErrKeyFetch)
}

func TestCacheFetchesOncePerIssuer(t *testing.T) {
	iss := "https://idp/realms/acme"
	raw := signTokenWithIssuer(t, iss)
	f := &fakeFetcher{keys: map[string]string{iss: "PEM-A"}}
	c := NewCache(f)

	pem, err := c.GetPublicKey(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "PEM-A", pem)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.calls))

	// Replay: served from cache, no second outbound fetch.
	pem, err = c.GetPublicKey(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "PEM-A", pem)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.calls))
	assert.Equal(t, 1, c.Len())
}

func TestCacheIndependentIssuers(t *testing.T) {
	f := &fakeFetcher{keys: map[string]string{
		"https://idp/realms/acme": "PEM-A",
		"https://idp/realms/beta": "PEM-B",
	}}
	c := NewCache(f)

	pemA, err := c.GetPublicKey(context.Background(), signTokenWithIssuer(t, "https://idp/realms/acme"))
	require.NoError(t, err)
	pemB, err := c.GetPublicKey(context.Background(), signTokenWithIssuer(t, "https://idp/realms/beta"))
	require.NoError(t, err)
	assert.Equal(t, "PEM-A", pemA)
	assert.Equal(t, "PEM-B", pemB)
	assert.Equal(t, 2, c.Len())
}

func TestCacheFailureNotCached(t *testing.T) {
	iss := "https://idp/realms/acme"
	raw := signTokenWithIssuer(t, iss)
	f := &fakeFetcher{err: fmt.Errorf("%w: provider down", ErrKeyFetch)}
	c := NewCache(f)

	_, err := c.GetPublicKey(context.Background(), raw)
	assert.ErrorIs(t, err, ErrKeyFetch)
	assert.Equal(t, 0, c.Len())

	// Provider recovers; the next lookup fetches again.
	f.err = nil
	f.keys = map[string]string{iss: "PEM-A"}
	pem, err := c.GetPublicKey(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "PEM-A", pem)
}

func TestCacheMalformedToken(t *testing.T) {
	c := NewCache(&fakeFetcher{})
	_, err := c.GetPublicKey(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, token.ErrMalformed)
}

func TestCacheTokenWithoutIssuer(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tok := jwt.New()
	require.NoError(t, tok.Set("sub", "alice"))
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, priv))
	require.NoError(t, err)

	c := NewCache(&fakeFetcher{})
	_, err = c.GetPublicKey(context.Background(), string(signed))
	assert.ErrorIs(t, err, ErrKeyFetch)
}

func TestCacheEvictAndPurge(t *testing.T) {
	iss := "https://idp/realms/acme"
	raw := signTokenWithIssuer(t, iss)
	f := &fakeFetcher{keys: map[string]string{iss: "PEM-A"}}
	c := NewCache(f)

	_, err := c.GetPublicKey(context.Background(), raw)
	require.NoError(t, err)

	c.Evict(iss)
	assert.Equal(t, 0, c.Len())
	_, err = c.GetPublicKey(context.Background(), raw)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&f.calls))

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCacheConcurrentLookups(t *testing.T) {
	iss := "https://idp/realms/acme"
	raw := signTokenWithIssuer(t, iss)
	f := &fakeFetcher{keys: map[string]string{iss: "PEM-A"}}
	c := NewCache(f)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pem, err := c.GetPublicKey(context.Background(), raw)
			assert.NoError(t, err)
			assert.Equal(t, "PEM-A", pem)
		}()
	}
	wg.Wait()
	// Redundant cold fetches are tolerated; the cache converges to one entry.
	assert.Equal(t, 1, c.Len())
}
