// Package auth implements the per-tenant trust pipeline: JWKS discovery
// scoped to a tenant's dashboard origin, and bearer token verification
// against the resolved key set.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

const jwksPath = "/.well-known/jwks.json"

// JWKSURL derives the key-set discovery endpoint from a tenant's Saleor API
// URL. Discovery always lives at the API origin, never at a token-supplied
// location.
func JWKSURL(saleorAPIURL string) (string, error) {
	u, err := url.Parse(saleorAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid saleor api url %q", saleorAPIURL)
	}
	return u.Scheme + "://" + u.Host + jwksPath, nil
}

// DashboardOrigin normalizes a stored dashboard URL into the Origin/Referer
// header value sent with discovery requests.
func DashboardOrigin(dashboardURL string) string {
	if dashboardURL == "" {
		return ""
	}
	if strings.Contains(dashboardURL, "://") {
		return dashboardURL
	}
	return "https://" + dashboardURL
}

// jwksEntry is one tenant's cache slot. Its mutex serializes refreshes for
// that URL only; the resolver's map lock is never held across a fetch, so a
// slow discovery endpoint stalls nothing but verifications for its own
// tenant.
type jwksEntry struct {
	mu      sync.Mutex
	set     jwk.Set
	expires time.Time
}

// JWKSResolver fetches and caches tenant key sets. Each tenant origin gets
// its own cache entry with a bounded TTL; refreshing one tenant never blocks
// verification for another.
type JWKSResolver struct {
	mu     sync.RWMutex
	sets   map[string]*jwksEntry
	ttl    time.Duration
	client *http.Client
}

// NewJWKSResolver builds a resolver with the given cache TTL and per-fetch
// timeout. Zero values fall back to 6h / 10s.
func NewJWKSResolver(ttl, fetchTimeout time.Duration) *JWKSResolver {
	if ttl == 0 {
		ttl = 6 * time.Hour
	}
	if fetchTimeout == 0 {
		fetchTimeout = 10 * time.Second
	}
	return &JWKSResolver{
		sets:   map[string]*jwksEntry{},
		ttl:    ttl,
		client: &http.Client{Timeout: fetchTimeout},
	}
}

func (r *JWKSResolver) entry(jwksURL string) *jwksEntry {
	r.mu.RLock()
	e, ok := r.sets[jwksURL]
	r.mu.RUnlock()
	if ok {
		return e
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sets[jwksURL]; ok {
		return e
	}
	e = &jwksEntry{}
	r.sets[jwksURL] = e
	return e
}

// originTransport injects tenant-scoped Origin/Referer headers into the
// discovery request. Without them a platform fronted by per-origin access
// policy rejects the fetch, and an attacker-controlled endpoint could not be
// distinguished from the legitimate one.
type originTransport struct {
	base   http.RoundTripper
	origin string
}

func (t *originTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.origin != "" {
		req.Header.Set("Origin", t.origin)
		req.Header.Set("Referer", t.origin)
	}
	return t.base.RoundTrip(req)
}

// Resolve returns the current key set for the tenant, fetching it when the
// cache entry is absent or expired. dashboardURL scopes the fetch headers.
func (r *JWKSResolver) Resolve(ctx context.Context, saleorAPIURL, dashboardURL string) (jwk.Set, error) {
	jwksURL, err := JWKSURL(saleorAPIURL)
	if err != nil {
		return nil, err
	}

	e := r.entry(jwksURL)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set != nil && time.Now().Before(e.expires) {
		return e.set, nil
	}

	base := r.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	fetchClient := &http.Client{
		Timeout:   r.client.Timeout,
		Transport: &originTransport{base: base, origin: DashboardOrigin(dashboardURL)},
	}
	set, err := jwk.Fetch(ctx, jwksURL, jwk.WithHTTPClient(fetchClient))
	if err != nil {
		return nil, fmt.Errorf("fetch jwks for %s: %w", jwksURL, err)
	}
	e.set, e.expires = set, time.Now().Add(r.ttl)
	return set, nil
}

// Invalidate drops the cached entry for a tenant, forcing the next Resolve
// to refetch. Used after the platform rotates its signing keys mid-TTL.
func (r *JWKSResolver) Invalidate(saleorAPIURL string) {
	jwksURL, err := JWKSURL(saleorAPIURL)
	if err != nil {
		return
	}
	r.mu.Lock()
	delete(r.sets, jwksURL)
	r.mu.Unlock()
}

// ParseSet parses a serialized key set, e.g. one stored alongside the auth
// record at install time.
func ParseSet(raw string) (jwk.Set, error) {
	return jwk.Parse([]byte(raw))
}
