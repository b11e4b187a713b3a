package webhook_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"saleorapp/internal/webhook"
	"saleorapp/pkg/apl"
	"saleorapp/pkg/auth"
	"saleorapp/pkg/saleor"
)

type fixture struct {
	store   *apl.MemoryAPL
	router  http.Handler
	data    apl.AuthData
	privKey jwk.Key
	mu      sync.Mutex
	set     jwk.Set
	fetches atomic.Int64
	seen    []webhook.Event
}

func newWebhookKey(t *testing.T, kid string) (jwk.Key, jwk.Set) {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	priv, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, priv.Set(jwk.KeyIDKey, kid))
	pub, err := priv.PublicKey()
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	return priv, set
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	priv, set := newWebhookKey(t, "wh-1")

	f := &fixture{store: apl.NewMemoryAPL(), privKey: priv, set: set}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}
		f.fetches.Add(1)
		f.mu.Lock()
		current := f.set
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(current)
	}))
	t.Cleanup(srv.Close)

	f.data = apl.AuthData{
		SaleorAPIURL: srv.URL + "/graphql/",
		Token:        "app-token",
		AppID:        "app1",
		DashboardURL: "dash.example.com",
	}
	require.NoError(t, f.store.Set(context.Background(), f.data))

	rt := webhook.NewRouter(f.store, auth.NewJWKSResolver(time.Hour, 5*time.Second), zap.NewNop().Sugar())
	rt.Handle("order-created", func(ctx context.Context, ev webhook.Event) error {
		f.seen = append(f.seen, ev)
		return nil
	})
	r := chi.NewRouter()
	rt.RegisterRoutes(r)
	f.router = r
	return f
}

// rotate swaps the platform's signing key, publishing the new public key at
// the discovery endpoint.
func (f *fixture) rotate(t *testing.T, kid string) {
	t.Helper()
	priv, set := newWebhookKey(t, kid)
	f.privKey = priv
	f.mu.Lock()
	f.set = set
	f.mu.Unlock()
}

// sign produces the detached compact JWS the platform sends in the
// signature header: a regular compact serialization with the payload
// segment blanked out.
func (f *fixture) sign(t *testing.T, body []byte) string {
	t.Helper()
	compact, err := jws.Sign(body, jws.WithKey(jwa.RS256, f.privKey))
	require.NoError(t, err)
	parts := strings.Split(string(compact), ".")
	require.Len(t, parts, 3)
	return parts[0] + ".." + parts[2]
}

func (f *fixture) deliver(event, apiURL, signature string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/"+event, strings.NewReader(string(body)))
	if apiURL != "" {
		req.Header.Set(saleor.HeaderAPIURL, apiURL)
	}
	if signature != "" {
		req.Header.Set(saleor.HeaderSignature, signature)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_ValidDelivery(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"order":{"id":"T3JkZXI6MQ=="}}`)

	rec := f.deliver("order-created", f.data.SaleorAPIURL, f.sign(t, body), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, f.seen, 1)
	assert.Equal(t, "order-created", f.seen[0].Name)
	assert.Equal(t, f.data, f.seen[0].AuthData)
	assert.Equal(t, body, f.seen[0].Payload)
}

func TestWebhook_TamperedBodyRejected(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"order":{"id":"1"}}`)
	sig := f.sign(t, body)

	rec := f.deliver("order-created", f.data.SaleorAPIURL, sig, []byte(`{"order":{"id":"2"}}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.seen)
}

func TestWebhook_MissingSignatureRejected(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{}`)

	rec := f.deliver("order-created", f.data.SaleorAPIURL, "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_UnknownTenantRejected(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{}`)

	rec := f.deliver("order-created", "https://stranger.example.com/graphql/", f.sign(t, body), body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_MissingAPIURLHeader(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{}`)

	rec := f.deliver("order-created", "", f.sign(t, body), body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_UnknownEventIs404(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{}`)

	rec := f.deliver("checkout-created", f.data.SaleorAPIURL, f.sign(t, body), body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhook_StoredJWKSAvoidsDiscovery(t *testing.T) {
	f := newFixture(t)

	// Point the record at an unreachable origin but embed the key set; the
	// stored set must be sufficient to verify.
	pub, err := f.privKey.PublicKey()
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	rawSet, err := json.Marshal(set)
	require.NoError(t, err)

	data := f.data
	data.SaleorAPIURL = "http://127.0.0.1:1/graphql/"
	data.JWKS = string(rawSet)
	require.NoError(t, f.store.Set(context.Background(), data))

	body := []byte(`{"order":{}}`)
	rec := f.deliver("order-created", data.SaleorAPIURL, f.sign(t, body), body)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestWebhook_BadSignatureWithKnownKeyDoesNotForceDiscovery(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"order":{"id":"1"}}`)

	rec := f.deliver("order-created", f.data.SaleorAPIURL, f.sign(t, body), body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, f.fetches.Load())

	// repeated tampered deliveries reuse the cached set: the signature names
	// a key the set already holds, so there is no rotation to chase
	sig := f.sign(t, body)
	for i := 0; i < 5; i++ {
		rec := f.deliver("order-created", f.data.SaleorAPIURL, sig, []byte(`{"order":{"id":"tampered"}}`))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	assert.EqualValues(t, 1, f.fetches.Load())
}

func TestWebhook_KeyRotationTriggersOneRefetch(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"order":{"id":"1"}}`)

	rec := f.deliver("order-created", f.data.SaleorAPIURL, f.sign(t, body), body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, f.fetches.Load())

	// platform rotates mid-TTL; the unknown kid is the refetch signal
	f.rotate(t, "wh-2")
	rec = f.deliver("order-created", f.data.SaleorAPIURL, f.sign(t, body), body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, f.fetches.Load())
	assert.Len(t, f.seen, 2)
}
