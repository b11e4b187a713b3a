package manifest_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saleorapp/internal/manifest"
)

const sampleYAML = `
id: saleor.app.notifier
name: Order Notifier
version: 2.1.0
permissions:
  - MANAGE_ORDERS
  - MANAGE_APPS
appUrl: /
tokenTargetUrl: /api/register
webhooks:
  - name: Order Created
    asyncEvents: [ORDER_CREATED]
    query: "subscription { event { ... on OrderCreated { order { id } } } }"
  - name: App Uninstalled
    asyncEvents: [APP_DELETED]
    query: "subscription { event { ... on AppDeleted { app { id } } } }"
    targetUrl: /api/webhooks/app-uninstalled
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ResolvesURLsAgainstBase(t *testing.T) {
	m, err := manifest.Load(writeManifest(t, sampleYAML), "https://app.example.com/")
	require.NoError(t, err)

	assert.Equal(t, "saleor.app.notifier", m.ID)
	assert.Equal(t, "https://app.example.com/", m.AppURL)
	assert.Equal(t, "https://app.example.com/api/register", m.TokenTargetURL)
	require.Len(t, m.Webhooks, 2)
	// derived from the webhook name when targetUrl is omitted
	assert.Equal(t, "https://app.example.com/api/webhooks/order-created", m.Webhooks[0].TargetURL)
	assert.Equal(t, "https://app.example.com/api/webhooks/app-uninstalled", m.Webhooks[1].TargetURL)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	m, err := manifest.Load(filepath.Join(t.TempDir(), "absent.yaml"), "http://localhost:8080")
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "http://localhost:8080/api/register", m.TokenTargetURL)
}

func TestLoad_BrokenYAMLIsError(t *testing.T) {
	_, err := manifest.Load(writeManifest(t, "id: [unclosed"), "http://localhost:8080")
	assert.Error(t, err)
}

func TestManifestEndpoint(t *testing.T) {
	m, err := manifest.Load(writeManifest(t, sampleYAML), "https://app.example.com")
	require.NoError(t, err)

	r := chi.NewRouter()
	manifest.RegisterRoutes(r, m)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/manifest", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"tokenTargetUrl":"https://app.example.com/api/register"`)
}
