// Package manifest serves the app manifest the platform reads before
// installation. The definition lives in a YAML file so deployments can
// adjust name, permissions and webhook subscriptions without a rebuild.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Webhook is one subscription the app asks the platform to create at
// install time.
type Webhook struct {
	Name        string   `yaml:"name" json:"name"`
	AsyncEvents []string `yaml:"asyncEvents" json:"asyncEvents,omitempty"`
	SyncEvents  []string `yaml:"syncEvents" json:"syncEvents,omitempty"`
	Query       string   `yaml:"query" json:"query"`
	TargetURL   string   `yaml:"targetUrl" json:"targetUrl"`
}

// Manifest is the document served at /api/manifest.
type Manifest struct {
	ID             string    `yaml:"id" json:"id"`
	Name           string    `yaml:"name" json:"name"`
	Version        string    `yaml:"version" json:"version"`
	About          string    `yaml:"about" json:"about,omitempty"`
	Permissions    []string  `yaml:"permissions" json:"permissions"`
	AppURL         string    `yaml:"appUrl" json:"appUrl"`
	TokenTargetURL string    `yaml:"tokenTargetUrl" json:"tokenTargetUrl"`
	DataPrivacyURL string    `yaml:"dataPrivacyUrl" json:"dataPrivacyUrl,omitempty"`
	Webhooks       []Webhook `yaml:"webhooks" json:"webhooks,omitempty"`
}

func defaults() Manifest {
	return Manifest{
		ID:          "saleor.app.generic",
		Name:        "Saleor App",
		Version:     "1.0.0",
		Permissions: []string{"MANAGE_APPS"},
	}
}

// Load reads the manifest definition and resolves every relative URL
// against baseURL. A missing file yields the baked-in defaults; a present
// but unparsable file is an error.
func Load(path, baseURL string) (Manifest, error) {
	m := defaults()
	raw, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return Manifest{}, fmt.Errorf("manifest: parse %s: %w", path, err)
		}
	}

	base := strings.TrimRight(baseURL, "/")
	m.AppURL = resolveURL(base, m.AppURL, "/")
	m.TokenTargetURL = resolveURL(base, m.TokenTargetURL, "/api/register")
	for i := range m.Webhooks {
		m.Webhooks[i].TargetURL = resolveURL(base, m.Webhooks[i].TargetURL, "/api/webhooks/"+slug(m.Webhooks[i].Name))
	}
	return m, nil
}

func resolveURL(base, value, def string) string {
	if value == "" {
		value = def
	}
	if strings.Contains(value, "://") {
		return value
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	return base + value
}

func slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(s, " ", "-")
}
