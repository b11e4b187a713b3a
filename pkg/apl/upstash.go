// pkg/apl/upstash.go
package apl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultNamespace = "saleor-app"

// UpstashAPL stores auth records in an Upstash-style REST key-value service.
// Every operation is a single POST of a command array ["SET"|"GET"|"DEL",
// key, value?] against the base URL, authenticated with the REST token.
// Records are addressed by the composite key "<saleorApiUrl>@<namespace>" so
// several app deployments can share one backing store.
type UpstashAPL struct {
	restURL   string
	restToken string
	namespace string
	client    *http.Client
}

// UpstashConfig carries the already-resolved connection values. The
// constructor performs no environment reads; resolution happens once in
// pkg/config.
type UpstashConfig struct {
	RestURL   string
	RestToken string
	// Namespace suffixes every storage key. Defaults to "saleor-app".
	Namespace string
	// Timeout bounds each round trip. Defaults to 10s.
	Timeout time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

func NewUpstashAPL(cfg UpstashConfig) *UpstashAPL {
	ns := cfg.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &UpstashAPL{restURL: cfg.RestURL, restToken: cfg.RestToken, namespace: ns, client: client}
}

func (u *UpstashAPL) key(saleorAPIURL string) string {
	return saleorAPIURL + "@" + u.namespace
}

// commandEnvelope is the Upstash REST response shape: exactly one of Result
// or Error is meaningful. Result is null for absent keys, a JSON string for
// present ones, "OK" for SET and a count for DEL.
type commandEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func (u *UpstashAPL) command(ctx context.Context, op string, cmd []string) (json.RawMessage, error) {
	if u.restURL == "" || u.restToken == "" {
		return nil, &NotConfiguredError{Missing: u.missing()}
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.restURL, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+u.restToken)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}
	var env commandEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("malformed response envelope: %w", err)}
	}
	// An error field in a 2xx body is still a failure.
	if env.Error != "" {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("store error: %s", env.Error)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}
	return env.Result, nil
}

func (u *UpstashAPL) Get(ctx context.Context, saleorAPIURL string) (*AuthData, error) {
	key := u.key(saleorAPIURL)
	result, err := u.command(ctx, "get", []string{"GET", key})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, nil
	}
	// The stored value is a JSON document serialized into a string result.
	var value string
	if err := json.Unmarshal(result, &value); err != nil {
		return nil, &CorruptionError{Key: key, Err: err}
	}
	var data AuthData
	if err := json.Unmarshal([]byte(value), &data); err != nil {
		return nil, &CorruptionError{Key: key, Err: err}
	}
	return &data, nil
}

func (u *UpstashAPL) Set(ctx context.Context, data AuthData) error {
	value, err := json.Marshal(data)
	if err != nil {
		return &CorruptionError{Key: u.key(data.SaleorAPIURL), Err: err}
	}
	_, err = u.command(ctx, "set", []string{"SET", u.key(data.SaleorAPIURL), string(value)})
	return err
}

func (u *UpstashAPL) Delete(ctx context.Context, saleorAPIURL string) error {
	// DEL of an absent key reports 0 deleted, which is still success.
	_, err := u.command(ctx, "delete", []string{"DEL", u.key(saleorAPIURL)})
	return err
}

// GetAll is unsupported: the backing keyspace cannot be enumerated without a
// full SCAN, which the shared store may not permit.
func (u *UpstashAPL) GetAll(ctx context.Context) ([]AuthData, error) {
	return nil, ErrUnsupported
}

func (u *UpstashAPL) missing() []string {
	var missing []string
	if u.restURL == "" {
		missing = append(missing, "restURL")
	}
	if u.restToken == "" {
		missing = append(missing, "restToken")
	}
	return missing
}

func (u *UpstashAPL) IsReady(ctx context.Context) ReadyResult {
	if missing := u.missing(); len(missing) > 0 {
		return ReadyResult{Ready: false, Missing: missing}
	}
	return ReadyResult{Ready: true}
}

func (u *UpstashAPL) IsConfigured(ctx context.Context) ConfiguredResult {
	if len(u.missing()) > 0 {
		return ConfiguredResult{Configured: false, Err: &NotConfiguredError{Missing: u.missing()}}
	}
	return ConfiguredResult{Configured: true}
}
