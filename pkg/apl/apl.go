// Package apl implements the Auth Persistence Layer: the tenant -> credential
// store every other component authenticates against. Backends are
// interchangeable behind the APL interface (memory, file, Upstash REST,
// Redis, Postgres).
package apl

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// AuthData is the credential record for one installed tenant. SaleorAPIURL is
// the primary key. Token is the app token granted at install time and must
// never be logged in full.
type AuthData struct {
	SaleorAPIURL string `json:"saleorApiUrl"`
	Token        string `json:"token"`
	AppID        string `json:"appId"`
	DashboardURL string `json:"dashboardUrl,omitempty"`
	Domain       string `json:"domain,omitempty"`
	JWKS         string `json:"jwks,omitempty"`
}

// ReadyResult reports whether a backend has the configuration it needs.
// Missing lists the absent configuration fields when Ready is false.
type ReadyResult struct {
	Ready   bool
	Missing []string
}

// ConfiguredResult is the installer-facing variant of ReadyResult: a plain
// usable/not-usable answer with a generic error.
type ConfiguredResult struct {
	Configured bool
	Err        error
}

// APL is the storage abstraction mapping a tenant key (its Saleor API URL)
// to its credential record.
type APL interface {
	// Get returns the stored record, or (nil, nil) when no record exists.
	// Transport or storage failure is an error, never a nil record.
	Get(ctx context.Context, saleorAPIURL string) (*AuthData, error)
	// Set upserts the record keyed by its SaleorAPIURL.
	Set(ctx context.Context, data AuthData) error
	// Delete removes the record. Deleting an absent key is not an error.
	Delete(ctx context.Context, saleorAPIURL string) error
	// GetAll lists every stored record. Backends whose store cannot be
	// enumerated cheaply return ErrUnsupported.
	GetAll(ctx context.Context) ([]AuthData, error)
	// IsReady inspects the backend's own configuration; it performs no
	// network I/O.
	IsReady(ctx context.Context) ReadyResult
	// IsConfigured is IsReady phrased as "usable", checked by the installer
	// before accepting an install request.
	IsConfigured(ctx context.Context) ConfiguredResult
}

// ErrUnsupported is returned by GetAll on backends that cannot enumerate
// their keyspace.
var ErrUnsupported = errors.New("apl: operation not supported")

// NotConfiguredError means required backend configuration is absent.
type NotConfiguredError struct {
	Missing []string
}

func (e *NotConfiguredError) Error() string {
	if len(e.Missing) == 0 {
		return "apl: not configured"
	}
	return "apl: not configured, missing " + strings.Join(e.Missing, ", ")
}

// TransportError wraps a network or HTTP failure talking to the backing
// store. Status is the HTTP status code when one was received, else 0.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("apl: %s failed with status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("apl: %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CorruptionError means a stored value exists but does not decode as an
// AuthData record. It is surfaced, never coerced into "record absent".
type CorruptionError struct {
	Key string
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("apl: stored value for %q is not a valid auth record: %v", e.Key, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// RedactToken shortens a credential for log output.
func RedactToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "..."
}
