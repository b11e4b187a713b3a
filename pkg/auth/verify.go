// pkg/auth/verify.go
package auth

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claim names issued by the platform.
const (
	claimApp         = "app"
	claimPermissions = "user_permissions"
)

// MalformedTokenError means the bearer token could not be decoded at all.
type MalformedTokenError struct{ Err error }

func (e *MalformedTokenError) Error() string { return fmt.Sprintf("malformed token: %v", e.Err) }
func (e *MalformedTokenError) Unwrap() error { return e.Err }

// SignatureVerificationError means the token does not verify against the
// tenant's resolved key set.
type SignatureVerificationError struct{ Err error }

func (e *SignatureVerificationError) Error() string {
	return fmt.Sprintf("signature verification failed: %v", e.Err)
}
func (e *SignatureVerificationError) Unwrap() error { return e.Err }

// ClaimMismatchError means a correctly signed token was issued for a
// different app installation.
type ClaimMismatchError struct {
	Expected string
	Got      string
}

func (e *ClaimMismatchError) Error() string {
	return fmt.Sprintf("token app claim %q does not match installed app %q", e.Got, e.Expected)
}

// InsufficientPermissionError means the token lacks one of the permissions
// the caller requires.
type InsufficientPermissionError struct{ Missing []string }

func (e *InsufficientPermissionError) Error() string {
	return fmt.Sprintf("token lacks required permissions %v", e.Missing)
}

// Claims is the validated outcome of a verification attempt.
type Claims struct {
	App         string
	Permissions []string
}

// VerifyRequest carries everything one verification attempt needs. The
// SaleorAPIURL must come from the authenticated request context (header or
// APL lookup), never from the token itself: an unverified claim must not
// select the key set that verifies it.
type VerifyRequest struct {
	SaleorAPIURL string
	Token        string
	// AppID is the identifier expected in the token's app claim, obtained
	// independently (the stored APL record).
	AppID        string
	DashboardURL string
	// RequiredPermissions, when non-empty, must all be present in the
	// token's user_permissions claim.
	RequiredPermissions []string
}

// Verifier runs the decode -> resolve -> verify -> validate pipeline. It is
// stateless apart from the shared resolver cache and safe for concurrent
// use.
type Verifier struct {
	resolver *JWKSResolver
}

func NewVerifier(resolver *JWKSResolver) *Verifier {
	return &Verifier{resolver: resolver}
}

// Verify terminates on the first failing stage and returns its typed error.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (Claims, error) {
	// Stage 1: decode without verifying, so malformed input is rejected
	// before any network traffic.
	if _, err := jwt.ParseInsecure([]byte(req.Token)); err != nil {
		return Claims{}, &MalformedTokenError{Err: err}
	}

	// Stage 2: trust material, keyed by the tenant origin from context.
	set, err := v.resolver.Resolve(ctx, req.SaleorAPIURL, req.DashboardURL)
	if err != nil {
		return Claims{}, err
	}

	// Stage 3: signature. Platform keys commonly omit the alg member, so it
	// is inferred from the key type.
	tok, err := jwt.Parse([]byte(req.Token),
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(true),
	)
	if err != nil {
		return Claims{}, &SignatureVerificationError{Err: err}
	}

	// Stage 4: claims.
	claims := Claims{App: stringClaim(tok, claimApp), Permissions: stringSliceClaim(tok, claimPermissions)}
	if claims.App != req.AppID {
		return Claims{}, &ClaimMismatchError{Expected: req.AppID, Got: claims.App}
	}
	if missing := missingPermissions(claims.Permissions, req.RequiredPermissions); len(missing) > 0 {
		return Claims{}, &InsufficientPermissionError{Missing: missing}
	}
	return claims, nil
}

func stringClaim(tok jwt.Token, name string) string {
	if v, ok := tok.Get(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func stringSliceClaim(tok jwt.Token, name string) []string {
	v, ok := tok.Get(name)
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		var out []string
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func missingPermissions(have, want []string) []string {
	if len(want) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(have))
	for _, p := range have {
		set[p] = struct{}{}
	}
	var missing []string
	for _, p := range want {
		if _, ok := set[p]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}
