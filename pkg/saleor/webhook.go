package saleor

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"

	"saleorapp/pkg/apl"
	"saleorapp/pkg/auth"
)

// Request headers set by the platform and its dashboard.
const (
	HeaderAPIURL              = "Saleor-Api-Url"
	HeaderEvent               = "Saleor-Event"
	HeaderDomain              = "Saleor-Domain"
	HeaderSignature           = "Saleor-Signature"
	HeaderAuthorizationBearer = "Authorization-Bearer"
)

// VerifyWebhookSignature checks the detached JWS the platform attaches to
// every webhook delivery against the tenant's key set. The key set stored in
// the auth record at install time is tried first, then the resolver's cached
// set. When the signature names a kid the cached set does not hold, the set
// is refetched once, covering platform key rotation within the cache TTL.
func VerifyWebhookSignature(ctx context.Context, resolver *auth.JWKSResolver, data apl.AuthData, body []byte, signature string) error {
	if signature == "" {
		return fmt.Errorf("missing signature header")
	}

	verify := func(set jwk.Set) error {
		_, err := jws.Verify([]byte(signature),
			jws.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
			jws.WithDetachedPayload(body),
		)
		return err
	}

	if data.JWKS != "" {
		if set, err := auth.ParseSet(data.JWKS); err == nil && verify(set) == nil {
			return nil
		}
	}

	set, err := resolver.Resolve(ctx, data.SaleorAPIURL, data.DashboardURL)
	if err != nil {
		return fmt.Errorf("resolve webhook jwks: %w", err)
	}
	firstErr := verify(set)
	if firstErr == nil {
		return nil
	}
	// Refetch only on a rotation signal: the signature names a key the
	// cached set does not hold. A bad signature made with a known key must
	// not be able to force discovery traffic.
	kid := signatureKeyID(signature)
	if kid == "" {
		return fmt.Errorf("webhook signature: %w", firstErr)
	}
	if _, known := set.LookupKeyID(kid); known {
		return fmt.Errorf("webhook signature: %w", firstErr)
	}
	resolver.Invalidate(data.SaleorAPIURL)
	set, err = resolver.Resolve(ctx, data.SaleorAPIURL, data.DashboardURL)
	if err != nil {
		return fmt.Errorf("resolve webhook jwks: %w", err)
	}
	if err := verify(set); err != nil {
		return fmt.Errorf("webhook signature: %w", err)
	}
	return nil
}

// signatureKeyID extracts the kid from the detached signature's protected
// header, or "" when the header cannot be parsed.
func signatureKeyID(signature string) string {
	msg, err := jws.Parse([]byte(signature))
	if err != nil || len(msg.Signatures()) == 0 {
		return ""
	}
	return msg.Signatures()[0].ProtectedHeaders().KeyID()
}
