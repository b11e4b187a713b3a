// pkg/middleware/token.go
package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"saleorapp/pkg/apl"
	"saleorapp/pkg/auth"
	"saleorapp/pkg/saleor"
)

type ssrKey struct{}
type claimsKey struct{}

// WithSSR marks a context as an internal server-side call whose caller is
// already trusted; ValidateToken skips bearer verification for it. Only
// in-process callers can set this, never a request header.
func WithSSR(ctx context.Context) context.Context {
	return context.WithValue(ctx, ssrKey{}, true)
}

func isSSR(ctx context.Context) bool {
	v, _ := ctx.Value(ssrKey{}).(bool)
	return v
}

// ValidateToken verifies the dashboard bearer token against the tenant's
// JWKS, using the stored dashboard origin to scope the discovery fetch and
// the stored app id as the expected claim. Must run after WithAuthData.
// requiredPermissions, when non-empty, are enforced on every token.
func ValidateToken(verifier *auth.Verifier, log *zap.SugaredLogger, requiredPermissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSSR(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			data := AuthDataFrom(r.Context())
			if data == nil {
				http.Error(w, "auth context missing", http.StatusInternalServerError)
				return
			}
			token := r.Header.Get(saleor.HeaderAuthorizationBearer)
			if token == "" {
				authOutcomes.WithLabelValues("missing_token").Inc()
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := verifier.Verify(r.Context(), auth.VerifyRequest{
				SaleorAPIURL:        data.SaleorAPIURL,
				Token:               token,
				AppID:               data.AppID,
				DashboardURL:        data.DashboardURL,
				RequiredPermissions: requiredPermissions,
			})
			if err != nil {
				authOutcomes.WithLabelValues(verifyFailureKind(err)).Inc()
				log.Debugw("token verification failed",
					"saleorApiUrl", data.SaleorAPIURL,
					"kind", verifyFailureKind(err),
					"token", apl.RedactToken(token),
					"err", err)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			authOutcomes.WithLabelValues("ok").Inc()
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// ClaimsFrom returns the validated claims attached by ValidateToken.
func ClaimsFrom(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(auth.Claims)
	return c, ok
}

func verifyFailureKind(err error) string {
	var malformed *auth.MalformedTokenError
	var sig *auth.SignatureVerificationError
	var claim *auth.ClaimMismatchError
	var perm *auth.InsufficientPermissionError
	switch {
	case errors.As(err, &malformed):
		return "malformed_token"
	case errors.As(err, &sig):
		return "bad_signature"
	case errors.As(err, &claim):
		return "claim_mismatch"
	case errors.As(err, &perm):
		return "insufficient_permissions"
	default:
		return "jwks_unavailable"
	}
}
