// pkg/middleware/authdata.go
package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"saleorapp/pkg/apl"
	"saleorapp/pkg/saleor"
)

type authDataKey struct{}

// WithAuthData resolves the tenant named by the Saleor-Api-Url header
// against the credential store and attaches its record to the request
// context. A missing header, an unknown tenant and a store outage are three
// distinct failures and map to 400, 401 and 500 respectively; a store error
// is never reported as "unknown tenant".
func WithAuthData(store apl.APL, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiURL := r.Header.Get(saleor.HeaderAPIURL)
			if apiURL == "" {
				authOutcomes.WithLabelValues("missing_api_url").Inc()
				http.Error(w, "missing saleor-api-url header", http.StatusBadRequest)
				return
			}
			data, err := store.Get(r.Context(), apiURL)
			if err != nil {
				authOutcomes.WithLabelValues("store_error").Inc()
				var nc *apl.NotConfiguredError
				if errors.As(err, &nc) {
					log.Errorw("credential store not configured", "missing", nc.Missing)
				} else {
					log.Errorw("credential store lookup failed", "saleorApiUrl", apiURL, "err", err)
				}
				http.Error(w, "credential store unavailable", http.StatusInternalServerError)
				return
			}
			if data == nil {
				authOutcomes.WithLabelValues("unknown_tenant").Inc()
				log.Debugw("no auth record for tenant", "saleorApiUrl", apiURL)
				http.Error(w, "unknown tenant", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), authDataKey{}, data)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthDataFrom returns the record attached by WithAuthData, or nil when the
// middleware did not run.
func AuthDataFrom(ctx context.Context) *apl.AuthData {
	if v, ok := ctx.Value(authDataKey{}).(*apl.AuthData); ok {
		return v
	}
	return nil
}
