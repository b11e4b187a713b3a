// pkg/middleware/client.go
package middleware

import (
	"context"
	"net/http"

	"saleorapp/pkg/saleor"
)

type saleorClientKey struct{}

// WithSaleorClient constructs the outbound API client bound to the
// authenticated tenant's origin and stored app token, for handlers running
// after the auth chain. Must run after WithAuthData.
func WithSaleorClient(opts ...saleor.ClientOption) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data := AuthDataFrom(r.Context())
			if data == nil {
				http.Error(w, "auth context missing", http.StatusInternalServerError)
				return
			}
			client := saleor.NewClient(data.SaleorAPIURL, data.Token, opts...)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), saleorClientKey{}, client)))
		})
	}
}

// SaleorClientFrom returns the client attached by WithSaleorClient.
func SaleorClientFrom(ctx context.Context) *saleor.Client {
	if v, ok := ctx.Value(saleorClientKey{}).(*saleor.Client); ok {
		return v
	}
	return nil
}
