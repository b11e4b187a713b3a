// pkg/middleware/metrics.go
package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// authOutcomes counts authentication results by kind so store outages,
// revoked tenants and bad tokens can be told apart on a dashboard.
var authOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "saleor_app_auth_requests_total",
	Help: "Authentication middleware outcomes by result kind.",
}, []string{"result"})
