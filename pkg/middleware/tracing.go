// pkg/middleware/tracing.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"saleorapp/pkg/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"go.uber.org/zap"
)

// Tracing wires the OTLP exporter when an endpoint is configured; otherwise
// it is a pass-through. Initialization happens once at router assembly.
func Tracing(cfg config.Config, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	if cfg.OTLPEndpoint == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	opts := []otlptracehttp.Option{}
	if strings.HasPrefix(strings.ToLower(cfg.OTLPEndpoint), "http://") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		log.Warnw("tracing disabled: exporter init failed", "err", err)
		return func(next http.Handler) http.Handler { return next }
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(semconv.ServiceName("saleor-app")))
	if err != nil {
		log.Warnw("tracing disabled: resource init failed", "err", err)
		return func(next http.Handler) http.Handler { return next }
	}
	tp := trace.NewTracerProvider(trace.WithBatcher(exp), trace.WithResource(res))
	otel.SetTracerProvider(tp)
	return func(next http.Handler) http.Handler { return otelhttp.NewHandler(next, "http") }
}
