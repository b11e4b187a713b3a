// Package webhook authenticates inbound platform webhooks and routes them
// to registered event handlers. Payload schemas are the handlers' concern;
// this package only establishes which tenant sent the event and that the
// platform signed it.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"saleorapp/pkg/apl"
	"saleorapp/pkg/auth"
	"saleorapp/pkg/saleor"
)

// Event is a verified webhook delivery: the tenant's credential record plus
// the raw payload.
type Event struct {
	Name     string
	AuthData apl.AuthData
	Payload  []byte
}

type EventHandler func(ctx context.Context, ev Event) error

type Router struct {
	store    apl.APL
	resolver *auth.JWKSResolver
	log      *zap.SugaredLogger
	handlers map[string]EventHandler
}

func NewRouter(store apl.APL, resolver *auth.JWKSResolver, log *zap.SugaredLogger) *Router {
	return &Router{store: store, resolver: resolver, log: log, handlers: map[string]EventHandler{}}
}

// Handle registers fn for an event name, e.g. "order-created". Must be
// called before RegisterRoutes; the map is read-only afterwards.
func (rt *Router) Handle(event string, fn EventHandler) {
	rt.handlers[strings.ToLower(event)] = fn
}

func (rt *Router) RegisterRoutes(r chi.Router) {
	r.Post("/api/webhooks/{event}", rt.serve)
}

func (rt *Router) serve(w http.ResponseWriter, r *http.Request) {
	event := strings.ToLower(chi.URLParam(r, "event"))
	handler, ok := rt.handlers[event]
	if !ok {
		http.Error(w, "unknown webhook", http.StatusNotFound)
		return
	}

	apiURL := r.Header.Get(saleor.HeaderAPIURL)
	if apiURL == "" {
		http.Error(w, "missing saleor-api-url header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	data, err := rt.store.Get(r.Context(), apiURL)
	if err != nil {
		rt.log.Errorw("credential store lookup failed", "saleorApiUrl", apiURL, "err", err)
		http.Error(w, "credential store unavailable", http.StatusInternalServerError)
		return
	}
	if data == nil {
		rt.log.Debugw("webhook from unknown tenant", "saleorApiUrl", apiURL)
		http.Error(w, "unknown tenant", http.StatusUnauthorized)
		return
	}

	if err := saleor.VerifyWebhookSignature(r.Context(), rt.resolver, *data, body, r.Header.Get(saleor.HeaderSignature)); err != nil {
		rt.log.Warnw("webhook signature rejected", "saleorApiUrl", apiURL, "event", event, "err", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	if err := handler(r.Context(), Event{Name: event, AuthData: *data, Payload: body}); err != nil {
		rt.log.Errorw("webhook handler failed", "event", event, "saleorApiUrl", apiURL, "err", err)
		http.Error(w, "webhook processing failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
