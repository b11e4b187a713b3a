// Package register implements the installation endpoint the platform calls
// to hand the app its token for a new tenant.
package register

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"saleorapp/pkg/apl"
	"saleorapp/pkg/saleor"
)

// ClientFactory builds the outbound client used to validate the granted
// token. Injectable so tests can point it at a stub platform.
type ClientFactory func(apiURL, token string) *saleor.Client

type Handler struct {
	store     apl.APL
	log       *zap.SugaredLogger
	allowed   *regexp.Regexp // nil allows every origin
	newClient ClientFactory
}

// New builds the handler. allowedPattern optionally restricts which tenant
// origins may install; an empty pattern allows all.
func New(store apl.APL, log *zap.SugaredLogger, allowedPattern string, factory ClientFactory) (*Handler, error) {
	var allowed *regexp.Regexp
	if allowedPattern != "" {
		var err error
		allowed, err = regexp.Compile(allowedPattern)
		if err != nil {
			return nil, fmt.Errorf("register: allowed pattern: %w", err)
		}
	}
	if factory == nil {
		factory = func(apiURL, token string) *saleor.Client {
			return saleor.NewClient(apiURL, token)
		}
	}
	return &Handler{store: store, log: log, allowed: allowed, newClient: factory}, nil
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/register", h.handle)
}

type registerRequest struct {
	AuthToken    string `json:"auth_token"`
	DashboardURL string `json:"dashboard_url"`
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request) {
	apiURL := r.Header.Get(saleor.HeaderAPIURL)
	if apiURL == "" {
		httpError(w, http.StatusBadRequest, "missing saleor-api-url header")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AuthToken == "" {
		httpError(w, http.StatusBadRequest, "missing auth_token")
		return
	}

	if h.allowed != nil && !h.allowed.MatchString(apiURL) {
		h.log.Infow("installation rejected by allow-list", "saleorApiUrl", apiURL)
		httpError(w, http.StatusForbidden, "origin not allowed to install this app")
		return
	}

	if configured := h.store.IsConfigured(r.Context()); !configured.Configured {
		h.log.Errorw("install rejected: credential store not configured", "err", configured.Err)
		httpError(w, http.StatusServiceUnavailable, "credential store not configured")
		return
	}

	// The token must be able to identify its own app installation; that id
	// later anchors every claim check for this tenant.
	appID, err := h.newClient(apiURL, req.AuthToken).AppID(r.Context())
	if err != nil {
		h.log.Warnw("install token rejected", "saleorApiUrl", apiURL, "token", apl.RedactToken(req.AuthToken), "err", err)
		httpError(w, http.StatusUnauthorized, "could not validate the granted token")
		return
	}

	data := apl.AuthData{
		SaleorAPIURL: apiURL,
		Token:        req.AuthToken,
		AppID:        appID,
		DashboardURL: req.DashboardURL,
		Domain:       r.Header.Get(saleor.HeaderDomain),
	}
	if err := h.store.Set(r.Context(), data); err != nil {
		h.log.Errorw("failed to persist auth record", "saleorApiUrl", apiURL, "err", err)
		httpError(w, http.StatusInternalServerError, "could not persist installation")
		return
	}

	h.log.Infow("app installed", "saleorApiUrl", apiURL, "appId", appID)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

func httpError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}
