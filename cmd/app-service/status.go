package main

import (
	"encoding/json"
	"net/http"

	"saleorapp/pkg/middleware"
)

// statusHandler lets the dashboard confirm which installation it is talking
// to after the auth chain has run.
func statusHandler(w http.ResponseWriter, r *http.Request) {
	data := middleware.AuthDataFrom(r.Context())
	resp := map[string]any{
		"saleorApiUrl": data.SaleorAPIURL,
		"appId":        data.AppID,
	}
	if claims, ok := middleware.ClaimsFrom(r.Context()); ok {
		resp["permissions"] = claims.Permissions
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
