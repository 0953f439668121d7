// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package premium serves the premium feature catalog. The features are
// placeholders pointing at the upgrade site; there is no business logic
// behind them.
package premium

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/kontor/core/access"
)

// Feature is one advertised premium capability
type Feature struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UpgradeURL  string `json:"upgrade_url"`
}

// DefaultUpgradeURL is used when the service configures no upgrade site
const DefaultUpgradeURL = "https://kontor.relabs.tech/upgrade"

func catalog(upgradeURL string) []Feature {
	return []Feature{
		{
			Key:         "advanced-reporting",
			Name:        "Advanced Reporting",
			Description: "Configurable cross-resource reports with scheduled delivery.",
			UpgradeURL:  upgradeURL,
		},
		{
			Key:         "audit-trail",
			Name:        "Audit Trail",
			Description: "Complete per-record change history with actor attribution.",
			UpgradeURL:  upgradeURL,
		},
		{
			Key:         "bulk-import",
			Name:        "Bulk Import",
			Description: "CSV and spreadsheet import for all business records.",
			UpgradeURL:  upgradeURL,
		},
	}
}

// HandleRoutes adds the premium feature routes to the router. All routes
// require an authenticated caller.
func HandleRoutes(router *mux.Router, upgradeURL string) {
	if upgradeURL == "" {
		upgradeURL = DefaultUpgradeURL
	}
	features := catalog(upgradeURL)

	writeJSON := func(w http.ResponseWriter, status int, body any) {
		data, _ := json.Marshal(body)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		w.Write(data)
	}

	authenticated := func(w http.ResponseWriter, r *http.Request) bool {
		if access.AuthorizationFromContext(r.Context()) == nil {
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
			return false
		}
		return true
	}

	router.HandleFunc("/api/premium/features", func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": features})
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/premium/features/{key}", func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(w, r) {
			return
		}
		key := mux.Vars(r)["key"]
		for _, feature := range features {
			if feature.Key == key {
				writeJSON(w, http.StatusOK, map[string]any{"data": feature})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/premium/learn-more", func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "Premium features are available with a kontor subscription.",
			"upgrade_url": upgradeURL,
		})
	}).Methods(http.MethodGet)

	router.HandleFunc("/api/premium/upgrade", func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "Visit the upgrade site to activate premium features.",
			"upgrade_url": upgradeURL,
		})
	}).Methods(http.MethodGet, http.MethodPost)
}
