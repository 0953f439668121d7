// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package facade

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// envelope is the JSON shape of every response. Exactly one of Data or
// Error is set; Count, Total, Offset and Limit accompany list data.
type envelope struct {
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Total   *int   `json:"total,omitempty"`
	Offset  *int   `json:"offset,omitempty"`
	Limit   *int   `json:"limit,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// addStandardHeaders attaches the CORS headers for the configured origin and
// the browser hardening headers to every response, including preflight.
func addStandardHeaders(w http.ResponseWriter, origin string, methods []string) {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", origin)
	header.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	header.Set("Access-Control-Allow-Credentials", "true")
	header.Set("Content-Type", "application/json; charset=utf-8")
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("X-Frame-Options", "DENY")
	header.Set("X-XSS-Protection", "1; mode=block")
}

func writeJSON(w http.ResponseWriter, status int, e envelope) {
	body, _ := json.Marshal(e)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Data: data, Message: message})
}

func writeList(w http.ResponseWriter, data []any, total int, p pagination) {
	count := len(data)
	writeJSON(w, http.StatusOK, envelope{
		Data:   data,
		Count:  &count,
		Total:  &total,
		Offset: &p.Offset,
		Limit:  &p.Limit,
	})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, envelope{Message: message})
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, envelope{Error: code, Message: message})
}

// the uniform error vocabulary
const (
	errMalformedInput = "malformed input"
	errForbidden      = "forbidden"
	errNotFound       = "not found"
	errInternal       = "internal server error"
)
