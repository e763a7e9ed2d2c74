// Package handlers implements the HTTP presentation boundary: draft
// management, batch commit, the live item list, search and admin
// operations.
package handlers

import (
	"encoding/json"
	"net/http"

	"lostfound-ai/internal/contextutil"
)

// Role names. The server hands one out at login; clients echo it back
// in the X-Role header. Staff-only endpoints re-verify the passcode
// instead of trusting the header.
const (
	RoleGuest = "guest"
	RoleStaff = "staff"
)

// PasscodeHeader carries the shared staff passcode on privileged
// requests.
const PasscodeHeader = "X-Passcode"

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}

// requireMethod rejects requests with the wrong verb. Returns false
// after writing the response.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		logger := contextutil.LoggerFromContext(r.Context())
		logger.WarnContext(r.Context(), "method not allowed", "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// isStaff reports whether the request carries the staff passcode.
func isStaff(r *http.Request, passcode string) bool {
	return passcode != "" && r.Header.Get(PasscodeHeader) == passcode
}
