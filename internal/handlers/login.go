package handlers

import (
	"encoding/json"
	"net/http"

	"lostfound-ai/internal/contextutil"
)

// LoginHandler exchanges the shared passcode for a role. There are no
// accounts: anyone without the passcode is a guest.
type LoginHandler struct {
	passcode string
}

// NewLoginHandler creates a new LoginHandler.
func NewLoginHandler(passcode string) *LoginHandler {
	return &LoginHandler{passcode: passcode}
}

// LoginRequest represents the login payload.
//
// swagger:model LoginRequest
type LoginRequest struct {
	Passcode string `json:"passcode"`
}

// LoginResponse carries the granted role.
//
// swagger:model LoginResponse
type LoginResponse struct {
	Role string `json:"role"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid login body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// An empty passcode is a plain guest login, not a failed staff one.
	if req.Passcode == "" {
		writeJSON(w, http.StatusOK, LoginResponse{Role: RoleGuest})
		return
	}
	if req.Passcode != h.passcode {
		logger.WarnContext(ctx, "staff login rejected")
		writeError(w, http.StatusUnauthorized, "Incorrect passcode")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Role: RoleStaff})
}
