package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoginHandler(t *testing.T) {
	handler := NewLoginHandler("sesame")

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantRole   string
	}{
		{
			name:       "correct passcode grants staff",
			method:     http.MethodPost,
			body:       `{"passcode":"sesame"}`,
			wantStatus: http.StatusOK,
			wantRole:   RoleStaff,
		},
		{
			name:       "wrong passcode rejected",
			method:     http.MethodPost,
			body:       `{"passcode":"guess"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "empty passcode is a guest login",
			method:     http.MethodPost,
			body:       `{}`,
			wantStatus: http.StatusOK,
			wantRole:   RoleGuest,
		},
		{
			name:       "invalid body",
			method:     http.MethodPost,
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "method not allowed",
			method:     http.MethodGet,
			body:       "",
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/login", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.wantRole != "" {
				var resp LoginResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decoding response: %v", err)
				}
				if resp.Role != tt.wantRole {
					t.Errorf("role = %q, want %q", resp.Role, tt.wantRole)
				}
			}
		})
	}
}
