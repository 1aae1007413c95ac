package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
)

// ContextKey represents the type used for context keys
type ContextKey string

// ViewerContextKey is where the authenticated viewer lives in the
// request context.
const ViewerContextKey ContextKey = "viewer"

// AuthMiddleware creates a middleware that requires a viewer session
func AuthMiddleware(manager *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeErrorResponse(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Extract token from "Bearer <token>" format
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				writeErrorResponse(w, "Invalid authorization format. Use: Bearer <token>", http.StatusUnauthorized)
				return
			}

			sessionToken := tokenParts[1]
			if sessionToken == "" {
				writeErrorResponse(w, "Session token required", http.StatusUnauthorized)
				return
			}

			v, err := manager.AuthenticateToken(r.Context(), sessionToken)
			if err != nil {
				log.Debug("Authentication failed", "error", err, "ip", r.RemoteAddr)
				writeErrorResponse(w, "Invalid session token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ViewerContextKey, v)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetViewerFromContext retrieves the authenticated viewer from the
// request context
func GetViewerFromContext(ctx context.Context) (*Viewer, bool) {
	v, ok := ctx.Value(ViewerContextKey).(*Viewer)
	return v, ok
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// writeErrorResponse writes a JSON error response
func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   message,
		Code:    statusCode,
		Message: message,
	}

	json.NewEncoder(w).Encode(response)
}
