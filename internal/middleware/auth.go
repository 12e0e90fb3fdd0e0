package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/speechbox/server/internal/auth"
	"github.com/speechbox/server/internal/model"
)

type contextKey string

const boxIDKey contextKey = "box_id"

// BoxAuth validates the device JWT and requires its box_id claim to match the
// {boxId} URL parameter. Mount it inside the /box/{boxId} route.
func BoxAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, jwtService)
			if !ok {
				return
			}

			boxID, err := model.ParseBoxID(chi.URLParam(r, "boxId"))
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "invalid box id")
				return
			}
			if claims.BoxID != boxID {
				respondWithError(w, http.StatusForbidden, "token is not valid for this box")
				return
			}

			ctx := context.WithValue(r.Context(), boxIDKey, claims.BoxID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DeviceAuth validates the device JWT on routes that carry no {boxId}. The
// authenticated box is stored in the context; handlers compare it with the
// box that owns the resource via GetBoxID.
func DeviceAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, jwtService)
			if !ok {
				return
			}
			ctx := context.WithValue(r.Context(), boxIDKey, claims.BoxID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate verifies the bearer token, writing a 401 on failure.
func authenticate(w http.ResponseWriter, r *http.Request, jwtService *auth.JWTService) (*auth.BoxClaims, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		respondWithError(w, http.StatusUnauthorized, "missing authorization header")
		return nil, false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		respondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
		return nil, false
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		respondWithError(w, http.StatusUnauthorized, "missing token")
		return nil, false
	}

	claims, err := jwtService.VerifyToken(tokenString)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
		return nil, false
	}
	return claims, true
}

// GetBoxID extracts the authenticated box ID from context. ok is false when
// device authentication is disabled.
func GetBoxID(ctx context.Context) (model.BoxID, bool) {
	boxID, ok := ctx.Value(boxIDKey).(model.BoxID)
	return boxID, ok
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]string{"error": message}
	_ = json.NewEncoder(w).Encode(response)
}
