package httpapi

import (
	"context"
	"net/http"
	"strings"

	"riskscreen-backend/internal/services"

	"go.uber.org/zap"
)

type contextKey string

const ctxIdentity contextKey = "identity"

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")), true
}

func WithAuth(guard services.Guard, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "Authentication failed")
				return
			}
			identity, err := guard.Authenticate(r.Context(), token)
			if err != nil {
				writeServiceError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxIdentity, identity)))
		})
	}
}

// OptionalAuth attaches an identity when a bearer token is sent; a bad token is still a 401.
func OptionalAuth(guard services.Guard, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			identity, err := guard.Authenticate(r.Context(), token)
			if err != nil {
				writeServiceError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxIdentity, identity)))
		})
	}
}

func CurrentIdentity(r *http.Request) *services.Identity {
	if value, ok := r.Context().Value(ctxIdentity).(*services.Identity); ok {
		return value
	}
	return nil
}

func RequireCapability(op services.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := services.Authorize(op, CurrentIdentity(r)); err != nil {
				se, _ := services.AsServiceError(err)
				WriteError(w, se.Status(), se.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
