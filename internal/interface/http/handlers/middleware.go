package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

// AdminKeyHeader carries the admin key on write requests.
const AdminKeyHeader = "X-Admin-Key"

// Admin key failures. Both match shared.ErrUnauthorized.
var (
	ErrMissingAdminKey = shared.NewDomainError("auth", "Verify", shared.ErrUnauthorized, "admin key is required")
	ErrInvalidAdminKey = shared.NewDomainError("auth", "Verify", shared.ErrUnauthorized, "invalid admin key")
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN KEY MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// AdminKeyAuth checks the admin key against a bcrypt hash.
type AdminKeyAuth struct {
	hash []byte
}

// NewAdminKeyAuth creates an authenticator. An empty hash lets every request
// through.
func NewAdminKeyAuth(hash string) (*AdminKeyAuth, error) {
	if hash == "" {
		return &AdminKeyAuth{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &AdminKeyAuth{hash: []byte(hash)}, nil
}

// Enabled reports whether a key is required.
func (a *AdminKeyAuth) Enabled() bool {
	return len(a.hash) > 0
}

// Verify checks key against the configured hash. With no hash every key,
// the empty one included, is accepted.
func (a *AdminKeyAuth) Verify(key string) error {
	if !a.Enabled() {
		return nil
	}
	if key == "" {
		return ErrMissingAdminKey
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(key)); err != nil {
		return ErrInvalidAdminKey
	}
	return nil
}

// Middleware rejects requests without a valid admin key. The key is read
// from X-Admin-Key or a Bearer Authorization header.
func (a *AdminKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(AdminKeyHeader)
		if key == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		switch err := a.Verify(key); {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, ErrMissingAdminKey):
			writeAuthError(w, "missing_admin_key", "Admin key is required")
		default:
			writeAuthError(w, "invalid_admin_key", "Invalid admin key")
		}
	})
}

func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SECURITY HEADERS MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SIZE LIMIT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// ErrBodyTooLarge is reported by handlers that hit the size limit.
var ErrBodyTooLarge = errors.New("request body too large")

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   map[string]string{"code": "payload_too_large", "message": ErrBodyTooLarge.Error()},
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// MiddlewareFunc is a function that wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain composes middleware; the first one listed runs first.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
