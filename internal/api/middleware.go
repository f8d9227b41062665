package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/trogers1052/wheel-tracker/internal/models"
)

type contextKey string

const userIDKey contextKey = "user_id"

// AuthMiddleware verifies the bearer JWT on every request and stores the
// caller's user id in the request context. Verification failures are never
// retried here; the client re-authenticates.
type AuthMiddleware struct {
	secret   []byte
	audience string
}

// NewAuthMiddleware builds the JWT verifier.
func NewAuthMiddleware(secret, audience string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret), audience: audience}
}

// Handler wraps next with bearer token verification.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			respondError(w, &models.AuthError{Reason: "missing authorization header"})
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			respondError(w, &models.AuthError{Reason: "invalid authorization header format"})
			return
		}

		userID, err := m.verify(parts[1])
		if err != nil {
			respondError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) verify(token string) (uuid.UUID, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, &models.AuthError{Reason: "unexpected signing method"}
		}
		return m.secret, nil
	}, jwt.WithAudience(m.audience))

	if err != nil || !parsed.Valid {
		return uuid.Nil, &models.AuthError{Reason: "invalid or expired token"}
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, &models.AuthError{Reason: "token missing subject"}
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, &models.AuthError{Reason: "token subject is not a user id"}
	}
	return userID, nil
}

// userID extracts the authenticated caller from the request context.
func userID(r *http.Request) (uuid.UUID, error) {
	id, ok := r.Context().Value(userIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, &models.AuthError{Reason: "not authenticated"}
	}
	return id, nil
}
