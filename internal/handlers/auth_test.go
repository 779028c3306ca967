package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/certprep/certprep-api/internal/authz"
	"github.com/certprep/certprep-api/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func authedRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/questions", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestJWTMiddleware(t *testing.T) {
	handler := NewAuthHandler(nil, testSecret, zerolog.Nop())

	var gotID *int64
	var gotName string
	var gotRole models.UserRole
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := authz.UserIDFromRequest(r); ok {
			gotID = &uid
		}
		gotName, _ = authz.UsernameFromRequest(r)
		gotRole, _ = authz.RoleFromRequest(r)
		w.WriteHeader(http.StatusOK)
	})
	protected := handler.JWTMiddleware(next)

	t.Run("valid token", func(t *testing.T) {
		gotID, gotName, gotRole = nil, "", ""
		token := signToken(t, testSecret, jwt.MapClaims{
			"sub":      7,
			"username": "alice",
			"role":     "admin",
			"exp":      time.Now().Add(time.Hour).Unix(),
		})

		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, authedRequest(token))

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotID)
		assert.Equal(t, int64(7), *gotID)
		assert.Equal(t, "alice", gotName)
		assert.Equal(t, models.RoleAdmin, gotRole)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, authedRequest(""))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/questions", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", jwt.MapClaims{
			"sub":  7,
			"role": "user",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, authedRequest(token))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"sub":  7,
			"role": "user",
			"exp":  time.Now().Add(-time.Hour).Unix(),
		})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, authedRequest(token))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing role claim", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"sub": 7,
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, authedRequest(token))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-numeric subject leaves user id unset", func(t *testing.T) {
		gotID, gotName, gotRole = nil, "", ""
		token := signToken(t, testSecret, jwt.MapClaims{
			"sub":      "service-account",
			"username": "svc",
			"role":     "user",
			"exp":      time.Now().Add(time.Hour).Unix(),
		})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, authedRequest(token))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, gotID)
		assert.Equal(t, "svc", gotName)
	})
}
