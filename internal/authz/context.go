package authz

import (
	"context"
	"net/http"

	"github.com/certprep/certprep-api/internal/models"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	usernameKey contextKey = "username"
	userRoleKey contextKey = "user_role"
)

// WithIdentity stores the authenticated user's identity on the context.
// userID may be nil when the token subject was not a positive integer.
func WithIdentity(ctx context.Context, userID *int64, username string, role models.UserRole) context.Context {
	if userID != nil {
		ctx = context.WithValue(ctx, userIDKey, *userID)
	}
	if username != "" {
		ctx = context.WithValue(ctx, usernameKey, username)
	}
	if models.IsValidRole(role) {
		ctx = context.WithValue(ctx, userRoleKey, role)
	}
	return ctx
}

func UserIDFromRequest(r *http.Request) (int64, bool) {
	uid, ok := r.Context().Value(userIDKey).(int64)
	if !ok || uid <= 0 {
		return 0, false
	}
	return uid, true
}

func UsernameFromRequest(r *http.Request) (string, bool) {
	name, ok := r.Context().Value(usernameKey).(string)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

func RoleFromRequest(r *http.Request) (models.UserRole, bool) {
	role, ok := r.Context().Value(userRoleKey).(models.UserRole)
	if !ok || !models.IsValidRole(role) {
		return "", false
	}
	return role, true
}
