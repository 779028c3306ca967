package models

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

func IsValidRole(role UserRole) bool {
	return role == RoleUser || role == RoleAdmin
}

// HasAtLeast reports whether the held role satisfies the required tier.
// Admin satisfies everything.
func HasAtLeast(held, required UserRole) bool {
	if held == RoleAdmin {
		return true
	}
	return held == required
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
