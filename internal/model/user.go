package model

import (
	"strings"
	"time"
)

// User represents an application user record as stored in the
// `users` table.  Identity is issued by the auth endpoints; the workflow
// engine only ever sees an Actor derived from the access token.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password.
//	Role         – one of the closed role set.
//	IsActive     – whether the account is active.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// Role is a capability tag carried in the access token.
type Role string

const (
	RoleRequester Role = "REQUESTER"
	RoleApprover  Role = "APPROVER"
	RoleBiller    Role = "BILLER"
	RoleFinance   Role = "FINANCE"
	RoleAdmin     Role = "ADMIN"
)

// Roles lists every role in the closed set.
var Roles = []Role{RoleRequester, RoleApprover, RoleBiller, RoleFinance, RoleAdmin}

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	ID   uint64
	Role Role
}
