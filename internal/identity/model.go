package identity

import (
	"errors"
	"time"
)

// Role is an admin staff role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
)

// Permissions guarded by the admin API.
const (
	PermVerificationsRead  = "verifications:read"
	PermVerificationsWrite = "verifications:write"
	PermProfilesRead       = "profiles:read"
	PermUsersManage        = "users:manage"
)

var rolePermissions = map[Role][]string{
	RoleAdmin:   {PermVerificationsRead, PermVerificationsWrite, PermProfilesRead, PermUsersManage},
	RoleManager: {PermVerificationsRead, PermVerificationsWrite, PermProfilesRead},
	RoleAgent:   {PermVerificationsRead, PermVerificationsWrite},
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// DefaultPermissions returns a copy of the permissions granted to role.
func DefaultPermissions(role Role) []string {
	return append([]string(nil), rolePermissions[role]...)
}

var (
	ErrNotFound           = errors.New("user not found")
	ErrAlreadyExists      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidInput       = errors.New("invalid user input")
)

// User is a financial-institution staff member.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	Permissions  []string   `json:"permissions"`
	PasswordHash []byte     `json:"-"`
	TokenVersion int        `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Can reports whether the user holds perm.
func (u User) Can(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Credentials is a login attempt.
type Credentials struct {
	Email    string
	Password string
}

// RegisterInput creates a staff account.
type RegisterInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}
