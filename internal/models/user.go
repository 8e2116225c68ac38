package models

import (
	"fmt"
	"time"
)

// Role is the user's role. Values are stored as integers and serialized as names.
type Role int

// Role constants
const (
	RoleStudent Role = 1
	RoleFaculty Role = 2
	RoleAdmin   Role = 3
)

var roleNames = map[Role]string{
	RoleStudent: "student",
	RoleFaculty: "faculty",
	RoleAdmin:   "admin",
}

// String returns the role name
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole converts a role name into a Role
func ParseRole(name string) (Role, bool) {
	for role, roleName := range roleNames {
		if roleName == name {
			return role, true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler
func (r Role) MarshalText() ([]byte, error) {
	name, ok := roleNames[r]
	if !ok {
		return nil, fmt.Errorf("unknown role %d", int(r))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Role) UnmarshalText(text []byte) error {
	role, ok := ParseRole(string(text))
	if !ok {
		return fmt.Errorf("unknown role %q", string(text))
	}
	*r = role
	return nil
}

// User represents a student, faculty member or admin
type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Institution  string    `json:"institution"`
	Department   string    `json:"department"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserToken represents a stored refresh token
type UserToken struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId"`
	Token  string `json:"token"`
}

// RegisterRequest represents a signup request. Password rules are checked by the auth service.
type RegisterRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Email       string `json:"email" validate:"required,max=255"`
	Password    string `json:"password" validate:"required,max=72"`
	Institution string `json:"institution" validate:"max=150"`
	Department  string `json:"department" validate:"max=150"`
}

// LoginRequest represents a login request. When Role is set it must match the account's role.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=student faculty admin"`
}

// AuthResponse is returned by signup, login and refresh
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user,omitempty"`
}

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID int
	Role   Role
}

// IsStudent reports whether the actor is a student
func (a Actor) IsStudent() bool { return a.Role == RoleStudent }

// IsAdmin reports whether the actor is an admin
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// StudentSummary is the public part of a student used in faculty views
type StudentSummary struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
