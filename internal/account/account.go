package account

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"esas/internal/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotFound           = errors.New("account not found")
	ErrUsernameTaken      = errors.New("username or email already in use")
	ErrInvalidAccount     = errors.New("username, password, role and entity id are required")
)

// Account is a login identity bound to a student, lecturer or admin entity.
type Account struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	EntityID     string `json:"entity_id"`
}

// Store persists accounts.
type Store interface {
	// FindByLogin matches login against username or email, case-insensitively.
	FindByLogin(ctx context.Context, login string) (Account, error)
	Create(ctx context.Context, a Account) (Account, error)
}

// HashPassword returns the bcrypt hash of p.
func HashPassword(p string, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(p), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether p matches hash h.
func CheckPassword(h, p string) bool {
	return bcrypt.CompareHashAndPassword([]byte(h), []byte(p)) == nil
}

func validRole(role string) bool {
	switch role {
	case auth.RoleStudent, auth.RoleLecturer, auth.RoleAdmin:
		return true
	}
	return false
}

func normalizeLogin(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
