package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"esas/internal/auth"
)

// LoginResult is what a successful login hands back to the client.
type LoginResult struct {
	Token    auth.Token
	Role     string
	EntityID string
}

// Service authenticates accounts and issues access tokens.
type Service struct {
	store  Store
	issuer string
	key    string
	ttl    time.Duration
	cost   int
}

// NewService wires the token settings used by Login.
func NewService(store Store, issuer, signingKey string, ttl time.Duration) *Service {
	return &Service{store: store, issuer: issuer, key: signingKey, ttl: ttl, cost: bcrypt.DefaultCost}
}

// Login checks a username (or email) and password. Unknown users and wrong
// passwords both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, login, password string) (LoginResult, error) {
	if strings.TrimSpace(login) == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	a, err := s.store.FindByLogin(ctx, login)
	if errors.Is(err, ErrNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !CheckPassword(a.PasswordHash, password) {
		return LoginResult{}, ErrInvalidCredentials
	}
	tok, err := auth.Issue(a.ID, a.Role, a.EntityID, s.issuer, s.key, s.ttl)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: tok, Role: a.Role, EntityID: a.EntityID}, nil
}

// Register creates an account with a hashed password.
func (s *Service) Register(ctx context.Context, username, email, password, role, entityID string) (Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || entityID == "" || !validRole(role) {
		return Account{}, ErrInvalidAccount
	}
	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return Account{}, err
	}
	return s.store.Create(ctx, Account{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Role:         role,
		EntityID:     entityID,
	})
}
