package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"esas/internal/auth"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(NewMemoryStore(), "esas-test", "test-key", time.Hour)
	svc.cost = bcrypt.MinCost
	if _, err := svc.Register(context.Background(), "Ada", "ada@school.test", "s3cret", auth.RoleStudent, "stu-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	return svc
}

func TestLoginIssuesToken(t *testing.T) {
	svc := newTestService(t)
	for _, login := range []string{"ada", "ADA", "ada@school.test"} {
		res, err := svc.Login(context.Background(), login, "s3cret")
		if err != nil {
			t.Fatalf("login %q: %v", login, err)
		}
		if res.Role != auth.RoleStudent || res.EntityID != "stu-1" {
			t.Fatalf("unexpected result: %+v", res)
		}
		claims, err := auth.Parse(res.Token.AccessToken, "test-key", "esas-test")
		if err != nil {
			t.Fatalf("parse token: %v", err)
		}
		if claims.EntityID != "stu-1" || claims.Role != auth.RoleStudent || claims.AccountID == "" {
			t.Fatalf("unexpected claims: %+v", claims)
		}
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	cases := []struct{ login, password string }{
		{"ada", "wrong"},
		{"nobody", "s3cret"},
		{"", "s3cret"},
		{"ada", ""},
	}
	for _, c := range cases {
		if _, err := svc.Login(context.Background(), c.login, c.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("login(%q, %q): expected ErrInvalidCredentials, got %v", c.login, c.password, err)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "ada", "", "pw", auth.RoleStudent, "stu-2"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := svc.Register(ctx, "bob", "", "pw", "janitor", "x"); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount for unknown role, got %v", err)
	}
	if _, err := svc.Register(ctx, "bob", "", "pw", auth.RoleLecturer, ""); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount for missing entity, got %v", err)
	}
	a, err := svc.Register(ctx, "bob", "", "pw", auth.RoleLecturer, "lec-1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if a.PasswordHash == "pw" || !CheckPassword(a.PasswordHash, "pw") {
		t.Fatalf("password not hashed")
	}
}
