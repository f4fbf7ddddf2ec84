package account

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// Repository reads and writes user_accounts in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByLogin(ctx context.Context, login string) (Account, error) {
	var a Account
	var email sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, role, entity_id
		FROM user_accounts
		WHERE lower(username) = $1 OR lower(email) = $1
		LIMIT 1
	`, normalizeLogin(login)).Scan(&a.ID, &a.Username, &email, &a.PasswordHash, &a.Role, &a.EntityID)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	a.Email = email.String
	return a, nil
}

func (r *Repository) Create(ctx context.Context, a Account) (Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	var email any
	if a.Email != "" {
		email = a.Email
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_accounts (id, username, email, password_hash, role, entity_id)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, a.ID, a.Username, email, a.PasswordHash, a.Role, a.EntityID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Account{}, ErrUsernameTaken
		}
		return Account{}, err
	}
	return a, nil
}

var _ Store = (*Repository)(nil)
