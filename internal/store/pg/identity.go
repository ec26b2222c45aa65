package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"rentfold.io/internal/identity"
	"rentfold.io/internal/ids"
)

// Accounts implements identity.AccountStore over Postgres.
type Accounts struct {
	db *sql.DB
}

var _ identity.AccountStore = (*Accounts)(nil)

func (s *Accounts) Create(ctx context.Context, a *identity.Account) error {
	if a.ID == "" {
		a.ID = ids.New()
	}
	a.Email = strings.TrimSpace(strings.ToLower(a.Email))

	row := s.db.QueryRowContext(ctx, `
		insert into accounts (id, email, password_hash, role, owned_entity_id, status)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at, updated_at
	`, a.ID, a.Email, a.PasswordHash, string(a.Role), nullable(a.OwnedEntityID), a.Status)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return identity.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Accounts) Find(ctx context.Context, id string) (*identity.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		select id, email, password_hash, role, coalesce(owned_entity_id, ''), status, created_at, updated_at
		from accounts where id = $1
	`, id))
}

func (s *Accounts) FindByEmail(ctx context.Context, email string) (*identity.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		select id, email, password_hash, role, coalesce(owned_entity_id, ''), status, created_at, updated_at
		from accounts where email = $1
	`, strings.TrimSpace(strings.ToLower(email))))
}

func (s *Accounts) scanAccount(row *sql.Row) (*identity.Account, error) {
	var a identity.Account
	var role string
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &role, &a.OwnedEntityID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Role = identity.Role(role)
	return &a, nil
}

// RefreshTokens implements identity.RefreshTokenStore over Postgres.
type RefreshTokens struct {
	db *sql.DB
}

var _ identity.RefreshTokenStore = (*RefreshTokens)(nil)

func (s *RefreshTokens) Create(ctx context.Context, tok *identity.RefreshToken) error {
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens (id, account_id, token_hash, expires_at, created_at, revoked)
		values ($1, $2, $3, $4, $5, $6)
	`, tok.ID, tok.AccountID, tok.TokenHash, tok.ExpiresAt, tok.CreatedAt, tok.Revoked)
	return err
}

func (s *RefreshTokens) Find(ctx context.Context, id string) (*identity.RefreshToken, error) {
	var tok identity.RefreshToken
	err := s.db.QueryRowContext(ctx, `
		select id, account_id, token_hash, expires_at, created_at, revoked
		from refresh_tokens where id = $1
	`, id).Scan(&tok.ID, &tok.AccountID, &tok.TokenHash, &tok.ExpiresAt, &tok.CreatedAt, &tok.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (s *RefreshTokens) MarkRevoked(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `update refresh_tokens set revoked = true where id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *RefreshTokens) MarkRevokedByAccount(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx, `update refresh_tokens set revoked = true where account_id = $1`, accountID)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
