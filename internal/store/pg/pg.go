package pg

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store holds the actor-scoped database handle. Its connection role has no
// grants on the billing tables; those live behind Elevated.
type Store struct {
	db *sql.DB
}

// Open connects with the actor-scoped credential.
func Open(dsn string) (*Store, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Accounts returns the identity account store bound to this handle.
func (s *Store) Accounts() *Accounts { return &Accounts{db: s.db} }

// RefreshTokens returns the refresh token store bound to this handle.
func (s *Store) RefreshTokens() *RefreshTokens { return &RefreshTokens{db: s.db} }

// Rentals returns the rental store bound to this handle.
func (s *Store) Rentals() *Rentals { return &Rentals{db: s.db} }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
