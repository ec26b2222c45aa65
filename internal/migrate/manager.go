// Package migrate runs the schema migrations and seed scripts that ship in
// the repository's migrations/ directory: versioned DDL under sql/ as
// <name>.up.sql / <name>.down.sql pairs, and idempotent grant and fixture
// scripts under seeds/. The seeds are where the elevated billing role gets
// its grants, so a fresh database is not isolation-safe until both Up and
// Seed have run.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"

	defaultMigrationsTable = "rentfold_migrations"
	defaultSeedsTable      = "rentfold_seeds"
)

// Manager applies the scripts under one migrations root.
type Manager struct {
	db             *sql.DB
	root           string
	migrationTable string
	seedTable      string
}

// Option configures a Manager.
type Option func(*Manager)

// WithMigrationTable overrides the migrations bookkeeping table.
func WithMigrationTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.migrationTable = name
		}
	}
}

// WithSeedTable overrides the seeds bookkeeping table.
func WithSeedTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.seedTable = name
		}
	}
}

// New builds a Manager over the migrations root, expecting the repository
// layout: root/sql for migrations, root/seeds for seed scripts.
func New(db *sql.DB, root string, opts ...Option) *Manager {
	m := &Manager{
		db:             db,
		root:           root,
		migrationTable: defaultMigrationsTable,
		seedTable:      defaultSeedsTable,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies every pending migration in lexical order.
func (m *Manager) Up(ctx context.Context) error {
	if err := m.ensureBookkeeping(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx, m.migrationTable)
	if err != nil {
		return err
	}
	names, err := listScripts(filepath.Join(m.root, "sql"), upSuffix)
	if err != nil {
		return err
	}
	for _, name := range names {
		if applied[name] {
			continue
		}
		if err := m.runScript(ctx, filepath.Join(m.root, "sql", name)); err != nil {
			return fmt.Errorf("migrate up %s: %w", name, err)
		}
		if err := m.record(ctx, m.migrationTable, name); err != nil {
			return err
		}
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (m *Manager) Down(ctx context.Context) error {
	history, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return errors.New("migrate: nothing applied")
	}
	last := history[len(history)-1]
	down := strings.TrimSuffix(last, upSuffix) + downSuffix
	path := filepath.Join(m.root, "sql", down)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("migrate: no down script for %s", last)
	}
	if err := m.runScript(ctx, path); err != nil {
		return fmt.Errorf("migrate down %s: %w", down, err)
	}
	_, err = m.db.ExecContext(ctx,
		fmt.Sprintf(`delete from %s where name = $1`, m.migrationTable), last)
	return err
}

// Seed runs pending seed scripts. Each runs once; the grants inside are
// written to be re-runnable anyway.
func (m *Manager) Seed(ctx context.Context) error {
	if err := m.ensureBookkeeping(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx, m.seedTable)
	if err != nil {
		return err
	}
	names, err := listScripts(filepath.Join(m.root, "seeds"), ".sql")
	if err != nil {
		return err
	}
	for _, name := range names {
		if applied[name] {
			continue
		}
		if err := m.runScript(ctx, filepath.Join(m.root, "seeds", name)); err != nil {
			return fmt.Errorf("migrate seed %s: %w", name, err)
		}
		if err := m.record(ctx, m.seedTable, name); err != nil {
			return err
		}
	}
	return nil
}

// Status lists applied migrations in application order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureBookkeeping(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx,
		fmt.Sprintf(`select name from %s order by applied_at asc, name asc`, m.migrationTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		history = append(history, name)
	}
	return history, rows.Err()
}

func (m *Manager) ensureBookkeeping(ctx context.Context) error {
	for _, table := range []string{m.migrationTable, m.seedTable} {
		ddl := fmt.Sprintf(`
			create table if not exists %s (
				name       text primary key,
				applied_at timestamptz not null default now()
			)`, table)
		if _, err := m.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) applied(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seen := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		seen[name] = true
	}
	return seen, rows.Err()
}

func (m *Manager) record(ctx context.Context, table, name string) error {
	_, err := m.db.ExecContext(ctx,
		fmt.Sprintf(`insert into %s (name, applied_at) values ($1, $2)`, table),
		name, time.Now().UTC())
	return err
}

// runScript executes one SQL file in a single transaction.
func (m *Manager) runScript(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// listScripts returns lexically sorted file names with the given suffix.
// The migration directories are flat; a missing directory means no scripts.
func listScripts(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// splitStatements cuts a script on semicolons outside string literals.
// Good enough for the DDL this repository ships; no dollar quoting.
func splitStatements(script string) []string {
	var stmts []string
	var cur strings.Builder
	inString := false
	for _, r := range script {
		cur.WriteRune(r)
		switch r {
		case '\'':
			inString = !inString
		case ';':
			if !inString {
				if s := strings.TrimSpace(cur.String()); s != ";" && s != "" {
					stmts = append(stmts, s)
				}
				cur.Reset()
			}
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
