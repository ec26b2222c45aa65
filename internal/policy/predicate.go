package policy

import (
	"fmt"
	"strings"
)

// Predicate is a row filter compiled into storage queries. The Postgres
// layer renders it as a SQL fragment ANDed into the WHERE clause; the
// in-memory layer evaluates Match against row field values. Both paths
// enforce denial by producing an empty result set.
type Predicate struct {
	all     bool
	none    bool
	actorID string
	columns []string
}

// AllowAll matches every row (system path only).
func AllowAll() Predicate { return Predicate{all: true} }

// MatchNone matches no rows.
func MatchNone() Predicate { return Predicate{none: true} }

func matchOwnership(actorID string, columns []string) Predicate {
	return Predicate{actorID: actorID, columns: columns}
}

// IsAll reports whether the predicate matches unconditionally.
func (p Predicate) IsAll() bool { return p.all }

// SQL renders the predicate as a parameterized fragment. Placeholders are
// numbered starting at argIndex. AllowAll renders TRUE, MatchNone FALSE, so
// callers can always AND the fragment in.
func (p Predicate) SQL(argIndex int) (string, []any) {
	if p.all {
		return "true", nil
	}
	if p.none || len(p.columns) == 0 {
		return "false", nil
	}
	parts := make([]string, 0, len(p.columns))
	args := make([]any, 0, len(p.columns))
	for i, col := range p.columns {
		parts = append(parts, fmt.Sprintf("%s = $%d", col, argIndex+i))
		args = append(args, p.actorID)
	}
	return "(" + strings.Join(parts, " or ") + ")", args
}

// Match evaluates the predicate against a row, reading ownership column
// values through get.
func (p Predicate) Match(get func(column string) string) bool {
	if p.all {
		return true
	}
	if p.none {
		return false
	}
	for _, col := range p.columns {
		if get(col) == p.actorID {
			return true
		}
	}
	return false
}
