package policy

import (
	"context"
	"fmt"
	"strings"

	"rentfold.io/internal/audit"
	"rentfold.io/internal/identity"
	"rentfold.io/internal/obs"
)

// Operation is the access being evaluated.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Denial reason codes, logged with every denial.
const (
	ReasonNoActor        = "no_actor"
	ReasonUnknownTable   = "unknown_table"
	ReasonElevatedOnly   = "elevated_only"
	ReasonRoleForbidden  = "role_forbidden"
	ReasonNotOwner       = "not_owner"
	ReasonOwnershipSpoof = "ownership_spoof"
)

// TableSpec declares the ownership model of one authorization-relevant
// table. A row is visible to an actor when any registered ownership column
// equals the actor's id; an actor writes through the column matching their
// role (owners through OwnerColumn, tenants through TenantColumn).
type TableSpec struct {
	Name         string
	OwnerColumn  string
	TenantColumn string
	// WriteRole restricts create/update/delete to one role. Empty means
	// either party may write rows they own.
	WriteRole identity.Role
	// Elevated tables are writable only through the elevated-access
	// gateway; the engine denies every actor-scoped write on them.
	Elevated bool
}

func (t TableSpec) ownershipColumns() []string {
	var cols []string
	if t.OwnerColumn != "" {
		cols = append(cols, t.OwnerColumn)
	}
	if t.TenantColumn != "" {
		cols = append(cols, t.TenantColumn)
	}
	return cols
}

// columnForRole maps the actor's role to the ownership column it controls.
func (t TableSpec) columnForRole(role identity.Role) string {
	switch role {
	case identity.RoleOwner:
		return t.OwnerColumn
	case identity.RoleTenant:
		return t.TenantColumn
	default:
		return ""
	}
}

// Decision is the typed outcome of an authorization check. Denial is a
// result, not an error: callers turn it into an authorization response.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the affirmative decision.
var Allow = Decision{Allowed: true}

// Deny constructs a denial with a reason code.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Engine evaluates per-table, per-operation access for resolved actors. It
// never trusts client-supplied identity; the actor comes from the verified
// credential in the request context.
type Engine struct {
	tables map[string]TableSpec
}

// NewEngine builds an engine over the given table specs.
func NewEngine(tables ...TableSpec) (*Engine, error) {
	e := &Engine{tables: make(map[string]TableSpec, len(tables))}
	for _, t := range tables {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("policy: table name is required")
		}
		if !t.Elevated && t.OwnerColumn == "" && t.TenantColumn == "" {
			return nil, fmt.Errorf("policy: table %s has no ownership column", name)
		}
		if _, ok := e.tables[name]; ok {
			return nil, fmt.Errorf("policy: duplicate table %s", name)
		}
		e.tables[name] = t
	}
	return e, nil
}

// ReadPredicate produces the row filter the storage layer must AND into its
// query. Denial is enforced by the query returning zero rows, never by
// post-filtering, so an actor cannot distinguish forbidden from not-found.
func (e *Engine) ReadPredicate(ctx context.Context, actor identity.Actor, table string) (Predicate, Decision) {
	spec, ok := e.tables[table]
	if !ok {
		return MatchNone(), e.deny(ctx, actor, table, OpRead, ReasonUnknownTable)
	}
	if actor.ID == "" {
		return MatchNone(), e.deny(ctx, actor, table, OpRead, ReasonNoActor)
	}
	if actor.IsSystem() {
		return AllowAll(), Allow
	}
	cols := spec.ownershipColumns()
	if len(cols) == 0 {
		// Elevated table without ownership columns: actor-scoped reads
		// see nothing.
		return MatchNone(), Allow
	}
	return matchOwnership(actor.ID, cols), Allow
}

// AuthorizeWrite evaluates a mutation. current carries the ownership column
// values the row holds before the write (nil for creates); payload carries
// the ownership values the write attempts to set. Any attempt to set the
// actor's ownership column to a value other than their own id is rejected
// as spoofing; a current row the actor does not own denies as not_owner,
// which callers surface exactly like a missing row.
func (e *Engine) AuthorizeWrite(ctx context.Context, actor identity.Actor, table string, op Operation, current, payload map[string]string) Decision {
	spec, ok := e.tables[table]
	if !ok {
		return e.deny(ctx, actor, table, op, ReasonUnknownTable)
	}
	if spec.Elevated {
		// Structural separation: elevated tables are not reachable
		// through this engine for any actor, system included.
		return e.deny(ctx, actor, table, op, ReasonElevatedOnly)
	}
	if actor.ID == "" {
		return e.deny(ctx, actor, table, op, ReasonNoActor)
	}
	if actor.IsSystem() {
		return Allow
	}
	if spec.WriteRole != "" && actor.Role != spec.WriteRole {
		return e.deny(ctx, actor, table, op, ReasonRoleForbidden)
	}
	col := spec.columnForRole(actor.Role)
	if col == "" {
		return e.deny(ctx, actor, table, op, ReasonRoleForbidden)
	}

	if val, present := payload[col]; present && val != actor.ID {
		return e.deny(ctx, actor, table, op, ReasonOwnershipSpoof)
	}
	switch op {
	case OpCreate:
		if payload[col] != actor.ID {
			// Creates must claim the row explicitly.
			return e.deny(ctx, actor, table, op, ReasonNotOwner)
		}
	case OpUpdate, OpDelete:
		if current[col] != actor.ID {
			return e.deny(ctx, actor, table, op, ReasonNotOwner)
		}
	default:
		return e.deny(ctx, actor, table, op, ReasonRoleForbidden)
	}
	return Allow
}

func (e *Engine) deny(ctx context.Context, actor identity.Actor, table string, op Operation, reason string) Decision {
	obs.CountAuthzDenial(table, reason)
	_ = audit.LogEvent(ctx, "authz.denied", map[string]any{
		"actor_id":  actor.ID,
		"table":     table,
		"operation": string(op),
		"reason":    reason,
	})
	return Deny(reason)
}
