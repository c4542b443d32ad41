package entity

import (
	"fmt"
	"strings"
)

// --- Status enum ---

// Status is the lifecycle status of an entity.
type Status string

const (
	StatusDraft      Status = "Draft"
	StatusProposed   Status = "Proposed"
	StatusApproved   Status = "Approved"
	StatusInProgress Status = "InProgress"
	StatusDone       Status = "Done"
	StatusDeprecated Status = "Deprecated"
)

// Statuses lists all lifecycle statuses in forward-path order.
var Statuses = []Status{
	StatusDraft,
	StatusProposed,
	StatusApproved,
	StatusInProgress,
	StatusDone,
	StatusDeprecated,
}

// Valid reports whether s is a recognized status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// ParseStatus converts a string to a Status, matching
// case-insensitively so hand-edited documents still decode.
func ParseStatus(v string) (Status, error) {
	for _, s := range Statuses {
		if strings.EqualFold(string(s), v) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", v)
}

// --- State machine ---

// transitions is the explicit adjacency table of legal status
// transitions. The forward path is Draft → Proposed → Approved →
// InProgress → Done; Deprecated is terminal and reachable from any
// state. Approved → Draft is the one rollback edge (rejection/rework).
// The table is declared rather than inferred from enum ordering
// because the rollback edge makes the graph a non-total order.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusProposed, StatusDeprecated},
	StatusProposed:   {StatusApproved, StatusDeprecated},
	StatusApproved:   {StatusInProgress, StatusDraft, StatusDeprecated},
	StatusInProgress: {StatusDone, StatusDeprecated},
	StatusDone:       {StatusDeprecated},
	StatusDeprecated: {},
}

// AllowedTransitions returns the statuses reachable from s in one
// step, excluding the no-op, in declared order.
func AllowedTransitions(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from → to is a legal transition.
// Setting the same status again is always a legal no-op.
func CanTransition(from, to Status) bool {
	if from == to {
		return from.Valid()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks from → to against the adjacency table and
// returns a *ValidationError naming the allowed next states on
// failure. Illegal transitions are rejected, never coerced.
func ValidateTransition(from, to Status) error {
	verr := &ValidationError{}
	if !from.Valid() {
		verr.Addf("status", "unknown status %q", from)
	}
	if !to.Valid() {
		verr.Addf("status", "unknown status %q", to)
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	if CanTransition(from, to) {
		return nil
	}

	allowed := transitions[from]
	if len(allowed) == 0 {
		verr.Addf("status",
			"%s is terminal: create a successor entity instead of reviving this one", from)
		return verr.OrNil()
	}

	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	verr.Addf("status", "illegal transition %s → %s: from %s you can only move to %s",
		from, to, from, strings.Join(names, ", "))
	return verr.OrNil()
}
