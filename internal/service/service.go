// Package service owns creation, validation, and mutation of the
// entity tree and the dependency edge set.
//
// It is the single mutation gateway: every mutating operation runs in
// one storage transaction, re-validates the invariants it depends on
// (parent existence, rank fit, reachability) inside that transaction,
// and commits or rolls back as a unit. Concurrent writers are
// serialized at the storage boundary; a caller-supplied timeout bounds
// every operation.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tarka-io/tarka/internal/entity"
	"github.com/tarka-io/tarka/internal/storage"
)

// Service orchestrates the hierarchy and dependency graph.
type Service struct {
	store   storage.Storage
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// New creates a Service. timeout bounds each storage-backed operation;
// zero disables the deadline.
func New(store storage.Storage, log *zap.Logger, timeout time.Duration) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   store,
		log:     log,
		timeout: timeout,
		// Second precision keeps timestamps stable through the
		// RFC3339 frontmatter round trip.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// CreateParams holds the input for creating a new entity.
type CreateParams struct {
	Kind        entity.Kind  `json:"kind"`
	ParentID    string       `json:"parent_id,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Meta        *entity.Meta `json:"metadata,omitempty"`
}

// UpdateParams holds partial update fields for an entity. Nil fields
// are left unchanged; a non-nil Meta replaces the whole metadata map.
type UpdateParams struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Status      *entity.Status `json:"status,omitempty"`
	Meta        *entity.Meta   `json:"metadata,omitempty"`
}

// DeleteResult reports what a cascade delete removed.
type DeleteResult struct {
	EntitiesDeleted     int `json:"entities_deleted"`
	DependenciesDeleted int `json:"dependencies_deleted"`
}

// ─── Transaction plumbing ────────────────────────────────────────────────────

// withTx runs fn inside a scoped transaction with the operation
// timeout applied, committing on success and rolling back on any
// error. Deadline hits are surfaced as TimeoutError: the transaction
// is aborted and no partial mutation remains.
func (s *Service) withTx(ctx context.Context, op string, fn func(ctx context.Context, tx storage.Tx) error) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return s.classify(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, tx); err != nil {
		return s.classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return s.classify(op, err)
	}
	return nil
}

func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// classify maps infrastructure failures onto the error taxonomy.
func (s *Service) classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("operation timed out", zap.String("op", op))
		return &entity.TimeoutError{Op: op}
	}
	return err
}

// ─── Hierarchy mutations ─────────────────────────────────────────────────────

// Create validates and persists a new entity under the given parent.
// The identifier and the initial Draft status are assigned here —
// entities are never created directly.
func (s *Service) Create(ctx context.Context, p CreateParams) (*entity.Entity, error) {
	meta := p.Meta
	if meta == nil {
		meta = entity.NewMeta()
	}

	now := s.now()
	e := &entity.Entity{
		ID:          uuid.NewString(),
		Kind:        p.Kind,
		ParentID:    p.ParentID,
		Title:       p.Title,
		Description: p.Description,
		Status:      entity.StatusDraft,
		Meta:        meta,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	err := s.withTx(ctx, "create", func(ctx context.Context, tx storage.Tx) error {
		if e.ParentID != "" {
			if err := checkParentRank(ctx, tx, e.Kind, e.ParentID); err != nil {
				return err
			}
		}
		return tx.CreateEntity(ctx, e)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("entity created",
		zap.String("id", e.ID),
		zap.String("kind", string(e.Kind)),
		zap.String("parent", e.ParentID))
	return e, nil
}

// Update applies partial changes to an entity, re-validating the full
// record before commit. Status changes are checked against the
// transition table; illegal transitions are rejected, not coerced.
func (s *Service) Update(ctx context.Context, id string, p UpdateParams) (*entity.Entity, error) {
	var updated *entity.Entity
	err := s.withTx(ctx, "update", func(ctx context.Context, tx storage.Tx) error {
		e, err := tx.GetEntity(ctx, id)
		if err != nil {
			return err
		}

		if p.Title != nil {
			e.Title = *p.Title
		}
		if p.Description != nil {
			e.Description = *p.Description
		}
		if p.Meta != nil {
			e.Meta = p.Meta
		}
		if p.Status != nil && *p.Status != e.Status {
			if err := entity.ValidateTransition(e.Status, *p.Status); err != nil {
				return err
			}
			e.Status = *p.Status
		}
		e.UpdatedAt = s.now()

		if err := e.Validate(); err != nil {
			return err
		}
		if err := tx.UpdateEntity(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Move re-parents a subtree. Rejected when the new parent's rank does
// not fit, or when the new parent is the entity itself or one of its
// descendants (which would cut the subtree loose from the root).
func (s *Service) Move(ctx context.Context, id, newParentID string) (*entity.Entity, error) {
	var moved *entity.Entity
	err := s.withTx(ctx, "move", func(ctx context.Context, tx storage.Tx) error {
		e, err := tx.GetEntity(ctx, id)
		if err != nil {
			return err
		}

		verr := &entity.ValidationError{}
		if e.Kind.Rank() == 0 {
			verr.Addf("parent_id", "%s is top-level and cannot be moved under a parent", e.Kind)
			return verr.OrNil()
		}
		if newParentID == id {
			verr.Addf("parent_id", "entity cannot be its own parent")
			return verr.OrNil()
		}

		if err := checkParentRank(ctx, tx, e.Kind, newParentID); err != nil {
			return err
		}

		// The new parent's ancestor chain must not pass through the
		// entity being moved, or the subtree would detach into a cycle.
		ancestorID := newParentID
		seen := map[string]bool{}
		for ancestorID != "" && !seen[ancestorID] {
			if ancestorID == id {
				verr.Addf("parent_id", "cannot move %q under its own descendant %q", id, newParentID)
				return verr.OrNil()
			}
			seen[ancestorID] = true
			ancestor, err := tx.GetEntity(ctx, ancestorID)
			if err != nil {
				return err
			}
			ancestorID = ancestor.ParentID
		}

		e.ParentID = newParentID
		e.UpdatedAt = s.now()
		if err := tx.UpdateEntity(ctx, e); err != nil {
			return err
		}
		moved = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("entity moved", zap.String("id", id), zap.String("new_parent", newParentID))
	return moved, nil
}

// Delete removes an entity. With cascade=false it fails with
// ConflictError when children or incident dependency edges exist; with
// cascade=true it removes the whole subtree and every incident edge in
// one transaction.
func (s *Service) Delete(ctx context.Context, id string, cascade bool) (*DeleteResult, error) {
	res := &DeleteResult{}
	err := s.withTx(ctx, "delete", func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetEntity(ctx, id); err != nil {
			return err
		}

		children, err := tx.CountChildren(ctx, id)
		if err != nil {
			return err
		}
		edges, err := tx.CountIncidentDependencies(ctx, id)
		if err != nil {
			return err
		}
		if !cascade && (children > 0 || edges > 0) {
			return &entity.ConflictError{
				ID: id,
				Reason: fmt.Sprintf(
					"entity has %d children and %d dependency edges; pass cascade=true to delete the subtree",
					children, edges),
			}
		}

		// Collect the subtree breadth-first, then delete leaf-first so
		// parent references never dangle mid-transaction.
		order := []string{id}
		for i := 0; i < len(order); i++ {
			kids, err := tx.ListChildren(ctx, order[i])
			if err != nil {
				return err
			}
			for _, kid := range kids {
				order = append(order, kid.ID)
			}
		}

		for _, nodeID := range order {
			n, err := tx.CountIncidentDependencies(ctx, nodeID)
			if err != nil {
				return err
			}
			res.DependenciesDeleted += n
			if err := tx.DeleteIncidentDependencies(ctx, nodeID); err != nil {
				return err
			}
		}
		for i := len(order) - 1; i >= 0; i-- {
			if err := tx.DeleteEntity(ctx, order[i]); err != nil {
				return err
			}
		}
		res.EntitiesDeleted = len(order)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("entity deleted",
		zap.String("id", id),
		zap.Bool("cascade", cascade),
		zap.Int("entities", res.EntitiesDeleted),
		zap.Int("dependencies", res.DependenciesDeleted))
	return res, nil
}

// checkParentRank verifies the parent exists and sits exactly one rank
// above kind.
func checkParentRank(ctx context.Context, r storage.Reader, kind entity.Kind, parentID string) error {
	parent, err := r.GetEntity(ctx, parentID)
	if err != nil {
		return err
	}
	want, ok := entity.ParentKind(kind)
	if !ok {
		verr := &entity.ValidationError{}
		verr.Addf("parent_id", "%s is top-level and must not have a parent", kind)
		return verr.OrNil()
	}
	if parent.Kind != want {
		verr := &entity.ValidationError{}
		verr.Addf("parent_id", "%s cannot be a child of %s %q: parent must be a %s",
			kind, parent.Kind, parent.Title, want)
		return verr.OrNil()
	}
	return nil
}

// ─── Dependency mutations ────────────────────────────────────────────────────

// AddDependency creates a typed edge between two entities. Self-loops,
// duplicate identical edges, and edges that would close a cycle in the
// blocking graph are rejected; the graph is left unchanged on failure.
func (s *Service) AddDependency(ctx context.Context, sourceID, targetID string, typ entity.DepType, note string) (*entity.Dependency, error) {
	d := &entity.Dependency{
		ID:        uuid.NewString(),
		SourceID:  sourceID,
		TargetID:  targetID,
		Type:      typ,
		Note:      note,
		CreatedAt: s.now(),
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	err := s.withTx(ctx, "add_dependency", func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetEntity(ctx, sourceID); err != nil {
			return err
		}
		if _, err := tx.GetEntity(ctx, targetID); err != nil {
			return err
		}

		if _, err := tx.FindDependency(ctx, sourceID, targetID, typ); err == nil {
			verr := &entity.ValidationError{}
			verr.Addf("type", "identical %s edge %q → %q already exists", typ, sourceID, targetID)
			return verr.OrNil()
		} else if !entity.IsNotFound(err) {
			return err
		}

		if typ.Blocking() {
			// Normalize to the blocks direction: a blocked-by edge
			// source→target means target blocks source.
			u, v := sourceID, targetID
			if typ == entity.DepBlockedBy {
				u, v = targetID, sourceID
			}
			reachable, err := reaches(ctx, tx, v, u)
			if err != nil {
				return err
			}
			if reachable {
				verr := &entity.ValidationError{}
				verr.Addf("target_id", "adding %s edge %q → %q would create a dependency cycle", typ, sourceID, targetID)
				return verr.OrNil()
			}
		}

		return tx.CreateDependency(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("dependency created",
		zap.String("id", d.ID),
		zap.String("source", sourceID),
		zap.String("target", targetID),
		zap.String("type", string(typ)))
	return d, nil
}

// RemoveDependency deletes an edge by id.
func (s *Service) RemoveDependency(ctx context.Context, edgeID string) error {
	return s.withTx(ctx, "remove_dependency", func(ctx context.Context, tx storage.Tx) error {
		return tx.DeleteDependency(ctx, edgeID)
	})
}

// reaches reports whether goal is reachable from start by following
// normalized blocks edges. Bounded breadth-first search — the graph is
// acyclic by invariant, so the frontier always terminates.
func reaches(ctx context.Context, r storage.Reader, start, goal string) (bool, error) {
	if start == goal {
		return true, nil
	}
	visited := map[string]bool{start: true}
	frontier := []string{start}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]

		next, err := blockSuccessors(ctx, r, id)
		if err != nil {
			return false, err
		}
		for _, n := range next {
			if n == goal {
				return true, nil
			}
			if !visited[n] {
				visited[n] = true
				frontier = append(frontier, n)
			}
		}
	}
	return false, nil
}

// blockSuccessors returns the ids directly blocked by id, merging both
// edge spellings: outgoing blocks edges and incoming blocked-by edges.
func blockSuccessors(ctx context.Context, r storage.Reader, id string) ([]string, error) {
	var out []string
	from, err := r.ListDependenciesFrom(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, d := range from {
		if d.Type == entity.DepBlocks {
			out = append(out, d.TargetID)
		}
	}
	to, err := r.ListDependenciesTo(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, d := range to {
		if d.Type == entity.DepBlockedBy {
			out = append(out, d.SourceID)
		}
	}
	return out, nil
}

// blockPredecessors returns the ids directly blocking id.
func blockPredecessors(ctx context.Context, r storage.Reader, id string) ([]string, error) {
	var out []string
	to, err := r.ListDependenciesTo(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, d := range to {
		if d.Type == entity.DepBlocks {
			out = append(out, d.SourceID)
		}
	}
	from, err := r.ListDependenciesFrom(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, d := range from {
		if d.Type == entity.DepBlockedBy {
			out = append(out, d.TargetID)
		}
	}
	return out, nil
}
