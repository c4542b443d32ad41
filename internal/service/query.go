package service

import (
	"context"
	"fmt"

	"github.com/tarka-io/tarka/internal/entity"
	"github.com/tarka-io/tarka/internal/storage"
)

// Direction selects which side of the blocking graph a closure walks.
type Direction string

const (
	// DirectionBlocks walks downstream: the entities this one blocks,
	// transitively.
	DirectionBlocks Direction = "blocks"
	// DirectionBlockedBy walks upstream: the entities blocking this
	// one, transitively.
	DirectionBlockedBy Direction = "blocked-by"
)

// HierarchyViolation describes an entity whose parent link breaks the
// rank rules. Produced by Doctor; a healthy graph yields none.
type HierarchyViolation struct {
	EntityID string      `json:"entity_id"`
	Kind     entity.Kind `json:"kind"`
	ParentID string      `json:"parent_id,omitempty"`
	Problem  string      `json:"problem"`
}

// withReadTx runs fn inside a read transaction so every traversal in
// fn observes one consistent snapshot of the graph, never a
// half-applied mutation.
func (s *Service) withReadTx(ctx context.Context, op string, fn func(ctx context.Context, tx storage.Tx) error) error {
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
	return nil
}

// Get returns a single entity by id.
func (s *Service) Get(ctx context.Context, id string) (*entity.Entity, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	e, err := s.store.GetEntity(ctx, id)
	if err != nil {
		return nil, s.classify("get", err)
	}
	return e, nil
}

// GetDependency returns a single dependency edge by id.
func (s *Service) GetDependency(ctx context.Context, id string) (*entity.Dependency, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	d, err := s.store.GetDependency(ctx, id)
	if err != nil {
		return nil, s.classify("get_dependency", err)
	}
	return d, nil
}

// AncestryPath returns the chain from the root down to the entity,
// root first, entity last.
func (s *Service) AncestryPath(ctx context.Context, id string) ([]*entity.Entity, error) {
	var path []*entity.Entity
	err := s.withReadTx(ctx, "ancestry", func(ctx context.Context, tx storage.Tx) error {
		cur, err := tx.GetEntity(ctx, id)
		if err != nil {
			return err
		}
		seen := map[string]bool{}
		for {
			path = append(path, cur)
			if cur.ParentID == "" || seen[cur.ID] {
				break
			}
			seen[cur.ID] = true
			cur, err = tx.GetEntity(ctx, cur.ParentID)
			if err != nil {
				return err
			}
		}
		// Walked child → root; callers expect root → child.
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return path, nil
}

// Subtree returns the entity and all its descendants. Traversal order
// is breadth-first but carries no contract — treat the result as a set.
func (s *Service) Subtree(ctx context.Context, id string) ([]*entity.Entity, error) {
	var nodes []*entity.Entity
	err := s.withReadTx(ctx, "subtree", func(ctx context.Context, tx storage.Tx) error {
		root, err := tx.GetEntity(ctx, id)
		if err != nil {
			return err
		}
		nodes = append(nodes, root)
		for i := 0; i < len(nodes); i++ {
			kids, err := tx.ListChildren(ctx, nodes[i].ID)
			if err != nil {
				return err
			}
			nodes = append(nodes, kids...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// DependencyClosure returns the transitive closure of blocking edges
// from the entity in the given direction. The acyclicity invariant
// guarantees termination; the entity itself is not included.
func (s *Service) DependencyClosure(ctx context.Context, id string, dir Direction) ([]*entity.Entity, error) {
	if dir != DirectionBlocks && dir != DirectionBlockedBy {
		verr := &entity.ValidationError{}
		verr.Addf("direction", "unknown direction %q: must be %q or %q", dir, DirectionBlocks, DirectionBlockedBy)
		return nil, verr.OrNil()
	}

	var closure []*entity.Entity
	err := s.withReadTx(ctx, "dependency_closure", func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetEntity(ctx, id); err != nil {
			return err
		}
		ids, err := closureIDs(ctx, tx, id, dir)
		if err != nil {
			return err
		}
		for _, nodeID := range ids {
			e, err := tx.GetEntity(ctx, nodeID)
			if err != nil {
				return err
			}
			closure = append(closure, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closure, nil
}

// ImpactOf returns the change blast-radius of an entity: the union of
// its ancestor chain and the downstream closure of entities it blocks.
// The entity itself is not included. Upstream blockers are excluded as
// well: the work this entity waits on is unaffected by changing it.
func (s *Service) ImpactOf(ctx context.Context, id string) ([]*entity.Entity, error) {
	var impact []*entity.Entity
	err := s.withReadTx(ctx, "impact", func(ctx context.Context, tx storage.Tx) error {
		cur, err := tx.GetEntity(ctx, id)
		if err != nil {
			return err
		}

		seen := map[string]bool{id: true}
		for cur.ParentID != "" && !seen[cur.ParentID] {
			parent, err := tx.GetEntity(ctx, cur.ParentID)
			if err != nil {
				return err
			}
			seen[parent.ID] = true
			impact = append(impact, parent)
			cur = parent
		}

		ids, err := closureIDs(ctx, tx, id, DirectionBlocks)
		if err != nil {
			return err
		}
		for _, nodeID := range ids {
			if seen[nodeID] {
				continue
			}
			seen[nodeID] = true
			e, err := tx.GetEntity(ctx, nodeID)
			if err != nil {
				return err
			}
			impact = append(impact, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return impact, nil
}

// Doctor scans the whole graph for entities whose parent link violates
// the rank rules: a missing parent, a parent of the wrong rank, or a
// top-level entity with a parent.
func (s *Service) Doctor(ctx context.Context) ([]HierarchyViolation, error) {
	var violations []HierarchyViolation
	err := s.withReadTx(ctx, "doctor", func(ctx context.Context, tx storage.Tx) error {
		all, err := tx.ListEntities(ctx)
		if err != nil {
			return err
		}
		byID := make(map[string]*entity.Entity, len(all))
		for _, e := range all {
			byID[e.ID] = e
		}

		for _, e := range all {
			want, hasParent := entity.ParentKind(e.Kind)
			switch {
			case !hasParent && e.ParentID != "":
				violations = append(violations, HierarchyViolation{
					EntityID: e.ID, Kind: e.Kind, ParentID: e.ParentID,
					Problem: fmt.Sprintf("%s is top-level but has a parent", e.Kind),
				})
			case hasParent && e.ParentID == "":
				violations = append(violations, HierarchyViolation{
					EntityID: e.ID, Kind: e.Kind,
					Problem: fmt.Sprintf("%s has no parent; expected a %s", e.Kind, want),
				})
			case hasParent:
				parent, ok := byID[e.ParentID]
				if !ok {
					violations = append(violations, HierarchyViolation{
						EntityID: e.ID, Kind: e.Kind, ParentID: e.ParentID,
						Problem: "parent does not exist",
					})
				} else if parent.Kind != want {
					violations = append(violations, HierarchyViolation{
						EntityID: e.ID, Kind: e.Kind, ParentID: e.ParentID,
						Problem: fmt.Sprintf("parent is a %s; expected a %s", parent.Kind, want),
					})
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return violations, nil
}

// closureIDs walks the blocking graph breadth-first from id in the
// given direction and returns the visited ids in discovery order.
func closureIDs(ctx context.Context, r storage.Reader, id string, dir Direction) ([]string, error) {
	visited := map[string]bool{id: true}
	var order []string
	frontier := []string{id}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]

		var next []string
		var err error
		if dir == DirectionBlocks {
			next, err = blockSuccessors(ctx, r, cur)
		} else {
			next, err = blockPredecessors(ctx, r, cur)
		}
		if err != nil {
			return nil, err
		}
		for _, n := range next {
			if visited[n] {
				continue
			}
			visited[n] = true
			order = append(order, n)
			frontier = append(frontier, n)
		}
	}
	return order, nil
}
