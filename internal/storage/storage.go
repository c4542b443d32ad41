// Package storage defines the persistence contract for the hierarchy
// and dependency graph.
//
// The service layer is the single mutation gateway; it opens a
// transaction per operation, re-validates the affected invariants
// inside it, and commits or rolls back as a unit. The Reader methods
// are available both on Storage (auto-commit reads) and inside a Tx
// (snapshot-consistent reads), so invariant checks and queries run
// against one coherent view of the graph.
package storage

import (
	"context"

	"github.com/tarka-io/tarka/internal/entity"
)

// Reader is the read side of the store. Implementations must return
// *entity.NotFoundError when an identifier does not resolve.
type Reader interface {
	GetEntity(ctx context.Context, id string) (*entity.Entity, error)
	ListEntities(ctx context.Context) ([]*entity.Entity, error)
	ListChildren(ctx context.Context, parentID string) ([]*entity.Entity, error)
	CountChildren(ctx context.Context, id string) (int, error)

	GetDependency(ctx context.Context, id string) (*entity.Dependency, error)
	FindDependency(ctx context.Context, sourceID, targetID string, typ entity.DepType) (*entity.Dependency, error)
	ListDependenciesFrom(ctx context.Context, sourceID string) ([]*entity.Dependency, error)
	ListDependenciesTo(ctx context.Context, targetID string) ([]*entity.Dependency, error)
	CountIncidentDependencies(ctx context.Context, id string) (int, error)
}

// Writer is the write side of the store. Write methods are only
// reachable through a transaction.
type Writer interface {
	CreateEntity(ctx context.Context, e *entity.Entity) error
	UpdateEntity(ctx context.Context, e *entity.Entity) error
	DeleteEntity(ctx context.Context, id string) error

	CreateDependency(ctx context.Context, d *entity.Dependency) error
	DeleteDependency(ctx context.Context, id string) error
	DeleteIncidentDependencies(ctx context.Context, id string) error
}

// Tx is a scoped transaction. Reads inside a Tx observe either the
// pre- or post-state of other transactions, never an intermediate one.
type Tx interface {
	Reader
	Writer
	Commit() error
	Rollback() error
}

// Storage is the persistence boundary. Implementations must be safe
// for concurrent use.
type Storage interface {
	Reader
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}
