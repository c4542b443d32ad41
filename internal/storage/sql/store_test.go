package sql

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarka-io/tarka/internal/entity"
	"github.com/tarka-io/tarka/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustCreate(t *testing.T, store *Store, e *entity.Entity) {
	t.Helper()
	ctx := context.Background()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateEntity(ctx, e))
	require.NoError(t, tx.Commit())
}

func mustLink(t *testing.T, store *Store, d *entity.Dependency) {
	t.Helper()
	ctx := context.Background()
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateDependency(ctx, d))
	require.NoError(t, tx.Commit())
}

func testOrg(id string) *entity.Entity {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	return &entity.Entity{
		ID:        id,
		Kind:      entity.KindOrganization,
		Title:     "Acme",
		Status:    entity.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetEntity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	meta := entity.NewMeta()
	meta.Set("owner", "platform")
	org := testOrg("org-1")
	org.Meta = meta
	org.Description = "## Overview\n\nThe org.\n"
	mustCreate(t, store, org)

	got, err := store.GetEntity(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)
	assert.Equal(t, org.Kind, got.Kind)
	assert.Equal(t, org.Title, got.Title)
	assert.Equal(t, org.Status, got.Status)
	assert.Equal(t, org.Description, got.Description)
	assert.True(t, got.CreatedAt.Equal(org.CreatedAt))

	v, ok := got.Meta.Get("owner")
	require.True(t, ok)
	assert.Equal(t, "platform", v)
}

func TestGetEntityNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetEntity(context.Background(), "missing")
	assert.True(t, entity.IsNotFound(err), "expected NotFoundError, got %v", err)
}

func TestUpdateEntity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, store, testOrg("org-1"))

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	e, err := tx.GetEntity(ctx, "org-1")
	require.NoError(t, err)
	e.Title = "Acme Corp"
	e.Status = entity.StatusProposed
	require.NoError(t, tx.UpdateEntity(ctx, e))
	require.NoError(t, tx.Commit())

	got, err := store.GetEntity(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.Title)
	assert.Equal(t, entity.StatusProposed, got.Status)
}

func TestDeleteEntity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, store, testOrg("org-1"))

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.DeleteEntity(ctx, "org-1"))
	require.NoError(t, tx.Commit())

	_, err = store.GetEntity(ctx, "org-1")
	assert.True(t, entity.IsNotFound(err))
}

func TestListChildrenAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, store, testOrg("org-1"))
	for _, id := range []string{"proj-1", "proj-2"} {
		p := testOrg(id)
		p.Kind = entity.KindProject
		p.ParentID = "org-1"
		p.Title = id
		mustCreate(t, store, p)
	}

	kids, err := store.ListChildren(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, kids, 2)

	n, err := store.CountChildren(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.CountChildren(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDuplicateDependencyConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, store, testOrg("a"))
	mustCreate(t, store, testOrg("b"))
	mustLink(t, store, &entity.Dependency{
		ID: "dep-1", SourceID: "a", TargetID: "b", Type: entity.DepRelatesTo,
		CreatedAt: time.Now().UTC(),
	})

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	err = tx.CreateDependency(ctx, &entity.Dependency{
		ID: "dep-2", SourceID: "a", TargetID: "b", Type: entity.DepRelatesTo,
		CreatedAt: time.Now().UTC(),
	})
	assert.True(t, entity.IsConflict(err), "expected ConflictError, got %v", err)
}

func TestFindDependency(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, store, testOrg("a"))
	mustCreate(t, store, testOrg("b"))
	mustLink(t, store, &entity.Dependency{
		ID: "dep-1", SourceID: "a", TargetID: "b", Type: entity.DepBlocks,
		Note: "launch order", CreatedAt: time.Now().UTC(),
	})

	d, err := store.FindDependency(ctx, "a", "b", entity.DepBlocks)
	require.NoError(t, err)
	assert.Equal(t, "dep-1", d.ID)
	assert.Equal(t, "launch order", d.Note)

	_, err = store.FindDependency(ctx, "b", "a", entity.DepBlocks)
	assert.True(t, entity.IsNotFound(err))
}

func TestListIncidentDependencies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		mustCreate(t, store, testOrg(id))
	}
	mustLink(t, store, &entity.Dependency{ID: "d1", SourceID: "a", TargetID: "b", Type: entity.DepBlocks, CreatedAt: time.Now().UTC()})
	mustLink(t, store, &entity.Dependency{ID: "d2", SourceID: "c", TargetID: "b", Type: entity.DepRelatesTo, CreatedAt: time.Now().UTC()})

	from, err := store.ListDependenciesFrom(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, from, 1)

	to, err := store.ListDependenciesTo(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, to, 2)

	n, err := store.CountIncidentDependencies(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDeleteIncidentDependencies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		mustCreate(t, store, testOrg(id))
	}
	mustLink(t, store, &entity.Dependency{ID: "d1", SourceID: "a", TargetID: "b", Type: entity.DepBlocks, CreatedAt: time.Now().UTC()})
	mustLink(t, store, &entity.Dependency{ID: "d2", SourceID: "b", TargetID: "c", Type: entity.DepBlocks, CreatedAt: time.Now().UTC()})

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.DeleteIncidentDependencies(ctx, "b"))
	require.NoError(t, tx.Commit())

	n, err := store.CountIncidentDependencies(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateEntity(ctx, testOrg("org-1")))
	require.NoError(t, tx.Rollback())

	_, err = store.GetEntity(ctx, "org-1")
	assert.True(t, entity.IsNotFound(err))
}

func TestConcurrentWriterConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx1, err := store.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx1.Rollback() }()
	require.NoError(t, tx1.CreateEntity(ctx, testOrg("org-1")))

	// tx1 holds the write lock, so a second writer must surface a
	// retryable conflict rather than an opaque driver error.
	tx2, err := store.BeginTx(ctx)
	if err == nil {
		defer func() { _ = tx2.Rollback() }()
		if err = tx2.CreateEntity(ctx, testOrg("org-2")); err == nil {
			err = tx2.Commit()
		}
	}
	assert.True(t, entity.IsConflict(err), "expected ConflictError, got %v", err)
}

func TestTxReadsOwnWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	require.NoError(t, tx.CreateEntity(ctx, testOrg("org-1")))
	got, err := tx.GetEntity(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", got.ID)
}

var _ storage.Storage = (*Store)(nil)
var _ storage.Tx = (*Tx)(nil)
