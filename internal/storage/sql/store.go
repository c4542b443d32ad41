// Package sql implements storage.Storage on SQLite.
//
// The schema is managed with embedded goose migrations. The same query
// helpers serve both the auto-commit store and transactions by taking
// a narrow db interface, so reads behave identically inside and
// outside a transaction.
package sql

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/tarka-io/tarka/internal/entity"
	"github.com/tarka-io/tarka/internal/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store implements storage.Storage using SQLite.
type Store struct {
	db *sqlx.DB
}

// New opens (or creates) the SQLite database at dsn, applies pragmas
// and migrations, and returns the store.
func New(dsn string) (*Store, error) {
	// BEGIN IMMEDIATE takes the write lock at transaction start, so a
	// competing writer surfaces as SQLITE_BUSY at Begin instead of
	// failing a deferred lock upgrade mid-transaction.
	if !strings.Contains(dsn, "_txlock=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_txlock=immediate"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	// WAL keeps readers unblocked while a writer commits; busy_timeout
	// bounds the wait on the single-writer lock.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, errors.Wrapf(err, "pragma %q", p)
		}
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, errors.Wrap(err, "running migrations")
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction. A write lock held by a concurrent
// transaction surfaces as *entity.ConflictError, which is retryable.
func (s *Store) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		if isBusy(err) {
			return nil, errBusyConflict()
		}
		return nil, errors.Wrap(err, "beginning transaction")
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx *sqlx.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if isBusy(err) {
			return errBusyConflict()
		}
		return err
	}
	return nil
}

// Rollback rolls back the transaction. Safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// dbInterface is the common surface of *sqlx.DB and *sqlx.Tx used by
// the shared query helpers.
type dbInterface interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// isUniqueViolation checks for a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isBusy checks for SQLITE_BUSY/SQLITE_LOCKED, raised when the write
// lock is held by a concurrent transaction.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked")
}

func errBusyConflict() *entity.ConflictError {
	return &entity.ConflictError{Reason: "database is locked by a concurrent writer"}
}

// ─── Row mapping ─────────────────────────────────────────────────────────────

type entityRow struct {
	ID          string         `db:"id"`
	Kind        string         `db:"kind"`
	ParentID    sql.NullString `db:"parent_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Status      string         `db:"status"`
	Metadata    string         `db:"metadata"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

func (r *entityRow) toEntity() (*entity.Entity, error) {
	meta := entity.NewMeta()
	if r.Metadata != "" && r.Metadata != "{}" {
		if err := json.Unmarshal([]byte(r.Metadata), meta); err != nil {
			return nil, errors.Wrapf(err, "decoding metadata for entity %s", r.ID)
		}
	}

	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "entity %s created_at", r.ID)
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "entity %s updated_at", r.ID)
	}

	return &entity.Entity{
		ID:          r.ID,
		Kind:        entity.Kind(r.Kind),
		ParentID:    r.ParentID.String,
		Title:       r.Title,
		Description: r.Description,
		Status:      entity.Status(r.Status),
		Meta:        meta,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func fromEntity(e *entity.Entity) (*entityRow, error) {
	metadata := "{}"
	if e.Meta != nil && e.Meta.Len() > 0 {
		raw, err := json.Marshal(e.Meta)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding metadata for entity %s", e.ID)
		}
		metadata = string(raw)
	}

	return &entityRow{
		ID:          e.ID,
		Kind:        string(e.Kind),
		ParentID:    nullableString(e.ParentID),
		Title:       e.Title,
		Description: e.Description,
		Status:      string(e.Status),
		Metadata:    metadata,
		CreatedAt:   formatTime(e.CreatedAt),
		UpdatedAt:   formatTime(e.UpdatedAt),
	}, nil
}

type dependencyRow struct {
	ID        string `db:"id"`
	SourceID  string `db:"source_id"`
	TargetID  string `db:"target_id"`
	Type      string `db:"type"`
	Note      string `db:"note"`
	CreatedAt string `db:"created_at"`
}

func (r *dependencyRow) toDependency() (*entity.Dependency, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "dependency %s created_at", r.ID)
	}
	return &entity.Dependency{
		ID:        r.ID,
		SourceID:  r.SourceID,
		TargetID:  r.TargetID,
		Type:      entity.DepType(r.Type),
		Note:      r.Note,
		CreatedAt: createdAt,
	}, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing timestamp %q", v)
	}
	return t.UTC(), nil
}

// ─── Entities ────────────────────────────────────────────────────────────────

const entityColumns = `id, kind, parent_id, title, description, status, metadata, created_at, updated_at`

func getEntity(ctx context.Context, db dbInterface, id string) (*entity.Entity, error) {
	var row entityRow
	err := db.GetContext(ctx, &row,
		`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &entity.NotFoundError{Resource: "entity", ID: id}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting entity %s", id)
	}
	return row.toEntity()
}

func listEntities(ctx context.Context, db dbInterface) ([]*entity.Entity, error) {
	var rows []entityRow
	err := db.SelectContext(ctx, &rows,
		`SELECT `+entityColumns+` FROM entities ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.Wrap(err, "listing entities")
	}
	return rowsToEntities(rows)
}

func listChildren(ctx context.Context, db dbInterface, parentID string) ([]*entity.Entity, error) {
	var rows []entityRow
	err := db.SelectContext(ctx, &rows,
		`SELECT `+entityColumns+` FROM entities WHERE parent_id = ? ORDER BY created_at, id`, parentID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing children of %s", parentID)
	}
	return rowsToEntities(rows)
}

func rowsToEntities(rows []entityRow) ([]*entity.Entity, error) {
	out := make([]*entity.Entity, 0, len(rows))
	for i := range rows {
		e, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func countChildren(ctx context.Context, db dbInterface, id string) (int, error) {
	var n int
	err := db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM entities WHERE parent_id = ?`, id)
	if err != nil {
		return 0, errors.Wrapf(err, "counting children of %s", id)
	}
	return n, nil
}

func createEntity(ctx context.Context, db dbInterface, e *entity.Entity) error {
	row, err := fromEntity(e)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO entities (id, kind, parent_id, title, description, status, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Kind, row.ParentID, row.Title, row.Description, row.Status,
		row.Metadata, row.CreatedAt, row.UpdatedAt)
	if isUniqueViolation(err) {
		return &entity.ConflictError{ID: e.ID, Reason: "entity already exists"}
	}
	if isBusy(err) {
		return errBusyConflict()
	}
	return errors.Wrapf(err, "creating entity %s", e.ID)
}

func updateEntity(ctx context.Context, db dbInterface, e *entity.Entity) error {
	row, err := fromEntity(e)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE entities
		 SET kind = ?, parent_id = ?, title = ?, description = ?, status = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		row.Kind, row.ParentID, row.Title, row.Description, row.Status,
		row.Metadata, row.UpdatedAt, row.ID)
	if isBusy(err) {
		return errBusyConflict()
	}
	if err != nil {
		return errors.Wrapf(err, "updating entity %s", e.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &entity.NotFoundError{Resource: "entity", ID: e.ID}
	}
	return nil
}

func deleteEntity(ctx context.Context, db dbInterface, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if isBusy(err) {
		return errBusyConflict()
	}
	if err != nil {
		return errors.Wrapf(err, "deleting entity %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &entity.NotFoundError{Resource: "entity", ID: id}
	}
	return nil
}

// ─── Dependencies ────────────────────────────────────────────────────────────

const depColumns = `id, source_id, target_id, type, note, created_at`

func getDependency(ctx context.Context, db dbInterface, id string) (*entity.Dependency, error) {
	var row dependencyRow
	err := db.GetContext(ctx, &row,
		`SELECT `+depColumns+` FROM dependencies WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &entity.NotFoundError{Resource: "dependency", ID: id}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting dependency %s", id)
	}
	return row.toDependency()
}

func findDependency(ctx context.Context, db dbInterface, sourceID, targetID string, typ entity.DepType) (*entity.Dependency, error) {
	var row dependencyRow
	err := db.GetContext(ctx, &row,
		`SELECT `+depColumns+` FROM dependencies WHERE source_id = ? AND target_id = ? AND type = ?`,
		sourceID, targetID, string(typ))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &entity.NotFoundError{Resource: "dependency", ID: sourceID + "→" + targetID}
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding dependency")
	}
	return row.toDependency()
}

func listDependencies(ctx context.Context, db dbInterface, column, id string) ([]*entity.Dependency, error) {
	var rows []dependencyRow
	err := db.SelectContext(ctx, &rows,
		`SELECT `+depColumns+` FROM dependencies WHERE `+column+` = ? ORDER BY created_at, id`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "listing dependencies by %s for %s", column, id)
	}
	out := make([]*entity.Dependency, 0, len(rows))
	for i := range rows {
		d, err := rows[i].toDependency()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func countIncidentDependencies(ctx context.Context, db dbInterface, id string) (int, error) {
	var n int
	err := db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM dependencies WHERE source_id = ? OR target_id = ?`, id, id)
	if err != nil {
		return 0, errors.Wrapf(err, "counting incident dependencies of %s", id)
	}
	return n, nil
}

func createDependency(ctx context.Context, db dbInterface, d *entity.Dependency) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO dependencies (id, source_id, target_id, type, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.SourceID, d.TargetID, string(d.Type), d.Note, formatTime(d.CreatedAt))
	if isUniqueViolation(err) {
		return &entity.ConflictError{ID: d.ID, Reason: "identical dependency edge already exists"}
	}
	if isBusy(err) {
		return errBusyConflict()
	}
	return errors.Wrapf(err, "creating dependency %s", d.ID)
}

func deleteDependency(ctx context.Context, db dbInterface, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM dependencies WHERE id = ?`, id)
	if isBusy(err) {
		return errBusyConflict()
	}
	if err != nil {
		return errors.Wrapf(err, "deleting dependency %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &entity.NotFoundError{Resource: "dependency", ID: id}
	}
	return nil
}

func deleteIncidentDependencies(ctx context.Context, db dbInterface, id string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM dependencies WHERE source_id = ? OR target_id = ?`, id, id)
	if isBusy(err) {
		return errBusyConflict()
	}
	return errors.Wrapf(err, "deleting incident dependencies of %s", id)
}

// ─── Interface plumbing ──────────────────────────────────────────────────────
//
// Each storage method delegates to the shared helper with either the
// pooled connection or the transaction.

func (s *Store) GetEntity(ctx context.Context, id string) (*entity.Entity, error) {
	return getEntity(ctx, s.db, id)
}

func (t *Tx) GetEntity(ctx context.Context, id string) (*entity.Entity, error) {
	return getEntity(ctx, t.tx, id)
}

func (s *Store) ListEntities(ctx context.Context) ([]*entity.Entity, error) {
	return listEntities(ctx, s.db)
}

func (t *Tx) ListEntities(ctx context.Context) ([]*entity.Entity, error) {
	return listEntities(ctx, t.tx)
}

func (s *Store) ListChildren(ctx context.Context, parentID string) ([]*entity.Entity, error) {
	return listChildren(ctx, s.db, parentID)
}

func (t *Tx) ListChildren(ctx context.Context, parentID string) ([]*entity.Entity, error) {
	return listChildren(ctx, t.tx, parentID)
}

func (s *Store) CountChildren(ctx context.Context, id string) (int, error) {
	return countChildren(ctx, s.db, id)
}

func (t *Tx) CountChildren(ctx context.Context, id string) (int, error) {
	return countChildren(ctx, t.tx, id)
}

func (t *Tx) CreateEntity(ctx context.Context, e *entity.Entity) error {
	return createEntity(ctx, t.tx, e)
}

func (t *Tx) UpdateEntity(ctx context.Context, e *entity.Entity) error {
	return updateEntity(ctx, t.tx, e)
}

func (t *Tx) DeleteEntity(ctx context.Context, id string) error {
	return deleteEntity(ctx, t.tx, id)
}

func (s *Store) GetDependency(ctx context.Context, id string) (*entity.Dependency, error) {
	return getDependency(ctx, s.db, id)
}

func (t *Tx) GetDependency(ctx context.Context, id string) (*entity.Dependency, error) {
	return getDependency(ctx, t.tx, id)
}

func (s *Store) FindDependency(ctx context.Context, sourceID, targetID string, typ entity.DepType) (*entity.Dependency, error) {
	return findDependency(ctx, s.db, sourceID, targetID, typ)
}

func (t *Tx) FindDependency(ctx context.Context, sourceID, targetID string, typ entity.DepType) (*entity.Dependency, error) {
	return findDependency(ctx, t.tx, sourceID, targetID, typ)
}

func (s *Store) ListDependenciesFrom(ctx context.Context, sourceID string) ([]*entity.Dependency, error) {
	return listDependencies(ctx, s.db, "source_id", sourceID)
}

func (t *Tx) ListDependenciesFrom(ctx context.Context, sourceID string) ([]*entity.Dependency, error) {
	return listDependencies(ctx, t.tx, "source_id", sourceID)
}

func (s *Store) ListDependenciesTo(ctx context.Context, targetID string) ([]*entity.Dependency, error) {
	return listDependencies(ctx, s.db, "target_id", targetID)
}

func (t *Tx) ListDependenciesTo(ctx context.Context, targetID string) ([]*entity.Dependency, error) {
	return listDependencies(ctx, t.tx, "target_id", targetID)
}

func (s *Store) CountIncidentDependencies(ctx context.Context, id string) (int, error) {
	return countIncidentDependencies(ctx, s.db, id)
}

func (t *Tx) CountIncidentDependencies(ctx context.Context, id string) (int, error) {
	return countIncidentDependencies(ctx, t.tx, id)
}

func (t *Tx) CreateDependency(ctx context.Context, d *entity.Dependency) error {
	return createDependency(ctx, t.tx, d)
}

func (t *Tx) DeleteDependency(ctx context.Context, id string) error {
	return deleteDependency(ctx, t.tx, id)
}

func (t *Tx) DeleteIncidentDependencies(ctx context.Context, id string) error {
	return deleteIncidentDependencies(ctx, t.tx, id)
}
