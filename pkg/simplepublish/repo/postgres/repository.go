package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// DB is the subset of pgxpool.Pool the repository needs. Accepting the
// interface keeps the repository testable against a transaction as well.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Repository implements simplepublish.Repository using PostgreSQL. Every
// atomic verb runs inside a single transaction; the publish version bump is
// a compare-and-swap on the version column. See migrations/ for the schema
// (content_units, version_snapshots, audit_log).
type Repository struct {
	db DB
}

// New creates a new PostgreSQL repository
func New(db DB) simplepublish.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with a connection pool
func NewWithPool(pool *pgxpool.Pool) simplepublish.Repository {
	return &Repository{db: pool}
}

func (r *Repository) handleError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "slug") {
				return simplepublish.ErrSlugConflict
			}
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced unit not found: %w", simplepublish.ErrUnitNotFound)
		case "42P01": // undefined_table
			return &simplepublish.StorageError{Op: op, Err: fmt.Errorf("table does not exist - database migration required")}
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return simplepublish.ErrUnitNotFound
	}
	return &simplepublish.StorageError{Op: op, Err: err}
}

const unitColumns = `id, parent_id, kind, slug, order_index, visible, status, version,
	draft_content, published_content, updated_by, updated_at, published_by, published_at, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUnit(row rowScanner) (*simplepublish.ContentUnit, error) {
	var unit simplepublish.ContentUnit
	var draft []byte
	var published []byte
	if err := row.Scan(
		&unit.ID, &unit.ParentID, &unit.Kind, &unit.Slug, &unit.OrderIndex,
		&unit.Visible, &unit.Status, &unit.Version, &draft, &published,
		&unit.UpdatedBy, &unit.UpdatedAt, &unit.PublishedBy, &unit.PublishedAt,
		&unit.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(draft, &unit.Draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft content: %w", err)
	}
	if published != nil {
		var content simplepublish.Content
		if err := json.Unmarshal(published, &content); err != nil {
			return nil, fmt.Errorf("failed to decode published content: %w", err)
		}
		unit.Published = &content
	}
	return &unit, nil
}

func insertAudit(ctx context.Context, tx pgx.Tx, entityID uuid.UUID, kind simplepublish.UnitKind, params simplepublish.AuditParams) error {
	query := `
		INSERT INTO audit_log (id, actor, entity_kind, entity_id, action, from_version, to_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := tx.Exec(ctx, query,
		uuid.New(), params.Actor, kind, entityID, params.Action,
		params.FromVersion, params.ToVersion, params.At)
	return err
}

// Unit operations

func (r *Repository) CreateUnit(ctx context.Context, unit *simplepublish.ContentUnit, audit simplepublish.AuditParams) error {
	draft, err := json.Marshal(unit.Draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft content: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return &simplepublish.StorageError{Op: "create unit", Err: err}
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO content_units (
			id, parent_id, kind, slug, order_index, visible, status, version,
			draft_content, updated_by, updated_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = tx.Exec(ctx, query,
		unit.ID, unit.ParentID, unit.Kind, unit.Slug, unit.OrderIndex,
		unit.Visible, unit.Status, unit.Version, draft,
		unit.UpdatedBy, unit.UpdatedAt, unit.CreatedAt)
	if err != nil {
		return r.handleError("create unit", err)
	}

	if err := insertAudit(ctx, tx, unit.ID, unit.Kind, audit); err != nil {
		return r.handleError("create unit audit", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return &simplepublish.StorageError{Op: "create unit", Err: err}
	}
	return nil
}

func (r *Repository) GetUnit(ctx context.Context, id uuid.UUID) (*simplepublish.ContentUnit, error) {
	query := fmt.Sprintf(`SELECT %s FROM content_units WHERE id = $1`, unitColumns)
	unit, err := scanUnit(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplepublish.ErrUnitNotFound
		}
		return nil, &simplepublish.StorageError{Op: "get unit", Err: err}
	}
	return unit, nil
}

func (r *Repository) GetUnitBySlug(ctx context.Context, kind simplepublish.UnitKind, slug string) (*simplepublish.ContentUnit, error) {
	query := fmt.Sprintf(`SELECT %s FROM content_units WHERE kind = $1 AND slug = $2`, unitColumns)
	unit, err := scanUnit(r.db.QueryRow(ctx, query, kind, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplepublish.ErrUnitNotFound
		}
		return nil, &simplepublish.StorageError{Op: "get unit by slug", Err: err}
	}
	return unit, nil
}

func (r *Repository) ListUnits(ctx context.Context, filters simplepublish.UnitListFilters) ([]*simplepublish.ContentUnit, error) {
	var conditions []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Kind != nil {
		conditions = append(conditions, "kind = "+arg(*filters.Kind))
	}
	if filters.ParentID != nil {
		conditions = append(conditions, "parent_id = "+arg(*filters.ParentID))
	}
	if filters.RootOnly {
		conditions = append(conditions, "parent_id IS NULL")
	}
	if filters.Status != nil {
		conditions = append(conditions, "status = "+arg(*filters.Status))
	}
	if filters.VisibleOnly {
		conditions = append(conditions, "visible = TRUE")
	}
	if !filters.IncludeArchived && filters.Status == nil {
		conditions = append(conditions, "status <> "+arg(simplepublish.StatusArchived))
	}

	query := fmt.Sprintf(`SELECT %s FROM content_units`, unitColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY order_index ASC, created_at ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, &simplepublish.StorageError{Op: "list units", Err: err}
	}
	defer rows.Close()

	var units []*simplepublish.ContentUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, &simplepublish.StorageError{Op: "list units", Err: err}
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

func (r *Repository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*simplepublish.ContentUnit, error) {
	return r.ListUnits(ctx, simplepublish.UnitListFilters{
		ParentID:        &parentID,
		IncludeArchived: true,
	})
}

func (r *Repository) UpdateUnit(ctx context.Context, unit *simplepublish.ContentUnit, audit simplepublish.AuditParams) error {
	draft, err := json.Marshal(unit.Draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft content: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return &simplepublish.StorageError{Op: "update unit", Err: err}
	}
	defer tx.Rollback(ctx)

	// Version and published content are deliberately not touched here; only
	// CommitPublish moves them.
	query := `
		UPDATE content_units SET
			slug = $2, order_index = $3, visible = $4, status = $5,
			draft_content = $6, updated_by = $7, updated_at = $8
		WHERE id = $1`
	tag, err := tx.Exec(ctx, query,
		unit.ID, unit.Slug, unit.OrderIndex, unit.Visible, unit.Status,
		draft, unit.UpdatedBy, unit.UpdatedAt)
	if err != nil {
		return r.handleError("update unit", err)
	}
	if tag.RowsAffected() == 0 {
		return simplepublish.ErrUnitNotFound
	}

	if err := insertAudit(ctx, tx, unit.ID, unit.Kind, audit); err != nil {
		return r.handleError("update unit audit", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return &simplepublish.StorageError{Op: "update unit", Err: err}
	}
	return nil
}

// Publish

func (r *Repository) CommitPublish(ctx context.Context, params simplepublish.CommitPublishParams) (*simplepublish.ContentUnit, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, &simplepublish.StorageError{Op: "publish", Err: err}
	}
	defer tx.Rollback(ctx)

	// Compare-and-swap on the version column: a concurrent publish that
	// committed first makes this update match zero rows.
	query := fmt.Sprintf(`
		UPDATE content_units SET
			published_content = draft_content,
			version = version + 1,
			status = $3,
			published_by = $4, published_at = $5,
			updated_by = $4, updated_at = $5
		WHERE id = $1 AND version = $2
		RETURNING %s`, unitColumns)

	unit, err := scanUnit(tx.QueryRow(ctx, query,
		params.UnitID, params.ExpectedVersion, simplepublish.StatusPublished,
		params.Actor, params.At))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if checkErr := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM content_units WHERE id = $1)`,
				params.UnitID).Scan(&exists); checkErr != nil {
				return nil, &simplepublish.StorageError{Op: "publish", Err: checkErr}
			}
			if exists {
				return nil, simplepublish.ErrPublishConflict
			}
			return nil, simplepublish.ErrUnitNotFound
		}
		return nil, &simplepublish.StorageError{Op: "publish", Err: err}
	}

	snapshot, err := json.Marshal(unit.Published)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot content: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO version_snapshots (id, entity_id, entity_kind, version, snapshot, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), unit.ID, unit.Kind, unit.Version, snapshot, params.Actor, params.At)
	if err != nil {
		return nil, r.handleError("publish snapshot", err)
	}

	fromVersion := params.ExpectedVersion
	toVersion := unit.Version
	err = insertAudit(ctx, tx, unit.ID, unit.Kind, simplepublish.AuditParams{
		Actor:       params.Actor,
		Action:      simplepublish.ActionPublish,
		FromVersion: &fromVersion,
		ToVersion:   &toVersion,
		At:          params.At,
	})
	if err != nil {
		return nil, r.handleError("publish audit", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &simplepublish.StorageError{Op: "publish", Err: err}
	}
	return unit, nil
}

// Reorder

func (r *Repository) ApplyReorder(ctx context.Context, params simplepublish.ReorderParams) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return &simplepublish.StorageError{Op: "reorder", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, order := range params.Orders {
		tag, err := tx.Exec(ctx, `
			UPDATE content_units SET order_index = $2, updated_by = $3, updated_at = $4
			WHERE id = $1 AND kind = $5 AND parent_id IS NOT DISTINCT FROM $6`,
			order.ID, order.OrderIndex, params.Actor, params.At,
			params.Scope.Kind, params.Scope.ParentID)
		if err != nil {
			return r.handleError("reorder", err)
		}
		if tag.RowsAffected() == 0 {
			// Distinguish an unknown unit from one outside the scope; the
			// rollback undoes any sibling already updated either way.
			var exists bool
			if checkErr := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM content_units WHERE id = $1)`,
				order.ID).Scan(&exists); checkErr != nil {
				return &simplepublish.StorageError{Op: "reorder", Err: checkErr}
			}
			if exists {
				return fmt.Errorf("%w: unit %s not in scope", simplepublish.ErrReorderConflict, order.ID)
			}
			return simplepublish.ErrUnitNotFound
		}

		err = insertAudit(ctx, tx, order.ID, params.Scope.Kind, simplepublish.AuditParams{
			Actor:  params.Actor,
			Action: simplepublish.ActionReorder,
			At:     params.At,
		})
		if err != nil {
			return r.handleError("reorder audit", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &simplepublish.StorageError{Op: "reorder", Err: err}
	}
	return nil
}

// Delete

func (r *Repository) DeleteUnit(ctx context.Context, params simplepublish.DeleteUnitParams) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return &simplepublish.StorageError{Op: "delete unit", Err: err}
	}
	defer tx.Rollback(ctx)

	// Collect the unit and its descendants up front; the FK cascade removes
	// the rows, but history handling needs every affected id.
	rows, err := tx.Query(ctx, `
		WITH RECURSIVE tree AS (
			SELECT id, kind FROM content_units WHERE id = $1
			UNION ALL
			SELECT c.id, c.kind FROM content_units c JOIN tree t ON c.parent_id = t.id
		)
		SELECT id, kind FROM tree`, params.UnitID)
	if err != nil {
		return &simplepublish.StorageError{Op: "delete unit", Err: err}
	}

	type member struct {
		id   uuid.UUID
		kind simplepublish.UnitKind
	}
	var tree []member
	for rows.Next() {
		var m member
		if err := rows.Scan(&m.id, &m.kind); err != nil {
			rows.Close()
			return &simplepublish.StorageError{Op: "delete unit", Err: err}
		}
		tree = append(tree, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return &simplepublish.StorageError{Op: "delete unit", Err: err}
	}

	if len(tree) == 0 {
		return simplepublish.ErrUnitNotFound
	}
	if len(tree) > 1 && !params.Cascade {
		return simplepublish.ErrHasChildren
	}

	ids := make([]uuid.UUID, len(tree))
	for i, m := range tree {
		ids[i] = m.id
	}

	if _, err := tx.Exec(ctx, `DELETE FROM content_units WHERE id = $1`, params.UnitID); err != nil {
		return r.handleError("delete unit", err)
	}

	if params.PurgeHistory {
		if _, err := tx.Exec(ctx, `DELETE FROM version_snapshots WHERE entity_id = ANY($1)`, ids); err != nil {
			return r.handleError("purge snapshots", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM audit_log WHERE entity_id = ANY($1)`, ids); err != nil {
			return r.handleError("purge audit", err)
		}
	} else {
		for _, m := range tree {
			err := insertAudit(ctx, tx, m.id, m.kind, simplepublish.AuditParams{
				Actor:  params.Actor,
				Action: simplepublish.ActionDelete,
				At:     params.At,
			})
			if err != nil {
				return r.handleError("delete audit", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &simplepublish.StorageError{Op: "delete unit", Err: err}
	}
	return nil
}

// Ordering helpers

func (r *Repository) NextOrderIndex(ctx context.Context, kind simplepublish.UnitKind, parentID *uuid.UUID) (int, error) {
	var next int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(order_index), -1) + 1 FROM content_units
		WHERE kind = $1 AND parent_id IS NOT DISTINCT FROM $2`,
		kind, parentID).Scan(&next)
	if err != nil {
		return 0, &simplepublish.StorageError{Op: "next order index", Err: err}
	}
	return next, nil
}

// History operations

func (r *Repository) ListSnapshots(ctx context.Context, entityID uuid.UUID) ([]*simplepublish.VersionSnapshot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, entity_id, entity_kind, version, snapshot, created_by, created_at
		FROM version_snapshots WHERE entity_id = $1
		ORDER BY version DESC`, entityID)
	if err != nil {
		return nil, &simplepublish.StorageError{Op: "list snapshots", Err: err}
	}
	defer rows.Close()

	var snapshots []*simplepublish.VersionSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, &simplepublish.StorageError{Op: "list snapshots", Err: err}
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

func (r *Repository) GetSnapshot(ctx context.Context, entityID uuid.UUID, version int) (*simplepublish.VersionSnapshot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, entity_id, entity_kind, version, snapshot, created_by, created_at
		FROM version_snapshots WHERE entity_id = $1 AND version = $2`, entityID, version)
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplepublish.ErrVersionNotFound
		}
		return nil, &simplepublish.StorageError{Op: "get snapshot", Err: err}
	}
	return snap, nil
}

func scanSnapshot(row rowScanner) (*simplepublish.VersionSnapshot, error) {
	var snap simplepublish.VersionSnapshot
	var content []byte
	if err := row.Scan(&snap.ID, &snap.EntityID, &snap.Kind, &snap.Version,
		&content, &snap.CreatedBy, &snap.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &snap.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot content: %w", err)
	}
	return &snap, nil
}

func (r *Repository) ListAudit(ctx context.Context, entityID uuid.UUID) ([]*simplepublish.AuditEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, actor, entity_kind, entity_id, action, from_version, to_version, created_at
		FROM audit_log WHERE entity_id = $1
		ORDER BY created_at DESC`, entityID)
	if err != nil {
		return nil, &simplepublish.StorageError{Op: "list audit", Err: err}
	}
	defer rows.Close()

	var entries []*simplepublish.AuditEntry
	for rows.Next() {
		var entry simplepublish.AuditEntry
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Kind, &entry.EntityID,
			&entry.Action, &entry.FromVersion, &entry.ToVersion, &entry.CreatedAt); err != nil {
			return nil, &simplepublish.StorageError{Op: "list audit", Err: err}
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
