package simplepublish

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for content units, version
// snapshots, and the audit log.
//
// Mutating methods are atomic verbs: every write that the spec groups
// together (a unit write plus its audit entry, a publish plus its snapshot
// and audit entry, a reorder batch plus its per-unit audit entries) must
// commit or roll back as one unit of work. A reader must never observe a
// version bump without its snapshot or a snapshot without its audit entry.
type Repository interface {
	// CreateUnit inserts the unit and its create audit entry atomically.
	// Returns ErrSlugConflict when the (kind, slug) pair is already taken.
	CreateUnit(ctx context.Context, unit *ContentUnit, audit AuditParams) error

	// GetUnit returns the unit by id, or ErrUnitNotFound.
	GetUnit(ctx context.Context, id uuid.UUID) (*ContentUnit, error)

	// GetUnitBySlug returns the unit by (kind, slug), or ErrUnitNotFound.
	GetUnitBySlug(ctx context.Context, kind UnitKind, slug string) (*ContentUnit, error)

	// ListUnits returns units matching the filters, ordered by OrderIndex
	// ascending.
	ListUnits(ctx context.Context, filters UnitListFilters) ([]*ContentUnit, error)

	// ListChildren returns the direct children of a unit, ordered by
	// OrderIndex ascending.
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*ContentUnit, error)

	// UpdateUnit persists the unit and its audit entry atomically. The
	// version column is never advanced here; only CommitPublish moves it.
	UpdateUnit(ctx context.Context, unit *ContentUnit, audit AuditParams) error

	// CommitPublish performs the atomic publish group: compare-and-swap the
	// version from ExpectedVersion to ExpectedVersion+1, copy the draft into
	// the published slot, insert the version snapshot, and append the audit
	// entry. Returns ErrPublishConflict when the unit's version no longer
	// equals ExpectedVersion, ErrUnitNotFound when the unit is gone.
	CommitPublish(ctx context.Context, params CommitPublishParams) (*ContentUnit, error)

	// ApplyReorder applies a batch of sibling order changes atomically with
	// one reorder audit entry per unit. Any unknown id fails the whole batch
	// with ErrUnitNotFound; a unit outside the declared scope fails it with
	// ErrReorderConflict. On failure no order index is changed.
	ApplyReorder(ctx context.Context, params ReorderParams) error

	// DeleteUnit removes the unit. Without Cascade it fails with
	// ErrHasChildren when child units exist; with Cascade children are
	// removed in the same transaction. History handling follows
	// params.PurgeHistory.
	DeleteUnit(ctx context.Context, params DeleteUnitParams) error

	// NextOrderIndex returns the order index one past the current maximum
	// among siblings of the given scope.
	NextOrderIndex(ctx context.Context, kind UnitKind, parentID *uuid.UUID) (int, error)

	// ListSnapshots returns all version snapshots for an entity, most recent
	// version first.
	ListSnapshots(ctx context.Context, entityID uuid.UUID) ([]*VersionSnapshot, error)

	// GetSnapshot returns the snapshot at an exact version, or
	// ErrVersionNotFound.
	GetSnapshot(ctx context.Context, entityID uuid.UUID, version int) (*VersionSnapshot, error)

	// ListAudit returns the audit trail for an entity, most recent first.
	ListAudit(ctx context.Context, entityID uuid.UUID) ([]*AuditEntry, error)
}

// AuditParams describes the audit entry a repository appends alongside a
// unit write.
type AuditParams struct {
	Actor       string
	Action      AuditAction
	FromVersion *int
	ToVersion   *int
	At          time.Time
}

// CommitPublishParams contains parameters for the atomic publish group.
type CommitPublishParams struct {
	UnitID          uuid.UUID
	ExpectedVersion int
	Actor           string
	At              time.Time
}

// ReorderScope declares the sibling group a reorder batch belongs to: units
// of one kind under one parent (or at the root when ParentID is nil).
type ReorderScope struct {
	Kind     UnitKind   `json:"kind"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

// UnitOrder assigns an order index to a unit within a reorder batch.
type UnitOrder struct {
	ID         uuid.UUID `json:"id"`
	OrderIndex int       `json:"order_index"`
}

// ReorderParams contains parameters for an atomic reorder batch.
type ReorderParams struct {
	Scope  ReorderScope
	Orders []UnitOrder
	Actor  string
	At     time.Time
}

// DeleteUnitParams contains parameters for deleting a unit.
type DeleteUnitParams struct {
	UnitID       uuid.UUID
	Actor        string
	Cascade      bool
	PurgeHistory bool
	At           time.Time
}

// ContentValidator validates a content payload against the schema of its
// kind. Implementations return a *ValidationError listing every violated
// field, never a partial or coerced payload.
type ContentValidator interface {
	ValidateContent(kind UnitKind, content Content) error
}

// Clock supplies the engine's notion of now. Injected so tests can pin time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// EventSink defines the interface for event handling
type EventSink interface {
	// UnitCreated is fired when a unit is created
	UnitCreated(ctx context.Context, unit *ContentUnit) error

	// UnitUpdated is fired when a unit's draft or flags change
	UnitUpdated(ctx context.Context, unit *ContentUnit) error

	// UnitPublished is fired when a unit is published
	UnitPublished(ctx context.Context, unit *ContentUnit) error

	// UnitRestored is fired when a snapshot is restored into a draft
	UnitRestored(ctx context.Context, unit *ContentUnit, fromVersion int) error

	// UnitDeleted is fired when a unit is deleted
	UnitDeleted(ctx context.Context, unitID uuid.UUID) error
}

// HistoryRetention controls what happens to version snapshots and audit
// entries when their unit is deleted.
type HistoryRetention string

// History retention policies. Retention is the default: history outlives the
// unit for audit purposes.
const (
	HistoryRetain HistoryRetention = "retain"
	HistoryPurge  HistoryRetention = "purge"
)
