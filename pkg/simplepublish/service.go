package simplepublish

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface for the simple-publish library. It is
// consumed by a thin request-handling layer that authenticates and
// authorizes callers before invoking it; the Actor fields carry the caller's
// opaque identity for the audit trail.
type Service interface {
	// Unit operations
	CreateUnit(ctx context.Context, req CreateUnitRequest) (*ContentUnit, error)
	UpdateDraft(ctx context.Context, req UpdateDraftRequest) (*ContentUnit, error)
	GetUnit(ctx context.Context, id uuid.UUID, view UnitView) (*ContentUnit, error)
	GetUnitBySlug(ctx context.Context, kind UnitKind, slug string, view UnitView) (*ContentUnit, error)
	ListUnits(ctx context.Context, req ListUnitsRequest) ([]*ContentUnit, error)
	Delete(ctx context.Context, req DeleteRequest) error

	// Publishing workflow
	Publish(ctx context.Context, req PublishRequest) (*PublishResult, error)
	Archive(ctx context.Context, id uuid.UUID, actor string) (*ContentUnit, error)
	Unarchive(ctx context.Context, id uuid.UUID, actor string) (*ContentUnit, error)
	Restore(ctx context.Context, req RestoreRequest) (*ContentUnit, error)

	// Ordering
	Reorder(ctx context.Context, req ReorderRequest) error

	// History
	ListVersions(ctx context.Context, id uuid.UUID) ([]*VersionSnapshot, error)
	GetVersion(ctx context.Context, id uuid.UUID, version int) (*VersionSnapshot, error)
	ListAudit(ctx context.Context, id uuid.UUID) ([]*AuditEntry, error)
}
