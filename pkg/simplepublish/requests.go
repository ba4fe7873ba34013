package simplepublish

import "github.com/google/uuid"

// Request/Response DTOs

// CreateUnitRequest contains parameters for creating a content unit. The
// unit starts in draft status at version 0. When OrderIndex is nil the unit
// is appended after the current last sibling.
type CreateUnitRequest struct {
	Kind       UnitKind
	Slug       string
	ParentID   *uuid.UUID
	Draft      Content
	Visible    *bool // defaults to true
	OrderIndex *int
	Actor      string
}

// UpdateDraftRequest contains parameters for a partial draft edit. The patch
// is merged onto the current draft and the merged payload is validated as a
// whole. Draft edits never change the unit's version.
type UpdateDraftRequest struct {
	ID      uuid.UUID
	Patch   ContentPatch
	Visible *bool
	Actor   string
}

// ListUnitsRequest contains parameters for listing content units.
type ListUnitsRequest struct {
	Filters UnitListFilters
	View    UnitView // content slot exposed on the returned units
}

// PublishRequest contains parameters for publishing a unit. With Cascade the
// unit's children are published afterwards as independent best-effort
// operations; a child failure never undoes the parent or committed siblings.
type PublishRequest struct {
	ID      uuid.UUID
	Actor   string
	Cascade bool
}

// CascadeFailure records a child publish that failed during a cascade.
type CascadeFailure struct {
	UnitID uuid.UUID
	Err    error
}

// PublishResult is the outcome of a publish. Children and Failures are only
// populated for cascade publishes.
type PublishResult struct {
	Unit     *ContentUnit
	Children []*ContentUnit
	Failures []CascadeFailure
}

// RestoreRequest contains parameters for restoring a version snapshot into a
// unit's draft slot. What is currently live is unaffected until the next
// publish.
type RestoreRequest struct {
	ID            uuid.UUID
	TargetVersion int
	Actor         string
}

// ReorderRequest contains parameters for an atomic batch of sibling order
// changes. Order indexes must be unique within the batch but need not form a
// dense sequence.
type ReorderRequest struct {
	Scope  ReorderScope
	Orders []UnitOrder
	Actor  string
}

// DeleteRequest contains parameters for deleting a unit. Without Cascade the
// delete fails when children exist. History retention follows the service's
// configured policy.
type DeleteRequest struct {
	ID      uuid.UUID
	Actor   string
	Cascade bool
}
