package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-publish/pkg/simplepublish"
	"golang.org/x/exp/slices"
)

// Repository implements simplepublish.Repository using in-memory storage.
// All mutating verbs run under one mutex, which makes every multi-row group
// naturally atomic and the publish compare-and-swap race-free.
type Repository struct {
	mu        sync.RWMutex
	units     map[uuid.UUID]*simplepublish.ContentUnit
	slugs     map[string]uuid.UUID // "kind:slug" -> unit id
	snapshots map[uuid.UUID][]*simplepublish.VersionSnapshot
	audit     map[uuid.UUID][]*simplepublish.AuditEntry
}

// New creates a new in-memory repository
func New() simplepublish.Repository {
	return &Repository{
		units:     make(map[uuid.UUID]*simplepublish.ContentUnit),
		slugs:     make(map[string]uuid.UUID),
		snapshots: make(map[uuid.UUID][]*simplepublish.VersionSnapshot),
		audit:     make(map[uuid.UUID][]*simplepublish.AuditEntry),
	}
}

func slugKey(kind simplepublish.UnitKind, slug string) string {
	return fmt.Sprintf("%s:%s", kind, slug)
}

// cloneUnit returns a deep copy so callers can never mutate stored state.
func cloneUnit(u *simplepublish.ContentUnit) *simplepublish.ContentUnit {
	out := *u
	if u.ParentID != nil {
		id := *u.ParentID
		out.ParentID = &id
	}
	out.Draft = u.Draft.Clone()
	if u.Published != nil {
		pub := u.Published.Clone()
		out.Published = &pub
	}
	if u.PublishedAt != nil {
		at := *u.PublishedAt
		out.PublishedAt = &at
	}
	return &out
}

func (r *Repository) appendAuditLocked(entityID uuid.UUID, kind simplepublish.UnitKind, params simplepublish.AuditParams) {
	entry := &simplepublish.AuditEntry{
		ID:        uuid.New(),
		Actor:     params.Actor,
		Kind:      kind,
		EntityID:  entityID,
		Action:    params.Action,
		CreatedAt: params.At,
	}
	if params.FromVersion != nil {
		v := *params.FromVersion
		entry.FromVersion = &v
	}
	if params.ToVersion != nil {
		v := *params.ToVersion
		entry.ToVersion = &v
	}
	r.audit[entityID] = append(r.audit[entityID], entry)
}

// Unit operations

func (r *Repository) CreateUnit(ctx context.Context, unit *simplepublish.ContentUnit, audit simplepublish.AuditParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := slugKey(unit.Kind, unit.Slug)
	if _, exists := r.slugs[key]; exists {
		return simplepublish.ErrSlugConflict
	}

	r.units[unit.ID] = cloneUnit(unit)
	r.slugs[key] = unit.ID
	r.appendAuditLocked(unit.ID, unit.Kind, audit)

	return nil
}

func (r *Repository) GetUnit(ctx context.Context, id uuid.UUID) (*simplepublish.ContentUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	unit, exists := r.units[id]
	if !exists {
		return nil, simplepublish.ErrUnitNotFound
	}
	return cloneUnit(unit), nil
}

func (r *Repository) GetUnitBySlug(ctx context.Context, kind simplepublish.UnitKind, slug string) (*simplepublish.ContentUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.slugs[slugKey(kind, slug)]
	if !exists {
		return nil, simplepublish.ErrUnitNotFound
	}
	return cloneUnit(r.units[id]), nil
}

func (r *Repository) ListUnits(ctx context.Context, filters simplepublish.UnitListFilters) ([]*simplepublish.ContentUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*simplepublish.ContentUnit, 0)
	for _, unit := range r.units {
		if !matchFilters(unit, filters) {
			continue
		}
		result = append(result, cloneUnit(unit))
	}

	sortByOrderIndex(result)
	return result, nil
}

func matchFilters(unit *simplepublish.ContentUnit, filters simplepublish.UnitListFilters) bool {
	if filters.Kind != nil && unit.Kind != *filters.Kind {
		return false
	}
	if filters.ParentID != nil {
		if unit.ParentID == nil || *unit.ParentID != *filters.ParentID {
			return false
		}
	}
	if filters.RootOnly && unit.ParentID != nil {
		return false
	}
	if filters.Status != nil && unit.Status != *filters.Status {
		return false
	}
	if filters.VisibleOnly && !unit.Visible {
		return false
	}
	if !filters.IncludeArchived && filters.Status == nil && unit.Status == simplepublish.StatusArchived {
		return false
	}
	return true
}

func sortByOrderIndex(units []*simplepublish.ContentUnit) {
	slices.SortFunc(units, func(a, b *simplepublish.ContentUnit) int {
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex - b.OrderIndex
		}
		// Stable tie-break so listings are deterministic
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func (r *Repository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*simplepublish.ContentUnit, error) {
	return r.ListUnits(ctx, simplepublish.UnitListFilters{
		ParentID:        &parentID,
		IncludeArchived: true,
	})
}

func (r *Repository) UpdateUnit(ctx context.Context, unit *simplepublish.ContentUnit, audit simplepublish.AuditParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.units[unit.ID]
	if !exists {
		return simplepublish.ErrUnitNotFound
	}

	// Slug is a stable external identifier; keep the index consistent in
	// case a caller renames anyway.
	if stored.Slug != unit.Slug || stored.Kind != unit.Kind {
		delete(r.slugs, slugKey(stored.Kind, stored.Slug))
		r.slugs[slugKey(unit.Kind, unit.Slug)] = unit.ID
	}

	r.units[unit.ID] = cloneUnit(unit)
	r.appendAuditLocked(unit.ID, unit.Kind, audit)

	return nil
}

// Publish

func (r *Repository) CommitPublish(ctx context.Context, params simplepublish.CommitPublishParams) (*simplepublish.ContentUnit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	unit, exists := r.units[params.UnitID]
	if !exists {
		return nil, simplepublish.ErrUnitNotFound
	}
	if unit.Version != params.ExpectedVersion {
		return nil, simplepublish.ErrPublishConflict
	}

	fromVersion := unit.Version
	toVersion := fromVersion + 1

	published := unit.Draft.Clone()
	at := params.At
	unit.Version = toVersion
	unit.Published = &published
	unit.Status = simplepublish.StatusPublished
	unit.PublishedBy = params.Actor
	unit.PublishedAt = &at
	unit.UpdatedBy = params.Actor
	unit.UpdatedAt = at

	r.snapshots[unit.ID] = append(r.snapshots[unit.ID], &simplepublish.VersionSnapshot{
		ID:        uuid.New(),
		EntityID:  unit.ID,
		Kind:      unit.Kind,
		Version:   toVersion,
		Snapshot:  published.Clone(),
		CreatedBy: params.Actor,
		CreatedAt: at,
	})
	r.appendAuditLocked(unit.ID, unit.Kind, simplepublish.AuditParams{
		Actor:       params.Actor,
		Action:      simplepublish.ActionPublish,
		FromVersion: &fromVersion,
		ToVersion:   &toVersion,
		At:          at,
	})

	return cloneUnit(unit), nil
}

// Reorder

func (r *Repository) ApplyReorder(ctx context.Context, params simplepublish.ReorderParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate the whole batch before touching anything so a failure leaves
	// every order index unchanged.
	for _, order := range params.Orders {
		unit, exists := r.units[order.ID]
		if !exists {
			return simplepublish.ErrUnitNotFound
		}
		if !inScope(unit, params.Scope) {
			return fmt.Errorf("%w: unit %s not in scope", simplepublish.ErrReorderConflict, order.ID)
		}
	}

	for _, order := range params.Orders {
		unit := r.units[order.ID]
		unit.OrderIndex = order.OrderIndex
		unit.UpdatedBy = params.Actor
		unit.UpdatedAt = params.At
		r.appendAuditLocked(unit.ID, unit.Kind, simplepublish.AuditParams{
			Actor:  params.Actor,
			Action: simplepublish.ActionReorder,
			At:     params.At,
		})
	}

	return nil
}

func inScope(unit *simplepublish.ContentUnit, scope simplepublish.ReorderScope) bool {
	if unit.Kind != scope.Kind {
		return false
	}
	if scope.ParentID == nil {
		return unit.ParentID == nil
	}
	return unit.ParentID != nil && *unit.ParentID == *scope.ParentID
}

// Delete

func (r *Repository) DeleteUnit(ctx context.Context, params simplepublish.DeleteUnitParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	unit, exists := r.units[params.UnitID]
	if !exists {
		return simplepublish.ErrUnitNotFound
	}

	children := r.childIDsLocked(params.UnitID)
	if len(children) > 0 && !params.Cascade {
		return simplepublish.ErrHasChildren
	}

	r.deleteLocked(unit, params)
	return nil
}

func (r *Repository) childIDsLocked(parentID uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for id, unit := range r.units {
		if unit.ParentID != nil && *unit.ParentID == parentID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Repository) deleteLocked(unit *simplepublish.ContentUnit, params simplepublish.DeleteUnitParams) {
	for _, childID := range r.childIDsLocked(unit.ID) {
		r.deleteLocked(r.units[childID], params)
	}

	delete(r.units, unit.ID)
	delete(r.slugs, slugKey(unit.Kind, unit.Slug))

	if params.PurgeHistory {
		delete(r.snapshots, unit.ID)
		delete(r.audit, unit.ID)
		return
	}
	r.appendAuditLocked(unit.ID, unit.Kind, simplepublish.AuditParams{
		Actor:  params.Actor,
		Action: simplepublish.ActionDelete,
		At:     params.At,
	})
}

// Ordering helpers

func (r *Repository) NextOrderIndex(ctx context.Context, kind simplepublish.UnitKind, parentID *uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	max := -1
	scope := simplepublish.ReorderScope{Kind: kind, ParentID: parentID}
	for _, unit := range r.units {
		if inScope(unit, scope) && unit.OrderIndex > max {
			max = unit.OrderIndex
		}
	}
	return max + 1, nil
}

// History operations

func (r *Repository) ListSnapshots(ctx context.Context, entityID uuid.UUID) ([]*simplepublish.VersionSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.snapshots[entityID]
	result := make([]*simplepublish.VersionSnapshot, 0, len(stored))
	for _, snap := range stored {
		copied := *snap
		copied.Snapshot = snap.Snapshot.Clone()
		result = append(result, &copied)
	}

	// Most recent version first
	slices.SortFunc(result, func(a, b *simplepublish.VersionSnapshot) int {
		return b.Version - a.Version
	})
	return result, nil
}

func (r *Repository) GetSnapshot(ctx context.Context, entityID uuid.UUID, version int) (*simplepublish.VersionSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, snap := range r.snapshots[entityID] {
		if snap.Version == version {
			copied := *snap
			copied.Snapshot = snap.Snapshot.Clone()
			return &copied, nil
		}
	}
	return nil, simplepublish.ErrVersionNotFound
}

func (r *Repository) ListAudit(ctx context.Context, entityID uuid.UUID) ([]*simplepublish.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.audit[entityID]
	result := make([]*simplepublish.AuditEntry, 0, len(stored))
	// Entries are stored in append order; return most recent first.
	for i := len(stored) - 1; i >= 0; i-- {
		copied := *stored[i]
		result = append(result, &copied)
	}
	return result, nil
}
