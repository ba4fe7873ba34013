package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// UnitHandler handles HTTP requests for content units using pkg/simplepublish
type UnitHandler struct {
	service simplepublish.Service
}

// NewUnitHandler creates a new unit handler
func NewUnitHandler(service simplepublish.Service) *UnitHandler {
	return &UnitHandler{service: service}
}

// Routes returns the routes for content units
func (h *UnitHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateUnit)
	r.Get("/", h.ListUnits)
	r.Post("/reorder", h.Reorder)
	r.Get("/slug/{kind}/{slug}", h.GetUnitBySlug)

	r.Get("/{id}", h.GetUnit)
	r.Delete("/{id}", h.DeleteUnit)
	r.Patch("/{id}/draft", h.UpdateDraft)

	// Publishing workflow
	r.Post("/{id}/publish", h.PublishUnit)
	r.Post("/{id}/archive", h.ArchiveUnit)
	r.Post("/{id}/unarchive", h.UnarchiveUnit)
	r.Post("/{id}/restore", h.RestoreUnit)

	// History
	r.Get("/{id}/versions", h.ListVersions)
	r.Get("/{id}/versions/{version}", h.GetVersion)
	r.Get("/{id}/audit", h.ListAudit)

	return r
}

// CreateUnitRequest is the request body for creating a content unit
type CreateUnitRequest struct {
	Kind       string                `json:"kind"`
	Slug       string                `json:"slug"`
	ParentID   string                `json:"parent_id,omitempty"`
	Draft      simplepublish.Content `json:"draft"`
	Visible    *bool                 `json:"visible,omitempty"`
	OrderIndex *int                  `json:"order_index,omitempty"`
}

// UpdateDraftRequest is the request body for a partial draft edit
type UpdateDraftRequest struct {
	Patch   simplepublish.ContentPatch `json:"patch"`
	Visible *bool                      `json:"visible,omitempty"`
}

// ReorderRequest is the request body for an atomic sibling reorder
type ReorderRequest struct {
	Kind     string          `json:"kind"`
	ParentID string          `json:"parent_id,omitempty"`
	Orders   []ReorderTarget `json:"orders"`
}

// ReorderTarget is one unit/position pair inside a reorder batch
type ReorderTarget struct {
	ID         string `json:"id"`
	OrderIndex int    `json:"order_index"`
}

// RestoreRequest is the request body for restoring a version snapshot
type RestoreRequest struct {
	Version int `json:"version"`
}

// UnitResponse is the response body for a content unit. Content carries the
// slot selected by the request's view parameter and is null for the
// published view of a never-published unit.
type UnitResponse struct {
	ID          string                 `json:"id"`
	ParentID    string                 `json:"parent_id,omitempty"`
	Kind        string                 `json:"kind"`
	Slug        string                 `json:"slug"`
	OrderIndex  int                    `json:"order_index"`
	Visible     bool                   `json:"visible"`
	Status      string                 `json:"status"`
	Version     int                    `json:"version"`
	Content     *simplepublish.Content `json:"content"`
	HasChanges  bool                   `json:"has_unpublished_changes"`
	UpdatedBy   string                 `json:"updated_by,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
	PublishedBy string                 `json:"published_by,omitempty"`
	PublishedAt *time.Time             `json:"published_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// PublishResponse is the response body for a publish
type PublishResponse struct {
	Unit     UnitResponse      `json:"unit"`
	Children []UnitResponse    `json:"children,omitempty"`
	Failures []FailureResponse `json:"failures,omitempty"`
}

// FailureResponse records a child publish that failed during a cascade
type FailureResponse struct {
	UnitID string `json:"unit_id"`
	Error  string `json:"error"`
}

// VersionResponse is the response body for a version snapshot
type VersionResponse struct {
	ID        string                `json:"id"`
	EntityID  string                `json:"entity_id"`
	Kind      string                `json:"entity_kind"`
	Version   int                   `json:"version"`
	Snapshot  simplepublish.Content `json:"snapshot"`
	CreatedBy string                `json:"created_by,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// AuditEntryResponse is the response body for an audit log entry
type AuditEntryResponse struct {
	ID          string    `json:"id"`
	Actor       string    `json:"actor"`
	Kind        string    `json:"entity_kind"`
	EntityID    string    `json:"entity_id"`
	Action      string    `json:"action"`
	FromVersion *int      `json:"from_version,omitempty"`
	ToVersion   *int      `json:"to_version,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUnitResponse(unit *simplepublish.ContentUnit, view simplepublish.UnitView) UnitResponse {
	resp := UnitResponse{
		ID:          unit.ID.String(),
		Kind:        string(unit.Kind),
		Slug:        unit.Slug,
		OrderIndex:  unit.OrderIndex,
		Visible:     unit.Visible,
		Status:      string(unit.Status),
		Version:     unit.Version,
		Content:     unit.ContentForView(view),
		HasChanges:  unit.HasUnpublishedChanges(),
		UpdatedBy:   unit.UpdatedBy,
		UpdatedAt:   unit.UpdatedAt,
		PublishedBy: unit.PublishedBy,
		PublishedAt: unit.PublishedAt,
		CreatedAt:   unit.CreatedAt,
	}
	if unit.ParentID != nil {
		resp.ParentID = unit.ParentID.String()
	}
	return resp
}

func toVersionResponse(snap *simplepublish.VersionSnapshot) VersionResponse {
	return VersionResponse{
		ID:        snap.ID.String(),
		EntityID:  snap.EntityID.String(),
		Kind:      string(snap.Kind),
		Version:   snap.Version,
		Snapshot:  snap.Snapshot,
		CreatedBy: snap.CreatedBy,
		CreatedAt: snap.CreatedAt,
	}
}

func toAuditResponse(entry *simplepublish.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:          entry.ID.String(),
		Actor:       entry.Actor,
		Kind:        string(entry.Kind),
		EntityID:    entry.EntityID.String(),
		Action:      string(entry.Action),
		FromVersion: entry.FromVersion,
		ToVersion:   entry.ToVersion,
		CreatedAt:   entry.CreatedAt,
	}
}

// viewParam resolves the content view from the "view" query parameter.
// Unknown values fall back to the draft view.
func viewParam(r *http.Request) simplepublish.UnitView {
	if r.URL.Query().Get("view") == string(simplepublish.ViewPublished) {
		return simplepublish.ViewPublished
	}
	return simplepublish.ViewDraft
}

// writeError maps engine errors onto HTTP statuses with a structured body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *simplepublish.ValidationError
	if errors.As(err, &verr) {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, map[string]interface{}{
			"error": map[string]interface{}{
				"code":    "validation_failed",
				"message": verr.Error(),
				"fields":  verr.Fields,
			},
		})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, simplepublish.ErrUnitNotFound):
		status, code = http.StatusNotFound, "unit_not_found"
	case errors.Is(err, simplepublish.ErrVersionNotFound):
		status, code = http.StatusNotFound, "version_not_found"
	case errors.Is(err, simplepublish.ErrSlugConflict):
		status, code = http.StatusConflict, "slug_conflict"
	case errors.Is(err, simplepublish.ErrPublishConflict):
		status, code = http.StatusConflict, "publish_conflict"
	case errors.Is(err, simplepublish.ErrReorderConflict):
		status, code = http.StatusConflict, "reorder_conflict"
	case errors.Is(err, simplepublish.ErrHasChildren):
		status, code = http.StatusConflict, "has_children"
	case errors.Is(err, simplepublish.ErrInvalidKind):
		status, code = http.StatusBadRequest, "invalid_kind"
	}

	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": err.Error(),
		},
	})
}

// CreateUnit creates a new content unit in draft status
func (h *UnitHandler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req CreateUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	createReq := simplepublish.CreateUnitRequest{
		Kind:       simplepublish.UnitKind(req.Kind),
		Slug:       req.Slug,
		Draft:      req.Draft,
		Visible:    req.Visible,
		OrderIndex: req.OrderIndex,
		Actor:      ActorFromContext(r.Context()),
	}
	if req.ParentID != "" {
		parentID, err := uuid.Parse(req.ParentID)
		if err != nil {
			slog.Error("Invalid parent ID", "parent_id", req.ParentID, "error", err)
			http.Error(w, "Invalid parent ID", http.StatusBadRequest)
			return
		}
		createReq.ParentID = &parentID
	}

	unit, err := h.service.CreateUnit(r.Context(), createReq)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Unit created", "unit_id", unit.ID.String(), "kind", req.Kind, "slug", req.Slug)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toUnitResponse(unit, simplepublish.ViewDraft))
}

// GetUnit retrieves a content unit by ID
func (h *UnitHandler) GetUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	view := viewParam(r)

	unit, err := h.service.GetUnit(r.Context(), id, view)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, toUnitResponse(unit, view))
}

// GetUnitBySlug retrieves a content unit by kind and slug
func (h *UnitHandler) GetUnitBySlug(w http.ResponseWriter, r *http.Request) {
	kind := simplepublish.UnitKind(chi.URLParam(r, "kind"))
	slug := chi.URLParam(r, "slug")
	view := viewParam(r)

	unit, err := h.service.GetUnitBySlug(r.Context(), kind, slug, view)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, toUnitResponse(unit, view))
}

// ListUnits lists content units
// Query parameters:
//   - kind: filter by unit kind
//   - parent_id: filter by parent; "none" selects root units
//   - status: filter by lifecycle status
//   - visible=true: only visible units
//   - include_archived=true: include archived units
//   - view=published: expose the published content slot
func (h *UnitHandler) ListUnits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view := viewParam(r)

	var filters simplepublish.UnitListFilters
	if v := q.Get("kind"); v != "" {
		kind := simplepublish.UnitKind(v)
		filters.Kind = &kind
	}
	if v := q.Get("parent_id"); v != "" {
		if v == "none" {
			filters.RootOnly = true
		} else {
			parentID, err := uuid.Parse(v)
			if err != nil {
				http.Error(w, "Invalid parent ID", http.StatusBadRequest)
				return
			}
			filters.ParentID = &parentID
		}
	}
	if v := q.Get("status"); v != "" {
		status := simplepublish.UnitStatus(v)
		filters.Status = &status
	}
	filters.VisibleOnly = q.Get("visible") == "true"
	filters.IncludeArchived = q.Get("include_archived") == "true"

	units, err := h.service.ListUnits(r.Context(), simplepublish.ListUnitsRequest{
		Filters: filters,
		View:    view,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]UnitResponse, 0, len(units))
	for _, unit := range units {
		resp = append(resp, toUnitResponse(unit, view))
	}
	render.JSON(w, r, resp)
}

// UpdateDraft applies a partial edit to a unit's draft content
func (h *UnitHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req UpdateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	unit, err := h.service.UpdateDraft(r.Context(), simplepublish.UpdateDraftRequest{
		ID:      id,
		Patch:   req.Patch,
		Visible: req.Visible,
		Actor:   ActorFromContext(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Draft updated", "unit_id", id.String())
	render.JSON(w, r, toUnitResponse(unit, simplepublish.ViewDraft))
}

// PublishUnit makes a unit's draft content live
// Query parameters:
//   - cascade=true: also publish child units (best effort)
func (h *UnitHandler) PublishUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	cascade := r.URL.Query().Get("cascade") == "true"

	result, err := h.service.Publish(r.Context(), simplepublish.PublishRequest{
		ID:      id,
		Actor:   ActorFromContext(r.Context()),
		Cascade: cascade,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := PublishResponse{Unit: toUnitResponse(result.Unit, simplepublish.ViewPublished)}
	for _, child := range result.Children {
		resp.Children = append(resp.Children, toUnitResponse(child, simplepublish.ViewPublished))
	}
	for _, failure := range result.Failures {
		resp.Failures = append(resp.Failures, FailureResponse{
			UnitID: failure.UnitID.String(),
			Error:  failure.Err.Error(),
		})
	}

	slog.Info("Unit published",
		"unit_id", id.String(),
		"version", result.Unit.Version,
		"cascade", cascade,
		"failures", len(result.Failures))
	render.JSON(w, r, resp)
}

// ArchiveUnit retires a unit from its public surface
func (h *UnitHandler) ArchiveUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	unit, err := h.service.Archive(r.Context(), id, ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Unit archived", "unit_id", id.String())
	render.JSON(w, r, toUnitResponse(unit, simplepublish.ViewDraft))
}

// UnarchiveUnit returns an archived unit to draft status
func (h *UnitHandler) UnarchiveUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	unit, err := h.service.Unarchive(r.Context(), id, ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Unit unarchived", "unit_id", id.String())
	render.JSON(w, r, toUnitResponse(unit, simplepublish.ViewDraft))
}

// RestoreUnit copies a historical snapshot into the unit's draft slot
func (h *UnitHandler) RestoreUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	unit, err := h.service.Restore(r.Context(), simplepublish.RestoreRequest{
		ID:            id,
		TargetVersion: req.Version,
		Actor:         ActorFromContext(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Unit restored", "unit_id", id.String(), "target_version", req.Version)
	render.JSON(w, r, toUnitResponse(unit, simplepublish.ViewDraft))
}

// Reorder atomically applies a batch of sibling order changes
func (h *UnitHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	scope := simplepublish.ReorderScope{Kind: simplepublish.UnitKind(req.Kind)}
	if req.ParentID != "" {
		parentID, err := uuid.Parse(req.ParentID)
		if err != nil {
			http.Error(w, "Invalid parent ID", http.StatusBadRequest)
			return
		}
		scope.ParentID = &parentID
	}

	orders := make([]simplepublish.UnitOrder, 0, len(req.Orders))
	for _, o := range req.Orders {
		unitID, err := uuid.Parse(o.ID)
		if err != nil {
			http.Error(w, "Invalid unit ID in reorder batch", http.StatusBadRequest)
			return
		}
		orders = append(orders, simplepublish.UnitOrder{ID: unitID, OrderIndex: o.OrderIndex})
	}

	err := h.service.Reorder(r.Context(), simplepublish.ReorderRequest{
		Scope:  scope,
		Orders: orders,
		Actor:  ActorFromContext(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Units reordered", "kind", req.Kind, "count", len(orders))
	w.WriteHeader(http.StatusNoContent)
}

// DeleteUnit deletes a content unit
// Query parameters:
//   - cascade=true: also delete child units
func (h *UnitHandler) DeleteUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	cascade := r.URL.Query().Get("cascade") == "true"

	err := h.service.Delete(r.Context(), simplepublish.DeleteRequest{
		ID:      id,
		Actor:   ActorFromContext(r.Context()),
		Cascade: cascade,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Unit deleted", "unit_id", id.String(), "cascade", cascade)
	w.WriteHeader(http.StatusNoContent)
}

// ListVersions lists a unit's version snapshots, newest first
func (h *UnitHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	snapshots, err := h.service.ListVersions(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]VersionResponse, 0, len(snapshots))
	for _, snap := range snapshots {
		resp = append(resp, toVersionResponse(snap))
	}
	render.JSON(w, r, resp)
}

// GetVersion retrieves a single version snapshot of a unit
func (h *UnitHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}

	snap, err := h.service.GetVersion(r.Context(), id, version)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, toVersionResponse(snap))
}

// ListAudit lists a unit's audit log entries, newest first
func (h *UnitHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.ListAudit(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, toAuditResponse(entry))
	}
	render.JSON(w, r, resp)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		slog.Error("Invalid unit ID", "unit_id", idStr, "error", err)
		http.Error(w, "Invalid unit ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
