package simplepublish

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// UnitKind is the domain type for the kinds of content units the engine
// manages. The engine never interprets a kind beyond schema validation.
type UnitKind string

// Unit kind constants (typed).
const (
	KindSection  UnitKind = "section"
	KindCard     UnitKind = "card"
	KindArticle  UnitKind = "article"
	KindCategory UnitKind = "category"
	KindTag      UnitKind = "tag"
)

// Kinds returns all unit kinds known to the engine.
func Kinds() []UnitKind {
	return []UnitKind{KindSection, KindCard, KindArticle, KindCategory, KindTag}
}

// ValidKind reports whether k is one of the known unit kinds.
func ValidKind(k UnitKind) bool {
	switch k {
	case KindSection, KindCard, KindArticle, KindCategory, KindTag:
		return true
	}
	return false
}

// UnitStatus is the domain type for unit lifecycle states.
type UnitStatus string

// Unit status constants (typed).
const (
	StatusDraft     UnitStatus = "draft"
	StatusPublished UnitStatus = "published"
	StatusArchived  UnitStatus = "archived"
)

// UnitView selects which content slot of a unit is exposed to the caller.
type UnitView string

// Unit view constants (typed).
const (
	ViewDraft     UnitView = "draft"
	ViewPublished UnitView = "published"
)

// AuditAction is the domain type for recorded mutations.
type AuditAction string

// Audit action constants (typed).
const (
	ActionCreate  AuditAction = "create"
	ActionUpdate  AuditAction = "update"
	ActionReorder AuditAction = "reorder"
	ActionPublish AuditAction = "publish"
	ActionArchive AuditAction = "archive"
	ActionRestore AuditAction = "restore"
	ActionDelete  AuditAction = "delete"
)

// MediaRef is a reference to an externally stored media asset. The engine
// only models the reference; storage itself is out of scope.
type MediaRef struct {
	URL string `json:"url,omitempty"`
	Alt string `json:"alt,omitempty"`
}

// CallToAction is an optional action link inside a content payload.
type CallToAction struct {
	Label string `json:"label,omitempty"`
	Href  string `json:"href,omitempty"`
	Style string `json:"style,omitempty"`
}

// Content is the structured, schema-validated payload of a content unit.
//
// First-class fields cover the common attributes shared by all kinds; Theme
// and Extra hold open-ended layout hints and kind-specific attributes that
// the engine stores opaquely after validation.
type Content struct {
	Title    string                 `json:"title,omitempty"`
	Subtitle string                 `json:"subtitle,omitempty"`
	Body     string                 `json:"body,omitempty"`
	Media    *MediaRef              `json:"media,omitempty"`
	CTA      *CallToAction          `json:"cta,omitempty"`
	Badges   []string               `json:"badges,omitempty"`
	Layout   string                 `json:"layout,omitempty"`
	Theme    map[string]interface{} `json:"theme,omitempty"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
}

// Clone returns a deep copy of the content payload.
func (c Content) Clone() Content {
	out := c
	if c.Media != nil {
		m := *c.Media
		out.Media = &m
	}
	if c.CTA != nil {
		cta := *c.CTA
		out.CTA = &cta
	}
	if c.Badges != nil {
		out.Badges = append([]string(nil), c.Badges...)
	}
	if c.Theme != nil {
		out.Theme = cloneMap(c.Theme)
	}
	if c.Extra != nil {
		out.Extra = cloneMap(c.Extra)
	}
	return out
}

// Equal reports whether two content payloads are deeply equal.
func (c Content) Equal(other Content) bool {
	return reflect.DeepEqual(c, other)
}

func cloneMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ContentPatch is a partial content update. Nil fields are left untouched;
// set fields replace the corresponding draft field wholesale. The merged
// result is validated before anything is persisted.
type ContentPatch struct {
	Title    *string                `json:"title,omitempty"`
	Subtitle *string                `json:"subtitle,omitempty"`
	Body     *string                `json:"body,omitempty"`
	Media    *MediaRef              `json:"media,omitempty"`
	CTA      *CallToAction          `json:"cta,omitempty"`
	Badges   []string               `json:"badges,omitempty"`
	Layout   *string                `json:"layout,omitempty"`
	Theme    map[string]interface{} `json:"theme,omitempty"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
}

// Apply merges the patch onto base and returns the merged payload. Base is
// not modified.
func (p ContentPatch) Apply(base Content) Content {
	merged := base.Clone()
	if p.Title != nil {
		merged.Title = *p.Title
	}
	if p.Subtitle != nil {
		merged.Subtitle = *p.Subtitle
	}
	if p.Body != nil {
		merged.Body = *p.Body
	}
	if p.Media != nil {
		m := *p.Media
		merged.Media = &m
	}
	if p.CTA != nil {
		cta := *p.CTA
		merged.CTA = &cta
	}
	if p.Badges != nil {
		merged.Badges = append([]string(nil), p.Badges...)
	}
	if p.Layout != nil {
		merged.Layout = *p.Layout
	}
	if p.Theme != nil {
		merged.Theme = cloneMap(p.Theme)
	}
	if p.Extra != nil {
		merged.Extra = cloneMap(p.Extra)
	}
	return merged
}

// ContentUnit represents a draft/published-capable content entity.
//
// Draft is always present and editable; Published is nil until the first
// publish and afterwards holds the content last made live. Version is
// monotonic and only ever advanced by a successful publish.
type ContentUnit struct {
	ID          uuid.UUID  `json:"id"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	Kind        UnitKind   `json:"kind"`
	Slug        string     `json:"slug"`
	OrderIndex  int        `json:"order_index"`
	Visible     bool       `json:"visible"`
	Status      UnitStatus `json:"status"`
	Version     int        `json:"version"`
	Draft       Content    `json:"draft"`
	Published   *Content   `json:"published,omitempty"`
	UpdatedBy   string     `json:"updated_by,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedBy string     `json:"published_by,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ContentForView returns the content slot selected by view. For the
// published view of a never-published unit it returns nil.
func (u *ContentUnit) ContentForView(view UnitView) *Content {
	if view == ViewPublished {
		return u.Published
	}
	draft := u.Draft
	return &draft
}

// HasUnpublishedChanges reports whether the draft has diverged from what is
// currently live. A never-published unit with a non-empty draft counts as
// having unpublished changes.
func (u *ContentUnit) HasUnpublishedChanges() bool {
	if u.Published == nil {
		return !u.Draft.Equal(Content{})
	}
	return !u.Draft.Equal(*u.Published)
}

// VersionSnapshot is an immutable copy of a unit's content captured at a
// publish boundary. Snapshots for a given entity are append-only and
// strictly increasing in version.
type VersionSnapshot struct {
	ID        uuid.UUID `json:"id"`
	EntityID  uuid.UUID `json:"entity_id"`
	Kind      UnitKind  `json:"entity_kind"`
	Version   int       `json:"version"`
	Snapshot  Content   `json:"snapshot"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditEntry is an immutable record of a mutating operation. Entries are
// never updated or deleted outside of an explicit history purge.
type AuditEntry struct {
	ID          uuid.UUID   `json:"id"`
	Actor       string      `json:"actor"`
	Kind        UnitKind    `json:"entity_kind"`
	EntityID    uuid.UUID   `json:"entity_id"`
	Action      AuditAction `json:"action"`
	FromVersion *int        `json:"from_version,omitempty"`
	ToVersion   *int        `json:"to_version,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// UnitListFilters defines filtering options for listing content units.
// Results are always ordered by OrderIndex ascending.
type UnitListFilters struct {
	Kind            *UnitKind
	ParentID        *uuid.UUID
	RootOnly        bool // only units without a parent
	Status          *UnitStatus
	VisibleOnly     bool
	IncludeArchived bool
}
