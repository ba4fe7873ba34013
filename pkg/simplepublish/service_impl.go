package simplepublish

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository Repository
	validator  ContentValidator
	clock      Clock
	eventSink  EventSink
	retention  HistoryRetention
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithValidator sets the per-kind content validator for the service
func WithValidator(v ContentValidator) Option {
	return func(s *service) {
		s.validator = v
	}
}

// WithClock sets the clock for the service
func WithClock(clock Clock) Option {
	return func(s *service) {
		s.clock = clock
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithHistoryRetention sets the history retention policy applied on delete
func WithHistoryRetention(policy HistoryRetention) Option {
	return func(s *service) {
		s.retention = policy
	}
}

// New creates a new service instance with the given options. A repository
// and a content validator are required.
func New(options ...Option) (Service, error) {
	s := &service{
		clock:     systemClock{},
		retention: HistoryRetain,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.validator == nil {
		return nil, fmt.Errorf("content validator is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}

	return s, nil
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

func validateSlug(kind UnitKind, slug string) error {
	verr := &ValidationError{Kind: kind}
	if len(slug) < 3 || len(slug) > 64 {
		verr.Add("slug", "must be between 3 and 64 characters")
	} else if !slugPattern.MatchString(slug) {
		verr.Add("slug", "must contain only lowercase letters, digits, and hyphens")
	}
	if verr.HasViolations() {
		return verr
	}
	return nil
}

// Unit operations

func (s *service) CreateUnit(ctx context.Context, req CreateUnitRequest) (*ContentUnit, error) {
	if !ValidKind(req.Kind) {
		return nil, ErrInvalidKind
	}
	if err := validateSlug(req.Kind, req.Slug); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateContent(req.Kind, req.Draft); err != nil {
		return nil, err
	}

	if req.ParentID != nil {
		if _, err := s.repository.GetUnit(ctx, *req.ParentID); err != nil {
			return nil, fmt.Errorf("parent unit not found: %w", err)
		}
	}

	orderIndex := 0
	if req.OrderIndex != nil {
		orderIndex = *req.OrderIndex
	} else {
		next, err := s.repository.NextOrderIndex(ctx, req.Kind, req.ParentID)
		if err != nil {
			return nil, err
		}
		orderIndex = next
	}

	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}

	now := s.clock.Now()
	unit := &ContentUnit{
		ID:         uuid.New(),
		ParentID:   req.ParentID,
		Kind:       req.Kind,
		Slug:       req.Slug,
		OrderIndex: orderIndex,
		Visible:    visible,
		Status:     StatusDraft,
		Version:    0,
		Draft:      req.Draft.Clone(),
		UpdatedBy:  req.Actor,
		UpdatedAt:  now,
		CreatedAt:  now,
	}

	version := unit.Version
	audit := AuditParams{
		Actor:     req.Actor,
		Action:    ActionCreate,
		ToVersion: &version,
		At:        now,
	}
	if err := s.repository.CreateUnit(ctx, unit, audit); err != nil {
		return nil, err
	}

	// Fire event; failures never undo the committed write
	_ = s.eventSink.UnitCreated(ctx, unit)

	return unit, nil
}

func (s *service) UpdateDraft(ctx context.Context, req UpdateDraftRequest) (*ContentUnit, error) {
	unit, err := s.repository.GetUnit(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	merged := req.Patch.Apply(unit.Draft)
	if err := s.validator.ValidateContent(unit.Kind, merged); err != nil {
		return nil, err
	}

	unit.Draft = merged
	if req.Visible != nil {
		unit.Visible = *req.Visible
	}
	unit.UpdatedBy = req.Actor
	unit.UpdatedAt = s.clock.Now()

	// Draft edits never advance the version
	version := unit.Version
	audit := AuditParams{
		Actor:     req.Actor,
		Action:    ActionUpdate,
		ToVersion: &version,
		At:        unit.UpdatedAt,
	}
	if err := s.repository.UpdateUnit(ctx, unit, audit); err != nil {
		return nil, &UnitError{UnitID: unit.ID, Op: "update_draft", Err: err}
	}

	_ = s.eventSink.UnitUpdated(ctx, unit)

	return unit, nil
}

func (s *service) GetUnit(ctx context.Context, id uuid.UUID, view UnitView) (*ContentUnit, error) {
	return s.repository.GetUnit(ctx, id)
}

func (s *service) GetUnitBySlug(ctx context.Context, kind UnitKind, slug string, view UnitView) (*ContentUnit, error) {
	if !ValidKind(kind) {
		return nil, ErrInvalidKind
	}
	return s.repository.GetUnitBySlug(ctx, kind, slug)
}

func (s *service) ListUnits(ctx context.Context, req ListUnitsRequest) ([]*ContentUnit, error) {
	return s.repository.ListUnits(ctx, req.Filters)
}

// Publishing workflow

func (s *service) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	unit, err := s.repository.GetUnit(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	published, err := s.repository.CommitPublish(ctx, CommitPublishParams{
		UnitID:          unit.ID,
		ExpectedVersion: unit.Version,
		Actor:           req.Actor,
		At:              s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	_ = s.eventSink.UnitPublished(ctx, published)

	result := &PublishResult{Unit: published}
	if !req.Cascade {
		return result, nil
	}

	// Cascade is best-effort across children: each child publishes in its
	// own atomic group, and a failure never undoes committed siblings.
	children, err := s.repository.ListChildren(ctx, unit.ID)
	if err != nil {
		return result, err
	}
	for _, child := range children {
		committed, err := s.repository.CommitPublish(ctx, CommitPublishParams{
			UnitID:          child.ID,
			ExpectedVersion: child.Version,
			Actor:           req.Actor,
			At:              s.clock.Now(),
		})
		if err != nil {
			result.Failures = append(result.Failures, CascadeFailure{UnitID: child.ID, Err: err})
			continue
		}
		result.Children = append(result.Children, committed)
		_ = s.eventSink.UnitPublished(ctx, committed)
	}

	return result, nil
}

func (s *service) Archive(ctx context.Context, id uuid.UUID, actor string) (*ContentUnit, error) {
	unit, err := s.repository.GetUnit(ctx, id)
	if err != nil {
		return nil, err
	}

	unit.Status = StatusArchived
	unit.Visible = false
	unit.UpdatedBy = actor
	unit.UpdatedAt = s.clock.Now()

	version := unit.Version
	audit := AuditParams{
		Actor:     actor,
		Action:    ActionArchive,
		ToVersion: &version,
		At:        unit.UpdatedAt,
	}
	if err := s.repository.UpdateUnit(ctx, unit, audit); err != nil {
		return nil, &UnitError{UnitID: unit.ID, Op: "archive", Err: err}
	}

	_ = s.eventSink.UnitUpdated(ctx, unit)

	return unit, nil
}

func (s *service) Unarchive(ctx context.Context, id uuid.UUID, actor string) (*ContentUnit, error) {
	unit, err := s.repository.GetUnit(ctx, id)
	if err != nil {
		return nil, err
	}

	// Reactivation lands back in draft; republishing is an explicit step.
	unit.Status = StatusDraft
	unit.UpdatedBy = actor
	unit.UpdatedAt = s.clock.Now()

	version := unit.Version
	audit := AuditParams{
		Actor:     actor,
		Action:    ActionUpdate,
		ToVersion: &version,
		At:        unit.UpdatedAt,
	}
	if err := s.repository.UpdateUnit(ctx, unit, audit); err != nil {
		return nil, &UnitError{UnitID: unit.ID, Op: "unarchive", Err: err}
	}

	_ = s.eventSink.UnitUpdated(ctx, unit)

	return unit, nil
}

func (s *service) Restore(ctx context.Context, req RestoreRequest) (*ContentUnit, error) {
	unit, err := s.repository.GetUnit(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.repository.GetSnapshot(ctx, unit.ID, req.TargetVersion)
	if err != nil {
		return nil, err
	}

	// Restoring is a drafting action: the published slot and the version
	// stay untouched until the next publish.
	unit.Draft = snapshot.Snapshot.Clone()
	unit.UpdatedBy = req.Actor
	unit.UpdatedAt = s.clock.Now()

	from := snapshot.Version
	to := unit.Version
	audit := AuditParams{
		Actor:       req.Actor,
		Action:      ActionRestore,
		FromVersion: &from,
		ToVersion:   &to,
		At:          unit.UpdatedAt,
	}
	if err := s.repository.UpdateUnit(ctx, unit, audit); err != nil {
		return nil, &UnitError{UnitID: unit.ID, Op: "restore", Err: err}
	}

	_ = s.eventSink.UnitRestored(ctx, unit, snapshot.Version)

	return unit, nil
}

// Ordering

func (s *service) Reorder(ctx context.Context, req ReorderRequest) error {
	if !ValidKind(req.Scope.Kind) {
		return ErrInvalidKind
	}
	if len(req.Orders) == 0 {
		return fmt.Errorf("%w: empty batch", ErrReorderConflict)
	}

	seenIDs := make(map[uuid.UUID]struct{}, len(req.Orders))
	seenIndexes := make(map[int]struct{}, len(req.Orders))
	for _, order := range req.Orders {
		if _, dup := seenIDs[order.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrReorderConflict, order.ID)
		}
		if _, dup := seenIndexes[order.OrderIndex]; dup {
			return fmt.Errorf("%w: duplicate order index %d", ErrReorderConflict, order.OrderIndex)
		}
		seenIDs[order.ID] = struct{}{}
		seenIndexes[order.OrderIndex] = struct{}{}
	}

	return s.repository.ApplyReorder(ctx, ReorderParams{
		Scope:  req.Scope,
		Orders: req.Orders,
		Actor:  req.Actor,
		At:     s.clock.Now(),
	})
}

// History

func (s *service) ListVersions(ctx context.Context, id uuid.UUID) ([]*VersionSnapshot, error) {
	return s.repository.ListSnapshots(ctx, id)
}

func (s *service) GetVersion(ctx context.Context, id uuid.UUID, version int) (*VersionSnapshot, error) {
	return s.repository.GetSnapshot(ctx, id, version)
}

func (s *service) ListAudit(ctx context.Context, id uuid.UUID) ([]*AuditEntry, error) {
	return s.repository.ListAudit(ctx, id)
}

// Delete

func (s *service) Delete(ctx context.Context, req DeleteRequest) error {
	unit, err := s.repository.GetUnit(ctx, req.ID)
	if err != nil {
		return err
	}

	err = s.repository.DeleteUnit(ctx, DeleteUnitParams{
		UnitID:       unit.ID,
		Actor:        req.Actor,
		Cascade:      req.Cascade,
		PurgeHistory: s.retention == HistoryPurge,
		At:           s.clock.Now(),
	})
	if err != nil {
		return err
	}

	_ = s.eventSink.UnitDeleted(ctx, unit.ID)

	return nil
}
