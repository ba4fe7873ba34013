package simplepublish_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-publish/pkg/simplepublish"
	"github.com/tendant/simple-publish/pkg/simplepublish/repo/memory"
	"github.com/tendant/simple-publish/pkg/simplepublish/schema"
)

func newTestService(t *testing.T, extra ...simplepublish.Option) simplepublish.Service {
	t.Helper()
	options := append([]simplepublish.Option{
		simplepublish.WithRepository(memory.New()),
		simplepublish.WithValidator(schema.New()),
	}, extra...)
	svc, err := simplepublish.New(options...)
	require.NoError(t, err)
	return svc
}

func createUnit(t *testing.T, svc simplepublish.Service, kind simplepublish.UnitKind, slug string, parentID *uuid.UUID) *simplepublish.ContentUnit {
	t.Helper()
	unit, err := svc.CreateUnit(context.Background(), simplepublish.CreateUnitRequest{
		Kind:     kind,
		Slug:     slug,
		ParentID: parentID,
		Draft:    simplepublish.Content{Title: "Title for " + slug},
		Actor:    "tester",
	})
	require.NoError(t, err)
	return unit
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []simplepublish.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []simplepublish.Option{},
			expectError: true,
		},
		{
			name: "missing validator should fail",
			options: []simplepublish.Option{
				simplepublish.WithRepository(memory.New()),
			},
			expectError: true,
		},
		{
			name: "repository and validator should succeed",
			options: []simplepublish.Option{
				simplepublish.WithRepository(memory.New()),
				simplepublish.WithValidator(schema.New()),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := simplepublish.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestCreateUnit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	t.Run("new unit starts as draft at version zero", func(t *testing.T) {
		unit, err := svc.CreateUnit(ctx, simplepublish.CreateUnitRequest{
			Kind:  simplepublish.KindSection,
			Slug:  "hero-1",
			Draft: simplepublish.Content{Title: "Welcome", Layout: "hero"},
			Actor: "alice",
		})
		require.NoError(t, err)

		assert.Equal(t, simplepublish.StatusDraft, unit.Status)
		assert.Equal(t, 0, unit.Version)
		assert.True(t, unit.Visible)
		assert.Nil(t, unit.Published)
		assert.Equal(t, "alice", unit.UpdatedBy)

		entries, err := svc.ListAudit(ctx, unit.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, simplepublish.ActionCreate, entries[0].Action)
		assert.Equal(t, "alice", entries[0].Actor)
	})

	t.Run("invalid kind is rejected", func(t *testing.T) {
		_, err := svc.CreateUnit(ctx, simplepublish.CreateUnitRequest{
			Kind:  simplepublish.UnitKind("banner"),
			Slug:  "some-slug",
			Actor: "alice",
		})
		assert.ErrorIs(t, err, simplepublish.ErrInvalidKind)
	})

	t.Run("invalid slug is rejected", func(t *testing.T) {
		for _, slug := range []string{"ab", "Has-Upper", "under_score", "trailing-", "-leading"} {
			_, err := svc.CreateUnit(ctx, simplepublish.CreateUnitRequest{
				Kind:  simplepublish.KindCard,
				Slug:  slug,
				Actor: "alice",
			})
			var verr *simplepublish.ValidationError
			assert.ErrorAs(t, err, &verr, "slug %q should be rejected", slug)
		}
	})

	t.Run("duplicate slug within a kind conflicts", func(t *testing.T) {
		createUnit(t, svc, simplepublish.KindCard, "pricing-card", nil)
		_, err := svc.CreateUnit(ctx, simplepublish.CreateUnitRequest{
			Kind:  simplepublish.KindCard,
			Slug:  "pricing-card",
			Actor: "alice",
		})
		assert.ErrorIs(t, err, simplepublish.ErrSlugConflict)
	})

	t.Run("same slug under a different kind is allowed", func(t *testing.T) {
		createUnit(t, svc, simplepublish.KindSection, "shared-slug", nil)
		unit := createUnit(t, svc, simplepublish.KindCard, "shared-slug", nil)
		assert.Equal(t, "shared-slug", unit.Slug)
	})

	t.Run("unknown parent is rejected", func(t *testing.T) {
		missing := uuid.New()
		_, err := svc.CreateUnit(ctx, simplepublish.CreateUnitRequest{
			Kind:     simplepublish.KindCard,
			Slug:     "orphan-card",
			ParentID: &missing,
			Actor:    "alice",
		})
		assert.ErrorIs(t, err, simplepublish.ErrUnitNotFound)
	})

	t.Run("siblings are appended in order", func(t *testing.T) {
		parent := createUnit(t, svc, simplepublish.KindSection, "ordered-parent", nil)
		first := createUnit(t, svc, simplepublish.KindCard, "ordered-a", &parent.ID)
		second := createUnit(t, svc, simplepublish.KindCard, "ordered-b", &parent.ID)
		third := createUnit(t, svc, simplepublish.KindCard, "ordered-c", &parent.ID)

		assert.Equal(t, first.OrderIndex+1, second.OrderIndex)
		assert.Equal(t, second.OrderIndex+1, third.OrderIndex)
	})
}

func TestGetUnitBySlug(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	created := createUnit(t, svc, simplepublish.KindArticle, "launch-notes", nil)

	unit, err := svc.GetUnitBySlug(ctx, simplepublish.KindArticle, "launch-notes", simplepublish.ViewDraft)
	require.NoError(t, err)
	assert.Equal(t, created.ID, unit.ID)

	_, err = svc.GetUnitBySlug(ctx, simplepublish.KindCard, "launch-notes", simplepublish.ViewDraft)
	assert.ErrorIs(t, err, simplepublish.ErrUnitNotFound)

	_, err = svc.GetUnitBySlug(ctx, simplepublish.UnitKind("banner"), "launch-notes", simplepublish.ViewDraft)
	assert.ErrorIs(t, err, simplepublish.ErrInvalidKind)
}

func TestUpdateDraft(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	t.Run("patch merges onto the draft without advancing the version", func(t *testing.T) {
		unit := createUnit(t, svc, simplepublish.KindCard, "update-target", nil)

		subtitle := "New subtitle"
		updated, err := svc.UpdateDraft(ctx, simplepublish.UpdateDraftRequest{
			ID:    unit.ID,
			Patch: simplepublish.ContentPatch{Subtitle: &subtitle},
			Actor: "bob",
		})
		require.NoError(t, err)

		assert.Equal(t, unit.Draft.Title, updated.Draft.Title, "untouched fields survive the patch")
		assert.Equal(t, "New subtitle", updated.Draft.Subtitle)
		assert.Equal(t, unit.Version, updated.Version)
		assert.Equal(t, "bob", updated.UpdatedBy)
	})

	t.Run("invalid merged payload is rejected and nothing is persisted", func(t *testing.T) {
		unit := createUnit(t, svc, simplepublish.KindTag, "valid-tag", nil)

		empty := ""
		_, err := svc.UpdateDraft(ctx, simplepublish.UpdateDraftRequest{
			ID:    unit.ID,
			Patch: simplepublish.ContentPatch{Title: &empty},
			Actor: "bob",
		})
		var verr *simplepublish.ValidationError
		require.ErrorAs(t, err, &verr)

		current, err := svc.GetUnit(ctx, unit.ID, simplepublish.ViewDraft)
		require.NoError(t, err)
		assert.Equal(t, unit.Draft.Title, current.Draft.Title)
	})

	t.Run("draft edits never leak into the published slot", func(t *testing.T) {
		unit := createUnit(t, svc, simplepublish.KindCard, "leak-check", nil)
		_, err := svc.Publish(ctx, simplepublish.PublishRequest{ID: unit.ID, Actor: "bob"})
		require.NoError(t, err)

		title := "Edited after publish"
		_, err = svc.UpdateDraft(ctx, simplepublish.UpdateDraftRequest{
			ID:    unit.ID,
			Patch: simplepublish.ContentPatch{Title: &title},
			Actor: "bob",
		})
		require.NoError(t, err)

		current, err := svc.GetUnit(ctx, unit.ID, simplepublish.ViewPublished)
		require.NoError(t, err)
		require.NotNil(t, current.Published)
		assert.Equal(t, unit.Draft.Title, current.Published.Title)
		assert.Equal(t, "Edited after publish", current.Draft.Title)
		assert.True(t, current.HasUnpublishedChanges())
	})

	t.Run("missing unit", func(t *testing.T) {
		_, err := svc.UpdateDraft(ctx, simplepublish.UpdateDraftRequest{ID: uuid.New(), Actor: "bob"})
		assert.ErrorIs(t, err, simplepublish.ErrUnitNotFound)
	})
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	t.Run("publish copies the draft and advances the version", func(t *testing.T) {
		unit := createUnit(t, svc, simplepublish.KindSection, "publish-basic", nil)

		result, err := svc.Publish(ctx, simplepublish.PublishRequest{ID: unit.ID, Actor: "carol"})
		require.NoError(t, err)

		published := result.Unit
		assert.Equal(t, 1, published.Version)
		assert.Equal(t, simplepublish.StatusPublished, published.Status)
		require.NotNil(t, published.Published)
		assert.True(t, published.Draft.Equal(*published.Published))
		assert.Equal(t, "carol", published.PublishedBy)
		require.NotNil(t, published.PublishedAt)

		snap, err := svc.GetVersion(ctx, unit.ID, 1)
		require.NoError(t, err)
		assert.True(t, snap.Snapshot.Equal(*published.Published))
	})

	t.Run("republishing identical content still produces a new version", func(t *testing.T) {
		unit := createUnit(t, svc, simplepublish.KindSection, "publish-idempotent", nil)

		for i := 1; i <= 2; i++ {
			result, err := svc.Publish(ctx, simplepublish.PublishRequest{ID: unit.ID, Actor: "carol"})
			require.NoError(t, err)
			assert.Equal(t, i, result.Unit.Version)
		}

		snapshots, err := svc.ListVersions(ctx, unit.ID)
		require.NoError(t, err)
		require.Len(t, snapshots, 2)
		assert.Equal(t, 2, snapshots[0].Version, "most recent first")
		assert.Equal(t, 1, snapshots[1].Version)
		assert.True(t, snapshots[0].Snapshot.Equal(snapshots[1].Snapshot))
	})

	t.Run("audit records the version transition", func(t *testing.T) {
		unit := createUnit(t, svc, simplepublish.KindSection, "publish-audit", nil)

		_, err := svc.Publish(ctx, simplepublish.PublishRequest{ID: unit.ID, Actor: "carol"})
		require.NoError(t, err)

		entries, err := svc.ListAudit(ctx, unit.ID)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		latest := entries[0]
		assert.Equal(t, simplepublish.ActionPublish, latest.Action)
		require.NotNil(t, latest.FromVersion)
		require.NotNil(t, latest.ToVersion)
		assert.Equal(t, 0, *latest.FromVersion)
		assert.Equal(t, 1, *latest.ToVersion)
	})

	t.Run("missing unit", func(t *testing.T) {
		_, err := svc.Publish(ctx, simplepublish.PublishRequest{ID: uuid.New(), Actor: "carol"})
		assert.ErrorIs(t, err, simplepublish.ErrUnitNotFound)
	})
}

func TestPublishCascade(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	parent := createUnit(t, svc, simplepublish.KindSection, "cascade-parent", nil)
	childA := createUnit(t, svc, simplepublish.KindCard, "cascade-child-a", &parent.ID)
	childB := createUnit(t, svc, simplepublish.KindCard, "cascade-child-b", &parent.ID)

	result, err := svc.Publish(ctx, simplepublish.PublishRequest{ID: parent.ID, Actor: "carol", Cascade: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Unit.Version)
	assert.Len(t, result.Children, 2)
	assert.Empty(t, result.Failures)

	for _, id := range []uuid.UUID{childA.ID, childB.ID} {
		child, err := svc.GetUnit(ctx, id, simplepublish.ViewPublished)
		require.NoError(t, err)
		assert.Equal(t, 1, child.Version)
		assert.Equal(t, simplepublish.StatusPublished, child.Status)
	}
}

func TestConcurrentPublish(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	unit := createUnit(t, svc, simplepublish.KindSection, "publish-race", nil)

	const publishers = 8
	var wg sync.WaitGroup
	errs := make([]error, publishers)
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Publish(ctx, simplepublish.PublishRequest{
				ID:    unit.ID,
				Actor: fmt.Sprintf("racer-%d", i),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, simplepublish.ErrPublishConflict)
	}
	require.Greater(t, succeeded, 0)

	// Every successful publish advanced the version by exactly one; no loser
	// was silently serialized behind a winner.
	current, err := svc.GetUnit(ctx, unit.ID, simplepublish.ViewDraft)
	require.NoError(t, err)
	assert.Equal(t, succeeded, current.Version)

	snapshots, err := svc.ListVersions(ctx, unit.ID)
	require.NoError(t, err)
	assert.Len(t, snapshots, succeeded)
}

func TestArchiveAndUnarchive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	unit := createUnit(t, svc, simplepublish.KindSection, "archive-target", nil)
	_, err := svc.Publish(ctx, simplepublish.PublishRequest{ID: unit.ID, Actor: "dave"})
	require.NoError(t, err)

	archived, err := svc.Archive(ctx, unit.ID, "dave")
	require.NoError(t, err)
	assert.Equal(t, simplepublish.StatusArchived, archived.Status)
	assert.False(t, archived.Visible)
	assert.Equal(t, 1, archived.Version, "archive never touches the version")

	// History survives archival
	snapshots, err := svc.ListVersions(ctx, unit.ID)
	require.NoError(t, err)
	assert.Len(t, snapshots, 1)

	// Archived units drop out of default listings
	units, err := svc.ListUnits(ctx, simplepublish.ListUnitsRequest{})
	require.NoError(t, err)
	for _, u := range units {
		assert.NotEqual(t, unit.ID, u.ID)
	}

	restored, err := svc.Unarchive(ctx, unit.ID, "dave")
	require.NoError(t, err)
	assert.Equal(t, simplepublish.StatusDraft, restored.Status)
	assert.Equal(t, 1, restored.Version)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	unit := createUnit(t, svc, simplepublish.KindArticle, "restore-target", nil)
	_, err := svc.Publish(ctx, simplepublish.PublishRequest{ID: unit.ID, Actor: "erin"})
	require.NoError(t, err)

	v2Title := "Second revision"
	_, err = svc.UpdateDraft(ctx, simplepublish.UpdateDraftRequest{
		ID:    unit.ID,
		Patch: simplepublish.ContentPatch{Title: &v2Title},
		Actor: "erin",
	})
	require.NoError(t, err)
	_, err = svc.Publish(ctx, simplepublish.PublishRequest{ID: unit.ID, Actor: "erin"})
	require.NoError(t, err)

	t.Run("restore copies the snapshot into the draft only", func(t *testing.T) {
		restored, err := svc.Restore(ctx, simplepublish.RestoreRequest{
			ID:            unit.ID,
			TargetVersion: 1,
			Actor:         "erin",
		})
		require.NoError(t, err)

		assert.Equal(t, unit.Draft.Title, restored.Draft.Title)
		assert.Equal(t, 2, restored.Version, "restore never moves the version")
		require.NotNil(t, restored.Published)
		assert.Equal(t, v2Title, restored.Published.Title, "live content is untouched")

		// Restoring writes no snapshot of its own
		snapshots, err := svc.ListVersions(ctx, unit.ID)
		require.NoError(t, err)
		assert.Len(t, snapshots, 2)

		entries, err := svc.ListAudit(ctx, unit.ID)
		require.NoError(t, err)
		latest := entries[0]
		assert.Equal(t, simplepublish.ActionRestore, latest.Action)
		require.NotNil(t, latest.FromVersion)
		assert.Equal(t, 1, *latest.FromVersion)
	})

	t.Run("publishing a restored draft creates a new version", func(t *testing.T) {
		result, err := svc.Publish(ctx, simplepublish.PublishRequest{ID: unit.ID, Actor: "erin"})
		require.NoError(t, err)
		assert.Equal(t, 3, result.Unit.Version)
		assert.Equal(t, unit.Draft.Title, result.Unit.Published.Title)
	})

	t.Run("unknown version", func(t *testing.T) {
		_, err := svc.Restore(ctx, simplepublish.RestoreRequest{
			ID:            unit.ID,
			TargetVersion: 99,
			Actor:         "erin",
		})
		assert.ErrorIs(t, err, simplepublish.ErrVersionNotFound)
	})
}

func TestReorder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	parent := createUnit(t, svc, simplepublish.KindSection, "reorder-parent", nil)
	a := createUnit(t, svc, simplepublish.KindCard, "reorder-a", &parent.ID)
	b := createUnit(t, svc, simplepublish.KindCard, "reorder-b", &parent.ID)
	c := createUnit(t, svc, simplepublish.KindCard, "reorder-c", &parent.ID)

	scope := simplepublish.ReorderScope{Kind: simplepublish.KindCard, ParentID: &parent.ID}

	listOrder := func(t *testing.T) []uuid.UUID {
		t.Helper()
		units, err := svc.ListUnits(ctx, simplepublish.ListUnitsRequest{
			Filters: simplepublish.UnitListFilters{Kind: kindPtr(simplepublish.KindCard), ParentID: &parent.ID},
		})
		require.NoError(t, err)
		ids := make([]uuid.UUID, len(units))
		for i, u := range units {
			ids[i] = u.ID
		}
		return ids
	}

	t.Run("batch applies atomically", func(t *testing.T) {
		err := svc.Reorder(ctx, simplepublish.ReorderRequest{
			Scope: scope,
			Orders: []simplepublish.UnitOrder{
				{ID: c.ID, OrderIndex: 0},
				{ID: a.ID, OrderIndex: 1},
				{ID: b.ID, OrderIndex: 2},
			},
			Actor: "frank",
		})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{c.ID, a.ID, b.ID}, listOrder(t))
	})

	t.Run("unknown id fails the whole batch", func(t *testing.T) {
		before := listOrder(t)
		err := svc.Reorder(ctx, simplepublish.ReorderRequest{
			Scope: scope,
			Orders: []simplepublish.UnitOrder{
				{ID: a.ID, OrderIndex: 0},
				{ID: uuid.New(), OrderIndex: 1},
			},
			Actor: "frank",
		})
		assert.ErrorIs(t, err, simplepublish.ErrUnitNotFound)
		assert.Equal(t, before, listOrder(t), "no order index changed")
	})

	t.Run("duplicate order index is rejected", func(t *testing.T) {
		err := svc.Reorder(ctx, simplepublish.ReorderRequest{
			Scope: scope,
			Orders: []simplepublish.UnitOrder{
				{ID: a.ID, OrderIndex: 0},
				{ID: b.ID, OrderIndex: 0},
			},
			Actor: "frank",
		})
		assert.ErrorIs(t, err, simplepublish.ErrReorderConflict)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		err := svc.Reorder(ctx, simplepublish.ReorderRequest{
			Scope: scope,
			Orders: []simplepublish.UnitOrder{
				{ID: a.ID, OrderIndex: 0},
				{ID: a.ID, OrderIndex: 1},
			},
			Actor: "frank",
		})
		assert.ErrorIs(t, err, simplepublish.ErrReorderConflict)
	})

	t.Run("unit outside the scope is rejected", func(t *testing.T) {
		outsider := createUnit(t, svc, simplepublish.KindCard, "reorder-outsider", nil)
		before := listOrder(t)
		err := svc.Reorder(ctx, simplepublish.ReorderRequest{
			Scope: scope,
			Orders: []simplepublish.UnitOrder{
				{ID: a.ID, OrderIndex: 5},
				{ID: outsider.ID, OrderIndex: 6},
			},
			Actor: "frank",
		})
		assert.ErrorIs(t, err, simplepublish.ErrReorderConflict)
		assert.Equal(t, before, listOrder(t))
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		err := svc.Reorder(ctx, simplepublish.ReorderRequest{Scope: scope, Actor: "frank"})
		assert.ErrorIs(t, err, simplepublish.ErrReorderConflict)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("delete without cascade fails when children exist", func(t *testing.T) {
		svc := newTestService(t)
		parent := createUnit(t, svc, simplepublish.KindSection, "delete-parent", nil)
		createUnit(t, svc, simplepublish.KindCard, "delete-child", &parent.ID)

		err := svc.Delete(ctx, simplepublish.DeleteRequest{ID: parent.ID, Actor: "gina"})
		assert.ErrorIs(t, err, simplepublish.ErrHasChildren)

		_, err = svc.GetUnit(ctx, parent.ID, simplepublish.ViewDraft)
		assert.NoError(t, err, "parent survives the failed delete")
	})

	t.Run("cascade removes the subtree", func(t *testing.T) {
		svc := newTestService(t)
		parent := createUnit(t, svc, simplepublish.KindSection, "cascade-delete", nil)
		child := createUnit(t, svc, simplepublish.KindCard, "cascade-delete-child", &parent.ID)

		err := svc.Delete(ctx, simplepublish.DeleteRequest{ID: parent.ID, Actor: "gina", Cascade: true})
		require.NoError(t, err)

		_, err = svc.GetUnit(ctx, parent.ID, simplepublish.ViewDraft)
		assert.ErrorIs(t, err, simplepublish.ErrUnitNotFound)
		_, err = svc.GetUnit(ctx, child.ID, simplepublish.ViewDraft)
		assert.ErrorIs(t, err, simplepublish.ErrUnitNotFound)
	})

	t.Run("history is retained by default", func(t *testing.T) {
		svc := newTestService(t)
		unit := createUnit(t, svc, simplepublish.KindArticle, "retained-history", nil)
		_, err := svc.Publish(ctx, simplepublish.PublishRequest{ID: unit.ID, Actor: "gina"})
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, simplepublish.DeleteRequest{ID: unit.ID, Actor: "gina"}))

		snapshots, err := svc.ListVersions(ctx, unit.ID)
		require.NoError(t, err)
		assert.Len(t, snapshots, 1)

		entries, err := svc.ListAudit(ctx, unit.ID)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.Equal(t, simplepublish.ActionDelete, entries[0].Action)
	})

	t.Run("purge policy removes history with the unit", func(t *testing.T) {
		svc := newTestService(t, simplepublish.WithHistoryRetention(simplepublish.HistoryPurge))
		unit := createUnit(t, svc, simplepublish.KindArticle, "purged-history", nil)
		_, err := svc.Publish(ctx, simplepublish.PublishRequest{ID: unit.ID, Actor: "gina"})
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, simplepublish.DeleteRequest{ID: unit.ID, Actor: "gina"}))

		snapshots, err := svc.ListVersions(ctx, unit.ID)
		require.NoError(t, err)
		assert.Empty(t, snapshots)

		entries, err := svc.ListAudit(ctx, unit.ID)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("deleted slug becomes reusable", func(t *testing.T) {
		svc := newTestService(t)
		unit := createUnit(t, svc, simplepublish.KindCard, "reused-slug", nil)
		require.NoError(t, svc.Delete(ctx, simplepublish.DeleteRequest{ID: unit.ID, Actor: "gina"}))

		again := createUnit(t, svc, simplepublish.KindCard, "reused-slug", nil)
		assert.NotEqual(t, unit.ID, again.ID)
	})

	t.Run("missing unit", func(t *testing.T) {
		svc := newTestService(t)
		err := svc.Delete(ctx, simplepublish.DeleteRequest{ID: uuid.New(), Actor: "gina"})
		assert.ErrorIs(t, err, simplepublish.ErrUnitNotFound)
	})
}

func TestListUnitsFilters(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	visible := createUnit(t, svc, simplepublish.KindSection, "list-visible", nil)
	hiddenFlag := false
	hidden, err := svc.CreateUnit(ctx, simplepublish.CreateUnitRequest{
		Kind:    simplepublish.KindSection,
		Slug:    "list-hidden",
		Draft:   simplepublish.Content{Title: "Hidden"},
		Visible: &hiddenFlag,
		Actor:   "tester",
	})
	require.NoError(t, err)

	_, err = svc.Publish(ctx, simplepublish.PublishRequest{ID: visible.ID, Actor: "tester"})
	require.NoError(t, err)

	t.Run("visible only", func(t *testing.T) {
		units, err := svc.ListUnits(ctx, simplepublish.ListUnitsRequest{
			Filters: simplepublish.UnitListFilters{VisibleOnly: true},
		})
		require.NoError(t, err)
		for _, u := range units {
			assert.NotEqual(t, hidden.ID, u.ID)
		}
	})

	t.Run("by status", func(t *testing.T) {
		status := simplepublish.StatusPublished
		units, err := svc.ListUnits(ctx, simplepublish.ListUnitsRequest{
			Filters: simplepublish.UnitListFilters{Status: &status},
		})
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, visible.ID, units[0].ID)
	})

	t.Run("root only", func(t *testing.T) {
		parent := createUnit(t, svc, simplepublish.KindSection, "list-parent", nil)
		child := createUnit(t, svc, simplepublish.KindCard, "list-child", &parent.ID)

		units, err := svc.ListUnits(ctx, simplepublish.ListUnitsRequest{
			Filters: simplepublish.UnitListFilters{RootOnly: true},
		})
		require.NoError(t, err)
		for _, u := range units {
			assert.NotEqual(t, child.ID, u.ID)
		}
	})
}

func TestEventSink(t *testing.T) {
	ctx := context.Background()

	sink := &recordingSink{}
	svc := newTestService(t, simplepublish.WithEventSink(sink))

	unit := createUnit(t, svc, simplepublish.KindCard, "event-target", nil)
	_, err := svc.Publish(ctx, simplepublish.PublishRequest{ID: unit.ID, Actor: "tester"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, simplepublish.DeleteRequest{ID: unit.ID, Actor: "tester"}))

	assert.Equal(t, []string{"created", "published", "deleted"}, sink.events)
}

func TestEventSinkFailureDoesNotUndoWrites(t *testing.T) {
	ctx := context.Background()

	sink := &recordingSink{err: errors.New("sink down")}
	svc := newTestService(t, simplepublish.WithEventSink(sink))

	unit, err := svc.CreateUnit(ctx, simplepublish.CreateUnitRequest{
		Kind:  simplepublish.KindCard,
		Slug:  "sink-failure",
		Draft: simplepublish.Content{Title: "Still created"},
		Actor: "tester",
	})
	require.NoError(t, err)

	_, err = svc.GetUnit(ctx, unit.ID, simplepublish.ViewDraft)
	assert.NoError(t, err)
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (s *recordingSink) record(event string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) UnitCreated(ctx context.Context, unit *simplepublish.ContentUnit) error {
	return s.record("created")
}

func (s *recordingSink) UnitUpdated(ctx context.Context, unit *simplepublish.ContentUnit) error {
	return s.record("updated")
}

func (s *recordingSink) UnitPublished(ctx context.Context, unit *simplepublish.ContentUnit) error {
	return s.record("published")
}

func (s *recordingSink) UnitRestored(ctx context.Context, unit *simplepublish.ContentUnit, fromVersion int) error {
	return s.record("restored")
}

func (s *recordingSink) UnitDeleted(ctx context.Context, unitID uuid.UUID) error {
	return s.record("deleted")
}

func kindPtr(k simplepublish.UnitKind) *simplepublish.UnitKind { return &k }
