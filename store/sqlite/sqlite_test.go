package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dispatch-engine/engine"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testSpec() engine.CatalogSpec {
	return engine.CatalogSpec{
		AttachmentRules: []engine.AttachmentRule{
			{Source: "operator", Target: "excavator", CanAttach: true, MaxCount: 1, Required: true},
			{Source: "driver", Target: "truck", CanAttach: true, MaxCount: 1, Required: true},
		},
		DropRules: []engine.DropRule{
			{Row: "equipment", Allowed: []engine.ResourceType{"excavator"}},
			{Row: "trucks", Allowed: []engine.ResourceType{"truck"}},
		},
		RowSchemas: []engine.RowSchema{
			{Job: "paving", Rows: []engine.RowType{"equipment", "trucks"}},
		},
	}
}

// =============================================================================
// CATALOG PERSISTENCE
// =============================================================================

func TestCatalog_RoundTrip(t *testing.T) {
	// GIVEN: A fresh database with no catalog saved
	// WHEN: Saving a spec and loading it back
	// THEN: First load is nil, second reproduces the rules

	st := newTestStore(t)
	ctx := context.Background()

	spec, err := st.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Nil(t, spec, "fresh database has no catalog")

	require.NoError(t, st.ReplaceCatalog(ctx, testSpec()))

	loaded, err := st.LoadCatalog(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	cat := engine.NewCatalog(*loaded)
	assert.True(t, cat.CanAttach("operator", "excavator"))
	assert.Equal(t, 1, cat.MaxCount("driver", "truck"))
	assert.True(t, cat.IsRequired("operator", "excavator"))
	assert.True(t, cat.Allows("equipment", "excavator"))
	assert.Equal(t, []engine.RowType{"equipment", "trucks"}, cat.RowsFor("paving"))
}

func TestCatalog_ReplaceIsWholesale(t *testing.T) {
	// GIVEN: A saved catalog
	// WHEN: Replacing it with a smaller one
	// THEN: Rules absent from the new spec are gone from disk

	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.ReplaceCatalog(ctx, testSpec()))

	smaller := testSpec()
	smaller.AttachmentRules = smaller.AttachmentRules[:1] // drop driver->truck
	require.NoError(t, st.ReplaceCatalog(ctx, smaller))

	loaded, err := st.LoadCatalog(ctx)
	require.NoError(t, err)
	cat := engine.NewCatalog(*loaded)
	assert.False(t, cat.CanAttach("driver", "truck"), "retired rule must not survive the swap")
	assert.True(t, cat.CanAttach("operator", "excavator"))
}

// =============================================================================
// ROSTER AND EDGES
// =============================================================================

func TestSaveResource_UpsertsByID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveResource(ctx, engine.Resource{ID: "exc-1", Type: "excavator", Name: "CAT 320"}))
	require.NoError(t, st.SaveResource(ctx, engine.Resource{ID: "exc-1", Type: "excavator", Name: "CAT 330"}))

	list, err := st.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "CAT 330", list[0].Name)
}

func TestAttachments_SaveReparentDelete(t *testing.T) {
	// GIVEN: A child edge
	// WHEN: Saving a new parent for the same child, then deleting twice
	// THEN: One edge at a time, and deletes are idempotent

	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveAttachment(ctx, engine.Attachment{Child: "op-1", Parent: "exc-1"}))
	require.NoError(t, st.SaveAttachment(ctx, engine.Attachment{Child: "op-1", Parent: "pav-1"}))

	list, err := st.ListAttachments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, engine.ResourceID("pav-1"), list[0].Parent)

	require.NoError(t, st.DeleteAttachment(ctx, "op-1"))
	require.NoError(t, st.DeleteAttachment(ctx, "op-1"))
	list, err = st.ListAttachments(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReplaceAssignmentsFor_RewritesOnlyThatResource(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	cellA := engine.Cell{JobID: "job-1", Row: "equipment", Date: "2026-03-02", Shift: engine.ShiftDay}
	cellB := engine.Cell{JobID: "job-1", Row: "equipment", Date: "2026-03-03", Shift: engine.ShiftDay}
	cellT := engine.Cell{JobID: "job-1", Row: "trucks", Date: "2026-03-02", Shift: engine.ShiftDay}

	require.NoError(t, st.ReplaceAssignmentsFor(ctx, "exc-1", []engine.Cell{cellA, cellB}))
	require.NoError(t, st.ReplaceAssignmentsFor(ctx, "trk-1", []engine.Cell{cellT}))

	// Moving exc-1 rewrites its rows; trk-1 is untouched.
	require.NoError(t, st.ReplaceAssignmentsFor(ctx, "exc-1", []engine.Cell{cellB}))

	list, err := st.ListAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, engine.ResourceID("exc-1"), list[0].Resource)
	assert.Equal(t, cellB, list[0].Cell)
	assert.Equal(t, engine.ResourceID("trk-1"), list[1].Resource)
}

// =============================================================================
// EVENT AUDIT TRAIL
// =============================================================================

func TestEvents_AppendOnlyAndNewestFirst(t *testing.T) {
	// GIVEN: Three appended events, one delivered twice
	// WHEN: Listing with a limit
	// THEN: Duplicates are ignored and the newest event comes first

	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

	events := []engine.Event{
		{ID: "ev-1", Seq: 1, Kind: engine.EventDropped, Resource: "exc-1", At: base},
		{ID: "ev-2", Seq: 2, Kind: engine.EventAttached, Resource: "op-1", Parent: "exc-1", At: base.Add(time.Minute)},
		{ID: "ev-3", Seq: 3, Kind: engine.EventMoved, Resource: "exc-1", At: base.Add(2 * time.Minute)},
	}
	for _, ev := range events {
		require.NoError(t, st.AppendEvent(ctx, ev))
	}
	require.NoError(t, st.AppendEvent(ctx, events[1]), "duplicate delivery must not error")

	list, err := st.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "ev-3", list[0].ID)
	assert.Equal(t, engine.EventAttached, list[1].Kind)
	assert.Equal(t, engine.ResourceID("exc-1"), list[1].Parent)

	limited, err := st.ListEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "ev-3", limited[0].ID)
}

// =============================================================================
// SESSION REBUILD
// =============================================================================

func TestLoadSession_RebuildsBoardFromDisk(t *testing.T) {
	// GIVEN: A store holding a catalog, roster, one edge and assignments
	// WHEN: Rebuilding a session from it
	// THEN: Graph, board and catalog match what was persisted

	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceCatalog(ctx, testSpec()))
	require.NoError(t, st.SaveResource(ctx, engine.Resource{ID: "exc-1", Type: "excavator"}))
	require.NoError(t, st.SaveResource(ctx, engine.Resource{ID: "op-1", Type: "operator"}))
	require.NoError(t, st.SaveJob(ctx, engine.Job{ID: "job-1", Type: "paving", Name: "Route 9"}))
	require.NoError(t, st.SaveAttachment(ctx, engine.Attachment{Child: "op-1", Parent: "exc-1"}))

	cell := engine.Cell{JobID: "job-1", Row: "equipment", Date: "2026-03-02", Shift: engine.ShiftDay}
	require.NoError(t, st.ReplaceAssignmentsFor(ctx, "exc-1", []engine.Cell{cell}))

	s, err := engine.LoadSession(ctx, st, nil, engine.NopBroadcaster{})
	require.NoError(t, err)

	exc, err := s.Resource("exc-1")
	require.NoError(t, err)
	assert.Equal(t, []engine.ResourceID{"op-1"}, exc.ChildIDs)

	assert.Equal(t, []engine.Cell{cell}, s.CellsFor("exc-1"))
	assert.True(t, s.Catalog().CanAttach("operator", "excavator"))

	// The rebuilt session enforces rules against the loaded state: the
	// excavator's single operator slot is taken.
	require.NoError(t, st.SaveResource(ctx, engine.Resource{ID: "op-2", Type: "operator"}))
	s2, err := engine.LoadSession(ctx, st, nil, engine.NopBroadcaster{})
	require.NoError(t, err)
	res, err := s2.ProposeAttach("op-2", "exc-1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Violation, engine.ErrMaxCountExceeded)
}
