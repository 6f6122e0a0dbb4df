package engine_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/warp/dispatch-engine/engine"
)

func newTestMover(t *testing.T) (*engine.ChainMover, *engine.AttachmentGraph, *engine.AssignmentBoard) {
	t.Helper()
	g := newTestGraph(t)
	b := engine.NewAssignmentBoard()
	v := &engine.Validator{Graph: g, Board: b}
	return &engine.ChainMover{Graph: g, Board: b, Validator: v}, g, b
}

func TestMove_ChainRelocatesTogether(t *testing.T) {
	// GIVEN: A truck with its driver, both placed in a trucks cell
	// WHEN: Moving the truck to another date
	// THEN: Both occupy the destination; the origin cell is empty

	m, g, b := newTestMover(t)
	cat := testCatalog()
	mustAttach(t, g, cat, "drv-1", "trk-1")

	origin := mondayDay("job-1", "trucks")
	b.Place("trk-1", origin)
	b.Place("drv-1", origin)

	dest := mondayNight("job-1", "trucks")
	affected, err := m.Move(cat, "trk-1", &dest)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if len(affected) != 2 {
		t.Fatalf("expected both chain members affected, got %v", affected)
	}
	if ids := b.ResourcesIn(origin); len(ids) != 0 {
		t.Errorf("origin cell should be empty, has %v", ids)
	}
	got := b.ResourcesIn(dest)
	want := []engine.ResourceID{"drv-1", "trk-1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("destination should hold the chain, got %v", got)
	}
}

func TestMove_ValidationFailure_BoardUntouched(t *testing.T) {
	// GIVEN: A truck chain placed in a trucks cell
	// WHEN: Moving it into a crew cell (row rejects trucks)
	// THEN: The error carries the violation and no assignment changed

	m, g, b := newTestMover(t)
	cat := testCatalog()
	mustAttach(t, g, cat, "drv-1", "trk-1")

	origin := mondayDay("job-1", "trucks")
	b.Place("trk-1", origin)
	b.Place("drv-1", origin)
	before := b.Assignments()

	dest := mondayDay("job-1", "crew")
	_, err := m.Move(cat, "trk-1", &dest)
	if err == nil || !engine.IsRuleViolation(err) {
		t.Fatalf("expected a rule violation, got %v", err)
	}
	if !reflect.DeepEqual(b.Assignments(), before) {
		t.Errorf("failed move must leave the board byte-for-byte identical")
	}
}

func TestMove_NilDestination_RemovesChainFromBoard(t *testing.T) {
	// GIVEN: A truck chain spread over two cells
	// WHEN: Moving with a nil destination
	// THEN: Every chain member leaves the board; attachments survive

	m, g, b := newTestMover(t)
	cat := testCatalog()
	mustAttach(t, g, cat, "drv-1", "trk-1")
	b.Place("trk-1", mondayDay("job-1", "trucks"))
	b.Place("trk-1", mondayNight("job-1", "trucks"))
	b.Place("drv-1", mondayDay("job-1", "trucks"))

	affected, err := m.Move(cat, "trk-1", nil)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(affected) != 2 {
		t.Fatalf("expected both members affected, got %v", affected)
	}
	if cells := b.CellsFor("trk-1"); len(cells) != 0 {
		t.Errorf("truck should be off the board, still in %v", cells)
	}
	drv, _ := g.Resource("drv-1")
	if drv.ParentID != "trk-1" {
		t.Errorf("removal from board must not detach the driver")
	}
}

func TestMove_UnknownRoot_InvariantViolation(t *testing.T) {
	// GIVEN: An unregistered id
	// WHEN: Moving it
	// THEN: Invariant violation

	m, _, _ := newTestMover(t)
	dest := mondayDay("job-1", "trucks")
	_, err := m.Move(testCatalog(), "ghost", &dest)
	if !engine.IsInvariantViolation(err) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	if errors.Is(err, engine.ErrDropNotAllowed) {
		t.Errorf("unknown root must not surface as a rule violation")
	}
}
