package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/dispatch-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================
// Shared across the engine tests: a small rule set with one operated
// machine type, one truck type and a paving-style row layout.

func testCatalog() *engine.Catalog {
	return engine.NewCatalog(testSpec())
}

func testSpec() engine.CatalogSpec {
	return engine.CatalogSpec{
		AttachmentRules: []engine.AttachmentRule{
			{Source: "operator", Target: "excavator", CanAttach: true, MaxCount: 1, Required: true},
			{Source: "operator", Target: "paver", CanAttach: true, MaxCount: 1, Required: true},
			{Source: "screwman", Target: "paver", CanAttach: true, MaxCount: 2, Required: false},
			{Source: "driver", Target: "truck", CanAttach: true, MaxCount: 1, Required: true},
		},
		DropRules: []engine.DropRule{
			{Row: "equipment", Allowed: []engine.ResourceType{"excavator", "paver"}},
			{Row: "crew", Allowed: []engine.ResourceType{"operator", "screwman", "laborer"}},
			{Row: "trucks", Allowed: []engine.ResourceType{"truck"}},
		},
		RowSchemas: []engine.RowSchema{
			{Job: "paving", Rows: []engine.RowType{"equipment", "crew", "trucks"}},
		},
	}
}

func newTestGraph(t *testing.T) *engine.AttachmentGraph {
	t.Helper()
	g := engine.NewAttachmentGraph()
	for id, typ := range map[engine.ResourceID]engine.ResourceType{
		"exc-1": "excavator",
		"pav-1": "paver",
		"op-1":  "operator",
		"op-2":  "operator",
		"scr-1": "screwman",
		"scr-2": "screwman",
		"scr-3": "screwman",
		"trk-1": "truck",
		"drv-1": "driver",
		"lab-1": "laborer",
	} {
		if err := g.Register(id, typ, ""); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	return g
}

func mondayDay(job engine.JobID, row engine.RowType) engine.Cell {
	return engine.Cell{JobID: job, Row: row, Date: engine.NewDate(2026, time.March, 2), Shift: engine.ShiftDay}
}

func mondayNight(job engine.JobID, row engine.RowType) engine.Cell {
	return engine.Cell{JobID: job, Row: row, Date: engine.NewDate(2026, time.March, 2), Shift: engine.ShiftNight}
}

func mustAttach(t *testing.T, g *engine.AttachmentGraph, cat *engine.Catalog, child, parent engine.ResourceID) {
	t.Helper()
	if err := g.Attach(cat, child, parent); err != nil {
		t.Fatalf("attach %s -> %s: %v", child, parent, err)
	}
}

// =============================================================================
// ATTACH RULE TESTS
// =============================================================================

func TestAttach_DisallowedPair_FailsAndDoesNotMutate(t *testing.T) {
	// GIVEN: A laborer and an excavator; no laborer->excavator rule exists
	// WHEN: Attaching the laborer to the excavator
	// THEN: AttachNotAllowed, and the excavator has no children

	g := newTestGraph(t)
	cat := testCatalog()

	err := g.Attach(cat, "lab-1", "exc-1")
	if !errors.Is(err, engine.ErrAttachNotAllowed) {
		t.Fatalf("expected AttachNotAllowed, got %v", err)
	}

	exc, _ := g.Resource("exc-1")
	if len(exc.ChildIDs) != 0 {
		t.Errorf("excavator should have no children, has %v", exc.ChildIDs)
	}
	lab, _ := g.Resource("lab-1")
	if lab.Attached() {
		t.Errorf("laborer should not be attached")
	}
}

func TestAttach_MaxCountExceeded_ChildSetUnchanged(t *testing.T) {
	// GIVEN: An excavator with one operator attached (maxCount=1)
	// WHEN: Attaching a second operator
	// THEN: MaxCountExceeded, and the child set still holds exactly op-1

	g := newTestGraph(t)
	cat := testCatalog()
	mustAttach(t, g, cat, "op-1", "exc-1")

	err := g.Attach(cat, "op-2", "exc-1")
	if !errors.Is(err, engine.ErrMaxCountExceeded) {
		t.Fatalf("expected MaxCountExceeded, got %v", err)
	}

	exc, _ := g.Resource("exc-1")
	if len(exc.ChildIDs) != 1 || exc.ChildIDs[0] != "op-1" {
		t.Errorf("expected exactly [op-1], got %v", exc.ChildIDs)
	}
}

func TestAttach_UnderMaxCount_SecondScrewmanAllowed(t *testing.T) {
	// GIVEN: A paver that takes up to two screwmen
	// WHEN: Attaching two screwmen, then a third
	// THEN: First two succeed, third fails with MaxCountExceeded

	g := newTestGraph(t)
	cat := testCatalog()
	mustAttach(t, g, cat, "scr-1", "pav-1")
	mustAttach(t, g, cat, "scr-2", "pav-1")

	err := g.Attach(cat, "scr-3", "pav-1")
	if !errors.Is(err, engine.ErrMaxCountExceeded) {
		t.Fatalf("expected MaxCountExceeded for third screwman, got %v", err)
	}

	pav, _ := g.Resource("pav-1")
	if len(pav.ChildIDs) != 2 {
		t.Errorf("paver should hold two screwmen, has %v", pav.ChildIDs)
	}
}

func TestAttach_AlreadyAttachedElsewhere_Fails(t *testing.T) {
	// GIVEN: An operator attached to the excavator
	// WHEN: Attaching the same operator to the paver
	// THEN: AlreadyAttached; the original edge survives

	g := newTestGraph(t)
	cat := testCatalog()
	mustAttach(t, g, cat, "op-1", "exc-1")

	err := g.Attach(cat, "op-1", "pav-1")
	if !errors.Is(err, engine.ErrAlreadyAttached) {
		t.Fatalf("expected AlreadyAttached, got %v", err)
	}

	op, _ := g.Resource("op-1")
	if op.ParentID != "exc-1" {
		t.Errorf("operator should still be on exc-1, is on %q", op.ParentID)
	}
}

func TestAttach_SameParentTwice_NoOp(t *testing.T) {
	// GIVEN: An operator attached to the excavator
	// WHEN: Attaching the same pair again (duplicate event delivery)
	// THEN: Success, and the excavator still has exactly one child

	g := newTestGraph(t)
	cat := testCatalog()
	mustAttach(t, g, cat, "op-1", "exc-1")

	if err := g.Attach(cat, "op-1", "exc-1"); err != nil {
		t.Fatalf("re-attach to same parent should be a no-op, got %v", err)
	}

	exc, _ := g.Resource("exc-1")
	if len(exc.ChildIDs) != 1 {
		t.Errorf("expected one child after duplicate attach, got %v", exc.ChildIDs)
	}
}

func TestAttach_DepthLimit_AttachedResourceHostsNothing(t *testing.T) {
	// GIVEN: A screwman attached to the paver
	// WHEN: Attaching something to the screwman, and attaching the paver
	//       (which has children) under anything
	// THEN: Both rejected: attachments do not nest

	g := newTestGraph(t)
	// A permissive catalog that would allow both pairs if depth allowed it.
	cat := engine.NewCatalog(engine.CatalogSpec{
		AttachmentRules: []engine.AttachmentRule{
			{Source: "screwman", Target: "paver", CanAttach: true, MaxCount: 2, Required: false},
			{Source: "operator", Target: "screwman", CanAttach: true, MaxCount: 1, Required: false},
			{Source: "paver", Target: "truck", CanAttach: true, MaxCount: 1, Required: false},
		},
	})
	mustAttach(t, g, cat, "scr-1", "pav-1")

	if err := g.Attach(cat, "op-1", "scr-1"); !errors.Is(err, engine.ErrAttachNotAllowed) {
		t.Errorf("attaching onto an attached resource should fail, got %v", err)
	}
	if err := g.Attach(cat, "pav-1", "trk-1"); !errors.Is(err, engine.ErrAttachNotAllowed) {
		t.Errorf("attaching a resource with children should fail, got %v", err)
	}
}

func TestAttach_UnknownResource_InvariantViolation(t *testing.T) {
	// GIVEN: An id that was never registered
	// WHEN: Attaching it
	// THEN: Invariant violation, not a rule violation

	g := newTestGraph(t)
	cat := testCatalog()

	err := g.Attach(cat, "ghost", "exc-1")
	if !engine.IsInvariantViolation(err) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	if engine.IsRuleViolation(err) {
		t.Errorf("unknown id must not read as a rule violation")
	}
}

// =============================================================================
// DETACH TESTS
// =============================================================================

func TestDetach_Twice_SameFinalState(t *testing.T) {
	// GIVEN: An operator attached to the excavator
	// WHEN: Detaching twice
	// THEN: First reports a change, second is a no-op; final state identical

	g := newTestGraph(t)
	cat := testCatalog()
	mustAttach(t, g, cat, "op-1", "exc-1")

	changed, err := g.Detach("op-1")
	if err != nil || !changed {
		t.Fatalf("first detach: changed=%v err=%v", changed, err)
	}
	changed, err = g.Detach("op-1")
	if err != nil || changed {
		t.Fatalf("second detach should be a no-op: changed=%v err=%v", changed, err)
	}

	op, _ := g.Resource("op-1")
	exc, _ := g.Resource("exc-1")
	if op.Attached() || len(exc.ChildIDs) != 0 {
		t.Errorf("detach left residue: op.parent=%q exc.children=%v", op.ParentID, exc.ChildIDs)
	}
}

// =============================================================================
// SUBTREE TESTS
// =============================================================================

func TestSubtree_RootPlusChildren(t *testing.T) {
	// GIVEN: A paver with an operator and a screwman attached
	// WHEN: Computing the subtree from the paver
	// THEN: Paver first, then both children; a lone resource is just itself

	g := newTestGraph(t)
	cat := testCatalog()
	mustAttach(t, g, cat, "op-1", "pav-1")
	mustAttach(t, g, cat, "scr-1", "pav-1")

	chain, err := g.Subtree("pav-1")
	if err != nil {
		t.Fatalf("subtree: %v", err)
	}
	if len(chain) != 3 || chain[0] != "pav-1" {
		t.Fatalf("expected [pav-1 op-1 scr-1], got %v", chain)
	}

	solo, err := g.Subtree("lab-1")
	if err != nil || len(solo) != 1 || solo[0] != "lab-1" {
		t.Errorf("lone resource subtree should be itself, got %v (%v)", solo, err)
	}
}
