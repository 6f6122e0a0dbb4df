/*
board.go - Assignment board: the (job, row, date, shift) -> resources index

PURPOSE:
  The board is the authoritative "where is this resource scheduled" index.
  It is derived from successful drops and moves but independent of the
  attachment graph: attachment edges survive relocation, board cells do not.

INVARIANTS:
  - A cell holds a SET of resource ids: placing a resource into a cell it
    already occupies is a no-op
  - The forward (cell -> resources) and reverse (resource -> cells) indexes
    are updated together and never disagree

NO RULE CHECKS HERE:
  Place does not consult drop rules; that is the Validator's job. The board
  only enforces set semantics so that validated mutations cannot produce
  duplicates.

SEE ALSO:
  - validator.go: Drop/move rule checks before placement
  - conflict.go:  Scans CellsFor to classify overlaps
  - mover.go:     Relocates whole chains through Place/RemoveAll
*/
package engine

import "sort"

// AssignmentBoard indexes assignments both by cell and by resource.
// Not safe for concurrent use; the Session serializes access.
type AssignmentBoard struct {
	cells      map[Cell]map[ResourceID]struct{}
	byResource map[ResourceID]map[Cell]struct{}
}

// NewAssignmentBoard creates an empty board.
func NewAssignmentBoard() *AssignmentBoard {
	return &AssignmentBoard{
		cells:      make(map[Cell]map[ResourceID]struct{}),
		byResource: make(map[ResourceID]map[Cell]struct{}),
	}
}

// Place inserts the resource into the cell's set. No-op if already there.
func (b *AssignmentBoard) Place(id ResourceID, cell Cell) {
	set, ok := b.cells[cell]
	if !ok {
		set = make(map[ResourceID]struct{})
		b.cells[cell] = set
	}
	set[id] = struct{}{}

	rev, ok := b.byResource[id]
	if !ok {
		rev = make(map[Cell]struct{})
		b.byResource[id] = rev
	}
	rev[cell] = struct{}{}
}

// Remove deletes the resource from one cell. No-op if absent.
func (b *AssignmentBoard) Remove(id ResourceID, cell Cell) {
	if set, ok := b.cells[cell]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(b.cells, cell)
		}
	}
	if rev, ok := b.byResource[id]; ok {
		delete(rev, cell)
		if len(rev) == 0 {
			delete(b.byResource, id)
		}
	}
}

// RemoveAll takes the resource off the board entirely and returns the
// cells it vacated, sorted.
func (b *AssignmentBoard) RemoveAll(id ResourceID) []Cell {
	cells := b.CellsFor(id)
	for _, c := range cells {
		b.Remove(id, c)
	}
	return cells
}

// CellsFor returns every cell the resource currently occupies, sorted.
func (b *AssignmentBoard) CellsFor(id ResourceID) []Cell {
	rev := b.byResource[id]
	out := make([]Cell, 0, len(rev))
	for c := range rev {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return compareCells(out[i], out[j]) < 0 })
	return out
}

// ResourcesIn returns the resources in one cell, sorted by id.
func (b *AssignmentBoard) ResourcesIn(cell Cell) []ResourceID {
	set := b.cells[cell]
	out := make([]ResourceID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// JobCells returns every occupied cell of a job, sorted.
func (b *AssignmentBoard) JobCells(job JobID) []Cell {
	var out []Cell
	for c := range b.cells {
		if c.JobID == job {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return compareCells(out[i], out[j]) < 0 })
	return out
}

// Assignments flattens the board into persisted form, sorted by resource
// then cell. Used when saving or inspecting full board state.
func (b *AssignmentBoard) Assignments() []Assignment {
	var out []Assignment
	for id, rev := range b.byResource {
		for c := range rev {
			out = append(out, Assignment{Resource: id, Cell: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return compareCells(out[i].Cell, out[j].Cell) < 0
	})
	return out
}
