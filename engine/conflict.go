/*
conflict.go - Double-booking detection over the assignment board

PURPOSE:
  Classifies how a resource's assignments overlap per calendar day:

  doubleShift  Both shifts of the same day occupied. Most severe; the UI
               renders a strong warning.
  doubleJob    Two different jobs in the same (day, shift).
  nightOnly    Only a night cell with no day cell. Informational.

ADVISORY, NEVER BLOCKING:
  Conflict detection never rejects an assignment. Dispatchers sometimes
  book overlapping shifts on purpose; correctness here means "flag exists
  iff overlap exists", not "overlap is prevented". Flags are derived from
  the board on every call and never stored, so they cannot go stale.

SEE ALSO:
  - board.go:   CellsFor feeds the scan
  - session.go: Recomputes flags for every affected resource after mutations
*/
package engine

import "sort"

// =============================================================================
// CONFLICT FLAGS
// =============================================================================

type ConflictKind string

const (
	ConflictDoubleShift ConflictKind = "doubleShift"
	ConflictDoubleJob   ConflictKind = "doubleJob"
	ConflictNightOnly   ConflictKind = "nightOnly"
)

// kindSeverity orders kinds most-severe-first for stable output.
var kindSeverity = map[ConflictKind]int{
	ConflictDoubleShift: 0,
	ConflictDoubleJob:   1,
	ConflictNightOnly:   2,
}

// ConflictFlag marks one overlap on one date. Related lists every cell
// that participates in the overlap.
type ConflictFlag struct {
	Resource ResourceID   `json:"resourceId"`
	Kind     ConflictKind `json:"kind"`
	Date     Date         `json:"date"`
	Related  []Cell       `json:"relatedAssignments"`
}

// =============================================================================
// DETECTOR
// =============================================================================

type ConflictDetector struct {
	Board *AssignmentBoard
}

// Recompute derives all flags for one resource from its current cells.
// A resource in exactly one cell on a day gets at most a nightOnly note.
func (d *ConflictDetector) Recompute(id ResourceID) []ConflictFlag {
	byDate := make(map[Date][]Cell)
	for _, c := range d.Board.CellsFor(id) {
		byDate[c.Date] = append(byDate[c.Date], c)
	}

	var flags []ConflictFlag
	for date, cells := range byDate {
		var day, night []Cell
		for _, c := range cells {
			if c.Shift == ShiftNight {
				night = append(night, c)
			} else {
				day = append(day, c)
			}
		}

		if len(day) > 0 && len(night) > 0 {
			flags = append(flags, ConflictFlag{
				Resource: id, Kind: ConflictDoubleShift, Date: date,
				Related: append(append([]Cell{}, day...), night...),
			})
		}
		for _, shiftCells := range [][]Cell{day, night} {
			if jobs := distinctJobs(shiftCells); len(jobs) > 1 {
				flags = append(flags, ConflictFlag{
					Resource: id, Kind: ConflictDoubleJob, Date: date,
					Related: append([]Cell{}, shiftCells...),
				})
			}
		}
		if len(night) > 0 && len(day) == 0 {
			flags = append(flags, ConflictFlag{
				Resource: id, Kind: ConflictNightOnly, Date: date,
				Related: append([]Cell{}, night...),
			})
		}
	}

	sort.Slice(flags, func(i, j int) bool {
		if flags[i].Date != flags[j].Date {
			return flags[i].Date < flags[j].Date
		}
		return kindSeverity[flags[i].Kind] < kindSeverity[flags[j].Kind]
	})
	for i := range flags {
		related := flags[i].Related
		sort.Slice(related, func(a, b int) bool { return compareCells(related[a], related[b]) < 0 })
	}
	return flags
}

// RecomputeMany merges flags for a set of resources, deduplicating ids.
func (d *ConflictDetector) RecomputeMany(ids []ResourceID) []ConflictFlag {
	seen := make(map[ResourceID]struct{}, len(ids))
	var flags []ConflictFlag
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		flags = append(flags, d.Recompute(id)...)
	}
	return flags
}

func distinctJobs(cells []Cell) map[JobID]struct{} {
	jobs := make(map[JobID]struct{}, len(cells))
	for _, c := range cells {
		jobs[c.JobID] = struct{}{}
	}
	return jobs
}
