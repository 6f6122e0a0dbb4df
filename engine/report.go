/*
report.go - Utilization and staffing reports over the board

PURPOSE:
  Read-only aggregation for dispatchers:
  - Utilization: per resource, how many shift slots it occupies over a
    date range versus how many exist (days x 2 shifts), as an exact ratio
  - Staffing: per job, headcount per occupied cell

PRECISION:
  Ratios use decimal.Decimal so a 10-day report shows 7/20 as 0.35
  exactly, not a float artifact. Four decimal places is plenty for a
  percentage display.

SEE ALSO:
  - board.go:   CellsFor / JobCells feed the aggregation
  - session.go: Exposes these under the read lock
*/
package engine

import "github.com/shopspring/decimal"

// =============================================================================
// UTILIZATION
// =============================================================================

// UtilizationRow summarizes one resource over a date range.
type UtilizationRow struct {
	Resource    ResourceID      `json:"resourceId"`
	Type        ResourceType    `json:"type"`
	Assigned    int             `json:"assignedShifts"`
	Available   int             `json:"availableShifts"`
	Utilization decimal.Decimal `json:"utilization"`
}

// Reporter aggregates board state. Pure reads.
type Reporter struct {
	Graph *AttachmentGraph
	Board *AssignmentBoard
}

// Utilization reports every registered resource's occupancy in [from, to].
// Resources with no assignments in range appear with zero utilization so
// the report doubles as an availability view.
func (r *Reporter) Utilization(from, to Date) []UtilizationRow {
	available := DaysInRange(from, to) * len(Shifts)
	out := make([]UtilizationRow, 0)

	for _, res := range r.Graph.All() {
		assigned := 0
		for _, c := range r.Board.CellsFor(res.ID) {
			if c.Date >= from && c.Date <= to {
				assigned++
			}
		}
		row := UtilizationRow{
			Resource:  res.ID,
			Type:      res.Type,
			Assigned:  assigned,
			Available: available,
		}
		if available > 0 {
			row.Utilization = decimal.NewFromInt(int64(assigned)).
				Div(decimal.NewFromInt(int64(available))).
				Round(4)
		}
		out = append(out, row)
	}
	return out
}

// =============================================================================
// STAFFING
// =============================================================================

// StaffingRow is the headcount of one occupied cell.
type StaffingRow struct {
	Cell  Cell `json:"cell"`
	Count int  `json:"count"`
}

// JobStaffing returns headcounts for every occupied cell of a job.
func (r *Reporter) JobStaffing(job JobID) []StaffingRow {
	cells := r.Board.JobCells(job)
	out := make([]StaffingRow, 0, len(cells))
	for _, c := range cells {
		out = append(out, StaffingRow{Cell: c, Count: len(r.Board.ResourcesIn(c))})
	}
	return out
}

// Utilization runs the utilization report under the session read lock.
func (s *Session) Utilization(from, to Date) []UtilizationRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rep := &Reporter{Graph: s.graph, Board: s.board}
	return rep.Utilization(from, to)
}

// JobStaffing runs the staffing report under the session read lock.
func (s *Session) JobStaffing(job JobID) []StaffingRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rep := &Reporter{Graph: s.graph, Board: s.board}
	return rep.JobStaffing(job)
}
