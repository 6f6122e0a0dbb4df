/*
finalize.go - Missing-requirement check before a job can be finalized

PURPOSE:
  A job is finalizable when every resource staffed on its rows carries the
  attachments the catalog marks required: an excavator needs its operator,
  a truck its driver. The check walks the job's row schema, every resource
  assigned to those rows, and every required attachment rule targeting
  that resource's type.

READ-ONLY:
  The check never mutates and may be called repeatedly (e.g. on every UI
  render). One MissingRequirement is reported per (resource, missing
  source type) pair, regardless of how many cells the resource occupies.

SEE ALSO:
  - catalog.go: RequiredSources per target type
  - board.go:   JobCells / ResourcesIn feed the walk
*/
package engine

import "sort"

// MissingRequirement names one required attachment a staffed resource lacks.
type MissingRequirement struct {
	Resource ResourceID   `json:"resourceId"`
	Missing  ResourceType `json:"missingSourceType"`
}

// FinalizationChecker walks row schemas and required attachment rules.
type FinalizationChecker struct {
	Graph *AttachmentGraph
	Board *AssignmentBoard
}

// CheckFinalizable returns every missing required attachment for the job.
// An empty result means the job may be finalized.
func (f *FinalizationChecker) CheckFinalizable(cat *Catalog, job Job) ([]MissingRequirement, error) {
	exposed := make(map[RowType]struct{})
	for _, row := range cat.RowsFor(job.Type) {
		exposed[row] = struct{}{}
	}

	type key struct {
		id ResourceID
		t  ResourceType
	}
	missing := make(map[key]struct{})

	for _, cell := range f.Board.JobCells(job.ID) {
		if _, ok := exposed[cell.Row]; !ok {
			continue
		}
		for _, id := range f.Board.ResourcesIn(cell) {
			r, err := f.Graph.Resource(id)
			if err != nil {
				return nil, err
			}
			for _, source := range cat.RequiredSources(r.Type) {
				if !f.hasChildOfType(r, source) {
					missing[key{id, source}] = struct{}{}
				}
			}
		}
	}

	out := make([]MissingRequirement, 0, len(missing))
	for k := range missing {
		out = append(out, MissingRequirement{Resource: k.id, Missing: k.t})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Missing < out[j].Missing
	})
	return out, nil
}

func (f *FinalizationChecker) hasChildOfType(r Resource, t ResourceType) bool {
	for _, cid := range r.ChildIDs {
		if c, err := f.Graph.Resource(cid); err == nil && c.Type == t {
			return true
		}
	}
	return false
}
