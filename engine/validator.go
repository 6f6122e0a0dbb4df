/*
validator.go - Pure rule checks for drop, attach and chain-move operations

PURPOSE:
  Central decision point for every proposed mutation. Validators read the
  catalog, graph and board and return an error or nil; they never mutate.
  Keeping all checks here gives one audit point for the rule engine.

CHAIN ADMISSION:
  A chain member is admissible at a destination row when either
  - the row accepts the member's own type, or
  - the member is attached to another chain member whose slot implies it
    (the catalog still permits that attachment pair).
  A truck row therefore admits the truck's driver without listing
  "driver" among its allowed types. The implied-admission clause re-reads
  the CURRENT catalog, so a rule edit that retires an attachment pair
  makes existing chains immovable into rows that only admitted the child
  through its parent.

SEE ALSO:
  - graph.go: CheckAttach, the attach-side rule checks
  - mover.go: Calls ValidateMove before touching the board
*/
package engine

// Validator bundles the read-only state the checks need.
type Validator struct {
	Graph *AttachmentGraph
	Board *AssignmentBoard
}

// ValidateDrop checks that the cell's row accepts the resource's type.
func (v *Validator) ValidateDrop(cat *Catalog, id ResourceID, cell Cell) error {
	r, err := v.Graph.Resource(id)
	if err != nil {
		return err
	}
	if err := cell.Validate(); err != nil {
		return invariant("drop", "%v", err)
	}
	if !cat.Allows(cell.Row, r.Type) {
		return &DropError{Resource: id, Type: r.Type, Cell: cell}
	}
	return nil
}

// ValidateAttach checks a proposed attachment without mutating. The type
// compatibility pre-check is cheap and gives a better error for unknown
// pairs; the graph re-checks everything as the single source of truth.
func (v *Validator) ValidateAttach(cat *Catalog, childID, parentID ResourceID) error {
	child, err := v.Graph.Resource(childID)
	if err != nil {
		return err
	}
	parent, err := v.Graph.Resource(parentID)
	if err != nil {
		return err
	}
	if child.ParentID != parentID && !cat.CanAttach(child.Type, parent.Type) {
		return &AttachError{
			Child: childID, Parent: parentID,
			ChildType: child.Type, ParentType: parent.Type,
			Reason: ErrAttachNotAllowed,
		}
	}
	return v.Graph.CheckAttach(cat, childID, parentID)
}

// ValidateMove checks that the root's whole chain is admissible at the
// destination. A single-resource chain failing its own drop check gets a
// DropError; a larger chain gets a ChainMoveError listing every member
// that blocked the move.
func (v *Validator) ValidateMove(cat *Catalog, rootID ResourceID, cell Cell) error {
	chain, err := v.Graph.Subtree(rootID)
	if err != nil {
		return err
	}
	if err := cell.Validate(); err != nil {
		return invariant("move", "%v", err)
	}

	inChain := make(map[ResourceID]struct{}, len(chain))
	for _, id := range chain {
		inChain[id] = struct{}{}
	}

	var rejected []ResourceID
	for _, id := range chain {
		r, err := v.Graph.Resource(id)
		if err != nil {
			return err
		}
		if cat.Allows(cell.Row, r.Type) {
			continue
		}
		if r.ParentID != "" {
			if _, ok := inChain[r.ParentID]; ok {
				parent, err := v.Graph.Resource(r.ParentID)
				if err != nil {
					return err
				}
				if cat.CanAttach(r.Type, parent.Type) {
					continue // admitted through its in-chain parent
				}
			}
		}
		rejected = append(rejected, id)
	}

	if len(rejected) == 0 {
		return nil
	}
	if len(chain) == 1 {
		r, _ := v.Graph.Resource(rootID)
		return &DropError{Resource: rootID, Type: r.Type, Cell: cell}
	}
	return &ChainMoveError{Root: rootID, Cell: cell, Rejected: rejected}
}
