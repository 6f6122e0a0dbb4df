/*
mover.go - Atomic relocation of attachment chains

PURPOSE:
  Moves a root resource and its entire attachment subtree to a destination
  cell, or takes the chain off the board (nil destination). Attachment
  edges are untouched by a move: only board cells change.

ATOMICITY:
  Every rule check runs before the first board write. Either the whole
  chain moves or none of it does; a failed validation leaves the board
  and the graph exactly as they were.

SEE ALSO:
  - validator.go: ValidateMove, including implied admission of children
  - session.go:   Recomputes conflict flags for the chain afterwards
*/
package engine

// ChainMover relocates chains through the board.
type ChainMover struct {
	Graph     *AttachmentGraph
	Board     *AssignmentBoard
	Validator *Validator
}

// Move relocates the chain rooted at rootID into dest, or removes it from
// the board when dest is nil. Returns the chain members affected.
func (m *ChainMover) Move(cat *Catalog, rootID ResourceID, dest *Cell) ([]ResourceID, error) {
	chain, err := m.Graph.Subtree(rootID)
	if err != nil {
		return nil, err
	}

	if dest != nil {
		if err := m.Validator.ValidateMove(cat, rootID, *dest); err != nil {
			return nil, err
		}
	}

	// Validation passed: mutate. No rule check below this line.
	for _, id := range chain {
		m.Board.RemoveAll(id)
		if dest != nil {
			m.Board.Place(id, *dest)
		}
	}
	return chain, nil
}
