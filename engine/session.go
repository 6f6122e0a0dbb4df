/*
session.go - Serialized facade over catalog, graph and board

PURPOSE:
  One Session owns one scheduling board. All mutations for the board go
  through the Session and are serialized under a single lock, because
  interleaved chain moves on overlapping subtrees could otherwise produce
  a resource with two parents or a cell with duplicate members. Reads take
  the read lock and see a consistent snapshot.

OPERATION RESULTS:
  Expected rule violations never surface as Go errors from the propose
  methods: they come back inside OperationResult with Success=false and
  the board untouched. The error return is reserved for invariant
  violations (unknown ids, malformed cells) signaling a bug upstream.

EVENTS AND REPLAY:
  Every successful mutation bumps the session sequence, is handed to the
  Broadcaster, and is attached to the result so the caller can persist it.
  Apply replays a received event into this session: duplicates are no-ops,
  and an attach replayed onto a different parent is resolved
  last-write-wins with a "replaced parent" warning on the result.

CATALOG SWAPS:
  ReplaceCatalog installs a new immutable snapshot. Each operation loads
  the snapshot once up front, so a swap mid-stream never yields a
  half-updated rule view.

SEE ALSO:
  - validator.go, mover.go, conflict.go, finalize.go: the delegates
  - store.go: LoadSession rebuilds a session from persisted state
*/
package engine

import (
	"fmt"
	"sort"
	"sync"
)

// =============================================================================
// OPERATION RESULT
// =============================================================================

// OperationResult is the outcome of one proposed mutation.
// Violation is nil iff Success. Conflicts reflect the board AFTER the
// operation (or the unchanged board for a rejected one) for every
// affected resource. Event is set for mutations that changed state.
type OperationResult struct {
	Success   bool           `json:"success"`
	Violation error          `json:"-"`
	Affected  []ResourceID   `json:"affectedResourceIds"`
	Conflicts []ConflictFlag `json:"conflictFlags"`
	Warnings  []string       `json:"warnings,omitempty"`
	Event     *Event         `json:"-"`
}

// =============================================================================
// SESSION
// =============================================================================

type Session struct {
	mu sync.RWMutex

	holder    *Holder
	graph     *AttachmentGraph
	board     *AssignmentBoard
	validator *Validator
	conflicts *ConflictDetector
	mover     *ChainMover
	finalizer *FinalizationChecker

	jobs        map[JobID]Job
	broadcaster Broadcaster
	seq         uint64
}

// NewSession creates an empty session over the given catalog.
// A nil broadcaster discards events.
func NewSession(cat *Catalog, b Broadcaster) *Session {
	if b == nil {
		b = NopBroadcaster{}
	}
	graph := NewAttachmentGraph()
	board := NewAssignmentBoard()
	v := &Validator{Graph: graph, Board: board}
	return &Session{
		holder:      NewHolder(cat),
		graph:       graph,
		board:       board,
		validator:   v,
		conflicts:   &ConflictDetector{Board: board},
		mover:       &ChainMover{Graph: graph, Board: board, Validator: v},
		finalizer:   &FinalizationChecker{Graph: graph, Board: board},
		jobs:        make(map[JobID]Job),
		broadcaster: b,
	}
}

// emit assigns a sequence number, publishes and returns the event.
// Callers hold the write lock.
func (s *Session) emit(ev Event) *Event {
	s.seq++
	ev.Seq = s.seq
	s.broadcaster.Publish(ev)
	return &ev
}

// resultFor builds a success result with fresh conflict flags for the
// affected resources.
func (s *Session) resultFor(affected []ResourceID, ev *Event, warnings ...string) OperationResult {
	return OperationResult{
		Success:   true,
		Affected:  affected,
		Conflicts: s.conflicts.RecomputeMany(affected),
		Warnings:  warnings,
		Event:     ev,
	}
}

// rejected builds a failure result. The board is unchanged; conflict
// flags are the resource's standing ones.
func (s *Session) rejected(violation error, affected ...ResourceID) OperationResult {
	return OperationResult{
		Success:   false,
		Violation: violation,
		Affected:  affected,
		Conflicts: s.conflicts.RecomputeMany(affected),
	}
}

// =============================================================================
// REGISTRATION
// =============================================================================

// RegisterResource adds a resource to the roster. Idempotent per id.
func (s *Session) RegisterResource(id ResourceID, t ResourceType, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.graph.Register(id, t, name); err != nil {
		return err
	}
	ev := newEvent(0, EventResourceRegistered)
	ev.Resource, ev.ResourceType, ev.Name = id, t, name
	s.emit(ev)
	return nil
}

// RegisterJob adds a job to the board. Idempotent per id.
func (s *Session) RegisterJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		return invariant("registerJob", "job id is required")
	}
	if existing, ok := s.jobs[job.ID]; ok && existing.Type != job.Type {
		return invariant("registerJob", "job %s already registered as %s, not %s", job.ID, existing.Type, job.Type)
	}
	s.jobs[job.ID] = job
	ev := newEvent(0, EventJobRegistered)
	ev.Resource, ev.JobType, ev.Name = ResourceID(job.ID), job.Type, job.Name
	s.emit(ev)
	return nil
}

func (s *Session) requireJob(id JobID) error {
	if _, ok := s.jobs[id]; !ok {
		return &InvariantError{Op: "cell", Detail: string(id), Reason: ErrUnknownJob}
	}
	return nil
}

// =============================================================================
// PROPOSALS - the inbound mutation surface
// =============================================================================

// ProposeDrop validates and applies a single-resource drop into a cell.
func (s *Session) ProposeDrop(id ResourceID, cell Cell) (OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cat := s.holder.Load()

	if err := s.requireJob(cell.JobID); err != nil {
		return OperationResult{}, err
	}
	if err := s.validator.ValidateDrop(cat, id, cell); err != nil {
		if IsRuleViolation(err) {
			return s.rejected(err, id), nil
		}
		return OperationResult{}, err
	}

	s.board.Place(id, cell)
	ev := newEvent(0, EventDropped)
	ev.Resource, ev.Cell = id, &cell
	ev.Affected = []ResourceID{id}
	return s.resultFor([]ResourceID{id}, s.emit(ev)), nil
}

// ProposeAttach validates and applies an attachment edge. Attaching a
// child to its current parent is a no-op success without an event.
func (s *Session) ProposeAttach(childID, parentID ResourceID) (OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cat := s.holder.Load()

	child, err := s.graph.Resource(childID)
	if err != nil {
		return OperationResult{}, err
	}
	if child.ParentID == parentID {
		return s.resultFor([]ResourceID{childID, parentID}, nil), nil
	}

	if err := s.validator.ValidateAttach(cat, childID, parentID); err != nil {
		if IsRuleViolation(err) {
			return s.rejected(err, childID, parentID), nil
		}
		return OperationResult{}, err
	}
	if err := s.graph.Attach(cat, childID, parentID); err != nil {
		// Validation just passed under the same snapshot and lock.
		return OperationResult{}, invariant("attach", "post-validation attach failed: %v", err)
	}

	ev := newEvent(0, EventAttached)
	ev.Resource, ev.Parent = childID, parentID
	ev.Affected = []ResourceID{childID, parentID}
	return s.resultFor([]ResourceID{childID, parentID}, s.emit(ev)), nil
}

// ProposeDetach removes the child's attachment edge. Always succeeds;
// detaching an unattached child is a no-op without an event.
func (s *Session) ProposeDetach(childID ResourceID) (OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	child, err := s.graph.Resource(childID)
	if err != nil {
		return OperationResult{}, err
	}
	parentID := child.ParentID

	changed, err := s.graph.Detach(childID)
	if err != nil {
		return OperationResult{}, err
	}
	if !changed {
		return s.resultFor([]ResourceID{childID}, nil), nil
	}

	ev := newEvent(0, EventDetached)
	ev.Resource, ev.Parent = childID, parentID
	ev.Affected = []ResourceID{childID, parentID}
	return s.resultFor([]ResourceID{childID, parentID}, s.emit(ev)), nil
}

// ProposeMove relocates the chain rooted at rootID into dest, or off the
// board when dest is nil. All-or-nothing: a rejected move leaves every
// chain member exactly where it was.
func (s *Session) ProposeMove(rootID ResourceID, dest *Cell) (OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cat := s.holder.Load()

	if dest != nil {
		if err := s.requireJob(dest.JobID); err != nil {
			return OperationResult{}, err
		}
	}

	chain, err := s.mover.Move(cat, rootID, dest)
	if err != nil {
		if IsRuleViolation(err) {
			sub, serr := s.graph.Subtree(rootID)
			if serr != nil {
				return OperationResult{}, serr
			}
			return s.rejected(err, sub...), nil
		}
		return OperationResult{}, err
	}

	kind := EventMoved
	if dest == nil {
		kind = EventRemovedFromBoard
	}
	ev := newEvent(0, kind)
	ev.Resource, ev.Cell, ev.Affected = rootID, dest, chain
	return s.resultFor(chain, s.emit(ev)), nil
}

// =============================================================================
// CATALOG ADMINISTRATION
// =============================================================================

// ReplaceCatalog atomically installs a new rule set. In-flight operations
// finish under the snapshot they loaded.
func (s *Session) ReplaceCatalog(cat *Catalog) *Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holder.Replace(cat)
	return s.emit(newEvent(0, EventCatalogReplaced))
}

// Catalog returns the current rule snapshot.
func (s *Session) Catalog() *Catalog {
	return s.holder.Load()
}

// =============================================================================
// READS
// =============================================================================

// CheckFinalizable reports every missing required attachment for the job.
func (s *Session) CheckFinalizable(jobID JobID) ([]MissingRequirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, &InvariantError{Op: "finalize", Detail: string(jobID), Reason: ErrUnknownJob}
	}
	return s.finalizer.CheckFinalizable(s.holder.Load(), job)
}

// Conflicts recomputes the standing flags for one resource.
func (s *Session) Conflicts(id ResourceID) []ConflictFlag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conflicts.Recompute(id)
}

// Resource returns a copy of one roster entry.
func (s *Session) Resource(id ResourceID) (Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Resource(id)
}

// Resources returns the full roster sorted by id.
func (s *Session) Resources() []Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.All()
}

// Jobs returns every registered job sorted by id.
func (s *Session) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Job returns one registered job.
func (s *Session) Job(id JobID) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, &InvariantError{Op: "job", Detail: string(id), Reason: ErrUnknownJob}
	}
	return job, nil
}

// CellsFor returns every cell the resource occupies.
func (s *Session) CellsFor(id ResourceID) []Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.CellsFor(id)
}

// ResourcesIn returns the occupants of one cell.
func (s *Session) ResourcesIn(cell Cell) []ResourceID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.ResourcesIn(cell)
}

// JobBoard returns every occupied cell of a job with its occupants.
func (s *Session) JobBoard(jobID JobID) []BoardCell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cells := s.board.JobCells(jobID)
	out := make([]BoardCell, 0, len(cells))
	for _, c := range cells {
		out = append(out, BoardCell{Cell: c, Resources: s.board.ResourcesIn(c)})
	}
	return out
}

// BoardCell pairs a cell with its occupants for board reads.
type BoardCell struct {
	Cell      Cell         `json:"cell"`
	Resources []ResourceID `json:"resourceIds"`
}

// Assignments flattens the whole board.
func (s *Session) Assignments() []Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.Assignments()
}

// Attachments flattens the graph's edges sorted by child id.
func (s *Session) Attachments() []Attachment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Attachment
	for _, r := range s.graph.All() {
		if r.Attached() {
			out = append(out, Attachment{Child: r.ID, Parent: r.ParentID})
		}
	}
	return out
}

// =============================================================================
// REPLAY - applying events from other sessions
// =============================================================================

// Apply replays an event produced by another session observing the same
// board. Duplicate delivery is harmless: every branch is idempotent. An
// attach onto a different parent than the current one is resolved
// last-write-wins and surfaces a warning instead of failing.
func (s *Session) Apply(ev Event) (OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case EventResourceRegistered:
		if err := s.graph.Register(ev.Resource, ev.ResourceType, ev.Name); err != nil {
			return OperationResult{}, err
		}
		return OperationResult{Success: true, Affected: []ResourceID{ev.Resource}}, nil

	case EventJobRegistered:
		job := Job{ID: JobID(ev.Resource), Type: ev.JobType, Name: ev.Name}
		if existing, ok := s.jobs[job.ID]; ok && existing.Type != job.Type {
			return OperationResult{}, invariant("apply", "job %s type mismatch on replay", job.ID)
		}
		s.jobs[job.ID] = job
		return OperationResult{Success: true}, nil

	case EventDropped:
		if ev.Cell == nil {
			return OperationResult{}, invariant("apply", "dropped event without cell")
		}
		if _, err := s.graph.Resource(ev.Resource); err != nil {
			return OperationResult{}, err
		}
		s.board.Place(ev.Resource, *ev.Cell)
		return s.resultFor([]ResourceID{ev.Resource}, nil), nil

	case EventAttached:
		return s.applyAttach(ev)

	case EventDetached:
		if _, err := s.graph.Detach(ev.Resource); err != nil {
			return OperationResult{}, err
		}
		affected := []ResourceID{ev.Resource}
		if ev.Parent != "" {
			affected = append(affected, ev.Parent)
		}
		return s.resultFor(affected, nil), nil

	case EventMoved:
		if ev.Cell == nil {
			return OperationResult{}, invariant("apply", "moved event without cell")
		}
		for _, id := range ev.Affected {
			if _, err := s.graph.Resource(id); err != nil {
				return OperationResult{}, err
			}
		}
		for _, id := range ev.Affected {
			s.board.RemoveAll(id)
			s.board.Place(id, *ev.Cell)
		}
		return s.resultFor(ev.Affected, nil), nil

	case EventRemovedFromBoard:
		for _, id := range ev.Affected {
			s.board.RemoveAll(id)
		}
		return s.resultFor(ev.Affected, nil), nil

	case EventCatalogReplaced:
		// Catalog content travels out of band; nothing to replay.
		return OperationResult{Success: true}, nil

	default:
		return OperationResult{}, invariant("apply", "unknown event kind %q", ev.Kind)
	}
}

// applyAttach performs last-write-wins reattachment on replay.
func (s *Session) applyAttach(ev Event) (OperationResult, error) {
	child, err := s.graph.Resource(ev.Resource)
	if err != nil {
		return OperationResult{}, err
	}
	if _, err := s.graph.Resource(ev.Parent); err != nil {
		return OperationResult{}, err
	}

	affected := []ResourceID{ev.Resource, ev.Parent}
	if child.ParentID == ev.Parent {
		return s.resultFor(affected, nil), nil
	}

	var warnings []string
	if child.ParentID != "" {
		if _, err := s.graph.Detach(ev.Resource); err != nil {
			return OperationResult{}, err
		}
		warnings = append(warnings,
			fmt.Sprintf("resource %s reattached from %s to %s (last write wins)",
				ev.Resource, child.ParentID, ev.Parent))
		affected = append(affected, child.ParentID)
	}
	// Replayed edges were validated at their origin; restore keeps only
	// the structural invariants so a mid-stream catalog swap cannot make
	// replicas diverge from the origin board.
	if err := s.graph.restore(ev.Resource, ev.Parent); err != nil {
		return OperationResult{}, err
	}
	return s.resultFor(affected, nil, warnings...), nil
}
