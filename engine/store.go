/*
store.go - Persistence interface for board state and the event log

PURPOSE:
  Defines the interface between the engine and the database. The store is
  the source of truth on load: LoadSession rebuilds the catalog, roster,
  attachment edges and board from it at startup. During operation the
  caller (typically the HTTP layer) writes each successful mutation back.

WRITE DISCIPLINE:
  - Resources, jobs and attachments are written individually
  - Assignments are written per resource with ReplaceAssignmentsFor, which
    makes the write idempotent: re-delivering the same mutation rewrites
    the same rows
  - Events are append-only; the audit trail is never updated or deleted

IMPLEMENTATIONS:
  - store/sqlite:      Production SQLite
  - engine/store:      In-memory for tests and demo mode

SEE ALSO:
  - session.go: The in-memory state the store persists
  - store/sqlite/sqlite.go: Concrete implementation
*/
package engine

import "context"

// Store persists catalog, roster, graph edges, board cells and events.
type Store interface {
	// ReplaceCatalog overwrites the persisted rule tables.
	ReplaceCatalog(ctx context.Context, spec CatalogSpec) error

	// LoadCatalog returns the persisted rule tables, or nil if none were
	// ever saved.
	LoadCatalog(ctx context.Context) (*CatalogSpec, error)

	// SaveResource upserts one roster entry (id, type, name).
	SaveResource(ctx context.Context, r Resource) error
	ListResources(ctx context.Context) ([]Resource, error)

	// SaveJob upserts one job.
	SaveJob(ctx context.Context, j Job) error
	ListJobs(ctx context.Context) ([]Job, error)

	// SaveAttachment upserts the child's single parent edge.
	SaveAttachment(ctx context.Context, a Attachment) error
	// DeleteAttachment removes the child's edge. No-op if absent.
	DeleteAttachment(ctx context.Context, child ResourceID) error
	ListAttachments(ctx context.Context) ([]Attachment, error)

	// ReplaceAssignmentsFor atomically rewrites every cell of one resource.
	ReplaceAssignmentsFor(ctx context.Context, id ResourceID, cells []Cell) error
	ListAssignments(ctx context.Context) ([]Assignment, error)

	// AppendEvent records one mutation in the audit trail.
	AppendEvent(ctx context.Context, ev Event) error
	// ListEvents returns the most recent events, newest first.
	ListEvents(ctx context.Context, limit int) ([]Event, error)

	Close() error
}

// LoadSession rebuilds a session from persisted state. The catalog
// argument is used when the store has none saved (first boot). Persisted
// attachments are restored structurally even if the current catalog no
// longer permits the pair; the rule engine governs new mutations, not
// history.
func LoadSession(ctx context.Context, st Store, fallback *Catalog, b Broadcaster) (*Session, error) {
	spec, err := st.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	cat := fallback
	if spec != nil {
		cat = NewCatalog(*spec)
	}

	s := NewSession(cat, b)

	resources, err := st.ListResources(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range resources {
		if err := s.graph.Register(r.ID, r.Type, r.Name); err != nil {
			return nil, err
		}
	}

	jobs, err := st.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}

	attachments, err := st.ListAttachments(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range attachments {
		if err := s.graph.restore(a.Child, a.Parent); err != nil {
			return nil, err
		}
	}

	assignments, err := st.ListAssignments(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		if _, err := s.graph.Resource(a.Resource); err != nil {
			return nil, err
		}
		s.board.Place(a.Resource, a.Cell)
	}

	return s, nil
}

// PersistResult writes one successful mutation back to the store: the
// event (when one was emitted) plus the current cells of every affected
// resource. Attach/detach edges are persisted from the event itself.
func PersistResult(ctx context.Context, st Store, s *Session, res OperationResult) error {
	if !res.Success {
		return nil
	}
	if res.Event != nil {
		switch res.Event.Kind {
		case EventAttached:
			if err := st.SaveAttachment(ctx, Attachment{Child: res.Event.Resource, Parent: res.Event.Parent}); err != nil {
				return err
			}
		case EventDetached:
			if err := st.DeleteAttachment(ctx, res.Event.Resource); err != nil {
				return err
			}
		}
		if err := st.AppendEvent(ctx, *res.Event); err != nil {
			return err
		}
	}
	for _, id := range res.Affected {
		if err := st.ReplaceAssignmentsFor(ctx, id, s.CellsFor(id)); err != nil {
			return err
		}
	}
	return nil
}
