/*
Package store provides an in-memory implementation of engine.Store.

PURPOSE:
  Backs tests and demo mode with the same interface the SQLite store
  implements, so session/load/persist paths can be exercised without a
  database file.

SEMANTICS:
  Mirrors the SQLite implementation: upserts by key, idempotent deletes,
  append-only event log. Safe for concurrent use.

SEE ALSO:
  - engine/store.go: Interface definition
  - store/sqlite:    Production implementation
*/
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/dispatch-engine/engine"
)

// Memory is an in-memory engine.Store.
type Memory struct {
	mu          sync.RWMutex
	catalog     *engine.CatalogSpec
	resources   map[engine.ResourceID]engine.Resource
	jobs        map[engine.JobID]engine.Job
	attachments map[engine.ResourceID]engine.ResourceID // child -> parent
	assignments map[engine.ResourceID][]engine.Cell
	events      []engine.Event
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		resources:   make(map[engine.ResourceID]engine.Resource),
		jobs:        make(map[engine.JobID]engine.Job),
		attachments: make(map[engine.ResourceID]engine.ResourceID),
		assignments: make(map[engine.ResourceID][]engine.Cell),
	}
}

func (m *Memory) ReplaceCatalog(_ context.Context, spec engine.CatalogSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := spec
	m.catalog = &cp
	return nil
}

func (m *Memory) LoadCatalog(_ context.Context) (*engine.CatalogSpec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.catalog == nil {
		return nil, nil
	}
	cp := *m.catalog
	return &cp, nil
}

func (m *Memory) SaveResource(_ context.Context, r engine.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[r.ID] = engine.Resource{ID: r.ID, Type: r.Type, Name: r.Name}
	return nil
}

func (m *Memory) ListResources(_ context.Context) ([]engine.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Resource, 0, len(m.resources))
	for _, r := range m.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveJob(_ context.Context, j engine.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
	return nil
}

func (m *Memory) ListJobs(_ context.Context) ([]engine.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveAttachment(_ context.Context, a engine.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachments[a.Child] = a.Parent
	return nil
}

func (m *Memory) DeleteAttachment(_ context.Context, child engine.ResourceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attachments, child)
	return nil
}

func (m *Memory) ListAttachments(_ context.Context) ([]engine.Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Attachment, 0, len(m.attachments))
	for child, parent := range m.attachments {
		out = append(out, engine.Attachment{Child: child, Parent: parent})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Child < out[j].Child })
	return out, nil
}

func (m *Memory) ReplaceAssignmentsFor(_ context.Context, id engine.ResourceID, cells []engine.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(cells) == 0 {
		delete(m.assignments, id)
		return nil
	}
	m.assignments[id] = append([]engine.Cell(nil), cells...)
	return nil
}

func (m *Memory) ListAssignments(_ context.Context) ([]engine.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Assignment
	for id, cells := range m.assignments {
		for _, c := range cells {
			out = append(out, engine.Assignment{Resource: id, Cell: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Cell.String() < out[j].Cell.String()
	})
	return out, nil
}

func (m *Memory) AppendEvent(_ context.Context, ev engine.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *Memory) ListEvents(_ context.Context, limit int) ([]engine.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]engine.Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
