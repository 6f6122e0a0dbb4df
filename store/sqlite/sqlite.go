/*
Package sqlite provides a SQLite-backed implementation of engine.Store.

PURPOSE:
  Persists the rule tables, roster, attachment edges, board assignments
  and the mutation event log. On boot engine.LoadSession reads all of it
  back and rebuilds the in-memory graph and board; during operation each
  successful mutation is written through.

KEY TABLES:
  attachment_rules:  (source, target) -> canAttach, maxCount, required
  drop_rules:        one row per (row_type, resource_type) pair
  row_schemas:       ordered rows per job type
  resources:         roster (id, type, name)
  jobs:              scheduled jobs (id, type, name)
  attachments:       child -> parent edges (child unique)
  assignments:       (resource, job, row, date, shift), unique
  events:            append-only mutation audit trail

WRITE DISCIPLINE:
  Rule tables are replaced wholesale inside one transaction (the catalog
  swap is all-or-nothing on disk too). Assignments are rewritten per
  resource inside one transaction, which makes persisting a mutation
  idempotent. Events are append-only: no UPDATE, no DELETE.

WAL MODE:
  The database is opened with WAL for better read concurrency and crash
  recovery. A sync.RWMutex serializes writers; the board's operation rate
  is human drag-and-drop, not a throughput path.

SEE ALSO:
  - engine/store.go: Interface definition and LoadSession
  - engine/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/dispatch-engine/engine"
)

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ engine.Store = (*Store)(nil)

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Rule tables (replaced wholesale on catalog swap)
	CREATE TABLE IF NOT EXISTS attachment_rules (
		source_type TEXT NOT NULL,
		target_type TEXT NOT NULL,
		can_attach INTEGER NOT NULL,
		max_count INTEGER NOT NULL,
		is_required INTEGER NOT NULL,
		PRIMARY KEY (source_type, target_type)
	);

	CREATE TABLE IF NOT EXISTS drop_rules (
		row_type TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		PRIMARY KEY (row_type, resource_type)
	);

	CREATE TABLE IF NOT EXISTS row_schemas (
		job_type TEXT NOT NULL,
		position INTEGER NOT NULL,
		row_type TEXT NOT NULL,
		PRIMARY KEY (job_type, position)
	);

	-- Roster
	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT ''
	);

	-- Attachment edges: one parent per child
	CREATE TABLE IF NOT EXISTS attachments (
		child_id TEXT PRIMARY KEY,
		parent_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attachments_parent
		ON attachments(parent_id);

	-- Board assignments: a cell holds a set of resources
	CREATE TABLE IF NOT EXISTS assignments (
		resource_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		row_type TEXT NOT NULL,
		date TEXT NOT NULL,
		shift TEXT NOT NULL,
		UNIQUE (resource_id, job_id, row_type, date, shift)
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_resource
		ON assignments(resource_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_job_date
		ON assignments(job_id, date, shift);

	-- Mutation audit trail (append-only)
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_seq
		ON events(seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) ReplaceCatalog(ctx context.Context, spec engine.CatalogSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"attachment_rules", "drop_rules", "row_schemas"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	for _, r := range spec.AttachmentRules {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO attachment_rules
				(source_type, target_type, can_attach, max_count, is_required)
			VALUES (?, ?, ?, ?, ?)`,
			r.Source, r.Target, boolInt(r.CanAttach), r.MaxCount, boolInt(r.Required))
		if err != nil {
			return err
		}
	}
	for _, d := range spec.DropRules {
		for _, t := range d.Allowed {
			_, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO drop_rules (row_type, resource_type)
				VALUES (?, ?)`, d.Row, t)
			if err != nil {
				return err
			}
		}
	}
	for _, rs := range spec.RowSchemas {
		for i, row := range rs.Rows {
			_, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO row_schemas (job_type, position, row_type)
				VALUES (?, ?, ?)`, rs.Job, i, row)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (s *Store) LoadCatalog(ctx context.Context) (*engine.CatalogSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var spec engine.CatalogSpec

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_type, target_type, can_attach, max_count, is_required
		FROM attachment_rules ORDER BY source_type, target_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var r engine.AttachmentRule
		var canAttach, required int
		if err := rows.Scan(&r.Source, &r.Target, &canAttach, &r.MaxCount, &required); err != nil {
			return nil, err
		}
		r.CanAttach = canAttach != 0
		r.Required = required != 0
		spec.AttachmentRules = append(spec.AttachmentRules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dropRows, err := s.db.QueryContext(ctx, `
		SELECT row_type, resource_type FROM drop_rules ORDER BY row_type, resource_type`)
	if err != nil {
		return nil, err
	}
	defer dropRows.Close()
	byRow := make(map[engine.RowType][]engine.ResourceType)
	var rowOrder []engine.RowType
	for dropRows.Next() {
		var row engine.RowType
		var t engine.ResourceType
		if err := dropRows.Scan(&row, &t); err != nil {
			return nil, err
		}
		if _, ok := byRow[row]; !ok {
			rowOrder = append(rowOrder, row)
		}
		byRow[row] = append(byRow[row], t)
	}
	if err := dropRows.Err(); err != nil {
		return nil, err
	}
	for _, row := range rowOrder {
		spec.DropRules = append(spec.DropRules, engine.DropRule{Row: row, Allowed: byRow[row]})
	}

	schemaRows, err := s.db.QueryContext(ctx, `
		SELECT job_type, row_type FROM row_schemas ORDER BY job_type, position`)
	if err != nil {
		return nil, err
	}
	defer schemaRows.Close()
	byJob := make(map[engine.JobType][]engine.RowType)
	var jobOrder []engine.JobType
	for schemaRows.Next() {
		var job engine.JobType
		var row engine.RowType
		if err := schemaRows.Scan(&job, &row); err != nil {
			return nil, err
		}
		if _, ok := byJob[job]; !ok {
			jobOrder = append(jobOrder, job)
		}
		byJob[job] = append(byJob[job], row)
	}
	if err := schemaRows.Err(); err != nil {
		return nil, err
	}
	for _, job := range jobOrder {
		spec.RowSchemas = append(spec.RowSchemas, engine.RowSchema{Job: job, Rows: byJob[job]})
	}

	if len(spec.AttachmentRules) == 0 && len(spec.DropRules) == 0 && len(spec.RowSchemas) == 0 {
		return nil, nil // never saved
	}
	return &spec, nil
}

// =============================================================================
// ROSTER
// =============================================================================

func (s *Store) SaveResource(ctx context.Context, r engine.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (id, type, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET type = excluded.type, name = excluded.name`,
		r.ID, r.Type, r.Name)
	return err
}

func (s *Store) ListResources(ctx context.Context) ([]engine.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, name FROM resources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.Resource
	for rows.Next() {
		var r engine.Resource
		if err := rows.Scan(&r.ID, &r.Type, &r.Name); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SaveJob(ctx context.Context, j engine.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET type = excluded.type, name = excluded.name`,
		j.ID, j.Type, j.Name)
	return err
}

func (s *Store) ListJobs(ctx context.Context) ([]engine.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, name FROM jobs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.Job
	for rows.Next() {
		var j engine.Job
		if err := rows.Scan(&j.ID, &j.Type, &j.Name); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

func (s *Store) SaveAttachment(ctx context.Context, a engine.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (child_id, parent_id) VALUES (?, ?)
		ON CONFLICT(child_id) DO UPDATE SET parent_id = excluded.parent_id`,
		a.Child, a.Parent)
	return err
}

func (s *Store) DeleteAttachment(ctx context.Context, child engine.ResourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE child_id = ?`, child)
	return err
}

func (s *Store) ListAttachments(ctx context.Context) ([]engine.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT child_id, parent_id FROM attachments ORDER BY child_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.Attachment
	for rows.Next() {
		var a engine.Attachment
		if err := rows.Scan(&a.Child, &a.Parent); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (s *Store) ReplaceAssignmentsFor(ctx context.Context, id engine.ResourceID, cells []engine.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE resource_id = ?`, id); err != nil {
		return err
	}
	for _, c := range cells {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO assignments (resource_id, job_id, row_type, date, shift)
			VALUES (?, ?, ?, ?, ?)`,
			id, c.JobID, c.Row, c.Date, c.Shift)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListAssignments(ctx context.Context) ([]engine.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT resource_id, job_id, row_type, date, shift
		FROM assignments ORDER BY resource_id, job_id, row_type, date, shift`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.Assignment
	for rows.Next() {
		var a engine.Assignment
		if err := rows.Scan(&a.Resource, &a.Cell.JobID, &a.Cell.Row, &a.Cell.Date, &a.Cell.Shift); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// EVENTS - append-only audit trail
// =============================================================================

func (s *Store) AppendEvent(ctx context.Context, ev engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events (id, seq, kind, payload_json, at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.Seq, ev.Kind, string(payload), ev.At.Format(time.RFC3339Nano))
	return err
}

func (s *Store) ListEvents(ctx context.Context, limit int) ([]engine.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload_json FROM events ORDER BY seq DESC, at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev engine.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
