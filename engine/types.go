/*
Package engine provides the core assignment and attachment rule engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for a
  job-scheduling board: resources (people, equipment, trucks) are assigned
  to typed rows of a job for a given date and shift, and resources can be
  attached to one another (an operator onto an excavator, a driver onto a
  truck) so they move as one unit.

KEY CONCEPTS IN THIS FILE (types.go):
  - Resource:   A schedulable unit with at most one parent and a bounded
                set of attached children
  - Cell:       The (job, row, date, shift) slot that holds assigned resources
  - Assignment: A resource occupying a cell
  - Date/Shift: Calendar day plus day/night shift

DESIGN PRINCIPLES:
  1. Flat arena: resources live in a table keyed by id; parent/child
     relations are id references, never object pointers
  2. Type safety: strong typing for ids prevents mixing resource/job ids
  3. Comparable cells: Cell is a value type usable as a map key
  4. Pure core: nothing in this package performs I/O

USAGE:
  cell := engine.Cell{JobID: "job-1", Row: "crew", Date: engine.NewDate(2026, time.March, 2), Shift: engine.ShiftDay}
  res, _ := session.ProposeDrop("op-7", cell)

SEE ALSO:
  - catalog.go: Rule tables (attachment, drop, row schema)
  - graph.go:   Attachment graph operations
  - board.go:   Assignment board (cell index)
  - session.go: Serialized facade over graph + board + catalog
*/
package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ResourceID string
type JobID string

// ResourceType identifies what kind of resource a unit is (operator, driver,
// excavator, ...). The engine treats the set as opaque; the construction
// package defines the concrete values.
type ResourceType string

// RowType identifies a typed row within a job (crew, equipment, trucks, ...).
type RowType string

// JobType selects which rows a job exposes (see Catalog.RowsFor).
type JobType string

// =============================================================================
// SHIFT - day or night
// =============================================================================

type Shift string

const (
	ShiftDay   Shift = "day"
	ShiftNight Shift = "night"
)

// Shifts lists all shifts in board order.
var Shifts = []Shift{ShiftDay, ShiftNight}

// Valid reports whether s is a known shift.
func (s Shift) Valid() bool {
	return s == ShiftDay || s == ShiftNight
}

// =============================================================================
// DATE - calendar day, comparable and sortable as a string
// =============================================================================

// Date is a calendar day in "2006-01-02" form. The string representation
// sorts chronologically and is directly usable as a map key, which is why
// it is not a time.Time (monotonic clocks and locations have no business
// on a scheduling board).
type Date string

const dateLayout = "2006-01-02"

// NewDate builds a Date from calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(dateLayout))
}

// ParseDate validates and normalizes a "2006-01-02" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(t.Format(dateLayout)), nil
}

// Time returns the day at midnight UTC. Zero time for a malformed Date.
func (d Date) Time() time.Time {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Valid reports whether the date parses.
func (d Date) Valid() bool {
	_, err := time.Parse(dateLayout, string(d))
	return err == nil
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return Date(d.Time().AddDate(0, 0, 1).Format(dateLayout))
}

// DaysInRange counts calendar days in [from, to] inclusive.
// Returns 0 when the range is empty or malformed.
func DaysInRange(from, to Date) int {
	if !from.Valid() || !to.Valid() || from > to {
		return 0
	}
	return int(to.Time().Sub(from.Time()).Hours()/24) + 1
}

// =============================================================================
// CELL - the (job, row, date, shift) slot holding assigned resources
// =============================================================================

type Cell struct {
	JobID JobID   `json:"jobId"`
	Row   RowType `json:"row"`
	Date  Date    `json:"date"`
	Shift Shift   `json:"shift"`
}

func (c Cell) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", c.JobID, c.Row, c.Date, c.Shift)
}

// Validate reports structural problems with the cell (empty fields,
// malformed date, unknown shift). It does not consult any rule table.
func (c Cell) Validate() error {
	if c.JobID == "" || c.Row == "" {
		return fmt.Errorf("cell %s: job and row are required", c)
	}
	if !c.Date.Valid() {
		return fmt.Errorf("cell %s: malformed date", c)
	}
	if !c.Shift.Valid() {
		return fmt.Errorf("cell %s: unknown shift %q", c, c.Shift)
	}
	return nil
}

// compareCells orders cells by (job, row, date, shift) for deterministic output.
func compareCells(a, b Cell) int {
	switch {
	case a.JobID != b.JobID:
		return compareStrings(string(a.JobID), string(b.JobID))
	case a.Row != b.Row:
		return compareStrings(string(a.Row), string(b.Row))
	case a.Date != b.Date:
		return compareStrings(string(a.Date), string(b.Date))
	default:
		return compareStrings(string(a.Shift), string(b.Shift))
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// =============================================================================
// RESOURCE - schedulable unit in the attachment arena
// =============================================================================

// Resource is a schedulable unit. ParentID is empty for an unattached
// resource; ChildIDs holds directly attached resources, bounded per type by
// the catalog's attachment rules. The graph owns the canonical copies;
// reads hand out value copies.
type Resource struct {
	ID       ResourceID   `json:"id"`
	Type     ResourceType `json:"type"`
	Name     string       `json:"name,omitempty"`
	ParentID ResourceID   `json:"parentId,omitempty"`
	ChildIDs []ResourceID `json:"childIds,omitempty"`
}

// Attached reports whether the resource currently has a parent.
func (r Resource) Attached() bool {
	return r.ParentID != ""
}

// =============================================================================
// JOB - a scheduled job on the board
// =============================================================================

type Job struct {
	ID   JobID   `json:"id"`
	Type JobType `json:"type"`
	Name string  `json:"name,omitempty"`
}

// =============================================================================
// ASSIGNMENT / ATTACHMENT - persisted state shape
// =============================================================================

// Assignment is the persisted form of "resource occupies cell".
type Assignment struct {
	Resource ResourceID `json:"resourceId"`
	Cell     Cell       `json:"cell"`
}

// Attachment is the persisted form of a parent/child edge.
type Attachment struct {
	Child  ResourceID `json:"childId"`
	Parent ResourceID `json:"parentId"`
}
