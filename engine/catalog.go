/*
catalog.go - Rule tables: attachment rules, drop rules, row schemas

PURPOSE:
  The Catalog answers three questions, all in O(1):
  1. May a resource of type S attach to a resource of type T, how many
     may a T hold, and is at least one required? (AttachmentRule)
  2. Which resource types does a row type accept?                (DropRule)
  3. Which rows does a job of a given type expose?               (RowSchema)

IMMUTABILITY:
  A Catalog is immutable after construction. Administrative edits build a
  NEW catalog and swap it into a Holder atomically, so in-flight checks
  always see one consistent rule set and readers never block on an edit.

LOOKUP SEMANTICS:
  All lookups are pure and total: the absence of a rule means "not
  allowed" (or "no rows"), never an error.

USAGE:
  cat := engine.NewCatalog(engine.CatalogSpec{
      AttachmentRules: []engine.AttachmentRule{
          {Source: "operator", Target: "excavator", CanAttach: true, MaxCount: 1, Required: true},
      },
      DropRules: []engine.DropRule{{Row: "crew", Allowed: []engine.ResourceType{"operator"}}},
  })
  cat.CanAttach("operator", "excavator") // true

SEE ALSO:
  - graph.go:     Enforces attachment rules on mutation
  - validator.go: Consults drop rules
  - finalize.go:  Walks required attachment rules
*/
package engine

import (
	"sort"
	"sync/atomic"
)

// =============================================================================
// RULE RECORDS - persisted shape, input to NewCatalog
// =============================================================================

// AttachmentRule: "a Target may hold at most MaxCount attached Source
// children; if Required, it cannot be finalized without at least one."
// Rules with CanAttach=false are tombstones: equivalent to no rule, kept
// only so a persisted table can disable a pair explicitly.
type AttachmentRule struct {
	Source    ResourceType `json:"sourceType" yaml:"source"`
	Target    ResourceType `json:"targetType" yaml:"target"`
	CanAttach bool         `json:"canAttach"  yaml:"canAttach"`
	MaxCount  int          `json:"maxCount"   yaml:"maxCount"`
	Required  bool         `json:"isRequired" yaml:"required"`
}

// DropRule lists the resource types a row type accepts.
type DropRule struct {
	Row     RowType        `json:"rowType" yaml:"row"`
	Allowed []ResourceType `json:"allowedTypes" yaml:"allowed"`
}

// RowSchema is the ordered list of rows a job type exposes.
type RowSchema struct {
	Job  JobType   `json:"jobType" yaml:"job"`
	Rows []RowType `json:"rows" yaml:"rows"`
}

// CatalogSpec is the buildable/persistable form of a catalog.
type CatalogSpec struct {
	AttachmentRules []AttachmentRule `json:"attachmentRules" yaml:"attachmentRules"`
	DropRules       []DropRule       `json:"dropRules" yaml:"dropRules"`
	RowSchemas      []RowSchema      `json:"rowSchemas" yaml:"rowSchemas"`
}

// =============================================================================
// CATALOG - immutable snapshot with O(1) lookups
// =============================================================================

type typePair struct {
	source ResourceType
	target ResourceType
}

type Catalog struct {
	attach   map[typePair]AttachmentRule
	drop     map[RowType]map[ResourceType]struct{}
	rows     map[JobType][]RowType
	required map[ResourceType][]ResourceType // target type -> required source types
	spec     CatalogSpec
}

// NewCatalog indexes a CatalogSpec into an immutable Catalog.
// Later duplicates of the same (source, target) or row key win, so callers
// can layer overrides on top of a base spec.
func NewCatalog(spec CatalogSpec) *Catalog {
	c := &Catalog{
		attach:   make(map[typePair]AttachmentRule, len(spec.AttachmentRules)),
		drop:     make(map[RowType]map[ResourceType]struct{}, len(spec.DropRules)),
		rows:     make(map[JobType][]RowType, len(spec.RowSchemas)),
		required: make(map[ResourceType][]ResourceType),
		spec:     spec,
	}

	for _, r := range spec.AttachmentRules {
		c.attach[typePair{r.Source, r.Target}] = r
	}
	for _, d := range spec.DropRules {
		set := make(map[ResourceType]struct{}, len(d.Allowed))
		for _, t := range d.Allowed {
			set[t] = struct{}{}
		}
		c.drop[d.Row] = set
	}
	for _, s := range spec.RowSchemas {
		rows := make([]RowType, len(s.Rows))
		copy(rows, s.Rows)
		c.rows[s.Job] = rows
	}

	// Pre-compute required source types per target for the finalization walk.
	for _, r := range c.attach {
		if r.CanAttach && r.Required && r.MaxCount > 0 {
			c.required[r.Target] = append(c.required[r.Target], r.Source)
		}
	}
	for _, sources := range c.required {
		sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	}

	return c
}

// CanAttach reports whether a source type may attach to a target type.
func (c *Catalog) CanAttach(source, target ResourceType) bool {
	r, ok := c.attach[typePair{source, target}]
	return ok && r.CanAttach && r.MaxCount > 0
}

// MaxCount returns how many source children a target may hold. Zero when
// the pair is not allowed.
func (c *Catalog) MaxCount(source, target ResourceType) int {
	r, ok := c.attach[typePair{source, target}]
	if !ok || !r.CanAttach {
		return 0
	}
	return r.MaxCount
}

// IsRequired reports whether a target cannot be finalized without at least
// one attached source child.
func (c *Catalog) IsRequired(source, target ResourceType) bool {
	r, ok := c.attach[typePair{source, target}]
	return ok && r.CanAttach && r.Required
}

// RequiredSources returns the source types a target type must have attached
// before finalization, in stable order.
func (c *Catalog) RequiredSources(target ResourceType) []ResourceType {
	return c.required[target]
}

// Allows reports whether a row type accepts a resource type.
func (c *Catalog) Allows(row RowType, t ResourceType) bool {
	set, ok := c.drop[row]
	if !ok {
		return false
	}
	_, ok = set[t]
	return ok
}

// AllowedTypes returns the resource types a row accepts, in stable order.
func (c *Catalog) AllowedTypes(row RowType) []ResourceType {
	set := c.drop[row]
	out := make([]ResourceType, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RowsFor returns the ordered rows a job type exposes. Empty when unknown.
func (c *Catalog) RowsFor(job JobType) []RowType {
	rows := c.rows[job]
	out := make([]RowType, len(rows))
	copy(out, rows)
	return out
}

// Spec returns the buildable form this catalog was indexed from.
func (c *Catalog) Spec() CatalogSpec {
	return c.spec
}

// =============================================================================
// HOLDER - atomic catalog swap for administrative edits
// =============================================================================

// Holder publishes the current catalog snapshot. Replace swaps the whole
// catalog atomically; readers never observe a half-updated rule set.
type Holder struct {
	current atomic.Pointer[Catalog]
}

// NewHolder creates a holder seeded with the given catalog.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// Load returns the current snapshot. Callers hold the returned pointer for
// the duration of one operation so every check within it sees one rule set.
func (h *Holder) Load() *Catalog {
	return h.current.Load()
}

// Replace installs a new catalog. In-flight operations keep the snapshot
// they loaded; subsequent operations see the new one.
func (h *Holder) Replace(c *Catalog) {
	h.current.Store(c)
}
