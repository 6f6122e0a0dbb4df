/*
graph.go - Attachment graph: the resource arena and its parent/child edges

PURPOSE:
  Holds every registered resource in a flat table keyed by id, plus the
  attachment edges between them. A resource has at most one parent and a
  bounded set of children; the bound comes from the catalog's attachment
  rules at mutation time.

DEPTH INVARIANT:
  Attachments are depth-1: a resource that has a parent cannot receive
  children, and a resource that has children cannot gain a parent. The
  check lives in CheckAttach; Subtree is still written recursively so a
  deeper rule set only has to relax the check.

IDEMPOTENCY:
  Attach of an already-attached pair is a no-op success; Detach of an
  unattached child is a no-op. Duplicate delivery of the same mutation
  therefore cannot corrupt the graph.

MUTATION DISCIPLINE:
  CheckAttach performs every rule check without mutating; Attach is
  CheckAttach followed by the two map writes. A failed Attach leaves the
  graph untouched.

SEE ALSO:
  - catalog.go:   Attachment rules consulted here
  - validator.go: Re-uses CheckAttach as the single audit point
  - mover.go:     Uses Subtree to move chains
*/
package engine

import "sort"

// AttachmentGraph is the in-memory arena of resources and attachment edges.
// It is not safe for concurrent use; the Session serializes access.
type AttachmentGraph struct {
	resources map[ResourceID]*Resource
}

// NewAttachmentGraph creates an empty graph.
func NewAttachmentGraph() *AttachmentGraph {
	return &AttachmentGraph{resources: make(map[ResourceID]*Resource)}
}

// =============================================================================
// ARENA - registration and reads
// =============================================================================

// Register adds a resource to the arena. Re-registering the same id with
// the same type is a no-op (idempotent replay); with a different type it
// is an invariant violation.
func (g *AttachmentGraph) Register(id ResourceID, t ResourceType, name string) error {
	if id == "" || t == "" {
		return invariant("register", "resource id and type are required")
	}
	if existing, ok := g.resources[id]; ok {
		if existing.Type != t {
			return invariant("register", "resource %s already registered as %s, not %s", id, existing.Type, t)
		}
		if name != "" {
			existing.Name = name
		}
		return nil
	}
	g.resources[id] = &Resource{ID: id, Type: t, Name: name}
	return nil
}

// Resource returns a value copy of the resource, children sorted.
func (g *AttachmentGraph) Resource(id ResourceID) (Resource, error) {
	r, ok := g.resources[id]
	if !ok {
		return Resource{}, unknownResource("resource", id)
	}
	out := *r
	out.ChildIDs = append([]ResourceID(nil), r.ChildIDs...)
	sort.Slice(out.ChildIDs, func(i, j int) bool { return out.ChildIDs[i] < out.ChildIDs[j] })
	return out, nil
}

// All returns every registered resource sorted by id.
func (g *AttachmentGraph) All() []Resource {
	out := make([]Resource, 0, len(g.resources))
	for id := range g.resources {
		r, _ := g.Resource(id)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// childCount counts attached children of the given type.
func (g *AttachmentGraph) childCount(parent *Resource, t ResourceType) int {
	n := 0
	for _, cid := range parent.ChildIDs {
		if c, ok := g.resources[cid]; ok && c.Type == t {
			n++
		}
	}
	return n
}

// =============================================================================
// ATTACH / DETACH
// =============================================================================

// CheckAttach runs every attach rule without mutating. A nil return means
// Attach would succeed; ErrAlreadyAttached wrapped in an AttachError with
// the same parent is reported as nil (no-op attach).
func (g *AttachmentGraph) CheckAttach(cat *Catalog, childID, parentID ResourceID) error {
	child, ok := g.resources[childID]
	if !ok {
		return unknownResource("attach", childID)
	}
	parent, ok := g.resources[parentID]
	if !ok {
		return unknownResource("attach", parentID)
	}
	if childID == parentID {
		return invariant("attach", "resource %s cannot attach to itself", childID)
	}

	fail := func(reason error) error {
		return &AttachError{
			Child: childID, Parent: parentID,
			ChildType: child.Type, ParentType: parent.Type,
			Reason: reason,
		}
	}

	if child.ParentID == parentID {
		return nil // already attached here: no-op
	}
	if child.ParentID != "" {
		return fail(ErrAlreadyAttached)
	}
	if !cat.CanAttach(child.Type, parent.Type) {
		return fail(ErrAttachNotAllowed)
	}
	// Depth-1: an attached resource hosts no further attachments.
	if len(child.ChildIDs) > 0 || parent.ParentID != "" {
		return fail(ErrAttachNotAllowed)
	}
	if g.childCount(parent, child.Type) >= cat.MaxCount(child.Type, parent.Type) {
		return fail(ErrMaxCountExceeded)
	}
	return nil
}

// Attach links child under parent after CheckAttach passes.
// Attaching to the current parent is a no-op success.
func (g *AttachmentGraph) Attach(cat *Catalog, childID, parentID ResourceID) error {
	if err := g.CheckAttach(cat, childID, parentID); err != nil {
		return err
	}
	child := g.resources[childID]
	if child.ParentID == parentID {
		return nil
	}
	parent := g.resources[parentID]
	child.ParentID = parentID
	parent.ChildIDs = append(parent.ChildIDs, childID)
	return nil
}

// Detach removes the child's parent edge. Never rule-restricted; returns
// whether an edge actually existed (false for an idempotent no-op).
func (g *AttachmentGraph) Detach(childID ResourceID) (bool, error) {
	child, ok := g.resources[childID]
	if !ok {
		return false, unknownResource("detach", childID)
	}
	if child.ParentID == "" {
		return false, nil
	}
	parent, ok := g.resources[child.ParentID]
	if !ok {
		return false, invariant("detach", "resource %s points at missing parent %s", childID, child.ParentID)
	}
	for i, cid := range parent.ChildIDs {
		if cid == childID {
			parent.ChildIDs = append(parent.ChildIDs[:i], parent.ChildIDs[i+1:]...)
			break
		}
	}
	child.ParentID = ""
	return true, nil
}

// restore re-creates a persisted edge without rule checks. Structural
// invariants (existence, single parent, depth-1) still hold. Used when
// rebuilding a session from the store, where edges may predate the
// current catalog.
func (g *AttachmentGraph) restore(childID, parentID ResourceID) error {
	child, ok := g.resources[childID]
	if !ok {
		return unknownResource("restore", childID)
	}
	parent, ok := g.resources[parentID]
	if !ok {
		return unknownResource("restore", parentID)
	}
	if child.ParentID == parentID {
		return nil
	}
	if child.ParentID != "" {
		return invariant("restore", "resource %s already has parent %s", childID, child.ParentID)
	}
	if len(child.ChildIDs) > 0 || parent.ParentID != "" {
		return invariant("restore", "edge %s -> %s would exceed attachment depth", childID, parentID)
	}
	child.ParentID = parentID
	parent.ChildIDs = append(parent.ChildIDs, childID)
	return nil
}

// =============================================================================
// SUBTREE - root plus all descendants
// =============================================================================

// Subtree returns the root followed by all descendants, children sorted by
// id at each level. With depth-1 attachments this is root + direct
// children, but the walk is recursive on purpose.
func (g *AttachmentGraph) Subtree(rootID ResourceID) ([]ResourceID, error) {
	root, ok := g.resources[rootID]
	if !ok {
		return nil, unknownResource("subtree", rootID)
	}
	var out []ResourceID
	var walk func(r *Resource)
	walk = func(r *Resource) {
		out = append(out, r.ID)
		children := append([]ResourceID(nil), r.ChildIDs...)
		sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
		for _, cid := range children {
			if c, ok := g.resources[cid]; ok {
				walk(c)
			}
		}
	}
	walk(root)
	return out, nil
}
