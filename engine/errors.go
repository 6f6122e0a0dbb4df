/*
errors.go - Centralized error types for the rule engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Rule violations are expected outcomes the caller branches on; only
  invariant violations indicate a bug upstream (bad id, corrupted state).

ERROR CATEGORIES:
  1. Rule violations - Expected business-rule failures; the board is left
     untouched and the caller picks a different action
  2. Invariant violations - Programmer errors (unknown resource id,
     structurally impossible state); never a business-rule failure

USAGE:
  res, err := session.ProposeAttach("op-1", "exc-1")
  if err != nil {
      // invariant violation - bug upstream
  }
  if !res.Success {
      if errors.Is(res.Violation, engine.ErrMaxCountExceeded) { ... }
  }

SEE ALSO:
  - validator.go: Produces these errors
  - session.go:   Splits violations from invariant errors in results
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAttachNotAllowed is returned when the source/target type pair has
	// no permitted attachment rule.
	ErrAttachNotAllowed = errors.New("attachment not allowed for this type pair")

	// ErrMaxCountExceeded is returned when the target already holds the
	// maximum attached children of the source type.
	ErrMaxCountExceeded = errors.New("target already at maximum attached children of this type")

	// ErrAlreadyAttached is returned when the child already has a different
	// parent. The caller must detach first.
	ErrAlreadyAttached = errors.New("resource already attached to a different parent")

	// ErrDropNotAllowed is returned when the resource type is not permitted
	// on the target row type.
	ErrDropNotAllowed = errors.New("resource type not allowed on this row")

	// ErrPartialChainRejected is returned when a chain move is aborted
	// because at least one chain member is not admissible at the
	// destination. Nothing is applied.
	ErrPartialChainRejected = errors.New("chain move rejected: member not admissible at destination")

	// ErrUnknownResource indicates a reference to a resource id that was
	// never registered. This is a programmer error, not a rule failure.
	ErrUnknownResource = errors.New("unknown resource id")

	// ErrUnknownJob indicates a reference to a job id that was never
	// registered.
	ErrUnknownJob = errors.New("unknown job id")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AttachError reports why a child could not be attached to a parent.
type AttachError struct {
	Child      ResourceID
	Parent     ResourceID
	ChildType  ResourceType
	ParentType ResourceType
	Reason     error // one of the attach sentinels
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("attach %s (%s) -> %s (%s): %v",
		e.Child, e.ChildType, e.Parent, e.ParentType, e.Reason)
}

func (e *AttachError) Unwrap() error { return e.Reason }

// DropError reports a resource type rejected by a row.
type DropError struct {
	Resource ResourceID
	Type     ResourceType
	Cell     Cell
}

func (e *DropError) Error() string {
	return fmt.Sprintf("drop %s (%s) onto %s: %v", e.Resource, e.Type, e.Cell, ErrDropNotAllowed)
}

func (e *DropError) Unwrap() error { return ErrDropNotAllowed }

// ChainMoveError reports which chain members were rejected at a destination.
type ChainMoveError struct {
	Root     ResourceID
	Cell     Cell
	Rejected []ResourceID
}

func (e *ChainMoveError) Error() string {
	return fmt.Sprintf("move chain of %s to %s: %v (rejected: %v)",
		e.Root, e.Cell, ErrPartialChainRejected, e.Rejected)
}

func (e *ChainMoveError) Unwrap() error { return ErrPartialChainRejected }

// InvariantError signals a bug upstream: a reference to state that cannot
// exist if callers respect the engine contract.
type InvariantError struct {
	Op     string
	Detail string
	Reason error // optional underlying sentinel (ErrUnknownResource, ...)
}

func (e *InvariantError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("invariant violation in %s: %s: %v", e.Op, e.Detail, e.Reason)
	}
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Detail)
}

func (e *InvariantError) Unwrap() error { return e.Reason }

func invariant(op, format string, args ...any) *InvariantError {
	return &InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

func unknownResource(op string, id ResourceID) *InvariantError {
	return &InvariantError{Op: op, Detail: string(id), Reason: ErrUnknownResource}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRuleViolation reports whether err is an expected rule failure
// (recoverable by the caller choosing a different action).
func IsRuleViolation(err error) bool {
	return errors.Is(err, ErrAttachNotAllowed) ||
		errors.Is(err, ErrMaxCountExceeded) ||
		errors.Is(err, ErrAlreadyAttached) ||
		errors.Is(err, ErrDropNotAllowed) ||
		errors.Is(err, ErrPartialChainRejected)
}

// IsInvariantViolation reports whether err signals a bug upstream.
func IsInvariantViolation(err error) bool {
	var inv *InvariantError
	return errors.As(err, &inv)
}

// ViolationCode maps a rule violation to a stable wire code.
// Empty string for non-violations.
func ViolationCode(err error) string {
	switch {
	case errors.Is(err, ErrAttachNotAllowed):
		return "AttachNotAllowed"
	case errors.Is(err, ErrMaxCountExceeded):
		return "MaxCountExceeded"
	case errors.Is(err, ErrAlreadyAttached):
		return "AlreadyAttached"
	case errors.Is(err, ErrDropNotAllowed):
		return "DropNotAllowed"
	case errors.Is(err, ErrPartialChainRejected):
		return "PartialChainRejected"
	default:
		return ""
	}
}
