/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Wire-level shapes, separated from domain types. Requests carry
  validation tags (go-playground/validator) checked before any engine
  call; responses flatten engine results into JSON-friendly structs.

VALIDATION vs RULES:
  Payload validation here is structural (required fields, well-formed
  date, known shift). Business rules (drop/attach/move legality) are the
  engine's job and come back as violations inside the result, never as
  payload errors.

SEE ALSO:
  - handlers.go: Decoding, validation and engine calls
*/
package api

import (
	"fmt"

	"github.com/warp/dispatch-engine/engine"
)

// =============================================================================
// REQUESTS
// =============================================================================

// CellDTO is the wire form of a board cell.
type CellDTO struct {
	JobID string `json:"jobId" validate:"required"`
	Row   string `json:"row" validate:"required"`
	Date  string `json:"date" validate:"required"`
	Shift string `json:"shift" validate:"required,oneof=day night"`
}

// ToCell parses and validates the wire cell.
func (c CellDTO) ToCell() (engine.Cell, error) {
	date, err := engine.ParseDate(c.Date)
	if err != nil {
		return engine.Cell{}, err
	}
	cell := engine.Cell{
		JobID: engine.JobID(c.JobID),
		Row:   engine.RowType(c.Row),
		Date:  date,
		Shift: engine.Shift(c.Shift),
	}
	if err := cell.Validate(); err != nil {
		return engine.Cell{}, err
	}
	return cell, nil
}

func cellDTO(c engine.Cell) CellDTO {
	return CellDTO{
		JobID: string(c.JobID),
		Row:   string(c.Row),
		Date:  string(c.Date),
		Shift: string(c.Shift),
	}
}

type RegisterResourceRequest struct {
	ID   string `json:"id" validate:"required"`
	Type string `json:"type" validate:"required"`
	Name string `json:"name"`
}

type RegisterJobRequest struct {
	ID   string `json:"id" validate:"required"`
	Type string `json:"type" validate:"required"`
	Name string `json:"name"`
}

type DropRequest struct {
	ResourceID string  `json:"resourceId" validate:"required"`
	Cell       CellDTO `json:"cell" validate:"required"`
}

type AttachRequest struct {
	ChildID  string `json:"childId" validate:"required"`
	ParentID string `json:"parentId" validate:"required"`
}

type DetachRequest struct {
	ChildID string `json:"childId" validate:"required"`
}

// MoveRequest relocates a chain. A nil cell means "take the chain off
// the board".
type MoveRequest struct {
	RootID string   `json:"rootId" validate:"required"`
	Cell   *CellDTO `json:"cell"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// ViolationDTO is the wire form of a rejected rule check.
type ViolationDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OperationResultDTO is the wire form of engine.OperationResult.
type OperationResultDTO struct {
	Success   bool                  `json:"success"`
	Violation *ViolationDTO         `json:"violation,omitempty"`
	Affected  []string              `json:"affectedResourceIds"`
	Conflicts []engine.ConflictFlag `json:"conflictFlags"`
	Warnings  []string              `json:"warnings,omitempty"`
}

func resultDTO(res engine.OperationResult) OperationResultDTO {
	dto := OperationResultDTO{
		Success:   res.Success,
		Affected:  make([]string, 0, len(res.Affected)),
		Conflicts: res.Conflicts,
		Warnings:  res.Warnings,
	}
	if dto.Conflicts == nil {
		dto.Conflicts = []engine.ConflictFlag{}
	}
	for _, id := range res.Affected {
		dto.Affected = append(dto.Affected, string(id))
	}
	if res.Violation != nil {
		dto.Violation = &ViolationDTO{
			Code:    engine.ViolationCode(res.Violation),
			Message: res.Violation.Error(),
		}
	}
	return dto
}

// FinalizableDTO reports whether a job can be finalized and what blocks it.
type FinalizableDTO struct {
	JobID       string                      `json:"jobId"`
	Finalizable bool                        `json:"finalizable"`
	Missing     []engine.MissingRequirement `json:"missing"`
}

// BoardCellDTO pairs a cell with its occupants.
type BoardCellDTO struct {
	Cell      CellDTO  `json:"cell"`
	Resources []string `json:"resourceIds"`
}

func boardDTO(cells []engine.BoardCell) []BoardCellDTO {
	out := make([]BoardCellDTO, 0, len(cells))
	for _, bc := range cells {
		ids := make([]string, 0, len(bc.Resources))
		for _, id := range bc.Resources {
			ids = append(ids, string(id))
		}
		out = append(out, BoardCellDTO{Cell: cellDTO(bc.Cell), Resources: ids})
	}
	return out
}

// ErrorDTO is the generic error envelope.
type ErrorDTO struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func errorDTO(msg string, err error) ErrorDTO {
	dto := ErrorDTO{Error: msg}
	if err != nil {
		dto.Detail = fmt.Sprintf("%v", err)
	}
	return dto
}
