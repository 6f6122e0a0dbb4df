/*
handlers.go - HTTP handlers for the dispatch board engine

PURPOSE:
  Exposes the rule engine over REST. Handlers decode and validate the
  payload, call the session, persist successful mutations through the
  store, and serialize the result.

ENDPOINTS:
  Resources:
    GET    /api/resources                 Roster
    POST   /api/resources                 Register resource
    GET    /api/resources/{id}/cells      Cells a resource occupies
    GET    /api/resources/{id}/conflicts  Standing conflict flags

  Proposals:
    POST   /api/proposals/drop            Drop a resource into a cell
    POST   /api/proposals/attach          Attach child to parent
    POST   /api/proposals/detach          Detach child
    POST   /api/proposals/move            Move a chain (cell=null removes)

  Jobs:
    GET    /api/jobs                      List jobs
    POST   /api/jobs                      Register job
    GET    /api/jobs/{id}/board           Occupied cells with occupants
    GET    /api/jobs/{id}/finalizable     Missing required attachments
    GET    /api/jobs/{id}/staffing        Headcount per cell

  Reports:
    GET    /api/reports/utilization?from=&to=

  Admin:
    GET    /api/catalog                   Current rule tables
    POST   /api/admin/catalog             Replace rule tables
    GET    /api/events?limit=             Recent mutation events

ERROR HANDLING:
  - 400: malformed payload or query
  - 404: unknown resource/job id
  - 409: rule violation (result body carries the violation code)
  - 422: other invariant violations
  - 500: store failures

SEE ALSO:
  - dto.go:    Wire shapes and validation tags
  - server.go: Router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/dispatch-engine/engine"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Session *engine.Session
	Store   engine.Store

	validate *validator.Validate
}

// NewHandler creates a handler over a session and its backing store.
func NewHandler(session *engine.Session, store engine.Store) *Handler {
	return &Handler{
		Session:  session,
		Store:    store,
		validate: validator.New(),
	}
}

// decode unmarshals and structurally validates a request body.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorDTO("malformed request body", err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorDTO("invalid request", err))
		return false
	}
	return true
}

// respondResult persists a successful mutation and writes the result.
func (h *Handler) respondResult(w http.ResponseWriter, r *http.Request, res engine.OperationResult) {
	if res.Success {
		if err := engine.PersistResult(r.Context(), h.Store, h.Session, res); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorDTO("failed to persist mutation", err))
			return
		}
		writeJSON(w, http.StatusOK, resultDTO(res))
		return
	}
	writeJSON(w, http.StatusConflict, resultDTO(res))
}

// respondEngineError maps invariant errors to status codes.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownResource), errors.Is(err, engine.ErrUnknownJob):
		writeJSON(w, http.StatusNotFound, errorDTO("not found", err))
	case engine.IsInvariantViolation(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorDTO("invariant violation", err))
	default:
		writeJSON(w, http.StatusInternalServerError, errorDTO("internal error", err))
	}
}

// =============================================================================
// RESOURCES
// =============================================================================

func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Resources())
}

func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req RegisterResourceRequest
	if !h.decode(w, r, &req) {
		return
	}
	res := engine.Resource{
		ID:   engine.ResourceID(req.ID),
		Type: engine.ResourceType(req.Type),
		Name: req.Name,
	}
	if err := h.Session.RegisterResource(res.ID, res.Type, res.Name); err != nil {
		respondEngineError(w, err)
		return
	}
	if err := h.Store.SaveResource(r.Context(), res); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorDTO("failed to save resource", err))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) GetResourceCells(w http.ResponseWriter, r *http.Request) {
	id := engine.ResourceID(chi.URLParam(r, "id"))
	if _, err := h.Session.Resource(id); err != nil {
		respondEngineError(w, err)
		return
	}
	cells := h.Session.CellsFor(id)
	out := make([]CellDTO, 0, len(cells))
	for _, c := range cells {
		out = append(out, cellDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetResourceConflicts(w http.ResponseWriter, r *http.Request) {
	id := engine.ResourceID(chi.URLParam(r, "id"))
	if _, err := h.Session.Resource(id); err != nil {
		respondEngineError(w, err)
		return
	}
	flags := h.Session.Conflicts(id)
	if flags == nil {
		flags = []engine.ConflictFlag{}
	}
	writeJSON(w, http.StatusOK, flags)
}

// =============================================================================
// PROPOSALS
// =============================================================================

func (h *Handler) ProposeDrop(w http.ResponseWriter, r *http.Request) {
	var req DropRequest
	if !h.decode(w, r, &req) {
		return
	}
	cell, err := req.Cell.ToCell()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorDTO("invalid cell", err))
		return
	}
	res, err := h.Session.ProposeDrop(engine.ResourceID(req.ResourceID), cell)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	h.respondResult(w, r, res)
}

func (h *Handler) ProposeAttach(w http.ResponseWriter, r *http.Request) {
	var req AttachRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Session.ProposeAttach(engine.ResourceID(req.ChildID), engine.ResourceID(req.ParentID))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	h.respondResult(w, r, res)
}

func (h *Handler) ProposeDetach(w http.ResponseWriter, r *http.Request) {
	var req DetachRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Session.ProposeDetach(engine.ResourceID(req.ChildID))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	h.respondResult(w, r, res)
}

func (h *Handler) ProposeMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !h.decode(w, r, &req) {
		return
	}
	var dest *engine.Cell
	if req.Cell != nil {
		cell, err := req.Cell.ToCell()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorDTO("invalid cell", err))
			return
		}
		dest = &cell
	}
	res, err := h.Session.ProposeMove(engine.ResourceID(req.RootID), dest)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	h.respondResult(w, r, res)
}

// =============================================================================
// JOBS
// =============================================================================

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Jobs())
}

func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req RegisterJobRequest
	if !h.decode(w, r, &req) {
		return
	}
	job := engine.Job{
		ID:   engine.JobID(req.ID),
		Type: engine.JobType(req.Type),
		Name: req.Name,
	}
	if err := h.Session.RegisterJob(job); err != nil {
		respondEngineError(w, err)
		return
	}
	if err := h.Store.SaveJob(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorDTO("failed to save job", err))
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *Handler) GetJobBoard(w http.ResponseWriter, r *http.Request) {
	id := engine.JobID(chi.URLParam(r, "id"))
	if _, err := h.Session.Job(id); err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, boardDTO(h.Session.JobBoard(id)))
}

func (h *Handler) GetJobFinalizable(w http.ResponseWriter, r *http.Request) {
	id := engine.JobID(chi.URLParam(r, "id"))
	missing, err := h.Session.CheckFinalizable(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if missing == nil {
		missing = []engine.MissingRequirement{}
	}
	writeJSON(w, http.StatusOK, FinalizableDTO{
		JobID:       string(id),
		Finalizable: len(missing) == 0,
		Missing:     missing,
	})
}

func (h *Handler) GetJobStaffing(w http.ResponseWriter, r *http.Request) {
	id := engine.JobID(chi.URLParam(r, "id"))
	if _, err := h.Session.Job(id); err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Session.JobStaffing(id))
}

// =============================================================================
// REPORTS
// =============================================================================

func (h *Handler) GetUtilization(w http.ResponseWriter, r *http.Request) {
	from, err := engine.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorDTO("invalid 'from' date", err))
		return
	}
	to, err := engine.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorDTO("invalid 'to' date", err))
		return
	}
	writeJSON(w, http.StatusOK, h.Session.Utilization(from, to))
}

// =============================================================================
// CATALOG ADMINISTRATION
// =============================================================================

func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Catalog().Spec())
}

func (h *Handler) ReplaceCatalog(w http.ResponseWriter, r *http.Request) {
	var spec engine.CatalogSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorDTO("malformed catalog", err))
		return
	}
	ev := h.Session.ReplaceCatalog(engine.NewCatalog(spec))
	if err := h.Store.ReplaceCatalog(r.Context(), spec); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorDTO("failed to persist catalog", err))
		return
	}
	if err := h.Store.AppendEvent(r.Context(), *ev); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorDTO("failed to record event", err))
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorDTO("invalid limit", err))
			return
		}
		limit = n
	}
	events, err := h.Store.ListEvents(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorDTO("failed to list events", err))
		return
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// =============================================================================
// JSON HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
