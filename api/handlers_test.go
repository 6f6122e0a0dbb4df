package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dispatch-engine/construction"
	"github.com/warp/dispatch-engine/engine"
	"github.com/warp/dispatch-engine/engine/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	session := engine.NewSession(construction.DefaultCatalog(), engine.NopBroadcaster{})
	h := NewHandler(session, st)
	srv := httptest.NewServer(NewRouter(h, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv, st
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func seedBoard(t *testing.T, srv *httptest.Server) {
	t.Helper()
	for _, res := range []RegisterResourceRequest{
		{ID: "exc-1", Type: "excavator", Name: "CAT 320"},
		{ID: "op-1", Type: "operator", Name: "Dana"},
		{ID: "op-2", Type: "operator", Name: "Lee"},
	} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/resources", res)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/jobs",
		RegisterJobRequest{ID: "job-1", Type: "paving", Name: "Route 9"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

var testCell = CellDTO{JobID: "job-1", Row: "equipment", Date: "2026-03-02", Shift: "day"}

// =============================================================================
// REGISTRATION
// =============================================================================

func TestCreateResource_PersistsToStore(t *testing.T) {
	srv, st := newTestServer(t)
	seedBoard(t, srv)

	saved, err := st.ListResources(context.Background())
	require.NoError(t, err)
	assert.Len(t, saved, 3)
}

func TestCreateResource_MissingFields_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/resources",
		RegisterResourceRequest{ID: "exc-1"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// PROPOSALS
// =============================================================================

func TestProposeDrop_AllowedAndPersisted(t *testing.T) {
	srv, st := newTestServer(t)
	seedBoard(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/proposals/drop",
		DropRequest{ResourceID: "exc-1", Cell: testCell})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[OperationResultDTO](t, resp)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"exc-1"}, result.Affected)

	saved, err := st.ListAssignments(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, engine.ResourceID("exc-1"), saved[0].Resource)
}

func TestProposeDrop_RuleViolation_Conflict(t *testing.T) {
	// Operators never drop into the equipment row directly.
	srv, st := newTestServer(t)
	seedBoard(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/proposals/drop",
		DropRequest{ResourceID: "op-1", Cell: testCell})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	result := decodeBody[OperationResultDTO](t, resp)
	assert.False(t, result.Success)
	require.NotNil(t, result.Violation)
	assert.Equal(t, "DropNotAllowed", result.Violation.Code)

	saved, err := st.ListAssignments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, saved, "rejected mutations must not be persisted")
}

func TestProposeDrop_UnknownResource_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	seedBoard(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/proposals/drop",
		DropRequest{ResourceID: "ghost", Cell: testCell})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProposeAttach_OverCapacity_ViolationCode(t *testing.T) {
	srv, st := newTestServer(t)
	seedBoard(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/proposals/attach",
		AttachRequest{ChildID: "op-1", ParentID: "exc-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/proposals/attach",
		AttachRequest{ChildID: "op-2", ParentID: "exc-1"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	result := decodeBody[OperationResultDTO](t, resp)
	require.NotNil(t, result.Violation)
	assert.Equal(t, "MaxCountExceeded", result.Violation.Code)

	// The successful edge is on disk, the rejected one is not.
	edges, err := st.ListAttachments(context.Background())
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, engine.ResourceID("op-1"), edges[0].Child)
}

func TestProposeMove_NullCellRemovesFromBoard(t *testing.T) {
	srv, st := newTestServer(t)
	seedBoard(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/proposals/drop",
		DropRequest{ResourceID: "exc-1", Cell: testCell})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/proposals/move",
		MoveRequest{RootID: "exc-1", Cell: nil})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[OperationResultDTO](t, resp)
	assert.True(t, result.Success)

	saved, err := st.ListAssignments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, saved)
}

// =============================================================================
// JOB READS
// =============================================================================

func TestGetJobFinalizable_ReportsMissingOperator(t *testing.T) {
	srv, _ := newTestServer(t)
	seedBoard(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/proposals/drop",
		DropRequest{ResourceID: "exc-1", Cell: testCell})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/jobs/job-1/finalizable")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fin := decodeBody[FinalizableDTO](t, resp)
	assert.False(t, fin.Finalizable)
	require.Len(t, fin.Missing, 1)
	assert.Equal(t, engine.ResourceID("exc-1"), fin.Missing[0].Resource)
	assert.Equal(t, engine.ResourceType("operator"), fin.Missing[0].Missing)
}

func TestGetJobBoard_ListsOccupants(t *testing.T) {
	srv, _ := newTestServer(t)
	seedBoard(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/proposals/drop",
		DropRequest{ResourceID: "exc-1", Cell: testCell})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/jobs/job-1/board")
	require.NoError(t, err)
	board := decodeBody[[]BoardCellDTO](t, resp)
	require.Len(t, board, 1)
	assert.Equal(t, testCell, board[0].Cell)
	assert.Equal(t, []string{"exc-1"}, board[0].Resources)
}

func TestGetJobBoard_UnknownJob_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/jobs/nope/board")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestReplaceCatalog_NewRulesTakeEffect(t *testing.T) {
	// GIVEN: A catalog edit that removes every rule
	// WHEN: Posting it and retrying a previously legal drop
	// THEN: The drop is now rejected and the edit is persisted

	srv, st := newTestServer(t)
	seedBoard(t, srv)

	empty := engine.CatalogSpec{
		AttachmentRules: []engine.AttachmentRule{},
		DropRules:       []engine.DropRule{{Row: "crew", Allowed: []engine.ResourceType{"operator"}}},
		RowSchemas:      []engine.RowSchema{{Job: "paving", Rows: []engine.RowType{"crew"}}},
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/admin/catalog", empty)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/proposals/drop",
		DropRequest{ResourceID: "exc-1", Cell: testCell})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	persisted, err := st.LoadCatalog(context.Background())
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Empty(t, persisted.AttachmentRules)
}

func TestListEvents_AuditTrailGrows(t *testing.T) {
	srv, _ := newTestServer(t)
	seedBoard(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/proposals/drop",
		DropRequest{ResourceID: "exc-1", Cell: testCell})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/events?limit=10")
	require.NoError(t, err)
	events := decodeBody[[]engine.Event](t, resp)
	require.NotEmpty(t, events)
	assert.Equal(t, engine.EventDropped, events[0].Kind)
}
