package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshu2/autoforge/internal/approval"
	"github.com/boshu2/autoforge/internal/checkpoint"
	"github.com/boshu2/autoforge/internal/wfcontext"
)

func newTestServer(t *testing.T, status StatusSource) *Server {
	store, err := checkpoint.NewStoreAt(t.TempDir())
	require.NoError(t, err)
	return New(":0", status, checkpoint.NewManager(store), approval.NewStore(t.TempDir()))
}

func TestHandleStatus_Idle(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), wfcontext.IdlePhase)
}

func TestHandleStatus_Running(t *testing.T) {
	ctx := wfcontext.New("fix the bug", "fix-the-bug", "/repo", "/repo/plans")
	ctx.CurrentPhase = "planning"
	ctx.TotalCostUSD = 1.5
	s := newTestServer(t, func() *wfcontext.Context { return ctx })

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "planning")
	assert.Contains(t, rec.Body.String(), "fix-the-bug")
}

func TestHandleCheckpoints_Empty(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/checkpoints", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestHandleApprove_CreatesMarker(t *testing.T) {
	plansDir := t.TempDir()
	store, err := checkpoint.NewStoreAt(t.TempDir())
	require.NoError(t, err)
	approvals := approval.NewStore(plansDir)
	s := New(":0", nil, checkpoint.NewManager(store), approvals)

	req := httptest.NewRequest(http.MethodPost, "/approve/planning", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, approvals.IsApproved("planning"))
}

func TestHandleMetrics_Served(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
