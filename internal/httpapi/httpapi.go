// Package httpapi is the optional local control-plane HTTP server:
// GET /status, GET /checkpoints, POST /approve/{phase}, GET /metrics.
// It is strictly additive next to the file-based approval gate and the
// CLI — disabled by default (config httpapi.enabled) and the
// orchestrator runs identically with it off.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/boshu2/autoforge/internal/approval"
	"github.com/boshu2/autoforge/internal/checkpoint"
	"github.com/boshu2/autoforge/internal/wfcontext"
)

// StatusSource supplies the live context a running workflow is mutating.
// The orchestrator itself never depends on httpapi; main wires this
// closure so the server can read Context without the orchestrator
// package importing net/http.
type StatusSource func() *wfcontext.Context

// Server bundles the chi router and its collaborators.
type Server struct {
	Addr        string
	router      chi.Router
	status      StatusSource
	checkpoints *checkpoint.Manager
	approvals   *approval.Store
}

// New builds a Server. status may be nil before a workflow starts — the
// /status handler reports "idle" in that case.
func New(addr string, status StatusSource, checkpoints *checkpoint.Manager, approvals *approval.Store) *Server {
	s := &Server{Addr: addr, status: status, checkpoints: checkpoints, approvals: approvals}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler)

	r.Get("/status", s.handleStatus)
	r.Get("/checkpoints", s.handleCheckpoints)
	r.Post("/approve/{phase}", s.handleApprove)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ListenAndServe blocks serving the control plane until the process exits
// or the listener errors. Callers typically run this in its own
// goroutine; the orchestrator's own main loop never blocks on it.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

type statusResponse struct {
	Phase           string             `json:"current_phase"`
	TaskSlug        string             `json:"task_slug"`
	TotalCostUSD    float64            `json:"total_cost_usd"`
	BudgetLimitUSD  float64            `json:"budget_limit_usd"`
	CompletedPhases []string           `json:"completed_phases"`
	PhaseCosts      map[string]float64 `json:"phase_costs"`
	BranchName      string             `json:"branch_name,omitempty"`
	PRURL           string             `json:"pr_url,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusOK, statusResponse{Phase: wfcontext.IdlePhase})
		return
	}
	ctx := s.status()
	if ctx == nil {
		writeJSON(w, http.StatusOK, statusResponse{Phase: wfcontext.IdlePhase})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Phase:           ctx.CurrentPhase,
		TaskSlug:        ctx.TaskSlug,
		TotalCostUSD:    ctx.TotalCostUSD,
		BudgetLimitUSD:  ctx.BudgetLimit,
		CompletedPhases: ctx.CompletedPhases,
		PhaseCosts:      ctx.PhaseCosts,
		BranchName:      ctx.BranchName,
		PRURL:           ctx.PRURL,
	})
}

func (s *Server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	if s.checkpoints == nil {
		writeJSON(w, http.StatusOK, []checkpoint.Summary{})
		return
	}
	summaries, err := s.checkpoints.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	phaseName := chi.URLParam(r, "phase")
	if s.approvals == nil {
		http.Error(w, "approval store not configured", http.StatusServiceUnavailable)
		return
	}
	if err := s.approvals.GrantApproval(phaseName); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"phase": phaseName, "status": "approved"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
