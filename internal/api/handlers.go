package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MJE43/lattice-walk-go/internal/engine"
	"github.com/MJE43/lattice-walk-go/internal/sampling"
	"github.com/MJE43/lattice-walk-go/internal/store"
	"github.com/MJE43/lattice-walk-go/internal/sweep"
	"github.com/MJE43/lattice-walk-go/internal/walks"
)

var errStoreDisabled = errors.New("run storage is disabled")

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GetVersionInfo())
}

func (s *Server) handleListWalks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, WalksResponse{
		Walks:         walks.List(),
		EngineVersion: sampling.EngineVersion,
	})
}

// POST /api/v1/estimate
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorHandler.HandleStatus(w, r, http.StatusBadRequest, ErrTypeInvalidJSON, "invalid JSON body")
		return
	}
	if req.Walk == "" {
		s.errorHandler.HandleValidationError(w, r, "walk", "walk is required")
		return
	}
	if !s.checkSamples(w, r, req.Samples) {
		return
	}

	est, err := s.sampler.Estimate(r.Context(), sampling.EstimateRequest{
		Walk:    req.Walk,
		Steps:   req.Steps,
		Samples: req.Samples,
		Seeds:   req.Seeds,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, EstimateResponse{
		Estimate:       est,
		ServerSeedHash: engine.HashSeed(est.Seeds.Server),
	})
}

// POST /api/v1/sweep
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorHandler.HandleStatus(w, r, http.StatusBadRequest, ErrTypeInvalidJSON, "invalid JSON body")
		return
	}
	if req.Samples == 0 {
		req.Samples = sampling.DefaultSamples
	}
	if !s.checkSamples(w, r, req.Samples) {
		return
	}
	if req.Save && s.db == nil {
		s.errorHandler.HandleStatus(w, r, http.StatusServiceUnavailable, ErrTypeServiceUnavailable, errStoreDisabled.Error())
		return
	}

	steps, err := sweepSteps(req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	res, err := s.sampler.Sweep(r.Context(), sampling.SweepRequest{
		Samples: req.Samples,
		Steps:   steps,
		Seeds:   req.Seeds,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	resp := SweepResponse{
		SweepResult:    res,
		ServerSeedHash: engine.HashSeed(res.Seeds.Server),
	}
	if req.Save {
		run := store.FromSweep(res)
		if err := s.db.SaveRun(r.Context(), run); err != nil {
			s.errorHandler.HandleError(w, r, fmt.Errorf("save run: %w", err))
			return
		}
		resp.RunID = run.ID
		s.logger.Info("run_saved",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("run_id", run.ID),
			zap.Int("configurations", run.Configurations),
		)
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func sweepSteps(req SweepRequest) ([]int, error) {
	switch {
	case len(req.Steps) > 0:
		return req.Steps, sweep.Validate(req.Steps)
	case req.Expression != "":
		def := sweep.Default()
		if req.Sweep != nil && req.Sweep.Count > 0 {
			def.Count = req.Sweep.Count
		}
		def.Expression = req.Expression
		return def.Build()
	case req.Sweep != nil:
		return req.Sweep.Build()
	default:
		return sweep.Default().Build()
	}
}

// POST /api/v1/trace
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	var req TraceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorHandler.HandleStatus(w, r, http.StatusBadRequest, ErrTypeInvalidJSON, "invalid JSON body")
		return
	}
	if req.Seeds.Server == "" {
		s.errorHandler.HandleValidationError(w, r, "seeds.server", "server seed is required")
		return
	}
	if req.Steps < 0 || req.Steps > MaxTraceSteps {
		s.errorHandler.HandleValidationError(w, r, "steps", fmt.Sprintf("steps must be in [0, %d]", MaxTraceSteps))
		return
	}

	walker, ok := walks.Get(req.Walk)
	if !ok {
		s.errorHandler.HandleError(w, r, fmt.Errorf("%w: %q", sampling.ErrWalkNotFound, req.Walk))
		return
	}

	src := engine.NewByteGenerator(req.Seeds, req.Nonce, 0)
	path, err := walker.Trace(src, req.Steps)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, TraceResponse{
		Walk:          path.Walk,
		Nonce:         req.Nonce,
		Steps:         path.Steps(),
		Metric:        path.Metric,
		Trapped:       path.Trapped,
		End:           path.End(),
		Directions:    path.DirectionNames(),
		Positions:     path.Positions,
		BytesUsed:     src.Cursor(),
		EngineVersion: sampling.EngineVersion,
		Echo:          req,
	})
}

// GET /api/v1/runs?page=&per_page=&client_seed=
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}
	q := store.RunsQuery{
		ClientSeed: r.URL.Query().Get("client_seed"),
		Page:       queryInt(r, "page", 1),
		PerPage:    clampInt(queryInt(r, "per_page", 50), 1, 500),
	}

	list, err := s.db.ListRuns(r.Context(), q)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// GET /api/v1/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}
	run, err := s.db.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// GET /api/v1/runs/{id}/report
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}
	run, err := s.db.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Engine-Version", run.EngineVersion)
	w.WriteHeader(http.StatusOK)
	if err := s.emitter.Write(w, run.SweepResult()); err != nil {
		s.logger.Error("report_write_failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// DELETE /api/v1/runs/{id}
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}
	if err := s.db.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireDB(w http.ResponseWriter, r *http.Request) bool {
	if s.db == nil {
		s.errorHandler.HandleStatus(w, r, http.StatusServiceUnavailable, ErrTypeServiceUnavailable, errStoreDisabled.Error())
		return false
	}
	return true
}

func (s *Server) checkSamples(w http.ResponseWriter, r *http.Request, n int) bool {
	if n <= 0 || n > s.maxSamples {
		s.errorHandler.HandleValidationError(w, r, "samples", fmt.Sprintf("samples must be in [1, %d]", s.maxSamples))
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
