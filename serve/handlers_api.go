package serve

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/everydev1618/dockwright"
	"github.com/everydev1618/dockwright/internal/metrics"
)

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.ScriptPath == "" || req.ExamplePath == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "script_path and example_path are required"})
		return
	}

	prepared, err := dockwright.Prepare(s.resolve(req.ScriptPath), s.resolve(req.ExamplePath), s.cfg.Prepare)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	for _, warning := range prepared.Warnings {
		slog.Warn("suspicious input", "script", prepared.ScriptPath, "warning", warning)
	}

	s.broker.Publish(BrokerEvent{Type: EventRunStarted, Script: prepared.ScriptPath})
	res := s.gen.Generate(r.Context(), prepared.Request)
	s.record(res)

	writeJSON(w, http.StatusOK, GenerateResponse{
		RunRecord:    RunFromResult(res),
		Capabilities: res.Capabilities,
		Warnings:     prepared.Warnings,
		LastVerdict:  res.LastVerdict,
	})
}

// record stores, measures and announces a finished run. A store failure is
// logged; the client still gets its result.
func (s *Server) record(res *dockwright.Result) {
	if err := s.store.InsertRun(RunFromResult(res)); err != nil {
		slog.Error("failed to record run", "run", res.RunID, "error", err)
	}
	metrics.ObserveResult(res)

	event := BrokerEvent{Type: EventRunCompleted, RunID: res.RunID, Script: res.Script}
	if !res.Succeeded {
		event.Type = EventRunFailed
		event.Error = res.FailureReason
	}
	s.broker.Publish(event)
}

// resolve anchors relative paths at the workspace. Boundary checks happen
// in Prepare.
func (s *Server) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.cfg.Workspace, path)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.PathValue("id"))
	if errors.Is(err, ErrRunNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "run not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
