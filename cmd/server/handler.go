package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"network-kpi/internal/domain"
	"network-kpi/internal/observability"
	"network-kpi/internal/reporting"
	"network-kpi/internal/storage"
)

const defaultListLimit = 20

// RunReader reads stored runs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	ListRunIDs(ctx context.Context, limit int) ([]string, error)
}

// SegmentTotaler returns the entity-weeks of each segment of a run.
type SegmentTotaler interface {
	SegmentTotals(ctx context.Context, runID string) (map[domain.Segment]uint64, error)
}

type handler struct {
	runs   RunReader
	totals SegmentTotaler // optional, the stored pivot is summed when nil
	log    *slog.Logger
}

func (h *handler) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /runs", h.listRuns)
	mux.HandleFunc("GET /runs/{id}", h.getRun)
	mux.HandleFunc("GET /runs/{id}/segments", h.segmentTotals)
	mux.HandleFunc("GET /runs/{id}/files/{name}", h.getArtifact)
	return mux
}

type runSummary struct {
	ID          string            `json:"id"`
	GeneratedAt string            `json:"generated_at"`
	Complete    bool              `json:"complete"`
	Windows     []string          `json:"windows"`
	DetailRows  int               `json:"detail_rows"`
	Segments    map[string]int    `json:"segments"`
	Warnings    []string          `json:"warnings"`
	Files       map[string]string `json:"files"`
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	ids, err := h.runs.ListRunIDs(r.Context(), limit)
	if err != nil {
		h.internalError(w, "list runs", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"runs": ids})
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	report := reporting.NewReport(run)
	resp := runSummary{
		ID:          run.ID,
		GeneratedAt: run.GeneratedAt.UTC().Format(time.RFC3339),
		Complete:    run.Complete,
		Windows:     make([]string, 0, len(report.Pivot.Windows)),
		DetailRows:  len(run.Detail),
		Segments:    make(map[string]int, len(report.Segments)),
		Warnings:    run.Warnings,
		Files:       make(map[string]string, 3),
	}
	for _, label := range report.Pivot.Windows {
		resp.Windows = append(resp.Windows, label.Date())
	}
	for _, s := range report.Segments {
		resp.Segments[string(s.Segment)] = s.EntityWeeks
	}
	for _, name := range []string{reporting.PivotFile, reporting.DetailFile, reporting.ReportFile} {
		resp.Files[name] = "/runs/" + run.ID + "/files/" + name
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) segmentTotals(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	out := make(map[string]uint64)
	if h.totals != nil {
		totals, err := h.totals.SegmentTotals(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if err != nil {
			h.internalError(w, "segment totals", err)
			return
		}
		for s, n := range totals {
			out[string(s)] = n
		}
		h.writeJSON(w, http.StatusOK, out)
		return
	}

	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	for _, s := range reporting.NewReport(run).Segments {
		out[string(s.Segment)] = uint64(s.EntityWeeks)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *handler) getArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	for _, a := range reporting.Render(run) {
		if a.Name != name {
			continue
		}
		w.Header().Set("Content-Type", a.ContentType+"; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(a.Body)
		return
	}
	h.writeError(w, http.StatusNotFound, "unknown file "+name)
}

func (h *handler) loadRun(w http.ResponseWriter, r *http.Request) (*domain.Run, bool) {
	run, err := h.runs.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		h.internalError(w, "get run", err)
		return nil, false
	}
	return run, true
}

func (h *handler) internalError(w http.ResponseWriter, op string, err error) {
	h.log.Error("server: "+op+" failed", "error", err)
	if sentry.CurrentHub().Client() != nil {
		sentry.CaptureException(err)
	}
	h.writeError(w, http.StatusInternalServerError, "internal error")
}

func (h *handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("server: encode response", "error", err)
	}
}
