package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"longvideo/internal/archive"
	"longvideo/internal/domain"
	"longvideo/internal/segment"
	"longvideo/internal/status"
	"longvideo/pkg/zip"
)

type submitResponse struct {
	OperationID string        `json:"operation_id"`
	Status      domain.Status `json:"status"`
	Message     string        `json:"message"`
}

type submitLongResponse struct {
	OperationID     string        `json:"operation_id"`
	Status          domain.Status `json:"status"`
	Plan            []int         `json:"plan"`
	EstimateMinutes int           `json:"estimate_minutes"`
	Message         string        `json:"message"`
}

type operationsResponse struct {
	TotalOperations int              `json:"total_operations"`
	Operations      []status.Summary `json:"operations"`
}

type cleanupResponse struct {
	Message string `json:"message"`
	Removed int    `json:"removed"`
}

type historyResponse struct {
	Operations []archive.Entry `json:"operations"`
}

// VideoGenerate starts a single-clip generation.
func (a *App) VideoGenerate(w http.ResponseWriter, r *http.Request) {
	a.Operations.MaybeSweep(a.now())

	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, err)
		return
	}
	op, err := req.single()
	if err != nil {
		a.fail(w, err)
		return
	}
	id, err := a.Submitter.Submit(op)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.Logger.Info().Str("operation_id", id).Int("duration", op.Single.DurationSeconds).Msg("video: single generation accepted")
	a.json(w, http.StatusAccepted, submitResponse{
		OperationID: id,
		Status:      domain.StatusProcessing,
		Message:     "Video generation started",
	})
}

// VideoGenerateLong starts a chained multi-segment generation.
func (a *App) VideoGenerateLong(w http.ResponseWriter, r *http.Request) {
	a.Operations.MaybeSweep(a.now())

	var req generateLongRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, err)
		return
	}
	op, err := req.long(a.MaxDuration)
	if err != nil {
		a.fail(w, err)
		return
	}
	id, err := a.Submitter.Submit(op)
	if err != nil {
		a.fail(w, err)
		return
	}
	plan := op.Long.Plan
	a.Logger.Info().Str("operation_id", id).Ints("plan", plan).Msg("video: long generation accepted")
	a.json(w, http.StatusAccepted, submitLongResponse{
		OperationID:     id,
		Status:          domain.StatusProcessing,
		Plan:            plan,
		EstimateMinutes: segment.EstimateMinutes(plan, a.Projector.SegmentEstimate),
		Message:         fmt.Sprintf("Long video generation started: %d segments, %d seconds", len(plan), segment.Total(plan)),
	})
}

// VideoStatus reports an operation. The id comes from the path or, for POST,
// from the JSON body.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	now := a.now()
	a.Operations.MaybeSweep(now)

	id := chi.URLParam(r, "operation_id")
	if id == "" && r.Method == http.MethodPost {
		var req statusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			a.fail(w, err)
			return
		}
		id = req.OperationID
	}
	id = strings.TrimSpace(id)
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "operation_id required")
		return
	}

	op, err := a.Operations.Get(id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, a.Projector.Project(op, now))
}

// VideoOperations lists retained operations for diagnostics.
func (a *App) VideoOperations(w http.ResponseWriter, r *http.Request) {
	now := a.now()
	a.Operations.MaybeSweep(now)

	ops := a.Operations.List()
	out := make([]status.Summary, 0, len(ops))
	for _, op := range ops {
		out = append(out, a.Projector.Summarize(op, now))
	}
	a.json(w, http.StatusOK, operationsResponse{TotalOperations: len(out), Operations: out})
}

// VideoCleanup sweeps expired operations immediately.
func (a *App) VideoCleanup(w http.ResponseWriter, r *http.Request) {
	removed := a.Operations.Sweep(a.now())
	a.json(w, http.StatusOK, cleanupResponse{
		Message: fmt.Sprintf("Cleanup completed, removed %d operations", len(removed)),
		Removed: len(removed),
	})
}

// VideoSegments streams every artifact produced so far for an operation as a
// zip archive.
func (a *App) VideoSegments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "operation_id")
	op, err := a.Operations.Get(id)
	if err != nil {
		a.fail(w, err)
		return
	}
	paths := op.ArtifactPaths()
	if len(paths) == 0 {
		a.error(w, http.StatusConflict, "not_ready", "operation has no segments yet")
		return
	}
	entries := make([]zip.Entry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, zip.Entry{Name: filepath.Base(p), Path: p})
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"_segments.zip"))
	if err := zip.WriteArchive(w, entries); err != nil {
		a.Logger.Error().Err(err).Str("operation_id", id).Msg("video: stream segments archive")
	}
}

// VideoHistory lists archived operations when a database is configured.
func (a *App) VideoHistory(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "operation archive is not configured")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be between 1 and 200")
			return
		}
		limit = n
	}
	entries, err := a.History.Recent(r.Context(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	if entries == nil {
		entries = []archive.Entry{}
	}
	a.json(w, http.StatusOK, historyResponse{Operations: entries})
}
