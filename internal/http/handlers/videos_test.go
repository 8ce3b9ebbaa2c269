package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"longvideo/internal/archive"
	"longvideo/internal/domain"
	"longvideo/internal/infra"
	"longvideo/internal/registry"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type registrySubmitter struct {
	reg       *registry.Registry
	submitted []domain.Operation
}

func (s *registrySubmitter) Submit(op domain.Operation) (string, error) {
	op.Status = domain.StatusProcessing
	op.CreatedAt = testNow
	s.submitted = append(s.submitted, op)
	return s.reg.Create(op)
}

type stubHistory struct {
	entries []archive.Entry
	err     error
	limit   int
}

func (h *stubHistory) Recent(ctx context.Context, limit int) ([]archive.Entry, error) {
	h.limit = limit
	return h.entries, h.err
}

func newTestApp(t *testing.T) (*App, *registry.Registry, *registrySubmitter) {
	t.Helper()
	cfg := &infra.Config{OutputURLPrefix: "/outputs", SegmentEstimate: 90 * time.Second, MaxVideoDuration: 148}
	reg := registry.New(registry.Options{Now: func() time.Time { return testNow }, RemoveFile: os.Remove})
	sub := &registrySubmitter{reg: reg}
	app := NewApp(cfg, zerolog.Nop(), reg, sub)
	app.Now = func() time.Time { return testNow.Add(30 * time.Second) }
	return app, reg, sub
}

func withOperationID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("operation_id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestVideoGenerateLong(t *testing.T) {
	app, reg, sub := newTestApp(t)

	body := `{"prompt":"  a lighthouse in a storm ","aspect_ratio":"9:16","resolution":"1080P","duration_seconds":22,"per_segment_prompts":["waves crash over the rail"]}`
	rr := httptest.NewRecorder()
	app.VideoGenerateLong(rr, httptest.NewRequest(http.MethodPost, "/api/video_chat/generate_long", strings.NewReader(body)))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var resp submitLongResponse
	decodeBody(t, rr, &resp)
	if resp.OperationID == "" || resp.Status != domain.StatusProcessing {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got := len(resp.Plan); got != 3 || resp.Plan[0] != 8 || resp.Plan[2] != 7 {
		t.Fatalf("plan = %v", resp.Plan)
	}
	if resp.EstimateMinutes != 5 {
		t.Fatalf("estimate = %d", resp.EstimateMinutes)
	}

	op, err := reg.Get(resp.OperationID)
	if err != nil {
		t.Fatalf("operation not registered: %v", err)
	}
	if op.Prompt != "a lighthouse in a storm" {
		t.Fatalf("prompt = %q", op.Prompt)
	}
	if op.Config.AspectRatio != domain.AspectPortrait || op.Config.Resolution != domain.Resolution1080p {
		t.Fatalf("config = %+v", op.Config)
	}
	if len(sub.submitted) != 1 || sub.submitted[0].Long.SegmentPrompts[0] != "waves crash over the rail" {
		t.Fatalf("overrides not forwarded: %+v", sub.submitted)
	}
}

func TestVideoGenerateLongValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ``},
		{name: "malformed json", body: `{"prompt":`},
		{name: "missing prompt", body: `{"duration_seconds":22}`},
		{name: "blank prompt", body: `{"prompt":"   ","duration_seconds":22}`},
		{name: "missing duration", body: `{"prompt":"p"}`},
		{name: "zero duration", body: `{"prompt":"p","duration_seconds":0}`},
		{name: "over the cap", body: `{"prompt":"p","duration_seconds":149}`},
		{name: "bad aspect", body: `{"prompt":"p","duration_seconds":22,"aspect_ratio":"4:3"}`},
		{name: "bad resolution", body: `{"prompt":"p","duration_seconds":22,"resolution":"4k"}`},
		{name: "too many overrides", body: `{"prompt":"p","duration_seconds":15,"per_segment_prompts":["a","b"]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app, reg, _ := newTestApp(t)
			rr := httptest.NewRecorder()
			app.VideoGenerateLong(rr, httptest.NewRequest(http.MethodPost, "/api/video_chat/generate_long", strings.NewReader(tc.body)))

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
			}
			var resp errorResponse
			decodeBody(t, rr, &resp)
			if resp.Error.Code != "bad_request" || resp.Error.Message == "" {
				t.Fatalf("unexpected error body: %+v", resp)
			}
			if reg.Len() != 0 {
				t.Fatal("no operation may be created for an invalid request")
			}
		})
	}
}

func TestVideoGenerateSingle(t *testing.T) {
	app, reg, _ := newTestApp(t)

	rr := httptest.NewRecorder()
	app.VideoGenerate(rr, httptest.NewRequest(http.MethodPost, "/api/video_chat/generate", strings.NewReader(`{"prompt":"rain"}`)))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var resp submitResponse
	decodeBody(t, rr, &resp)
	op, err := reg.Get(resp.OperationID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if op.Kind != domain.KindSingle || op.Single.DurationSeconds != 8 {
		t.Fatalf("unexpected operation: %+v", op)
	}

	rr = httptest.NewRecorder()
	app.VideoGenerate(rr, httptest.NewRequest(http.MethodPost, "/api/video_chat/generate", strings.NewReader(`{"prompt":"rain","duration_seconds":9}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("single clips longer than one segment must be rejected, got %d", rr.Code)
	}
}

func TestVideoStatus(t *testing.T) {
	app, reg, _ := newTestApp(t)
	op := domain.NewLongOperation("p", domain.GenerationConfig{}, []int{8, 7, 7}, nil)
	op.Status = domain.StatusProcessing
	id, _ := reg.Create(op)
	_ = reg.Mutate(id, func(rec *domain.Operation) {
		rec.Long.CompletedSegments = append(rec.Long.CompletedSegments, 0)
		rec.Long.Progress = 33
		rec.Long.CurrentSegment = 1
	})

	t.Run("post body", func(t *testing.T) {
		rr := httptest.NewRecorder()
		app.VideoStatus(rr, httptest.NewRequest(http.MethodPost, "/api/video_chat/status", strings.NewReader(`{"operation_id":"`+id+`"}`)))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
		}
		var payload map[string]any
		decodeBody(t, rr, &payload)
		if payload["status"] != "processing" || payload["progress_percentage"] != float64(33) {
			t.Fatalf("unexpected payload: %v", payload)
		}
		if payload["video_url"] != nil {
			t.Fatalf("video_url = %v", payload["video_url"])
		}
		if payload["elapsed_seconds"] != float64(30) {
			t.Fatalf("elapsed_seconds = %v", payload["elapsed_seconds"])
		}
		if payload["total_duration"] != float64(22) {
			t.Fatalf("total_duration = %v", payload["total_duration"])
		}
	})

	t.Run("path param", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := withOperationID(httptest.NewRequest(http.MethodGet, "/api/video_chat/status/"+id, nil), id)
		app.VideoStatus(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		app.VideoStatus(rr, httptest.NewRequest(http.MethodPost, "/api/video_chat/status", strings.NewReader(`{"operation_id":"nope"}`)))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rr.Code)
		}
		var resp errorResponse
		decodeBody(t, rr, &resp)
		if resp.Error.Code != "not_found" {
			t.Fatalf("code = %q", resp.Error.Code)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		app.VideoStatus(rr, httptest.NewRequest(http.MethodPost, "/api/video_chat/status", strings.NewReader(`{}`)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rr.Code)
		}
	})
}

func TestVideoOperations(t *testing.T) {
	app, reg, _ := newTestApp(t)
	for _, prompt := range []string{"first", strings.Repeat("x", 80)} {
		op := domain.NewSingleOperation(prompt, domain.GenerationConfig{}, 8)
		if _, err := reg.Create(op); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	rr := httptest.NewRecorder()
	app.VideoOperations(rr, httptest.NewRequest(http.MethodGet, "/api/video_chat/operations", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp struct {
		TotalOperations int `json:"total_operations"`
		Operations      []struct {
			OperationID    string  `json:"operation_id"`
			Prompt         string  `json:"prompt"`
			ElapsedSeconds float64 `json:"elapsed_seconds"`
		} `json:"operations"`
	}
	decodeBody(t, rr, &resp)
	if resp.TotalOperations != 2 || len(resp.Operations) != 2 {
		t.Fatalf("unexpected listing: %+v", resp)
	}
	for _, op := range resp.Operations {
		if len([]rune(op.Prompt)) > 53 {
			t.Fatalf("prompt not truncated: %q", op.Prompt)
		}
	}
}

func TestVideoCleanup(t *testing.T) {
	app, reg, _ := newTestApp(t)
	artifact := filepath.Join(t.TempDir(), "old.mp4")
	if err := os.WriteFile(artifact, []byte("clip"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	op := domain.NewSingleOperation("p", domain.GenerationConfig{}, 8)
	op.Status = domain.StatusCompleted
	op.ArtifactPath = artifact
	op.CreatedAt = testNow.Add(-2 * time.Hour)
	id, _ := reg.Create(op)

	rr := httptest.NewRecorder()
	app.VideoCleanup(rr, httptest.NewRequest(http.MethodPost, "/api/video_chat/cleanup", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp cleanupResponse
	decodeBody(t, rr, &resp)
	if resp.Removed != 1 {
		t.Fatalf("removed = %d", resp.Removed)
	}
	if _, err := reg.Get(id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected operation to be evicted, got %v", err)
	}
	if _, err := os.Stat(artifact); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("artifact should be deleted")
	}
}

func TestVideoSegments(t *testing.T) {
	app, reg, _ := newTestApp(t)
	dir := t.TempDir()
	op := domain.NewLongOperation("p", domain.GenerationConfig{}, []int{8, 7}, nil)
	op.Status = domain.StatusCompleted
	for i, name := range []string{"x_segment_00.mp4", "x_segment_01.mp4"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte{byte(i)}, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		op.Long.Artifacts = append(op.Long.Artifacts, p)
	}
	id, _ := reg.Create(op)

	rr := httptest.NewRecorder()
	app.VideoSegments(rr, withOperationID(httptest.NewRequest(http.MethodGet, "/", nil), id))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type = %q", ct)
	}
	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "x_segment_00.mp4" {
		t.Fatalf("unexpected archive contents: %d files", len(zr.File))
	}

	empty, _ := reg.Create(domain.NewLongOperation("p", domain.GenerationConfig{}, []int{8}, nil))
	rr = httptest.NewRecorder()
	app.VideoSegments(rr, withOperationID(httptest.NewRequest(http.MethodGet, "/", nil), empty))
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestVideoHistory(t *testing.T) {
	app, _, _ := newTestApp(t)

	rr := httptest.NewRecorder()
	app.VideoHistory(rr, httptest.NewRequest(http.MethodGet, "/api/video_chat/history", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status without archive = %d", rr.Code)
	}

	history := &stubHistory{entries: []archive.Entry{{OperationID: "a", Status: domain.StatusCompleted}}}
	app.History = history
	rr = httptest.NewRecorder()
	app.VideoHistory(rr, httptest.NewRequest(http.MethodGet, "/api/video_chat/history?limit=5", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if history.limit != 5 {
		t.Fatalf("limit = %d", history.limit)
	}

	rr = httptest.NewRecorder()
	app.VideoHistory(rr, httptest.NewRequest(http.MethodGet, "/api/video_chat/history?limit=abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRoot(t *testing.T) {
	app, _, _ := newTestApp(t)
	rr := httptest.NewRecorder()
	app.Root(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	var resp map[string]string
	decodeBody(t, rr, &resp)
	if resp["message"] == "" {
		t.Fatal("expected banner message")
	}
}
