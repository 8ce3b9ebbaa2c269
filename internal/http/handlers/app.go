package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"longvideo/internal/archive"
	"longvideo/internal/domain"
	"longvideo/internal/infra"
	"longvideo/internal/status"
)

// Operations is the read and eviction side of the operation registry.
type Operations interface {
	Get(id string) (domain.Operation, error)
	List() []domain.Operation
	Sweep(now time.Time) []domain.Operation
	MaybeSweep(now time.Time) bool
}

// Submitter registers an operation and starts it in the background.
type Submitter interface {
	Submit(op domain.Operation) (string, error)
}

// History lists archived operations.
type History interface {
	Recent(ctx context.Context, limit int) ([]archive.Entry, error)
}

type App struct {
	Logger      infra.Logger
	Operations  Operations
	Submitter   Submitter
	Projector   status.Projector
	History     History
	MaxDuration int
	Now         func() time.Time
}

func NewApp(cfg *infra.Config, logger infra.Logger, ops Operations, submitter Submitter) *App {
	return &App{
		Logger:     logger,
		Operations: ops,
		Submitter:  submitter,
		Projector: status.Projector{
			URLPrefix:       cfg.OutputURLPrefix,
			SegmentEstimate: cfg.SegmentEstimate,
		},
		MaxDuration: cfg.MaxVideoDuration,
		Now:         time.Now,
	}
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, codeStr, msg string) {
	a.json(w, code, errorResponse{Error: errorDetail{Code: codeStr, Message: msg}})
}

// fail maps a domain error onto an HTTP error response.
func (a *App) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "operation not found")
	default:
		a.Logger.Error().Err(err).Msg("handler: unexpected error")
		a.error(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
