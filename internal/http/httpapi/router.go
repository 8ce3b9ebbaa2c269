package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"longvideo/internal/http/handlers"
	"longvideo/internal/infra"
	"longvideo/internal/infra/metrics"
	"longvideo/internal/middleware"
)

// Options carries the router settings that do not belong to handlers.
type Options struct {
	Logger          infra.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	OutputDir       string
	OutputURLPrefix string
	// DownloadTimeout is the write deadline for routes that stream artifacts.
	DownloadTimeout time.Duration
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/", app.Root)
	r.Get("/v1/healthz", app.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/video_chat", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			r.Post("/generate", app.VideoGenerate)
			r.Post("/generate_long", app.VideoGenerateLong)
		})
		r.Post("/status", app.VideoStatus)
		r.Get("/status/{operation_id}", app.VideoStatus)
		r.Get("/operations", app.VideoOperations)
		r.With(middleware.WriteTimeout(opts.DownloadTimeout)).
			Get("/operations/{operation_id}/segments", app.VideoSegments)
		r.Post("/cleanup", app.VideoCleanup)
		r.Get("/history", app.VideoHistory)
	})

	if opts.OutputDir != "" {
		prefix := opts.OutputURLPrefix
		if prefix == "" {
			prefix = "/outputs"
		}
		files := middleware.WriteTimeout(opts.DownloadTimeout)(
			http.StripPrefix(prefix+"/", http.FileServer(http.Dir(opts.OutputDir))))
		r.Method(http.MethodGet, prefix+"/*", files)
		r.Method(http.MethodHead, prefix+"/*", files)
	}

	return r
}
