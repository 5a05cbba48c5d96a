package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ewilliams-labs/songform/internal/core/services"
	"github.com/ewilliams-labs/songform/internal/metrics"
)

// Check is a named readiness probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Options configures the HTTP adapter.
type Options struct {
	JWTSecret      string
	MaxUploadBytes int64
	// ExposeErrors adds internal error text to 500 responses.
	ExposeErrors bool
	Checks       []Check
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	songs        *services.IngestionService
	arrangements *services.ArrangementService
	opts         Options
	logger       *slog.Logger
	router       *http.ServeMux
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(songs *services.IngestionService, arrangements *services.ArrangementService, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = services.DefaultMaxUploadBytes
	}
	h := &Handler{
		songs:        songs,
		arrangements: arrangements,
		opts:         opts,
		logger:       opts.Logger.With("component", "rest"),
		router:       http.NewServeMux(),
	}

	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.router.HandleFunc("GET /health", h.HealthCheck)
	h.router.HandleFunc("GET /ready", h.ReadinessCheck)
	h.router.Handle("GET /metrics", h.opts.Metrics.Handler())

	// Songs
	h.api("POST /api/songs/upload", h.UploadSong)
	h.api("GET /api/songs", h.ListSongs)
	h.api("GET /api/songs/{id}", h.GetSong)
	h.api("DELETE /api/songs/{id}", h.DeleteSong)

	// Arrangements
	h.api("POST /api/arrangements", h.CreateArrangement)
	h.api("GET /api/arrangements", h.ListArrangements)
	h.api("GET /api/arrangements/{id}", h.GetArrangement)
	h.api("PUT /api/arrangements/{id}", h.UpdateArrangement)
	h.api("DELETE /api/arrangements/{id}", h.DeleteArrangement)
	h.api("POST /api/arrangements/{id}/suggestions/{index}/apply", h.ApplySuggestion)
}

// api registers an authenticated, instrumented route.
func (h *Handler) api(pattern string, fn http.HandlerFunc) {
	var next http.Handler = fn
	next = Authenticate([]byte(h.opts.JWTSecret), next)
	next = h.opts.Metrics.WrapHandler(pattern, next)
	h.router.Handle(pattern, next)
}

// HealthCheck is a liveness probe; it never touches dependencies.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "songform"})
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ReadinessCheck runs every probe and reports 503 if any fails.
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	resp := readinessResponse{Status: "ready", Checks: make(map[string]string, len(h.opts.Checks))}
	status := http.StatusOK

	for _, c := range h.opts.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := c.Probe(ctx)
		cancel()
		if err != nil {
			h.logger.Warn("readiness probe failed", "check", c.Name, "error", err)
			resp.Checks[c.Name] = "unavailable"
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "ok"
	}

	writeJSON(w, status, resp)
}
