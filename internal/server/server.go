package server

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/repcal/internal/exercises"
	"github.com/meltforce/repcal/internal/routine"
	"github.com/meltforce/repcal/internal/state"
	"tailscale.com/client/local"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	states   *state.Manager
	routines *routine.Service
	catalog  *exercises.Catalog
	log      *slog.Logger
	apiKey   string
	ts       *local.Client
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(states *state.Manager, routines *routine.Service, catalog *exercises.Catalog, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		states:   states,
		routines: routines,
		catalog:  catalog,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.tailscaleWhois)

	// Import endpoints (API key required)
	s.router.Route("/api/v1/import", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/", s.handleImportSnapshot)
		r.Post("/routine", s.handleImportRoutineFile)
	})

	s.router.Get("/api/v1/me", s.handleMe)

	// Routines
	s.router.Get("/api/v1/routines", s.handleRoutineOptions)
	s.router.Get("/api/v1/routines/{id}", s.handleGetRoutine)
	s.router.Delete("/api/v1/routines/{id}", s.handleDeleteRoutine)
	s.router.Get("/api/v1/manifest", s.handleManifest)
	s.router.Post("/api/v1/routines/manifest/{id}", s.handleImportFromManifest)

	// Day view and edits
	s.router.Get("/api/v1/day", s.handleGetDay)
	s.router.Put("/api/v1/day", s.handleReplaceDay)
	s.router.Post("/api/v1/day/clear", s.handleClearDay)
	s.router.Put("/api/v1/day/date", s.handleSetDate)

	// Progress
	s.router.Post("/api/v1/progress/set", s.handleUpdateSet)
	s.router.Post("/api/v1/progress/toggle", s.handleToggleCompletion)
	s.router.Post("/api/v1/progress/clear", s.handleClearAll)

	// View cursor
	s.router.Get("/api/v1/view", s.handleGetView)
	s.router.Put("/api/v1/view", s.handleUpdateView)

	// Settings
	s.router.Get("/api/v1/title", s.handleGetTitle)
	s.router.Put("/api/v1/title", s.handleSetTitle)
	s.router.Get("/api/v1/profile", s.handleGetProfile)
	s.router.Post("/api/v1/profile", s.handleSetProfile)

	// Exercise library
	s.router.Get("/api/v1/exercises", s.handleExercises)
	s.router.Get("/api/v1/exercises/{id}", s.handleGetExercise)
	s.router.Put("/api/v1/exercises/{id}/video", s.handleSetVideo)

	// Export
	s.router.Get("/api/v1/export", s.handleExport)
}

// SetFrontend mounts the embedded PWA filesystem.
// Unmatched routes serve index.html for client-side routing.
func (s *Server) SetFrontend(webFS fs.FS) {
	fileServer := http.FileServerFS(webFS)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		// Try to serve the exact file first
		f, err := webFS.Open(r.URL.Path[1:]) // strip leading /
		if err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}
		// Fallback to index.html for PWA routing
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}

// SetMCP mounts an MCP transport at /mcp. Call before serving.
func (s *Server) SetMCP(h http.Handler) {
	s.router.Mount("/mcp", h)
}

// SetTailscale enables tailnet identity on /api/v1/me. Call before serving.
func (s *Server) SetTailscale(lc *local.Client) {
	s.ts = lc
}
