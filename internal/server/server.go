package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joeblew999/greenery-map/internal/api"
	"github.com/joeblew999/greenery-map/internal/api/viewer"
	"github.com/joeblew999/greenery-map/internal/humastar"
	"github.com/joeblew999/greenery-map/internal/metrics"
	"github.com/joeblew999/greenery-map/internal/service"
	"github.com/joeblew999/greenery-map/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // Path to web/ directory for static files and templates
}

// Server is the greenery HTTP server.
type Server struct {
	config   Config
	log      *zap.Logger
	mux      *http.ServeMux
	humaAPI  huma.API
	links    *humastar.Links
	db       *sql.DB
	viewer   *service.Viewer
	files    *service.FileService
	renderer *templates.Renderer
}

// New creates a server for v. db may be nil, in which case the SQL routes
// answer 503.
func New(cfg Config, v *service.Viewer, files *service.FileService, db *sql.DB, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()
	links := humastar.NewLinks()

	humaConfig := huma.DefaultConfig("greenery-map API", api.Version)
	humaConfig.Info.Description = "Street trees by species over a greenery score grid: species ranking, per-session selection, clustered vector tiles and click popups."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	s := &Server{
		config:  cfg,
		log:     log,
		mux:     mux,
		humaAPI: humago.New(mux, humaConfig),
		links:   links,
		db:      db,
		viewer:  v,
		files:   files,
	}

	if cfg.WebDir != "" {
		dir := filepath.Join(cfg.WebDir, "templates")
		r, err := templates.New(dir)
		if err != nil {
			return nil, fmt.Errorf("templates %s: %w", dir, err)
		}
		s.renderer = r
		log.Debug("templates loaded", zap.String("dir", dir))
	}

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the server wrapped in the access log.
func (s *Server) Handler() http.Handler {
	return AccessLog(s.log)(s)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%s", s.config.Host, s.config.Port)
}

func (s *Server) routes() {
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(&api.Services{Viewer: s.viewer, Files: s.files}))
	api.NewInfoHandler(s.config.DataDir, s.db != nil, s.viewer).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)

	if s.renderer != nil {
		viewer.New(s.viewer, s.renderer, s.log).RegisterRoutes(s.humaAPI)
	}

	// Link headers are derived from the registered operations.
	s.links.Build(s.humaAPI, api.SearchPath, viewer.Tag)

	s.mux.Handle("/metrics", metrics.Handler())

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.renderer == nil {
		http.Redirect(w, r, "/docs", http.StatusFound)
		return
	}
	s.handleViewer(w, r)
}

// handleViewer opens a session and renders the map page for it.
func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	session := s.viewer.Open()
	state := session.State()

	pd := humastar.BuildPageData(s.humaAPI, "", map[string]any{
		viewer.SignalSession: session.ID(),
		viewer.SignalTab:     uuid.NewString(),
		viewer.SignalSearch:  "",
		viewer.SignalActive:  state.Active,
		viewer.SignalError:   "",
	}, "viewer-panel", "viewer-events")
	pd.Data = map[string]any{"Session": session.ID()}

	html, err := s.renderer.Render("viewer.html", pd)
	if err != nil {
		s.viewer.Close(session.ID())
		s.log.Error("render viewer", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprint(w, html)
}
