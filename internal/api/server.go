package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dgallion1/docpane/internal/config"
	"github.com/dgallion1/docpane/internal/parser"
	"github.com/dgallion1/docpane/internal/proxy"
	"github.com/dgallion1/docpane/internal/workspace"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docpane.
type Server struct {
	router  chi.Router
	docs    *workspace.Store
	commits *proxy.CommitStats
	log     *slog.Logger
	cfg     config.Config
	now     func() time.Time
}

// NewServer creates and configures the HTTP server.
func NewServer(docs *workspace.Store, commits *proxy.CommitStats, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		docs:    docs,
		commits: commits,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.DocpaneAPIKey, s.log))

		r.Route("/api/documents", func(r chi.Router) {
			r.Post("/", s.handleCreateDocument)
			r.Get("/", s.handleListDocuments)

			r.Route("/{docID}", func(r chi.Router) {
				r.Get("/", s.handleGetDocument)
				r.Delete("/", s.handleDeleteDocument)
				r.Get("/file", s.handleDownloadDocument)
				r.Get("/selection", s.handleGetSelection)
				r.Put("/selection", s.handlePutSelection)
				r.Get("/stats", s.handleDocumentStats)

				r.Post("/greeting", s.handleGreeting)
				r.Post("/date", s.handleDate)
				r.Post("/table", s.handleTable)
				r.Post("/replace", s.handleReplace)
				r.Post("/link", s.handleLink)
				r.Post("/font", s.handleFont)
				r.Post("/list", s.handleList)
			})
		})

		r.Post("/api/stats", s.handleTextStats)
		r.Get("/api/stats/commits", s.handleCommitStats)
	})

	s.router = r
}

func (s *Server) parserOptions() parser.Options {
	return parser.Options{PDFTextFallback: s.cfg.PDFFallbackPdftotext}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
