// Package api exposes compiled tables over HTTP.
//
// Routes:
//
//	GET    /tables                            compiled table names
//	GET    /tables/{table}/rows               read, query parameters are filters and clauses
//	POST   /tables/{table}/rows               create
//	GET    /tables/{table}/rows/{id}          find
//	PUT    /tables/{table}/rows/{id}          update
//	DELETE /tables/{table}/rows/{id}          delete
//	GET    /tables/{table}/rows/{id}/{ref}    rows linked through a reference property
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/schemasql/internal/catalog"
	"github.com/koustreak/schemasql/internal/logger"
)

// Server serves the CRUD engines of a catalog.
type Server struct {
	catalog *catalog.Catalog
	log     *logger.Logger
}

// New returns a server for cat.
func New(cat *catalog.Catalog, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{catalog: cat, log: log}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/tables", s.handleListTables)
	r.Route("/tables/{table}/rows", func(r chi.Router) {
		r.Get("/", s.handleRead)
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleFind)
		r.Put("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleDelete)
		r.Get("/{id}/{ref}", s.handleRelated)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(s.log.WithContext(r.Context())))

		s.log.RequestEvent().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}
