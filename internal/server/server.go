package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type HTTPConfig struct {
	Host         string
	Port         string
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	httpServer *http.Server
}

func NewServer(cfg HTTPConfig, h *Handler, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tables", func(r chi.Router) {
			r.Post("/", h.CreateTable)
			r.Route("/{table_id}", func(r chi.Router) {
				r.Patch("/", h.RenameTable)
				r.Delete("/", h.DeleteTable)
				r.Post("/columns", h.AddColumn)
				r.Delete("/columns/{column_id}", h.DeleteColumn)
				r.Post("/rows", h.RegisterRow)
				r.Get("/rows", h.ListRows)
				r.Get("/rows/{row_id}", h.GetRow)
				r.Delete("/rows/{row_id}", h.DeleteRow)
				r.Post("/rows/{row_id}/extract", h.ExtractRow)
				r.Post("/extract", h.ExtractPending)
				r.Get("/export.xlsx", h.ExportXLSX)
				r.Get("/export.csv", h.ExportCSV)
			})
		})
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
			Handler:      r,
		},
	}
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
