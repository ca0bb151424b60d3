package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Suriyanand/financial-document-analyzer/internal/jobs"
)

const defaultMaxUploadBytes = 32 << 20 // 32 MiB

type Server struct {
	manager    *jobs.Manager
	uploadsDir string

	maxUploadBytes int64

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithMaxUploadSize bounds the accepted multipart upload size in bytes.
func WithMaxUploadSize(limit int64) Option {
	return func(s *Server) {
		if limit > 0 {
			s.maxUploadBytes = limit
		}
	}
}

func NewServer(manager *jobs.Manager, uploadsDir string, opts ...Option) *Server {
	s := &Server{
		manager:        manager,
		uploadsDir:     uploadsDir,
		maxUploadBytes: defaultMaxUploadBytes,
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("/api/jobs", s.handleListJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/jobs/", s.handleJobByID)
}
