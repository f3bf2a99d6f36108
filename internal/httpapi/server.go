package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sngdarren/mr-team/internal/jobs"
	"github.com/sngdarren/mr-team/internal/videos"
)

const (
	defaultMaxUploadBytes = 32 << 20
	defaultStreamInterval = time.Second
)

type Server struct {
	queue  *jobs.Queue
	videos *videos.Registry

	uploadDir      string
	workDir        string
	maxUploadBytes int64
	streamInterval time.Duration
	newID          func() string

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithDirs sets where uploads are stored and where per-job work directories are created.
func WithDirs(uploadDir, workDir string) Option {
	return func(s *Server) {
		s.uploadDir = uploadDir
		s.workDir = workDir
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithStreamInterval sets how often the status stream polls the job.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

func withIDs(fn func() string) Option {
	return func(s *Server) {
		s.newID = fn
	}
}

func NewServer(queue *jobs.Queue, videoRegistry *videos.Registry, opts ...Option) *Server {
	s := &Server{
		queue:          queue,
		videos:         videoRegistry,
		uploadDir:      "data/uploads",
		workDir:        "data/work",
		maxUploadBytes: defaultMaxUploadBytes,
		streamInterval: defaultStreamInterval,
		newID:          uuid.NewString,
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
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
	s.mux.HandleFunc("/{$}", s.handleHealth)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/generate", s.handleGenerate)
	s.mux.HandleFunc("/status/{job_id}", s.handleStatus)
	s.mux.HandleFunc("/status/{job_id}/stream", s.handleStatusStream)
	s.mux.HandleFunc("/videos/{job_id}/list", s.handleListVideos)
	s.mux.HandleFunc("/videos/{video_id}", s.handleVideo)
}

// withCORS lets a browser front end on another origin call the API.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Range")
		h.Set("Access-Control-Expose-Headers", "Content-Range, Content-Length, Accept-Ranges")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
