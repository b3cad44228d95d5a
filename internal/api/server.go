package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pbaille/letterdesk/internal/queue"
	"github.com/pbaille/letterdesk/internal/store"
	"github.com/rs/zerolog"
)

// Options configures authentication and job routing
type Options struct {
	Addr          string
	JWTSecret     []byte
	AdminPassword string
	TokenTTL      time.Duration
	GenerateQueue string
	EmailQueue    string
}

// Server handles HTTP requests for the console API
type Server struct {
	store   *store.Store
	queue   queue.Queue
	opts    Options
	log     zerolog.Logger
	metrics *metrics
}

// New creates a new API server. q may be nil, which disables the job endpoints.
func New(s *store.Store, q queue.Queue, opts Options, log zerolog.Logger) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	return &Server{
		store:   s,
		queue:   q,
		opts:    opts,
		log:     log,
		metrics: newMetrics(),
	}
}

// Handler builds the routed, instrumented handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /metrics", s.metrics.handler())

	// Resources
	mux.Handle("GET /api/{kind}", s.authed(s.listRecords))
	mux.Handle("POST /api/{kind}", s.authed(s.createRecord))
	mux.Handle("GET /api/{kind}/{id}", s.authed(s.getRecord))
	mux.Handle("DELETE /api/{kind}/{id}", s.authed(s.deleteRecord))
	mux.Handle("PUT /api/{kind}/{id}/{attr}", s.authed(s.updateRecord))

	// Jobs
	mux.Handle("POST /api/recipients/{id}/generate", s.authed(s.generateCoverLetter))
	mux.Handle("POST /api/cover-letters/{id}/refine", s.authed(s.refineCoverLetter))
	mux.Handle("POST /api/cover-letters/{id}/send", s.authed(s.sendCoverLetter))

	return s.instrument(withCORS(mux))
}

// Run starts the HTTP server
func (s *Server) Run() error {
	s.log.Info().Str("addr", s.opts.Addr).Msg("starting server")
	return http.ListenAndServe(s.opts.Addr, s.Handler())
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logs and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		h.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		s.metrics.observe(r, rec.status, elapsed)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
