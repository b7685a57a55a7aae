// Package server provides the HTTP server for the sign assessment service.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/signcheck/internal/assessment"
	"github.com/ayusman/signcheck/internal/metrics"
	"github.com/ayusman/signcheck/internal/mlclient"
	"github.com/ayusman/signcheck/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir    string
	Predictor    mlclient.Predictor
	Engine       *assessment.Engine
	Progress     api.ProgressReader
	Limiter      *api.SubjectLimiter
	ModelVersion string
}

// Server represents the HTTP server for the sign assessment service.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	stream *StreamHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", MetricsMiddleware(s.handleHealth, "health"))
	s.mux.HandleFunc("/api/health", MetricsMiddleware(s.handleHealth, "health"))
	s.mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	if s.config.Predictor != nil {
		s.mux.HandleFunc("/predict", MetricsMiddleware(api.NewPredictHandler(s.config.Predictor).ServeHTTP, "predict"))
	}

	// Lessons and assessments need the engine's catalog.
	if s.config.Engine != nil {
		catalog := s.config.Engine.Catalog()
		lessonsHandler := api.NewLessonsHandler(catalog)

		var assessmentHandler http.Handler = http.NotFoundHandler()
		if s.config.Predictor != nil {
			assessmentHandler = api.NewAssessmentHandler(s.config.Engine, s.config.Predictor,
				api.WithLimiter(s.config.Limiter))
			s.stream = NewStreamHandler(s.config.Engine, s.config.Predictor, s.config.Limiter)
			s.mux.Handle("/api/assessment/stream", s.stream)
		}

		// Route /api/lessons/{id}/assessment to the assessment handler
		lessonRouter := func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/assessment") {
				assessmentHandler.ServeHTTP(w, r)
				return
			}
			lessonsHandler.ServeHTTP(w, r)
		}

		s.mux.HandleFunc("/api/lessons", MetricsMiddleware(lessonRouter, "lessons"))
		s.mux.HandleFunc("/api/lessons/", MetricsMiddleware(lessonRouter, "lessons"))

		if s.config.Progress != nil {
			progressHandler := api.NewProgressHandler(s.config.Progress, catalog)
			s.mux.HandleFunc("/api/progress", MetricsMiddleware(progressHandler.ServeHTTP, "progress"))
		}
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if s.config.ModelVersion != "" {
		response["model_version"] = s.config.ModelVersion
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// CloseStreams closes open assessment streams.
func (s *Server) CloseStreams() {
	if s.stream != nil {
		s.stream.CloseAll()
	}
}

// HTTPServer wraps s in an http.Server with conservative timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
