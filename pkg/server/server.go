// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phuslu/log"
	"golang.org/x/time/rate"

	"github.com/coolbeans/fieldmap/pkg/export"
	"github.com/coolbeans/fieldmap/pkg/fields"
	"github.com/coolbeans/fieldmap/pkg/logging"
	"github.com/coolbeans/fieldmap/pkg/pdftext"
	"github.com/coolbeans/fieldmap/pkg/pipeline"
	"github.com/coolbeans/fieldmap/pkg/profile"
)

// Options tunes the HTTP surface.
type Options struct {
	// MaxBodyBytes bounds uploaded documents.
	MaxBodyBytes int64
	// RatePerSecond limits extraction requests; 0 disables limiting.
	RatePerSecond float64
	Burst         int
}

// DefaultOptions returns the limits used when none are configured.
func DefaultOptions() Options {
	return Options{MaxBodyBytes: 32 << 20, RatePerSecond: 5, Burst: 10}
}

// Server serves the extraction API.
type Server struct {
	pipeline *pipeline.Pipeline
	logger   *log.Logger
	opts     Options
	limiter  *rate.Limiter
	router   chi.Router
}

// New builds the router around a pipeline.
func New(p *pipeline.Pipeline, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultOptions().MaxBodyBytes
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	s := &Server{pipeline: p, logger: logger, opts: opts}
	if opts.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/profiles", s.handleListProfiles)
		r.Get("/profiles/{id}", s.handleGetProfile)
		r.With(s.rateLimit).Post("/extract", s.handleExtract)
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info().Msg("HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type profileSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := s.pipeline.Registry().List()
	summaries := make([]profileSummary, 0, len(profiles))
	for _, p := range profiles {
		summaries = append(summaries, profileSummary{
			ID:          p.ID,
			Name:        p.Name,
			Version:     p.Version,
			Description: p.Description,
			Source:      p.Source(),
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.pipeline.Registry().Lookup(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	data, err := p.Marshal()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	opts, err := parserOptions(query.Get("header_mode"), query.Get("name_case"), query.Get("accumulation"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	format := export.FormatJSON
	if f := query.Get("format"); f != "" {
		if format, err = export.ParseFormat(f); err != nil || (format != export.FormatJSON && format != export.FormatCSV) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported response format %q", f))
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("document exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty request body")
		return
	}

	source := "upload.txt"
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/pdf" {
		source = "upload.pdf"
	}

	outcome, err := s.pipeline.Run(r.Context(), pipeline.Request{
		Source:    source,
		Data:      body,
		ProfileID: query.Get("profile"),
		Options:   opts,
		PDF:       pdftext.Options{Pages: query.Get("pages")},
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if format == export.FormatCSV {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := export.WriteCSV(w, outcome.Records); err != nil {
			s.logger.Error().Err(err).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("writing CSV response")
		}
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// parserOptions converts query values to parser options; empty values keep
// the profile's setting.
func parserOptions(headerMode, nameCase, accumulation string) ([]fields.Option, error) {
	var opts []fields.Option
	if headerMode != "" {
		mode, err := fields.ParseHeaderMode(headerMode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fields.WithHeaderMode(mode))
	}
	if nameCase != "" {
		nc, err := fields.ParseNameCase(nameCase)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fields.WithNameCase(nc))
	}
	if accumulation != "" {
		acc, err := fields.ParseAccumulation(accumulation)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fields.WithAccumulation(acc))
	}
	return opts, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, profile.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, pdftext.ErrInvalidPageRange):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrTextExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
