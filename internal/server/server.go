// Package server exposes a read-only HTTP inspector for a running map.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/render"
	"github.com/zeusync/mapsync/internal/core/render/raster"
	"github.com/zeusync/mapsync/internal/core/schema"
	"github.com/zeusync/mapsync/internal/engine"
	"github.com/zeusync/mapsync/pkg/generic"
)

const requestTimeout = 5 * time.Second

var buffers = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

// Inspected is the part of the engine the inspector reads.
type Inspected interface {
	Status(ctx context.Context) (engine.Status, error)
	Frame(ctx context.Context) (render.Frame, error)
	Refresh(ctx context.Context) error
}

type Server struct {
	target Inspected
	logger log.Log

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

func New(target Inspected, logger log.Log) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	return &Server{target: target, logger: logger.With(log.String("component", "inspector"))}
}

// Handler returns the inspector routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/map.png", s.handleFrame)
		r.Get("/schema", s.handleSchema)
		r.Get("/schema/{eventType}", s.handleEventSchema)
		r.Post("/refresh", s.handleRefresh)
	})
	return r
}

// Start listens on addr and serves until Stop. Use ":0" for a random port.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return ErrServerRunning
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: requestTimeout}
	s.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Inspector stopped", log.Error(err))
		}
	}(s.server, s.done)

	s.logger.Info("Inspector listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Addr is the bound address, empty when not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.server, s.done
	s.server, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()
	if srv == nil {
		return ErrServerNotRunning
	}

	err := srv.Shutdown(ctx)
	<-done
	return err
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.target.Status(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := s.target.Frame(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	buf := buffers.Get()
	defer buffers.Put(buf)
	if err = png.Encode(buf, raster.Render(frame)); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	doc, err := schema.Document()
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(doc)
}

func (s *Server) handleEventSchema(w http.ResponseWriter, r *http.Request) {
	sc, ok := schema.For(chi.URLParam(r, "eventType"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown event type"})
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.target.Refresh(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrNotMounted), errors.Is(err, engine.ErrTornDown):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code = http.StatusGatewayTimeout
	}
	s.logger.Warn("Inspector request failed", log.Error(err), log.Int("status", code))
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
