package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/serverwatch/internal/page"
)

const (
	// streamWriteTimeout bounds a single SSE or WebSocket write so a stalled
	// client cannot pin its handler. Must be <= shutdownTimeout.
	streamWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// wsPingInterval must be shorter than wsPongWait.
	wsPingInterval = 30 * time.Second
	wsPongWait     = 60 * time.Second
)

// Source is the document the server exposes. *page.Document implements it.
type Source interface {
	// Render writes the full document.
	Render(w io.Writer) error

	// Fragments returns the current state of every container.
	Fragments() []page.Fragment

	// Fragment returns the current state of one container.
	Fragment(id string) (page.Fragment, bool)

	// Subscribe returns a channel of container updates. Slow consumers may
	// miss updates. Callers must call Unsubscribe.
	Subscribe() <-chan page.Fragment

	// Unsubscribe removes a subscription and closes its channel.
	Unsubscribe(ch <-chan page.Fragment)
}

// Server serves the page and its live update streams.
type Server struct {
	source     Source
	port       int
	staticDir  string
	httpServer *http.Server
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewServer creates a [Server]. An empty staticDir disables "/static/".
// The server does not listen until [Server.Start] is called.
func NewServer(src Source, port int, staticDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		source:    src,
		port:      port,
		staticDir: staticDir,
		logger:    logger,
		upgrader: websocket.Upgrader{
			// the page is read-only, any origin may watch it
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/fragments", s.handleFragments)
	mux.HandleFunc("/api/fragments/", s.handleFragment)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.HandleFunc("/api/ws", s.handleWS)

	if s.staticDir != "" {
		if info, err := os.Stat(s.staticDir); err != nil || !info.IsDir() {
			s.logger.Warn("static directory unavailable, map images will not load", "dir", s.staticDir)
		}
		mux.Handle("/static/", http.StripPrefix("/static/", noListing(http.FileServer(http.Dir(s.staticDir)))))
	}

	mux.HandleFunc("/", s.handlePage)
	return mux
}

// Start begins serving in a background goroutine and returns once the
// listener is bound. Cancelling ctx shuts the server down with a 5-second
// grace period.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts end with ctx, so long-lived streams exit on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("page server listening", "addr", ln.Addr().String())
	return nil
}

// noListing hides directory indexes.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handlePage serves the current document.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var buf bytes.Buffer
	if err := s.source.Render(&buf); err != nil {
		s.logger.Error("failed to render page", "error", err)
		http.Error(w, "Page unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Error("failed to write page response", "error", err)
	}
}

// handleFragments returns every container as JSON.
func (s *Server) handleFragments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(s.source.Fragments()); err != nil {
		s.logger.Error("failed to encode fragments response", "error", err)
	}
}

// handleFragment returns a single container as JSON.
func (s *Server) handleFragment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/fragments/")
	f, ok := s.source.Fragment(id)
	if !ok {
		http.Error(w, "Unknown server", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(f); err != nil {
		s.logger.Error("failed to encode fragment response", "error", err)
	}
}

// handleSSE streams container updates via Server-Sent Events, starting with
// the current state of every container.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.source.Subscribe()
	defer s.source.Unsubscribe(ch)

	for _, f := range s.source.Fragments() {
		data, err := json.Marshal(f)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(f)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}
		case <-r.Context().Done():
			// client gone or server shutting down
			return
		}
	}
}

// handleWS streams container updates over a WebSocket, one JSON text frame
// per fragment. Incoming messages are discarded.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.source.Subscribe()
	defer s.source.Unsubscribe(ch)

	// the read loop handles pongs and close frames; it ends when the peer goes
	closed := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(f page.Fragment) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(f)
	}

	for _, f := range s.source.Fragments() {
		if err := send(f); err != nil {
			return
		}
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return
			}
			if err := send(f); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}
