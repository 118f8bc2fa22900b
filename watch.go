package serverwatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/jpalmerr/serverwatch/internal/page"
	"github.com/jpalmerr/serverwatch/internal/poller"
	"github.com/jpalmerr/serverwatch/internal/render"
	"github.com/jpalmerr/serverwatch/internal/server"
	"github.com/jpalmerr/serverwatch/internal/status"
	"github.com/jpalmerr/serverwatch/web"
)

const (
	defaultPollingInterval = poller.DefaultInterval
	defaultPort            = 8080
	defaultStaticDir       = "static"
)

// Watch polls the configured servers and serves the status page.
//
// A Watch is created with [New] and run with [Watch.Start]:
//
//	w, err := serverwatch.New(serverwatch.WithSource(src), serverwatch.WithServer("meow"))
//	if err != nil {
//	    return err
//	}
//	return w.Start(ctx) // blocks until ctx is cancelled
type Watch struct {
	title           string
	servers         []string
	source          string
	pollingInterval time.Duration
	requestTimeout  time.Duration
	port            int
	staticDir       string
	playerFilter    PlayerFilter
	logger          *slog.Logger
	statusCallbacks []func(StatusEvent)
}

// New creates a [Watch].
//
// [WithSource] and at least one server id are required. Server ids must be
// unique. Defaults:
//   - Polling interval: 3 seconds
//   - Request timeout: none
//   - Port: 8080
//   - Static directory: "static"
//   - Player filter: [LegacyFilter]
func New(opts ...Option) (*Watch, error) {
	cfg := &watchConfig{
		pollingInterval: defaultPollingInterval,
		port:            defaultPort,
		staticDir:       defaultStaticDir,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.source == "" {
		return nil, errors.New("a source URL is required")
	}
	if len(cfg.servers) == 0 {
		return nil, errors.New("at least one server is required")
	}

	// ids double as element ids, so they must be unique
	seen := make(map[string]bool, len(cfg.servers))
	for _, id := range cfg.servers {
		if seen[id] {
			return nil, fmt.Errorf("duplicate server id: %q", id)
		}
		seen[id] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	filter := cfg.playerFilter
	if filter == nil {
		filter = LegacyFilter
	}

	return &Watch{
		title:           cfg.title,
		servers:         cfg.servers,
		source:          cfg.source,
		pollingInterval: cfg.pollingInterval,
		requestTimeout:  cfg.requestTimeout,
		port:            cfg.port,
		staticDir:       cfg.staticDir,
		playerFilter:    filter,
		logger:          logger,
		statusCallbacks: cfg.statusCallbacks,
	}, nil
}

// Start serves the page and polls every server until ctx is cancelled.
//
// Each server's element shows "waiting for data" until its first ServerUp.
// Start returns nil on graceful shutdown and an error if the page cannot be
// built or the HTTP server cannot bind its port.
func (w *Watch) Start(ctx context.Context) error {
	w.logger.Info("serverwatch starting", "server_count", len(w.servers), "source", w.source)
	w.logger.Info("polling configured", "interval", w.pollingInterval.String())

	if ctx.Err() != nil {
		return nil
	}

	tpl, err := fs.ReadFile(web.Assets, web.IndexPath)
	if err != nil {
		return fmt.Errorf("read page template: %w", err)
	}
	doc, err := page.New(tpl, w.servers, w.title)
	if err != nil {
		return fmt.Errorf("build page: %w", err)
	}

	httpServer := server.NewServer(doc, w.port, w.staticDir, w.logger)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	w.logger.Info("page available", "url", fmt.Sprintf("http://localhost:%d", w.port))

	controller := poller.NewController(
		w.servers,
		w.pollingInterval,
		poller.NewClient(w.source, w.requestTimeout),
		w.handler(doc, render.New(w.playerFilter, w.logger), newTransitions(w.logger)),
		w.logger,
	)
	controller.Start(ctx)

	<-ctx.Done()
	controller.Stop()
	w.logger.Info("serverwatch stopped")
	return nil
}

// handler renders a payload into the page, then records transitions and
// fires callbacks.
func (w *Watch) handler(doc *page.Document, r *render.Renderer, tr *transitions) poller.Handler {
	return func(id string, resp status.Response) {
		found := false
		doc.Mutate(id, func(container *html.Node) bool {
			found = true
			return r.Render(container, resp)
		})
		if !found {
			// pass nil so the renderer reports the missing target
			r.Render(nil, resp)
		}

		tr.observe(id, resp)

		if len(w.statusCallbacks) == 0 {
			return
		}
		ev := newStatusEvent(id, resp, w.playerFilter, time.Now())
		for _, cb := range w.statusCallbacks {
			invokeCallbackSafe(cb, ev, w.logger)
		}
	}
}

// Servers returns a copy of the configured server ids.
func (w *Watch) Servers() []string {
	return append([]string(nil), w.servers...)
}

// Source returns the upstream base URL.
func (w *Watch) Source() string {
	return w.source
}

// Port returns the page server's port.
func (w *Watch) Port() int {
	return w.port
}

// PollingInterval returns the time between polling cycles.
func (w *Watch) PollingInterval() time.Duration {
	return w.pollingInterval
}

// invokeCallbackSafe calls a status callback with panic recovery.
func invokeCallbackSafe(cb func(StatusEvent), ev StatusEvent, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("status callback panicked",
				"panic", r,
				"server", ev.ServerID,
			)
		}
	}()
	cb(ev)
}
