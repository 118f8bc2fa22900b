// Package serverwatch keeps a live status page for a set of game servers.
//
// A [Watch] polls an upstream status source for every configured server id,
// renders each ServerUp payload into that server's element of an HTML page,
// and serves the page to browsers. Browsers receive every re-render as an
// HTML fragment over Server-Sent Events (or a WebSocket), so the visible
// page always mirrors the process's copy.
//
// # Quick Start
//
//	w, err := serverwatch.New(
//	    serverwatch.WithSource("http://status.internal:8000"),
//	    serverwatch.WithServers("meow", "meow2"),
//	)
//	if err != nil {
//	    slog.Error("failed to create watch", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	w.Start(ctx) // blocks until ctx is cancelled
//
// # Upstream Payloads
//
// The source answers GET /data/{id} with one of:
//
//	{"ServerUp": {"server_info": {...}, "elapsed": {...}, "image": "dust2.jpg", "players": [...]}}
//	{"ServerDown": {"since": {...}}}
//
// ServerUp replaces the server's element with a heading, a map line, a player
// list placeholder, and the map image from /static/maps/. ServerDown leaves
// whatever was shown before. Anything else is logged and ignored.
//
// # Architecture
//
//   - internal/status: payload decoding
//   - internal/render: ServerUp to HTML nodes
//   - internal/page: the document, with pub/sub of changed elements
//   - internal/poller: HTTP client and polling controller
//   - internal/server: page, fragments, SSE, WebSocket and static files
//   - web: embedded page template
package serverwatch
