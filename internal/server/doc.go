// Package server provides the HTTP server for the serverwatch page.
//
// Routes:
//
//   - "/": the current document
//   - "/api/fragments": JSON snapshot of every server container
//   - "/api/sse": Server-Sent Events stream of container updates
//   - "/api/ws": WebSocket stream of the same updates
//   - "/static/": files from the static directory, map images included
//
// The server shuts down gracefully on context cancellation, with a 5-second
// timeout for in-flight requests.
package server
