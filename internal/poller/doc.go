// Package poller fetches server status on a fixed interval.
//
// The main components are:
//
//   - [Client]: HTTP client bound to the upstream source, with connection
//     pooling and a body size limit
//   - [Controller]: polls every configured server id immediately on start,
//     then once per tick, and hands each decoded payload to a [Handler]
//
// Each poll runs in its own goroutine. There is no overlap guard: a slow
// response can land after a newer one, and whichever completes last wins.
// Failures are logged and never stop the ticker.
package poller
