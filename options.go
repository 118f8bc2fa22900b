package serverwatch

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// watchConfig holds mutable state during Watch construction.
type watchConfig struct {
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

// Option configures a [Watch] during construction. Options return an error
// when their argument is invalid.
type Option func(*watchConfig) error

// WithServer adds a server id to poll. The id is used both as the upstream
// path segment and as the id of the server's element on the page.
func WithServer(id string) Option {
	return func(cfg *watchConfig) error {
		if id == "" {
			return errors.New("server id cannot be empty")
		}
		cfg.servers = append(cfg.servers, id)
		return nil
	}
}

// WithServers adds several server ids. Equivalent to calling [WithServer]
// for each.
//
// Example:
//
//	w, err := serverwatch.New(
//	    serverwatch.WithSource(src),
//	    serverwatch.WithServers("meow", "meow2"),
//	)
func WithServers(ids ...string) Option {
	return func(cfg *watchConfig) error {
		for _, id := range ids {
			if id == "" {
				return errors.New("server id cannot be empty")
			}
		}
		cfg.servers = append(cfg.servers, ids...)
		return nil
	}
}

// WithSource sets the base URL of the upstream status server. Status is read
// from {source}/data/{id}. Required.
//
// Returns an error unless source is an absolute http or https URL.
func WithSource(source string) Option {
	return func(cfg *watchConfig) error {
		u, err := url.Parse(source)
		if err != nil {
			return fmt.Errorf("invalid source URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source URL scheme must be http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("source URL must have a host")
		}
		cfg.source = source
		return nil
	}
}

// WithPollingInterval sets how often every server is polled.
// Defaults to 3 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *watchConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithRequestTimeout bounds each upstream request. Zero, the default, means
// a request may run until the watch stops.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *watchConfig) error {
		if d < 0 {
			return errors.New("request timeout cannot be negative")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithPort sets the HTTP port for the page server. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *watchConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the page title shown in the browser tab and header.
func WithTitle(title string) Option {
	return func(cfg *watchConfig) error {
		cfg.title = title
		return nil
	}
}

// WithStaticDir sets the directory served under /static/. Map images are
// expected at {dir}/maps/{image}. Defaults to "static".
func WithStaticDir(dir string) Option {
	return func(cfg *watchConfig) error {
		if dir == "" {
			return errors.New("static directory cannot be empty")
		}
		cfg.staticDir = dir
		return nil
	}
}

// WithPlayerFilter sets which players count toward the "players online"
// figure. Defaults to [LegacyFilter].
func WithPlayerFilter(f PlayerFilter) Option {
	return func(cfg *watchConfig) error {
		if f == nil {
			return errors.New("player filter cannot be nil")
		}
		cfg.playerFilter = f
		return nil
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *watchConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithStatusCallback registers a function called after every handled poll,
// once the page has been updated.
//
// Callbacks run on the poll goroutine and may run concurrently, including
// for the same server. They must not block. Panics are recovered and logged.
// Multiple callbacks run in registration order. Nil callbacks are ignored.
//
// Example:
//
//	serverwatch.WithStatusCallback(func(ev serverwatch.StatusEvent) {
//	    if ev.Status == serverwatch.StatusDown {
//	        alerts <- ev.ServerID
//	    }
//	})
func WithStatusCallback(cb func(StatusEvent)) Option {
	return func(cfg *watchConfig) error {
		if cb == nil {
			return nil
		}
		cfg.statusCallbacks = append(cfg.statusCallbacks, cb)
		return nil
	}
}
