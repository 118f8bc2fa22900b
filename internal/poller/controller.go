package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/serverwatch/internal/status"
)

// DefaultInterval is the polling period used when none is configured.
const DefaultInterval = 3 * time.Second

// Handler receives every successfully decoded payload.
//
// Handlers are called from poll goroutines and may run concurrently,
// including for the same id.
type Handler func(id string, resp status.Response)

// Controller polls a fixed set of server ids until stopped.
//
// All lifecycle methods are safe for concurrent use.
type Controller struct {
	ids      []string
	interval time.Duration
	client   *Client
	handler  Handler
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewController creates a [Controller].
//
// An interval <= 0 means [DefaultInterval]. A nil logger means
// slog.Default(). The controller does nothing until [Controller.Start].
func NewController(ids []string, interval time.Duration, client *Client, handler Handler, logger *slog.Logger) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		ids:      append([]string(nil), ids...),
		interval: interval,
		client:   client,
		handler:  handler,
		logger:   logger,
	}
}

// Start polls every id once immediately and then once per interval, until
// [Controller.Stop] is called or ctx is cancelled.
//
// Start does not block. It is a no-op when the controller is already
// running or has been stopped.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	pollCtx := c.ctx
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		c.pollAll(pollCtx)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				c.pollAll(pollCtx)
			}
		}
	}()
}

// Stop cancels the ticker and any in-flight requests, then waits for every
// poll goroutine to return. No handler runs after Stop returns.
//
// Stop is idempotent. Calling it before Start is a no-op, and prevents a
// later Start.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		if c.cancel != nil {
			c.cancel()
		}
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.client.Close()
}

// pollAll starts one goroutine per id and returns without waiting.
func (c *Controller) pollAll(ctx context.Context) {
	for _, id := range c.ids {
		c.wg.Add(1)
		go func(id string) {
			defer c.wg.Done()
			c.poll(ctx, id)
		}(id)
	}
}

// poll fetches and decodes the status of id and passes it to the handler.
func (c *Controller) poll(ctx context.Context, id string) {
	resp := c.client.Fetch(ctx, id)
	if ctx.Err() != nil {
		// stopped while the request was in flight
		return
	}
	if resp.Error != nil {
		c.logger.Error("error fetching data", "server", id, "error", resp.Error)
		return
	}

	payload, err := status.Parse(resp.Body)
	if err != nil {
		c.logger.Error("error fetching data", "server", id, "error", err, "status_code", resp.StatusCode)
		return
	}

	attrs := []any{
		"server", id,
		"variant", payload.Variant.String(),
		"status_code", resp.StatusCode,
		"latency_ms", resp.Latency.Milliseconds(),
	}
	if payload.Up != nil {
		// time since the current map started
		attrs = append(attrs, "elapsed", payload.Up.Elapsed.Duration())
	}
	c.logger.Debug("polled server", attrs...)

	c.safeHandle(id, payload)
}

// safeHandle calls the handler with panic recovery. A panic is logged with
// a correlation id and the full stack.
func (c *Controller) safeHandle(id string, payload status.Response) {
	if c.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("status handler panic",
				"correlation_id", uuid.NewString(),
				"server", id,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	c.handler(id, payload)
}
