package serverwatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/serverwatch/internal/status"
)

// downAlertAfter is how long a server must stay down before it is reported.
const downAlertAfter = 60 * time.Second

// outage tracks one server's current reachability.
type outage struct {
	variant status.Variant

	// start is when the outage began: the upstream's since when it sent one,
	// otherwise when the first Down was observed.
	start   time.Time
	alerted bool
}

// transitions logs when a server has been down for longer than the grace
// period, once per outage, and when it comes back up.
type transitions struct {
	mu     sync.Mutex
	state  map[string]*outage
	grace  time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func newTransitions(logger *slog.Logger) *transitions {
	return &transitions{
		state:  make(map[string]*outage),
		grace:  downAlertAfter,
		now:    time.Now,
		logger: logger,
	}
}

// observe records resp for id. Unknown payloads say nothing about
// reachability and are ignored.
func (t *transitions) observe(id string, resp status.Response) {
	switch resp.Variant {
	case status.VariantDown:
		t.observeDown(id, resp.Down)
	case status.VariantUp:
		t.observeUp(id)
	}
}

func (t *transitions) observeDown(id string, down *status.ServerDown) {
	now := t.now()

	var since *time.Time
	if down != nil && down.Since != nil {
		s := down.Since.Time()
		since = &s
	}

	t.mu.Lock()
	st, seen := t.state[id]
	switch {
	case !seen || st.variant != status.VariantDown:
		st = &outage{variant: status.VariantDown, start: now}
		if since != nil {
			st.start = *since
		}
		t.state[id] = st
	case since != nil && !since.Equal(st.start) && st.alerted:
		// a new outage the poller never saw the end of
		st.start = *since
		st.alerted = false
	case since != nil:
		st.start = *since
	}

	downFor := now.Sub(st.start)
	alert := !st.alerted && downFor > t.grace
	if alert {
		st.alerted = true
	}
	t.mu.Unlock()

	if !alert {
		return
	}
	attrs := []any{"server", id, "down_for", downFor.Round(time.Second).String()}
	if since != nil {
		attrs = append(attrs, "since", *since)
	}
	t.logger.Warn("server went down", attrs...)
}

func (t *transitions) observeUp(id string) {
	t.mu.Lock()
	st, seen := t.state[id]
	wasDown := seen && st.variant == status.VariantDown
	alerted := wasDown && st.alerted
	t.state[id] = &outage{variant: status.VariantUp}
	t.mu.Unlock()

	if alerted {
		t.logger.Info("server back up", "server", id)
	}
}
