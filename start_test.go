package serverwatch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const upBody = `{"ServerUp": {"server_info": {"name": "Meow DZ", "map": "de_dust2", "max_players": 10}, "elapsed": {"secs": 1, "nanos": 0}, "image": "dust2.jpg", "players": [{"name": "DatHost - GOTV"}, {"name": ""}, {"name": "Alice"}]}}`

// testLogger returns a logger that discards all output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// freePort returns a port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()
	return ln.Addr().(*net.TCPAddr).Port
}

// upstream serves body for every /data/{id} request.
func upstream(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func newTestWatch(t *testing.T, source string, opts ...Option) *Watch {
	t.Helper()
	base := []Option{
		WithSource(source),
		WithPort(freePort(t)),
		WithPollingInterval(50 * time.Millisecond),
		WithStaticDir(t.TempDir()),
		WithLogger(testLogger()),
	}
	w, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return w
}

type fragment struct {
	ID   string `json:"id"`
	HTML string `json:"html"`
}

// fetchFragments reads /api/fragments from a running watch.
func fetchFragments(t *testing.T, port int) []fragment {
	t.Helper()
	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/api/fragments")
	if err != nil {
		t.Fatalf("GET /api/fragments: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out []fragment
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode fragments: %v", err)
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestStart_BlocksUntilContextCancelled(t *testing.T) {
	ts := upstream(upBody)
	defer ts.Close()

	w := newTestWatch(t, ts.URL, WithServer("meow"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Start() returned early with error: %v", err)
	default:
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	w := newTestWatch(t, "http://127.0.0.1:1", WithServer("meow"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return with already-cancelled context")
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	w, err := New(
		WithSource("http://127.0.0.1:1"),
		WithServer("meow"),
		WithPort(ln.Addr().(*net.TCPAddr).Port),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = w.Start(ctx)
	if err == nil {
		t.Fatal("Start() expected error for occupied port")
	}
	if !strings.Contains(err.Error(), "failed to start HTTP server") {
		t.Errorf("Start() error = %v", err)
	}
}

func TestStart_ServerIDClashesWithTemplate(t *testing.T) {
	w := newTestWatch(t, "http://127.0.0.1:1", WithServer("servers"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.Start(ctx); err == nil || !strings.Contains(err.Error(), "build page") {
		t.Errorf("Start() error = %v, want build page error", err)
	}
}

func TestStart_MultipleSequentialRuns(t *testing.T) {
	ts := upstream(upBody)
	defer ts.Close()

	for i := 0; i < 3; i++ {
		w := newTestWatch(t, ts.URL, WithServer("meow"))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- w.Start(ctx)
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("iteration %d: Start() returned error: %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("iteration %d: Start() did not return", i)
		}
	}
}

func TestStart_ConcurrentAccessors(t *testing.T) {
	ts := upstream(upBody)
	defer ts.Close()

	w := newTestWatch(t, ts.URL, WithServers("meow", "meow2"))
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = w.Start(ctx)
	}()

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Servers()
			_ = w.Port()
			_ = w.PollingInterval()
			_ = w.Source()
		}()
	}

	time.Sleep(100 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutines did not complete")
	}
}

func TestStart_WithTimeoutContext(t *testing.T) {
	ts := upstream(upBody)
	defer ts.Close()

	w := newTestWatch(t, ts.URL, WithServer("meow"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := w.Start(ctx)
	elapsed := time.Since(start)

	if elapsed < 150*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("Start() ran for %v, expected ~200ms", elapsed)
	}
	if err != nil {
		t.Errorf("Start() error = %v", err)
	}
}
