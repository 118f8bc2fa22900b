// Package mock serves fake upstream status payloads for demos and manual
// testing.
//
// Each known server id flips between ServerUp and ServerDown every 20-60
// seconds. Ids the handler was not told about get a bare JSON error string,
// which the page logs as an unexpected format.
package mock

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/serverwatch/internal/status"
)

var maps = []string{"de_dust2", "de_mirage", "de_inferno", "de_nuke"}

var playerNames = []string{"DatHost - GOTV", "", "", "Alice", "Bob", "Carol"}

type state struct {
	up           bool
	downSince    time.Time
	mapIdx       int
	nextChangeAt time.Time
}

// Handler answers GET /data/{id} for a fixed set of ids.
type Handler struct {
	mu     sync.Mutex
	states map[string]*state
	names  map[string]string
	now    func() time.Time
	logger *slog.Logger
}

// NewHandler creates a handler that knows the given ids. Each id starts up
// on a random map.
func NewHandler(logger *slog.Logger, ids ...string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		states: make(map[string]*state, len(ids)),
		names:  make(map[string]string, len(ids)),
		now:    time.Now,
		logger: logger,
	}
	for _, id := range ids {
		h.states[id] = &state{
			up:           true,
			mapIdx:       rand.Intn(len(maps)),
			nextChangeAt: h.now().Add(nextChange()),
		}
		h.names[id] = displayName(id)
	}
	return h
}

// displayName turns "meow" into "Meow DZ".
func displayName(id string) string {
	if id == "" {
		return "DZ"
	}
	return strings.ToUpper(id[:1]) + id[1:] + " DZ"
}

func nextChange() time.Duration {
	return time.Duration(20+rand.Intn(41)) * time.Second
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutPrefix(r.URL.Path, "/data/")
	if !ok || id == "" || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Payload(id)); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// Payload returns the current payload for id, advancing its state when a
// change is due.
func (h *Handler) Payload(id string) status.Response {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, exists := h.states[id]
	if !exists {
		return status.NewUnknown([]byte(`"Error: unknown server"`))
	}

	now := h.now()
	if now.After(st.nextChangeAt) {
		st.up = !st.up
		if st.up {
			st.mapIdx = (st.mapIdx + 1) % len(maps)
		} else {
			st.downSince = now
		}
		st.nextChangeAt = now.Add(nextChange())
		h.logger.Info("status change", "server", id, "up", st.up)
	}

	if !st.up {
		return status.NewDown(status.ServerDown{
			Since: &status.Since{
				Secs:  st.downSince.Unix(),
				Nanos: int64(st.downSince.Nanosecond()),
			},
		})
	}

	mapName := maps[st.mapIdx]
	image := strings.TrimPrefix(mapName, "de_") + ".svg"

	n := 1 + rand.Intn(len(playerNames))
	players := make([]status.Player, 0, n)
	for i := 0; i < n; i++ {
		players = append(players, status.Player{
			Index:    i,
			Name:     playerNames[i],
			Score:    rand.Intn(30),
			Duration: float64(rand.Intn(3600)),
		})
	}

	return status.NewUp(status.ServerUp{
		ServerInfo: status.ServerInfo{
			Name:       h.names[id],
			Map:        mapName,
			MaxPlayers: 10,
			Players:    n,
		},
		Elapsed: status.Elapsed{Secs: uint64(rand.Intn(5)), Nanos: uint32(rand.Intn(1e9))},
		Image:   &image,
		Players: players,
	})
}
