package serverwatch

import (
	"time"

	"github.com/jpalmerr/serverwatch/internal/render"
	"github.com/jpalmerr/serverwatch/internal/status"
)

// Status is the reachability of a game server as reported upstream.
type Status string

const (
	// StatusUp means the upstream reached the server and sent its info.
	StatusUp Status = "up"

	// StatusDown means the upstream could not reach the server.
	StatusDown Status = "down"

	// StatusUnknown means the payload had neither shape.
	StatusUnknown Status = "unknown"
)

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// Player is one entry of a server's player list.
type Player = status.Player

// PlayerFilter reports whether a player counts toward the online total.
type PlayerFilter = render.PlayerFilter

var (
	// LegacyFilter is the default filter. It keeps only players with an
	// empty name that are not the GOTV bot, which in practice counts empty
	// slots rather than connected players.
	LegacyFilter PlayerFilter = render.LegacyFilter

	// ConnectedFilter keeps named players other than the GOTV bot.
	ConnectedFilter PlayerFilter = render.ConnectedFilter
)

// ParsePlayerFilter maps "legacy" (or "") and "connected" to a filter.
func ParsePlayerFilter(name string) (PlayerFilter, error) {
	return render.ParseFilter(name)
}

// StatusEvent describes one handled poll.
//
// Events are only produced for payloads that decoded; transport and decode
// failures are logged instead.
type StatusEvent struct {
	// ServerID is the configured id that was polled.
	ServerID string

	// Status is derived from the payload variant.
	Status Status

	// Name and Map come from server_info. Empty unless Status is StatusUp.
	Name string
	Map  string

	// Players is the number of players the configured filter kept.
	// Zero unless Status is StatusUp.
	Players int

	// MaxPlayers is server_info.max_players.
	MaxPlayers int

	// DownSince is when the upstream first saw the server down, if it said.
	DownSince *time.Time

	// CheckedAt is when the payload was handled.
	CheckedAt time.Time
}

func newStatusEvent(id string, resp status.Response, filter PlayerFilter, now time.Time) StatusEvent {
	ev := StatusEvent{ServerID: id, Status: StatusUnknown, CheckedAt: now}

	switch resp.Variant {
	case status.VariantUp:
		ev.Status = StatusUp
		if resp.Up != nil {
			ev.Name = resp.Up.ServerInfo.Name
			ev.Map = resp.Up.ServerInfo.Map
			ev.MaxPlayers = resp.Up.ServerInfo.MaxPlayers
			ev.Players = len(render.FilterPlayers(resp.Up.Players, filter))
		}
	case status.VariantDown:
		ev.Status = StatusDown
		if resp.Down != nil && resp.Down.Since != nil {
			t := resp.Down.Since.Time()
			ev.DownSince = &t
		}
	}

	return ev
}
