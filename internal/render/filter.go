package render

import (
	"fmt"

	"github.com/jpalmerr/serverwatch/internal/status"
)

// gotvName is the spectator bot DatHost adds to every server.
const gotvName = "DatHost - GOTV"

// PlayerFilter reports whether a player counts toward the online total.
type PlayerFilter func(p status.Player) bool

// LegacyFilter keeps a player only when its name is empty and is not the
// GOTV bot name.
//
// This is the predicate the widget has always shipped with. For real data it
// keeps only unnamed slots, which is almost certainly inverted; it stays the
// default until the intended behaviour is confirmed. See [ConnectedFilter].
func LegacyFilter(p status.Player) bool {
	return p.Name == "" && p.Name != gotvName
}

// ConnectedFilter keeps named players other than the GOTV bot, the same
// rule the Discord status command uses to count real players.
func ConnectedFilter(p status.Player) bool {
	return p.Name != "" && p.Name != gotvName
}

// FilterPlayers returns the players keep accepts, preserving order.
// A nil keep accepts everyone.
func FilterPlayers(players []status.Player, keep PlayerFilter) []status.Player {
	out := make([]status.Player, 0, len(players))
	for _, p := range players {
		if keep == nil || keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// ParseFilter maps a configuration name to a [PlayerFilter].
// The empty string selects [LegacyFilter].
func ParseFilter(name string) (PlayerFilter, error) {
	switch name {
	case "", "legacy":
		return LegacyFilter, nil
	case "connected":
		return ConnectedFilter, nil
	default:
		return nil, fmt.Errorf("unknown player filter %q (expected 'legacy' or 'connected')", name)
	}
}
