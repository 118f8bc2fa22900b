package status

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	keyServerUp   = "ServerUp"
	keyServerDown = "ServerDown"
)

// Variant identifies which shape a [Response] has.
type Variant int

const (
	// VariantUnknown is any payload that is neither ServerUp nor ServerDown.
	VariantUnknown Variant = iota

	// VariantUp carries server info and the player list.
	VariantUp

	// VariantDown means the upstream could not reach the game server.
	VariantDown
)

// String returns the variant name as it appears on the wire.
func (v Variant) String() string {
	switch v {
	case VariantUp:
		return keyServerUp
	case VariantDown:
		return keyServerDown
	default:
		return "Unknown"
	}
}

// ServerInfo is the subset of the A2S_INFO reply the upstream forwards.
// Only Name, Map and MaxPlayers are rendered.
type ServerInfo struct {
	Name       string `json:"name"`
	Map        string `json:"map"`
	MaxPlayers int    `json:"max_players"`
	Players    int    `json:"players,omitempty"`
	Bots       int    `json:"bots,omitempty"`
	Folder     string `json:"folder,omitempty"`
	Game       string `json:"game,omitempty"`
	Version    string `json:"version,omitempty"`
}

// Player is one entry of the A2S_PLAYER reply.
type Player struct {
	Index    int     `json:"index,omitempty"`
	Name     string  `json:"name"`
	Score    int     `json:"score,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Elapsed is a serialized duration: {"secs": 12, "nanos": 5000}.
type Elapsed struct {
	Secs  uint64 `json:"secs"`
	Nanos uint32 `json:"nanos"`
}

// Duration converts e to a time.Duration.
func (e Elapsed) Duration() time.Duration {
	return time.Duration(e.Secs)*time.Second + time.Duration(e.Nanos)
}

// Since is a serialized wall-clock instant measured from the Unix epoch.
type Since struct {
	Secs  int64 `json:"secs_since_epoch"`
	Nanos int64 `json:"nanos_since_epoch"`
}

// Time converts s to a time.Time.
func (s Since) Time() time.Time {
	return time.Unix(s.Secs, s.Nanos)
}

// ServerUp is the payload of a reachable server.
type ServerUp struct {
	ServerInfo ServerInfo
	Elapsed    Elapsed

	// Image is the map image file name, nil when the map has none.
	Image   *string
	Players []Player
}

// ServerDown is the payload of an unreachable server.
type ServerDown struct {
	// Since is nil when the upstream did not say when the server went down.
	Since *Since
}

// Response is a decoded status payload. Exactly one of Up and Down is set
// for VariantUp and VariantDown; both are nil for VariantUnknown.
type Response struct {
	Variant Variant
	Up      *ServerUp
	Down    *ServerDown

	// Raw is the original JSON document.
	Raw json.RawMessage
}

// NewUp wraps up in a [Response].
func NewUp(up ServerUp) Response {
	return Response{Variant: VariantUp, Up: &up}
}

// NewDown wraps down in a [Response].
func NewDown(down ServerDown) Response {
	return Response{Variant: VariantDown, Down: &down}
}

// NewUnknown wraps an arbitrary JSON document in a [Response].
func NewUnknown(raw []byte) Response {
	return Response{Variant: VariantUnknown, Raw: json.RawMessage(raw)}
}

// wireUp mirrors the ServerUp object. Pointers distinguish missing fields.
type wireUp struct {
	ServerInfo *ServerInfo        `json:"server_info"`
	Elapsed    json.RawMessage    `json:"elapsed"`
	Image      json.RawMessage    `json:"image"`
	Players    *[]json.RawMessage `json:"players"`
}

// wirePlayer keeps every field raw so one odd value does not reject the
// whole payload.
type wirePlayer struct {
	Index    json.RawMessage `json:"index"`
	Name     json.RawMessage `json:"name"`
	Score    json.RawMessage `json:"score"`
	Duration json.RawMessage `json:"duration"`
}

type wireDown struct {
	Since *Since `json:"since"`
}

// Parse decodes an upstream payload.
//
// Parse returns an error for invalid JSON and for a ServerUp body that
// cannot be used for rendering (no server_info, no players, null players).
// Valid JSON of any other shape is not an error: it yields VariantUnknown.
//
// The variant is selected by the first truthy top-level key, checking
// ServerUp before ServerDown. null, false, 0 and "" count as absent.
func Parse(body []byte) (Response, error) {
	if !json.Valid(body) {
		return Response{}, errors.New("invalid JSON")
	}
	raw := json.RawMessage(bytes.Clone(body))

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		// arrays, strings, numbers and null are valid JSON but not a variant
		return Response{Variant: VariantUnknown, Raw: raw}, nil
	}

	if v, ok := obj[keyServerUp]; ok && truthy(v) {
		up, err := decodeUp(v)
		if err != nil {
			return Response{}, fmt.Errorf("decode %s: %w", keyServerUp, err)
		}
		return Response{Variant: VariantUp, Up: up, Raw: raw}, nil
	}

	if v, ok := obj[keyServerDown]; ok && truthy(v) {
		return Response{Variant: VariantDown, Down: decodeDown(v), Raw: raw}, nil
	}

	return Response{Variant: VariantUnknown, Raw: raw}, nil
}

func decodeUp(data json.RawMessage) (*ServerUp, error) {
	var w wireUp
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	if w.ServerInfo == nil {
		return nil, errors.New("missing server_info")
	}
	if w.Players == nil {
		return nil, errors.New("missing players")
	}

	players := make([]Player, 0, len(*w.Players))
	for i, p := range *w.Players {
		if isNull(p) {
			return nil, fmt.Errorf("players[%d] is null", i)
		}
		players = append(players, decodePlayer(p))
	}

	up := &ServerUp{
		ServerInfo: *w.ServerInfo,
		Image:      looseString(w.Image),
		Players:    players,
	}

	// elapsed is informational only, a malformed value is ignored
	if len(w.Elapsed) > 0 {
		_ = json.Unmarshal(w.Elapsed, &up.Elapsed)
	}

	return up, nil
}

// decodePlayer reads one players entry. A non-object entry is a player with
// no name. A name that is not a string keeps its JSON text when truthy and
// becomes "" otherwise, so filters treat it the way a browser would.
func decodePlayer(data json.RawMessage) Player {
	var w wirePlayer
	if err := json.Unmarshal(data, &w); err != nil {
		return Player{}
	}

	var p Player
	if name := looseString(w.Name); name != nil && truthy(w.Name) {
		p.Name = *name
	}
	_ = json.Unmarshal(w.Index, &p.Index)
	_ = json.Unmarshal(w.Score, &p.Score)
	_ = json.Unmarshal(w.Duration, &p.Duration)
	return p
}

// looseString returns nil for a missing or null value, the string for a
// JSON string, and the raw JSON text for anything else.
func looseString(data json.RawMessage) *string {
	if isNull(data) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return &s
	}
	s = string(bytes.TrimSpace(data))
	return &s
}

func isNull(data json.RawMessage) bool {
	v := bytes.TrimSpace(data)
	return len(v) == 0 || string(v) == "null"
}

func decodeDown(data json.RawMessage) *ServerDown {
	var w wireDown
	if err := json.Unmarshal(data, &w); err != nil {
		return &ServerDown{}
	}
	return &ServerDown{Since: w.Since}
}

// truthy reports whether a JSON value would count as present in a
// JavaScript boolean context.
func truthy(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	switch string(v) {
	case "", "null", "false", `""`:
		return false
	}
	if c := v[0]; c == '-' || (c >= '0' && c <= '9') {
		f, err := strconv.ParseFloat(string(v), 64)
		return err != nil || f != 0
	}
	return true
}

// MarshalJSON encodes r in the tagged wire format.
func (r Response) MarshalJSON() ([]byte, error) {
	switch r.Variant {
	case VariantUp:
		if r.Up == nil {
			return nil, errors.New("ServerUp response without payload")
		}
		players := r.Up.Players
		if players == nil {
			players = []Player{}
		}
		return json.Marshal(map[string]any{
			keyServerUp: map[string]any{
				"server_info": r.Up.ServerInfo,
				"elapsed":     r.Up.Elapsed,
				"image":       r.Up.Image,
				"players":     players,
			},
		})
	case VariantDown:
		down := wireDown{}
		if r.Down != nil {
			down.Since = r.Down.Since
		}
		return json.Marshal(map[string]any{keyServerDown: down})
	default:
		if len(r.Raw) == 0 {
			return []byte("null"), nil
		}
		return r.Raw, nil
	}
}
