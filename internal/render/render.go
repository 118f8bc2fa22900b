// Package render turns status payloads into HTML nodes.
//
// [Renderer.Render] owns nothing: it only swaps the children of a container
// element it is handed. A container is either fully replaced or left alone.
package render

import (
	"fmt"
	"log/slog"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jpalmerr/serverwatch/internal/status"
)

const (
	// ImageStyle is applied to every map image.
	ImageStyle = "width: 90%; border-radius: 5px;"

	// MapImagePrefix is prepended to the payload's image name.
	MapImagePrefix = "/static/maps/"
)

// Renderer writes a server summary into container elements.
type Renderer struct {
	filter PlayerFilter
	logger *slog.Logger
}

// New creates a [Renderer]. A nil filter means [LegacyFilter]; a nil logger
// means slog.Default().
func New(filter PlayerFilter, logger *slog.Logger) *Renderer {
	if filter == nil {
		filter = LegacyFilter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{filter: filter, logger: logger}
}

// Render applies payload to container and reports whether the container
// changed.
//
//   - ServerUp: the children become h2, code, br, code, br, img.
//   - ServerDown: nothing changes; whatever was shown stays.
//   - anything else: one error is logged and nothing changes.
//
// Render is not safe for concurrent use on the same container; callers
// serialize access (see page.Document.Mutate).
func (r *Renderer) Render(container *html.Node, payload status.Response) bool {
	if container == nil {
		r.logger.Error("render target missing", "variant", payload.Variant.String())
		return false
	}

	switch {
	case payload.Variant == status.VariantUp && payload.Up != nil:
		replaceChildren(container, r.build(payload.Up)...)
		return true
	case payload.Variant == status.VariantDown:
		return false
	default:
		r.logger.Error("unexpected data format", "payload", string(payload.Raw))
		return false
	}
}

// build creates the six nodes of a ServerUp summary.
func (r *Renderer) build(up *status.ServerUp) []*html.Node {
	players := FilterPlayers(up.Players, r.filter)

	name := element(atom.H2)
	name.AppendChild(text(up.ServerInfo.Name))

	mapLine := element(atom.Code)
	mapLine.AppendChild(text(MapLine(up.ServerInfo, len(players))))

	// reserved for the player list
	playerList := element(atom.Code)

	image := element(atom.Img, html.Attribute{Key: "style", Val: ImageStyle})
	if up.Image != nil {
		image.Attr = append(image.Attr, html.Attribute{Key: "src", Val: MapImagePrefix + *up.Image})
	}

	return []*html.Node{
		name,
		mapLine,
		element(atom.Br),
		playerList,
		element(atom.Br),
		image,
	}
}

// MapLine formats the map and player count line.
func MapLine(info status.ServerInfo, online int) string {
	return fmt.Sprintf("%s - %d/%d players online", info.Map, online, info.MaxPlayers)
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// replaceChildren detaches every child of parent and appends nodes in order.
func replaceChildren(parent *html.Node, nodes ...*html.Node) {
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		parent.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
}
