package page

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
)

// Fragment is the serialized state of one container.
type Fragment struct {
	// ID is the container's id attribute, which is also the server id.
	ID string `json:"id"`

	// HTML is the container's outer HTML.
	HTML string `json:"html"`
}

// ElementByID returns the first element under root whose id attribute is id,
// or nil.
func ElementByID(root *html.Node, id string) *html.Node {
	if root == nil {
		return nil
	}
	if root.Type == html.ElementNode {
		for _, a := range root.Attr {
			if a.Key == "id" && a.Val == id {
				return root
			}
		}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := ElementByID(c, id); n != nil {
			return n
		}
	}
	return nil
}

// OuterHTML serializes n including its own tag.
func OuterHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("render node: %w", err)
	}
	return buf.String(), nil
}
