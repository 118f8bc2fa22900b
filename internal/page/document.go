package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// MountID is the id of the element the containers are appended to.
	MountID = "servers"

	// Placeholder is the text a container shows before its first render.
	Placeholder = "waiting for data"

	// DefaultTitle is used when no title is configured.
	DefaultTitle = "Server Status"

	titlePlaceholder = "{{.Title}}"
	subscriberBuffer = 100
)

// Document is a concurrency-safe HTML document with one container per
// server id.
type Document struct {
	mu         sync.RWMutex
	root       *html.Node
	ids        []string
	containers map[string]*html.Node

	subMu       sync.RWMutex
	subscribers map[chan Fragment]struct{}
}

// New parses template and appends a container for each id, in order, to the
// element with id [MountID]. Each container is followed by a <br>.
//
// Every occurrence of {{.Title}} in template is replaced with the escaped
// title before parsing, so a title can never inject markup.
//
// New fails when the mount element is missing, when ids is empty, or when an
// id is empty, repeated, or already used by the template.
func New(template []byte, ids []string, title string) (*Document, error) {
	if len(ids) == 0 {
		return nil, errors.New("at least one server id is required")
	}
	if title == "" {
		title = DefaultTitle
	}

	src := strings.ReplaceAll(string(template), titlePlaceholder, html.EscapeString(title))
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	mount := ElementByID(root, MountID)
	if mount == nil {
		return nil, fmt.Errorf("template has no element with id %q", MountID)
	}

	d := &Document{
		root:        root,
		ids:         make([]string, 0, len(ids)),
		containers:  make(map[string]*html.Node, len(ids)),
		subscribers: make(map[chan Fragment]struct{}),
	}

	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("server id %d is empty", i)
		}
		if _, dup := d.containers[id]; dup {
			return nil, fmt.Errorf("duplicate server id %q", id)
		}
		if ElementByID(root, id) != nil {
			return nil, fmt.Errorf("server id %q clashes with an element in the template", id)
		}

		container := newContainer(id)
		mount.AppendChild(container)
		mount.AppendChild(&html.Node{Type: html.ElementNode, DataAtom: atom.Br, Data: "br"})

		d.ids = append(d.ids, id)
		d.containers[id] = container
	}

	return d, nil
}

func newContainer(id string) *html.Node {
	div := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr:     []html.Attribute{{Key: "id", Val: id}},
	}
	p := &html.Node{Type: html.ElementNode, DataAtom: atom.P, Data: "p"}
	p.AppendChild(&html.Node{Type: html.TextNode, Data: Placeholder})
	div.AppendChild(p)
	return div
}

// IDs returns the server ids in the order their containers appear.
func (d *Document) IDs() []string {
	out := make([]string, len(d.ids))
	copy(out, d.ids)
	return out
}

// Mutate calls fn with the container for id while holding the document lock.
// When fn reports a change, the container's new state is published to every
// subscriber before the lock is released, so subscribers see fragments in
// the order the document changed.
//
// Mutate returns false without calling fn when id has no container.
func (d *Document) Mutate(id string, fn func(container *html.Node) bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	container, ok := d.containers[id]
	if !ok {
		return false
	}

	if !fn(container) {
		return false
	}

	out, err := OuterHTML(container)
	if err == nil {
		// notifySubscribers never blocks
		d.notifySubscribers(Fragment{ID: id, HTML: out})
	}
	return true
}

// Fragment returns the current state of the container for id.
func (d *Document) Fragment(id string) (Fragment, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	container, ok := d.containers[id]
	if !ok {
		return Fragment{}, false
	}
	out, err := OuterHTML(container)
	if err != nil {
		return Fragment{}, false
	}
	return Fragment{ID: id, HTML: out}, true
}

// Fragments returns a snapshot of every container in configured order.
func (d *Document) Fragments() []Fragment {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Fragment, 0, len(d.ids))
	for _, id := range d.ids {
		s, err := OuterHTML(d.containers[id])
		if err != nil {
			continue
		}
		out = append(out, Fragment{ID: id, HTML: s})
	}
	return out
}

// Render writes the whole document to w.
func (d *Document) Render(w io.Writer) error {
	var buf bytes.Buffer

	d.mu.RLock()
	err := html.Render(&buf, d.root)
	d.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("render document: %w", err)
	}

	_, err = w.Write(buf.Bytes())
	return err
}

// Subscribe returns a channel that receives a [Fragment] after every change.
//
// The channel has a buffer of 100 fragments. When it is full, new fragments
// are dropped for this subscriber. Callers must call [Document.Unsubscribe].
func (d *Document) Subscribe() <-chan Fragment {
	ch := make(chan Fragment, subscriberBuffer)

	d.subMu.Lock()
	d.subscribers[ch] = struct{}{}
	d.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Unknown or
// already removed channels are ignored.
func (d *Document) Unsubscribe(ch <-chan Fragment) {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	for sub := range d.subscribers {
		if sub == ch {
			delete(d.subscribers, sub)
			close(sub)
			break
		}
	}
}

func (d *Document) notifySubscribers(f Fragment) {
	d.subMu.RLock()
	defer d.subMu.RUnlock()

	for ch := range d.subscribers {
		select {
		case ch <- f:
		default:
			// slow subscriber, drop
		}
	}
}
