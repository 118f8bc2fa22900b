package page

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const testTemplate = `<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<div id="servers"></div>
</body>
</html>`

func newTestDocument(t *testing.T, ids ...string) *Document {
	t.Helper()
	d, err := New([]byte(testTemplate), ids, "Test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

// replaceText swaps the container's children for a single <h2>.
func replaceText(s string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		h := &html.Node{Type: html.ElementNode, DataAtom: atom.H2, Data: "h2"}
		h.AppendChild(&html.Node{Type: html.TextNode, Data: s})
		n.AppendChild(h)
		return true
	}
}

func TestNew_CreatesContainers(t *testing.T) {
	d := newTestDocument(t, "meow", "meow2")

	frags := d.Fragments()
	if len(frags) != 2 {
		t.Fatalf("Fragments() = %d items, want 2", len(frags))
	}

	want := `<div id="meow"><p>waiting for data</p></div>`
	if frags[0].ID != "meow" || frags[0].HTML != want {
		t.Errorf("Fragments()[0] = %+v, want id meow html %q", frags[0], want)
	}
	if frags[1].ID != "meow2" {
		t.Errorf("Fragments()[1].ID = %q, want meow2", frags[1].ID)
	}

	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	body := buf.String()
	wantMount := `<div id="servers"><div id="meow"><p>waiting for data</p></div><br/><div id="meow2"><p>waiting for data</p></div><br/></div>`
	if !strings.Contains(body, wantMount) {
		t.Errorf("Render() = %s\nwant it to contain %s", body, wantMount)
	}
}

func TestNew_EscapesTitle(t *testing.T) {
	d, err := New([]byte(testTemplate), []string{"meow"}, `<script>alert(1)</script>`)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Errorf("Render() contains unescaped title: %s", buf.String())
	}
}

func TestNew_DefaultTitle(t *testing.T) {
	d, err := New([]byte(testTemplate), []string{"meow"}, "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var buf bytes.Buffer
	_ = d.Render(&buf)
	if !strings.Contains(buf.String(), "<title>"+DefaultTitle+"</title>") {
		t.Errorf("Render() missing default title: %s", buf.String())
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		ids      []string
		wantErr  string
	}{
		{"no ids", testTemplate, nil, "at least one server id"},
		{"empty id", testTemplate, []string{"meow", ""}, "is empty"},
		{"duplicate id", testTemplate, []string{"meow", "meow"}, "duplicate server id"},
		{"clashing id", testTemplate, []string{"servers"}, "clashes"},
		{"no mount", `<html><body></body></html>`, []string{"meow"}, "no element with id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]byte(tt.template), tt.ids, "t")
			if err == nil {
				t.Fatal("New() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDocument_IDs(t *testing.T) {
	d := newTestDocument(t, "b", "a")

	ids := d.IDs()
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Errorf("IDs() = %v, want [b a]", ids)
	}

	// returned slice is a copy
	ids[0] = "changed"
	if d.IDs()[0] != "b" {
		t.Error("IDs() exposed internal slice")
	}
}

func TestDocument_Mutate(t *testing.T) {
	d := newTestDocument(t, "meow")

	if !d.Mutate("meow", replaceText("hello")) {
		t.Fatal("Mutate() = false, want true")
	}

	f, ok := d.Fragment("meow")
	if !ok {
		t.Fatal("Fragment() ok = false")
	}
	if want := `<div id="meow"><h2>hello</h2></div>`; f.HTML != want {
		t.Errorf("Fragment().HTML = %q, want %q", f.HTML, want)
	}
}

func TestDocument_MutateUnknownID(t *testing.T) {
	d := newTestDocument(t, "meow")

	called := false
	changed := d.Mutate("nope", func(*html.Node) bool {
		called = true
		return true
	})

	if changed {
		t.Error("Mutate() = true for unknown id")
	}
	if called {
		t.Error("Mutate() called fn for unknown id")
	}
	if _, ok := d.Fragment("nope"); ok {
		t.Error("Fragment() ok = true for unknown id")
	}
}

func TestDocument_MutateNoChangeDoesNotPublish(t *testing.T) {
	d := newTestDocument(t, "meow")
	ch := d.Subscribe()
	defer d.Unsubscribe(ch)

	d.Mutate("meow", func(*html.Node) bool { return false })

	select {
	case f := <-ch:
		t.Errorf("received %+v, want nothing", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDocument_Subscribe(t *testing.T) {
	d := newTestDocument(t, "meow")
	ch := d.Subscribe()
	defer d.Unsubscribe(ch)

	go d.Mutate("meow", replaceText("up"))

	select {
	case f := <-ch:
		if f.ID != "meow" {
			t.Errorf("received ID = %q, want meow", f.ID)
		}
		if !strings.Contains(f.HTML, "<h2>up</h2>") {
			t.Errorf("received HTML = %q", f.HTML)
		}
	case <-time.After(time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestDocument_MultipleSubscribers(t *testing.T) {
	d := newTestDocument(t, "meow")

	ch1 := d.Subscribe()
	ch2 := d.Subscribe()
	ch3 := d.Subscribe()

	go d.Mutate("meow", replaceText("up"))

	received := 0
	timeout := time.After(time.Second)
	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("only received %d/3 updates", received)
		}
	}
}

func TestDocument_Unsubscribe(t *testing.T) {
	d := newTestDocument(t, "meow")

	ch := d.Subscribe()
	d.Unsubscribe(ch)
	// second call is a no-op
	d.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}
}

func TestDocument_SlowSubscriberDoesNotBlock(t *testing.T) {
	d := newTestDocument(t, "meow")

	// never read
	_ = d.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 2*subscriberBuffer; i++ {
			d.Mutate("meow", replaceText("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Mutate() blocked on slow subscriber")
	}
}

func TestDocument_ConcurrentAccess(t *testing.T) {
	d := newTestDocument(t, "meow", "meow2")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d.Mutate("meow", replaceText("a"))
				d.Mutate("meow2", replaceText("b"))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = d.Fragments()
				_ = d.Render(&bytes.Buffer{})
			}
		}()
		go func() {
			defer wg.Done()
			ch := d.Subscribe()
			time.Sleep(10 * time.Millisecond)
			d.Unsubscribe(ch)
		}()
	}
	wg.Wait()

	// each container holds exactly one full render
	for _, f := range d.Fragments() {
		if strings.Count(f.HTML, "<h2>") != 1 {
			t.Errorf("container %s = %q, want exactly one h2", f.ID, f.HTML)
		}
	}
}

func TestDocument_ConcurrentMutateLastFragmentMatchesDocument(t *testing.T) {
	for round := 0; round < 50; round++ {
		d := newTestDocument(t, "meow")
		ch := d.Subscribe()

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					d.Mutate("meow", replaceText(fmt.Sprintf("g%d-%d", g, j)))
				}
			}(g)
		}
		wg.Wait()

		var last Fragment
		received := 0
	drain:
		for {
			select {
			case f := <-ch:
				last = f
				received++
			default:
				break drain
			}
		}
		d.Unsubscribe(ch)

		if received != 80 {
			t.Fatalf("round %d: received %d fragments, want 80", round, received)
		}
		want, ok := d.Fragment("meow")
		if !ok {
			t.Fatalf("round %d: Fragment(meow) not found", round)
		}
		if last != want {
			t.Fatalf("round %d: last fragment = %q, document holds %q", round, last.HTML, want.HTML)
		}
	}
}

func TestElementByID(t *testing.T) {
	root, err := html.Parse(strings.NewReader(`<div id="a"><span id="b"></span></div><p id="c"></p>`))
	if err != nil {
		t.Fatalf("html.Parse() error = %v", err)
	}

	for _, id := range []string{"a", "b", "c"} {
		if n := ElementByID(root, id); n == nil {
			t.Errorf("ElementByID(%q) = nil", id)
		}
	}
	if n := ElementByID(root, "missing"); n != nil {
		t.Errorf("ElementByID(missing) = %v, want nil", n)
	}
	if n := ElementByID(nil, "a"); n != nil {
		t.Error("ElementByID(nil) should be nil")
	}
}
