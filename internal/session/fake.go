package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// FakePage is the content served by a FakeRenderer for one url.
type FakePage struct {
	Html string
	// Submitted replaces Html after text is typed and submitted, keyed by the text.
	Submitted map[string]string
}

// FakeRenderer serves static pages, elements exist when the current html
// matches their selector.
type FakeRenderer struct {
	Pages map[string]FakePage

	mu      sync.Mutex
	Visited []string
	Typed   []string
	Clicked []string
	Open    int
	Closed  bool
}

func (r *FakeRenderer) RenderPage(ctx context.Context, url string) (RenderedDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Visited = append(r.Visited, url)
	page, ok := r.Pages[url]
	if !ok {
		return nil, fmt.Errorf("no page for %s", url)
	}
	r.Open++
	return &fakeDocument{renderer: r, page: page, html: page.Html}, nil
}

func (r *FakeRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Closed = true
	return nil
}

type fakeDocument struct {
	renderer *FakeRenderer
	page     FakePage
	html     string
}

func (d *fakeDocument) has(selector string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.html))
	if err != nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}

func (d *fakeDocument) WaitFor(selector string, _ time.Duration) error {
	if !d.has(selector) {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return nil
}

func (d *fakeDocument) Type(selector, text string, submit bool) error {
	if !d.has(selector) {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	d.renderer.mu.Lock()
	d.renderer.Typed = append(d.renderer.Typed, text)
	d.renderer.mu.Unlock()

	if submit {
		if next, ok := d.page.Submitted[text]; ok {
			d.html = next
		}
	}
	return nil
}

func (d *fakeDocument) Click(selectors []string) (bool, error) {
	for _, selector := range selectors {
		if d.has(selector) {
			d.renderer.mu.Lock()
			d.renderer.Clicked = append(d.renderer.Clicked, selector)
			d.renderer.mu.Unlock()
			return true, nil
		}
	}
	return false, nil
}

func (d *fakeDocument) HTML() (string, error) {
	return d.html, nil
}

func (d *fakeDocument) Close() error {
	d.renderer.mu.Lock()
	defer d.renderer.mu.Unlock()
	d.renderer.Open--
	return nil
}
