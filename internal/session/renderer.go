package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sicrelatoria/internal/relatoria"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// Renderer opens pages in a browser that executes javascript.
//
// note: fault injection point
type Renderer interface {
	RenderPage(ctx context.Context, url string) (RenderedDocument, error)
	Close() error
}

// RenderedDocument is a page loaded by a Renderer, it must be closed.
type RenderedDocument interface {
	// WaitFor blocks until an element matching `selector` exists or `timeout` passes.
	WaitFor(selector string, timeout time.Duration) error
	// Type enters `text` into the first element matching `selector`, pressing
	// enter afterwards when `submit` is set.
	Type(selector, text string, submit bool) error
	// Click clicks the first element matching any of the selectors, reporting
	// whether one was found.
	Click(selectors []string) (bool, error)
	// HTML is the current DOM serialized.
	HTML() (string, error)
	Close() error
}

var ErrNotFound = errors.New("element not found")

// RodRenderer launches a local chrome through go-rod the first time a page
// is rendered.
type RodRenderer struct {
	config    relatoria.BrowserConfig
	userAgent string

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func NewRodRenderer(config relatoria.BrowserConfig, userAgent string) *RodRenderer {
	return &RodRenderer{config: config, userAgent: userAgent}
}

func (r *RodRenderer) ensureStarted() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().
		Headless(!r.config.Show).
		NoSandbox(!r.config.Sandbox).
		Set(flags.Flag("disable-dev-shm-usage")).
		Set(flags.Flag("disable-gpu")).
		Set(flags.Flag("window-size"), "1920,1080")
	if r.config.Bin != "" {
		l = l.Bin(r.config.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	r.launcher = l
	r.browser = browser
	return browser, nil
}

func (r *RodRenderer) RenderPage(ctx context.Context, url string) (RenderedDocument, error) {
	browser, err := r.ensureStarted()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	page = page.Context(ctx)

	if r.userAgent != "" {
		err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.userAgent})
		if err != nil {
			page.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}

	wait := r.config.Wait()
	if wait <= 0 {
		wait = 10 * time.Second
	}
	loading := page.Timeout(wait)
	err = loading.Navigate(url)
	if err == nil {
		err = loading.WaitLoad()
	}
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("navigate: %w", err)
	}
	loading.CancelTimeout()

	return rodDocument{page: page, settle: r.config.Settle()}, nil
}

// Close is safe to call when no browser was ever started.
func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.launcher.Kill()
	r.launcher.Cleanup()
	r.browser = nil
	r.launcher = nil
	return err
}

type rodDocument struct {
	page   *rod.Page
	settle time.Duration
}

func (d rodDocument) WaitFor(selector string, timeout time.Duration) error {
	el, err := d.page.Timeout(timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, selector, err)
	}
	el.CancelTimeout()
	return nil
}

func (d rodDocument) Type(selector, text string, submit bool) error {
	el, err := d.page.Timeout(d.settle + time.Second).Element(selector)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, selector, err)
	}
	el = el.CancelTimeout()
	if err := el.Input(text); err != nil {
		return err
	}
	if submit {
		return el.Type(input.Enter)
	}
	return nil
}

func (d rodDocument) Click(selectors []string) (bool, error) {
	for _, selector := range selectors {
		found, el, err := d.page.Has(selector)
		if err != nil {
			return false, err
		}
		if !found {
			continue
		}
		err = el.Click(proto.InputMouseButtonLeft, 1)
		if err != nil {
			return true, err
		}
		return true, nil
	}
	return false, nil
}

func (d rodDocument) HTML() (string, error) {
	return d.page.HTML()
}

func (d rodDocument) Close() error {
	return d.page.Close()
}
