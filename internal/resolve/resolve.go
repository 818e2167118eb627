// Package resolve turns a record into the concrete urls its files can be
// downloaded from.
package resolve

import (
	"context"
	"fmt"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/components/chrono"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/session"

	"github.com/go-resty/resty/v2"
)

const report_chain_resolve = "chain.resolve"

// Session is the part of session.Session the resolvers depend on.
type Session interface {
	IssueRequest(ctx context.Context, r session.Request) (*resty.Response, error)
	RenderPage(ctx context.Context, url string) (session.RenderedDocument, error)
}

// Resolver yields the download tasks of one record, files are named under `dir`.
// An empty result is not an error.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, record relatoria.DocumentRecord, dir string) ([]relatoria.DownloadTask, error)
}

// Chain tries its resolvers in order, the first one that yields a task wins.
type Chain struct {
	resolvers []Resolver
	tel       telemetry.API
}

func NewChain(tel telemetry.API, resolvers ...Resolver) Chain {
	assert.NotNil(tel)
	return Chain{
		resolvers: resolvers,
		tel:       telemetry.NewScopedAPI("resolve", tel),
	}
}

// Resolve never fails on a missing descriptor, when nothing is found the error
// wraps relatoria.ErrResolution.
func (c Chain) Resolve(ctx context.Context, record relatoria.DocumentRecord, dir string) ([]relatoria.DownloadTask, error) {
	for _, resolver := range c.resolvers {
		tasks, err := resolver.Resolve(ctx, record, dir)
		if err != nil {
			c.tel.ReportWarning(report_chain_resolve, resolver.Name(), record.Id, err)
		}
		tasks = dedupe(tasks)
		if len(tasks) > 0 {
			c.tel.ReportDebug("resolved", resolver.Name(), record.Id, len(tasks))
			return tasks, nil
		}
	}

	err := fmt.Errorf("%w: no candidate links for %q", relatoria.ErrResolution, record.Id)
	c.tel.ReportWarning(report_chain_resolve, record.Id, err)
	return nil, err
}

func dedupe(tasks []relatoria.DownloadTask) []relatoria.DownloadTask {
	seen := map[string]struct{}{}
	out := make([]relatoria.DownloadTask, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := seen[t.Url]; ok {
			continue
		}
		seen[t.Url] = struct{}{}
		out = append(out, t)
	}
	return out
}

// urlSet keeps insertion order and drops exact duplicates.
type urlSet struct {
	seen  map[string]struct{}
	order []string
}

func newUrlSet() *urlSet {
	return &urlSet{seen: map[string]struct{}{}}
}

func (s *urlSet) add(link string) bool {
	if link == "" {
		return false
	}
	if _, ok := s.seen[link]; ok {
		return false
	}
	s.seen[link] = struct{}{}
	s.order = append(s.order, link)
	return true
}

// NewStandardChain resolves through object storage, then the viewer pages,
// then, when `withBrowser` is set, through a rendered viewer.
func NewStandardChain(sess Session, tel telemetry.API, clock chrono.API, config relatoria.Config, withBrowser bool) Chain {
	resolvers := []Resolver{
		NewSignedStorage(sess, tel, config),
		NewViewerPage(sess, tel, clock, config),
	}
	if withBrowser {
		resolvers = append(resolvers, NewBrowserViewer(sess, tel, clock, config))
	}
	return NewChain(tel, resolvers...)
}

// NewBrowserChain only resolves through a rendered viewer.
func NewBrowserChain(sess Session, tel telemetry.API, clock chrono.API, config relatoria.Config) Chain {
	return NewChain(tel, NewBrowserViewer(sess, tel, clock, config))
}
