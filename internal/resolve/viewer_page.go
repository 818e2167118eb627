package resolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/components/chrono"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/session"
	"sicrelatoria/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const report_viewer_page_fetch = "viewer_page.fetch"

// ViewerUrl is the viewer page of one document type of a record.
func ViewerUrl(gestorBase, id, label string) string {
	return fmt.Sprintf(
		"%s/visor-relatorias/%s/archivos-providencia/%s",
		strings.TrimSuffix(gestorBase, "/"),
		url.PathEscape(id),
		url.PathEscape(label),
	)
}

// ViewerPage scrapes the viewer page of every configured document type.
type ViewerPage struct {
	session    Session
	tel        telemetry.API
	clock      chrono.API
	gestor     string
	labels     []string
	htmlAccept string
	pace       relatoria.PacingConfig
	patterns   Patterns
}

func NewViewerPage(sess Session, tel telemetry.API, clock chrono.API, config relatoria.Config) ViewerPage {
	assert.NotNil(sess)
	assert.NotNil(tel)
	assert.NotNil(clock)
	return ViewerPage{
		session:    sess,
		tel:        telemetry.NewScopedAPI("resolve", tel),
		clock:      clock,
		gestor:     config.GestorBase,
		labels:     config.ViewerLabels,
		htmlAccept: config.HtmlAccept,
		pace:       config.Pacing,
		patterns:   DefaultPatterns,
	}
}

func (ViewerPage) Name() string {
	return "viewer_page"
}

func (r ViewerPage) Resolve(ctx context.Context, record relatoria.DocumentRecord, dir string) ([]relatoria.DownloadTask, error) {
	if record.Id == "" {
		return nil, nil
	}

	seen := newUrlSet()
	tasks := []relatoria.DownloadTask{}
	var errs []error

	for i, label := range r.labels {
		if i > 0 {
			err := r.clock.Sleep(ctx, r.pace.Type())
			if err != nil {
				errs = append(errs, err)
				break
			}
		}

		viewer := ViewerUrl(r.gestor, record.Id, label)
		links, err := r.Scrape(ctx, viewer)
		if err != nil {
			r.tel.ReportBroken(report_viewer_page_fetch, viewer, err)
			errs = append(errs, err)
			continue
		}
		r.tel.ReportDebug("viewer scraped", viewer, len(links))

		index := 0
		for _, link := range links {
			if !seen.add(link) {
				continue
			}
			index++
			tasks = append(tasks, relatoria.DownloadTask{
				Url:         link,
				Destination: relatoria.ViewerPath(dir, record, label, index, relatoria.LinkExtension(link)),
				Source:      r.Name(),
			})
		}
	}
	return tasks, errors.Join(errs...)
}

// Scrape fetches a viewer page and returns its candidate links in the order
// they were found, without duplicates.
func (r ViewerPage) Scrape(ctx context.Context, viewer string) ([]string, error) {
	res, err := r.session.IssueRequest(ctx, session.Request{
		Method:  http.MethodGet,
		Url:     viewer,
		Headers: map[string]string{"Accept": r.htmlAccept},
	})
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(viewer)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: parse viewer: %w", relatoria.ErrTransport, err)
	}
	return r.patterns.Candidates(ctx, doc, base), nil
}

// Candidates collects links from document anchors, anchors inside document
// containers, iframes and inline scripts, resolved against `base`.
func (p Patterns) Candidates(ctx context.Context, doc *goquery.Document, base *url.URL) []string {
	found := newUrlSet()

	documentAnchors := doc.Find("a[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		return p.DocumentHref.MatchString(strings.TrimSpace(href))
	})
	for _, a := range htmlutil.GetAnchors(ctx, documentAnchors, base) {
		found.add(a.Href)
	}

	containers := doc.Find(strings.Join(p.ContainerTags, ", ")).FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return p.ContainerClass.MatchString(class)
	})
	for _, a := range htmlutil.GetAnchors(ctx, containers.Find("a"), base) {
		found.add(a.Href)
	}

	for _, frame := range htmlutil.GetAttrLinks(ctx, doc.Find("iframe"), "src", base) {
		found.add(frame.Href)
	}

	for _, script := range htmlutil.GetScriptTexts(doc) {
		for _, pattern := range p.ScriptUrls {
			for _, match := range pattern.FindAllString(script, -1) {
				found.add(match)
			}
		}
	}

	return found.order
}
