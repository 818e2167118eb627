package resolve

import (
	"context"
	"net/url"
	"strings"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/components/chrono"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_browser_viewer_render = "browser_viewer.render"
	report_browser_viewer_click  = "browser_viewer.click"
)

// BrowserViewer renders the document page in a real browser and looks for
// download controls. Controls with a target become tasks, the rest are
// clicked on a best effort basis.
type BrowserViewer struct {
	session  Session
	tel      telemetry.API
	clock    chrono.API
	gestor   string
	labels   []string
	browser  relatoria.BrowserConfig
	controls []string
}

func NewBrowserViewer(sess Session, tel telemetry.API, clock chrono.API, config relatoria.Config) BrowserViewer {
	assert.NotNil(sess)
	assert.NotNil(tel)
	assert.NotNil(clock)
	return BrowserViewer{
		session:  sess,
		tel:      telemetry.NewScopedAPI("resolve", tel),
		clock:    clock,
		gestor:   config.GestorBase,
		labels:   config.ViewerLabels,
		browser:  config.Browser,
		controls: config.Browser.DownloadControls,
	}
}

func (BrowserViewer) Name() string {
	return "browser_viewer"
}

func (r BrowserViewer) documentUrl(record relatoria.DocumentRecord) string {
	if record.Link != "" {
		return record.Link
	}
	if record.Id != "" && len(r.labels) > 0 {
		return ViewerUrl(r.gestor, record.Id, r.labels[0])
	}
	return ""
}

func (r BrowserViewer) Resolve(ctx context.Context, record relatoria.DocumentRecord, dir string) ([]relatoria.DownloadTask, error) {
	target := r.documentUrl(record)
	if target == "" || len(r.controls) == 0 {
		return nil, nil
	}

	doc, err := r.session.RenderPage(ctx, target)
	if err != nil {
		r.tel.ReportBroken(report_browser_viewer_render, target, err)
		return nil, err
	}
	defer doc.Close()

	selector := strings.Join(r.controls, ", ")
	err = doc.WaitFor(selector, r.browser.Wait())
	if err != nil {
		r.tel.ReportDebug("no download controls", target)
		return nil, nil
	}

	rendered, err := doc.HTML()
	if err != nil {
		return nil, err
	}
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(target)
	if err != nil {
		return nil, err
	}

	seen := newUrlSet()
	tasks := []relatoria.DownloadTask{}
	for _, a := range htmlutil.GetAnchors(ctx, parsed.Find(selector), base) {
		if !seen.add(a.Href) {
			continue
		}
		tasks = append(tasks, relatoria.DownloadTask{
			Url:         a.Href,
			Destination: relatoria.BrowserPath(dir, record, len(tasks)+1, relatoria.LinkExtension(a.Href)),
			Source:      r.Name(),
		})
	}
	if len(tasks) > 0 {
		return tasks, nil
	}

	// the control has no target, the browser's own download is all there is
	clicked, err := doc.Click(r.controls)
	if err != nil {
		r.tel.ReportWarning(report_browser_viewer_click, target, err)
		return nil, nil
	}
	if clicked {
		r.tel.ReportDebug("clicked download control", target)
		err = r.clock.Sleep(ctx, r.browser.Settle())
		if err != nil {
			return nil, err
		}
	}
	return nil, nil
}
