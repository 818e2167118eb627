package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/normalize"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const report_browser_render_item = "browser_render.item"

// ResultSelectors locate the parts of the rendered results page.
type ResultSelectors struct {
	SearchInput string
	Container   string
	Item        string
	Title       string
	CaseNumber  string
	Date        string
	Link        string
}

var DefaultResultSelectors = ResultSelectors{
	SearchInput: "input.input_invisible",
	Container:   ".resultado-container",
	Item:        ".resultado-item",
	Title:       ".titulo",
	CaseNumber:  ".expediente",
	Date:        ".fecha",
	Link:        "a.view-document",
}

var viewerIdRegex = regexp.MustCompile(`/([^/]+)/archivos-providencia`)

type renderedItem struct {
	Titulo     string `json:"titulo"`
	Expediente string `json:"expediente"`
	Fecha      string `json:"fecha"`
	Enlace     string `json:"enlace"`
	Id         string `json:"id"`
}

// BrowserRender types the query into the portal's single page app and reads
// the results out of the rendered DOM.
type BrowserRender struct {
	session   Session
	tel       telemetry.API
	portal    string
	selectors ResultSelectors
	wait      relatoria.BrowserConfig
}

func NewBrowserRender(sess Session, tel telemetry.API, config relatoria.Config) BrowserRender {
	assert.NotNil(sess)
	assert.NotNil(tel)
	return BrowserRender{
		session:   sess,
		tel:       telemetry.NewScopedAPI("search", tel),
		portal:    strings.TrimSuffix(config.PortalBase, "/"),
		selectors: DefaultResultSelectors,
		wait:      config.Browser,
	}
}

func (BrowserRender) Name() string {
	return "browser_render"
}

func (s BrowserRender) Search(ctx context.Context, query relatoria.SearchQuery) (normalize.RawResponse, error) {
	if err := checkTerm(query); err != nil {
		return normalize.RawResponse{}, err
	}

	doc, err := s.session.RenderPage(ctx, s.portal+"/")
	if err != nil {
		return normalize.RawResponse{}, failure(s.Name(), err)
	}
	defer doc.Close()

	err = doc.Type(s.selectors.SearchInput, query.Term, true)
	if err != nil {
		return normalize.RawResponse{}, failure(s.Name(), err)
	}
	err = doc.WaitFor(s.selectors.Container, s.wait.Wait())
	if err != nil {
		return normalize.RawResponse{}, failure(s.Name(), err)
	}
	rendered, err := doc.HTML()
	if err != nil {
		return normalize.RawResponse{}, failure(s.Name(), err)
	}

	items, err := s.parseResults(ctx, rendered)
	if err != nil {
		return normalize.RawResponse{}, failure(s.Name(), err)
	}
	if len(items) == 0 {
		return normalize.RawResponse{}, failure(s.Name(), errors.New("no result items rendered"))
	}
	body, err := json.Marshal(items)
	if err != nil {
		return normalize.RawResponse{}, failure(s.Name(), err)
	}
	return normalize.RawResponse{Source: normalize.SourceBrowserRender, Body: body}, nil
}

func (s BrowserRender) parseResults(ctx context.Context, rendered string) ([]renderedItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(s.portal + "/")
	if err != nil {
		return nil, err
	}

	items := []renderedItem{}
	doc.Find(s.selectors.Item).Each(func(i int, sel *goquery.Selection) {
		title := sel.Find(s.selectors.Title)
		if title.Length() == 0 {
			s.tel.ReportWarning(report_browser_render_item, i, relatoria.ErrItemParse, "missing title")
			return
		}
		item := renderedItem{
			Titulo:     htmlutil.CleanText(title.First()),
			Expediente: htmlutil.CleanText(sel.Find(s.selectors.CaseNumber).First()),
			Fecha:      htmlutil.CleanText(sel.Find(s.selectors.Date).First()),
		}

		links := htmlutil.GetAnchors(ctx, sel.Find(s.selectors.Link).First(), base)
		if len(links) == 0 {
			s.tel.ReportWarning(report_browser_render_item, i, relatoria.ErrItemParse, "missing document link")
			return
		}
		item.Enlace = links[0].Href
		if groups := viewerIdRegex.FindStringSubmatch(item.Enlace); len(groups) == 2 {
			item.Id = groups[1]
		}
		items = append(items, item)
	})
	return items, nil
}
