package htmlutil

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("sicrelatoria/lib/htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText collapses whitespace and strips non-printable characters from the
// text content of every node in the selection.
func CleanText(sel *goquery.Selection) string {
	var out strings.Builder
	for _, n := range sel.Nodes {
		out.WriteString(GetText(n))
	}
	text := removeNonPrintable(out.String())
	text = strings.Trim(text, " \t\n")
	return innerWhitespace.ReplaceAllString(text, " ")
}

type Anchor struct {
	Name string
	Href string
}

// ResolveReference resolves `ref` against `base`, absolute references are
// returned unchanged.
func ResolveReference(base *url.URL, ref string) (string, error) {
	link, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	if base == nil {
		return link.String(), nil
	}
	return base.ResolveReference(link).String(), nil
}

// GetAttrLinks reads `attr` off every node in the selection and resolves it
// against `base` (which can be nil), nodes without the attribute are skipped.
func GetAttrLinks(ctx context.Context, sel *goquery.Selection, attr string, base *url.URL) []Anchor {
	_, span := tracer.Start(ctx, "GetAttrLinks")
	defer span.End()

	anchors := []Anchor{}
	sel.Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr(attr)
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		link, err := ResolveReference(base, href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			return
		}

		name := CleanText(s)
		anchors = append(anchors, Anchor{
			Name: name,
			Href: link,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", link),
		))
	})

	return anchors
}

func GetAnchors(ctx context.Context, sel *goquery.Selection, base *url.URL) []Anchor {
	return GetAttrLinks(ctx, sel, "href", base)
}

// GetScriptTexts returns the inline contents of every <script> in the document.
func GetScriptTexts(doc *goquery.Document) []string {
	scripts := []string{}
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		text := s.Text()
		if strings.TrimSpace(text) == "" {
			return
		}
		scripts = append(scripts, text)
	})
	return scripts
}
