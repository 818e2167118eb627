package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/components/chrono"
	"sicrelatoria/internal/normalize"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/session"
	"sicrelatoria/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// StateMarkers are the globals a server rendered page has been seen to
// assign its initial client state to.
var StateMarkers = []string{
	"window.__INITIAL_STATE__",
	"window.__PRELOADED_STATE__",
	"window.__NUXT__",
}

// EmbeddedState fetches the html of the results page and decodes the client
// state embedded in one of its scripts.
type EmbeddedState struct {
	session    Session
	clock      chrono.API
	portal     string
	htmlAccept string
	pace       relatoria.PacingConfig
	markers    []string
}

func NewEmbeddedState(sess Session, clock chrono.API, config relatoria.Config) EmbeddedState {
	assert.NotNil(sess)
	assert.NotNil(clock)
	return EmbeddedState{
		session:    sess,
		clock:      clock,
		portal:     strings.TrimSuffix(config.PortalBase, "/"),
		htmlAccept: config.HtmlAccept,
		pace:       config.Pacing,
		markers:    StateMarkers,
	}
}

func (EmbeddedState) Name() string {
	return "embedded_state"
}

func (s EmbeddedState) get(ctx context.Context, link string) ([]byte, error) {
	res, err := s.session.IssueRequest(ctx, session.Request{
		Method:  http.MethodGet,
		Url:     link,
		Headers: map[string]string{"Accept": s.htmlAccept},
	})
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}

func (s EmbeddedState) Search(ctx context.Context, query relatoria.SearchQuery) (normalize.RawResponse, error) {
	if err := checkTerm(query); err != nil {
		return normalize.RawResponse{}, err
	}

	_, err := s.get(ctx, s.portal+"/")
	if err != nil {
		return normalize.RawResponse{}, failure(s.Name(), err)
	}
	err = s.clock.Sleep(ctx, s.pace.Strategy())
	if err != nil {
		return normalize.RawResponse{}, failure(s.Name(), err)
	}

	page, err := s.get(ctx, fmt.Sprintf("%s/#/results?q=%s", s.portal, url.QueryEscape(query.Term)))
	if err != nil {
		return normalize.RawResponse{}, failure(s.Name(), err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(page))
	if err != nil {
		return normalize.RawResponse{}, failure(s.Name(), err)
	}
	for _, script := range htmlutil.GetScriptTexts(doc) {
		state, ok := ExtractState(script, s.markers)
		if ok {
			return normalize.RawResponse{Source: normalize.SourceEmbeddedState, Body: state}, nil
		}
	}
	return normalize.RawResponse{}, failure(s.Name(), errors.New("no embedded state in page"))
}

// ExtractState decodes the single JSON value assigned to the first marker
// found in `script`.
func ExtractState(script string, markers []string) ([]byte, bool) {
	for _, marker := range markers {
		rest := script
		for {
			idx := strings.Index(rest, marker)
			if idx < 0 {
				break
			}
			rest = rest[idx+len(marker):]

			value := strings.TrimLeft(rest, " \t\r\n")
			if !strings.HasPrefix(value, "=") {
				continue
			}
			value = strings.TrimLeft(value[1:], " \t\r\n")

			var state json.RawMessage
			err := json.NewDecoder(strings.NewReader(value)).Decode(&state)
			if err != nil {
				continue
			}
			return state, true
		}
	}
	return nil, false
}
