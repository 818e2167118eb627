// Package search obtains raw search results from the portal through a fixed,
// ordered list of strategies.
package search

import (
	"context"
	"fmt"
	"strings"

	"sicrelatoria/internal/normalize"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/session"

	"github.com/go-resty/resty/v2"
)

// Session is the part of session.Session the strategies depend on.
type Session interface {
	IssueRequest(ctx context.Context, r session.Request) (*resty.Response, error)
	RenderPage(ctx context.Context, url string) (session.RenderedDocument, error)
}

// Strategy is one self-contained way of obtaining raw search results. A
// strategy that gets nothing usable returns an error wrapping
// relatoria.ErrStrategyFailure.
type Strategy interface {
	Name() string
	Search(ctx context.Context, query relatoria.SearchQuery) (normalize.RawResponse, error)
}

func checkTerm(query relatoria.SearchQuery) error {
	if strings.TrimSpace(query.Term) == "" {
		return fmt.Errorf("%w: empty search term", relatoria.ErrStrategyFailure)
	}
	return nil
}

func failure(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", relatoria.ErrStrategyFailure, name, err)
}

func pageSize(query relatoria.SearchQuery, fallback int) int {
	if query.Size > 0 {
		return query.Size
	}
	if fallback > 0 {
		return fallback
	}
	return 20
}
