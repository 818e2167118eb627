package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/normalize"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/session"
)

// boostedFields are searched by the query_string clause, with their boosts.
var boostedFields = []string{
	"informacion.ano_expediente^9",
	"informacion.numero_expediente^10",
	"informacion.tipo_proceso^2",
	"informacion.tipo_providencia^2",
	"tesauro.categoria.nombre^5",
	"tesauro.descriptor.nombre^6",
	"tesauro.restrictor.nombre^8",
	"partes.nombre^3",
	"partes.numero_doc",
	"archivos.contenido_archivo^1.5",
	"archivos.entidades.texto^1.5",
	"documento_resumen.transcripcion^1.5",
}

var highlightedFields = []string{
	"archivos.contenido_archivo",
	"informacion.numero_expediente",
	"informacion.tipo_proceso",
	"informacion.tipo_providencia",
	"tesauro.categoria.nombre",
	"tesauro.descriptor.nombre",
	"tesauro.restrictor.nombre",
	"partes.nombre",
	"partes.numero_doc",
	"archivos.entidades.texto",
	"documento_resumen.transcripcion",
}

type taxonomyClause struct {
	field string
	boost float64
}

var taxonomyClauses = []taxonomyClause{
	{field: "tesauro.categoria.nombre"},
	{field: "tesauro.descriptor.nombre"},
	{field: "tesauro.restrictor.nombre", boost: 3},
}

// BuildIndexQuery returns the search-engine request body for a query.
func BuildIndexQuery(query relatoria.SearchQuery, size int) map[string]any {
	should := make([]any, 0, len(taxonomyClauses))
	for _, c := range taxonomyClauses {
		match := map[string]any{"query": query.Term}
		if c.boost > 0 {
			match["boost"] = c.boost
		}
		should = append(should, map[string]any{
			"match": map[string]any{c.field: match},
		})
	}

	highlight := make(map[string]any, len(highlightedFields))
	for _, f := range highlightedFields {
		highlight[f] = map[string]any{}
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{
						"query_string": map[string]any{
							"query":            query.Term,
							"fields":           boostedFields,
							"default_operator": "AND",
						},
					},
				},
				"should": should,
				"filter": []any{},
			},
		},
		"size": size,
		"from": query.Offset,
		"highlight": map[string]any{
			"fields": highlight,
		},
	}
}

// IndexQuery queries the portal's search-engine index directly, first with a
// POST body and then with the body serialized into the url.
type IndexQuery struct {
	session  Session
	endpoint string
	pageSize int
}

func NewIndexQuery(sess Session, config relatoria.Config) IndexQuery {
	assert.NotNil(sess)
	return IndexQuery{
		session:  sess,
		endpoint: strings.TrimSuffix(config.PortalBase, "/") + "/sic-relatoria-idx/_search",
		pageSize: config.PageSize,
	}
}

func (IndexQuery) Name() string {
	return "index_query"
}

func (s IndexQuery) Search(ctx context.Context, query relatoria.SearchQuery) (normalize.RawResponse, error) {
	if err := checkTerm(query); err != nil {
		return normalize.RawResponse{}, err
	}

	body := BuildIndexQuery(query, pageSize(query, s.pageSize))
	headers := map[string]string{"Content-Type": "application/json"}

	res, postErr := s.session.IssueRequest(ctx, session.Request{
		Method:  http.MethodPost,
		Url:     s.endpoint,
		Body:    body,
		Headers: headers,
	})
	if postErr == nil {
		return normalize.RawResponse{Source: normalize.SourceIndexQuery, Body: res.Body()}, nil
	}

	serialized, err := json.Marshal(body)
	if err != nil {
		return normalize.RawResponse{}, failure(s.Name(), err)
	}
	res, getErr := s.session.IssueRequest(ctx, session.Request{
		Method: http.MethodGet,
		Url:    s.endpoint,
		Query: map[string]string{
			"source":              string(serialized),
			"source_content_type": "application/json",
		},
		Headers: headers,
	})
	if getErr != nil {
		return normalize.RawResponse{}, failure(s.Name(), errors.Join(postErr, getErr))
	}
	return normalize.RawResponse{Source: normalize.SourceIndexQuery, Body: res.Body()}, nil
}
