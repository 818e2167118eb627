package search

import (
	"context"
	"net/http"
	"strings"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/normalize"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/session"
)

type directApiPayload struct {
	Terminos         string `json:"terminos"`
	Pagina           int    `json:"pagina"`
	ResultadosPagina int    `json:"resultados_pagina"`
}

// DirectApi posts the query to the portal's own search endpoint.
type DirectApi struct {
	session  Session
	endpoint string
	pageSize int
}

func NewDirectApi(sess Session, config relatoria.Config) DirectApi {
	assert.NotNil(sess)
	return DirectApi{
		session:  sess,
		endpoint: strings.TrimSuffix(config.PortalBase, "/") + "/api/v1/busqueda",
		pageSize: config.PageSize,
	}
}

func (DirectApi) Name() string {
	return "direct_api"
}

func (s DirectApi) Search(ctx context.Context, query relatoria.SearchQuery) (normalize.RawResponse, error) {
	if err := checkTerm(query); err != nil {
		return normalize.RawResponse{}, err
	}

	size := pageSize(query, s.pageSize)
	res, err := s.session.IssueRequest(ctx, session.Request{
		Method: http.MethodPost,
		Url:    s.endpoint,
		Body: directApiPayload{
			Terminos:         query.Term,
			Pagina:           query.Offset/size + 1,
			ResultadosPagina: size,
		},
		Headers: map[string]string{"Content-Type": "application/json"},
	})
	if err != nil {
		return normalize.RawResponse{}, failure(s.Name(), err)
	}
	return normalize.RawResponse{Source: normalize.SourceDirectApi, Body: res.Body()}, nil
}
