package search

import (
	"context"
	"errors"
	"testing"

	"sicrelatoria/internal/components/chrono"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/normalize"
	"sicrelatoria/internal/relatoria"

	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	name  string
	raw   normalize.RawResponse
	err   error
	calls int
	order *[]string
}

func (s *stubStrategy) Name() string {
	return s.name
}

func (s *stubStrategy) Search(ctx context.Context, query relatoria.SearchQuery) (normalize.RawResponse, error) {
	s.calls++
	*s.order = append(*s.order, s.name)
	return s.raw, s.err
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	order := []string{}
	direct := &stubStrategy{name: "direct", err: errors.Join(relatoria.ErrStrategyFailure, errors.New("status 500")), order: &order}
	index := &stubStrategy{
		name:  "index",
		raw:   normalize.RawResponse{Source: normalize.SourceIndexQuery, Body: []byte(`{"hits": {"hits": []}}`)},
		order: &order,
	}
	embedded := &stubStrategy{
		name:  "embedded",
		raw:   normalize.RawResponse{Source: normalize.SourceEmbeddedState, Body: []byte(`{"data": {"results": [{"id": "s3", "expediente": "21-7"}]}}`)},
		order: &order,
	}
	browser := &stubStrategy{name: "browser", order: &order}

	clock := &chrono.FakeImpl{}
	rec := telemetry.NewRecorder()
	chain := NewChain(rec, clock, normalize.New(rec), relatoria.PacingConfig{StrategyMs: 1000}, direct, index, embedded, browser)

	result := chain.Search(context.Background(), relatoria.SearchQuery{Term: "garantia"})
	require.NoError(t, result.Err())
	require.Equal(t, "embedded", result.Strategy)
	require.Len(t, result.Records, 1)
	require.Equal(t, "s3", result.Records[0].Id)
	require.Equal(t, "21-7", result.Records[0].CaseNumber)

	require.Equal(t, []string{"direct", "index", "embedded"}, order)
	require.Equal(t, 1, direct.calls)
	require.Equal(t, 1, index.calls)
	require.Zero(t, browser.calls)
	require.Len(t, clock.Slept, 2)
	require.Len(t, rec.Reports("warning", report_chain_strategy), 2)
}

func TestChainExhausted(t *testing.T) {
	order := []string{}
	malformed := &stubStrategy{
		name:  "malformed",
		raw:   normalize.RawResponse{Source: normalize.SourceDirectApi, Body: []byte(`<html></html>`)},
		order: &order,
	}
	failing := &stubStrategy{name: "failing", err: relatoria.ErrStrategyFailure, order: &order}

	rec := telemetry.NewRecorder()
	chain := NewChain(rec, &chrono.FakeImpl{}, normalize.New(rec), relatoria.PacingConfig{}, malformed, failing)

	result := chain.Search(context.Background(), relatoria.SearchQuery{Term: "x"})
	require.Empty(t, result.Records)
	require.Empty(t, result.Strategy)
	require.ErrorIs(t, result.Err(), relatoria.ErrExhausted)
	require.ErrorIs(t, result.Err(), relatoria.ErrStrategyFailure)
	require.Len(t, result.Attempts, 2)
	require.Len(t, rec.Reports("warning", report_chain_search), 1)
}

func TestChainStopsWhenCancelled(t *testing.T) {
	order := []string{}
	first := &stubStrategy{name: "first", err: relatoria.ErrStrategyFailure, order: &order}
	second := &stubStrategy{name: "second", order: &order}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := telemetry.NewRecorder()
	chain := NewChain(rec, &chrono.FakeImpl{}, normalize.New(rec), relatoria.PacingConfig{}, first, second)
	result := chain.Search(ctx, relatoria.SearchQuery{Term: "x"})
	require.ErrorIs(t, result.Err(), relatoria.ErrExhausted)
	require.Zero(t, second.calls)
}
