package search

import (
	"context"
	"errors"
	"fmt"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/components/chrono"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/normalize"
	"sicrelatoria/internal/relatoria"
)

const (
	report_chain_strategy = "chain.strategy"
	report_chain_search   = "chain.search"
)

// Result is the outcome of running the chain once.
type Result struct {
	Records []relatoria.DocumentRecord
	// Strategy is the name of the strategy the records came from, it is empty
	// when every strategy failed.
	Strategy string
	Attempts []Attempt
}

type Attempt struct {
	Strategy string
	Err      error
}

// Err is ErrExhausted when no strategy produced records.
func (r Result) Err() error {
	if r.Strategy != "" {
		return nil
	}
	errs := make([]error, 0, len(r.Attempts)+1)
	errs = append(errs, relatoria.ErrExhausted)
	for _, a := range r.Attempts {
		errs = append(errs, a.Err)
	}
	return errors.Join(errs...)
}

// Chain tries its strategies strictly in order, stopping at the first one
// that yields at least one normalized record.
type Chain struct {
	strategies []Strategy
	normalizer normalize.Normalizer
	clock      chrono.API
	pace       relatoria.PacingConfig
	tel        telemetry.API
}

func NewChain(
	tel telemetry.API,
	clock chrono.API,
	normalizer normalize.Normalizer,
	pace relatoria.PacingConfig,
	strategies ...Strategy,
) Chain {
	assert.NotNil(tel)
	assert.NotNil(clock)
	return Chain{
		strategies: strategies,
		normalizer: normalizer,
		clock:      clock,
		pace:       pace,
		tel:        telemetry.NewScopedAPI("search", tel),
	}
}

func (c Chain) Search(ctx context.Context, query relatoria.SearchQuery) Result {
	result := Result{}
	for i, strategy := range c.strategies {
		if i > 0 {
			err := c.clock.Sleep(ctx, c.pace.Strategy())
			if err != nil {
				result.Attempts = append(result.Attempts, Attempt{Strategy: strategy.Name(), Err: err})
				break
			}
		}

		records, err := c.attempt(ctx, strategy, query)
		result.Attempts = append(result.Attempts, Attempt{Strategy: strategy.Name(), Err: err})
		if err != nil {
			c.tel.ReportWarning(report_chain_strategy, strategy.Name(), err)
			continue
		}

		c.tel.ReportDebug("strategy succeeded", strategy.Name(), len(records))
		result.Records = records
		result.Strategy = strategy.Name()
		return result
	}

	c.tel.ReportWarning(report_chain_search, query.Term, relatoria.ErrExhausted)
	return result
}

func (c Chain) attempt(ctx context.Context, strategy Strategy, query relatoria.SearchQuery) ([]relatoria.DocumentRecord, error) {
	raw, err := strategy.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	records, err := c.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s: no records", relatoria.ErrStrategyFailure, strategy.Name())
	}
	return records, nil
}

// NewStandardChain tries every strategy, cheapest first.
func NewStandardChain(sess Session, tel telemetry.API, clock chrono.API, config relatoria.Config) Chain {
	return NewChain(
		tel, clock, normalize.New(tel), config.Pacing,
		NewDirectApi(sess, config),
		NewIndexQuery(sess, config),
		NewEmbeddedState(sess, clock, config),
		NewBrowserRender(sess, tel, config),
	)
}

// NewBrowserChain only searches through the rendered portal.
func NewBrowserChain(sess Session, tel telemetry.API, clock chrono.API, config relatoria.Config) Chain {
	return NewChain(
		tel, clock, normalize.New(tel), config.Pacing,
		NewBrowserRender(sess, tel, config),
	)
}
