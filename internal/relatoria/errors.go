package relatoria

import "errors"

var (
	// ErrStrategyFailure means a search strategy produced no usable data,
	// the next strategy should be tried.
	ErrStrategyFailure = errors.New("strategy failure")
	// ErrItemParse means a single result item could not be mapped to a record.
	ErrItemParse = errors.New("item parse failure")
	// ErrResolution means no candidate links were found for a record.
	ErrResolution = errors.New("resolution failure")
	// ErrTransport is any network, storage or browser failure on one request.
	ErrTransport = errors.New("transport failure")
	// ErrExhausted means every strategy or resolution path failed.
	ErrExhausted = errors.New("exhausted")
)
