package pipeline

import "sicrelatoria/internal/relatoria"

// DocumentSummary is what happened to one record during a run.
type DocumentSummary struct {
	Record relatoria.DocumentRecord
	// Resolved is the number of download tasks found for the record.
	Resolved  int
	Attempted int
	Succeeded int
	// Existing counts successes that were already on disk.
	Existing int
	// Err is set when the record was a dead end or nothing resolved.
	Err error
}

// Summary is the outcome of one pass over a search term.
type Summary struct {
	Pass     string
	Term     string
	Dir      string
	Strategy string
	Manifest string
	// Found is the number of records the search returned before truncation.
	Found     int
	Documents []DocumentSummary
	// SearchErr is set when every strategy failed.
	SearchErr error
}

func (s Summary) Processed() int {
	return len(s.Documents)
}

func (s Summary) Attempted() int {
	total := 0
	for _, d := range s.Documents {
		total += d.Attempted
	}
	return total
}

func (s Summary) Succeeded() int {
	total := 0
	for _, d := range s.Documents {
		total += d.Succeeded
	}
	return total
}

func (s Summary) DeadEnds() int {
	total := 0
	for _, d := range s.Documents {
		if d.Err != nil {
			total++
		}
	}
	return total
}
