package chrono

import (
	"context"
	"time"
)

// API is the interface that anything depending on the system clock should use.
//
// note: fault injection point
type API interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever happens first.
	Sleep(ctx context.Context, d time.Duration) error
}

type StandardImpl struct{}

func NewStandardImpl() StandardImpl {
	return StandardImpl{}
}

func (StandardImpl) Now() time.Time {
	return time.Now()
}

func (StandardImpl) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FakeImpl never blocks, it records every requested sleep and advances its clock by it.
type FakeImpl struct {
	Current time.Time
	Slept   []time.Duration
}

func (f *FakeImpl) Now() time.Time {
	return f.Current
}

func (f *FakeImpl) Sleep(ctx context.Context, d time.Duration) error {
	f.Slept = append(f.Slept, d)
	f.Current = f.Current.Add(d)
	return ctx.Err()
}

// Total returns the sum of every recorded sleep.
func (f *FakeImpl) Total() time.Duration {
	var total time.Duration
	for _, d := range f.Slept {
		total += d
	}
	return total
}
