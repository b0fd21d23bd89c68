// Package clock abstracts the profiling loop's time source so tests can
// drive collection rounds deterministically instead of sleeping.
package clock

import "time"

// Ticker is the subset of time.Ticker the collector depends on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
