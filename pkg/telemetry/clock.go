package telemetry

import "time"

// Clock abstracts the periodic flush timer so tests can drive it with a
// fake instead of wall-clock waits.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Ticker is the cancellable periodic signal used by the batching engine.
// Stop is idempotent.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time { return t.ticker.C }

func (t *realTicker) Stop() { t.ticker.Stop() }
