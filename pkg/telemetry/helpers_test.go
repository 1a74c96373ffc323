package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/automagik/telemetry-go/pkg/config"
	"github.com/automagik/telemetry-go/pkg/event"
	"github.com/automagik/telemetry-go/pkg/identity"
	"github.com/automagik/telemetry-go/pkg/transport"
)

// fakeBackend captures batches in memory.
type fakeBackend struct {
	mu      sync.Mutex
	sends   []fakeSend
	outcome transport.Outcome
}

type fakeSend struct {
	kind  event.Kind
	batch []event.Event
}

func (f *fakeBackend) Send(_ context.Context, kind event.Kind, batch []event.Event) transport.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	captured := make([]event.Event, len(batch))
	copy(captured, batch)
	f.sends = append(f.sends, fakeSend{kind: kind, batch: captured})
	return f.outcome
}

func (f *fakeBackend) Flush(context.Context) transport.Outcome {
	return transport.Outcome{}
}

func (f *fakeBackend) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeBackend) send(i int) fakeSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends[i]
}

// fakeClock hands out tickers driven by an explicit channel.
type fakeClock struct {
	ticks chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{ticks: make(chan time.Time)}
}

func (f *fakeClock) NewTicker(time.Duration) Ticker {
	return &fakeTicker{clock: f}
}

func (f *fakeClock) tick() {
	f.ticks <- time.Now()
}

type fakeTicker struct {
	clock *fakeClock
}

func (t *fakeTicker) C() <-chan time.Time { return t.clock.ticks }

func (t *fakeTicker) Stop() {}

func testConfig(batchSize int) config.Config {
	return config.Config{
		ProjectName: "omni",
		Version:     "1.0.0",
		Endpoint:    "https://telemetry.example.com",
		BatchSize:   batchSize,
		Enabled:     true,
	}
}

func newTestClient(t *testing.T, cfg config.Config, backend transport.Backend) (*Client, *identity.MemoryStore) {
	t.Helper()
	store := identity.NewMemoryStore()
	client, err := New(cfg,
		WithBackend(backend),
		WithIdentityStore(store),
		WithClock(newFakeClock()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		client.Close(ctx)
	})
	return client, store
}

func waitForSends(t *testing.T, backend *fakeBackend, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return backend.sendCount() == want
	}, 2*time.Second, 5*time.Millisecond, "expected %d sends", want)
}
