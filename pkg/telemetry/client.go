package telemetry

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/automagik/telemetry-go/pkg/config"
	"github.com/automagik/telemetry-go/pkg/event"
	"github.com/automagik/telemetry-go/pkg/identity"
	"github.com/automagik/telemetry-go/pkg/logging"
	"github.com/automagik/telemetry-go/pkg/privacy"
	"github.com/automagik/telemetry-go/pkg/transport"
)

const (
	sdkName    = "automagik-telemetry"
	sdkVersion = "0.1.0"

	errorEventName = "automagik.error"
)

// Client is the telemetry event pipeline: it accepts structured event,
// metric, and log records, sanitizes them, batches them per signal kind,
// and delivers them to the configured backend. Apart from construction,
// no operation ever returns an error to the host: telemetry must never
// destabilize the application embedding it.
type Client struct {
	cfg       config.Config
	logger    zerolog.Logger
	sanitizer *privacy.Sanitizer
	backend   transport.Backend
	store     identity.Store
	clock     Clock
	stats     *stats

	userID    string
	sessionID string

	mu      sync.Mutex
	enabled bool
	closed  bool

	batchers map[event.Kind]*batcher

	timerMu   sync.Mutex
	ticker    Ticker
	timerStop chan struct{}

	watcher *identity.OptOutWatcher
	wg      sync.WaitGroup
}

// Status reports the client's observable state for CLIs and opt-in
// prompts.
type Status struct {
	Enabled     bool
	UserID      string
	SessionID   string
	ProjectName string
	Version     string
	Backend     config.Backend
	Endpoint    string
	QueueSizes  map[event.Kind]int
	OptedOut    bool
}

// New validates the configuration and constructs a client. Configuration
// validation is the only failure ever surfaced to the caller.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	cfg, err := config.New(cfg)
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := logging.New(logging.Config{Verbose: cfg.Verbose})
	if o.logger != nil {
		logger = *o.logger
	}

	privacyCfg := privacy.DefaultConfig()
	if o.privacyCfg != nil {
		privacyCfg = *o.privacyCfg
	}
	sanitizer, err := privacy.NewSanitizer(privacyCfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	store := o.store
	if store == nil {
		fileStore, err := identity.NewFileStore()
		if err != nil {
			// No resolvable home directory: fall back to an
			// in-memory identity for this process.
			store = identity.NewMemoryStore()
		} else {
			store = fileStore
		}
	}

	id, err := store.Load()
	if err != nil {
		id = identity.Identity{UserID: identity.NewSessionID()}
	}
	sessionID := identity.NewSessionID()

	clock := o.clock
	if clock == nil {
		clock = realClock{}
	}

	c := &Client{
		cfg:       cfg,
		logger:    logger,
		sanitizer: sanitizer,
		store:     store,
		clock:     clock,
		stats:     newStats(o.registerer),
		userID:    id.UserID,
		sessionID: sessionID,
		enabled:   cfg.Enabled && !store.OptedOut(),
		batchers:  make(map[event.Kind]*batcher, len(event.Kinds())),
	}
	for _, kind := range event.Kinds() {
		c.batchers[kind] = newBatcher(kind, cfg.BatchSize)
	}

	c.backend = o.backend
	if c.backend == nil {
		c.backend = buildBackend(cfg, c.resource(), logger)
	}

	if c.IsEnabled() {
		c.startTimer()
	}

	if o.watchOptOut {
		if fileStore, ok := store.(*identity.FileStore); ok {
			watcher, err := identity.WatchOptOut(fileStore, c.onOptOutChange)
			if err != nil {
				logger.Debug().Err(err).Msg("opt-out watcher unavailable")
			} else {
				c.watcher = watcher
			}
		}
	}

	return c, nil
}

func buildBackend(cfg config.Config, res transport.Resource, logger zerolog.Logger) transport.Backend {
	compressor := transport.Compressor{
		Enabled:   cfg.CompressionEnabled,
		Threshold: cfg.CompressionThreshold,
	}
	retryer := transport.Retryer{
		MaxRetries: cfg.MaxRetries,
		Base:       cfg.RetryBackoffBase,
		Logger:     logger,
	}

	if cfg.Backend == config.BackendClickHouse {
		return transport.NewClickHouse(transport.ClickHouseOptions{
			Endpoint:   cfg.ClickHouse.Endpoint,
			Database:   cfg.ClickHouse.Database,
			Table:      cfg.ClickHouse.Table,
			Username:   cfg.ClickHouse.Username,
			Password:   cfg.ClickHouse.Password,
			Timeout:    cfg.Timeout,
			Resource:   res,
			Compressor: compressor,
			Retryer:    retryer,
			Logger:     logger,
		})
	}

	return transport.NewOTLP(transport.OTLPOptions{
		Endpoint:     cfg.Endpoint,
		Timeout:      cfg.Timeout,
		Resource:     res,
		ScopeName:    cfg.ProjectName + ".telemetry",
		ScopeVersion: cfg.Version,
		Compressor:   compressor,
		Retryer:      retryer,
		Logger:       logger,
	})
}

// resource builds the process-level attributes stamped on every batch.
func (c *Client) resource() transport.Resource {
	_, dockerErr := os.Stat("/.dockerenv")
	return transport.Resource{
		ServiceName:    c.cfg.ProjectName,
		ServiceVersion: c.cfg.Version,
		Organization:   c.cfg.Organization,
		UserID:         c.userID,
		SessionID:      c.sessionID,
		SDKName:        sdkName,
		SDKVersion:     sdkVersion,
		OSType:         runtime.GOOS,
		Architecture:   runtime.GOARCH,
		RuntimeVersion: runtime.Version(),
		IsDocker:       dockerErr == nil,
	}
}

// TrackEvent records a span-shaped event. It returns immediately after
// enqueue; the caller never waits on network I/O.
func (c *Client) TrackEvent(name string, attrs map[string]any) {
	if !c.trackable() {
		return
	}
	sanitized := c.sanitize(attrs)
	c.enqueue(event.NewSpan(name, c.convert(sanitized)))
}

// TrackMetric records a numeric metric. An empty kind defaults to gauge.
func (c *Client) TrackMetric(name string, value float64, kind event.MetricKind, attrs map[string]any) {
	if !c.trackable() {
		return
	}
	sanitized := c.sanitize(attrs)
	c.enqueue(event.NewMetric(name, value, kind, c.convert(sanitized)))
}

// TrackLog records a log message with the given severity.
func (c *Client) TrackLog(severity, message string, attrs map[string]any) {
	if !c.trackable() {
		return
	}
	sanitized := c.sanitize(attrs)
	c.enqueue(event.NewLog(message, severity, message, c.convert(sanitized)))
}

// TrackError records an error event carrying the error type and truncated
// message plus any caller-supplied context.
func (c *Client) TrackError(err error, context map[string]any) {
	if err == nil || !c.trackable() {
		return
	}
	attrs := make(map[string]any, len(context)+2)
	for k, v := range context {
		attrs[k] = v
	}
	attrs["error_type"] = fmt.Sprintf("%T", err)
	attrs["error_message"] = err.Error()

	sanitized := c.sanitize(attrs)
	c.enqueue(event.NewSpan(errorEventName, c.convert(sanitized)))
}

// Flush synchronously drains every non-empty signal queue. Flushing empty
// queues performs zero network calls.
func (c *Client) Flush(ctx context.Context) {
	c.flushAll(ctx)
	c.backend.Flush(ctx)
}

// Enable turns telemetry on, clears any persisted opt-out, and restarts
// the periodic flush timer.
func (c *Client) Enable() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.enabled = true
	c.mu.Unlock()

	if err := c.store.SetOptOut(false); err != nil {
		c.logger.Debug().Err(err).Msg("failed to clear opt-out preference")
	}
	c.startTimer()
}

// Disable performs a best-effort flush, stops the timer, and persists the
// opt-out preference. Tracking calls received afterwards are silently
// dropped.
func (c *Client) Disable() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.enabled = false
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	c.flushAll(ctx)
	c.stopTimer()

	if err := c.store.SetOptOut(true); err != nil {
		c.logger.Debug().Err(err).Msg("failed to persist opt-out preference")
	}
}

// IsEnabled reports whether the client currently transmits.
func (c *Client) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled && !c.closed
}

// Close performs one best-effort final flush of all non-empty queues,
// cancels the timer, and drops any tracking call received afterwards.
// It is safe to call more than once.
func (c *Client) Close(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.flushAll(ctx)
	c.stopTimer()
	if c.watcher != nil {
		c.watcher.Stop()
	}
	c.wg.Wait()
}

// GetStatus reports queue sizes, identifiers, and the effective endpoint.
func (c *Client) GetStatus() Status {
	sizes := make(map[event.Kind]int, len(c.batchers))
	for kind, b := range c.batchers {
		sizes[kind] = b.len()
	}

	endpoint := transport.DeriveEndpoint(c.cfg.Endpoint, event.KindSpan)
	if c.cfg.Backend == config.BackendClickHouse {
		endpoint = c.cfg.ClickHouse.Endpoint
	}

	return Status{
		Enabled:     c.IsEnabled(),
		UserID:      c.userID,
		SessionID:   c.sessionID,
		ProjectName: c.cfg.ProjectName,
		Version:     c.cfg.Version,
		Backend:     c.cfg.Backend,
		Endpoint:    endpoint,
		QueueSizes:  sizes,
		OptedOut:    c.store.OptedOut(),
	}
}

func (c *Client) trackable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled && !c.closed
}

// sanitize runs the privacy passes over the raw attribute map. Dropped
// attributes are counted; a depth overflow is flagged on the event so the
// unsanitized remainder is auditable downstream.
func (c *Client) sanitize(attrs map[string]any) map[string]any {
	sanitized, report := c.sanitizer.Sanitize(attrs)
	if len(report.DroppedKeys) > 0 {
		c.stats.eventsDropped.WithLabelValues("sanitization").Add(float64(len(report.DroppedKeys)))
		c.logger.Debug().
			Strs("keys", report.DroppedKeys).
			Msg("dropped attributes that could not be sanitized")
	}
	if report.DepthExceeded {
		sanitized["privacy.depth_exceeded"] = true
	}
	return sanitized
}

func (c *Client) convert(attrs map[string]any) map[string]event.AttributeValue {
	return event.ConvertAttributes(attrs, 0)
}

// enqueue pushes the event into its signal queue and fires an asynchronous
// flush the instant the push makes the queue reach the batch size.
func (c *Client) enqueue(ev event.Event) {
	b := c.batchers[ev.Kind]
	c.stats.eventsQueued.WithLabelValues(string(ev.Kind)).Inc()
	c.logger.Debug().
		Str("signal", string(ev.Kind)).
		Str("event", ev.Name).
		Msg("queued telemetry event")

	if b.add(ev) {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.flushKind(context.Background(), ev.Kind)
		}()
	}
}

// flushKind captures the queue's current contents and transmits them. The
// swap happens before any network I/O, so events enqueued during the send
// accumulate in the fresh queue and are never lost nor duplicated.
func (c *Client) flushKind(ctx context.Context, kind event.Kind) {
	snapshot := c.batchers[kind].swap()
	if len(snapshot) == 0 {
		return
	}

	outcome := c.backend.Send(ctx, kind, snapshot)
	c.stats.sendAttempts.Add(float64(outcome.Attempts))
	if outcome.OK() {
		c.stats.batchesSent.WithLabelValues(string(kind), "ok").Inc()
		return
	}

	c.stats.batchesSent.WithLabelValues(string(kind), "failed").Inc()
	c.stats.eventsDropped.WithLabelValues("transport").Add(float64(len(snapshot)))
	c.logger.Debug().
		Str("signal", string(kind)).
		Int("events", len(snapshot)).
		Int("attempts", outcome.Attempts).
		Int("status", outcome.StatusCode).
		Err(outcome.Err).
		Msg("telemetry batch dropped after transport failure")
}

func (c *Client) flushAll(ctx context.Context) {
	for _, kind := range event.Kinds() {
		c.flushKind(ctx, kind)
	}
}

func (c *Client) startTimer() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.ticker != nil {
		return
	}
	c.ticker = c.clock.NewTicker(c.cfg.FlushInterval)
	c.timerStop = make(chan struct{})
	c.wg.Add(1)
	go c.runTimer(c.ticker, c.timerStop)
}

// stopTimer is idempotent: stopping an already-stopped timer is a no-op.
func (c *Client) stopTimer() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.timerStop)
	c.ticker = nil
}

func (c *Client) runTimer(ticker Ticker, stop chan struct{}) {
	defer c.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			c.flushAll(context.Background())
		}
	}
}

// onOptOutChange reacts to the opt-out marker appearing or disappearing
// while the client is running.
func (c *Client) onOptOutChange(optedOut bool) {
	if optedOut {
		c.mu.Lock()
		closed := c.closed
		c.enabled = false
		c.mu.Unlock()
		if !closed {
			c.stopTimer()
			c.logger.Debug().Msg("telemetry disabled by opt-out file")
		}
		return
	}

	c.mu.Lock()
	if c.closed || !c.cfg.Enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = true
	c.mu.Unlock()
	c.startTimer()
	c.logger.Debug().Msg("telemetry re-enabled, opt-out file removed")
}
