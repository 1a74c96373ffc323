package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/automagik/telemetry-go/pkg/identity"
	"github.com/automagik/telemetry-go/pkg/privacy"
	"github.com/automagik/telemetry-go/pkg/transport"
)

type options struct {
	backend     transport.Backend
	store       identity.Store
	clock       Clock
	logger      *zerolog.Logger
	registerer  prometheus.Registerer
	privacyCfg  *privacy.Config
	watchOptOut bool
}

// Option customises client construction.
type Option func(*options)

// WithBackend replaces the transport adapter selected by the
// configuration. Tests use this to capture batches in memory.
func WithBackend(b transport.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithIdentityStore replaces the default file-backed identity store.
func WithIdentityStore(s identity.Store) Option {
	return func(o *options) { o.store = s }
}

// WithClock replaces the wall clock driving the periodic flush timer.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger replaces the diagnostic logger built from the configuration.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithRegisterer registers the client's self-observation counters on the
// given registry instead of a private one.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithPrivacy replaces the default sanitizer configuration.
func WithPrivacy(cfg privacy.Config) Option {
	return func(o *options) { o.privacyCfg = &cfg }
}

// WithOptOutWatch enables live watching of the opt-out marker file, so an
// opt-out written by another process disables this client without a
// restart. Only effective with the file-backed identity store.
func WithOptOutWatch() Option {
	return func(o *options) { o.watchOptOut = true }
}
