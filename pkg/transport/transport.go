// Package transport implements the backend adapters that deliver event
// batches over HTTP: the generic OTLP/JSON adapter and the ClickHouse
// row-insert adapter, plus the shared compression and retry machinery
// both delegate to.
package transport

import (
	"context"
	"sort"

	"github.com/automagik/telemetry-go/pkg/event"
)

// Classification buckets a transport attempt's result.
type Classification int

const (
	// ClassSuccess is a 2xx response.
	ClassSuccess Classification = iota
	// ClassRetryable is a 5xx response or a connection/timeout failure.
	ClassRetryable
	// ClassTerminal is any other HTTP response; it aborts immediately
	// without consuming retry budget.
	ClassTerminal
)

// Outcome reports the final result of a send, including how many HTTP
// attempts it took.
type Outcome struct {
	Class      Classification
	StatusCode int
	Attempts   int
	Err        error
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Class == ClassSuccess }

func successOutcome() Outcome { return Outcome{Class: ClassSuccess} }

// Backend is the contract shared by both adapters. A batch either fully
// succeeds or is retried and dropped as a whole; there is no partial-row
// retry. Sending an empty batch is a no-op that performs zero network calls.
type Backend interface {
	Send(ctx context.Context, kind event.Kind, batch []event.Event) Outcome
	Flush(ctx context.Context) Outcome
}

// classifyStatus maps an HTTP status code onto the retry taxonomy.
func classifyStatus(code int) Classification {
	switch {
	case code >= 200 && code < 300:
		return ClassSuccess
	case code >= 500:
		return ClassRetryable
	default:
		return ClassTerminal
	}
}

// Resource carries the process-level attributes stamped on every outbound
// batch, including the anonymous user and session identifiers supplied by
// the identity store.
type Resource struct {
	ServiceName    string
	ServiceVersion string
	Organization   string
	UserID         string
	SessionID      string
	SDKName        string
	SDKVersion     string
	OSType         string
	OSVersion      string
	Architecture   string
	RuntimeVersion string
	IsDocker       bool
}

// otlpAttributes renders the resource as a deterministic attribute list.
func (r Resource) otlpAttributes() []otlpAttribute {
	strings := map[string]string{
		"service.name":            r.ServiceName,
		"service.version":         r.ServiceVersion,
		"service.organization":    r.Organization,
		"user.id":                 r.UserID,
		"session.id":              r.SessionID,
		"telemetry.sdk.name":      r.SDKName,
		"telemetry.sdk.version":   r.SDKVersion,
		"os.type":                 r.OSType,
		"os.version":              r.OSVersion,
		"host.arch":               r.Architecture,
		"process.runtime.version": r.RuntimeVersion,
	}

	keys := make([]string, 0, len(strings))
	for k := range strings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]otlpAttribute, 0, len(keys)+1)
	for _, k := range keys {
		attrs = append(attrs, stringAttribute(k, strings[k]))
	}
	attrs = append(attrs, boolAttribute("container.docker", r.IsDocker))
	return attrs
}
