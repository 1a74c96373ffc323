// Package event defines the canonical telemetry records shared by the
// client pipeline and the transport adapters.
package event

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the three signal types.
type Kind string

const (
	KindSpan   Kind = "span"
	KindMetric Kind = "metric"
	KindLog    Kind = "log"
)

// Kinds lists every signal kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindSpan, KindMetric, KindLog}
}

// MetricKind discriminates metric semantics on the wire.
type MetricKind string

const (
	MetricCounter   MetricKind = "counter"
	MetricGauge     MetricKind = "gauge"
	MetricHistogram MetricKind = "histogram"
)

// AttrKind discriminates attribute value types.
type AttrKind int

const (
	AttrString AttrKind = iota
	AttrDouble
	AttrBool
)

// AttributeValue is one of string, double, or bool. Values are immutable
// once attached to an Event.
type AttributeValue struct {
	Kind AttrKind
	Str  string
	Num  float64
	Bool bool
}

// String builds a string attribute.
func String(v string) AttributeValue { return AttributeValue{Kind: AttrString, Str: v} }

// Double builds a numeric attribute.
func Double(v float64) AttributeValue { return AttributeValue{Kind: AttrDouble, Num: v} }

// Bool builds a boolean attribute.
func Bool(v bool) AttributeValue { return AttributeValue{Kind: AttrBool, Bool: v} }

// Event is a canonical trace/span, metric, or log record.
type Event struct {
	Kind           Kind
	Name           string
	TimestampNanos int64
	Attributes     map[string]AttributeValue

	// Span fields.
	TraceID string
	SpanID  string
	Status  string

	// Metric fields.
	Value  float64
	Metric MetricKind

	// Log fields.
	Severity string
	Body     string
}

// DefaultStatus is the span status attached to events that carry no
// explicit error signal.
const DefaultStatus = "STATUS_CODE_OK"

// NewSpan builds a span event with fresh identifiers and the current time.
func NewSpan(name string, attrs map[string]AttributeValue) Event {
	return Event{
		Kind:           KindSpan,
		Name:           name,
		TimestampNanos: time.Now().UnixNano(),
		Attributes:     attrs,
		TraceID:        NewTraceID(),
		SpanID:         NewSpanID(),
		Status:         DefaultStatus,
	}
}

// NewMetric builds a metric event with the current time.
func NewMetric(name string, value float64, kind MetricKind, attrs map[string]AttributeValue) Event {
	if kind == "" {
		kind = MetricGauge
	}
	return Event{
		Kind:           KindMetric,
		Name:           name,
		TimestampNanos: time.Now().UnixNano(),
		Attributes:     attrs,
		Value:          value,
		Metric:         kind,
	}
}

// NewLog builds a log event with the current time.
func NewLog(name, severity, body string, attrs map[string]AttributeValue) Event {
	if severity == "" {
		severity = "INFO"
	}
	return Event{
		Kind:           KindLog,
		Name:           name,
		TimestampNanos: time.Now().UnixNano(),
		Attributes:     attrs,
		Severity:       severity,
		Body:           body,
	}
}

// NewTraceID returns a 32-character opaque random hex token.
func NewTraceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// NewSpanID returns a 16-character opaque random hex token.
func NewSpanID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}

// ConvertAttributes coerces an arbitrary attribute map into the canonical
// typed form. Conversion never fails: booleans map to bool, all numerics
// map to double, and everything else is stringified then capped at
// maxStringLen characters. Nested maps and sequences are JSON-encoded so
// the backend receives a single string column.
func ConvertAttributes(attrs map[string]any, maxStringLen int) map[string]AttributeValue {
	if maxStringLen <= 0 {
		maxStringLen = 500
	}
	out := make(map[string]AttributeValue, len(attrs))
	for key, value := range attrs {
		out[key] = coerce(value, maxStringLen)
	}
	return out
}

func coerce(value any, maxStringLen int) AttributeValue {
	switch v := value.(type) {
	case bool:
		return Bool(v)
	case float64:
		return Double(v)
	case float32:
		return Double(float64(v))
	case int:
		return Double(float64(v))
	case int8:
		return Double(float64(v))
	case int16:
		return Double(float64(v))
	case int32:
		return Double(float64(v))
	case int64:
		return Double(float64(v))
	case uint:
		return Double(float64(v))
	case uint8:
		return Double(float64(v))
	case uint16:
		return Double(float64(v))
	case uint32:
		return Double(float64(v))
	case uint64:
		return Double(float64(v))
	case string:
		return String(capString(v, maxStringLen))
	case map[string]any, []any:
		if encoded, err := json.Marshal(v); err == nil {
			return String(capString(string(encoded), maxStringLen))
		}
		return String(capString(fmt.Sprint(v), maxStringLen))
	case nil:
		return String("")
	default:
		return String(capString(fmt.Sprint(v), maxStringLen))
	}
}

func capString(v string, maxLen int) string {
	if len(v) <= maxLen {
		return v
	}
	return v[:maxLen]
}
