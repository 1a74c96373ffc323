package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/automagik/telemetry-go/pkg/event"
)

// OTLP wire shapes, JSON-encoded the way collectors accept them over
// HTTP. Only the value types the canonical model produces are present.

type otlpValue struct {
	StringValue *string  `json:"stringValue,omitempty"`
	DoubleValue *float64 `json:"doubleValue,omitempty"`
	BoolValue   *bool    `json:"boolValue,omitempty"`
}

type otlpAttribute struct {
	Key   string    `json:"key"`
	Value otlpValue `json:"value"`
}

type otlpScope struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type otlpResource struct {
	Attributes []otlpAttribute `json:"attributes"`
}

type otlpStatus struct {
	Code string `json:"code"`
}

type otlpSpan struct {
	TraceID           string          `json:"traceId"`
	SpanID            string          `json:"spanId"`
	Name              string          `json:"name"`
	Kind              string          `json:"kind"`
	StartTimeUnixNano int64           `json:"startTimeUnixNano"`
	EndTimeUnixNano   int64           `json:"endTimeUnixNano"`
	Attributes        []otlpAttribute `json:"attributes"`
	Status            otlpStatus      `json:"status"`
}

type otlpScopeSpans struct {
	Scope otlpScope  `json:"scope"`
	Spans []otlpSpan `json:"spans"`
}

type otlpResourceSpans struct {
	Resource   otlpResource     `json:"resource"`
	ScopeSpans []otlpScopeSpans `json:"scopeSpans"`
}

type otlpTracePayload struct {
	ResourceSpans []otlpResourceSpans `json:"resourceSpans"`
}

type otlpDataPoint struct {
	AsDouble     float64         `json:"asDouble"`
	TimeUnixNano int64           `json:"timeUnixNano"`
	Attributes   []otlpAttribute `json:"attributes"`
}

type otlpSum struct {
	DataPoints             []otlpDataPoint `json:"dataPoints"`
	AggregationTemporality string          `json:"aggregationTemporality"`
	IsMonotonic            bool            `json:"isMonotonic"`
}

type otlpGauge struct {
	DataPoints []otlpDataPoint `json:"dataPoints"`
}

type otlpHistogramPoint struct {
	Count          int             `json:"count"`
	Sum            float64         `json:"sum"`
	BucketCounts   []int           `json:"bucketCounts"`
	ExplicitBounds []float64       `json:"explicitBounds"`
	TimeUnixNano   int64           `json:"timeUnixNano"`
	Attributes     []otlpAttribute `json:"attributes"`
}

type otlpHistogram struct {
	DataPoints             []otlpHistogramPoint `json:"dataPoints"`
	AggregationTemporality string               `json:"aggregationTemporality"`
}

type otlpMetric struct {
	Name      string         `json:"name"`
	Sum       *otlpSum       `json:"sum,omitempty"`
	Gauge     *otlpGauge     `json:"gauge,omitempty"`
	Histogram *otlpHistogram `json:"histogram,omitempty"`
}

type otlpScopeMetrics struct {
	Scope   otlpScope    `json:"scope"`
	Metrics []otlpMetric `json:"metrics"`
}

type otlpResourceMetrics struct {
	Resource     otlpResource       `json:"resource"`
	ScopeMetrics []otlpScopeMetrics `json:"scopeMetrics"`
}

type otlpMetricPayload struct {
	ResourceMetrics []otlpResourceMetrics `json:"resourceMetrics"`
}

type otlpLogRecord struct {
	TimeUnixNano int64           `json:"timeUnixNano"`
	SeverityText string          `json:"severityText"`
	Body         otlpValue       `json:"body"`
	Attributes   []otlpAttribute `json:"attributes"`
}

type otlpScopeLogs struct {
	Scope      otlpScope       `json:"scope"`
	LogRecords []otlpLogRecord `json:"logRecords"`
}

type otlpResourceLogs struct {
	Resource  otlpResource    `json:"resource"`
	ScopeLogs []otlpScopeLogs `json:"scopeLogs"`
}

type otlpLogPayload struct {
	ResourceLogs []otlpResourceLogs `json:"resourceLogs"`
}

const (
	spanKindInternal      = "SPAN_KIND_INTERNAL"
	cumulativeTemporality = "AGGREGATION_TEMPORALITY_CUMULATIVE"
)

// DeriveEndpoint maps a base endpoint to the per-signal sub-path. The
// derivation is idempotent: trailing slashes are stripped and the
// canonical sub-path is appended only when not already present, so a base
// that already names the signal path never grows duplicate segments.
func DeriveEndpoint(base string, kind event.Kind) string {
	base = strings.TrimRight(base, "/")
	var sub string
	switch kind {
	case event.KindMetric:
		sub = "/v1/metrics"
	case event.KindLog:
		sub = "/v1/logs"
	default:
		sub = "/v1/traces"
	}
	if strings.HasSuffix(base, sub) {
		return base
	}
	return base + sub
}

// OTLPOptions configures the generic-protocol adapter.
type OTLPOptions struct {
	Endpoint     string
	Timeout      time.Duration
	Resource     Resource
	ScopeName    string
	ScopeVersion string
	Compressor   Compressor
	Retryer      Retryer
	Logger       zerolog.Logger
}

// OTLP is the generic-protocol adapter: it encodes a batch into the
// hierarchical resource-scope-records shape and posts each signal kind to
// its own sub-path derived from the base endpoint.
type OTLP struct {
	client     *http.Client
	tracesURL  string
	metricsURL string
	logsURL    string
	scope      otlpScope
	resource   otlpResource
	compressor Compressor
	retryer    Retryer
	logger     zerolog.Logger
}

// NewOTLP constructs the generic-protocol adapter.
func NewOTLP(opts OTLPOptions) *OTLP {
	return &OTLP{
		client:     &http.Client{Timeout: opts.Timeout},
		tracesURL:  DeriveEndpoint(opts.Endpoint, event.KindSpan),
		metricsURL: DeriveEndpoint(opts.Endpoint, event.KindMetric),
		logsURL:    DeriveEndpoint(opts.Endpoint, event.KindLog),
		scope:      otlpScope{Name: opts.ScopeName, Version: opts.ScopeVersion},
		resource:   otlpResource{Attributes: opts.Resource.otlpAttributes()},
		compressor: opts.Compressor,
		retryer:    opts.Retryer,
		logger:     opts.Logger,
	}
}

// Send encodes and transmits one batch of a single signal kind. An empty
// batch performs zero network calls.
func (o *OTLP) Send(ctx context.Context, kind event.Kind, batch []event.Event) Outcome {
	if len(batch) == 0 {
		return successOutcome()
	}

	var (
		payload any
		url     string
	)
	switch kind {
	case event.KindMetric:
		payload = o.encodeMetrics(batch)
		url = o.metricsURL
	case event.KindLog:
		payload = o.encodeLogs(batch)
		url = o.logsURL
	default:
		payload = o.encodeSpans(batch)
		url = o.tracesURL
	}

	serialized, err := json.Marshal(payload)
	if err != nil {
		// A batch that cannot be encoded is dropped as a whole.
		return Outcome{Class: ClassTerminal, Err: err}
	}

	body, compressed := o.compressor.Compress(serialized)
	headers := map[string]string{"Content-Type": "application/json"}
	if compressed {
		headers["Content-Encoding"] = "gzip"
	}

	o.logger.Debug().
		Str("signal", string(kind)).
		Str("endpoint", url).
		Int("events", len(batch)).
		Int("bytes", len(body)).
		Bool("compressed", compressed).
		Msg("sending telemetry batch")

	return o.retryer.Do(ctx, string(kind), func(ctx context.Context) Outcome {
		return doPost(ctx, o.client, url, body, headers)
	})
}

// Flush is a no-op: the adapter holds no buffered state.
func (o *OTLP) Flush(context.Context) Outcome { return successOutcome() }

func (o *OTLP) encodeSpans(batch []event.Event) otlpTracePayload {
	spans := make([]otlpSpan, 0, len(batch))
	for _, ev := range batch {
		status := ev.Status
		if status == "" {
			status = event.DefaultStatus
		}
		spans = append(spans, otlpSpan{
			TraceID:           ev.TraceID,
			SpanID:            ev.SpanID,
			Name:              ev.Name,
			Kind:              spanKindInternal,
			StartTimeUnixNano: ev.TimestampNanos,
			EndTimeUnixNano:   ev.TimestampNanos,
			Attributes:        encodeAttributes(ev.Attributes),
			Status:            otlpStatus{Code: status},
		})
	}
	return otlpTracePayload{ResourceSpans: []otlpResourceSpans{{
		Resource:   o.resource,
		ScopeSpans: []otlpScopeSpans{{Scope: o.scope, Spans: spans}},
	}}}
}

func (o *OTLP) encodeMetrics(batch []event.Event) otlpMetricPayload {
	metrics := make([]otlpMetric, 0, len(batch))
	for _, ev := range batch {
		point := otlpDataPoint{
			AsDouble:     ev.Value,
			TimeUnixNano: ev.TimestampNanos,
			Attributes:   encodeAttributes(ev.Attributes),
		}
		metric := otlpMetric{Name: ev.Name}
		switch ev.Metric {
		case event.MetricCounter:
			metric.Sum = &otlpSum{
				DataPoints:             []otlpDataPoint{point},
				AggregationTemporality: cumulativeTemporality,
				IsMonotonic:            true,
			}
		case event.MetricHistogram:
			// Single-bucket approximation: one observation, no bounds.
			metric.Histogram = &otlpHistogram{
				DataPoints: []otlpHistogramPoint{{
					Count:          1,
					Sum:            ev.Value,
					BucketCounts:   []int{1},
					ExplicitBounds: []float64{},
					TimeUnixNano:   ev.TimestampNanos,
					Attributes:     point.Attributes,
				}},
				AggregationTemporality: cumulativeTemporality,
			}
		default:
			metric.Gauge = &otlpGauge{DataPoints: []otlpDataPoint{point}}
		}
		metrics = append(metrics, metric)
	}
	return otlpMetricPayload{ResourceMetrics: []otlpResourceMetrics{{
		Resource:     o.resource,
		ScopeMetrics: []otlpScopeMetrics{{Scope: o.scope, Metrics: metrics}},
	}}}
}

func (o *OTLP) encodeLogs(batch []event.Event) otlpLogPayload {
	records := make([]otlpLogRecord, 0, len(batch))
	for _, ev := range batch {
		body := ev.Body
		if body == "" {
			body = ev.Name
		}
		records = append(records, otlpLogRecord{
			TimeUnixNano: ev.TimestampNanos,
			SeverityText: ev.Severity,
			Body:         stringValue(body),
			Attributes:   encodeAttributes(ev.Attributes),
		})
	}
	return otlpLogPayload{ResourceLogs: []otlpResourceLogs{{
		Resource:  o.resource,
		ScopeLogs: []otlpScopeLogs{{Scope: o.scope, LogRecords: records}},
	}}}
}

// encodeAttributes renders an attribute map as a key-sorted OTLP list so
// serialization is deterministic.
func encodeAttributes(attrs map[string]event.AttributeValue) []otlpAttribute {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]otlpAttribute, 0, len(keys))
	for _, k := range keys {
		v := attrs[k]
		switch v.Kind {
		case event.AttrDouble:
			out = append(out, doubleAttribute(k, v.Num))
		case event.AttrBool:
			out = append(out, boolAttribute(k, v.Bool))
		default:
			out = append(out, stringAttribute(k, v.Str))
		}
	}
	return out
}

func stringValue(v string) otlpValue { return otlpValue{StringValue: &v} }

func stringAttribute(key, v string) otlpAttribute {
	return otlpAttribute{Key: key, Value: stringValue(v)}
}

func doubleAttribute(key string, v float64) otlpAttribute {
	return otlpAttribute{Key: key, Value: otlpValue{DoubleValue: &v}}
}

func boolAttribute(key string, v bool) otlpAttribute {
	return otlpAttribute{Key: key, Value: otlpValue{BoolValue: &v}}
}
