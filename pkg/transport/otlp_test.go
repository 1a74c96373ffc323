package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automagik/telemetry-go/pkg/event"
)

func TestDeriveEndpoint(t *testing.T) {
	tests := []struct {
		name string
		base string
		kind event.Kind
		want string
	}{
		{"plain traces", "https://x.com", event.KindSpan, "https://x.com/v1/traces"},
		{"trailing slash", "https://x.com/", event.KindSpan, "https://x.com/v1/traces"},
		{"metrics", "https://x.com", event.KindMetric, "https://x.com/v1/metrics"},
		{"logs", "https://x.com", event.KindLog, "https://x.com/v1/logs"},
		{"already suffixed", "https://x.com/v1/traces", event.KindSpan, "https://x.com/v1/traces"},
		{"suffixed with slash", "https://x.com/v1/logs/", event.KindLog, "https://x.com/v1/logs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveEndpoint(tt.base, tt.kind))
		})
	}
}

func testRetryer(maxRetries int) Retryer {
	return Retryer{MaxRetries: maxRetries, Base: time.Millisecond, Logger: zerolog.Nop()}
}

func newTestOTLP(endpoint string, compressor Compressor, maxRetries int) *OTLP {
	return NewOTLP(OTLPOptions{
		Endpoint:     endpoint,
		Timeout:      time.Second,
		Resource:     Resource{ServiceName: "omni", ServiceVersion: "1.0.0", UserID: "u", SessionID: "s"},
		ScopeName:    "omni.telemetry",
		ScopeVersion: "1.0.0",
		Compressor:   compressor,
		Retryer:      testRetryer(maxRetries),
		Logger:       zerolog.Nop(),
	})
}

func spanBatch(names ...string) []event.Event {
	batch := make([]event.Event, 0, len(names))
	for _, name := range names {
		batch = append(batch, event.NewSpan(name, map[string]event.AttributeValue{
			"feature": event.String("search"),
		}))
	}
	return batch
}

func TestOTLP_SendPostsHierarchicalJSON(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	backend := newTestOTLP(server.URL, Compressor{}, 0)
	outcome := backend.Send(context.Background(), event.KindSpan, spanBatch("user.login", "user.logout"))

	require.True(t, outcome.OK())
	assert.Equal(t, "/v1/traces", gotPath)
	assert.Equal(t, "application/json", gotContentType)

	var payload struct {
		ResourceSpans []struct {
			Resource struct {
				Attributes []struct {
					Key string `json:"key"`
				} `json:"attributes"`
			} `json:"resource"`
			ScopeSpans []struct {
				Spans []struct {
					Name    string `json:"name"`
					TraceID string `json:"traceId"`
					Kind    string `json:"kind"`
					Status  struct {
						Code string `json:"code"`
					} `json:"status"`
				} `json:"spans"`
			} `json:"scopeSpans"`
		} `json:"resourceSpans"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	require.Len(t, payload.ResourceSpans, 1)
	spans := payload.ResourceSpans[0].ScopeSpans[0].Spans
	require.Len(t, spans, 2)
	assert.Equal(t, "user.login", spans[0].Name)
	assert.Equal(t, "user.logout", spans[1].Name)
	assert.Len(t, spans[0].TraceID, 32)
	assert.Equal(t, "SPAN_KIND_INTERNAL", spans[0].Kind)
	assert.Equal(t, "STATUS_CODE_OK", spans[0].Status.Code)

	keys := make([]string, 0)
	for _, attr := range payload.ResourceSpans[0].Resource.Attributes {
		keys = append(keys, attr.Key)
	}
	assert.Contains(t, keys, "service.name")
	assert.Contains(t, keys, "user.id")
	assert.Contains(t, keys, "session.id")
}

func TestOTLP_MetricShapes(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	backend := newTestOTLP(server.URL, Compressor{}, 0)
	batch := []event.Event{
		event.NewMetric("requests_total", 5, event.MetricCounter, nil),
		event.NewMetric("queue_depth", 2, event.MetricGauge, nil),
		event.NewMetric("latency_ms", 12.5, event.MetricHistogram, nil),
	}
	outcome := backend.Send(context.Background(), event.KindMetric, batch)
	require.True(t, outcome.OK())

	var payload struct {
		ResourceMetrics []struct {
			ScopeMetrics []struct {
				Metrics []struct {
					Name string `json:"name"`
					Sum  *struct {
						IsMonotonic bool `json:"isMonotonic"`
					} `json:"sum"`
					Gauge     *json.RawMessage `json:"gauge"`
					Histogram *struct {
						DataPoints []struct {
							Count        int   `json:"count"`
							BucketCounts []int `json:"bucketCounts"`
						} `json:"dataPoints"`
					} `json:"histogram"`
				} `json:"metrics"`
			} `json:"scopeMetrics"`
		} `json:"resourceMetrics"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	metrics := payload.ResourceMetrics[0].ScopeMetrics[0].Metrics
	require.Len(t, metrics, 3)

	require.NotNil(t, metrics[0].Sum)
	assert.True(t, metrics[0].Sum.IsMonotonic)
	assert.NotNil(t, metrics[1].Gauge)
	require.NotNil(t, metrics[2].Histogram)
	assert.Equal(t, 1, metrics[2].Histogram.DataPoints[0].Count)
	assert.Equal(t, []int{1}, metrics[2].Histogram.DataPoints[0].BucketCounts)
}

func TestOTLP_EmptyBatchPerformsNoCalls(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	backend := newTestOTLP(server.URL, Compressor{}, 3)
	outcome := backend.Send(context.Background(), event.KindSpan, nil)

	require.True(t, outcome.OK())
	assert.Zero(t, calls.Load())
}

func TestOTLP_CompressesAboveThreshold(t *testing.T) {
	var gotEncoding string
	var gotRaw []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		gotRaw, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	backend := newTestOTLP(server.URL, Compressor{Enabled: true, Threshold: 100}, 0)
	outcome := backend.Send(context.Background(), event.KindSpan, spanBatch("user.login"))
	require.True(t, outcome.OK())

	require.Equal(t, "gzip", gotEncoding)
	decompressed, err := Decompress(gotRaw)
	require.NoError(t, err)
	assert.True(t, json.Valid(decompressed), "decompressed body must be valid JSON")
}

func TestOTLP_RetriesUntilBudgetExhausted(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	backend := newTestOTLP(server.URL, Compressor{}, 2)
	outcome := backend.Send(context.Background(), event.KindSpan, spanBatch("user.login"))

	assert.False(t, outcome.OK())
	assert.Equal(t, ClassRetryable, outcome.Class)
	assert.Equal(t, int64(3), calls.Load(), "maxRetries=2 means 3 attempts total")
	assert.Equal(t, 3, outcome.Attempts)
}

func TestOTLP_ClientErrorIsTerminal(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	backend := newTestOTLP(server.URL, Compressor{}, 3)
	outcome := backend.Send(context.Background(), event.KindSpan, spanBatch("user.login"))

	assert.False(t, outcome.OK())
	assert.Equal(t, ClassTerminal, outcome.Class)
	assert.Equal(t, int64(1), calls.Load(), "terminal outcomes consume no retry budget")
}

func TestRetryer_DelaysNonDecreasing(t *testing.T) {
	retryer := Retryer{MaxRetries: 2, Base: 20 * time.Millisecond, Logger: zerolog.Nop()}

	var stamps []time.Time
	outcome := retryer.Do(context.Background(), "span", func(context.Context) Outcome {
		stamps = append(stamps, time.Now())
		return Outcome{Class: ClassRetryable, StatusCode: http.StatusBadGateway}
	})

	require.Equal(t, 3, outcome.Attempts)
	require.Len(t, stamps, 3)
	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)
	assert.GreaterOrEqual(t, second, first)
}

func TestRetryer_SuccessStopsRetrying(t *testing.T) {
	attempts := 0
	retryer := testRetryer(5)
	outcome := retryer.Do(context.Background(), "span", func(context.Context) Outcome {
		attempts++
		if attempts < 2 {
			return Outcome{Class: ClassRetryable}
		}
		return Outcome{Class: ClassSuccess, StatusCode: http.StatusOK}
	})

	assert.True(t, outcome.OK())
	assert.Equal(t, 2, outcome.Attempts)
}
