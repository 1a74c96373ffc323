package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/automagik/telemetry-go/pkg/event"
)

// clickhouseRow maps a canonical event onto the analytical table schema.
// All three signal kinds share one table; event_kind discriminates.
type clickhouseRow struct {
	EventKind      string  `json:"event_kind"`
	TraceID        string  `json:"trace_id"`
	SpanID         string  `json:"span_id"`
	Timestamp      string  `json:"timestamp"`
	TimestampNs    int64   `json:"timestamp_ns"`
	DurationMs     int64   `json:"duration_ms"`
	ServiceName    string  `json:"service_name"`
	EventName      string  `json:"event_name"`
	SpanKind       string  `json:"span_kind"`
	StatusCode     string  `json:"status_code"`
	MetricValue    float64 `json:"metric_value"`
	MetricKind     string  `json:"metric_kind"`
	Severity       string  `json:"severity"`
	Body           string  `json:"body"`
	ProjectName    string  `json:"project_name"`
	ProjectVersion string  `json:"project_version"`
	Organization   string  `json:"organization"`
	Attributes     string  `json:"attributes"`
	UserID         string  `json:"user_id"`
	SessionID      string  `json:"session_id"`
	OSType         string  `json:"os_type"`
	OSVersion      string  `json:"os_version"`
	RuntimeVersion string  `json:"runtime_version"`
}

// ClickHouseOptions configures the column-store adapter.
type ClickHouseOptions struct {
	Endpoint   string
	Database   string
	Table      string
	Username   string
	Password   string
	Timeout    time.Duration
	Resource   Resource
	Compressor Compressor
	Retryer    Retryer
	Logger     zerolog.Logger
}

// ClickHouse is the column-store adapter: it encodes a batch as
// JSONEachRow insert payloads and posts them to a single configured
// insert endpoint parameterized by database and table.
type ClickHouse struct {
	client     *http.Client
	insertURL  string
	authHeader string
	resource   Resource
	compressor Compressor
	retryer    Retryer
	logger     zerolog.Logger
}

// NewClickHouse constructs the column-store adapter.
func NewClickHouse(opts ClickHouseOptions) *ClickHouse {
	base := strings.TrimRight(opts.Endpoint, "/")
	query := url.Values{}
	query.Set("query", fmt.Sprintf("INSERT INTO %s.%s FORMAT JSONEachRow", opts.Database, opts.Table))

	auth := ""
	if opts.Username != "" {
		creds := opts.Username + ":" + opts.Password
		auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
	}

	return &ClickHouse{
		client:     &http.Client{Timeout: opts.Timeout},
		insertURL:  base + "/?" + query.Encode(),
		authHeader: auth,
		resource:   opts.Resource,
		compressor: opts.Compressor,
		retryer:    opts.Retryer,
		logger:     opts.Logger,
	}
}

// Send inserts one batch as newline-delimited JSON rows. An empty batch
// performs zero network calls. The batch succeeds or fails as a whole.
func (c *ClickHouse) Send(ctx context.Context, kind event.Kind, batch []event.Event) Outcome {
	if len(batch) == 0 {
		return successOutcome()
	}

	var lines []string
	for _, ev := range batch {
		encoded, err := json.Marshal(c.buildRow(ev))
		if err != nil {
			// A row that cannot be encoded drops that event; the
			// rest of the batch continues.
			c.logger.Debug().Str("event", ev.Name).Err(err).Msg("dropping unencodable row")
			continue
		}
		lines = append(lines, string(encoded))
	}
	if len(lines) == 0 {
		return successOutcome()
	}

	serialized := []byte(strings.Join(lines, "\n"))
	body, compressed := c.compressor.Compress(serialized)

	headers := map[string]string{"Content-Type": "application/x-ndjson"}
	if compressed {
		headers["Content-Encoding"] = "gzip"
	}
	if c.authHeader != "" {
		headers["Authorization"] = c.authHeader
	}

	c.logger.Debug().
		Str("signal", string(kind)).
		Int("rows", len(lines)).
		Int("bytes", len(body)).
		Bool("compressed", compressed).
		Msg("inserting telemetry rows")

	return c.retryer.Do(ctx, string(kind), func(ctx context.Context) Outcome {
		return doPost(ctx, c.client, c.insertURL, body, headers)
	})
}

// Flush is a no-op: batching happens upstream in the client.
func (c *ClickHouse) Flush(context.Context) Outcome { return successOutcome() }

func (c *ClickHouse) buildRow(ev event.Event) clickhouseRow {
	ts := time.Unix(0, ev.TimestampNanos).UTC()
	row := clickhouseRow{
		EventKind:      string(ev.Kind),
		TraceID:        ev.TraceID,
		SpanID:         ev.SpanID,
		Timestamp:      ts.Format("2006-01-02 15:04:05"),
		TimestampNs:    ev.TimestampNanos,
		ServiceName:    c.resource.ServiceName,
		EventName:      ev.Name,
		StatusCode:     ev.Status,
		MetricValue:    ev.Value,
		MetricKind:     string(ev.Metric),
		Severity:       ev.Severity,
		Body:           ev.Body,
		ProjectName:    c.resource.ServiceName,
		ProjectVersion: c.resource.ServiceVersion,
		Organization:   c.resource.Organization,
		Attributes:     flattenAttributes(ev.Attributes),
		UserID:         c.resource.UserID,
		SessionID:      c.resource.SessionID,
		OSType:         c.resource.OSType,
		OSVersion:      c.resource.OSVersion,
		RuntimeVersion: c.resource.RuntimeVersion,
	}
	if ev.Kind == event.KindSpan {
		row.SpanKind = spanKindInternal
		if row.StatusCode == "" {
			row.StatusCode = event.DefaultStatus
		}
	}
	return row
}

// flattenAttributes serializes the attribute map into a single JSON string
// column with every value stringified, matching the table schema.
func flattenAttributes(attrs map[string]event.AttributeValue) string {
	flat := make(map[string]string, len(attrs))
	for k, v := range attrs {
		switch v.Kind {
		case event.AttrDouble:
			flat[k] = strconv.FormatFloat(v.Num, 'f', -1, 64)
		case event.AttrBool:
			flat[k] = strconv.FormatBool(v.Bool)
		default:
			flat[k] = v.Str
		}
	}
	encoded, err := json.Marshal(flat)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
