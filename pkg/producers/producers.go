// Package producers implements the ingestion-side plugins that read from an
// external source (a tailed file, a polled HTTP/SNMP endpoint) and push raw
// log lines onto the shared stream. Grounded on
// original_source/app/streams/producers/{base,registry}.py: a Protocol with
// run()/shutdown() and a name-keyed factory registry, reexpressed as a Go
// interface plus map-based registry.
package producers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/models"
)

// Producer is a long-lived ingestion task. Run blocks until ctx is cancelled
// or an unhandled error occurs; the manager supervises it under
// pkg/supervisor's restart-with-backoff loop, so Producer implementations
// need not implement their own reconnect/retry loop at the top level.
type Producer interface {
	Run(ctx context.Context) error
}

// Factory builds a Producer from a DataSource row's type-specific config.
type Factory func(source models.DataSource, b *broker.Broker) (Producer, error)

// Registry maps a DataSource.Type to the Factory that builds its Producer.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a Registry pre-populated with every built-in producer.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("filetail", newFileTail)
	r.Register("http_poller", newHTTPPoller)
	r.Register("dcim_http", newHTTPPoller)
	r.Register("redfish", newHTTPPoller)
	r.Register("scom", newHTTPPoller)
	r.Register("squaredup", newHTTPPoller)
	r.Register("thousandeyes", newHTTPPoller)
	r.Register("catalyst", newHTTPPoller)
	r.Register("bluecat", newHTTPPoller)
	r.Register("dell_ome", newHTTPPoller)
	r.Register("splunk", newSplunk)
	r.Register("datadog", newDatadog)
	r.Register("snmp", newSNMP)
	return r
}

// Register adds or overrides the factory for a DataSource type.
func (r *Registry) Register(kind string, f Factory) {
	r.factories[kind] = f
}

// Build instantiates the Producer for a DataSource row.
func (r *Registry) Build(source models.DataSource, b *broker.Broker) (Producer, error) {
	f, ok := r.factories[source.Type]
	if !ok {
		return nil, fmt.Errorf("producers: unknown data source type %q", source.Type)
	}
	return f(source, b)
}

// AppendLog is the shared append(kind, line, source_id?) helper every
// built-in producer uses (§4.1): it retries a failed append once, after one
// second, before giving up (a dropped append is logged, never silently
// swallowed). It does not wait for the broker to become ready before the
// first attempt.
func AppendLog(ctx context.Context, b *broker.Broker, source, line, sourceID string) error {
	fields := map[string]any{"source": source, "line": line}
	if sourceID != "" {
		fields["source_id"] = sourceID
	}
	return appendWithRetry(ctx, b, broker.StreamName, fields)
}

func appendWithRetry(ctx context.Context, b *broker.Broker, stream string, fields map[string]any) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), 1), ctx)
	_, err := backoff.RetryWithData(func() (string, error) {
		return b.Append(ctx, stream, fields)
	}, policy)
	if err != nil {
		slog.Error("producer: append failed after retry", "stream", stream, "error", err)
	}
	return err
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asMapSlice(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func floatOr(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func boolOr(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}
