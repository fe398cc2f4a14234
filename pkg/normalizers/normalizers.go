// Package normalizers turns vendor-specific metric payloads (decoded from a
// LogRecord's JSON line) into zero or more MetricPoints appended to the
// metrics stream. Grounded on
// original_source/app/services/metrics_normalization.py and its per-vendor
// siblings under app/services/normalizers/.
package normalizers

import "time"

// MetricPoint is the normalized shape appended to the metrics stream.
type MetricPoint struct {
	Name          string         `json:"name"`
	Type          string         `json:"type"` // gauge | sum | histogram
	Value         float64        `json:"value"`
	Unit          string         `json:"unit,omitempty"`
	TimeUnixNano  int64          `json:"time_unix_nano"`
	Resource      map[string]any `json:"resource,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

// NowNano returns the current time as Unix nanoseconds, matching
// metrics_normalization.py's now_nano().
func NowNano() int64 {
	return time.Now().UnixNano()
}

// Normalizer maps a decoded payload plus the owning DataSource's config into
// zero or more MetricPoints.
type Normalizer func(kind string, payload, config map[string]any) []MetricPoint

// Registry looks up a Normalizer by producer kind (e.g. "snmp", "redfish").
type Registry struct {
	byKind map[string]Normalizer
}

// NewRegistry builds a registry pre-populated with the built-in vendor
// normalizers.
func NewRegistry() *Registry {
	r := &Registry{byKind: map[string]Normalizer{}}
	r.Register("snmp", NormalizeSNMP)
	r.Register("redfish", NormalizeRedfish)
	r.Register("telegraf", NormalizeTelegraf)
	r.Register("catalyst", NormalizeCatalyst)
	r.Register("bluecat", NormalizeBluecat)
	r.Register("dcim_http", NormalizeDCIM)
	r.Register("scom", NormalizeSCOM)
	r.Register("squaredup", NormalizeSquaredUp)
	r.Register("thousandeyes", NormalizeThousandEyes)
	return r
}

// Register adds or replaces the normalizer for a kind.
func (r *Registry) Register(kind string, fn Normalizer) {
	r.byKind[kind] = fn
}

// Normalize dispatches to the registered normalizer, returning nil for an
// unrecognized kind.
func (r *Registry) Normalize(kind string, payload, config map[string]any) []MetricPoint {
	fn, ok := r.byKind[kind]
	if !ok {
		return nil
	}
	return fn(kind, payload, config)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
