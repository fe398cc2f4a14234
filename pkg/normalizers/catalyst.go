package normalizers

import "strings"

// NormalizeCatalyst maps Cisco Catalyst Center payloads: health_* responses
// become a per-domain health score gauge, "event" payloads become an event
// counter.
func NormalizeCatalyst(_ string, payload, _ map[string]any) []MetricPoint {
	t := asString(payload["type"])
	ts := NowNano()
	resource := map[string]any{"vendor": "cisco_catalyst"}

	if strings.HasPrefix(t, "health_") {
		domain := strings.TrimPrefix(t, "health_")
		score, ok := asFloat(payload["healthScore"])
		if !ok {
			score, ok = asFloat(payload["score"])
		}
		if !ok {
			score, ok = asFloat(payload["networkHealthAverage"])
		}
		if !ok {
			return nil
		}
		return []MetricPoint{{
			Name: "cisco.cc.health." + domain, Type: "gauge", Value: score, Unit: "%",
			TimeUnixNano: ts, Resource: resource, Attributes: map[string]any{},
		}}
	}

	if t == "event" {
		sev := strings.ToLower(asString(payload["severity"]))
		if sev == "" {
			sev = strings.ToLower(asString(payload["category"]))
		}
		return []MetricPoint{{
			Name: "cisco.cc.event.count", Type: "sum", Value: 1,
			TimeUnixNano: ts, Resource: resource,
			Attributes: map[string]any{"severity": sev, "name": asString(payload["name"])},
		}}
	}

	return nil
}
