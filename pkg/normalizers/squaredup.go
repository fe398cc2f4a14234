package normalizers

import "strings"

var squaredupAlertSeverity = map[string]float64{"info": 0, "warning": 1, "critical": 2, "error": 2}
var squaredupHealthyStates = map[string]bool{"ok": true, "healthy": true, "green": true}

// NormalizeSquaredUp maps SquaredUp health/alert/dependency payloads into
// MetricPoints, depending on payload["type"].
func NormalizeSquaredUp(_ string, payload, _ map[string]any) []MetricPoint {
	typ := asString(payload["type"])
	ts := NowNano()
	resource := map[string]any{"vendor": "squaredup"}

	switch typ {
	case "health":
		state := strings.ToLower(firstNonEmpty(asString(payload["state"]), asString(payload["status"])))
		val := 0.0
		if squaredupHealthyStates[state] {
			val = 1
		}
		return []MetricPoint{{
			Name: "squaredup.health.ok", Type: "gauge", Value: val,
			TimeUnixNano: ts, Resource: resource,
			Attributes: map[string]any{"state": state, "name": asString(payload["name"])},
		}}

	case "alert":
		sev := strings.ToLower(asString(payload["severity"]))
		return []MetricPoint{{
			Name: "squaredup.alert.severity", Type: "gauge", Value: squaredupAlertSeverity[sev],
			TimeUnixNano: ts, Resource: resource,
			Attributes: map[string]any{
				"id": asString(payload["id"]), "title": asString(payload["title"]), "severity": sev,
			},
		}}

	case "dependency":
		return []MetricPoint{{
			Name: "squaredup.dependency.edge.count", Type: "sum", Value: 1,
			TimeUnixNano: ts, Resource: resource,
			Attributes: map[string]any{"from": asString(payload["from"]), "to": asString(payload["to"])},
		}}
	}

	return nil
}
