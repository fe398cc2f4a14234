package normalizers

import "strings"

var thousandeyesSeverity = map[string]float64{
	"info": 0, "informational": 0, "minor": 1, "warning": 1, "major": 2, "critical": 3,
}

// NormalizeThousandEyes maps ThousandEyes alert/test payloads into severity,
// latency and packet-loss MetricPoints.
func NormalizeThousandEyes(_ string, payload, _ map[string]any) []MetricPoint {
	typ := asString(payload["type"])
	ts := NowNano()
	resource := map[string]any{"vendor": "thousandeyes"}

	switch typ {
	case "alert":
		sev := strings.ToLower(firstNonEmpty(asString(payload["severity"]), asString(payload["level"])))
		return []MetricPoint{{
			Name: "thousandeyes.alert.severity", Type: "gauge", Value: thousandeyesSeverity[sev],
			TimeUnixNano: ts, Resource: resource,
			Attributes: map[string]any{
				"testId": asString(payload["testId"]), "rule": asString(payload["ruleName"]),
			},
		}}

	case "test":
		var out []MetricPoint
		if lat, ok := asFloat(payload["avgLatency"]); ok {
			out = append(out, MetricPoint{
				Name: "thousandeyes.test.latency_ms", Type: "gauge", Value: lat, Unit: "ms",
				TimeUnixNano: ts, Resource: resource,
				Attributes: map[string]any{"testId": asString(payload["testId"])},
			})
		}
		if loss, ok := asFloat(payload["loss"]); ok {
			out = append(out, MetricPoint{
				Name: "thousandeyes.test.loss_pct", Type: "gauge", Value: loss, Unit: "%",
				TimeUnixNano: ts, Resource: resource,
				Attributes: map[string]any{"testId": asString(payload["testId"])},
			})
		}
		return out
	}

	return nil
}
