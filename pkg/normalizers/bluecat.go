package normalizers

import "strings"

var bluecatSeverity = map[string]float64{
	"info": 0, "warning": 1, "minor": 1, "major": 2, "critical": 3, "error": 3,
}

// NormalizeBluecat maps a BlueCat DDI event payload to a single severity
// gauge point.
func NormalizeBluecat(_ string, payload, _ map[string]any) []MetricPoint {
	sev := strings.ToLower(asString(payload["severity"]))
	if sev == "" {
		sev = strings.ToLower(asString(payload["level"]))
	}
	return []MetricPoint{{
		Name: "bluecat.event.severity", Type: "gauge", Value: bluecatSeverity[sev],
		TimeUnixNano: NowNano(), Resource: map[string]any{"vendor": "bluecat"},
		Attributes: map[string]any{"category": asString(payload["category"])},
	}}
}
