package normalizers

import "strings"

var scomAlertSeverity = map[string]float64{"information": 0, "warning": 1, "error": 2, "critical": 2}

// NormalizeSCOM maps SCOM performance/alert/event payloads into gauge or
// counter MetricPoints, depending on payload["type"].
func NormalizeSCOM(_ string, payload, _ map[string]any) []MetricPoint {
	typ := asString(payload["type"])
	ts := NowNano()
	resource := map[string]any{"vendor": "scom"}
	if host := asString(payload["ComputerName"]); host != "" {
		resource["host"] = host
	}

	switch typ {
	case "performance":
		obj := strings.ToLower(firstNonEmpty(asString(payload["ObjectName"]), asString(payload["object"])))
		counter := strings.ToLower(firstNonEmpty(asString(payload["CounterName"]), asString(payload["counter"])))
		inst := firstNonEmpty(asString(payload["InstanceName"]), asString(payload["instance"]))
		val, ok := asFloat(payload["Value"])
		if !ok {
			val, ok = asFloat(payload["value"])
		}
		if !ok {
			return nil
		}

		parts := []string{"scom", "perf"}
		if obj != "" {
			parts = append(parts, strings.ReplaceAll(obj, " ", "_"))
		}
		if counter != "" {
			parts = append(parts, strings.ReplaceAll(counter, " ", "_"))
		}
		attrs := map[string]any{}
		if inst != "" {
			attrs["instance"] = inst
		}
		return []MetricPoint{{
			Name: strings.Join(parts, "."), Type: "gauge", Value: val,
			TimeUnixNano: ts, Resource: resource, Attributes: attrs,
		}}

	case "alert":
		sev := strings.ToLower(firstNonEmpty(asString(payload["Severity"]), asString(payload["severity"])))
		pri := strings.ToLower(firstNonEmpty(asString(payload["Priority"]), asString(payload["priority"])))
		return []MetricPoint{{
			Name: "scom.alert.severity", Type: "gauge", Value: scomAlertSeverity[sev],
			TimeUnixNano: ts, Resource: resource,
			Attributes: map[string]any{
				"priority": pri,
				"id":       firstNonEmpty(asString(payload["Id"]), asString(payload["id"])),
				"name":     firstNonEmpty(asString(payload["Name"]), asString(payload["name"])),
				"source":   asString(payload["MonitoringObjectDisplayName"]),
			},
		}}

	case "event":
		level := strings.ToLower(firstNonEmpty(asString(payload["LevelDisplayName"]), asString(payload["level"])))
		return []MetricPoint{{
			Name: "scom.event.count", Type: "sum", Value: 1,
			TimeUnixNano: ts, Resource: resource, Attributes: map[string]any{"level": level},
		}}
	}

	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
