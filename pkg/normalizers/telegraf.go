package normalizers

import "strings"

// NormalizeTelegraf maps a telegraf JSON line {"name","tags","fields",
// "timestamp"} to one or more MetricPoints, with special handling for the
// cpu_temperature, smart_device and disk measurement names and a generic
// single-value fallback otherwise.
func NormalizeTelegraf(_ string, payload, _ map[string]any) []MetricPoint {
	name := strings.ToLower(asString(payload["name"]))
	tags := asMap(payload["tags"])
	fields := asMap(payload["fields"])
	host := asString(tags["host"])
	device := asString(tags["device"])
	path := asString(tags["path"])

	ts := NowNano()
	if v, ok := asFloat(payload["timestamp"]); ok {
		ts = int64(v * 1e9)
	}

	mp := func(metricName string, value any, unit string, attrs map[string]any) *MetricPoint {
		val, ok := asFloat(value)
		if !ok {
			return nil
		}
		if attrs == nil {
			attrs = map[string]any{}
		}
		return &MetricPoint{
			Name: metricName, Type: "gauge", Value: val, Unit: unit,
			TimeUnixNano: ts,
			Resource:     map[string]any{"host": host, "vendor": "telegraf"},
			Attributes:   attrs,
		}
	}

	var out []MetricPoint
	add := func(p *MetricPoint) {
		if p != nil {
			out = append(out, *p)
		}
	}

	switch name {
	case "cpu_temperature":
		add(mp("system.cpu.temperature", fields["value"], "C", nil))
		return out
	case "smart_device":
		if v, ok := fields["health_ok"]; ok {
			healthy := 0.0
			if b, _ := v.(bool); b {
				healthy = 1.0
			}
			add(mp("smart.health_ok", healthy, "", map[string]any{"device": device}))
		}
		if _, ok := fields["power_on_hours"]; ok {
			add(mp("smart.power_on_hours", fields["power_on_hours"], "h", map[string]any{"device": device}))
		}
		return out
	case "disk":
		if _, ok := fields["used_percent"]; ok {
			add(mp("fs.used_percent", fields["used_percent"], "%", map[string]any{"path": path}))
		}
		return out
	}

	if _, ok := fields["value"]; ok {
		add(mp("telegraf."+name, fields["value"], "", nil))
	}
	return out
}
