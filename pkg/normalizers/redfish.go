package normalizers

// NormalizeRedfish maps Redfish thermal/power payloads to temperature, fan,
// power and voltage MetricPoints.
func NormalizeRedfish(_ string, payload, _ map[string]any) []MetricPoint {
	host := asString(payload["host"])
	kind := asString(payload["kind"])
	body := asMap(payload["body"])
	resource := map[string]any{"host": host, "vendor": "redfish"}
	ts := NowNano()

	var out []MetricPoint

	switch kind {
	case "thermal":
		for _, raw := range asSlice(body["Temperatures"]) {
			t := asMap(raw)
			val, ok := asFloat(t["ReadingCelsius"])
			if !ok {
				continue
			}
			out = append(out, MetricPoint{
				Name: "redfish.temperature.celsius", Type: "gauge", Value: val, Unit: "C",
				TimeUnixNano: ts, Resource: resource,
				Attributes: map[string]any{"name": t["Name"], "member_id": t["MemberId"]},
			})
		}
		for _, raw := range asSlice(body["Fans"]) {
			f := asMap(raw)
			val, ok := asFloat(f["Reading"])
			if !ok {
				continue
			}
			unit := asString(f["ReadingUnits"])
			if unit == "" {
				unit = "RPM"
			}
			out = append(out, MetricPoint{
				Name: "redfish.fan.speed", Type: "gauge", Value: val, Unit: unit,
				TimeUnixNano: ts, Resource: resource,
				Attributes: map[string]any{"name": f["Name"], "member_id": f["MemberId"]},
			})
		}
	case "power":
		for _, raw := range asSlice(body["PowerControl"]) {
			p := asMap(raw)
			if val, ok := asFloat(p["PowerConsumedWatts"]); ok {
				out = append(out, MetricPoint{
					Name: "redfish.power.consumed_watts", Type: "gauge", Value: val, Unit: "W",
					TimeUnixNano: ts, Resource: resource, Attributes: map[string]any{},
				})
			}
		}
		for _, raw := range asSlice(body["Voltages"]) {
			v := asMap(raw)
			val, ok := asFloat(v["ReadingVolts"])
			if !ok {
				continue
			}
			out = append(out, MetricPoint{
				Name: "redfish.voltage.volts", Type: "gauge", Value: val, Unit: "V",
				TimeUnixNano: ts, Resource: resource,
				Attributes: map[string]any{"name": v["Name"], "member_id": v["MemberId"]},
			})
		}
	}

	return out
}
