package normalizers

// NormalizeDCIM extracts MetricPoints from a DCIM HTTP poller's JSON body
// using a config-driven extraction list: {"extract":[{"name","unit","type",
// "path":[...],"field","attr_key"}]}. A config with schema=="redfish" uses a
// default Redfish thermal-temperature extraction when no explicit extract
// list is configured.
func NormalizeDCIM(_ string, payload, cfg map[string]any) []MetricPoint {
	body := asMap(payload["body"])
	if body == nil {
		return nil
	}

	extractCfg := cfg
	if asString(cfg["schema"]) == "redfish" && cfg["extract"] == nil {
		extractCfg = map[string]any{
			"extract": []any{
				map[string]any{
					"name":     "redfish.temperature.celsius",
					"unit":     "C",
					"path":     []any{"Thermal", "Temperatures"},
					"field":    "ReadingCelsius",
					"attr_key": "Name",
				},
			},
		}
	}

	return extract(body, extractCfg)
}

func extract(body map[string]any, cfg map[string]any) []MetricPoint {
	var out []MetricPoint
	for _, raw := range asSlice(cfg["extract"]) {
		ex := asMap(raw)

		var node any = body
		for _, rawKey := range asSlice(ex["path"]) {
			key, _ := rawKey.(string)
			m, ok := node.(map[string]any)
			if !ok {
				node = nil
				break
			}
			node = m[key]
		}
		arr := asSlice(node)

		field := asString(ex["field"])
		if field == "" {
			continue
		}
		name := asString(ex["name"])
		if name == "" {
			name = "dcim.metric"
		}
		metricType := asString(ex["type"])
		if metricType == "" {
			metricType = "gauge"
		}

		for _, rawItem := range arr {
			item := asMap(rawItem)
			if item == nil {
				continue
			}
			val, ok := asFloat(item[field])
			if !ok {
				continue
			}
			attrs := map[string]any{}
			if ak := asString(ex["attr_key"]); ak != "" {
				if v, ok := item[ak]; ok {
					attrs[ak] = v
				}
			}
			out = append(out, MetricPoint{
				Name: name, Type: metricType, Value: val, Unit: asString(ex["unit"]),
				TimeUnixNano: NowNano(), Resource: map[string]any{"vendor": "dcim_http"},
				Attributes: attrs,
			})
		}
	}
	return out
}
