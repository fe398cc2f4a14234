package normalizers

// NormalizeSNMP maps {"host","oid","value"} plus a config mapping table
// ({"mappings":[{"oid","name","unit","type","scale"}]}) to one MetricPoint,
// or none when the OID has no configured mapping.
func NormalizeSNMP(_ string, payload, config map[string]any) []MetricPoint {
	oid := asString(payload["oid"])
	host := asString(payload["host"])
	val, ok := asFloat(payload["value"])
	if !ok || oid == "" {
		return nil
	}

	var mapping map[string]any
	for _, raw := range asSlice(config["mappings"]) {
		m := asMap(raw)
		if asString(m["oid"]) == oid {
			mapping = m
			break
		}
	}
	if mapping == nil {
		return nil
	}

	if scale, ok := asFloat(mapping["scale"]); ok {
		val *= scale
	}

	name := asString(mapping["name"])
	if name == "" {
		name = oid
	}
	metricType := asString(mapping["type"])
	if metricType == "" {
		metricType = "gauge"
	}

	return []MetricPoint{{
		Name:         name,
		Type:         metricType,
		Value:        val,
		Unit:         asString(mapping["unit"]),
		TimeUnixNano: NowNano(),
		Resource:     map[string]any{"host": host, "vendor": "snmp"},
		Attributes:   map[string]any{"oid": oid},
	}}
}
