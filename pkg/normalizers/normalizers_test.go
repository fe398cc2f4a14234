package normalizers

import "testing"

func TestRegistryUnknownKindReturnsNil(t *testing.T) {
	r := NewRegistry()
	if got := r.Normalize("nonexistent", nil, nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestNormalizeSNMPAppliesMappingAndScale(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{"host": "switch1", "oid": "1.3.6.1.2.1.1.3.0", "value": 100.0}
	cfg := map[string]any{
		"mappings": []any{
			map[string]any{"oid": "1.3.6.1.2.1.1.3.0", "name": "system.uptime", "unit": "s", "scale": 0.01},
		},
	}
	points := r.Normalize("snmp", payload, cfg)
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Name != "system.uptime" || points[0].Value != 1.0 {
		t.Errorf("got %+v", points[0])
	}
}

func TestNormalizeSNMPNoMappingReturnsNil(t *testing.T) {
	r := NewRegistry()
	points := r.Normalize("snmp", map[string]any{"oid": "9.9.9", "value": 1.0}, map[string]any{})
	if points != nil {
		t.Errorf("expected nil, got %v", points)
	}
}

func TestNormalizeTelegrafDisk(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{
		"name":   "disk",
		"tags":   map[string]any{"host": "h1", "path": "/"},
		"fields": map[string]any{"used_percent": 87.5},
	}
	points := r.Normalize("telegraf", payload, nil)
	if len(points) != 1 || points[0].Name != "fs.used_percent" {
		t.Fatalf("got %+v", points)
	}
}

func TestNormalizeCatalystHealth(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{"type": "health_wireless", "healthScore": 92.0}
	points := r.Normalize("catalyst", payload, nil)
	if len(points) != 1 || points[0].Name != "cisco.cc.health.wireless" {
		t.Fatalf("got %+v", points)
	}
}
