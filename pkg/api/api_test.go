package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rhordoan/logpulse/pkg/automations"
	"github.com/rhordoan/logpulse/pkg/datasource"
	"github.com/rhordoan/logpulse/pkg/models"
	"github.com/rhordoan/logpulse/pkg/normalizers"
)

// fakeDataSources is an in-memory datasource.Repository for handler tests.
type fakeDataSources struct {
	rows map[string]models.DataSource
}

func newFakeDataSources() *fakeDataSources {
	return &fakeDataSources{rows: map[string]models.DataSource{}}
}

func (f *fakeDataSources) List(ctx context.Context) ([]models.DataSource, error) {
	out := make([]models.DataSource, 0, len(f.rows))
	for _, ds := range f.rows {
		out = append(out, ds)
	}
	return out, nil
}

func (f *fakeDataSources) Get(ctx context.Context, id string) (models.DataSource, error) {
	ds, ok := f.rows[id]
	if !ok {
		return models.DataSource{}, datasource.ErrNotFound
	}
	return ds, nil
}

func (f *fakeDataSources) Create(ctx context.Context, ds models.DataSource) (models.DataSource, error) {
	ds.ID = "ds_1"
	f.rows[ds.ID] = ds
	return ds, nil
}

func (f *fakeDataSources) Update(ctx context.Context, ds models.DataSource) (models.DataSource, error) {
	if _, ok := f.rows[ds.ID]; !ok {
		return models.DataSource{}, datasource.ErrNotFound
	}
	f.rows[ds.ID] = ds
	return ds, nil
}

func (f *fakeDataSources) Delete(ctx context.Context, id string) error {
	if _, ok := f.rows[id]; !ok {
		return datasource.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeDataSources) Watch(ctx context.Context) <-chan datasource.Change {
	ch := make(chan datasource.Change)
	close(ch)
	return ch
}

func newTestServer(t *testing.T) (*Server, *fakeDataSources) {
	t.Helper()
	fake := newFakeDataSources()
	rules := automations.NewStore(filepath.Join(t.TempDir(), "automations.yml"))
	runner := automations.NewRunner(nil, rules, true, true)
	s := NewServer(nil, fake, nil, nil, rules, runner, normalizers.NewRegistry(), 0)
	return s, fake
}

func TestHealthReturnsOK(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestDataSourceCRUD(t *testing.T) {
	s, _ := newTestServer(t)

	body, _ := json.Marshal(models.DataSource{Type: "snmp", Name: "core-switch", Enabled: true})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/datasources", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created models.DataSource
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated id")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/datasources/"+created.ID, nil)
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/datasources/"+created.ID, nil)
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/datasources/"+created.ID, nil)
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get-after-delete status = %d, want 404", rec.Code)
	}
}

func TestAutomationRulesCRUD(t *testing.T) {
	s, _ := newTestServer(t)

	rule := automations.Rule{
		Match:    automations.Match{FailureType: "disk", MinConfidence: 0.8},
		Cooldown: "15m",
		Action:   automations.Action{Provider: "servicenow"},
	}
	body, _ := json.Marshal(rule)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/automations/rules/r1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/automations/rules", nil)
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	var listed struct {
		Rules []automations.Rule `json:"rules"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed.Rules) != 1 || listed.Rules[0].ID != "r1" {
		t.Fatalf("rules = %+v, want one rule r1", listed.Rules)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/automations/rules/r1", nil)
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/automations/rules/r1", nil)
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete-again status = %d, want 404", rec.Code)
	}
}

func TestAutomationStatusAndToggles(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/automations/status", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	var status automations.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Enabled || !status.DryRun {
		t.Fatalf("status = %+v, want enabled+dry_run true", status)
	}

	body, _ := json.Marshal(toggleRequest{Enabled: false})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/automations/enabled", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Enabled {
		t.Fatal("expected enabled=false after toggle")
	}
}

func TestAlertFromFieldsParsesResultJSON(t *testing.T) {
	fields := map[string]string{
		"id":                  "alert_1",
		"type":                "issue",
		"os":                  "linux",
		"is_hardware_failure": "true",
		"failure_type":        "disk",
		"confidence":          "0.92",
		"result":              `{"summary":"disk errors"}`,
	}
	view := alertFromFields(fields)
	if view.ID != "alert_1" || !view.IsHardwareFailure || view.Confidence != 0.92 {
		t.Fatalf("view = %+v", view)
	}
	resultMap, ok := view.Result.(map[string]any)
	if !ok || resultMap["summary"] != "disk errors" {
		t.Fatalf("result = %+v, want summary field", view.Result)
	}
}
