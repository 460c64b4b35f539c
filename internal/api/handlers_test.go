package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"alertpulse/internal/alerts"
	"alertpulse/internal/detector"
	"alertpulse/internal/engine"
	"alertpulse/internal/scheduler"
	"alertpulse/internal/storage"
)

type fakeStore struct {
	alerts  map[string]alerts.Alert
	checks  map[string][]alerts.Check
	created []string
}

func newFakeStore(list ...alerts.Alert) *fakeStore {
	store := &fakeStore{alerts: map[string]alerts.Alert{}, checks: map[string][]alerts.Check{}}
	for _, a := range list {
		store.alerts[a.ID] = a
	}
	return store
}

func (f *fakeStore) ListAlerts(context.Context) ([]alerts.Alert, error) {
	out := []alerts.Alert{}
	for _, a := range f.alerts {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) GetAlert(_ context.Context, id string) (alerts.Alert, error) {
	a, ok := f.alerts[id]
	if !ok {
		return alerts.Alert{}, storage.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) CreateAlert(_ context.Context, a alerts.Alert) error {
	f.alerts[a.ID] = a
	f.created = append(f.created, a.ID)
	return nil
}

func (f *fakeStore) UpdateAlert(_ context.Context, a alerts.Alert) error {
	if _, ok := f.alerts[a.ID]; !ok {
		return storage.ErrNotFound
	}
	f.alerts[a.ID] = a
	return nil
}

func (f *fakeStore) DeleteAlert(_ context.Context, id string) error {
	if _, ok := f.alerts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.alerts, id)
	return nil
}

func (f *fakeStore) ListChecks(_ context.Context, alertID string, _ int) ([]alerts.Check, error) {
	return f.checks[alertID], nil
}

type fakePublisher struct {
	subjects []string
}

func (f *fakePublisher) Publish(subject string, _ any) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

type fakeJobs struct {
	forced    []string
	snoozed   map[string]time.Time
	unsnoozed []string
	outcome   engine.Outcome
	err       error
}

func (f *fakeJobs) ForceCheck(_ context.Context, id string) (engine.Outcome, error) {
	f.forced = append(f.forced, id)
	return f.outcome, f.err
}

func (f *fakeJobs) Snooze(_ context.Context, id string, until time.Time) error {
	if f.snoozed == nil {
		f.snoozed = map[string]time.Time{}
	}
	f.snoozed[id] = until
	return f.err
}

func (f *fakeJobs) ClearSnooze(_ context.Context, id string) error {
	f.unsnoozed = append(f.unsnoozed, id)
	return f.err
}

func (f *fakeJobs) Inflight() []string { return nil }

func newTestServer(store *fakeStore, pub *fakePublisher, jobs *fakeJobs, advanced bool) *httptest.Server {
	handler := &Handler{
		Repo:                   store,
		Bus:                    pub,
		Jobs:                   jobs,
		Timeout:                2 * time.Second,
		AllowAdvancedDetectors: advanced,
	}
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return httptest.NewServer(router)
}

func alertBody() map[string]any {
	return map[string]any{
		"name":       "orders drop",
		"insightRef": "insight-1",
		"source": map[string]any{
			"connectionRef":   "warehouse",
			"table":           "orders",
			"valueColumn":     "amount",
			"timestampColumn": "created_at",
			"aggregation":     "sum",
		},
		"interval": "daily",
		"detector": map[string]any{
			"type":      "threshold",
			"threshold": map[string]any{"bounds": map[string]any{"upper": 100.0}},
		},
		"enabled": true,
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestCreateAlertAcceptsValidSpec(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	server := newTestServer(store, pub, &fakeJobs{}, true)
	defer server.Close()

	resp := postJSON(t, server.URL+"/alerts", alertBody())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected one created alert")
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != "alert.created" {
		t.Fatalf("expected alert.created event, got %v", pub.subjects)
	}
}

func TestCreateAlertRejectsInvalidSpec(t *testing.T) {
	store := newFakeStore()
	server := newTestServer(store, &fakePublisher{}, &fakeJobs{}, true)
	defer server.Close()

	body := alertBody()
	body["name"] = ""
	resp := postJSON(t, server.URL+"/alerts", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if er.Code != "ALERT_SPEC_INVALID" || len(er.Details) == 0 {
		t.Fatalf("unexpected error response %+v", er)
	}
	if len(store.created) != 0 {
		t.Fatalf("invalid alert must not be persisted")
	}
}

func TestCreateAlertRejectsUnknownFields(t *testing.T) {
	server := newTestServer(newFakeStore(), &fakePublisher{}, &fakeJobs{}, true)
	defer server.Close()

	body := alertBody()
	body["threshold_mode"] = "strict"
	resp := postJSON(t, server.URL+"/alerts", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestCreateAlertGatesAdvancedDetectors(t *testing.T) {
	server := newTestServer(newFakeStore(), &fakePublisher{}, &fakeJobs{}, false)
	defer server.Close()

	body := alertBody()
	body["detector"] = map[string]any{
		"type":   "zscore",
		"zscore": map[string]any{"window": 10, "z_threshold": 3.0},
	}
	resp := postJSON(t, server.URL+"/alerts", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var er errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&er)
	if er.Code != "DETECTOR_NOT_ENABLED" {
		t.Fatalf("unexpected code %s", er.Code)
	}
}

func TestGetAlertNotFound(t *testing.T) {
	server := newTestServer(newFakeStore(), &fakePublisher{}, &fakeJobs{}, true)
	defer server.Close()

	resp, err := http.Get(server.URL + "/alerts/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func existingAlert(id string) alerts.Alert {
	upper := 100.0
	return alerts.Alert{
		ID:         id,
		Name:       "orders drop",
		InsightRef: "insight-1",
		Source: alerts.SourceSpec{
			ConnectionRef:   "warehouse",
			Table:           "orders",
			ValueColumn:     "amount",
			TimestampColumn: "created_at",
		},
		Interval: alerts.IntervalDaily,
		Detector: &detector.Config{
			Type:      detector.TypeThreshold,
			Threshold: &detector.ThresholdConfig{Bounds: detector.Bounds{Upper: &upper}},
		},
		Enabled: true,
	}
}

func TestDisablePublishesEvent(t *testing.T) {
	store := newFakeStore(existingAlert("a1"))
	pub := &fakePublisher{}
	server := newTestServer(store, pub, &fakeJobs{}, true)
	defer server.Close()

	resp := postJSON(t, server.URL+"/alerts/a1/disable", map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if store.alerts["a1"].Enabled {
		t.Fatalf("alert not disabled")
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != "alert.disabled" {
		t.Fatalf("expected alert.disabled event, got %v", pub.subjects)
	}
}

func TestSnoozeRejectsPastTimestamp(t *testing.T) {
	jobs := &fakeJobs{}
	server := newTestServer(newFakeStore(existingAlert("a1")), &fakePublisher{}, jobs, true)
	defer server.Close()

	resp := postJSON(t, server.URL+"/alerts/a1/snooze", snoozeRequest{Until: time.Now().UTC().Add(-time.Hour)})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if len(jobs.snoozed) != 0 {
		t.Fatalf("past snooze must not reach the scheduler")
	}
}

func TestSnoozeForwardsToScheduler(t *testing.T) {
	jobs := &fakeJobs{}
	server := newTestServer(newFakeStore(existingAlert("a1")), &fakePublisher{}, jobs, true)
	defer server.Close()

	until := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	resp := postJSON(t, server.URL+"/alerts/a1/snooze", snoozeRequest{Until: until})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if got := jobs.snoozed["a1"]; !got.Equal(until) {
		t.Fatalf("expected snooze until %v got %v", until, got)
	}
}

func TestForceCheckConflictWhenBusy(t *testing.T) {
	jobs := &fakeJobs{err: scheduler.ErrAlertBusy}
	server := newTestServer(newFakeStore(existingAlert("a1")), &fakePublisher{}, jobs, true)
	defer server.Close()

	resp := postJSON(t, server.URL+"/alerts/a1/check", map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestForceCheckReturnsOutcome(t *testing.T) {
	check := alerts.Check{ID: "c1", AlertID: "a1", State: alerts.StateFiring}
	jobs := &fakeJobs{outcome: engine.Outcome{State: alerts.StateFiring, Notified: true, Check: &check}}
	server := newTestServer(newFakeStore(existingAlert("a1")), &fakePublisher{}, jobs, true)
	defer server.Close()

	resp := postJSON(t, server.URL+"/alerts/a1/check", map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var body struct {
		State    alerts.State `json:"state"`
		Notified bool         `json:"notified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.State != alerts.StateFiring || !body.Notified {
		t.Fatalf("unexpected body %+v", body)
	}
	if len(jobs.forced) != 1 || jobs.forced[0] != "a1" {
		t.Fatalf("expected forced check for a1")
	}
}

func TestListChecksValidatesLimit(t *testing.T) {
	server := newTestServer(newFakeStore(existingAlert("a1")), &fakePublisher{}, &fakeJobs{}, true)
	defer server.Close()

	resp, err := http.Get(server.URL + "/alerts/a1/checks?limit=zero")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	server := newTestServer(newFakeStore(), &fakePublisher{}, &fakeJobs{}, true)
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
