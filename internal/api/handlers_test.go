package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/logware/soar/internal/models"
	"github.com/logware/soar/internal/notify"
	"github.com/logware/soar/internal/relay"
	"github.com/logware/soar/internal/storage"
	"github.com/logware/soar/pkg/clock"
)

var testNow = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	store  *storage.MemoryStore
	clock  *clock.Mock
	relay  *relay.Relay
	router http.Handler
}

func newTestEnv(t *testing.T, opts HandlerOptions) *testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	mock := clock.NewMock(testNow)
	opts.Clock = mock
	if opts.Relay == nil {
		cfg := relay.DefaultConfig()
		cfg.MaxAttempts = 1
		cfg.InitialBackoff = time.Millisecond
		opts.Relay = relay.New(cfg, zerolog.Nop(), opts.Notices)
	}

	h := NewHandler(store, zerolog.Nop(), opts)
	router := NewRouterWithConfig(h, zerolog.Nop(), RouterConfig{})
	return &testEnv{store: store, clock: mock, relay: opts.Relay, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *ErrorInfo      `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding envelope: %v (body: %s)", err, w.Body.String())
	}
	if !resp.Success {
		t.Fatalf("response not successful: %+v", resp.Error)
	}
	if out != nil {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			t.Fatalf("decoding data: %v", err)
		}
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Success bool       `json:"success"`
		Error   *ErrorInfo `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding envelope: %v (body: %s)", err, w.Body.String())
	}
	if resp.Error == nil {
		t.Fatal("expected an error payload")
	}
	return resp.Error.Code
}

func runningRecord(id string, start time.Time) *models.ExecutionRecord {
	return &models.ExecutionRecord{
		ID:          id,
		SourceType:  models.SourcePlaybook,
		SourceName:  "Phishing Response",
		Status:      models.ExecutionRunning,
		StartTime:   start,
		TriggeredBy: models.TriggerRef{Type: models.TriggerUser, Name: "Dana"},
		Steps: []models.StepResult{
			{Name: "enrich", Order: 1, Status: models.StepSuccess},
			{Name: "contain", Order: 2, Status: models.StepRunning},
		},
	}
}

func TestIngestAndGetExecution(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	w := env.do(t, http.MethodPost, "/api/v1/executions", runningRecord("exec-1", testNow))
	if w.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d, body %s", w.Code, w.Body.String())
	}

	// Duplicate push conflicts.
	w = env.do(t, http.MethodPost, "/api/v1/executions", runningRecord("exec-1", testNow))
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate ingest status = %d, want 409", w.Code)
	}
	if code := errorCode(t, w); code != ErrCodeAlreadyExists {
		t.Errorf("duplicate ingest code = %q", code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/executions/exec-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got ExecutionView
	decodeData(t, w, &got)
	if got.ID != "exec-1" {
		t.Errorf("ID = %q", got.ID)
	}
	if got.Badge.Label != "running" {
		t.Errorf("Badge.Label = %q, want running", got.Badge.Label)
	}
	if got.ProgressPercent != 50 {
		t.Errorf("ProgressPercent = %d, want 50", got.ProgressPercent)
	}
	if len(got.StepBadges) != 2 || got.StepBadges[0].Label != "success" {
		t.Errorf("StepBadges = %+v", got.StepBadges)
	}
}

func TestIngestExecutionValidation(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	rec := runningRecord("exec-bad", testNow)
	end := testNow.Add(time.Minute)
	rec.EndTime = &end // running record must not carry an end time

	w := env.do(t, http.MethodPost, "/api/v1/executions", rec)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if code := errorCode(t, w); code != ErrCodeValidation {
		t.Errorf("code = %q, want VALIDATION_ERROR", code)
	}
}

func TestUpdateExecutionPreservesAbortAnnotations(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	env.do(t, http.MethodPost, "/api/v1/executions", runningRecord("exec-1", testNow))
	w := env.do(t, http.MethodPost, "/api/v1/executions/exec-1/abort", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("abort status = %d", w.Code)
	}
	env.relay.Wait()

	// Engine pushes a terminal snapshot without abort fields.
	update := runningRecord("exec-1", testNow)
	update.Status = models.ExecutionAborted
	end := testNow.Add(2 * time.Minute)
	update.EndTime = &end
	update.Steps = nil

	w = env.do(t, http.MethodPut, "/api/v1/executions/exec-1", update)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}

	stored, err := env.store.GetExecution("exec-1")
	if err != nil {
		t.Fatalf("GetExecution() = %v", err)
	}
	if stored.Status != models.ExecutionAborted {
		t.Errorf("status = %q, want aborted", stored.Status)
	}
	if stored.AbortRequestedAt == nil || stored.AbortRequestedBy == "" {
		t.Errorf("abort annotations lost on engine update: %+v", stored)
	}
}

func TestListExecutionsFilters(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	fresh := runningRecord("exec-fresh", testNow.Add(-time.Hour))
	stale := runningRecord("exec-stale", testNow.Add(-10*24*time.Hour))
	done := runningRecord("exec-done", testNow.Add(-30*time.Minute))
	done.Status = models.ExecutionCompleted
	end := testNow.Add(-20 * time.Minute)
	done.EndTime = &end
	done.Steps = nil

	for _, rec := range []*models.ExecutionRecord{fresh, stale, done} {
		if w := env.do(t, http.MethodPost, "/api/v1/executions", rec); w.Code != http.StatusCreated {
			t.Fatalf("ingest %s = %d", rec.ID, w.Code)
		}
	}

	t.Run("no filters returns all newest first", func(t *testing.T) {
		var list ListExecutionsResponse
		decodeData(t, env.do(t, http.MethodGet, "/api/v1/executions", nil), &list)
		if list.Total != 3 {
			t.Fatalf("Total = %d, want 3", list.Total)
		}
		if list.Executions[0].ID != "exec-done" {
			t.Errorf("first = %q, want exec-done", list.Executions[0].ID)
		}
	})

	t.Run("status filter", func(t *testing.T) {
		var list ListExecutionsResponse
		decodeData(t, env.do(t, http.MethodGet, "/api/v1/executions?status=completed", nil), &list)
		if list.Total != 1 || list.Executions[0].ID != "exec-done" {
			t.Errorf("filtered = %+v", list)
		}
	})

	t.Run("window filter drops stale records", func(t *testing.T) {
		var list ListExecutionsResponse
		decodeData(t, env.do(t, http.MethodGet, "/api/v1/executions?window=7d", nil), &list)
		if list.Total != 2 {
			t.Errorf("Total = %d, want 2", list.Total)
		}
		for _, v := range list.Executions {
			if v.ID == "exec-stale" {
				t.Error("stale record passed the 7d window")
			}
		}
	})

	t.Run("invalid window rejected", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/executions?window=2y", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestAbortExecution(t *testing.T) {
	var delivered models.AbortRequest
	received := make(chan struct{})
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&delivered)
		close(received)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer engine.Close()

	notices := notify.NewCenter(16, nil)
	env := newTestEnv(t, HandlerOptions{Notices: notices})

	rec := runningRecord("exec-1", testNow)
	rec.CallbackURL = engine.URL
	env.do(t, http.MethodPost, "/api/v1/executions", rec)

	w := env.do(t, http.MethodPost, "/api/v1/executions/exec-1/abort",
		map[string]string{"reason": "false positive"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("abort status = %d, body %s", w.Code, w.Body.String())
	}
	var resp AbortResponse
	decodeData(t, w, &resp)
	if resp.Abort.ExecutionID != "exec-1" || resp.Abort.Reason != "false positive" {
		t.Errorf("abort payload = %+v", resp.Abort)
	}

	env.relay.Wait()
	select {
	case <-received:
	default:
		t.Fatal("abort was not relayed to the engine callback")
	}
	if delivered.ExecutionID != "exec-1" {
		t.Errorf("relayed payload = %+v", delivered)
	}

	// Record annotated but status untouched until the engine says so.
	stored, err := env.store.GetExecution("exec-1")
	if err != nil {
		t.Fatalf("GetExecution() = %v", err)
	}
	if stored.Status != models.ExecutionRunning {
		t.Errorf("status = %q, abort must not change displayed status", stored.Status)
	}
	if stored.AbortRequestedAt == nil || !stored.AbortRequestedAt.Equal(testNow) {
		t.Errorf("AbortRequestedAt = %v, want %v", stored.AbortRequestedAt, testNow)
	}
}

func TestAbortExecutionNotRunning(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	done := runningRecord("exec-done", testNow)
	done.Status = models.ExecutionCompleted
	end := testNow.Add(time.Minute)
	done.EndTime = &end
	done.Steps = nil
	env.do(t, http.MethodPost, "/api/v1/executions", done)

	w := env.do(t, http.MethodPost, "/api/v1/executions/exec-done/abort", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if code := errorCode(t, w); code != ErrCodeNotRunning {
		t.Errorf("code = %q, want NOT_RUNNING", code)
	}

	w = env.do(t, http.MethodPost, "/api/v1/executions/missing/abort", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("abort missing status = %d, want 404", w.Code)
	}
}

func TestGetSummary(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	mk := func(id string, status models.ExecutionStatus, dur time.Duration) *models.ExecutionRecord {
		rec := runningRecord(id, testNow.Add(-time.Hour))
		rec.Status = status
		rec.Steps = nil
		if status.IsTerminal() {
			end := rec.StartTime.Add(dur)
			rec.EndTime = &end
		}
		return rec
	}
	env.do(t, http.MethodPost, "/api/v1/executions", mk("e1", models.ExecutionCompleted, 10*time.Second))
	env.do(t, http.MethodPost, "/api/v1/executions", mk("e2", models.ExecutionFailed, 30*time.Second))
	env.do(t, http.MethodPost, "/api/v1/executions", mk("e3", models.ExecutionRunning, 0))

	var sum struct {
		Total                  int     `json:"total"`
		Succeeded              int     `json:"succeeded"`
		Running                int     `json:"running"`
		SuccessRatePercent     int     `json:"success_rate_percent"`
		AverageDurationSeconds float64 `json:"average_duration_seconds"`
	}
	decodeData(t, env.do(t, http.MethodGet, "/api/v1/summary", nil), &sum)

	if sum.Total != 3 || sum.Succeeded != 1 || sum.Running != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.SuccessRatePercent != 33 {
		t.Errorf("SuccessRatePercent = %d, want 33", sum.SuccessRatePercent)
	}
	if sum.AverageDurationSeconds != 20 {
		t.Errorf("AverageDurationSeconds = %v, want 20", sum.AverageDurationSeconds)
	}

	// Summary respects the same filters as the list.
	decodeData(t, env.do(t, http.MethodGet, "/api/v1/summary?status=completed", nil), &sum)
	if sum.Total != 1 || sum.SuccessRatePercent != 100 {
		t.Errorf("filtered summary = %+v", sum)
	}
}

func TestPlaybookCRUD(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	w := env.do(t, http.MethodPost, "/api/v1/playbooks", models.Playbook{
		Name:    "Contain Host",
		Version: "1.0.0",
		Steps: []models.PlaybookStep{
			{Name: "isolate", Order: 1, ActionType: "edr.isolate"},
		},
		Enabled: true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var created models.Playbook
	decodeData(t, w, &created)
	if created.ID == "" {
		t.Error("expected server-assigned ID")
	}
	if !created.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want %v", created.CreatedAt, testNow)
	}

	created.Description = "Isolate the endpoint"
	w = env.do(t, http.MethodPut, "/api/v1/playbooks/"+created.ID, created)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d", w.Code)
	}

	var listed []models.Playbook
	decodeData(t, env.do(t, http.MethodGet, "/api/v1/playbooks", nil), &listed)
	if len(listed) != 1 || listed[0].Description != "Isolate the endpoint" {
		t.Errorf("listed = %+v", listed)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/playbooks/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/playbooks/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", w.Code)
	}
}

func TestRuleValidationOnCreate(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	w := env.do(t, http.MethodPost, "/api/v1/rules", models.Rule{
		Name:     "Bad rule",
		Severity: "extreme", // not in the enum
		Condition: models.RuleCondition{
			Field: "login_count", Operator: models.OpGreater, Value: "10",
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if code := errorCode(t, w); code != ErrCodeValidation {
		t.Errorf("code = %q", code)
	}
}

func TestAnomalyIngestAndNotice(t *testing.T) {
	notices := notify.NewCenter(16, nil)
	env := newTestEnv(t, HandlerOptions{Notices: notices})

	w := env.do(t, http.MethodPost, "/api/v1/anomalies", models.Anomaly{
		Category:   models.AnomalyNetwork,
		Severity:   models.SeverityCritical,
		Confidence: 0.93,
		Title:      "Beaconing to rare domain",
		Entity:     "host-42",
		DetectedAt: testNow,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	recent := notices.Recent(0)
	if len(recent) != 1 || recent[0].Severity != notify.SeverityWarning {
		t.Errorf("expected a warning notice for a critical anomaly, got %+v", recent)
	}

	var listed []models.Anomaly
	decodeData(t, env.do(t, http.MethodGet, "/api/v1/anomalies", nil), &listed)
	if len(listed) != 1 || listed[0].Title != "Beaconing to rare domain" {
		t.Errorf("listed = %+v", listed)
	}

	var viaAPI []notify.Notice
	decodeData(t, env.do(t, http.MethodGet, "/api/v1/notices", nil), &viaAPI)
	if len(viaAPI) != 1 {
		t.Errorf("notices via API = %+v", viaAPI)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, HandlerOptions{})

	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var data map[string]any
	decodeData(t, w, &data)
	if data["status"] != "healthy" {
		t.Errorf("data = %+v", data)
	}
}
