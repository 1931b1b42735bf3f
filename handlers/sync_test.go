package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"busymirror/handlers"
	"busymirror/services/scheduler"
	syncsvc "busymirror/services/sync"
	"busymirror/utils"
)

// --- Minimal mocks ---

type mockSync struct {
	summary   syncsvc.Summary
	syncErr   error
	removed   int
	removeErr error
	syncCalls int
	teardowns int
}

func (m *mockSync) Synchronize() (syncsvc.Summary, error) {
	m.syncCalls++
	return m.summary, m.syncErr
}

func (m *mockSync) RemoveBlockingEvents() (int, error) {
	m.teardowns++
	return m.removed, m.removeErr
}

func (m *mockSync) Status() syncsvc.Status {
	return syncsvc.Status{PrimaryCalendarID: "work", RemoteCalendarID: "personal", LastSummary: m.summary}
}

type mockScheduler struct{}

func (m *mockScheduler) Status() scheduler.Status {
	return scheduler.Status{Running: true, Interval: "15m0s"}
}

func setupRouter(m *mockSync) http.Handler {
	r := utils.NewRouter()
	handlers.NewSyncHandler(m, &mockScheduler{}).RegisterRoutes(r)
	return r
}

// --- Tests ---

func TestRunSyncReturnsSummary(t *testing.T) {
	m := &mockSync{summary: syncsvc.Summary{CreatedRemote: 2, ExpiredPrimary: 1}}
	router := setupRouter(m)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if m.syncCalls != 1 {
		t.Fatalf("expected 1 sync call, got %d", m.syncCalls)
	}

	var summary syncsvc.Summary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if summary.CreatedRemote != 2 || summary.ExpiredPrimary != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunSyncSurfacesEngineError(t *testing.T) {
	m := &mockSync{syncErr: errors.New("provider unavailable")}
	router := setupRouter(m)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestRunSyncRejectsGet(t *testing.T) {
	router := setupRouter(&mockSync{})

	req := httptest.NewRequest(http.MethodGet, "/api/sync/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestTeardownReturnsRemovedCount(t *testing.T) {
	m := &mockSync{removed: 7}
	router := setupRouter(m)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/teardown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["removed"] != 7 {
		t.Fatalf("expected 7 removed, got %d", resp["removed"])
	}
}

func TestStatusIncludesEngineAndScheduler(t *testing.T) {
	router := setupRouter(&mockSync{})

	req := httptest.NewRequest(http.MethodGet, "/api/sync/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Engine    syncsvc.Status   `json:"engine"`
		Scheduler scheduler.Status `json:"scheduler"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Engine.PrimaryCalendarID != "work" {
		t.Fatalf("unexpected engine status: %+v", resp.Engine)
	}
	if !resp.Scheduler.Running {
		t.Fatalf("unexpected scheduler status: %+v", resp.Scheduler)
	}
}
