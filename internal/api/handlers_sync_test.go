package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sydlexius/milkcrate/internal/source"
	"github.com/sydlexius/milkcrate/internal/sync"
)

// stubSource feeds canned records through the coordinator. When gate is
// set, Fetch blocks until the channel closes so a run can be held open.
type stubSource struct {
	name    string
	records []source.Record
	gate    chan struct{}
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context) ([]source.Record, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	out := make([]source.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *stubSource) Apply(_ context.Context, _ source.Record) error { return nil }

func postSyncRun(t *testing.T, r *Router, name string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/sync/"+name+"/run", nil)
	req.SetPathValue("source", name)
	w := httptest.NewRecorder()
	r.handleSyncRun(w, req)
	return w
}

func waitForSyncStatus(t *testing.T, r *Router, name string, want sync.Status) *sync.State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st, err := r.syncStore.GetState(context.Background(), name)
		if err != nil {
			t.Fatalf("GetState: %v", err)
		}
		if st != nil && sync.StatusOf(st.SyncStatus) == want {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("source %s never reached %s", name, want)
	return nil
}

func TestHandleSyncRun(t *testing.T) {
	r, _ := testRouter(t)
	r.coordinator.Register(&stubSource{name: "stub", records: []source.Record{"r0", "r1"}})

	w := postSyncRun(t, r, "stub")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["status"] != "started" || body["source"] != "stub" {
		t.Errorf("body = %v", body)
	}

	st := waitForSyncStatus(t, r, "stub", sync.StatusSucceeded)
	if st.RecordsCount != 2 {
		t.Errorf("records = %d, want 2", st.RecordsCount)
	}

	if w := postSyncRun(t, r, "nope"); w.Code != http.StatusNotFound {
		t.Errorf("unknown source status = %d, want 404", w.Code)
	}
}

func TestHandleSyncRunConflict(t *testing.T) {
	r, _ := testRouter(t)
	gate := make(chan struct{})
	r.coordinator.Register(&stubSource{name: "stub", gate: gate})

	if w := postSyncRun(t, r, "stub"); w.Code != http.StatusAccepted {
		t.Fatalf("first run status = %d; body: %s", w.Code, w.Body.String())
	}

	// The first run still holds the lock while its fetch is gated.
	if w := postSyncRun(t, r, "stub"); w.Code != http.StatusConflict {
		t.Errorf("second run status = %d, want 409", w.Code)
	}

	close(gate)
	waitForSyncStatus(t, r, "stub", sync.StatusSucceeded)
}

func TestHandleSyncStatusAndHistory(t *testing.T) {
	r, _ := testRouter(t)
	r.coordinator.Register(&stubSource{name: "stub", records: []source.Record{"r0"}})
	if _, err := r.coordinator.Run(context.Background(), "stub", false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sync/status", nil)
	w := httptest.NewRecorder()
	r.handleSyncStatus(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var statusBody struct {
		Sources []sync.State `json:"sources"`
		Total   int          `json:"total"`
	}
	decodeBody(t, w, &statusBody)
	if statusBody.Total != 1 || statusBody.Sources[0].SourceName != "stub" {
		t.Fatalf("sources = %+v, want the stub row", statusBody.Sources)
	}
	if got := sync.StatusOf(statusBody.Sources[0].SyncStatus); got != sync.StatusSucceeded {
		t.Errorf("status = %s, want succeeded", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sync/history", nil)
	w = httptest.NewRecorder()
	r.handleSyncHistory(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d; body: %s", w.Code, w.Body.String())
	}
	var historyBody struct {
		Runs  []sync.HistoryEntry `json:"runs"`
		Total int                 `json:"total"`
	}
	decodeBody(t, w, &historyBody)
	if historyBody.Total != 1 || historyBody.Runs[0].RecordsCount != 1 {
		t.Errorf("runs = %+v, want one run with one record", historyBody.Runs)
	}
}
