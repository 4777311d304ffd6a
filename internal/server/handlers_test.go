package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/feedlab/feedlab/internal/core/domain"
	"github.com/feedlab/feedlab/internal/roster"
	"github.com/feedlab/feedlab/internal/session"
	"github.com/feedlab/feedlab/internal/storage/memory"
)

const testAdminPass = "letmein"

// fakeCollector snapshots the roster at send time so tests can prove local
// persistence happened before the network attempt.
type fakeCollector struct {
	result       bool
	calls        int
	rosterAtSend []domain.ParticipantRow
	store        *roster.Store
}

func (f *fakeCollector) Send(ctx context.Context, row domain.ParticipantRow, events []domain.Event) bool {
	f.calls++
	if f.store != nil {
		f.rosterAtSend = f.store.Load(ctx)
	}
	return f.result
}

type fixture struct {
	ts        *httptest.Server
	store     *roster.Store
	collector *fakeCollector
	sessions  *session.Manager
}

func newFixture(t *testing.T, collectorOK bool) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := roster.New(memory.New(), roster.WithLogger(logger))
	fc := &fakeCollector{result: collectorOK, store: store}
	sessions := session.NewManager(session.WithManagerLogger(logger))
	posts := []domain.Post{{ID: "p1", Author: "Alice"}, {ID: "p2", Author: "Bob"}}

	srv := New(logger)
	h := NewHandler(sessions, store, fc, posts, testAdminPass, logger)
	h.Routes(srv.Router)

	ts := httptest.NewServer(srv.Router)
	t.Cleanup(ts.Close)

	return &fixture{ts: ts, store: store, collector: fc, sessions: sessions}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, f.ts.URL+path, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	json.Unmarshal(raw, &decoded)
	if decoded == nil {
		decoded = map[string]any{"_raw": string(raw)}
	}
	return resp, decoded
}

func (f *fixture) openSession(t *testing.T) string {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/v1/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open session status = %d", resp.StatusCode)
	}
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatalf("no session_id in %v", body)
	}
	return id
}

func TestFeedEndpoint(t *testing.T) {
	f := newFixture(t, true)

	resp, body := f.do(t, http.MethodGet, "/v1/feed", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	posts, _ := body["posts"].([]any)
	if len(posts) != 2 {
		t.Fatalf("feed posts = %v", body["posts"])
	}
}

func TestFullParticipantFlow(t *testing.T) {
	f := newFixture(t, true)
	id := f.openSession(t)
	base := "/v1/sessions/" + id

	if resp, _ := f.do(t, http.MethodPut, base+"/participant", `{"participant_id":"P-11"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("participant status = %d", resp.StatusCode)
	}

	events := `[
		{"action":"react_pick","meta":{"post_id":"p1","type":"like"}},
		{"action":"comment_submit","meta":{"post_id":"p1","text":"nice"}},
		{"action":"share","meta":{"post_id":"p2"}}
	]`
	resp, body := f.do(t, http.MethodPost, base+"/events", events)
	if resp.StatusCode != http.StatusOK || body["recorded"].(float64) != 3 {
		t.Fatalf("events response = %d %v", resp.StatusCode, body)
	}

	if resp, _ := f.do(t, http.MethodPost, base+"/observations", `[{"post_id":"p1","ratio":0.5}]`); resp.StatusCode != http.StatusOK {
		t.Fatalf("observations status = %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodPost, base+"/scroll", `{"y":420}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("scroll status = %d", resp.StatusCode)
	}

	resp, body = f.do(t, http.MethodPost, base+"/submit", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}
	if body["ok"] != true || body["synced"] != true {
		t.Fatalf("submit body = %v", body)
	}

	rows := f.store.Load(context.Background())
	if len(rows) != 1 {
		t.Fatalf("roster length = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.SessionID != id || row.ParticipantID != "P-11" {
		t.Errorf("row identity = %+v", row)
	}
	flat := row.FlatMap()
	if flat["p1_reacted"] != "1" || flat["p1_comment_texts"] != "nice" || flat["p2_shared"] != "1" {
		t.Errorf("row columns = %v", flat)
	}
	if row.MsEnterToSubmit == "" {
		t.Error("MsEnterToSubmit empty after full flow")
	}
}

func TestSubmit_CollectorFailureKeepsLocalRow(t *testing.T) {
	f := newFixture(t, false)
	id := f.openSession(t)
	base := "/v1/sessions/" + id

	f.do(t, http.MethodPut, base+"/participant", `{"participant_id":"P-5"}`)
	resp, body := f.do(t, http.MethodPost, base+"/submit", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status = %d, remote failure must not fail the request", resp.StatusCode)
	}
	if body["ok"] != true || body["synced"] != false {
		t.Fatalf("submit body = %v, want ok with synced=false", body)
	}

	// The roster already held the row when the collector was invoked.
	if f.collector.calls != 1 {
		t.Fatalf("collector calls = %d, want 1", f.collector.calls)
	}
	if len(f.collector.rosterAtSend) != 1 || f.collector.rosterAtSend[0].SessionID != id {
		t.Fatalf("roster at send time = %+v, want the submitted row", f.collector.rosterAtSend)
	}
	if len(f.store.Load(context.Background())) != 1 {
		t.Fatal("roster lost the row after remote failure")
	}
}

func TestSubmit_ResubmitOverwrites(t *testing.T) {
	f := newFixture(t, true)
	id := f.openSession(t)
	base := "/v1/sessions/" + id

	f.do(t, http.MethodPost, base+"/submit", "")
	f.do(t, http.MethodPost, base+"/events", `[{"action":"share","meta":{"post_id":"p1"}}]`)
	f.do(t, http.MethodPost, base+"/submit", "")

	rows := f.store.Load(context.Background())
	if len(rows) != 1 {
		t.Fatalf("roster length after resubmit = %d, want 1 (upsert)", len(rows))
	}
	if rows[0].FlatMap()["p1_shared"] != "1" {
		t.Error("resubmitted row should carry the later interaction")
	}
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t, true)

	for _, p := range []string{"/events", "/observations", "/scroll", "/submit"} {
		resp, _ := f.do(t, http.MethodPost, "/v1/sessions/ses_missing"+p, "[]")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", p, resp.StatusCode)
		}
	}
}

func TestEndSession(t *testing.T) {
	f := newFixture(t, true)
	id := f.openSession(t)

	resp, _ := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/end", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d", resp.StatusCode)
	}
	if _, ok := f.sessions.Get(id); ok {
		t.Error("session still live after end")
	}
	resp, _ = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/end", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("double end status = %d, want 404", resp.StatusCode)
	}
}

func TestAdminAuth(t *testing.T) {
	f := newFixture(t, true)

	resp, _ := f.do(t, http.MethodGet, "/admin/roster", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated admin status = %d, want 401", resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodGet, "/admin/roster", "", "X-Admin-Password", "wrong")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodGet, "/admin/roster", "", "X-Admin-Password", testAdminPass)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated admin status = %d, want 200", resp.StatusCode)
	}
}

func TestAdminRosterExports(t *testing.T) {
	f := newFixture(t, true)
	id := f.openSession(t)
	f.do(t, http.MethodPut, "/v1/sessions/"+id+"/participant", `{"participant_id":"P-9"}`)
	f.do(t, http.MethodPost, "/v1/sessions/"+id+"/submit", "")

	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/admin/roster.csv", nil)
	req.Header.Set("X-Admin-Password", testAdminPass)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("csv content type = %q", ct)
	}
	raw, _ := io.ReadAll(resp.Body)
	csv := string(raw)
	if !strings.HasPrefix(csv, "session_id,") || !strings.Contains(csv, "P-9") {
		t.Errorf("csv export = %q", csv)
	}

	resp2, body := f.do(t, http.MethodDelete, "/admin/roster", "", "X-Admin-Password", testAdminPass)
	if resp2.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("clear roster = %d %v", resp2.StatusCode, body)
	}
	if len(f.store.Load(context.Background())) != 0 {
		t.Error("roster not empty after admin clear")
	}
}

func TestAdminSessionEventsAndReset(t *testing.T) {
	f := newFixture(t, true)
	id := f.openSession(t)
	base := "/v1/sessions/" + id
	f.do(t, http.MethodPost, base+"/events", `[{"action":"share","meta":{"post_id":"p1"}}]`)

	resp, body := f.do(t, http.MethodGet, fmt.Sprintf("/admin/sessions/%s/events", id), "", "X-Admin-Password", testAdminPass)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session events status = %d", resp.StatusCode)
	}
	events, _ := body["events"].([]any)
	if len(events) != 2 { // session_start + share
		t.Fatalf("event count = %d, want 2", len(events))
	}

	resp, _ = f.do(t, http.MethodPost, fmt.Sprintf("/admin/sessions/%s/reset", id), "", "X-Admin-Password", testAdminPass)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}
	s, _ := f.sessions.Get(id)
	if s.Recorder.Len() != 0 {
		t.Error("log not cleared by admin reset")
	}
}

func TestEventBatch_EmptyActionSkipped(t *testing.T) {
	f := newFixture(t, true)
	id := f.openSession(t)

	resp, body := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/events",
		`[{"action":"","meta":{}},{"action":"expand_text","meta":{"post_id":"p1"}}]`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["recorded"].(float64) != 1 {
		t.Errorf("recorded = %v, want 1 (empty action skipped)", body["recorded"])
	}
}
