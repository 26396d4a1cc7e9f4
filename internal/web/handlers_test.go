package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mbsuggest/internal/config"
	"mbsuggest/internal/logger"
	"mbsuggest/internal/metadata"
	"mbsuggest/internal/track"
)

type fakeProvider struct {
	mu      sync.Mutex
	cands   []metadata.Candidate
	err     error
	gate    chan struct{} // when set, Search waits for it
	queries []string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Search(ctx context.Context, query string) ([]metadata.Candidate, error) {
	p.mu.Lock()
	p.queries = append(p.queries, query)
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &metadata.ServiceError{Op: "fake search", Err: ctx.Err()}
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.cands, nil
}

func museCandidates() []metadata.Candidate {
	return []metadata.Candidate{
		{
			Score:  100,
			Artist: metadata.Artist{Name: "Muse"},
			Title:  "Stockholm Syndrome",
			Releases: []metadata.Release{{
				Title:        "Absolution",
				Types:        []string{"http://musicbrainz.org/ns/mmd-2.0#Album"},
				TracksOffset: 2,
			}},
		},
		{
			Score:  87,
			Artist: metadata.Artist{Name: "Muse"},
			Title:  "Stockholm Syndrome",
			Releases: []metadata.Release{{
				Title:        "HAARP",
				Types:        []string{"http://musicbrainz.org/ns/mmd-2.0#Album", "http://musicbrainz.org/ns/mmd-2.0#Live"},
				TracksOffset: 5,
			}},
		},
	}
}

type testEnv struct {
	server  *Server
	tracks  map[string]*track.Memory
	library string
	cancel  context.CancelFunc
}

func newTestEnv(t *testing.T, p metadata.Provider) *testEnv {
	t.Helper()

	library := t.TempDir()
	for _, name := range []string{"muse/stockholm.mp3", "b.flac", "notes.txt"} {
		path := filepath.Join(library, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.LibraryDir = library

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	env := &testEnv{
		tracks:  make(map[string]*track.Memory),
		library: library,
		cancel:  cancel,
	}
	env.server = NewServer(ctx, NewSessionManager(), p, cfg, logger.NewWithWriter(io.Discard, false))
	env.server.openTrack = func(path string) (track.Track, error) {
		rel, err := filepath.Rel(library, path)
		if err != nil {
			return nil, err
		}
		tr, ok := env.tracks[filepath.ToSlash(rel)]
		if !ok {
			return nil, fmt.Errorf("no such track: %s", rel)
		}
		return tr, nil
	}
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return resp
}

func (env *testEnv) waitForState(t *testing.T, id, state string) SessionResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, err := env.server.sessions.Snapshot(id)
		if err != nil {
			t.Fatal(err)
		}
		if snap.State == state {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %s stuck in %s, want %s", id, snap.State, state)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (env *testEnv) openSession(t *testing.T, path string) SessionResponse {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/sessions", OpenRequest{Path: path})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open session: status %d: %s", rec.Code, rec.Body.String())
	}
	return decodeSession(t, rec)
}

func TestListTracks(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	rec := env.do(t, http.MethodGet, "/api/tracks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var files []string
	if err := json.NewDecoder(rec.Body).Decode(&files); err != nil {
		t.Fatal(err)
	}
	want := []string{"b.flac", "muse/stockholm.mp3"}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", files, want)
	}
}

func TestListTracksMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})
	rec := env.do(t, http.MethodPost, "/api/tracks", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestSessionSaveFlow(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{cands: museCandidates()})
	tr := track.NewMemory(map[string][]string{
		track.Artist: {"Muse"},
		track.Title:  {"Stockholm Syndrome"},
	})
	env.tracks["muse/stockholm.mp3"] = tr

	opened := env.openSession(t, "muse/stockholm.mp3")
	if opened.Query != "artist:(Muse) track:(Stockholm Syndrome)" {
		t.Errorf("unexpected query %q", opened.Query)
	}
	if len(opened.Columns) != 6 || opened.Columns[0].Title != "Score" || opened.Columns[5].Width != 50 {
		t.Errorf("unexpected columns %+v", opened.Columns)
	}

	snap := env.waitForState(t, opened.ID, "showing")
	if len(snap.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(snap.Rows))
	}
	wantRow := []string{"100", "Muse", "Stockholm Syndrome", "Absolution", "Album", "3"}
	if strings.Join(snap.Rows[0], "|") != strings.Join(wantRow, "|") {
		t.Errorf("row 0 = %v, want %v", snap.Rows[0], wantRow)
	}

	rec := env.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/select", SelectRequest{Row: 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("select: status %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeSession(t, rec); got.Selected != 0 {
		t.Errorf("expected row 0 selected, got %d", got.Selected)
	}

	rec = env.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/save", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: status %d: %s", rec.Code, rec.Body.String())
	}
	saved := decodeSession(t, rec)
	if saved.State != "idle" || saved.ClosedAt == nil {
		t.Errorf("saved session should be closed, got %s", saved.State)
	}

	written := tr.Written()
	if written == nil {
		t.Fatal("tags were not written")
	}
	for name, want := range map[string]string{
		track.Artist:      "Muse",
		track.Title:       "Stockholm Syndrome",
		track.Album:       "Absolution",
		track.TrackNumber: "3",
	} {
		if got := written[name]; len(got) != 1 || got[0] != want {
			t.Errorf("%s = %v, want [%s]", name, got, want)
		}
	}
}

func TestSaveWithoutSelection(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{cands: museCandidates()})
	tr := track.NewMemory(map[string][]string{track.Artist: {"Muse"}})
	env.tracks["muse/stockholm.mp3"] = tr

	opened := env.openSession(t, "muse/stockholm.mp3")
	env.waitForState(t, opened.ID, "showing")

	rec := env.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/save", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "You need to select a suggestion." {
		t.Errorf("unexpected message %q", resp.Error)
	}

	if tr.Writes() != 0 {
		t.Error("tags should not have been written")
	}

	snap, _ := env.server.sessions.Snapshot(opened.ID)
	if snap.State != "showing" || len(snap.Rows) != 2 {
		t.Errorf("session should be unchanged, got %s with %d rows", snap.State, len(snap.Rows))
	}
	if snap.Message != "You need to select a suggestion." {
		t.Errorf("snapshot should carry the message, got %q", snap.Message)
	}
}

func TestSaveWriteError(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{cands: museCandidates()})
	tr := track.NewMemory(nil)
	tr.WriteErr = errors.New("disk full")
	env.tracks["b.flac"] = tr

	opened := env.openSession(t, "b.flac")
	env.waitForState(t, opened.ID, "showing")
	env.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/select", SelectRequest{Row: 1})

	rec := env.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/save", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "disk full") {
		t.Errorf("error should be reported, got %s", rec.Body.String())
	}

	snap, _ := env.server.sessions.Snapshot(opened.ID)
	if snap.State != "showing" || snap.ClosedAt != nil {
		t.Error("dialog should stay open after a write error")
	}
}

func TestServiceErrorMessage(t *testing.T) {
	p := &fakeProvider{err: &metadata.ServiceError{Op: "fake search", Err: errors.New("connection refused")}}
	env := newTestEnv(t, p)
	env.tracks["b.flac"] = track.NewMemory(nil)

	opened := env.openSession(t, "b.flac")
	snap := env.waitForState(t, opened.ID, "error")

	if len(snap.Rows) != 0 {
		t.Errorf("no rows should be shown, got %d", len(snap.Rows))
	}
	if snap.Message != "Error, getting tracks suggestions. \nPlease, check your connection and try again." {
		t.Errorf("unexpected message %q", snap.Message)
	}
}

func TestSelectOutOfRange(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{cands: museCandidates()})
	env.tracks["b.flac"] = track.NewMemory(nil)

	opened := env.openSession(t, "b.flac")
	env.waitForState(t, opened.ID, "showing")

	rec := env.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/select", SelectRequest{Row: 5})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCloseCancelsFetch(t *testing.T) {
	p := &fakeProvider{cands: museCandidates(), gate: make(chan struct{})}
	env := newTestEnv(t, p)
	env.tracks["b.flac"] = track.NewMemory(nil)

	opened := env.openSession(t, "b.flac")
	if opened.State != "loading" {
		t.Fatalf("expected loading, got %s", opened.State)
	}

	rec := env.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/close", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close: status %d", rec.Code)
	}
	closed := decodeSession(t, rec)
	if closed.State != "idle" || closed.ClosedAt == nil {
		t.Errorf("expected closed idle session, got %+v", closed)
	}

	// The cancelled fetch must not repopulate the rows.
	close(p.gate)
	time.Sleep(50 * time.Millisecond)
	snap, _ := env.server.sessions.Snapshot(opened.ID)
	if snap.State != "idle" || len(snap.Rows) != 0 {
		t.Errorf("stale result leaked into closed session: %s, %d rows", snap.State, len(snap.Rows))
	}
}

func TestSearchAgain(t *testing.T) {
	p := &fakeProvider{cands: museCandidates()}
	env := newTestEnv(t, p)
	env.tracks["b.flac"] = track.NewMemory(map[string][]string{track.Album: {"Absolution"}})

	opened := env.openSession(t, "b.flac")
	env.waitForState(t, opened.ID, "showing")

	rec := env.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/search", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: status %d", rec.Code)
	}
	env.waitForState(t, opened.ID, "showing")

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queries) != 2 {
		t.Fatalf("expected 2 searches, got %d", len(p.queries))
	}
	for _, q := range p.queries {
		if q != "release:(Absolution)" {
			t.Errorf("unexpected query %q", q)
		}
	}
}

func TestOpenSessionValidation(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"missing path", `{"path":""}`, http.StatusBadRequest},
		{"outside library", `{"path":"../secret.mp3"}`, http.StatusBadRequest},
		{"not audio", `{"path":"notes.txt"}`, http.StatusBadRequest},
		{"unknown track", `{"path":"missing.mp3"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			env.server.Router().ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestSessionNotFound(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	for _, path := range []string{"/api/sessions/missing", "/api/sessions/missing/save"} {
		method := http.MethodGet
		if strings.HasSuffix(path, "save") {
			method = http.MethodPost
		}
		rec := env.do(t, method, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", method, path, rec.Code)
		}
	}
}

func TestListSessions(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{cands: museCandidates()})
	env.tracks["b.flac"] = track.NewMemory(nil)
	env.tracks["muse/stockholm.mp3"] = track.NewMemory(nil)

	env.openSession(t, "b.flac")
	env.openSession(t, "muse/stockholm.mp3")

	rec := env.do(t, http.MethodGet, "/api/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var list []SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0].Path != "muse/stockholm.mp3" {
		t.Errorf("expected newest session first, got %s", list[0].Path)
	}
}

func TestWebSocketPushesUpdates(t *testing.T) {
	p := &fakeProvider{cands: museCandidates(), gate: make(chan struct{})}
	env := newTestEnv(t, p)
	env.tracks["b.flac"] = track.NewMemory(nil)

	srv := httptest.NewServer(env.server.Router())
	defer srv.Close()

	opened := env.openSession(t, "b.flac")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session_id=" + opened.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() SessionResponse {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var snap SessionResponse
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read: %v", err)
		}
		return snap
	}

	if first := read(); first.State != "loading" {
		t.Fatalf("initial state = %s, want loading", first.State)
	}

	close(p.gate)
	if next := read(); next.State != "showing" || len(next.Rows) != 2 {
		t.Errorf("expected showing with 2 rows, got %s with %d", next.State, len(next.Rows))
	}

	env.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/close", nil)
	if last := read(); last.State != "idle" || last.ClosedAt == nil {
		t.Errorf("expected closed session, got %s", last.State)
	}
}

func TestWebSocketRequiresSession(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	rec := env.do(t, http.MethodGet, "/ws", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing session_id: expected 400, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/ws?session_id=missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", rec.Code)
	}
}

// blockingTrack holds WriteTags until release is closed.
type blockingTrack struct {
	*track.Memory
	started chan struct{}
	release chan struct{}
}

func (b *blockingTrack) WriteTags() error {
	close(b.started)
	<-b.release
	return b.Memory.WriteTags()
}

func TestSaveDoesNotBlockOtherRequests(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{cands: museCandidates()})
	bt := &blockingTrack{
		Memory:  track.NewMemory(nil),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	other := track.NewMemory(nil)
	env.server.openTrack = func(path string) (track.Track, error) {
		if strings.HasSuffix(path, "b.flac") {
			return bt, nil
		}
		return other, nil
	}

	opened := env.openSession(t, "b.flac")
	second := env.openSession(t, "muse/stockholm.mp3")
	env.waitForState(t, opened.ID, "showing")
	env.waitForState(t, second.ID, "showing")
	env.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/select", SelectRequest{Row: 0})

	saved := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+opened.ID+"/save", nil)
		rec := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rec, req)
		saved <- rec.Code
	}()

	select {
	case <-bt.started:
	case <-time.After(2 * time.Second):
		t.Fatal("save never reached WriteTags")
	}

	listed := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+second.ID, nil)
		rec := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rec, req)
		listed <- rec.Code
	}()

	select {
	case code := <-listed:
		if code != http.StatusOK {
			t.Errorf("get during save: status %d", code)
		}
	case <-time.After(time.Second):
		t.Error("another session blocked behind a tag write")
	}

	close(bt.release)
	select {
	case code := <-saved:
		if code != http.StatusOK {
			t.Errorf("save: status %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("save did not finish")
	}
	if bt.Writes() != 1 {
		t.Errorf("expected one write, got %d", bt.Writes())
	}
}

// syncBuffer is a bytes.Buffer safe for the logger and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCancelledSearchIsNotAnError(t *testing.T) {
	p := &fakeProvider{cands: museCandidates(), gate: make(chan struct{})}
	defer close(p.gate)
	env := newTestEnv(t, p)
	out := &syncBuffer{}
	env.server.logger = logger.NewWithWriter(out, true)
	env.tracks["b.flac"] = track.NewMemory(nil)

	opened := env.openSession(t, "b.flac")
	env.do(t, http.MethodPost, "/api/sessions/"+opened.ID+"/close", nil)

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "cancelled") {
		if time.Now().After(deadline) {
			t.Fatalf("cancelled search was not logged:\n%s", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if strings.Contains(out.String(), "[ERROR]") {
		t.Errorf("cancelled search logged as an error:\n%s", out.String())
	}
}
