// ABOUTME: Tests for HTTP handlers
// ABOUTME: Verifies routing, status codes, and response formats against a real registry
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/harper/radio-nowplaying/internal/application/registry"
	"github.com/harper/radio-nowplaying/internal/domain"
	"github.com/harper/radio-nowplaying/internal/domain/track"
	"github.com/harper/radio-nowplaying/internal/infrastructure/store"
)

type fileCapturer struct{}

func (fileCapturer) Capture(ctx context.Context, stream string, d time.Duration, out string) error {
	return os.WriteFile(out, []byte("clip"), 0o644)
}

type songIdentifier struct{}

func (songIdentifier) Identify(ctx context.Context, sample domain.Sample) (*domain.Track, error) {
	return &domain.Track{Title: "Song A", Artist: "Artist A"}, nil
}

type fixedCovers struct{}

func (fixedCovers) Resolve(ctx context.Context, artist, title string) (string, error) {
	return "http://img/a", nil
}

type fakeStations struct {
	stations []store.Station
	err      error
}

func (f fakeStations) ListStations(ctx context.Context) ([]store.Station, error) {
	return f.stations, f.err
}

func newTestRegistry(t *testing.T, interval time.Duration) *registry.Registry {
	t.Helper()

	log, _ := test.NewNullLogger()
	reg := registry.New(registry.Deps{
		Capturer:   fileCapturer{},
		Identifier: songIdentifier{},
		Covers:     fixedCovers{},
	}, registry.Options{
		ClipLength: time.Millisecond,
		Interval:   interval,
		WorkDir:    t.TempDir(),
	}, log)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reg.Shutdown(ctx)
	})
	return reg
}

func newTestRouter(t *testing.T, reg *registry.Registry, stations StationLister) http.Handler {
	t.Helper()

	log, _ := test.NewNullLogger()
	return NewRouter(RouterConfig{
		Monitors:       reg,
		Stations:       stations,
		AllowedOrigins: []string{"*"},
		WatchInterval:  10 * time.Millisecond,
		Log:            log,
	})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestStartHandler_CreatesThenReportsRunning(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)
	router := newTestRouter(t, reg, nil)

	rec := do(t, router, "POST", "/monitor/start", `{"stream":"http://x/stream","station_name":"Radio X"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var first startResponse
	decode(t, rec, &first)
	if !first.Created || first.Message != "" {
		t.Errorf("unexpected response %+v", first)
	}
	if first.State.Found || first.State.LabelOrEmpty() != "Radio X" {
		t.Errorf("unexpected initial state %+v", first.State)
	}

	rec = do(t, router, "POST", "/monitor/start", `{"stream":"http://x/stream","label":"Other"}`)

	var second startResponse
	decode(t, rec, &second)
	if second.Created {
		t.Error("expected created=false for running monitor")
	}
	if second.Message != "monitor already running" {
		t.Errorf("unexpected message %q", second.Message)
	}
	if second.State.LabelOrEmpty() != "Radio X" {
		t.Errorf("expected existing monitor's label, got %q", second.State.LabelOrEmpty())
	}
}

func TestStartHandler_LabelAlias(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)
	router := newTestRouter(t, reg, nil)

	rec := do(t, router, "POST", "/monitor/start", `{"stream":"http://x/stream","label":"Radio X"}`)

	var resp startResponse
	decode(t, rec, &resp)
	if resp.State.LabelOrEmpty() != "Radio X" {
		t.Errorf("expected label from alias, got %q", resp.State.LabelOrEmpty())
	}
}

func TestStartHandler_BadRequests(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)
	router := newTestRouter(t, reg, nil)

	for _, body := range []string{``, `{}`, `{"stream":"   "}`, `{"stream":`, `[1,2]`} {
		rec := do(t, router, "POST", "/monitor/start", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}

		var resp ErrorResponse
		decode(t, rec, &resp)
		if resp.Code != http.StatusBadRequest || resp.Message == "" {
			t.Errorf("body %q: unexpected error response %+v", body, resp)
		}
	}

	if reg.Count() != 0 {
		t.Errorf("expected no monitors after bad requests, got %d", reg.Count())
	}
}

func TestStartHandler_WrongMethod(t *testing.T) {
	router := newTestRouter(t, newTestRegistry(t, time.Hour), nil)

	rec := do(t, router, "GET", "/monitor/start", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
	if rec.Header().Get("Allow") != "POST" {
		t.Errorf("expected Allow: POST, got %q", rec.Header().Get("Allow"))
	}
}

func TestStopHandler(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)
	router := newTestRouter(t, reg, nil)

	rec := do(t, router, "POST", "/monitor/stop", `{"stream":"http://x/stream"}`)
	var notRunning stopResponse
	decode(t, rec, &notRunning)
	if notRunning.Stopped || notRunning.Message != "not running" {
		t.Errorf("unexpected response %+v", notRunning)
	}

	reg.Start("http://x/stream", "Radio X")

	rec = do(t, router, "POST", "/monitor/stop", `{"stream":"http://x/stream"}`)
	var stopped stopResponse
	decode(t, rec, &stopped)
	if !stopped.Stopped {
		t.Errorf("expected stopped=true, got %+v", stopped)
	}

	if rec := do(t, router, "POST", "/monitor/stop", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing stream, got %d", rec.Code)
	}
}

func TestNowPlayingHandler(t *testing.T) {
	reg := newTestRegistry(t, 5*time.Millisecond)
	router := newTestRouter(t, reg, nil)

	rec := do(t, router, "GET", "/nowplaying?stream=http%3A%2F%2Fx%2Fstream", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// The canonical empty state renders every field as null.
	var raw map[string]interface{}
	decode(t, rec, &raw)
	for _, key := range []string{"title", "artist", "cover", "station_label"} {
		if v, ok := raw[key]; !ok || v != nil {
			t.Errorf("expected %s to be null, got %v", key, v)
		}
	}
	if raw["found"] != false {
		t.Errorf("expected found=false, got %v", raw["found"])
	}

	reg.Start("http://x/stream", "Radio X")

	deadline := time.Now().Add(5 * time.Second)
	for {
		var state track.State
		decode(t, do(t, router, "GET", "/nowplaying?stream=http%3A%2F%2Fx%2Fstream", ""), &state)
		if state.Found {
			if state.TitleOrEmpty() != "Song A" || state.CoverOrEmpty() != "http://img/a" {
				t.Errorf("unexpected state %+v", state)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("monitor never published a track")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNowPlayingHandler_MissingStream(t *testing.T) {
	router := newTestRouter(t, newTestRegistry(t, time.Hour), nil)

	if rec := do(t, router, "GET", "/nowplaying", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if rec := do(t, router, "POST", "/nowplaying?stream=x", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestMonitorsHandler(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)
	router := newTestRouter(t, reg, nil)

	reg.Start("http://b/stream", "B")
	reg.Start("http://a/stream", "A")

	var entries []registry.Entry
	decode(t, do(t, router, "GET", "/monitors", ""), &entries)

	if len(entries) != 2 {
		t.Fatalf("expected 2 monitors, got %d", len(entries))
	}
	if entries[0].Stream != "http://a/stream" || entries[0].State.LabelOrEmpty() != "A" {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
}

func TestStationsHandler(t *testing.T) {
	img := "https://cdn.example.com/x.png"
	stations := fakeStations{stations: []store.Station{
		{ID: "1", Name: "Radio X", Stream: "http://x/stream", Img: &img},
	}}
	router := newTestRouter(t, newTestRegistry(t, time.Hour), stations)

	var result []map[string]interface{}
	decode(t, do(t, router, "GET", "/stations", ""), &result)

	if len(result) != 1 {
		t.Fatalf("expected 1 station, got %d", len(result))
	}
	if result[0]["name"] != "Radio X" || result[0]["img"] != img || result[0]["stream"] != "http://x/stream" {
		t.Errorf("unexpected station %v", result[0])
	}
	if _, ok := result[0]["CreatedAt"]; ok {
		t.Error("expected timestamps to stay out of the response")
	}
}

func TestStationsHandler_Empty(t *testing.T) {
	router := newTestRouter(t, newTestRegistry(t, time.Hour), nil)

	rec := do(t, router, "GET", "/stations", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestStationsHandler_Error(t *testing.T) {
	router := newTestRouter(t, newTestRegistry(t, time.Hour), fakeStations{err: errors.New("db gone")})

	if rec := do(t, router, "GET", "/stations", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestHealthzHandler(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)
	router := newTestRouter(t, reg, nil)
	reg.Start("http://x/stream", "Radio X")

	var resp struct {
		OK       bool `json:"ok"`
		Monitors int  `json:"monitors"`
	}
	decode(t, do(t, router, "GET", "/healthz", ""), &resp)

	if !resp.OK || resp.Monitors != 1 {
		t.Errorf("unexpected health response %+v", resp)
	}
}

func TestCORS(t *testing.T) {
	reg := newTestRegistry(t, time.Hour)
	log, _ := test.NewNullLogger()
	router := NewRouter(RouterConfig{
		Monitors:       reg,
		AllowedOrigins: []string{"https://app.example.com"},
		Log:            log,
	})

	req := httptest.NewRequest("OPTIONS", "/monitor/start", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}

	req = httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header for unknown origin, got %q", got)
	}
}

func TestWatchHandler_PushesChanges(t *testing.T) {
	reg := newTestRegistry(t, 5*time.Millisecond)
	server := httptest.NewServer(newTestRouter(t, reg, nil))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/nowplaying/ws?stream=http%3A%2F%2Fx%2Fstream"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var state track.State
	if err := wsjson.Read(ctx, conn, &state); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if !state.Equal(track.Empty()) {
		t.Errorf("expected empty initial state, got %+v", state)
	}

	reg.Start("http://x/stream", "Radio X")

	for !state.Found {
		if err := wsjson.Read(ctx, conn, &state); err != nil {
			t.Fatalf("read update: %v", err)
		}
		if !state.Valid() {
			t.Fatalf("pushed inconsistent state %+v", state)
		}
	}

	if state.TitleOrEmpty() != "Song A" || state.LabelOrEmpty() != "Radio X" {
		t.Errorf("unexpected pushed state %+v", state)
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

func TestWatchHandler_MissingStream(t *testing.T) {
	router := newTestRouter(t, newTestRegistry(t, time.Hour), nil)

	if rec := do(t, router, "GET", "/nowplaying/ws", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
