package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/liftcoach/internal/auth"
	"example.com/liftcoach/internal/connectivity"
	"example.com/liftcoach/internal/domain"
	"example.com/liftcoach/internal/kvstore"
	"example.com/liftcoach/internal/outbox"
	"example.com/liftcoach/internal/progress"
	"example.com/liftcoach/internal/session"
)

type stubSender struct {
	err   error
	calls int
}

func (s *stubSender) Do(context.Context, domain.Action) (json.RawMessage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(`{"ok":true}`), nil
}

type stubPrefiller struct {
	got domain.Exercise
}

func (s *stubPrefiller) Prefill(_ context.Context, ex domain.Exercise) progress.Prefill {
	s.got = ex
	return progress.Prefill{Weight: 80, Reps: 6, RIR: 2, Found: true}
}

type fixture struct {
	handler  *Handler
	mux      *http.ServeMux
	sender   *stubSender
	monitor  *connectivity.Monitor
	queue    *outbox.Queue
	prefills *stubPrefiller
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	kv := kvstore.NewMemory()
	queue := outbox.NewQueue(kv, outbox.WithQueueLogger(quiet))
	sender := &stubSender{}
	monitor := connectivity.NewMonitor(online)
	dispatcher := outbox.NewDispatcher(queue, sender, outbox.WithConnectivity(monitor), outbox.WithLogger(quiet))
	prefills := &stubPrefiller{}

	handler := NewHandler(dispatcher, queue, prefills, session.NewStore(kv, "U001", "W-20261017"), monitor)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return &fixture{handler: handler, mux: mux, sender: sender, monitor: monitor, queue: queue, prefills: prefills}
}

func claimsWith(scopes ...string) *auth.Claims {
	claims := &auth.Claims{
		Subject:   "ui",
		Scopes:    map[string]struct{}{},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	for _, scope := range scopes {
		claims.Scopes[scope] = struct{}{}
	}
	return claims
}

// do sends a JSON request as a caller holding the write scope.
func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return f.serve(req, claimsWith(auth.ScopeSetsWrite))
}

func (f *fixture) serve(req *http.Request, claims *auth.Claims) *httptest.ResponseRecorder {
	if claims != nil {
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

var squat = &domain.Exercise{
	ID:           "EX0301",
	Name:         "Hack Squat",
	BodypartUI:   "Quads",
	Pattern:      "Squat",
	RangeType:    "Long",
	EquipmentCat: "Machine",
	TargetRepMin: 6,
	TargetRepMax: 10,
}

func TestSaveSetDelivered(t *testing.T) {
	f := newFixture(t, true)

	rr := f.do(t, http.MethodPost, "/v1/sets", SaveSetRequest{Exercise: squat, Weight: 100, Reps: 8, RIR: 2})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp SaveSetResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "delivered" || resp.SetNo != 1 || resp.NextSetNo != 2 || resp.Pending != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !strings.HasPrefix(resp.SetID, "S-") {
		t.Fatalf("unexpected set id %q", resp.SetID)
	}

	// The session remembers the exercise, so the next set needs no exercise.
	rr = f.do(t, http.MethodPost, "/v1/sets", SaveSetRequest{Weight: 100, Reps: 7, RIR: 1})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SetNo != 2 {
		t.Fatalf("expected set_no 2 got %d", resp.SetNo)
	}
	if f.sender.calls != 2 {
		t.Fatalf("expected 2 remote calls got %d", f.sender.calls)
	}
}

func TestSaveSetQueuedOffline(t *testing.T) {
	f := newFixture(t, false)

	rr := f.do(t, http.MethodPost, "/v1/sets", SaveSetRequest{Exercise: squat, Weight: 100, Reps: 8})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp SaveSetResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "queued" || resp.Reason != outbox.SkipOffline || resp.Pending != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if f.sender.calls != 0 {
		t.Fatalf("expected no remote calls got %d", f.sender.calls)
	}
}

func TestSaveSetValidation(t *testing.T) {
	f := newFixture(t, true)

	rr := f.do(t, http.MethodPost, "/v1/sets", SaveSetRequest{Exercise: squat, Weight: 0, Reps: 8})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "validation_failed") {
		t.Fatalf("expected validation_failed body, got %s", rr.Body.String())
	}
	if f.queue.Len(context.Background()) != 0 || f.sender.calls != 0 {
		t.Fatalf("validation failure must not touch queue or network")
	}

	rr = f.do(t, http.MethodPost, "/v1/sets", SaveSetRequest{Weight: 50, Reps: 8})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a selected exercise, got %d", rr.Code)
	}
}

func TestQueueAndSync(t *testing.T) {
	f := newFixture(t, false)
	f.sender.err = errors.New("unreachable")

	f.do(t, http.MethodPost, "/v1/sets", SaveSetRequest{Exercise: squat, Weight: 100, Reps: 8})
	f.do(t, http.MethodPost, "/v1/sets", SaveSetRequest{Weight: 100, Reps: 7})

	rr := f.do(t, http.MethodGet, "/v1/queue", nil)
	var queued QueueResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &queued); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if queued.Pending != 2 || queued.Online || queued.Entries[1].SetNo != 2 || queued.Entries[0].ExerciseName != "Hack Squat" {
		t.Fatalf("unexpected queue %+v", queued)
	}

	rr = f.do(t, http.MethodPost, "/v1/sync", nil)
	var skipped SyncResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &skipped); err != nil {
		t.Fatalf("decode sync: %v", err)
	}
	if !skipped.Skipped || skipped.SkipReason != outbox.SkipOffline || skipped.Pending != 2 {
		t.Fatalf("expected offline skip, got %+v", skipped)
	}

	f.monitor.Set(true)
	f.sender.err = nil
	rr = f.do(t, http.MethodPost, "/v1/sync", nil)
	var synced SyncResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &synced); err != nil {
		t.Fatalf("decode sync: %v", err)
	}
	if synced.Delivered != 2 || synced.Pending != 0 {
		t.Fatalf("expected both entries delivered, got %+v", synced)
	}
}

func TestPrefill(t *testing.T) {
	f := newFixture(t, true)

	rr := f.do(t, http.MethodGet, "/v1/prefill?bodypart_ui=Quads&pattern=Squat&range_type=Long&equipment_cat=Machine", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp PrefillResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode prefill: %v", err)
	}
	if resp.ProgressKey != "Quads|Squat|Long|Machine" || !resp.Prefill.Found || resp.Prefill.Weight != 80 {
		t.Fatalf("unexpected prefill %+v", resp)
	}
	if f.prefills.got.ProgressKey() != resp.ProgressKey {
		t.Fatalf("prefill looked up %q", f.prefills.got.ProgressKey())
	}

	rr = f.do(t, http.MethodGet, "/v1/prefill?bodypart_ui=Quads", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, true)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/sets"},
		{http.MethodPost, "/v1/queue"},
		{http.MethodGet, "/v1/sync"},
		{http.MethodPost, "/v1/prefill"},
	} {
		rr := f.do(t, tc.method, tc.path, nil)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected 405 got %d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, true)
	rr := f.do(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected healthz response %d %q", rr.Code, rr.Body.String())
	}
}

func TestSaveSetRequiresJSONContentType(t *testing.T) {
	f := newFixture(t, true)

	for _, contentType := range []string{"text/plain", "text/plain;charset=UTF-8", "application/x-www-form-urlencoded", ""} {
		req := httptest.NewRequest(http.MethodPost, "/v1/sets", strings.NewReader(`{"exercise":{"exercise_id":"EX0301","bodypart_ui":"Quads","pattern":"Squat"},"weight":100,"reps":8}`))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		rr := f.serve(req, claimsWith(auth.ScopeSetsWrite))
		if rr.Code != http.StatusUnsupportedMediaType {
			t.Fatalf("%q: expected 415 got %d: %s", contentType, rr.Code, rr.Body.String())
		}
	}
	if f.sender.calls != 0 || f.queue.Len(context.Background()) != 0 {
		t.Fatalf("rejected bodies must not reach the outbox")
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/sets", strings.NewReader(`{"weight":100,"reps":8}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if rr := f.serve(req, claimsWith(auth.ScopeSetsWrite)); rr.Code == http.StatusUnsupportedMediaType {
		t.Fatalf("json with charset must be accepted")
	}
}

func TestRoutesRequireScopes(t *testing.T) {
	f := newFixture(t, false)

	for _, tc := range []struct {
		name   string
		method string
		path   string
		claims *auth.Claims
		want   int
	}{
		{"no claims save", http.MethodPost, "/v1/sets", nil, http.StatusUnauthorized},
		{"no claims queue", http.MethodGet, "/v1/queue", nil, http.StatusUnauthorized},
		{"read only save", http.MethodPost, "/v1/sets", claimsWith(auth.ScopeSetsRead), http.StatusForbidden},
		{"read only sync", http.MethodPost, "/v1/sync", claimsWith(auth.ScopeSetsRead), http.StatusForbidden},
		{"read only queue", http.MethodGet, "/v1/queue", claimsWith(auth.ScopeSetsRead), http.StatusOK},
		{"read only session", http.MethodGet, "/v1/session", claimsWith(auth.ScopeSetsRead), http.StatusOK},
		{"no scopes prefill", http.MethodGet, "/v1/prefill?bodypart_ui=Quads&pattern=Squat", claimsWith(), http.StatusForbidden},
		{"healthz without claims", http.MethodGet, "/healthz", nil, http.StatusOK},
	} {
		var body io.Reader
		if tc.method == http.MethodPost {
			body = strings.NewReader(`{"weight":100,"reps":8}`)
		}
		req := httptest.NewRequest(tc.method, tc.path, body)
		req.Header.Set("Content-Type", "application/json")
		rr := f.serve(req, tc.claims)
		if rr.Code != tc.want {
			t.Fatalf("%s: expected %d got %d: %s", tc.name, tc.want, rr.Code, rr.Body.String())
		}
	}
	if f.sender.calls != 0 || f.queue.Len(context.Background()) != 0 {
		t.Fatalf("unauthorised requests must not reach the outbox")
	}
}
