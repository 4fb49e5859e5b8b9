package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"voice-summary/internal/domain"
	"voice-summary/internal/infra/web"
)

type mockRunner struct {
	mu      sync.Mutex
	summary string
	err     error
	calls   int
	active  int
	overlap bool
	delay   time.Duration
}

func (m *mockRunner) Cycle(_ context.Context) (*domain.Cycle, error) {
	m.mu.Lock()
	m.calls++
	m.active++
	if m.active > 1 {
		m.overlap = true
	}
	m.mu.Unlock()

	time.Sleep(m.delay)

	m.mu.Lock()
	m.active--
	m.mu.Unlock()

	cycle := &domain.Cycle{ID: "01HZX3JQ2M6V4Y8N5T7R9K0ABC"}
	if m.err != nil {
		return cycle, m.err
	}
	cycle.Summary = m.summary
	return cycle, nil
}

func newServer(runner web.CycleRunner, limiter *web.RateLimiter) *web.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return web.NewServer(":0", runner, limiter, logger)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestServer_FactCheckSuccess(t *testing.T) {
	summary := "  <b>Ship</b> on Monday & notify QA.\n"
	handler := newServer(&mockRunner{summary: summary}, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/fact_check", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code: got %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: got %q", ct)
	}
	if rec.Header().Get("X-Cycle-ID") == "" {
		t.Error("X-Cycle-ID header missing")
	}

	body := decode(t, rec)
	if body["response"] != summary {
		t.Errorf("response: got %q, want %q", body["response"], summary)
	}
	if _, ok := body["error"]; ok {
		t.Error("success body must not carry an error field")
	}
}

func TestServer_FactCheckErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "no text",
			err:        domain.ErrNoText,
			wantStatus: http.StatusBadRequest,
			wantError:  "No text provided",
		},
		{
			name:       "unintelligible",
			err:        fmt.Errorf("transcribing: %w", domain.ErrUnintelligible),
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "Sorry, I could not understand the audio.",
		},
		{
			name:       "request error",
			err:        fmt.Errorf("transcribing: %w", domain.NewRequestError("Google Speech Recognition", errors.New("timeout"))),
			wantStatus: http.StatusBadGateway,
			wantError:  "Could not request results from Google Speech Recognition service; timeout",
		},
		{
			name:       "other",
			err:        errors.New("espeak crashed"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "An error occurred: espeak crashed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newServer(&mockRunner{err: tt.err}, nil).Handler()

			req := httptest.NewRequest(http.MethodPost, "/fact_check", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status code: got %d, want %d", rec.Code, tt.wantStatus)
			}

			body := decode(t, rec)
			if body["error"] != tt.wantError {
				t.Errorf("error: got %q, want %q", body["error"], tt.wantError)
			}
			if _, ok := body["response"]; ok {
				t.Error("error body must not carry a response field")
			}
		})
	}
}

func TestServer_FactCheckRejectsGet(t *testing.T) {
	runner := &mockRunner{summary: "x"}
	handler := newServer(runner, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/fact_check", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status code: got %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if runner.calls != 0 {
		t.Error("cycle must not run for GET")
	}
}

func TestServer_Index(t *testing.T) {
	handler := newServer(&mockRunner{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code: got %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "/fact_check") {
		t.Error("index page should post to /fact_check")
	}

	req = httptest.NewRequest(http.MethodGet, "/missing", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestServer_SerializesCycles(t *testing.T) {
	runner := &mockRunner{summary: "ok", delay: 20 * time.Millisecond}
	handler := newServer(runner, nil).Handler()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/fact_check", nil)
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	if runner.calls != 4 {
		t.Errorf("calls: got %d, want 4", runner.calls)
	}
	if runner.overlap {
		t.Error("cycles must not overlap")
	}
}

func postFrom(handler http.Handler, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/fact_check", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestServer_RateLimit(t *testing.T) {
	handler := newServer(&mockRunner{summary: "ok"}, web.NewRateLimiter(2, time.Minute, false)).Handler()

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		// a fresh X-Forwarded-For per request must not reset the limit
		forwarded := fmt.Sprintf("203.0.113.%d", i+1)
		if got := postFrom(handler, "192.0.2.10:40000", forwarded); got != want[i] {
			t.Errorf("request %d: got %d, want %d", i, got, want[i])
		}
	}

	if got := postFrom(handler, "192.0.2.11:40000", ""); got != http.StatusOK {
		t.Errorf("other client: got %d, want %d", got, http.StatusOK)
	}
}

func TestServer_RateLimitBehindTrustedProxy(t *testing.T) {
	handler := newServer(&mockRunner{summary: "ok"}, web.NewRateLimiter(1, time.Minute, true)).Handler()

	if got := postFrom(handler, "10.0.0.1:40000", "203.0.113.7, 10.0.0.1"); got != http.StatusOK {
		t.Errorf("first request: got %d", got)
	}
	if got := postFrom(handler, "10.0.0.1:40000", "203.0.113.7"); got != http.StatusTooManyRequests {
		t.Errorf("same client: got %d, want %d", got, http.StatusTooManyRequests)
	}
	if got := postFrom(handler, "10.0.0.1:40000", "198.51.100.1"); got != http.StatusOK {
		t.Errorf("other client via proxy: got %d, want %d", got, http.StatusOK)
	}
}

func TestServer_StartStop(t *testing.T) {
	server := web.NewServer("127.0.0.1:0", &mockRunner{summary: "hello"}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer server.Stop()

	resp, err := http.Post("http://"+server.Addr()+"/fact_check", "application/json", nil)
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body["response"] != "hello" {
		t.Errorf("response: got %q", body["response"])
	}

	health, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("health: got %d", health.StatusCode)
	}

	if err := server.Stop(); err != nil {
		t.Errorf("Stop error: %v", err)
	}
}
