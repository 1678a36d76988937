package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/mirrorarb/internal/metrics"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

type countingLimiter struct {
	max  int
	seen map[string]int
	err  error
}

func (l *countingLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.seen == nil {
		l.seen = map[string]int{}
	}
	l.seen[key]++
	return l.seen[key] <= l.max, nil
}

func TestAuth(t *testing.T) {
	t.Parallel()

	h := Auth("k1", "/api/health")(okHandler)
	tests := []struct {
		name   string
		path   string
		header string
		value  string
		want   int
	}{
		{"public path", "/api/health", "", "", http.StatusOK},
		{"missing", "/api/x", "", "", http.StatusUnauthorized},
		{"bearer", "/api/x", "Authorization", "Bearer k1", http.StatusOK},
		{"api key header", "/api/x", "X-API-Key", "k1", http.StatusOK},
		{"wrong", "/api/x", "X-API-Key", "k2", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRateLimitPerClient(t *testing.T) {
	t.Parallel()

	lim := &countingLimiter{max: 2}
	h := RateLimit(lim, 2, time.Minute, discard)(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
	if lim.seen["ratelimit:api:10.0.0.1"] != 3 {
		t.Errorf("limiter keys = %v", lim.seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if !strings.Contains(rec.Body.String(), `"error":"rate limit exceeded"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	t.Parallel()

	h := RateLimit(&countingLimiter{err: errors.New("redis down")}, 1, time.Minute, discard)(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	h := CORS([]string{"http://app.local"})(okHandler)
	req := httptest.NewRequest(http.MethodOptions, "/api/x", nil)
	req.Header.Set("Origin", "http://app.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.local" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("Allow-Methods = %q", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	t.Parallel()

	h := CORS([]string{"http://app.local"})(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestLoggingAndMetricsShareRecorder(t *testing.T) {
	t.Parallel()

	var wrapped []http.ResponseWriter
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped = append(wrapped, w)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})
	mux := http.NewServeMux()
	mux.Handle("GET /api/x", inner)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := metrics.New()
	h := Logging(logger)(Metrics(m)(mux))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))

	if len(wrapped) != 1 {
		t.Fatalf("handler calls = %d, want 1", len(wrapped))
	}
	if _, ok := wrapped[0].(*statusRecorder); !ok {
		t.Fatalf("handler writer = %T, want *statusRecorder", wrapped[0])
	}
	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if want := `mirrorarb_http_requests_total{code="418",route="GET /api/x"} 1`; !strings.Contains(scrape.Body.String(), want) {
		t.Errorf("metrics output missing %s", want)
	}
	line := logs.String()
	for _, want := range []string{`"level":"WARN"`, `"status":418`, `"bytes":5`, `"route":"GET /api/x"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log %q missing %s", line, want)
		}
	}
}

func TestLoggingQuietPath(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := Logging(logger, "/api/health")(okHandler)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if logs.Len() != 0 {
		t.Errorf("health probe logged at info: %s", logs.String())
	}
}
