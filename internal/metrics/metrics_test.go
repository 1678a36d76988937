package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCountersAndHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.Scans.WithLabelValues("ok").Inc()
	m.VenueFetchFailures.WithLabelValues("kalshi").Add(2)
	m.MatchedPairs.Set(5)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	for _, want := range []string{
		`mirrorarb_scans_total{outcome="ok"} 1`,
		"mirrorarb_matched_pairs 5",
		`mirrorarb_venue_fetch_failures_total{venue="kalshi"} 2`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
