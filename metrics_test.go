package httpproxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest(http.MethodGet, modeForward)
	m.RecordRequest(http.MethodGet, modeForward)
	m.RecordRequest(http.MethodGet, modeWelcome)
	m.RecordRewrite()
	m.RecordError(500)
	m.RecordUpstreamError("b.example:8080")
	m.SetRuleCount(4)

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodGet, modeForward)); got != 2 {
		t.Errorf("forward requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.rewritesTotal); got != 1 {
		t.Errorf("rewrites = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal.WithLabelValues("500")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ruleCount); got != 4 {
		t.Errorf("rule count = %v, want 4", got)
	}
}

func TestMetrics_TunnelGauge(t *testing.T) {
	m := NewMetrics()

	m.RecordTunnel()
	m.IncActiveTunnels()
	m.IncActiveTunnels()
	m.DecActiveTunnels()

	if got := testutil.ToFloat64(m.activeTunnels); got != 1 {
		t.Errorf("active tunnels = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.tunnelsTotal); got != 1 {
		t.Errorf("tunnels = %v, want 1", got)
	}
}

func TestMetrics_Exposition(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest(http.MethodGet, modeForward)
	m.RecordRequestDuration(http.MethodGet, 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"httpproxy_requests_total",
		"httpproxy_request_duration_seconds",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestMetrics_ServedFromProxy(t *testing.T) {
	p := newTestProxy(t)
	p.Metrics = NewMetrics()
	srv := httptest.NewServer(p)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
