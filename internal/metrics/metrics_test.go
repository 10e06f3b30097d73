package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectors(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.AnalysisPass("ok", 3)
	m.AnalysisPass("ok", 4)
	m.StoreOp("sheets", "load", time.Now(), nil)
	m.StoreOp("sheets", "save", time.Now(), errors.New("boom"))
	m.DecodeIssue("bad_number")
	m.HTTPRequest("/api/fuel", 200)
	m.HTTPRequest("/api/records", 422)

	if got := testutil.ToFloat64(m.analysisPasses.WithLabelValues("ok")); got != 2 {
		t.Fatalf("analysis passes: got %v", got)
	}
	if got := testutil.ToFloat64(m.tripsComputed); got != 4 {
		t.Fatalf("trips gauge: got %v", got)
	}
	if got := testutil.ToFloat64(m.storeOperations.WithLabelValues("sheets", "save", "error")); got != 1 {
		t.Fatalf("store errors: got %v", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/records", "4xx")); got != 1 {
		t.Fatalf("http 4xx: got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.AnalysisPass("ok", 1)
	m.Records(3)
	m.StoreOp("memory", "load", time.Now(), nil)
	m.HTTPRequest("/", 200)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Records(12)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "carlog_records 12") {
		t.Fatalf("expected carlog_records in output:\n%s", body)
	}
}
