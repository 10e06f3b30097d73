package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"carlog/internal/app"
	"carlog/internal/core"
	"carlog/internal/filter"
	applog "carlog/internal/log"
	appmetrics "carlog/internal/metrics"
	"carlog/internal/middleware/ratelimit"
	"carlog/internal/sheets/memory"
)

type flakyStore struct {
	*memory.Store
	loadErr, saveErr error
}

func (f *flakyStore) Load(ctx context.Context) ([]core.Record, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.Store.Load(ctx)
}

func (f *flakyStore) Save(ctx context.Context, records []core.Record) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.Save(ctx, records)
}

func fuelRecord(day int, odo int64, liters string, cents int64, fill core.FillType) core.Record {
	return core.Record{
		Date:        core.NewDate(2025, 3, day),
		Odometer:    odo,
		Category:    core.Fuel,
		Amount:      core.Money{Cents: cents},
		Description: "Fuel purchase",
		Volume:      decimal.RequireFromString(liters),
		Fill:        fill,
	}
}

func seedRecords() []core.Record {
	return []core.Record{
		fuelRecord(1, 1000, "40", 6000, core.FillFull),
		fuelRecord(10, 1400, "20", 3000, core.FillPartial),
		fuelRecord(20, 1800, "30", 4500, core.FillFull),
		{Date: core.NewDate(2025, 3, 5), Category: core.Tolls, Amount: core.Money{Cents: 1200}, Description: "bridge", Installments: 1},
	}
}

type testServer struct {
	*Server
	store *flakyStore
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	store := &flakyStore{Store: memory.New(seedRecords()...)}
	m := appmetrics.NewWithRegistry(prometheus.NewRegistry())
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	state := app.New(app.Config{Store: store, StoreName: "memory", Metrics: m, Logger: quiet})
	if err := state.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	opts.Metrics = m
	opts.Logger = applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard})
	srv := NewServer(":0", state, opts)
	srv.now = func() time.Time { return time.Date(2025, 3, 25, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { srv.limiter.Stop() })
	return &testServer{Server: srv, store: store}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	return rr
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func postForm(path string, v url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestIndexHealthAndHeaders(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := srv.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Vehicle log", "bridge", "6,25", "Monthly fuel spending", "<td>2025-03</td><td>135,00</td>"} {
		if !strings.Contains(body, want) {
			t.Fatalf("index body missing %q", want)
		}
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}

	for _, path := range []string{"/healthz", "/readyz", "/static/style.css"} {
		if rr := srv.do(t, httptest.NewRequest(http.MethodGet, path, nil)); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
	if rr := srv.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil)); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
}

func TestReadyzReportsLoadFailure(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.store.loadErr = errors.New("quota exceeded")

	rr := srv.do(t, httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("reload status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "quota exceeded") {
		t.Fatalf("store message should be surfaced: %s", rr.Body.String())
	}
	if rr := srv.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
	// the dashboard still renders with the error banner
	rr = srv.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "could not be loaded") {
		t.Fatalf("index after failed load: %d", rr.Code)
	}
}

func TestReadyzProbe(t *testing.T) {
	srv := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("broker unreachable") }})
	if rr := srv.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
}

func TestFuelEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/fuel", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	v := decode[analysisView](t, rr)
	if v.Status != "ok" || len(v.Trips) != 1 {
		t.Fatalf("unexpected analysis %+v", v)
	}
	trip := v.Trips[0]
	if trip.Distance != 800 || !trip.RatePer100.Equal(decimal.RequireFromString("6.25")) {
		t.Fatalf("unexpected trip %+v", trip)
	}
	if !v.Summary.Available || v.Summary.TotalDistance != 800 {
		t.Fatalf("unexpected summary %+v", v.Summary)
	}
}

func TestSpendingEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/spending", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	v := decode[spendingView](t, rr)
	if v.Month != "2025-03" || !v.ThisMonth.Equal(decimal.RequireFromString("147")) {
		t.Fatalf("unexpected spending %+v", v)
	}

	rr = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/spending?year=2025&month=4", nil))
	if v := decode[spendingView](t, rr); v.Month != "2025-04" || !v.ThisMonth.IsZero() {
		t.Fatalf("unexpected april spending %+v", v)
	}

	for _, q := range []string{"month=13", "month=x", "year=12"} {
		if rr := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/spending?"+q, nil)); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rr.Code)
		}
	}
}

func TestListRecordsFilters(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		query string
		want  int
		code  int
	}{
		{"", 4, http.StatusOK},
		{"category=Fuel", 3, http.StatusOK},
		{"category=Fuel,Tolls", 4, http.StatusOK},
		{"from=2025-03-06&to=2025-03-15", 1, http.StatusOK},
		{"q=BRIDGE", 1, http.StatusOK},
		{"category=Boats", 0, http.StatusBadRequest},
		{"from=2025-03-10&to=2025-03-01", 0, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rr := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/records?"+tt.query, nil))
		if rr.Code != tt.code {
			t.Fatalf("%q: status=%d", tt.query, rr.Code)
		}
		if tt.code != http.StatusOK {
			continue
		}
		if got := decode[recordsResponse](t, rr); got.Count != tt.want || len(got.Records) != tt.want {
			t.Fatalf("%q: expected %d records, got %d", tt.query, tt.want, got.Count)
		}
	}
}

func TestCreateRecordJSON(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := srv.do(t, postJSON("/api/records",
		`{"date":"2025-03-22","category":"Parking","amount":"4,50","description":"garage"}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[createdResponse](t, rr)
	if created.Record.Odometer != 1800 {
		t.Fatalf("odometer should default to the latest reading, got %d", created.Record.Odometer)
	}
	if !created.Record.Amount.Equal(decimal.RequireFromString("4.5")) {
		t.Fatalf("unexpected amount %s", created.Record.Amount)
	}
	if srv.store.Saves() != 1 {
		t.Fatalf("expected one save, got %d", srv.store.Saves())
	}
}

func TestCreateRecordRejections(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		name  string
		body  string
		code  int
		field string
	}{
		{"missing amount", `{"date":"2025-03-22","category":"Parking","description":"x"}`, http.StatusUnprocessableEntity, "amount"},
		{"unknown category", `{"date":"2025-03-22","category":"Boats","amount":"1"}`, http.StatusUnprocessableEntity, "category"},
		{"odometer regression", `{"date":"2025-03-22","category":"Fuel","odometer":1500,"amount":"50","volume":"30","fill_type":"Full"}`, http.StatusUnprocessableEntity, ""},
		{"fuel without fill", `{"date":"2025-03-22","category":"Fuel","odometer":1900,"amount":"50","volume":"30"}`, http.StatusUnprocessableEntity, ""},
		{"malformed json", `{"date":`, http.StatusBadRequest, ""},
		{"unknown field", `{"date":"2025-03-22","colour":"red"}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.do(t, postJSON("/api/records", tt.body))
			if rr.Code != tt.code {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			if tt.field == "" {
				return
			}
			body := decode[errorBody](t, rr)
			if _, ok := body.Fields[tt.field]; !ok {
				t.Fatalf("expected field error for %s, got %v", tt.field, body.Fields)
			}
		})
	}
	if srv.store.Saves() != 0 {
		t.Fatalf("rejected entries must not be saved")
	}
}

func TestCreateRecordStoreFailure(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.store.saveErr = errors.New("sheets unavailable")

	rr := srv.do(t, postJSON("/api/records",
		`{"date":"2025-03-22","category":"Parking","amount":"4","description":"garage"}`))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(decode[errorBody](t, rr).Error, "sheets unavailable") {
		t.Fatalf("store error should be reported: %s", rr.Body.String())
	}
	if got := len(srv.state.Records()); got != 4 {
		t.Fatalf("failed commit changed the set: %d records", got)
	}
}

func TestCreateRecordFromForm(t *testing.T) {
	srv := newTestServer(t, Options{})
	form := url.Values{
		"date":        {"2025-03-24"},
		"category":    {"Fuel"},
		"odometer":    {"2200"},
		"amount":      {"55,00"},
		"volume":      {"35,5"},
		"fill_type":   {"Full"},
		"description": {""},
	}

	req := postForm("/api/records", form)
	req.Header.Set("Accept", "text/html")
	rr := srv.do(t, req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	form.Set("odometer", "2600")
	req = postForm("/api/records", form)
	req.Header.Set("HX-Request", "true")
	rr = srv.do(t, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("htmx status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "records:changed") {
		t.Fatalf("missing trigger: %q", rr.Header().Get("HX-Trigger"))
	}
	if !strings.Contains(rr.Body.String(), "2600") {
		t.Fatalf("fragment should contain the new row: %s", rr.Body.String())
	}

	form.Set("odometer", "lots")
	req = postForm("/api/records", form)
	req.Header.Set("HX-Request", "true")
	if rr := srv.do(t, req); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad odometer status=%d", rr.Code)
	}
}

func TestEditRecords(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/records?category=Fuel", nil))
	fuel := decode[recordsResponse](t, rr).Records
	if len(fuel) != 3 {
		t.Fatalf("expected 3 fuel records, got %d", len(fuel))
	}
	// drop the partial fill and correct the last price
	edited := []recordView{fuel[0], fuel[2]}
	edited[1].Amount = decimal.RequireFromString("46")

	body, err := json.Marshal(editRequest{
		Criteria: criteriaView{Categories: []string{"Fuel"}},
		Records:  edited,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rr = srv.do(t, postJSON("/api/records/edit", string(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("edit status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[commitResponse](t, rr); got.Count != 3 {
		t.Fatalf("expected 3 records after edit, got %d", got.Count)
	}

	var total core.Money
	for _, r := range srv.state.Records() {
		if r.Category == core.Fuel {
			total = total.Add(r.Amount)
		}
	}
	if total.Cents != 10600 {
		t.Fatalf("unexpected fuel total %d", total.Cents)
	}
	if got := len(srv.state.Filter(criteriaOf(t, "category=Tolls"))); got != 1 {
		t.Fatalf("unselected records must survive the edit, got %d", got)
	}
}

func TestEditRecordsRejectsInvalid(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		name string
		req  *http.Request
		code int
	}{
		{"not json", postForm("/api/records/edit", url.Values{"x": {"1"}}), http.StatusBadRequest},
		{"bad date", postJSON("/api/records/edit", `{"criteria":{},"records":[{"date":"soon","category":"Fuel"}]}`), http.StatusUnprocessableEntity},
		{"negative odometer", postJSON("/api/records/edit", `{"criteria":{},"records":[{"date":"2025-03-01","category":"Tolls","odometer":-5,"amount":"1","description":"x","installment_count":1,"volume":"0"}]}`), http.StatusUnprocessableEntity},
		{"unbounded installments", postJSON("/api/records/edit", `{"criteria":{"categories":["Insurance"]},"records":[{"date":"2025-03-01","category":"Insurance","amount":"1200","description":"policy","installment_count":1000000000,"volume":"0"}]}`), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := srv.do(t, tt.req); rr.Code != tt.code {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
	if got := len(srv.state.Records()); got != 4 {
		t.Fatalf("rejected edit changed the set: %d", got)
	}
}

func TestRateLimitAppliesToPostsOnly(t *testing.T) {
	srv := newTestServer(t, Options{RateLimit: ratelimit.Config{RequestsPerMinute: 1, Burst: 1}})

	body := `{"date":"2025-03-22","category":"Parking","amount":"4","description":"garage"}`
	if rr := srv.do(t, postJSON("/api/records", body)); rr.Code != http.StatusCreated {
		t.Fatalf("first post status=%d", rr.Code)
	}
	rr := srv.do(t, postJSON("/api/records", body))
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("second post status=%d", rr.Code)
	}
	if rr := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/fuel", nil)); rr.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.do(t, httptest.NewRequest(http.MethodGet, "/api/fuel", nil))

	rr := srv.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	out := rr.Body.String()
	for _, want := range []string{
		`carlog_http_requests_total{code="2xx",route="GET /api/fuel"} 1`,
		`carlog_fuel_analysis_passes_total{status="ok"} 1`,
		`carlog_store_operations_total{op="load",status="ok",store="memory"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics missing %q:\n%s", want, out)
		}
	}
}

func TestTraceRejectsDebugMethods(t *testing.T) {
	srv := newTestServer(t, Options{})
	if rr := srv.do(t, httptest.NewRequest(http.MethodTrace, "/", nil)); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("TRACE status=%d", rr.Code)
	}
}

func criteriaOf(t *testing.T, query string) filter.Criteria {
	t.Helper()
	q, err := url.ParseQuery(query)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	c, err := ParseCriteria(q)
	if err != nil {
		t.Fatalf("criteria: %v", err)
	}
	return c
}
