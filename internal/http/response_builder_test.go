package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carlog/internal/core"
)

func TestResponseBuilderTriggers(t *testing.T) {
	rr := httptest.NewRecorder()
	NewResponse().
		Status(http.StatusCreated).
		TriggerRecordsChanged(3, 12).
		TriggerFormReset().
		HTML("<tr></tr>").
		Write(rr)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type %q", ct)
	}
	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rr.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("trigger header: %v", err)
	}
	if string(triggers["records:changed"]) != `{"count":12,"revision":3}` {
		t.Fatalf("unexpected trigger %s", triggers["records:changed"])
	}
	if _, ok := triggers["form:reset"]; !ok {
		t.Fatalf("missing form:reset")
	}
}

func TestErrorResponses(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorJSON(http.StatusUnprocessableEntity, "invalid entry", map[string]string{"amount": "is required"}).Write(rr)
	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rr.Code != 422 || body.Fields["amount"] != "is required" {
		t.Fatalf("unexpected error body %+v", body)
	}

	rr = httptest.NewRecorder()
	ErrorHTML(http.StatusBadGateway, `<script>quota</script>`).Write(rr)
	if strings.Contains(rr.Body.String(), "<script>") {
		t.Fatalf("message must be escaped: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "show-notification") {
		t.Fatalf("missing notification trigger")
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0,00"},
		{450, "4,50"},
		{123456, "1.234,56"},
		{-100000050, "-1.000.000,50"},
	}
	for _, tt := range tests {
		if got := formatMoney(core.Money{Cents: tt.cents}); got != tt.want {
			t.Fatalf("formatMoney(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}
