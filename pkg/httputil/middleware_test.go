package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/practicehub/practicehub/pkg/observability"
)

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.ErrorLevel, &buf)

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/work-items", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", rr.Code)
	}
	if !strings.Contains(buf.String(), "handler exploded") {
		t.Errorf("Log missing panic value: %s", buf.String())
	}
}

func TestRecovery_PassThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.ErrorLevel, &buf)

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusTeapot {
		t.Errorf("Status = %d, want 418", rr.Code)
	}
}

func TestMaxBytes(t *testing.T) {
	handler := MaxBytes(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := ParseJSON(r, &body); err != nil {
			WriteBadRequest(w, "request body too large")
			return
		}
		WriteNoContent(w)
	}))

	small := httptest.NewRequest("POST", "/", strings.NewReader(`{"a":"b"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, small)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Small body status = %d, want 204", rr.Code)
	}

	large := httptest.NewRequest("POST", "/", strings.NewReader(`{"a":"`+strings.Repeat("x", 64)+`"}`))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, large)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Large body status = %d, want 400", rr.Code)
	}
}
