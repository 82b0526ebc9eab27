package httpproxy

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	return resp
}

func TestHealth_LivenessFlips(t *testing.T) {
	h := NewHealthChecker()

	rec := httptest.NewRecorder()
	h.HandleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status before SetAlive = %d, want 503", rec.Code)
	}

	h.SetAlive(true)
	rec = httptest.NewRecorder()
	h.HandleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status after SetAlive = %d, want 200", rec.Code)
	}
	if resp := decodeHealth(t, rec); resp.Status != "ok" {
		t.Errorf("status field = %q", resp.Status)
	}
}

func TestHealth_ReadinessChecks(t *testing.T) {
	h := NewHealthChecker()
	h.SetAlive(true)
	h.SetReady(true)

	var checkErr error
	h.ReadinessChecks = append(h.ReadinessChecks, func() error { return checkErr })

	rec := httptest.NewRecorder()
	h.HandleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	checkErr = errors.New("no rules loaded")
	rec = httptest.NewRecorder()
	h.HandleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if len(resp.Details) != 1 || resp.Details[0] != "no rules loaded" {
		t.Errorf("details = %v", resp.Details)
	}
	if h.IsReady() {
		t.Error("IsReady() = true with a failing check")
	}
}

func TestHealth_NotReadyBeforeStart(t *testing.T) {
	h := NewHealthChecker()

	rec := httptest.NewRecorder()
	h.HandleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Status != "not ready" {
		t.Errorf("status field = %q", resp.Status)
	}
}
