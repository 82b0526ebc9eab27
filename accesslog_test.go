package httpproxy

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAccessLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	al := NewAccessLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.Log(AccessEntry{
		Timestamp:    time.Now(),
		Method:       http.MethodGet,
		Origin:       "http://a.example/x",
		Target:       "http://b.example/x",
		Rewrite:      true,
		StatusCode:   200,
		Duration:     12 * time.Millisecond,
		BytesWritten: 512,
		ClientAddr:   "192.0.2.10:4444",
		UserAgent:    "curl/8.0",
	})

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("access line is not JSON: %v", err)
	}
	if record["msg"] != "access" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["origin"] != "http://a.example/x" {
		t.Errorf("origin = %v", record["origin"])
	}
	if record["rewrite"] != true {
		t.Errorf("rewrite = %v", record["rewrite"])
	}
	if record["status"] != float64(200) {
		t.Errorf("status = %v", record["status"])
	}
	if record["user_agent"] != "curl/8.0" {
		t.Errorf("user_agent = %v", record["user_agent"])
	}
	if _, present := record["error"]; present {
		t.Error("error field present on a successful entry")
	}
}

func TestAccessLogger_ErrorField(t *testing.T) {
	var buf bytes.Buffer
	al := NewAccessLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.Log(AccessEntry{
		Method: http.MethodGet,
		Origin: "http://a.example/x",
		Error:  "connection refused",
	})

	if !strings.Contains(buf.String(), "connection refused") {
		t.Errorf("error missing from entry: %s", buf.String())
	}
}

func TestAccessLogger_WiredIntoForwarding(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer backend.Close()

	var buf bytes.Buffer
	p := newTestProxy(t)
	p.AccessLog = NewAccessLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	_ = p.Rules.AddRule(Rule{Match: "http://a.example/(.*)", Proxy: backend.URL + "/{1}"})

	req := proxyRequest(t, http.MethodGet, "http://a.example/x")
	rec := httptest.NewRecorder()
	p.handleHTTP(rec, req)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("no access entry written: %v (buf=%q)", err, buf.String())
	}
	if record["origin"] != "http://a.example/x" {
		t.Errorf("origin = %v", record["origin"])
	}
	if record["rewrite"] != true {
		t.Errorf("rewrite = %v", record["rewrite"])
	}
	if record["bytes"] != float64(len("hello")) {
		t.Errorf("bytes = %v", record["bytes"])
	}
}
