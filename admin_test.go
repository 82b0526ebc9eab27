package httpproxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestAdmin(t *testing.T) (*AdminAPI, *Proxy) {
	t.Helper()
	p := newTestProxy(t)
	return NewAdminAPI(p), p
}

func adminDo(t *testing.T, a *AdminAPI, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)
	return rec
}

func TestAdmin_Status(t *testing.T) {
	a, p := newTestAdmin(t)
	_ = p.Rules.AddRule(Rule{Match: "http://a.example/(.*)", Proxy: "http://b.example/{1}"})

	rec := adminDo(t, a, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.RuleCount != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAdmin_AddAndListRules(t *testing.T) {
	a, p := newTestAdmin(t)

	rec := adminDo(t, a, http.MethodPost, "/api/rules",
		`{"match":"http://a.example/(.*)","proxy":"http://b.example/{1}","headers":{"x-k":"v"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if p.Rules.Len() != 1 {
		t.Fatalf("registry len = %d", p.Rules.Len())
	}

	rec = adminDo(t, a, http.MethodGet, "/api/rules", "")
	var resp RulesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || len(resp.Rules) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	r := resp.Rules[0]
	if r.Match != "http://a.example/(.*)" || r.Proxy != "http://b.example/{1}" || r.Headers["x-k"] != "v" {
		t.Errorf("listed rule = %+v", r)
	}
	if r.ID == "" {
		t.Error("rule ID missing from listing")
	}
}

func TestAdmin_AddRuleValidation(t *testing.T) {
	a, _ := newTestAdmin(t)

	tests := []struct {
		name string
		body string
	}{
		{"broken json", `{"match":`},
		{"missing fields", `{"match":"http://a.example/x"}`},
		{"invalid pattern", `{"match":"http://a.example/([","proxy":"http://b.example/"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := adminDo(t, a, http.MethodPost, "/api/rules", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestAdmin_DeleteRule(t *testing.T) {
	a, p := newTestAdmin(t)
	_ = p.Rules.AddRule(Rule{Match: "http://a.example/(.*)", Proxy: "http://b.example/{1}"})

	rec := adminDo(t, a, http.MethodDelete, "/api/rules", `{"match":"http://a.example/(.*)"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if p.Rules.Len() != 0 {
		t.Errorf("registry len = %d after delete", p.Rules.Len())
	}
}

func TestAdmin_Reload(t *testing.T) {
	a, _ := newTestAdmin(t)

	rec := adminDo(t, a, http.MethodPost, "/api/reload", "")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status without reload func = %d, want 501", rec.Code)
	}

	var called bool
	a.ReloadFunc = func(context.Context) error {
		called = true
		return nil
	}
	rec = adminDo(t, a, http.MethodPost, "/api/reload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !called {
		t.Error("reload func not invoked")
	}

	a.ReloadFunc = func(context.Context) error { return errors.New("boom") }
	rec = adminDo(t, a, http.MethodPost, "/api/reload", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestAdmin_RoutedThroughProxy(t *testing.T) {
	p := newTestProxy(t)
	p.Admin = NewAdminAPI(p)
	srv := httptest.NewServer(p)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	// A path that merely starts with the prefix string is not an admin
	// route; it falls through to the welcome page.
	resp, err = http.Get(srv.URL + "/apifoo")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("/apifoo content type = %q, want the welcome page", ct)
	}
}

func TestUnderPathPrefix(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/api", true},
		{"/api/rules", true},
		{"/api/", true},
		{"/apifoo", false},
		{"/", false},
	}
	for _, tt := range tests {
		if got := underPathPrefix(tt.path, "/api"); got != tt.want {
			t.Errorf("underPathPrefix(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
