package httpproxy

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestLocalFile_Serve(t *testing.T) {
	dir := t.TempDir()
	body := []byte("<html><body>hi</body></html>")
	if err := os.WriteFile(filepath.Join(dir, "page.html"), body, 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestProxy(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	p.handleLocalFile(rec, req, filepath.Join(dir, "page.html"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	if cl := rec.Header().Get("Content-Length"); cl != strconv.Itoa(len(body)) {
		t.Errorf("content length = %q, want %d", cl, len(body))
	}
	if rec.Body.String() != string(body) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestLocalFile_DirectoryIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("index page"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestProxy(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	p.handleLocalFile(rec, req, dir)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "index page" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestLocalFile_NotFound(t *testing.T) {
	p := newTestProxy(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	p.handleLocalFile(rec, req, filepath.Join(t.TempDir(), "nope.txt"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestLocalFile_DirectoryWithoutIndex(t *testing.T) {
	p := newTestProxy(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	p.handleLocalFile(rec, req, t.TempDir())

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestLocalFile_QueryStringStripped(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "data.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestProxy(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	p.handleLocalFile(rec, req, filepath.Join(dir, "data.json")+"?v=1")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestLocalFile_UnknownExtension(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blob.xyzq"), []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestProxy(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	p.handleLocalFile(rec, req, filepath.Join(dir, "blob.xyzq"))

	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("content type = %q", ct)
	}
}
