package httpproxy

import (
	"errors"
	"regexp"
	"testing"
)

func TestCompilePattern_Literal(t *testing.T) {
	p, err := CompilePattern("http://a.example/index.html")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if m := p.Match("http://a.example/index.html"); m == nil {
		t.Error("exact path did not match")
	}
	if m := p.Match("http://a.example/index.html/extra"); m != nil {
		t.Error("pattern matched beyond the path end")
	}
	if m := p.Match("http://a.example/"); m != nil {
		t.Error("pattern matched a different path")
	}
}

func TestCompilePattern_Wildcard(t *testing.T) {
	p, err := CompilePattern("http://site.example/*")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	m := p.Match("http://site.example/css/app.css")
	if m == nil {
		t.Fatal("wildcard did not match")
	}
	if got, _ := m.ByIndex(1); got != "css/app.css" {
		t.Errorf("capture = %q, want %q", got, "css/app.css")
	}
}

func TestCompilePattern_NamedParam(t *testing.T) {
	p, err := CompilePattern("http://cdn.example/:file")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	tests := []struct {
		path      string
		wantMatch bool
		wantFile  string
	}{
		{"http://cdn.example/logo.png", true, "logo.png"},
		{"http://cdn.example/a/b", false, ""},
		{"http://cdn.example/", false, ""},
	}

	for _, tt := range tests {
		m := p.Match(tt.path)
		if (m != nil) != tt.wantMatch {
			t.Errorf("Match(%q) = %v, want match %v", tt.path, m != nil, tt.wantMatch)
			continue
		}
		if m == nil {
			continue
		}
		if got, ok := m.ByName("file"); !ok || got != tt.wantFile {
			t.Errorf("ByName(file) = %q, want %q", got, tt.wantFile)
		}
	}
}

func TestCompilePattern_RawRegexSyntax(t *testing.T) {
	p, err := CompilePattern(`http://a.example/(.*)`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	m := p.Match("http://a.example/foo/bar")
	if m == nil {
		t.Fatal("regex pattern did not match")
	}
	if got, _ := m.ByIndex(1); got != "foo/bar" {
		t.Errorf("capture = %q, want %q", got, "foo/bar")
	}
}

func TestCompilePattern_MixedTokens(t *testing.T) {
	p, err := CompilePattern(`http://v.example/:version/assets/*`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	m := p.Match("http://v.example/v2/assets/js/app.js")
	if m == nil {
		t.Fatal("pattern did not match")
	}
	if got, _ := m.ByName("version"); got != "v2" {
		t.Errorf("version = %q, want v2", got)
	}
	if got, _ := m.ByIndex(2); got != "js/app.js" {
		t.Errorf("positional capture = %q, want js/app.js", got)
	}
}

func TestCompilePattern_Invalid(t *testing.T) {
	_, err := CompilePattern("http://a.example/([unclosed")
	if err == nil {
		t.Fatal("expected compile error")
	}

	var invalid *InvalidPatternError
	if !errors.As(err, &invalid) {
		t.Fatalf("error type = %T, want *InvalidPatternError", err)
	}
	if invalid.Spec != "http://a.example/([unclosed" {
		t.Errorf("unexpected spec in error: %q", invalid.Spec)
	}
}

func TestCompilePattern_CanonicalIdentity(t *testing.T) {
	a, err := CompilePattern("http://a.example/*")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	b, err := CompilePattern("http://a.example/*")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if a.Canonical() != b.Canonical() {
		t.Errorf("identical specs compiled to different canonicals: %q vs %q", a.Canonical(), b.Canonical())
	}
}

func TestCompileRegexpPattern(t *testing.T) {
	re := regexp.MustCompile(`http://x\.example/(?P<rest>.+)`)
	p := CompileRegexpPattern(re)

	if p.Canonical() != re.String() {
		t.Errorf("canonical = %q, want the raw expression", p.Canonical())
	}

	m := p.Match("http://x.example/deep/path")
	if m == nil {
		t.Fatal("raw regexp did not match")
	}
	if got, _ := m.ByName("rest"); got != "deep/path" {
		t.Errorf("rest = %q, want deep/path", got)
	}
}

func TestMatch_ByIndexBounds(t *testing.T) {
	p, _ := CompilePattern("http://a.example/(.*)")
	m := p.Match("http://a.example/x")

	if _, ok := m.ByIndex(0); ok {
		t.Error("index 0 should be out of range")
	}
	if _, ok := m.ByIndex(2); ok {
		t.Error("index past the last capture should be out of range")
	}
	if v, ok := m.ByIndex(1); !ok || v != "x" {
		t.Errorf("ByIndex(1) = %q, %v", v, ok)
	}
}
