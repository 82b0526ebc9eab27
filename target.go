package httpproxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Target is the resolved destination for a matched request: the URL to
// forward to (or a filesystem path when not an absolute http/https URL) and
// header overrides applied on top of the inbound headers.
type Target struct {
	URL     string
	Headers map[string]string
}

// TargetFunc produces a Target from the inbound request and the pattern
// match result. It is only invoked when a rule matched; passthrough
// requests never reach a TargetFunc.
type TargetFunc func(req *http.Request, m *Match) (Target, error)

// compileTarget resolves the polymorphic proxy specification once at rule
// compile time. A dynamic handler is used as-is; a string template is
// compiled into a substitution closure.
func compileTarget(rule Rule, pattern *Pattern) (TargetFunc, error) {
	if rule.ProxyFunc != nil {
		return rule.ProxyFunc, nil
	}
	return compileTemplate(rule.Proxy, rule.Headers, pattern)
}

// compileTemplate builds a TargetFunc from a target URL template.
//
// At compile time the template's hostname (when it is an absolute URL) seeds
// the "host" header override, which any explicit headers entry from the rule
// then wins over. At call time every {name} placeholder is replaced by the
// capture of that name, then every {N} placeholder by the capture at that
// 1-based position.
func compileTemplate(tmpl string, static map[string]string, pattern *Pattern) (TargetFunc, error) {
	headers := make(map[string]string)
	if host := templateHost(tmpl); host != "" {
		headers["host"] = host
	}
	for k, v := range static {
		headers[strings.ToLower(k)] = v
	}

	names := pattern.CaptureNames()

	return func(_ *http.Request, m *Match) (Target, error) {
		out := tmpl
		for _, name := range names {
			if name == "" {
				continue
			}
			if v, ok := m.ByName(name); ok {
				out = strings.ReplaceAll(out, "{"+name+"}", v)
			}
		}
		for i := range m.Captures {
			out = strings.ReplaceAll(out, fmt.Sprintf("{%d}", i+1), m.Captures[i])
		}
		return Target{URL: out, Headers: headers}, nil
	}, nil
}

// templateHost extracts the hostname from an absolute URL template, ignoring
// placeholder syntax that would confuse the URL parser.
func templateHost(tmpl string) string {
	if !strings.HasPrefix(tmpl, "http://") && !strings.HasPrefix(tmpl, "https://") {
		return ""
	}
	u, err := url.Parse(tmpl)
	if err != nil || strings.ContainsAny(u.Host, "{}") {
		return ""
	}
	return u.Host
}
