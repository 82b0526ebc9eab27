package httpproxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Proxy is a forwarding HTTP proxy that rewrites requests against an
// ordered, hot-reloadable rule set and tunnels CONNECT traffic opaquely.
type Proxy struct {
	// Addr is the address to listen on (e.g., "127.0.0.1:8080").
	Addr string

	// Rules is the ordered rule registry consulted for every request.
	Rules *Registry

	// Logger receives trace output from every internal step.
	Logger *slog.Logger

	// Notifier receives lifecycle events (proxy, addRule, removeRule,
	// warn, error). Optional.
	Notifier Notifier

	// Transport for outbound requests (optional, uses default if nil).
	Transport http.RoundTripper

	// AgentPool provides a connection-pooled transport for outbound
	// requests (optional). When set, its Agent() is used as the base
	// transport instead of the Transport field.
	AgentPool *AgentPool

	// DialTimeout bounds CONNECT tunnel dials. Defaults to 10 seconds.
	DialTimeout time.Duration

	// Welcome is the landing page served when the proxy is accessed
	// directly rather than as a configured proxy target. Uses the
	// default page if nil.
	Welcome *WelcomePage

	// Compression enables transparent response compression for locally
	// synthesized responses (files, welcome page). Optional.
	Compression *Compression

	// Metrics collects Prometheus metrics (optional).
	Metrics *Metrics

	// AccessLog writes structured access log entries (optional).
	AccessLog *AccessLogger

	// HealthChecker provides /healthz and /readyz endpoints (optional).
	HealthChecker *HealthChecker

	// Admin provides REST endpoints for runtime rule management
	// (optional). Requests matching AdminAPI.PathPrefix are routed to
	// the admin handler instead of being proxied.
	Admin *AdminAPI

	listener net.Listener
	srv      *http.Server
}

// NewProxy creates a proxy listening on addr. The logger and notifier are
// fixed at construction and shared with the rule registry; either may be
// nil.
func NewProxy(addr string, logger *slog.Logger, notifier Notifier) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		Addr:     addr,
		Logger:   logger,
		Notifier: notifier,
		Rules:    NewRegistry(logger, notifier),
	}
}

// ListenAndServe starts the proxy server.
func (p *Proxy) ListenAndServe() error {
	listener, err := net.Listen("tcp", p.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	p.listener = listener

	p.srv = &http.Server{
		Handler: p,
	}

	if p.HealthChecker != nil {
		p.HealthChecker.SetAlive(true)
		p.HealthChecker.SetReady(true)
	}

	p.Logger.Info("proxy listening", "addr", p.Addr)
	return p.srv.Serve(listener)
}

// Shutdown gracefully stops the proxy.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.srv != nil {
		return p.srv.Shutdown(ctx)
	}
	return nil
}

// ServeHTTP handles incoming proxy requests.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Endpoints below only answer direct requests, never proxied ones.
	if r.Method != http.MethodConnect && r.URL.Host == "" {
		if p.Metrics != nil && r.URL.Path == "/metrics" {
			p.Metrics.Handler().ServeHTTP(w, r)
			return
		}
		if p.HealthChecker != nil {
			switch r.URL.Path {
			case "/healthz":
				p.HealthChecker.HandleHealthz(w, r)
				return
			case "/readyz":
				p.HealthChecker.HandleReadyz(w, r)
				return
			}
		}
		if p.Admin != nil && underPathPrefix(r.URL.Path, p.Admin.PathPrefix) {
			p.Admin.ServeHTTP(w, r)
			return
		}
	}

	if r.Method == http.MethodConnect {
		p.handleConnect(w, r)
	} else {
		p.handleHTTP(w, r)
	}
}

// handleHTTP routes a plain HTTP request: rewrite, passthrough, local file,
// or welcome page.
func (p *Proxy) handleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL == nil || (r.URL.Host == "" && r.URL.Path == "") {
		err := &MalformedRequestError{Detail: "request has no target path"}
		p.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	base, qs := splitQuery(r.URL)
	p.Logger.Debug("dispatch", "method", r.Method, "url", base, "qs", qs)

	target := Target{URL: r.URL.String()}
	rewrite := false

	if rule, m := p.Rules.FindByPath(base); rule != nil {
		resolved, err := rule.Target(r, m)
		if err != nil {
			p.respondError(w, http.StatusInternalServerError, fmt.Sprintf("resolve target: %v", err))
			return
		}
		if qs != "" {
			resolved.URL += "?" + qs
		}
		target = resolved
		rewrite = true
	}

	// A request with no resolvable host and no rewrite means the proxy
	// was accessed directly, not as a configured proxy target.
	if !rewrite && r.URL.Host == "" {
		p.handleWelcome(w, r)
		return
	}

	if !isAbsoluteURL(target.URL) {
		p.handleLocalFile(w, r, target.URL)
		return
	}

	p.forward(w, r, target, rewrite)
}

// agent returns the effective outbound http.RoundTripper.
func (p *Proxy) agent() http.RoundTripper {
	switch {
	case p.AgentPool != nil:
		return p.AgentPool.Agent()
	case p.Transport != nil:
		return p.Transport
	default:
		return http.DefaultTransport
	}
}

func (p *Proxy) publish(e Event) {
	if p.Notifier != nil {
		p.Notifier.Publish(e)
	}
}

// splitQuery separates a request URL into the form used for rule matching
// and the raw query string, which is reattached after rewriting.
func splitQuery(u *url.URL) (base, qs string) {
	stripped := *u
	qs = stripped.RawQuery
	stripped.RawQuery = ""
	stripped.Fragment = ""
	return stripped.String(), qs
}

// underPathPrefix matches prefix as a whole path segment, so "/api" covers
// "/api" and "/api/rules" but not "/apifoo".
func underPathPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
