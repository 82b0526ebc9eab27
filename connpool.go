package httpproxy

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// AgentPool is the proxy's upstream agent: an [http.Transport] with
// connection pooling tuned for a forward-proxy workload. The built
// transport is held behind an atomic pointer so it can be rebuilt at
// runtime without disturbing in-flight requests.
//
// Setting DisableKeepAlives yields a "no pooling" agent where every
// upstream request uses a fresh connection.
type AgentPool struct {
	// MaxIdleConns is the total maximum number of idle connections
	// across all hosts. Zero means the http.Transport default.
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum number of idle connections
	// per upstream host.
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection stays pooled.
	IdleConnTimeout time.Duration

	// DialTimeout is the maximum time for a TCP dial to an upstream.
	// Zero means 30 seconds.
	DialTimeout time.Duration

	// TLSHandshakeTimeout bounds upstream TLS handshakes.
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for upstream response
	// headers after the request is fully written. Zero means no limit;
	// the proxy core itself enforces no request deadline.
	ResponseHeaderTimeout time.Duration

	// TLSConfig provides custom TLS settings for https upstreams.
	TLSConfig *tls.Config

	// DisableKeepAlives disables pooling entirely.
	DisableKeepAlives bool

	transport atomic.Pointer[http.Transport]

	totalRequests  atomic.Int64
	activeRequests atomic.Int64
}

// NewAgentPool creates an AgentPool with forward-proxy defaults.
func NewAgentPool() *AgentPool {
	return &AgentPool{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// NewUnpooledAgent creates an AgentPool that opens a fresh connection per
// request.
func NewUnpooledAgent() *AgentPool {
	return &AgentPool{DisableKeepAlives: true}
}

// Build creates the underlying transport from the current configuration.
// Safe to call repeatedly; each call swaps in a fresh transport and drains
// idle connections on the previous one.
func (ap *AgentPool) Build() *http.Transport {
	tlsCfg := ap.TLSConfig
	if tlsCfg != nil {
		tlsCfg = tlsCfg.Clone()
	}

	dialTimeout := ap.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 30 * time.Second
	}

	t := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       tlsCfg,
		MaxIdleConns:          ap.MaxIdleConns,
		MaxIdleConnsPerHost:   ap.MaxIdleConnsPerHost,
		IdleConnTimeout:       ap.IdleConnTimeout,
		TLSHandshakeTimeout:   ap.TLSHandshakeTimeout,
		ResponseHeaderTimeout: ap.ResponseHeaderTimeout,
		DisableKeepAlives:     ap.DisableKeepAlives,
	}

	if old := ap.transport.Swap(t); old != nil {
		old.CloseIdleConnections()
	}
	return t
}

// Agent returns the pooled [http.RoundTripper], building it on first use.
func (ap *AgentPool) Agent() http.RoundTripper {
	if ap.transport.Load() == nil {
		ap.Build()
	}
	return &agentRoundTripper{pool: ap}
}

// CloseIdleConnections drains the idle connection pool.
func (ap *AgentPool) CloseIdleConnections() {
	if t := ap.transport.Load(); t != nil {
		t.CloseIdleConnections()
	}
}

// Stats returns a snapshot of agent request counters.
func (ap *AgentPool) Stats() AgentStats {
	return AgentStats{
		TotalRequests:  ap.totalRequests.Load(),
		ActiveRequests: ap.activeRequests.Load(),
	}
}

// AgentStats holds a snapshot of agent request counters.
type AgentStats struct {
	TotalRequests  int64
	ActiveRequests int64
}

type agentRoundTripper struct {
	pool *AgentPool
}

func (rt *agentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.pool.totalRequests.Add(1)
	rt.pool.activeRequests.Add(1)
	defer rt.pool.activeRequests.Add(-1)

	t := rt.pool.transport.Load()
	if t == nil {
		t = rt.pool.Build()
	}
	return t.RoundTrip(req)
}
