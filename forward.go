package httpproxy

import (
	"io"
	"net/http"
	"strings"
	"time"
)

// forward proxies a single request/response pair to a remote origin.
//
// Outbound headers are the inbound headers with the target's overrides
// applied on top (override wins), after renaming any Proxy-Connection
// header to Connection. The request body streams through unbuffered; the
// upstream status, headers, and body are relayed back verbatim.
func (p *Proxy) forward(w http.ResponseWriter, r *http.Request, target Target, rewrite bool) {
	origin := r.URL.String()
	p.Logger.Debug("forward", "method", r.Method, "origin", origin, "target", target.URL, "rewrite", rewrite)

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target.URL, r.Body)
	if err != nil {
		p.respondError(w, http.StatusInternalServerError, "build upstream request: "+err.Error())
		return
	}
	outReq.ContentLength = r.ContentLength
	outReq.Header = forwardHeaders(r.Header, target.Headers, outReq)

	start := time.Now()
	resp, err := p.agent().RoundTrip(outReq)
	if err != nil {
		p.Logger.Error("upstream request failed", "target", target.URL, "error", err)
		if p.Metrics != nil {
			p.Metrics.RecordUpstreamError(outReq.URL.Host)
		}
		p.respondError(w, http.StatusInternalServerError, "upstream error: "+err.Error())
		p.logAccess(r, target.URL, rewrite, 0, 0, time.Since(start), err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	p.publish(ProxyEvent{
		Origin:  origin,
		Target:  target.URL,
		Method:  r.Method,
		Rewrite: rewrite,
	})
	if p.Metrics != nil {
		p.Metrics.RecordRequest(r.Method, modeForward)
		if rewrite {
			p.Metrics.RecordRewrite()
		}
	}

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	// Headers are out the door; a body copy error can only terminate
	// the connection, not produce an error page.
	written, copyErr := io.Copy(w, resp.Body)
	if copyErr != nil {
		p.Logger.Debug("response body copy interrupted", "error", copyErr)
	}

	if p.Metrics != nil {
		p.Metrics.RecordRequestDuration(r.Method, resp.StatusCode, time.Since(start))
	}
	p.logAccess(r, target.URL, rewrite, resp.StatusCode, written, time.Since(start), copyErr)
}

// forwardHeaders merges inbound headers with per-rule overrides. The
// inbound Proxy-Connection header is renamed to Connection and never
// forwarded as-is; a "host" override replaces the outbound Host.
func forwardHeaders(inbound http.Header, overrides map[string]string, outReq *http.Request) http.Header {
	h := make(http.Header, len(inbound))
	for k, vv := range inbound {
		h[k] = append([]string(nil), vv...)
	}

	if pc := h.Get("Proxy-Connection"); pc != "" {
		h.Set("Connection", pc)
	}
	h.Del("Proxy-Connection")

	for k, v := range overrides {
		if strings.EqualFold(k, "host") {
			outReq.Host = v
			continue
		}
		h.Set(k, v)
	}

	return h
}

func (p *Proxy) logAccess(r *http.Request, target string, rewrite bool, status int, written int64, d time.Duration, err error) {
	if p.AccessLog == nil {
		return
	}
	e := AccessEntry{
		Timestamp:    time.Now(),
		Method:       r.Method,
		Origin:       r.URL.String(),
		Target:       target,
		Rewrite:      rewrite,
		StatusCode:   status,
		Duration:     d,
		BytesWritten: written,
		ClientAddr:   r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	p.AccessLog.Log(e)
}
