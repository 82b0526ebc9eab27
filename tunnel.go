package httpproxy

import (
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// handleConnect handles CONNECT requests by opening a raw TCP connection to
// the requested host:port and splicing bytes in both directions. Tunneled
// traffic is never decrypted or inspected.
func (p *Proxy) handleConnect(w http.ResponseWriter, r *http.Request) {
	addr := r.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "443")
	}
	p.Logger.Debug("CONNECT", "addr", addr)

	if p.Metrics != nil {
		p.Metrics.RecordTunnel()
		p.Metrics.IncActiveTunnels()
		defer p.Metrics.DecActiveTunnels()
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}

	clientConn, bufrw, err := hijacker.Hijack()
	if err != nil {
		p.Logger.Error("hijack failed", "error", err)
		return
	}

	timeout := p.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	upstream, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		p.Logger.Error("tunnel dial failed", "addr", addr, "error", err)
		if p.Metrics != nil {
			p.Metrics.RecordTunnelError()
		}
		p.publish(WarnEvent{Status: http.StatusInternalServerError, Msg: "tunnel connect: " + err.Error()})
		_, _ = io.WriteString(clientConn, r.Proto+" 500 Connection error\r\n\r\n")
		_ = clientConn.Close()
		return
	}

	// The client may have sent bytes past the CONNECT head already;
	// they belong to the tunnel and go upstream before anything else.
	if n := bufrw.Reader.Buffered(); n > 0 {
		head, _ := bufrw.Reader.Peek(n)
		if _, err := upstream.Write(head); err != nil {
			_ = clientConn.Close()
			_ = upstream.Close()
			return
		}
		_, _ = bufrw.Reader.Discard(n)
	}

	if _, err := io.WriteString(clientConn, r.Proto+" 200 Connection established\r\n\r\n"); err != nil {
		_ = clientConn.Close()
		_ = upstream.Close()
		return
	}

	p.splice(clientConn, upstream, r.Proto)
}

// splice relays bytes between the client and upstream sockets until either
// side closes or fails. Either direction ending tears down both.
func (p *Proxy) splice(client, upstream net.Conn, proto string) {
	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			_ = client.Close()
			_ = upstream.Close()
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := io.Copy(upstream, client)
		if err != nil && !closedConn(err) {
			// Client side broke; nothing can be written back to it.
			p.publish(ErrorEvent{Err: err})
			p.Logger.Debug("tunnel client read failed", "error", err)
		}
		closeBoth()
	}()

	_, err := io.Copy(client, upstream)
	if err != nil && !closedConn(err) {
		p.Logger.Debug("tunnel upstream read failed", "error", err)
		if p.Metrics != nil {
			p.Metrics.RecordTunnelError()
		}
		// Best effort; the peer may already be mid-TLS.
		_, _ = io.WriteString(client, proto+" 500 Connection error\r\n\r\n")
	}
	closeBoth()
	<-done
}

func closedConn(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
