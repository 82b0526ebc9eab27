package httpproxy

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
)

// WelcomePage is the landing page served when the proxy is accessed with no
// forwarding target resolved.
type WelcomePage struct {
	template *template.Template
}

// WelcomePageData contains the data passed to the welcome page template.
type WelcomePageData struct {
	Addr      string
	RuleCount int
}

// DefaultWelcomeHTML is the default landing page template.
const DefaultWelcomeHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>leizm-http-proxy</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: #16213e;
            color: #e0e0e0;
            display: flex;
            align-items: center;
            justify-content: center;
            min-height: 100vh;
            margin: 0;
        }
        .container {
            text-align: center;
            padding: 40px 50px;
            background: rgba(255, 255, 255, 0.05);
            border-radius: 16px;
        }
        h1 { font-size: 1.6em; margin-bottom: 0.4em; }
        p { color: #9090a0; }
        code {
            background: rgba(255, 255, 255, 0.1);
            border-radius: 4px;
            padding: 2px 6px;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>leizm-http-proxy</h1>
        <p>This is a rewriting HTTP proxy. Configure your client to use
        <code>{{.Addr}}</code> as its HTTP proxy.</p>
        <p>{{.RuleCount}} rewrite rule(s) active.</p>
    </div>
</body>
</html>`

// NewWelcomePage creates a welcome page with the default template.
func NewWelcomePage() *WelcomePage {
	t := template.Must(template.New("welcome").Parse(DefaultWelcomeHTML))
	return &WelcomePage{template: t}
}

// NewWelcomePageFromString creates a welcome page from a custom template.
func NewWelcomePageFromString(tmpl string) (*WelcomePage, error) {
	t, err := template.New("welcome").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse welcome template: %w", err)
	}
	return &WelcomePage{template: t}, nil
}

// Render writes the welcome page to w.
func (wp *WelcomePage) Render(w io.Writer, data WelcomePageData) error {
	return wp.template.Execute(w, data)
}

// handleWelcome serves the proxy's landing page.
func (p *Proxy) handleWelcome(w http.ResponseWriter, r *http.Request) {
	if p.Metrics != nil {
		p.Metrics.RecordRequest(r.Method, modeWelcome)
	}

	page := p.Welcome
	if page == nil {
		page = NewWelcomePage()
	}

	out, finish := p.wrapCompression(w, r)
	defer finish()

	out.Header().Set("Content-Type", "text/html; charset=utf-8")
	out.WriteHeader(http.StatusOK)
	_ = page.Render(out, WelcomePageData{
		Addr:      p.Addr,
		RuleCount: p.Rules.Len(),
	})
}

// respondError synthesizes an error page with the given status and message
// and publishes a warn notification for observability collaborators.
func (p *Proxy) respondError(w http.ResponseWriter, status int, msg string) {
	p.Logger.Warn("request failed", "status", status, "msg", msg)
	p.publish(WarnEvent{Status: status, Msg: msg})
	if p.Metrics != nil {
		p.Metrics.RecordError(status)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "proxy error %d: %s\n", status, msg)
}

// wrapCompression wraps w with the configured response compression. The
// returned finish func must run after the response body is written.
func (p *Proxy) wrapCompression(w http.ResponseWriter, r *http.Request) (http.ResponseWriter, func()) {
	if p.Compression == nil {
		return w, func() {}
	}
	return p.Compression.Wrap(w, r)
}
