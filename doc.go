// Package httpproxy provides a forwarding HTTP proxy that rewrites
// requests against an ordered, hot-reloadable rule set and passes HTTPS
// traffic through opaque CONNECT tunnels.
//
// # Architecture
//
// Each rule maps a path pattern to a target URL template. Patterns support
// literal URLs, "*" wildcards, ":name" parameters, and raw regular
// expression syntax; captures substitute into the target via {name} and
// {N} placeholders. Rules are matched in insertion order and the first
// match wins. A request that matches no rule is forwarded verbatim; a
// rewritten target without an http/https scheme is served from local disk;
// a direct request to the proxy itself gets a landing page.
//
// # Basic Proxy
//
//	logger := slog.Default()
//	proxy := httpproxy.NewProxy("127.0.0.1:8080", logger, nil)
//
//	proxy.Rules.AddRule(httpproxy.Rule{
//	    Match: "http://a.example/(.*)",
//	    Proxy: "http://b.example/{1}",
//	})
//
//	log.Fatal(proxy.ListenAndServe())
//
// # Dynamic Targets
//
// A rule may compute its target at request time instead of using a string
// template:
//
//	proxy.Rules.AddRule(httpproxy.Rule{
//	    Match: "http://api.example/v1/(.*)",
//	    ProxyFunc: func(req *http.Request, m *httpproxy.Match) (httpproxy.Target, error) {
//	        path, _ := m.ByIndex(1)
//	        return httpproxy.Target{
//	            URL:     "http://backend.internal/" + path,
//	            Headers: map[string]string{"x-request-id": newID()},
//	        }, nil
//	    },
//	})
//
// # Lifecycle Events
//
// Collaborators observe the proxy through typed events:
//
//	notifier := httpproxy.NotifierFunc(func(e httpproxy.Event) {
//	    switch ev := e.(type) {
//	    case httpproxy.ProxyEvent:
//	        log.Printf("%s %s -> %s (rewrite=%v)", ev.Method, ev.Origin, ev.Target, ev.Rewrite)
//	    case httpproxy.WarnEvent:
//	        log.Printf("warn %d: %s", ev.Status, ev.Msg)
//	    }
//	})
//	proxy := httpproxy.NewProxy("127.0.0.1:8080", logger, notifier)
//
// # Configuration and Hot Reload
//
// Rules load from a YAML config file and reload on SIGHUP or when the file
// changes on disk:
//
//	cfg, err := httpproxy.LoadConfig("proxy.yaml")
//	proxy.ApplyRules(cfg.BuildRules(logger))
//
//	reload := func(ctx context.Context) ([]httpproxy.Rule, error) {
//	    cfg, err := httpproxy.LoadConfig("proxy.yaml")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return cfg.BuildRules(logger), nil
//	}
//	watcher, err := httpproxy.WatchConfig(proxy, "proxy.yaml", reload, logger)
//	defer watcher.Cancel()
//
// A reload swaps the whole rule set atomically: in-flight requests finish
// against the snapshot they already hold.
//
// # CONNECT Tunnels
//
// CONNECT requests open a raw TCP connection to the requested host:port
// and splice bytes in both directions. Tunneled traffic is never decrypted
// or inspected.
//
// # Upstream Agent
//
// Outbound requests use a pooled transport that can be rebuilt at runtime:
//
//	proxy.AgentPool = httpproxy.NewAgentPool()
//
// # Observability
//
// Optional collaborators add Prometheus metrics, structured access logs,
// health probes, and a REST admin API for runtime rule management:
//
//	proxy.Metrics = httpproxy.NewMetrics()
//	proxy.AccessLog = httpproxy.NewAccessLogger(logger)
//	proxy.HealthChecker = httpproxy.NewHealthChecker()
//	proxy.Admin = httpproxy.NewAdminAPI(proxy)
package httpproxy
