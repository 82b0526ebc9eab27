package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpproxy "github.com/leizongmin/leizm-http-proxy"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (default: search ./proxy.yaml, ~/.leizm-http-proxy, /etc/leizm-http-proxy)")
		genConfig  = flag.Bool("gen-config", false, "generate example config file and exit")
		addr       = flag.String("addr", "", "listen address, overrides config host/port")
		verbose    = flag.Bool("v", false, "verbose logging")
		metrics    = flag.Bool("metrics", false, "enable Prometheus /metrics endpoint")
		admin      = flag.Bool("admin", false, "enable /api admin endpoints")
		watch      = flag.Bool("watch", true, "reload rules when the config file changes")
		accessLog  = flag.Bool("access-log", false, "write JSON access log to stderr")
	)
	flag.Parse()

	if *genConfig {
		if err := httpproxy.WriteExampleConfig("proxy.yaml"); err != nil {
			fmt.Fprintln(os.Stderr, "generate config:", err)
			os.Exit(1)
		}
		fmt.Println("Generated proxy.yaml")
		return
	}

	cfg, err := httpproxy.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *verbose || cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Lifecycle events feed the console log.
	notifier := httpproxy.NotifierFunc(func(e httpproxy.Event) {
		switch ev := e.(type) {
		case httpproxy.ProxyEvent:
			logger.Info("proxy", "method", ev.Method, "origin", ev.Origin, "target", ev.Target, "rewrite", ev.Rewrite)
		case httpproxy.AddRuleEvent:
			logger.Info("add rule", "match", ev.Match, "proxy", ev.Proxy)
		case httpproxy.RemoveRuleEvent:
			logger.Info("remove rule", "match", ev.Match, "proxy", ev.Proxy)
		case httpproxy.WarnEvent:
			logger.Warn(ev.Msg, "status", ev.Status)
		case httpproxy.ErrorEvent:
			logger.Error("connection error", "error", ev.Err)
		}
	})

	listenAddr := cfg.Addr()
	if *addr != "" {
		listenAddr = *addr
	}

	proxy := httpproxy.NewProxy(listenAddr, logger, notifier)
	proxy.AgentPool = httpproxy.NewAgentPool()
	proxy.Compression = httpproxy.NewCompression()
	proxy.HealthChecker = httpproxy.NewHealthChecker()
	proxy.HealthChecker.ReadinessChecks = append(proxy.HealthChecker.ReadinessChecks, func() error {
		if proxy.Rules.Len() == 0 {
			return fmt.Errorf("no rules loaded")
		}
		return nil
	})

	if *metrics {
		proxy.Metrics = httpproxy.NewMetrics()
	}
	if *accessLog {
		proxy.AccessLog = httpproxy.NewAccessLogger(
			slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}

	if err := proxy.ApplyRules(cfg.BuildRules(logger)); err != nil {
		logger.Error("apply rules", "error", err)
		os.Exit(1)
	}
	logger.Info("rules loaded", "count", proxy.Rules.Len())

	reload := func(ctx context.Context) ([]httpproxy.Rule, error) {
		cfg, err := httpproxy.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		return cfg.BuildRules(logger), nil
	}

	if *admin {
		proxy.Admin = httpproxy.NewAdminAPI(proxy)
		proxy.Admin.ReloadFunc = func(ctx context.Context) error {
			rules, err := reload(ctx)
			if err != nil {
				return err
			}
			return proxy.ApplyRules(rules)
		}
	}

	reloader := httpproxy.WatchSIGHUP(proxy, reload, logger)
	defer reloader.Cancel()

	if *watch && *configPath != "" {
		watcher, err := httpproxy.WatchConfig(proxy, *configPath, reload, logger)
		if err != nil {
			logger.Warn("config watch disabled", "error", err)
		} else {
			defer watcher.Cancel()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- proxy.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("proxy server", "error", err)
		os.Exit(1)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := proxy.Shutdown(ctx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}
}
