package httpproxy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc loads a fresh rule set. It is called on SIGHUP or when the
// watched config file changes.
type ReloadFunc func(ctx context.Context) ([]Rule, error)

// ApplyRules replaces the proxy's whole rule set. The registry swap is
// atomic from the dispatcher's point of view: in-flight lookups finish on
// the snapshot they hold, new lookups see only the complete new rules.
func (p *Proxy) ApplyRules(rules []Rule) error {
	if err := p.Rules.ReplaceAll(rules); err != nil {
		return fmt.Errorf("replace rules: %w", err)
	}
	if p.Metrics != nil {
		p.Metrics.SetRuleCount(p.Rules.Len())
	}
	return nil
}

// SIGHUPReloader watches for SIGHUP signals and reloads the rule set.
// Call Cancel to stop watching.
type SIGHUPReloader struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the SIGHUP watcher.
func (r *SIGHUPReloader) Cancel() {
	r.cancel()
	<-r.done
}

// WatchSIGHUP starts a goroutine that listens for SIGHUP and applies the
// rules returned by reload to the proxy.
func WatchSIGHUP(proxy *Proxy, reload ReloadFunc, logger *slog.Logger) *SIGHUPReloader {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		defer close(done)
		defer signal.Stop(sigCh)

		for {
			select {
			case <-ctx.Done():
				return
			case <-sigCh:
				logger.Info("received SIGHUP, reloading rules...")
				proxy.reloadRules(ctx, reload, logger)
			}
		}
	}()

	return &SIGHUPReloader{cancel: cancel, done: done}
}

func (p *Proxy) reloadRules(ctx context.Context, reload ReloadFunc, logger *slog.Logger) {
	rules, err := reload(ctx)
	if err != nil {
		logger.Error("reload failed", "error", err)
		if p.Metrics != nil {
			p.Metrics.RecordReloadError()
		}
		return
	}
	if err := p.ApplyRules(rules); err != nil {
		logger.Error("apply reloaded rules", "error", err)
		if p.Metrics != nil {
			p.Metrics.RecordReloadError()
		}
		return
	}
	if p.Metrics != nil {
		p.Metrics.RecordReload()
	}
	logger.Info("rules reloaded", "count", p.Rules.Len())
}

// ConfigWatcher reloads the rule set whenever the config file changes on
// disk. Editors often replace files with rename+create, so the watch is on
// the containing directory with events filtered to the config path.
type ConfigWatcher struct {
	path    string
	watcher *fsnotify.Watcher

	// Debounce coalesces bursts of write events. Default 200ms.
	Debounce time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// WatchConfig starts watching path and applies the rules returned by
// reload to the proxy on every change.
func WatchConfig(proxy *Proxy, path string, reload ReloadFunc, logger *slog.Logger) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cw := &ConfigWatcher{
		path:     absPath,
		watcher:  fsWatcher,
		Debounce: 200 * time.Millisecond,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go cw.run(ctx, proxy, reload, logger)
	return cw, nil
}

func (cw *ConfigWatcher) run(ctx context.Context, proxy *Proxy, reload ReloadFunc, logger *slog.Logger) {
	defer close(cw.done)
	defer func() { _ = cw.watcher.Close() }()

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug("config file changed", "path", cw.path, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(cw.Debounce)
				timerCh = timer.C
			} else {
				timer.Reset(cw.Debounce)
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("config watcher error", "error", err)

		case <-timerCh:
			logger.Info("config file changed, reloading rules...", "path", cw.path)
			proxy.reloadRules(ctx, reload, logger)
		}
	}
}

// Cancel stops the config watcher.
func (cw *ConfigWatcher) Cancel() {
	cw.cancel()
	<-cw.done
}
