package httpproxy

import (
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
)

// Rule is a declarative mapping from a path pattern to a rewritten target.
// Rules are immutable once submitted to a registry.
type Rule struct {
	// Match is the pattern specification: a literal URL, a spec with "*"
	// or ":name" tokens, or raw regular expression syntax.
	Match string

	// MatchRegexp supplies a precompiled expression instead of Match.
	// It is used unmodified, without anchoring or token translation.
	MatchRegexp *regexp.Regexp

	// Proxy is the target URL template. {name} placeholders substitute
	// named captures, {N} placeholders substitute by position. A target
	// that is not an absolute http/https URL is served from local disk.
	Proxy string

	// ProxyFunc supplies a dynamic target handler instead of Proxy.
	ProxyFunc TargetFunc

	// Headers are static header overrides applied to forwarded requests.
	// Only used with string templates.
	Headers map[string]string
}

// CompiledRule is a Rule after pattern and target compilation. Its ID is
// the canonical pattern string, so structurally identical rules compiled
// separately are recognized as the same rule.
type CompiledRule struct {
	ID      string
	Pattern *Pattern
	Target  TargetFunc

	// Source is the rule as submitted, kept for listing and notifications.
	Source Rule
}

// compileRule compiles a rule's match and proxy specifications.
func compileRule(rule Rule) (*CompiledRule, error) {
	var pattern *Pattern
	if rule.MatchRegexp != nil {
		pattern = CompileRegexpPattern(rule.MatchRegexp)
	} else {
		p, err := CompilePattern(rule.Match)
		if err != nil {
			return nil, err
		}
		pattern = p
	}

	target, err := compileTarget(rule, pattern)
	if err != nil {
		return nil, err
	}

	return &CompiledRule{
		ID:      pattern.Canonical(),
		Pattern: pattern,
		Target:  target,
		Source:  rule,
	}, nil
}

// Registry is an ordered collection of compiled rules. Lookups scan an
// immutable snapshot in insertion order and return the first match, so a
// request always observes either a fully-old or fully-new rule set during
// hot reload. Writers serialize on a mutex and publish a fresh snapshot
// through an atomic pointer swap; readers never lock.
type Registry struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[[]*CompiledRule]

	logger   *slog.Logger
	notifier Notifier
}

// NewRegistry creates an empty rule registry. The logger receives trace
// output for every mutation and lookup; the notifier receives lifecycle
// events. Either may be nil.
func NewRegistry(logger *slog.Logger, notifier Notifier) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{logger: logger, notifier: notifier}
	empty := []*CompiledRule{}
	r.snapshot.Store(&empty)
	return r
}

// AddRule compiles and registers a rule. A rule whose canonical pattern
// matches an existing entry replaces that entry in place (upsert); new
// patterns append in insertion order.
func (r *Registry) AddRule(rule Rule) error {
	compiled, err := compileRule(rule)
	if err != nil {
		return err
	}

	r.mu.Lock()
	old := *r.snapshot.Load()
	next := make([]*CompiledRule, len(old), len(old)+1)
	copy(next, old)

	replaced := false
	for i, existing := range next {
		if existing.ID == compiled.ID {
			next[i] = compiled
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, compiled)
	}
	r.snapshot.Store(&next)
	r.mu.Unlock()

	r.logger.Debug("rule added", "match", rule.Match, "proxy", rule.Proxy, "replaced", replaced)
	r.publish(AddRuleEvent{Match: rule.Match, Proxy: rule.Proxy})
	return nil
}

// RemoveRule compiles the rule's match specification and deletes every
// entry sharing its canonical pattern. Removing a never-added pattern is a
// no-op.
func (r *Registry) RemoveRule(rule Rule) error {
	compiled, err := compileRule(rule)
	if err != nil {
		return err
	}

	r.mu.Lock()
	old := *r.snapshot.Load()
	next := make([]*CompiledRule, 0, len(old))
	for _, existing := range old {
		if existing.ID != compiled.ID {
			next = append(next, existing)
		}
	}
	removed := len(old) - len(next)
	r.snapshot.Store(&next)
	r.mu.Unlock()

	r.logger.Debug("rule removed", "match", rule.Match, "removed", removed)
	r.publish(RemoveRuleEvent{Match: rule.Match, Proxy: rule.Proxy})
	return nil
}

// ReplaceAll swaps the whole rule set in one snapshot publish. Every rule
// is compiled before anything is stored, so lookups racing a reload see
// either the complete old set or the complete new set, never a partial
// one. On a compile error the current set is left untouched.
func (r *Registry) ReplaceAll(rules []Rule) error {
	next := make([]*CompiledRule, 0, len(rules))
	for _, rule := range rules {
		compiled, err := compileRule(rule)
		if err != nil {
			return err
		}
		replaced := false
		for i, existing := range next {
			if existing.ID == compiled.ID {
				next[i] = compiled
				replaced = true
				break
			}
		}
		if !replaced {
			next = append(next, compiled)
		}
	}

	r.mu.Lock()
	r.snapshot.Store(&next)
	r.mu.Unlock()

	r.logger.Debug("rule set replaced", "count", len(next))
	for _, compiled := range next {
		r.publish(AddRuleEvent{Match: compiled.Source.Match, Proxy: compiled.Source.Proxy})
	}
	return nil
}

// RemoveAllRules clears the registry. In-flight lookups keep scanning the
// snapshot they already hold.
func (r *Registry) RemoveAllRules() {
	r.mu.Lock()
	empty := []*CompiledRule{}
	r.snapshot.Store(&empty)
	r.mu.Unlock()

	r.logger.Debug("all rules removed")
}

// FindByPath scans the current snapshot in insertion order and returns the
// first rule whose pattern matches the path, along with the match result.
// The path must not carry a query string.
func (r *Registry) FindByPath(path string) (*CompiledRule, *Match) {
	for _, rule := range *r.snapshot.Load() {
		if m := rule.Pattern.Match(path); m != nil {
			r.logger.Debug("rule matched", "path", path, "rule", rule.ID)
			return rule, m
		}
	}
	r.logger.Debug("no rule matched", "path", path)
	return nil, nil
}

// Rules returns the current snapshot. Callers must not modify it.
func (r *Registry) Rules() []*CompiledRule {
	return *r.snapshot.Load()
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(*r.snapshot.Load())
}

func (r *Registry) publish(e Event) {
	if r.notifier != nil {
		r.notifier.Publish(e)
	}
}
