package httpproxy

import (
	"regexp"
	"strings"
)

// Pattern is a compiled match specification. It wraps an anchored regular
// expression together with the ordered list of capture names, so targets can
// substitute captures by name or by position.
type Pattern struct {
	re           *regexp.Regexp
	captureNames []string
	canonical    string
}

// CompilePattern compiles a match specification into a Pattern.
//
// The specification language supports three token forms on top of plain
// regular expression syntax:
//
//   - "*" becomes an unnamed capturing group matching any run of characters
//   - ":name" becomes a named capturing group matching a single path segment
//   - everything else is passed through to the regexp engine unmodified
//
// The resulting expression is anchored at both ends: a rule matches the
// whole request path, never a prefix of it. Specs that do not compile
// return an [InvalidPatternError].
func CompilePattern(spec string) (*Pattern, error) {
	src := anchor(translateSpec(spec))

	re, err := regexp.Compile(src)
	if err != nil {
		return nil, &InvalidPatternError{Spec: spec, Err: err}
	}

	return &Pattern{
		re:           re,
		captureNames: re.SubexpNames()[1:],
		canonical:    src,
	}, nil
}

// CompileRegexpPattern wraps a caller-supplied regular expression in the
// Pattern capture-name protocol. The expression is used as given, without
// token translation or anchoring.
func CompileRegexpPattern(re *regexp.Regexp) *Pattern {
	return &Pattern{
		re:           re,
		captureNames: re.SubexpNames()[1:],
		canonical:    re.String(),
	}
}

// translateSpec rewrites "*" and ":name" tokens into capturing groups while
// leaving raw regular expression syntax intact.
func translateSpec(spec string) string {
	var b strings.Builder
	b.Grow(len(spec) + 16)

	var prev byte
	for i := 0; i < len(spec); i++ {
		c := spec[i]

		switch {
		case c == '\\' && i+1 < len(spec):
			b.WriteByte(c)
			i++
			b.WriteByte(spec[i])
			prev = spec[i]
			continue

		case c == '*' && !quantifiable(prev):
			// Glob-style wildcard; a "*" following a regex atom like
			// "." or ")" is a quantifier and stays untouched.
			b.WriteString("(.*)")

		case c == ':' && i+1 < len(spec) && identStart(spec[i+1]):
			j := i + 1
			for j < len(spec) && identPart(spec[j]) {
				j++
			}
			b.WriteString("(?P<")
			b.WriteString(spec[i+1 : j])
			b.WriteString(">[^/]+)")
			i = j - 1

		default:
			b.WriteByte(c)
		}
		prev = c
	}

	return b.String()
}

// quantifiable reports whether a "*" directly after c acts as a regexp
// quantifier rather than a glob wildcard.
func quantifiable(c byte) bool {
	switch c {
	case '.', ')', ']', '}', '+', '?', '*':
		return true
	}
	return false
}

func identStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func identPart(c byte) bool {
	return identStart(c) || (c >= '0' && c <= '9')
}

func anchor(src string) string {
	if !strings.HasPrefix(src, "^") {
		src = "^" + src
	}
	if !strings.HasSuffix(src, "$") || strings.HasSuffix(src, `\$`) {
		src = src + "$"
	}
	return src
}

// Canonical returns the anchored regular expression source. Two match
// specifications that compile to the same canonical string are the same
// rule for upsert and removal purposes.
func (p *Pattern) Canonical() string {
	return p.canonical
}

// CaptureNames returns the ordered capture names. Unnamed groups appear as
// empty strings and are addressable by position only.
func (p *Pattern) CaptureNames() []string {
	return p.captureNames
}

// Match tests path against the pattern. It returns nil when the path does
// not match.
func (p *Pattern) Match(path string) *Match {
	groups := p.re.FindStringSubmatch(path)
	if groups == nil {
		return nil
	}
	return &Match{
		Captures: groups[1:],
		names:    p.captureNames,
	}
}

// Match holds the captures from a successful pattern match.
type Match struct {
	// Captures are the capture group values in pattern order.
	Captures []string

	names []string
}

// ByName returns the capture with the given name.
func (m *Match) ByName(name string) (string, bool) {
	for i, n := range m.names {
		if n == name && n != "" {
			return m.Captures[i], true
		}
	}
	return "", false
}

// ByIndex returns the capture at the given 1-based position, covering both
// named and anonymous groups.
func (m *Match) ByIndex(i int) (string, bool) {
	if i < 1 || i > len(m.Captures) {
		return "", false
	}
	return m.Captures[i-1], true
}
