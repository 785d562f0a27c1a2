// Package matcher compiles digo's glob/regexp/predicate patterns into a
// single Matcher that tests absolute paths for inclusion, honoring exclude
// patterns and nested matchers. Globs compile through doublestar; every
// compiled pattern carries the fixed base directory a walker should start
// from.
package matcher

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/skyweaver213/digo/dpath"
)

// Predicate is a user-supplied membership test.
type Predicate func(absPath string) bool

// Pattern is anything that can be compiled into part of a Matcher: a glob
// string (leading "!" marks it as exclude), a *regexp.Regexp, a Predicate,
// another *Matcher, or a slice of any of the above.
type Pattern any

// compiled is one compiled include or exclude entry.
type compiled struct {
	raw     string
	base    string // longest fixed (meta-character-free) prefix directory
	dirOnly bool
	test    func(absPath string) bool
}

// Matcher is a compiled disjunction of include patterns minus an optional
// exclude set.
type Matcher struct {
	includes []compiled
	excludes []compiled
	cwd      string
	base     string
}

// Options configures compilation.
type Options struct {
	// Cwd anchors relative glob patterns ("./foo", or any pattern without a
	// leading "/"). Defaults to ".".
	Cwd string
}

// New compiles patterns into a Matcher. A Matcher with zero include
// patterns matches everything, still subject to excludes.
func New(patterns Pattern, opts *Options) *Matcher {
	cwd := "."
	if opts != nil && opts.Cwd != "" {
		cwd = opts.Cwd
	}
	cwd = dpath.MustAbs(cwd)

	m := &Matcher{cwd: cwd}
	flatten(patterns, m, false)
	m.base = computeBase(m.includes, cwd)
	return m
}

// Base is the common directory of the matcher's include patterns, i.e. the
// root a glob driver should walk from.
func (m *Matcher) Base() string {
	return m.base
}

// Bases returns the distinct base directory of each include pattern, so a
// glob driver can walk each pattern's own root instead of their common
// ancestor. A
// matcher with no include patterns returns its cwd.
func (m *Matcher) Bases() []string {
	if len(m.includes) == 0 {
		return []string{m.cwd}
	}
	seen := make(map[string]bool, len(m.includes))
	var out []string
	for _, c := range m.includes {
		if seen[c.base] {
			continue
		}
		seen[c.base] = true
		out = append(out, c.base)
	}
	return out
}

// Test reports whether path is included: matched by some include pattern
// (or there are none) and not matched by any exclude pattern.
func (m *Matcher) Test(path string) bool {
	abs := dpath.MustAbs(path)

	included := len(m.includes) == 0
	for _, c := range m.includes {
		if c.test(abs) {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	for _, c := range m.excludes {
		if c.test(abs) {
			return false
		}
	}
	return true
}

// flatten walks a Pattern value (possibly nested slices/matchers) and
// appends compiled entries to m.includes/m.excludes.
func flatten(p Pattern, m *Matcher, forceExclude bool) {
	switch v := p.(type) {
	case nil:
		return
	case string:
		exclude := forceExclude
		raw := v
		if strings.HasPrefix(raw, "!") {
			exclude = true
			raw = raw[1:]
		}
		c := compileGlob(raw, m.cwd)
		if exclude {
			m.excludes = append(m.excludes, c)
		} else {
			m.includes = append(m.includes, c)
		}
	case *regexp.Regexp:
		c := compiled{raw: v.String(), base: m.cwd, test: func(abs string) bool { return v.MatchString(abs) }}
		if forceExclude {
			m.excludes = append(m.excludes, c)
		} else {
			m.includes = append(m.includes, c)
		}
	case Predicate:
		c := compiled{raw: "<func>", base: m.cwd, test: func(abs string) bool { return v(abs) }}
		if forceExclude {
			m.excludes = append(m.excludes, c)
		} else {
			m.includes = append(m.includes, c)
		}
	case func(string) bool:
		flatten(Predicate(v), m, forceExclude)
	case *Matcher:
		c := compiled{raw: "<matcher>", base: v.base, test: v.Test}
		if forceExclude {
			m.excludes = append(m.excludes, c)
		} else {
			m.includes = append(m.includes, c)
		}
	case []Pattern:
		for _, item := range v {
			flatten(item, m, forceExclude)
		}
	case []string:
		for _, item := range v {
			flatten(item, m, forceExclude)
		}
	default:
		// Unknown pattern kinds are compiled into an always-false test
		// rather than panicking: compilation is total.
		m.includes = append(m.includes, compiled{raw: "<unsupported>", base: m.cwd, test: func(string) bool { return false }})
	}
}

// compileGlob turns a single glob string into a compiled matcher entry.
// Compilation never fails: an unparsable pattern degrades to a literal
// equality test against its own absolute form.
func compileGlob(pattern, cwd string) compiled {
	dirOnly := false
	if strings.HasSuffix(pattern, "/") && pattern != "/" && !strings.HasSuffix(pattern, "**/") {
		dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}

	abs := anchor(pattern, cwd)

	if !doublestar.ValidatePattern(abs) {
		literal := abs
		return compiled{
			raw:     pattern,
			base:    literal,
			dirOnly: dirOnly,
			test:    func(p string) bool { return p == literal },
		}
	}

	base, _ := doublestar.SplitPattern(abs)

	test := func(p string) bool {
		ok, err := doublestar.Match(abs, p)
		return err == nil && ok
	}
	if dirOnly {
		// A trailing "/" means "directory only": the directory itself and
		// anything beneath it.
		sub := abs + "/**"
		test = func(p string) bool {
			if ok, err := doublestar.Match(abs, p); err == nil && ok {
				return true
			}
			ok, err := doublestar.Match(sub, p)
			return err == nil && ok
		}
	}

	return compiled{
		raw:     pattern,
		base:    base,
		dirOnly: dirOnly,
		test:    test,
	}
}

// anchor resolves a glob pattern to an absolute, "/"-separated glob:
//   - a pattern with no "/" (besides a trailing one, already stripped above)
//     matches by basename anywhere in the tree (implicit "**/" prefix)
//   - "./foo" anchors explicitly to cwd
//   - an absolute pattern anchors at root
//   - anything else is relative to cwd
func anchor(pattern, cwd string) string {
	slashPattern := filepath.ToSlash(pattern)

	if dpath.IsAbs(slashPattern) {
		return dpath.Clean(slashPattern)
	}

	if strings.HasPrefix(slashPattern, "./") {
		return dpath.Join(cwd, strings.TrimPrefix(slashPattern, "./"))
	}

	if !strings.Contains(slashPattern, "/") {
		return dpath.Join(cwd, "**", slashPattern)
	}

	return dpath.Join(cwd, slashPattern)
}

// computeBase returns the common directory of a set of compiled include
// patterns' own bases, or cwd if there are no includes.
func computeBase(includes []compiled, cwd string) string {
	if len(includes) == 0 {
		return cwd
	}
	bases := make([]string, len(includes))
	for i, c := range includes {
		bases[i] = c.base
	}
	return dpath.CommonDirAll(bases)
}
