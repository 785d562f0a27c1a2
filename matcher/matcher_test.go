package matcher

import (
	"path/filepath"
	"testing"

	"github.com/skyweaver213/digo/dpath"
)

func TestMatcherBasenameGlob(t *testing.T) {
	root := t.TempDir()
	root = dpath.MustAbs(root)

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"basename match anywhere", "*.txt", dpath.Join(root, "a.txt"), true},
		{"basename match nested", "*.txt", dpath.Join(root, "sub/dir/a.txt"), true},
		{"basename no match", "*.txt", dpath.Join(root, "a.go"), false},
		{"explicit slash anchors to cwd", "sub/*.go", dpath.Join(root, "sub/a.go"), true},
		{"explicit slash does not match elsewhere", "sub/*.go", dpath.Join(root, "other/a.go"), false},
		{"doublestar crosses dirs", "**/a.go", dpath.Join(root, "x/y/z/a.go"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.pattern, &Options{Cwd: root})
			if got := m.Test(tt.path); got != tt.want {
				t.Errorf("Test(%q) with pattern %q = %v, want %v", tt.path, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestMatcherExclude(t *testing.T) {
	root := dpath.MustAbs(t.TempDir())
	m := New([]Pattern{"*.txt", "!secret.txt"}, &Options{Cwd: root})

	if !m.Test(dpath.Join(root, "a.txt")) {
		t.Error("expected a.txt to be included")
	}
	if m.Test(dpath.Join(root, "secret.txt")) {
		t.Error("expected secret.txt to be excluded")
	}
}

func TestMatcherEmptyIncludesMatchesAll(t *testing.T) {
	root := dpath.MustAbs(t.TempDir())
	m := New([]Pattern{"!*.log"}, &Options{Cwd: root})

	if !m.Test(dpath.Join(root, "a.txt")) {
		t.Error("expected all non-excluded paths to match when there are no includes")
	}
	if m.Test(dpath.Join(root, "a.log")) {
		t.Error("expected a.log to be excluded")
	}
}

func TestMatcherBase(t *testing.T) {
	root := dpath.MustAbs(t.TempDir())
	m := New([]Pattern{dpath.Join(root, "a/b/*.go"), dpath.Join(root, "a/c/*.go")}, nil)

	want := dpath.Join(root, "a")
	if m.Base() != want {
		t.Errorf("Base() = %q, want %q", m.Base(), want)
	}
}

func TestMatcherBasesReturnsDistinctPatternRoots(t *testing.T) {
	root := dpath.MustAbs(t.TempDir())
	m := New([]Pattern{dpath.Join(root, "a/*.go"), dpath.Join(root, "b/*.go"), dpath.Join(root, "a/*.js")}, nil)

	bases := m.Bases()
	want := map[string]bool{dpath.Join(root, "a"): true, dpath.Join(root, "b"): true}
	if len(bases) != len(want) {
		t.Fatalf("Bases() = %v, want 2 distinct entries", bases)
	}
	for _, b := range bases {
		if !want[b] {
			t.Errorf("unexpected base %q", b)
		}
	}
}

func TestMatcherNestedMatcher(t *testing.T) {
	root := dpath.MustAbs(t.TempDir())
	inner := New("*.txt", &Options{Cwd: root})
	outer := New(inner, &Options{Cwd: root})

	if !outer.Test(dpath.Join(root, "a.txt")) {
		t.Error("expected nested matcher to delegate Test")
	}
}

func TestMatcherPredicate(t *testing.T) {
	root := dpath.MustAbs(t.TempDir())
	m := New(Predicate(func(p string) bool { return filepath.Ext(p) == ".md" }), &Options{Cwd: root})

	if !m.Test(dpath.Join(root, "readme.md")) {
		t.Error("expected predicate match")
	}
	if m.Test(dpath.Join(root, "readme.txt")) {
		t.Error("expected predicate non-match")
	}
}

func TestMatcherDirOnlyPatternCoversSubtree(t *testing.T) {
	root := dpath.MustAbs(t.TempDir())
	m := New("vendor/", &Options{Cwd: root})

	if !m.Test(dpath.Join(root, "vendor")) {
		t.Error("expected the directory itself to match")
	}
	if !m.Test(dpath.Join(root, "vendor/pkg/a.go")) {
		t.Error("expected paths under the directory to match")
	}
	if m.Test(dpath.Join(root, "vendored/a.go")) {
		t.Error("expected a name-prefix sibling to not match")
	}
}

func TestMatcherInvalidPatternDegradesToLiteral(t *testing.T) {
	root := dpath.MustAbs(t.TempDir())
	// An unterminated character class is not a valid doublestar pattern;
	// compilation must still succeed.
	m := New("sub/[abc.go", &Options{Cwd: root})

	if m.Test(dpath.Join(root, "sub/x.go")) {
		t.Error("expected invalid pattern to never match an unrelated path")
	}
}
