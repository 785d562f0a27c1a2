package dpath

import (
	"testing"
)

func TestRelJoinRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		target string
	}{
		{"direct child", "/proj", "/proj/a.txt"},
		{"nested child", "/proj", "/proj/sub/dir/a.txt"},
		{"sibling", "/proj/a", "/proj/b/c.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel, err := Rel(tt.base, tt.target)
			if err != nil {
				t.Fatalf("Rel(%q, %q): %v", tt.base, tt.target, err)
			}
			if got := Join(tt.base, rel); got != Clean(tt.target) {
				t.Errorf("Join(%q, Rel(...)) = %q, want %q", tt.base, got, Clean(tt.target))
			}
		})
	}
}

func TestCommonDir(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{"shared parent", "/proj/src/a.js", "/proj/src/b.js", "/proj/src"},
		{"divergent below root dir", "/proj/src/a.js", "/proj/out/b.js", "/proj"},
		{"identical", "/proj/src", "/proj/src", "/proj/src"},
		{"no shared component", "/alpha/x", "/beta/y", "/"},
		{"prefix is not a component", "/proj/srcdir/a", "/proj/src/b", "/proj"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CommonDir(tt.a, tt.b); got != tt.want {
				t.Errorf("CommonDir(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCommonDirAll(t *testing.T) {
	got := CommonDirAll([]string{"/proj/a/x", "/proj/a/y", "/proj/b/z"})
	if got != "/proj" {
		t.Errorf("CommonDirAll = %q, want %q", got, "/proj")
	}
	if got := CommonDirAll(nil); got != "/" {
		t.Errorf("CommonDirAll(nil) = %q, want %q", got, "/")
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		name   string
		parent string
		child  string
		want   bool
	}{
		{"direct child", "/proj", "/proj/a.txt", true},
		{"nested child", "/proj", "/proj/x/y/a.txt", true},
		{"parent itself", "/proj", "/proj", true},
		{"sibling", "/proj", "/other/a.txt", false},
		{"name prefix only", "/proj", "/project/a.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InDir(tt.parent, tt.child); got != tt.want {
				t.Errorf("InDir(%q, %q) = %v, want %v", tt.parent, tt.child, got, tt.want)
			}
		})
	}
}

func TestWithoutExt(t *testing.T) {
	if got := WithoutExt("sub/a.txt"); got != "sub/a" {
		t.Errorf("WithoutExt = %q, want %q", got, "sub/a")
	}
	if got := WithoutExt("noext"); got != "noext" {
		t.Errorf("WithoutExt = %q, want %q", got, "noext")
	}
}
