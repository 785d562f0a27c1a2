// Package dpath provides the path normalization, relativization, and
// decomposition helpers the rest of digo builds on. Logical file names
// inside digo always use "/"; platform-native paths only appear at the
// filesystem boundary (vfs, source, watch).
package dpath

import (
	"path/filepath"
	"strings"
)

// CaseSensitive reports whether the host filesystem is treated as
// case-sensitive for matching purposes. The host path separator is the
// signal: a "\" separator (Windows) implies a case-insensitive host.
func CaseSensitive() bool {
	return filepath.Separator != '\\'
}

// ToSlash converts platform path separators to "/".
func ToSlash(p string) string {
	return filepath.ToSlash(p)
}

// FromSlash converts "/" to the platform path separator.
func FromSlash(p string) string {
	return filepath.FromSlash(p)
}

// Abs resolves p to an absolute, slash-normalized path relative to cwd. An
// already-absolute p is normalized but not re-rooted.
func Abs(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return ToSlash(p), err
	}
	return ToSlash(abs), nil
}

// MustAbs is Abs without an error return; a resolution failure falls back
// to a best-effort slash-normalized form of p.
func MustAbs(p string) string {
	abs, err := Abs(p)
	if err != nil {
		return ToSlash(p)
	}
	return abs
}

// Rel returns a slash-normalized path for target relative to base. Both
// arguments are normalized before computing the relation.
func Rel(base, target string) (string, error) {
	rel, err := filepath.Rel(FromSlash(base), FromSlash(target))
	if err != nil {
		return "", err
	}
	return ToSlash(rel), nil
}

// Clean normalizes a slash path (collapsing "..", ".", and repeated
// separators) without touching the platform separator.
func Clean(p string) string {
	return ToSlash(filepath.Clean(FromSlash(p)))
}

// Join joins slash-normalized path segments.
func Join(elem ...string) string {
	return ToSlash(filepath.Join(elem...))
}

// Dir returns the slash-normalized parent directory of p.
func Dir(p string) string {
	return ToSlash(filepath.Dir(FromSlash(p)))
}

// Base returns the final path element of p.
func Base(p string) string {
	return filepath.Base(FromSlash(p))
}

// Ext returns the file extension of p, including the leading dot.
func Ext(p string) string {
	return filepath.Ext(p)
}

// IsAbs reports whether p is an absolute path, either in platform or slash form.
func IsAbs(p string) bool {
	return filepath.IsAbs(FromSlash(p)) || strings.HasPrefix(p, "/")
}

// equalSegment compares two path segments honoring host case-sensitivity.
func equalSegment(a, b string) bool {
	if CaseSensitive() {
		return a == b
	}
	return strings.EqualFold(a, b)
}

// CommonDir returns the longest shared directory prefix of a and b, always
// ending on a separator boundary (i.e. it never splits a path component in
// half). Both inputs are normalized to absolute slash paths first.
func CommonDir(a, b string) string {
	aa := MustAbs(a)
	bb := MustAbs(b)

	aParts := strings.Split(strings.TrimPrefix(aa, "/"), "/")
	bParts := strings.Split(strings.TrimPrefix(bb, "/"), "/")

	n := min(len(aParts), len(bParts))
	var common []string
	for i := 0; i < n; i++ {
		if !equalSegment(aParts[i], bParts[i]) {
			break
		}
		common = append(common, aParts[i])
	}

	if len(common) == 0 {
		return "/"
	}
	return "/" + strings.Join(common, "/")
}

// CommonDirAll returns the common directory across every path in paths. It
// returns "/" for an empty input.
func CommonDirAll(paths []string) string {
	if len(paths) == 0 {
		return "/"
	}
	common := paths[0]
	for _, p := range paths[1:] {
		common = CommonDir(common, p)
	}
	return MustAbs(common)
}

// InDir reports whether child is parent itself or lies somewhere under it,
// after normalization.
func InDir(parent, child string) bool {
	p := strings.TrimSuffix(MustAbs(parent), "/")
	c := MustAbs(child)
	if equalSegment(p, c) {
		return true
	}
	if CaseSensitive() {
		return strings.HasPrefix(c, p+"/")
	}
	return strings.HasPrefix(strings.ToLower(c), strings.ToLower(p)+"/")
}

// WithoutExt strips the extension (if any) from a slash path.
func WithoutExt(p string) string {
	ext := Ext(p)
	return strings.TrimSuffix(p, ext)
}
