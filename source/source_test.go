package source

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/skyweaver213/digo/dfile"
	"github.com/skyweaver213/digo/dpath"
	"github.com/skyweaver213/digo/matcher"
	"github.com/skyweaver213/digo/pipeline"
	"github.com/skyweaver213/digo/vfs"
)

type recordingObserver struct {
	pipeline.NoopObserver
	mu    sync.Mutex
	dirs  []string
	files []string
}

func (o *recordingObserver) AddDir(list *pipeline.FileList, dir string, entries []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dirs = append(o.dirs, dir)
}

func (o *recordingObserver) AddFile(list *pipeline.FileList, file *dfile.File) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files = append(o.files, file.Name())
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSrcSeedsRootListWithMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.js":        "A",
		"b.txt":       "B",
		"nested/c.js": "C",
	})

	obs := &recordingObserver{}
	var seen []string
	var mu sync.Mutex

	cfg := &pipeline.Config{VFS: vfs.New(nil), Observer: obs}
	root := Src(dpath.Join(dpath.MustAbs(dir), "**/*.js"), cfg, nil)
	root.Pipe(&pipeline.Processor{
		Add: pipeline.SyncAdd(func(file *dfile.File) bool {
			mu.Lock()
			seen = append(seen, file.Name())
			mu.Unlock()
			return true
		}),
	}, nil)
	root.Discover()

	// The walk runs synchronously inside Discover, so no extra waiting is
	// needed before asserting.
	want := map[string]bool{"a.js": true, "nested/c.js": true}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want 2 entries", seen)
	}
	for _, name := range seen {
		if !want[name] {
			t.Errorf("unexpected file %q in pipeline", name)
		}
	}

	if len(obs.dirs) == 0 {
		t.Error("expected AddDir to have fired for at least the root directory")
	}
}

func TestSrcIgnoresMatchingIgnorePattern(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"keep.js":        "A",
		"vendor/skip.js": "B",
	})

	var seen []string
	cfg := &pipeline.Config{VFS: vfs.New(nil)}
	root := Src(dpath.Join(dpath.MustAbs(dir), "**/*.js"), cfg, &Options{
		Ignore: dpath.Join(dpath.MustAbs(dir), "vendor/**"),
	})
	root.Pipe(&pipeline.Processor{
		Add: pipeline.SyncAdd(func(file *dfile.File) bool {
			seen = append(seen, file.Name())
			return true
		}),
	}, nil)
	root.Discover()

	if len(seen) != 1 || seen[0] != "keep.js" {
		t.Errorf("seen = %v, want only keep.js", seen)
	}
}

func TestLoadIgnoreFileSkipsCommentsAndBlanks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".digoignore")
	content := "# generated output\n_out/**\n\nvendor/**\r\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	patterns, err := LoadIgnoreFile(vfs.New(nil), path)
	if err != nil {
		t.Fatalf("LoadIgnoreFile: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("patterns = %v, want 2 entries", patterns)
	}
	if patterns[0] != matcher.Pattern("_out/**") || patterns[1] != matcher.Pattern("vendor/**") {
		t.Errorf("patterns = %v", patterns)
	}
}

func TestSrcMultiplePatternBasesBothWalked(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/a.js":   "A",
		"assets/b.png": "B",
	})

	var seen []string
	cfg := &pipeline.Config{VFS: vfs.New(nil)}
	root := Src([]matcher.Pattern{
		dpath.Join(dpath.MustAbs(dir), "src/*.js"),
		dpath.Join(dpath.MustAbs(dir), "assets/*.png"),
	}, cfg, nil)
	root.Pipe(&pipeline.Processor{
		Add: pipeline.SyncAdd(func(file *dfile.File) bool {
			seen = append(seen, file.Name())
			return true
		}),
	}, nil)
	root.Discover()

	if len(seen) != 2 {
		t.Fatalf("seen = %v, want 2 entries", seen)
	}
}
