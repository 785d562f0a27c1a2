package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skyweaver213/digo/buildmode"
	"github.com/skyweaver213/digo/dfile"
	"github.com/skyweaver213/digo/dpath"
	"github.com/skyweaver213/digo/vfs"
	"github.com/skyweaver213/digo/writer"
)

func newTestConfig(mode buildmode.Mode) *Config {
	return &Config{Mode: mode, VFS: vfs.New(nil)}
}

func seedFile(t *testing.T, cfg *Config, dir, name, content string) *dfile.File {
	t.Helper()
	abs := dpath.Join(dpath.MustAbs(dir), name)
	os.MkdirAll(filepath.Dir(abs), 0o755)
	os.WriteFile(abs, []byte(content), 0o644)
	return dfile.New(dfile.Options{
		InitialPath: abs,
		Base:        dpath.MustAbs(dir),
		VFS:         cfg.VFS,
	})
}

func TestIdentityPipeToDest(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "_out")
	cfg := newTestConfig(buildmode.Build)

	root := NewRoot(nil, cfg)
	dest := root.Dest(outDir, DestOptions{})

	files := map[string]string{
		"f1.txt":     "A",
		"f2.txt":     "B",
		"sub/f3.txt": "C",
	}
	for name, content := range files {
		f := seedFile(t, cfg, dir, name, content)
		root.Add(f)
	}
	root.End()
	_ = dest

	for name, content := range files {
		got, err := os.ReadFile(filepath.Join(outDir, filepath.FromSlash(name)))
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", name, err)
		}
		if string(got) != content {
			t.Errorf("%s content = %q, want %q", name, got, content)
		}
	}
}

func TestAppendTransformPreviewMode(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "_out")
	cfg := newTestConfig(buildmode.Preview)

	root := NewRoot(nil, cfg)
	transform := root.Pipe(&Processor{
		Name: "append",
		Add: SyncAdd(func(file *dfile.File) bool {
			content, _ := file.Content()
			file.SetContent(content + "!")
			return true
		}),
	}, nil)
	transform.Dest(outDir, DestOptions{})

	f := seedFile(t, cfg, dir, "a.txt", "hello")
	root.Add(f)
	root.End()

	content, _ := f.Content()
	if content != "hello!" {
		t.Errorf("Content() = %q, want %q", content, "hello!")
	}
	if !f.Modified() {
		t.Error("expected Modified() == true")
	}
	if _, err := os.Stat(filepath.Join(outDir, "a.txt")); !os.IsNotExist(err) {
		t.Error("expected preview mode to perform no I/O")
	}
}

func TestCollectingConcat(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(buildmode.Build)

	var outFile *dfile.File
	root := NewRoot(nil, cfg)
	root.Pipe(&Processor{
		Name:    "concat",
		Collect: true,
		End: func(files []*dfile.File, opts any, result *FileList, done func()) {
			w := writer.NewSourceMapWriter(true)
			for i, f := range files {
				if i > 0 {
					w.Write("\n", -1, -1)
				}
				content, _ := f.Content()
				w.WriteMapped(content, f.Name(), 0, 0)
			}
			outFile = dfile.New(dfile.Options{Name: "bundle.js", Base: dpath.MustAbs(dir), VFS: cfg.VFS})
			w.End(outFile)
			done()
		},
	}, nil)

	a := seedFile(t, cfg, dir, "a.js", "X")
	b := seedFile(t, cfg, dir, "b.js", "Y")
	root.Add(a)
	root.Add(b)
	root.End()

	if outFile == nil {
		t.Fatal("expected End hook to produce a combined file")
	}
	content, _ := outFile.Content()
	if content != "X\nY" {
		t.Errorf("Content() = %q, want %q", content, "X\nY")
	}

	sm := outFile.SourceMap()
	pos, ok := sm.GetSource(0, 0)
	if !ok || pos.Source != "a.js" {
		t.Errorf("GetSource(0,0) = %+v, %v", pos, ok)
	}
	pos, ok = sm.GetSource(1, 0)
	if !ok || pos.Source != "b.js" {
		t.Errorf("GetSource(1,0) = %+v, %v", pos, ok)
	}
}

func TestSrcFilterForwardsOnlyMatching(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(buildmode.Build)

	root := NewRoot(nil, cfg)
	filtered := root.Src("*.js")

	var seen []string
	filtered.Pipe(&Processor{
		Add: SyncAdd(func(file *dfile.File) bool {
			seen = append(seen, file.Name())
			return true
		}),
	}, nil)

	root.Add(seedFile(t, cfg, dir, "a.js", "x"))
	root.Add(seedFile(t, cfg, dir, "a.txt", "x"))
	root.End()

	if len(seen) != 1 || seen[0] != "a.js" {
		t.Errorf("seen = %v, want only a.js", seen)
	}
}

func TestCloneGivesDownstreamIndependentFile(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(buildmode.Build)

	root := NewRoot(nil, cfg)
	cloned := root.Clone()

	var downstream *dfile.File
	cloned.Pipe(&Processor{
		Add: SyncAdd(func(file *dfile.File) bool {
			downstream = file
			file.SetContent("mutated")
			return true
		}),
	}, nil)

	original := seedFile(t, cfg, dir, "a.txt", "hello")
	root.Add(original)
	root.End()

	if downstream == original {
		t.Fatal("expected Clone() to hand downstream a distinct File")
	}
	origContent, _ := original.Content()
	if origContent != "hello" {
		t.Errorf("original mutated by downstream clone: %q", origContent)
	}
}

func TestAsyncAddKeepFalseSuppressesForwarding(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(buildmode.Build)

	root := NewRoot(nil, cfg)
	filtered := root.Pipe(&Processor{
		Add: AsyncAdd(func(file *dfile.File, done func(keep bool)) {
			go done(false)
		}),
	}, nil)

	reached := false
	ended := make(chan struct{})
	filtered.Pipe(&Processor{
		Add: SyncAdd(func(file *dfile.File) bool { reached = true; return true }),
		End: func(_ []*dfile.File, _ any, _ *FileList, done func()) {
			close(ended)
			done()
		},
	}, nil)

	root.Add(seedFile(t, cfg, dir, "a.txt", "x"))
	root.End()
	<-ended

	if reached {
		t.Error("expected suppressed file to never reach downstream stage")
	}
}
