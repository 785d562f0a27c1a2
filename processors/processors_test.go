package processors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skyweaver213/digo/buildmode"
	"github.com/skyweaver213/digo/dfile"
	"github.com/skyweaver213/digo/dpath"
	"github.com/skyweaver213/digo/pipeline"
	"github.com/skyweaver213/digo/vfs"
)

func newTestConfig(mode buildmode.Mode) *pipeline.Config {
	return &pipeline.Config{Mode: mode, VFS: vfs.New(nil)}
}

func seedFile(t *testing.T, dir string, cfg *pipeline.Config, name, content string) *dfile.File {
	t.Helper()
	abs := dpath.Join(dpath.MustAbs(dir), name)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dfile.New(dfile.Options{
		InitialPath: abs,
		Base:        dpath.MustAbs(dir),
		VFS:         cfg.VFS,
	})
}

func TestRenameRewritesName(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(buildmode.Build)

	root := pipeline.NewRoot(nil, cfg)
	root.Pipe(Rename(func(name string) string {
		return dpath.WithoutExt(name) + ".min.js"
	}), nil)

	f := seedFile(t, dir, cfg, "app.js", "x")
	root.Add(f)
	root.End()

	if f.Name() != "app.min.js" {
		t.Errorf("Name() = %q, want %q", f.Name(), "app.min.js")
	}
}

func TestConcatCombinesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(buildmode.Build)

	root := pipeline.NewRoot(nil, cfg)
	concat := root.Pipe(Concat(ConcatOptions{OutputName: "bundle.js"}), nil)

	var out *dfile.File
	concat.Pipe(&pipeline.Processor{
		Add: pipeline.SyncAdd(func(file *dfile.File) bool {
			out = file
			return true
		}),
	}, nil)

	a := seedFile(t, dir, cfg, "a.js", "X")
	b := seedFile(t, dir, cfg, "b.js", "Y")
	root.Add(a)
	root.Add(b)
	root.End()

	if out == nil {
		t.Fatal("expected a combined file to reach the downstream stage")
	}
	content, err := out.Content()
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if content != "X\nY" {
		t.Errorf("Content() = %q, want %q", content, "X\nY")
	}
	if out.Name() != "bundle.js" {
		t.Errorf("Name() = %q, want bundle.js", out.Name())
	}
}

func TestConcatWithSourceMapTracksOrigins(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(buildmode.Build)

	root := pipeline.NewRoot(nil, cfg)
	concat := root.Pipe(Concat(ConcatOptions{OutputName: "bundle.js", SourceMap: true, LineMappingsOnly: true}), nil)

	var out *dfile.File
	concat.Pipe(&pipeline.Processor{
		Add: pipeline.SyncAdd(func(file *dfile.File) bool {
			out = file
			return true
		}),
	}, nil)

	root.Add(seedFile(t, dir, cfg, "a.js", "X"))
	root.Add(seedFile(t, dir, cfg, "b.js", "Y"))
	root.End()

	sm := out.SourceMap()
	if sm == nil {
		t.Fatal("expected a source map to be attached")
	}
	pos, ok := sm.GetSource(0, 0)
	if !ok || pos.Source != "a.js" {
		t.Errorf("GetSource(0,0) = %+v, %v", pos, ok)
	}
	pos, ok = sm.GetSource(1, 0)
	if !ok || pos.Source != "b.js" {
		t.Errorf("GetSource(1,0) = %+v, %v", pos, ok)
	}
}

func TestConcatEmptyBatchProducesNoFile(t *testing.T) {
	cfg := newTestConfig(buildmode.Build)

	root := pipeline.NewRoot(nil, cfg)
	concat := root.Pipe(Concat(ConcatOptions{OutputName: "bundle.js"}), nil)

	var called bool
	concat.Pipe(&pipeline.Processor{
		Add: pipeline.SyncAdd(func(file *dfile.File) bool {
			called = true
			return true
		}),
	}, nil)

	root.End()

	if called {
		t.Error("expected no downstream file for an empty collected batch")
	}
}

func TestValidateJSAcceptsWellFormedSource(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(buildmode.Build)

	root := pipeline.NewRoot(nil, cfg)
	root.Pipe(ValidateJS(), nil)

	f := seedFile(t, dir, cfg, "ok.js", "function greet(name) { return 'hi ' + name; }")
	root.Add(f)
	root.End()

	if f.ErrorCount() != 0 {
		t.Errorf("ErrorCount() = %d, want 0 for valid JS", f.ErrorCount())
	}
}

func TestValidateJSFlagsSyntaxError(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(buildmode.Build)

	root := pipeline.NewRoot(nil, cfg)
	root.Pipe(ValidateJS(), nil)

	f := seedFile(t, dir, cfg, "bad.js", "function greet( {")
	root.Add(f)
	root.End()

	if f.ErrorCount() == 0 {
		t.Error("expected ErrorCount() > 0 for malformed JS")
	}
}

func TestValidateJSSkipsJSONFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(buildmode.Build)

	root := pipeline.NewRoot(nil, cfg)
	root.Pipe(ValidateJS(), nil)

	f := seedFile(t, dir, cfg, "data.json", "{not valid json or js")
	root.Add(f)
	root.End()

	if f.ErrorCount() != 0 {
		t.Errorf("ErrorCount() = %d, want 0 (json files are skipped)", f.ErrorCount())
	}
}

func TestTransformProducesJSOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(buildmode.Build)

	root := pipeline.NewRoot(nil, cfg)
	root.Pipe(Transform(TransformOptions{}), nil)

	f := seedFile(t, dir, cfg, "app.ts", "const x: number = 1 + 2;\nconsole.log(x);")
	root.Add(f)
	root.End()

	if f.ErrorCount() != 0 {
		t.Fatalf("ErrorCount() = %d, want 0", f.ErrorCount())
	}
	content, err := f.Content()
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if content == "" {
		t.Error("expected non-empty transformed output")
	}
	if f.SourceMap() == nil {
		t.Error("expected Transform to attach a source map")
	}
}

func TestTransformHashesOutputName(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(buildmode.Build)

	root := pipeline.NewRoot(nil, cfg)
	root.Pipe(Transform(TransformOptions{HashPattern: "app.[hash].js"}), nil)

	f := seedFile(t, dir, cfg, "app.js", "console.log(1);")
	root.Add(f)
	root.End()

	if f.Name() == "app.js" {
		t.Error("expected HashPattern to rename the file")
	}
}
