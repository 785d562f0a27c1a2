package vfs

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestWriteFileCreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	fsys := New(nil)
	target := filepath.Join(dir, "nested", "deep", "file.txt")

	if err := fsys.WriteFile(target, []byte("hello"), 0o644, 0); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("content = %q", got)
	}
}

func TestStatIfExistsMissing(t *testing.T) {
	fsys := New(nil)
	_, ok, err := fsys.StatIfExists(filepath.Join(t.TempDir(), "nope"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing path")
	}
}

func TestReadFileIfExistsMissing(t *testing.T) {
	fsys := New(nil)
	data, ok, err := fsys.ReadFileIfExists(filepath.Join(t.TempDir(), "nope"), 0)
	if err != nil || ok || data != nil {
		t.Errorf("got data=%v ok=%v err=%v, want nil/false/nil", data, ok, err)
	}
}

func TestDeleteFileMissingIsNoop(t *testing.T) {
	fsys := New(nil)
	if err := fsys.DeleteFile(filepath.Join(t.TempDir(), "nope"), 0); err != nil {
		t.Errorf("expected nil error deleting missing file, got %v", err)
	}
}

func TestAppendFileCreatesFile(t *testing.T) {
	dir := t.TempDir()
	fsys := New(nil)
	target := filepath.Join(dir, "log.txt")

	if err := fsys.AppendFile(target, []byte("a"), 0o644, 0); err != nil {
		t.Fatalf("AppendFile: %v", err)
	}
	if err := fsys.AppendFile(target, []byte("b"), 0o644, 0); err != nil {
		t.Fatalf("AppendFile: %v", err)
	}

	got, _ := os.ReadFile(target)
	if string(got) != "ab" {
		t.Errorf("content = %q, want %q", got, "ab")
	}
}

func TestWalkVisitsFilesAndDirs(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "sub"), 0o755)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("b"), 0o644)

	fsys := New(nil)
	var files, dirs []string
	fsys.Walk(dir, WalkCallbacks{
		File: func(path string, st Stat) { files = append(files, filepath.Base(path)) },
		Dir:  func(path string) bool { dirs = append(dirs, filepath.Base(path)); return true },
	})

	if len(files) != 2 {
		t.Errorf("expected 2 files, got %v", files)
	}
	if len(dirs) != 2 { // root + sub
		t.Errorf("expected 2 dirs, got %v", dirs)
	}
}

func TestWalkPruneSkipsDescent(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "skip"), 0o755)
	os.WriteFile(filepath.Join(dir, "skip", "hidden.txt"), []byte("x"), 0o644)

	fsys := New(nil)
	var files []string
	fsys.Walk(dir, WalkCallbacks{
		File: func(path string, st Stat) { files = append(files, path) },
		Dir: func(path string) bool {
			return filepath.Base(path) != "skip"
		},
	})

	if len(files) != 0 {
		t.Errorf("expected pruned directory to yield no files, got %v", files)
	}
}

func TestWalkAsyncVisitsAllFiles(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		sub := filepath.Join(dir, "d", string(rune('a'+i)))
		os.MkdirAll(sub, 0o755)
		os.WriteFile(filepath.Join(sub, "f.txt"), []byte("x"), 0o644)
	}

	fsys := New(nil)
	var count atomic.Int64
	err := fsys.WalkAsync(context.Background(), dir, WalkCallbacks{
		File: func(path string, st Stat) { count.Add(1) },
	})
	if err != nil {
		t.Fatalf("WalkAsync: %v", err)
	}
	if count.Load() != 5 {
		t.Errorf("expected 5 files visited, got %d", count.Load())
	}
}

func TestDeleteDirIfEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	os.MkdirAll(empty, 0o755)

	fsys := New(nil)
	if err := fsys.DeleteDirIfEmpty(empty); err != nil {
		t.Fatalf("DeleteDirIfEmpty: %v", err)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Error("expected empty dir to be removed")
	}
}

func TestPruneEmptyParents(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	os.MkdirAll(nested, 0o755)

	fsys := New(nil)
	fsys.PruneEmptyParents(nested, dir)

	if _, err := os.Stat(filepath.Join(dir, "a")); !os.IsNotExist(err) {
		t.Error("expected all empty ancestors up to stop to be removed")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Error("expected stop directory itself to survive")
	}
}
