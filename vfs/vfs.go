// Package vfs is digo's filesystem facade: stat/read/write/copy/move/delete/
// walk, with bounded retry on transient errors and an EMFILE/ENFILE
// backpressure queue. Every operation is synchronous; only walking and
// directory copying also have async forms (WalkAsync, CopyDirAsync), whose
// concurrent fan-out is errgroup-bounded. The low-level file operations
// live in kit/fsutil.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skyweaver213/digo/kit/colorlog"
	"github.com/skyweaver213/digo/kit/fsutil"
)

// DirEntry is a stat-independent directory listing entry.
type DirEntry struct {
	Name  string
	IsDir bool
}

// Stat is the subset of file metadata digo's components need.
type Stat struct {
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
	IsDir   bool
}

// FS is the filesystem facade. The zero value is not usable; use New.
type FS struct {
	log         *slog.Logger
	retryDelay  time.Duration
	maxTryCount int

	backpressure *backpressureQueue
}

// Options configures a facade.
type Options struct {
	Log *slog.Logger
	// RetryDelay is the backoff between transient-error retries. Defaults
	// to 50ms.
	RetryDelay time.Duration
	// MaxTryCount bounds retries when a caller passes tryCount<=0. Defaults
	// to 3.
	MaxTryCount int
}

// New builds a filesystem facade.
func New(opts *Options) *FS {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if o.Log == nil {
		o.Log = colorlog.New("vfs")
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 50 * time.Millisecond
	}
	if o.MaxTryCount <= 0 {
		o.MaxTryCount = 3
	}
	return &FS{
		log:          o.Log,
		retryDelay:   o.RetryDelay,
		maxTryCount:  o.MaxTryCount,
		backpressure: newBackpressureQueue(5 * time.Second),
	}
}

// isTransient reports whether err is the kind of OS-level error the facade
// should retry: too-many-open-files or a locking conflict.
func isTransient(err error) bool {
	return isEMFILEorENFILE(err) || errors.Is(err, syscall.EAGAIN)
}

func isEMFILEorENFILE(err error) bool {
	return errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE)
}

func isNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }

// withRetry runs op, retrying transient errors up to tryCount times (or the
// facade default when tryCount<=0), routing EMFILE/ENFILE through the
// backpressure queue's watchdog-guarded wait.
func (f *FS) withRetry(ctx context.Context, tryCount int, op func() error) error {
	if tryCount <= 0 {
		tryCount = f.maxTryCount
	}
	defer f.backpressure.release()
	var lastErr error
	for attempt := 0; attempt < tryCount; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
		f.backpressure.wait(ctx, f.retryDelay*time.Duration(attempt+1))
	}
	return fmt.Errorf("vfs: giving up after %d attempts: %w", tryCount, lastErr)
}

// Stat returns file metadata for path.
func (f *FS) Stat(path string, tryCount int) (Stat, error) {
	var st Stat
	err := f.withRetry(context.Background(), tryCount, func() error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		st = Stat{Size: info.Size(), Mode: info.Mode(), ModTime: info.ModTime(), IsDir: info.IsDir()}
		return nil
	})
	return st, err
}

// StatIfExists is Stat but returns (Stat{}, false, nil) instead of an error
// when the path does not exist.
func (f *FS) StatIfExists(path string, tryCount int) (Stat, bool, error) {
	st, err := f.Stat(path, tryCount)
	if isNotExist(err) {
		return Stat{}, false, nil
	}
	if err != nil {
		return Stat{}, false, err
	}
	return st, true, nil
}

// ReadDir lists directory entries, sorted by name.
func (f *FS) ReadDir(path string, tryCount int) ([]DirEntry, error) {
	var out []DirEntry
	err := f.withRetry(context.Background(), tryCount, func() error {
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		out = make([]DirEntry, len(entries))
		for i, e := range entries {
			out[i] = DirEntry{Name: e.Name(), IsDir: e.IsDir()}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

// ReadFile reads the full content of path.
func (f *FS) ReadFile(path string, tryCount int) ([]byte, error) {
	var data []byte
	err := f.withRetry(context.Background(), tryCount, func() error {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	return data, err
}

// ReadFileIfExists is ReadFile but returns (nil, false, nil) for a missing path.
func (f *FS) ReadFileIfExists(path string, tryCount int) ([]byte, bool, error) {
	data, err := f.ReadFile(path, tryCount)
	if isNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// WriteFile writes content to path, creating the parent directory on ENOENT
// and retrying once.
func (f *FS) WriteFile(path string, content []byte, perm fs.FileMode, tryCount int) error {
	return f.withRetry(context.Background(), tryCount, func() error {
		err := fsutil.WriteFileAtomic(path, content, perm)
		if isNotExist(err) {
			if mkErr := fsutil.EnsureDir(filepath.Dir(path)); mkErr != nil {
				return mkErr
			}
			err = fsutil.WriteFileAtomic(path, content, perm)
		}
		return err
	})
}

// AppendFile appends content to path, creating it (and its parent
// directory) if absent.
func (f *FS) AppendFile(path string, content []byte, perm fs.FileMode, tryCount int) error {
	return f.withRetry(context.Background(), tryCount, func() error {
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, perm)
		if isNotExist(err) {
			if mkErr := fsutil.EnsureDir(filepath.Dir(path)); mkErr != nil {
				return mkErr
			}
			file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, perm)
		}
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = file.Write(content)
		return err
	})
}

// CopyFile copies src to dest, creating dest's parent directory on ENOENT.
func (f *FS) CopyFile(src, dest string, tryCount int) error {
	return f.withRetry(context.Background(), tryCount, func() error {
		err := fsutil.CopyFile(src, dest)
		if isNotExist(err) {
			if mkErr := fsutil.EnsureDir(filepath.Dir(dest)); mkErr != nil {
				return mkErr
			}
			err = fsutil.CopyFile(src, dest)
		}
		return err
	})
}

// MoveFile renames src to dest, falling back to copy+delete across devices.
func (f *FS) MoveFile(src, dest string, tryCount int) error {
	return f.withRetry(context.Background(), tryCount, func() error {
		if err := fsutil.EnsureDir(filepath.Dir(dest)); err != nil {
			return err
		}
		if err := os.Rename(src, dest); err != nil {
			if cpErr := fsutil.CopyFile(src, dest); cpErr != nil {
				return cpErr
			}
			return os.Remove(src)
		}
		return nil
	})
}

// DeleteFile removes path. A missing file is not an error.
func (f *FS) DeleteFile(path string, tryCount int) error {
	return f.withRetry(context.Background(), tryCount, func() error {
		err := os.Remove(path)
		if isNotExist(err) {
			return nil
		}
		return err
	})
}

// CreateDir makes path and any missing parents.
func (f *FS) CreateDir(path string, tryCount int) error {
	return f.withRetry(context.Background(), tryCount, func() error {
		return fsutil.EnsureDir(path)
	})
}

// DeleteDir removes path recursively. A missing directory is not an error.
func (f *FS) DeleteDir(path string, tryCount int) error {
	return f.withRetry(context.Background(), tryCount, func() error {
		err := os.RemoveAll(path)
		if isNotExist(err) {
			return nil
		}
		return err
	})
}

// DeleteDirIfEmpty removes path only if it contains no entries.
func (f *FS) DeleteDirIfEmpty(path string) error {
	entries, err := f.ReadDir(path, 1)
	if isNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return f.DeleteDir(path, 1)
}

// PruneEmptyParents walks upward from dir, deleting each ancestor that is
// empty, stopping at the first non-empty or missing one or at stop.
func (f *FS) PruneEmptyParents(dir, stop string) {
	for dir != "" && dir != stop && dir != filepath.Dir(dir) {
		entries, err := f.ReadDir(dir, 1)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := f.DeleteDir(dir, 1); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// WalkCallbacks are the optional hooks Walk invokes. Dir may return false
// to prune descent into that directory.
type WalkCallbacks struct {
	File  func(path string, st Stat)
	Dir   func(path string) bool
	Other func(path string, st Stat)
	Error func(path string, err error)
	End   func()
}

// Walk performs a depth-first filesystem walk from root, invoking the
// supplied callbacks. Walk errors are reported to Error and do not abort
// sibling walks.
func (f *FS) Walk(root string, cb WalkCallbacks) {
	f.walk(root, cb)
	if cb.End != nil {
		cb.End()
	}
}

func (f *FS) walk(path string, cb WalkCallbacks) {
	st, err := f.Stat(path, 1)
	if err != nil {
		if cb.Error != nil {
			cb.Error(path, err)
		}
		return
	}

	if st.IsDir {
		if cb.Dir != nil && !cb.Dir(path) {
			return
		}
		entries, err := f.ReadDir(path, 1)
		if err != nil {
			if cb.Error != nil {
				cb.Error(path, err)
			}
			return
		}
		for _, e := range entries {
			f.walk(filepath.Join(path, e.Name), cb)
		}
		return
	}

	if st.Mode.IsRegular() {
		if cb.File != nil {
			cb.File(path, st)
		}
		return
	}

	if cb.Other != nil {
		cb.Other(path, st)
	}
}

// WalkAsync is Walk with concurrent fan-out across sibling directories,
// bounded by errgroup.
func (f *FS) WalkAsync(ctx context.Context, root string, cb WalkCallbacks) error {
	g, ctx := errgroup.WithContext(ctx)
	f.walkAsync(ctx, g, root, cb)
	err := g.Wait()
	if cb.End != nil {
		cb.End()
	}
	return err
}

func (f *FS) walkAsync(ctx context.Context, g *errgroup.Group, path string, cb WalkCallbacks) {
	st, err := f.Stat(path, 1)
	if err != nil {
		if cb.Error != nil {
			cb.Error(path, err)
		}
		return
	}

	if st.IsDir {
		if cb.Dir != nil && !cb.Dir(path) {
			return
		}
		entries, err := f.ReadDir(path, 1)
		if err != nil {
			if cb.Error != nil {
				cb.Error(path, err)
			}
			return
		}
		for _, e := range entries {
			child := filepath.Join(path, e.Name)
			if e.IsDir {
				f.walkAsync(ctx, g, child, cb)
				continue
			}
			g.Go(func() error {
				f.walkAsync(ctx, g, child, cb)
				return nil
			})
		}
		return
	}

	if st.Mode.IsRegular() {
		if cb.File != nil {
			cb.File(path, st)
		}
		return
	}

	if cb.Other != nil {
		cb.Other(path, st)
	}
}

// CopyDirAsync copies src to dest recursively, fanning file copies out
// across an errgroup.
func (f *FS) CopyDirAsync(ctx context.Context, src, dest string) error {
	g, ctx := errgroup.WithContext(ctx)
	err := f.copyDirAsync(ctx, g, src, dest)
	if err != nil {
		return err
	}
	return g.Wait()
}

func (f *FS) copyDirAsync(ctx context.Context, g *errgroup.Group, src, dest string) error {
	entries, err := f.ReadDir(src, 1)
	if err != nil {
		return err
	}
	if err := f.CreateDir(dest, 1); err != nil {
		return err
	}
	for _, e := range entries {
		srcPath := filepath.Join(src, e.Name)
		destPath := filepath.Join(dest, e.Name)
		if e.IsDir {
			if err := f.copyDirAsync(ctx, g, srcPath, destPath); err != nil {
				return err
			}
			continue
		}
		g.Go(func() error {
			return f.CopyFile(srcPath, destPath, 0)
		})
	}
	return nil
}
