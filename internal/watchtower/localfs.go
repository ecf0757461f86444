package watchtower

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aramirez087/tuitbot/internal/core"
)

// LocalFS is a ContentSourceProvider over a local directory tree: an
// event-driven watcher backed by fsnotify, plus a 5-minute fallback poll.
// Scan/Read satisfy core.ContentSourceProvider directly; the Watcher type
// (NewWatcher, Run) drives the event-driven half.
type LocalFS struct {
	Root string
}

var _ core.ContentSourceProvider = LocalFS{}

// Scan walks Root and returns every regular file, relative to Root.
func (l LocalFS) Scan(ctx context.Context) ([]core.SourceFile, error) {
	var out []core.SourceFile
	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.Root, path)
		if err != nil {
			return err
		}
		out = append(out, core.SourceFile{RelativePath: rel, ModifiedAt: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Read returns the raw bytes of path, relative to Root.
func (l LocalFS) Read(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(l.Root, path))
}

// Watcher wraps fsnotify.Watcher with a 2s debounce and a 5-minute fallback
// poll, plus a per-path cooldown set so the loop-back writer's own
// front-matter edits don't trigger a re-ingest of the file it just wrote.
type Watcher struct {
	fs   LocalFS
	fsw  *fsnotify.Watcher
	onScan func(ctx context.Context, changed []string)

	mu       sync.Mutex
	cooldown map[string]time.Time
	pending  map[string]struct{}
	timer    *time.Timer
}

// NewWatcher starts an fsnotify watch on root (non-recursive additions are
// added for every existing subdirectory at construction time) and calls
// onScan with the set of changed relative paths after the debounce settles.
func NewWatcher(root string, onScan func(ctx context.Context, changed []string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       LocalFS{Root: root},
		fsw:      fsw,
		onScan:   onScan,
		cooldown: make(map[string]time.Time),
		pending:  make(map[string]struct{}),
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Touch registers path as recently written by us, so the next fsnotify
// event for it within the cooldown window is suppressed — the "watcher
// honors a cooldown set keyed by path" requirement.
func (w *Watcher) Touch(relativePath string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cooldown[relativePath] = time.Now().Add(10 * time.Second)
}

func (w *Watcher) onCooldown(relativePath string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	until, ok := w.cooldown[relativePath]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(w.cooldown, relativePath)
		return false
	}
	return true
}

// Run drives the event loop until ctx is cancelled: fsnotify events debounce
// for 2s before firing onScan, and a 5-minute ticker fires onScan regardless
// with whatever paths are pending (possibly none). The Watcher does not walk
// the tree itself, so an event the OS watcher missed (network filesystems,
// editors that replace-on-save outside the watched inode) is picked up only
// if onScan rescans.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	fallback := time.NewTicker(5 * time.Minute)
	defer fallback.Stop()

	debounce := time.NewTimer(time.Hour)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			rel, err := filepath.Rel(w.fs.Root, ev.Name)
			if err != nil {
				continue
			}
			if w.onCooldown(rel) {
				continue
			}
			w.markPending(rel)
			debounce.Reset(2 * time.Second)

		case <-debounce.C:
			w.flush(ctx)

		case <-fallback.C:
			w.flush(ctx)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			_ = err // surfaced via the caller's logging around Run, if any
		}
	}
}

func (w *Watcher) markPending(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[rel] = struct{}{}
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	changed := make([]string, 0, len(w.pending))
	for rel := range w.pending {
		changed = append(changed, rel)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if w.onScan != nil {
		w.onScan(ctx, changed)
	}
}
