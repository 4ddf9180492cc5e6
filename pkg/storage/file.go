package storage

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/radovskyb/watcher"
	"github.com/rs/zerolog"
)

const fileExt = ".json"

// FileStore keeps one file per key in a directory. Several processes may share
// the directory; each sees the others' writes through Watch.
type FileStore struct {
	dir      string
	interval time.Duration
	log      zerolog.Logger

	mu sync.Mutex
	// known is the content digest this store last wrote or reported per key,
	// "" meaning absent. Watch only reports keys whose digest moved.
	known map[string]string
}

func NewFileStore(dir string, watchInterval time.Duration, log zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	if watchInterval <= 0 {
		watchInterval = 500 * time.Millisecond
	}
	return &FileStore{
		dir:      dir,
		interval: watchInterval,
		log:      log.With().Str("component", "storage.file").Str("dir", dir).Logger(),
		known:    make(map[string]string),
	}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+fileExt)
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (f *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".tmp-"+key+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	f.known[key] = digest(value)
	return nil
}

func (f *FileStore) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	f.known[key] = ""
	return nil
}

// Watch polls the directory every watch interval.
func (f *FileStore) Watch(ctx context.Context) (<-chan Change, error) {
	w := watcher.New()
	w.FilterOps(watcher.Create, watcher.Write, watcher.Remove, watcher.Rename, watcher.Move)
	if err := w.Add(f.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", f.dir, err)
	}
	f.seed()

	out := make(chan Change, 16)
	go func() {
		if err := w.Start(f.interval); err != nil {
			f.log.Error().Err(err).Msg("Storage watcher stopped")
		}
	}()
	go func() {
		defer close(out)
		defer stopWatcher(w)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.Closed:
				return
			case err := <-w.Error:
				f.log.Warn().Err(err).Msg("Storage watcher error")
			case ev := <-w.Event:
				for _, p := range []string{ev.Path, ev.OldPath} {
					change, ok := f.observe(p)
					if !ok {
						continue
					}
					select {
					case out <- change:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// seed records the current content of every key so that Watch starts from
// what is on disk now.
func (f *FileStore) seed() {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		key, ok := keyFromPath(e.Name())
		if !ok {
			continue
		}
		if _, seen := f.known[key]; seen {
			continue
		}
		if data, err := os.ReadFile(f.path(key)); err == nil {
			f.known[key] = digest(data)
		}
	}
}

func (f *FileStore) observe(path string) (Change, bool) {
	if path == "" {
		return Change{}, false
	}
	key, ok := keyFromPath(filepath.Base(path))
	if !ok {
		return Change{}, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	current := ""
	if data, err := os.ReadFile(f.path(key)); err == nil {
		current = digest(data)
	}
	if prev, seen := f.known[key]; seen && prev == current {
		return Change{}, false
	}
	f.known[key] = current
	return Change{Key: key, Removed: current == ""}, true
}

func (f *FileStore) Close() error { return nil }

// stopWatcher closes w while draining its unbuffered channels, so a poll that
// is mid-send cannot block Close.
func stopWatcher(w *watcher.Watcher) {
	returned := make(chan struct{})
	go func() {
		ret := returned
		var deadline <-chan time.Time
		for {
			select {
			case <-w.Event:
			case <-w.Error:
			case <-w.Closed:
				return
			case <-ret:
				ret = nil
				deadline = time.After(time.Second)
			case <-deadline:
				return
			}
		}
	}()
	w.Close()
	close(returned)
}

func keyFromPath(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	return strings.TrimSuffix(name, fileExt), true
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}
