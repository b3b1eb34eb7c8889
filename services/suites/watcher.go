package suites

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"flowcheck/pkg/bus"
)

const suitesUpdatedSubject = "flowcheck.suites.updated"

// Snapshot is the in-memory view of a suites directory at one poll.
type Snapshot struct {
	Version   string
	UpdatedAt time.Time
	Files     map[string]string
}

// Watcher polls a suites directory and reports content changes. A nil bus
// disables event publishing; the callback alone drives local consumers
// like flowctl watch.
type Watcher struct {
	bus      *bus.Bus
	dir      string
	interval time.Duration
	onChange func(Snapshot)

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewWatcher builds a Watcher over dir. Interval defaults to 30 seconds
// when not provided.
func NewWatcher(b *bus.Bus, dir string, interval time.Duration, onChange func(Snapshot)) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{
		bus:      b,
		dir:      dir,
		interval: interval,
		onChange: onChange,
		snapshot: Snapshot{Files: map[string]string{}},
	}
}

// Start polls until the context is cancelled or a read fails. The first
// sync always reports, so consumers receive the current view right away.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("nil watcher")
	}
	if w.dir == "" {
		return errors.New("suites directory is required")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	if err := w.sync(ctx, true); err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.sync(ctx, false); err != nil {
				return err
			}
		}
	}
}

// Snapshot returns a copy of the latest cached state.
func (w *Watcher) Snapshot() Snapshot {
	if w == nil {
		return Snapshot{}
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	files := make(map[string]string, len(w.snapshot.Files))
	for k, v := range w.snapshot.Files {
		files[k] = v
	}
	return Snapshot{
		Version:   w.snapshot.Version,
		UpdatedAt: w.snapshot.UpdatedAt,
		Files:     files,
	}
}

func (w *Watcher) sync(ctx context.Context, force bool) error {
	files, err := readSuiteFiles(w.dir)
	if err != nil {
		return err
	}

	w.mu.Lock()
	changed := !reflect.DeepEqual(w.snapshot.Files, files)
	if w.snapshot.Version == "" {
		changed = true
	}
	current := w.snapshot
	if changed {
		current = Snapshot{
			Version:   uuid.NewString(),
			UpdatedAt: time.Now().UTC(),
			Files:     files,
		}
		w.snapshot = current
	}
	w.mu.Unlock()

	if !changed && !force {
		return nil
	}

	if w.onChange != nil {
		w.onChange(current)
	}

	if w.bus == nil {
		return nil
	}
	payload := map[string]any{
		"version":      current.Version,
		"updated_at":   current.UpdatedAt,
		"suites_count": len(current.Files),
	}
	return w.bus.Publish(ctx, suitesUpdatedSubject, payload)
}

func readSuiteFiles(dir string) (map[string]string, error) {
	result := map[string]string{}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("suites path is not a directory")
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		result[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
