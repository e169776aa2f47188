package retrieval

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/fyrsmithlabs/campusd/internal/index"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits after the last artifact
// change before reloading.
const DefaultDebounce = 500 * time.Millisecond

// ErrWatcherFailed is returned when the filesystem watcher cannot be created.
var ErrWatcherFailed = errors.New("index watcher failed")

// Reloader reloads the served index from disk.
type Reloader interface {
	Reload(ctx context.Context) (*index.Index, error)
}

// Watcher reloads the index when its artifacts change on disk. Bursts of
// events (a rebuild writes three files) collapse into a single reload.
type Watcher struct {
	dir      string
	reloader Reloader
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *zap.Logger

	stop     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}

	// reloaded receives one value per completed reload attempt.
	reloaded chan error
}

// NewWatcher creates a watcher for dir. A non-positive debounce uses DefaultDebounce.
func NewWatcher(dir string, reloader Reloader, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: index directory is required", ErrWatcherFailed)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		dir:      dir,
		reloader: reloader,
		debounce: debounce,
		watcher:  fw,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		reloaded: make(chan error, 1),
	}, nil
}

// Start begins watching. The directory must exist.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.started.Store(true)
	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
	})
	if w.started.Load() {
		<-w.done
	}
}

// Reloaded reports the result of each reload the watcher performs. Results
// are dropped when nobody is reading.
func (w *Watcher) Reloaded() <-chan error {
	return w.reloaded
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isArtifact(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debug("index artifact changed",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()),
			)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			_, err := w.reloader.Reload(ctx)
			if err != nil {
				w.logger.Warn("index reload after change failed", zap.String("dir", w.dir), zap.Error(err))
			}
			select {
			case w.reloaded <- err:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("index watcher error", zap.Error(err))
		}
	}
}

// isArtifact reports whether path names one of the persisted index files.
// Temp files created during Save are ignored until renamed into place.
func isArtifact(path string) bool {
	switch filepath.Base(path) {
	case index.VectorsFile, index.TextsFile, index.SourcesFile:
		return true
	}
	return false
}
